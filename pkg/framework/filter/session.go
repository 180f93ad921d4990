// Package filter drives a filter plug-in through its selector sequence.
//
// A Session owns everything one invocation needs: the shared filter record, the handle and
// buffer managers, the pseudo-resource table, the descriptor registry and object tokens, and
// the suite broker. Run walks the plug-in through
//
//	none -> parameters -> prepare -> start -> continue* -> finish -> none
//
// calling the entry point once per step. Callbacks the plug-in makes while it is being
// called only touch this state; they never start another selector.
package filter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/aete"
	"github.com/justyntemme/filterhost/pkg/framework/buffer"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/config"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/handle"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
	"github.com/justyntemme/filterhost/pkg/framework/pipl"
	"github.com/justyntemme/filterhost/pkg/framework/resource"
	"github.com/justyntemme/filterhost/pkg/framework/suite"
)

const maxImageSide = math.MaxInt16

// Result summarises a finished invocation.
type Result struct {
	ID        uuid.UUID
	Outcome   Outcome
	Continues int
	Fetches   int
	Stores    int
	// Swept counts handles and buffers the plug-in left allocated.
	Swept      int
	Descriptor *descriptor.Descriptor
}

type hostSettings struct {
	signature   filterapi.OSType
	serial      int32
	maxSpace    int64
	showDialogs bool
}

// Session is one invocation of a filter on one image.
type Session struct {
	id       uuid.UUID
	created  time.Time
	entry    Entry
	provider ImageProvider
	info     ImageInfo
	caps     *pipl.Info
	terms    *aete.Table
	store    ParameterStore
	plugin   string
	host     hostSettings

	log      debug.Logger
	profiler *debug.Profiler
	observer func(Transition)
	progress func(done, total int32)

	mem       memory.Memory
	ownsMem   bool
	masters   bool
	handles   *handle.Manager
	buffers   *buffer.Manager
	resources *resource.Table
	registry  *descriptor.Registry
	objects   *descriptor.Objects
	broker    *suite.Broker
	colors    *colorspace.Table

	recBlock   memory.Block
	rec        *filterapi.FilterRecord
	aboutBlock memory.Block
	about      *filterapi.AboutRecord
	descBlock  memory.Block
	desc       *filterapi.DescriptorParameters
	errBlock   memory.Block
	errString  *filterapi.Str255

	ctx        context.Context
	state      State
	started    bool
	selector   filterapi.Selector
	inCall     atomic.Bool
	running    atomic.Bool
	ran        bool
	closed     bool
	canceled   atomic.Bool
	errorText  string
	descHandle filterapi.Handle
	lastDesc   *descriptor.Descriptor
	props      map[filterapi.OSType]property

	region    regionState
	continues int
	fetches   int
	stores    int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l debug.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithProfiler times every selector call under the selector's name.
func WithProfiler(p *debug.Profiler) Option {
	return func(s *Session) { s.profiler = p }
}

// WithObserver reports every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithProgress receives the plug-in's progress reports.
func WithProgress(fn func(done, total int32)) Option {
	return func(s *Session) { s.progress = fn }
}

// WithCapabilities checks the image against the plug-in's capability block before running.
func WithCapabilities(info *pipl.Info) Option {
	return func(s *Session) { s.caps = info }
}

// WithTerminology supplies the flags of descriptor keys the plug-in produces.
func WithTerminology(t *aete.Table) Option {
	return func(s *Session) { s.terms = t }
}

// WithStore remembers parameters between invocations under the plug-in identity.
func WithStore(store ParameterStore, plugin string) Option {
	return func(s *Session) {
		s.store = store
		s.plugin = plugin
	}
}

// WithMemory sets the memory handles, buffers and records are allocated from. The caller
// keeps ownership.
func WithMemory(mem memory.Memory) Option {
	return func(s *Session) { s.mem = mem }
}

// WithMasterPointers hands out handles that native code may dereference directly.
func WithMasterPointers() Option {
	return func(s *Session) { s.masters = true }
}

// WithConfig applies the host section of a configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) {
		if cfg == nil || cfg.Host == nil {
			return
		}
		s.host.signature = cfg.HostSignature()
		s.host.serial = cfg.Host.SerialNumber
		s.host.maxSpace = cfg.MaxSpace()
		s.host.showDialogs = cfg.Host.ShowDialogs
	}
}

// WithShowDialogs lets the plug-in show its dialogs.
func WithShowDialogs(show bool) Option {
	return func(s *Session) { s.host.showDialogs = show }
}

// NewSession prepares an invocation of entry on the image served by provider.
func NewSession(entry Entry, provider ImageProvider, opts ...Option) (*Session, error) {
	s := &Session{
		id:       uuid.New(),
		created:  time.Now(),
		entry:    entry,
		provider: provider,
		info:     provider.Info(),
		log:      debug.Nop(),
		ctx:      context.Background(),
		props:    make(map[filterapi.OSType]property),
		host: hostSettings{
			signature: filterapi.HostSignature,
			maxSpace:  512 << 20,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = debug.With(s.log, "session", s.id.String())
	if s.plugin == "" && s.caps != nil {
		s.plugin = s.caps.Name
	}

	if err := s.checkImage(); err != nil {
		return nil, err
	}

	if s.mem == nil {
		s.mem = memory.NewHeap(0)
		s.ownsMem = true
	}
	hopts := []handle.Option{handle.WithLogger(s.log)}
	if s.masters {
		hopts = append(hopts, handle.WithMasterPointers())
	}
	s.handles = handle.NewManager(s.mem, hopts...)
	s.buffers = buffer.NewManager(s.mem, s.host.maxSpace, s.log)
	s.resources = resource.NewTable()
	s.registry = descriptor.NewRegistry()
	s.objects = descriptor.NewObjects()
	s.broker = suite.NewBroker(s.log)
	s.registerSuites()

	if err := s.allocRecords(); err != nil {
		s.Close()
		return nil, err
	}
	s.setupRecord()
	return s, nil
}

func (s *Session) checkImage() error {
	i := s.info
	switch {
	case i.Width <= 0 || i.Height <= 0:
		return hostError(HostUnsupported, "empty image %dx%d", i.Width, i.Height)
	case i.Width > maxImageSide || i.Height > maxImageSide:
		return hostError(HostUnsupported, "image %dx%d exceeds %d pixels per side", i.Width, i.Height, maxImageSide)
	case i.Depth != 8 && i.Depth != 16:
		return hostError(HostUnsupported, "depth %d", i.Depth)
	case i.Planes <= 0:
		return hostError(HostUnsupported, "image has no planes")
	}
	fc := i.FilterCase()
	if s.caps != nil && !s.caps.Supports(i.Mode, fc) {
		return hostError(HostUnsupported, "%q does not support image mode %d with filter case %d", s.caps.Name, i.Mode, fc)
	}
	return nil
}

func allocRecord[T any](mem memory.Memory) (memory.Block, *T, error) {
	var zero T
	b, err := mem.Alloc(int(unsafe.Sizeof(zero)))
	if err != nil {
		return memory.Block{}, nil, err
	}
	return b, (*T)(unsafe.Pointer(&b.Bytes()[0])), nil
}

func (s *Session) allocRecords() error {
	var err error
	if s.recBlock, s.rec, err = allocRecord[filterapi.FilterRecord](s.mem); err != nil {
		return &HostError{Kind: HostMemory, Err: err}
	}
	if s.aboutBlock, s.about, err = allocRecord[filterapi.AboutRecord](s.mem); err != nil {
		return &HostError{Kind: HostMemory, Err: err}
	}
	if s.descBlock, s.desc, err = allocRecord[filterapi.DescriptorParameters](s.mem); err != nil {
		return &HostError{Kind: HostMemory, Err: err}
	}
	if s.errBlock, s.errString, err = allocRecord[filterapi.Str255](s.mem); err != nil {
		return &HostError{Kind: HostMemory, Err: err}
	}
	return nil
}

// ID returns the session id used in logs and results.
func (s *Session) ID() uuid.UUID { return s.id }

// Record returns the shared filter record.
func (s *Session) Record() *filterapi.FilterRecord { return s.rec }

// AboutRecord returns the record passed with the about selector.
func (s *Session) AboutRecord() *filterapi.AboutRecord { return s.about }

// DescriptorParameters returns the scripting block linked from the filter record.
func (s *Session) DescriptorParameters() *filterapi.DescriptorParameters { return s.desc }

// ParamBlock returns the address of the record for the selector being called.
func (s *Session) ParamBlock() uintptr {
	if s.selector == filterapi.SelectorAbout {
		return s.aboutBlock.Addr()
	}
	return s.recBlock.Addr()
}

// Info returns the image description.
func (s *Session) Info() ImageInfo { return s.info }

// State returns the current phase.
func (s *Session) State() State { return s.state }

// Selector returns the selector being called, or the last one called.
func (s *Session) Selector() filterapi.Selector { return s.selector }

// InCall reports whether the plug-in is being called.
func (s *Session) InCall() bool { return s.inCall.Load() }

func (s *Session) Logger() debug.Logger            { return s.log }
func (s *Session) Memory() memory.Memory           { return s.mem }
func (s *Session) Handles() *handle.Manager        { return s.handles }
func (s *Session) Buffers() *buffer.Manager        { return s.buffers }
func (s *Session) Resources() *resource.Table      { return s.resources }
func (s *Session) Registry() *descriptor.Registry  { return s.registry }
func (s *Session) Objects() *descriptor.Objects    { return s.objects }
func (s *Session) Suites() *suite.Broker           { return s.broker }
func (s *Session) Capabilities() *pipl.Info        { return s.caps }
func (s *Session) HostSignature() filterapi.OSType { return s.host.signature }
func (s *Session) Plugin() string                  { return s.plugin }
func (s *Session) Context() context.Context        { return s.ctx }

// LastDescriptor returns the descriptor the plug-in last returned, or nil.
func (s *Session) LastDescriptor() *descriptor.Descriptor { return s.lastDesc }

// Terminology returns the flag source for descriptors the plug-in builds, or nil.
func (s *Session) Terminology() descriptor.FlagSource {
	if s.terms == nil {
		return nil
	}
	return s.terms
}

func (s *Session) transition(to State) error {
	if !canTransition(s.state, to) {
		return hostError(HostFault, "transition %s->%s out of order", s.state, to)
	}
	t := Transition{From: s.state, To: to}
	s.state = to
	if to == StateStart {
		s.started = true
	}
	s.log.Debug("transition", "from", t.From, "to", t.To)
	if s.observer != nil {
		s.observer(t)
	}
	return nil
}

// step moves to the given state and calls the plug-in with its selector.
func (s *Session) step(to State) error {
	if err := s.transition(to); err != nil {
		return err
	}
	sel, _ := to.Selector()
	return s.invoke(sel)
}

// invoke makes exactly one call into the plug-in.
func (s *Session) invoke(sel filterapi.Selector) (err error) {
	if !s.inCall.CompareAndSwap(false, true) {
		return hostError(HostFault, "%s selector while the plug-in is being called", sel)
	}
	defer s.inCall.Store(false)

	s.selector = sel
	s.errorText = ""
	s.errString.Set("")

	stop := s.profiler.Start(sel.String())
	defer stop()
	defer func() {
		if r := recover(); r != nil {
			err = hostError(HostFault, "plug-in panicked in %s: %v", sel, r)
		}
	}()

	code := filterapi.OSErr(s.entry.Call(sel, s))
	s.log.Debug("selector returned", "selector", sel, "code", code)
	if sel != filterapi.SelectorAbout {
		s.captureDescriptor()
	}
	return s.interpret(sel, code)
}

func (s *Session) interpret(sel filterapi.Selector, code filterapi.OSErr) error {
	switch code {
	case filterapi.NoErr:
		return nil
	case filterapi.UserCanceledErr:
		return ErrUserCanceled
	case filterapi.ErrReportString:
		return &PluginError{Selector: sel, Code: code, Message: s.errorMessage()}
	default:
		return &PluginError{Selector: sel, Code: code}
	}
}

func (s *Session) errorMessage() string {
	if s.errorText != "" {
		return s.errorText
	}
	return s.errString.String()
}

// Run drives the plug-in through the whole selector sequence. The returned error is nil
// exactly when the outcome is Success.
func (s *Session) Run(ctx context.Context) (Result, error) {
	res := Result{ID: s.id}
	if s.inCall.Load() {
		res.Outcome = HostFailure
		return res, hostError(HostFault, "run from inside a plug-in call")
	}
	if !s.running.CompareAndSwap(false, true) {
		res.Outcome = HostFailure
		return res, hostError(HostFault, "session is already running")
	}
	defer s.running.Store(false)
	if s.ran || s.closed {
		res.Outcome = HostFailure
		return res, hostError(HostFault, "session already used")
	}
	s.ran = true
	s.ctx = ctx

	unbind, err := s.bind()
	if err == nil {
		err = s.restore()
	}
	if err == nil {
		err = s.sequence()
		if err == nil {
			err = s.save()
		}
	}
	res.Swept = s.teardown(unbind)

	res.Outcome = OutcomeOf(err)
	res.Continues, res.Fetches, res.Stores = s.continues, s.fetches, s.stores
	res.Descriptor = s.lastDesc
	switch res.Outcome {
	case Success, UserCanceled:
		s.log.Info("filter finished", "outcome", res.Outcome, "continues", res.Continues, "swept", res.Swept)
	default:
		s.log.Error("filter failed", "outcome", res.Outcome, "error", err)
	}
	return res, err
}

func (s *Session) sequence() error {
	if err := s.step(StateParameters); err != nil {
		return s.abort(err)
	}
	if err := s.step(StatePrepare); err != nil {
		return s.abort(err)
	}
	s.applyPrepare()
	if err := s.step(StateStart); err != nil {
		return s.abort(err)
	}
	if err := s.storeRegion(); err != nil {
		return s.abort(err)
	}

	for !s.requestEmpty() {
		if s.Abort() {
			return s.abort(ErrUserCanceled)
		}
		if err := s.loadRegion(); err != nil {
			return s.abort(err)
		}
		s.continues++
		if err := s.step(StateContinue); err != nil {
			return s.abort(err)
		}
		if err := s.storeRegion(); err != nil {
			return s.abort(err)
		}
	}

	err := s.step(StateFinish)
	if terr := s.transition(StateNone); terr != nil && err == nil {
		err = terr
	}
	return err
}

// abort runs finish once if start was entered and returns to none.
func (s *Session) abort(cause error) error {
	if s.started && s.state != StateFinish {
		if err := s.transition(StateFinish); err == nil {
			if ferr := s.invoke(filterapi.SelectorFinish); ferr != nil {
				s.log.Warn("finish during abort failed", "error", ferr)
			}
		}
	}
	if err := s.transition(StateNone); err != nil {
		s.log.Warn("abort transition failed", "error", err)
	}
	s.log.Debug("invocation aborted", "cause", cause)
	return cause
}

// applyPrepare reads back the memory the plug-in reserved during prepare.
func (s *Session) applyPrepare() {
	s.log.Debug("prepare",
		"buffer_space", s.rec.BufferSpace,
		"max_space", s.rec.MaxSpace,
		"available", s.buffers.AvailableSpace())
}

// About shows the plug-in's about box.
func (s *Session) About(ctx context.Context) error {
	if s.inCall.Load() {
		return hostError(HostFault, "about from inside a plug-in call")
	}
	if s.closed {
		return hostError(HostFault, "session closed")
	}
	s.ctx = ctx
	unbind, err := s.bind()
	if err != nil {
		return err
	}
	defer unbind()
	return s.invoke(filterapi.SelectorAbout)
}

func (s *Session) bind() (func(), error) {
	b, ok := s.entry.(Binder)
	if !ok {
		return func() {}, nil
	}
	unbind, err := b.Bind(s)
	if err != nil {
		return func() {}, &HostError{Kind: HostBinding, Err: err}
	}
	if unbind == nil {
		unbind = func() {}
	}
	return unbind, nil
}

// Abort reports whether the invocation should stop. The plug-in polls it.
func (s *Session) Abort() bool {
	if s.ctx.Err() != nil {
		s.canceled.Store(true)
	}
	return s.canceled.Load()
}

// Cancel asks the plug-in to stop at its next abort check. It may be called from any
// goroutine.
func (s *Session) Cancel() {
	s.canceled.Store(true)
}

// Progress receives a progress report from the plug-in.
func (s *Session) Progress(done, total int32) {
	if s.progress != nil {
		s.progress(done, total)
	}
}

// SetErrorString sets the text reported with errReportString.
func (s *Session) SetErrorString(msg string) {
	s.errorText = msg
}

func (s *Session) teardown(unbind func()) int {
	if s.plugin != "" {
		descriptor.ProcessCache.Save(s.plugin, s.registry)
	}
	if n := s.broker.Close(); n > 0 {
		s.log.Debug("suites still acquired at teardown", "count", n)
	}
	s.objects.Reset()
	s.freeRegion()
	s.rec.Parameters = 0
	s.desc.Descriptor, s.descHandle = 0, 0
	swept := s.handles.Sweep() + s.buffers.Sweep()
	if unbind != nil {
		unbind()
	}
	return swept
}

// Close releases the session's records. A session cannot be used after Close.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.ran {
		s.handles.Sweep()
		s.buffers.Sweep()
	}
	var errs []error
	for _, b := range []*memory.Block{&s.recBlock, &s.aboutBlock, &s.descBlock, &s.errBlock} {
		if b.IsZero() {
			continue
		}
		if err := s.mem.Free(*b); err != nil {
			errs = append(errs, err)
		}
		*b = memory.Block{}
	}
	s.rec, s.about, s.desc, s.errString = nil, nil, nil, nil
	if s.ownsMem {
		errs = append(errs, s.mem.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}
