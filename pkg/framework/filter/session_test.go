package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/pipl"
	"github.com/justyntemme/filterhost/pkg/framework/state"
)

// memImage is an 8-bit interleaved image held in memory.
type memImage struct {
	info    ImageInfo
	pix     []byte
	fetches []RegionRequest
	stores  []Region
	failOn  int
}

func newMemImage(w, h, planes int) *memImage {
	m := &memImage{
		info: ImageInfo{Width: w, Height: h, Planes: planes, Mode: filterapi.ModeRGBColor, Depth: 8},
		pix:  make([]byte, w*h*planes),
	}
	for i := range m.pix {
		m.pix[i] = byte(i)
	}
	return m
}

func (m *memImage) at(h, v, p int) byte {
	return m.pix[(v*m.info.Width+h)*m.info.Planes+p]
}

func (m *memImage) Info() ImageInfo { return m.info }

func (m *memImage) Fetch(req *RegionRequest) (*Region, error) {
	m.fetches = append(m.fetches, *req)
	if m.failOn > 0 && len(m.fetches) == m.failOn {
		return nil, errors.New("disk on fire")
	}
	region := &Region{In: m.plane(req.In), Out: m.plane(req.Out)}
	if !req.Mask.Empty() {
		region.Mask = m.plane(req.Mask)
		for i := range region.Mask.Data {
			region.Mask.Data[i] = 255
		}
	}
	return region, nil
}

func (m *memImage) plane(r PlaneRequest) Plane {
	if r.Empty() {
		return Plane{}
	}
	p := Plane{PlaneRequest: r, Depth: 8, RowBytes: r.Rect.Width() * r.Planes()}
	p.Data = make([]byte, p.RowBytes*r.Rect.Height())
	for v := int(r.Rect.Top); v < int(r.Rect.Bottom); v++ {
		for h := int(r.Rect.Left); h < int(r.Rect.Right); h++ {
			for c := 0; c < r.Planes(); c++ {
				p.Data[p.Offset(h, v)+c] = m.at(h, v, r.LoPlane+c)
			}
		}
	}
	return p
}

func (m *memImage) Store(region *Region) error {
	m.stores = append(m.stores, *region)
	out := region.Out
	for v := int(out.Rect.Top); v < int(out.Rect.Bottom); v++ {
		for h := int(out.Rect.Left); h < int(out.Rect.Right); h++ {
			for c := 0; c < out.Planes(); c++ {
				m.pix[(v*m.info.Width+h)*m.info.Planes+out.LoPlane+c] = out.Data[out.Offset(h, v)+c]
			}
		}
	}
	return nil
}

// script records every selector and answers with per-selector handlers.
type script struct {
	calls    []filterapi.Selector
	handlers map[filterapi.Selector]func(s *Session) int16
}

func (sc *script) Call(sel filterapi.Selector, s *Session) int16 {
	sc.calls = append(sc.calls, sel)
	if h, ok := sc.handlers[sel]; ok {
		return h(s)
	}
	return 0
}

func requestAll(s *Session) {
	rec := s.Record()
	rec.InRect, rec.OutRect = rec.FilterRect, rec.FilterRect
	rec.InLoPlane, rec.InHiPlane = 0, rec.Planes-1
	rec.OutLoPlane, rec.OutHiPlane = 0, rec.Planes-1
}

func requestNothing(s *Session) {
	rec := s.Record()
	rec.InRect, rec.OutRect, rec.MaskRect = filterapi.Rect{}, filterapi.Rect{}, filterapi.Rect{}
}

func invert(s *Session) {
	in, out := s.Input(), s.Output()
	for i := range out.Data {
		out.Data[i] = 255 - in.Data[i]
	}
}

func newTestSession(t *testing.T, entry Entry, img ImageProvider, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(debug.NewTestLogger(t))}, opts...)
	s, err := NewSession(entry, img, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunTransitionTrace(t *testing.T) {
	img := newMemImage(4, 3, 3)
	orig := append([]byte(nil), img.pix...)
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			requestAll(s)
			return 0
		},
		filterapi.SelectorContinue: func(s *Session) int16 {
			invert(s)
			requestNothing(s)
			return 0
		},
	}}

	var trace []string
	s := newTestSession(t, sc, img, WithObserver(func(tr Transition) { trace = append(trace, tr.String()) }))
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"none->parameters",
		"parameters->prepare",
		"prepare->start",
		"start->continue",
		"continue->finish",
		"finish->none",
	}, trace)
	assert.Equal(t, []filterapi.Selector{
		filterapi.SelectorParameters,
		filterapi.SelectorPrepare,
		filterapi.SelectorStart,
		filterapi.SelectorContinue,
		filterapi.SelectorFinish,
	}, sc.calls)

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, 1, res.Continues)
	assert.Len(t, img.fetches, res.Continues, "one region request per continue")
	assert.Equal(t, 1, res.Stores)
	assert.Equal(t, StateNone, s.State())
	for i := range orig {
		assert.Equal(t, 255-orig[i], img.pix[i], "byte %d", i)
	}
}

func TestRunSeveralPasses(t *testing.T) {
	img := newMemImage(2, 5, 1)
	row := int16(0)
	next := func(s *Session) int16 {
		rec := s.Record()
		if row == 5 {
			requestNothing(s)
			return 0
		}
		rec.InRect = filterapi.Rect{Top: row, Bottom: row + 1, Right: 2}
		rec.OutRect = rec.InRect
		row++
		return 0
	}
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: next,
		filterapi.SelectorContinue: func(s *Session) int16 {
			invert(s)
			return next(s)
		},
	}}

	res, err := newTestSession(t, sc, img).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Continues)
	assert.Len(t, img.fetches, 5)
	assert.Equal(t, 5, res.Stores)
	assert.Equal(t, byte(255), img.pix[0])
}

func TestCancelDuringStart(t *testing.T) {
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(*Session) int16 { return int16(filterapi.UserCanceledErr) },
	}}
	res, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())

	assert.ErrorIs(t, err, ErrUserCanceled)
	var pe *PluginError
	assert.False(t, errors.As(err, &pe))
	assert.Equal(t, UserCanceled, res.Outcome)
	assert.Equal(t, []filterapi.Selector{
		filterapi.SelectorParameters,
		filterapi.SelectorPrepare,
		filterapi.SelectorStart,
		filterapi.SelectorFinish,
	}, sc.calls)
}

func TestCancelFromAnotherGoroutine(t *testing.T) {
	polling := make(chan struct{})
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			close(polling)
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if s.Abort() {
					return int16(filterapi.UserCanceledErr)
				}
				time.Sleep(time.Millisecond)
			}
			return 0
		},
	}}
	s := newTestSession(t, sc, newMemImage(2, 2, 3))
	go func() {
		<-polling
		s.Cancel()
	}()

	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrUserCanceled)
	assert.Equal(t, UserCanceled, res.Outcome)
	assert.Zero(t, res.Continues)
}

func TestContextCancellationIsPolled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			cancel()
			if s.Abort() {
				return int16(filterapi.UserCanceledErr)
			}
			return 0
		},
	}}
	res, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(ctx)
	assert.ErrorIs(t, err, ErrUserCanceled)
	assert.Equal(t, UserCanceled, res.Outcome)

	finishes := 0
	for _, c := range sc.calls {
		if c == filterapi.SelectorFinish {
			finishes++
		}
	}
	assert.Equal(t, 1, finishes)
}

func TestCancelBetweenPasses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			requestAll(s)
			cancel()
			return 0
		},
	}}
	res, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(ctx)
	assert.ErrorIs(t, err, ErrUserCanceled)
	assert.Equal(t, 0, res.Continues)
	assert.Equal(t, filterapi.SelectorFinish, sc.calls[len(sc.calls)-1])
}

func TestPluginReportedError(t *testing.T) {
	t.Run("CodePreserved", func(t *testing.T) {
		sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
			filterapi.SelectorPrepare: func(*Session) int16 { return int16(filterapi.FilterBadParameters) },
		}}
		res, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())

		var pe *PluginError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, filterapi.FilterBadParameters, pe.Code)
		assert.Equal(t, filterapi.SelectorPrepare, pe.Selector)
		assert.Equal(t, PluginReportedError, res.Outcome)
		assert.NotContains(t, sc.calls, filterapi.SelectorFinish, "start was never entered")
	})

	t.Run("ReportString", func(t *testing.T) {
		sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
			filterapi.SelectorParameters: func(s *Session) int16 {
				s.SetErrorString("the radius must be positive")
				return int16(filterapi.ErrReportString)
			},
		}}
		_, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())
		var pe *PluginError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "the radius must be positive", pe.Message)
		assert.Contains(t, err.Error(), "the radius must be positive")
	})

	t.Run("ReportStringInRecord", func(t *testing.T) {
		sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
			filterapi.SelectorStart: func(s *Session) int16 {
				s.errString.Set("tile too large")
				return int16(filterapi.ErrReportString)
			},
		}}
		_, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())
		var pe *PluginError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "tile too large", pe.Message)
	})

	t.Run("FinishFailure", func(t *testing.T) {
		sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
			filterapi.SelectorFinish: func(*Session) int16 { return int16(filterapi.MemFullErr) },
		}}
		res, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())
		assert.Equal(t, PluginReportedError, res.Outcome)
		assert.ErrorContains(t, err, "not enough memory")
		assert.Len(t, sc.calls, 4)
	})

	t.Run("Panic", func(t *testing.T) {
		sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
			filterapi.SelectorStart: func(*Session) int16 { panic("nil map") },
		}}
		res, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())
		assert.True(t, IsHostFault(err))
		assert.Equal(t, HostFailure, res.Outcome)
		assert.Equal(t, filterapi.SelectorFinish, sc.calls[len(sc.calls)-1])
	})
}

func TestReentrantCallsAreRejected(t *testing.T) {
	var inner []error
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorParameters: func(s *Session) int16 {
			_, err := s.Run(context.Background())
			inner = append(inner, err)
			inner = append(inner, s.About(context.Background()))
			inner = append(inner, s.invoke(filterapi.SelectorStart))
			return 0
		},
	}}
	s := newTestSession(t, sc, newMemImage(2, 2, 3))
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, res.Outcome)

	require.Len(t, inner, 3)
	for _, e := range inner {
		assert.True(t, IsHostFault(e), "%v", e)
	}
	assert.Equal(t, []filterapi.Selector{
		filterapi.SelectorParameters,
		filterapi.SelectorPrepare,
		filterapi.SelectorStart,
		filterapi.SelectorFinish,
	}, sc.calls)

	_, err = s.Run(context.Background())
	assert.True(t, IsHostFault(err), "a session runs once")
}

func TestLeaksAreSweptSilently(t *testing.T) {
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorPrepare: func(s *Session) int16 {
			if _, err := s.Handles().Allocate(64); err != nil {
				return int16(filterapi.MemFullErr)
			}
			if _, err := s.Buffers().Allocate(128); err != nil {
				return int16(filterapi.MemFullErr)
			}
			return 0
		},
	}}
	s := newTestSession(t, sc, newMemImage(2, 2, 3))
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Swept)
	assert.Zero(t, s.Handles().Stats().Live)
	assert.Zero(t, s.Buffers().Live())
}

func TestUnsupportedImage(t *testing.T) {
	img := newMemImage(2, 2, 3)
	caps := &pipl.Info{Kind: pipl.KindFilter, Name: "Gray only", Modes: []byte{0x40}}
	_, err := NewSession(&script{}, img, WithCapabilities(caps))
	var he *HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, HostUnsupported, he.Kind)
	assert.Equal(t, HostFailure, OutcomeOf(err))

	img.info.Depth = 32
	_, err = NewSession(&script{}, img)
	require.ErrorAs(t, err, &he)
	assert.Equal(t, HostUnsupported, he.Kind)
}

func TestRecordSetup(t *testing.T) {
	img := newMemImage(6, 4, 4)
	img.info.Transparency = true
	img.info.Selection = filterapi.Rect{Top: 1, Left: 2, Bottom: 3, Right: 5}
	img.info.Foreground = filterapi.RGBColor{Red: 65535}
	img.info.Background = filterapi.RGBColor{Red: 65535, Green: 65535, Blue: 65535}

	s := newTestSession(t, &script{}, img, WithShowDialogs(true))
	rec := s.Record()
	assert.Equal(t, filterapi.Point{V: 4, H: 6}, rec.ImageSize)
	assert.Equal(t, int16(4), rec.Planes)
	assert.Equal(t, img.info.Selection, rec.FilterRect)
	assert.Equal(t, filterapi.FilterCaseEditableTransparencyWithSelection, rec.FilterCase)
	assert.Equal(t, filterapi.FilterColor{255, 0, 0, 0}, rec.ForeColor)
	assert.Equal(t, filterapi.FilterColor{255, 255, 255, 0}, rec.BackColor)
	assert.Equal(t, int16(3), rec.InLayerPlanes)
	assert.Equal(t, int16(1), rec.InTransparencyMask)
	assert.Equal(t, filterapi.PaddingErrorOnBounds, rec.InputPadding)
	assert.Equal(t, filterapi.HostSignature, rec.HostSig)
	assert.Equal(t, int32(8), rec.Depth)
	assert.Equal(t, 72.0, rec.ImageHRes.Float())
	assert.NotZero(t, rec.DescriptorParameters)
	assert.Equal(t, filterapi.PlayDialogOptional, s.DescriptorParameters().PlayInfo)
	assert.Equal(t, s.recBlock.Addr(), s.ParamBlock())
}

func TestAbout(t *testing.T) {
	var block uintptr
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorAbout: func(s *Session) int16 {
			block = s.ParamBlock()
			return 0
		},
	}}
	s := newTestSession(t, sc, newMemImage(1, 1, 1))
	require.NoError(t, s.About(context.Background()))
	assert.Equal(t, []filterapi.Selector{filterapi.SelectorAbout}, sc.calls)
	assert.Equal(t, s.aboutBlock.Addr(), block)
	assert.Equal(t, StateNone, s.State())
}

func TestProfilerTimesSelectors(t *testing.T) {
	p := debug.NewProfiler(8)
	_, err := newTestSession(t, &script{}, newMemImage(1, 1, 1), WithProfiler(p)).Run(context.Background())
	require.NoError(t, err)
	for _, name := range []string{"parameters", "prepare", "start", "finish"} {
		m, ok := p.Measurement(name)
		require.True(t, ok, name)
		assert.Equal(t, uint64(1), m.Count)
	}
	_, ok := p.Measurement("continue")
	assert.False(t, ok)
}

func TestParametersRememberedBetweenRuns(t *testing.T) {
	store := state.NewMemoryStore()
	amount := filterapi.MakeOSType("Amnt")
	tpsr := filterapi.MakeOSType("tpsr")

	first := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorParameters: func(s *Session) int16 {
			h, err := s.Handles().Allocate(4)
			if err != nil {
				return int16(filterapi.MemFullErr)
			}
			b, _ := s.Handles().Bytes(h)
			copy(b, []byte{9, 8, 7, 6})
			s.Record().Parameters = h

			rh, _ := s.Handles().Allocate(3)
			rb, _ := s.Handles().Bytes(rh)
			copy(rb, "abc")
			if err := s.AddResource(tpsr, rh); err != nil {
				return int16(filterapi.ParamErr)
			}

			d := descriptor.New(s.Terminology())
			d.PutInteger(amount, 42)
			dh, err := s.DescriptorToHandle(d)
			if err != nil {
				return int16(filterapi.MemFullErr)
			}
			s.DescriptorParameters().Descriptor = dh

			reg := descriptor.New(nil)
			reg.PutText(amount, "kept")
			s.Registry().Set("com.example.persist", reg, true)
			s.Registry().Set("com.example.session", reg, false)
			return 0
		},
	}}
	res, err := newTestSession(t, first, newMemImage(2, 2, 3), WithStore(store, "Example Filter")).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Descriptor)
	v, err := res.Descriptor.Integer(amount)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	var seen struct {
		params   []byte
		resource []byte
		amount   int32
		persist  bool
		session  bool
	}
	second := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorParameters: func(s *Session) int16 {
			b, err := s.Handles().Bytes(s.Record().Parameters)
			if err != nil {
				return int16(filterapi.NilHandleErr)
			}
			seen.params = append([]byte(nil), b...)

			if s.CountResources(tpsr) == 1 {
				h, err := s.GetResource(tpsr, 1)
				if err == nil {
					seen.resource, _ = s.Handles().Bytes(h)
					seen.resource = append([]byte(nil), seen.resource...)
				}
			}

			d, err := s.DescriptorFromHandle(s.DescriptorParameters().Descriptor)
			if err == nil {
				seen.amount, _ = d.Integer(amount)
			}
			_, seen.persist, _ = s.Registry().Get("com.example.persist")
			_, _, err = s.Registry().Get("com.example.session")
			seen.session = err == nil
			return 0
		},
	}}
	_, err = newTestSession(t, second, newMemImage(2, 2, 3), WithStore(store, "Example Filter")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []byte{9, 8, 7, 6}, seen.params)
	assert.Equal(t, []byte("abc"), seen.resource)
	assert.Equal(t, int32(42), seen.amount)
	assert.True(t, seen.persist)
	assert.True(t, seen.session, "session entries live for the process")
}

func TestFailedRunDoesNotSave(t *testing.T) {
	store := state.NewMemoryStore()
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorParameters: func(s *Session) int16 {
			h, _ := s.Handles().Allocate(1)
			s.Record().Parameters = h
			return int16(filterapi.FilterBadParameters)
		},
	}}
	_, err := newTestSession(t, sc, newMemImage(1, 1, 1), WithStore(store, "failing")).Run(context.Background())
	require.Error(t, err)
	snap, err := store.LoadParameters("failing")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestImageProviderFailure(t *testing.T) {
	img := newMemImage(2, 2, 3)
	img.failOn = 1
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			requestAll(s)
			return 0
		},
	}}
	res, err := newTestSession(t, sc, img).Run(context.Background())
	var he *HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, HostImage, he.Kind)
	assert.Equal(t, HostFailure, res.Outcome)
	assert.Equal(t, filterapi.SelectorFinish, sc.calls[len(sc.calls)-1])
}
