// Package suite negotiates callback tables ("suites") with a plug-in. A suite is identified
// by name and version; the first acquire builds it, later acquires share the instance and
// the last release tears it down.
package suite

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/justyntemme/filterhost/pkg/framework/debug"
)

var (
	ErrSuiteNotAvailable = errors.New("suite: not available")
	ErrNotAcquired       = errors.New("suite: released more often than acquired")
)

// Factory builds a suite instance. release, if not nil, is called once when the last
// reference goes away.
type Factory func() (table any, release func(), err error)

type suiteKey struct {
	name    string
	version int32
}

func (k suiteKey) String() string { return fmt.Sprintf("%s v%d", k.name, k.version) }

type instance struct {
	table   any
	release func()
	refs    int
}

// Broker owns the suites of one invocation.
type Broker struct {
	mu        sync.Mutex
	factories map[suiteKey]Factory
	live      map[suiteKey]*instance
	log       debug.Logger
}

// NewBroker creates an empty broker.
func NewBroker(log debug.Logger) *Broker {
	if log == nil {
		log = debug.Nop()
	}
	return &Broker{
		factories: make(map[suiteKey]Factory),
		live:      make(map[suiteKey]*instance),
		log:       log,
	}
}

// Register makes a (name, version) pair available. Registering the same pair again
// replaces the factory for future first acquires.
func (b *Broker) Register(name string, version int32, f Factory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factories[suiteKey{name, version}] = f
}

// Available reports whether the pair is registered.
func (b *Broker) Available(name string, version int32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.factories[suiteKey{name, version}]
	return ok
}

// Versions returns the registered versions of name in ascending order.
func (b *Broker) Versions(name string) []int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int32
	for k := range b.factories {
		if k.name == name {
			out = append(out, k.version)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Acquire returns the suite instance, building it on first use.
func (b *Broker) Acquire(name string, version int32) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := suiteKey{name, version}
	if inst, ok := b.live[k]; ok {
		inst.refs++
		return inst.table, nil
	}
	f, ok := b.factories[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSuiteNotAvailable, k)
	}
	table, release, err := f()
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", k, err)
	}
	b.live[k] = &instance{table: table, release: release, refs: 1}
	b.log.Debug("suite acquired", "suite", k.name, "version", k.version)
	return table, nil
}

// Release drops one reference and tears the instance down when none remain.
func (b *Broker) Release(name string, version int32) error {
	b.mu.Lock()
	k := suiteKey{name, version}
	inst, ok := b.live[k]
	if !ok {
		b.mu.Unlock()
		if b.Available(name, version) {
			return fmt.Errorf("%w: %s", ErrNotAcquired, k)
		}
		return fmt.Errorf("%w: %s", ErrSuiteNotAvailable, k)
	}
	inst.refs--
	if inst.refs > 0 {
		b.mu.Unlock()
		return nil
	}
	delete(b.live, k)
	b.mu.Unlock()

	if inst.release != nil {
		inst.release()
	}
	b.log.Debug("suite released", "suite", k.name, "version", k.version)
	return nil
}

// RefCount returns the outstanding references of a pair.
func (b *Broker) RefCount(name string, version int32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inst, ok := b.live[suiteKey{name, version}]; ok {
		return inst.refs
	}
	return 0
}

// Live returns the number of instances currently built.
func (b *Broker) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Close tears down every live instance regardless of its reference count and returns how
// many there were. Plug-ins that forget to release are not an error.
func (b *Broker) Close() int {
	b.mu.Lock()
	live := b.live
	b.live = make(map[suiteKey]*instance)
	b.mu.Unlock()

	for k, inst := range live {
		if inst.release != nil {
			inst.release()
		}
		b.log.Debug("suite torn down", "suite", k.name, "version", k.version, "refs", inst.refs)
	}
	return len(live)
}
