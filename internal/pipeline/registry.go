package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/abyssdigger/acqlog/severity"
)

const (
	_ERROR_MESSAGE_SINK_NO_SCHEME  = "sink name has no scheme"
	_ERROR_MESSAGE_SINK_UNKNOWN    = "unknown sink scheme"
	_ERROR_MESSAGE_SINK_DUPLICATE  = "sink already exists"
	_ERROR_MESSAGE_SINK_NOT_FOUND  = "no such sink"
	_ERROR_MESSAGE_SINK_NIL_RESULT = "sink factory returned nil"
)

var (
	ErrNoScheme      = errors.New(_ERROR_MESSAGE_SINK_NO_SCHEME)
	ErrUnknownScheme = errors.New(_ERROR_MESSAGE_SINK_UNKNOWN)
	ErrDuplicate     = errors.New(_ERROR_MESSAGE_SINK_DUPLICATE)
	ErrNotFound      = errors.New(_ERROR_MESSAGE_SINK_NOT_FOUND)
)

// Leveled is implemented by every record type a registry can filter.
type Leveled interface {
	Level() severity.Level
}

// Sink consumes batches. Each sink drops records below threshold on its own.
type Sink[R Leveled] interface {
	Process(batch []R, threshold severity.Level) error
	Close() error
}

// Factory builds a sink from the part of its name after the scheme.
type Factory[R Leveled] func(path string) (Sink[R], error)

type entry[R Leveled] struct {
	sink  Sink[R]
	level severity.Level
}

// Registry maps "<scheme>:<path>" names to open sinks. Its mutex is distinct
// from any queue mutex so producers never wait for sink I/O.
type Registry[R Leveled] struct {
	mtx       sync.Mutex
	factories map[string]Factory[R]
	sinks     map[string]*entry[R]
	names     []string // sorted, fixes dispatch order
}

func NewRegistry[R Leveled]() *Registry[R] {
	return &Registry[R]{
		factories: map[string]Factory[R]{},
		sinks:     map[string]*entry[R]{},
	}
}

// Register binds a scheme to its factory, replacing any previous one.
func (r *Registry[R]) Register(scheme string, f Factory[R]) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.factories[scheme] = f
}

// SplitName separates "<scheme>:<path>". The path may be empty.
func SplitName(name string) (scheme, path string, err error) {
	scheme, path, found := strings.Cut(name, ":")
	if !found || scheme == "" {
		return "", "", fmt.Errorf("%w: `%s`", ErrNoScheme, name)
	}
	return scheme, path, nil
}

// Open creates a sink through its scheme factory. An existing sink with the
// same name is left untouched and ErrDuplicate is returned. The factory runs
// without the registry lock so a slow connect does not hold up Dispatch.
func (r *Registry[R]) Open(name string, level severity.Level) error {
	scheme, path, err := SplitName(name)
	if err != nil {
		return err
	}
	r.mtx.Lock()
	_, dup := r.sinks[name]
	factory, ok := r.factories[scheme]
	r.mtx.Unlock()
	if dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
	sink, err := factory(path)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", name, err)
	}
	if sink == nil {
		return fmt.Errorf("open sink %s: %s", name, _ERROR_MESSAGE_SINK_NIL_RESULT)
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.sinks[name]; ok {
		sink.Close()
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.sinks[name] = &entry[R]{sink: sink, level: level}
	r.names = append(r.names, name)
	slices.Sort(r.names)
	return nil
}

// Close removes and closes the named sink.
func (r *Registry[R]) Close(name string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	e, ok := r.sinks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.sinks, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
	if err := e.sink.Close(); err != nil {
		return fmt.Errorf("close sink %s: %w", name, err)
	}
	return nil
}

func (r *Registry[R]) Level(name string) (severity.Level, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	e, ok := r.sinks[name]
	if !ok {
		return severity.INVALID, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.level, nil
}

func (r *Registry[R]) SetLevel(name string, level severity.Level) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	e, ok := r.sinks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	e.level = level
	return nil
}

// List returns the open sink names in sorted order.
func (r *Registry[R]) List() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return slices.Clone(r.names)
}

// Dispatch hands batch to every sink. Sink errors are joined and returned,
// panics are left to the caller.
func (r *Registry[R]) Dispatch(batch []R) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var errs []error
	for _, name := range r.names {
		e := r.sinks[name]
		if err := e.sink.Process(batch, e.level); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every sink, used at shutdown after the final drain.
func (r *Registry[R]) CloseAll() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var errs []error
	for _, name := range r.names {
		if err := r.sinks[name].sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", name, err))
		}
	}
	clear(r.sinks)
	r.names = nil
	return errors.Join(errs...)
}

// Accepted is the per-record threshold check used by sinks.
func Accepted[R Leveled](rec R, threshold severity.Level) bool {
	return rec.Level() >= threshold
}
