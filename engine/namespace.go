package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/backend-bridge/errors"
)

// Namespace is one instantiated backend module. Its memory, globals and
// exports are private to it. Calls into a namespace are serialised.
type Namespace struct {
	module   api.Module
	compiled wazero.CompiledModule
	faults   []error // host callback failures of the call in progress, guarded by mu
	name     string
	calls    atomic.Uint64
	mu       sync.Mutex
	closed   atomic.Bool
}

// Name returns the module name, "<backend>@<version>".
func (n *Namespace) Name() string {
	return n.name
}

// Calls returns the number of entry point invocations so far.
func (n *Namespace) Calls() uint64 {
	return n.calls.Load()
}

// Function reports the core signature of an exported function.
func (n *Namespace) Function(symbol string) (params, results []api.ValueType, ok bool) {
	fn := n.module.ExportedFunction(symbol)
	if fn == nil {
		return nil, nil, false
	}
	def := fn.Definition()
	return def.ParamTypes(), def.ResultTypes(), true
}

// Global reports the type and mutability of an exported global.
func (n *Namespace) Global(symbol string) (typ api.ValueType, mutable, ok bool) {
	g := n.module.ExportedGlobal(symbol)
	if g == nil {
		return 0, false, false
	}
	_, mutable = g.(api.MutableGlobal)
	return g.Type(), mutable, true
}

// Exports returns the names of all exported functions, sorted.
func (n *Namespace) Exports() []string {
	defs := n.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke lowers args according to params, calls symbol and lifts the
// results. Handles cross as uint32 reps and strings as Go strings.
func (n *Namespace) Invoke(ctx context.Context, symbol string, params, results []ValueType, args []any) ([]any, error) {
	if n.closed.Load() {
		return nil, errors.NotInitialized(errors.PhaseCall, "namespace "+n.name)
	}
	fn := n.module.ExportedFunction(symbol)
	if fn == nil {
		return nil, errors.New(errors.PhaseCall, errors.KindNotFound).
			Symbol(symbol).
			Detail("not exported by %s", n.name).
			Build()
	}
	if len(args) != len(params) {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Symbol(symbol).
			Detail("want %d arguments, got %d", len(params), len(args)).
			Build()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls.Add(1)

	flat := make([]uint64, 0, len(params)+1)
	for i, p := range params {
		if p.Kind == KindString {
			s, ok := args[i].(string)
			if !ok {
				return nil, withPath(mismatch(p, args[i]), i)
			}
			ptr, size, err := n.writeString(ctx, s)
			if err != nil {
				return nil, withPath(err, i)
			}
			flat = append(flat, api.EncodeU32(ptr), api.EncodeU32(size))
			continue
		}
		v, err := lowerScalar(p, args[i])
		if err != nil {
			return nil, withPath(err, i)
		}
		flat = append(flat, v)
	}

	n.faults = n.faults[:0]
	raw, err := fn.Call(ctx, flat...)
	if ferr := n.takeFault(); ferr != nil {
		var e *errors.Error
		if errors.As(ferr, &e) && e.Kind == errors.KindOwnershipViolation {
			panic(e)
		}
		return nil, ferr
	}
	if err != nil {
		backend, version := splitNamespaceName(n.name)
		return nil, errors.Trap(backend, version, symbol, err)
	}

	out := make([]any, len(results))
	pos := 0
	for i, r := range results {
		if r.Kind == KindString {
			if pos+2 > len(raw) {
				return nil, shortResults(symbol, len(raw))
			}
			s, err := n.readString(uint32(raw[pos]), uint32(raw[pos+1]))
			if err != nil {
				return nil, err
			}
			out[i] = s
			pos += 2
			continue
		}
		if pos >= len(raw) {
			return nil, shortResults(symbol, len(raw))
		}
		v, err := liftScalar(r, raw[pos])
		if err != nil {
			return nil, err
		}
		out[i] = v
		pos++
	}
	return out, nil
}

// ReadGlobal returns the current value of an exported global.
func (n *Namespace) ReadGlobal(symbol string, t ValueType) (any, error) {
	g := n.module.ExportedGlobal(symbol)
	if g == nil {
		return nil, errors.NotFound(errors.PhaseCall, "global", symbol)
	}
	return liftScalar(t, g.Get())
}

// WriteGlobal sets an exported mutable global.
func (n *Namespace) WriteGlobal(symbol string, t ValueType, v any) error {
	g := n.module.ExportedGlobal(symbol)
	if g == nil {
		return errors.NotFound(errors.PhaseCall, "global", symbol)
	}
	mg, ok := g.(api.MutableGlobal)
	if !ok {
		return errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Symbol(symbol).
			Detail("global is immutable").
			Build()
	}
	raw, err := lowerScalar(t, v)
	if err != nil {
		return err
	}
	n.mu.Lock()
	mg.Set(raw)
	n.mu.Unlock()
	return nil
}

// Close releases the module instance.
func (n *Namespace) Close(ctx context.Context) error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := n.module.Close(ctx)
	if cerr := n.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// fault records a host callback failure. It runs on the calling goroutine
// while mu is held by Invoke.
func (n *Namespace) fault(err error) {
	n.faults = append(n.faults, err)
}

func (n *Namespace) takeFault() error {
	if len(n.faults) == 0 {
		return nil
	}
	err := n.faults[0]
	n.faults = n.faults[:0]
	return err
}

func (n *Namespace) writeString(ctx context.Context, s string) (uint32, uint32, error) {
	if len(s) == 0 {
		return 0, 0, nil
	}
	realloc := n.module.ExportedFunction(CabiRealloc)
	if realloc == nil {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Symbol(CabiRealloc).
			Detail("%s does not export an allocator", n.name).
			Build()
	}
	size := uint32(len(s))
	res, err := realloc.Call(ctx, 0, 0, 1, api.EncodeU32(size))
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseEncode, errors.KindAllocation, err, fmt.Sprintf("allocate %d bytes", size))
	}
	ptr := api.DecodeU32(res[0])
	if !n.module.Memory().Write(ptr, []byte(s)) {
		return 0, 0, errors.OutOfBounds(errors.PhaseEncode, ptr, size)
	}
	return ptr, size, nil
}

func (n *Namespace) readString(ptr, size uint32) (string, error) {
	if size == 0 {
		return "", nil
	}
	buf, ok := n.module.Memory().Read(ptr, size)
	if !ok {
		return "", errors.OutOfBounds(errors.PhaseDecode, ptr, size)
	}
	return string(buf), nil
}

func withPath(err error, idx int) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = []string{"args", fmt.Sprint(idx)}
	}
	return err
}

func shortResults(symbol string, got int) error {
	return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		Symbol(symbol).
		Detail("backend returned %d core values", got).
		Build()
}
