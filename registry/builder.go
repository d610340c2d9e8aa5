package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/backend-bridge/engine"
	"github.com/wippyai/backend-bridge/errors"
)

// builder resolves one declaration. ns is nil when the backend failed to
// load, in which case cause explains why.
type builder struct {
	ns      Namespace
	cause   error
	decl    Declaration
	missing []string
}

func (b *builder) build() *record {
	rec := &record{
		decl:    b.decl,
		types:   make(map[string]*TypeInfo),
		ctors:   make(map[string][]*Entry),
		members: make(map[string]*Entry),
		hooks:   make(map[Kind]*Entry),
	}
	if b.ns == nil {
		rec.status = StatusMissingBackend
	}

	add := func(e *Entry) {
		rec.entries = append(rec.entries, e)
		if e.Kind == KindConstructor {
			rec.ctors[e.Type] = append(rec.ctors[e.Type], e)
			return
		}
		if e.Kind == KindInit || e.Kind == KindFini {
			rec.hooks[e.Kind] = e
		}
		rec.members[e.Key.Name] = e
	}

	if b.decl.Init != "" {
		add(b.resolve(KindInit, "", hookInit, b.decl.Init, Signature{}, nil, nil))
	}
	if b.decl.Fini != "" {
		add(b.resolve(KindFini, "", hookFini, b.decl.Fini, Signature{}, nil, nil))
	}

	for _, t := range b.decl.Types {
		self := engine.Borrow(t.Name)
		owned := engine.Handle(t.Name)

		clone := b.lifecycle(KindClone, t.Name, memberClone, t.Clone, []engine.ValueType{self}, []engine.ValueType{owned})
		assign := b.lifecycle(KindAssign, t.Name, memberAssign, t.Assign, []engine.ValueType{self, self}, nil)
		drop := b.lifecycle(KindDrop, t.Name, memberDrop, t.Drop, []engine.ValueType{owned}, nil)
		add(clone)
		add(assign)
		add(drop)

		var incomplete []string
		for _, e := range []*Entry{clone, assign, drop} {
			if e.Status != StatusOK {
				incomplete = append(incomplete, e.Member)
			}
		}

		info := &TypeInfo{
			Name:         t.Name,
			Capabilities: slices.Clone(t.Capabilities),
			Status:       StatusOK,
		}
		for _, c := range t.Constructors {
			sig := MustParseSignature(c.Signature)
			e := b.resolve(KindConstructor, t.Name, memberNew, c.Symbol, sig, sig.ParamTypes(), sig.Results)
			if e.Status == StatusOK && len(incomplete) > 0 {
				e.Status = StatusMissingFactory
				e.invoke = nil
				err := errors.Unavailable(b.decl.Backend, b.decl.Version, t.Name,
					fmt.Sprintf("type has no usable %v entry", incomplete))
				err.Symbol = c.Symbol
				e.Err = err
			}
			if e.Status != StatusOK && info.Status == StatusOK {
				info.Status = e.Status
			}
			add(e)
		}
		for _, m := range t.Methods {
			sig := MustParseSignature(m.Signature)
			params := append([]engine.ValueType{self}, sig.ParamTypes()...)
			add(b.resolve(KindMethod, t.Name, m.Name, m.Symbol, sig, params, sig.Results))
			info.Methods = append(info.Methods, m.Name)
		}
		rec.types[t.Name] = info
	}

	for _, f := range b.decl.Functions {
		sig := MustParseSignature(f.Signature)
		add(b.resolve(KindFunction, "", f.Name, f.Symbol, sig, sig.ParamTypes(), sig.Results))
	}

	for _, v := range b.decl.Variables {
		add(b.variable(v))
	}

	return rec
}

func (b *builder) lifecycle(kind Kind, typeName, member, symbol string, params, results []engine.ValueType) *Entry {
	if symbol == "" {
		e := b.entry(kind, typeName, member, symbol, Signature{}, params, results)
		if b.ns == nil {
			b.unavailable(e)
			return e
		}
		e.Status = StatusMissingFactory
		e.Err = errors.New(errors.PhaseResolve, errors.KindSymbolResolution).
			Backend(b.decl.Backend, b.decl.Version).
			Type(typeName).
			Detail("no %s entry declared", member).
			Build()
		b.missing = append(b.missing, typeName+"#("+member+")")
		return e
	}
	return b.resolve(kind, typeName, member, symbol, Signature{}, params, results)
}

func (b *builder) entry(kind Kind, typeName, member, symbol string, sig Signature, params, results []engine.ValueType) *Entry {
	name := member
	if typeName != "" {
		name = typeName + "." + member
	}
	sigKey := ""
	if kind == KindConstructor || kind == KindMethod || kind == KindFunction {
		sigKey = sig.Key()
	}
	return &Entry{
		Key: Key{
			Backend:   b.decl.Backend,
			Version:   b.decl.Version,
			Name:      name,
			Signature: sigKey,
		},
		Kind:    kind,
		Type:    typeName,
		Member:  member,
		Symbol:  symbol,
		Sig:     sig,
		Params:  params,
		Results: results,
	}
}

func (b *builder) unavailable(e *Entry) {
	e.Status = StatusMissingBackend
	err := errors.Unavailable(b.decl.Backend, b.decl.Version, e.Type, "backend failed to load")
	err.Symbol = e.Symbol
	err.Cause = b.cause
	e.Err = err
}

func (b *builder) resolve(kind Kind, typeName, member, symbol string, sig Signature, params, results []engine.ValueType) *Entry {
	e := b.entry(kind, typeName, member, symbol, sig, params, results)
	if b.ns == nil {
		b.unavailable(e)
		return e
	}

	missingKey := symbol
	if typeName != "" {
		missingKey = typeName + "#" + symbol
	}

	coreParams, coreResults, ok := b.ns.Function(symbol)
	if !ok {
		e.Status = StatusMissingFactory
		e.Err = errors.SymbolResolution(b.decl.Backend, b.decl.Version, typeName, symbol)
		b.missing = append(b.missing, missingKey)
		return e
	}
	if !slices.Equal(coreParams, engine.Flatten(params)) || !slices.Equal(coreResults, engine.Flatten(results)) {
		e.Status = StatusMissingFactory
		e.Err = errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
			Backend(b.decl.Backend, b.decl.Version).
			Type(typeName).
			Symbol(symbol).
			Detail("exported as %s -> %s, declared %s -> %s",
				coreNames(coreParams), coreNames(coreResults),
				coreNames(engine.Flatten(params)), coreNames(engine.Flatten(results))).
			Build()
		b.missing = append(b.missing, missingKey)
		return e
	}

	ns, backend, version := b.ns, b.decl.Backend, b.decl.Version
	e.Status = StatusOK
	e.invoke = func(ctx context.Context, args []any) ([]any, error) {
		out, err := ns.Invoke(ctx, symbol, params, results, args)
		if err != nil {
			return nil, annotate(err, backend, version, typeName)
		}
		return out, nil
	}
	return e
}

func (b *builder) variable(v VarDecl) *Entry {
	e := b.entry(KindVariable, "", v.Name, v.Symbol, Signature{}, nil, nil)
	if b.ns == nil {
		b.unavailable(e)
		return e
	}

	vt, err := engine.ParseValueType(v.Type)
	if err == nil && (vt.Kind == engine.KindString || vt.IsObject()) {
		err = errors.New(errors.PhaseResolve, errors.KindUnsupported).
			Symbol(v.Symbol).
			Detail("variables must be scalar, got %s", v.Type).
			Build()
	}
	if err != nil {
		e.Status = StatusMissingFactory
		e.Err = err
		b.missing = append(b.missing, v.Symbol)
		return e
	}
	e.Results = []engine.ValueType{vt}

	typ, mutable, ok := b.ns.Global(v.Symbol)
	if !ok || typ != vt.Flat()[0] {
		e.Status = StatusMissingFactory
		e.Err = errors.SymbolResolution(b.decl.Backend, b.decl.Version, "", v.Symbol)
		b.missing = append(b.missing, v.Symbol)
		return e
	}

	ns, symbol := b.ns, v.Symbol
	e.Status = StatusOK
	e.get = func() (any, error) {
		return ns.ReadGlobal(symbol, vt)
	}
	if mutable {
		e.set = func(val any) error {
			return ns.WriteGlobal(symbol, vt, val)
		}
	}
	return e
}

func annotate(err error, backend, version, typeName string) error {
	var e *errors.Error
	if errors.As(err, &e) && e.Backend == "" {
		e.Backend = backend
		e.Version = version
		if e.TypeName == "" {
			e.TypeName = typeName
		}
	}
	return err
}

func coreNames(types []api.ValueType) string {
	b := []byte{'['}
	for i, t := range types {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, api.ValueTypeName(t)...)
	}
	return string(append(b, ']'))
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
