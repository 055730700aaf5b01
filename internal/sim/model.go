package sim

import (
	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/resolver"
)

// Model is a compiled definition: its registry and resolved evaluation
// orders. It is immutable and may back any number of instances.
type Model struct {
	def        *dynamo.Definition
	reg        *dynamo.Registry
	order      []string
	paramOrder []string
	lagged     map[string]bool
	log        *zap.Logger
}

type compileOptions struct {
	log *zap.Logger
}

type CompileOption func(*compileOptions)

// WithCompileLogger attaches a logger to the model and its instances.
func WithCompileLogger(l *zap.Logger) CompileOption {
	return func(o *compileOptions) { o.log = l }
}

// Compile builds the registry of def over lib and resolves the statevar
// and parameter-equation orders. An explicit def.Order is validated and
// used as given.
func Compile(def *dynamo.Definition, lib *dynamo.Library, opts ...CompileOption) (*Model, error) {
	o := compileOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := dynamo.BuildRegistry(lib, def)
	if err != nil {
		return nil, err
	}

	m := &Model{def: def, reg: reg, log: o.log.With(zap.String("model", def.Name))}

	if len(def.Order) > 0 {
		if err := resolver.ValidateOrder(reg, def.Order); err != nil {
			return nil, err
		}
		m.order = append([]string(nil), def.Order...)
		if lagged := resolver.Lagged(reg, m.order); len(lagged) > 0 {
			m.lagged = make(map[string]bool, len(lagged))
			for _, name := range lagged {
				m.lagged[name] = true
			}
			m.log.Warn("explicit order reads statevars from the previous step", zap.Strings("fields", lagged))
		}
	} else if m.order, err = resolver.ResolveOrder(reg); err != nil {
		return nil, err
	}

	if m.paramOrder, err = resolver.ParameterOrder(reg); err != nil {
		return nil, err
	}

	m.log.Info("model compiled",
		zap.Int("parameters", len(reg.Parameters())),
		zap.Int("differentials", len(reg.Differentials())),
		zap.Int("statevars", len(reg.Statevars())),
		zap.Strings("order", m.order),
	)
	return m, nil
}

func (m *Model) Name() string                   { return m.def.Name }
func (m *Model) Definition() *dynamo.Definition { return m.def }
func (m *Model) Registry() *dynamo.Registry     { return m.reg }

// Order is the statevar evaluation order.
func (m *Model) Order() []string { return m.order }

// ParameterOrder is the evaluation order of parameter equations.
func (m *Model) ParameterOrder() []string { return m.paramOrder }

// Preset returns the overrides of a named preset; the empty name yields
// no overrides.
func (m *Model) Preset(name string) (map[string]any, error) {
	if name == "" {
		return nil, nil
	}
	p, err := m.def.Preset(name)
	if err != nil {
		return nil, err
	}
	return p.Values, nil
}
