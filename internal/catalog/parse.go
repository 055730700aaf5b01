package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/expr"
)

// modelFile is the on-disk layout of a model. Field groups are kept as
// nodes so declaration order survives decoding.
type modelFile struct {
	Name         string    `yaml:"name"`
	Description  string    `yaml:"description"`
	Differential yaml.Node `yaml:"differential"`
	Statevar     yaml.Node `yaml:"statevar"`
	Parameter    yaml.Node `yaml:"parameter"`
	Size         yaml.Node `yaml:"size"`
	Order        []string  `yaml:"order"`
	Presets      yaml.Node `yaml:"presets"`
}

type fieldEntry struct {
	Eq       string             `yaml:"eq"`
	Value    any                `yaml:"value"`
	Initial  any                `yaml:"initial"`
	Size     []string           `yaml:"size"`
	Defaults map[string]float64 `yaml:"defaults"`
	Override bool               `yaml:"override"`
	Meta     dynamo.Meta        `yaml:",inline"`
}

type sizeEntry struct {
	Labels      []string `yaml:"labels"`
	Description string   `yaml:"description"`
}

type presetEntry struct {
	Com    string         `yaml:"com"`
	Fields map[string]any `yaml:"fields"`
}

// ParseDefinition decodes a model file. source names the file in errors.
func ParseDefinition(data []byte, source string) (*dynamo.Definition, error) {
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", source, err)
	}
	if mf.Name == "" {
		return nil, fmt.Errorf("catalog: %s: model has no name", source)
	}

	def := &dynamo.Definition{
		Name:        mf.Name,
		Description: mf.Description,
		Order:       mf.Order,
	}

	groups := []struct {
		kind dynamo.Kind
		node *yaml.Node
	}{
		{dynamo.KindDifferential, &mf.Differential},
		{dynamo.KindStatevar, &mf.Statevar},
		{dynamo.KindParameter, &mf.Parameter},
	}
	for _, g := range groups {
		specs, err := parseFields(g.node, g.kind, source)
		if err != nil {
			return nil, err
		}
		def.Fields = append(def.Fields, specs...)
	}

	var err error
	if def.Sizes, err = parseSizes(&mf.Size, source); err != nil {
		return nil, err
	}
	if def.Presets, err = parsePresets(&mf.Presets, source); err != nil {
		return nil, err
	}
	return def, nil
}

// ParseLibrary decodes a library file. It has the layout of a model file
// without presets or order.
func ParseLibrary(data []byte, source string) (*dynamo.Library, error) {
	def, err := ParseDefinition(data, source)
	if err != nil {
		return nil, err
	}
	if len(def.Presets) > 0 || len(def.Order) > 0 {
		return nil, fmt.Errorf("catalog: %s: a library cannot declare presets or an order", source)
	}
	lib, err := dynamo.NewLibrary(def.Fields, def.Sizes)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", source, err)
	}
	return lib, nil
}

func parseFields(node *yaml.Node, kind dynamo.Kind, source string) ([]dynamo.FieldSpec, error) {
	pairs, err := mappingPairs(node, kind.String(), source)
	if err != nil {
		return nil, err
	}
	specs := make([]dynamo.FieldSpec, 0, len(pairs))
	for _, p := range pairs {
		spec, err := parseField(p.key.Value, kind, p.value)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s:%d: %s %q: %w", source, p.key.Line, kind, p.key.Value, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseField(name string, kind dynamo.Kind, node *yaml.Node) (dynamo.FieldSpec, error) {
	spec := dynamo.FieldSpec{Name: name, Kind: kind}

	switch node.Kind {
	case yaml.ScalarNode:
		// Shorthand: a number is a parameter value, a string is an equation.
		if kind == dynamo.KindParameter && node.Tag != "!!str" {
			var v any
			if err := node.Decode(&v); err != nil {
				return spec, err
			}
			spec.Value = v
			return spec, nil
		}
		eq, err := expr.Parse(node.Value)
		if err != nil {
			return spec, err
		}
		spec.Equation = eq
		return spec, nil

	case yaml.SequenceNode:
		if kind != dynamo.KindParameter {
			return spec, fmt.Errorf("a list is only a valid shorthand for a parameter")
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return spec, err
		}
		spec.Value = v
		return spec, nil

	case yaml.MappingNode:
		var e fieldEntry
		if err := node.Decode(&e); err != nil {
			return spec, err
		}
		spec.Value = e.Value
		spec.Initial = e.Initial
		spec.Size = e.Size
		spec.Meta = e.Meta
		spec.Override = e.Override
		if e.Eq != "" {
			eq, err := expr.Parse(e.Eq)
			if err != nil {
				return spec, err
			}
			spec.Equation = eq.WithDefaults(e.Defaults)
		} else if len(e.Defaults) > 0 {
			return spec, fmt.Errorf("defaults given without an equation")
		}
		return spec, nil

	default:
		return spec, fmt.Errorf("unexpected %s", nodeKind(node))
	}
}

func parseSizes(node *yaml.Node, source string) ([]dynamo.SizeGroup, error) {
	pairs, err := mappingPairs(node, "size", source)
	if err != nil {
		return nil, err
	}
	groups := make([]dynamo.SizeGroup, 0, len(pairs))
	for _, p := range pairs {
		g := dynamo.SizeGroup{Name: p.key.Value}
		switch p.value.Kind {
		case yaml.SequenceNode:
			err = p.value.Decode(&g.Labels)
		default:
			var e sizeEntry
			err = p.value.Decode(&e)
			g.Labels, g.Description = e.Labels, e.Description
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: %s:%d: size %q: %w", source, p.key.Line, g.Name, err)
		}
		if len(g.Labels) == 0 {
			return nil, fmt.Errorf("catalog: %s:%d: size %q has no labels", source, p.key.Line, g.Name)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func parsePresets(node *yaml.Node, source string) ([]dynamo.Preset, error) {
	pairs, err := mappingPairs(node, "presets", source)
	if err != nil {
		return nil, err
	}
	presets := make([]dynamo.Preset, 0, len(pairs))
	for _, p := range pairs {
		var e presetEntry
		if err := p.value.Decode(&e); err != nil {
			return nil, fmt.Errorf("catalog: %s:%d: preset %q: %w", source, p.key.Line, p.key.Value, err)
		}
		presets = append(presets, dynamo.Preset{Name: p.key.Value, Comment: e.Com, Values: e.Fields})
	}
	return presets, nil
}

type pair struct {
	key, value *yaml.Node
}

// mappingPairs returns the entries of a mapping node in file order. An
// absent section yields nothing.
func mappingPairs(node *yaml.Node, section, source string) ([]pair, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog: %s:%d: %s must be a mapping, got %s", source, node.Line, section, nodeKind(node))
	}
	pairs := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, pair{key: node.Content[i], value: node.Content[i+1]})
	}
	return pairs, nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
