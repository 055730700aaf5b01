package catalog

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/sim"
)

//go:embed models/*.yaml
var builtin embed.FS

const libraryFile = "models/library.yaml"

// Catalog holds model definitions by name together with the default-field
// library, and caches compiled models. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	defs    map[string]*dynamo.Definition
	sources map[string]string
	models  map[string]*sim.Model
	lib     *dynamo.Library
	log     *zap.Logger
}

type options struct {
	log      *zap.Logger
	lib      *dynamo.Library
	builtins bool
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLibrary replaces the embedded default-field library.
func WithLibrary(lib *dynamo.Library) Option {
	return func(o *options) { o.lib = lib }
}

// WithoutBuiltins starts from an empty catalog.
func WithoutBuiltins() Option {
	return func(o *options) { o.builtins = false }
}

// New returns a catalog holding the embedded models and library.
func New(opts ...Option) (*Catalog, error) {
	o := options{log: zap.NewNop(), builtins: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{
		defs:    make(map[string]*dynamo.Definition),
		sources: make(map[string]string),
		models:  make(map[string]*sim.Model),
		lib:     o.lib,
		log:     o.log,
	}

	if c.lib == nil {
		data, err := builtin.ReadFile(libraryFile)
		if err != nil {
			return nil, err
		}
		if c.lib, err = ParseLibrary(data, libraryFile); err != nil {
			return nil, err
		}
	}

	if o.builtins {
		entries, err := builtin.ReadDir("models")
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			path := "models/" + e.Name()
			if path == libraryFile {
				continue
			}
			data, err := builtin.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if err := c.load(data, "builtin:"+e.Name()); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// LoadDir loads every .yaml and .yml file in dir. A model with the name of
// an existing one replaces it.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isModelFile(e.Name()) {
			continue
		}
		if err := c.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return c.load(data, path)
}

func (c *Catalog) load(data []byte, source string) error {
	def, err := ParseDefinition(data, source)
	if err != nil {
		return err
	}
	c.add(def, source)
	c.log.Debug("model loaded", zap.String("model", def.Name), zap.String("source", source))
	return nil
}

// Add registers def under its name, replacing any previous definition.
func (c *Catalog) Add(def *dynamo.Definition) {
	c.add(def, "")
}

func (c *Catalog) add(def *dynamo.Definition, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.sources[def.Name]; ok && prev != source {
		c.log.Info("model replaced", zap.String("model", def.Name), zap.String("previous", prev), zap.String("source", source))
	}
	c.defs[def.Name] = def
	c.sources[def.Name] = source
	delete(c.models, def.Name)
}

// Names returns the model names sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Definition(name string) (*dynamo.Definition, error) {
	c.mu.RLock()
	def, ok := c.defs[name]
	c.mu.RUnlock()
	if !ok {
		return nil, &dynamo.UnknownModelError{Name: name, Suggestion: dynamo.Suggest(name, c.Names())}
	}
	return def, nil
}

// Source is the file a model was loaded from, empty for models added in
// code.
func (c *Catalog) Source(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources[name]
}

// Model returns the compiled model, compiling it on first use.
func (c *Catalog) Model(name string) (*sim.Model, error) {
	c.mu.RLock()
	m, ok := c.models[name]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	def, err := c.Definition(name)
	if err != nil {
		return nil, err
	}
	m, err = sim.Compile(def, c.lib, sim.WithCompileLogger(c.log))
	if err != nil {
		return nil, fmt.Errorf("catalog: model %q: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent Add may have replaced the definition meanwhile.
	if c.defs[name] == def {
		c.models[name] = m
	}
	return m, nil
}

func (c *Catalog) Library() *dynamo.Library { return c.lib }

func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
