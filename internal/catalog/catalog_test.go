package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gemsim/internal/catalog"
	"github.com/san-kum/gemsim/internal/config"
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/integrators"
	"github.com/san-kum/gemsim/internal/sim"
)

const oscillator = `
name: oscillator
description: Harmonic oscillator
differential:
  v: {eq: -k * x, initial: 0}
  x: {eq: v, initial: 1}
parameter:
  k: 4
presets:
  stiff:
    com: Stiffer spring
    fields: {k: 9}
`

func runModel(m *sim.Model, overrides map[string]any, steps int, dt float64) *sim.Instance {
	inst, err := sim.Instantiate(m, overrides, sim.RunShape{Steps: steps})
	Expect(err).NotTo(HaveOccurred())
	integ, err := integrators.ByName("euler")
	Expect(err).NotTo(HaveOccurred())
	_, err = sim.New(integ).Run(context.Background(), inst, sim.Config{Dt: dt})
	Expect(err).NotTo(HaveOccurred())
	return inst
}

func at(inst *sim.Instance, name string, step int) float64 {
	tr, err := inst.Trajectory(name)
	Expect(err).NotTo(HaveOccurred())
	return tr.At(step, 0, 0, 0, 0)
}

var _ = Describe("Catalog", func() {
	var cat *catalog.Catalog

	BeforeEach(func() {
		var err error
		cat, err = catalog.New()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("built-in models", func() {
		It("lists every embedded model except the library", func() {
			Expect(cat.Names()).To(Equal([]string{"goodwin", "lorenz", "lotka-volterra", "multisector", "predator-prey"}))
		})

		It("compiles each of them", func() {
			for _, name := range cat.Names() {
				_, err := cat.Model(name)
				Expect(err).NotTo(HaveOccurred(), name)
			}
		})

		It("stays finite over each model's run profile", func() {
			for _, name := range cat.Names() {
				p := config.GetProfile(name)
				Expect(p).NotTo(BeNil(), name)
				m, err := cat.Model(name)
				Expect(err).NotTo(HaveOccurred())
				integ, err := integrators.ByName(p.Integrator)
				Expect(err).NotTo(HaveOccurred())
				inst, err := sim.Instantiate(m, nil, sim.RunShape{Steps: p.NumSteps()})
				Expect(err).NotTo(HaveOccurred())
				_, err = sim.New(integ).Run(context.Background(), inst, sim.Config{Dt: p.Dt})
				Expect(err).NotTo(HaveOccurred(), name)
				Expect(inst.Status()).To(Equal(sim.StatusCompleted), name)
			}
		})

		It("keeps lotka-volterra on a bounded orbit", func() {
			m, err := cat.Model("lotka-volterra")
			Expect(err).NotTo(HaveOccurred())
			inst := runModel(m, nil, 3001, 0.01)
			tr, err := inst.Trajectory("x")
			Expect(err).NotTo(HaveOccurred())
			for _, x := range tr.Series(0, 0, 0, 0) {
				Expect(x).To(BeNumerically(">", 0))
				Expect(x).To(BeNumerically("<", 2))
			}
		})

		It("caches compiled models", func() {
			a, err := cat.Model("lorenz")
			Expect(err).NotTo(HaveOccurred())
			b, err := cat.Model("lorenz")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(BeIdenticalTo(b))
		})

		It("merges the library into every model", func() {
			m, err := cat.Model("predator-prey")
			Expect(err).NotTo(HaveOccurred())
			f, ok := m.Registry().Lookup("time")
			Expect(ok).To(BeTrue())
			Expect(f.Kind()).To(Equal(dynamo.KindDifferential))
		})

		It("runs predator-prey to the documented first step", func() {
			m, err := cat.Model("predator-prey")
			Expect(err).NotTo(HaveOccurred())
			inst := runModel(m, nil, 2, 0.01)
			Expect(at(inst, "x", 1)).To(BeNumerically("~", 0.6986, 1e-12))
			Expect(at(inst, "y", 1)).To(BeNumerically("~", 0.3948, 1e-12))
			Expect(at(inst, "time", 1)).To(BeNumerically("~", 0.01, 1e-12))
		})

		It("evaluates goodwin statevars at the initial slice", func() {
			m, err := cat.Model("goodwin")
			Expect(err).NotTo(HaveOccurred())
			inst := runModel(m, nil, 3, 0.1)
			Expect(at(inst, "lambda", 0)).To(BeNumerically("~", 0.9, 1e-12))
			Expect(at(inst, "omega", 0)).To(BeNumerically("~", 0.85, 1e-12))
		})

		It("spreads a list preset over the parallel axis", func() {
			m, err := cat.Model("goodwin")
			Expect(err).NotTo(HaveOccurred())
			overrides, err := m.Preset("capital-intensity")
			Expect(err).NotTo(HaveOccurred())
			inst := runModel(m, overrides, 2, 0.1)
			Expect(inst.Shape().Parallel).To(Equal(3))
		})

		It("couples sectors through the matrix", func() {
			m, err := cat.Model("multisector")
			Expect(err).NotTo(HaveOccurred())
			inst := runModel(m, nil, 2, 0.1)

			z, err := inst.Trajectory("Z")
			Expect(err).NotTo(HaveOccurred())
			Expect(z.At(1, 0, 0, 0, 0)).To(BeNumerically("~", 0.98, 1e-12))
			Expect(z.At(1, 0, 0, 1, 0)).To(BeNumerically("~", 0.99, 1e-12))
			Expect(z.At(1, 0, 0, 2, 0)).To(BeNumerically("~", 0.98, 1e-12))
			Expect(at(inst, "scal", 1)).To(BeNumerically("~", 0.3, 1e-12))
			Expect(at(inst, "total", 0)).To(BeNumerically("~", 3, 1e-12))
		})
	})

	Describe("lookups", func() {
		It("suggests a close model name", func() {
			_, err := cat.Definition("goodwim")
			var unknown *dynamo.UnknownModelError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.Suggestion).To(Equal("goodwin"))
			Expect(errors.Is(err, dynamo.ErrUnknownModel)).To(BeTrue())
		})

		It("reports unknown presets", func() {
			m, err := cat.Model("lorenz")
			Expect(err).NotTo(HaveOccurred())
			_, err = m.Preset("canonicl")
			Expect(err).To(MatchError(dynamo.ErrUnknownPreset))
		})
	})

	Describe("loading files", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("loads models from a directory and skips other files", func() {
			Expect(os.WriteFile(filepath.Join(dir, "osc.yaml"), []byte(oscillator), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a model"), 0o644)).To(Succeed())

			Expect(cat.LoadDir(dir)).To(Succeed())
			Expect(cat.Names()).To(ContainElement("oscillator"))
			Expect(cat.Source("oscillator")).To(Equal(filepath.Join(dir, "osc.yaml")))

			m, err := cat.Model("oscillator")
			Expect(err).NotTo(HaveOccurred())
			inst := runModel(m, map[string]any{"k": 9}, 2, 0.1)
			Expect(at(inst, "v", 1)).To(BeNumerically("~", -0.9, 1e-12))
		})

		It("replaces a model of the same name and drops its cached compilation", func() {
			before, err := cat.Model("lorenz")
			Expect(err).NotTo(HaveOccurred())

			path := filepath.Join(dir, "lorenz.yml")
			Expect(os.WriteFile(path, []byte("name: lorenz\ndifferential:\n  x: {eq: -x, initial: 1}\n"), 0o644)).To(Succeed())
			Expect(cat.LoadFile(path)).To(Succeed())

			after, err := cat.Model("lorenz")
			Expect(err).NotTo(HaveOccurred())
			Expect(after).NotTo(BeIdenticalTo(before))
			_, ok := after.Registry().Lookup("z")
			Expect(ok).To(BeFalse())
		})

		It("fails on a missing directory", func() {
			Expect(cat.LoadDir(filepath.Join(dir, "absent"))).NotTo(Succeed())
		})
	})

	Describe("models added in code", func() {
		It("validates at compile time", func() {
			cat.Add(&dynamo.Definition{Name: "broken", Fields: []dynamo.FieldSpec{
				{Name: "x", Kind: dynamo.KindDifferential},
			}})
			_, err := cat.Model("broken")
			Expect(err).To(MatchError(dynamo.ErrMissingValue))
		})
	})

	It("starts empty without built-ins", func() {
		empty, err := catalog.New(catalog.WithoutBuiltins())
		Expect(err).NotTo(HaveOccurred())
		Expect(empty.Names()).To(BeEmpty())
		Expect(empty.Library().Names()).To(ContainElement("time"))
	})
})

var _ = Describe("ParseDefinition", func() {
	It("keeps declaration order within groups", func() {
		def, err := catalog.ParseDefinition([]byte(oscillator), "osc.yaml")
		Expect(err).NotTo(HaveOccurred())

		names := make([]string, len(def.Fields))
		for i, f := range def.Fields {
			names[i] = f.Name
		}
		Expect(names).To(Equal([]string{"v", "x", "k"}))
		Expect(def.Presets).To(HaveLen(1))
		Expect(def.Presets[0].Comment).To(Equal("Stiffer spring"))
		Expect(def.Presets[0].Values).To(HaveKeyWithValue("k", 9))
	})

	It("reads shorthand entries", func() {
		src := `
name: short
statevar:
  s: 2 * p
parameter:
  p: 0.5
  q: [1, 2, 3]
  r: p * 2
`
		def, err := catalog.ParseDefinition([]byte(src), "short.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(def.Fields).To(HaveLen(4))
		Expect(def.Fields[0].Equation.Args()).To(Equal([]string{"p"}))
		Expect(def.Fields[1].Value).To(Equal(0.5))
		Expect(def.Fields[2].Value).To(Equal([]any{1, 2, 3}))
		Expect(def.Fields[3].Equation).NotTo(BeNil())
	})

	It("attaches metadata and defaults", func() {
		src := `
name: meta
statevar:
  Y:
    eq: K / nu
    defaults: {nu: 3}
    units: $
    com: output
`
		def, err := catalog.ParseDefinition([]byte(src), "meta.yaml")
		Expect(err).NotTo(HaveOccurred())
		y := def.Fields[0]
		Expect(y.Meta.Units).To(Equal("$"))
		Expect(y.Meta.Com).To(Equal("output"))
		nu, ok := y.Equation.Default("nu")
		Expect(ok).To(BeTrue())
		Expect(nu).To(Equal(3.0))
	})

	It("reads size groups in both forms", func() {
		src := `
name: sized
size:
  sector: [a, b]
  region:
    labels: [north, south, east]
    description: Regions
`
		def, err := catalog.ParseDefinition([]byte(src), "sized.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(def.Sizes).To(HaveLen(2))
		Expect(def.Sizes[0].Extent()).To(Equal(2))
		Expect(def.Sizes[1].Description).To(Equal("Regions"))
	})

	DescribeTable("rejects malformed files",
		func(src, fragment string) {
			_, err := catalog.ParseDefinition([]byte(src), "bad.yaml")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(fragment))
		},
		Entry("no name", "differential: {}\n", "no name"),
		Entry("group not a mapping", "name: m\nstatevar: [a]\n", "statevar must be a mapping"),
		Entry("bad equation", "name: m\nstatevar:\n  s: 2 *\n", `statevar "s"`),
		Entry("list statevar", "name: m\nstatevar:\n  s: [1, 2]\n", "only a valid shorthand"),
		Entry("empty size", "name: m\nsize:\n  g: []\n", "has no labels"),
		Entry("line numbers", "name: m\n\nstatevar:\n  s: 2 *\n", "bad.yaml:4"),
	)
})

var _ = Describe("ParseLibrary", func() {
	It("rejects presets", func() {
		_, err := catalog.ParseLibrary([]byte("name: lib\npresets:\n  p: {fields: {}}\n"), "lib.yaml")
		Expect(err).To(MatchError(ContainSubstring("cannot declare presets")))
	})

	It("indexes fields by name", func() {
		lib, err := catalog.ParseLibrary([]byte("name: lib\nparameter:\n  g: 9.81\n"), "lib.yaml")
		Expect(err).NotTo(HaveOccurred())
		spec, ok := lib.Lookup("g")
		Expect(ok).To(BeTrue())
		Expect(spec.Value).To(Equal(9.81))
	})
})
