package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/integrators"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func differential(name, eq string, initial any) dynamo.FieldSpec {
	return dynamo.FieldSpec{Name: name, Kind: dynamo.KindDifferential, Equation: expr.MustParse(eq), Initial: initial}
}

func statevar(name, eq string, size ...string) dynamo.FieldSpec {
	return dynamo.FieldSpec{Name: name, Kind: dynamo.KindStatevar, Equation: expr.MustParse(eq), Size: size}
}

func param(name string, v any, size ...string) dynamo.FieldSpec {
	return dynamo.FieldSpec{Name: name, Kind: dynamo.KindParameter, Value: v, Size: size}
}

func predatorPrey() *dynamo.Definition {
	return &dynamo.Definition{
		Name: "predator-prey",
		Fields: []dynamo.FieldSpec{
			differential("x", "x*(A - B*y)", 0.7),
			differential("y", "y*(C - D*x)", 0.4),
			param("A", 1), param("B", 3), param("C", 1.5), param("D", 4),
		},
	}
}

func compile(t *testing.T, def *dynamo.Definition) *Model {
	t.Helper()
	m, err := Compile(def, nil)
	require.NoError(t, err)
	return m
}

func run(t *testing.T, m *Model, overrides map[string]any, shape RunShape, scheme string, dt float64) (*Instance, error) {
	t.Helper()
	inst, err := Instantiate(m, overrides, shape)
	require.NoError(t, err)
	integ, err := integrators.ByName(scheme)
	require.NoError(t, err)
	return New(integ).Run(context.Background(), inst, Config{Dt: dt})
}

func value(t *testing.T, inst *Instance, name string, step int) float64 {
	t.Helper()
	tr, err := inst.Trajectory(name)
	require.NoError(t, err)
	return tr.At(step, 0, 0, 0, 0)
}

func TestPredatorPreyEuler(t *testing.T) {
	inst, err := run(t, compile(t, predatorPrey()), nil, RunShape{Steps: 3}, "euler", 0.01)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, inst.Status())
	assert.Equal(t, 3, inst.Filled())
	assert.InDelta(t, 0.6986, value(t, inst, "x", 1), 1e-12)
	assert.InDelta(t, 0.3948, value(t, inst, "y", 1), 1e-12)

	x1, y1 := 0.6986, 0.3948
	assert.InDelta(t, x1+0.01*x1*(1-3*y1), value(t, inst, "x", 2), 1e-12)
	assert.InDelta(t, y1+0.01*y1*(1.5-4*x1), value(t, inst, "y", 2), 1e-12)
	assert.Equal(t, []float64{0, 0.01, 0.02}, inst.Times())
}

func TestDeterminism(t *testing.T) {
	m := compile(t, predatorPrey())
	a, err := run(t, m, nil, RunShape{Steps: 100}, "rk4", 0.01)
	require.NoError(t, err)
	b, err := run(t, m, nil, RunShape{Steps: 100}, "rk4", 0.01)
	require.NoError(t, err)

	for _, name := range []string{"x", "y"} {
		ta, _ := a.Trajectory(name)
		tb, _ := b.Trajectory(name)
		assert.Equal(t, ta.Dense(), tb.Dense(), "%s differs between runs", name)
	}
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestEulerConstantRate(t *testing.T) {
	def := &dynamo.Definition{Name: "ramp", Fields: []dynamo.FieldSpec{
		differential("x", "k", 1.5),
		param("k", 0.4),
	}}
	const n = 100
	inst, err := run(t, compile(t, def), nil, RunShape{Steps: n + 1}, "euler", 0.1)
	require.NoError(t, err)

	for step := 0; step <= n; step++ {
		want := 1.5 + float64(step)*0.4*0.1
		if got := value(t, inst, "x", step); math.Abs(got-want) > 1e-9 {
			t.Fatalf("x[%d] = %.12f, want %.12f", step, got, want)
		}
	}
}

func TestStatevarsRecomputedAtStages(t *testing.T) {
	// dx/dt = s with s = x is exponential growth; reusing slice values for
	// every stage would drop RK4 to first order.
	def := &dynamo.Definition{Name: "growth", Fields: []dynamo.FieldSpec{
		differential("x", "s", 1),
		statevar("s", "x"),
	}}
	inst, err := run(t, compile(t, def), nil, RunShape{Steps: 101}, "rk4", 0.01)
	require.NoError(t, err)

	assert.InDelta(t, math.E, value(t, inst, "x", 100), 1e-9)
	assert.InDelta(t, value(t, inst, "x", 100), value(t, inst, "s", 100), 0, "statevars are evaluated on the last slice")
}

func TestScalarOverrideBroadcastsOverSectors(t *testing.T) {
	def := &dynamo.Definition{
		Name:  "sectors",
		Sizes: []dynamo.SizeGroup{{Name: "sector", Labels: []string{"a", "b", "c"}}},
		Fields: []dynamo.FieldSpec{
			differential("K", "I - delta*K", 1.0),
			statevar("I", "0.1 * K", "sector"),
			param("delta", 0.05),
		},
	}
	def.Fields[0].Size = []string{"sector"}

	inst, err := run(t, compile(t, def), map[string]any{"K": 2.5}, RunShape{Steps: 4}, "euler", 1)
	require.NoError(t, err)

	tr, err := inst.Trajectory("K")
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 1, 3, 1}, [4]int(tr.Shape()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 2.5, tr.At(0, 0, 0, i, 0))
	}
}

func TestDivergenceTrapping(t *testing.T) {
	def := &dynamo.Definition{Name: "blowup", Fields: []dynamo.FieldSpec{
		differential("x", "x > 2 ? 1/zero : 1", 0),
		param("zero", 0),
	}}
	inst, err := run(t, compile(t, def), nil, RunShape{Steps: 10}, "euler", 1)

	var div *dynamo.NumericDivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, "x", div.Field)
	assert.Equal(t, 4, div.Step)
	assert.Equal(t, StatusFailed, inst.Status())
	assert.ErrorIs(t, inst.Err(), dynamo.ErrNumericDivergence)

	require.Equal(t, 4, inst.Filled())
	tr, _ := inst.Trajectory("x")
	for step := 0; step < inst.Filled(); step++ {
		v := tr.At(step, 0, 0, 0, 0)
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "slice %d not finite", step)
		assert.Equal(t, float64(step), v)
	}
}

func TestStatevarDivergence(t *testing.T) {
	def := &dynamo.Definition{Name: "logzero", Fields: []dynamo.FieldSpec{
		differential("x", "-1", 2),
		statevar("l", "log(x)"),
	}}
	inst, err := run(t, compile(t, def), nil, RunShape{Steps: 5}, "euler", 1)

	var div *dynamo.NumericDivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, "l", div.Field)
	assert.Equal(t, 2, div.Step)
	assert.Equal(t, 2, inst.Filled())
}

func TestCompileRejectsCycles(t *testing.T) {
	_, err := Compile(&dynamo.Definition{Name: "cycle", Fields: []dynamo.FieldSpec{
		statevar("p", "q + 1"),
		statevar("q", "p * 2"),
	}}, nil)
	assert.ErrorIs(t, err, dynamo.ErrCyclicDependency)
}

func TestExplicitOrder(t *testing.T) {
	def := &dynamo.Definition{
		Name: "lagged",
		Fields: []dynamo.FieldSpec{
			differential("x", "1", 0),
			statevar("a", "x"),
			statevar("b", "a + 1"),
		},
		Order: []string{"b", "a"},
	}
	m := compile(t, def)
	assert.Equal(t, []string{"b", "a"}, m.Order())

	inst, err := run(t, m, nil, RunShape{Steps: 3}, "euler", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, value(t, inst, "b", 0), "first slice reads zero")
	assert.Equal(t, 1.0, value(t, inst, "b", 1), "reads a from slice 0")
	assert.Equal(t, 2.0, value(t, inst, "b", 2))

	def.Order = []string{"a"}
	_, err = Compile(def, nil)
	assert.ErrorIs(t, err, dynamo.ErrIncompleteOrder)
}

func TestInstantiateErrors(t *testing.T) {
	def := predatorPrey()
	def.Fields = append(def.Fields, statevar("r", "x / y"))
	m := compile(t, def)

	tests := []struct {
		name      string
		overrides map[string]any
		shape     RunShape
		want      error
	}{
		{"unknown key", map[string]any{"xx": 1}, RunShape{Steps: 2}, dynamo.ErrUnknownPresetField},
		{"statevar", map[string]any{"r": 1}, RunShape{Steps: 2}, dynamo.ErrInvalidOverride},
		{"matrix on scalar", map[string]any{"A": []any{[]any{1, 2}, []any{3, 4}}}, RunShape{Steps: 2}, dynamo.ErrShapeMismatch},
		{"not a number", map[string]any{"A": "one"}, RunShape{Steps: 2}, dynamo.ErrShapeMismatch},
		{"parallel lengths differ", map[string]any{"A": []any{1, 2}, "B": []any{1, 2, 3}}, RunShape{Steps: 2}, dynamo.ErrShapeMismatch},
		{"parallel disagrees with shape", map[string]any{"A": []any{1, 2}}, RunShape{Steps: 2, Parallel: 3}, dynamo.ErrShapeMismatch},
		{"regions disagree with shape", map[string]any{"A": map[string]any{"regions": []any{1, 2}}}, RunShape{Steps: 2, Regions: 3}, dynamo.ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Instantiate(m, tt.overrides, tt.shape)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Instantiate(m, nil, RunShape{Steps: 0})
	assert.Error(t, err)
}

func TestParallelOverrides(t *testing.T) {
	m := compile(t, predatorPrey())
	inst, err := run(t, m, map[string]any{"A": []any{1, 1.2, 0.8}}, RunShape{Steps: 50}, "rk4", 0.01)
	require.NoError(t, err)
	assert.Equal(t, 3, inst.Shape().Parallel)

	single, err := run(t, m, nil, RunShape{Steps: 50}, "rk4", 0.01)
	require.NoError(t, err)

	tr, _ := inst.Trajectory("x")
	ref, _ := single.Trajectory("x")
	assert.Equal(t, ref.Series(0, 0, 0, 0), tr.Series(0, 0, 0, 0), "parallel runs do not interact")
	assert.NotEqual(t, tr.Series(0, 0, 0, 0), tr.Series(1, 0, 0, 0))

	a, _ := inst.Trajectory("A")
	assert.Equal(t, 1.2, a.At(49, 1, 0, 0, 0), "parameters repeat over time")
}

func TestParameterEquations(t *testing.T) {
	def := &dynamo.Definition{Name: "aux", Fields: []dynamo.FieldSpec{
		differential("x", "-k2 * x", 1),
		{Name: "k2", Kind: dynamo.KindParameter, Equation: expr.MustParse("k1 * 2")},
		{Name: "k1", Kind: dynamo.KindParameter, Equation: expr.MustParse("base + 0.5")},
		param("base", 1),
	}}
	m := compile(t, def)
	assert.Equal(t, []string{"k1", "k2"}, m.ParameterOrder())

	inst, err := Instantiate(m, nil, RunShape{Steps: 2})
	require.NoError(t, err)
	k2, ok := inst.Parameter("k2")
	require.True(t, ok)
	assert.Equal(t, 3.0, k2.Value())

	inst, err = Instantiate(m, map[string]any{"k2": 7}, RunShape{Steps: 2})
	require.NoError(t, err)
	k2, _ = inst.Parameter("k2")
	assert.Equal(t, 7.0, k2.Value(), "override replaces the equation")
}

func TestCancellation(t *testing.T) {
	inst, err := Instantiate(compile(t, predatorPrey()), nil, RunShape{Steps: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(integrators.NewRK4()).Run(ctx, inst, Config{Dt: 0.01})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, inst.Status())
	assert.Equal(t, 0, inst.Filled())

	tr, _ := inst.Trajectory("x")
	assert.Equal(t, 0.7, tr.At(0, 0, 0, 0, 0), "initial slice stays readable")
}

func TestRunOnlyOnce(t *testing.T) {
	m := compile(t, predatorPrey())
	inst, err := run(t, m, nil, RunShape{Steps: 2}, "euler", 0.1)
	require.NoError(t, err)

	_, err = New(integrators.NewEuler()).Run(context.Background(), inst, Config{Dt: 0.1})
	assert.ErrorIs(t, err, dynamo.ErrNotRunnable)

	fresh, _ := Instantiate(m, nil, RunShape{Steps: 2})
	_, err = New(integrators.NewEuler()).Run(context.Background(), fresh, Config{Dt: 0})
	assert.Error(t, err)
	assert.Equal(t, StatusInitialized, fresh.Status())
}

func TestObserversAndStats(t *testing.T) {
	inst, err := Instantiate(compile(t, predatorPrey()), nil, RunShape{Steps: 5})
	require.NoError(t, err)

	rec := &Recorder{}
	_, err = New(integrators.NewRK45(), WithObserver(rec)).Run(context.Background(), inst, Config{Dt: 0.1, T0: 1})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, rec.Steps)
	assert.InDelta(t, 1.4, rec.Times[4], 1e-12)
	assert.Greater(t, inst.Stats().MaxLocalError, 0.0)
	assert.Equal(t, 5, inst.Stats().Steps)
}

func TestLibraryTime(t *testing.T) {
	lib, err := dynamo.NewLibrary([]dynamo.FieldSpec{differential("time", "1", 0)}, nil)
	require.NoError(t, err)
	m, err := Compile(predatorPrey(), lib)
	require.NoError(t, err)

	inst, err := Instantiate(m, nil, RunShape{Steps: 11})
	require.NoError(t, err)
	_, err = New(integrators.NewRK4()).Run(context.Background(), inst, Config{Dt: 0.1})
	require.NoError(t, err)

	tr, err := inst.Trajectory("time")
	require.NoError(t, err)
	for step, at := range inst.Times() {
		assert.InDelta(t, at, tr.At(step, 0, 0, 0, 0), 1e-12)
	}

	_, err = inst.Trajectory("tiem")
	var unknown *dynamo.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "time", unknown.Suggestion)
}

func TestTimeStartsAtT0(t *testing.T) {
	lib, err := dynamo.NewLibrary([]dynamo.FieldSpec{differential("time", "1", 0)}, nil)
	require.NoError(t, err)
	m, err := Compile(predatorPrey(), lib)
	require.NoError(t, err)

	inst, err := Instantiate(m, nil, RunShape{Steps: 5})
	require.NoError(t, err)
	_, err = New(integrators.NewRK4()).Run(context.Background(), inst, Config{Dt: 0.5, T0: 1990})
	require.NoError(t, err)

	tr, _ := inst.Trajectory("time")
	for step, at := range inst.Times() {
		assert.InDelta(t, at, tr.At(step, 0, 0, 0, 0), 1e-9)
	}
	assert.InDelta(t, 1992.0, tr.At(4, 0, 0, 0, 0), 1e-9)

	inst, err = Instantiate(m, map[string]any{"time": 5}, RunShape{Steps: 3})
	require.NoError(t, err)
	_, err = New(integrators.NewEuler()).Run(context.Background(), inst, Config{Dt: 1, T0: 1990})
	require.NoError(t, err)
	tr, _ = inst.Trajectory("time")
	assert.Equal(t, []float64{5, 6, 7}, tr.Series(0, 0, 0, 0), "an explicit override wins over T0")
}

func TestRegionalOverride(t *testing.T) {
	def := &dynamo.Definition{Name: "regions", Fields: []dynamo.FieldSpec{
		differential("x", "g * x", 1),
		statevar("total", "ssumR(x)"),
		param("g", 0),
	}}
	m := compile(t, def)

	inst, err := run(t, m, map[string]any{"x": map[string]any{"regions": []any{1, 2, 3}}}, RunShape{Steps: 2}, "euler", 0.1)
	require.NoError(t, err)
	assert.Equal(t, 3, inst.Shape().Regions)

	x, _ := inst.Trajectory("x")
	total, _ := inst.Trajectory("total")
	for r, want := range []float64{1, 2, 3} {
		assert.Equal(t, want, x.At(1, 0, r, 0, 0))
		assert.Equal(t, 6.0, total.At(1, 0, r, 0, 0), "region %d", r)
	}

	inst, err = run(t, m, map[string]any{"g": map[string]any{"regions": []any{0, 1}}}, RunShape{Steps: 2}, "euler", 1)
	require.NoError(t, err)
	x, _ = inst.Trajectory("x")
	assert.Equal(t, 1.0, x.At(1, 0, 0, 0, 0))
	assert.Equal(t, 2.0, x.At(1, 0, 1, 0, 0))
}

func TestEnsemble(t *testing.T) {
	m := compile(t, predatorPrey())
	insts := make([]*Instance, 4)
	for i := range insts {
		var err error
		insts[i], err = Instantiate(m, map[string]any{"A": 1 + 0.1*float64(i)}, RunShape{Steps: 20})
		require.NoError(t, err)
	}

	blowup, err := Compile(&dynamo.Definition{Name: "blowup", Fields: []dynamo.FieldSpec{
		differential("x", "1/zero", 1), param("zero", 0),
	}}, nil)
	require.NoError(t, err)
	bad, err := Instantiate(blowup, nil, RunShape{Steps: 3})
	require.NoError(t, err)
	insts = append(insts, bad)

	err = NewEnsemble(New(integrators.NewRK4()), 2).Run(context.Background(), insts, Config{Dt: 0.01})
	assert.ErrorIs(t, err, dynamo.ErrNumericDivergence)

	for _, inst := range insts[:4] {
		assert.Equal(t, StatusCompleted, inst.Status())
	}
	assert.Equal(t, StatusFailed, bad.Status())
}

func TestSplitParallel(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, SplitParallel(10, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, SplitParallel(2, 5))
	assert.Equal(t, [][2]int{{0, 5}}, SplitParallel(5, 0))
}

func TestResample(t *testing.T) {
	def := &dynamo.Definition{Name: "ramp", Fields: []dynamo.FieldSpec{differential("x", "2", 0)}}
	inst, err := run(t, compile(t, def), nil, RunShape{Steps: 11}, "euler", 0.1)
	require.NoError(t, err)

	tr, _ := inst.Trajectory("x")
	rs, err := tr.Resample(3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, rs.Times(), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1, 2}, rs.Series(0, 0, 0, 0), 1e-12)

	_, err = tr.Resample(1)
	assert.Error(t, err)
}
