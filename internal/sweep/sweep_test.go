package sweep

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/integrators"
	"github.com/san-kum/gemsim/internal/sim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func predatorPrey(t *testing.T) *sim.Model {
	t.Helper()
	def := &dynamo.Definition{
		Name: "predator-prey",
		Fields: []dynamo.FieldSpec{
			{Name: "x", Kind: dynamo.KindDifferential, Equation: expr.MustParse("x*(A - B*y)"), Initial: 0.7},
			{Name: "y", Kind: dynamo.KindDifferential, Equation: expr.MustParse("y*(C - D*x)"), Initial: 0.4},
			{Name: "s", Kind: dynamo.KindStatevar, Equation: expr.MustParse("x + y")},
			{Name: "A", Kind: dynamo.KindParameter, Value: 1},
			{Name: "B", Kind: dynamo.KindParameter, Value: 3},
			{Name: "C", Kind: dynamo.KindParameter, Value: 1.5},
			{Name: "D", Kind: dynamo.KindParameter, Value: 4},
			{Name: "v", Kind: dynamo.KindParameter, Value: []float64{1, 2}, Size: []string{"pair"}},
		},
		Sizes: []dynamo.SizeGroup{{Name: "pair", Labels: []string{"a", "b"}}},
	}
	m, err := sim.Compile(def, nil)
	require.NoError(t, err)
	return m
}

func newRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	return NewRunner(predatorPrey(t), sim.New(integrators.NewEuler()), sim.Config{Dt: 0.01}, 2, opts...)
}

func TestGridPoints(t *testing.T) {
	g, err := NewGrid(Axis{"A", []float64{1, 2}}, Axis{"B", []float64{3, 4, 5}})
	require.NoError(t, err)
	assert.Equal(t, 6, g.Len())

	want := []map[string]float64{
		{"A": 1, "B": 3}, {"A": 1, "B": 4}, {"A": 1, "B": 5},
		{"A": 2, "B": 3}, {"A": 2, "B": 4}, {"A": 2, "B": 5},
	}
	for i, w := range want {
		if diff := cmp.Diff(w, g.Point(i)); diff != "" {
			t.Errorf("point %d (-want +got):\n%s", i, diff)
		}
	}

	got := g.Overrides(2, 5)
	if diff := cmp.Diff(map[string]any{"A": []float64{1, 2, 2}, "B": []float64{5, 3, 4}}, got); diff != "" {
		t.Errorf("Overrides (-want +got):\n%s", diff)
	}
}

func TestNewGridErrors(t *testing.T) {
	_, err := NewGrid(Axis{Name: "A"})
	assert.Error(t, err)
	_, err = NewGrid(Axis{"A", []float64{1}}, Axis{"A", []float64{2}})
	assert.Error(t, err)
}

func TestParseAxis(t *testing.T) {
	tests := []struct {
		in      string
		want    Axis
		wantErr bool
	}{
		{"A=1,2,3", Axis{"A", []float64{1, 2, 3}}, false},
		{"nu=2:3:3", Axis{"nu", []float64{2, 2.5, 3}}, false},
		{"k=0.5", Axis{"k", []float64{0.5}}, false},
		{"A", Axis{}, true},
		{"A=1,x", Axis{}, true},
		{"A=1:2:0", Axis{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAxis(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseAxis (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunnerPacksPointsOnParallelAxis(t *testing.T) {
	g, err := NewGrid(Axis{"A", []float64{1, 2}}, Axis{"D", []float64{4, 5}})
	require.NoError(t, err)

	res, err := newRunner(t, WithChunks(2)).Run(context.Background(), g, nil)
	require.NoError(t, err)
	require.Len(t, res.Instances, 2)
	for _, inst := range res.Instances {
		assert.Equal(t, 2, inst.Shape().Parallel)
		assert.Equal(t, sim.StatusCompleted, inst.Status())
	}

	for i := 0; i < g.Len(); i++ {
		p := g.Point(i)
		x, err := res.Series("x", i)
		require.NoError(t, err)
		y, err := res.Series("y", i)
		require.NoError(t, err)
		assert.InDelta(t, 0.7+0.01*0.7*(p["A"]-3*0.4), x[1], 1e-12, "point %d", i)
		assert.InDelta(t, 0.4+0.01*0.4*(1.5-p["D"]*0.7), y[1], 1e-12, "point %d", i)
	}
}

func TestRunnerBaseOverrides(t *testing.T) {
	g, err := NewGrid(Axis{"A", []float64{1, 2, 3}})
	require.NoError(t, err)

	res, err := newRunner(t, WithChunks(1)).Run(context.Background(), g, map[string]any{"x": 1, "A": 100})
	require.NoError(t, err)
	x, err := res.Series("x", 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, x[0])
	assert.InDelta(t, 1+0.01*(3-1.2), x[1], 1e-12)
}

func TestRunnerRejectsAxes(t *testing.T) {
	r := newRunner(t)
	tests := []struct {
		axis   string
		target error
	}{
		{"s", dynamo.ErrInvalidOverride},
		{"AA", dynamo.ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.axis, func(t *testing.T) {
			g, err := NewGrid(Axis{tt.axis, []float64{1}})
			require.NoError(t, err)
			_, err = r.Run(context.Background(), g, nil)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	g, err := NewGrid(Axis{"v", []float64{1}})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), g, nil)
	assert.ErrorContains(t, err, "only scalar fields")
}

func TestGridSearch(t *testing.T) {
	g, err := NewGrid(Axis{"A", []float64{2, 1, 1.5}})
	require.NoError(t, err)

	best, val, err := NewGridSearch(newRunner(t, WithChunks(2)), g).Search(context.Background(), nil, FinalValue("x"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 1}, best)
	assert.InDelta(t, 0.6986, val, 1e-12)
}

func TestGridSearchSkipsFailedPoints(t *testing.T) {
	g, err := NewGrid(Axis{"A", []float64{1}})
	require.NoError(t, err)

	failing := func(*Result, int) (float64, error) { return 0, assert.AnError }
	_, _, err = NewGridSearch(newRunner(t), g).Search(context.Background(), nil, failing)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5))
	assert.Equal(t, []float64{3}, Linspace(3, 7, 1))
}
