package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/gemsim/internal/catalog"
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/sim"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New()
	require.NoError(t, err)
	return cat
}

func TestRunPredatorPrey(t *testing.T) {
	e := New(newCatalog(t), Config{Model: "predator-prey", Integrator: "euler", Dt: 0.01, Steps: 2})
	require.NoError(t, e.Setup())

	inst, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sim.StatusCompleted, inst.Status())

	x, err := e.Trajectory("x")
	require.NoError(t, err)
	assert.InDelta(t, 0.6986, x.At(1, 0, 0, 0, 0), 1e-12)
}

func TestOverridesWinOverPreset(t *testing.T) {
	e := New(newCatalog(t), Config{Steps: 1})

	inst, err := e.Instantiate("predator-prey", "many-prey", nil)
	require.NoError(t, err)
	x, err := inst.Trajectory("x")
	require.NoError(t, err)
	assert.Equal(t, 2.0, x.At(0, 0, 0, 0, 0))

	inst, err = e.Instantiate("predator-prey", "many-prey", map[string]any{"x": 3})
	require.NoError(t, err)
	x, err = inst.Trajectory("x")
	require.NoError(t, err)
	assert.Equal(t, 3.0, x.At(0, 0, 0, 0, 0))
}

func TestInstantiateErrors(t *testing.T) {
	e := New(newCatalog(t), Config{Steps: 1})

	_, err := e.Instantiate("predator-pray", "", nil)
	assert.ErrorIs(t, err, dynamo.ErrUnknownModel)

	_, err = e.Instantiate("predator-prey", "nope", nil)
	assert.ErrorIs(t, err, dynamo.ErrUnknownPreset)

	_, err = e.Instantiate("predator-prey", "", map[string]any{"xx": 1})
	var unknown *dynamo.UnknownPresetFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "x", unknown.Suggestion)
}

func TestNotSetup(t *testing.T) {
	e := New(newCatalog(t), Config{Model: "lorenz"})
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotSetup)
	_, err = e.Trajectory("x")
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestSetupRejectsUnknownScheme(t *testing.T) {
	e := New(newCatalog(t), Config{Model: "lorenz", Integrator: "rk5", Steps: 2, Dt: 0.01})
	assert.ErrorIs(t, e.Setup(), dynamo.ErrUnknownScheme)
}

func TestObserverSeesEverySlice(t *testing.T) {
	rec := &sim.Recorder{}
	e := New(newCatalog(t), Config{Model: "lorenz", Dt: 0.01, Steps: 5}, WithObserver(rec))
	require.NoError(t, e.Setup())
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, rec.Steps)
}
