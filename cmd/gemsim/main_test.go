package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestModels(t *testing.T) {
	out, err := execute(t, "models")
	require.NoError(t, err)
	for _, name := range []string{"goodwin", "lorenz", "lotka-volterra", "multisector", "predator-prey", "rk45"} {
		assert.Contains(t, out, name)
	}
}

func TestModelsDir(t *testing.T) {
	dir := t.TempDir()
	src := "name: oscillator\ndifferential:\n  x: {eq: v, initial: 1}\n  v: {eq: -x, initial: 0}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "osc.yaml"), []byte(src), 0o644))

	out, err := execute(t, "models", "--models-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "oscillator")
	assert.Contains(t, out, filepath.Join(dir, "osc.yaml"))
}

func TestRunCSV(t *testing.T) {
	out, err := execute(t, "run", "predator-prey", "--steps", "2", "--dt", "0.01",
		"--integrator", "euler", "--format", "csv", "--fields", "x,y")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"t", "x", "y"}, rows[0])

	want := []float64{0.01, 0.6986, 0.3948}
	for i, cell := range rows[2] {
		v, err := strconv.ParseFloat(cell, 64)
		require.NoError(t, err)
		assert.InDelta(t, want[i], v, 1e-12)
	}
}

func TestRunTableWithParallelOverride(t *testing.T) {
	out, err := execute(t, "run", "predator-prey", "--steps", "5", "--set", "x=[0.5, 0.7]")
	require.NoError(t, err)
	assert.Contains(t, out, "predator-prey")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "parallel: 2")
	assert.Contains(t, out, "FIELD")
}

func TestRunRegionalOverride(t *testing.T) {
	out, err := execute(t, "run", "predator-prey", "--steps", "5", "--set", "x={regions: [0.5, 0.7, 0.9]}")
	require.NoError(t, err)
	assert.Contains(t, out, "parallel: 1  regions: 3")

	_, err = execute(t, "run", "predator-prey", "--steps", "5", "--regions", "2", "--set", "x={regions: [0.5, 0.7, 0.9]}")
	assert.ErrorIs(t, err, dynamo.ErrShapeMismatch)
}

func TestRunJSONFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: lorenz\npreset: stable\nintegrator: euler\ndt: 0.01\nsteps: 4\n"), 0o644))

	out, err := execute(t, "--config", path, "run", "--format", "json", "--fields", "x,rho")
	require.NoError(t, err)

	var data store.ExportData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "lorenz", data.Model)
	assert.Equal(t, "COMPLETED", data.Status)
	assert.Equal(t, 4, data.Filled)
	require.Contains(t, data.Fields, "rho")
	assert.Equal(t, 0.5, data.Fields["rho"].Values[0][0], "preset from the config file")
}

func TestRunOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := execute(t, "run", "lorenz", "--steps", "3", "--format", "csv", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "t,"))
	assert.Equal(t, 4, strings.Count(string(data), "\n"))
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		is   error
		msg  string
	}{
		{name: "unknown model", args: []string{"run", "goodwim"}, is: dynamo.ErrUnknownModel},
		{name: "unknown preset", args: []string{"run", "lorenz", "--preset", "nope"}, is: dynamo.ErrUnknownPreset},
		{name: "unknown field", args: []string{"run", "lorenz", "--set", "sigm=3"}, is: dynamo.ErrUnknownPresetField},
		{name: "unknown scheme", args: []string{"run", "lorenz", "-i", "rk5"}, is: dynamo.ErrUnknownScheme},
		{name: "bad set", args: []string{"run", "lorenz", "--set", "rho"}, msg: "want name=value"},
		{name: "bad dt", args: []string{"run", "lorenz", "--dt=-1"}, msg: "dt must be positive"},
		{name: "bad format", args: []string{"run", "lorenz", "--steps", "2", "--format", "xml"}, msg: "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	out, err := execute(t, "presets", "goodwin")
	require.NoError(t, err)
	assert.Contains(t, out, "capital-intensity")
	assert.Contains(t, out, "nu=[2.5 3 3.5]")
}

func TestDescribe(t *testing.T) {
	out, err := execute(t, "describe", "multisector")
	require.NoError(t, err)
	assert.Contains(t, out, "Nprod")
	assert.Contains(t, out, "energy, capital, consumption")
	assert.Contains(t, out, "matmul(MATRIX, Z)")
	assert.Contains(t, out, "list[3][3]")
	assert.Contains(t, out, "profile: euler")
}

func TestSweep(t *testing.T) {
	out, err := execute(t, "sweep", "predator-prey", "--axis", "A=1,2", "--axis", "B=3",
		"--steps", "3", "--integrator", "euler", "--chunks", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2 points")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"A", "B", "X", "Y", "TIME"}, strings.Fields(lines[1]))
}

func TestSweepObjective(t *testing.T) {
	out, err := execute(t, "sweep", "predator-prey", "--axis", "A=0.5:1.5:3",
		"--steps", "2", "--dt", "0.01", "--integrator", "euler", "--objective", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "minimum of final x over 3 points")
	assert.Regexp(t, `A\s+0\.5`, out)
}

func TestSweepNeedsAxis(t *testing.T) {
	_, err := execute(t, "sweep", "lorenz")
	assert.ErrorContains(t, err, "--axis")
}

func TestAnalyze(t *testing.T) {
	out, err := execute(t, "analyze", "lotka-volterra", "--time", "30", "--lyapunov")
	require.NoError(t, err)
	assert.Contains(t, out, "x over t in [0, 30]")
	assert.Contains(t, out, "dominant period")
	assert.Contains(t, out, "mean cycle period")
	assert.Contains(t, out, "lyapunov exponent (x)")
}

func TestProfileDefaultsStayFinite(t *testing.T) {
	for _, model := range []string{"predator-prey", "lotka-volterra"} {
		_, err := execute(t, "run", model, "--format", "csv")
		require.NoError(t, err, model)
		_, err = execute(t, "analyze", model)
		require.NoError(t, err, model)
	}
}

func TestAnalyzeRejectsVectorField(t *testing.T) {
	_, err := execute(t, "analyze", "multisector", "--steps", "10", "--field", "Z")
	assert.ErrorContains(t, err, "not a scalar")
}

func TestParseSet(t *testing.T) {
	got, err := parseSet([]string{"a=1", "b=[1, 2]", "c = 0.5", "m=[[1, 0], [0, 1]]"})
	require.NoError(t, err)
	assert.Equal(t, 1, got["a"])
	assert.Equal(t, []any{1, 2}, got["b"])
	assert.Equal(t, 0.5, got["c"])
	assert.Len(t, got["m"], 2)

	for _, bad := range []string{"a", "=1", "a=", "a=[1,"} {
		_, err := parseSet([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	src := "name: batch\nsteps:\n  - {model: lorenz, steps: 3, save_as: l.csv}\n  - {model: goodwin, steps: 2}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	out, err := execute(t, "script", path)
	require.NoError(t, err)
	assert.Contains(t, out, "batch")
	assert.Contains(t, out, "goodwin")
	assert.Contains(t, out, "3/3")
	assert.FileExists(t, filepath.Join(dir, "l.csv"))
}

func TestMonteCarlo(t *testing.T) {
	out, err := execute(t, "montecarlo", "predator-prey", "--trials", "4", "--steps", "10", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "4 trials, 4 stable, 0 unstable")
	assert.Contains(t, out, "x(end)")
	assert.Contains(t, out, "y(0)")
}
