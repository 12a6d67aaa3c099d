package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flowfield/internal/config"
	"flowfield/internal/kernel"
	"flowfield/internal/sim"
	"flowfield/internal/terrain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowfield.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMazeCommandWritesDecodableTerrain(t *testing.T) {
	out, err := execute(t, "maze", "--size", "9")
	require.NoError(t, err)

	g, err := terrain.Decode(strings.NewReader(out), 9)
	require.NoError(t, err)
	assert.Equal(t, terrain.Fallback(9).Cells(), g.Cells())
}

func TestRunCommandConverges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potential.csv")
	out, err := execute(t, "run", "--size", "6", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "size=6")
	assert.Contains(t, out, "converged=true")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	// The goal sits at the centre and is pinned to 1.
	assert.Equal(t, "1", rows[3][3])
}

func TestRunCommandHonoursConfigFile(t *testing.T) {
	cfg := writeConfig(t, "grid:\n  size: 5\nsim:\n  variant: no-relaxation\n")
	out, err := execute(t, "--config", cfg, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "size=5")
	assert.Contains(t, out, "variant=no-relaxation")
}

func TestRunCommandIterationLimit(t *testing.T) {
	terrainPath := filepath.Join(t.TempDir(), "maze.csv")
	f, err := os.Create(terrainPath)
	require.NoError(t, err)
	require.NoError(t, terrain.Encode(f, terrain.Fallback(16)))
	require.NoError(t, f.Close())

	out, err := execute(t, "run", "--size", "16", "--terrain", terrainPath, "--max-iterations", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration=2")
	assert.Contains(t, out, "state=stopped")
}

func TestRunCommandFallsBackOnMissingTerrain(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.csv")
	out, err := execute(t, "run", "--size", "8", "--terrain", missing)
	require.NoError(t, err)
	assert.Contains(t, out, "size=8")
	assert.Contains(t, out, "converged=true")
}

func TestLoadTerrainFileFallsBack(t *testing.T) {
	g := loadTerrainFile(filepath.Join(t.TempDir(), "absent.csv"), 8, zaptest.NewLogger(t))
	require.NotNil(t, g)
	assert.Equal(t, terrain.Fallback(8).Cells(), g.Cells())

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("1,1\n"), 0o644))
	g = loadTerrainFile(bad, 8, zaptest.NewLogger(t))
	assert.Equal(t, terrain.Fallback(8).Cells(), g.Cells())
}

func TestRejectsInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "sim:\n  variant: bfs\n")
	_, err := execute(t, "--config", cfg, "run")
	assert.Error(t, err)
}

func TestScenariosCoverGrid(t *testing.T) {
	cfg := writeConfig(t, "sweep:\n  sizes: [4, 8]\n  variants: [relaxed]\n  terrains: [open, maze]\n")
	v := viper.New()
	config.SetDefaults(v)
	s := &session{v: v, cfgFile: cfg}
	require.NoError(t, s.load())

	jobs := scenarios(s.cfg.Sweep)
	require.Len(t, jobs, 4)
	for _, j := range jobs {
		assert.Equal(t, kernel.Relaxed, j.Variant)
	}
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "sweep.csv")
	cfg := writeConfig(t, "sweep:\n  sizes: [5, 7]\n  variants: [relaxed, no-relaxation]\n  terrains: [open]\n  concurrency: 2\n")

	out, err := execute(t, "--config", cfg, "sweep", "--out", results)
	require.NoError(t, err)
	assert.Contains(t, out, "ITERATION")

	f, err := os.Open(results)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "terrain", rows[0][0])
	for _, row := range rows[1:] {
		assert.Equal(t, "open", row[0])
		assert.Equal(t, "true", row[4])
	}
	// Sorted by variant then size.
	assert.Equal(t, []string{"relaxed", "5"}, rows[1][1:3])
	assert.Equal(t, []string{"relaxed", "7"}, rows[2][1:3])
}

func TestWriteSweepCSV(t *testing.T) {
	var buf bytes.Buffer
	err := writeSweepCSV(&buf, []scenarioResult{{
		scenario: scenario{Size: 4, Variant: kernel.NoRelaxation, Terrain: "maze"},
		Run:      runResult{Iteration: 7, Converged: true, State: sim.Converged, MaxEstimate: 10, Elapsed: 1500 * time.Microsecond},
	}})
	require.NoError(t, err)
	assert.Equal(t,
		"terrain,variant,size,iteration,converged,state,max_estimate,elapsed_ms\nmaze,no-relaxation,4,7,true,converged,10.0000,1\n",
		buf.String())
}
