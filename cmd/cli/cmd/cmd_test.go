package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/internal/config"
	"github.com/warp/quota-simulator/simulation"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// sqliteConfig writes a config file pointing at a temporary database.
func sqliteConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(dir, "quota.db")
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "config.json")
	require.NoError(t, cfg.Save(path))
	return path
}

var autoStdArgs = []string{
	"--table", "auto-std", "--credit", "100000", "--term", "60",
	"--pocket-bid", "10000", "--allocation", "50", "--month", "10",
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "quota-sim version "+version+"\n", out)
}

func TestSimulate_Text(t *testing.T) {
	// GIVEN: a standard table simulation
	args := append([]string{"simulate"}, autoStdArgs...)

	// WHEN: running it with the default format
	out, err := run(t, args...)

	// THEN: the summary and the projection are printed
	require.NoError(t, err)
	assert.Contains(t, out, "Auto Standard (auto-std, standard)")
	assert.Contains(t, out, "R$ 1.966,67")
	assert.Contains(t, out, "R$ 118.000,20")
	assert.Contains(t, out, "Path standard (default)")
}

func TestSimulate_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := run(t, append([]string{"simulate", "--format", "json"}, autoStdArgs...)...)
		require.NoError(t, err)

		var rec simulation.Record
		require.NoError(t, json.Unmarshal([]byte(out), &rec))
		assert.Equal(t, "auto-std", string(rec.TableID))
		assert.Equal(t, "118000.2", rec.Result.TotalCost.String())
	})

	t.Run("csv", func(t *testing.T) {
		out, err := run(t, append([]string{"simulate", "-f", "csv"}, autoStdArgs...)...)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		assert.Len(t, lines, 6)
		assert.True(t, strings.HasPrefix(lines[0], "path,default,month"))
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := run(t, append([]string{"simulate", "-f", "markdown"}, autoStdArgs...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "# Simulation ")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := run(t, append([]string{"simulate", "-f", "xml"}, autoStdArgs...)...)
		assert.Error(t, err)
	})
}

func TestSimulate_Errors(t *testing.T) {
	t.Run("bad number", func(t *testing.T) {
		_, err := run(t, "simulate", "--table", "auto-std", "--credit", "lots", "--term", "60")
		assert.ErrorContains(t, err, "--credit")
	})

	t.Run("missing required flag", func(t *testing.T) {
		_, err := run(t, "simulate", "--credit", "100000", "--term", "60")
		assert.Error(t, err)
	})

	t.Run("rejected input", func(t *testing.T) {
		_, err := run(t, "simulate", "--table", "auto-std", "--credit", "100000", "--term", "60", "--month", "61")
		assert.ErrorContains(t, err, "contemplation_out_of_range")
	})
}

func TestValidate(t *testing.T) {
	out, err := run(t, append([]string{"validate"}, autoStdArgs...)...)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	out, err = run(t, "validate", "--table", "auto-std", "--credit", "100000", "--term", "60", "--pocket-bid", "100000")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, out, "rejected (bid_not_below_credit)")
}

func TestTables_ListShowExport(t *testing.T) {
	cfg := sqliteConfig(t)

	out, err := run(t, "--config", cfg, "tables", "list")
	require.NoError(t, err)
	for _, id := range []string{"auto-std", "auto-superlight", "imovel-light", "moto", "servicos"} {
		assert.Contains(t, out, id)
	}

	out, err = run(t, "--config", cfg, "tables", "show", "imovel-light")
	require.NoError(t, err)
	assert.Contains(t, out, "plan reduced_75")
	assert.Contains(t, out, "admin 22,00%")
	assert.Contains(t, out, "R$ 300.000,00")

	out, err = run(t, "--config", cfg, "tables", "export", "moto")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "moto"`)

	_, err = run(t, "--config", cfg, "tables", "show", "nope")
	assert.Error(t, err)
}

func TestTables_Import(t *testing.T) {
	// GIVEN: a table definition on disk
	cfg := sqliteConfig(t)
	def := filepath.Join(t.TempDir(), "frota.json")
	require.NoError(t, os.WriteFile(def, []byte(`{
		"id": "frota", "name": "Frota", "category": "vehicle",
		"admin_fee_rate": "0.15", "reserve_fund_rate": "0.02",
		"insurance_rate": "0", "max_embedded_bid_ratio": "0.20",
		"rows": [{"credit": 200000, "terms": [{"term": 100, "installment": 2340}]}]
	}`), 0644))

	// WHEN: importing it
	out, err := run(t, "--config", cfg, "tables", "import", def)
	require.NoError(t, err)
	assert.Equal(t, "stored frota (1 credits)\n", out)

	// THEN: later commands against the same store see it
	out, err = run(t, "--config", cfg, "tables", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "frota")
}

func TestTables_ImportInvalid(t *testing.T) {
	cfg := sqliteConfig(t)
	def := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(def, []byte(`{"id":"x","category":"boat"}`), 0644))

	_, err := run(t, "--config", cfg, "tables", "import", def)
	assert.Error(t, err)
}
