package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-expr/internal/expression"
)

const deCSV = `gene_id,p_value,fold_change
TP53,0.001,2.5
KRAS,0.2,3.0
EGFR,0.01,-1.8
MYC,0.01,1.0
`

// execute runs the root command with a fresh config and an empty HOME.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	logger = zap.NewNop()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFilterCommand(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)

	for _, engine := range []string{engineNative, engineDuckDB} {
		t.Run(engine, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "sig.tsv")
			_, err := execute(t, "filter", "--engine", engine, input, "-o", out)
			require.NoError(t, err)

			lines := readLines(t, out)
			require.Len(t, lines, 3)
			assert.Equal(t, "gene_id\tp_value\tfold_change\tsignificant", lines[0])
			assert.Equal(t, "TP53\t0.001\t2.5\tfalse", lines[1])
			assert.Equal(t, "EGFR\t0.01\t-1.8\tfalse", lines[2])
		})
	}
}

func TestFilterCommand_ThresholdFlags(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)
	out := filepath.Join(t.TempDir(), "sig.tsv")

	_, err := execute(t, "filter", "--p-threshold", "0.5", "--fc-threshold", "0.5", input, "-o", out)
	require.NoError(t, err)
	assert.Len(t, readLines(t, out), 5)
}

func TestFilterCommand_MissingValue(t *testing.T) {
	input := writeFile(t, "de.csv", "gene_id,p_value,fold_change\nTP53,0.001,2.5\nKRAS,NA,3.0\n")
	_, err := execute(t, "filter", input, "-o", filepath.Join(t.TempDir(), "sig.tsv"))

	var mfe *expression.MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, expression.ColPValue, mfe.Field)
	assert.Equal(t, 2, mfe.Row)
}

func TestSummaryCommand(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)

	out, err := execute(t, "summary", input)
	require.NoError(t, err)
	assert.Equal(t, "total_genes\t4\nsignificant_genes\t2\nupregulated\t1\ndownregulated\t1\n", out)
}

func TestSummaryCommand_EnvThreshold(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)
	t.Setenv("VIBE_EXPR_THRESHOLDS_FOLD_CHANGE", "2")

	out, err := execute(t, "summary", "--format", "yaml", input)
	require.NoError(t, err)
	assert.Contains(t, out, "significant_genes: 1\n")
	assert.Contains(t, out, "upregulated: 1\n")
	assert.Contains(t, out, "downregulated: 0\n")
}

func TestSummaryCommand_ConfigFile(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)
	cfg := writeFile(t, "cfg.yaml", "thresholds:\n  p_value: 0.005\n")

	out, err := execute(t, "summary", "--config", cfg, input)
	require.NoError(t, err)
	assert.Contains(t, out, "significant_genes\t1\n")
}

func TestEnrichCommand_GeneList(t *testing.T) {
	gmt := writeFile(t, "p.gmt", "P1\tfirst\tA\tB\tC\tD\nP2\tsecond\tE\tF\nP3\tthird\tG\tH\tI\n")
	genes := writeFile(t, "genes.txt", "# sample\nB\nC\n\nX\n")
	out := filepath.Join(t.TempDir(), "enrich.tsv")

	_, err := execute(t, "enrich", "--pathways", gmt, "--total-genes", "10", genes, "-o", out)
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, "P1\t2\t4\t3\t0.333333\t0.333333\tB,C", lines[1])
}

func TestEnrichCommand_FromTable(t *testing.T) {
	gmt := writeFile(t, "p.gmt", "P1\tna\tTP53\tEGFR\tKRAS\n")
	input := writeFile(t, "de.csv", deCSV)
	out := filepath.Join(t.TempDir(), "enrich.tsv")

	_, err := execute(t, "enrich", "--pathways", gmt, "--total-genes", "10", "--from-table", input, "-o", out)
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, "P1\t2\t3\t2\t0.0666667\t0.0666667\tEGFR,TP53", lines[1])
}

func TestEnrichCommand_RequiresPathways(t *testing.T) {
	_, err := execute(t, "enrich", writeFile(t, "genes.txt", "A\n"))
	var ue usageError
	assert.True(t, errors.As(err, &ue))
}

func TestVolcanoCommand(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)
	out := filepath.Join(t.TempDir(), "volcano.svg")

	_, err := execute(t, "volcano", input, "-o", out, "--width", "4", "--height", "3")
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestBoxplotCommand(t *testing.T) {
	input := writeFile(t, "patients.csv", `patient_id,treatment,blood_pressure_systolic
1,placebo,140
2,drug_a,120
3,placebo,150
4,drug_a,118
`)
	img := filepath.Join(t.TempDir(), "bp.png")

	out, err := execute(t, "boxplot", input, "--column", "blood_pressure_systolic", "--by", "treatment", "-o", img)
	require.NoError(t, err)
	assert.FileExists(t, img)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "group\tn\tmin\tq1\tmedian\tq3\tmax", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "placebo\t2\t140\t"))
	assert.True(t, strings.HasPrefix(lines[2], "drug_a\t2\t118\t"))
}

func TestUsageErrors(t *testing.T) {
	input := writeFile(t, "de.csv", deCSV)

	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"filter"}},
		{"unknown engine", []string{"filter", "--engine", "sqlite", input}},
		{"unknown flag", []string{"filter", "--bogus", input}},
		{"unknown format", []string{"summary", "--format", "json", input}},
		{"boxplot without column", []string{"boxplot", input}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			var ue usageError
			assert.True(t, errors.As(err, &ue), "got %v", err)
		})
	}
}

func TestConfigSetGet(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: warn\n"), 0644))

	out, err := execute(t, "--config", cfg, "config", "set", "enrichment.total_genes", "20000")
	require.NoError(t, err)
	assert.Contains(t, out, "Set enrichment.total_genes = 20000")

	out, err = execute(t, "--config", cfg, "config", "get", "enrichment.total_genes")
	require.NoError(t, err)
	assert.Equal(t, "20000\n", out)
}

func TestConfigSet_KeepsOtherKeys(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", "log:\n  level: warn\nplot:\n  width: 6\n")
	t.Setenv("VIBE_EXPR_THRESHOLDS_P_VALUE", "0.001")

	_, err := execute(t, "--config", cfg, "--fc-threshold", "3", "config", "set", "enrichment.total_genes", "20000")
	require.NoError(t, err)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, yaml.Unmarshal(data, &stored))
	assert.Equal(t, map[string]any{
		"log":        map[string]any{"level": "warn"},
		"plot":       map[string]any{"width": 6},
		"enrichment": map[string]any{"total_genes": 20000},
	}, stored, "defaults, flags and environment must not be written")
}

func TestConfigSet_CreatesFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "new.yaml")

	_, err := execute(t, "--config", cfg, "config", "set", "log.level", "info")
	require.NoError(t, err)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "log:\n    level: info\n", string(data))

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "get", "log.level")
	assert.Error(t, err, "only config set may start from a missing file")
}

func TestConfigShow_Stored(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", "thresholds:\n  p_value: 0.01\n")

	out, err := execute(t, "--config", cfg, "config", "--stored")
	require.NoError(t, err)
	assert.Equal(t, "thresholds:\n    p_value: 0.01\n", out)

	out, err = execute(t, "--config", cfg, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "fold_change: 1.5")
}

func TestEnrichCommand_Workers(t *testing.T) {
	assert.Equal(t, "1", newEnrichCmd().Flags().Lookup("workers").DefValue)

	gmt := writeFile(t, "p.gmt", "P1\tfirst\tA\tB\tC\tD\nP2\tsecond\tB\tE\nP3\tthird\tG\tH\tI\n")
	genes := writeFile(t, "genes.txt", "B\nC\nG\n")

	var outputs []string
	for _, workers := range []string{"1", "4"} {
		out := filepath.Join(t.TempDir(), "enrich.tsv")
		_, err := execute(t, "enrich", "--pathways", gmt, "--total-genes", "10", "--workers", workers, genes, "-o", out)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestParseConfigValue(t *testing.T) {
	assert.Equal(t, true, parseConfigValue("yes"))
	assert.Equal(t, false, parseConfigValue("off"))
	assert.Equal(t, 42, parseConfigValue("42"))
	assert.Equal(t, 0.01, parseConfigValue("0.01"))
	assert.Equal(t, "debug", parseConfigValue("debug"))
}
