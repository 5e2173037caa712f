package plot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/inodb/vibe-expr/internal/expression"
	"github.com/inodb/vibe-expr/internal/table"
)

func TestPartition_ThresholdRule(t *testing.T) {
	ds := &expression.Dataset{Records: []expression.GeneRecord{
		{GeneID: "A", PValue: 0.001, FoldChange: 2},
		{GeneID: "B", PValue: 0.5, FoldChange: 3},
		{GeneID: "C", PValue: math.NaN(), FoldChange: 1},
		{GeneID: "D", PValue: 0, FoldChange: 1},
	}}

	pts := Partition(ds, expression.DefaultThresholds())
	require.Len(t, pts.Significant, 1)
	require.Len(t, pts.NotSignificant, 1)
	assert.Equal(t, 2, pts.Skipped)

	assert.Equal(t, 2.0, pts.Significant[0].X)
	assert.InDelta(t, 3.0, pts.Significant[0].Y, 1e-12)
	assert.InDelta(t, -math.Log10(0.5), pts.NotSignificant[0].Y, 1e-12)
}

func TestPartition_UsesSignificantFlag(t *testing.T) {
	ds := &expression.Dataset{
		HasSignificantFlag: true,
		Records: []expression.GeneRecord{
			{PValue: 0.001, FoldChange: 2, Significant: false},
			{PValue: 0.5, FoldChange: 0.1, Significant: true},
		},
	}

	pts := Partition(ds, expression.DefaultThresholds())
	require.Len(t, pts.Significant, 1)
	assert.Equal(t, 0.1, pts.Significant[0].X)
	require.Len(t, pts.NotSignificant, 1)
	assert.Equal(t, 2.0, pts.NotSignificant[0].X)
}

func TestVolcano_Render(t *testing.T) {
	ds := &expression.Dataset{Records: []expression.GeneRecord{
		{PValue: 0.001, FoldChange: 2},
		{PValue: 0.3, FoldChange: -0.5},
		{PValue: 0.02, FoldChange: -3},
	}}

	p, err := Volcano(ds, expression.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, "Fold Change (log2)", p.X.Label.Text)
	assert.Equal(t, "-log10(p-value)", p.Y.Label.Text)

	w, err := p.WriterTo(4*vg.Inch, 3*vg.Inch, "png")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestVolcano_EmptyDataset(t *testing.T) {
	p, err := Volcano(&expression.Dataset{}, expression.DefaultThresholds())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestSave(t *testing.T) {
	p, err := Volcano(&expression.Dataset{Records: []expression.GeneRecord{{PValue: 0.01, FoldChange: 2}}},
		expression.DefaultThresholds())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "volcano.svg")
	require.NoError(t, Save(p, path, 0, 0))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	assert.Error(t, Save(p, filepath.Join(t.TempDir(), "volcano"), 0, 0))
}

const patientCSV = `patient_id,treatment,blood_pressure_systolic
1,placebo,140
2,drug_a,120
3,placebo,150
4,drug_a,118
5,drug_b,NA
6,placebo,145
7,drug_a,125
`

func TestGroupBy(t *testing.T) {
	tbl, err := table.ReadFrom(strings.NewReader(patientCSV), "patients", ',')
	require.NoError(t, err)

	groups, err := GroupBy(tbl, "blood_pressure_systolic", "treatment")
	require.NoError(t, err)
	require.Len(t, groups, 2, "drug_b has only a missing value")
	assert.Equal(t, Group{Name: "placebo", Values: []float64{140, 150, 145}}, groups[0])
	assert.Equal(t, Group{Name: "drug_a", Values: []float64{120, 118, 125}}, groups[1])

	_, err = GroupBy(tbl, "heart_rate", "treatment")
	assert.Error(t, err)
	_, err = GroupBy(tbl, "blood_pressure_systolic", "site")
	assert.Error(t, err)
}

func TestBoxplot(t *testing.T) {
	groups := []Group{
		{Name: "placebo", Values: []float64{140, 150, 145}},
		{Name: "drug_a", Values: []float64{120, 118, 125}},
	}
	p, err := Boxplot(groups, "blood_pressure_systolic", "treatment")
	require.NoError(t, err)
	assert.Equal(t, "blood_pressure_systolic by treatment", p.Title.Text)

	w, err := p.WriterTo(4*vg.Inch, 3*vg.Inch, "png")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())

	_, err = Boxplot(nil, "x", "y")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	got, err := Describe([]Group{
		{Name: "even", Values: []float64{4, 1, 3, 2}},
		{Name: "single", Values: []float64{7}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, GroupStats{Group: "even", N: 4, Min: 1, Q1: 1.5, Median: 2.5, Q3: 3.5, Max: 4}, got[0])
	assert.Equal(t, GroupStats{Group: "single", N: 1, Min: 7, Q1: 7, Median: 7, Q3: 7, Max: 7}, got[1])

	_, err = Describe([]Group{{Name: "empty"}})
	assert.Error(t, err)
}
