package expression

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Example(t *testing.T) {
	genes := []GeneRecord{
		{GeneID: "G1", PValue: 0.01, FoldChange: 2.0},
		{GeneID: "G2", PValue: 0.2, FoldChange: 3.0},  // fails p
		{GeneID: "G3", PValue: 0.01, FoldChange: 1.0}, // fails fc
	}

	got, err := Filter(genes, Thresholds{PValue: 0.05, FoldChange: 1.5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "G1", got[0].GeneID)
}

func TestFilter_Empty(t *testing.T) {
	got, err := Filter(nil, DefaultThresholds())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilter_StrictInequalities(t *testing.T) {
	th := Thresholds{PValue: 0.05, FoldChange: 1.5}
	tests := []struct {
		name string
		rec  GeneRecord
		want bool
	}{
		{"p equal to threshold", GeneRecord{PValue: 0.05, FoldChange: 3}, false},
		{"fc equal to threshold", GeneRecord{PValue: 0.01, FoldChange: 1.5}, false},
		{"negative fc equal to threshold", GeneRecord{PValue: 0.01, FoldChange: -1.5}, false},
		{"negative fc beyond threshold", GeneRecord{PValue: 0.01, FoldChange: -1.6}, true},
		{"both pass", GeneRecord{PValue: 0.049, FoldChange: 1.51}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Passes(tt.rec))
			got, err := Filter([]GeneRecord{tt.rec}, th)
			require.NoError(t, err)
			assert.Equal(t, tt.want, len(got) == 1)
		})
	}
}

func TestFilter_PartitionProperty(t *testing.T) {
	var records []GeneRecord
	for i := 0; i < 50; i++ {
		records = append(records, GeneRecord{
			PValue:     float64(i) / 50,
			FoldChange: float64(i%9) - 4,
		})
	}

	for _, th := range []Thresholds{
		{PValue: 0.05, FoldChange: 1.5},
		{PValue: 0.5, FoldChange: 0},
		{PValue: 1, FoldChange: 3.5},
		{PValue: 0, FoldChange: 0},
	} {
		got, err := Filter(records, th)
		require.NoError(t, err)

		kept := 0
		for _, r := range records {
			pass := r.PValue < th.PValue && math.Abs(r.FoldChange) > th.FoldChange
			if pass {
				require.Less(t, kept, len(got))
				assert.Equal(t, r, got[kept], "filtered output must preserve input order")
				kept++
			}
		}
		assert.Equal(t, kept, len(got))
		for _, r := range got {
			assert.Less(t, r.PValue, th.PValue)
			assert.Greater(t, math.Abs(r.FoldChange), th.FoldChange)
		}
	}
}

func TestFilter_MissingField(t *testing.T) {
	records := []GeneRecord{
		{GeneID: "A", PValue: 0.01, FoldChange: 2},
		{GeneID: "B", PValue: math.NaN(), FoldChange: 2},
	}
	_, err := Filter(records, DefaultThresholds())
	var mfe *MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, ColPValue, mfe.Field)
	assert.Equal(t, 2, mfe.Row)
	assert.Contains(t, mfe.Error(), "B")

	records[1] = GeneRecord{PValue: 0.01, FoldChange: math.NaN()}
	_, err = Filter(records, DefaultThresholds())
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, ColFoldChange, mfe.Field)
}

func TestGeneIDs(t *testing.T) {
	ids := GeneIDs([]GeneRecord{{GeneID: "A"}, {}, {GeneID: "C"}})
	assert.Equal(t, []string{"A", "C"}, ids)
}

func TestMissingFieldError_Column(t *testing.T) {
	err := &MissingFieldError{Field: ColFoldChange}
	assert.Equal(t, `missing required column "fold_change"`, err.Error())
}
