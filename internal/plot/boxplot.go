package plot

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/inodb/vibe-expr/internal/table"
)

// Group is a named sample of numeric values.
type Group struct {
	Name   string
	Values []float64
}

// GroupBy splits the values of valueCol by the categories in byCol, in order
// of first appearance. Missing values are dropped, as are groups left empty.
func GroupBy(t *table.Table, valueCol, byCol string) ([]Group, error) {
	values, err := t.Floats(valueCol)
	if err != nil {
		return nil, err
	}
	keys, err := t.Strings(byCol)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var groups []Group
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		idx, ok := index[keys[i]]
		if !ok {
			idx = len(groups)
			index[keys[i]] = idx
			groups = append(groups, Group{Name: keys[i]})
		}
		groups[idx].Values = append(groups[idx].Values, v)
	}
	return groups, nil
}

// Boxplot draws one box per group.
func Boxplot(groups []Group, valueCol, byCol string) (*plot.Plot, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("boxplot: no values to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s by %s", valueCol, byCol)
	p.X.Label.Text = byCol
	p.Y.Label.Text = valueCol

	names := make([]string, len(groups))
	for i, g := range groups {
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), plotter.Values(g.Values))
		if err != nil {
			return nil, fmt.Errorf("boxplot group %q: %w", g.Name, err)
		}
		p.Add(box)
		names[i] = g.Name
	}
	p.NominalX(names...)

	return p, nil
}

// GroupStats holds descriptive statistics for one group.
type GroupStats struct {
	Group  string
	N      int
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Describe computes five-number summaries for each group.
func Describe(groups []Group) ([]GroupStats, error) {
	out := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		data := stats.Float64Data(g.Values)
		gs := GroupStats{Group: g.Name, N: data.Len()}

		var err error
		if gs.Min, err = stats.Min(data); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		if gs.Max, err = stats.Max(data); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		if gs.Median, err = stats.Median(data); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}

		if data.Len() == 1 {
			gs.Q1, gs.Q3 = gs.Median, gs.Median
		} else {
			q, err := stats.Quartile(data)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", g.Name, err)
			}
			gs.Q1, gs.Q3 = q.Q1, q.Q3
		}

		out = append(out, gs)
	}
	return out, nil
}
