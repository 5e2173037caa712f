// Package enrich provides pathway over-representation analysis using the
// hypergeometric distribution.
package enrich

import (
	"errors"
	"sort"
)

// GeneSet is a set of gene identifiers. Membership is case-sensitive.
type GeneSet map[string]struct{}

// NewGeneSet builds a set from ids, dropping duplicates and empty strings.
func NewGeneSet(ids []string) GeneSet {
	s := make(GeneSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is in the set.
func (s GeneSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s GeneSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the members of s also in other, sorted.
func (s GeneSet) Intersect(other GeneSet) []string {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	var out []string
	for id := range small {
		if large.Contains(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Pathway is a named gene set.
type Pathway struct {
	Name        string
	Description string
	Genes       GeneSet
}

// NewPathway creates a pathway from a gene list.
func NewPathway(name, description string, genes []string) Pathway {
	return Pathway{Name: name, Description: description, Genes: NewGeneSet(genes)}
}

// Size returns the number of distinct genes in the pathway.
func (p Pathway) Size() int {
	return len(p.Genes)
}

// Database is a collection of pathways over a background gene universe of
// TotalGenes genes.
type Database struct {
	Pathways   []Pathway
	TotalGenes int
}

// NewDatabase creates a database. A non-positive totalGenes is replaced by
// the number of distinct genes across all pathways.
func NewDatabase(pathways []Pathway, totalGenes int) *Database {
	db := &Database{Pathways: pathways, TotalGenes: totalGenes}
	if totalGenes <= 0 {
		db.TotalGenes = db.UnionSize()
	}
	return db
}

// UnionSize returns the number of distinct genes across all pathways.
func (db *Database) UnionSize() int {
	union := make(GeneSet)
	for _, p := range db.Pathways {
		for id := range p.Genes {
			union[id] = struct{}{}
		}
	}
	return len(union)
}

// Result is the enrichment statistic for one pathway.
type Result struct {
	Pathway        string
	Overlap        int
	PValue         float64
	PathwaySize    int
	SampleSize     int
	OverlapGenes   []string
	AdjustedPValue float64 // Benjamini-Hochberg over the returned results
}

// Validate checks that the background population can hold every pathway
// and a sample of sampleSize genes.
func (db *Database) Validate(sampleSize int) error {
	for _, p := range db.Pathways {
		if err := checkParams(db.TotalGenes, p.Size(), sampleSize); err != nil {
			var ipe *InvalidDistributionParametersError
			if errors.As(err, &ipe) {
				ipe.Pathway = p.Name
			}
			return err
		}
	}
	return nil
}

// Enrich tests each pathway in db for over-representation of genes.
// Pathways that share no gene with the list are omitted. Results follow
// database order. A non-empty list fails if any pathway, overlapping or
// not, is larger than the background.
func Enrich(genes []string, db *Database) ([]Result, error) {
	sample := NewGeneSet(genes)
	results := make([]Result, 0)
	if len(sample) == 0 {
		return results, nil
	}
	if err := db.Validate(len(sample)); err != nil {
		return nil, err
	}

	for _, p := range db.Pathways {
		r, hit, err := testPathway(sample, p, db.TotalGenes)
		if err != nil {
			return nil, err
		}
		if hit {
			results = append(results, r)
		}
	}

	adjust(results)
	return results, nil
}

// testPathway computes the over-representation p-value of sample in p.
// hit is false when the two share no gene.
func testPathway(sample GeneSet, p Pathway, totalGenes int) (r Result, hit bool, err error) {
	overlap := sample.Intersect(p.Genes)
	if len(overlap) == 0 {
		return Result{}, false, nil
	}

	pval, err := HypergeomSF(len(overlap)-1, totalGenes, p.Size(), len(sample))
	if err != nil {
		var ipe *InvalidDistributionParametersError
		if errors.As(err, &ipe) {
			ipe.Pathway = p.Name
		}
		return Result{}, false, err
	}

	return Result{
		Pathway:      p.Name,
		Overlap:      len(overlap),
		PValue:       pval,
		PathwaySize:  p.Size(),
		SampleSize:   len(sample),
		OverlapGenes: overlap,
	}, true, nil
}

// adjust fills AdjustedPValue across results.
func adjust(results []Result) {
	pvals := make([]float64, len(results))
	for i, r := range results {
		pvals[i] = r.PValue
	}
	for i, q := range AdjustBH(pvals) {
		results[i].AdjustedPValue = q
	}
}

// SortByPValue orders results by ascending p-value, then pathway name.
func SortByPValue(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PValue != results[j].PValue {
			return results[i].PValue < results[j].PValue
		}
		return results[i].Pathway < results[j].Pathway
	})
}

// AdjustBH returns Benjamini-Hochberg adjusted p-values in input order.
func AdjustBH(pvals []float64) []float64 {
	m := len(pvals)
	adjusted := make([]float64, m)
	if m == 0 {
		return adjusted
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return pvals[order[a]] < pvals[order[b]] })

	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		q := pvals[idx] * float64(m) / float64(rank)
		if q < running {
			running = q
		}
		adjusted[idx] = running
	}
	return adjusted
}
