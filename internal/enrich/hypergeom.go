package enrich

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/combin"
)

// InvalidDistributionParametersError reports hypergeometric parameters that
// do not describe a valid population: N total items, K successes, n draws.
type InvalidDistributionParametersError struct {
	Pathway string
	N, K, n int
}

func (e *InvalidDistributionParametersError) Error() string {
	msg := fmt.Sprintf("invalid hypergeometric parameters: total=%d successes=%d draws=%d", e.N, e.K, e.n)
	if e.Pathway != "" {
		msg = fmt.Sprintf("pathway %s: %s", e.Pathway, msg)
	}
	return msg
}

func checkParams(N, K, n int) error {
	if N < 0 || K < 0 || n < 0 || K > N || n > N {
		return &InvalidDistributionParametersError{N: N, K: K, n: n}
	}
	return nil
}

// support returns the range of X ~ Hypergeometric(N, K, n).
func support(N, K, n int) (lo, hi int) {
	return max(0, n-(N-K)), min(K, n)
}

func logPMF(i, N, K, n int) float64 {
	return combin.LogGeneralizedBinomial(float64(K), float64(i)) +
		combin.LogGeneralizedBinomial(float64(N-K), float64(n-i)) -
		combin.LogGeneralizedBinomial(float64(N), float64(n))
}

// HypergeomPMF returns P(X = k) for X ~ Hypergeometric(N, K, n), drawing n
// items without replacement from N items of which K are successes.
func HypergeomPMF(k, N, K, n int) (float64, error) {
	if err := checkParams(N, K, n); err != nil {
		return 0, err
	}
	lo, hi := support(N, K, n)
	if k < lo || k > hi {
		return 0, nil
	}
	return math.Exp(logPMF(k, N, K, n)), nil
}

// HypergeomSF returns the survival function P(X > k), matching
// scipy.stats.hypergeom.sf(k, N, K, n). The enrichment p-value for an
// observed overlap o is HypergeomSF(o-1, ...), i.e. P(X >= o).
func HypergeomSF(k, N, K, n int) (float64, error) {
	if err := checkParams(N, K, n); err != nil {
		return 0, err
	}
	lo, hi := support(N, K, n)
	if k < lo {
		return 1, nil
	}
	if k >= hi {
		return 0, nil
	}

	terms := make([]float64, 0, hi-k)
	for i := hi; i > k; i-- {
		terms = append(terms, logPMF(i, N, K, n))
	}
	p := math.Exp(floats.LogSumExp(terms))
	return math.Min(1, math.Max(0, p)), nil
}
