package enrich

import (
	"runtime"
	"sync"
)

// workItem is one pathway queued for testing.
type workItem struct {
	seq     int
	pathway Pathway
}

// workResult holds the test outcome for a single pathway.
type workResult struct {
	seq    int
	result Result
	hit    bool
	err    error
}

// EnrichParallel is Enrich with pathways tested by a pool of workers.
// Results are identical to Enrich, in database order.
// If workers is 0, runtime.NumCPU() is used.
func EnrichParallel(genes []string, db *Database, workers int) ([]Result, error) {
	sample := NewGeneSet(genes)
	results := make([]Result, 0)
	if len(sample) == 0 {
		return results, nil
	}
	if err := db.Validate(len(sample)); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make(chan workItem, 2*workers)
	done := make(chan struct{})
	go func() {
		defer close(items)
		for i, p := range db.Pathways {
			select {
			case items <- workItem{seq: i, pathway: p}:
			case <-done:
				return
			}
		}
	}()

	out := testPathways(sample, db.TotalGenes, items, workers)
	err := orderedCollect(out, func(r workResult) error {
		if r.err != nil {
			return r.err
		}
		if r.hit {
			results = append(results, r.result)
		}
		return nil
	}, done)
	if err != nil {
		return nil, err
	}

	adjust(results)
	return results, nil
}

// testPathways runs workers over items. Results are sent in arrival order.
func testPathways(sample GeneSet, totalGenes int, items <-chan workItem, workers int) <-chan workResult {
	results := make(chan workResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range items {
				r, hit, err := testPathway(sample, item.pathway, totalGenes)
				results <- workResult{seq: item.seq, result: r, hit: hit, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// orderedCollect calls fn for each result in sequence order, buffering
// out-of-order results until the next expected one arrives. On the first
// error from fn it closes stop and drains results so workers can exit.
func orderedCollect(results <-chan workResult, fn func(workResult) error, stop chan<- struct{}) error {
	pending := make(map[int]workResult)
	nextSeq := 0

	for r := range results {
		pending[r.seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				close(stop)
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
