package core

import (
	"sync"

	"github.com/signalsfoundry/stokesmap/model"
)

// BinParallel bins samples across workers as a pure performance
// optimization over Bin. Each worker owns a private accumulator over a
// contiguous batch; partials are merged in batch order, so rejection
// counts are identical to a sequential pass and normalized map values
// agree up to floating-point summation order. No shared map is exposed
// mid-pass.
func BinParallel(samples []model.CorrectedSample, pix Pixelization, scheme WeightScheme, workers int, stats *RunStats) (*Map, error) {
	if workers <= 1 || len(samples) < 2 {
		return Bin(samples, pix, scheme, stats)
	}
	if workers > len(samples) {
		workers = len(samples)
	}

	accs := make([]*Accumulator, workers)
	partials := make([]*RunStats, workers)
	for w := 0; w < workers; w++ {
		acc, err := NewAccumulator(pix, scheme)
		if err != nil {
			return nil, err
		}
		accs[w] = acc
		partials[w] = NewRunStats()
	}

	batch := (len(samples) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * batch
		if lo > len(samples) {
			lo = len(samples)
		}
		hi := lo + batch
		if hi > len(samples) {
			hi = len(samples)
		}
		wg.Add(1)
		go func(acc *Accumulator, st *RunStats, part []model.CorrectedSample) {
			defer wg.Done()
			for _, s := range part {
				if reason := acc.Add(s); reason != "" {
					st.Reject(reason)
					continue
				}
				st.Accept()
			}
		}(accs[w], partials[w], samples[lo:hi])
	}
	wg.Wait()

	merged := accs[0]
	for w := 1; w < workers; w++ {
		if err := merged.Merge(accs[w]); err != nil {
			return nil, err
		}
	}
	for w := 0; w < workers; w++ {
		stats.AddSnapshot(partials[w].Snapshot())
	}
	return merged.Finalize(), nil
}
