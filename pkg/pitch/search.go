package pitch

import (
	"github.com/cwbudde/algo-vecmath"
	"golang.org/x/sync/errgroup"
)

/*
 * Best lag found in some part of the search. A zero lag means no candidate
 * scored above zero.
 */
type peak struct {
	lag   int
	score float64
}

/*
 * Returns the correlation of the first window samples of frame with the
 * window samples starting at lag.
 */
func correlate(frame []float64, window int, lag int, products []float64) float64 {
	head := frame[0:window]
	shifted := frame[lag : lag+window]
	vecmath.MulBlock(products, head, shifted)
	sum := 0.0

	for _, p := range products {
		sum += p
	}

	return sum
}

/*
 * Scan lags lo..hi in increasing order and keep the strictly greatest score.
 */
func scan(frame []float64, window int, lo int, hi int) peak {
	best := peak{}
	products := make([]float64, window)

	for lag := lo; lag <= hi; lag++ {
		score := correlate(frame, window, lag, products)

		/*
		 * Only a strictly greater score replaces the candidate, so the
		 * earliest lag wins a tie.
		 */
		if score > best.score {
			best = peak{lag: lag, score: score}
		}

	}

	return best
}

/*
 * Search the lag range, in parallel if the estimator has more than one
 * worker.
 */
func (this *Estimator) search(frame []float64, window int, lo int, hi int) peak {
	count := hi - lo + 1

	if count <= 0 {
		return peak{}
	}

	workers := this.cfg.Workers

	if workers > count {
		workers = count
	}

	if workers <= 1 {
		return scan(frame, window, lo, hi)
	}

	chunk := (count + workers - 1) / workers
	peaks := make([]peak, workers)
	var g errgroup.Group

	for w := 0; w < workers; w++ {
		start := lo + w*chunk
		end := start + chunk - 1

		if end > hi {
			end = hi
		}

		g.Go(func() error {
			peaks[w] = scan(frame, window, start, end)
			return nil
		})

	}

	_ = g.Wait()
	return mergePeaks(peaks)
}

/*
 * Combine per-chunk results ordered by increasing lag. This reproduces the
 * sequential scan: strictly greater wins, earlier chunk wins a tie.
 */
func mergePeaks(peaks []peak) peak {
	best := peak{}

	for _, p := range peaks {

		if p.lag != 0 && p.score > best.score {
			best = p
		}

	}

	return best
}
