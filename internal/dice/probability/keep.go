package probability

import (
	"fmt"
	"math"
	"sync"
)

// KeepMode selects which K of N draws RepeatNSumK sums.
type KeepMode int

const (
	// KeepBest sums the K highest draws.
	KeepBest KeepMode = iota + 1
	// KeepWorst sums the K lowest draws.
	KeepWorst
)

// String returns "best" or "worst".
func (m KeepMode) String() string {
	switch m {
	case KeepBest:
		return "best"
	case KeepWorst:
		return "worst"
	default:
		return fmt.Sprintf("KeepMode(%d)", int(m))
	}
}

// RepeatNSumK returns the distribution of the sum of the best (or worst) k of
// n independent draws from d.
//
// The n draws are partitioned around the boundary value q, the k-th kept
// draw: a draws strictly preferred to q, e draws equal to q and the rest
// rejected. For each q and each feasible (a, e) the arrangement is weighted by
// its multinomial count and the preferred draws contribute RepeatSum(a) of the
// conditional distribution beyond q, while k-a copies of q are kept from the
// tie group. No arrangement of individual dice is ever enumerated.
//
// Precondition: n >= 1, k >= 1, mode is KeepBest or KeepWorst.
// Postcondition: k >= n yields RepeatSum(n). n above Limits.MaxKeepDice yields
// ErrResourceLimit.
func (d *Distribution) RepeatNSumK(n, k int, mode KeepMode) (*Distribution, error) {
	if n < 1 || k < 1 {
		return nil, fmt.Errorf("%w: keep %d of %d", ErrInvalid, k, n)
	}
	if mode != KeepBest && mode != KeepWorst {
		return nil, fmt.Errorf("%w: unknown keep mode %d", ErrInvalid, int(mode))
	}
	if n > d.limits.MaxKeepDice {
		return nil, fmt.Errorf("%w: keep over %d dice (max %d)", ErrResourceLimit, n, d.limits.MaxKeepDice)
	}
	if k >= n {
		return d.RepeatSum(n)
	}
	width, ok := d.limits.span(k, len(d.masses)-1)
	if !ok {
		return nil, fmt.Errorf("%w: keeping %d dice exceeds %d outcomes",
			ErrResourceLimit, k, d.limits.MaxOutcomes)
	}

	lf := logFactorials(n)
	cum := d.cumulative()
	total := cum[len(cum)-1]
	acc := make([]float64, width)
	accOffset := k * d.offset

	for i, pq := range d.masses {
		if pq == 0 {
			continue
		}
		q := d.offset + i
		below := cum[i] - pq
		above := total - cum[i]
		pPref, pRej := above, below
		if mode == KeepWorst {
			pPref, pRej = below, above
		}

		var cond *Distribution
		if pPref > 0 {
			var err error
			if mode == KeepBest {
				cond, err = d.GivenGT(q)
			} else {
				cond, err = d.GivenLT(q)
			}
			if err != nil {
				return nil, err
			}
		}

		prefSum := d.point(0)
		for a := 0; a < k; a++ {
			if a > 0 {
				if cond == nil {
					break
				}
				prefSum = prefSum.Add(cond)
			}
			w := arrangementWeight(lf, n, k, a, pPref, pq, pRej)
			if w == 0 {
				continue
			}
			shift := (k-a)*q - accOffset
			for j, pm := range prefSum.masses {
				acc[prefSum.offset+j+shift] += w * pm
			}
		}
	}
	return derive(acc, accOffset, d.incomplete, d.limits), nil
}

// arrangementWeight sums, over every tie-group size e that makes q the k-th
// kept draw given a preferred draws, the multinomial probability
// n!/(a! e! b!) · pPref^a · pq^e · pRej^b with b = n-a-e.
func arrangementWeight(lf []float64, n, k, a int, pPref, pq, pRej float64) float64 {
	var w float64
	for e := k - a; e <= n-a; e++ {
		b := n - a - e
		lp, ok := logPow(pPref, a)
		if !ok {
			return 0
		}
		le, ok := logPow(pq, e)
		if !ok {
			continue
		}
		lr, ok := logPow(pRej, b)
		if !ok {
			continue
		}
		w += math.Exp(lf[n] - lf[a] - lf[e] - lf[b] + lp + le + lr)
	}
	return w
}

// logPow returns log(p^n), reporting false when p^n is zero.
func logPow(p float64, n int) (float64, bool) {
	if n == 0 {
		return 0, true
	}
	if p <= 0 {
		return 0, false
	}
	return float64(n) * math.Log(p), true
}

var (
	logFactMu    sync.Mutex
	logFactCache = []float64{0}
)

// logFactorials returns a table t with t[i] = log(i!) for i in [0, n].
func logFactorials(n int) []float64 {
	logFactMu.Lock()
	defer logFactMu.Unlock()
	for i := len(logFactCache); i <= n; i++ {
		logFactCache = append(logFactCache, logFactCache[i-1]+math.Log(float64(i)))
	}
	return logFactCache[:n+1:n+1]
}
