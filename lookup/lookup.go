// Package lookup provides the small precomputed tables the likelihood
// kernel leans on: a log-Gamma table over small integers, and a
// per-(COI, #alleles) cap on importance-sample depth.
package lookup

import (
	"fmt"
	"math"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("lookup")

// Lookup holds the immutable tables consumed by the likelihood kernel.
//
// LGamma[k] = ln Gamma(k) for k in [0, KMax]. SamplingDepth[c][a] is a
// host-supplied cap on the number of distinct multinomial outcomes
// worth drawing for a cell with COI c and a alleles; the rule mapping
// (c, a) to a cap is not defined by this package (see spec §9, Open
// Questions) — callers build the table however fits their workload
// and New only validates its shape.
type Lookup struct {
	LGamma        []float64
	SamplingDepth [][]int
}

// NewLGammaTable builds LGamma[k] = ln Gamma(k) for k in [0, kMax].
func NewLGammaTable(kMax int) []float64 {
	t := make([]float64, kMax+1)
	for k := 0; k <= kMax; k++ {
		g, sign := math.Lgamma(float64(k))
		if sign < 0 {
			// Gamma is positive on the non-negative integers; this
			// would only trip on a math.Lgamma implementation bug.
			log.Noticef("lgamma(%d) returned negative sign", k)
		}
		t[k] = g
	}
	return t
}

// New builds a Lookup from a maximum COI, a maximum per-locus allele
// count, and a host-supplied sampling-depth table. kMax is computed as
// maxCOI + maxAlleles + 2, matching the bound spec.md §3 requires
// (K_max >= max_coi + max(A_j) + 2).
func New(maxCOI, maxAlleles int, samplingDepth [][]int) (*Lookup, error) {
	if maxCOI < 1 {
		return nil, fmt.Errorf("lookup: maxCOI must be >= 1, got %d", maxCOI)
	}
	if maxAlleles < 2 {
		return nil, fmt.Errorf("lookup: maxAlleles must be >= 2, got %d", maxAlleles)
	}
	if len(samplingDepth) < maxCOI+1 {
		return nil, fmt.Errorf("lookup: samplingDepth must have at least %d rows, got %d", maxCOI+1, len(samplingDepth))
	}
	for c, row := range samplingDepth {
		if len(row) < maxAlleles+1 {
			return nil, fmt.Errorf("lookup: samplingDepth row %d must have at least %d columns, got %d", c, maxAlleles+1, len(row))
		}
		for a, d := range row {
			if d < 0 {
				return nil, fmt.Errorf("lookup: samplingDepth[%d][%d] must be >= 0, got %d", c, a, d)
			}
		}
	}

	kMax := maxCOI + maxAlleles + 2
	l := &Lookup{
		LGamma:        NewLGammaTable(kMax),
		SamplingDepth: samplingDepth,
	}
	log.Debugf("built lookup: kMax=%d maxCOI=%d maxAlleles=%d", kMax, maxCOI, maxAlleles)
	return l, nil
}

// Depth returns min(requestedDepth, SamplingDepth[coi][numAlleles]).
func (l *Lookup) Depth(coi, numAlleles, requestedDepth int) int {
	limit := l.SamplingDepth[coi][numAlleles]
	if requestedDepth < limit {
		return requestedDepth
	}
	return limit
}

// LnGamma returns LGamma[k], the precomputed ln Gamma(k).
func (l *Lookup) LnGamma(k int) float64 {
	return l.LGamma[k]
}

// UniformSamplingDepth builds a samplingDepth table with a constant
// cap everywhere, the simplest host policy: never let the importance
// sample depth exceed cap regardless of (coi, numAlleles).
func UniformSamplingDepth(maxCOI, maxAlleles, limit int) [][]int {
	rows := make([][]int, maxCOI+1)
	for c := range rows {
		row := make([]int, maxAlleles+1)
		for a := range row {
			row[a] = limit
		}
		rows[c] = row
	}
	return rows
}
