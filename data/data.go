// Package data holds the immutable configuration and observation
// containers a Chain is built from: Parameters and GenotypingData.
package data

import (
	"fmt"
)

// Parameters is the construction-time configuration for a Chain.
type Parameters struct {
	// ImportanceSamplingDepth is the number of latent genotypes drawn
	// per likelihood evaluation (D), subject to the lookup's cap.
	ImportanceSamplingDepth int
	// MaxCOI is the upper bound on any sample's complexity of infection.
	MaxCOI int
	// EpsPos0/EpsNeg0 are the initial error rates.
	EpsPos0, EpsNeg0 float64
	// MaxEpsPos/MaxEpsNeg bound the error rates, each in (0, 1).
	MaxEpsPos, MaxEpsNeg float64
}

// Validate checks Parameters against spec §6/§7 and returns a
// descriptive error on the first violation found.
func (p Parameters) Validate() error {
	if p.ImportanceSamplingDepth < 1 {
		return fmt.Errorf("data: ImportanceSamplingDepth must be >= 1, got %d", p.ImportanceSamplingDepth)
	}
	if p.MaxCOI < 1 {
		return fmt.Errorf("data: MaxCOI must be >= 1, got %d", p.MaxCOI)
	}
	if !(p.MaxEpsPos > 0 && p.MaxEpsPos < 1) {
		return fmt.Errorf("data: MaxEpsPos must be in (0,1), got %v", p.MaxEpsPos)
	}
	if !(p.MaxEpsNeg > 0 && p.MaxEpsNeg < 1) {
		return fmt.Errorf("data: MaxEpsNeg must be in (0,1), got %v", p.MaxEpsNeg)
	}
	if !(p.EpsPos0 > 0 && p.EpsPos0 < p.MaxEpsPos) {
		return fmt.Errorf("data: EpsPos0 must be in (0, MaxEpsPos=%v), got %v", p.MaxEpsPos, p.EpsPos0)
	}
	if !(p.EpsNeg0 > 0 && p.EpsNeg0 < p.MaxEpsNeg) {
		return fmt.Errorf("data: EpsNeg0 must be in (0, MaxEpsNeg=%v), got %v", p.MaxEpsNeg, p.EpsNeg0)
	}
	return nil
}

// GenotypingData is the observed presence/absence genotyping matrix,
// immutable for the life of a Chain.
type GenotypingData struct {
	// NumLoci is L, NumSamples is N.
	NumLoci, NumSamples int
	// NumAlleles[j] is A_j >= 2, the allele count at locus j.
	NumAlleles []int
	// ObservedAlleles[j][i] is a 0/1 presence vector of length
	// NumAlleles[j] for locus j, sample i.
	ObservedAlleles [][][]int
	// ObservedCOI[i] is a data-driven initial COI for sample i.
	ObservedCOI []int
}

// MaxAlleles returns the largest NumAlleles[j].
func (g *GenotypingData) MaxAlleles() int {
	max := 0
	for _, a := range g.NumAlleles {
		if a > max {
			max = a
		}
	}
	return max
}

// Validate checks GenotypingData against spec §3/§7: locus/sample
// counts, per-locus allele counts, a non-jagged observation matrix
// whose entries are 0/1, and observed COIs within [1, maxCOI].
func (g *GenotypingData) Validate(maxCOI int) error {
	if g.NumLoci < 1 {
		return fmt.Errorf("data: NumLoci must be >= 1, got %d", g.NumLoci)
	}
	if g.NumSamples < 1 {
		return fmt.Errorf("data: NumSamples must be >= 1, got %d", g.NumSamples)
	}
	if len(g.NumAlleles) != g.NumLoci {
		return fmt.Errorf("data: NumAlleles has %d entries, want %d", len(g.NumAlleles), g.NumLoci)
	}
	for j, a := range g.NumAlleles {
		if a < 2 {
			return fmt.Errorf("data: NumAlleles[%d] must be >= 2, got %d", j, a)
		}
	}
	if len(g.ObservedAlleles) != g.NumLoci {
		return fmt.Errorf("data: ObservedAlleles has %d loci, want %d", len(g.ObservedAlleles), g.NumLoci)
	}
	for j, perSample := range g.ObservedAlleles {
		if len(perSample) != g.NumSamples {
			return fmt.Errorf("data: ObservedAlleles[%d] has %d samples, want %d", j, len(perSample), g.NumSamples)
		}
		for i, obs := range perSample {
			if len(obs) != g.NumAlleles[j] {
				return fmt.Errorf("data: ObservedAlleles[%d][%d] has length %d, want %d", j, i, len(obs), g.NumAlleles[j])
			}
			for a, v := range obs {
				if v != 0 && v != 1 {
					return fmt.Errorf("data: ObservedAlleles[%d][%d][%d] = %d, must be 0 or 1", j, i, a, v)
				}
			}
		}
	}
	if len(g.ObservedCOI) != g.NumSamples {
		return fmt.Errorf("data: ObservedCOI has %d entries, want %d", len(g.ObservedCOI), g.NumSamples)
	}
	for i, m := range g.ObservedCOI {
		if m < 1 || m > maxCOI {
			return fmt.Errorf("data: ObservedCOI[%d] = %d, must be in [1, %d]", i, m, maxCOI)
		}
	}
	return nil
}
