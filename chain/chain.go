// Package chain implements the joint COI / allele-frequency / error-rate
// state machine: the four adaptive Metropolis-Hastings blocks (spec
// §4.2) driven on top of the importance-sampled likelihood kernel in
// package likelihood.
package chain

import (
	"fmt"
	"math"

	"github.com/op/go-logging"

	"coimcmc/data"
	"coimcmc/likelihood"
	"coimcmc/lookup"
	"coimcmc/sampler"
)

var log = logging.MustGetLogger("chain")

// UNDERFLO floors every adaptive proposal variance (spec §3, §7).
const UNDERFLO = 1e-100

// initialEpsilonVariance is the initial logit-normal proposal variance
// for both error-rate blocks, matching the reference implementation's
// starting point of 0.05.
const initialEpsilonVariance = 0.05

// Chain holds the joint MCMC state for one sampler run: sample COIs,
// per-locus allele frequencies, the two scalar error rates, the cached
// log-likelihood matrices, and the adaptive proposal state for all
// four blocks. A Chain owns its Sampler, its Parameters snapshot, and
// its llik caches exclusively; nothing else holds an RNG (spec §4.3,
// §9).
type Chain struct {
	gd     *data.GenotypingData
	lookup *lookup.Lookup
	params data.Parameters
	samp   *sampler.Sampler

	m      []int
	p      [][]float64
	epsNeg float64
	epsPos float64

	llikOld [][]float64
	llikNew [][]float64

	mPropMean []float64
	pPropVar  []float64
	epsPosVar float64
	epsNegVar float64

	mAccept      []int
	pAccept      []int
	epsPosAccept int
	epsNegAccept int
}

// New constructs a Chain from observations, lookup tables, and
// parameters (spec §6, "Construction"). It fails fast on any
// construction-time validation error (spec §7) and never returns a
// partially-built Chain.
func New(gd *data.GenotypingData, lut *lookup.Lookup, params data.Parameters, seed int64) (*Chain, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}
	if err := gd.Validate(params.MaxCOI); err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}

	c := &Chain{
		gd:        gd,
		lookup:    lut,
		params:    params,
		samp:      sampler.New(seed),
		epsNeg:    params.EpsNeg0,
		epsPos:    params.EpsPos0,
		epsPosVar: initialEpsilonVariance,
		epsNegVar: initialEpsilonVariance,
	}

	c.initializeM()
	c.initializeP()
	c.initializeLikelihood()

	log.Infof("chain initialized: L=%d N=%d maxCOI=%d", gd.NumLoci, gd.NumSamples, params.MaxCOI)
	return c, nil
}

func (c *Chain) initializeM() {
	c.m = make([]int, c.gd.NumSamples)
	copy(c.m, c.gd.ObservedCOI)
	c.mAccept = make([]int, c.gd.NumSamples)
	c.mPropMean = make([]float64, c.gd.NumSamples)
	for i := range c.mPropMean {
		c.mPropMean[i] = 1
	}
}

// initializeP seeds p[j] from empirical per-locus allele counts,
// p[j][a] = count(a) / total, the normalized counter array spec §9
// calls out (replacing the original's double-length total_locus_alleles
// vector with a plain length-A_j counter). When a locus has no observed
// alleles at all (total == 0 — every sample's observation is all-zero),
// dividing by zero is avoided by falling back to a draw from
// Dirichlet(1,...,1), a uniform-simplex prior (SPEC_FULL.md,
// "Supplemented features" #1).
func (c *Chain) initializeP() {
	c.p = make([][]float64, c.gd.NumLoci)
	c.pAccept = make([]int, c.gd.NumLoci)
	c.pPropVar = make([]float64, c.gd.NumLoci)

	for j := 0; j < c.gd.NumLoci; j++ {
		a := c.gd.NumAlleles[j]
		counts := make([]int, a)
		total := 0
		for i := 0; i < c.gd.NumSamples; i++ {
			obs := c.gd.ObservedAlleles[j][i]
			for k, v := range obs {
				counts[k] += v
				total += v
			}
		}

		pj := make([]float64, a)
		if total == 0 {
			log.Infof("locus %d has no observed alleles; drawing p[%d] from a uniform Dirichlet fallback", j, j)
			ones := make([]float64, a)
			for k := range ones {
				ones[k] = 1
			}
			pj = c.samp.Dirichlet(ones)
		} else {
			for k, cnt := range counts {
				pj[k] = float64(cnt) / float64(total)
			}
		}
		c.p[j] = pj
		c.pPropVar[j] = 1
	}
}

func (c *Chain) initializeLikelihood() {
	c.llikOld = make([][]float64, c.gd.NumLoci)
	c.llikNew = make([][]float64, c.gd.NumLoci)
	for j := 0; j < c.gd.NumLoci; j++ {
		c.llikOld[j] = make([]float64, c.gd.NumSamples)
		c.llikNew[j] = make([]float64, c.gd.NumSamples)
		for i := 0; i < c.gd.NumSamples; i++ {
			ll := c.marginalLlik(j, i, c.m[i], c.p[j], c.epsNeg, c.epsPos)
			c.llikOld[j][i] = ll
			c.llikNew[j][i] = ll
		}
	}
}

func (c *Chain) marginalLlik(locus, sample, coi int, p []float64, epsNeg, epsPos float64) float64 {
	obs := c.gd.ObservedAlleles[locus][sample]
	return likelihood.MarginalLogLikelihood(obs, coi, p, epsNeg, epsPos, c.lookup, c.samp, c.params.ImportanceSamplingDepth)
}

// mhStep runs the shared shape of every block in spec §4.2: recompute
// the touched cells to get (sumNew, sumOld), accept iff the chain's
// shared log-uniform draw is <= the log-likelihood delta, commit on
// accept, and always run exactly one of onAccept/onReject. This is the
// single higher-order routine spec §9's "Polymorphism" note asks the
// four blocks to share, rather than a class hierarchy per block.
func (c *Chain) mhStep(recompute func() (sumNew, sumOld float64), commit, onAccept, onReject func()) bool {
	sumNew, sumOld := recompute()
	if c.samp.LogUniform() <= sumNew-sumOld {
		commit()
		onAccept()
		return true
	}
	onReject()
	return false
}

// Step advances all four blocks once, in the fixed order m -> p ->
// eps_pos -> eps_neg (spec §4.2). iteration must be a positive integer;
// it is the Robbins-Monro step index, used as 1/sqrt(iteration) in
// every block's adaptation.
func (c *Chain) Step(iteration int) {
	c.updateM(iteration)
	c.updateP(iteration)
	c.updateEpsPos(iteration)
	c.updateEpsNeg(iteration)
}

func (c *Chain) updateM(iteration int) {
	step := 1 / math.Sqrt(float64(iteration))
	for i := 0; i < c.gd.NumSamples; i++ {
		delta := c.samp.COIDelta(c.mPropMean[i])
		prop := c.m[i] + delta

		if delta == 0 {
			// Unreachable through sampler.Sampler.COIDelta (it never
			// returns 0) but kept per spec §4.2/§9 for forward
			// compatibility with an alternate delta distribution.
			c.mPropMean[i] += (1 - sampler.TargetAcceptance) * step
			c.mAccept[i]++
			continue
		}
		if prop < 1 || prop > c.params.MaxCOI {
			continue // implicit reject, no adaptation (spec §7)
		}

		c.mhStep(
			func() (float64, float64) {
				var sumNew, sumOld float64
				for locus := 0; locus < c.gd.NumLoci; locus++ {
					ll := c.marginalLlik(locus, i, prop, c.p[locus], c.epsNeg, c.epsPos)
					c.llikNew[locus][i] = ll
					sumNew += ll
					sumOld += c.llikOld[locus][i]
				}
				return sumNew, sumOld
			},
			func() {
				c.m[i] = prop
				for locus := 0; locus < c.gd.NumLoci; locus++ {
					c.llikOld[locus][i] = c.llikNew[locus][i]
				}
			},
			func() {
				c.mPropMean[i] += (1 - sampler.TargetAcceptance) * step
				c.mAccept[i]++
			},
			func() {
				c.mPropMean[i] -= sampler.TargetAcceptance * step
				if c.mPropMean[i] < 0 {
					c.mPropMean[i] = 0
					log.Debugf("sample %d: m_prop_mean clamped to 0", i)
				}
			},
		)
	}
}

func (c *Chain) updateP(iteration int) {
	step := 1 / math.Sqrt(float64(iteration))
	for locus := 0; locus < c.gd.NumLoci; locus++ {
		propP := c.samp.AlleleFrequencyProposal(c.p[locus], c.pPropVar[locus])

		c.mhStep(
			func() (float64, float64) {
				var sumNew, sumOld float64
				for i := 0; i < c.gd.NumSamples; i++ {
					ll := c.marginalLlik(locus, i, c.m[i], propP, c.epsNeg, c.epsPos)
					c.llikNew[locus][i] = ll
					sumNew += ll
					sumOld += c.llikOld[locus][i]
				}
				return sumNew, sumOld
			},
			func() {
				c.p[locus] = propP
				copy(c.llikOld[locus], c.llikNew[locus])
			},
			func() {
				c.pAccept[locus]++
				c.pPropVar[locus] = math.Exp(math.Log(c.pPropVar[locus]) + (1-sampler.TargetAcceptance)*step)
			},
			func() {
				c.pPropVar[locus] = math.Exp(math.Log(c.pPropVar[locus]) - sampler.TargetAcceptance*step)
				if c.pPropVar[locus] < UNDERFLO {
					c.pPropVar[locus] = UNDERFLO
					log.Debugf("locus %d: p_prop_var floored at UNDERFLO", locus)
				}
			},
		)
	}
}

func (c *Chain) updateEpsPos(iteration int) {
	step := 1 / math.Sqrt(float64(iteration))
	prop := c.samp.ScalarProposal(c.epsPos, c.epsPosVar, c.params.MaxEpsPos)
	if prop <= 0 || prop >= c.params.MaxEpsPos {
		return // out-of-range proposal: implicit reject, no adaptation (spec §7)
	}

	c.mhStep(
		func() (float64, float64) {
			var sumNew, sumOld float64
			for locus := 0; locus < c.gd.NumLoci; locus++ {
				for i := 0; i < c.gd.NumSamples; i++ {
					ll := c.marginalLlik(locus, i, c.m[i], c.p[locus], c.epsNeg, prop)
					c.llikNew[locus][i] = ll
					sumNew += ll
					sumOld += c.llikOld[locus][i]
				}
			}
			return sumNew, sumOld
		},
		func() {
			c.epsPos = prop
			for locus := range c.llikOld {
				copy(c.llikOld[locus], c.llikNew[locus])
			}
		},
		func() {
			c.epsPosAccept++
			c.epsPosVar += (1 - sampler.TargetAcceptance) * step
		},
		func() {
			c.epsPosVar -= sampler.TargetAcceptance * step
			if c.epsPosVar < UNDERFLO {
				c.epsPosVar = UNDERFLO
				log.Debug("eps_pos_var floored at UNDERFLO")
			}
		},
	)
}

func (c *Chain) updateEpsNeg(iteration int) {
	step := 1 / math.Sqrt(float64(iteration))
	prop := c.samp.ScalarProposal(c.epsNeg, c.epsNegVar, c.params.MaxEpsNeg)
	if prop <= 0 || prop >= c.params.MaxEpsNeg {
		return
	}

	c.mhStep(
		func() (float64, float64) {
			var sumNew, sumOld float64
			for locus := 0; locus < c.gd.NumLoci; locus++ {
				for i := 0; i < c.gd.NumSamples; i++ {
					ll := c.marginalLlik(locus, i, c.m[i], c.p[locus], prop, c.epsPos)
					c.llikNew[locus][i] = ll
					sumNew += ll
					sumOld += c.llikOld[locus][i]
				}
			}
			return sumNew, sumOld
		},
		func() {
			c.epsNeg = prop
			for locus := range c.llikOld {
				copy(c.llikOld[locus], c.llikNew[locus])
			}
		},
		func() {
			c.epsNegAccept++
			c.epsNegVar += (1 - sampler.TargetAcceptance) * step
		},
		func() {
			c.epsNegVar -= sampler.TargetAcceptance * step
			if c.epsNegVar < UNDERFLO {
				c.epsNegVar = UNDERFLO
				log.Debug("eps_neg_var floored at UNDERFLO")
			}
		},
	)
}

// M returns a snapshot of the per-sample COI vector.
func (c *Chain) M() []int {
	out := make([]int, len(c.m))
	copy(out, c.m)
	return out
}

// P returns a snapshot of the per-locus allele-frequency simplices.
func (c *Chain) P() [][]float64 {
	out := make([][]float64, len(c.p))
	for j, pj := range c.p {
		row := make([]float64, len(pj))
		copy(row, pj)
		out[j] = row
	}
	return out
}

// EpsPos returns the current false-positive error rate.
func (c *Chain) EpsPos() float64 { return c.epsPos }

// EpsNeg returns the current false-negative error rate.
func (c *Chain) EpsNeg() float64 { return c.epsNeg }

// Llik returns the sum of llik_old, the chain's current total
// log-likelihood (spec §6, "get_llik").
func (c *Chain) Llik() float64 {
	var sum float64
	for _, row := range c.llikOld {
		for _, v := range row {
			sum += v
		}
	}
	return sum
}

// MAccept returns a snapshot of the per-sample m-block acceptance
// counters.
func (c *Chain) MAccept() []int {
	out := make([]int, len(c.mAccept))
	copy(out, c.mAccept)
	return out
}

// PAccept returns a snapshot of the per-locus p-block acceptance
// counters.
func (c *Chain) PAccept() []int {
	out := make([]int, len(c.pAccept))
	copy(out, c.pAccept)
	return out
}

// EpsPosAccept returns the eps_pos block's acceptance counter.
func (c *Chain) EpsPosAccept() int { return c.epsPosAccept }

// EpsNegAccept returns the eps_neg block's acceptance counter.
func (c *Chain) EpsNegAccept() int { return c.epsNegAccept }

// PPropVar returns a snapshot of the per-locus allele-frequency
// proposal variances, exposed mainly so tests can check the
// UNDERFLO floor (spec §8 property 6).
func (c *Chain) PPropVar() []float64 {
	out := make([]float64, len(c.pPropVar))
	copy(out, c.pPropVar)
	return out
}

// EpsPosVar and EpsNegVar return the current scalar proposal
// variances for the two error-rate blocks.
func (c *Chain) EpsPosVar() float64 { return c.epsPosVar }
func (c *Chain) EpsNegVar() float64 { return c.epsNegVar }
