// Package sampler provides the single seedable RNG facade every other
// component draws from: Dirichlet, logit-normal and Beta/Poisson
// density helpers, the geometric COI-delta proposal, the log-uniform
// MH acceptance draw, and cached multinomial genotype draws.
//
// All randomness in the core flows through one Sampler's engine; no
// other package holds an RNG (spec §4.3, §5).
package sampler

import (
	"math"

	"github.com/op/go-logging"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

var log = logging.MustGetLogger("sampler")

// TargetAcceptance is the acceptance rate the Robbins-Monro adaptation
// in the chain package targets. It is defined here and read only by
// the chain package's block updates.
const TargetAcceptance = 0.23

// Sampler wraps a single golang.org/x/exp/rand engine and the scratch state needed
// to draw cheaply from it repeatedly.
type Sampler struct {
	rng *rand.Rand

	// genotypeCache memoizes the D x A count-vector buffer per COI so
	// that repeated calls with the same coi don't reallocate. Callers
	// must not retain a borrowed slice across calls: the next call
	// with the same coi overwrites it in place.
	genotypeCache map[int][][]int
}

// New creates a Sampler seeded deterministically from seed. Two
// Samplers built with the same seed and driven through the same
// sequence of calls produce byte-identical draws (spec §8, property 7).
func New(seed int64) *Sampler {
	return &Sampler{
		rng:           rand.New(rand.NewSource(uint64(seed))),
		genotypeCache: make(map[int][][]int),
	}
}

// nonZeroUniform returns a draw in (0, 1), redrawing on the (measure
// zero but representable) case U == 0 so callers may safely take
// math.Log of it.
func (s *Sampler) nonZeroUniform() float64 {
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	return u
}

// LogUniform returns log(U), U ~ Uniform(0,1): the draw every MH block
// compares Delta against.
func (s *Sampler) LogUniform() float64 {
	return math.Log(s.nonZeroUniform())
}

// COIDelta draws the signed step used to propose a new COI: delta =
// sign * (G+1), sign in {-1,+1} with equal probability and G ~
// Geometric(1/(1+mu)). By construction delta is never 0; the "delta=0
// auto-accept" branch in the chain's m-block exists for forward
// compatibility with an alternate delta distribution (spec §4.3,
// §9) and is not reachable through this sampler.
func (s *Sampler) COIDelta(mu float64) int {
	if mu < 0 {
		mu = 0
	}
	p := 1 / (1 + mu)
	u := s.nonZeroUniform()
	// Inverse-CDF draw for a Geometric(p) variable supported on
	// {0,1,2,...}. gonum's distuv has no Geometric distribution, so
	// this one distribution is drawn by hand against the shared
	// engine rather than through distuv.
	g := 0
	if p < 1 {
		g = int(math.Floor(math.Log(u) / math.Log1p(-p)))
	}
	sign := 1
	if s.rng.Float64() < 0.5 {
		sign = -1
	}
	return sign * (g + 1)
}

// pivotLogit returns the logit coordinates of a simplex p against its
// last entry as pivot: logit_a = log(p_a / p_last) for a < len(p)-1.
func pivotLogit(p []float64) []float64 {
	n := len(p)
	logits := make([]float64, n-1)
	pivot := p[n-1]
	for a := 0; a < n-1; a++ {
		logits[a] = math.Log(p[a] / pivot)
	}
	return logits
}

// simplexFromLogits inverts pivotLogit: exponentiate the non-pivot
// logits, fix the pivot logit at 0, and normalize back to a simplex.
func simplexFromLogits(logits []float64) []float64 {
	n := len(logits) + 1
	out := make([]float64, n)
	sum := 1.0 // pivot contributes exp(0) = 1
	for a := 0; a < n-1; a++ {
		out[a] = math.Exp(logits[a])
		sum += out[a]
	}
	out[n-1] = 1
	for a := range out {
		out[a] /= sum
	}
	return out
}

// AlleleFrequencyProposal proposes a new simplex from p by adding
// independent N(0, variance) noise to every logit coordinate but the
// pivot (spec §4.3). The noise is added to log p_a directly and the
// result normalized by its log-sum-exp; normalization cancels the
// shared log p_last offset, so this equals the pivotLogit /
// simplexFromLogits round trip when p_last > 0 and still yields a
// simplex when p_last == 0. Entries with p_a == 0 stay 0.
func (s *Sampler) AlleleFrequencyProposal(p []float64, variance float64) []float64 {
	logs := make([]float64, len(p))
	noise := distuv.Normal{Mu: 0, Sigma: math.Sqrt(variance), Src: s.rng}
	for a := range logs {
		logs[a] = math.Log(p[a])
		if a < len(p)-1 {
			logs[a] += noise.Rand()
		}
	}
	lse := floats.LogSumExp(logs)
	for a := range logs {
		logs[a] = math.Exp(logs[a] - lse)
	}
	return logs
}

// scalarLogit/scalarInvLogit map (0, max) to/from the real line, the
// scalar analogue of pivotLogit/simplexFromLogits used for the error
// rate proposals.
func scalarLogit(x, max float64) float64 {
	return math.Log(x / (max - x))
}

func scalarInvLogit(l, max float64) float64 {
	e := math.Exp(l)
	return max * e / (1 + e)
}

// ScalarProposal proposes a new value in (0, max) via logit-normal
// noise around curr, used by both error-rate blocks (spec §4.3).
func (s *Sampler) ScalarProposal(curr, variance, max float64) float64 {
	l := scalarLogit(curr, max)
	noise := distuv.Normal{Mu: 0, Sigma: math.Sqrt(variance), Src: s.rng}
	l += noise.Rand()
	return scalarInvLogit(l, max)
}

// Dirichlet draws a simplex from Dirichlet(alpha). Used as the
// degenerate-locus fallback when empirical allele counts can't seed
// p[j] (see SPEC_FULL.md, "Supplemented features").
func (s *Sampler) Dirichlet(alpha []float64) []float64 {
	d := distmv.NewDirichlet(alpha, s.rng)
	return d.Rand(nil)
}

// CoiLogPrior evaluates a Poisson(mean) log-density at coi. Exposed
// for host-side posterior/diagnostic use; the chain's own accept rule
// (spec §4.2) does not call this (see SPEC_FULL.md, "Supplemented
// features" #2).
func (s *Sampler) CoiLogPrior(coi int, mean float64) float64 {
	pois := distuv.Poisson{Lambda: mean, Src: s.rng}
	return pois.LogProb(float64(coi))
}

// EpsilonLogPrior evaluates a Beta(alpha, beta) log-density at x.
// Exposed for the same reason as CoiLogPrior.
func (s *Sampler) EpsilonLogPrior(x, alpha, beta float64) float64 {
	b := distuv.Beta{Alpha: alpha, Beta: beta, Src: s.rng}
	return b.LogProb(x)
}

// SampleGenotypes draws depth latent genotypes from Multinomial(coi,
// q), returning depth count-vectors of length len(q) whose entries
// sum to coi. The returned slice is backed by a per-coi scratch buffer
// that the next call for the same coi overwrites; callers must not
// retain it across calls (spec §4.3).
func (s *Sampler) SampleGenotypes(coi int, q []float64, depth int) [][]int {
	buf := s.genotypeBuffer(coi, depth, len(q))
	cat := distuv.NewCategorical(q, s.rng)
	for d := 0; d < depth; d++ {
		row := buf[d]
		for a := range row {
			row[a] = 0
		}
		for t := 0; t < coi; t++ {
			a := int(cat.Rand())
			row[a]++
		}
	}
	return buf[:depth]
}

// genotypeBuffer returns the cached scratch buffer for coi, growing it
// (rows and/or row width) as needed and setting each of the first
// depth rows to length width.
func (s *Sampler) genotypeBuffer(coi, depth, width int) [][]int {
	buf, ok := s.genotypeCache[coi]
	if !ok || len(buf) < depth {
		grown := make([][]int, depth)
		copy(grown, buf)
		for d := len(buf); d < depth; d++ {
			grown[d] = make([]int, width)
		}
		buf = grown
		log.Debugf("grew genotype buffer for coi=%d to depth=%d", coi, depth)
	}
	for d := 0; d < depth; d++ {
		if cap(buf[d]) < width {
			buf[d] = make([]int, width)
		} else {
			buf[d] = buf[d][:width]
		}
	}
	s.genotypeCache[coi] = buf
	return buf
}
