// Package likelihood implements the importance-sampled marginal
// log-likelihood kernel: the unbiased Monte Carlo estimator of
// P(obs | coi, p, eps_neg, eps_pos) that every chain block recomputes
// for its touched cells (spec §4.1).
package likelihood

import (
	"math"

	"coimcmc/lookup"
	"coimcmc/sampler"
)

// reweightEpsilon is the constant additive term spec §4.1 step 2 adds
// to every proposal weight, guaranteeing strict positivity regardless
// of observation pattern.
const reweightEpsilon = 1e-6

// ReweightAlleleFrequencies builds the importance-sampling proposal
// frequencies q from the prior allele frequencies p, the observed
// presence vector, and the error rates (spec §4.1 step 2):
//
//	q_a proportional to p_a * ((obs_a*(1-epsNeg)) + ((1-obs_a)*epsNeg)) + epsPos + 1e-6
//
// normalized to a simplex.
func ReweightAlleleFrequencies(p []float64, obs []int, epsNeg, epsPos float64) []float64 {
	q := make([]float64, len(p))
	sum := 0.0
	for a := range p {
		var emissionWeight float64
		if obs[a] != 0 {
			emissionWeight = 1 - epsNeg
		} else {
			emissionWeight = epsNeg
		}
		q[a] = p[a]*emissionWeight + epsPos + reweightEpsilon
		sum += q[a]
	}
	inv := 1 / sum
	for a := range q {
		q[a] *= inv
	}
	return q
}

// genotypeLogPMF returns, for each genotype in genotypes, the
// multinomial(coi, freqs) log-pmf:
//
//	ln Gamma(coi+1) - sum_a ln Gamma(g_a+1) + sum_a g_a * log(freqs_a + 1e-12)
//
// (spec §4.1 step 4).
func genotypeLogPMF(genotypes [][]int, coi int, freqs []float64, lut *lookup.Lookup) []float64 {
	base := lut.LnGamma(coi + 1)
	logFreqs := make([]float64, len(freqs))
	for a, f := range freqs {
		logFreqs[a] = math.Log(f + 1e-12)
	}
	out := make([]float64, len(genotypes))
	for d, g := range genotypes {
		ll := base
		for a, ga := range g {
			if ga > 0 {
				ll += float64(ga)*logFreqs[a] - lut.LnGamma(ga+1)
			}
		}
		out[d] = ll
	}
	return out
}

// emissionLogLiks returns, for each genotype in genotypes, log
// P(obs | genotype, epsNeg, epsPos) under the per-allele emission
// model of spec §4.1 step 5. The obs_a=1,g_a>0 and obs_a=0,g_a>0
// branches scale by g_a; this is not a conventional Bernoulli
// emission but is the model as specified and must be preserved
// exactly.
func emissionLogLiks(obs []int, genotypes [][]int, epsNeg, epsPos float64) []float64 {
	logTruePos := math.Log(1 - epsNeg)
	logFalsePos := math.Log(epsPos)
	logFalseNeg := math.Log(epsNeg)
	logTrueNeg := math.Log(1 - epsPos)

	out := make([]float64, len(genotypes))
	for d, g := range genotypes {
		var ll float64
		for a, o := range obs {
			ga := g[a]
			switch {
			case o != 0 && ga > 0:
				ll += float64(ga) * logTruePos
			case o != 0 && ga == 0:
				ll += logFalsePos
			case o == 0 && ga > 0:
				ll += float64(ga) * logFalseNeg
			default: // o == 0 && ga == 0
				ll += logTrueNeg
			}
		}
		out[d] = ll
	}
	return out
}

// logSumExp reduces log-weights to log(sum(exp(weights))) using the
// standard max-subtraction for numerical stability (spec §4.1 step 6,
// §7 "Numerical underflow"): if every term underflows after shifting,
// the result degenerates to the max term itself, never -Inf for
// finite inputs.
func logSumExp(weights []float64) float64 {
	max := math.Inf(-1)
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, w := range weights {
		sum += math.Exp(w - max)
	}
	return max + math.Log(sum)
}

// MarginalLogLikelihood computes an unbiased Monte Carlo estimate of
// log P(obs | coi, p, epsNeg, epsPos) via importance sampling over
// latent multilocus genotypes (spec §4.1). obs is a 0/1 presence
// vector and p a simplex, both of length A = len(obs).
func MarginalLogLikelihood(obs []int, coi int, p []float64, epsNeg, epsPos float64, lut *lookup.Lookup, samp *sampler.Sampler, requestedDepth int) float64 {
	depth := lut.Depth(coi, len(obs), requestedDepth)

	q := ReweightAlleleFrequencies(p, obs, epsNeg, epsPos)
	genotypes := samp.SampleGenotypes(coi, q, depth)

	logQ := genotypeLogPMF(genotypes, coi, q, lut)
	logPrior := genotypeLogPMF(genotypes, coi, p, lut)
	logEmission := emissionLogLiks(obs, genotypes, epsNeg, epsPos)

	weights := make([]float64, depth)
	for d := 0; d < depth; d++ {
		weights[d] = logEmission[d] + logPrior[d] - logQ[d]
	}

	return logSumExp(weights) - math.Log(float64(depth))
}
