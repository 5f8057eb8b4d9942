package likelihood

import (
	"math"
	"testing"

	"coimcmc/lookup"
	"coimcmc/sampler"
)

func testLookup(t *testing.T, maxCOI, maxAlleles int) *lookup.Lookup {
	lut, err := lookup.New(maxCOI, maxAlleles, lookup.UniformSamplingDepth(maxCOI, maxAlleles, 200000))
	if err != nil {
		t.Fatalf("lookup.New: %v", err)
	}
	return lut
}

func TestReweightAlleleFrequenciesIsSimplex(t *testing.T) {
	cases := []struct {
		p              []float64
		obs            []int
		epsNeg, epsPos float64
	}{
		{[]float64{1, 0}, []int{1, 0}, 0.01, 0.01},
		{[]float64{0.25, 0.25, 0.25, 0.25}, []int{0, 0, 0, 0}, 0.3, 0.02},
		{[]float64{0, 1}, []int{0, 0}, 0.5, 0.5},
	}
	for _, c := range cases {
		q := ReweightAlleleFrequencies(c.p, c.obs, c.epsNeg, c.epsPos)
		sum := 0.0
		for _, v := range q {
			if v <= 0 {
				t.Errorf("reweighted frequency not strictly positive: %v", q)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("reweighted frequencies do not sum to 1: %v (sum=%v)", q, sum)
		}
	}
}

// enumerateCompositions lists every non-negative integer vector of
// length a summing to coi: the full support of Multinomial(coi, ·)
// over a categories.
func enumerateCompositions(coi, a int) [][]int {
	if a == 1 {
		return [][]int{{coi}}
	}
	var out [][]int
	for k := 0; k <= coi; k++ {
		for _, rest := range enumerateCompositions(coi-k, a-1) {
			g := append([]int{k}, rest...)
			out = append(out, g)
		}
	}
	return out
}

// exactMarginalLogLik brute-force-enumerates the full support of
// Multinomial(coi, p) to compute the exact marginal log-likelihood,
// used as a ground truth for the importance-sampled estimator at
// small coi/A (spec §8 property/scenario S6).
func exactMarginalLogLik(obs []int, coi int, p []float64, epsNeg, epsPos float64, lut *lookup.Lookup) float64 {
	genotypes := enumerateCompositions(coi, len(p))
	logPrior := genotypeLogPMF(genotypes, coi, p, lut)
	logEmission := emissionLogLiks(obs, genotypes, epsNeg, epsPos)
	weights := make([]float64, len(genotypes))
	for i := range genotypes {
		weights[i] = logPrior[i] + logEmission[i]
	}
	return logSumExp(weights)
}

func TestMarginalLogLikelihoodConvergesToExactEnumeration(t *testing.T) {
	lut := testLookup(t, 4, 4)
	samp := sampler.New(7)

	p := []float64{0.4, 0.3, 0.2, 0.1}
	obs := []int{1, 1, 0, 0}
	coi := 3
	epsNeg, epsPos := 0.05, 0.02

	want := exactMarginalLogLik(obs, coi, p, epsNeg, epsPos, lut)
	got := MarginalLogLikelihood(obs, coi, p, epsNeg, epsPos, lut, samp, 200000)

	if math.Abs(got-want) > 0.05 {
		t.Errorf("MarginalLogLikelihood = %v, want approximately %v (exact enumeration)", got, want)
	}
}

func TestMarginalLogLikelihoodDegenerateLocus(t *testing.T) {
	lut := testLookup(t, 5, 2)
	samp := sampler.New(11)

	p := []float64{1, 0}
	obs := []int{1, 0}
	got := MarginalLogLikelihood(obs, 1, p, 0.01, 0.01, lut, samp, 5000)
	if math.IsInf(got, -1) || math.IsNaN(got) {
		t.Fatalf("MarginalLogLikelihood returned non-finite value: %v", got)
	}
	// with m=1, p=[1,0] and a matching observation, the likelihood
	// should be close to log(1-eps_neg) + log(1-eps_pos): the present
	// allele is detected and the absent one is not falsely called.
	want := math.Log(1-0.01) + math.Log(1-0.01)
	if math.Abs(got-want) > 0.05 {
		t.Errorf("MarginalLogLikelihood = %v, want approximately %v", got, want)
	}
}

func TestLogSumExpHandlesUnderflow(t *testing.T) {
	weights := []float64{-1000, -1001, -999}
	got := logSumExp(weights)
	if math.IsInf(got, -1) || math.IsNaN(got) {
		t.Fatalf("logSumExp underflowed to %v", got)
	}
	if got < -1000 || got > -998 {
		t.Errorf("logSumExp(%v) = %v, out of expected range", weights, got)
	}
}

func TestLogSumExpAllNegativeInfinity(t *testing.T) {
	weights := []float64{math.Inf(-1), math.Inf(-1)}
	got := logSumExp(weights)
	if !math.IsInf(got, -1) {
		t.Errorf("logSumExp of all -Inf should be -Inf, got %v", got)
	}
}
