package data

import "testing"

func validParameters() Parameters {
	return Parameters{
		ImportanceSamplingDepth: 1000,
		MaxCOI:                  25,
		EpsPos0:                 0.01,
		EpsNeg0:                 0.05,
		MaxEpsPos:               0.5,
		MaxEpsNeg:               0.5,
	}
}

func TestParametersValidate(t *testing.T) {
	p := validParameters()
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid parameters, got %v", err)
	}

	bad := p
	bad.ImportanceSamplingDepth = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for ImportanceSamplingDepth = 0")
	}

	bad = p
	bad.MaxCOI = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for MaxCOI = 0")
	}

	bad = p
	bad.MaxEpsPos = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for MaxEpsPos out of (0,1)")
	}

	bad = p
	bad.EpsPos0 = bad.MaxEpsPos
	if err := bad.Validate(); err == nil {
		t.Error("expected error for EpsPos0 >= MaxEpsPos")
	}
}

func degenerateGenotypingData() *GenotypingData {
	return &GenotypingData{
		NumLoci:    1,
		NumSamples: 1,
		NumAlleles: []int{2},
		ObservedAlleles: [][][]int{
			{{1, 0}},
		},
		ObservedCOI: []int{1},
	}
}

func TestGenotypingDataValidate(t *testing.T) {
	g := degenerateGenotypingData()
	if err := g.Validate(25); err != nil {
		t.Fatalf("expected valid data, got %v", err)
	}

	bad := degenerateGenotypingData()
	bad.NumAlleles = []int{1}
	if err := bad.Validate(25); err == nil {
		t.Error("expected error for NumAlleles < 2")
	}

	bad = degenerateGenotypingData()
	bad.ObservedAlleles[0][0][0] = 2
	if err := bad.Validate(25); err == nil {
		t.Error("expected error for non-0/1 observation")
	}

	bad = degenerateGenotypingData()
	bad.ObservedCOI[0] = 0
	if err := bad.Validate(25); err == nil {
		t.Error("expected error for ObservedCOI < 1")
	}

	bad = degenerateGenotypingData()
	bad.ObservedCOI[0] = 26
	if err := bad.Validate(25); err == nil {
		t.Error("expected error for ObservedCOI > maxCOI")
	}

	jagged := degenerateGenotypingData()
	jagged.ObservedAlleles[0] = [][]int{{1, 0}, {0, 1}}
	if err := jagged.Validate(25); err == nil {
		t.Error("expected error for jagged observation matrix")
	}
}

func TestMaxAlleles(t *testing.T) {
	g := &GenotypingData{NumAlleles: []int{2, 5, 3}}
	if g.MaxAlleles() != 5 {
		t.Errorf("MaxAlleles() = %d, want 5", g.MaxAlleles())
	}
}
