package evaluation

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// --- SetRecall tests ---

func TestSetRecall_AllExpectedFound(t *testing.T) {
	expected := []string{"chronicity_mismatch", "no_explicit_plan"}
	found := []string{"no_explicit_plan", "chronicity_mismatch", "unclear_documentation"}
	got := SetRecall(expected, found)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestSetRecall_SomeExpectedMissing(t *testing.T) {
	expected := []string{"chronicity_mismatch", "no_explicit_plan"}
	found := []string{"chronicity_mismatch"}
	got := SetRecall(expected, found)
	if !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestSetRecall_NothingFound(t *testing.T) {
	expected := []string{"chronicity_mismatch"}
	got := SetRecall(expected, nil)
	if !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0, got %f", got)
	}
}

func TestSetRecall_NothingExpected(t *testing.T) {
	// A clean note with a clean verdict misses nothing.
	got := SetRecall(nil, nil)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestSetRecall_NothingExpectedButFound(t *testing.T) {
	// False positives are precision's concern, not recall's.
	got := SetRecall(nil, []string{"unclear_documentation"})
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

// --- SetPrecision tests ---

func TestSetPrecision_AllFoundExpected(t *testing.T) {
	expected := []string{"chronicity_mismatch", "no_explicit_plan"}
	found := []string{"chronicity_mismatch"}
	got := SetPrecision(expected, found)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestSetPrecision_FalsePositives(t *testing.T) {
	expected := []string{"chronicity_mismatch"}
	found := []string{"chronicity_mismatch", "unclear_documentation"}
	got := SetPrecision(expected, found)
	if !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestSetPrecision_NothingFound(t *testing.T) {
	expected := []string{"chronicity_mismatch"}
	got := SetPrecision(expected, nil)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestSetPrecision_NothingExpectedButFound(t *testing.T) {
	found := []string{"unclear_documentation"}
	got := SetPrecision(nil, found)
	if !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0, got %f", got)
	}
}
