package evaluation

// SetRecall computes the fraction of expected labels present in found.
// Returns 1.0 when expected is empty: nothing was required, nothing
// was missed.
func SetRecall(expected, found []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	foundSet := make(map[string]struct{}, len(found))
	for _, f := range found {
		foundSet[f] = struct{}{}
	}

	hits := 0
	for _, e := range expected {
		if _, ok := foundSet[e]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(expected))
}

// SetPrecision computes the fraction of found labels that were
// expected. Returns 1.0 when found is empty: no false positives were
// produced.
func SetPrecision(expected, found []string) float64 {
	if len(found) == 0 {
		return 1.0
	}

	expectedSet := make(map[string]struct{}, len(expected))
	for _, e := range expected {
		expectedSet[e] = struct{}{}
	}

	hits := 0
	for _, f := range found {
		if _, ok := expectedSet[f]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(found))
}
