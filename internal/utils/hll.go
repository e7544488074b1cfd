package utils

import (
	"github.com/axiomhq/hyperloglog"
)

// NewAddressSketch returns an empty sketch for unique address counting.
// Precision 16 keeps the standard error around 0.8%.
func NewAddressSketch() *hyperloglog.Sketch {
	return hyperloglog.New16()
}

// InsertAddress adds a canonicalized address to the sketch, ignoring empty input
func InsertAddress(sketch *hyperloglog.Sketch, addr string) {
	if sketch == nil {
		return
	}
	if canonical := CanonicalAddress(addr); canonical != "" {
		sketch.Insert([]byte(canonical))
	}
}

// MergeSketches returns a new sketch holding the union of all inputs.
// Inputs are left untouched so callers can merge the same sketches repeatedly.
// A sketch of another precision fails the merge.
func MergeSketches(sketches ...*hyperloglog.Sketch) (*hyperloglog.Sketch, error) {
	merged := NewAddressSketch()
	for i, s := range sketches {
		if s == nil {
			continue
		}
		if err := merged.Merge(s); err != nil {
			return nil, WrapError(err, ErrorTypeInternal, "SKETCH_MERGE", "failed to merge address sketches", StatsComponent).
				WithContext("sketch", i)
		}
	}
	return merged, nil
}

// EstimateUnique returns the sketch cardinality, zero for nil
func EstimateUnique(sketch *hyperloglog.Sketch) int64 {
	if sketch == nil {
		return 0
	}
	return int64(sketch.Estimate())
}
