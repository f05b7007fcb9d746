package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelHierarchy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		parent error
	}{
		{"product not found", ErrProductNotFound, ErrNotFound},
		{"category not found", ErrCategoryNotFound, ErrNotFound},
		{"cycle", ErrCycle, ErrValidation},
		{"circuit open", ErrCircuitOpen, ErrPermanentDependency},
		{"dim mismatch", ErrVectorDimMismatch, ErrPermanentDependency},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("layer: %w", tc.err)
			if !errors.Is(wrapped, tc.parent) {
				t.Errorf("%v should match %v", tc.err, tc.parent)
			}
		})
	}
}

func TestTransientPermanent(t *testing.T) {
	base := errors.New("socket closed")

	tr := Transient(base)
	if !IsTransient(tr) {
		t.Error("Transient should be transient")
	}
	if !errors.Is(tr, base) {
		t.Error("Transient must keep the cause")
	}

	pe := Permanent(base)
	if IsTransient(pe) {
		t.Error("Permanent must not be transient")
	}
	if !errors.Is(pe, ErrPermanentDependency) {
		t.Error("Permanent should match ErrPermanentDependency")
	}

	if IsTransient(Transient(ErrVectorDimMismatch)) {
		t.Error("a permanent cause wins over a transient wrapper")
	}
	if IsTransient(base) {
		t.Error("unclassified errors are not transient")
	}
	if Transient(nil) != nil || Permanent(nil) != nil {
		t.Error("nil in, nil out")
	}
}

func TestOverfetchSize(t *testing.T) {
	tests := []struct {
		topK, mul, floor, want int
	}{
		{5, 10, 50, 50},
		{10, 10, 50, 100},
		{1, 0, 0, 50},
		{7, 10, 50, 70},
	}
	for _, tc := range tests {
		if got := OverfetchSize(tc.topK, tc.mul, tc.floor); got != tc.want {
			t.Errorf("OverfetchSize(%d,%d,%d) = %d, want %d", tc.topK, tc.mul, tc.floor, got, tc.want)
		}
	}
}
