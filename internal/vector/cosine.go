package vector

import (
	"errors"
	"math"
)

var (
	ErrDimension  = errors.New("vector dimension mismatch")
	ErrZeroVector = errors.New("zero-magnitude vector")
)

func Norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// Cosine returns the cosine similarity of a and b, clamped to [-1,1].
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimension
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	sim := dot / (na * nb)
	if sim > 1 {
		return 1, nil
	}
	if sim < -1 {
		return -1, nil
	}
	return sim, nil
}

// Finite reports whether every component of v is a finite number.
func Finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
