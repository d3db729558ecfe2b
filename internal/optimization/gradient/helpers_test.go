package gradient

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// gradNorm returns ‖P·x + q‖₂.
func gradNorm(p mat.Matrix, q mat.Vector, x []float64) float64 {
	var g mat.VecDense
	g.MulVec(p, mat.NewVecDense(len(x), x))
	g.AddVec(&g, q)
	return mat.Norm(&g, 2)
}

// distance returns ‖a - b‖₂.
func distance(a []float64, b mat.Vector) float64 {
	var d mat.VecDense
	d.SubVec(mat.NewVecDense(len(a), a), b)
	return mat.Norm(&d, 2)
}

// randomSPD returns AᵀA + shift·I for a random n×n A with entries in [-1, 1].
func randomSPD(rng *rand.Rand, n int, shift float64) *mat.SymDense {
	data := make([]float64, n*n)
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	a := mat.NewDense(n, n, data)

	p := mat.NewSymDense(n, nil)
	p.SymOuterK(1, a.T())
	for i := 0; i < n; i++ {
		p.SetSym(i, i, p.At(i, i)+shift)
	}
	return p
}

// randomVector generates a random vector with values in [min, max]
func randomVector(rng *rand.Rand, size int, min, max float64) *mat.VecDense {
	data := make([]float64, size)
	for i := range data {
		data[i] = min + rng.Float64()*(max-min)
	}
	return mat.NewVecDense(size, data)
}
