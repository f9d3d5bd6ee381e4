// Package matrix implements the dense Matrix and product-quantized
// QMatrix types, dispatched through a tagged Variant rather than an
// inheritance relationship between the two.
package matrix

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/MrBananaHuman/jamofasttext/internal/wire"
)

// ErrNaN signals a NaN detected inside DotRow/L2NormRow.
var ErrNaN = fmt.Errorf("matrix: NaN detected")

// ErrUnsupported is returned by dense-only operations (Set, L2NormRow,
// MultiplyRow, DivideRow, Uniform) when called on a Quantized variant.
var ErrUnsupported = fmt.Errorf("matrix: operation unsupported on this variant")

// Matrix is a row-major dense (m x n) float32 table, owned exclusively by
// the model during training and read-shared at inference.
type Matrix struct {
	M, N int
	Data []float32
}

// NewMatrix allocates a zeroed m x n matrix.
func NewMatrix(m, n int) *Matrix {
	return &Matrix{M: m, N: n, Data: make([]float32, m*n)}
}

func (mat *Matrix) row(i int) []float32 { return mat.Data[i*mat.N : (i+1)*mat.N] }

// At returns element (i, j).
func (mat *Matrix) At(i, j int) float32 { return mat.Data[i*mat.N+j] }

// Put sets element (i, j).
func (mat *Matrix) Put(i, j int, v float32) { mat.Data[i*mat.N+j] = v }

// AddRow performs row_i += a*vec.
func (mat *Matrix) AddRow(vec []float32, i int, a float32) {
	row := mat.row(i)
	for j := range row {
		row[j] += a * vec[j]
	}
}

// DotRow computes <vec, row_i>, raising ErrNaN if the result is NaN
func (mat *Matrix) DotRow(vec []float32, i int) (float32, error) {
	row := mat.row(i)
	var d float64
	for j := range row {
		d += float64(vec[j]) * float64(row[j])
	}
	if math.IsNaN(d) {
		return 0, ErrNaN
	}
	return float32(d), nil
}

// MultiplyRow multiplies every row i in [begin, end) by scalars[i-begin];
// rows whose scalar is 0 are left unchanged. end < 0 means mat.M.
func (mat *Matrix) MultiplyRow(scalars []float32, begin, end int) error {
	if end < 0 {
		end = mat.M
	}
	for i := begin; i < end; i++ {
		a := scalars[i-begin]
		if a == 0 {
			continue
		}
		row := mat.row(i)
		for j := range row {
			row[j] *= a
		}
	}
	return nil
}

// DivideRow divides every row i in [begin, end) by scalars[i-begin];
// rows whose scalar is 0 are left unchanged.
func (mat *Matrix) DivideRow(scalars []float32, begin, end int) error {
	if end < 0 {
		end = mat.M
	}
	for i := begin; i < end; i++ {
		a := scalars[i-begin]
		if a == 0 {
			continue
		}
		row := mat.row(i)
		for j := range row {
			row[j] /= a
		}
	}
	return nil
}

// L2NormRow returns a vector of per-row L2 norms, raising ErrNaN if any
// norm is NaN.
func (mat *Matrix) L2NormRow() ([]float32, error) {
	out := make([]float32, mat.M)
	for i := 0; i < mat.M; i++ {
		row := mat.row(i)
		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}
		n := math.Sqrt(sum)
		if math.IsNaN(n) {
			return nil, ErrNaN
		}
		out[i] = float32(n)
	}
	return out, nil
}

// Uniform fills the matrix from U(-a, +a) in strict row-major order using
// rng, so results are bit-for-bit reproducible when rng is seeded
// identically.
func (mat *Matrix) Uniform(rng *rand.Rand, a float64) {
	for i := range mat.Data {
		mat.Data[i] = float32(rng.Float64()*2*a - a)
	}
}

// Save writes the Matrix section of the fastText binary format: i64 m,
// i64 n, then m*n f32 values row-major.
func (mat *Matrix) Save(w *wire.Writer) {
	w.I64(int64(mat.M))
	w.I64(int64(mat.N))
	w.F32Slice(mat.Data)
}

// LoadMatrix reads a Matrix section written by Save.
func LoadMatrix(r *wire.Reader) (*Matrix, error) {
	m := int(r.I64())
	n := int(r.I64())
	data := r.F32Slice(int64(m) * int64(n))
	if r.Err() != nil {
		return nil, fmt.Errorf("matrix: load: %w", r.Err())
	}
	return &Matrix{M: m, N: n, Data: data}, nil
}
