package matrix

import (
	"fmt"
	"math/rand"

	"github.com/MrBananaHuman/jamofasttext/internal/wire"
)

// QMatrix is a product-quantized compressed matrix. Row
// lookup is never materialized: DotRow/AddToVector delegate to the
// ProductQuantizer's MulCode/AddCode directly on the caller-supplied
// vector.
type QMatrix struct {
	M, N      int
	Qnorm     bool
	Codes     []uint8 // len == M * pq.Nsubq
	PQ        *ProductQuantizer
	NormCodes []uint8 // len == M, present iff Qnorm
	NormPQ    *ProductQuantizer
}

// Quantize builds a QMatrix from a dense Matrix by training a
// ProductQuantizer of the given dsub (and, if qnorm, a 1-D quantizer over
// row norms).
func Quantize(m *Matrix, dsub int, qnorm bool, rng *rand.Rand) (*QMatrix, error) {
	pq := NewProductQuantizer(m.N, dsub)
	if err := pq.Train(m.M, m.Data, rng); err != nil {
		return nil, err
	}
	qm := &QMatrix{M: m.M, N: m.N, Qnorm: qnorm, PQ: pq}
	qm.Codes = make([]uint8, m.M*pq.Nsubq)

	norms, err := m.L2NormRow()
	if err != nil {
		return nil, err
	}

	normalized := m.Data
	if qnorm {
		normalized = make([]float32, len(m.Data))
		copy(normalized, m.Data)
		for i := 0; i < m.M; i++ {
			n := norms[i]
			if n == 0 {
				continue
			}
			row := normalized[i*m.N : (i+1)*m.N]
			for j := range row {
				row[j] /= n
			}
		}
	}

	for i := 0; i < m.M; i++ {
		row := normalized[i*m.N : (i+1)*m.N]
		copy(qm.Codes[i*pq.Nsubq:(i+1)*pq.Nsubq], pq.ComputeCode(row))
	}

	if qnorm {
		qm.NormPQ = newNorm1D()
		if err := qm.NormPQ.Train(m.M, norms, rng); err != nil {
			return nil, err
		}
		qm.NormCodes = make([]uint8, m.M)
		for i := 0; i < m.M; i++ {
			qm.NormCodes[i] = qm.NormPQ.ComputeCode(norms[i : i+1])[0]
		}
	}
	return qm, nil
}

func (qm *QMatrix) rowNorm(i int) float32 {
	if !qm.Qnorm {
		return 1
	}
	return qm.NormPQ.centroid(0, int(qm.NormCodes[i]))[0]
}

// DotRow computes <vec, row_i> via the product quantizer, equivalent to
// pq.mulCode(vec, codes, i, norm_i).
func (qm *QMatrix) DotRow(vec []float32, i int) (float32, error) {
	return qm.PQ.MulCode(vec, qm.Codes, i, qm.rowNorm(i)), nil
}

// AddRow adds a * norm_i * decompressed-row-i to dst.
func (qm *QMatrix) AddRow(dst []float32, i int, a float32) {
	qm.PQ.AddCode(dst, qm.Codes, i, a*qm.rowNorm(i))
}

// The remaining dense-only operations are unsupported on a quantized
// matrix.

func (qm *QMatrix) Set(int, int, float32) error           { return ErrUnsupported }
func (qm *QMatrix) L2NormRow() ([]float32, error)         { return nil, ErrUnsupported }
func (qm *QMatrix) MultiplyRow([]float32, int, int) error { return ErrUnsupported }
func (qm *QMatrix) DivideRow([]float32, int, int) error   { return ErrUnsupported }
func (qm *QMatrix) Uniform(*rand.Rand, float64) error     { return ErrUnsupported }

// Save writes the QMatrix section: bool qnorm, i64 m, i64 n,
// i32 codesize, codesize*u8 codes, ProductQuantizer pq, and if qnorm:
// m*u8 normCodes, ProductQuantizer npq.
func (qm *QMatrix) Save(w *wire.Writer) {
	w.Bool(qm.Qnorm)
	w.I64(int64(qm.M))
	w.I64(int64(qm.N))
	w.I32(int32(len(qm.Codes)))
	w.U8Slice(qm.Codes)
	qm.PQ.Save(w)
	if qm.Qnorm {
		w.U8Slice(qm.NormCodes)
		qm.NormPQ.Save(w)
	}
}

// LoadQMatrix reads a QMatrix section written by Save.
func LoadQMatrix(r *wire.Reader) (*QMatrix, error) {
	qm := &QMatrix{}
	qm.Qnorm = r.Bool()
	qm.M = int(r.I64())
	qm.N = int(r.I64())
	codesize := r.I32()
	qm.Codes = r.U8Slice(int64(codesize))
	pq, err := LoadProductQuantizer(r)
	if err != nil {
		return nil, err
	}
	qm.PQ = pq
	if qm.Qnorm {
		qm.NormCodes = r.U8Slice(int64(qm.M))
		npq, err := LoadProductQuantizer(r)
		if err != nil {
			return nil, err
		}
		qm.NormPQ = npq
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("matrix: load qmatrix: %w", r.Err())
	}
	return qm, nil
}

// Variant dispatches addRow/dotRow/etc. at call sites that take a
// matrix-like parameter, replacing QMatrix-extends-Matrix inheritance.
type Variant struct {
	Dense     *Matrix
	Quantized *QMatrix
}

func DenseVariant(m *Matrix) Variant     { return Variant{Dense: m} }
func QuantizedVariant(q *QMatrix) Variant { return Variant{Quantized: q} }

func (v Variant) IsQuantized() bool { return v.Quantized != nil }

func (v Variant) Rows() int {
	if v.IsQuantized() {
		return v.Quantized.M
	}
	return v.Dense.M
}

func (v Variant) Cols() int {
	if v.IsQuantized() {
		return v.Quantized.N
	}
	return v.Dense.N
}

func (v Variant) DotRow(vec []float32, i int) (float32, error) {
	if v.IsQuantized() {
		return v.Quantized.DotRow(vec, i)
	}
	return v.Dense.DotRow(vec, i)
}

func (v Variant) AddRow(vec []float32, i int, a float32) {
	if v.IsQuantized() {
		v.Quantized.AddRow(vec, i, a)
		return
	}
	v.Dense.AddRow(vec, i, a)
}

// ComputeHidden sums rows of v indexed by ids into hidden and divides by
// |ids|.
func (v Variant) ComputeHidden(ids []int32, hidden []float32) {
	for i := range hidden {
		hidden[i] = 0
	}
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		v.AddRow(hidden, int(id), 1)
	}
	inv := float32(1) / float32(len(ids))
	for i := range hidden {
		hidden[i] *= inv
	}
}
