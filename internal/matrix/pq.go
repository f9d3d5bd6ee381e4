package matrix

import (
	"fmt"
	"math/rand"

	"github.com/golang/glog"

	"github.com/MrBananaHuman/jamofasttext/internal/wire"
)

// KSUB is the number of centroids per sub-quantizer, fixed at 256
// (NBITS = 8).
const KSUB = 256

const kmeansIterations = 25
const epsilon = 1e-7

// ErrInputTooSmall is raised by k-means training when n < KSUB.
var ErrInputTooSmall = fmt.Errorf("matrix: product quantizer training input is smaller than %d rows", KSUB)

// ProductQuantizer trains and applies product quantization over rows of
// width dim, split into nsubq sub-quantizers of width dsub (lastdsub for
// the final one).
type ProductQuantizer struct {
	Dim, Dsub, LastDsub, Nsubq int
	Centroids                 []float32 // len == dim*KSUB
}

// NewProductQuantizer constructs an (untrained) quantizer for the given
// dim/dsub, deriving lastdsub/nsubq: lastdsub = dim mod dsub if nonzero
// else dsub.
func NewProductQuantizer(dim, dsub int) *ProductQuantizer {
	nsubq := (dim + dsub - 1) / dsub
	lastdsub := dim % dsub
	if lastdsub == 0 {
		lastdsub = dsub
	}
	return &ProductQuantizer{
		Dim: dim, Dsub: dsub, LastDsub: lastdsub, Nsubq: nsubq,
		Centroids: make([]float32, dim*KSUB),
	}
}

func (pq *ProductQuantizer) subqDim(m int) int {
	if m == pq.Nsubq-1 {
		return pq.LastDsub
	}
	return pq.Dsub
}

func (pq *ProductQuantizer) subqCentroids(m int) []float32 {
	// Sub-quantizer m's centroids start at element offset m*dsub*KSUB in the
	// flat centroid buffer, KSUB rows of subqDim(m) each.
	return pq.Centroids[m*pq.Dsub*KSUB:]
}

func (pq *ProductQuantizer) centroid(m, k int) []float32 {
	d := pq.subqDim(m)
	base := pq.subqCentroids(m)
	return base[k*d : k*d+d]
}

// Train trains every sub-quantizer over x, a flat buffer of n rows of
// width dim.
func (pq *ProductQuantizer) Train(n int, x []float32, rng *rand.Rand) error {
	if n < KSUB {
		return ErrInputTooSmall
	}
	np := n
	if np > KSUB*KSUB {
		np = KSUB * KSUB
	}
	perm := rng.Perm(n)[:np]
	for m := 0; m < pq.Nsubq; m++ {
		d := pq.subqDim(m)
		offset := m * pq.Dsub
		slice := make([]float32, np*d)
		for i, idx := range perm {
			copy(slice[i*d:(i+1)*d], x[idx*pq.Dim+offset:idx*pq.Dim+offset+d])
		}
		centroids, err := kmeans(slice, np, d, rng)
		if err != nil {
			return err
		}
		copy(pq.subqCentroids(m)[:KSUB*d], centroids)
	}
	return nil
}

// kmeans runs Lloyd's algorithm for KSUB centroids over np rows of width
// d.
func kmeans(x []float32, np, d int, rng *rand.Rand) ([]float32, error) {
	if np < KSUB {
		return nil, ErrInputTooSmall
	}
	centroids := make([]float32, KSUB*d)
	perm := rng.Perm(np)
	for k := 0; k < KSUB; k++ {
		copy(centroids[k*d:(k+1)*d], x[perm[k]*d:(perm[k]+1)*d])
	}
	codes := make([]uint8, np)
	nelts := make([]int, KSUB)

	for iter := 0; iter < kmeansIterations; iter++ {
		// E-step.
		var distortion float64
		for i := 0; i < np; i++ {
			row := x[i*d : (i+1)*d]
			codes[i] = nearestCentroid(row, centroids, d)
			if glog.V(1) {
				distortion += sqL2(row, centroids[int(codes[i])*d:int(codes[i])*d+d])
			}
		}
		if glog.V(1) {
			glog.Infof("matrix: kmeans iter=%d/%d distortion=%.4f", iter+1, kmeansIterations, distortion/float64(np))
		}
		// M-step.
		sums := make([]float64, KSUB*d)
		for k := range nelts {
			nelts[k] = 0
		}
		for i := 0; i < np; i++ {
			k := int(codes[i])
			nelts[k]++
			row := x[i*d : (i+1)*d]
			base := k * d
			for j := 0; j < d; j++ {
				sums[base+j] += float64(row[j])
			}
		}
		for k := 0; k < KSUB; k++ {
			if nelts[k] == 0 {
				continue
			}
			base := k * d
			for j := 0; j < d; j++ {
				centroids[base+j] = float32(sums[base+j] / float64(nelts[k]))
			}
		}
		// Empty-cluster repair.
		for k := 0; k < KSUB; k++ {
			if nelts[k] != 0 {
				continue
			}
			m := 0
			for float64(rng.Float64())*float64(np-KSUB) >= float64(nelts[m]-1) {
				m = (m + 1) % KSUB
			}
			nelts[k] = nelts[m] / 2
			nelts[m] = nelts[m] - nelts[k]
			kBase, mBase := k*d, m*d
			for j := 0; j < d; j++ {
				centroids[kBase+j] = centroids[mBase+j]
			}
			for j := 0; j < d; j++ {
				if j%2 == 0 {
					centroids[kBase+j] += epsilon
					centroids[mBase+j] -= epsilon
				} else {
					centroids[kBase+j] -= epsilon
					centroids[mBase+j] += epsilon
				}
			}
		}
	}
	return centroids, nil
}

func nearestCentroid(row, centroids []float32, d int) uint8 {
	best := 0
	bestDist := sqL2(row, centroids[:d])
	for k := 1; k < KSUB; k++ {
		c := centroids[k*d : (k+1)*d]
		if dist := sqL2(row, c); dist < bestDist {
			bestDist = dist
			best = k
		}
	}
	return uint8(best)
}

func sqL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return sum
}

// ComputeCode runs the assign-nearest-centroid procedure once per
// sub-slice of x (width dim), returning nsubq code bytes.
func (pq *ProductQuantizer) ComputeCode(x []float32) []uint8 {
	codes := make([]uint8, pq.Nsubq)
	offset := 0
	for m := 0; m < pq.Nsubq; m++ {
		d := pq.subqDim(m)
		row := x[offset : offset+d]
		codes[m] = nearestCentroid(row, pq.subqCentroids(m), d)
		offset += d
	}
	return codes
}

// MulCode computes alpha * sum_m <x[m*dsub:m*dsub+d_m], centroid_m[code_m]>
//, never materializing the decompressed row.
func (pq *ProductQuantizer) MulCode(x []float32, codes []uint8, t int, alpha float32) float32 {
	var sum float64
	offset := 0
	base := t * pq.Nsubq
	for m := 0; m < pq.Nsubq; m++ {
		d := pq.subqDim(m)
		c := pq.centroid(m, int(codes[base+m]))
		row := x[offset : offset+d]
		for j := 0; j < d; j++ {
			sum += float64(row[j]) * float64(c[j])
		}
		offset += d
	}
	return alpha * float32(sum)
}

// AddCode adds alpha*centroid to the corresponding slice of x for each
// sub-quantizer.
func (pq *ProductQuantizer) AddCode(x []float32, codes []uint8, t int, alpha float32) {
	offset := 0
	base := t * pq.Nsubq
	for m := 0; m < pq.Nsubq; m++ {
		d := pq.subqDim(m)
		c := pq.centroid(m, int(codes[base+m]))
		for j := 0; j < d; j++ {
			x[offset+j] += alpha * c[j]
		}
		offset += d
	}
}

// Save writes the ProductQuantizer section: i32 dim, nsubq,
// dsub, lastdsub, then dim*256 f32 centroids.
func (pq *ProductQuantizer) Save(w *wire.Writer) {
	w.I32(int32(pq.Dim))
	w.I32(int32(pq.Nsubq))
	w.I32(int32(pq.Dsub))
	w.I32(int32(pq.LastDsub))
	w.F32Slice(pq.Centroids)
}

// LoadProductQuantizer reads a ProductQuantizer section written by Save.
func LoadProductQuantizer(r *wire.Reader) (*ProductQuantizer, error) {
	dim := int(r.I32())
	nsubq := int(r.I32())
	dsub := int(r.I32())
	lastdsub := int(r.I32())
	centroids := r.F32Slice(int64(dim) * KSUB)
	if r.Err() != nil {
		return nil, fmt.Errorf("matrix: load product quantizer: %w", r.Err())
	}
	return &ProductQuantizer{Dim: dim, Nsubq: nsubq, Dsub: dsub, LastDsub: lastdsub, Centroids: centroids}, nil
}

// newNorm1D builds a trivial 1-dimensional product quantizer used for row-norm
// quantization (qnorm), trained the same way as any other sub-quantizer
// with dsub == dim == 1.
func newNorm1D() *ProductQuantizer {
	return NewProductQuantizer(1, 1)
}
