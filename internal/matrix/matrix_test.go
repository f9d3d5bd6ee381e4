package matrix

import (
	"math"
	"math/rand"
	"testing"
)

func TestDotRowAndAddRow(t *testing.T) {
	m := NewMatrix(3, 2)
	m.Put(0, 0, 1)
	m.Put(0, 1, 2)
	v := []float32{3, 4}
	got, err := m.DotRow(v, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 11 {
		t.Fatalf("DotRow = %v, want 11", got)
	}
	m.AddRow(v, 1, 2)
	if m.At(1, 0) != 6 || m.At(1, 1) != 8 {
		t.Fatalf("AddRow failed: row1 = %v, %v", m.At(1, 0), m.At(1, 1))
	}
}

func TestDotRowNaN(t *testing.T) {
	m := NewMatrix(1, 1)
	m.Put(0, 0, float32(math.NaN()))
	if _, err := m.DotRow([]float32{1}, 0); err != ErrNaN {
		t.Fatalf("got err=%v, want ErrNaN", err)
	}
}

func TestUniformDeterministic(t *testing.T) {
	m1 := NewMatrix(4, 4)
	m1.Uniform(rand.New(rand.NewSource(1)), 1.0/4)
	m2 := NewMatrix(4, 4)
	m2.Uniform(rand.New(rand.NewSource(1)), 1.0/4)
	for i := range m1.Data {
		if m1.Data[i] != m2.Data[i] {
			t.Fatalf("Uniform not deterministic at %d: %v vs %v", i, m1.Data[i], m2.Data[i])
		}
	}
}

func TestL2NormRow(t *testing.T) {
	m := NewMatrix(1, 2)
	m.Put(0, 0, 3)
	m.Put(0, 1, 4)
	norms, err := m.L2NormRow()
	if err != nil {
		t.Fatal(err)
	}
	if norms[0] != 5 {
		t.Fatalf("norm = %v, want 5", norms[0])
	}
}

func TestProductQuantizerRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	dim := 4
	n := 300
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = rng.Float32()
	}
	pq := NewProductQuantizer(dim, 2)
	if err := pq.Train(n, data, rng); err != nil {
		t.Fatal(err)
	}
	row := data[:dim]
	codes := pq.ComputeCode(row)
	if len(codes) != pq.Nsubq {
		t.Fatalf("len(codes) = %d, want %d", len(codes), pq.Nsubq)
	}
	// Reconstructed row should be reasonably close to the original.
	recon := make([]float32, dim)
	pq.AddCode(recon, codes, 0, 1)
	var errSq float64
	for i := range row {
		diff := float64(row[i] - recon[i])
		errSq += diff * diff
	}
	if errSq > float64(dim) {
		t.Fatalf("reconstruction error too large: %v", errSq)
	}
}

func TestProductQuantizerTooSmall(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pq := NewProductQuantizer(4, 2)
	if err := pq.Train(10, make([]float32, 40), rng); err != ErrInputTooSmall {
		t.Fatalf("got err=%v, want ErrInputTooSmall", err)
	}
}
