package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/matrix"
)

func newTestModel(t *testing.T, loss args.LossType, modelType args.ModelType) (*Model, *matrix.Matrix, *matrix.Matrix) {
	t.Helper()
	a, err := args.New(args.Args{
		Model: modelType, Loss: loss, Dim: 5, WS: 5, Epoch: 1, MinCount: 1,
		Neg: 3, WordNgrams: 1, LR: 0.05, LRUpdateRate: 100, Bucket: 0,
		Minn: 0, Maxn: 0, T: 1e-4, Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	osz := 6
	in := matrix.NewMatrix(10, a.Dim)
	out := matrix.NewMatrix(osz, a.Dim)
	in.Uniform(rand.New(rand.NewSource(1)), 1.0/float64(a.Dim))
	out.Uniform(rand.New(rand.NewSource(2)), 1.0/float64(a.Dim))
	counts := make([]int64, osz)
	for i := range counts {
		counts[i] = int64(i + 1)
	}
	m := New(&a, matrix.DenseVariant(in), matrix.DenseVariant(out), 7, counts)
	return m, in, out
}

func TestSoftmaxProbabilitiesSumToOne(t *testing.T) {
	m, _, _ := newTestModel(t, args.Softmax, args.Supervised)
	out := make([]float32, m.osz)
	m.ComputeHidden([]int32{0, 1, 2})
	if err := m.computeOutputSoftmax(out); err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range out {
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Fatalf("softmax sums to %v, want ~1", sum)
	}
}

func TestNegativeSamplingUpdateReducesLoss(t *testing.T) {
	m, _, _ := newTestModel(t, args.NS, args.Skipgram)
	ids := []int32{0, 1}
	var losses []float32
	for i := 0; i < 50; i++ {
		if err := m.Update(ids, 2, 0.1); err != nil {
			t.Fatal(err)
		}
		losses = append(losses, m.Loss())
	}
	if losses[len(losses)-1] >= losses[0] {
		t.Errorf("loss did not decrease: first=%v last=%v", losses[0], losses[len(losses)-1])
	}
}

func TestHierarchicalSoftmaxUpdate(t *testing.T) {
	m, _, _ := newTestModel(t, args.HS, args.Skipgram)
	if m.tree == nil {
		t.Fatal("expected huffman tree to be built for HS")
	}
	if err := m.Update([]int32{0, 1}, 3, 0.1); err != nil {
		t.Fatal(err)
	}
}

func TestPredictReturnsKDistinctClasses(t *testing.T) {
	m, _, _ := newTestModel(t, args.Softmax, args.Supervised)
	preds, err := m.Predict([]int32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 3 {
		t.Fatalf("got %d predictions, want 3", len(preds))
	}
	seen := map[int32]bool{}
	for _, p := range preds {
		if seen[p.Class] {
			t.Fatalf("duplicate class %d in predictions", p.Class)
		}
		seen[p.Class] = true
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].Label > preds[i-1].Label {
			t.Fatalf("predictions not sorted descending: %v", preds)
		}
	}
}

func TestHuffmanTreeLeafCounts(t *testing.T) {
	counts := []int64{5, 4, 3, 2, 1}
	tree := buildHuffmanTree(counts)
	if len(tree.nodes) != 2*len(counts)-1 {
		t.Fatalf("got %d nodes, want %d", len(tree.nodes), 2*len(counts)-1)
	}
	for i := range counts {
		if len(tree.paths[i]) == 0 {
			t.Errorf("leaf %d has empty path", i)
		}
		if len(tree.paths[i]) != len(tree.codes[i]) {
			t.Errorf("leaf %d path/code length mismatch", i)
		}
	}
}
