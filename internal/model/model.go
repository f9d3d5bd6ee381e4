// Package model implements the forward/backward pass, the three loss
// variants (negative sampling, hierarchical softmax, softmax), and
// top-k prediction.
package model

import (
	"container/heap"
	"fmt"
	"math/rand"
	"sort"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/matrix"
)

// Model is a transient object bound to an Args, an input and output
// matrix, and a per-thread RNG. Not safe for
// concurrent use by multiple goroutines; the Trainer gives each worker
// its own Model sharing the same underlying input/output matrices
// (Hogwild!: updates race across workers with no locking).
type Model struct {
	args         *args.Args
	input, output matrix.Variant
	rng          *rand.Rand
	tables       *lookupTables

	hidden, outBuf, grad []float32

	osz  int
	tree *huffmanTree
	neg  *negativesSampler

	loss      float64
	nexamples int64
}

// New constructs a Model. labelCounts is the per-class (word, for
// sg/cbow, or label, for supervised) count vector used to build the
// negatives table (NS) or Huffman tree (HS); unused for softmax.
func New(a *args.Args, input, output matrix.Variant, seed int64, labelCounts []int64) *Model {
	dim := a.Dim
	m := &Model{
		args:   a,
		input:  input,
		output: output,
		rng:    rand.New(rand.NewSource(seed)),
		tables: newLookupTables(),
		hidden: make([]float32, dim),
		outBuf: make([]float32, dim),
		grad:   make([]float32, dim),
		osz:    output.Rows(),
	}
	switch a.Loss {
	case args.HS:
		m.tree = buildHuffmanTree(labelCounts)
	case args.NS:
		m.neg = newNegativesSampler(buildNegativesTable(labelCounts, m.rng))
	}
	return m
}

// PickRandomIndex returns a uniformly random index in [0, n), using the
// model's own per-thread RNG, for supervised training's random-label
// choice when a line carries more than one label.
func (m *Model) PickRandomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	return m.rng.Intn(n)
}

// Loss returns the running mean loss per example.
func (m *Model) Loss() float32 {
	if m.nexamples == 0 {
		return 0
	}
	return float32(m.loss / float64(m.nexamples))
}

// ComputeHidden sums rows of (q)input indexed by ids into m.hidden and
// divides by |ids|.
func (m *Model) ComputeHidden(ids []int32) {
	m.input.ComputeHidden(ids, m.hidden)
}

// binaryLogistic computes sigma(<wo_row_target, hidden>), updates grad and
// the output row, and returns -log(sigma) or -log(1-sigma).
func (m *Model) binaryLogistic(target int32, label bool, lr float32) (float32, error) {
	score, err := m.output.DotRow(m.hidden, int(target))
	if err != nil {
		return 0, err
	}
	score = m.tables.Sigmoid(score)
	var labelF float32
	if label {
		labelF = 1
	}
	alpha := lr * (labelF - score)
	row := m.outputRow(target)
	for i := range m.grad {
		m.grad[i] += alpha * row[i]
	}
	m.output.AddRow(m.hidden, int(target), alpha)
	if label {
		return -m.tables.Log(score), nil
	}
	return -m.tables.Log(1 - score), nil
}

// outputRow materializes the output row for gradient accumulation. Dense
// matrices expose this directly; quantized matrices (inference-only,
// never the target of binaryLogistic during training) fall back to
// decompressing via AddRow into a zero buffer.
func (m *Model) outputRow(i int32) []float32 {
	if !m.output.IsQuantized() {
		d := m.output.Dense
		return d.Data[int(i)*d.N : (int(i)+1)*d.N]
	}
	row := make([]float32, m.output.Cols())
	m.output.Quantized.AddRow(row, int(i), 1)
	return row
}

// negativeSampling scores the target plus `neg` sampled negatives, each
// via binaryLogistic, and sums their losses.
func (m *Model) negativeSampling(target int32, lr float32) (float32, error) {
	var loss float32
	for i := range m.grad {
		m.grad[i] = 0
	}
	for n := 0; n <= m.args.Neg; n++ {
		var l float32
		var err error
		if n == 0 {
			l, err = m.binaryLogistic(target, true, lr)
		} else {
			neg := m.neg.Next(target)
			l, err = m.binaryLogistic(neg, false, lr)
		}
		if err != nil {
			return 0, err
		}
		loss += l
	}
	return loss, nil
}

// hierarchicalSoftmax walks the code sequence of target's leaf in the
// Huffman tree, invoking binaryLogistic on each inner node id with the
// bit of the code.
func (m *Model) hierarchicalSoftmax(target int32, lr float32) (float32, error) {
	for i := range m.grad {
		m.grad[i] = 0
	}
	var loss float32
	path := m.tree.paths[target]
	code := m.tree.codes[target]
	for i, node := range path {
		l, err := m.binaryLogistic(node, code[i], lr)
		if err != nil {
			return 0, err
		}
		loss += l
	}
	return loss, nil
}

// computeOutputSoftmax computes a numerically stable softmax over all osz
// classes from m.hidden.
func (m *Model) computeOutputSoftmax(out []float32) error {
	var max float32 = -1e30
	for i := 0; i < m.osz; i++ {
		s, err := m.output.DotRow(m.hidden, i)
		if err != nil {
			return err
		}
		out[i] = s
		if s > max {
			max = s
		}
	}
	var z float32
	for i := 0; i < m.osz; i++ {
		out[i] = expF32(out[i] - max)
		z += out[i]
	}
	for i := range out {
		out[i] /= z
	}
	return nil
}

// softmax computes the full softmax loss, updating across all osz
// classes and returning -log of the target probability.
func (m *Model) softmax(target int32, lr float32) (float32, error) {
	if err := m.computeOutputSoftmax(m.outBuf); err != nil {
		return 0, err
	}
	for i := range m.grad {
		m.grad[i] = 0
	}
	for i := 0; i < m.osz; i++ {
		label := float32(0)
		if int32(i) == target {
			label = 1
		}
		alpha := lr * (label - m.outBuf[i])
		row := m.outputRow(int32(i))
		for j := range m.grad {
			m.grad[j] += alpha * row[j]
		}
		m.output.AddRow(m.hidden, i, alpha)
	}
	return -logF32(m.outBuf[target]), nil
}

// Update runs the forward pass over ids, computes the configured loss
// against target, and scatter-adds grad into the input rows. For supervised models grad is divided by |ids| first.
func (m *Model) Update(ids []int32, target int32, lr float32) error {
	if len(ids) == 0 {
		return nil
	}
	m.ComputeHidden(ids)

	var loss float32
	var err error
	switch m.args.Loss {
	case args.NS:
		loss, err = m.negativeSampling(target, lr)
	case args.HS:
		loss, err = m.hierarchicalSoftmax(target, lr)
	case args.Softmax:
		loss, err = m.softmax(target, lr)
	default:
		return fmt.Errorf("model: unknown loss type %v", m.args.Loss)
	}
	if err != nil {
		return err
	}
	m.loss += float64(loss)
	m.nexamples++

	if m.args.Model == args.Supervised {
		inv := 1 / float32(len(ids))
		for i := range m.grad {
			m.grad[i] *= inv
		}
	}
	for _, id := range ids {
		m.input.AddRow(m.grad, int(id), 1)
	}
	return nil
}

// Prediction is one scored candidate returned by Predict.
type Prediction struct {
	Label float32 // log-probability
	Class int32
}

type predictionHeap []Prediction

func (h predictionHeap) Len() int            { return len(h) }
func (h predictionHeap) Less(i, j int) bool   { return h[i].Label < h[j].Label } // min-heap by score
func (h predictionHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *predictionHeap) Push(x interface{}) { *h = append(*h, x.(Prediction)) }
func (h *predictionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Predict returns the top-k classes by log-probability. For softmax/ns,
// score = log(softmax output); ties broken stably by class index.
func (m *Model) Predict(ids []int32, k int) ([]Prediction, error) {
	if k <= 0 {
		return nil, fmt.Errorf("model: predict: k must be positive, got %d", k)
	}
	m.ComputeHidden(ids)

	if m.args.Loss == args.HS {
		return m.predictTree(k)
	}

	scores := make([]float32, m.osz)
	if err := m.computeOutputSoftmax(scores); err != nil {
		return nil, err
	}
	h := &predictionHeap{}
	heap.Init(h)
	for i, s := range scores {
		logp := logF32(s)
		if h.Len() < k {
			heap.Push(h, Prediction{Label: logp, Class: int32(i)})
			continue
		}
		if logp > (*h)[0].Label {
			heap.Pop(h)
			heap.Push(h, Prediction{Label: logp, Class: int32(i)})
		}
	}
	return sortedDescending(*h), nil
}

// predictTree does a DFS over the Huffman tree, pruning branches whose
// partial score falls below the k-th best found so far.
func (m *Model) predictTree(k int) ([]Prediction, error) {
	h := &predictionHeap{}
	heap.Init(h)
	root := int32(len(m.tree.nodes) - 1)
	var dfs func(n int32, score float32) error
	dfs = func(n int32, score float32) error {
		if h.Len() == k && score < (*h)[0].Label {
			return nil
		}
		nd := m.tree.nodes[n]
		if nd.Left == -1 && nd.Right == -1 {
			if h.Len() < k {
				heap.Push(h, Prediction{Label: score, Class: n})
			} else if score > (*h)[0].Label {
				heap.Pop(h)
				heap.Push(h, Prediction{Label: score, Class: n})
			}
			return nil
		}
		f, err := m.output.DotRow(m.hidden, int(n)-m.osz)
		if err != nil {
			return err
		}
		f = m.tables.Sigmoid(f)
		if err := dfs(nd.Left, score+logF32(1-f)); err != nil {
			return err
		}
		return dfs(nd.Right, score+logF32(f))
	}
	if err := dfs(root, 0); err != nil {
		return nil, err
	}
	return sortedDescending(*h), nil
}

func sortedDescending(h predictionHeap) []Prediction {
	out := make([]Prediction, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label > out[j].Label
		}
		return out[i].Class < out[j].Class
	})
	return out
}
