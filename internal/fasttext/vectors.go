package fasttext

import (
	"math"
	"sort"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/dict"
)

// GetWordVector returns the sum of word's subword rows divided by the
// subword count. Returns a zero vector for a word with no subwords at
// all (never happens for an in-vocab word, since subwords always starts
// with the word's own index; an OOV word with maxn<=0 can have none).
func (ft *FastText) GetWordVector(word string) []float32 {
	vec := make([]float32, ft.args.Dim)
	ids := ft.dict.Subwords(word)
	if len(ids) == 0 {
		return vec
	}
	for _, id := range ids {
		ft.input.AddRow(vec, int(id), 1)
	}
	inv := float32(1) / float32(len(ids))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// GetSentenceVector returns the mean of L2-normalized per-word vectors
// for a plain line, or — for supervised models — the hidden layer
// computed over the line's labeled representation. In both cases an
// empty-after-filter line returns a zero vector via an early return
// *before* any division, avoiding a divide-by-zero.
func (ft *FastText) GetSentenceVector(line string) []float32 {
	tokens := ft.tokenize(line)
	vec := make([]float32, ft.args.Dim)

	if ft.args.Model == args.Supervised {
		ids, _ := ft.dict.GetLineLabeled(tokens)
		if len(ids) == 0 {
			return vec
		}
		ft.input.ComputeHidden(ids, vec)
		return vec
	}

	var n int
	for _, tok := range tokens {
		if ft.dict.IdOf(tok) < 0 {
			continue
		}
		wv := ft.GetWordVector(tok)
		norm := l2norm(wv)
		if norm == 0 {
			continue
		}
		for i := range vec {
			vec[i] += wv[i] / norm
		}
		n++
	}
	if n == 0 {
		return vec
	}
	inv := float32(1) / float32(n)
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func l2norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Neighbor is one scored nearest-neighbor / analogy result.
type Neighbor struct {
	Word  string
	Score float32
}

// vectorBank is the lazily-built, explicitly-evictable precomputed
// nearest-neighbor bank. Go has no ecosystem soft-reference type, so this is a plain
// pointer the caller can null out rather than an invented dependency.
type vectorBank struct {
	words []string
	vecs  [][]float32
	norms []float32
}

func (ft *FastText) ensureVectorBank() *vectorBank {
	if ft.bank != nil {
		return ft.bank
	}
	b := &vectorBank{}
	for i := 0; i < ft.dict.NWords(); i++ {
		w := ft.dict.Entry(i).Word
		if w == dict.EOS {
			continue
		}
		v := ft.GetWordVector(w)
		b.words = append(b.words, w)
		b.vecs = append(b.vecs, v)
		b.norms = append(b.norms, l2norm(v))
	}
	ft.bank = b
	return b
}

// InvalidateVectorBank evicts the precomputed nearest-neighbor bank, for
// callers that mutate the underlying matrices (e.g. after Quantize) and
// need the bank rebuilt from the new vectors on next use.
func (ft *FastText) InvalidateVectorBank() { ft.bank = nil }

// NN returns the k nearest neighbors to word by cosine similarity,
// excluding word itself.
func (ft *FastText) NN(word string, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrEmptyQuery
	}
	query := ft.GetWordVector(word)
	return ft.nearest(query, k, map[string]bool{word: true}), nil
}

// Analogies returns the k words whose vectors are nearest (cosine) to
// v(a) - v(b) + v(c), excluding a, b, and c.
func (ft *FastText) Analogies(k int, a, b, c string) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrEmptyQuery
	}
	va, vb, vc := ft.GetWordVector(a), ft.GetWordVector(b), ft.GetWordVector(c)
	query := make([]float32, ft.args.Dim)
	for i := range query {
		query[i] = va[i] - vb[i] + vc[i]
	}
	excl := map[string]bool{a: true, b: true, c: true}
	return ft.nearest(query, k, excl), nil
}

func (ft *FastText) nearest(query []float32, k int, exclude map[string]bool) []Neighbor {
	bank := ft.ensureVectorBank()
	var scored []Neighbor
	for i, w := range bank.words {
		if exclude[w] {
			continue
		}
		scored = append(scored, Neighbor{Word: w, Score: cosine(query, bank.vecs[i])})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Word < scored[j].Word
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
