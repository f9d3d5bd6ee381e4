package dict

import (
	"math"
	"strings"
	"testing"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
)

func TestHashVectors(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"", 2166136261},
		{"a", 3826002220},
		{"Test", 805092869},
		{"This is some test sentence.", 386908734},
		{"这是一些测试句子。", 1487114043},
		{"Šis ir daži pārbaudes teikumi.", 2296385247},
		{"Тестовое предложение", 3337793681},
	}
	for _, c := range cases {
		if got := Hash(c.in); got != c.want {
			t.Errorf("Hash(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func newTestArgs(t *testing.T) *args.Args {
	t.Helper()
	a, err := args.New(args.Args{
		Model: args.Skipgram, Loss: args.NS, Dim: 10, WS: 5, Epoch: 1,
		MinCount: 1, Neg: 5, WordNgrams: 1, LR: 0.05, LRUpdateRate: 100,
		Bucket: 1000, Minn: 2, Maxn: 3, T: 1e-4, LabelPrefix: "__label__",
		Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &a
}

func TestReadFromFileThresholdAndSubwords(t *testing.T) {
	a := newTestArgs(t)
	d := New(a)
	corpus := "the quick brown fox\nthe lazy dog\nthe fox ran\n"
	if err := d.ReadFromFile(strings.NewReader(corpus)); err != nil {
		t.Fatal(err)
	}
	if d.NWords() == 0 {
		t.Fatal("expected non-empty vocabulary")
	}
	for i := 0; i < d.NWords(); i++ {
		e := d.Entry(i)
		if len(e.Subwords) == 0 || e.Subwords[0] != int32(i) {
			t.Errorf("entry %d (%q) subwords[0] = %v, want self index %d", i, e.Word, e.Subwords, i)
		}
		for _, sw := range e.Subwords[1:] {
			if sw < int32(d.NWords()) || sw >= int32(d.NWords())+int32(d.Bucket()) {
				t.Errorf("entry %d (%q) subword id %d out of range [%d, %d)", i, e.Word, sw, d.NWords(), d.NWords()+d.Bucket())
			}
		}
	}
}

func TestDiscardTableFinite(t *testing.T) {
	a := newTestArgs(t)
	d := New(a)
	if err := d.ReadFromFile(strings.NewReader("a b c a b a\n")); err != nil {
		t.Fatal(err)
	}
	for i, p := range d.pdiscard {
		if p <= 0 || math.IsInf(float64(p), 0) || math.IsNaN(float64(p)) {
			t.Errorf("pdiscard[%d] = %g, want finite and > 0", i, p)
		}
	}
}

func TestEmptyVocabularyIsFatal(t *testing.T) {
	a := newTestArgs(t)
	a.MinCount = 100
	d := New(a)
	err := d.ReadFromFile(strings.NewReader("a b c\n"))
	if err != ErrEmptyVocabulary {
		t.Fatalf("got err=%v, want ErrEmptyVocabulary", err)
	}
}

func TestPruneKeepsNgramSubwordsForKeptWords(t *testing.T) {
	a := newTestArgs(t)
	d := New(a)
	corpus := "the quick brown fox jumps over the lazy dog while the fox runs fast through the forest\n"
	if err := d.ReadFromFile(strings.NewReader(corpus)); err != nil {
		t.Fatal(err)
	}
	if d.NWords() < 2 {
		t.Fatal("need at least 2 distinct words for this test")
	}
	cutoff := d.NWords() - 1
	d.Prune(cutoff)

	if d.NWords() != cutoff {
		t.Fatalf("got nwords %d after prune, want %d", d.NWords(), cutoff)
	}
	sawKeptNgram := false
	for i := 0; i < cutoff; i++ {
		e := d.Entry(i)
		for _, sw := range e.Subwords[1:] {
			if sw < int32(d.NWords()) || sw >= int32(d.NWords())+int32(len(d.pruneIdx)) {
				t.Errorf("entry %d (%q) pruned subword id %d out of compact range [%d, %d)", i, e.Word, sw, d.NWords(), d.NWords()+len(d.pruneIdx))
			}
			sawKeptNgram = true
		}
	}
	if !sawKeptNgram {
		t.Error("expected at least one kept word to retain an ngram subword after pruning")
	}
}

func TestThresholdOrdersWordsBeforeLabels(t *testing.T) {
	a := newTestArgs(t)
	d := New(a)
	corpus := "__label__pos good movie\n__label__neg bad movie\ngood good good\n"
	if err := d.ReadFromFile(strings.NewReader(corpus)); err != nil {
		t.Fatal(err)
	}
	sawLabel := false
	for i := 0; i < d.Size(); i++ {
		e := d.Entry(i)
		if e.Type == LabelType {
			sawLabel = true
		} else if sawLabel {
			t.Fatalf("word entry %q appears after a label entry", e.Word)
		}
	}
}
