package fasttext

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
)

func newTestCorpusFile(t *testing.T, text string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "corpus-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(text); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func newTrainedSkipgram(t *testing.T) *FastText {
	t.Helper()
	a, err := args.New(args.Args{
		Model: args.Skipgram, Loss: args.NS, Dim: 8, WS: 3, Epoch: 3,
		MinCount: 1, Neg: 3, WordNgrams: 1, LR: 0.05, LRUpdateRate: 16,
		Bucket: 500, Minn: 2, Maxn: 3, T: 1e-4, LabelPrefix: "__label__",
		Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := newTestCorpusFile(t, "the quick brown fox jumps\nthe lazy dog sleeps\nthe fox runs fast\nthe dog and fox are friends\n")
	ft, err := NewForTraining(&a, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ft.Train(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
	return ft
}

func newTrainedSupervised(t *testing.T) *FastText {
	t.Helper()
	a, err := args.New(args.Args{
		Model: args.Supervised, Loss: args.NS, Dim: 8, WS: 3, Epoch: 3,
		MinCount: 1, Neg: 3, WordNgrams: 1, LR: 0.05, LRUpdateRate: 16,
		Bucket: 0, LabelPrefix: "__label__", Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := newTestCorpusFile(t, "__label__a the quick fox\n__label__b the lazy dog\n__label__a fox runs fast\n__label__b dog sleeps\n")
	ft, err := NewForTraining(&a, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ft.Train(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
	return ft
}

func TestGetWordVectorNonZeroForInVocabWord(t *testing.T) {
	ft := newTrainedSkipgram(t)
	vec := ft.GetWordVector("fox")
	var allZero = true
	for _, v := range vec {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("expected non-zero vector for in-vocab word")
	}
	if len(vec) != ft.args.Dim {
		t.Errorf("got dim %d, want %d", len(vec), ft.args.Dim)
	}
}

func TestGetSentenceVectorEmptyLineIsZero(t *testing.T) {
	ft := newTrainedSkipgram(t)
	vec := ft.GetSentenceVector("")
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want 0 for empty line", i, v)
		}
	}
}

func TestGetSentenceVectorSupervisedEmptyLineIsZero(t *testing.T) {
	ft := newTrainedSupervised(t)
	vec := ft.GetSentenceVector("")
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want 0 for empty line", i, v)
		}
	}
}

func TestGetSentenceVectorOOVOnlyLineIsZero(t *testing.T) {
	ft := newTrainedSkipgram(t)
	vec := ft.GetSentenceVector("zzzznotaword qqqqnope")
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want 0 for all-OOV line", i, v)
		}
	}
}

func TestNNExcludesQueryWord(t *testing.T) {
	ft := newTrainedSkipgram(t)
	neighbors, err := ft.NN("fox", 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range neighbors {
		if n.Word == "fox" {
			t.Error("NN should exclude the query word itself")
		}
	}
	if len(neighbors) > 3 {
		t.Errorf("got %d neighbors, want at most 3", len(neighbors))
	}
}

func TestNNOrderedByDescendingScore(t *testing.T) {
	ft := newTrainedSkipgram(t)
	neighbors, err := ft.NN("fox", 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(neighbors); i++ {
		if neighbors[i].Score > neighbors[i-1].Score {
			t.Fatalf("neighbors not sorted descending by score: %v", neighbors)
		}
	}
}

func TestAnalogiesExcludesInputWords(t *testing.T) {
	ft := newTrainedSkipgram(t)
	results, err := ft.Analogies(3, "fox", "dog", "lazy")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Word == "fox" || r.Word == "dog" || r.Word == "lazy" {
			t.Errorf("analogy result %q should have been excluded", r.Word)
		}
	}
}

func TestNNRejectsNonPositiveK(t *testing.T) {
	ft := newTrainedSkipgram(t)
	if _, err := ft.NN("fox", 0); err != ErrEmptyQuery {
		t.Errorf("got err %v, want ErrEmptyQuery", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ft := newTrainedSkipgram(t)
	var buf bytes.Buffer
	if err := ft.Save(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Dictionary().NWords() != ft.Dictionary().NWords() {
		t.Errorf("loaded nwords = %d, want %d", loaded.Dictionary().NWords(), ft.Dictionary().NWords())
	}
	want := ft.GetWordVector("fox")
	got := loaded.GetWordVector("fox")
	if len(got) != len(want) {
		t.Fatalf("got vector len %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("vector mismatch at %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSaveLoadRoundTripPreservesJamoVariant(t *testing.T) {
	a, err := args.New(args.Args{
		Model: args.Skipgram, Loss: args.NS, Dim: 8, WS: 3, Epoch: 2,
		MinCount: 1, Neg: 3, WordNgrams: 1, LR: 0.05, LRUpdateRate: 16,
		Bucket: 500, Minn: 2, Maxn: 3, T: 1e-4, LabelPrefix: "__label__",
		Thread: 1, Jamo: true, JamoVariant: args.JamoConsonantsOnly,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := newTestCorpusFile(t, "안녕 하세요 반갑 습니다\n안녕 잘가 다음에 또\n")
	ft, err := NewForTraining(&a, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ft.Train(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := ft.Save(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.args.Jamo || loaded.args.JamoVariant != args.JamoConsonantsOnly {
		t.Fatalf("got Jamo=%v JamoVariant=%v, want Jamo=true JamoVariant=%v", loaded.args.Jamo, loaded.args.JamoVariant, args.JamoConsonantsOnly)
	}
	want := ft.GetWordVector("안녕")
	got := loaded.GetWordVector("안녕")
	if len(got) != len(want) {
		t.Fatalf("got vector len %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("vector mismatch at %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 2, 3, 4})
	if _, err := Load(&buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

// newTrainedSupervisedLargeVocab builds a supervised model with enough
// distinct words (> product-quantizer KSUB) for Quantize to succeed.
func newTrainedSupervisedLargeVocab(t *testing.T) *FastText {
	t.Helper()
	a, err := args.New(args.Args{
		Model: args.Supervised, Loss: args.NS, Dim: 8, WS: 3, Epoch: 1,
		MinCount: 1, Neg: 3, WordNgrams: 1, LR: 0.05, LRUpdateRate: 64,
		Bucket: 0, LabelPrefix: "__label__", Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		label := "a"
		if i%2 == 0 {
			label = "b"
		}
		sb.WriteString("__label__")
		sb.WriteString(label)
		sb.WriteString(" word")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString("\n")
	}
	path := newTestCorpusFile(t, sb.String())
	ft, err := NewForTraining(&a, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ft.Train(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
	return ft
}

func TestQuantizeRejectsNonSupervised(t *testing.T) {
	ft := newTrainedSkipgram(t)
	if err := ft.Quantize(0, 2, false, false, 1); err != ErrNotSupervised {
		t.Errorf("got err %v, want ErrNotSupervised", err)
	}
}

func TestQuantizeRejectsAlreadyQuantized(t *testing.T) {
	ft := newTrainedSupervisedLargeVocab(t)
	if err := ft.Quantize(0, 2, false, false, 1); err != nil {
		t.Fatal(err)
	}
	if err := ft.Quantize(0, 2, false, false, 1); err != ErrAlreadyQuantized {
		t.Errorf("got err %v, want ErrAlreadyQuantized", err)
	}
}

func TestQuantizeWithCutoffShrinksInputRows(t *testing.T) {
	ft := newTrainedSupervisedLargeVocab(t)
	fullWords := ft.Dictionary().NWords()
	cutoff := 256
	if err := ft.Quantize(cutoff, 2, false, false, 1); err != nil {
		t.Fatal(err)
	}
	if ft.input.Quantized.M >= fullWords {
		t.Errorf("quantized input rows = %d, want fewer than full vocab %d", ft.input.Quantized.M, fullWords)
	}
}

func TestPredictLineRequiresSupervised(t *testing.T) {
	ft := newTrainedSkipgram(t)
	if _, err := ft.PredictLine("the fox", 1); err != ErrNotSupervised {
		t.Errorf("got err %v, want ErrNotSupervised", err)
	}
}

func TestPredictLineReturnsKPredictions(t *testing.T) {
	ft := newTrainedSupervised(t)
	preds, err := ft.PredictLine("the quick fox", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
}

func TestWriteVectorsHeaderMatchesVocabSize(t *testing.T) {
	ft := newTrainedSkipgram(t)
	var buf bytes.Buffer
	if err := ft.WriteVectors(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines)-1 != ft.Dictionary().NWords() {
		t.Errorf("got %d vector lines, want %d", len(lines)-1, ft.Dictionary().NWords())
	}
}

func TestTestReportsPrecisionAndRecall(t *testing.T) {
	ft := newTrainedSupervised(t)
	r := strings.NewReader("__label__a the quick fox\n__label__b the lazy dog\n")
	precision, recall, n, err := ft.Test(r, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("nexamples = %d, want 2", n)
	}
	if precision < 0 || precision > 1 || recall < 0 || recall > 1 {
		t.Errorf("precision/recall out of range: %v/%v", precision, recall)
	}
}
