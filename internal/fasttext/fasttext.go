// Package fasttext is the owning facade that breaks the Model-Matrix
// cyclic reference: a FastText value holds the Args,
// Dictionary, and both matrices, and hands Model only a borrowed view
// for the duration of one call, never the other way around.
package fasttext

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/dict"
	"github.com/MrBananaHuman/jamofasttext/internal/jamo"
	"github.com/MrBananaHuman/jamofasttext/internal/matrix"
	"github.com/MrBananaHuman/jamofasttext/internal/model"
	"github.com/MrBananaHuman/jamofasttext/internal/train"
)

// FastText owns a trained (or loading) model's configuration,
// vocabulary, and matrices, and exposes the vector, prediction, and
// training surface built on top of them.
type FastText struct {
	args *args.Args
	dict *dict.Dictionary

	input  matrix.Variant
	output matrix.Variant

	quantizedInput bool
	qout           bool

	infer *model.Model // single shared inference-only Model; never used by Trainer

	bank *vectorBank
}

// uniformInitSeed fixes the initialization RNG so repeated runs over the
// same data produce bit-identical matrices.
const uniformInitSeed = 1

// NewForTraining builds a fresh Dictionary from trainPath and allocates
// zero/uniform-initialized input and output matrices: input is
// (nwords+bucket, dim), output is (nwords, dim) for sg/cbow or
// (nlabels, dim) for supervised.
func NewForTraining(a *args.Args, trainPath string) (*FastText, error) {
	f, err := os.Open(trainPath)
	if err != nil {
		return nil, fmt.Errorf("fasttext: open training input: %w", err)
	}
	defer f.Close()

	d := dict.New(a)
	if err := d.ReadFromFile(bufio.NewReader(f)); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(uniformInitSeed))
	inRows := d.NWords() + a.Bucket
	in := matrix.NewMatrix(inRows, a.Dim)
	in.Uniform(rng, 1.0/float64(a.Dim))

	outRows := d.NWords()
	if a.Model == args.Supervised {
		outRows = d.NLabels()
	}
	out := matrix.NewMatrix(outRows, a.Dim)

	return &FastText{
		args:   a,
		dict:   d,
		input:  matrix.DenseVariant(in),
		output: matrix.DenseVariant(out),
	}, nil
}

// Train runs parallel SGD to convergence over trainPath. progress may be nil for a no-op sink.
func (ft *FastText) Train(ctx context.Context, trainPath string, progress train.Progress) error {
	t := train.New(ft.args, ft.dict, ft.input, ft.output, progress)
	if err := t.Train(ctx, trainPath); err != nil {
		return err
	}
	ft.infer = nil // stale: rebuilt lazily by ensureInferModel
	ft.bank = nil
	return nil
}

// ensureInferModel lazily builds the single shared inference Model bound
// to this FastText's current (possibly quantized) matrices.
func (ft *FastText) ensureInferModel() *model.Model {
	if ft.infer != nil {
		return ft.infer
	}
	counts := train.LabelCounts(ft.args, ft.dict)
	ft.infer = model.New(ft.args, ft.input, ft.output, uniformInitSeed, counts)
	return ft.infer
}

// Args returns the bound configuration.
func (ft *FastText) Args() *args.Args { return ft.args }

// Dictionary returns the bound vocabulary.
func (ft *FastText) Dictionary() *dict.Dictionary { return ft.dict }

// tokenize splits raw text on whitespace and, if jamo decomposition is
// enabled, decomposes each token before it reaches the dictionary — the
// same preprocessing internal/train's worker loop applies at training
// time.
func (ft *FastText) tokenize(line string) []string {
	tokens := strings.Fields(line)
	if ft.args.Jamo {
		for i, tok := range tokens {
			tokens[i] = jamo.Decompose(tok)
		}
	}
	return tokens
}

// PredictLine tokenizes line, builds its labeled representation, and
// returns the top-k predictions.
func (ft *FastText) PredictLine(line string, k int) ([]model.Prediction, error) {
	if ft.args.Model != args.Supervised {
		return nil, ErrNotSupervised
	}
	ids, _ := ft.dict.GetLineLabeled(ft.tokenize(line))
	if len(ids) == 0 {
		return nil, fmt.Errorf("fasttext: predict: empty query line")
	}
	return ft.ensureInferModel().Predict(ids, k)
}

// PredictLabel is the label text for vocabulary index i (nwords-relative
// label id), i.e. the inverse of dict label-id addressing in
// GetLineLabeled.
func (ft *FastText) PredictLabel(classID int32) string {
	return ft.dict.Entry(ft.dict.NWords() + int(classID)).Word
}

var (
	// ErrNotSupervised is returned by operations that require a
	// supervised model.
	ErrNotSupervised = fmt.Errorf("fasttext: operation requires a supervised model")
	// ErrAlreadyQuantized is returned by Quantize on a model whose input
	// is already a QMatrix.
	ErrAlreadyQuantized = fmt.Errorf("fasttext: model is already quantized")
	// ErrEmptyQuery is returned by NN and Analogies when k is not
	// positive. An empty query word is not rejected, and the vector
	// operations return a zero vector for an empty line instead of an
	// error.
	ErrEmptyQuery = fmt.Errorf("fasttext: empty query")
)

// WriteVectors writes the output.vec text format: a header line
// "<count> <dim>", then one "<word> v0 v1 ... v_{dim-1}" line per word in
// vocabulary order, floats formatted to 5 significant digits.
func (ft *FastText) WriteVectors(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d\n", ft.dict.NWords(), ft.args.Dim); err != nil {
		return err
	}
	for i := 0; i < ft.dict.NWords(); i++ {
		word := ft.dict.Entry(i).Word
		vec := ft.GetWordVector(word)
		if _, err := bw.WriteString(word); err != nil {
			return err
		}
		for _, v := range vec {
			if _, err := fmt.Fprintf(bw, " %s", formatG(v)); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatG(v float32) string {
	return fmt.Sprintf("%.5g", v)
}

// WriteSentenceVectors reads one line of text per input line from r and
// writes "<v0> v1 ... v_{dim-1}\n" for each to w (cmd/fasttext
// print-sentence-vectors).
func (ft *FastText) WriteSentenceVectors(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	bw := bufio.NewWriter(w)
	for sc.Scan() {
		vec := ft.GetSentenceVector(sc.Text())
		for i, v := range vec {
			if i > 0 {
				if _, err := bw.WriteString(" "); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(formatG(v)); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

// PrintNgrams writes every subword of word (including itself if
// in-vocab) to w for the CLI's print-ngrams, one "<id> <vector>" line
// each, where id is the subword's input-matrix row. The n-gram text itself
// is not printed.
func (ft *FastText) PrintNgrams(w io.Writer, word string) error {
	ids := ft.dict.Subwords(word)
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		vec := make([]float32, ft.args.Dim)
		ft.input.AddRow(vec, int(id), 1)
		if _, err := fmt.Fprintf(bw, "%d", id); err != nil {
			return err
		}
		for _, v := range vec {
			if _, err := fmt.Fprintf(bw, " %s", formatG(v)); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Test evaluates supervised predictions against a labeled test file,
// returning (precision@k, recall@k, nexamples).
func (ft *FastText) Test(r io.Reader, k int) (precision, recall float64, nexamples int, err error) {
	if ft.args.Model != args.Supervised {
		return 0, 0, 0, ErrNotSupervised
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var correct, predicted, gold int
	for sc.Scan() {
		tokens := ft.tokenize(sc.Text())
		ids, labels := ft.dict.GetLineLabeled(tokens)
		if len(labels) == 0 {
			continue
		}
		nexamples++
		gold += len(labels)
		if len(ids) == 0 {
			continue
		}
		preds, perr := ft.ensureInferModel().Predict(ids, k)
		if perr != nil {
			return 0, 0, 0, perr
		}
		predicted += len(preds)
		goldSet := make(map[int32]bool, len(labels))
		for _, l := range labels {
			goldSet[l] = true
		}
		for _, p := range preds {
			if goldSet[p.Class] {
				correct++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, 0, err
	}
	if predicted > 0 {
		precision = float64(correct) / float64(predicted)
	}
	if gold > 0 {
		recall = float64(correct) / float64(gold)
	}
	return precision, recall, nexamples, nil
}
