// Command fasttext is a thin CLI wiring every subcommand to
// internal/fasttext; it contains no training or inference logic of its
// own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/fasttext"
)

func main() {
	if len(os.Args) < 2 {
		glog.Fatal("usage: fasttext <skipgram|cbow|supervised|quantize|test|predict|predict-prob|print-word-vectors|print-sentence-vectors|print-ngrams|nn|analogies> ...")
	}
	cmd, rest := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "skipgram":
		err = runTrain(args.Skipgram, rest)
	case "cbow":
		err = runTrain(args.CBOW, rest)
	case "supervised":
		err = runTrain(args.Supervised, rest)
	case "quantize":
		err = runQuantize(rest)
	case "test":
		err = runTest(rest)
	case "predict":
		err = runPredict(rest, false)
	case "predict-prob":
		err = runPredict(rest, true)
	case "print-word-vectors":
		err = runPrintWordVectors(rest)
	case "print-sentence-vectors":
		err = runPrintSentenceVectors(rest)
	case "print-ngrams":
		err = runPrintNgrams(rest)
	case "nn":
		err = runNN(rest)
	case "analogies":
		err = runAnalogies(rest)
	default:
		glog.Fatalf("fasttext: unknown command %q", cmd)
	}
	if err != nil {
		glog.Errorf("fasttext: %s: %v", cmd, err)
		os.Exit(1)
	}
}

// bindArgs wires the training fields of args.Args to flags on fs, one
// flag.Int/Float64/String/Bool per field. Model comes from the subcommand,
// and Qout, Qnorm, Cutoff and Dsub are not bound here (the quantize
// command has its own flags for them). Returns a closure that finishes
// populating the loss/jamo-variant enum fields after fs.Parse.
func bindArgs(fs *flag.FlagSet, a *args.Args) (finish func()) {
	d := args.Defaults()
	fs.IntVar(&a.Dim, "dim", d.Dim, "size of word vectors")
	fs.IntVar(&a.WS, "ws", d.WS, "size of the context window")
	fs.IntVar(&a.Epoch, "epoch", d.Epoch, "number of epochs")
	fs.IntVar(&a.MinCount, "minCount", d.MinCount, "minimal number of word occurrences")
	fs.IntVar(&a.MinCountLabel, "minCountLabel", d.MinCountLabel, "minimal number of label occurrences")
	fs.IntVar(&a.Neg, "neg", d.Neg, "number of negatives sampled")
	fs.IntVar(&a.WordNgrams, "wordNgrams", d.WordNgrams, "max length of word ngram")
	fs.Float64Var(&a.LR, "lr", d.LR, "learning rate")
	fs.IntVar(&a.LRUpdateRate, "lrUpdateRate", d.LRUpdateRate, "change the rate of updates for the learning rate")
	fs.IntVar(&a.Bucket, "bucket", d.Bucket, "number of buckets")
	fs.IntVar(&a.Minn, "minn", d.Minn, "min length of char ngram")
	fs.IntVar(&a.Maxn, "maxn", d.Maxn, "max length of char ngram")
	fs.Float64Var(&a.T, "t", d.T, "sampling threshold")
	fs.StringVar(&a.LabelPrefix, "label", d.LabelPrefix, "labels prefix")
	fs.IntVar(&a.Thread, "thread", d.Thread, "number of threads")
	fs.BoolVar(&a.Jamo, "jamo", false, "decompose Korean Hangul syllables into jamo before training")

	lossName := fs.String("loss", "ns", "loss function {ns, hs, softmax}")
	jamoVariant := fs.Int("jamoVariant", 0, "Korean subword variant: 0=none 1=consonants-only 2=per-syllable-ablation 3=all-combination")

	return func() {
		switch *lossName {
		case "hs":
			a.Loss = args.HS
		case "softmax":
			a.Loss = args.Softmax
		default:
			a.Loss = args.NS
		}
		a.JamoVariant = args.JamoVariant(*jamoVariant)
	}
}

func runTrain(model args.ModelType, rest []string) error {
	fs := flag.NewFlagSet(model.String(), flag.ExitOnError)
	var input, output string
	fs.StringVar(&input, "input", "", "training file path")
	fs.StringVar(&output, "output", "", "output model path prefix")
	a := &args.Args{Model: model}
	finish := bindArgs(fs, a)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	finish()
	if input == "" || output == "" {
		return fmt.Errorf("-input and -output are required")
	}
	validated, err := args.New(*a)
	if err != nil {
		return err
	}

	ft, err := fasttext.NewForTraining(&validated, input)
	if err != nil {
		return err
	}
	if err := ft.Train(context.Background(), input, glogProgress{}); err != nil {
		return err
	}

	f, err := os.Create(output + ".bin")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ft.Save(f); err != nil {
		return err
	}

	vf, err := os.Create(output + ".vec")
	if err != nil {
		return err
	}
	defer vf.Close()
	return ft.WriteVectors(vf)
}

func runQuantize(rest []string) error {
	fs := flag.NewFlagSet("quantize", flag.ExitOnError)
	input := fs.String("input", "", "trained .bin model path")
	output := fs.String("output", "", "output .ftz path prefix")
	cutoff := fs.Int("cutoff", 0, "restrict to the most frequent cutoff words")
	dsub := fs.Int("dsub", 2, "size of each sub-vector")
	qnorm := fs.Bool("qnorm", false, "quantize norm separately")
	qout := fs.Bool("qout", false, "quantize the output matrix too")
	seed := fs.Int64("seed", 1, "product quantizer RNG seed")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *input == "" || *output == "" {
		return fmt.Errorf("-input and -output are required")
	}
	ft, err := openModel(*input)
	if err != nil {
		return err
	}
	if err := ft.Quantize(*cutoff, *dsub, *qnorm, *qout, *seed); err != nil {
		return err
	}
	out, err := os.Create(*output + ".ftz")
	if err != nil {
		return err
	}
	defer out.Close()
	return ft.Save(out)
}

func openModel(path string) (*fasttext.FastText, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fasttext.Load(f)
}

func runTest(rest []string) error {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	testFile := fs.String("test", "-", "labeled test file, or - for stdin")
	k := fs.Int("k", 1, "number of predictions per line")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	r, closeFn, err := openInput(*testFile)
	if err != nil {
		return err
	}
	defer closeFn()
	precision, recall, n, err := ft.Test(r, *k)
	if err != nil {
		return err
	}
	fmt.Printf("N\t%d\n", n)
	fmt.Printf("P@%d\t%.3f\n", *k, precision)
	fmt.Printf("R@%d\t%.3f\n", *k, recall)
	return nil
}

func runPredict(rest []string, withProb bool) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	testFile := fs.String("test", "-", "input file, or - for stdin")
	k := fs.Int("k", 1, "number of predictions per line")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	r, closeFn, err := openInput(*testFile)
	if err != nil {
		return err
	}
	defer closeFn()
	return eachLine(r, func(line string) error {
		preds, err := ft.PredictLine(line, *k)
		if err != nil {
			return err
		}
		for _, p := range preds {
			if withProb {
				fmt.Printf("%s %f\n", ft.PredictLabel(p.Class), expF(p.Label))
			} else {
				fmt.Println(ft.PredictLabel(p.Class))
			}
		}
		return nil
	})
}

func runPrintWordVectors(rest []string) error {
	fs := flag.NewFlagSet("print-word-vectors", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	return eachLine(os.Stdin, func(line string) error {
		vec := ft.GetWordVector(line)
		fmt.Print(line)
		for _, v := range vec {
			fmt.Printf(" %.5g", v)
		}
		fmt.Println()
		return nil
	})
}

func runPrintSentenceVectors(rest []string) error {
	fs := flag.NewFlagSet("print-sentence-vectors", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	return ft.WriteSentenceVectors(os.Stdin, os.Stdout)
}

func runPrintNgrams(rest []string) error {
	fs := flag.NewFlagSet("print-ngrams", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	word := fs.String("word", "", "query word")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	return ft.PrintNgrams(os.Stdout, *word)
}

func runNN(rest []string) error {
	fs := flag.NewFlagSet("nn", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	word := fs.String("word", "", "query word")
	k := fs.Int("k", 10, "number of neighbors")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	neighbors, err := ft.NN(*word, *k)
	if err != nil {
		return err
	}
	for _, n := range neighbors {
		fmt.Printf("%s %f\n", n.Word, n.Score)
	}
	return nil
}

func runAnalogies(rest []string) error {
	fs := flag.NewFlagSet("analogies", flag.ExitOnError)
	model := fs.String("model", "", "trained model path")
	a := fs.String("a", "", "")
	b := fs.String("b", "", "")
	c := fs.String("c", "", "")
	k := fs.Int("k", 5, "number of results")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ft, err := openModel(*model)
	if err != nil {
		return err
	}
	neighbors, err := ft.Analogies(*k, *a, *b, *c)
	if err != nil {
		return err
	}
	for _, n := range neighbors {
		fmt.Printf("%s %f\n", n.Word, n.Score)
	}
	return nil
}

// glogProgress is the glog-backed train.Progress implementation
// cmd/fasttext wires in; tests wire train.NoopProgress instead.
type glogProgress struct{}

func (glogProgress) Report(progress float64, lr float32, wps float64, loss float32) {
	glog.Infof("progress=%.2f%% lr=%.6f wps=%.0f loss=%.6f", progress*100, lr, wps, loss)
}
