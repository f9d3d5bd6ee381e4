package fasttext

import (
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/dict"
	"github.com/MrBananaHuman/jamofasttext/internal/matrix"
	"github.com/MrBananaHuman/jamofasttext/internal/wire"
)

// MagicNumber and the version bounds pin the binary model file layout.
const (
	MagicNumber    int32 = 793712314
	CurrentVersion int32 = 12
	MaxVersion     int32 = 12
)

// ErrBadMagic and ErrVersionTooNew are the two fatal load errors for a
// malformed header.
var (
	ErrBadMagic      = fmt.Errorf("fasttext: bad magic number")
	ErrVersionTooNew = fmt.Errorf("fasttext: model version newer than supported")
)

func modelTypeWire(m args.ModelType) int32 {
	switch m {
	case args.CBOW:
		return 1
	case args.Skipgram:
		return 2
	case args.Supervised:
		return 3
	default:
		return 0
	}
}

func modelTypeFromWire(v int32) args.ModelType {
	switch v {
	case 1:
		return args.CBOW
	case 2:
		return args.Skipgram
	case 3:
		return args.Supervised
	default:
		return 0
	}
}

// Save writes the full binary model file: header, Args, Dictionary, and
// both matrices.
func (ft *FastText) Save(w io.Writer) error {
	ww := wire.NewWriter(w)
	ww.I32(MagicNumber)
	ww.I32(CurrentVersion)

	a := ft.args
	ww.I32(int32(a.Dim))
	ww.I32(int32(a.WS))
	ww.I32(int32(a.Epoch))
	ww.I32(int32(a.MinCount))
	ww.I32(int32(a.Neg))
	ww.I32(int32(a.WordNgrams))
	ww.I32(int32(a.Loss))
	ww.I32(modelTypeWire(a.Model))
	ww.I32(int32(a.Bucket))
	ww.I32(int32(a.Minn))
	ww.I32(int32(a.Maxn))
	ww.I32(int32(a.LRUpdateRate))
	ww.F64(a.T)
	ww.Bool(a.Jamo)
	ww.I32(int32(a.JamoVariant))

	ft.dict.Save(ww)

	ww.Bool(ft.quantizedInput)
	if ft.quantizedInput {
		ft.input.Quantized.Save(ww)
	} else {
		ft.input.Dense.Save(ww)
	}

	ww.Bool(ft.qout)
	if ft.quantizedInput && ft.qout {
		ft.output.Quantized.Save(ww)
	} else {
		ft.output.Dense.Save(ww)
	}

	if err := ww.Err(); err != nil {
		return fmt.Errorf("fasttext: save: %w", err)
	}
	if err := ww.Flush(); err != nil {
		return err
	}
	glog.Infof("fasttext: saved model: %d words, %d labels, dim=%d", ft.dict.NWords(), ft.dict.NLabels(), a.Dim)
	return nil
}

// Load reads a binary model file written by Save, applying the
// version-11-supervised-maxn back-compat rule.
func Load(r io.Reader) (*FastText, error) {
	rr := wire.NewReader(r)
	if err := wire.CheckMagic(rr, MagicNumber, "magic"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	version := rr.I32()
	if version > MaxVersion {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrVersionTooNew, version, MaxVersion)
	}

	var a args.Args
	a.Dim = int(rr.I32())
	a.WS = int(rr.I32())
	a.Epoch = int(rr.I32())
	a.MinCount = int(rr.I32())
	a.Neg = int(rr.I32())
	a.WordNgrams = int(rr.I32())
	a.Loss = args.LossType(rr.I32())
	a.Model = modelTypeFromWire(rr.I32())
	a.Bucket = int(rr.I32())
	a.Minn = int(rr.I32())
	a.Maxn = int(rr.I32())
	a.LRUpdateRate = int(rr.I32())
	a.T = rr.F64()
	a.Jamo = rr.Bool()
	a.JamoVariant = args.JamoVariant(rr.I32())
	a.LabelPrefix = "__label__"
	a.Thread = 1
	if rr.Err() != nil {
		return nil, fmt.Errorf("fasttext: load header: %w", rr.Err())
	}

	if version == 11 && a.Model == args.Supervised {
		a.Maxn = 0
	}

	d, err := dict.Load(rr, &a)
	if err != nil {
		return nil, fmt.Errorf("fasttext: load dictionary: %w", err)
	}

	quantInput := rr.Bool()
	var input matrix.Variant
	if quantInput {
		qm, err := matrix.LoadQMatrix(rr)
		if err != nil {
			return nil, fmt.Errorf("fasttext: load input qmatrix: %w", err)
		}
		input = matrix.QuantizedVariant(qm)
	} else {
		m, err := matrix.LoadMatrix(rr)
		if err != nil {
			return nil, fmt.Errorf("fasttext: load input matrix: %w", err)
		}
		input = matrix.DenseVariant(m)
	}

	qout := rr.Bool()
	var output matrix.Variant
	if quantInput && qout {
		qm, err := matrix.LoadQMatrix(rr)
		if err != nil {
			return nil, fmt.Errorf("fasttext: load output qmatrix: %w", err)
		}
		output = matrix.QuantizedVariant(qm)
	} else {
		m, err := matrix.LoadMatrix(rr)
		if err != nil {
			return nil, fmt.Errorf("fasttext: load output matrix: %w", err)
		}
		output = matrix.DenseVariant(m)
	}

	if rr.Err() != nil {
		return nil, fmt.Errorf("fasttext: load: %w", rr.Err())
	}

	glog.Infof("fasttext: loaded model: %d words, %d labels, dim=%d, quantized=%v", d.NWords(), d.NLabels(), a.Dim, quantInput)

	return &FastText{
		args:           &a,
		dict:           d,
		input:          input,
		output:         output,
		quantizedInput: quantInput,
		qout:           qout,
	}, nil
}
