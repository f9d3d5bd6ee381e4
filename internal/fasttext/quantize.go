package fasttext

import (
	"math/rand"

	"github.com/golang/glog"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/matrix"
)

// Quantize compresses the input matrix (and, if qout, the output matrix)
// into product-quantized form. It rejects an
// already-quantized model and a non-supervised model. cutoff, when positive and below the current
// vocabulary size, first restricts the dictionary to its cutoff
// highest-ranked words before quantizing, shrinking
// the compressed model.
func (ft *FastText) Quantize(cutoff, dsub int, qnorm, qout bool, seed int64) error {
	if ft.quantizedInput {
		return ErrAlreadyQuantized
	}
	if ft.args.Model != args.Supervised {
		return ErrNotSupervised
	}
	rng := rand.New(rand.NewSource(seed))

	input := ft.input.Dense
	if cutoff > 0 && cutoff < ft.dict.NWords() {
		glog.Infof("fasttext: quantize: cutting off input to %d words", cutoff)
		var err error
		input, err = ft.cutoffInput(cutoff)
		if err != nil {
			return err
		}
	}

	glog.Infof("fasttext: quantize: training input product quantizer, dsub=%d qnorm=%v", dsub, qnorm)
	qm, err := matrix.Quantize(input, dsub, qnorm, rng)
	if err != nil {
		return err
	}
	ft.input = matrix.QuantizedVariant(qm)
	ft.quantizedInput = true
	ft.qout = qout
	ft.args.Qout = qout
	ft.args.Qnorm = qnorm
	ft.args.Dsub = dsub
	ft.args.Cutoff = cutoff

	if qout {
		glog.Infof("fasttext: quantize: training output product quantizer, dsub=%d", dsub)
		oqm, err := matrix.Quantize(ft.output.Dense, dsub, false, rng)
		if err != nil {
			return err
		}
		ft.output = matrix.QuantizedVariant(oqm)
	}
	ft.infer = nil
	ft.bank = nil
	return nil
}

// cutoffInput restricts the dictionary to its top `cutoff` words (via
// dict.Prune) and rebuilds the input matrix to match: the first cutoff
// rows are the corresponding original word rows (Prune keeps them in
// their original, already-count-descending order), followed by one row
// per surviving pruned ngram bucket, gathered from its original bucket
// row by the remap dict.Prune records.
func (ft *FastText) cutoffInput(cutoff int) (*matrix.Matrix, error) {
	oldNwords := ft.dict.NWords()
	old := ft.input.Dense

	ft.dict.Prune(cutoff)

	pruneIdx := ft.dict.PruneIdx()
	m := matrix.NewMatrix(cutoff+len(pruneIdx), ft.args.Dim)
	for i := 0; i < cutoff; i++ {
		copy(m.Data[i*m.N:(i+1)*m.N], old.Data[i*old.N:(i+1)*old.N])
	}
	for ng, idx := range pruneIdx {
		srcRow := oldNwords + int(ng)
		dstRow := cutoff + int(idx)
		copy(m.Data[dstRow*m.N:(dstRow+1)*m.N], old.Data[srcRow*old.N:(srcRow+1)*old.N])
	}
	return m, nil
}
