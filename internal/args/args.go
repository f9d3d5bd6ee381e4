// Package args holds the immutable training/inference configuration
// shared by the dictionary, model, and trainer.
package args

import "fmt"

// ModelType selects the training objective's input/output shape.
type ModelType int

const (
	Skipgram ModelType = iota + 1
	CBOW
	Supervised
)

func (m ModelType) String() string {
	switch m {
	case Skipgram:
		return "skipgram"
	case CBOW:
		return "cbow"
	case Supervised:
		return "supervised"
	default:
		return "unknown"
	}
}

// LossType selects the output-layer loss.
type LossType int

const (
	HS LossType = iota + 1
	NS
	Softmax
)

func (l LossType) String() string {
	switch l {
	case HS:
		return "hs"
	case NS:
		return "ns"
	case Softmax:
		return "softmax"
	default:
		return "unknown"
	}
}

// Args is the immutable configuration for a training or inference run.
// Construct with New, which validates and applies the supervised-mode
// forcing invariant.
type Args struct {
	Model ModelType
	Loss  LossType

	Dim          int
	WS           int
	Epoch        int
	MinCount     int
	MinCountLabel int
	Neg          int
	WordNgrams   int
	LR           float64
	LRUpdateRate int
	Bucket       int
	Minn         int
	Maxn         int
	T            float64
	LabelPrefix  string
	Qout         bool
	Qnorm        bool
	Cutoff       int
	Dsub         int
	Thread       int

	// Jamo enables Korean jamo decomposition of input text before
	// tokenization.
	Jamo bool
	// JamoVariant selects the Korean subword-generation variant applied
	// on top of plain byte-ngrams, when Jamo is enabled.
	JamoVariant JamoVariant
}

// JamoVariant selects one of the experimental Korean subword generators.
type JamoVariant int

const (
	JamoNone JamoVariant = iota
	JamoConsonantsOnly
	JamoPerSyllableAblation
	JamoAllCombination
)

// Defaults mirrors the reference fastText CLI defaults.
func Defaults() Args {
	return Args{
		Model:         Skipgram,
		Loss:          NS,
		Dim:           100,
		WS:            5,
		Epoch:         5,
		MinCount:      5,
		MinCountLabel: 0,
		Neg:           5,
		WordNgrams:    1,
		LR:            0.05,
		LRUpdateRate:  100,
		Bucket:        2000000,
		Minn:          3,
		Maxn:          6,
		T:             1e-4,
		LabelPrefix:   "__label__",
		Cutoff:        0,
		Dsub:          2,
		Thread:        1,
	}
}

// New validates a populated Args and applies the supervised-mode forcing
// invariant and the wordNgrams/bucket invariant:
//
//	for supervised, minn=maxn=0, loss=softmax, minCount=1, lr=0.1 are forced;
//	if wordNgrams <= 1 and maxn = 0 then bucket is forced to 0.
func New(a Args) (Args, error) {
	if a.Dim <= 0 {
		return Args{}, fmt.Errorf("args: dim must be positive, got %d", a.Dim)
	}
	if a.WS <= 0 {
		return Args{}, fmt.Errorf("args: ws must be positive, got %d", a.WS)
	}
	if a.Epoch <= 0 {
		return Args{}, fmt.Errorf("args: epoch must be positive, got %d", a.Epoch)
	}
	if a.Thread <= 0 {
		a.Thread = 1
	}
	if a.Model == 0 {
		return Args{}, fmt.Errorf("args: unknown model type")
	}

	if a.Model == Supervised {
		a.Minn = 0
		a.Maxn = 0
		a.Loss = Softmax
		a.MinCount = 1
		a.LR = 0.1
	}
	if a.Loss == 0 {
		return Args{}, fmt.Errorf("args: unknown loss type")
	}
	if a.WordNgrams <= 1 && a.Maxn == 0 {
		a.Bucket = 0
	}
	return a, nil
}
