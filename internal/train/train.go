// Package train implements a parallel Hogwild! SGD trainer: a file is
// sharded by byte offset across `thread` workers, each running its own
// seekable reader against shared, unsynchronized input/output matrices.
package train

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/dict"
	"github.com/MrBananaHuman/jamofasttext/internal/jamo"
	"github.com/MrBananaHuman/jamofasttext/internal/matrix"
	"github.com/MrBananaHuman/jamofasttext/internal/model"
)

// LabelCounts builds the per-output-class count vector Model needs for
// its NS table / HS tree: word counts for sg/cbow, label counts for
// supervised.
func LabelCounts(a *args.Args, d *dict.Dictionary) []int64 {
	var n int
	if a.Model == args.Supervised {
		n = d.NLabels()
	} else {
		n = d.NWords()
	}
	counts := make([]int64, n)
	for i := 0; i < n; i++ {
		idx := i
		if a.Model == args.Supervised {
			idx = i + d.NWords()
		}
		counts[i] = int64(d.Entry(idx).Count)
	}
	return counts
}

// Trainer runs parallel SGD over a tokenized input file.
type Trainer struct {
	args     *args.Args
	dict     *dict.Dictionary
	input    matrix.Variant
	output   matrix.Variant
	progress Progress

	tokenCount int64 // atomic, shared across workers
	startTime  time.Time
}

// New constructs a Trainer bound to shared input/output matrices,
// read/written without locks by every worker.
func New(a *args.Args, d *dict.Dictionary, input, output matrix.Variant, progress Progress) *Trainer {
	if progress == nil {
		progress = NoopProgress{}
	}
	return &Trainer{args: a, dict: d, input: input, output: output, progress: progress}
}

// Train shards path by byte offset across args.Thread workers and runs
// them to convergence (epoch*ntokens processed), returning the first
// worker error encountered. ctx cancellation stops all workers cleanly with no
// partial-model persistence implied by the caller.
func (t *Trainer) Train(ctx context.Context, path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("train: stat input: %w", err)
	}
	fileSize := stat.Size()

	labelCounts := LabelCounts(t.args, t.dict)
	t.startTime = time.Now()
	atomic.StoreInt64(&t.tokenCount, 0)

	g, gctx := errgroup.WithContext(ctx)
	for tid := 0; tid < t.args.Thread; tid++ {
		tid := tid
		g.Go(func() error {
			return t.worker(gctx, tid, path, fileSize, labelCounts)
		})
	}
	return g.Wait()
}

func (t *Trainer) worker(ctx context.Context, tid int, path string, fileSize int64, labelCounts []int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("train: worker %d: open: %w", tid, err)
	}
	defer f.Close()

	seekTo := int64(tid) * fileSize / int64(t.args.Thread)
	if _, err := f.Seek(seekTo, 0); err != nil {
		return fmt.Errorf("train: worker %d: seek: %w", tid, err)
	}
	r := bufio.NewReader(f)
	if seekTo > 0 {
		// Land on a line boundary, matching the reference's
		// byte-offset sharding.
		if _, err := r.ReadString('\n'); err != nil {
			return nil // shard starts past EOF; nothing to train on.
		}
	}

	m := model.New(t.args, t.input, t.output, int64(tid+1), labelCounts)
	rng := rand.New(rand.NewSource(int64(tid + 1)))

	target := int64(t.args.Epoch) * t.dict.NTokens()
	var tokensSeen int64

	for atomic.LoadInt64(&t.tokenCount) < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progress := float64(atomic.LoadInt64(&t.tokenCount)) / float64(target)
		lr := float32(t.args.LR * (1 - progress))

		tokens, readErr := dict.ReadLineTokens(r)
		if len(tokens) > 0 {
			if t.args.Jamo {
				for i, tok := range tokens {
					tokens[i] = jamo.Decompose(tok)
				}
			}
			tokensSeen += int64(len(tokens))
			if err := t.step(m, rng, tokens, lr); err != nil {
				return fmt.Errorf("train: worker %d: %w", tid, err)
			}
		}
		if readErr != nil {
			// EOF mid-epoch: rewind to the start of this worker's
			// shard and keep going until the global token budget is
			// reached.
			if _, err := f.Seek(seekTo, 0); err != nil {
				return fmt.Errorf("train: worker %d: rewind: %w", tid, err)
			}
			r = bufio.NewReader(f)
		}

		if tokensSeen > int64(t.args.LRUpdateRate) {
			atomic.AddInt64(&t.tokenCount, tokensSeen)
			tokensSeen = 0
			if tid == 0 {
				wps := float64(atomic.LoadInt64(&t.tokenCount)) / time.Since(t.startTime).Seconds()
				t.progress.Report(progress, lr, wps, m.Loss())
				glog.V(1).Infof("train: progress=%.2f%% lr=%.6f wps=%.0f loss=%.6f", progress*100, lr, wps, m.Loss())
			}
		}
	}
	return nil
}

func (t *Trainer) step(m *model.Model, rng *rand.Rand, tokens []string, lr float32) error {
	switch t.args.Model {
	case args.Supervised:
		return t.supervised(m, tokens, lr)
	case args.CBOW:
		return t.cbow(m, rng, tokens, lr)
	case args.Skipgram:
		return t.skipgram(m, rng, tokens, lr)
	default:
		return fmt.Errorf("train: unknown model type %v", t.args.Model)
	}
}

// supervised picks a uniformly random target from labels and calls
// model.Update(line, labels[i], lr).
func (t *Trainer) supervised(m *model.Model, tokens []string, lr float32) error {
	ids, labels := t.dict.GetLineLabeled(tokens)
	if len(labels) == 0 || len(ids) == 0 {
		return nil
	}
	i := m.PickRandomIndex(len(labels))
	return m.Update(ids, labels[i], lr)
}

// cbow: for each position w, sample a boundary b in U{1..ws}, collect the
// subwords of every neighbor in [w-b, w+b] \ {w} into bow, call
// update(bow, line[w], lr).
func (t *Trainer) cbow(m *model.Model, rng *rand.Rand, tokens []string, lr float32) error {
	line := t.dict.GetLineUnlabeled(tokens, rng)
	for w := 0; w < len(line); w++ {
		b := 1 + rng.Intn(t.args.WS)
		var bow []int32
		for c := -b; c <= b; c++ {
			if c == 0 {
				continue
			}
			idx := w + c
			if idx < 0 || idx >= len(line) {
				continue
			}
			bow = append(bow, t.dict.Entry(int(line[idx])).Subwords...)
		}
		if len(bow) == 0 {
			continue
		}
		if err := m.Update(bow, line[w], lr); err != nil {
			return err
		}
	}
	return nil
}

// skipgram: for each position w, sample b, then for every offset c in
// [-b, b] \ {0}, call update(subwords_of(line[w]), line[w+c], lr).
func (t *Trainer) skipgram(m *model.Model, rng *rand.Rand, tokens []string, lr float32) error {
	line := t.dict.GetLineUnlabeled(tokens, rng)
	for w := 0; w < len(line); w++ {
		b := 1 + rng.Intn(t.args.WS)
		subwords := t.dict.Entry(int(line[w])).Subwords
		for c := -b; c <= b; c++ {
			if c == 0 {
				continue
			}
			idx := w + c
			if idx < 0 || idx >= len(line) {
				continue
			}
			if err := m.Update(subwords, line[idx], lr); err != nil {
				return err
			}
		}
	}
	return nil
}
