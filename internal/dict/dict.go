// Package dict implements the vocabulary, subword hashing, and line
// tokenization. It owns the Entry/Dictionary types and the FNV-1a
// hashing used throughout, down to the exact bit pattern.
package dict

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/golang/glog"

	"github.com/MrBananaHuman/jamofasttext/internal/args"
	"github.com/MrBananaHuman/jamofasttext/internal/jamo"
	"github.com/MrBananaHuman/jamofasttext/internal/wire"
)

// MaxVocabSize is the fixed capacity of the open-addressed word2int table.
const MaxVocabSize = 30000000

// EOS is the sentinel end-of-sentence/newline token.
const EOS = "</s>"

// EntryType distinguishes plain words from supervised labels.
type EntryType uint8

const (
	WordType EntryType = iota
	LabelType
)

// Entry is one vocabulary item. Subwords is populated by initNgrams
// after thresholding; Prune later rewrites it to the compact ngram ids.
type Entry struct {
	Word     string
	Count    uint64
	Type     EntryType
	Subwords []int32
}

// Dictionary is the vocabulary and subword-hashing engine.
// Zero value is not usable; construct with New.
type Dictionary struct {
	args *args.Args

	words    []Entry
	word2int []int32 // len == MaxVocabSize, sentinel -1 for empty.

	pdiscard []float32

	nwords, nlabels int
	ntokens         int64

	pruneIdx     map[int32]int32
	pruneIdxSize int64
}

// New creates an empty Dictionary bound to a (already-validated) Args.
func New(a *args.Args) *Dictionary {
	d := &Dictionary{
		args:         a,
		word2int:     make([]int32, MaxVocabSize),
		pruneIdxSize: -1,
	}
	for i := range d.word2int {
		d.word2int[i] = -1
	}
	return d
}

// NWords, NLabels, Size, NTokens are the read-only vocabulary accessors.
func (d *Dictionary) NWords() int    { return d.nwords }
func (d *Dictionary) NLabels() int   { return d.nlabels }
func (d *Dictionary) Size() int      { return len(d.words) }
func (d *Dictionary) NTokens() int64 { return d.ntokens }
func (d *Dictionary) Bucket() int    { return d.args.Bucket }

// Entry returns the entry at vocabulary index i.
func (d *Dictionary) Entry(i int) *Entry { return &d.words[i] }

// PruneIdx exposes the ngram-bucket remap table built by Prune, so a
// caller rebuilding the input matrix around a cutoff can gather exactly
// the bucket rows that survived pruning. Nil before Prune is called.
func (d *Dictionary) PruneIdx() map[int32]int32 { return d.pruneIdx }

// Hash computes the FNV-1a 32-bit hash over the UTF-8 bytes
// of s: h = 2166136261; for each byte b, h = (h XOR b) * 16777619, masked
// to 32 bits. This is the textbook FNV-1a-32 accumulate used throughout
// fastText-family implementations; Go's stdlib hash/fnv produces the
// identical stream of updates, but we keep the loop inline to stay
// allocation-free on a hot path taking a string, not an io.Writer.
func Hash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// find returns the open-addressed slot for word s, starting the linear
// probe at hash h mod MaxVocabSize, stopping at the first empty slot (-1)
// or a slot whose entry equals s.
func (d *Dictionary) find(s string, h uint32) int64 {
	id := int64(h) % MaxVocabSize
	for d.word2int[id] != -1 && d.words[d.word2int[id]].Word != s {
		id = (id + 1) % MaxVocabSize
	}
	return id
}

func (d *Dictionary) findWord(s string) int64 {
	return d.find(s, Hash(s))
}

// addEntry adds or bumps the count of word s with the given type, using
// its precomputed hash.
func (d *Dictionary) addEntry(s string, t EntryType) {
	h := Hash(s)
	id := d.find(s, h)
	if d.word2int[id] == -1 {
		d.words = append(d.words, Entry{Word: s, Count: 0, Type: t})
		d.word2int[id] = int32(len(d.words) - 1)
	}
	d.words[d.word2int[id]].Count++
}

// IdOf returns the vocabulary index of s, or -1 if not present.
func (d *Dictionary) IdOf(s string) int32 {
	return d.word2int[d.findWord(s)]
}

// TypeOf returns the EntryType of vocabulary index i.
func (d *Dictionary) TypeOf(i int32) EntryType {
	if i < int32(d.nwords) {
		return WordType
	}
	return LabelType
}

// ReadFromFile tokenizes in whitespace-separated, treating newlines as the
// EOS sentinel, logging progress every 10,000,000 tokens and applying a
// progressive minThreshold if the live vocabulary overflows 0.75 *
// MaxVocabSize. After EOF it applies the
// final threshold(minCount, minCountLabel).
func (d *Dictionary) ReadFromFile(r io.Reader) error {
	sc := newTokenScanner(r)
	minThreshold := int64(1)
	var ntokens int64
	for {
		tok, ok := sc.Next()
		if !ok {
			break
		}
		if tok == "\n" {
			d.addEntry(EOS, WordType)
		} else {
			d.addWord(tok)
		}
		ntokens++
		if ntokens%10000000 == 0 {
			glog.Infof("dict: read %d M tokens", ntokens/1000000)
		}
		if int64(len(d.words)) > int64(0.75*float64(MaxVocabSize)) {
			minThreshold++
			d.threshold(minThreshold, minThreshold)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("dict: reading input: %w", err)
	}
	d.ntokens = ntokens
	d.threshold(int64(d.args.MinCount), int64(d.args.MinCountLabel))
	d.initTableDiscard()
	d.initNgrams()
	if len(d.words) == 0 {
		return ErrEmptyVocabulary
	}
	glog.Infof("dict: read %d tokens, %d words, %d labels", d.ntokens, d.nwords, d.nlabels)
	return nil
}

func (d *Dictionary) addWord(tok string) {
	if isLabel(tok, d.args.LabelPrefix) {
		d.addEntry(tok, LabelType)
		return
	}
	if d.args.Jamo {
		tok = jamo.Decompose(tok)
	}
	d.addEntry(tok, WordType)
}

func isLabel(tok, prefix string) bool {
	return len(prefix) > 0 && len(tok) >= len(prefix) && tok[:len(prefix)] == prefix
}

// threshold sorts entries by (type, -count) (WORD before LABEL, descending
// count), drops entries below their type's threshold, and rebuilds
// word2int.
func (d *Dictionary) threshold(t, tlabel int64) {
	sort.Slice(d.words, func(i, j int) bool {
		wi, wj := d.words[i], d.words[j]
		if wi.Type != wj.Type {
			return wi.Type < wj.Type
		}
		return wi.Count > wj.Count
	})
	filtered := d.words[:0]
	for _, e := range d.words {
		keep := (e.Type == WordType && int64(e.Count) >= t) ||
			(e.Type == LabelType && int64(e.Count) >= tlabel)
		if keep {
			filtered = append(filtered, e)
		}
	}
	d.words = filtered

	for i := range d.word2int {
		d.word2int[i] = -1
	}
	d.nwords, d.nlabels = 0, 0
	for i := range d.words {
		h := d.findWord(d.words[i].Word)
		d.word2int[h] = int32(i)
		if d.words[i].Type == WordType {
			d.nwords++
		} else {
			d.nlabels++
		}
	}
}

// initTableDiscard computes pdiscard_i = sqrt(t/f) + t/f for f =
// count_i/ntokens. The table is computed the same way for every model
// type; supervised dictionaries never discard because DiscardWord returns
// false for them without consulting pdiscard.
func (d *Dictionary) initTableDiscard() {
	d.pdiscard = make([]float32, len(d.words))
	for i, e := range d.words {
		f := float64(e.Count) / float64(d.ntokens)
		d.pdiscard[i] = float32(math.Sqrt(d.args.T/f) + d.args.T/f)
	}
}

// DiscardWord reports whether a fresh U(0,1) sample from rng exceeds
// pdiscard[id], i.e. the token should be skipped. Never discards for
// supervised models.
func (d *Dictionary) DiscardWord(id int32, rng *rand.Rand) bool {
	if d.args.Model == args.Supervised {
		return false
	}
	if id < 0 {
		return true
	}
	return rng.Float32() > d.pdiscard[id]
}

// paddedNgramPrefix/Suffix wrap a word with < and > for subword hashing.
func pad(word string) string { return "<" + word + ">" }

// computeSubwords returns the bucket-hashed subword ids for the padded
// string of a word (not including any self-index), spanning whole UTF-8
// code points per n in [minn, maxn] and skipping the n=1 whole-padded-word
// coincidence at either boundary.
func computeSubwords(word string, minn, maxn, bucket int) []int32 {
	if maxn <= 0 || bucket <= 0 {
		return nil
	}
	padded := pad(word)
	var out []int32
	n := len(padded)
	// Byte offsets of each code point start, so n-grams "span whole
	// UTF-8 code points".
	starts := codepointStarts(padded)
	for i := 0; i < len(starts); i++ {
		for length := 1; length <= maxn; length++ {
			j := i + length
			if j >= len(starts) {
				break
			}
			nb := starts[j] - starts[i]
			if length < minn {
				continue
			}
			// Skip the 1-gram that's the whole padded word (boundary
			// markers alone would otherwise count as n=1 ngrams).
			if length == 1 && (i == 0 || j == len(starts)-1) {
				continue
			}
			ngram := padded[starts[i]:starts[j]]
			_ = nb
			h := Hash(ngram) % uint32(bucket)
			out = append(out, int32(h))
		}
	}
	return out
}

// codepointStarts returns the byte offsets where each UTF-8 code point of
// s begins, plus len(s) as a terminal sentinel, so that starts[i]:starts[j]
// slices out exactly j-i whole code points.
func codepointStarts(s string) []int {
	starts := make([]int, 0, len(s)+1)
	for i, b := range []byte(s) {
		if b&0xC0 != 0x80 { // not a UTF-8 continuation byte
			starts = append(starts, i)
		}
	}
	starts = append(starts, len(s))
	return starts
}

// initNgrams populates Subwords for every WORD entry: [i] followed by its
// computeSubwords ids offset by nwords.
func (d *Dictionary) initNgrams() {
	for i := range d.words {
		e := &d.words[i]
		if e.Type != WordType {
			continue
		}
		e.Subwords = append(e.Subwords[:0], int32(i))
		if d.args.Maxn <= 0 {
			continue
		}
		ids := computeSubwords(e.Word, d.args.Minn, d.args.Maxn, d.args.Bucket)
		if d.args.Jamo {
			ids = append(ids, d.koreanVariantIds(e.Word)...)
		}
		base := len(e.Subwords)
		for _, h := range ids {
			e.Subwords = append(e.Subwords, int32(d.nwords)+h)
		}
		if d.pruneIdx != nil {
			for j, h := range ids {
				remapped, ok := d.pruneIdx[h]
				if !ok {
					e.Subwords[base+j] = -1
					continue
				}
				e.Subwords[base+j] = int32(d.nwords) + remapped
			}
			e.Subwords = compact(e.Subwords)
		}
	}
}

// koreanVariantIds generates the extra bucket-hashed n-gram ids from the
// experimental Korean subword generators selected by args.JamoVariant
//. word is expected to already
// be jamo-decomposed text (with args.Jamo set, addWord decomposes every
// non-label token before it is stored in the vocabulary).
func (d *Dictionary) koreanVariantIds(word string) []int32 {
	if d.args.JamoVariant == args.JamoNone {
		return nil
	}
	groups := jamo.SyllableGroups(word)
	if len(groups) == 0 {
		return nil
	}
	seen := map[int32]bool{}
	var out []int32
	add := func(variant string) {
		for _, h := range computeSubwords(variant, d.args.Minn, d.args.Maxn, d.args.Bucket) {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	switch d.args.JamoVariant {
	case args.JamoConsonantsOnly:
		var b []rune
		for _, g := range groups {
			b = append(b, jamo.Consonants(g)...)
		}
		add(string(b))
	case args.JamoPerSyllableAblation:
		for i := range groups {
			var b []rune
			for j, g := range groups {
				if j == i {
					b = append(b, jamo.WithoutVowels(g)...)
				} else {
					b = append(b, g...)
				}
			}
			add(string(b))
		}
	case args.JamoAllCombination:
		for i := range groups {
			var b []rune
			for j, g := range groups {
				if j == i {
					continue
				}
				b = append(b, g...)
			}
			add(string(b))
		}
	}
	return out
}

// Subwords returns the subword ids for a word, for in-vocab lookup
// (precomputed) or OOV lookup (computed on the fly, with no leading
// self-index).
func (d *Dictionary) Subwords(word string) []int32 {
	id := d.IdOf(word)
	if id >= 0 {
		return d.words[id].Subwords
	}
	if d.args.Maxn <= 0 {
		return nil
	}
	ids := computeSubwords(word, d.args.Minn, d.args.Maxn, d.args.Bucket)
	out := make([]int32, len(ids))
	for i, h := range ids {
		out[i] = int32(d.nwords) + h
		if d.pruneIdx != nil {
			remapped, ok := d.pruneIdx[h]
			if !ok {
				out[i] = -1
				continue
			}
			out[i] = int32(d.nwords) + remapped
		}
	}
	return compact(out)
}

func compact(ids []int32) []int32 {
	out := ids[:0]
	for _, id := range ids {
		if id >= 0 {
			out = append(out, id)
		}
	}
	return out
}

// Prune rebuilds the dictionary's word entries restricted to the first
// `words` WORD entries (by rank, already sorted descending by count after
// threshold) plus every LABEL entry, remapping the subword bucket ids of
// the kept words into a compact pruneIdx table. Ngram ids that collide
// with the id-space used by kept word indices are dropped with a logged
// warning rather than trusted blindly.
func (d *Dictionary) Prune(words int) {
	if words >= d.nwords {
		return
	}
	oldNwords := d.nwords
	keepNgrams := map[int32]bool{}
	for i := 0; i < words; i++ {
		for _, sw := range d.words[i].Subwords {
			if sw >= int32(oldNwords) {
				keepNgrams[sw-int32(oldNwords)] = true
			}
		}
	}

	var kept []Entry
	kept = append(kept, d.words[:words]...)
	kept = append(kept, d.words[d.nwords:]...)
	d.words = kept

	for i := range d.word2int {
		d.word2int[i] = -1
	}
	d.nwords, d.nlabels = 0, 0
	for i := range d.words {
		h := d.findWord(d.words[i].Word)
		d.word2int[h] = int32(i)
		if d.words[i].Type == WordType {
			d.nwords++
		} else {
			d.nlabels++
		}
	}

	d.pruneIdx = make(map[int32]int32, len(keepNgrams))
	var sortedNgrams []int32
	for ng := range keepNgrams {
		sortedNgrams = append(sortedNgrams, ng)
	}
	sort.Slice(sortedNgrams, func(i, j int) bool { return sortedNgrams[i] < sortedNgrams[j] })
	for _, ng := range sortedNgrams {
		if int64(ng) < int64(len(d.words)) {
			// This ngram bucket id collides with the compact word-id
			// range after pruning; it cannot be safely remapped, so we
			// drop it rather than trust the overlap.
			glog.Warningf("dict: dropping pruned ngram %d colliding with word id range", ng)
			continue
		}
		d.pruneIdx[ng] = int32(len(d.pruneIdx))
	}
	d.pruneIdxSize = int64(len(d.pruneIdx))

	for i := range d.words {
		e := &d.words[i]
		if e.Type != WordType {
			continue
		}
		remapped := e.Subwords[:1]
		for _, sw := range e.Subwords[1:] {
			ng := sw - int32(oldNwords)
			if idx, ok := d.pruneIdx[ng]; ok {
				remapped = append(remapped, int32(d.nwords)+idx)
			}
		}
		e.Subwords = remapped
	}
}

// Save writes the Dictionary section of the fastText binary format.
func (d *Dictionary) Save(w *wire.Writer) {
	w.I32(int32(len(d.words)))
	w.I32(int32(d.nwords))
	w.I32(int32(d.nlabels))
	w.I64(d.ntokens)
	w.I64(d.pruneIdxSize)
	for _, e := range d.words {
		w.CString(e.Word)
		w.I64(int64(e.Count))
		w.U8(uint8(e.Type))
	}
	if d.pruneIdxSize > 0 {
		for k, v := range d.pruneIdx {
			w.I32(k)
			w.I32(v)
		}
	}
}

// Load reads the Dictionary section written by Save, rebuilding
// word2int, subwords, and the discard table.
func Load(r *wire.Reader, a *args.Args) (*Dictionary, error) {
	d := New(a)
	size := int(r.I32())
	d.nwords = int(r.I32())
	d.nlabels = int(r.I32())
	d.ntokens = r.I64()
	d.pruneIdxSize = r.I64()
	d.words = make([]Entry, size)
	for i := 0; i < size; i++ {
		d.words[i].Word = r.CString()
		d.words[i].Count = uint64(r.I64())
		d.words[i].Type = EntryType(r.U8())
		if r.Err() != nil {
			return nil, fmt.Errorf("dict: load: %w", r.Err())
		}
		h := d.findWord(d.words[i].Word)
		d.word2int[h] = int32(i)
	}
	if d.pruneIdxSize > 0 {
		d.pruneIdx = make(map[int32]int32, d.pruneIdxSize)
		for i := int64(0); i < d.pruneIdxSize; i++ {
			k := r.I32()
			v := r.I32()
			d.pruneIdx[k] = v
		}
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("dict: load: %w", r.Err())
	}
	d.initTableDiscard()
	d.initNgrams()
	return d, nil
}

// ErrEmptyVocabulary is returned when thresholding drops every entry.
var ErrEmptyVocabulary = fmt.Errorf("dict: empty vocabulary after threshold (try a smaller -minCount)")

// tokenScanner reads whitespace-separated tokens from r, yielding "\n" for
// each newline encountered.
type tokenScanner struct {
	sc          *bufio.Scanner
	err         error
	pendingEOS  bool
	eof         bool
}

func newTokenScanner(r io.Reader) *tokenScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanRunes)
	return &tokenScanner{sc: sc}
}

// Next implements a simple whitespace tokenizer over runes, treating '\n'
// as its own token and collapsing runs of other whitespace as
// separators. A newline encountered while a token is being accumulated is
// buffered as a pending EOS token so it is returned as its own Next()
// call right after the accumulated token.
func (t *tokenScanner) Next() (string, bool) {
	if t.pendingEOS {
		t.pendingEOS = false
		return "\n", true
	}
	var b []byte
	for t.sc.Scan() {
		r := t.sc.Bytes()
		if len(r) == 1 && r[0] == '\n' {
			if len(b) > 0 {
				t.pendingEOS = true
				return string(b), true
			}
			return "\n", true
		}
		if isSpaceByte(r) {
			if len(b) > 0 {
				return string(b), true
			}
			continue
		}
		b = append(b, r...)
	}
	if len(b) > 0 {
		return string(b), true
	}
	t.err = t.sc.Err()
	return "", false
}

func isSpaceByte(r []byte) bool {
	if len(r) != 1 {
		return false
	}
	switch r[0] {
	case ' ', '\t', '\v', '\f', '\r':
		return true
	}
	return false
}

func (t *tokenScanner) Err() error { return t.err }
