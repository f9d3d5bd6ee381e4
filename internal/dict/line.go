package dict

import (
	"bufio"
	"io"
	"math/rand"
)

const maxLineSize = 1024

// ReadLineTokens splits one line of whitespace-separated raw text into
// tokens, without any vocabulary lookup. Used by both GetLine variants'
// callers to turn a text line into tokens before jamo-decomposing (if
// enabled) and looking each one up.
func ReadLineTokens(r *bufio.Reader) ([]string, error) {
	var tokens []string
	var b []byte
	flush := func() {
		if len(b) > 0 {
			tokens = append(tokens, string(b))
			b = b[:0]
		}
	}
	for {
		c, _, err := r.ReadRune()
		if err != nil {
			flush()
			if err == io.EOF {
				return tokens, io.EOF
			}
			return tokens, err
		}
		if c == '\n' {
			flush()
			return tokens, nil
		}
		if isSpaceRune(c) {
			flush()
			continue
		}
		b = append(b, string(c)...)
	}
}

func isSpaceRune(c rune) bool {
	switch c {
	case ' ', '\t', '\v', '\f', '\r':
		return true
	}
	return false
}

// GetLineUnlabeled reads one line's worth of tokens and looks each up,
// applying the discard table, stopping at 1024 tokens or EOS. It returns
// the in-vocab word ids actually kept. Used for sg/cbow training.
func (d *Dictionary) GetLineUnlabeled(words []string, rng *rand.Rand) []int32 {
	ids := make([]int32, 0, len(words))
	for _, tok := range words {
		id := d.IdOf(tok)
		if id < 0 {
			continue
		}
		if d.DiscardWord(id, rng) {
			continue
		}
		ids = append(ids, id)
		if len(ids) >= maxLineSize {
			break
		}
	}
	return ids
}

// GetLineLabeled splits a tokenized line into word ids (with subwords
// mixed in via word n-grams) and label ids, for supervised test/predict.
func (d *Dictionary) GetLineLabeled(tokens []string) (wordIds []int32, labelIds []int32) {
	var hashes []uint32
	for _, tok := range tokens {
		if isLabel(tok, d.args.LabelPrefix) {
			wid := d.IdOf(tok)
			if wid >= 0 {
				labelIds = append(labelIds, wid-int32(d.nwords))
			}
			continue
		}
		wid := d.IdOf(tok)
		wordIds = append(wordIds, d.addSubwords(wid, tok)...)
		hashes = append(hashes, Hash(tok))
	}
	d.addWordNgrams(&wordIds, hashes, d.args.WordNgrams)
	return wordIds, labelIds
}

// addSubwords resolves a token's contribution to a labeled line's word
// ids: in-vocab + maxn>0 -> precomputed subwords; in-vocab + maxn<=0 ->
// the id alone; OOV -> subwords computed from "<"+token+">".
func (d *Dictionary) addSubwords(wid int32, token string) []int32 {
	if wid < 0 {
		if d.args.Maxn <= 0 {
			return nil
		}
		return d.Subwords(token)
	}
	if d.args.Maxn <= 0 {
		return []int32{wid}
	}
	return d.words[wid].Subwords
}

// addWordNgrams mixes in word n-grams by rolling a 64-bit hash over every
// window of up to wordNgrams consecutive token hashes and appending
// nwords + (h mod bucket).
func (d *Dictionary) addWordNgrams(ids *[]int32, hashes []uint32, wordNgrams int) {
	if d.args.Bucket <= 0 {
		return
	}
	for i := range hashes {
		h := uint64(hashes[i])
		for j := i + 1; j < len(hashes) && j < i+wordNgrams; j++ {
			h = h*116049371 + uint64(hashes[j])
			*ids = append(*ids, int32(d.nwords)+int32(h%uint64(d.args.Bucket)))
		}
	}
}

// Jamo decomposition, when enabled, happens in two places. While the
// vocabulary is built, ReadFromFile's addWord runs jamo.Decompose on every
// non-label token before storing it. For line lookups, the callers
// (internal/train's worker loop and internal/fasttext's tokenize) run
// jamo.Decompose per token after splitting the line, so GetLineUnlabeled
// and GetLineLabeled receive already-decomposed tokens.
