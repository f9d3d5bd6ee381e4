// Package jamo decomposes Hangul syllable blocks into their component
// choseong/jungseong/jongseong jamo, appending the U+1D25 (ᴥ) syllable
// terminator after every decomposed block. Non-Hangul runes pass through
// unchanged and never get a terminator.
package jamo

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Terminator marks the end of a decomposed Hangul syllable block.
const Terminator = 'ᴥ' // U+1D25

const (
	hangulBase = 0xAC00
	hangulLast = 0xD7A3
	numJungs   = 21
	numJongs   = 28
)

// ChoSung, JwungSung and JongSung are the standard modern-Hangul jamo
// tables indexed by the arithmetic decomposition of a syllable codepoint.
// JongSung index 0 means "no final consonant" and is never emitted.
var (
	ChoSung = []rune{
		'ㄱ', 'ㄲ', 'ㄴ', 'ㄷ', 'ㄸ', 'ㄹ', 'ㅁ', 'ㅂ', 'ㅃ', 'ㅅ',
		'ㅆ', 'ㅇ', 'ㅈ', 'ㅉ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
	}
	JwungSung = []rune{
		'ㅏ', 'ㅐ', 'ㅑ', 'ㅒ', 'ㅓ', 'ㅔ', 'ㅕ', 'ㅖ', 'ㅗ', 'ㅘ',
		'ㅙ', 'ㅚ', 'ㅛ', 'ㅜ', 'ㅝ', 'ㅞ', 'ㅟ', 'ㅠ', 'ㅡ', 'ㅢ', 'ㅣ',
	}
	JongSung = []rune{
		0, 'ㄱ', 'ㄲ', 'ㄳ', 'ㄴ', 'ㄵ', 'ㄶ', 'ㄷ', 'ㄹ', 'ㄺ',
		'ㄻ', 'ㄼ', 'ㄽ', 'ㄾ', 'ㄿ', 'ㅀ', 'ㅁ', 'ㅂ', 'ㅄ', 'ㅅ',
		'ㅆ', 'ㅇ', 'ㅈ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
	}
)

// doubleConsonant and doubleVowel collapse an adjacent pair of jamo into
// the single compound jamo they decompose from, used only by Compose.
var doubleConsonant = map[[2]rune]rune{
	{'ㄱ', 'ㅅ'}: 'ㄳ',
	{'ㄴ', 'ㅈ'}: 'ㄵ',
	{'ㄴ', 'ㅎ'}: 'ㄶ',
	{'ㄹ', 'ㄱ'}: 'ㄺ',
	{'ㄹ', 'ㅁ'}: 'ㄻ',
	{'ㄹ', 'ㅂ'}: 'ㄼ',
	{'ㄹ', 'ㅅ'}: 'ㄽ',
	{'ㄹ', 'ㅌ'}: 'ㄾ',
	{'ㄹ', 'ㅍ'}: 'ㄿ',
	{'ㄹ', 'ㅎ'}: 'ㅀ',
	{'ㅂ', 'ㅅ'}: 'ㅄ',
}

var doubleVowel = map[[2]rune]rune{
	{'ㅗ', 'ㅏ'}: 'ㅘ',
	{'ㅗ', 'ㅐ'}: 'ㅙ',
	{'ㅗ', 'ㅣ'}: 'ㅚ',
	{'ㅜ', 'ㅓ'}: 'ㅝ',
	{'ㅜ', 'ㅔ'}: 'ㅞ',
	{'ㅜ', 'ㅣ'}: 'ㅟ',
	{'ㅡ', 'ㅣ'}: 'ㅢ',
}

// Decompose converts every Hangul syllable block in s into its component
// jamo, followed by the Terminator. Non-Hangul runes are copied through
// unchanged with no terminator around them. Input is first normalized to
// NFC so that both precomposed and combining-jamo input decompose
// identically.
func Decompose(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if r < hangulBase || r > hangulLast {
			b.WriteRune(r)
			continue
		}
		c := int(r) - hangulBase
		cho := c / (numJungs * numJongs)
		jung := (c / numJongs) % numJungs
		jong := c % numJongs

		b.WriteRune(ChoSung[cho])
		b.WriteRune(JwungSung[jung])
		if jong != 0 {
			b.WriteRune(JongSung[jong])
		}
		b.WriteRune(Terminator)
	}
	return b.String()
}

// IsIdempotent reports whether decomposing s twice gives the same result
// as decomposing it once (true for any s, since a string already made up
// of bare jamo + Terminator has no U+AC00..U+D7A3 code points left to
// decompose further).
func IsIdempotent(s string) bool {
	once := Decompose(s)
	return Decompose(once) == once
}

var (
	choIndex  = indexOf(ChoSung)
	jungIndex = indexOf(JwungSung)
	jongIndex = indexOf(JongSung)
)

func indexOf(table []rune) map[rune]int {
	m := make(map[rune]int, len(table))
	for i, r := range table {
		if i == 0 && r == 0 {
			continue
		}
		m[r] = i
	}
	return m
}

// Compose reconstructs Hangul syllables from a jamo+Terminator encoded
// string, for diagnostics only.
// It scans each run of jamo up to the next Terminator, collapses adjacent
// double-consonant/double-vowel pairs per the fixed compound tables, and
// composes the resulting (cho, jung[, jong]) triple back into a syllable.
// Runs that do not decode to a valid triple are passed through unchanged,
// jamo and all.
func Compose(s string) string {
	var b strings.Builder
	var group []rune
	flush := func() {
		if syl, ok := composeGroup(group); ok {
			b.WriteRune(syl)
		} else {
			for _, r := range group {
				b.WriteRune(r)
			}
		}
		group = group[:0]
	}
	for _, r := range s {
		if r == Terminator {
			flush()
			continue
		}
		if _, isCho := choIndex[r]; isCho && len(group) == 0 {
			group = append(group, r)
			continue
		}
		if len(group) > 0 {
			group = append(group, r)
			continue
		}
		b.WriteRune(r)
	}
	if len(group) > 0 {
		flush()
	}
	return b.String()
}

func composeGroup(jamos []rune) (rune, bool) {
	jamos = mergeCompounds(jamos, doubleConsonant)
	jamos = mergeCompounds(jamos, doubleVowel)
	if len(jamos) < 2 || len(jamos) > 3 {
		return 0, false
	}
	cho, okCho := choIndex[jamos[0]]
	jung, okJung := jungIndex[jamos[1]]
	if !okCho || !okJung {
		return 0, false
	}
	jong := 0
	if len(jamos) == 3 {
		j, ok := jongIndex[jamos[2]]
		if !ok {
			return 0, false
		}
		jong = j
	}
	return rune(hangulBase + (cho*numJungs+jung)*numJongs + jong), true
}

// mergeCompounds collapses the first adjacent pair found in table,
// reading right-to-left, so at most one pair per call is merged.
// composeGroup applies the consonant table before the vowel table.
func mergeCompounds(jamos []rune, table map[[2]rune]rune) []rune {
	for i := len(jamos) - 2; i >= 0; i-- {
		if merged, ok := table[[2]rune{jamos[i], jamos[i+1]}]; ok {
			out := make([]rune, 0, len(jamos)-1)
			out = append(out, jamos[:i]...)
			out = append(out, merged)
			out = append(out, jamos[i+2:]...)
			return out
		}
	}
	return jamos
}

// SyllableGroups splits a jamo-decomposed string (one produced by
// Decompose) into the runs of jamo between Terminators, used by the
// Korean subword-generation variants in internal/dict. Non-Hangul runes
// are not split out: they join the group of the jamo that follow them up
// to the next Terminator, and any runes after the last Terminator form the
// final group.
func SyllableGroups(s string) [][]rune {
	var groups [][]rune
	var cur []rune
	for _, r := range s {
		if r == Terminator {
			if len(cur) > 0 {
				groups = append(groups, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// Consonants returns only the initial/medial/final *consonant* jamo within
// a syllable group (dropping vowels), for the consonants-only subword
// variant.
func Consonants(group []rune) []rune {
	var out []rune
	for _, r := range group {
		if _, isCho := choIndex[r]; isCho {
			out = append(out, r)
			continue
		}
		if _, isJong := jongIndex[r]; isJong && r != 0 {
			out = append(out, r)
		}
	}
	return out
}

// WithoutVowels returns the syllable group with its medial vowel removed,
// for the per-syllable-ablation subword variant.
func WithoutVowels(group []rune) []rune {
	var out []rune
	for _, r := range group {
		if _, isJung := jungIndex[r]; isJung {
			continue
		}
		out = append(out, r)
	}
	return out
}
