package jamo

import "testing"

func TestDecomposeBasic(t *testing.T) {
	got := Decompose("대한")
	want := "ㄷㅐᴥㅎㅏㄴᴥ"
	if got != want {
		t.Fatalf("Decompose(%q) = %q, want %q", "대한", got, want)
	}
}

func TestDecomposePassesThroughNonHangul(t *testing.T) {
	got := Decompose("hello 세계 world")
	want := "hello ㅅㅔᴥㄱㅖᴥ world"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDecomposeNoFinalConsonant(t *testing.T) {
	// 가 = cho ㄱ, jung ㅏ, jong none.
	got := Decompose("가")
	want := "ㄱㅏᴥ"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIdempotence(t *testing.T) {
	for _, s := range []string{"대한민국", "hello 세계", "이명박은 대통령이다."} {
		once := Decompose(s)
		if !IsIdempotent(once) {
			t.Errorf("Decompose(%q) not idempotent on its own output", s)
		}
	}
}

func TestComposeRoundTrip(t *testing.T) {
	for _, s := range []string{"대한", "가", "한국어", "값"} {
		d := Decompose(s)
		c := Compose(d)
		if c != s {
			t.Errorf("Compose(Decompose(%q)) = %q, want %q", s, c, s)
		}
	}
}

func TestSyllableGroups(t *testing.T) {
	groups := SyllableGroups(Decompose("대한"))
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if string(groups[0]) != "ㄷㅐ" || string(groups[1]) != "ㅎㅏㄴ" {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestConsonantsAndWithoutVowels(t *testing.T) {
	group := []rune("ㅎㅏㄴ")
	if got := string(Consonants(group)); got != "ㅎㄴ" {
		t.Errorf("Consonants = %q, want %q", got, "ㅎㄴ")
	}
	if got := string(WithoutVowels(group)); got != "ㅎㄴ" {
		t.Errorf("WithoutVowels = %q, want %q", got, "ㅎㄴ")
	}
}
