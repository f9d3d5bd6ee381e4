package wire

import (
	"bytes"
	"testing"
)

func TestRoundTripPrimitives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.I32(793712314)
	w.I64(-123456789)
	w.U8(42)
	w.F32(3.5)
	w.F64(2.718281828)
	w.Bool(true)
	w.Bool(false)
	w.CString("hello")
	w.F32Slice([]float32{1, 2, 3})
	w.U8Slice([]uint8{9, 8, 7})
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	if v := r.I32(); v != 793712314 {
		t.Errorf("I32 = %d, want 793712314", v)
	}
	if v := r.I64(); v != -123456789 {
		t.Errorf("I64 = %d, want -123456789", v)
	}
	if v := r.U8(); v != 42 {
		t.Errorf("U8 = %d, want 42", v)
	}
	if v := r.F32(); v != 3.5 {
		t.Errorf("F32 = %v, want 3.5", v)
	}
	if v := r.F64(); v != 2.718281828 {
		t.Errorf("F64 = %v, want 2.718281828", v)
	}
	if v := r.Bool(); v != true {
		t.Errorf("Bool = %v, want true", v)
	}
	if v := r.Bool(); v != false {
		t.Errorf("Bool = %v, want false", v)
	}
	if s := r.CString(); s != "hello" {
		t.Errorf("CString = %q, want %q", s, "hello")
	}
	if f := r.F32Slice(3); f[0] != 1 || f[1] != 2 || f[2] != 3 {
		t.Errorf("F32Slice = %v, want [1 2 3]", f)
	}
	if u := r.U8Slice(3); u[0] != 9 || u[1] != 8 || u[2] != 7 {
		t.Errorf("U8Slice = %v, want [9 8 7]", u)
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckMagicMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.I32(1)
	w.Flush()
	r := NewReader(&buf)
	if err := CheckMagic(r, 793712314, "magic"); err == nil {
		t.Fatal("expected error for mismatched magic")
	}
}

func TestCheckMagicMatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.I32(793712314)
	w.Flush()
	r := NewReader(&buf)
	if err := CheckMagic(r, 793712314, "magic"); err != nil {
		t.Fatal(err)
	}
}

func TestErrorShortCircuitsSubsequentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.err = bytes.ErrTooLarge
	w.I32(1)
	w.CString("x")
	if w.Err() != bytes.ErrTooLarge {
		t.Fatalf("err = %v, want sticky %v", w.Err(), bytes.ErrTooLarge)
	}
}
