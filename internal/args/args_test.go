package args

import "testing"

func TestNewForcesSupervisedDefaults(t *testing.T) {
	a, err := New(Args{
		Model: Supervised, Loss: NS, Dim: 100, WS: 5, Epoch: 5,
		MinCount: 5, Minn: 3, Maxn: 6, LR: 0.05, Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Minn != 0 || a.Maxn != 0 {
		t.Errorf("supervised minn/maxn = %d/%d, want 0/0", a.Minn, a.Maxn)
	}
	if a.Loss != Softmax {
		t.Errorf("supervised loss = %v, want softmax", a.Loss)
	}
	if a.MinCount != 1 {
		t.Errorf("supervised minCount = %d, want 1", a.MinCount)
	}
	if a.LR != 0.1 {
		t.Errorf("supervised lr = %v, want 0.1", a.LR)
	}
}

func TestNewForcesBucketZeroWithoutSubwordsOrNgrams(t *testing.T) {
	a, err := New(Args{
		Model: Skipgram, Loss: NS, Dim: 100, WS: 5, Epoch: 5, MinCount: 5,
		WordNgrams: 1, Maxn: 0, Bucket: 2000000, LR: 0.05, Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Bucket != 0 {
		t.Errorf("bucket = %d, want 0 when wordNgrams<=1 and maxn=0", a.Bucket)
	}
}

func TestNewKeepsBucketWithWordNgrams(t *testing.T) {
	a, err := New(Args{
		Model: Skipgram, Loss: NS, Dim: 100, WS: 5, Epoch: 5, MinCount: 5,
		WordNgrams: 2, Maxn: 0, Bucket: 2000000, LR: 0.05, Thread: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Bucket != 2000000 {
		t.Errorf("bucket = %d, want unchanged 2000000", a.Bucket)
	}
}

func TestNewRejectsInvalidFields(t *testing.T) {
	cases := []Args{
		{Model: Skipgram, Loss: NS, Dim: 0, WS: 5, Epoch: 5},
		{Model: Skipgram, Loss: NS, Dim: 100, WS: 0, Epoch: 5},
		{Model: Skipgram, Loss: NS, Dim: 100, WS: 5, Epoch: 0},
		{Model: 0, Loss: NS, Dim: 100, WS: 5, Epoch: 5},
		{Model: Skipgram, Loss: 0, Dim: 100, WS: 5, Epoch: 5},
	}
	for i, a := range cases {
		if _, err := New(a); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestNewDefaultsThreadToOne(t *testing.T) {
	a, err := New(Args{Model: Skipgram, Loss: NS, Dim: 100, WS: 5, Epoch: 5, Thread: 0})
	if err != nil {
		t.Fatal(err)
	}
	if a.Thread != 1 {
		t.Errorf("thread = %d, want 1", a.Thread)
	}
}

func TestModelTypeAndLossTypeStrings(t *testing.T) {
	if Skipgram.String() != "skipgram" || CBOW.String() != "cbow" || Supervised.String() != "supervised" {
		t.Fatalf("unexpected ModelType strings: %s %s %s", Skipgram, CBOW, Supervised)
	}
	if HS.String() != "hs" || NS.String() != "ns" || Softmax.String() != "softmax" {
		t.Fatalf("unexpected LossType strings: %s %s %s", HS, NS, Softmax)
	}
	if ModelType(99).String() != "unknown" || LossType(99).String() != "unknown" {
		t.Error("expected \"unknown\" for out-of-range enum values")
	}
}
