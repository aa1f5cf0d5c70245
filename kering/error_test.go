package kering

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestMessageDoesNotAffectKind(t *testing.T) {
	a := New(ErrOutOfOrder, "sn 3 before sn 2")
	b := Newf(ErrOutOfOrder, "prefix %s missing sn %d", "EAbc", 7)
	for _, k := range Kinds() {
		if errors.Is(a, k) != errors.Is(b, k) {
			t.Fatalf("%s classified differently for equal kinds", k)
		}
	}
}

func TestShortageScenario(t *testing.T) {
	declared, available := 5, 3
	err := Newf(ErrShortage, "need %d bytes, have %d", declared, available)

	if !errors.Is(err, ErrExtraction) || !errors.Is(err, ErrShortage) {
		t.Fatalf("expected extraction shortage, got %v", err)
	}
	if errors.Is(err, ErrColdStart) {
		t.Fatalf("shortage must not be a cold start")
	}
}

func TestWitnessThresholdScenario(t *testing.T) {
	err := Newf(ErrMissingWitnessSignature, "witness threshold 3, verified %d", 2)
	if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrMissingWitnessSignature) {
		t.Fatalf("expected witness signature validation error, got %v", err)
	}
	if errors.Is(err, ErrMissingSignature) {
		t.Fatalf("witness threshold must be distinct from controller threshold")
	}
}

func TestCrossBranchIsolation(t *testing.T) {
	err := New(ErrDatabase, "lmdb gone")
	if errors.Is(err, ErrMaterial) {
		t.Fatalf("material catch must not see database errors")
	}
	if IsKind(New(ErrMissingEntry, "x"), ErrMaterial) {
		t.Fatalf("missing entry is not material")
	}
}

func TestWrapKeepsCauseAndKind(t *testing.T) {
	err := Wrap(ErrDatabase, io.ErrUnexpectedEOF, "read evts")
	outer := fmt.Errorf("load kel: %w", err)

	if !errors.Is(outer, io.ErrUnexpectedEOF) {
		t.Fatalf("cause lost")
	}
	if !errors.Is(outer, ErrDatabase) || !IsKind(outer, ErrKeri) {
		t.Fatalf("kind lost")
	}
	k, ok := KindOf(outer)
	if !ok || k != ErrDatabase {
		t.Fatalf("KindOf=%v ok=%v", k, ok)
	}
	want := "load kel: DatabaseError: read evts: unexpected EOF"
	if outer.Error() != want {
		t.Fatalf("got %q want %q", outer.Error(), want)
	}
}

func TestErrorText(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{New(ErrClosed, ""), "ClosedError"},
		{New(ErrClosed, "db not opened"), "ClosedError: db not opened"},
		{Wrap(ErrConfiguration, io.EOF, ""), "ConfigurationError: EOF"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestAncestry(t *testing.T) {
	got := Ancestry(fmt.Errorf("ctx: %w", New(ErrUnexpectedCountCode, "-V inside -V")))
	want := []string{"UnexpectedCountCodeError", "DerivationCodeError", "ExtractionError", "KeriError"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if Ancestry(io.EOF) != nil {
		t.Fatalf("plain errors have no ancestry")
	}
}

func TestForeignErrorsHaveNoKind(t *testing.T) {
	if _, ok := KindOf(io.EOF); ok {
		t.Fatalf("io.EOF has no kind")
	}
	if IsKind(io.EOF, ErrKeri) {
		t.Fatalf("io.EOF is not a keri error")
	}
	if IsKind(New(ErrKeri, "x"), Kind(0)) {
		t.Fatalf("invalid kind target never matches")
	}
}

func TestBareKindAsError(t *testing.T) {
	var err error = ErrDecrypt
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("bare kind should match ancestors")
	}
	if errors.Is(err, ErrMaterial) {
		t.Fatalf("decrypt is authorization, not material")
	}
}

func TestNewPanicsOnInvalidKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(Kind(0), "x")
}
