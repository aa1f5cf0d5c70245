package kering

import (
	"errors"
	"testing"
)

func TestEveryKindReachesRootAcyclically(t *testing.T) {
	roots := 0
	for _, k := range Kinds() {
		if _, ok := k.Parent(); !ok {
			roots++
			if k != ErrKeri {
				t.Fatalf("unexpected root %s", k)
			}
			continue
		}
		seen := map[Kind]bool{k: true}
		ancestors := k.Ancestors()
		for _, a := range ancestors {
			if seen[a] {
				t.Fatalf("%s: cycle through %s", k, a)
			}
			seen[a] = true
		}
		if ancestors[len(ancestors)-1] != ErrKeri {
			t.Fatalf("%s: chain ends at %s", k, ancestors[len(ancestors)-1])
		}
	}
	if roots != 1 {
		t.Fatalf("expected one root, got %d", roots)
	}
}

func TestOccurrenceMatchesEveryAncestor(t *testing.T) {
	for _, k := range Kinds() {
		err := New(k, "boom")
		if !errors.Is(err, k) {
			t.Fatalf("%s does not match itself", k)
		}
		for _, a := range k.Ancestors() {
			if !errors.Is(err, a) {
				t.Fatalf("%s does not match ancestor %s", k, a)
			}
		}
		if !errors.Is(err, ErrKeri) {
			t.Fatalf("%s does not match root", k)
		}
	}
}

func TestDescendantNotMatchedByChild(t *testing.T) {
	if errors.Is(New(ErrExtraction, "x"), ErrShortage) {
		t.Fatalf("parent occurrence must not match child kind")
	}
	if errors.Is(New(ErrKeri, "x"), ErrValidation) {
		t.Fatalf("root occurrence must not match a category")
	}
}

func TestTreeShape(t *testing.T) {
	parents := map[Kind]Kind{
		ErrClosed:                        ErrKeri,
		ErrConfiguration:                 ErrKeri,
		ErrAuth:                          ErrKeri,
		ErrAuthN:                         ErrAuth,
		ErrAuthZ:                         ErrAuth,
		ErrDecrypt:                       ErrAuthZ,
		ErrDatabase:                      ErrKeri,
		ErrMissingEntry:                  ErrDatabase,
		ErrMaterial:                      ErrKeri,
		ErrRawMaterial:                   ErrMaterial,
		ErrEmptyMaterial:                 ErrMaterial,
		ErrUnknownCode:                   ErrMaterial,
		ErrInvalidCodeIndex:              ErrMaterial,
		ErrInvalidCodeSize:               ErrMaterial,
		ErrValidation:                    ErrKeri,
		ErrMissingSignature:              ErrValidation,
		ErrMissingDestination:            ErrValidation,
		ErrMissingWitnessSignature:       ErrValidation,
		ErrMissingDelegation:             ErrValidation,
		ErrOutOfOrder:                    ErrValidation,
		ErrLikelyDuplicitous:             ErrValidation,
		ErrUnverifiedWitnessReceipt:      ErrValidation,
		ErrUnverifiedReceipt:             ErrValidation,
		ErrUnverifiedTransferableReceipt: ErrValidation,
		ErrUnverifiedProof:               ErrValidation,
		ErrDerivation:                    ErrValidation,
		ErrUnverifiedReply:               ErrValidation,
		ErrMissingAnchor:                 ErrValidation,
		ErrExtraction:                    ErrKeri,
		ErrShortage:                      ErrExtraction,
		ErrColdStart:                     ErrExtraction,
		ErrSizedGroup:                    ErrExtraction,
		ErrVersion:                       ErrExtraction,
		ErrDeserialization:               ErrExtraction,
		ErrConversion:                    ErrExtraction,
		ErrDerivationCode:                ErrExtraction,
		ErrUnexpectedCode:                ErrDerivationCode,
		ErrUnexpectedCountCode:           ErrDerivationCode,
		ErrUnexpectedOpCode:              ErrDerivationCode,
		ErrExchange:                      ErrKeri,
		ErrInvalidEventType:              ErrKeri,
	}
	if len(parents) != len(Kinds())-1 {
		t.Fatalf("expected %d non-root kinds, got %d", len(parents), len(Kinds())-1)
	}
	for k, want := range parents {
		got, ok := k.Parent()
		if !ok || got != want {
			t.Fatalf("%s: parent=%s want %s", k, got, want)
		}
	}
}

func TestCategory(t *testing.T) {
	cases := []struct {
		kind Kind
		want Kind
	}{
		{ErrKeri, ErrKeri},
		{ErrExtraction, ErrExtraction},
		{ErrUnexpectedOpCode, ErrExtraction},
		{ErrDecrypt, ErrAuth},
		{ErrMissingEntry, ErrDatabase},
	}
	for _, tc := range cases {
		if got := tc.kind.Category(); got != tc.want {
			t.Fatalf("%s: category=%s want %s", tc.kind, got, tc.want)
		}
	}
}

func TestParseKindAndText(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Fatalf("parse %q: got %v ok=%v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("NopeError"); ok {
		t.Fatalf("expected unknown name to fail")
	}

	b, err := ErrSizedGroup.MarshalText()
	if err != nil || string(b) != "SizedGroupError" {
		t.Fatalf("marshal: %q %v", b, err)
	}
	var k Kind
	if err := k.UnmarshalText([]byte("ColdStartError")); err != nil || k != ErrColdStart {
		t.Fatalf("unmarshal: %v %v", k, err)
	}
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if _, err := Kind(0).MarshalText(); err == nil {
		t.Fatalf("expected invalid kind marshal error")
	}
}

func TestInvalidKindMatchesNothing(t *testing.T) {
	bad := Kind(200)
	if bad.Valid() || bad.IsA(ErrKeri) || ErrKeri.IsA(bad) {
		t.Fatalf("invalid kind must not participate in ancestry")
	}
	if bad.String() != "Kind(200)" {
		t.Fatalf("unexpected string %q", bad.String())
	}
}
