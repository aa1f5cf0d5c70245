package eventing

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benk79tb/keripy/internal/db"
	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/internal/testutil/testlog"
	"github.com/benk79tb/keripy/kering"
)

// extracted frames b with nsigs controller signatures and parses it back, so
// Raw holds real body bytes.
func extracted(t *testing.T, b protocol.Body, nsigs int) *protocol.Message {
	t.Helper()
	var att protocol.Attachments
	for i := 0; i < nsigs; i++ {
		sig, err := protocol.NewSiger("A" + string(rune('A'+i)) + strings.Repeat("A", protocol.SigerSize-2))
		if err != nil {
			t.Fatalf("build sig: %v", err)
		}
		att.Sigs = append(att.Sigs, sig)
	}
	raw, err := protocol.Frame(b, att)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	msg, _, err := protocol.Extract(raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return msg
}

func openBaser(t *testing.T) *db.Baser {
	t.Helper()
	baser, err := db.Open(filepath.Join(t.TempDir(), "keri.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = baser.Close() })
	return baser
}

func TestRestartRestoresKeyState(t *testing.T) {
	logger := testlog.Start(t)
	baser := openBaser(t)
	cfg := KeveryConfig{Backoff: BackoffConfig{}, MaxAttempts: 3}

	inception := extracted(t, icp("Bkey", "Eicp", "1", "0"), 1)
	first := NewKevery(cfg, NewValidator(), NewExchanger(), baser, logger)
	if err := first.Process(inception); err != nil {
		t.Fatalf("icp: %v", err)
	}

	restored := NewValidator()
	n, err := restored.Restore(baser)
	if err != nil || n != 1 {
		t.Fatalf("restore: n=%d err=%v", n, err)
	}
	st, ok := restored.State("Bkey")
	if !ok || st.Sn() != 0 || st.Kt != 1 {
		t.Fatalf("unexpected restored state %+v", st)
	}

	second := NewKevery(cfg, restored, NewExchanger(), baser, logger)
	ixn := extracted(t, protocol.Body{T: protocol.IlkIxn, I: "Bkey", D: "Eixn", S: "1", P: "Eicp"}, 1)
	if err := second.Process(ixn); err != nil {
		t.Fatalf("ixn after restart: %v", err)
	}
	if len(second.Escrow().List()) != 0 {
		t.Fatalf("ixn after restart must not be escrowed")
	}

	conflict := extracted(t, icp("Bkey", "Eother", "1", "0"), 1)
	if err := second.Process(conflict); !errors.Is(err, kering.ErrLikelyDuplicitous) {
		t.Fatalf("expected likely duplicitous after restart, got %v", err)
	}
	stored, err := baser.GetEvent("Bkey", 0)
	if err != nil || !bytes.Equal(stored, inception.Raw) {
		t.Fatalf("stored inception was replaced: %v", err)
	}
	kel, err := baser.Kel("Bkey")
	if err != nil || len(kel) != 2 {
		t.Fatalf("expected two stored events, got %d %v", len(kel), err)
	}
}

func TestStoreRefusalLeavesStateUntouched(t *testing.T) {
	logger := testlog.Start(t)
	baser := openBaser(t)
	cfg := KeveryConfig{Backoff: BackoffConfig{}, MaxAttempts: 3}

	first := NewKevery(cfg, NewValidator(), NewExchanger(), baser, logger)
	if err := first.Process(extracted(t, icp("Bkey", "Eicp", "1", "0"), 1)); err != nil {
		t.Fatalf("icp: %v", err)
	}

	// A validator that never saw the log still cannot overwrite it.
	blind := NewValidator()
	second := NewKevery(cfg, blind, NewExchanger(), baser, logger)
	err := second.Process(extracted(t, icp("Bkey", "Eother", "1", "0"), 1))
	if !errors.Is(err, kering.ErrLikelyDuplicitous) {
		t.Fatalf("expected store to refuse the conflicting event, got %v", err)
	}
	if _, ok := blind.State("Bkey"); ok {
		t.Fatalf("refused event must not be recorded")
	}
}

func TestRestoreRejectsMisplacedEvent(t *testing.T) {
	baser := openBaser(t)
	raw, err := protocol.Encode(icp("Bkey", "Eicp", "1", "0"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := baser.PutEvent("Bother", 0, raw); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := NewValidator().Restore(baser); !errors.Is(err, kering.ErrDatabase) {
		t.Fatalf("expected database error for misplaced event, got %v", err)
	}
}

func TestThresholdOverflowRejected(t *testing.T) {
	k, store := newTestKevery(t)
	err := k.Process(msg(icp("Bkey", "Eicp", "1", "ffffffffffffffff"), 1, 0))
	if !errors.Is(err, kering.ErrDeserialization) {
		t.Fatalf("expected deserialization error, got %v", err)
	}
	if _, ok := k.validator.State("Bkey"); ok || len(store.events) != 0 {
		t.Fatalf("overflowing threshold must not be accepted")
	}
}
