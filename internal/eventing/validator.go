package eventing

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/kering"
)

// KeyState is the accepted log of one prefix.
type KeyState struct {
	Saids     []string
	Kt        int
	Bt        int
	Delegator string
}

// Sn returns the latest accepted sequence number.
func (s KeyState) Sn() uint64 {
	return uint64(len(s.Saids) - 1)
}

// Validator checks messages against accepted key state. It is safe for
// concurrent use.
type Validator struct {
	mu      sync.RWMutex
	kels    map[string]*KeyState
	anchors map[protocol.Seal]struct{}
}

func NewValidator() *Validator {
	return &Validator{
		kels:    make(map[string]*KeyState),
		anchors: make(map[protocol.Seal]struct{}),
	}
}

// State returns a copy of the key state of prefix.
func (v *Validator) State(prefix string) (KeyState, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	st, ok := v.kels[prefix]
	if !ok {
		return KeyState{}, false
	}
	out := *st
	out.Saids = append([]string(nil), st.Saids...)
	return out, true
}

// Validate checks msg without accepting it.
func (v *Validator) Validate(msg *protocol.Message) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, err := v.validate(msg)
	return err
}

// Accept validates msg and, for key and transaction events, records it.
// Re-accepting an already accepted event is a no-op.
func (v *Validator) Accept(msg *protocol.Message) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	dup, err := v.validate(msg)
	if err != nil || dup {
		return err
	}
	switch msg.T {
	case protocol.IlkIcp, protocol.IlkDip, protocol.IlkRot, protocol.IlkDrt, protocol.IlkIxn:
		v.record(msg)
	}
	return nil
}

// KelSource yields key event logs accepted in an earlier run.
type KelSource interface {
	Prefixes() ([]string, error)
	Kel(prefix string) ([][]byte, error)
}

// Restore rebuilds key state from src and returns how many events it
// replayed. Stored events were validated when accepted, so replay only
// checks that each one parses and sits at its position in the log.
func (v *Validator) Restore(src KelSource) (int, error) {
	prefixes, err := src.Prefixes()
	if err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, prefix := range prefixes {
		events, err := src.Kel(prefix)
		if err != nil {
			return n, err
		}
		for i, raw := range events {
			msg, _, err := protocol.Extract(raw)
			if err != nil {
				return n, kering.Wrap(kering.ErrDatabase, err, fmt.Sprintf("replay %s event %d", prefix, i))
			}
			if sn, _ := msg.Sn(); msg.I != prefix || sn != uint64(i) {
				return n, kering.Newf(kering.ErrDatabase,
					"replay %s event %d holds %s sn %s", prefix, i, msg.I, msg.S)
			}
			v.record(msg)
			n++
		}
	}
	return n, nil
}

func (v *Validator) validate(msg *protocol.Message) (bool, error) {
	switch msg.T {
	case protocol.IlkIcp, protocol.IlkDip, protocol.IlkRot, protocol.IlkDrt, protocol.IlkIxn:
		return v.validateKel(msg)
	case protocol.IlkVcp, protocol.IlkIss, protocol.IlkRev:
		return false, v.validateAnchored(msg)
	case protocol.IlkRct:
		return false, v.validateReceipt(msg)
	case protocol.IlkRpy:
		return false, v.validateReply(msg.I)
	case protocol.IlkExn:
		if strings.TrimSpace(msg.I) == "" {
			return false, kering.New(kering.ErrMissingDestination, "exn without destination i")
		}
		return false, nil
	default:
		return false, kering.Newf(kering.ErrInvalidEventType, "cannot validate ilk %q", msg.T)
	}
}

func (v *Validator) validateKel(msg *protocol.Message) (bool, error) {
	sn, err := msg.Sn()
	if err != nil {
		return false, err
	}
	if msg.I == "" || msg.D == "" {
		return false, kering.New(kering.ErrValidation, "event missing prefix or digest")
	}
	inception := msg.T == protocol.IlkIcp || msg.T == protocol.IlkDip
	if inception && sn != 0 {
		return false, kering.Newf(kering.ErrValidation, "inception at sn %d", sn)
	}
	if !inception && sn == 0 {
		return false, kering.Newf(kering.ErrValidation, "%s at sn 0", msg.T)
	}
	if inception && strings.HasPrefix(msg.I, "E") && msg.I != msg.D {
		return false, kering.Newf(kering.ErrDerivation, "self-addressing prefix %s does not match digest %s", msg.I, msg.D)
	}

	st := v.kels[msg.I]
	switch {
	case st == nil && !inception:
		return false, kering.Newf(kering.ErrOutOfOrder, "%s sn %d for unknown prefix %s", msg.T, sn, msg.I)
	case st != nil && sn < uint64(len(st.Saids)):
		if st.Saids[sn] == msg.D {
			return true, nil
		}
		return false, kering.Newf(kering.ErrLikelyDuplicitous,
			"prefix %s sn %d: have %s, got %s", msg.I, sn, st.Saids[sn], msg.D)
	case st != nil && sn > uint64(len(st.Saids)):
		return false, kering.Newf(kering.ErrOutOfOrder,
			"prefix %s sn %d before sn %d", msg.I, sn, len(st.Saids))
	}
	if st != nil && msg.P != st.Saids[sn-1] {
		return false, kering.Newf(kering.ErrValidation, "prior %s does not chain to %s", msg.P, st.Saids[sn-1])
	}

	kt, bt, delegator := 0, 0, msg.Di
	if st != nil {
		kt, bt, delegator = st.Kt, st.Bt, st.Delegator
	}
	if msg.T != protocol.IlkIxn {
		if kt, err = msg.KeyThreshold(); err != nil {
			return false, err
		}
		if bt, err = msg.WitnessThreshold(); err != nil {
			return false, err
		}
	}
	if kt < 1 {
		kt = 1
	}
	if got := len(msg.Attachments.Sigs); got < kt {
		return false, kering.Newf(kering.ErrMissingSignature, "signing threshold %d, have %d", kt, got)
	}
	if got := len(msg.Attachments.WitnessSigs); got < bt {
		return false, kering.Newf(kering.ErrMissingWitnessSignature, "witness threshold %d, have %d", bt, got)
	}

	if msg.T == protocol.IlkDip || msg.T == protocol.IlkDrt {
		if delegator == "" {
			return false, kering.New(kering.ErrMissingDelegation, "delegated event without delegator")
		}
		seal := protocol.Seal{I: msg.I, S: strconv.FormatUint(sn, 16), D: msg.D}
		if _, ok := v.anchors[seal]; !ok {
			return false, kering.Newf(kering.ErrMissingDelegation,
				"delegator %s has not anchored %s sn %d", delegator, msg.I, sn)
		}
	}
	return false, nil
}

func (v *Validator) record(msg *protocol.Message) {
	st := v.kels[msg.I]
	if st == nil {
		st = &KeyState{Delegator: msg.Di}
		v.kels[msg.I] = st
	}
	st.Saids = append(st.Saids, msg.D)
	if msg.T != protocol.IlkIxn {
		st.Kt, _ = msg.KeyThreshold()
		st.Bt, _ = msg.WitnessThreshold()
	}
	for _, seal := range msg.A {
		v.anchors[seal] = struct{}{}
	}
}

func (v *Validator) validateAnchored(msg *protocol.Message) error {
	seal := protocol.Seal{I: msg.I, S: msg.S, D: msg.D}
	if _, ok := v.anchors[seal]; !ok {
		return kering.Newf(kering.ErrMissingAnchor, "%s %s sn %s not anchored in any accepted key event", msg.T, msg.I, msg.S)
	}
	return nil
}

func (v *Validator) validateReceipt(msg *protocol.Message) error {
	kind := kering.ErrUnverifiedReceipt
	if len(msg.Attachments.WitnessSigs) > 0 {
		kind = kering.ErrUnverifiedWitnessReceipt
	}
	sn, err := msg.Sn()
	if err != nil {
		return err
	}
	st := v.kels[msg.I]
	if st == nil || sn >= uint64(len(st.Saids)) {
		return kering.Newf(kind, "receipted event %s sn %d not yet seen", msg.I, sn)
	}
	if st.Saids[sn] != msg.D {
		return kering.Newf(kind, "receipt digest %s does not match %s", msg.D, st.Saids[sn])
	}
	return nil
}

func (v *Validator) validateReply(signer string) error {
	if _, ok := v.kels[signer]; !ok {
		return kering.Newf(kering.ErrUnverifiedReply, "reply signer %s has no accepted key state", signer)
	}
	return nil
}

// ValidateTransferableReceipt checks that the establishment event of a
// transferable receipter is known.
func (v *Validator) ValidateTransferableReceipt(receipter string, sn uint64, said string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	st := v.kels[receipter]
	if st == nil || sn >= uint64(len(st.Saids)) || st.Saids[sn] != said {
		return kering.Newf(kering.ErrUnverifiedTransferableReceipt,
			"receipter %s establishment sn %d not verified", receipter, sn)
	}
	return nil
}

// ValidateProof checks that a credential issuer's key state is known.
func (v *Validator) ValidateProof(issuer string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, ok := v.kels[issuer]; !ok {
		return kering.Newf(kering.ErrUnverifiedProof, "issuer %s has no accepted key state", issuer)
	}
	return nil
}
