package kering

import "fmt"

// Kind identifies a node in the error tree. Identity is the position in the
// tree; occurrence messages never take part in matching.
type Kind uint8

const (
	kindInvalid Kind = iota

	// ErrKeri is the root: some protocol-stack failure with no further guarantee.
	ErrKeri

	// ErrClosed is an operation on a resource that must be open but is not.
	ErrClosed
	// ErrConfiguration is invalid or incomplete component configuration.
	ErrConfiguration

	// ErrAuth is an authentication or authorization failure.
	ErrAuth
	// ErrAuthN means the identity could not be established.
	ErrAuthN
	// ErrAuthZ means the identity is established but the action is not permitted.
	ErrAuthZ
	// ErrDecrypt is a decryption failure under an authorization context.
	ErrDecrypt

	// ErrDatabase is a persistence-layer access failure.
	ErrDatabase
	// ErrMissingEntry means no such record exists.
	ErrMissingEntry

	// ErrMaterial means cryptographic material could not be built from raw input.
	ErrMaterial
	// ErrRawMaterial means too few raw bytes for the material.
	ErrRawMaterial
	// ErrEmptyMaterial means the material input is absent.
	ErrEmptyMaterial
	// ErrUnknownCode means the derivation code is not recognized.
	ErrUnknownCode
	// ErrInvalidCodeIndex means the code carries a malformed index.
	ErrInvalidCodeIndex
	// ErrInvalidCodeSize means the code carries a malformed size.
	ErrInvalidCodeSize

	// ErrValidation is a semantic validation failure against event log rules.
	ErrValidation
	// ErrMissingSignature means the controller signing threshold is unmet.
	ErrMissingSignature
	// ErrMissingDestination means a required routing field is absent.
	ErrMissingDestination
	// ErrMissingWitnessSignature means the witness threshold is unmet.
	ErrMissingWitnessSignature
	// ErrMissingDelegation means the delegating event is absent.
	ErrMissingDelegation
	// ErrOutOfOrder means the predecessor event has not been seen yet.
	ErrOutOfOrder
	// ErrLikelyDuplicitous means a conflicting event suggests duplicity.
	ErrLikelyDuplicitous
	ErrUnverifiedWitnessReceipt
	ErrUnverifiedReceipt
	ErrUnverifiedTransferableReceipt
	ErrUnverifiedProof
	// ErrDerivation is a general derivation-related validation failure.
	ErrDerivation
	ErrUnverifiedReply
	// ErrMissingAnchor means a transaction event lacks its anchor to a key event.
	ErrMissingAnchor

	// ErrExtraction is a failure parsing a byte stream into messages or material.
	ErrExtraction
	// ErrShortage means the buffer holds fewer bytes than the unit requires.
	// Callers wait for more input.
	ErrShortage
	// ErrColdStart means the stream start matches no known message pattern.
	// Callers discard and resynchronize.
	ErrColdStart
	// ErrSizedGroup means a sized group's content disagrees with its declared
	// size. The group framing is already consumed when this is raised.
	ErrSizedGroup
	// ErrVersion means the header version is absent or unsupported.
	ErrVersion
	// ErrDeserialization means bounded bytes do not parse into a message.
	ErrDeserialization
	// ErrConversion means a text to binary conversion failed.
	ErrConversion
	// ErrDerivationCode is a derivation code problem during extraction.
	ErrDerivationCode
	// ErrUnexpectedCode means a code is present but not expected here.
	ErrUnexpectedCode
	// ErrUnexpectedCountCode means a count code marker showed up unexpectedly.
	ErrUnexpectedCountCode
	// ErrUnexpectedOpCode means an op code marker showed up unexpectedly.
	ErrUnexpectedOpCode

	// ErrExchange is a failure processing a peer-to-peer exchange message.
	ErrExchange
	// ErrInvalidEventType is an event type unsupported in the current context.
	ErrInvalidEventType

	numKinds
)

type kindInfo struct {
	name   string
	parent Kind
}

var tree = [numKinds]kindInfo{
	ErrKeri: {"KeriError", kindInvalid},

	ErrClosed:        {"ClosedError", ErrKeri},
	ErrConfiguration: {"ConfigurationError", ErrKeri},

	ErrAuth:    {"AuthError", ErrKeri},
	ErrAuthN:   {"AuthNError", ErrAuth},
	ErrAuthZ:   {"AuthZError", ErrAuth},
	ErrDecrypt: {"DecryptError", ErrAuthZ},

	ErrDatabase:     {"DatabaseError", ErrKeri},
	ErrMissingEntry: {"MissingEntryError", ErrDatabase},

	ErrMaterial:         {"MaterialError", ErrKeri},
	ErrRawMaterial:      {"RawMaterialError", ErrMaterial},
	ErrEmptyMaterial:    {"EmptyMaterialError", ErrMaterial},
	ErrUnknownCode:      {"UnknownCodeError", ErrMaterial},
	ErrInvalidCodeIndex: {"InvalidCodeIndexError", ErrMaterial},
	ErrInvalidCodeSize:  {"InvalidCodeSizeError", ErrMaterial},

	ErrValidation:                    {"ValidationError", ErrKeri},
	ErrMissingSignature:              {"MissingSignatureError", ErrValidation},
	ErrMissingDestination:            {"MissingDestinationError", ErrValidation},
	ErrMissingWitnessSignature:       {"MissingWitnessSignatureError", ErrValidation},
	ErrMissingDelegation:             {"MissingDelegationError", ErrValidation},
	ErrOutOfOrder:                    {"OutOfOrderError", ErrValidation},
	ErrLikelyDuplicitous:             {"LikelyDuplicitousError", ErrValidation},
	ErrUnverifiedWitnessReceipt:      {"UnverifiedWitnessReceiptError", ErrValidation},
	ErrUnverifiedReceipt:             {"UnverifiedReceiptError", ErrValidation},
	ErrUnverifiedTransferableReceipt: {"UnverifiedTransferableReceiptError", ErrValidation},
	ErrUnverifiedProof:               {"UnverifiedProofError", ErrValidation},
	ErrDerivation:                    {"DerivationError", ErrValidation},
	ErrUnverifiedReply:               {"UnverifiedReplyError", ErrValidation},
	ErrMissingAnchor:                 {"MissingAnchorError", ErrValidation},

	ErrExtraction:          {"ExtractionError", ErrKeri},
	ErrShortage:            {"ShortageError", ErrExtraction},
	ErrColdStart:           {"ColdStartError", ErrExtraction},
	ErrSizedGroup:          {"SizedGroupError", ErrExtraction},
	ErrVersion:             {"VersionError", ErrExtraction},
	ErrDeserialization:     {"DeserializationError", ErrExtraction},
	ErrConversion:          {"ConversionError", ErrExtraction},
	ErrDerivationCode:      {"DerivationCodeError", ErrExtraction},
	ErrUnexpectedCode:      {"UnexpectedCodeError", ErrDerivationCode},
	ErrUnexpectedCountCode: {"UnexpectedCountCodeError", ErrDerivationCode},
	ErrUnexpectedOpCode:    {"UnexpectedOpCodeError", ErrDerivationCode},

	ErrExchange:         {"ExchangeError", ErrKeri},
	ErrInvalidEventType: {"InvalidEventTypeError", ErrKeri},
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := ErrKeri; k < numKinds; k++ {
		m[tree[k].name] = k
	}
	return m
}()

// Kinds returns every kind in declaration order, root first.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := ErrKeri; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind resolves a kind by its name, e.g. "ShortageError".
func ParseKind(name string) (Kind, bool) {
	k, ok := byName[name]
	return k, ok
}

// Valid reports whether k is a member of the tree.
func (k Kind) Valid() bool {
	return k > kindInvalid && k < numKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return tree[k].name
}

// Error lets a Kind stand in as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Is reports whether target is a Kind that k descends from (or equals).
func (k Kind) Is(target error) bool {
	t, ok := target.(Kind)
	return ok && k.IsA(t)
}

// Parent returns the direct ancestor. The root has none.
func (k Kind) Parent() (Kind, bool) {
	if !k.Valid() || k == ErrKeri {
		return kindInvalid, false
	}
	return tree[k].parent, true
}

// Ancestors returns the chain from k's parent up to the root, nearest first.
func (k Kind) Ancestors() []Kind {
	var out []Kind
	for p, ok := k.Parent(); ok; p, ok = p.Parent() {
		out = append(out, p)
	}
	return out
}

// IsA reports whether k equals other or descends from it.
func (k Kind) IsA(other Kind) bool {
	if !k.Valid() || !other.Valid() {
		return false
	}
	for cur := k; ; {
		if cur == other {
			return true
		}
		p, ok := cur.Parent()
		if !ok {
			return false
		}
		cur = p
	}
}

// Category returns the first-level kind k belongs to, or ErrKeri for the root.
func (k Kind) Category() Kind {
	if !k.Valid() {
		return kindInvalid
	}
	cur := k
	for tree[cur].parent != ErrKeri && cur != ErrKeri {
		cur = tree[cur].parent
	}
	return cur
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("kering: invalid kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("kering: unknown kind %q", string(b))
	}
	*k = v
	return nil
}
