package protocol

import (
	"github.com/benk79tb/keripy/kering"
)

// Cold classifies the first byte of a stream position.
type Cold int

const (
	ColdMessage Cold = iota + 1
	ColdCounter
	ColdOpCode
)

// Sniff classifies the first byte of buf.
func Sniff(buf []byte) (Cold, error) {
	if len(buf) == 0 {
		return 0, kering.New(kering.ErrShortage, "empty buffer")
	}
	switch buf[0] {
	case '{':
		return ColdMessage, nil
	case countStart:
		return ColdCounter, nil
	case opStart:
		return ColdOpCode, nil
	default:
		return 0, kering.Newf(kering.ErrColdStart, "unexpected start byte 0x%02x", buf[0])
	}
}

// Message is one extracted body with its attachments.
type Message struct {
	Body
	Raw         []byte
	Attachments Attachments
}

// Extract parses one message from the head of buf. It returns the number
// of bytes the message occupies. On error the count is non-zero only when
// the framing was sound enough to skip the bad message; a ShortageError
// always reports zero so the caller can retry with more bytes.
func Extract(buf []byte) (*Message, int, error) {
	cold, err := Sniff(buf)
	if err != nil {
		return nil, 0, err
	}
	switch cold {
	case ColdCounter:
		return nil, 0, kering.New(kering.ErrUnexpectedCountCode, "attachment counter at message start")
	case ColdOpCode:
		return nil, 0, kering.New(kering.ErrUnexpectedOpCode, "op code at message start")
	}

	vs, err := Smell(buf)
	if err != nil {
		return nil, 0, err
	}
	if vs.Size > len(buf) {
		return nil, 0, kering.Newf(kering.ErrShortage, "message declares %d bytes, have %d", vs.Size, len(buf))
	}

	raw := make([]byte, vs.Size)
	copy(raw, buf[:vs.Size])
	body, err := decodeBody(raw, vs)
	if err != nil {
		return nil, vs.Size, err
	}
	msg := &Message{Body: body, Raw: raw}

	rest := buf[vs.Size:]
	if len(rest) == 0 || (rest[0] != countStart && rest[0] != opStart) {
		return msg, vs.Size, nil
	}
	att, n, err := parseGroup(rest)
	if err != nil {
		if kering.IsKind(err, kering.ErrShortage) {
			return nil, 0, err
		}
		return nil, vs.Size + n, err
	}
	msg.Attachments = att
	return msg, vs.Size + n, nil
}

// Frame encodes body and attachments as one stream unit.
func Frame(b Body, att Attachments) ([]byte, error) {
	raw, err := Encode(b)
	if err != nil {
		return nil, err
	}
	return append(raw, EncodeAttachments(att)...), nil
}
