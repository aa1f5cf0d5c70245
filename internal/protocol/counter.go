package protocol

import (
	"github.com/benk79tb/keripy/kering"
)

// Counter codes. Every counter is '-' + code char + two base64 count chars.
const (
	CounterSize = 4

	// CodeAttachmentGroup frames all attachments of one message; its count
	// is in quadlets of the framed content.
	CodeAttachmentGroup = 'V'
	// CodeControllerSigs counts controller indexed signatures.
	CodeControllerSigs = 'A'
	// CodeWitnessSigs counts witness indexed signatures.
	CodeWitnessSigs = 'B'

	countStart = '-'
	opStart    = '_'
)

// Counter is a parsed count code.
type Counter struct {
	Code  byte
	Count int
}

// Qb64 renders the counter.
func (c Counter) Qb64() string {
	return string([]byte{countStart, c.Code}) + intToB64(c.Count, 2)
}

func parseCounter(buf []byte) (Counter, error) {
	if len(buf) > 0 && buf[0] == opStart {
		return Counter{}, kering.New(kering.ErrUnexpectedOpCode, "op code where counter expected")
	}
	if len(buf) > 0 && buf[0] != countStart {
		return Counter{}, kering.Newf(kering.ErrUnexpectedCode, "start byte %q where counter expected", buf[0])
	}
	if len(buf) < CounterSize {
		return Counter{}, kering.Newf(kering.ErrShortage, "need %d bytes for counter, have %d", CounterSize, len(buf))
	}
	n, err := b64ToInt(string(buf[2:4]))
	if err != nil {
		return Counter{}, err
	}
	return Counter{Code: buf[1], Count: n}, nil
}

// Attachments holds the signatures framed after a message body.
type Attachments struct {
	Sigs        []Siger
	WitnessSigs []Siger
}

// parseGroup parses an attachment group at the head of buf and returns the
// bytes consumed.
func parseGroup(buf []byte) (Attachments, int, error) {
	c, err := parseCounter(buf)
	if err != nil {
		return Attachments{}, 0, err
	}
	if c.Code != CodeAttachmentGroup {
		return Attachments{}, 0, kering.Newf(kering.ErrUnexpectedCountCode,
			"count code -%c outside attachment group", c.Code)
	}
	size := CounterSize + c.Count*4
	if len(buf) < size {
		return Attachments{}, 0, kering.Newf(kering.ErrShortage,
			"attachment group declares %d bytes, have %d", size, len(buf))
	}

	var att Attachments
	content := buf[CounterSize:size]
	for off := 0; off < len(content); {
		inner, err := parseCounter(content[off:])
		if err != nil {
			return Attachments{}, size, err
		}
		off += CounterSize

		var dst *[]Siger
		switch inner.Code {
		case CodeControllerSigs:
			dst = &att.Sigs
		case CodeWitnessSigs:
			dst = &att.WitnessSigs
		case CodeAttachmentGroup:
			return Attachments{}, size, kering.New(kering.ErrUnexpectedCountCode, "nested attachment group")
		default:
			return Attachments{}, size, kering.Newf(kering.ErrUnexpectedCode, "unknown counter -%c", inner.Code)
		}

		need := inner.Count * SigerSize
		if len(content)-off < need {
			return Attachments{}, size, kering.Newf(kering.ErrSizedGroup,
				"counter -%c needs %d bytes, group has %d left", inner.Code, need, len(content)-off)
		}
		for i := 0; i < inner.Count; i++ {
			sig, err := NewSiger(string(content[off : off+SigerSize]))
			if err != nil {
				return Attachments{}, size, err
			}
			*dst = append(*dst, sig)
			off += SigerSize
		}
	}
	return att, size, nil
}

// EncodeAttachments frames sigs and witness sigs in one attachment group.
func EncodeAttachments(att Attachments) []byte {
	var content []byte
	if len(att.Sigs) > 0 {
		content = append(content, Counter{Code: CodeControllerSigs, Count: len(att.Sigs)}.Qb64()...)
		for _, s := range att.Sigs {
			content = append(content, s.Qb64...)
		}
	}
	if len(att.WitnessSigs) > 0 {
		content = append(content, Counter{Code: CodeWitnessSigs, Count: len(att.WitnessSigs)}.Qb64()...)
		for _, s := range att.WitnessSigs {
			content = append(content, s.Qb64...)
		}
	}
	if len(content) == 0 {
		return nil
	}
	out := []byte(Counter{Code: CodeAttachmentGroup, Count: len(content) / 4}.Qb64())
	return append(out, content...)
}
