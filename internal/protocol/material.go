package protocol

import (
	"encoding/base64"
	"strings"

	"github.com/benk79tb/keripy/kering"
)

const (
	// SigerCode is the code selector of an indexed Ed25519 signature.
	SigerCode = 'A'
	// SigerSize is the full qb64 length of an indexed signature.
	SigerSize = 88
)

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Siger is an indexed signature in qb64 text form.
type Siger struct {
	Index int
	Qb64  string
}

// NewSiger parses one indexed signature from qb64 text.
func NewSiger(qb64 string) (Siger, error) {
	if qb64 == "" {
		return Siger{}, kering.New(kering.ErrEmptyMaterial, "empty signature")
	}
	if qb64[0] != SigerCode {
		return Siger{}, kering.Newf(kering.ErrUnknownCode, "unknown signature code %q", qb64[0])
	}
	if len(qb64) < 2 {
		return Siger{}, kering.New(kering.ErrRawMaterial, "signature missing index")
	}
	idx := strings.IndexByte(b64Alphabet, qb64[1])
	if idx < 0 {
		return Siger{}, kering.Newf(kering.ErrInvalidCodeIndex, "invalid index char %q", qb64[1])
	}
	if len(qb64) < SigerSize {
		return Siger{}, kering.Newf(kering.ErrRawMaterial, "need %d chars of signature, have %d", SigerSize, len(qb64))
	}
	if len(qb64) > SigerSize {
		return Siger{}, kering.Newf(kering.ErrInvalidCodeSize, "signature of %d chars does not fit code size %d", len(qb64), SigerSize)
	}
	if _, err := base64.RawURLEncoding.DecodeString(qb64); err != nil {
		return Siger{}, kering.Wrap(kering.ErrConversion, err, "signature is not base64")
	}
	return Siger{Index: idx, Qb64: qb64}, nil
}

// b64ToInt decodes a short base64 count.
func b64ToInt(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(b64Alphabet, s[i])
		if v < 0 {
			return 0, kering.Newf(kering.ErrConversion, "invalid base64 char %q in %q", s[i], s)
		}
		n = n<<6 | v
	}
	return n, nil
}

// intToB64 encodes n in exactly width base64 chars.
func intToB64(n, width int) string {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = b64Alphabet[n&0x3f]
		n >>= 6
	}
	return string(out)
}
