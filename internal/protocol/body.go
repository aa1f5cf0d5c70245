package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/benk79tb/keripy/kering"
)

// Event and message ilks accepted by the extractor.
const (
	IlkIcp = "icp"
	IlkRot = "rot"
	IlkIxn = "ixn"
	IlkDip = "dip"
	IlkDrt = "drt"
	IlkRct = "rct"
	IlkRpy = "rpy"
	IlkExn = "exn"
	IlkVcp = "vcp"
	IlkIss = "iss"
	IlkRev = "rev"
)

var supportedIlks = map[string]struct{}{
	IlkIcp: {}, IlkRot: {}, IlkIxn: {}, IlkDip: {}, IlkDrt: {},
	IlkRct: {}, IlkRpy: {}, IlkExn: {},
	IlkVcp: {}, IlkIss: {}, IlkRev: {},
}

// Seal anchors another event by prefix, sequence number and digest.
type Seal struct {
	I string `json:"i"`
	S string `json:"s"`
	D string `json:"d"`
}

// Body is the JSON field map of a message. V must serialize first.
type Body struct {
	V  string `json:"v"`
	T  string `json:"t"`
	D  string `json:"d,omitempty"`
	I  string `json:"i,omitempty"`
	S  string `json:"s,omitempty"`
	P  string `json:"p,omitempty"`
	Kt string `json:"kt,omitempty"`
	Bt string `json:"bt,omitempty"`
	Di string `json:"di,omitempty"`
	R  string `json:"r,omitempty"`
	A  []Seal `json:"a,omitempty"`
}

// thresholdBits keeps a parsed threshold within a non-negative int on every
// platform.
const thresholdBits = 31

// Sn parses the hex sequence number. An absent sn is zero.
func (b Body) Sn() (uint64, error) {
	return parseHex("s", b.S, 64)
}

// KeyThreshold parses the hex controller signing threshold.
func (b Body) KeyThreshold() (int, error) {
	v, err := parseHex("kt", b.Kt, thresholdBits)
	return int(v), err
}

// WitnessThreshold parses the hex witness threshold.
func (b Body) WitnessThreshold() (int, error) {
	v, err := parseHex("bt", b.Bt, thresholdBits)
	return int(v), err
}

func parseHex(field, raw string, bits int) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 16, bits)
	if err != nil {
		return 0, kering.Wrap(kering.ErrDeserialization, err, fmt.Sprintf("field %s", field))
	}
	return v, nil
}

// Encode serializes b with a version string carrying its own size.
func Encode(b Body) ([]byte, error) {
	b.V = Versify(KindJSON, 0)
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	b.V = Versify(KindJSON, len(raw))
	return json.Marshal(b)
}

func decodeBody(raw []byte, vs VersionString) (Body, error) {
	var b Body
	if err := json.Unmarshal(raw, &b); err != nil {
		return Body{}, kering.Wrap(kering.ErrDeserialization, err, "invalid json body")
	}
	if b.V != vs.Raw {
		return Body{}, kering.Newf(kering.ErrDeserialization, "v field %q does not match version string", b.V)
	}
	if b.T == "" {
		return Body{}, kering.New(kering.ErrDeserialization, "missing ilk field t")
	}
	if _, ok := supportedIlks[b.T]; !ok {
		return Body{}, kering.Newf(kering.ErrInvalidEventType, "unsupported ilk %q", b.T)
	}
	if _, err := b.Sn(); err != nil {
		return Body{}, err
	}
	if _, err := b.KeyThreshold(); err != nil {
		return Body{}, err
	}
	if _, err := b.WitnessThreshold(); err != nil {
		return Body{}, err
	}
	return b, nil
}
