package protocol

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/benk79tb/keripy/kering"
)

const (
	// VersionSpan is the length of a version string, e.g. KERI10JSON0000fd_.
	VersionSpan = 17
	// SmellSpan bounds how far into a body the version string may start.
	SmellSpan = 32

	KindJSON = "JSON"
)

var versionRx = regexp.MustCompile(`KERI([0-9a-f])([0-9a-f])([A-Z]{4})([0-9a-f]{6})_`)

// VersionString is a parsed body version string.
type VersionString struct {
	Version kering.Versionage
	Kind    string
	Size    int
	Raw     string
}

// Versify renders the version string for a body of size bytes.
func Versify(kind string, size int) string {
	v := kering.Version()
	return fmt.Sprintf("KERI%x%x%s%06x_", v.Major, v.Minor, kind, size)
}

// Smell finds and checks the version string at the head of buf.
func Smell(buf []byte) (VersionString, error) {
	window := buf
	if len(window) > SmellSpan {
		window = window[:SmellSpan]
	}
	m := versionRx.FindSubmatch(window)
	if m == nil {
		if len(buf) < SmellSpan {
			return VersionString{}, kering.Newf(kering.ErrShortage,
				"need %d bytes to find version string, have %d", SmellSpan, len(buf))
		}
		return VersionString{}, kering.Newf(kering.ErrVersion,
			"no version string in first %d bytes", SmellSpan)
	}

	major, _ := strconv.ParseInt(string(m[1]), 16, 0)
	minor, _ := strconv.ParseInt(string(m[2]), 16, 0)
	size, _ := strconv.ParseInt(string(m[4]), 16, 0)
	vs := VersionString{
		Version: kering.Versionage{Major: int(major), Minor: int(minor)},
		Kind:    string(m[3]),
		Size:    int(size),
		Raw:     string(m[0]),
	}
	if vs.Version != kering.Version() {
		return VersionString{}, kering.Newf(kering.ErrVersion,
			"unsupported version %s, want %s", vs.Version, kering.Version())
	}
	if vs.Kind != KindJSON {
		return VersionString{}, kering.Newf(kering.ErrDeserialization,
			"unsupported serialization kind %q", vs.Kind)
	}
	if vs.Size < VersionSpan {
		return VersionString{}, kering.Newf(kering.ErrDeserialization,
			"declared size %d smaller than version string", vs.Size)
	}
	return vs, nil
}
