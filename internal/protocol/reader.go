package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/benk79tb/keripy/internal/logging"
	"github.com/benk79tb/keripy/internal/observability"
	"github.com/benk79tb/keripy/kering"
	"github.com/rs/zerolog"
)

const defaultChunk = 4096

// Reader pulls messages off an io.Reader. Shortage is answered by reading
// more input and cold start by dropping bytes up to the next message start;
// every other occurrence is returned after the offending bytes are skipped.
type Reader struct {
	src    io.Reader
	buf    []byte
	eof    bool
	chunk  int
	logger zerolog.Logger
}

func NewReader(src io.Reader, logger zerolog.Logger) *Reader {
	return &Reader{src: src, chunk: defaultChunk, logger: logger}
}

// Next returns the next message, or io.EOF once the input is drained. A
// message that ends exactly at the buffered input is held until more input
// or EOF shows whether attachments follow.
func (r *Reader) Next() (*Message, error) {
	for {
		if len(r.buf) == 0 {
			if r.eof {
				return nil, io.EOF
			}
			if err := r.fill(); err != nil {
				return nil, err
			}
			continue
		}

		msg, n, err := Extract(r.buf)
		switch {
		case err == nil:
			if n == len(r.buf) && !r.eof {
				if err := r.fill(); err != nil {
					return nil, err
				}
				continue
			}
			r.buf = r.buf[n:]
			return msg, nil

		case kering.IsKind(err, kering.ErrShortage):
			if r.eof {
				r.buf = nil
				observability.RecordError("stream", err)
				return nil, fmt.Errorf("%w: %w", err, io.ErrUnexpectedEOF)
			}
			if err := r.fill(); err != nil {
				return nil, err
			}

		case kering.IsKind(err, kering.ErrColdStart):
			observability.RecordError("stream", err)
			logging.Event(r.logger, err).Int("buffered", len(r.buf)).Msg("stream_resync")
			r.resync()

		default:
			observability.RecordError("stream", err)
			if n > 0 {
				r.buf = r.buf[n:]
			} else {
				r.resync()
			}
			return nil, err
		}
	}
}

func (r *Reader) fill() error {
	tmp := make([]byte, r.chunk)
	n, err := r.src.Read(tmp)
	r.buf = append(r.buf, tmp[:n]...)
	if err == io.EOF {
		r.eof = true
		return nil
	}
	return err
}

// resync drops at least one byte and everything up to the next '{'.
func (r *Reader) resync() {
	idx := bytes.IndexByte(r.buf[1:], '{')
	if idx < 0 {
		r.buf = nil
		return
	}
	r.buf = r.buf[1+idx:]
}
