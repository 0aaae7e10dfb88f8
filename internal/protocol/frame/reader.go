package frame

import (
	"errors"
	"io"
)

// Reader pulls bytes from an io.Reader into a Framer until an event other
// than NeedMoreData is available.
type Reader struct {
	r     io.Reader
	f     *Framer
	chunk []byte
	err   error
}

func NewReader(r io.Reader, dec Decoder, limits Limits) *Reader {
	f := New(dec, limits)
	return &Reader{r: r, f: f, chunk: make([]byte, f.limits.ReadChunk)}
}

func (r *Reader) Framer() *Framer {
	return r.f
}

// Next blocks until a message, a per-frame error or a fatal error is
// available. At end of input it returns io.EOF, or io.ErrUnexpectedEOF if
// a partial frame is left over.
func (r *Reader) Next() (Event, error) {
	for {
		ev := r.f.Poll()
		if ev.Kind != EventNeedMoreData {
			return ev, nil
		}
		if r.err != nil {
			if errors.Is(r.err, io.EOF) && r.f.Buffered() > 0 {
				return Event{}, io.ErrUnexpectedEOF
			}
			return Event{}, r.err
		}
		n, err := r.r.Read(r.chunk)
		if n > 0 {
			if ferr := r.f.Feed(r.chunk[:n]); ferr != nil {
				return Event{}, ferr
			}
		}
		if err != nil {
			r.err = err
		}
	}
}
