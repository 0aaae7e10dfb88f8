package protocol

import (
	"fmt"
	"strconv"

	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
)

// Encoder serializes messages against one dictionary. BodyLength, CheckSum,
// group counts and data lengths are always derived, never taken from the
// caller. Safe for concurrent use.
type Encoder struct {
	dict *dictionary.Dictionary
	opts Options
}

func NewEncoder(dict *dictionary.Dictionary, opts Options) *Encoder {
	return &Encoder{dict: dict, opts: opts.normalized()}
}

func (e *Encoder) Dictionary() *dictionary.Dictionary {
	return e.dict
}

// EncodeOne encodes msg with default options.
func EncodeOne(dict *dictionary.Dictionary, msg *Message) ([]byte, error) {
	return NewEncoder(dict, DefaultOptions()).Encode(msg)
}

func (e *Encoder) Encode(msg *Message) ([]byte, error) {
	return e.AppendEncode(nil, msg)
}

// AppendEncode appends the complete frame for msg to dst. On error dst is
// returned unchanged.
func (e *Encoder) AppendEncode(dst []byte, msg *Message) ([]byte, error) {
	if msg == nil {
		return dst, &EncodeError{Err: fmt.Errorf("%w: nil message", ErrInvalidHeader)}
	}
	def, ok := e.dict.Message(msg.MsgType)
	if !ok {
		return dst, &EncodeError{MsgType: msg.MsgType, Err: fmt.Errorf("%w: %q not in %s", ErrUnknownMessageType, msg.MsgType, e.dict.ID)}
	}
	if msg.BeginString != "" && msg.BeginString != e.dict.BeginString {
		return dst, &EncodeError{MsgType: msg.MsgType, Tag: dictionary.TagBeginString,
			Err: fmt.Errorf("%w: BeginString %q, dictionary %s expects %q", ErrInvalidHeader, msg.BeginString, e.dict.ID, e.dict.BeginString)}
	}

	w := writer{dict: e.dict, opts: e.opts, msgType: msg.MsgType}
	w.buf = make([]byte, 0, 256)
	w.buf = append(w.buf, "35="...)
	w.buf = append(w.buf, msg.MsgType...)
	w.buf = append(w.buf, e.opts.Delimiter)

	for _, s := range []section{
		{def.Header, &msg.Header},
		{def.Body, &msg.Body},
		{def.Trailer, &msg.Trailer},
	} {
		if err := w.writeLayout(s.layout, s.fields); err != nil {
			return dst, err
		}
	}

	bodyLength := len(w.buf)
	if bodyLength > e.opts.MaxBodyLength {
		return dst, &EncodeError{MsgType: msg.MsgType, Tag: dictionary.TagBodyLength,
			Err: fmt.Errorf("%w: body of %d bytes exceeds limit %d", ErrMalformedLength, bodyLength, e.opts.MaxBodyLength)}
	}

	start := len(dst)
	out := append(dst, "8="...)
	out = append(out, e.dict.BeginString...)
	out = append(out, e.opts.Delimiter)
	out = append(out, "9="...)
	out = strconv.AppendInt(out, int64(bodyLength), 10)
	out = append(out, e.opts.Delimiter)
	out = append(out, w.buf...)
	sum := checksum(out[start:])
	out = append(out, fmt.Sprintf("10=%03d", sum)...)
	out = append(out, e.opts.Delimiter)
	return out, nil
}

type writer struct {
	dict    *dictionary.Dictionary
	opts    Options
	msgType string
	buf     []byte
}

func (w *writer) fail(tag int, sentinel error, format string, args ...any) *EncodeError {
	err := sentinel
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
	}
	return &EncodeError{MsgType: w.msgType, Tag: tag, Err: err}
}

// writeLayout emits the entries of l present in fm, in layout order, and
// rejects anything in fm the layout does not know.
func (w *writer) writeLayout(l *dictionary.Layout, fm *FieldMap) error {
	for _, tag := range fm.Tags() {
		if !l.Contains(tag) {
			return w.fail(tag, ErrUnknownTag, "not valid in this scope")
		}
	}
	if l == nil {
		return nil
	}
	for _, e := range l.Entries {
		switch e.Tag {
		case dictionary.TagBeginString, dictionary.TagBodyLength, dictionary.TagMsgType, dictionary.TagCheckSum:
			continue
		}
		if e.IsGroup() {
			if err := w.writeGroup(e, fm); err != nil {
				return err
			}
			continue
		}
		def, ok := w.dict.Field(e.Tag)
		if !ok {
			return w.fail(e.Tag, ErrUnknownTag, "")
		}
		if def.DataTag != 0 && l.Contains(def.DataTag) {
			// Written together with its data field.
			if e.Required && w.opts.ValidateRequired && !fm.Has(def.DataTag) {
				return w.fail(def.DataTag, ErrMissingField, "")
			}
			continue
		}
		v, present := fm.Get(e.Tag)
		if !present {
			if fm.Has(e.Tag) {
				return w.fail(e.Tag, ErrInvalidField, "group stored under a field tag")
			}
			if e.Required && w.opts.ValidateRequired {
				return w.fail(e.Tag, ErrMissingField, "")
			}
			continue
		}
		if err := w.check(def, v); err != nil {
			return err
		}
		if def.IsData() && def.LengthTag != 0 && l.Contains(def.LengthTag) {
			w.appendInt(def.LengthTag, len(v.Bytes))
		}
		w.appendField(e.Tag, v)
	}
	return nil
}

func (w *writer) writeGroup(e dictionary.Entry, fm *FieldMap) error {
	entries, ok := fm.Group(e.Tag)
	if !ok {
		if fm.Has(e.Tag) {
			return w.fail(e.Tag, ErrInvalidField, "value stored under a group tag")
		}
		if e.Required && w.opts.ValidateRequired {
			return w.fail(e.Tag, ErrMissingField, "")
		}
		return nil
	}
	w.appendInt(e.Tag, len(entries))
	for i, occ := range entries {
		if occ == nil || !occ.Has(e.Group.Delimiter) {
			return w.fail(e.Tag, ErrTruncatedGroup, "occurrence %d lacks delimiter field %d", i, e.Group.Delimiter)
		}
		if err := w.writeLayout(e.Group.Layout, occ); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) check(def *dictionary.Field, v field.Value) error {
	if err := field.Check(def.Type, v, w.opts.Delimiter); err != nil {
		return &EncodeError{MsgType: w.msgType, Tag: def.Tag, Err: fmt.Errorf("%w: %w", ErrInvalidField, err)}
	}
	if w.opts.ValidateEnums && v.Kind != field.KindData && !def.Allows(v.Text()) {
		return w.fail(def.Tag, ErrInvalidField, "%q is not an enumerated value of %s", v.Text(), def.Name)
	}
	return nil
}

func (w *writer) appendInt(tag, n int) {
	w.buf = strconv.AppendInt(w.buf, int64(tag), 10)
	w.buf = append(w.buf, '=')
	w.buf = strconv.AppendInt(w.buf, int64(n), 10)
	w.buf = append(w.buf, w.opts.Delimiter)
}

func (w *writer) appendField(tag int, v field.Value) {
	w.buf = strconv.AppendInt(w.buf, int64(tag), 10)
	w.buf = append(w.buf, '=')
	w.buf = field.Append(w.buf, v)
	w.buf = append(w.buf, w.opts.Delimiter)
}
