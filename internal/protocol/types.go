package protocol

import (
	"strconv"
	"strings"

	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
)

// SOH is the standard field delimiter.
const SOH byte = 0x01

// Options tune decoding and encoding. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	Delimiter        byte
	ValidateEnums    bool
	ValidateRequired bool
	// MaxBodyLength caps the declared BodyLength the decoder will buffer for.
	MaxBodyLength int
}

func DefaultOptions() Options {
	return Options{
		Delimiter:        SOH,
		ValidateEnums:    true,
		ValidateRequired: true,
		MaxBodyLength:    1 << 20,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Delimiter == 0 {
		o.Delimiter = def.Delimiter
	}
	if o.MaxBodyLength <= 0 {
		o.MaxBodyLength = def.MaxBodyLength
	}
	return o
}

// Message is a decoded or to-be-encoded FIX message. BeginString, BodyLength,
// MsgType and CheckSum are structural and never stored in the field maps.
type Message struct {
	BeginString string
	MsgType     string
	Header      FieldMap
	Body        FieldMap
	Trailer     FieldMap

	// Set by the decoder.
	BodyLength int
	CheckSum   int
}

func NewMessage(beginString, msgType string) *Message {
	return &Message{BeginString: beginString, MsgType: msgType}
}

// Equal compares BeginString, MsgType and the field trees. BodyLength and
// CheckSum are ignored.
func (m *Message) Equal(o *Message) bool {
	return m.BeginString == o.BeginString && m.MsgType == o.MsgType &&
		m.Header.Equal(&o.Header) && m.Body.Equal(&o.Body) && m.Trailer.Equal(&o.Trailer)
}

// Format renders the message fields in stored order with delim between
// pairs. It is meant for logs, not for the wire.
func (m *Message) Format(delim byte) string {
	var b strings.Builder
	write := func(tag int, v string) {
		b.WriteString(strconv.Itoa(tag))
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(delim)
	}
	if m.BeginString != "" {
		write(8, m.BeginString)
	}
	write(35, m.MsgType)
	for _, fm := range []*FieldMap{&m.Header, &m.Body, &m.Trailer} {
		formatItems(&b, fm, delim)
	}
	return b.String()
}

func formatItems(b *strings.Builder, fm *FieldMap, delim byte) {
	for _, it := range fm.items {
		b.WriteString(strconv.Itoa(it.Tag))
		b.WriteByte('=')
		if it.group {
			b.WriteString(strconv.Itoa(len(it.Group)))
			b.WriteByte(delim)
			for _, occ := range it.Group {
				formatItems(b, occ, delim)
			}
			continue
		}
		b.WriteString(string(field.Encode(it.Value)))
		b.WriteByte(delim)
	}
}
