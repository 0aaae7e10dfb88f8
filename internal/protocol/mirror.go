package protocol

import (
	"fmt"

	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
)

// MessageMirror is a JSON friendly view of a message for logs, the CLI and
// the HTTP inspector. Values are wire text.
type MessageMirror struct {
	BeginString string        `json:"begin_string"`
	MsgType     string        `json:"msg_type"`
	Name        string        `json:"name,omitempty"`
	Header      []FieldMirror `json:"header,omitempty"`
	Body        []FieldMirror `json:"body"`
	Trailer     []FieldMirror `json:"trailer,omitempty"`
}

type FieldMirror struct {
	Tag   int             `json:"tag"`
	Name  string          `json:"name,omitempty"`
	Value string          `json:"value,omitempty"`
	Label string          `json:"label,omitempty"`
	Group [][]FieldMirror `json:"group,omitempty"`
}

// NewMirror renders msg with names and enum labels from dict. dict may be
// nil, in which case only tags and values are filled.
func NewMirror(dict *dictionary.Dictionary, msg *Message) MessageMirror {
	m := MessageMirror{
		BeginString: msg.BeginString,
		MsgType:     msg.MsgType,
		Header:      mirrorItems(dict, &msg.Header),
		Body:        mirrorItems(dict, &msg.Body),
		Trailer:     mirrorItems(dict, &msg.Trailer),
	}
	if m.Body == nil {
		m.Body = []FieldMirror{}
	}
	if dict != nil {
		if def, ok := dict.Message(msg.MsgType); ok {
			m.Name = def.Name
		}
	}
	return m
}

// ApplVerID returns the mirrored ApplVerID header value, or "".
func (m MessageMirror) ApplVerID() string {
	for _, f := range m.Header {
		if f.Tag == dictionary.TagApplVerID || (f.Tag == 0 && f.Name == "ApplVerID") {
			return f.Value
		}
	}
	return ""
}

func mirrorItems(dict *dictionary.Dictionary, fm *FieldMap) []FieldMirror {
	if fm.Len() == 0 {
		return nil
	}
	out := make([]FieldMirror, 0, fm.Len())
	for _, it := range fm.items {
		fmr := FieldMirror{Tag: it.Tag}
		var def *dictionary.Field
		if dict != nil {
			def, _ = dict.Field(it.Tag)
		}
		if def != nil {
			fmr.Name = def.Name
		}
		if it.group {
			fmr.Group = make([][]FieldMirror, len(it.Group))
			for i, occ := range it.Group {
				fmr.Group[i] = mirrorItems(dict, occ)
			}
		} else {
			fmr.Value = it.Value.Text()
			if def != nil {
				fmr.Label = def.Label(fmr.Value)
			}
		}
		out = append(out, fmr)
	}
	return out
}

// MirrorToMessage parses a mirror back into a message. Fields are resolved
// by tag, or by name when the tag is zero, and values are parsed with the
// dictionary type.
func MirrorToMessage(dict *dictionary.Dictionary, m MessageMirror) (*Message, error) {
	msg := NewMessage(m.BeginString, m.MsgType)
	if msg.MsgType == "" && m.Name != "" {
		if def, ok := dict.MessageByName(m.Name); ok {
			msg.MsgType = def.Type
		}
	}
	for _, s := range []struct {
		src []FieldMirror
		dst *FieldMap
	}{
		{m.Header, &msg.Header},
		{m.Body, &msg.Body},
		{m.Trailer, &msg.Trailer},
	} {
		if err := unmirror(dict, s.src, s.dst); err != nil {
			return nil, &EncodeError{MsgType: msg.MsgType, Err: err}
		}
	}
	return msg, nil
}

func unmirror(dict *dictionary.Dictionary, src []FieldMirror, dst *FieldMap) error {
	for _, fmr := range src {
		def, err := mirrorField(dict, fmr)
		if err != nil {
			return err
		}
		if fmr.Group != nil || def.Type == field.TypeNumInGroup {
			entries := make([]*FieldMap, len(fmr.Group))
			for i, occ := range fmr.Group {
				entries[i] = &FieldMap{}
				if err := unmirror(dict, occ, entries[i]); err != nil {
					return err
				}
			}
			dst.SetGroup(def.Tag, entries...)
			continue
		}
		v, err := field.Decode(def.Type, []byte(fmr.Value))
		if err != nil {
			return fmt.Errorf("%w: tag %d: %w", ErrInvalidField, def.Tag, err)
		}
		dst.Set(def.Tag, v)
	}
	return nil
}

func mirrorField(dict *dictionary.Dictionary, fmr FieldMirror) (*dictionary.Field, error) {
	if fmr.Tag != 0 {
		if def, ok := dict.Field(fmr.Tag); ok {
			return def, nil
		}
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownTag, fmr.Tag)
	}
	if def, ok := dict.FieldByName(fmr.Name); ok {
		return def, nil
	}
	return nil, fmt.Errorf("%w: field %q", ErrUnknownTag, fmr.Name)
}
