package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrChecksum           = errors.New("protocol: checksum mismatch")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrUnknownTag         = errors.New("protocol: unknown tag")
	ErrMalformedLength    = errors.New("protocol: malformed body length")
	ErrTruncatedGroup     = errors.New("protocol: truncated repeating group")
	ErrInvalidField       = errors.New("protocol: invalid field value")
	ErrRepeatedTag        = errors.New("protocol: repeated tag")
	ErrMissingField       = errors.New("protocol: missing required field")
	ErrInvalidHeader      = errors.New("protocol: invalid standard header")
	ErrInvalidTrailer     = errors.New("protocol: invalid standard trailer")
	ErrSyntax             = errors.New("protocol: malformed tag=value pair")
	ErrGarbage            = errors.New("protocol: bytes before start of message")
	ErrFieldNotFound      = errors.New("protocol: field not found")
	ErrFieldTypeMismatch  = errors.New("protocol: field type mismatch")
)

// ErrorKind classifies a DecodeError.
type ErrorKind int

const (
	KindChecksum ErrorKind = iota + 1
	KindUnknownMessageType
	KindUnknownTag
	KindMalformedLength
	KindTruncatedGroup
	KindInvalidField
	KindRepeatedTag
	KindMissingField
	KindInvalidHeader
	KindInvalidTrailer
	KindSyntax
	KindGarbage
)

var kindInfo = map[ErrorKind]struct {
	name     string
	sentinel error
}{
	KindChecksum:           {"checksum", ErrChecksum},
	KindUnknownMessageType: {"unknown_message_type", ErrUnknownMessageType},
	KindUnknownTag:         {"unknown_tag", ErrUnknownTag},
	KindMalformedLength:    {"malformed_length", ErrMalformedLength},
	KindTruncatedGroup:     {"truncated_group", ErrTruncatedGroup},
	KindInvalidField:       {"invalid_field", ErrInvalidField},
	KindRepeatedTag:        {"repeated_tag", ErrRepeatedTag},
	KindMissingField:       {"missing_field", ErrMissingField},
	KindInvalidHeader:      {"invalid_header", ErrInvalidHeader},
	KindInvalidTrailer:     {"invalid_trailer", ErrInvalidTrailer},
	KindSyntax:             {"syntax", ErrSyntax},
	KindGarbage:            {"garbage", ErrGarbage},
}

func (k ErrorKind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DecodeError reports why a frame could not be decoded. Tag is the offending
// tag when one is known.
type DecodeError struct {
	Kind    ErrorKind
	Tag     int
	MsgType string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := "protocol: decode " + e.Kind.String()
	if e.MsgType != "" {
		msg += " msg_type=" + e.MsgType
	}
	if e.Tag != 0 {
		msg += fmt.Sprintf(" tag=%d", e.Tag)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	out := make([]error, 0, 2)
	if info, ok := kindInfo[e.Kind]; ok {
		out = append(out, info.sentinel)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Fatal reports whether the error leaves frame boundaries unknown, so the
// stream cannot be resynchronized.
func (e *DecodeError) Fatal() bool {
	return e.Kind == KindMalformedLength
}

// ChecksumMismatch carries the declared and recomputed checksums.
type ChecksumMismatch struct {
	Declared int
	Computed int
}

func (e ChecksumMismatch) Error() string {
	return fmt.Sprintf("declared %03d, computed %03d", e.Declared, e.Computed)
}

// EncodeError reports why a message could not be encoded. Tag is zero for
// message level failures.
type EncodeError struct {
	MsgType string
	Tag     int
	Err     error
}

func (e *EncodeError) Error() string {
	if e.Tag == 0 {
		return fmt.Sprintf("protocol: encode msg_type=%s: %v", e.MsgType, e.Err)
	}
	return fmt.Sprintf("protocol: encode msg_type=%s tag=%d: %v", e.MsgType, e.Tag, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
