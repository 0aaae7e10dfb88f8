package protocol

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
)

// Header holds the routing fields of a frame.
type Header struct {
	BeginString string
	MsgType     string
	ApplVerID   string
}

// standardHeader holds the standard header tags of FIX 4.2 through FIXT.1.1.
var standardHeader = map[int]struct{}{
	8: {}, 9: {}, 35: {}, 1128: {}, 1129: {}, 1156: {},
	34: {}, 43: {}, 49: {}, 50: {}, 52: {}, 56: {}, 57: {}, 90: {}, 91: {}, 97: {},
	115: {}, 116: {}, 122: {}, 128: {}, 129: {}, 142: {}, 143: {}, 144: {}, 145: {},
	212: {}, 213: {}, 347: {}, 369: {}, 370: {}, 627: {}, 628: {}, 629: {}, 630: {},
}

// headerData maps the header length fields to the data field they size.
var headerData = map[int]int{90: 91, 212: 213}

// PeekHeader reads BeginString, MsgType and ApplVerID from the frame at the
// start of buf without a dictionary. It stops at the first tag outside the
// standard header and steps over header data fields by their length. ok is
// false if buf does not start with a terminated BeginString and MsgType.
func PeekHeader(buf []byte, delim byte) (Header, bool) {
	var h Header
	if !bytes.HasPrefix(buf, startMarker) {
		return h, false
	}
	sizedTag, sized := 0, 0
	for pos := 0; pos < len(buf); {
		eq := bytes.IndexByte(buf[pos:], '=')
		if eq <= 0 {
			break
		}
		tag, err := strconv.Atoi(string(buf[pos : pos+eq]))
		if err != nil {
			break
		}
		if _, ok := standardHeader[tag]; !ok {
			break
		}
		vstart := pos + eq + 1
		vend := vstart + sized
		if tag != sizedTag {
			i := bytes.IndexByte(buf[vstart:], delim)
			if i < 0 {
				break
			}
			vend = vstart + i
		} else if vend >= len(buf) || buf[vend] != delim {
			break
		}
		val := buf[vstart:vend]
		switch tag {
		case dictionary.TagBeginString:
			h.BeginString = string(val)
		case dictionary.TagMsgType:
			h.MsgType = string(val)
		case dictionary.TagApplVerID:
			h.ApplVerID = string(val)
		}
		sizedTag, sized = 0, 0
		if dataTag, ok := headerData[tag]; ok {
			if n, err := strconv.Atoi(string(val)); err == nil && n > 0 {
				sizedTag, sized = dataTag, n
			}
		}
		pos = vend + 1
	}
	return h, h.BeginString != "" && h.MsgType != ""
}

// RegistryDecoder decodes frames against the dictionary each frame selects:
// by BeginString for FIX 4.x, and by ApplVerID or the session default for
// FIXT.1.1 application messages.
type RegistryDecoder struct {
	reg              *dictionary.Registry
	defaultApplVerID string
	opts             Options
	decoders         map[string]*Decoder
}

func NewRegistryDecoder(reg *dictionary.Registry, defaultApplVerID string, opts Options) *RegistryDecoder {
	opts = opts.normalized()
	rd := &RegistryDecoder{
		reg:              reg,
		defaultApplVerID: defaultApplVerID,
		opts:             opts,
		decoders:         make(map[string]*Decoder),
	}
	for _, id := range reg.IDs() {
		d, _ := reg.Lookup(id)
		rd.decoders[id] = NewDecoder(d, opts)
	}
	return rd
}

func (r *RegistryDecoder) Registry() *dictionary.Registry {
	return r.reg
}

func (r *RegistryDecoder) TryDecode(buf []byte) Outcome {
	info, out := scanFrame(buf, r.opts)
	if out != nil {
		return *out
	}
	h, _ := PeekHeader(buf[:info.end], r.opts.Delimiter)
	dict, err := r.Resolve(info.beginString, h.MsgType, h.ApplVerID)
	if err != nil {
		return Outcome{Status: Invalid, Consumed: info.end, Err: &DecodeError{
			Kind:    KindInvalidHeader,
			Tag:     dictionary.TagBeginString,
			MsgType: h.MsgType,
			Err:     fmt.Errorf("no dictionary: %w", err),
		}}
	}
	return r.decoders[dict.ID].decodeFrame(buf, info)
}

// Encoder returns an encoder for the dictionary id, if registered.
func (r *RegistryDecoder) Encoder(id string) (*Encoder, bool) {
	d, ok := r.decoders[id]
	if !ok {
		return nil, false
	}
	return NewEncoder(d.dict, r.opts), true
}

// Resolve is Registry.Resolve with the default ApplVerID filled in when
// applVerID is empty.
func (r *RegistryDecoder) Resolve(beginString, msgType, applVerID string) (*dictionary.Dictionary, error) {
	if applVerID == "" {
		applVerID = r.defaultApplVerID
	}
	return r.reg.Resolve(beginString, msgType, applVerID)
}

// DictionaryFor returns the dictionary a decoded message belongs to.
func (r *RegistryDecoder) DictionaryFor(msg *Message) (*dictionary.Dictionary, error) {
	appl, _ := msg.Header.String(dictionary.TagApplVerID)
	return r.Resolve(msg.BeginString, msg.MsgType, appl)
}
