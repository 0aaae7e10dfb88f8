package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
)

// Status is the result class of TryDecode.
type Status int

const (
	Incomplete Status = iota
	Complete
	Invalid
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Invalid:
		return "invalid"
	default:
		return "incomplete"
	}
}

// Outcome is the result of one TryDecode call.
//
// Complete: Message is set and Consumed is the exact frame length.
// Incomplete: Needed is the known byte shortfall, or 0 when unknown.
// Invalid: Err is set; Consumed bytes must be skipped before retrying,
// except for fatal errors where boundaries are lost and Consumed is 0.
type Outcome struct {
	Status   Status
	Message  *Message
	Consumed int
	Needed   int
	Err      *DecodeError
}

// Error returns Err as an error interface, nil when unset.
func (o Outcome) Error() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}

// trailerWidth is len("10=NNN") plus the closing delimiter.
const trailerWidth = 7

// frameInfo locates the parts of a complete, checksum-verified frame that
// starts at offset 0 of the buffer.
type frameInfo struct {
	beginString string
	bodyStart   int
	trailer     int
	end         int
	bodyLength  int
	checksum    int
}

var startMarker = []byte("8=")

// findStart returns the offset of the first frame start, or -1. "8=" counts
// at the buffer start, right after a delimiter, or anywhere it opens a
// terminated BeginString followed by "9=".
func findStart(buf []byte, delim byte) int {
	for off := 0; off < len(buf); {
		i := bytes.Index(buf[off:], startMarker)
		if i < 0 {
			return -1
		}
		i += off
		if i == 0 || buf[i-1] == delim || opensFrame(buf[i:], delim) {
			return i
		}
		off = i + 1
	}
	return -1
}

func opensFrame(b []byte, delim byte) bool {
	end := bytes.IndexByte(b[len(startMarker):], delim)
	if end <= 0 || end > maxBeginStringLen {
		return false
	}
	rest := b[len(startMarker)+end+1:]
	return len(rest) >= 2 && rest[0] == '9' && rest[1] == '='
}

func invalid(consumed int, kind ErrorKind, tag int, err error) (frameInfo, *Outcome) {
	return frameInfo{}, &Outcome{Status: Invalid, Consumed: consumed, Err: &DecodeError{Kind: kind, Tag: tag, Err: err}}
}

// scanFrame performs the dictionary independent part of decoding: locate the
// start marker, read BodyLength, check availability, trailer position and
// checksum. A nil Outcome means buf[:info.end] is a verified frame.
func scanFrame(buf []byte, opts Options) (frameInfo, *Outcome) {
	delim := opts.Delimiter
	start := findStart(buf, delim)
	if start < 0 {
		return frameInfo{}, &Outcome{Status: Incomplete}
	}
	if start > 0 {
		return invalid(start, KindGarbage, 0, fmt.Errorf("%d bytes skipped", start))
	}

	// 8=<BeginString><delim>
	beginEnd := bytes.IndexByte(buf[2:], delim)
	if beginEnd < 0 {
		if len(buf)-2 > maxBeginStringLen {
			return frameInfo{}, &Outcome{Status: Invalid, Err: &DecodeError{Kind: KindMalformedLength, Tag: dictionary.TagBeginString, Err: errors.New("BeginString not terminated")}}
		}
		return frameInfo{}, &Outcome{Status: Incomplete}
	}
	beginString := string(buf[2 : 2+beginEnd])
	pos := 2 + beginEnd + 1

	// 9=<digits><delim>
	if len(buf) < pos+2 {
		return frameInfo{}, &Outcome{Status: Incomplete}
	}
	if buf[pos] != '9' || buf[pos+1] != '=' {
		return frameInfo{}, &Outcome{Status: Invalid, Err: &DecodeError{Kind: KindMalformedLength, Tag: dictionary.TagBodyLength, Err: errors.New("BodyLength must follow BeginString")}}
	}
	pos += 2
	bodyLength, digits := 0, 0
	for ; pos < len(buf) && buf[pos] != delim; pos++ {
		c := buf[pos]
		if c < '0' || c > '9' || digits >= maxLengthDigits {
			return frameInfo{}, &Outcome{Status: Invalid, Err: &DecodeError{Kind: KindMalformedLength, Tag: dictionary.TagBodyLength, Err: fmt.Errorf("unexpected byte %q", c)}}
		}
		bodyLength = bodyLength*10 + int(c-'0')
		digits++
	}
	if pos == len(buf) {
		return frameInfo{}, &Outcome{Status: Incomplete}
	}
	if digits == 0 {
		return frameInfo{}, &Outcome{Status: Invalid, Err: &DecodeError{Kind: KindMalformedLength, Tag: dictionary.TagBodyLength, Err: errors.New("empty BodyLength")}}
	}
	if bodyLength > opts.MaxBodyLength {
		return frameInfo{}, &Outcome{Status: Invalid, Err: &DecodeError{Kind: KindMalformedLength, Tag: dictionary.TagBodyLength, Err: fmt.Errorf("BodyLength %d exceeds limit %d", bodyLength, opts.MaxBodyLength)}}
	}
	bodyStart := pos + 1
	trailer := bodyStart + bodyLength
	end := trailer + trailerWidth
	if len(buf) < end {
		return frameInfo{}, &Outcome{Status: Incomplete, Needed: end - len(buf)}
	}

	// 10=NNN<delim> must sit exactly where BodyLength says.
	tr := buf[trailer:end]
	if bodyLength == 0 || buf[trailer-1] != delim || tr[0] != '1' || tr[1] != '0' || tr[2] != '=' || tr[6] != delim {
		return invalid(resyncOffset(buf, delim), KindInvalidTrailer, dictionary.TagCheckSum,
			fmt.Errorf("CheckSum not found at offset %d", trailer))
	}
	declared, ok := threeDigits(tr[3:6])
	if !ok {
		return invalid(resyncOffset(buf, delim), KindInvalidTrailer, dictionary.TagCheckSum,
			fmt.Errorf("CheckSum %q is not three digits", tr[3:6]))
	}
	computed := checksum(buf[:trailer])
	if computed != declared {
		_, o := invalid(end, KindChecksum, dictionary.TagCheckSum, ChecksumMismatch{Declared: declared, Computed: computed})
		o.Err.MsgType = peekMsgType(buf[bodyStart:trailer], delim)
		return frameInfo{}, o
	}
	return frameInfo{
		beginString: beginString,
		bodyStart:   bodyStart,
		trailer:     trailer,
		end:         end,
		bodyLength:  bodyLength,
		checksum:    declared,
	}, nil
}

const (
	maxBeginStringLen = 16
	maxLengthDigits   = 9
)

// resyncOffset returns how many bytes to drop after a frame whose trailer is
// misplaced: up to the next start marker, else up to the last delimiter.
func resyncOffset(buf []byte, delim byte) int {
	if next := findStart(buf[1:], delim); next >= 0 {
		return next + 1
	}
	if last := bytes.LastIndexByte(buf, delim); last >= 0 {
		return last + 1
	}
	return len(buf)
}

func checksum(b []byte) int {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

func threeDigits(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func peekMsgType(body []byte, delim byte) string {
	if !bytes.HasPrefix(body, []byte("35=")) {
		return ""
	}
	rest := body[3:]
	if i := bytes.IndexByte(rest, delim); i >= 0 {
		return string(rest[:i])
	}
	return ""
}

// Decoder decodes frames against one dictionary. It holds no per-call state
// and is safe for concurrent use.
type Decoder struct {
	dict *dictionary.Dictionary
	opts Options
}

func NewDecoder(dict *dictionary.Dictionary, opts Options) *Decoder {
	return &Decoder{dict: dict, opts: opts.normalized()}
}

func (d *Decoder) Dictionary() *dictionary.Dictionary {
	return d.dict
}

func (d *Decoder) Options() Options {
	return d.opts
}

// DecodeOne decodes the first frame of buf with default options.
func DecodeOne(dict *dictionary.Dictionary, buf []byte) Outcome {
	return NewDecoder(dict, DefaultOptions()).TryDecode(buf)
}

// TryDecode attempts to decode one message from the front of buf. It never
// blocks and never retains buf.
func (d *Decoder) TryDecode(buf []byte) Outcome {
	info, out := scanFrame(buf, d.opts)
	if out != nil {
		return *out
	}
	return d.decodeFrame(buf, info)
}

func (d *Decoder) decodeFrame(buf []byte, info frameInfo) Outcome {
	msg, derr := d.parse(buf, info)
	if derr != nil {
		if derr.MsgType == "" {
			derr.MsgType = peekMsgType(buf[info.bodyStart:info.trailer], d.opts.Delimiter)
		}
		return Outcome{Status: Invalid, Consumed: info.end, Err: derr}
	}
	return Outcome{Status: Complete, Message: msg, Consumed: info.end}
}

type section struct {
	layout *dictionary.Layout
	fields *FieldMap
}

// parser walks the tag=value pairs between BodyLength and CheckSum.
type parser struct {
	dict    *dictionary.Dictionary
	opts    Options
	sc      scanner
	msgType string
}

func (p *parser) fail(kind ErrorKind, tag int, err error) *DecodeError {
	return &DecodeError{Kind: kind, Tag: tag, MsgType: p.msgType, Err: err}
}

func (d *Decoder) parse(buf []byte, info frameInfo) (*Message, *DecodeError) {
	if info.beginString != d.dict.BeginString {
		return nil, &DecodeError{Kind: KindInvalidHeader, Tag: dictionary.TagBeginString,
			Err: fmt.Errorf("BeginString %q, dictionary %s expects %q", info.beginString, d.dict.ID, d.dict.BeginString)}
	}
	p := &parser{
		dict: d.dict,
		opts: d.opts,
		sc:   scanner{buf: buf[info.bodyStart:info.trailer], delim: d.opts.Delimiter},
	}

	first, ok, derr := p.sc.peek()
	if derr != nil {
		return nil, derr
	}
	if !ok || first.tag != dictionary.TagMsgType {
		return nil, p.fail(KindInvalidHeader, dictionary.TagMsgType, errors.New("MsgType must be the third field"))
	}
	p.sc.advance()
	p.msgType = string(first.value)
	def, ok := d.dict.Message(p.msgType)
	if !ok {
		return nil, p.fail(KindUnknownMessageType, dictionary.TagMsgType, fmt.Errorf("%q not in %s", p.msgType, d.dict.ID))
	}

	msg := &Message{
		BeginString: info.beginString,
		MsgType:     p.msgType,
		BodyLength:  info.bodyLength,
		CheckSum:    info.checksum,
	}
	sections := []section{
		{def.Header, &msg.Header},
		{def.Body, &msg.Body},
		{def.Trailer, &msg.Trailer},
	}
	// Sections only move forward; a header tag after the body is out of scope.
	cur := 0
	for {
		tok, ok, derr := p.sc.peek()
		if derr != nil {
			return nil, derr
		}
		if !ok {
			break
		}
		switch tok.tag {
		case dictionary.TagBeginString, dictionary.TagBodyLength, dictionary.TagMsgType, dictionary.TagCheckSum:
			return nil, p.fail(KindInvalidHeader, tok.tag, errors.New("structural tag out of place"))
		}
		placed := false
		for i := cur; i < len(sections) && !placed; i++ {
			s := sections[i]
			e, ok := s.layout.Lookup(tok.tag)
			if !ok {
				continue
			}
			if derr := p.readEntry(e, s.layout, s.fields); derr != nil {
				return nil, derr
			}
			cur, placed = i, true
		}
		if !placed {
			return nil, p.unknownTag(tok.tag)
		}
	}
	if lengthTag, dataTag, ok := p.sc.dangling(); ok {
		return nil, p.fail(KindInvalidField, lengthTag, fmt.Errorf("%s not followed by %s", p.dict.TagName(lengthTag), p.dict.TagName(dataTag)))
	}
	if p.opts.ValidateRequired {
		for _, s := range sections {
			if derr := p.checkRequired(s.layout, s.fields); derr != nil {
				return nil, derr
			}
		}
	}
	return msg, nil
}

func (p *parser) unknownTag(tag int) *DecodeError {
	if _, ok := p.dict.Field(tag); !ok {
		return p.fail(KindUnknownTag, tag, fmt.Errorf("tag not defined in %s", p.dict.ID))
	}
	return p.fail(KindUnknownTag, tag, fmt.Errorf("tag not valid in this scope of message %s", p.msgType))
}

// readEntry consumes the current token, which belongs to entry e of scope.
func (p *parser) readEntry(e dictionary.Entry, scope *dictionary.Layout, fm *FieldMap) *DecodeError {
	tok, _, _ := p.sc.peek()
	if fm.Has(e.Tag) || p.sc.hasPending(e.Tag) {
		return p.fail(KindRepeatedTag, e.Tag, nil)
	}
	p.sc.advance()

	if e.IsGroup() {
		count, err := field.Decode(field.TypeNumInGroup, tok.value)
		if err != nil {
			return p.fail(KindInvalidField, e.Tag, err)
		}
		entries, derr := p.readGroup(e.Group, int(count.Int))
		if derr != nil {
			return derr
		}
		fm.SetGroup(e.Tag, entries...)
		return nil
	}

	def, _ := p.dict.Field(e.Tag)
	if def.DataTag != 0 && scope.Contains(def.DataTag) {
		v, err := field.Decode(def.Type, tok.value)
		if err != nil {
			return p.fail(KindInvalidField, e.Tag, err)
		}
		p.sc.expectData(def.DataTag, e.Tag, int(v.Int))
		return nil
	}
	if def.IsData() && !tok.sized {
		return p.fail(KindInvalidField, e.Tag, fmt.Errorf("data field without preceding %s", p.dict.TagName(def.LengthTag)))
	}
	v, err := field.Decode(def.Type, tok.value)
	if err != nil {
		return p.fail(KindInvalidField, e.Tag, err)
	}
	if p.opts.ValidateEnums && !def.Allows(string(tok.value)) {
		return p.fail(KindInvalidField, e.Tag, &field.FormatError{Type: def.Type, Value: string(tok.value), Reason: "not an enumerated value"})
	}
	fm.Set(e.Tag, v)
	return nil
}

// readGroup reads exactly n occurrences. Each must start with the delimiter
// field; an occurrence ends at the next delimiter or at the first tag
// outside the group.
func (p *parser) readGroup(g *dictionary.Group, n int) ([]*FieldMap, *DecodeError) {
	out := make([]*FieldMap, 0, min(n, 64))
	for i := 0; i < n; i++ {
		tok, ok, derr := p.sc.peek()
		if derr != nil {
			return nil, derr
		}
		if !ok || tok.tag != g.Delimiter {
			return nil, p.fail(KindTruncatedGroup, g.CountTag, fmt.Errorf("declared %d occurrences, found %d", n, i))
		}
		occ := &FieldMap{}
		for {
			tok, ok, derr := p.sc.peek()
			if derr != nil {
				return nil, derr
			}
			if !ok || (tok.tag == g.Delimiter && occ.Len() > 0) {
				break
			}
			e, member := g.Lookup(tok.tag)
			if !member {
				break
			}
			if derr := p.readEntry(e, g.Layout, occ); derr != nil {
				return nil, derr
			}
		}
		out = append(out, occ)
	}
	return out, nil
}

func (p *parser) checkRequired(l *dictionary.Layout, fm *FieldMap) *DecodeError {
	if l == nil {
		return nil
	}
	for _, e := range l.Entries {
		switch e.Tag {
		case dictionary.TagBeginString, dictionary.TagBodyLength, dictionary.TagMsgType, dictionary.TagCheckSum:
			continue
		}
		if e.IsGroup() {
			entries, ok := fm.Group(e.Tag)
			if !ok {
				if e.Required {
					return p.fail(KindMissingField, e.Tag, nil)
				}
				continue
			}
			for _, occ := range entries {
				if derr := p.checkRequired(e.Group.Layout, occ); derr != nil {
					return derr
				}
			}
			continue
		}
		if !e.Required {
			continue
		}
		tag := e.Tag
		if def, ok := p.dict.Field(tag); ok && def.DataTag != 0 && l.Contains(def.DataTag) {
			// Length fields are implied by their data field.
			tag = def.DataTag
		}
		if !fm.Has(tag) {
			return p.fail(KindMissingField, e.Tag, nil)
		}
	}
	return nil
}

// token is one tag=value pair. sized marks data values read by length.
type token struct {
	tag   int
	value []byte
	sized bool
}

type scanner struct {
	buf   []byte
	pos   int
	delim byte

	cur    token
	next   int
	peeked bool

	// pending maps a data tag to the byte count announced by its length
	// field; lengthOf maps it back to the length tag for repeat checks.
	pending  map[int]int
	lengthOf map[int]int
}

func (s *scanner) expectData(dataTag, lengthTag, n int) {
	if s.pending == nil {
		s.pending = make(map[int]int)
		s.lengthOf = make(map[int]int)
	}
	s.pending[dataTag] = n
	s.lengthOf[lengthTag] = dataTag
}

// dangling returns the lowest length tag whose data field never arrived.
func (s *scanner) dangling() (lengthTag, dataTag int, ok bool) {
	for lt, dt := range s.lengthOf {
		if _, open := s.pending[dt]; open && (!ok || lt < lengthTag) {
			lengthTag, dataTag, ok = lt, dt, true
		}
	}
	return lengthTag, dataTag, ok
}

func (s *scanner) hasPending(lengthTag int) bool {
	dataTag, ok := s.lengthOf[lengthTag]
	if !ok {
		return false
	}
	_, ok = s.pending[dataTag]
	return ok
}

// peek parses the pair at the cursor without consuming it. ok is false at
// the end of the body.
func (s *scanner) peek() (token, bool, *DecodeError) {
	if s.peeked {
		return s.cur, true, nil
	}
	if s.pos >= len(s.buf) {
		return token{}, false, nil
	}
	rest := s.buf[s.pos:]
	eq := bytes.IndexByte(rest, '=')
	if eq <= 0 {
		return token{}, false, &DecodeError{Kind: KindSyntax, Err: fmt.Errorf("no tag at offset %d", s.pos)}
	}
	tag := 0
	for i, c := range rest[:eq] {
		if c < '0' || c > '9' || (i == 0 && c == '0') || i >= 9 {
			return token{}, false, &DecodeError{Kind: KindSyntax, Err: fmt.Errorf("bad tag %q", rest[:eq])}
		}
		tag = tag*10 + int(c-'0')
	}
	vstart := eq + 1
	if n, ok := s.pending[tag]; ok {
		end := vstart + n
		if n <= 0 || end >= len(rest) || rest[end] != s.delim {
			return token{}, false, &DecodeError{Kind: KindInvalidField, Tag: tag, Err: fmt.Errorf("data does not match declared length %d", n)}
		}
		delete(s.pending, tag)
		s.cur = token{tag: tag, value: rest[vstart:end], sized: true}
		s.next = s.pos + end + 1
		s.peeked = true
		return s.cur, true, nil
	}
	i := bytes.IndexByte(rest[vstart:], s.delim)
	if i < 0 {
		return token{}, false, &DecodeError{Kind: KindSyntax, Tag: tag, Err: errors.New("unterminated field")}
	}
	if i == 0 {
		return token{}, false, &DecodeError{Kind: KindSyntax, Tag: tag, Err: errors.New("field without value")}
	}
	s.cur = token{tag: tag, value: rest[vstart : vstart+i]}
	s.next = s.pos + vstart + i + 1
	s.peeked = true
	return s.cur, true, nil
}

func (s *scanner) advance() {
	if s.peeked {
		s.pos = s.next
		s.peeked = false
	}
}
