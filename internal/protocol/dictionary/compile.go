package dictionary

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
	"github.com/rs/zerolog/log"
)

type entryKind int

const (
	entryField entryKind = iota
	entryGroup
	entryComponent
)

// document is the source-neutral form both XML and TOML decode into.
type document struct {
	ID          string
	BeginString string
	Fields      []docField
	Header      []docEntry
	Trailer     []docEntry
	Messages    []docMessage
	Components  []docComponent

	// stringCounters accepts STRING group counters as NUMINGROUP. QuickFIX
	// XML declares a few that way, NoLegSecurityAltID(604) in FIX.4.4 among them.
	stringCounters bool
}

type docField struct {
	Tag    int
	Name   string
	Type   string
	Values []Enum
}

type docEntry struct {
	Kind     entryKind
	Name     string
	Required bool
	Entries  []docEntry
}

type docMessage struct {
	Type     string
	Name     string
	Category string
	Entries  []docEntry
}

type docComponent struct {
	Name    string
	Entries []docEntry
}

// Option adjusts compilation.
type Option func(*options)

type options struct {
	envelope *Dictionary
}

// WithEnvelope supplies the header and trailer for sources that declare
// none, as FIX 5.0 application dictionaries do with FIXT.1.1.
func WithEnvelope(d *Dictionary) Option {
	return func(o *options) { o.envelope = d }
}

// CompileFile compiles a dictionary file, choosing the source format by
// extension (.xml or .toml).
func CompileFile(path string, opts ...Option) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open %s: %w", path, err)
	}
	defer f.Close()

	var d *Dictionary
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		d, err = CompileXML(f, opts...)
	case ".toml":
		d, err = CompileTOML(f, opts...)
	default:
		return nil, &CompileError{Source: path, Err: fmt.Errorf("%w: unsupported extension %q", ErrMalformedSource, filepath.Ext(path))}
	}
	if err != nil {
		return nil, withSource(err, path)
	}
	return d, nil
}

func withSource(err error, src string) error {
	var ce *CompileError
	if errors.As(err, &ce) && ce.Source == "" {
		ce.Source = src
	}
	return err
}

type compiler struct {
	doc      *document
	opts     options
	dict     *Dictionary
	compDocs map[string]*docComponent
}

func compile(doc *document, opts ...Option) (*Dictionary, error) {
	c := &compiler{doc: doc}
	for _, opt := range opts {
		opt(&c.opts)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return nil, &CompileError{Err: fmt.Errorf("%w: missing version", ErrMalformedSource)}
	}
	c.dict = &Dictionary{
		ID:          doc.ID,
		BeginString: doc.BeginString,
		fields:      make(map[int]*Field, len(doc.Fields)),
		fieldNames:  make(map[string]*Field, len(doc.Fields)),
		messages:    make(map[string]*Message, len(doc.Messages)),
		msgNames:    make(map[string]*Message, len(doc.Messages)),
		components:  make(map[string]*Component, len(doc.Components)),
	}
	steps := []func() error{
		c.compileFields,
		c.pairData,
		c.indexComponents,
		c.compileEnvelope,
		c.compileComponents,
		c.compileMessages,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			log.Debug().Str("dictionary", doc.ID).Err(err).Msg("dictionary rejected")
			return nil, err
		}
	}
	if c.dict.BeginString == "" {
		c.dict.BeginString = c.dict.ID
	}
	log.Debug().
		Str("dictionary", c.dict.ID).
		Str("begin_string", c.dict.BeginString).
		Int("fields", len(c.dict.fields)).
		Int("messages", len(c.dict.messages)).
		Int("components", len(c.dict.components)).
		Int("max_depth", c.dict.maxDepth).
		Msg("dictionary compiled")
	return c.dict, nil
}

func (c *compiler) compileFields() error {
	for _, df := range c.doc.Fields {
		element := fmt.Sprintf("field %d", df.Tag)
		if df.Tag <= 0 {
			return compileErr(element, ErrMalformedSource, "tag must be positive")
		}
		name := strings.TrimSpace(df.Name)
		if name == "" {
			return compileErr(element, ErrMalformedSource, "missing name")
		}
		typ, err := field.ParseType(df.Type)
		if err != nil {
			return compileErr(element, ErrUnknownType, "%q", df.Type)
		}
		if prev, ok := c.dict.fields[df.Tag]; ok {
			return compileErr(element, ErrDuplicateTag, "%s and %s", prev.Name, name)
		}
		if prev, ok := c.dict.fieldNames[name]; ok {
			return compileErr(element, ErrDuplicateName, "field %s already has tag %d", name, prev.Tag)
		}
		f := &Field{Tag: df.Tag, Name: name, Type: typ}
		if len(df.Values) > 0 {
			f.Values = slices.Clone(df.Values)
			f.enums = make(map[string]string, len(df.Values))
			for _, v := range df.Values {
				f.enums[v.Value] = v.Description
			}
		}
		c.dict.fields[f.Tag] = f
		c.dict.fieldNames[f.Name] = f
	}
	return nil
}

// pairData links every DATA field to the LENGTH field preceding it on the
// wire: <Name>Length, <Name>Len, or the LENGTH field at tag-1.
func (c *compiler) pairData() error {
	for _, f := range c.dict.Fields() {
		if !f.IsData() {
			continue
		}
		var partner *Field
		for _, name := range []string{f.Name + "Length", f.Name + "Len"} {
			if p, ok := c.dict.fieldNames[name]; ok && isLength(p) {
				partner = p
				break
			}
		}
		if partner == nil {
			if p, ok := c.dict.fields[f.Tag-1]; ok && isLength(p) && p.DataTag == 0 {
				partner = p
			}
		}
		if partner == nil || (partner.DataTag != 0 && partner.DataTag != f.Tag) {
			return compileErr(fmt.Sprintf("field %d", f.Tag), ErrUnpairedData, "%s", f.Name)
		}
		f.LengthTag = partner.Tag
		partner.DataTag = f.Tag
	}
	return nil
}

func isLength(f *Field) bool {
	return f.Type == field.TypeLength || f.Type == field.TypeInt
}

func (c *compiler) indexComponents() error {
	c.compDocs = make(map[string]*docComponent, len(c.doc.Components))
	for i := range c.doc.Components {
		dc := &c.doc.Components[i]
		name := strings.TrimSpace(dc.Name)
		if name == "" {
			return compileErr("component", ErrMalformedSource, "missing name")
		}
		if _, dup := c.compDocs[name]; dup {
			return compileErr("component "+name, ErrDuplicateName, "component %s", name)
		}
		c.compDocs[name] = dc
	}
	return nil
}

func (c *compiler) compileEnvelope() error {
	if len(c.doc.Header) == 0 && len(c.doc.Trailer) == 0 && c.opts.envelope != nil {
		env := c.opts.envelope
		c.dict.header = c.importLayout(env, env.header)
		c.dict.trailer = c.importLayout(env, env.trailer)
		c.dict.maxDepth = max(c.dict.maxDepth, depthOf(env.header), depthOf(env.trailer))
		if c.dict.BeginString == "" {
			c.dict.BeginString = env.BeginString
		}
		return nil
	}

	header, err := c.expand("header", c.doc.Header, nil, 0, true)
	if err != nil {
		return err
	}
	if err := checkScope("header", header, c.dict); err != nil {
		return err
	}
	if len(header) < 3 || header[0].Tag != TagBeginString || header[1].Tag != TagBodyLength || header[2].Tag != TagMsgType {
		return compileErr("header", ErrInvalidEnvelope, "must start with BeginString, BodyLength, MsgType")
	}
	trailer, err := c.expand("trailer", c.doc.Trailer, nil, 0, true)
	if err != nil {
		return err
	}
	if err := checkScope("trailer", trailer, c.dict); err != nil {
		return err
	}
	if len(trailer) == 0 || trailer[len(trailer)-1].Tag != TagCheckSum {
		return compileErr("trailer", ErrInvalidEnvelope, "must end with CheckSum")
	}
	for _, e := range header {
		if slices.ContainsFunc(trailer, func(t Entry) bool { return t.Tag == e.Tag }) {
			return compileErr("trailer", ErrDuplicateMember, "tag %d also in header", e.Tag)
		}
	}
	c.dict.header = newLayout(header)
	c.dict.trailer = newLayout(trailer)
	return nil
}

// importLayout copies a borrowed layout and the field definitions it refers
// to, so the two dictionaries share no pointers.
func (c *compiler) importLayout(from *Dictionary, l *Layout) *Layout {
	entries := make([]Entry, len(l.Entries))
	for i, e := range l.Entries {
		c.importField(from, e.Tag)
		if e.Group != nil {
			g := *e.Group
			g.Layout = c.importLayout(from, e.Group.Layout)
			e.Group = &g
		}
		entries[i] = e
	}
	return newLayout(entries)
}

func (c *compiler) importField(from *Dictionary, tag int) {
	if _, ok := c.dict.fields[tag]; ok {
		return
	}
	src, ok := from.fields[tag]
	if !ok {
		return
	}
	f := *src
	f.Values = slices.Clone(src.Values)
	f.enums = maps.Clone(src.enums)
	c.dict.fields[f.Tag] = &f
	if _, taken := c.dict.fieldNames[f.Name]; !taken {
		c.dict.fieldNames[f.Name] = &f
	}
}

func (c *compiler) compileComponents() error {
	for _, dc := range c.doc.Components {
		element := "component " + dc.Name
		entries, err := c.expand(element, dc.Entries, []string{dc.Name}, 0, true)
		if err != nil {
			return err
		}
		if err := checkScope(element, entries, c.dict); err != nil {
			return err
		}
		c.dict.components[dc.Name] = &Component{Name: dc.Name, Entries: entries}
	}
	return nil
}

func (c *compiler) compileMessages() error {
	for _, dm := range c.doc.Messages {
		element := "message " + dm.Type
		if strings.TrimSpace(dm.Type) == "" {
			return compileErr("message "+dm.Name, ErrMalformedSource, "missing msgtype")
		}
		if _, dup := c.dict.messages[dm.Type]; dup {
			return compileErr(element, ErrDuplicateName, "msgtype %s", dm.Type)
		}
		if _, dup := c.dict.msgNames[dm.Name]; dup && dm.Name != "" {
			return compileErr(element, ErrDuplicateName, "message %s", dm.Name)
		}
		body, err := c.expand(element, dm.Entries, nil, 0, true)
		if err != nil {
			return err
		}
		if err := checkScope(element, body, c.dict); err != nil {
			return err
		}
		for _, e := range body {
			if c.dict.header.Contains(e.Tag) || c.dict.trailer.Contains(e.Tag) {
				return compileErr(element, ErrDuplicateMember, "tag %d belongs to header or trailer", e.Tag)
			}
		}
		m := &Message{
			Type:     dm.Type,
			Name:     dm.Name,
			Category: dm.Category,
			Header:   c.dict.header,
			Body:     newLayout(body),
			Trailer:  c.dict.trailer,
		}
		c.dict.messages[m.Type] = m
		if m.Name != "" {
			c.dict.msgNames[m.Name] = m
		}
	}
	return nil
}

// expand inlines components and compiles groups. required carries the
// requiredness of every enclosing component reference.
func (c *compiler) expand(element string, entries []docEntry, stack []string, depth int, required bool) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case entryField:
			f, ok := c.dict.fieldNames[e.Name]
			if !ok {
				return nil, compileErr(element, ErrUndefinedField, "%q", e.Name)
			}
			out = append(out, Entry{Tag: f.Tag, Name: f.Name, Required: required && e.Required})
		case entryGroup:
			g, err := c.group(element, e, stack, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Tag: g.CountTag, Name: g.Name, Required: required && e.Required, Group: g})
		case entryComponent:
			dc, ok := c.compDocs[e.Name]
			if !ok {
				return nil, compileErr(element, ErrUndefinedComponent, "%q", e.Name)
			}
			if slices.Contains(stack, e.Name) {
				return nil, compileErr(element, ErrCyclicComponent, "%s", strings.Join(append(slices.Clone(stack), e.Name), " -> "))
			}
			next := append(stack[:len(stack):len(stack)], e.Name)
			inner, err := c.expand(element, dc.Entries, next, depth, required && e.Required)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		}
	}
	return out, nil
}

func (c *compiler) group(element string, e docEntry, stack []string, depth int) (*Group, error) {
	count, ok := c.dict.fieldNames[e.Name]
	if !ok {
		return nil, compileErr(element, ErrUndefinedField, "group counter %q", e.Name)
	}
	if count.Type == field.TypeString && c.doc.stringCounters {
		count.Type = field.TypeNumInGroup
	}
	if count.Type != field.TypeNumInGroup && count.Type != field.TypeInt {
		return nil, compileErr(element, ErrInvalidGroup, "group %s counter has type %s", e.Name, count.Type)
	}
	if depth > MaxGroupDepth {
		return nil, compileErr(element, ErrTooDeep, "group %s at depth %d", e.Name, depth)
	}
	members, err := c.expand(element, e.Entries, stack, depth, true)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, compileErr(element, ErrInvalidGroup, "group %s has no members", e.Name)
	}
	if err := checkScope(element, members, c.dict); err != nil {
		return nil, err
	}
	c.dict.maxDepth = max(c.dict.maxDepth, depth)
	// A nested group as first member delimits by its count tag, as
	// NoAsgnReqs(1499) does with NoPartyIDs(453) in FIX.5.0SP2.
	return &Group{
		CountTag:  count.Tag,
		Name:      count.Name,
		Delimiter: members[0].Tag,
		Layout:    newLayout(members),
	}, nil
}

// checkScope rejects tags repeated within one scope and data fields whose
// length field is not in the same scope.
func checkScope(element string, entries []Entry, d *Dictionary) error {
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Tag]; dup {
			return compileErr(element, ErrDuplicateMember, "tag %d", e.Tag)
		}
		seen[e.Tag] = struct{}{}
	}
	for _, e := range entries {
		f, ok := d.fields[e.Tag]
		if !ok || !f.IsData() {
			continue
		}
		if _, ok := seen[f.LengthTag]; !ok {
			return compileErr(element, ErrUnpairedData, "%s without %s in scope", f.Name, d.TagName(f.LengthTag))
		}
	}
	return nil
}

func depthOf(l *Layout) int {
	if l == nil {
		return 0
	}
	deepest := 0
	for _, e := range l.Entries {
		if e.Group != nil {
			deepest = max(deepest, 1+depthOf(e.Group.Layout))
		}
	}
	return deepest
}
