package dictionary

import (
	"sort"
	"strings"

	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
)

// Well-known tags the codec handles structurally.
const (
	TagBeginString      = 8
	TagBodyLength       = 9
	TagCheckSum         = 10
	TagMsgType          = 35
	TagApplVerID        = 1128
	TagDefaultApplVerID = 1137
)

// MaxGroupDepth bounds repeating group nesting accepted by the compiler.
const MaxGroupDepth = 8

// Enum is one allowed value of a field.
type Enum struct {
	Value       string
	Description string
}

// Field is a field definition.
type Field struct {
	Tag    int
	Name   string
	Type   field.Type
	Values []Enum
	// LengthTag is the LENGTH field carrying the byte count of a DATA field.
	LengthTag int
	// DataTag is set on LENGTH fields that size a DATA field.
	DataTag int

	enums map[string]string
}

// IsData reports whether the field carries raw bytes sized by a LENGTH field.
func (f *Field) IsData() bool {
	return f.Type.Kind() == field.KindData
}

// Allows reports whether raw is permitted by the enumerated values, if any.
// Multiple-value types check each space separated token.
func (f *Field) Allows(raw string) bool {
	if len(f.enums) == 0 {
		return true
	}
	if f.Type.Multiple() {
		for _, tok := range strings.Fields(raw) {
			if _, ok := f.enums[tok]; !ok {
				return false
			}
		}
		return raw != ""
	}
	_, ok := f.enums[raw]
	return ok
}

// Label returns the description of an enumerated value, or "".
func (f *Field) Label(value string) string {
	return f.enums[value]
}

// Entry is one position in a layout: a field or a repeating group.
type Entry struct {
	Tag  int
	Name string
	// Required is the effective requiredness: the entry and every enclosing
	// component reference are required.
	Required bool
	Group    *Group
}

func (e Entry) IsGroup() bool {
	return e.Group != nil
}

// Layout is an ordered list of entries with tag lookup. Components are
// already inlined.
type Layout struct {
	Entries []Entry
	index   map[int]int
}

func newLayout(entries []Entry) *Layout {
	l := &Layout{Entries: entries, index: make(map[int]int, len(entries))}
	for i, e := range entries {
		l.index[e.Tag] = i
	}
	return l
}

// Lookup returns the entry for tag within this layout only.
func (l *Layout) Lookup(tag int) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	i, ok := l.index[tag]
	if !ok {
		return Entry{}, false
	}
	return l.Entries[i], true
}

// Contains reports whether tag is a member of this layout.
func (l *Layout) Contains(tag int) bool {
	if l == nil {
		return false
	}
	_, ok := l.index[tag]
	return ok
}

// Required returns the entries that must be present.
func (l *Layout) Required() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, 0, len(l.Entries))
	for _, e := range l.Entries {
		if e.Required {
			out = append(out, e)
		}
	}
	return out
}

// Group is a repeating group definition. Every occurrence starts with the
// Delimiter tag, which is always the first member. When that member is a
// nested group the Delimiter is its count tag.
type Group struct {
	CountTag  int
	Name      string
	Delimiter int
	*Layout
}

// Component is a named, reusable entry list kept for introspection. Layouts
// inline components so the codec never consults this type.
type Component struct {
	Name    string
	Entries []Entry
}

// Message is a message definition. Header and Trailer are shared with the
// owning dictionary.
type Message struct {
	Type     string
	Name     string
	Category string
	Header   *Layout
	Body     *Layout
	Trailer  *Layout
}

// Dictionary is an immutable compiled schema for one protocol version.
type Dictionary struct {
	ID          string
	BeginString string

	fields     map[int]*Field
	fieldNames map[string]*Field
	messages   map[string]*Message
	msgNames   map[string]*Message
	components map[string]*Component
	header     *Layout
	trailer    *Layout
	maxDepth   int
}

func (d *Dictionary) Field(tag int) (*Field, bool) {
	f, ok := d.fields[tag]
	return f, ok
}

func (d *Dictionary) FieldByName(name string) (*Field, bool) {
	f, ok := d.fieldNames[name]
	return f, ok
}

func (d *Dictionary) Message(msgType string) (*Message, bool) {
	m, ok := d.messages[msgType]
	return m, ok
}

func (d *Dictionary) MessageByName(name string) (*Message, bool) {
	m, ok := d.msgNames[name]
	return m, ok
}

func (d *Dictionary) Component(name string) (*Component, bool) {
	c, ok := d.components[name]
	return c, ok
}

func (d *Dictionary) Header() *Layout  { return d.header }
func (d *Dictionary) Trailer() *Layout { return d.trailer }

// MaxDepth is the deepest group nesting in any layout.
func (d *Dictionary) MaxDepth() int { return d.maxDepth }

// Fields returns all field definitions ordered by tag.
func (d *Dictionary) Fields() []*Field {
	out := make([]*Field, 0, len(d.fields))
	for _, f := range d.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Messages returns all message definitions ordered by message type.
func (d *Dictionary) Messages() []*Message {
	out := make([]*Message, 0, len(d.messages))
	for _, m := range d.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Components returns component names in sorted order.
func (d *Dictionary) Components() []string {
	out := make([]string, 0, len(d.components))
	for name := range d.components {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TagName returns the field name for tag, or "" when undefined.
func (d *Dictionary) TagName(tag int) string {
	if f, ok := d.fields[tag]; ok {
		return f.Name
	}
	return ""
}
