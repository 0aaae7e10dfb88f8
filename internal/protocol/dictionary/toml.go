package dictionary

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

type tomlDoc struct {
	Version     string          `toml:"version"`
	BeginString string          `toml:"begin_string"`
	Header      []tomlEntry     `toml:"header"`
	Trailer     []tomlEntry     `toml:"trailer"`
	Fields      []tomlField     `toml:"fields"`
	Messages    []tomlMessage   `toml:"messages"`
	Components  []tomlComponent `toml:"components"`
}

type tomlField struct {
	Tag    int         `toml:"tag"`
	Name   string      `toml:"name"`
	Type   string      `toml:"type"`
	Values []tomlValue `toml:"values"`
}

type tomlValue struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// tomlEntry sets exactly one of Field, Group or Component.
type tomlEntry struct {
	Field     string      `toml:"field"`
	Group     string      `toml:"group"`
	Component string      `toml:"component"`
	Required  bool        `toml:"required"`
	Entries   []tomlEntry `toml:"entries"`
}

type tomlMessage struct {
	Type     string      `toml:"type"`
	Name     string      `toml:"name"`
	Category string      `toml:"category"`
	Entries  []tomlEntry `toml:"entries"`
}

type tomlComponent struct {
	Name    string      `toml:"name"`
	Entries []tomlEntry `toml:"entries"`
}

// CompileTOML compiles a dictionary written in the TOML source format.
// Unknown keys are rejected.
func CompileTOML(r io.Reader, opts ...Option) (*Dictionary, error) {
	var src tomlDoc
	meta, err := toml.NewDecoder(r).Decode(&src)
	if err != nil {
		return nil, &CompileError{Err: fmt.Errorf("%w: %v", ErrMalformedSource, err)}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, &CompileError{Err: fmt.Errorf("%w: unknown keys %s", ErrMalformedSource, strings.Join(keys, ", "))}
	}
	doc, err := src.document()
	if err != nil {
		return nil, err
	}
	return compile(doc, opts...)
}

func (t *tomlDoc) document() (*document, error) {
	doc := &document{ID: strings.TrimSpace(t.Version), BeginString: strings.TrimSpace(t.BeginString)}
	for _, tf := range t.Fields {
		df := docField{Tag: tf.Tag, Name: tf.Name, Type: tf.Type}
		for _, v := range tf.Values {
			df.Values = append(df.Values, Enum{Value: v.Value, Description: v.Description})
		}
		doc.Fields = append(doc.Fields, df)
	}
	var err error
	if doc.Header, err = tomlEntries("header", t.Header); err != nil {
		return nil, err
	}
	if doc.Trailer, err = tomlEntries("trailer", t.Trailer); err != nil {
		return nil, err
	}
	for _, tc := range t.Components {
		entries, err := tomlEntries("component "+tc.Name, tc.Entries)
		if err != nil {
			return nil, err
		}
		doc.Components = append(doc.Components, docComponent{Name: tc.Name, Entries: entries})
	}
	for _, tm := range t.Messages {
		entries, err := tomlEntries("message "+tm.Type, tm.Entries)
		if err != nil {
			return nil, err
		}
		doc.Messages = append(doc.Messages, docMessage{Type: tm.Type, Name: tm.Name, Category: tm.Category, Entries: entries})
	}
	return doc, nil
}

func tomlEntries(element string, entries []tomlEntry) ([]docEntry, error) {
	out := make([]docEntry, 0, len(entries))
	for _, te := range entries {
		set := 0
		e := docEntry{Required: te.Required}
		if te.Field != "" {
			set++
			e.Kind, e.Name = entryField, te.Field
		}
		if te.Group != "" {
			set++
			e.Kind, e.Name = entryGroup, te.Group
			children, err := tomlEntries(element, te.Entries)
			if err != nil {
				return nil, err
			}
			e.Entries = children
		}
		if te.Component != "" {
			set++
			e.Kind, e.Name = entryComponent, te.Component
		}
		if set != 1 {
			return nil, compileErr(element, ErrMalformedSource, "entry must set exactly one of field, group, component")
		}
		if e.Kind != entryGroup && len(te.Entries) > 0 {
			return nil, compileErr(element, ErrMalformedSource, "entries only allowed on groups (%s)", e.Name)
		}
		out = append(out, e)
	}
	return out, nil
}
