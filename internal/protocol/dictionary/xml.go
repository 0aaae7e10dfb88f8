package dictionary

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type xmlDoc struct {
	XMLName     xml.Name       `xml:"fix"`
	Type        string         `xml:"type,attr"`
	Major       string         `xml:"major,attr"`
	Minor       string         `xml:"minor,attr"`
	ServicePack string         `xml:"servicepack,attr"`
	Header      xmlSection     `xml:"header"`
	Trailer     xmlSection     `xml:"trailer"`
	Messages    []xmlMessage   `xml:"messages>message"`
	Components  []xmlComponent `xml:"components>component"`
	Fields      []xmlField     `xml:"fields>field"`
}

type xmlSection struct {
	Children []xmlNode `xml:",any"`
}

// xmlNode is a field, group or component reference. ",any" keeps the
// children in document order.
type xmlNode struct {
	XMLName  xml.Name
	Name     string    `xml:"name,attr"`
	Required string    `xml:"required,attr"`
	Children []xmlNode `xml:",any"`
}

type xmlMessage struct {
	Name     string    `xml:"name,attr"`
	MsgType  string    `xml:"msgtype,attr"`
	MsgCat   string    `xml:"msgcat,attr"`
	Children []xmlNode `xml:",any"`
}

type xmlComponent struct {
	Name     string    `xml:"name,attr"`
	Children []xmlNode `xml:",any"`
}

type xmlField struct {
	Number string     `xml:"number,attr"`
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Values []xmlValue `xml:"value"`
}

type xmlValue struct {
	Enum        string `xml:"enum,attr"`
	Description string `xml:"description,attr"`
}

// CompileXML compiles a QuickFIX-style XML dictionary.
func CompileXML(r io.Reader, opts ...Option) (*Dictionary, error) {
	var src xmlDoc
	if err := xml.NewDecoder(r).Decode(&src); err != nil {
		return nil, &CompileError{Err: fmt.Errorf("%w: %v", ErrMalformedSource, err)}
	}
	doc, err := src.document()
	if err != nil {
		return nil, err
	}
	return compile(doc, opts...)
}

func (x *xmlDoc) document() (*document, error) {
	id, begin, err := versionID(x.Type, x.Major, x.Minor, x.ServicePack)
	if err != nil {
		return nil, err
	}
	doc := &document{ID: id, BeginString: begin, stringCounters: true}
	for _, xf := range x.Fields {
		tag, err := strconv.Atoi(strings.TrimSpace(xf.Number))
		if err != nil {
			return nil, compileErr("field "+xf.Name, ErrMalformedSource, "number %q", xf.Number)
		}
		df := docField{Tag: tag, Name: xf.Name, Type: xf.Type}
		for _, v := range xf.Values {
			df.Values = append(df.Values, Enum{Value: v.Enum, Description: v.Description})
		}
		doc.Fields = append(doc.Fields, df)
	}
	if doc.Header, err = xmlEntries("header", x.Header.Children); err != nil {
		return nil, err
	}
	if doc.Trailer, err = xmlEntries("trailer", x.Trailer.Children); err != nil {
		return nil, err
	}
	for _, xc := range x.Components {
		entries, err := xmlEntries("component "+xc.Name, xc.Children)
		if err != nil {
			return nil, err
		}
		doc.Components = append(doc.Components, docComponent{Name: xc.Name, Entries: entries})
	}
	for _, xm := range x.Messages {
		entries, err := xmlEntries("message "+xm.MsgType, xm.Children)
		if err != nil {
			return nil, err
		}
		doc.Messages = append(doc.Messages, docMessage{
			Type:     xm.MsgType,
			Name:     xm.Name,
			Category: xm.MsgCat,
			Entries:  entries,
		})
	}
	return doc, nil
}

func xmlEntries(element string, nodes []xmlNode) ([]docEntry, error) {
	out := make([]docEntry, 0, len(nodes))
	for _, n := range nodes {
		e := docEntry{Name: strings.TrimSpace(n.Name), Required: strings.EqualFold(n.Required, "Y")}
		switch n.XMLName.Local {
		case "field":
			e.Kind = entryField
		case "component":
			e.Kind = entryComponent
		case "group":
			e.Kind = entryGroup
			children, err := xmlEntries(element, n.Children)
			if err != nil {
				return nil, err
			}
			e.Entries = children
		default:
			return nil, compileErr(element, ErrMalformedSource, "unexpected element <%s>", n.XMLName.Local)
		}
		if e.Name == "" {
			return nil, compileErr(element, ErrMalformedSource, "<%s> without name", n.XMLName.Local)
		}
		out = append(out, e)
	}
	return out, nil
}

// versionID derives the dictionary id and wire BeginString from the <fix>
// attributes. FIX 5.0 and later travel over FIXT.1.1.
func versionID(typ, major, minor, sp string) (string, string, error) {
	typ = strings.ToUpper(strings.TrimSpace(typ))
	if typ == "" {
		typ = "FIX"
	}
	maj, err1 := strconv.Atoi(strings.TrimSpace(major))
	mnr, err2 := strconv.Atoi(strings.TrimSpace(minor))
	if err1 != nil || err2 != nil {
		return "", "", &CompileError{Err: fmt.Errorf("%w: bad version %q.%q", ErrMalformedSource, major, minor)}
	}
	id := fmt.Sprintf("%s.%d.%d", typ, maj, mnr)
	if n, err := strconv.Atoi(strings.TrimSpace(sp)); err == nil && n > 0 {
		id += "SP" + strconv.Itoa(n)
	}
	begin := id
	if typ == "FIX" && maj >= 5 {
		begin = "FIXT.1.1"
	}
	return id, begin, nil
}
