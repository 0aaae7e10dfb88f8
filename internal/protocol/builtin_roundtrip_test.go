package protocol

import (
	"bytes"
	"testing"

	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
)

var sampleRaw = map[field.Kind]string{
	field.KindInt:       "1",
	field.KindDecimal:   "1.5",
	field.KindChar:      "A",
	field.KindBool:      "Y",
	field.KindString:    "X",
	field.KindData:      "d\x01d",
	field.KindTimestamp: "20240101-00:00:00.000",
	field.KindTimeOnly:  "00:00:00",
	field.KindDateOnly:  "20240101",
}

func sampleValue(t *testing.T, def *dictionary.Field) field.Value {
	t.Helper()
	raw := sampleRaw[def.Type.Kind()]
	if len(def.Values) > 0 {
		raw = def.Values[0].Value
	}
	v, err := field.Decode(def.Type, []byte(raw))
	if err != nil {
		t.Fatalf("sample for %s: %v", def.Name, err)
	}
	return v
}

// fillRequired sets every required entry of l in fm. With first set the
// leading entry is filled too, so group occurrences carry their delimiter.
func fillRequired(t *testing.T, dict *dictionary.Dictionary, l *dictionary.Layout, fm *FieldMap, first bool) {
	t.Helper()
	if l == nil {
		return
	}
	for i, e := range l.Entries {
		switch e.Tag {
		case dictionary.TagBeginString, dictionary.TagBodyLength, dictionary.TagMsgType, dictionary.TagCheckSum:
			continue
		}
		if !e.Required && !(first && i == 0) {
			continue
		}
		if e.IsGroup() {
			fillRequired(t, dict, e.Group.Layout, fm.AddGroupEntry(e.Tag), true)
			continue
		}
		def, ok := dict.Field(e.Tag)
		if !ok {
			t.Fatalf("layout names undefined tag %d", e.Tag)
		}
		if def.DataTag != 0 && l.Contains(def.DataTag) {
			fm.Set(def.DataTag, field.Data([]byte("d\x01d")))
			continue
		}
		if !fm.Has(e.Tag) {
			fm.Set(e.Tag, sampleValue(t, def))
		}
	}
}

func TestEveryBuiltinMessageRoundTrips(t *testing.T) {
	testlog.Start(t)
	for _, id := range dictionary.BuiltinIDs() {
		dict := dictionary.MustBuiltin(id)
		for _, def := range dict.Messages() {
			t.Run(id+"/"+def.Type, func(t *testing.T) {
				msg := NewMessage(dict.BeginString, def.Type)
				fillRequired(t, dict, def.Header, &msg.Header, false)
				fillRequired(t, dict, def.Body, &msg.Body, false)
				fillRequired(t, dict, def.Trailer, &msg.Trailer, false)

				out, err := EncodeOne(dict, msg)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				got := mustComplete(t, DecodeOne(dict, out), len(out))
				if !msg.Equal(got) {
					t.Fatalf("decoded message differs\nwant %s\ngot  %s", msg.Format('|'), got.Format('|'))
				}
				again, err := EncodeOne(dict, got)
				if err != nil {
					t.Fatalf("re-encode: %v", err)
				}
				if !bytes.Equal(out, again) {
					t.Fatalf("re-encoded bytes differ\nwant %q\ngot  %q", out, again)
				}
			})
		}
	}
}
