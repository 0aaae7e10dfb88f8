package dictionary

import (
	"strings"
	"testing"

	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestBuiltinDictionariesCompile(t *testing.T) {
	testlog.Start(t)
	require.Equal(t, []string{"FIX.4.2", "FIX.4.4", "FIX.5.0SP2", "FIXT.1.1"}, BuiltinIDs())
	for _, id := range BuiltinIDs() {
		d, err := Builtin(id)
		require.NoError(t, err, id)
		require.Equal(t, id, d.ID)
		again, err := Builtin(id)
		require.NoError(t, err)
		require.Same(t, d, again, "builtin %s compiled twice", id)
	}
	_, err := Builtin("FIX.9.9")
	require.ErrorIs(t, err, ErrUnknownDictionary)
}

func TestBuiltinFIX44Layouts(t *testing.T) {
	testlog.Start(t)
	d := MustBuiltin("FIX.4.4")
	require.Equal(t, "FIX.4.4", d.BeginString)

	nos, ok := d.Message("D")
	require.True(t, ok)
	require.Equal(t, "NewOrderSingle", nos.Name)
	require.Equal(t, "app", nos.Category)

	symbol, ok := nos.Body.Lookup(55)
	require.True(t, ok)
	require.False(t, symbol.Required, "Instrument is optional on FIX.4.4 orders")
	for _, tag := range []int{11, 54, 60, 40} {
		e, ok := nos.Body.Lookup(tag)
		require.True(t, ok, "tag %d", tag)
		require.True(t, e.Required, "tag %d", tag)
	}

	parties, ok := nos.Body.Lookup(453)
	require.True(t, ok)
	require.True(t, parties.IsGroup())
	require.False(t, parties.Required)
	require.Equal(t, 448, parties.Group.Delimiter)
	sub, ok := parties.Group.Lookup(802)
	require.True(t, ok)
	require.Equal(t, 523, sub.Group.Delimiter)
	require.Equal(t, 4, d.MaxDepth())

	mdr, _ := d.Message("V")
	related, ok := mdr.Body.Lookup(146)
	require.True(t, ok)
	require.Equal(t, 55, related.Group.Delimiter, "group opening with a component delimits on its first field")

	hops, ok := d.Header().Lookup(627)
	require.True(t, ok)
	require.Equal(t, 628, hops.Group.Delimiter)

	raw, _ := d.Field(96)
	require.Equal(t, 95, raw.LengthTag)
	rawLen, _ := d.Field(95)
	require.Equal(t, 96, rawLen.DataTag)
	sig, _ := d.Field(89)
	require.Equal(t, 93, sig.LengthTag)

	side, ok := d.FieldByName("Side")
	require.True(t, ok)
	require.Equal(t, field.TypeChar, side.Type)
	require.True(t, side.Allows("1"))
	require.False(t, side.Allows("Z"))
	require.Equal(t, "BUY", side.Label("1"))
}

func TestBuiltinDictionariesAreComplete(t *testing.T) {
	testlog.Start(t)
	for id, want := range map[string]int{"FIX.4.2": 46, "FIX.4.4": 92, "FIXT.1.1": 7, "FIX.5.0SP2": 110} {
		require.Len(t, MustBuiltin(id).Messages(), want, id)
	}
	require.Equal(t, 5, MustBuiltin("FIX.5.0SP2").MaxDepth())
}

func TestBuiltinFIX44AcceptsStringCounter(t *testing.T) {
	testlog.Start(t)
	d := MustBuiltin("FIX.4.4")
	counter, ok := d.Field(604)
	require.True(t, ok)
	require.Equal(t, field.TypeNumInGroup, counter.Type)

	er, _ := d.Message("8")
	legs, ok := er.Body.Lookup(555)
	require.True(t, ok)
	alt, ok := legs.Group.Lookup(604)
	require.True(t, ok)
	require.True(t, alt.IsGroup())
	require.Equal(t, 605, alt.Group.Delimiter)
}

func TestBuiltinFIX50GroupStartingWithGroup(t *testing.T) {
	testlog.Start(t)
	d := MustBuiltin("FIX.5.0SP2")
	req, ok := d.Message("CC")
	require.True(t, ok)
	asgn, ok := req.Body.Lookup(1499)
	require.True(t, ok)
	require.Equal(t, 453, asgn.Group.Delimiter)
	parties, ok := asgn.Group.Lookup(453)
	require.True(t, ok)
	require.True(t, parties.IsGroup())
}

func TestBuiltinFIX50HeaderIsACopy(t *testing.T) {
	testlog.Start(t)
	app := MustBuiltin("FIX.5.0SP2")
	transport := MustBuiltin("FIXT.1.1")
	require.NotSame(t, transport.Header(), app.Header())
	hops, _ := app.Header().Lookup(627)
	fixtHops, _ := transport.Header().Lookup(627)
	require.NotSame(t, fixtHops.Group, hops.Group)
	appl, _ := app.Field(TagApplVerID)
	fixtAppl, _ := transport.Field(TagApplVerID)
	require.NotSame(t, fixtAppl, appl)
	require.Equal(t, fixtAppl.Values, appl.Values)
}

func TestBuiltinFIX42UsesVersionSpecificNames(t *testing.T) {
	testlog.Start(t)
	d := MustBuiltin("FIX.4.2")
	require.Equal(t, "LastShares", d.TagName(32))
	require.Equal(t, "IDSource", d.TagName(22))
	er, ok := d.Message("8")
	require.True(t, ok)
	e, ok := er.Body.Lookup(20)
	require.True(t, ok)
	require.True(t, e.Required)

	x, _ := d.Message("X")
	entries, ok := x.Body.Lookup(268)
	require.True(t, ok)
	require.Equal(t, 279, entries.Group.Delimiter)
	require.True(t, entries.Group.Contains(15))
}

func TestBuiltinFIX50RidesOnFIXT(t *testing.T) {
	testlog.Start(t)
	app := MustBuiltin("FIX.5.0SP2")
	require.Equal(t, BeginStringFIXT, app.BeginString)
	require.True(t, app.Header().Contains(TagApplVerID))
	_, ok := app.Message("A")
	require.False(t, ok, "session messages live in FIXT.1.1")

	transport := MustBuiltin("FIXT.1.1")
	logon, ok := transport.Message("A")
	require.True(t, ok)
	e, ok := logon.Body.Lookup(TagDefaultApplVerID)
	require.True(t, ok)
	require.True(t, e.Required)
	appl, _ := transport.Field(TagApplVerID)
	require.Equal(t, "FIX50SP2", appl.Label("9"))
}

func TestCompileXMLRejectsUnknownElements(t *testing.T) {
	testlog.Start(t)
	src := `<fix type="FIX" major="4" minor="2">
  <header><field name="BeginString" required="Y"/><widget name="x"/></header>
  <trailer/>
  <messages/>
  <components/>
  <fields><field number="8" name="BeginString" type="STRING"/></fields>
</fix>`
	_, err := CompileXML(strings.NewReader(src))
	require.ErrorIs(t, err, ErrMalformedSource)

	_, err = CompileXML(strings.NewReader("<fix"))
	require.ErrorIs(t, err, ErrMalformedSource)

	_, err = CompileXML(strings.NewReader(`<fix major="x" minor="2"/>`))
	require.ErrorIs(t, err, ErrMalformedSource)
}

func TestLoadPrefersBuiltinThenFile(t *testing.T) {
	testlog.Start(t)
	d, err := Load("FIX.4.4")
	require.NoError(t, err)
	require.Equal(t, "FIX.4.4", d.ID)

	_, err = Load("does/not/exist.xml")
	require.Error(t, err)
}
