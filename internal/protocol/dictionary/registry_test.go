package dictionary

import (
	"testing"

	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	testlog.Start(t)
	reg, err := BuiltinRegistry()
	require.NoError(t, err)
	require.Equal(t, BuiltinIDs(), reg.IDs())

	cases := []struct {
		begin, msgType, applVerID string
		want                      string
	}{
		{"FIX.4.2", "D", "", "FIX.4.2"},
		{"FIX.4.4", "0", "", "FIX.4.4"},
		{"FIXT.1.1", "A", "9", "FIXT.1.1"},
		{"FIXT.1.1", "0", "", "FIXT.1.1"},
		{"FIXT.1.1", "D", "9", "FIX.5.0SP2"},
		{"FIXT.1.1", "D", "", "FIXT.1.1"},
	}
	for _, tc := range cases {
		d, err := reg.Resolve(tc.begin, tc.msgType, tc.applVerID)
		require.NoError(t, err, "%+v", tc)
		require.Equal(t, tc.want, d.ID, "%+v", tc)
	}

	_, err = reg.Resolve("FIX.4.1", "D", "")
	require.ErrorIs(t, err, ErrUnknownDictionary)
	_, err = reg.Resolve("FIXT.1.1", "D", "42")
	require.ErrorIs(t, err, ErrUnknownDictionary)
	_, err = reg.Resolve("FIXT.1.1", "D", "6")
	require.ErrorIs(t, err, ErrUnknownDictionary, "FIX.4.4 keeps its own BeginString")
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	testlog.Start(t)
	d := MustBuiltin("FIX.4.2")
	_, err := NewRegistry(d, d)
	require.ErrorIs(t, err, ErrDuplicateName)

	reg, err := NewRegistry(d, nil)
	require.NoError(t, err)
	got, ok := reg.Lookup("FIX.4.2")
	require.True(t, ok)
	require.Same(t, d, got)
}
