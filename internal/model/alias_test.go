package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAliasTable_ParsesEmbeddedYAML(t *testing.T) {
	table, err := LoadAliasTable()
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 30)
}

func TestAliasTable_LookupIsCaseAndSpaceInsensitive(t *testing.T) {
	table, err := LoadAliasTable()
	require.NoError(t, err)

	cases := map[string]FactType{
		"Venue":        FactVenueName,
		"  VENUE  ":    FactVenueName,
		"Show   Name":  FactEventTitle,
		"talent buyer": FactContactName,
		"Set Time":     FactSetTime,
		"GUARANTEE":    FactGuarantee,
		"e-mail":       FactContactEmail,
		"Subject":      FactEventTitle,
	}
	for label, want := range cases {
		got, ok := table.Lookup(label)
		require.True(t, ok, "label %q", label)
		assert.Equal(t, want, got, "label %q", label)
	}
}

func TestAliasTable_UnknownLabelMisses(t *testing.T) {
	table, err := LoadAliasTable()
	require.NoError(t, err)

	for _, label := range []string{"", "merch", "load in weight", "random"} {
		_, ok := table.Lookup(label)
		assert.False(t, ok, "label %q", label)
	}
}
