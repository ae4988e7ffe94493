package model

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// AliasTable maps header/label synonyms to fact types. The spreadsheet
// import and the labeled-line extractor share this table so alias lists have
// one source of truth.
type AliasTable struct {
	byAlias map[string]FactType
}

// LoadAliasTable parses the embedded alias YAML.
func LoadAliasTable() (*AliasTable, error) {
	var raw map[FactType][]string
	if err := yaml.Unmarshal(aliasesYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "model: parse alias table")
	}

	t := &AliasTable{byAlias: make(map[string]FactType)}
	for ft, aliases := range raw {
		for _, a := range aliases {
			t.byAlias[foldAlias(a)] = ft
		}
	}
	return t, nil
}

// Lookup resolves a raw header or label to its fact type.
func (t *AliasTable) Lookup(label string) (FactType, bool) {
	ft, ok := t.byAlias[foldAlias(label)]
	return ft, ok
}

// Len reports the number of distinct aliases loaded.
func (t *AliasTable) Len() int { return len(t.byAlias) }

func foldAlias(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
