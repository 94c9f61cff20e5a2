package fuzzy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fuzzymachine/efficiency/pkg/fault"
)

//go:embed rulebase.yaml
var defaultRuleBase []byte

// ParseDefinition decodes a YAML rule base.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fault.Wrap(err, fault.KindConfiguration, "fuzzy: parse rule base")
	}
	return def, nil
}

// DefaultDefinition returns the built-in machine efficiency rule base.
func DefaultDefinition() Definition {
	def, err := ParseDefinition(defaultRuleBase)
	if err != nil {
		panic(fmt.Sprintf("fuzzy: embedded rule base is invalid: %v", err))
	}
	return def
}

// LoadDefinition reads a rule base from path. An empty path selects the
// built-in rule base.
func LoadDefinition(path string) (Definition, error) {
	if path == "" {
		return DefaultDefinition(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fault.Wrap(err, fault.KindConfiguration, fmt.Sprintf("fuzzy: read %q", path))
	}
	return ParseDefinition(data)
}
