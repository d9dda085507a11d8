// Package taxonomy holds the closed industry classification set used to
// constrain the model's industry field.
package taxonomy

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed industries.yaml
var industriesYAML []byte

// Industry is one primary category with illustrative sub-industries.
type Industry struct {
	Name     string   `yaml:"name"`
	Examples []string `yaml:"examples"`
}

type file struct {
	Industries []Industry `yaml:"industries"`
}

var industries []Industry

func init() {
	var f file
	if err := yaml.Unmarshal(industriesYAML, &f); err != nil {
		// The taxonomy ships inside the binary; a decode failure is a build
		// defect, not a runtime condition.
		panic(fmt.Sprintf("taxonomy: invalid embedded industries.yaml: %v", err))
	}
	industries = f.Industries
}

// Industries returns the full taxonomy.
func Industries() []Industry {
	return industries
}

// PrimaryNames returns the allowed primary category names in file order.
func PrimaryNames() []string {
	names := make([]string, len(industries))
	for i, ind := range industries {
		names[i] = ind.Name
	}
	return names
}

// IsPrimary reports whether name is an allowed primary category.
func IsPrimary(name string) bool {
	for _, ind := range industries {
		if strings.EqualFold(ind.Name, name) {
			return true
		}
	}
	return false
}

// PromptList renders the taxonomy as a single instruction line, e.g.
// "Software & SaaS (B2B SaaS, Developer Tools, Vertical SaaS); Fintech (...)".
func PromptList() string {
	parts := make([]string, 0, len(industries))
	for _, ind := range industries {
		if len(ind.Examples) > 0 {
			parts = append(parts, ind.Name+" (e.g. "+strings.Join(ind.Examples, ", ")+")")
		} else {
			parts = append(parts, ind.Name)
		}
	}
	return strings.Join(parts, "; ")
}
