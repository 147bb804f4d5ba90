package interpret

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voicedesk/internal/normalize"
)

// ViewRegistry resolves spoken target phrases to canonical view identifiers.
// Aliases are a many-to-one mapping of spoken shorthand to canonical views;
// both sides are matched through the normalizer so lookups are
// case-insensitive and punctuation-proof.
type ViewRegistry struct {
	canonical map[string]string
	aliases   map[string]string
}

// NewViewRegistry builds a registry from canonical view names and an alias
// table. Aliases pointing at unknown views are dropped.
func NewViewRegistry(views []string, aliases map[string]string) *ViewRegistry {
	r := &ViewRegistry{
		canonical: make(map[string]string, len(views)),
		aliases:   make(map[string]string, len(aliases)),
	}
	for _, view := range views {
		key := normalize.Text(view)
		if key == "" {
			continue
		}
		r.canonical[key] = key
	}
	for alias, view := range aliases {
		aliasKey := normalize.Text(alias)
		viewKey := normalize.Text(view)
		if aliasKey == "" {
			continue
		}
		if _, ok := r.canonical[viewKey]; !ok {
			continue
		}
		r.aliases[aliasKey] = viewKey
	}
	return r
}

// DefaultViewRegistry covers the dashboard's built-in views.
func DefaultViewRegistry() *ViewRegistry {
	return NewViewRegistry(
		[]string{
			"DASHBOARD",
			"TRANSACTIONS",
			"ANALYTICS",
			"REPORTS",
			"CONFIGURATION",
			"ACCOUNTS",
		},
		map[string]string{
			"HOME":        "DASHBOARD",
			"MAIN":        "DASHBOARD",
			"OVERVIEW":    "DASHBOARD",
			"CONFIG":      "CONFIGURATION",
			"SETTINGS":    "CONFIGURATION",
			"PREFERENCES": "CONFIGURATION",
			"HISTORY":     "TRANSACTIONS",
			"ACTIVITY":    "TRANSACTIONS",
			"PAYMENTS":    "TRANSACTIONS",
			"METRICS":     "ANALYTICS",
			"STATS":       "ANALYTICS",
			"REPORT":      "REPORTS",
		},
	)
}

type viewsFile struct {
	Views   []string          `yaml:"views"`
	Aliases map[string]string `yaml:"aliases"`
}

// LoadViewRegistry reads views and aliases from a YAML file. An empty path or
// a missing file yields the built-in defaults.
func LoadViewRegistry(path string) (*ViewRegistry, error) {
	if path == "" {
		return DefaultViewRegistry(), nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultViewRegistry(), nil
		}
		return nil, fmt.Errorf("failed to read views file %q: %w", path, err)
	}

	var parsed viewsFile
	if err := yaml.Unmarshal(contents, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse views file %q: %w", path, err)
	}
	if len(parsed.Views) == 0 {
		return DefaultViewRegistry(), nil
	}
	return NewViewRegistry(parsed.Views, parsed.Aliases), nil
}

// Resolve maps a spoken target phrase to a canonical view identifier.
func (r *ViewRegistry) Resolve(phrase string) (string, bool) {
	key := normalize.Text(phrase)
	if key == "" {
		return "", false
	}
	if view, ok := r.canonical[key]; ok {
		return view, true
	}
	if view, ok := r.aliases[key]; ok {
		return view, true
	}
	return "", false
}
