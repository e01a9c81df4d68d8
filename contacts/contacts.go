// Package contacts maps display names to stable contact identifiers and
// tracks which contacts the bridge is allowed to poll.
package contacts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Contact is one configured chat partner.
type Contact struct {
	Name    string `yaml:"name"`
	ID      string `yaml:"id,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

type fileFormat struct {
	Contacts []Contact `yaml:"contacts"`
	Me       string    `yaml:"me,omitempty"`
}

// Mapper resolves display names to contact ids and back.
type Mapper struct {
	byName map[string]Contact
	order  []string
	me     string
}

// Load reads the contacts YAML file. A missing file yields an empty mapper
// rather than an error so first runs work before any contact is configured.
func Load(path string) (*Mapper, error) {
	m := &Mapper{byName: make(map[string]Contact)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read contacts file %s: %v", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse contacts file %s: %v", path, err)
	}
	for _, c := range f.Contacts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		c.Name = name
		if _, dup := m.byName[name]; !dup {
			m.order = append(m.order, name)
		}
		m.byName[name] = c
	}
	m.me = strings.TrimSpace(f.Me)
	return m, nil
}

// ContactID returns the stable id for a display name, empty when unknown.
func (m *Mapper) ContactID(name string) string {
	return m.byName[strings.TrimSpace(name)].ID
}

// DisplayName resolves a contact id back to its display name.
func (m *Mapper) DisplayName(id string) (string, bool) {
	for _, name := range m.order {
		if m.byName[name].ID == id {
			return name, true
		}
	}
	return "", false
}

// All returns every configured display name in file order.
func (m *Mapper) All() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Enabled returns the display names of enabled contacts, excluding the
// configured "me" identity (our own avatar also appears in conversations).
func (m *Mapper) Enabled() []string {
	var out []string
	for _, name := range m.order {
		c := m.byName[name]
		if c.Enabled && name != m.me {
			out = append(out, name)
		}
	}
	return out
}

// IsEnabled reports whether polling is allowed for the contact.
func (m *Mapper) IsEnabled(name string) bool {
	return m.byName[strings.TrimSpace(name)].Enabled
}

// Me returns the configured display name of the account running the bridge.
func (m *Mapper) Me() string {
	return m.me
}
