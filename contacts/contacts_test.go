package contacts

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
me: MyBot
contacts:
  - name: Alice
    id: wx_alice_01
    enabled: true
  - name: Bob
    enabled: false
  - name: MyBot
    id: wx_me
    enabled: true
`

func writeContacts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndLookup(t *testing.T) {
	m, err := Load(writeContacts(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.ContactID("Alice"); got != "wx_alice_01" {
		t.Errorf("ContactID(Alice) = %q", got)
	}
	if got := m.ContactID("Bob"); got != "" {
		t.Errorf("ContactID(Bob) = %q, want empty", got)
	}
	if got := m.ContactID("Unknown"); got != "" {
		t.Errorf("ContactID(Unknown) = %q, want empty", got)
	}
	if name, ok := m.DisplayName("wx_alice_01"); !ok || name != "Alice" {
		t.Errorf("DisplayName(wx_alice_01) = %q, %v", name, ok)
	}
	if m.Me() != "MyBot" {
		t.Errorf("Me() = %q", m.Me())
	}
}

func TestEnabledExcludesMe(t *testing.T) {
	m, err := Load(writeContacts(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	enabled := m.Enabled()
	if len(enabled) != 1 || enabled[0] != "Alice" {
		t.Errorf("Enabled() = %v, want [Alice]", enabled)
	}
	if !m.IsEnabled("Alice") {
		t.Error("Alice should be enabled")
	}
	if m.IsEnabled("Bob") {
		t.Error("Bob should be disabled")
	}
}

func TestAllPreservesFileOrder(t *testing.T) {
	m, err := Load(writeContacts(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	all := m.All()
	want := []string{"Alice", "Bob", "MyBot"}
	if len(all) != len(want) {
		t.Fatalf("All() = %v", all)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestMissingFileIsEmptyMapper(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(m.All()) != 0 {
		t.Errorf("All() = %v, want empty", m.All())
	}
}

func TestMalformedFile(t *testing.T) {
	if _, err := Load(writeContacts(t, "contacts: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestNameTrimming(t *testing.T) {
	m, err := Load(writeContacts(t, "contacts:\n  - name: \"  Carol  \"\n    enabled: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsEnabled("Carol") {
		t.Error("trimmed lookup should find Carol")
	}
	if !m.IsEnabled("  Carol ") {
		t.Error("lookup should trim its argument")
	}
}
