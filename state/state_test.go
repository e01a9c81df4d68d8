package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"chat-ui-bridge/fingerprint"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func TestRoundTrip(t *testing.T) {
	path := tempStorePath(t)
	s := Open(path)
	entry := Entry{
		LastAnchorHash: "abc123",
		Fingerprint:    fingerprint.Fingerprint{Hash: "00ff00ff00ff00ff", AvatarY: 540},
	}
	if err := s.Put("alice", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened := Open(path)
	got := reopened.Get("alice")
	if got != entry {
		t.Errorf("got %+v, want %+v", got, entry)
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "never-written.json"))
	if e := s.Get("anyone"); e != (Entry{}) {
		t.Errorf("expected zero entry, got %+v", e)
	}
}

func TestCorruptFileIsEmpty(t *testing.T) {
	path := tempStorePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(path)
	if e := s.Get("alice"); e != (Entry{}) {
		t.Errorf("expected zero entry from corrupt file, got %+v", e)
	}
	// The store must still be writable afterwards.
	if err := s.Put("alice", Entry{LastAnchorHash: "h"}); err != nil {
		t.Fatalf("Put after corrupt load: %v", err)
	}
	if Open(path).Get("alice").LastAnchorHash != "h" {
		t.Error("write after corrupt load did not persist")
	}
}

func TestContactsIndependent(t *testing.T) {
	path := tempStorePath(t)
	s := Open(path)
	if err := s.Put("alice", Entry{LastAnchorHash: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("bob", Entry{LastAnchorHash: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear("alice"); err != nil {
		t.Fatal(err)
	}
	reopened := Open(path)
	if reopened.Get("alice").LastAnchorHash != "" {
		t.Error("alice should be cleared")
	}
	if reopened.Get("bob").LastAnchorHash != "b" {
		t.Error("clearing alice must not touch bob")
	}
}

func TestClearAnchorKeepsFingerprint(t *testing.T) {
	s := Open(tempStorePath(t))
	fp := fingerprint.Fingerprint{Hash: "1111222233334444", AvatarY: 300}
	if err := s.Put("alice", Entry{LastAnchorHash: "a", Fingerprint: fp}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearAnchor("alice"); err != nil {
		t.Fatal(err)
	}
	got := s.Get("alice")
	if got.LastAnchorHash != "" {
		t.Error("anchor should be gone")
	}
	if got.Fingerprint != fp {
		t.Errorf("fingerprint = %+v, want untouched %+v", got.Fingerprint, fp)
	}
}

func TestUnknownContactsSurviveRewrite(t *testing.T) {
	path := tempStorePath(t)
	doc := map[string]json.RawMessage{
		"written-by-newer-version": json.RawMessage(`{"future_field": 42}`),
	}
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(path)
	if err := s.Put("alice", Entry{LastAnchorHash: "a"}); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["written-by-newer-version"]; !ok {
		t.Error("unknown entry dropped on rewrite")
	}
	if _, ok := got["alice"]; !ok {
		t.Error("new entry missing")
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "state.json"))
	if err := s.Put("alice", Entry{LastAnchorHash: "a"}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want only state.json", names)
	}
}
