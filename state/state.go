// Package state persists per-contact read progress between process
// invocations: the last delivered message anchor and the visual baseline of
// the message area. Everything lives in one JSON document so the two always
// update together.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"chat-ui-bridge/fingerprint"
)

// Entry is the persisted read state for one contact.
type Entry struct {
	LastAnchorHash string                  `json:"last_anchor_hash,omitempty"`
	Fingerprint    fingerprint.Fingerprint `json:"fingerprint"`
}

// Store reads and writes the state document. A missing or unreadable file
// behaves as an empty store; losing state degrades to re-reading a page,
// never to losing messages.
type Store struct {
	path string

	mu      sync.Mutex
	raw     map[string]json.RawMessage
	entries map[string]Entry
}

// Open loads the document at path. Corruption is logged and discarded
// rather than propagated.
func Open(path string) *Store {
	s := &Store{
		path:    path,
		raw:     make(map[string]json.RawMessage),
		entries: make(map[string]Entry),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("state: cannot read %s, starting empty: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.raw); err != nil {
		log.Printf("state: %s is corrupt, starting empty: %v", path, err)
		s.raw = make(map[string]json.RawMessage)
		return s
	}
	for contact, rawEntry := range s.raw {
		var e Entry
		if err := json.Unmarshal(rawEntry, &e); err != nil {
			log.Printf("state: entry for %q is corrupt, ignoring: %v", contact, err)
			continue
		}
		s.entries[contact] = e
	}
	return s
}

// Get returns the entry for a contact, zero when none exists.
func (s *Store) Get(contact string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[contact]
}

// Put replaces a contact's entry and writes the document to disk. The
// anchor and fingerprint land in the same write.
func (s *Store) Put(contact string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[contact] = e
	return s.save()
}

// ClearAnchor drops only the anchor for a contact, keeping the visual
// baseline.
func (s *Store) ClearAnchor(contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[contact]
	if !ok {
		return nil
	}
	e.LastAnchorHash = ""
	s.entries[contact] = e
	return s.save()
}

// Clear removes a contact's entry entirely.
func (s *Store) Clear(contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[contact]; !ok {
		if _, ok := s.raw[contact]; !ok {
			return nil
		}
	}
	delete(s.entries, contact)
	delete(s.raw, contact)
	return s.save()
}

// save writes the whole document atomically: temp file in the same
// directory, then rename. Entries unknown to this version of the code are
// carried through untouched.
func (s *Store) save() error {
	doc := make(map[string]json.RawMessage, len(s.raw)+len(s.entries))
	for contact, rawEntry := range s.raw {
		doc[contact] = rawEntry
	}
	for contact, e := range s.entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal state for %q: %v", contact, err)
		}
		doc[contact] = b
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state document: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %v", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %v", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %v", err)
	}
	return nil
}
