// Package channel is the message transport: it turns the pixel-level
// machinery underneath into a poll/send API with exactly-once, in-order
// delivery per contact. Progress is tracked with a message anchor, the
// hash of the newest message already delivered, persisted together with a
// visual fingerprint of the message area.
package channel

import (
	"fmt"
	"image"
	"log"
	"strings"
	"time"

	"chat-ui-bridge/fingerprint"
	"chat-ui-bridge/reader"
	"chat-ui-bridge/state"
)

// Driver is what the channel needs from the GUI layer. The controller
// implements it; tests supply fakes.
type Driver interface {
	CurrentContact() (string, error)
	OpenConversation(name string) error
	ChatAvatars(contact string) ([]image.Point, error)
	CopyTextAt(x, y int) (string, error)
	CurrentFingerprint(contact string) (fingerprint.Fingerprint, error)
	RedDotVisible() (bool, error)
	SendText(contact, text string) error
	SendToCurrent(text string) error
	SendFile(contact, path string) error
}

// Event is one received message, oldest first in returned slices.
type Event struct {
	Contact   string
	Content   string
	Hash      string
	Timestamp time.Time
}

// Channel coordinates reads and sends for any number of contacts. The seen
// set dedupes within one process only; cross-invocation dedup rests on the
// persisted anchor alone.
type Channel struct {
	drv       Driver
	store     *state.Store
	threshold int

	seen           map[string]map[string]struct{}
	anchorInitDown map[string]struct{}
}

func New(drv Driver, store *state.Store, hashThreshold int) *Channel {
	return &Channel{
		drv:            drv,
		store:          store,
		threshold:      hashThreshold,
		seen:           make(map[string]map[string]struct{}),
		anchorInitDown: make(map[string]struct{}),
	}
}

// Poll reads new messages from a contact. The fingerprint gates the
// expensive path: an unchanged message area returns immediately. The first
// poll for a contact only establishes the anchor and returns nothing.
// updateAnchor=false reads without moving the anchor, so the same messages
// come back next time.
func (ch *Channel) Poll(contact string, updateAnchor bool) ([]Event, error) {
	contact = strings.TrimSpace(contact)
	entry := ch.store.Get(contact)

	current, err := ch.drv.CurrentFingerprint(contact)
	if err != nil {
		return nil, fmt.Errorf("poll %q: %v", contact, err)
	}
	if !fingerprint.Changed(entry.Fingerprint, current, ch.threshold) {
		log.Printf("channel: %q unchanged, skipping read", contact)
		return nil, nil
	}

	if err := ch.ensureOpen(contact); err != nil {
		return nil, fmt.Errorf("poll %q: %v", contact, err)
	}

	// The window may have been parked on another contact; switching back
	// repaints the area without any new content. Re-check against the
	// baseline after the switch.
	current, err = ch.drv.CurrentFingerprint(contact)
	if err != nil {
		return nil, fmt.Errorf("poll %q: %v", contact, err)
	}
	if !fingerprint.Changed(entry.Fingerprint, current, ch.threshold) {
		log.Printf("channel: %q unchanged after switch, skipping read", contact)
		return nil, nil
	}

	if entry.LastAnchorHash == "" {
		return nil, ch.initAnchor(contact)
	}

	raw, err := ch.readSnapshot(contact, entry.LastAnchorHash)
	if err != nil {
		return nil, fmt.Errorf("poll %q: %v", contact, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// The read took time; if the user switched conversations mid-read the
	// extracted text belongs to someone else. Discard without touching the
	// anchor, the next poll retries cleanly.
	if now, err := ch.drv.CurrentContact(); err != nil || strings.TrimSpace(now) != contact {
		log.Printf("channel: conversation changed during read of %q, discarding batch", contact)
		return nil, nil
	}

	events := ch.filterNew(contact, raw, entry.LastAnchorHash)
	if len(events) > 0 && updateAnchor {
		entry.LastAnchorHash = events[0].Hash
		ch.markSeen(contact, events)
	}
	entry.Fingerprint = ch.freshFingerprint(contact, current)
	if err := ch.store.Put(contact, entry); err != nil {
		return nil, fmt.Errorf("poll %q: persist state: %v", contact, err)
	}

	reverse(events)
	log.Printf("channel: poll %q delivered %d messages", contact, len(events))
	return events, nil
}

// ReadDirect reads the visible page without the fingerprint gate, still
// stopping at the anchor. The caller must have the conversation open.
func (ch *Channel) ReadDirect(contact string) ([]Event, error) {
	contact = strings.TrimSpace(contact)
	entry := ch.store.Get(contact)

	raw, err := ch.readSnapshot(contact, entry.LastAnchorHash)
	if err != nil {
		return nil, fmt.Errorf("read %q: %v", contact, err)
	}
	events := ch.filterNew(contact, raw, entry.LastAnchorHash)
	if len(events) > 0 {
		entry.LastAnchorHash = events[0].Hash
		ch.markSeen(contact, events)
	}
	entry.Fingerprint = ch.freshFingerprint(contact, entry.Fingerprint)
	if err := ch.store.Put(contact, entry); err != nil {
		return nil, fmt.Errorf("read %q: persist state: %v", contact, err)
	}
	reverse(events)
	return events, nil
}

// Send delivers text to a contact and folds the sent message into the seen
// set so an echo on screen is not read back as incoming.
func (ch *Channel) Send(contact, text string) error {
	contact = strings.TrimSpace(contact)
	if err := ch.drv.SendText(contact, text); err != nil {
		return err
	}
	ch.markSeenHash(contact, reader.HashText(text))
	ch.refreshFingerprint(contact)
	return nil
}

// SendToCurrent delivers text to whatever conversation is open, without
// anchor or fingerprint bookkeeping for any particular contact.
func (ch *Channel) SendToCurrent(text string) error {
	return ch.drv.SendToCurrent(text)
}

// SendFile delivers an image file to a contact.
func (ch *Channel) SendFile(contact, path string) error {
	contact = strings.TrimSpace(contact)
	if err := ch.drv.SendFile(contact, path); err != nil {
		return err
	}
	ch.refreshFingerprint(contact)
	return nil
}

// ResetAnchor forgets everything about a contact: anchor, fingerprint,
// seen set, and the anchor-init failure latch. The next poll starts from
// scratch.
func (ch *Channel) ResetAnchor(contact string) error {
	contact = strings.TrimSpace(contact)
	delete(ch.seen, contact)
	delete(ch.anchorInitDown, contact)
	log.Printf("channel: reset anchor for %q", contact)
	return ch.store.Clear(contact)
}

// ClearAnchor forgets a contact's anchor but keeps the visual baseline.
// The next screen change re-anchors at the then-newest message instead of
// redelivering everything visible.
func (ch *Channel) ClearAnchor(contact string) error {
	contact = strings.TrimSpace(contact)
	delete(ch.seen, contact)
	delete(ch.anchorInitDown, contact)
	log.Printf("channel: cleared anchor for %q, baseline kept", contact)
	return ch.store.ClearAnchor(contact)
}

// Anchor returns the persisted anchor hash for a contact, empty when none.
func (ch *Channel) Anchor(contact string) string {
	return ch.store.Get(strings.TrimSpace(contact)).LastAnchorHash
}

// HasNewMessage reports whether a contact has something unread, without
// reading anything. The unread badge on the list avatar is checked first;
// when no badge is visible the message area is compared against the last
// persisted baseline.
func (ch *Channel) HasNewMessage(contact string) (bool, error) {
	contact = strings.TrimSpace(contact)
	badge, err := ch.drv.RedDotVisible()
	if err != nil {
		log.Printf("channel: red dot check failed: %v", err)
	} else if badge {
		return true, nil
	}
	current, err := ch.drv.CurrentFingerprint(contact)
	if err != nil {
		return false, err
	}
	return fingerprint.Changed(ch.store.Get(contact).Fingerprint, current, ch.threshold), nil
}

// Open switches the window to a contact's conversation without reading.
func (ch *Channel) Open(contact string) error {
	return ch.drv.OpenConversation(strings.TrimSpace(contact))
}

// CurrentContact exposes the OCR'd name of the open conversation.
func (ch *Channel) CurrentContact() (string, error) {
	return ch.drv.CurrentContact()
}

// UpdateFingerprint rebaselines the visual state of a contact to what is
// on screen right now, leaving the anchor alone.
func (ch *Channel) UpdateFingerprint(contact string) error {
	contact = strings.TrimSpace(contact)
	current, err := ch.drv.CurrentFingerprint(contact)
	if err != nil {
		return err
	}
	entry := ch.store.Get(contact)
	entry.Fingerprint = current
	return ch.store.Put(contact, entry)
}

// ensureOpen verifies the target conversation is on screen, switching to
// it when it is not.
func (ch *Channel) ensureOpen(contact string) error {
	now, err := ch.drv.CurrentContact()
	if err == nil && strings.TrimSpace(now) == contact {
		return nil
	}
	return ch.drv.OpenConversation(contact)
}

// initAnchor records the bottom visible message as the starting point. The
// batch before the anchor existed is never delivered; history is the
// caller's business, not the transport's. A failed init is latched so
// repeated polls do not hammer a broken UI; ResetAnchor clears the latch.
func (ch *Channel) initAnchor(contact string) error {
	if _, down := ch.anchorInitDown[contact]; down {
		log.Printf("channel: anchor init for %q failed earlier, waiting for reset", contact)
		return nil
	}
	r, err := ch.newReader(contact)
	if err != nil {
		ch.anchorInitDown[contact] = struct{}{}
		log.Printf("channel: anchor init for %q failed: %v", contact, err)
		return nil
	}
	msg, ok, err := r.ReadNext()
	if err != nil || !ok {
		ch.anchorInitDown[contact] = struct{}{}
		log.Printf("channel: anchor init for %q found no readable message", contact)
		return nil
	}
	entry := state.Entry{LastAnchorHash: msg.Hash}
	entry.Fingerprint = ch.freshFingerprint(contact, fingerprint.Fingerprint{})
	if err := ch.store.Put(contact, entry); err != nil {
		return fmt.Errorf("persist anchor for %q: %v", contact, err)
	}
	log.Printf("channel: anchor for %q initialized to %.16s", contact, msg.Hash)
	return nil
}

// readSnapshot reads the visible page bottom-up until the anchor. A stale
// anchor that no longer appears on the page yields the whole page; the
// seen set and the caller's own dedup bound the damage to one re-delivery.
func (ch *Channel) readSnapshot(contact, anchorHash string) ([]reader.Message, error) {
	r, err := ch.newReader(contact)
	if err != nil {
		return nil, err
	}
	return r.ReadUntil(anchorHash)
}

func (ch *Channel) newReader(contact string) (*reader.Reader, error) {
	avatars, err := ch.drv.ChatAvatars(contact)
	if err != nil {
		return nil, err
	}
	r := reader.New(ch.drv.CopyTextAt)
	if err := r.Reset(avatars); err != nil {
		return nil, err
	}
	return r, nil
}

// filterNew drops the anchor itself and anything already seen this
// process. Messages stay newest first here; Poll reverses before return.
func (ch *Channel) filterNew(contact string, raw []reader.Message, anchorHash string) []Event {
	seen := ch.seen[contact]
	now := time.Now().UTC()
	var events []Event
	for _, m := range raw {
		if anchorHash != "" && m.Hash == anchorHash {
			continue
		}
		if _, dup := seen[m.Hash]; dup {
			continue
		}
		events = append(events, Event{Contact: contact, Content: m.Content, Hash: m.Hash, Timestamp: now})
	}
	return events
}

func (ch *Channel) markSeen(contact string, events []Event) {
	for _, e := range events {
		ch.markSeenHash(contact, e.Hash)
	}
}

func (ch *Channel) markSeenHash(contact, hash string) {
	if ch.seen[contact] == nil {
		ch.seen[contact] = make(map[string]struct{})
	}
	ch.seen[contact][hash] = struct{}{}
}

// freshFingerprint re-captures the area after a read; on failure the
// previous value is kept so the baseline never silently goes empty.
func (ch *Channel) freshFingerprint(contact string, fallback fingerprint.Fingerprint) fingerprint.Fingerprint {
	fp, err := ch.drv.CurrentFingerprint(contact)
	if err != nil || fp.Empty() {
		return fallback
	}
	return fp
}

// refreshFingerprint rebaselines after a send so our own outgoing message
// does not read as a change on the next poll.
func (ch *Channel) refreshFingerprint(contact string) {
	fp, err := ch.drv.CurrentFingerprint(contact)
	if err != nil || fp.Empty() {
		return
	}
	entry := ch.store.Get(contact)
	entry.Fingerprint = fp
	if err := ch.store.Put(contact, entry); err != nil {
		log.Printf("channel: update fingerprint for %q failed: %v", contact, err)
	}
}

func reverse(events []Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
