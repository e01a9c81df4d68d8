package channel

import (
	"fmt"
	"image"
	"path/filepath"
	"testing"

	"chat-ui-bridge/fingerprint"
	"chat-ui-bridge/reader"
	"chat-ui-bridge/state"
)

// fakeDriver simulates the GUI: a per-contact list of visible messages
// (oldest first) rendered as avatar rows, plus a fingerprint that changes
// whenever the messages do.
type fakeDriver struct {
	current  string
	screens  map[string][]string
	sent     map[string][]string
	openErr  error
	copyErrs map[int]bool // failing avatar rows by index from the bottom
	switchTo string       // when set, the window jumps here after a copy
	redDot   bool         // unread badge on a list avatar
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		screens:  make(map[string][]string),
		sent:     make(map[string][]string),
		copyErrs: make(map[int]bool),
	}
}

func (d *fakeDriver) push(contact string, msgs ...string) {
	d.screens[contact] = append(d.screens[contact], msgs...)
}

func (d *fakeDriver) CurrentContact() (string, error) {
	if d.current == "" {
		return "", fmt.Errorf("no conversation open")
	}
	return d.current, nil
}

func (d *fakeDriver) OpenConversation(name string) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.current = name
	return nil
}

// ChatAvatars lays the visible messages out vertically, newest at the
// largest Y, encoding the message index in the Y coordinate.
func (d *fakeDriver) ChatAvatars(contact string) ([]image.Point, error) {
	msgs := d.screens[contact]
	pts := make([]image.Point, len(msgs))
	for i := range msgs {
		pts[i] = image.Point{X: 400, Y: 100 + i*60}
	}
	return pts, nil
}

func (d *fakeDriver) CopyTextAt(x, y int) (string, error) {
	i := (y - 100) / 60
	msgs := d.screens[d.current]
	if i < 0 || i >= len(msgs) {
		return "", fmt.Errorf("no bubble at (%d, %d)", x, y)
	}
	if d.copyErrs[i] {
		return "", fmt.Errorf("copy failed at row %d", i)
	}
	text := msgs[i]
	if d.switchTo != "" {
		d.current = d.switchTo
	}
	return text, nil
}

func (d *fakeDriver) CurrentFingerprint(contact string) (fingerprint.Fingerprint, error) {
	msgs := d.screens[contact]
	if len(msgs) == 0 {
		return fingerprint.Fingerprint{}, nil
	}
	// A synthetic hash derived from the page content, stable while the
	// page is stable.
	return fingerprint.Fingerprint{
		Hash:    reader.HashText(fmt.Sprint(msgs))[:16],
		AvatarY: 100 + (len(msgs)-1)*60,
	}, nil
}

func (d *fakeDriver) RedDotVisible() (bool, error) {
	return d.redDot, nil
}

func (d *fakeDriver) SendText(contact, text string) error {
	d.current = contact
	d.sent[contact] = append(d.sent[contact], text)
	return nil
}

func (d *fakeDriver) SendToCurrent(text string) error {
	d.sent[d.current] = append(d.sent[d.current], text)
	return nil
}

func (d *fakeDriver) SendFile(contact, path string) error {
	d.current = contact
	d.sent[contact] = append(d.sent[contact], "file:"+path)
	return nil
}

func newTestChannel(t *testing.T, d Driver) (*Channel, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	return New(d, state.Open(path), fingerprint.DefaultThreshold), path
}

func contents(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Content
	}
	return out
}

func TestFirstPollEstablishesAnchorOnly(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old one", "old two")
	ch, _ := newTestChannel(t, d)

	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("first poll delivered %v, want nothing", contents(events))
	}
	if got := ch.Anchor("alice"); got != reader.HashText("old two") {
		t.Errorf("anchor = %s, want the hash of the bottom message", got)
	}
}

func TestPollDeliversOnlyNewInOrder(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	d.push("alice", "first new", "second new")

	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	got := contents(events)
	if len(got) != 2 || got[0] != "first new" || got[1] != "second new" {
		t.Fatalf("delivered %v, want the two new messages oldest first", got)
	}
}

func TestPollExactlyOnceAcrossInvocations(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	path := filepath.Join(t.TempDir(), "state.json")

	first := New(d, state.Open(path), fingerprint.DefaultThreshold)
	if _, err := first.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	d.push("alice", "hello")

	// A fresh Channel over the same state file stands in for a new
	// process invocation.
	second := New(d, state.Open(path), fingerprint.DefaultThreshold)
	events, err := second.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Content != "hello" {
		t.Fatalf("delivered %v, want exactly [hello]", contents(events))
	}

	third := New(d, state.Open(path), fingerprint.DefaultThreshold)
	events, err = third.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("re-delivered %v after anchor advanced", contents(events))
	}
}

func TestPollFingerprintGateSkipsRead(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	// Nothing changed on screen; the gate must short-circuit before any
	// reading happens, even with copy errors armed everywhere.
	d.copyErrs[0] = true
	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("delivered %v from an unchanged screen", contents(events))
	}
}

func TestPollWithoutAnchorUpdateRedelivers(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	path := filepath.Join(t.TempDir(), "state.json")

	ch := New(d, state.Open(path), fingerprint.DefaultThreshold)
	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	d.push("alice", "hello")

	events, err := ch.Poll("alice", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("delivered %v, want [hello]", contents(events))
	}
	if got := ch.Anchor("alice"); got != reader.HashText("old") {
		t.Errorf("anchor moved to %s although update was off", got)
	}

	// The anchor did not advance, so once the screen changes again the
	// earlier message comes back along with the newer one.
	d.push("alice", "world")
	again := New(d, state.Open(path), fingerprint.DefaultThreshold)
	events, err = again.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	got := contents(events)
	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Errorf("redelivery after no-update poll gave %v, want [hello world]", got)
	}
}

func TestPollStaleAnchorDeliversFullPage(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	// The page scrolls: the anchor message is gone, replaced entirely.
	d.screens["alice"] = []string{"page two a", "page two b"}

	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	got := contents(events)
	if len(got) != 2 || got[0] != "page two a" || got[1] != "page two b" {
		t.Errorf("stale anchor delivered %v, want the full visible page", got)
	}
}

func TestPollDiscardsBatchOnContactSwitch(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	d.push("alice", "hello")
	anchorBefore := ch.Anchor("alice")

	// The user switches conversations while the read is in flight; the
	// post-read verification must throw the batch away.
	d.screens["bob"] = d.screens["alice"]
	d.switchTo = "bob"

	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("delivered %v although the contact changed mid-read", contents(events))
	}
	if ch.Anchor("alice") != anchorBefore {
		t.Error("anchor moved although nothing was delivered")
	}

	// Once the window is back on the target the message arrives normally.
	d.switchTo = ""
	d.current = "alice"
	events, err = ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Content != "hello" {
		t.Errorf("recovery poll delivered %v, want [hello]", contents(events))
	}
}

func TestAnchorInitFailureLatched(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	// Visible page exists but every bubble fails to copy, so no anchor
	// can be established.
	d.push("alice", "unreadable")
	d.copyErrs[0] = true
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	if ch.Anchor("alice") != "" {
		t.Fatal("no anchor should exist after failed init")
	}

	// Make the page readable again; the latch must still suppress
	// another init attempt until an explicit reset.
	d.copyErrs = map[int]bool{}
	if events, _ := ch.Poll("alice", true); len(events) != 0 {
		t.Errorf("latched contact delivered %v", contents(events))
	}
	if ch.Anchor("alice") != "" {
		t.Error("latched contact re-initialized its anchor")
	}

	if err := ch.ResetAnchor("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	if ch.Anchor("alice") == "" {
		t.Error("anchor init should succeed after reset")
	}
}

func TestContactIsolation(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "alice old")
	d.push("bob", "bob old")
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.Poll("bob", true); err != nil {
		t.Fatal(err)
	}
	d.push("alice", "for alice")

	events, err := ch.Poll("bob", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("bob received %v", contents(events))
	}
	events, err = ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Content != "for alice" {
		t.Errorf("alice received %v", contents(events))
	}
}

func TestSendRecordsSeenHash(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	if err := ch.Send("alice", "my reply"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := d.sent["alice"]; len(got) != 1 || got[0] != "my reply" {
		t.Fatalf("driver sent %v", got)
	}

	// The echo of our own message appears on screen; it must not come
	// back as incoming within this process.
	d.push("alice", "my reply")
	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("own message echoed back: %v", contents(events))
	}
}

func TestHasNewMessage(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	changed, err := ch.HasNewMessage("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("no baseline must read as changed")
	}

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	changed, err = ch.HasNewMessage("alice")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("unchanged screen reported as changed")
	}

	d.push("alice", "new")
	changed, err = ch.HasNewMessage("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("new content not detected")
	}
}

func TestHasNewMessageUnreadBadge(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "old")
	ch, _ := newTestChannel(t, d)

	// Baseline the fingerprint so only the badge can report anything.
	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	changed, err := ch.HasNewMessage("alice")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("unchanged screen without badge reported as changed")
	}

	d.redDot = true
	changed, err = ch.HasNewMessage("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("visible unread badge not reported")
	}
}

func TestClearAnchorKeepsBaseline(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "hello")
	ch, path := newTestChannel(t, d)

	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.Poll("alice", true); err != nil {
		t.Fatal(err)
	}
	if ch.Anchor("alice") == "" {
		t.Fatal("anchor not established")
	}

	if err := ch.ClearAnchor("alice"); err != nil {
		t.Fatal(err)
	}
	entry := state.Open(path).Get("alice")
	if entry.LastAnchorHash != "" {
		t.Error("anchor survived ClearAnchor")
	}
	if entry.Fingerprint.Hash == "" {
		t.Error("visual baseline lost, ClearAnchor must keep it")
	}

	// Unchanged screen: the kept baseline gates the poll, no re-anchoring.
	events, err := ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("unexpected delivery after clear: %v", events)
	}
	if ch.Anchor("alice") != "" {
		t.Error("anchor re-established without a screen change")
	}

	// New content re-anchors at the newest message without replaying
	// the page.
	d.push("alice", "world")
	events, err = ch.Poll("alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("anchor re-init must deliver nothing, got %v", events)
	}
	if got, want := ch.Anchor("alice"), reader.HashText("world"); got != want {
		t.Errorf("anchor = %q, want hash of newest message", got)
	}
}

func TestReadDirectNoGate(t *testing.T) {
	d := newFakeDriver()
	d.current = "alice"
	d.push("alice", "one", "two")
	ch, _ := newTestChannel(t, d)

	events, err := ch.ReadDirect("alice")
	if err != nil {
		t.Fatalf("ReadDirect: %v", err)
	}
	got := contents(events)
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("ReadDirect delivered %v, want the whole page oldest first", got)
	}
	// The anchor now points at the newest, so a second direct read is
	// empty.
	events, err = ch.ReadDirect("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("second ReadDirect delivered %v", contents(events))
	}
}
