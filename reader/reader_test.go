package reader

import (
	"fmt"
	"image"
	"testing"
)

// extractorFor maps bubble click points back to canned texts. The bubble x
// is the avatar x shifted right, so keys use the avatar position.
func extractorFor(texts map[image.Point]string) Extractor {
	return func(x, y int) (string, error) {
		text, ok := texts[image.Point{X: x - bubbleOffsetX, Y: y}]
		if !ok {
			return "", fmt.Errorf("nothing at (%d, %d)", x, y)
		}
		return text, nil
	}
}

func TestReadNextBottomUp(t *testing.T) {
	avatars := []image.Point{
		{X: 400, Y: 200},
		{X: 400, Y: 500},
		{X: 400, Y: 350},
	}
	r := New(extractorFor(map[image.Point]string{
		{X: 400, Y: 500}: "newest",
		{X: 400, Y: 350}: "middle",
		{X: 400, Y: 200}: "oldest",
	}))
	if err := r.Reset(avatars); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	var got []string
	for {
		msg, ok, err := r.ReadNext()
		if err != nil {
			t.Fatalf("ReadNext: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, msg.Content)
	}
	want := []string{"newest", "middle", "oldest"}
	if len(got) != len(want) {
		t.Fatalf("read %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadNextSkipsUnreadableBubbles(t *testing.T) {
	avatars := []image.Point{
		{X: 400, Y: 500},
		{X: 400, Y: 400}, // no text here
		{X: 400, Y: 300}, // whitespace only
		{X: 400, Y: 200},
	}
	r := New(extractorFor(map[image.Point]string{
		{X: 400, Y: 500}: "bottom",
		{X: 400, Y: 300}: "   ",
		{X: 400, Y: 200}: "top",
	}))
	if err := r.Reset(avatars); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	msg, ok, _ := r.ReadNext()
	if !ok || msg.Content != "bottom" {
		t.Fatalf("first read = %+v", msg)
	}
	msg, ok, _ = r.ReadNext()
	if !ok || msg.Content != "top" {
		t.Fatalf("second read should skip two bad bubbles, got %+v", msg)
	}
	if _, ok, _ := r.ReadNext(); ok {
		t.Error("expected exhaustion after the last avatar")
	}
}

func TestReadNextBeforeReset(t *testing.T) {
	r := New(extractorFor(nil))
	if _, _, err := r.ReadNext(); err != ErrNotReady {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestResetNoAvatars(t *testing.T) {
	r := New(extractorFor(nil))
	if err := r.Reset(nil); err != ErrNoAvatars {
		t.Errorf("err = %v, want ErrNoAvatars", err)
	}
}

func TestReadUntilStopsAtAnchorExclusive(t *testing.T) {
	avatars := []image.Point{
		{X: 400, Y: 500},
		{X: 400, Y: 400},
		{X: 400, Y: 300},
	}
	r := New(extractorFor(map[image.Point]string{
		{X: 400, Y: 500}: "c",
		{X: 400, Y: 400}: "b",
		{X: 400, Y: 300}: "a",
	}))
	if err := r.Reset(avatars); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	msgs, err := r.ReadUntil(HashText("b"))
	if err != nil {
		t.Fatalf("ReadUntil: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "c" {
		t.Fatalf("msgs = %+v, want only the message below the anchor", msgs)
	}
	// The anchor itself was consumed by the stop, not returned.
	if r.Remaining() != 1 {
		t.Errorf("remaining = %d, want 1 above the anchor", r.Remaining())
	}
}

func TestReadUntilEmptyAnchorReadsWholePage(t *testing.T) {
	avatars := []image.Point{{X: 400, Y: 500}, {X: 400, Y: 300}}
	r := New(extractorFor(map[image.Point]string{
		{X: 400, Y: 500}: "two",
		{X: 400, Y: 300}: "one",
	}))
	if err := r.Reset(avatars); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	msgs, err := r.ReadUntil("")
	if err != nil {
		t.Fatalf("ReadUntil: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "one" {
		t.Errorf("msgs = %+v, want the whole page newest first", msgs)
	}
}

func TestReadUntilStaleAnchor(t *testing.T) {
	avatars := []image.Point{{X: 400, Y: 500}, {X: 400, Y: 300}}
	r := New(extractorFor(map[image.Point]string{
		{X: 400, Y: 500}: "two",
		{X: 400, Y: 300}: "one",
	}))
	if err := r.Reset(avatars); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	msgs, err := r.ReadUntil(HashText("scrolled away long ago"))
	if err != nil {
		t.Fatalf("ReadUntil: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("stale anchor should yield the full page, got %d messages", len(msgs))
	}
}

func TestHashText(t *testing.T) {
	if HashText("hello") != HashText("  hello  \n") {
		t.Error("hash must ignore surrounding whitespace")
	}
	if HashText("hello") == HashText("hello!") {
		t.Error("different content must hash differently")
	}
	if len(HashText("x")) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(HashText("x")))
	}
}
