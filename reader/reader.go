// Package reader walks the visible messages of an open conversation from
// the bottom up. It is a per-page cursor over avatar positions: each avatar
// marks one incoming message bubble whose text gets copied out.
package reader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"log"
	"sort"
	"strings"
)

// bubbleOffsetX is how far right of the avatar center the message bubble
// sits. Clicking there selects the bubble text.
const bubbleOffsetX = 65

// ErrNotReady means ReadNext was called before Reset.
var ErrNotReady = errors.New("reader: not positioned, call Reset first")

// ErrNoAvatars means Reset found nothing to read; either no conversation is
// open or the visible page has no incoming messages.
var ErrNoAvatars = errors.New("reader: no avatars on the visible page")

// Message is one extracted message. Hash identifies the message content for
// anchor comparison and dedup.
type Message struct {
	Content string
	Hash    string
	X, Y    int
	Index   int
}

// HashText is the canonical message identity: hex SHA-256 of the trimmed
// content. Anchors stored on disk use the same form.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Extractor copies the text of the bubble at a point, usually by
// double-clicking it and reading the clipboard.
type Extractor func(x, y int) (string, error)

// Reader reads one visible page. It never scrolls; a new screenshot means a
// new Reset.
type Reader struct {
	extract Extractor
	avatars []image.Point
	index   int
	ready   bool
}

func New(extract Extractor) *Reader {
	return &Reader{extract: extract}
}

// Reset positions the cursor at the bottom of a fresh page. Avatar points
// are accepted in any order and read newest first (largest Y first).
func (r *Reader) Reset(avatars []image.Point) error {
	if len(avatars) == 0 {
		r.ready = false
		return ErrNoAvatars
	}
	r.avatars = make([]image.Point, len(avatars))
	copy(r.avatars, avatars)
	sort.Slice(r.avatars, func(i, j int) bool { return r.avatars[i].Y > r.avatars[j].Y })
	r.index = 0
	r.ready = true
	log.Printf("reader: positioned at bottom, %d avatars on page", len(r.avatars))
	return nil
}

// ReadNext returns the next message moving up the page, or false when the
// page is exhausted. A bubble whose text cannot be copied is skipped; the
// cursor still advances, so the loop is bounded by the avatar count.
func (r *Reader) ReadNext() (Message, bool, error) {
	if !r.ready {
		return Message{}, false, ErrNotReady
	}
	for r.index < len(r.avatars) {
		i := r.index
		r.index++
		p := r.avatars[i]
		x, y := p.X+bubbleOffsetX, p.Y

		text, err := r.extract(x, y)
		if err != nil {
			log.Printf("reader: bubble %d at (%d, %d) failed, skipping: %v", i, x, y, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			log.Printf("reader: bubble %d at (%d, %d) empty, skipping", i, x, y)
			continue
		}
		return Message{Content: text, Hash: HashText(text), X: x, Y: y, Index: i}, true, nil
	}
	return Message{}, false, nil
}

// ReadUntil reads upward until the anchor message or the top of the page.
// The anchor itself is excluded; it was delivered on a previous run.
// Messages come back newest first. An empty anchor reads the whole page.
func (r *Reader) ReadUntil(anchorHash string) ([]Message, error) {
	var out []Message
	for {
		msg, ok, err := r.ReadNext()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		if anchorHash != "" && msg.Hash == anchorHash {
			log.Printf("reader: reached anchor after %d messages", len(out))
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

// Remaining reports how many avatars the cursor has not visited yet.
func (r *Reader) Remaining() int {
	if !r.ready {
		return 0
	}
	return len(r.avatars) - r.index
}
