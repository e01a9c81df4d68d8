// Package window locates and activates the chat client's window and converts
// between window-relative and screen coordinates.
package window

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"

	"chat-ui-bridge/screenshot"
)

// ErrWindowNotFound indicates no window matched the configured title.
var ErrWindowNotFound = errors.New("chat window not found")

// Handle identifies one located chat window.
type Handle struct {
	pid   int
	title string
}

// Find locates the chat window by title and returns a handle to it.
func Find(title string) (*Handle, error) {
	ids, err := robotgo.FindIds(title)
	if err != nil {
		return nil, fmt.Errorf("window lookup for %q failed: %v", title, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: title %q", ErrWindowNotFound, title)
	}
	return &Handle{pid: ids[0], title: title}, nil
}

// Activate brings the window to the foreground.
func (h *Handle) Activate() error {
	if err := robotgo.ActivePid(h.pid); err != nil {
		return fmt.Errorf("failed to activate window %q: %v", h.title, err)
	}
	return nil
}

// Bounds returns the window's client area in screen coordinates.
func (h *Handle) Bounds() screenshot.Region {
	x, y, w, ht := robotgo.GetBounds(h.pid)
	return screenshot.Region{X: x, Y: y, Width: w, Height: ht}
}

// Capture grabs a screenshot of the window's client area.
func (h *Handle) Capture() (*image.RGBA, error) {
	b := h.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("window %q has empty bounds", h.title)
	}
	return screenshot.CaptureRegion(b)
}

// ValidateSize fails when the window is smaller than the given minimum,
// which would make landmark search regions meaningless.
func (h *Handle) ValidateSize(minWidth, minHeight int) error {
	b := h.Bounds()
	if b.Width < minWidth || b.Height < minHeight {
		return fmt.Errorf("window %q too small: %dx%d, need at least %dx%d",
			h.title, b.Width, b.Height, minWidth, minHeight)
	}
	return nil
}

// ToScreen converts window-relative logical coordinates to screen coordinates.
func (h *Handle) ToScreen(x, y int) (int, int) {
	b := h.Bounds()
	return b.X + x, b.Y + y
}

