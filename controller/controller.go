// Package controller drives the chat window: it finds and activates the
// window, runs locate passes over screenshots, opens conversations, copies
// message text out, and pastes outgoing messages in. Everything above it
// works in terms of contacts and messages; everything below it works in
// terms of pixels and clicks.
package controller

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"strings"
	"time"

	"chat-ui-bridge/clipboard"
	"chat-ui-bridge/config"
	"chat-ui-bridge/contacts"
	"chat-ui-bridge/fingerprint"
	"chat-ui-bridge/input"
	"chat-ui-bridge/locator"
	"chat-ui-bridge/ocr"
	"chat-ui-bridge/screenshot"
	"chat-ui-bridge/window"
)

const (
	nameOCRRetries = 3
	copyRetries    = 2
)

// Frame is one captured window image together with its locate pass.
type Frame struct {
	Image image.Image
	Pass  *locator.PassResult
}

// Controller is stateless across invocations apart from the cached window
// handle; all durable state lives in the state store.
type Controller struct {
	cfg      *config.Config
	loc      *locator.Locator
	contacts *contacts.Mapper
	win      *window.Handle
}

func New(cfg *config.Config, loc *locator.Locator, mapper *contacts.Mapper) *Controller {
	return &Controller{cfg: cfg, loc: loc, contacts: mapper}
}

// ensureWindow finds, activates and size-checks the chat window. The
// handle is cached; a vanished window is re-found on the next call.
func (c *Controller) ensureWindow() error {
	if c.win == nil {
		h, err := window.Find(c.cfg.WindowTitle)
		if err != nil {
			return err
		}
		c.win = h
	}
	if err := c.win.Activate(); err != nil {
		c.win = nil
		return fmt.Errorf("activate window: %v", err)
	}
	input.HumanDelay(200*time.Millisecond, 300*time.Millisecond)
	if err := c.win.ValidateSize(c.cfg.MinWindowW, c.cfg.MinWindowH); err != nil {
		return err
	}
	return nil
}

// CaptureFrame grabs the window and runs one locate pass over it.
func (c *Controller) CaptureFrame() (*Frame, error) {
	if err := c.ensureWindow(); err != nil {
		return nil, err
	}
	img, err := c.win.Capture()
	if err != nil {
		return nil, fmt.Errorf("capture window: %v", err)
	}
	return &Frame{Image: img, Pass: c.loc.Locate(img)}, nil
}

// CurrentContact reads the name in the conversation header via OCR. A
// freshly restored window can capture mid-repaint, so empty results are
// retried with a new screenshot.
func (c *Controller) CurrentContact() (string, error) {
	var lastErr error
	for attempt := 0; attempt < nameOCRRetries; attempt++ {
		if attempt > 0 {
			input.HumanDelay(300*time.Millisecond, 500*time.Millisecond)
		}
		frame, err := c.CaptureFrame()
		if err != nil {
			lastErr = err
			continue
		}
		region, ok := locator.ConversationNameRegion(frame.Pass.Landmarks)
		if !ok {
			lastErr = fmt.Errorf("no conversation open")
			continue
		}
		name, err := ocr.Recognize(frame.Image, region)
		if err != nil {
			lastErr = err
			continue
		}
		name = strings.TrimSpace(name)
		if name != "" {
			return name, nil
		}
		lastErr = fmt.Errorf("empty OCR result")
	}
	return "", fmt.Errorf("read conversation name: %v", lastErr)
}

// OpenConversation switches the window to the named contact. Already open
// is a no-op. Otherwise the list avatar is clicked when one is visible,
// with the search bar as fallback, and the result is verified by OCR.
func (c *Controller) OpenConversation(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty contact name")
	}
	if current, err := c.CurrentContact(); err == nil && current == name {
		log.Printf("controller: conversation %q already open", name)
		return nil
	}

	frame, err := c.CaptureFrame()
	if err != nil {
		return err
	}

	if clicked := c.clickListAvatar(frame, name); !clicked {
		if err := c.openViaSearch(frame, name); err != nil {
			return err
		}
	}
	input.HumanDelay(400*time.Millisecond, 600*time.Millisecond)

	current, err := c.CurrentContact()
	if err != nil {
		return fmt.Errorf("open %q: %v", name, err)
	}
	if current != name {
		return fmt.Errorf("open %q: window shows %q", name, current)
	}
	return nil
}

// clickListAvatar clicks the contact-specific avatar in the list band when
// its template matches, reporting whether a click happened.
func (c *Controller) clickListAvatar(frame *Frame, name string) bool {
	path := c.cfg.ContactAvatarPath(name, c.contacts.ContactID(name))
	if path == "" {
		return false
	}
	region, ok := locator.ListAreaRegion(frame.Pass.Landmarks, frame.Pass.FrameH)
	if !ok {
		return false
	}
	matches, err := c.loc.MatchAvatarTemplate(frame.Image, path, region)
	if err != nil || len(matches) == 0 {
		return false
	}
	c.clickAt(matches[0].X, matches[0].Y)
	log.Printf("controller: clicked list avatar for %q", name)
	return true
}

// openViaSearch types the contact name into the search bar and confirms
// the first result with enter.
func (c *Controller) openViaSearch(frame *Frame, name string) error {
	search := frame.Pass.Landmarks.Get(locator.SearchBar)
	if !search.OK {
		return fmt.Errorf("open %q: no list avatar and no search bar", name)
	}
	c.clickAt(search.X, search.Y)
	input.HumanDelay(200*time.Millisecond, 300*time.Millisecond)
	if err := clipboard.Write(name); err != nil {
		return fmt.Errorf("search %q: %v", name, err)
	}
	if err := input.PressCombo("v", "ctrl"); err != nil {
		return err
	}
	input.HumanDelay(600*time.Millisecond, 900*time.Millisecond)
	if err := input.PressCombo("enter"); err != nil {
		return err
	}
	log.Printf("controller: opened %q via search", name)
	return nil
}

// CopyTextAt double-clicks a message bubble and reads the selection from
// the clipboard. The clipboard is compared before and after; an unchanged
// or empty clipboard means the copy did not take and is retried.
func (c *Controller) CopyTextAt(x, y int) (string, error) {
	before := clipboard.Read()
	for attempt := 0; attempt <= copyRetries; attempt++ {
		sx, sy := c.win.ToScreen(x, y)
		input.DoubleClick(sx, sy)
		input.HumanDelay(80*time.Millisecond, 150*time.Millisecond)
		if err := input.PressCombo("c", "ctrl"); err != nil {
			return "", err
		}
		input.HumanDelay(50*time.Millisecond, 200*time.Millisecond)
		after := clipboard.Read()
		if after != "" && after != before {
			return after, nil
		}
	}
	return "", fmt.Errorf("clipboard unchanged after copy at (%d, %d)", x, y)
}

// SendText opens the conversation and pastes the text into the input box.
// Paste instead of keystrokes keeps non-ASCII content intact.
func (c *Controller) SendText(contact, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty message")
	}
	if err := c.OpenConversation(contact); err != nil {
		return err
	}
	return c.SendToCurrent(text)
}

// SendToCurrent pastes text into whatever conversation is open now.
func (c *Controller) SendToCurrent(text string) error {
	frame, err := c.CaptureFrame()
	if err != nil {
		return err
	}
	anchor := frame.Pass.Landmarks.Get(locator.InputBoxAnchor)
	if !anchor.OK {
		return fmt.Errorf("no input box visible")
	}
	c.clickAt(anchor.X, anchor.Y)
	input.HumanDelay(150*time.Millisecond, 250*time.Millisecond)
	if err := clipboard.Write(text); err != nil {
		return fmt.Errorf("clipboard: %v", err)
	}
	if err := input.PressCombo("v", "ctrl"); err != nil {
		return err
	}
	input.HumanDelay(200*time.Millisecond, 350*time.Millisecond)
	return c.pressSend(frame)
}

// SendFile opens the conversation and pastes an image file into the input
// box. Only raster images can travel through the clipboard this way.
func (c *Controller) SendFile(contact, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %v", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s is not a decodable image: %v", path, err)
	}
	png, err := screenshot.EncodePNG(img)
	if err != nil {
		return err
	}
	if err := c.OpenConversation(contact); err != nil {
		return err
	}
	frame, err := c.CaptureFrame()
	if err != nil {
		return err
	}
	anchor := frame.Pass.Landmarks.Get(locator.InputBoxAnchor)
	if !anchor.OK {
		return fmt.Errorf("no input box visible")
	}
	c.clickAt(anchor.X, anchor.Y)
	input.HumanDelay(150*time.Millisecond, 250*time.Millisecond)
	if err := clipboard.WriteImage(png); err != nil {
		return fmt.Errorf("clipboard: %v", err)
	}
	if err := input.PressCombo("v", "ctrl"); err != nil {
		return err
	}
	input.HumanDelay(500*time.Millisecond, 800*time.Millisecond)
	return c.pressSend(frame)
}

// pressSend clicks the send button when located, otherwise falls back to
// the enter key.
func (c *Controller) pressSend(frame *Frame) error {
	if send := frame.Pass.Landmarks.Get(locator.SendButton); send.OK {
		c.clickAt(send.X, send.Y)
		return nil
	}
	return input.PressCombo("enter")
}

func (c *Controller) clickAt(x, y int) {
	sx, sy := c.win.ToScreen(x, y)
	input.Click(sx, sy)
	input.HumanDelay(100*time.Millisecond, 200*time.Millisecond)
}

// ChatAvatars returns the avatar centers of incoming messages on the
// visible page, preferring the contact's own avatar template inside the
// message area and falling back to the classified generic matches.
func (c *Controller) ChatAvatars(contact string) ([]image.Point, error) {
	frame, err := c.CaptureFrame()
	if err != nil {
		return nil, err
	}
	return c.chatAvatarsFromFrame(frame, contact), nil
}

func (c *Controller) chatAvatarsFromFrame(frame *Frame, contact string) []image.Point {
	if path := c.cfg.ContactAvatarPath(contact, c.contacts.ContactID(contact)); path != "" {
		if region, ok := locator.MessageAreaRegion(frame.Pass.Landmarks, frame.Pass.FrameW); ok {
			matches, err := c.loc.MatchAvatarTemplate(frame.Image, path, region)
			if err == nil && len(matches) > 0 {
				pts := make([]image.Point, len(matches))
				for i, m := range matches {
					pts[i] = image.Point{X: m.X, Y: m.Y}
				}
				log.Printf("controller: %d avatars for %q via contact template", len(pts), contact)
				return pts
			}
		}
	}
	pts := make([]image.Point, len(frame.Pass.Avatars.InChat))
	for i, m := range frame.Pass.Avatars.InChat {
		pts[i] = image.Point{X: m.X, Y: m.Y}
	}
	return pts
}

// CurrentFingerprint hashes the visible message area. Returns an empty
// fingerprint without error when no conversation is open.
func (c *Controller) CurrentFingerprint(contact string) (fingerprint.Fingerprint, error) {
	frame, err := c.CaptureFrame()
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	return c.fingerprintFromFrame(frame, contact), nil
}

func (c *Controller) fingerprintFromFrame(frame *Frame, contact string) fingerprint.Fingerprint {
	region, ok := locator.MessageAreaRegion(frame.Pass.Landmarks, frame.Pass.FrameW)
	if !ok {
		return fingerprint.Fingerprint{}
	}
	fp := fingerprint.Fingerprint{Hash: fingerprint.Hash(screenshot.Crop(frame.Image, region))}
	for _, p := range c.chatAvatarsFromFrame(frame, contact) {
		if p.Y > fp.AvatarY {
			fp.AvatarY = p.Y
		}
	}
	return fp
}
