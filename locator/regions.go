package locator

import (
	"chat-ui-bridge/screenshot"
)

// nameRegionExpandY pads the bottom of the conversation-name region so OCR
// does not clip descenders.
const nameRegionExpandY = 10

// ConversationNameRegion is the header area holding the open contact's name.
// It needs the sticker icon (proof a conversation is open) and the toolbar
// chat icon; the pin icon tightens the top edge when present.
func ConversationNameRegion(t Table) (screenshot.Region, bool) {
	sticker := t.Get(StickerIcon)
	chatIcon := t.Get(ToolbarChatIcon)
	if !sticker.OK || !chatIcon.OK {
		return screenshot.Region{}, false
	}

	chatSize := ElementSize(ToolbarChatIcon)
	var top int
	if pin := t.Get(ToolbarPinIcon); pin.OK {
		top = pin.Y + ElementSize(ToolbarPinIcon).H/2
	} else {
		top = chatIcon.Y - chatSize.H/2 - nameRegionExpandY
	}

	left := sticker.X - ElementSize(StickerIcon).W/2 - 5
	if left < 0 {
		left = 0
	}
	right := chatIcon.X - chatSize.W/2
	bottom := chatIcon.Y + chatSize.H/2 + nameRegionExpandY

	r := screenshot.Region{X: left, Y: top, Width: right - left, Height: bottom - top}
	if r.Width <= 0 || r.Height <= 0 {
		return screenshot.Region{}, false
	}
	return r, true
}

// MessageAreaRegion is the pane where message bubbles render. The right edge
// prefers the video call icon and falls back to the frame width; without
// either the region cannot be derived.
func MessageAreaRegion(t Table, frameW int) (screenshot.Region, bool) {
	sticker := t.Get(StickerIcon)
	chatIcon := t.Get(ToolbarChatIcon)
	if !sticker.OK || !chatIcon.OK {
		return screenshot.Region{}, false
	}

	stickerSize := ElementSize(StickerIcon)
	left := sticker.X - stickerSize.W/2
	bottom := sticker.Y - stickerSize.H/2

	var right int
	if video := t.Get(VideoCallIcon); video.OK {
		right = video.X + ElementSize(VideoCallIcon).W/2
	} else if frameW > left {
		right = frameW
	} else {
		return screenshot.Region{}, false
	}

	chatBottom := chatIcon.Y + ElementSize(ToolbarChatIcon).H/2
	top := (chatBottom + bottom) / 2

	r := screenshot.Region{X: left, Y: top, Width: right - left, Height: bottom - top}
	if r.Width <= 0 || r.Height <= 0 {
		return screenshot.Region{}, false
	}
	return r, true
}

// ListAreaRegion is the contact-list strip, a band to the left of the
// search bar running down to the bottom of the frame.
func ListAreaRegion(t Table, frameH int) (screenshot.Region, bool) {
	search := t.Get(SearchBar)
	if !search.OK {
		return screenshot.Region{}, false
	}
	left, right := ListBand(search)
	top := search.Y + ElementSize(SearchBar).H/2
	if top >= frameH {
		return screenshot.Region{}, false
	}
	r := screenshot.Region{X: left, Y: top, Width: right - left, Height: frameH - top}
	if r.Width <= 0 || r.Height <= 0 {
		return screenshot.Region{}, false
	}
	return r, true
}
