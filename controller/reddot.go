package controller

import (
	"image"
	"log"

	"chat-ui-bridge/locator"
)

// Red-dot detection: unread conversations carry a red badge on the upper
// right of the list avatar. A red pixel must have a strong R channel that
// clearly dominates G and B, which survives scaling and antialiasing.
const (
	redMinR        = 180
	redMinDelta    = 40
	redSearchSpan  = 12
	redRatioNeeded = 0.7
)

// RedDotVisible probes the area around the top-right corner of each list
// avatar for an unread badge. Absence of list avatars means no badge.
func (c *Controller) RedDotVisible() (bool, error) {
	frame, err := c.CaptureFrame()
	if err != nil {
		return false, err
	}
	return redDotInFrame(frame), nil
}

func redDotInFrame(frame *Frame) bool {
	avatars := frame.Pass.Avatars.InList
	if list := frame.Pass.Landmarks.Get(locator.AvatarInList); len(avatars) == 0 && !list.OK {
		return false
	}
	for _, m := range avatars {
		cornerX := m.X + locator.AvatarSize/2
		cornerY := m.Y - locator.AvatarSize/2
		region := image.Rect(
			cornerX-redSearchSpan, cornerY-redSearchSpan,
			cornerX+redSearchSpan, cornerY+redSearchSpan,
		).Intersect(frame.Image.Bounds())
		ratio := redRatio(frame.Image, region)
		if ratio >= redRatioNeeded {
			log.Printf("controller: red dot near (%d, %d), red ratio %.2f", cornerX, cornerY, ratio)
			return true
		}
	}
	return false
}

func redRatio(img image.Image, r image.Rectangle) float64 {
	total := r.Dx() * r.Dy()
	if total <= 0 {
		return 0
	}
	red := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r8, g8, b8 := int(cr>>8), int(cg>>8), int(cb>>8)
			if r8 >= redMinR && r8-g8 >= redMinDelta && r8-b8 >= redMinDelta {
				red++
			}
		}
	}
	return float64(red) / float64(total)
}
