package ocr

import (
	"image"

	"chat-ui-bridge/llm"
	"chat-ui-bridge/screenshot"
)

// Recognize performs OCR on a region of an already-captured screenshot.
func Recognize(img image.Image, region screenshot.Region) (string, error) {
	cropped := screenshot.Crop(img, region)
	data, err := screenshot.EncodePNG(cropped)
	if err != nil {
		return "", err
	}
	return llm.QueryVision(data)
}
