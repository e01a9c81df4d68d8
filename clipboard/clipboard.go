package clipboard

import (
	"golang.design/x/clipboard"
)

func Init() error {
	return clipboard.Init()
}

func Write(text string) error {
	// Write to clipboard - this returns a channel, not an error
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Read returns the current text clipboard content, empty when none.
func Read() string {
	return string(clipboard.Read(clipboard.FmtText))
}

// WriteImage places PNG-encoded image data on the clipboard, used for
// paste-based file and picture sending.
func WriteImage(pngData []byte) error {
	clipboard.Write(clipboard.FmtImage, pngData)
	return nil
}
