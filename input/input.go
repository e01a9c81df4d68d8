// Package input injects mouse and keyboard events into the active window.
// All waits are short, bounded, and slightly jittered so event bursts do not
// outrun the target application's UI thread.
package input

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-vgo/robotgo"
)

// Click moves to the position and performs a single left click.
func Click(x, y int) {
	robotgo.Move(x, y)
	HumanDelay(50*time.Millisecond, 90*time.Millisecond)
	robotgo.Click("left", false)
}

// DoubleClick moves to the position and performs a double left click,
// which in the target client selects a message bubble's text.
func DoubleClick(x, y int) {
	robotgo.Move(x, y)
	HumanDelay(50*time.Millisecond, 90*time.Millisecond)
	robotgo.Click("left", true)
}

// PressCombo taps a key with optional modifiers, e.g. PressCombo("c", "ctrl").
func PressCombo(key string, modifiers ...string) error {
	args := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	if err := robotgo.KeyTap(key, args...); err != nil {
		return fmt.Errorf("key tap %s+%v failed: %v", key, modifiers, err)
	}
	return nil
}

// HumanDelay sleeps for a random duration in [min, max].
func HumanDelay(min, max time.Duration) {
	if max < min {
		max = min
	}
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	time.Sleep(d)
}
