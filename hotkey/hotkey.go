// Package hotkey watches for a global key combination, used to stop watch
// mode without focusing the terminal.
package hotkey

import (
	"log"
	"strings"

	gohook "github.com/robotn/gohook"
)

// rawcodes maps key names to Windows virtual key codes; modifiers include
// both left and right variants.
var rawcodes = map[string][]uint16{
	"ctrl":   {162, 163},
	"alt":    {164, 165},
	"shift":  {160, 161},
	"cmd":    {91, 92},
	"space":  {32},
	"enter":  {13},
	"esc":    {27},
	"escape": {27},
	"tab":    {9},
}

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		rawcodes[string(c)] = []uint16{uint16(c - 'a' + 65)}
	}
	for c := byte('0'); c <= '9'; c++ {
		rawcodes[string(c)] = []uint16{uint16(c - '0' + 48)}
	}
	for i := uint16(1); i <= 12; i++ {
		rawcodes["f"+itoa(i)] = []uint16{111 + i}
	}
}

func itoa(n uint16) string {
	if n >= 10 {
		return string('0'+byte(n/10)) + string('0'+byte(n%10))
	}
	return string('0' + byte(n))
}

type keyState struct {
	name    string
	codes   []uint16
	pressed bool
}

// Listen registers a combination like "ctrl+alt+q" and invokes callback
// whenever all of its keys are down at once. The listener runs in its own
// goroutine for the life of the process.
func Listen(combo string, callback func()) {
	var states []keyState
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		name := strings.TrimSpace(part)
		if name == "win" || name == "super" {
			name = "cmd"
		}
		codes, ok := rawcodes[name]
		if !ok {
			log.Printf("hotkey: unknown key %q in %q, ignoring", name, combo)
			continue
		}
		states = append(states, keyState{name: name, codes: codes})
	}
	if len(states) == 0 {
		log.Printf("hotkey: no usable keys in %q, listener not started", combo)
		return
	}
	log.Printf("hotkey: listening for %s", combo)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: listener panicked: %v", r)
			}
		}()
		for ev := range gohook.Start() {
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
				continue
			}
			for i := range states {
				for _, code := range states[i].codes {
					if ev.Rawcode == code {
						states[i].pressed = ev.Kind == gohook.KeyDown
					}
				}
			}
			all := true
			for i := range states {
				if !states[i].pressed {
					all = false
					break
				}
			}
			if all {
				for i := range states {
					states[i].pressed = false
				}
				if callback != nil {
					callback()
				}
			}
		}
	}()
}
