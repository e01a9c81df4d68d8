// Package locator turns a raw window screenshot into a table of named UI
// landmarks and regions of interest. Landmarks are declared as a dependency
// graph and resolved in topological order, so a landmark's inputs are always
// settled before it is evaluated; an absent landmark propagates as absence,
// never as an error.
package locator

import (
	"fmt"

	"chat-ui-bridge/config"
)

// Landmark names. The avatar landmarks are resolved by the classifier rather
// than by a plain template pass, but they live in the same result table.
const (
	ToolbarChatIcon = "toolbar_chat_icon"
	ToolbarMoreIcon = "toolbar_more_icon"
	ToolbarPinIcon  = "toolbar_pin_icon"
	SearchBar       = "search_bar"
	AvatarInList    = "avatar_in_list"
	AvatarInChat    = "avatar_in_chat"
	StickerIcon     = "sticker_icon"
	SaveIcon        = "save_icon"
	FileIcon        = "file_icon"
	ScreencapIcon   = "screencap_icon"
	TapeIcon        = "tape_icon"
	VoiceCallIcon   = "voice_call_icon"
	VideoCallIcon   = "video_call_icon"
	SendButton      = "send_button"
	InputBoxAnchor  = "input_box_anchor"
)

// Kind states how a landmark is detected.
type Kind int

const (
	// KindTemplate matches one or more template images; the first template
	// that yields a hit wins, competing variants are never merged by search.
	KindTemplate Kind = iota
	// KindAvatars runs the avatar classifier over all avatar-like matches.
	KindAvatars
	// KindComputed derives a position purely from other landmarks' results.
	KindComputed
)

// Size is a nominal on-screen element size in logical pixels, used to turn
// center positions into bounds.
type Size struct {
	W, H int
}

// Landmark declares one detectable UI element.
type Landmark struct {
	Name      string
	Kind      Kind
	Templates []string // resolved template paths, tried in order
	Size      Size
	// TopFraction restricts the template search to the top fraction of the
	// frame when > 0. A static property of the landmark; if the target UI
	// moves this element, the narrowing must be re-tuned by hand.
	TopFraction float64
	DependsOn   []string
	// Compute produces the result for KindComputed landmarks from the table
	// of already-resolved dependencies.
	Compute func(table Table) Result
}

// Result is the outcome of locating a single landmark. X and Y are the
// element's center in window-relative logical coordinates. A Result with
// OK == false means "absent", which is a value, not an error.
type Result struct {
	OK         bool
	X, Y       int
	Confidence float64
	Reason     string // why the landmark is absent, for logs only
}

// Table maps landmark names to their outcome for one screenshot. It is
// written once by a locate pass and read-only afterwards.
type Table map[string]Result

// Get returns the result for a landmark, absent when never evaluated.
func (t Table) Get(name string) Result {
	return t[name]
}

// elementSizes gives the nominal size per landmark; avatars and the search
// bar differ from the default 30x30 icon size.
var elementSizes = map[string]Size{
	SearchBar:    {W: 180, H: 40},
	AvatarInList: {W: 50, H: 50},
	AvatarInChat: {W: 50, H: 50},
}

const defaultIconSize = 30

// AvatarSize is the nominal avatar edge length, shared with the classifier's
// dedup radius and the red-dot probe.
const AvatarSize = 50

// ElementSize returns the nominal size of a landmark.
func ElementSize(name string) Size {
	if s, ok := elementSizes[name]; ok {
		return s
	}
	return Size{W: defaultIconSize, H: defaultIconSize}
}

// Catalog declares every landmark with its detection method, search
// narrowing, and dependencies, with template files resolved against cfg.
func Catalog(cfg *config.Config) []Landmark {
	tp := cfg.TemplatePath
	return []Landmark{
		{Name: ToolbarChatIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateToolbarChat)}},
		{Name: ToolbarMoreIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateToolbarMore)}},
		// The pin indicator only ever appears in the title strip, so the
		// match is narrowed to the top 20% of the frame.
		{Name: ToolbarPinIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateToolbarPin)}, TopFraction: 0.2},
		// Two visual states share one landmark; first non-absent wins.
		{Name: SearchBar, Kind: KindTemplate, Templates: []string{tp(config.TemplateSearchBar), tp(config.TemplateSearchBarOpen)}},
		// Avatars must come after the search bar: classification uses its
		// position to bound the contact-list band.
		{Name: AvatarInList, Kind: KindAvatars, Templates: []string{tp(config.TemplateAvatar)}, DependsOn: []string{SearchBar}},
		{Name: AvatarInChat, Kind: KindAvatars, Templates: []string{tp(config.TemplateAvatar)}, DependsOn: []string{SearchBar}},
		{Name: StickerIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateStickerIcon)}},
		{Name: SaveIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateSaveIcon)}},
		{Name: FileIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateFileIcon)}},
		{Name: ScreencapIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateScreencapIcon)}},
		{Name: TapeIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateTapeIcon)}},
		{Name: VoiceCallIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateVoiceCallIcon)}},
		{Name: VideoCallIcon, Kind: KindTemplate, Templates: []string{tp(config.TemplateVideoCallIcon)}},
		{Name: SendButton, Kind: KindTemplate, Templates: []string{tp(config.TemplateSendButton), tp(config.TemplateSendButtonIdle)}},
		{
			Name:      InputBoxAnchor,
			Kind:      KindComputed,
			DependsOn: []string{StickerIcon, SendButton},
			Compute:   midpointOf(StickerIcon, SendButton),
		},
	}
}

// midpointOf computes a landmark as the midpoint of two others. Absent when
// either input is absent; confidence is the weaker of the two inputs.
func midpointOf(a, b string) func(Table) Result {
	return func(t Table) Result {
		ra, rb := t.Get(a), t.Get(b)
		if !ra.OK || !rb.OK {
			return Result{Reason: fmt.Sprintf("requires %s and %s", a, b)}
		}
		conf := ra.Confidence
		if rb.Confidence < conf {
			conf = rb.Confidence
		}
		return Result{
			OK:         true,
			X:          (ra.X + rb.X) / 2,
			Y:          (ra.Y + rb.Y) / 2,
			Confidence: conf,
		}
	}
}

// topoOrder sorts the catalog so every landmark's dependencies precede it.
// The catalog is static, so a cycle is a programming error.
func topoOrder(catalog []Landmark) ([]Landmark, error) {
	byName := make(map[string]Landmark, len(catalog))
	for _, lm := range catalog {
		byName[lm.Name] = lm
	}
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(catalog))
	var order []Landmark
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("landmark dependency cycle through %s", name)
		}
		state[name] = visiting
		lm, ok := byName[name]
		if !ok {
			return fmt.Errorf("landmark %s depends on undeclared landmark", name)
		}
		for _, dep := range lm.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, lm)
		return nil
	}
	for _, lm := range catalog {
		if err := visit(lm.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// DependentsOf answers "which landmarks break when this one does" by walking
// the declared graph transitively.
func DependentsOf(catalog []Landmark, name string) []string {
	direct := make(map[string][]string)
	for _, lm := range catalog {
		for _, dep := range lm.DependsOn {
			direct[dep] = append(direct[dep], lm.Name)
		}
	}
	seen := map[string]bool{}
	var out []string
	var walk func(n string)
	walk = func(n string) {
		for _, d := range direct[n] {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				walk(d)
			}
		}
	}
	walk(name)
	return out
}
