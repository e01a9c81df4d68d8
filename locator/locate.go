package locator

import (
	"image"
	"log"

	"chat-ui-bridge/config"
	"chat-ui-bridge/screenshot"
	"chat-ui-bridge/vision"
)

// MatchFunc is the raw template-matching primitive. Results are in full-image
// coordinates even when the search is narrowed to a sub-region.
type MatchFunc func(img, tmpl image.Image, region screenshot.Region, threshold float64) ([]vision.Match, error)

// LoadFunc resolves a template path to a decoded image.
type LoadFunc func(path string) (image.Image, error)

// Locator runs locate passes over screenshots using a fixed catalog.
type Locator struct {
	order     []Landmark
	match     MatchFunc
	load      LoadFunc
	threshold float64
}

// New builds a Locator from the standard catalog, backed by the NCC matcher
// and a caching template loader.
func New(cfg *config.Config) (*Locator, error) {
	templates := vision.NewTemplateSet()
	return newLocator(Catalog(cfg), vision.MatchTemplateIn, templates.Load, cfg.MatchThreshold)
}

func newLocator(catalog []Landmark, match MatchFunc, load LoadFunc, threshold float64) (*Locator, error) {
	order, err := topoOrder(catalog)
	if err != nil {
		return nil, err
	}
	return &Locator{order: order, match: match, load: load, threshold: threshold}, nil
}

// PassResult holds everything one locate pass produced. It is immutable
// after Locate returns and is not persisted anywhere.
type PassResult struct {
	Landmarks Table
	Avatars   Classified
	FrameW    int
	FrameH    int
}

// Locate evaluates every declared landmark against one screenshot, honoring
// the dependency order. The pass has no side effects beyond its result; the
// same screenshot always yields the same table.
func (l *Locator) Locate(img image.Image) *PassResult {
	b := img.Bounds()
	res := &PassResult{
		Landmarks: make(Table, len(l.order)),
		FrameW:    b.Dx(),
		FrameH:    b.Dy(),
	}
	avatarsDone := false
	for _, lm := range l.order {
		switch lm.Kind {
		case KindComputed:
			r := lm.Compute(res.Landmarks)
			res.Landmarks[lm.Name] = r
			logOutcome(lm.Name, r)
		case KindAvatars:
			// Both avatar landmarks come out of a single classification
			// pass; the second catalog entry is satisfied by the first.
			if avatarsDone {
				continue
			}
			avatarsDone = true
			l.locateAvatars(img, lm, res)
		default:
			r := l.matchFirst(img, lm)
			res.Landmarks[lm.Name] = r
			logOutcome(lm.Name, r)
		}
	}
	return res
}

func logOutcome(name string, r Result) {
	if r.OK {
		log.Printf("locate: %s at (%d, %d), confidence=%.3f", name, r.X, r.Y, r.Confidence)
	} else {
		log.Printf("locate: %s absent (%s)", name, r.Reason)
	}
}

// matchFirst tries each template variant in order and keeps the first that
// produces a hit. Variants are alternatives for the same element, so no
// further search happens once one matches.
func (l *Locator) matchFirst(img image.Image, lm Landmark) Result {
	region := screenshot.Region{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if lm.TopFraction > 0 {
		region.Height = int(float64(region.Height) * lm.TopFraction)
	}
	reason := "template not matched"
	for _, path := range lm.Templates {
		tmpl, err := l.load(path)
		if err != nil {
			reason = "template not loadable: " + path
			continue
		}
		matches, err := l.match(img, tmpl, region, l.threshold)
		if err != nil {
			reason = "match failed: " + err.Error()
			continue
		}
		if best, ok := vision.Best(matches); ok {
			return Result{OK: true, X: best.X, Y: best.Y, Confidence: best.Confidence}
		}
	}
	return Result{Reason: reason}
}

// locateAvatars matches the generic avatar template over the whole frame,
// dedupes near-duplicates, and classifies the survivors into list vs chat.
// A severe ambiguity clears both sides; that is surfaced in the table, not
// as an abort of the whole pass.
func (l *Locator) locateAvatars(img image.Image, lm Landmark, res *PassResult) {
	table := res.Landmarks
	tmpl, err := l.load(lm.Templates[0])
	if err != nil {
		table[AvatarInList] = Result{Reason: "avatar template not loadable"}
		table[AvatarInChat] = Result{Reason: "avatar template not loadable"}
		return
	}
	full := screenshot.Region{Width: res.FrameW, Height: res.FrameH}
	matches, err := l.match(img, tmpl, full, l.threshold)
	if err != nil {
		table[AvatarInList] = Result{Reason: "avatar match failed: " + err.Error()}
		table[AvatarInChat] = Result{Reason: "avatar match failed: " + err.Error()}
		return
	}
	deduped := Dedupe(matches, DedupeRadius)
	log.Printf("locate: %d avatar candidates, %d after dedupe", len(matches), len(deduped))

	res.Avatars = Classify(deduped, table.Get(SearchBar))

	if best, ok := vision.Best(res.Avatars.InList); ok {
		table[AvatarInList] = Result{OK: true, X: best.X, Y: best.Y, Confidence: best.Confidence}
	} else {
		table[AvatarInList] = Result{Reason: "no avatar classified into the contact list"}
	}
	if len(res.Avatars.InChat) > 0 {
		bottom := res.Avatars.InChat[0]
		for _, m := range res.Avatars.InChat[1:] {
			if m.Y > bottom.Y {
				bottom = m
			}
		}
		table[AvatarInChat] = Result{OK: true, X: bottom.X, Y: bottom.Y, Confidence: bottom.Confidence}
	} else {
		table[AvatarInChat] = Result{Reason: "no avatar classified into the conversation"}
	}
}

// MatchAvatarTemplate matches one specific avatar template (for example a
// per-contact avatar) inside a region, deduped, in full-image coordinates.
// Used by the message reader to restrict itself to the current contact.
func (l *Locator) MatchAvatarTemplate(img image.Image, templatePath string, region screenshot.Region) ([]vision.Match, error) {
	tmpl, err := l.load(templatePath)
	if err != nil {
		return nil, err
	}
	matches, err := l.match(img, tmpl, region, l.threshold)
	if err != nil {
		return nil, err
	}
	return Dedupe(matches, DedupeRadius), nil
}
