// Package vision provides the raw template-matching primitive: grayscale
// normalized cross-correlation of a template over a screenshot, returning
// every candidate position above a confidence threshold.
package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	"chat-ui-bridge/screenshot"
)

// Match is one raw template-match candidate. X and Y are the center of the
// matched area in the coordinates of the searched image.
type Match struct {
	X          int
	Y          int
	Confidence float64
}

type grayPlane struct {
	pix  []float64
	w, h int
}

func toGray(img image.Image) grayPlane {
	b := img.Bounds()
	g := grayPlane{pix: make([]float64, b.Dx()*b.Dy()), w: b.Dx(), h: b.Dy()}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			g.pix[i] = 0.299*float64(r>>8) + 0.587*float64(gr>>8) + 0.114*float64(bl>>8)
			i++
		}
	}
	return g
}

// MatchTemplate searches the whole image for tmpl and returns all candidates
// with normalized cross-correlation at or above threshold, sorted by
// confidence descending. An empty result is not an error.
func MatchTemplate(img, tmpl image.Image, threshold float64) ([]Match, error) {
	return MatchTemplateIn(img, tmpl, screenshot.Region{
		X: 0, Y: 0,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, threshold)
}

// MatchTemplateIn searches only within region (relative to img's bounds
// origin). Returned coordinates are relative to the full image, never to the
// sub-region, so callers can narrow the search without translating results.
func MatchTemplateIn(img, tmpl image.Image, region screenshot.Region, threshold float64) ([]Match, error) {
	if img == nil || tmpl == nil {
		return nil, fmt.Errorf("nil image or template")
	}
	sub := screenshot.Crop(img, region)
	src := toGray(sub)
	tpl := toGray(tmpl)
	if tpl.w == 0 || tpl.h == 0 {
		return nil, fmt.Errorf("empty template")
	}
	if tpl.w > src.w || tpl.h > src.h {
		// Template larger than the search area: no candidates, matching the
		// behavior of skipping oversized templates rather than failing.
		return nil, nil
	}

	// Zero-mean template statistics, computed once.
	var tMean float64
	for _, v := range tpl.pix {
		tMean += v
	}
	tMean /= float64(len(tpl.pix))
	var tNorm float64
	for _, v := range tpl.pix {
		d := v - tMean
		tNorm += d * d
	}
	tNorm = math.Sqrt(tNorm)
	if tNorm == 0 {
		return nil, fmt.Errorf("flat template has no correlation signal")
	}

	var out []Match
	for oy := 0; oy <= src.h-tpl.h; oy++ {
		for ox := 0; ox <= src.w-tpl.w; ox++ {
			score := nccAt(src, tpl, ox, oy, tMean, tNorm)
			if score >= threshold {
				out = append(out, Match{
					X:          region.X + ox + tpl.w/2,
					Y:          region.Y + oy + tpl.h/2,
					Confidence: score,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func nccAt(src, tpl grayPlane, ox, oy int, tMean, tNorm float64) float64 {
	var sMean float64
	for y := 0; y < tpl.h; y++ {
		row := (oy + y) * src.w
		for x := 0; x < tpl.w; x++ {
			sMean += src.pix[row+ox+x]
		}
	}
	n := float64(tpl.w * tpl.h)
	sMean /= n

	var num, sNorm float64
	for y := 0; y < tpl.h; y++ {
		row := (oy + y) * src.w
		trow := y * tpl.w
		for x := 0; x < tpl.w; x++ {
			sd := src.pix[row+ox+x] - sMean
			td := tpl.pix[trow+x] - tMean
			num += sd * td
			sNorm += sd * sd
		}
	}
	if sNorm == 0 {
		return 0
	}
	return num / (math.Sqrt(sNorm) * tNorm)
}

// Best returns the highest-confidence match, or false when the slice is empty.
func Best(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return best, true
}
