package locator

import (
	"log"
	"math"
	"sort"

	"chat-ui-bridge/vision"
)

const (
	// DedupeRadius collapses template hits closer than this many pixels
	// into a single avatar.
	DedupeRadius = 30

	// columnTolerance is the X quantization used to group avatars into
	// vertical columns.
	columnTolerance = 10

	// listBandWidthFactor sizes the contact-list band to the left of the
	// search bar, as a fraction of the search bar width.
	listBandWidthFactor = 0.6
)

// Classified splits avatar hits into the contact list side and the open
// conversation side. InChat is ordered by column left to right, top to
// bottom within a column.
type Classified struct {
	InList []vision.Match
	InChat []vision.Match
}

// Dedupe drops matches whose centers fall within radius of an already kept,
// higher-confidence match. Input order does not matter.
func Dedupe(matches []vision.Match, radius int) []vision.Match {
	if len(matches) <= 1 {
		return matches
	}
	sorted := make([]vision.Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	var kept []vision.Match
	r2 := float64(radius * radius)
	for _, m := range sorted {
		dup := false
		for _, k := range kept {
			dx := float64(m.X - k.X)
			dy := float64(m.Y - k.Y)
			if dx*dx+dy*dy < r2 {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, m)
		}
	}
	return kept
}

// Classify decides which avatars belong to the contact list and which to the
// open conversation, based on how many vertical columns the hits form.
//
// One column with a single hit is resolved against the search bar: inside
// the list band it is a list avatar, otherwise a coarse below-left test
// applies, and a hit that fits neither side is discarded rather than
// guessed. One column with several hits is the conversation. Two columns
// split left/right. Three or more columns is an incoherent layout and both
// sides come back empty.
func Classify(matches []vision.Match, search Result) Classified {
	var out Classified
	if len(matches) == 0 {
		return out
	}

	columns := groupByColumn(matches)
	switch {
	case len(columns) >= 3:
		log.Printf("classify: %d avatar columns, layout too ambiguous to trust", len(columns))
		return out
	case len(columns) == 2:
		out.InList = columns[0]
		out.InChat = flatten(columns[1:])
	default:
		col := columns[0]
		if len(col) > 1 {
			out.InChat = flatten(columns)
			break
		}
		m := col[0]
		switch classifySingle(m, search) {
		case sideList:
			out.InList = []vision.Match{m}
		case sideChat:
			out.InChat = []vision.Match{m}
		default:
			log.Printf("classify: lone avatar at (%d, %d) fits neither side, discarded", m.X, m.Y)
		}
	}
	return out
}

type side int

const (
	sideNone side = iota
	sideList
	sideChat
)

// classifySingle places a lone avatar relative to the search bar. Without a
// search bar there is nothing to anchor on, so the hit is discarded.
func classifySingle(m vision.Match, search Result) side {
	if !search.OK {
		return sideNone
	}
	bandLeft, bandRight := ListBand(search)
	if m.X >= bandLeft && m.X < bandRight && m.Y > search.Y {
		return sideList
	}
	if m.X < search.X && m.Y > search.Y {
		return sideList
	}
	if m.X >= search.X {
		return sideChat
	}
	return sideNone
}

// ListBand is the horizontal span where contact-list avatars live, derived
// from the search bar position and width.
func ListBand(search Result) (left, right int) {
	sb := ElementSize(SearchBar)
	left = search.X - int(listBandWidthFactor*float64(sb.W))
	if left < 0 {
		left = 0
	}
	return left, search.X
}

// groupByColumn buckets matches by X rounded to the nearest columnTolerance.
// Columns come back left to right, each sorted top to bottom.
func groupByColumn(matches []vision.Match) [][]vision.Match {
	buckets := make(map[int][]vision.Match)
	for _, m := range matches {
		key := int(math.Round(float64(m.X)/columnTolerance)) * columnTolerance
		buckets[key] = append(buckets[key], m)
	}
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	columns := make([][]vision.Match, 0, len(keys))
	for _, k := range keys {
		col := buckets[k]
		sort.Slice(col, func(i, j int) bool { return col[i].Y < col[j].Y })
		columns = append(columns, col)
	}
	return columns
}

func flatten(columns [][]vision.Match) []vision.Match {
	var all []vision.Match
	for _, col := range columns {
		all = append(all, col...)
	}
	return all
}
