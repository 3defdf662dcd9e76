package detection

import (
	"image"
	"math"
	"sort"
)

// TextRegion is an area likely to contain horizontal text.
type TextRegion struct {
	Box   image.Rectangle `json:"box"`
	Score float64         `json:"score"`
}

// Edge density band that counts as text-like, and its centre.
const (
	minTextDensity  = 0.05
	maxTextDensity  = 0.4
	peakTextDensity = 0.2
)

// textWindows are the sliding window sizes, roughly one line of small to
// large text each.
var textWindows = []image.Point{
	{100, 30},
	{150, 40},
	{200, 50},
	{80, 25},
}

// DetectTextRegions finds regions likely to contain text, highest score
// first.
//
// Windows of several sizes slide over the edge map at half-window steps. A
// window qualifies when its edge density lies between 5% and 40%; its score
// is the share of horizontal edge runs weighted by how close the density is
// to 20%. Overlapping qualifying windows are merged into one region that keeps
// the best score.
//
// This is a heuristic; OCR gives word-level boxes when Tesseract is
// available.
func DetectTextRegions(img image.Image, minScore float64) []TextRegion {
	mask, w, h := edgeMask(img)
	origin := img.Bounds().Min

	var cands []TextRegion
	for _, win := range textWindows {
		stepX, stepY := win.X/2, win.Y/2
		for y := 0; y+win.Y <= h; y += stepY {
			for x := 0; x+win.X <= w; x += stepX {
				r := image.Rect(x, y, x+win.X, y+win.Y)
				density := float64(countIn(mask, w, r)) / float64(area(r))
				if density < minTextDensity || density > maxTextDensity {
					continue
				}
				score := horizontalScore(mask, w, r) * (1 - math.Abs(density-peakTextDensity)/peakTextDensity)
				if score >= minScore {
					cands = append(cands, TextRegion{Box: r.Add(origin), Score: math.Round(score*1000) / 1000})
				}
			}
		}
	}

	merged := mergeRegions(cands)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}

func countIn(mask []bool, w int, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask[y*w+x] {
				n++
			}
		}
	}
	return n
}

// horizontalScore is the share of edge runs in r that are horizontal.
func horizontalScore(mask []bool, w int, r image.Rectangle) float64 {
	var horiz, vert int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		in := false
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask[y*w+x] {
				if !in {
					horiz++
				}
				in = true
			} else {
				in = false
			}
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		in := false
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if mask[y*w+x] {
				if !in {
					vert++
				}
				in = true
			} else {
				in = false
			}
		}
	}
	if horiz+vert == 0 {
		return 0
	}
	return float64(horiz) / float64(horiz+vert)
}

// mergeRegions folds each region into the first overlapping one already
// kept, growing its box and keeping the better score.
func mergeRegions(regions []TextRegion) []TextRegion {
	var merged []TextRegion
	for _, r := range regions {
		folded := false
		for i := range merged {
			if r.Box.Overlaps(merged[i].Box) {
				merged[i].Box = merged[i].Box.Union(r.Box)
				merged[i].Score = math.Max(merged[i].Score, r.Score)
				folded = true
				break
			}
		}
		if !folded {
			merged = append(merged, r)
		}
	}
	return merged
}
