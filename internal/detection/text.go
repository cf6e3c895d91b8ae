package detection

import (
	"image"
	"math"
	"sort"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left corner (inclusive) and (X2, Y2) the bottom-right
// corner (exclusive).
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the bounds to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// TextBlock is a region likely to contain printed text.
type TextBlock struct {
	Bounds     Bounds  `json:"bounds"`
	Confidence float64 `json:"confidence"`
	Area       int     `json:"area"`
}

// TextBlocksResult contains detected text blocks, highest confidence first.
type TextBlocksResult struct {
	Blocks []TextBlock `json:"blocks"`
	Count  int         `json:"count"`
}

// edgeThreshold is the minimum luminance step between neighbouring pixels
// that counts as an edge.
const edgeThreshold = 30.0

// DetectTextBlocks finds regions likely to contain text.
//
// Windows are slid across an edge map; a window whose edge density is in the
// range typical for glyphs (5-40%) and whose edges are mostly horizontal runs
// becomes a candidate. Overlapping candidates are merged into blocks.
func DetectTextBlocks(img image.Image, minConfidence float64) *TextBlocksResult {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := detectEdges(img, width, height)

	windowSizes := []struct{ w, h int }{
		{100, 30}, // Small text
		{150, 40}, // Medium text
		{200, 50}, // Large text
		{80, 25},  // Very small text
	}

	candidates := make([]TextBlock, 0)

	for _, ws := range windowSizes {
		stepX := ws.w / 2
		stepY := ws.h / 2

		for y := 0; y <= height-ws.h; y += stepY {
			for x := 0; x <= width-ws.w; x += stepX {
				edgeCount := 0
				for wy := 0; wy < ws.h; wy++ {
					for wx := 0; wx < ws.w; wx++ {
						if edges[y+wy][x+wx] {
							edgeCount++
						}
					}
				}

				area := ws.w * ws.h
				density := float64(edgeCount) / float64(area)
				if density < 0.05 || density > 0.4 {
					continue
				}

				horizontalScore := calculateHorizontalScore(edges, x, y, ws.w, ws.h)
				confidence := horizontalScore * (1.0 - math.Abs(density-0.2)/0.2)
				if confidence < minConfidence {
					continue
				}

				candidates = append(candidates, TextBlock{
					Bounds: Bounds{
						X1: x + bounds.Min.X,
						Y1: y + bounds.Min.Y,
						X2: x + ws.w + bounds.Min.X,
						Y2: y + ws.h + bounds.Min.Y,
					},
					Confidence: math.Round(confidence*1000) / 1000,
					Area:       area,
				})
			}
		}
	}

	merged := mergeOverlappingBlocks(candidates)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})

	return &TextBlocksResult{
		Blocks: merged,
		Count:  len(merged),
	}
}

// TextBounds returns the union of all text blocks, or false when none were
// found.
func TextBounds(img image.Image, minConfidence float64) (Bounds, bool) {
	result := DetectTextBlocks(img, minConfidence)
	if result.Count == 0 {
		return Bounds{}, false
	}
	union := result.Blocks[0].Bounds
	for _, b := range result.Blocks[1:] {
		union = mergeBounds(union, b.Bounds)
	}
	return union, true
}

// detectEdges marks pixels whose luminance differs from the right or lower
// neighbour by more than edgeThreshold. Border pixels are never edges.
func detectEdges(img image.Image, width, height int) [][]bool {
	bounds := img.Bounds()
	edges := make([][]bool, height)

	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				continue
			}

			c := grayValue(img, x+bounds.Min.X, y+bounds.Min.Y)
			cx := grayValue(img, x+1+bounds.Min.X, y+bounds.Min.Y)
			cy := grayValue(img, x+bounds.Min.X, y+1+bounds.Min.Y)

			dx := math.Abs(float64(c) - float64(cx))
			dy := math.Abs(float64(c) - float64(cy))

			if dx > edgeThreshold || dy > edgeThreshold {
				edges[y][x] = true
			}
		}
	}

	return edges
}

// grayValue returns the BT.601 luminance of a pixel.
func grayValue(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114)
}

// calculateHorizontalScore is the share of horizontal edge runs among all
// runs in the window. Lines of text score high.
func calculateHorizontalScore(edges [][]bool, x, y, w, h int) float64 {
	horizontalRuns := 0
	verticalRuns := 0

	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row][col] {
				if !inRun {
					horizontalRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row][col] {
				if !inRun {
					verticalRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	if horizontalRuns+verticalRuns == 0 {
		return 0
	}
	return float64(horizontalRuns) / float64(horizontalRuns+verticalRuns)
}

// mergeOverlappingBlocks combines overlapping candidates.
func mergeOverlappingBlocks(blocks []TextBlock) []TextBlock {
	if len(blocks) == 0 {
		return blocks
	}

	merged := make([]TextBlock, 0)

	for _, r := range blocks {
		foundMerge := false
		for i := range merged {
			if blocksOverlap(r.Bounds, merged[i].Bounds) {
				merged[i].Bounds = mergeBounds(r.Bounds, merged[i].Bounds)
				merged[i].Confidence = math.Max(r.Confidence, merged[i].Confidence)
				merged[i].Area = (merged[i].Bounds.X2 - merged[i].Bounds.X1) *
					(merged[i].Bounds.Y2 - merged[i].Bounds.Y1)
				foundMerge = true
				break
			}
		}
		if !foundMerge {
			merged = append(merged, r)
		}
	}

	return merged
}

func blocksOverlap(a, b Bounds) bool {
	return a.X1 < b.X2 && a.X2 > b.X1 && a.Y1 < b.Y2 && a.Y2 > b.Y1
}

func mergeBounds(a, b Bounds) Bounds {
	return Bounds{
		X1: min(a.X1, b.X1),
		Y1: min(a.Y1, b.Y1),
		X2: max(a.X2, b.X2),
		Y2: max(a.Y2, b.Y2),
	}
}
