package detection

import (
	"image"
	"math"
)

// DarkLevel is the luminance below which a pixel counts as ink.
const DarkLevel = 128

// SkewResult is the outcome of a skew estimate.
type SkewResult struct {
	// Angle is the rotation in degrees that straightens the text. Positive
	// values mean a counter-clockwise correction.
	Angle float64 `json:"angle"`

	// Confidence is in [0, 1]; 0 when the image had no ink.
	Confidence float64 `json:"confidence"`

	// InkPixels is the number of dark pixels that voted.
	InkPixels int `json:"ink_pixels"`
}

// EstimateSkew estimates the tilt of text lines.
//
// Every dark pixel votes, for each candidate angle in [-maxDegrees,
// maxDegrees], into the row it would fall on if the page were rotated by that
// angle. When the candidate matches the tilt, the ink of each text line
// collapses into a few rows and the sum of squared row counts peaks. This is
// a Hough transform restricted to near-horizontal lines.
//
// step is the angular resolution in degrees; non-positive uses 0.25.
func EstimateSkew(img image.Image, maxDegrees, step float64) SkewResult {
	if step <= 0 {
		step = 0.25
	}
	if maxDegrees < 0 {
		maxDegrees = -maxDegrees
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	ink := make([][2]float64, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if grayValue(img, x+bounds.Min.X, y+bounds.Min.Y) < DarkLevel {
				ink = append(ink, [2]float64{float64(x), float64(y)})
			}
		}
	}
	if len(ink) == 0 {
		return SkewResult{}
	}

	diag := int(math.Ceil(math.Sqrt(float64(width*width + height*height))))
	numAngles := int(math.Round(2*maxDegrees/step)) + 1
	accumulator := make([]int, diag*2+1)

	bestScore := -1.0
	worstScore := math.MaxFloat64
	bestTilt := 0.0

	for i := 0; i < numAngles; i++ {
		tilt := -maxDegrees + float64(i)*step
		rad := tilt * math.Pi / 180
		cosA := math.Cos(rad)
		sinA := math.Sin(rad)

		for k := range accumulator {
			accumulator[k] = 0
		}
		// A line rising to the right at tilt degrees has constant y*cos + x*sin.
		for _, p := range ink {
			rho := int(math.Round(p[1]*cosA+p[0]*sinA)) + diag
			if rho >= 0 && rho < len(accumulator) {
				accumulator[rho]++
			}
		}

		var score float64
		for _, votes := range accumulator {
			score += float64(votes) * float64(votes)
		}

		if score > bestScore || (score == bestScore && math.Abs(tilt) < math.Abs(bestTilt)) {
			bestScore = score
			bestTilt = tilt
		}
		if score < worstScore {
			worstScore = score
		}
	}

	confidence := 0.0
	if bestScore > 0 {
		confidence = (bestScore - worstScore) / bestScore
	}

	angle := math.Round(-bestTilt*100) / 100
	if angle == 0 {
		angle = 0 // drop the sign of -0
	}
	return SkewResult{
		Angle:      angle,
		Confidence: math.Round(confidence*1000) / 1000,
		InkPixels:  len(ink),
	}
}
