package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Deskew parameters. The Canny thresholds suit printed text edges; the Hough
// threshold of 200 ignores short strokes so only full text baselines and
// table rules become candidate lines.
const (
	cannyLowThreshold  = 50
	cannyHighThreshold = 150
	houghRho           = 1
	houghThreshold     = 200

	// maxSkewLines caps how many detected lines feed the angle estimate.
	maxSkewLines = 10
	// maxLineAngle rejects lines that are not roughly horizontal text
	// baselines, such as the vertical borders of the receipt.
	maxLineAngle = 45.0
	// minRotation is the dead zone below which rotation is skipped.
	minRotation = 0.5
)

// Deskew straightens text-line skew in a binarized receipt image. When no
// reliable skew is detected the input is returned unmodified; that is the
// common case for an already-straight photo, not an error.
func Deskew(img image.Image) (image.Image, error) {
	angle, err := detectSkew(img)
	if err != nil {
		return nil, err
	}
	if math.Abs(angle) <= minRotation {
		return img, nil
	}
	// Expand the canvas so no text is clipped; new border pixels take the
	// paper background color.
	return imaging.Rotate(img, angle, color.White), nil
}

// detectSkew estimates the dominant text-line angle in degrees via edge
// detection and a Hough line transform. Returns 0 when no usable line is
// found (blank or uniform images).
func detectSkew(img image.Image) (float64, error) {
	gray, err := grayMat(img)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLowThreshold, cannyHighThreshold)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, houghRho, math.Pi/180, houghThreshold)

	angles := make([]float64, 0, maxSkewLines)
	for i := 0; i < lines.Rows() && i < maxSkewLines; i++ {
		theta := float64(lines.GetFloatAt(i, 1))
		if a, ok := baselineAngle(theta); ok {
			angles = append(angles, a)
		}
	}
	return meanAngle(angles), nil
}

// baselineAngle converts a Hough line angle (radians) to a text skew angle in
// degrees, rejecting lines too far from horizontal to be text baselines.
func baselineAngle(theta float64) (float64, bool) {
	angle := theta*180/math.Pi - 90
	if math.Abs(angle) >= maxLineAngle {
		return 0, false
	}
	return angle, true
}

// meanAngle averages the candidate angles. Receipts contain many short
// near-parallel text lines, so the average is more robust to outliers than
// any single detected line. Returns 0 for an empty set.
func meanAngle(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	var sum float64
	for _, a := range angles {
		sum += a
	}
	return sum / float64(len(angles))
}
