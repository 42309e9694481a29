// Package vision prepares photographed receipt images for text recognition.
// It normalizes an arbitrary camera capture into a clean binary bitmap and
// straightens skewed text lines so the OCR engine sees something close to a
// flatbed scan.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Normalization parameters. These mirror the OpenCV defaults that work well
// for thermal-printed receipts: non-local-means keeps thin strokes that a
// plain blur would destroy, and CLAHE avoids amplifying noise in glare spots.
const (
	denoiseStrength       = 10
	denoiseTemplateWindow = 7
	denoiseSearchWindow   = 21
	claheClipLimit        = 2.0
	claheTileSize         = 8
)

// Normalize converts a decoded receipt photo into a two-level (ink vs.
// background) grayscale image optimized for OCR. Every step is unconditional:
// grayscale, denoise, local contrast enhancement, Otsu binarization. A
// pathological input (solid color, no text) still binarizes without error.
func Normalize(img image.Image) (image.Image, error) {
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoisingWithParams(gray, &denoised, denoiseStrength, denoiseTemplateWindow, denoiseSearchWindow)

	clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTileSize, claheTileSize))
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(denoised, &enhanced)

	// Otsu picks the threshold from the intensity histogram, so uneven
	// receipt lighting does not need a hand-tuned constant.
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	out, err := binary.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting binarized image: %w", err)
	}
	return out, nil
}

// grayMat converts a decoded image to a single-channel OpenCV matrix.
// Single-channel input passes through; color input is reduced to luminance.
func grayMat(img image.Image) (gocv.Mat, error) {
	if g, ok := img.(*image.Gray); ok {
		return gocv.ImageGrayToMatGray(g)
	}

	color, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("converting image: %w", err)
	}
	defer color.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(color, &gray, gocv.ColorBGRToGray)
	return gray, nil
}
