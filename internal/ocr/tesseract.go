package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Engine using the gosseract client. A fresh client is
// created per recognition so no trained-data state leaks between scans, and a
// mutex serializes calls because the underlying native binding is not safely
// reentrant.
type Tesseract struct {
	mu            sync.Mutex
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract constructs a Tesseract-backed engine. Languages are trained
// data hints such as "eng"; an empty list uses the engine default.
func NewTesseract(languages ...string) *Tesseract {
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize runs Tesseract on the image and collects per-word confidences
// from the word bounding boxes.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("encoding image for recognition: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("setting image: %w", err)
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return Result{}, fmt.Errorf("setting languages: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognizing text: %w", err)
	}

	return Result{
		Text:            text,
		WordConfidences: wordConfidences(c),
	}, nil
}

// Healthy checks that the Tesseract installation is usable by listing its
// available trained languages.
func (t *Tesseract) Healthy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("listing tesseract languages: %w", err)
	}
	if len(langs) == 0 {
		return fmt.Errorf("tesseract has no trained languages installed")
	}
	return nil
}

func (t *Tesseract) Close() error { return nil }

// wordConfidences reads per-word scores from the recognized bounding boxes,
// clamped to the [-1, 100] engine range. A box read failure yields no scores,
// which downstream treats as a zero-confidence page rather than an error.
func wordConfidences(c *gosseract.Client) []int {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	confs := make([]int, 0, len(boxes))
	for _, b := range boxes {
		conf := int(math.Round(b.Confidence))
		if conf < -1 {
			conf = -1
		}
		if conf > 100 {
			conf = 100
		}
		confs = append(confs, conf)
	}
	return confs
}
