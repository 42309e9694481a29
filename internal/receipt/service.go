package receipt

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finshare/ocr-service/internal/extract"
	"github.com/finshare/ocr-service/internal/ocr"
	"github.com/finshare/ocr-service/internal/vision"
)

// Preparer normalizes and deskews a decoded receipt photo ahead of
// recognition.
type Preparer interface {
	Prepare(img image.Image) (image.Image, error)
}

// DecodeFunc turns uploaded bytes into a decoded raster.
type DecodeFunc func(data []byte, contentType string) (image.Image, error)

// IDGenerator generates unique job ids for scan requests.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string { return uuid.NewString() }

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time { return time.Now() }

// visionPreparer runs the image pipeline: normalize, then deskew.
type visionPreparer struct{}

func (visionPreparer) Prepare(img image.Image) (image.Image, error) {
	normalized, err := vision.Normalize(img)
	if err != nil {
		return nil, fmt.Errorf("normalizing image: %w", err)
	}
	deskewed, err := vision.Deskew(normalized)
	if err != nil {
		return nil, fmt.Errorf("deskewing image: %w", err)
	}
	return deskewed, nil
}

// Service runs the scan pipeline and manages the scan history. Each scan is
// processed to completion within its request; all intermediate buffers are
// request-local, so concurrent scans need no coordination here.
type Service struct {
	db          DB
	engine      ocr.Engine
	storage     Storage
	preparer    Preparer
	decode      DecodeFunc
	policy      extract.Policy
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with the production pipeline: the vision
// preprocessing chain, the standard image decoders, and UUID job ids.
func NewService(db DB, engine ocr.Engine, storage Storage, policy extract.Policy) *Service {
	return &Service{
		db:          db,
		engine:      engine,
		storage:     storage,
		preparer:    visionPreparer{},
		decode:      ocr.DecodeImage,
		policy:      policy,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(db DB, engine ocr.Engine, storage Storage, policy extract.Policy, preparer Preparer, decode DecodeFunc, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		engine:      engine,
		storage:     storage,
		preparer:    preparer,
		decode:      decode,
		policy:      policy,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// EngineName identifies the recognition backend for the info endpoint.
func (s *Service) EngineName() string { return s.engine.Name() }

// CheckEngine reports whether the recognition backend is reachable,
// independent of any specific scan.
func (s *Service) CheckEngine(ctx context.Context) error { return s.engine.Healthy(ctx) }

// Scan runs the full pipeline on an uploaded image and always returns a
// well-formed Outcome: Success with an assembled Record, or Failure with a
// descriptive error. It never lets a pipeline error escape, and it never
// returns a partial record.
func (s *Service) Scan(ctx context.Context, filename string, data []byte, contentType string) Outcome {
	jobID := s.idGenerator.Generate()

	record, err := s.process(ctx, data, contentType)
	if err != nil {
		slog.Error("Scan failed",
			"job_id", jobID,
			"filename", filename,
			"content_type", contentType,
			"size", len(data),
			"error", err,
		)
		return Outcome{Success: false, JobID: jobID, Error: err.Error()}
	}

	slog.Info("Scan complete", "job_id", jobID, "confidence", record.Confidence, "items", len(record.Items))

	// History bookkeeping is best-effort: a storage hiccup must not turn a
	// successful scan into a failure.
	s.saveHistory(jobID, filename, contentType, data, record)

	return Outcome{Success: true, JobID: jobID, Data: record}
}

// process runs decode, normalize, deskew, recognize, extract, assemble. Any
// error up to and including the recognition call surfaces here and becomes a
// Failure in Scan.
func (s *Service) process(ctx context.Context, data []byte, contentType string) (*Record, error) {
	img, err := s.decode(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	prepared, err := s.preparer.Prepare(img)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	result, err := s.engine.Recognize(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	fields := extract.Extract(result.Text, s.policy)
	return assemble(fields, result), nil
}

// assemble composes extractor output and recognition confidence into the
// final record. It cannot fail: a fully empty field set still yields a valid
// record carrying the raw text and its confidence.
func assemble(fields extract.Fields, result ocr.Result) *Record {
	items := make([]LineItem, 0, len(fields.Items))
	for _, it := range fields.Items {
		amount := it.Amount
		items = append(items, LineItem{Description: it.Description, Amount: &amount})
	}
	return &Record{
		Merchant:   fields.Merchant,
		Date:       fields.Date,
		Total:      fields.Total,
		Subtotal:   fields.Subtotal,
		Tax:        fields.Tax,
		Tip:        fields.Tip,
		Items:      items,
		RawText:    result.Text,
		Confidence: ocr.ScalarConfidence(result.WordConfidences),
	}
}

// saveHistory persists the upload and its record, keyed by job id.
func (s *Service) saveHistory(jobID, filename, contentType string, data []byte, record *Record) {
	clean := sanitizeFilename(filename)
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", jobID, clean), data)
	if err != nil {
		slog.Warn("Failed to store upload", "job_id", jobID, "error", err)
		return
	}

	scan := &Scan{
		ID:          jobID,
		Record:      *record,
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveScan(scan); err != nil {
		slog.Warn("Failed to save scan history", "job_id", jobID, "error", err)
		s.storage.Delete(savedPath)
	}
}

// GetScan retrieves a stored scan by job id.
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns the stored scan history.
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a stored scan and its uploaded file.
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if err := s.storage.Delete(scan.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", scan.Filename, "error", err)
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan: %w", err)
	}
	return nil
}

// GetScanFile retrieves the originally uploaded image for a stored scan.
func (s *Service) GetScanFile(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Get(scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}
	return data, scan.ContentType, nil
}

var (
	filenameJunk   = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames before they become
// storage keys.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = filenameJunk.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
