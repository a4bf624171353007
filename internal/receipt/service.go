package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kmazur/paragon/internal/prompt"
)

// Extractor turns raw OCR text into a populated record in StatusExtracted.
type Extractor interface {
	Run(raw string) (*Record, error)
}

// IDGenerator generates unique IDs for records.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service processes one receipt at a time: extract, reconcile, normalize
// item names, persist. Only records in a terminal reconciliation state are
// ever saved.
type Service struct {
	db          DB
	storage     Storage
	extractor   Extractor
	src         prompt.Source // nil in batch mode
	maxAttempts int
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time
// source. src may be nil for batch mode.
func NewService(db DB, storage Storage, extractor Extractor, src prompt.Source, maxAttempts int) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		src:         src,
		maxAttempts: maxAttempts,
		idGenerator: uuidGenerator{},
		timeSource:  defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for
// testing.
func NewServiceWithDeps(db DB, storage Storage, extractor Extractor, src prompt.Source, maxAttempts int, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		src:         src,
		maxAttempts: maxAttempts,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// Process runs the full pipeline for one receipt text blob. The record is
// persisted only when it reaches a terminal state; any failure along the
// way removes the stored raw content again.
func (s *Service) Process(filename string, raw []byte) (*Record, error) {
	record, err := s.extractor.Run(string(raw))
	if err != nil {
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	record.ID = s.idGenerator.Generate()
	record.CreatedAt = s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", record.ID, sanitizeFilename(filename)), raw)
	if err != nil {
		return nil, fmt.Errorf("saving raw content: %w", err)
	}
	record.SourcePath = savedPath

	reconciler := NewReconciler(s.src, s.maxAttempts)
	if err := reconciler.Reconcile(record); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("reconciling record: %w", err)
	}

	if err := s.normalizeNames(record); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("normalizing item names: %w", err)
	}

	if err := s.db.SaveRecord(record); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving record: %w", err)
	}

	slog.Info("record saved", "id", record.ID, "status", record.Status, "items", len(record.Items))
	return record, nil
}

// normalizeNames replaces raw OCR item names with their canonical forms.
// Unknown names prompt the operator for a canonical form; batch mode keeps
// raw names as-is.
func (s *Service) normalizeNames(record *Record) error {
	for _, item := range record.Items {
		canonical, found, err := s.db.CanonicalName(item.Name)
		if err != nil {
			return fmt.Errorf("looking up %q: %w", item.Name, err)
		}
		if found {
			if canonical != item.Name {
				slog.Info("using canonical item name", "raw", item.Name, "canonical", canonical)
				item.Name = canonical
			}
			continue
		}

		if s.src == nil {
			continue
		}

		answer, err := s.src.Ask(fmt.Sprintf("no canonical name for %q, enter one or press Enter to keep it", item.Name))
		if err != nil {
			if errors.Is(err, prompt.ErrExhausted) {
				continue
			}
			return err
		}

		canonical = item.Name
		if answer != "" {
			canonical = answer
		}
		if err := s.db.SaveCanonicalName(item.Name, canonical); err != nil {
			return fmt.Errorf("saving canonical name %q: %w", canonical, err)
		}
		item.Name = canonical
	}
	return nil
}

// GetRecord retrieves a record by ID.
func (s *Service) GetRecord(id string) (*Record, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// ListRecords returns all stored records.
func (s *Service) ListRecords() ([]*Record, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record and its stored raw content.
func (s *Service) DeleteRecord(id string) error {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if record.SourcePath != "" {
		if err := s.storage.Delete(record.SourcePath); err != nil {
			slog.Warn("failed to delete raw content", "path", record.SourcePath, "error", err)
		}
	}

	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// GetRawContent retrieves the stored OCR text for a record.
func (s *Service) GetRawContent(id string) ([]byte, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	data, err := s.storage.Get(record.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("getting raw content: %w", err)
	}
	return data, nil
}

// UnitPricePoint is one dated unit-price observation for an item.
type UnitPricePoint struct {
	Date      string          `json:"date"`
	ShopName  string          `json:"shop_name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PriceHistory returns the unit prices recorded for an item name across all
// stored receipts, ordered by shopping date.
func (s *Service) PriceHistory(name string) ([]UnitPricePoint, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var points []UnitPricePoint
	for _, record := range records {
		for _, item := range record.Items {
			if item.Name != name {
				continue
			}
			points = append(points, UnitPricePoint{
				Date:      record.ShoppingDate,
				ShopName:  record.ShopName,
				UnitPrice: item.UnitPrice,
			})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}
