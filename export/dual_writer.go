package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
)

// DualWriter writes CSV and JSONL side by side.
type DualWriter struct {
	csvWriter   *CSVWriter
	jsonlWriter *JSONLWriter
	mu          sync.Mutex
}

// NewDualWriter creates both files.
func NewDualWriter(csvFilename, jsonlFilename string, fields []string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	jsonlWriter, err := NewJSONLWriter(jsonlFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("failed to create JSONL writer: %w", err)
	}

	return &DualWriter{csvWriter: csvWriter, jsonlWriter: jsonlWriter}, nil
}

// Write writes records to both files.
func (dw *DualWriter) Write(recs []models.Record) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(recs); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	if err := dw.jsonlWriter.Write(recs); err != nil {
		return fmt.Errorf("JSONL write failed: %w", err)
	}
	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("CSV close failed: %w", err))
	}
	if err := dw.jsonlWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("JSONL close failed: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CSV validation failed: %w", err))
	}
	if err := dw.jsonlWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JSONL validation failed: %w", err))
	}
	return errors.Join(errs...)
}

// FileName is 钢材数据_<site>_<YYYYMMDD_HHMMSS>.<ext>.
func FileName(site string, at time.Time, ext string) string {
	return fmt.Sprintf("钢材数据_%s_%s.%s", site, at.Format("20060102_150405"), ext)
}

// Save writes recs to CSV, JSONL and XLSX files under dir and returns
// their paths. The files are written even when recs is empty.
func Save(dir, site string, fields []string, recs []models.Record, at time.Time) ([]string, error) {
	csvPath := filepath.Join(dir, FileName(site, at, "csv"))
	jsonlPath := filepath.Join(dir, FileName(site, at, "jsonl"))
	xlsxPath := filepath.Join(dir, FileName(site, at, "xlsx"))

	w, err := NewDualWriter(csvPath, jsonlPath, fields)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExportFailed, "open export files", err)
	}
	if err := w.Write(recs); err != nil {
		w.Close()
		return nil, models.NewScrapeError(models.ErrCodeExportFailed, "write export files", err)
	}
	if err := w.Close(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExportFailed, "close export files", err)
	}

	xw, err := NewXLSXWriter(xlsxPath, fields)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExportFailed, "open xlsx file", err)
	}
	if err := xw.Write(recs); err != nil {
		xw.Close()
		return nil, models.NewScrapeError(models.ErrCodeExportFailed, "write xlsx file", err)
	}
	if err := xw.Close(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExportFailed, "close xlsx file", err)
	}
	return []string{csvPath, jsonlPath, xlsxPath}, nil
}
