// Package export writes crawl results to CSV, JSONL and XLSX files.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carbocoon/SteelPriceCrawler/models"
)

// bom makes Excel open the CSV as UTF-8.
const bom = "\uFEFF"

// Writer is an export sink for records.
type Writer interface {
	Write(recs []models.Record) error
	Close() error
	Validate() error
}

// CSVWriter writes records to CSV with a UTF-8 BOM and a header row in
// field order.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	fields []string
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the BOM and header.
func NewCSVWriter(filename string, fields []string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer, err := startCSV(f, fields)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &CSVWriter{file: f, writer: writer, fields: fields}, nil
}

func startCSV(w io.Writer, fields []string) (*csv.Writer, error) {
	if _, err := io.WriteString(w, bom); err != nil {
		return nil, fmt.Errorf("write csv bom: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(fields); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return writer, nil
}

// Write appends records.
func (cw *CSVWriter) Write(recs []models.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return writeCSVRows(cw.writer, cw.fields, recs)
}

func writeCSVRows(w *csv.Writer, fields []string, recs []models.Record) error {
	for _, rec := range recs {
		if err := w.Write(rec.Values(fields)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONLWriter writes one JSON object per record.
type JSONLWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONLWriter creates filename.
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create jsonl file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONLWriter{file: f, writer: buffer, encoder: newEncoder(buffer)}, nil
}

func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// Write appends records.
func (jw *JSONLWriter) Write(recs []models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range recs {
		if err := jw.encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode jsonl record: %w", err)
		}
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return jw.file.Close()
}

// Validate is a no-op beyond a stat: an empty crawl legitimately writes an
// empty JSONL file.
func (jw *JSONLWriter) Validate() error {
	if _, err := jw.file.Stat(); err != nil {
		return fmt.Errorf("stat jsonl file: %w", err)
	}
	return nil
}

// WriteCSV streams records as CSV, BOM and header included.
func WriteCSV(w io.Writer, fields []string, recs []models.Record) error {
	writer, err := startCSV(w, fields)
	if err != nil {
		return err
	}
	return writeCSVRows(writer, fields, recs)
}

// WriteJSONL streams records as JSON lines.
func WriteJSONL(w io.Writer, recs []models.Record) error {
	enc := newEncoder(w)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode jsonl record: %w", err)
		}
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
