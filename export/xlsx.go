package export

import (
	"fmt"
	"io"
	"sync"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/xuri/excelize/v2"
)

// sheet is the single worksheet of every workbook.
const sheet = "Sheet1"

// XLSXWriter streams records into a one-sheet workbook. The file is
// written on Close.
type XLSXWriter struct {
	filename string
	book     *excelize.File
	stream   *excelize.StreamWriter
	fields   []string
	row      int
	mu       sync.Mutex
}

// NewXLSXWriter starts a workbook for filename and writes the header row.
func NewXLSXWriter(filename string, fields []string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	book, stream, err := startXLSX(fields)
	if err != nil {
		return nil, err
	}
	return &XLSXWriter{filename: filename, book: book, stream: stream, fields: fields, row: 1}, nil
}

func startXLSX(fields []string) (*excelize.File, *excelize.StreamWriter, error) {
	book := excelize.NewFile()
	stream, err := book.NewStreamWriter(sheet)
	if err != nil {
		book.Close()
		return nil, nil, fmt.Errorf("open xlsx sheet: %w", err)
	}
	if err := setRow(stream, 1, fields); err != nil {
		book.Close()
		return nil, nil, fmt.Errorf("write xlsx header: %w", err)
	}
	return book, stream, nil
}

func setRow(stream *excelize.StreamWriter, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return stream.SetRow(cell, cells)
}

// Write appends records.
func (xw *XLSXWriter) Write(recs []models.Record) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	for _, rec := range recs {
		xw.row++
		if err := setRow(xw.stream, xw.row, rec.Values(xw.fields)); err != nil {
			return fmt.Errorf("write xlsx record: %w", err)
		}
	}
	return nil
}

// Close flushes the sheet and saves the workbook.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	defer xw.book.Close()

	if err := xw.stream.Flush(); err != nil {
		return fmt.Errorf("flush xlsx sheet: %w", err)
	}
	if err := xw.book.SaveAs(xw.filename); err != nil {
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return nil
}

// Validate ensures the header row is in place.
func (xw *XLSXWriter) Validate() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	if xw.row < 1 {
		return fmt.Errorf("xlsx sheet has no header")
	}
	return nil
}

// WriteXLSX streams records as a workbook, header row first.
func WriteXLSX(w io.Writer, fields []string, recs []models.Record) error {
	book, stream, err := startXLSX(fields)
	if err != nil {
		return err
	}
	defer book.Close()
	for i, rec := range recs {
		if err := setRow(stream, i+2, rec.Values(fields)); err != nil {
			return fmt.Errorf("write xlsx record: %w", err)
		}
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("flush xlsx sheet: %w", err)
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
