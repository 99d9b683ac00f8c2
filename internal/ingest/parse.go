// Package ingest turns uploaded spreadsheet, CSV and PDF bytes into raw rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/finxan/finxan-backend/internal/normalize"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// MaxPDFTextRunes caps the extracted text kept on the PDF pseudo-row.
const MaxPDFTextRunes = 20000

// PDF pseudo-row keys.
const (
	PDFRawTextKey   = "rawText"
	PDFPageCountKey = "pageCount"
)

// Result is the output of one file parse.
type Result struct {
	Rows    []normalize.RawRow
	Columns []string
	Pages   int
	// Text is the extracted document text for PDF uploads.
	Text string
}

// Parse reads r according to fileType. Excel and CSV use the first row as header; PDF yields a
// single pseudo-row holding the extracted text and page count.
func Parse(r io.Reader, fileType enums.FileType) (*Result, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file content is required")
	}
	switch fileType {
	case enums.FileTypeExcel:
		return parseExcel(r)
	case enums.FileTypeCSV:
		return parseCSV(r)
	case enums.FileTypePDF:
		return parsePDF(r)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeUnsupportedFile, "unsupported file type %q", fileType)
	}
}

func parseExcel(r io.Reader) (*Result, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse Excel file")
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptySource, "workbook has no worksheets")
	}
	grid, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse Excel file")
	}
	return tabular(grid), nil
}

func parseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	grid, err := reader.ReadAll()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse CSV file")
	}
	return tabular(grid), nil
}

func parsePDF(r io.Reader) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse PDF file")
	}
	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse PDF file")
	}

	pages := doc.NumPage()
	var text string
	if plain, err := doc.GetPlainText(); err == nil {
		buf, readErr := io.ReadAll(plain)
		if readErr == nil {
			text = string(buf)
		}
	}

	text = truncateRunes(text, MaxPDFTextRunes)
	return &Result{
		Rows: []normalize.RawRow{{
			PDFRawTextKey:   text,
			PDFPageCountKey: strconv.Itoa(pages),
		}},
		Columns: []string{PDFRawTextKey, PDFPageCountKey},
		Pages:   pages,
		Text:    text,
	}, nil
}

// tabular zips a header row against the remaining rows. Blank header cells and fully
// blank rows are skipped.
func tabular(grid [][]string) *Result {
	res := &Result{}
	if len(grid) == 0 {
		return res
	}

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(h)
		if headers[i] != "" {
			res.Columns = append(res.Columns, headers[i])
		}
	}

	for _, record := range grid[1:] {
		if blank(record) {
			continue
		}
		row := make(normalize.RawRow, len(res.Columns))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return io.MultiReader(bytes.NewReader(buf[:n]), &errReader{err: err})
	}
	if n == 3 && bytes.Equal(buf, []byte{0xEF, 0xBB, 0xBF}) {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf[:n]), r)
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Summary is a short description used in logs.
func (r *Result) Summary() string {
	if r == nil {
		return "no result"
	}
	return fmt.Sprintf("rows=%d columns=%d pages=%d", len(r.Rows), len(r.Columns), r.Pages)
}
