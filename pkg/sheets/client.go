package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/finxan/finxan-backend/pkg/config"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultPreviewRange = "A1:Z5"
	minDataRows         = 2
)

// Fetcher is the read surface consumed by the sheet ingestion service.
type Fetcher interface {
	FetchRows(ctx context.Context, spreadsheetID, sheetName string) ([]map[string]string, error)
	Preview(ctx context.Context, spreadsheetID string) (*SpreadsheetPreview, error)
}

// Client reads spreadsheets through the Sheets v4 API with read-only access.
type Client struct {
	svc          *sheetsapi.Service
	timeout      time.Duration
	previewRange string
}

// NewClient builds a Sheets client. An API key is used when configured, otherwise
// credentials JSON, otherwise application default credentials.
func NewClient(ctx context.Context, cfg config.SheetsConfig, gcp config.GCPConfig, extra ...option.ClientOption) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		opts = append(opts, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	opts = append(opts, extra...)

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	previewRange := strings.TrimSpace(cfg.PreviewRange)
	if previewRange == "" {
		previewRange = defaultPreviewRange
	}
	return &Client{svc: svc, timeout: timeout, previewRange: previewRange}, nil
}

// FetchRows reads a whole tab and zips the header row against every data row. Headers are
// trimmed, lowercased and have whitespace runs replaced with "_"; missing cells become "".
func (c *Client) FetchRows(ctx context.Context, spreadsheetID, sheetName string) ([]map[string]string, error) {
	if strings.TrimSpace(spreadsheetID) == "" || strings.TrimSpace(sheetName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet id and sheet name are required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, quoteSheet(sheetName)).Context(ctx).Do()
	if err != nil {
		return nil, unavailable(err, fmt.Sprintf("read sheet %q", sheetName))
	}

	grid := stringGrid(resp.Values)
	if len(grid) < minDataRows {
		return nil, pkgerrors.New(pkgerrors.CodeEmptySource, "sheet must have at least 2 rows (header + data)").
			WithDetails(map[string]any{"rows": len(grid), "sheet_name": sheetName})
	}
	return ZipRows(grid), nil
}

// SheetPreview describes one tab of a spreadsheet.
type SheetPreview struct {
	SheetID     int64      `json:"sheetId"`
	SheetName   string     `json:"sheetName"`
	RowCount    int64      `json:"rowCount"`
	ColumnCount int64      `json:"columnCount"`
	HasData     bool       `json:"hasData"`
	Headers     []string   `json:"headers"`
	Preview     [][]string `json:"preview"`
	Error       string     `json:"error,omitempty"`
}

type SpreadsheetPreview struct {
	SpreadsheetID    string         `json:"spreadsheetId"`
	SpreadsheetTitle string         `json:"spreadsheetTitle"`
	Sheets           []SheetPreview `json:"sheets"`
}

// Preview lists every tab with its first rows. A tab that cannot be read is reported
// inline instead of failing the whole preview.
func (c *Client) Preview(ctx context.Context, spreadsheetID string) (*SpreadsheetPreview, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	meta, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title", "sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, unavailable(err, "read spreadsheet metadata")
	}
	if len(meta.Sheets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptySource, "no sheets found in this spreadsheet")
	}

	out := &SpreadsheetPreview{SpreadsheetID: spreadsheetID, Sheets: make([]SheetPreview, len(meta.Sheets))}
	if meta.Properties != nil {
		out.SpreadsheetTitle = meta.Properties.Title
	}

	var wg sync.WaitGroup
	for i, sheet := range meta.Sheets {
		if sheet == nil || sheet.Properties == nil {
			continue
		}
		wg.Add(1)
		go func(i int, props *sheetsapi.SheetProperties) {
			defer wg.Done()
			out.Sheets[i] = c.previewSheet(ctx, spreadsheetID, props)
		}(i, sheet.Properties)
	}
	wg.Wait()

	return out, nil
}

func (c *Client) previewSheet(ctx context.Context, spreadsheetID string, props *sheetsapi.SheetProperties) SheetPreview {
	preview := SheetPreview{SheetID: props.SheetId, SheetName: props.Title}
	if props.GridProperties != nil {
		preview.RowCount = props.GridProperties.RowCount
		preview.ColumnCount = props.GridProperties.ColumnCount
	}

	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, quoteSheet(props.Title)+"!"+c.previewRange).Context(ctx).Do()
	if err != nil {
		preview.Error = "Unable to preview"
		return preview
	}

	grid := stringGrid(resp.Values)
	preview.HasData = len(grid) >= minDataRows
	preview.Preview = grid
	if len(grid) > 0 {
		preview.Headers = grid[0]
	} else {
		preview.Headers = []string{}
	}
	return preview
}

// ZipRows turns a header+rows grid into keyed records.
func ZipRows(grid [][]string) []map[string]string {
	if len(grid) == 0 {
		return nil
	}
	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = NormalizeHeader(h)
	}

	rows := make([]map[string]string, 0, len(grid)-1)
	for _, record := range grid[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// NormalizeHeader lowercases and joins whitespace runs with "_".
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

func stringGrid(values [][]interface{}) [][]string {
	grid := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			cells[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		grid = append(grid, cells)
	}
	return grid
}

// quoteSheet wraps a tab name in single quotes for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func unavailable(err error, msg string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		e := pkgerrors.Wrap(pkgerrors.CodeSourceUnavailable, err, msg).
			WithDetails(map[string]any{"status": apiErr.Code, "reason": apiErr.Message})
		if apiErr.Code == http.StatusBadRequest {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg).WithDetails(map[string]any{"reason": apiErr.Message})
		}
		return e
	}
	return pkgerrors.Wrap(pkgerrors.CodeSourceUnavailable, err, msg)
}
