package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/finxan/finxan-backend/internal/ingest/ingesttest"
	"github.com/finxan/finxan-backend/internal/normalize"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	body := "\xEF\xBB\xBFProduct Name,Qty,Price,Color\nBolt,abc,0.10,grey\n,,,\nNut,12\n"

	res, err := Parse(strings.NewReader(body), enums.FileTypeCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product Name", "Qty", "Price", "Color"}, res.Columns)
	require.Len(t, res.Rows, 2, "blank rows are skipped")

	assert.Equal(t, "Bolt", res.Rows[0]["Product Name"])
	assert.Equal(t, "", res.Rows[1]["Price"], "short rows are padded")

	item := normalize.Row(res.Rows[0])
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, enums.StockStatusOutOfStock, item.Status)
	assert.Equal(t, "grey", item.CustomFields["Color"])
}

func TestParseCSVHeaderOnly(t *testing.T) {
	res, err := Parse(strings.NewReader("sku,qty\n"), enums.FileTypeCSV)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"sku", "qty"}, res.Columns)
}

func TestParseExcelUsesFirstSheet(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()

	first := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(first, "A1", &[]any{"SKU", "Product", "Stock", "Cost"}))
	require.NoError(t, wb.SetSheetRow(first, "A2", &[]any{"W-1", "Widget", 3, 2.5}))
	require.NoError(t, wb.SetSheetRow(first, "A3", &[]any{"W-2", "Gadget", 40, 1}))

	_, err := wb.NewSheet("Ignored")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Ignored", "A1", &[]any{"sku"}))
	require.NoError(t, wb.SetSheetRow("Ignored", "A2", &[]any{"nope"}))

	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	res, err := Parse(bytes.NewReader(buf.Bytes()), enums.FileTypeExcel)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	items := normalize.Rows(res.Rows)
	assert.Equal(t, "Widget", items[0].ProductName)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, enums.StockStatusLowStock, items[0].Status)
	assert.Equal(t, 40, items[1].Quantity)
}

func TestParseExcelRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("not a workbook"), enums.FileTypeExcel)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePDFRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("%PDF-1.4 truncated"), enums.FileTypePDF)
	require.Error(t, err)
}

func TestParsePDFExtractsTextAndPageCount(t *testing.T) {
	res, err := Parse(bytes.NewReader(ingesttest.PDF("Bolt 40 units")), enums.FileTypePDF)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{PDFRawTextKey, PDFPageCountKey}, res.Columns)
	assert.Contains(t, res.Text, "Bolt 40 units")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0][PDFPageCountKey])
	assert.Equal(t, res.Text, res.Rows[0][PDFRawTextKey])

	// the pseudo-row carries no inventory columns
	item := normalize.Row(res.Rows[0])
	assert.Equal(t, normalize.DefaultProductName, item.ProductName)
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, enums.StockStatusOutOfStock, item.Status)
	assert.Equal(t, "1", item.CustomFields[PDFPageCountKey])
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse(strings.NewReader("x"), enums.FileType("docx"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnsupportedFile))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "ok", truncateRunes("ok", 4))
}

func TestDetectFileType(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		mimeType string
		head     []byte
		want     enums.FileType
	}{
		{"xlsx mime", "a.bin", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil, enums.FileTypeExcel},
		{"legacy excel ext", "stock.XLS", "application/octet-stream", nil, enums.FileTypeExcel},
		{"csv with params", "a", "text/csv; charset=utf-8", nil, enums.FileTypeCSV},
		{"csv ext", "inventory.csv", "", nil, enums.FileTypeCSV},
		{"pdf mime", "scan", "application/pdf", nil, enums.FileTypePDF},
		{"pdf sniffed", "upload", "application/octet-stream", []byte("%PDF-1.7\n%âãÏÓ\n"), enums.FileTypePDF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectFileType(tc.fileName, tc.mimeType, tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := DetectFileType("photo.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnsupportedFile))
}
