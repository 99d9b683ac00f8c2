package ingest

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
)

var mimeTypesByFileType = map[enums.FileType][]string{
	enums.FileTypeExcel: {
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
	},
	enums.FileTypeCSV: {"text/csv", "application/csv"},
	enums.FileTypePDF: {"application/pdf"},
}

var extensionsByFileType = map[enums.FileType][]string{
	enums.FileTypeExcel: {".xlsx", ".xls"},
	enums.FileTypeCSV:   {".csv"},
	enums.FileTypePDF:   {".pdf"},
}

// DetectFileType picks the parser for an upload from its declared MIME type and file name.
// When both are inconclusive the leading bytes are sniffed; head may be nil.
func DetectFileType(fileName, mimeType string, head []byte) (enums.FileType, error) {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	if strings.Contains(mediaType, "spreadsheet") {
		return enums.FileTypeExcel, nil
	}
	if ft, ok := lookup(mimeTypesByFileType, mediaType); ok {
		return ft, nil
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ft, ok := lookup(extensionsByFileType, ext); ok {
		return ft, nil
	}

	if len(head) > 0 {
		sniffed := mimetype.Detect(head)
		for ft, types := range mimeTypesByFileType {
			if sniffed.Is(types[0]) {
				return ft, nil
			}
		}
	}

	return "", pkgerrors.New(pkgerrors.CodeUnsupportedFile, "Unsupported file type. Only Excel, PDF, and CSV are allowed.").
		WithDetails(map[string]any{"file_name": fileName, "mime_type": mimeType})
}

func lookup(table map[enums.FileType][]string, value string) (enums.FileType, bool) {
	if value == "" {
		return "", false
	}
	for ft, candidates := range table {
		for _, candidate := range candidates {
			if candidate == value {
				return ft, true
			}
		}
	}
	return "", false
}
