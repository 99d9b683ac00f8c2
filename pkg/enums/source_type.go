package enums

import "fmt"

// SourceType identifies where an inventory source's rows came from.
type SourceType string

const (
	SourceTypeExcel       SourceType = "excel"
	SourceTypeCSV         SourceType = "csv"
	SourceTypePDF         SourceType = "pdf"
	SourceTypeGoogleSheet SourceType = "google-sheet"
	SourceTypeManual      SourceType = "manual"
)

var validSourceTypes = []SourceType{
	SourceTypeExcel,
	SourceTypeCSV,
	SourceTypePDF,
	SourceTypeGoogleSheet,
	SourceTypeManual,
}

func (s SourceType) String() string {
	return string(s)
}

// IsValid reports whether the type is known.
func (s SourceType) IsValid() bool {
	for _, candidate := range validSourceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFile reports whether the source is backed by an uploaded file.
func (s SourceType) IsFile() bool {
	return s == SourceTypeExcel || s == SourceTypeCSV || s == SourceTypePDF
}

// ParseSourceType converts raw input into a SourceType.
func ParseSourceType(value string) (SourceType, error) {
	for _, candidate := range validSourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source type %q", value)
}
