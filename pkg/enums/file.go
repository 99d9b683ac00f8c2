package enums

import "fmt"

// FileType is the parser family chosen for an upload.
type FileType string

const (
	FileTypeExcel FileType = "excel"
	FileTypeCSV   FileType = "csv"
	FileTypePDF   FileType = "pdf"
)

var validFileTypes = []FileType{FileTypeExcel, FileTypeCSV, FileTypePDF}

func (f FileType) String() string {
	return string(f)
}

func (f FileType) IsValid() bool {
	for _, candidate := range validFileTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// SourceType maps a file type onto the inventory source it produces.
func (f FileType) SourceType() SourceType {
	return SourceType(f)
}

func ParseFileType(value string) (FileType, error) {
	for _, candidate := range validFileTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file type %q", value)
}

// FileStatus describes upload processing progress.
type FileStatus string

const (
	FileStatusUploading  FileStatus = "uploading"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

func (f FileStatus) String() string {
	return string(f)
}
