package constants

import "strings"

// FileFormat is the coarse input class the dispatcher routes on.
type FileFormat string

const (
	TABULAR FileFormat = "TABULAR"
	PDF     FileFormat = "PDF"
	IMAGE   FileFormat = "IMAGE"
)

// AllowedExtensions holds the file extensions accepted for statement ingestion.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"xlsx": {},
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to its format class.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "csv", "xlsx":
		return TABULAR
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg":
		return IMAGE
	default:
		return ""
	}
}
