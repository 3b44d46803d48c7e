// Package reports holds the report formats, the format selector and the
// requester that fetches rendered reports from the report service.
package reports

import (
	"strings"

	"inventory_reports/platform/apperr"
)

// Format is a report output format token.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatHTML Format = "html"
)

// DownloadBaseName is the filename stem used for saved reports.
const DownloadBaseName = "inventory-report"

var contentTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatCSV:  "text/csv",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatPPTX: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	FormatHTML: "text/html",
}

// Formats returns every supported format in display order.
func Formats() []Format {
	return []Format{FormatPDF, FormatXLSX, FormatCSV, FormatDOCX, FormatPPTX, FormatHTML}
}

// Tokens returns the wire tokens of every supported format.
func Tokens() []string {
	formats := Formats()
	tokens := make([]string, len(formats))
	for i, f := range formats {
		tokens[i] = string(f)
	}
	return tokens
}

// ParseFormat converts a wire token into a Format. Tokens are matched exactly;
// anything else is an InvalidFormatSelection error.
func ParseFormat(token string) (Format, error) {
	f := Format(token)
	if !f.Valid() {
		return "", apperr.InvalidFormat(token).WithOp("reports.parse_format")
	}
	return f, nil
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	_, ok := contentTypes[f]
	return ok
}

// Extension is the filename extension, which is the token itself.
func (f Format) Extension() string {
	return string(f)
}

// Filename is the download filename for f, e.g. "inventory-report.csv".
func (f Format) Filename() string {
	return DownloadBaseName + "." + f.Extension()
}

// ContentType is the canonical MIME type for f.
func (f Format) ContentType() string {
	return contentTypes[f]
}

// Matches reports whether a response Content-Type header is compatible with f.
// Parameters such as charset are ignored.
func (f Format) Matches(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), f.ContentType())
}
