package reports

import (
	"time"

	"inventory_reports/platform/apperr"
)

// Mode tells the report service what the payload is for.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModePreview  Mode = "preview"
	// ModeSample renders the service's built-in sample data instead of the store.
	ModeSample Mode = "sample"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeGenerate, ModePreview, ModeSample:
		return true
	}
	return false
}

// Payload is a complete rendered report. Data is never mutated after the
// requester returns it.
type Payload struct {
	Format      Format
	Mode        Mode
	ContentType string
	Data        []byte
	ReceivedAt  time.Time
}

// Size returns the payload length in bytes.
func (p Payload) Size() int {
	return len(p.Data)
}

// GenerationDetails is attached to ReportGenerationFailed errors.
type GenerationDetails struct {
	Format     Format `json:"format"`
	Mode       Mode   `json:"mode"`
	StatusCode int    `json:"statusCode,omitempty"`
	ServiceURL string `json:"serviceUrl"`
}

// generationFailed builds the single failure outcome of a report request.
func generationFailed(details GenerationDetails, message string, err error) *apperr.Error {
	return apperr.Wrap(apperr.KindReportGeneration, message, err).
		WithOp("reports.request").
		WithDetails(details)
}

// FailureDetails returns the diagnostics of a ReportGenerationFailed error.
func FailureDetails(err error) (GenerationDetails, bool) {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindReportGeneration {
		return GenerationDetails{}, false
	}
	d, ok := e.Details.(GenerationDetails)
	return d, ok
}
