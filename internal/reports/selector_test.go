package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory_reports/platform/apperr"
)

func TestSelector_SetAcceptsOnlyKnownFormats(t *testing.T) {
	s := NewSelector(FormatPDF)

	require.NoError(t, s.Set(FormatDOCX))
	assert.Equal(t, FormatDOCX, s.Get())

	err := s.Set(Format("PDF"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidFormat))
	assert.Equal(t, FormatDOCX, s.Get(), "rejected value must not change state")

	err = s.SetToken("odt")
	assert.True(t, apperr.Is(err, apperr.KindInvalidFormat))
	require.NoError(t, s.SetToken("pptx"))
	assert.Equal(t, FormatPPTX, s.Get())
}

func TestNewSelector_InvalidInitialFallsBackToPDF(t *testing.T) {
	assert.Equal(t, FormatPDF, NewSelector(Format("")).Get())
	assert.Equal(t, FormatCSV, NewSelector(FormatCSV).Get())
}

func TestFormat_FilenameUsesTokenVerbatim(t *testing.T) {
	want := map[Format]string{
		FormatPDF:  "inventory-report.pdf",
		FormatXLSX: "inventory-report.xlsx",
		FormatCSV:  "inventory-report.csv",
		FormatDOCX: "inventory-report.docx",
		FormatPPTX: "inventory-report.pptx",
		FormatHTML: "inventory-report.html",
	}
	for f, name := range want {
		assert.Equal(t, name, f.Filename())
	}
	assert.Len(t, Formats(), 6)
	assert.ElementsMatch(t, []string{"pdf", "xlsx", "csv", "docx", "pptx", "html"}, Tokens())
}

func TestFormat_Matches(t *testing.T) {
	assert.True(t, FormatCSV.Matches("text/csv; charset=utf-8"))
	assert.True(t, FormatPDF.Matches("Application/PDF"))
	assert.False(t, FormatPDF.Matches("text/html"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("html")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	_, err = ParseFormat(" pdf")
	assert.True(t, apperr.Is(err, apperr.KindInvalidFormat))
}
