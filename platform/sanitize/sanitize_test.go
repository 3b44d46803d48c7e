package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Widget  ", "Widget"},
		{"Blue\n\tWidget", "Blue Widget"},
		{"<b>Bold</b> bolt", "Bold bolt"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", "alert(1)"},
		{"Nuts &amp; bolts", "Nuts & bolts"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Line(tc.in), "input %q", tc.in)
	}
}
