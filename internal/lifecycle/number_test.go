package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberFromFilenames(t *testing.T) {
	n, ok := NumberFromFilenames([]string{"cover letter.pdf", "attachments/O.14-2026 Zoning Amendment.docx"})
	require.True(t, ok)
	assert.Equal(t, "O.14-2026", n)

	_, ok = NumberFromFilenames([]string{"Ordinance 14.docx", "O.14-26.pdf"})
	assert.False(t, ok)
}

func TestOrdinanceNumberPrefersClassifier(t *testing.T) {
	got := OrdinanceNumber(map[string]any{"ordinance_number": " 2026-07 "}, []string{"O.3-2026.pdf"})
	require.NotNil(t, got)
	assert.Equal(t, "2026-07", *got)

	got = OrdinanceNumber(map[string]any{"ordinance_number": 7}, []string{"O.3-2026.pdf"})
	require.NotNil(t, got)
	assert.Equal(t, "O.3-2026", *got)

	assert.Nil(t, OrdinanceNumber(nil, nil))
}
