package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"student_id", "first_name", "total_score"},
		Rows: []map[string]string{
			{"student_id": "10001", "first_name": "Somchai", "total_score": "102"},
			{"student_id": "10002", "first_name": "Suda", "total_score": "88"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)

	// BOM prefix for spreadsheet compatibility.
	require.True(t, len(out) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])

	lines := strings.Split(strings.TrimSpace(string(out[3:])), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "student_id,first_name,total_score", lines[0])
	assert.Equal(t, "10001,Somchai,102", lines[1])
	assert.Equal(t, "10002,Suda,88", lines[2])
}

func TestCSVExporterWithoutBOM(t *testing.T) {
	exporter := &CSVExporter{}
	out, err := exporter.Render(Dataset{Headers: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
