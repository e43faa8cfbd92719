package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.Now = func() time.Time { return time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }

	payload, err := exporter.Render(Dataset{
		Headers: []string{"student_id", "first_name", "total_score"},
		Rows: []map[string]string{
			{"student_id": "10001", "first_name": "Somchai", "total_score": "102"},
			{"student_id": "10002", "first_name": "Malee", "total_score": "87"},
		},
	}, "MATH101 Mathematics")
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "empty")
	require.Error(t, err)
}
