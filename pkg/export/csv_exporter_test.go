package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRendersRowsInHeaderOrder(t *testing.T) {
	exporter := NewCSVExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"Time", "Action", "Actor", "Notes"},
		Rows: [][]string{
			{"2026-02-01T08:00:00Z", "receive", "Counselor One", ""},
			{"2026-02-01T09:30:00Z", "assign", "Counselor One", "assigned to user-2"},
		},
	})
	require.NoError(t, err)
	require.Equal(t,
		"Time,Action,Actor,Notes\n"+
			"2026-02-01T08:00:00Z,receive,Counselor One,\n"+
			"2026-02-01T09:30:00Z,assign,Counselor One,assigned to user-2\n",
		string(payload))
}

func TestCSVExporterPadsShortRows(t *testing.T) {
	exporter := NewCSVExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"Time", "Action", "Notes"},
		Rows:    [][]string{{"2026-02-01T08:00:00Z", "close"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Time,Action,Notes\n2026-02-01T08:00:00Z,close,\n", string(payload))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{Rows: [][]string{{"x"}}})
	require.Error(t, err)
}
