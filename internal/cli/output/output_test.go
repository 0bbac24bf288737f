package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Calls int    `json:"calls" yaml:"calls"`
}

func TestPrint(t *testing.T) {
	data := sample{Name: "ping", Calls: 3}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, data))
	assert.Contains(t, buf.String(), `"name": "ping"`)

	buf.Reset()
	require.NoError(t, Print(&buf, FormatYAML, data))
	assert.Equal(t, "name: ping\ncalls: 3\n", buf.String())

	buf.Reset()
	require.NoError(t, Print(&buf, FormatTable, data), "non-table data falls back to JSON")
	assert.Contains(t, buf.String(), `"calls": 3`)

	assert.Error(t, Print(&buf, Format("csv"), data))
}

func TestPrintTable(t *testing.T) {
	tbl := NewTable("method", "calls")
	tbl.AddRow("ping", "3")
	tbl.AddRow("echo", "12")

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, tbl))

	out := buf.String()
	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "ping")
	assert.Contains(t, out, "12")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{{"Requests", "10"}, {"Errors", "1"}}))
	assert.Contains(t, buf.String(), "Requests")
	assert.Contains(t, buf.String(), "10")
}
