package ux

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moduleRow struct {
	Name  string `json:"name" yaml:"name"`
	Files int    `json:"files" yaml:"files"`
}

type moduleTable []moduleRow

func (m moduleTable) WriteText(w io.Writer) error {
	for _, r := range m {
		if _, err := fmt.Fprintf(w, "%s=%d\n", r.Name, r.Files); err != nil {
			return err
		}
	}
	return nil
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"yaml", false},
		{"text", false},
		{"", false},
		{"xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := NewFormatter(tt.format, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func format(t *testing.T, name string, compact bool, data any) string {
	t.Helper()
	var buf bytes.Buffer
	f, err := NewFormatter(name, &FormatterOptions{Writer: &buf, Compact: compact})
	require.NoError(t, err)
	require.NoError(t, f.Format(data))
	return buf.String()
}

func TestJSONFormatter(t *testing.T) {
	out := format(t, "json", false, moduleRow{Name: "main", Files: 4})
	assert.Contains(t, out, `"name": "main"`)
	assert.Contains(t, out, `"files": 4`)

	compact := format(t, "json", true, moduleRow{Name: "main", Files: 4})
	assert.Equal(t, 1, strings.Count(compact, "\n"))
}

func TestYAMLFormatter(t *testing.T) {
	out := format(t, "yaml", false, []moduleRow{{Name: "main", Files: 4}})
	assert.Contains(t, out, "- name: main")
	assert.Contains(t, out, "files: 4")
}

func TestTextFormatter(t *testing.T) {
	assert.Equal(t, "a.css\nb.css\n", format(t, "text", false, []string{"a.css", "b.css"}))
	assert.Equal(t, "main=4\ntest=1\n", format(t, "text", false, moduleTable{{"main", 4}, {"test", 1}}))
	assert.Equal(t, "hello\n", format(t, "text", false, "hello"))

	var buf bytes.Buffer
	f, err := NewFormatter("text", &FormatterOptions{Writer: &buf})
	require.NoError(t, err)
	assert.Error(t, f.Format(moduleRow{Name: "main"}))
}
