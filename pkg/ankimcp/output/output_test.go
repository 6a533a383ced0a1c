package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestWriteObject_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatJSON, sample{Name: "test", Count: 42}))

	var decoded sample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sample{Name: "test", Count: 42}, decoded)
}

func TestWriteObject_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatYAML, sample{Name: "test", Count: 42}))

	var decoded sample
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sample{Name: "test", Count: 42}, decoded)
}

func TestWriteObject_Errors(t *testing.T) {
	var buf bytes.Buffer

	err := WriteObject(&buf, FormatText, sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specific formatter")

	err = WriteObject(&buf, Format("xml"), sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	err = WriteObject(&buf, FormatJSON, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{"": FormatText, "text": FormatText, "json": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("table")
	require.Error(t, err)
}
