package output

import (
	"bytes"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/uiv1/internal/model"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes reports as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}

// FormatSingle writes a single report as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, r *model.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// YAMLFormatter formats reports as a YAML sequence.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes reports as a YAML sequence keyed by their JSON field names.
func (f *YAMLFormatter) Format(w io.Writer, reports []model.Report) error {
	// model.Report only carries json tags; round-trip through a generic
	// form so keys match the JSON output.
	data, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	var generic []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	if generic == nil {
		generic = []map[string]any{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}
