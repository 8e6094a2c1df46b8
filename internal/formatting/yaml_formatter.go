package formatting

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// YAMLFormatter writes YAML converted from each value's JSON form, so json
// tags and custom marshalers apply.
type YAMLFormatter struct {
	options Options
}

func (f *YAMLFormatter) Write(w io.Writer, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = w.Write(b)
	return err
}

func (f *YAMLFormatter) Options() Options {
	return f.options
}
