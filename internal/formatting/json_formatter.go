package formatting

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter writes indented JSON.
type JSONFormatter struct {
	options Options
}

func (f *JSONFormatter) Write(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func (f *JSONFormatter) Options() Options {
	return f.options
}
