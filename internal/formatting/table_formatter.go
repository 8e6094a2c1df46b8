package formatting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"connectorctl/internal/backend"
	"connectorctl/internal/orchestrator"
	"connectorctl/internal/probe"
	"connectorctl/pkg/authconfig"
	"connectorctl/pkg/connection"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders kubectl-style plain tables.
type TableFormatter struct {
	options Options
}

func (f *TableFormatter) Options() Options {
	return f.options
}

func (f *TableFormatter) Write(w io.Writer, v interface{}) error {
	switch d := v.(type) {
	case []backend.Connector:
		return f.connectors(w, d)
	case backend.Connector:
		return f.connector(w, d)
	case *backend.Connector:
		return f.connector(w, *d)
	case []connection.ConnectorStatus:
		return f.statuses(w, d)
	case connection.ConnectorStatus:
		return f.statuses(w, []connection.ConnectorStatus{d})
	case []orchestrator.Flow:
		return f.flows(w, d)
	case orchestrator.StatusEvent:
		return f.event(w, d)
	case *probe.Result:
		return f.probe(w, d)
	case ValidationResult:
		return f.validation(w, d)
	case authconfig.FieldErrors:
		return f.fieldErrors(w, d)
	case map[string]interface{}:
		return f.object(w, d)
	case string:
		_, err := fmt.Fprintln(w, d)
		return err
	default:
		_, err := fmt.Fprintf(w, "%v\n", d)
		return err
	}
}

func (f *TableFormatter) wide() bool {
	return f.options.Format == FormatWide
}

// newTable creates a borderless table with upper-case headers.
func (f *TableFormatter) newTable(headers ...interface{}) table.Writer {
	t := table.NewWriter()
	style := table.StyleLight
	style.Options = table.OptionsNoBordersAndSeparators
	style.Box.PaddingLeft = ""
	style.Box.PaddingRight = "   "
	style.Format.Header = text.FormatUpper
	t.SetStyle(style)
	if len(headers) > 0 && !f.options.NoHeaders {
		t.AppendHeader(headers)
	}
	return t
}

func (f *TableFormatter) render(w io.Writer, t table.Writer) error {
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func (f *TableFormatter) empty(w io.Writer, what string) error {
	_, err := fmt.Fprintf(w, "No %s found\n", what)
	return err
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) state(s connection.State) string {
	switch s {
	case connection.StateConnected:
		return f.colorize(text.FgGreen, s.String())
	case connection.StateConnecting:
		return f.colorize(text.FgYellow, s.String())
	case connection.StateError:
		return f.colorize(text.FgRed, s.String())
	default:
		return f.colorize(text.Faint, s.String())
	}
}

func (f *TableFormatter) connectors(w io.Writer, cs []backend.Connector) error {
	if len(cs) == 0 {
		return f.empty(w, "connectors")
	}

	headers := []interface{}{"ID", "Name", "Kind", "Auth"}
	if f.wide() {
		headers = append(headers, "URL", "Description")
	}
	t := f.newTable(headers...)
	for _, c := range cs {
		row := table.Row{c.ID, c.Name, string(c.Kind), string(c.Auth.Type())}
		if f.wide() {
			row = append(row, c.URL, Truncate(c.Description, 60))
		}
		t.AppendRow(row)
	}
	return f.render(w, t)
}

func (f *TableFormatter) connector(w io.Writer, c backend.Connector) error {
	t := f.newTable()
	t.AppendRow(table.Row{"ID:", c.ID})
	t.AppendRow(table.Row{"Name:", c.Name})
	t.AppendRow(table.Row{"Kind:", string(c.Kind)})
	t.AppendRow(table.Row{"URL:", c.URL})
	if c.Description != "" {
		t.AppendRow(table.Row{"Description:", c.Description})
	}
	t.AppendRow(table.Row{"Auth:", string(c.Auth.Type())})
	for _, kv := range AuthFields(authconfig.Redact(c.Auth.Config)) {
		t.AppendRow(table.Row{"  " + kv[0] + ":", kv[1]})
	}
	return f.render(w, t)
}

func (f *TableFormatter) statuses(w io.Writer, ss []connection.ConnectorStatus) error {
	if len(ss) == 0 {
		return f.empty(w, "connectors")
	}

	t := f.newTable("Connector", "State", "Auth", "Last Error")
	for _, s := range ss {
		auth := "required"
		if !s.RequiresAuth {
			auth = "none"
		}
		t.AppendRow(table.Row{s.ConnectorID, f.state(s.State), auth, Truncate(s.LastError, 80)})
	}
	return f.render(w, t)
}

func (f *TableFormatter) flows(w io.Writer, flows []orchestrator.Flow) error {
	if len(flows) == 0 {
		return f.empty(w, "active flows")
	}

	headers := []interface{}{"Connector", "Flow", "Started"}
	if f.wide() {
		headers = append(headers, "Authorization URL")
	}
	t := f.newTable(headers...)
	for _, fl := range flows {
		row := table.Row{fl.ConnectorID, fl.BackendFlowID, fl.StartedAt.Format(time.RFC3339)}
		if f.wide() {
			row = append(row, fl.AuthorizationURL)
		}
		t.AppendRow(row)
	}
	return f.render(w, t)
}

// event renders one line per status change, for streaming output.
func (f *TableFormatter) event(w io.Writer, e orchestrator.StatusEvent) error {
	line := fmt.Sprintf("%s  %s  %s -> %s  (%s)",
		e.Timestamp.Format("15:04:05"), e.ConnectorID,
		e.OldState, f.state(e.Status.State), e.Source)
	switch {
	case e.Err != nil:
		line += ": " + e.Err.Error()
	case e.Status.LastError != "":
		line += ": " + e.Status.LastError
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func (f *TableFormatter) probe(w io.Writer, r *probe.Result) error {
	t := f.newTable()
	t.AppendRow(table.Row{"URL:", r.URL})
	t.AppendRow(table.Row{"Server:", strings.TrimSpace(r.ServerName + " " + r.ServerVersion)})
	t.AppendRow(table.Row{"Protocol:", r.ProtocolVersion})
	t.AppendRow(table.Row{"Latency:", r.Latency.Round(time.Millisecond).String()})
	tools := "none"
	if len(r.Tools) > 0 {
		tools = fmt.Sprintf("%d (%s)", len(r.Tools), Truncate(strings.Join(r.Tools, ", "), 80))
	}
	t.AppendRow(table.Row{"Tools:", tools})
	return f.render(w, t)
}

func (f *TableFormatter) validation(w io.Writer, r ValidationResult) error {
	switch {
	case r.Error != "":
		_, err := fmt.Fprintf(w, "%s: %s\n", r.File, f.colorize(text.FgRed, r.Error))
		return err
	case r.Valid:
		if _, err := fmt.Fprintf(w, "%s: %s (%s)\n", r.File, f.colorize(text.FgGreen, "valid"), r.Type); err != nil {
			return err
		}
		return f.consentPreview(w, r)
	}
	if _, err := fmt.Fprintf(w, "%s: %s (%s)\n", r.File, f.colorize(text.FgRed, "invalid"), r.Type); err != nil {
		return err
	}
	return f.fieldErrors(w, r.Errors)
}

func (f *TableFormatter) consentPreview(w io.Writer, r ValidationResult) error {
	if r.ConsentURL == "" {
		return nil
	}
	scopes := "(none)"
	if len(r.Scopes) > 0 {
		scopes = strings.Join(r.Scopes, ", ")
	}
	_, err := fmt.Fprintf(w, "  Scopes:  %s\n  Consent: %s\n", scopes, r.ConsentURL)
	return err
}

func (f *TableFormatter) fieldErrors(w io.Writer, fe authconfig.FieldErrors) error {
	if fe.Valid() {
		_, err := fmt.Fprintln(w, "No validation errors")
		return err
	}
	t := f.newTable("Field", "Error")
	for _, field := range fe.Fields() {
		t.AppendRow(table.Row{field, fe[field]})
	}
	return f.render(w, t)
}

func (f *TableFormatter) object(w io.Writer, data map[string]interface{}) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := f.newTable("Key", "Value")
	for _, k := range keys {
		t.AppendRow(table.Row{k, Truncate(fmt.Sprintf("%v", data[k]), 100)})
	}
	return f.render(w, t)
}
