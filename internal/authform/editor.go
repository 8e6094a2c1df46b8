// Package authform implements the interactive editor behind
// `connectorctl auth edit`.
//
// The editor works on an authconfig.Draft. Every change is validated
// immediately and saved as a draft, so an editing session can be left and
// resumed later. Submitting is refused while the active variant has field
// errors.
//
// Commands understood by the editor:
//
//	show                  print the draft and its validation errors
//	type <t>              switch the variant (auto, apiKey, oauth)
//	set <field> [value]   set a field; secret fields prompt without echo
//	unset <field>         clear a field
//	submit                save the config on the gateway and quit
//	discard               drop the draft and quit
//	quit                  quit, keeping the draft
package authform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"connectorctl/internal/formatting"
	"connectorctl/pkg/authconfig"
	"connectorctl/pkg/logging"

	"github.com/chzyer/readline"
)

// LineReader is the part of *readline.Instance the editor uses.
type LineReader interface {
	Readline() (string, error)
	ReadPassword(prompt string) ([]byte, error)
	SetPrompt(prompt string)
	Close() error
}

// DraftStore persists drafts between sessions.
type DraftStore interface {
	Save(connectorID string, d authconfig.Draft) error
	Delete(connectorID string) error
}

// SubmitFunc stores a valid config on the gateway.
type SubmitFunc func(ctx context.Context, c authconfig.Config) error

// Outcome is how an editing session ended.
type Outcome int

const (
	// OutcomeKept means the user quit; the draft is saved.
	OutcomeKept Outcome = iota
	// OutcomeSubmitted means the config was stored on the gateway.
	OutcomeSubmitted
	// OutcomeDiscarded means the draft was dropped.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "kept"
	}
}

var errQuit = errors.New("quit")

// secretFields are read with ReadPassword.
var secretFields = map[string]bool{
	authconfig.FieldKey:          true,
	authconfig.FieldClientSecret: true,
}

// Editor is one editing session for one connector.
type Editor struct {
	connectorID string
	draft       authconfig.Draft
	rl          LineReader
	out         io.Writer
	store       DraftStore
	submit      SubmitFunc
	outcome     Outcome
}

// New creates an editor starting from draft.
func New(connectorID string, draft authconfig.Draft, rl LineReader, out io.Writer, store DraftStore, submit SubmitFunc) *Editor {
	return &Editor{
		connectorID: connectorID,
		draft:       draft,
		rl:          rl,
		out:         out,
		store:       store,
		submit:      submit,
	}
}

// UseReadline reads commands from a readline instance with completion for
// the editor's commands; field names follow the draft's current type. A nil
// stdin reads the terminal. The caller closes the returned instance.
func (e *Editor) UseReadline(stdin io.ReadCloser, stdout io.Writer) (*readline.Instance, error) {
	fields := readline.PcItemDynamic(func(string) []string {
		return authconfig.FieldsFor(e.draft.Type)
	})
	completer := readline.NewPrefixCompleter(
		readline.PcItem("show"),
		readline.PcItem("type",
			readline.PcItem(string(authconfig.TypeAuto)),
			readline.PcItem(string(authconfig.TypeAPIKey)),
			readline.PcItem(string(authconfig.TypeOAuth)),
		),
		readline.PcItem("set", fields),
		readline.PcItem("unset", fields),
		readline.PcItem("submit"),
		readline.PcItem("discard"),
		readline.PcItem("quit"),
		readline.PcItem("help"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          e.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           stdin,
		Stdout:          stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	e.rl = rl
	return rl, nil
}

// Draft returns the current draft.
func (e *Editor) Draft() authconfig.Draft {
	return e.draft
}

// Run reads commands until the session ends. Ctrl+D quits keeping the draft.
func (e *Editor) Run(ctx context.Context) (Outcome, error) {
	e.show()
	for {
		if err := ctx.Err(); err != nil {
			return e.outcome, err
		}

		e.rl.SetPrompt(e.prompt())
		line, err := e.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return OutcomeKept, nil
		}
		if err != nil {
			return e.outcome, fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if err := e.Execute(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				return e.outcome, nil
			}
			fmt.Fprintf(e.out, "Error: %v\n", err)
		}
	}
}

// Execute runs a single editor command.
func (e *Editor) Execute(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	command, args := parts[0], parts[1:]

	switch command {
	case "help", "?":
		e.help()
		return nil
	case "show":
		e.show()
		return nil
	case "type":
		if len(args) != 1 {
			return fmt.Errorf("usage: type <auto|apiKey|oauth>")
		}
		return e.setType(args[0])
	case "set":
		if len(args) == 0 {
			return fmt.Errorf("usage: set <field> [value]")
		}
		return e.set(args[0], strings.Join(args[1:], " "), len(args) > 1)
	case "unset":
		if len(args) != 1 {
			return fmt.Errorf("usage: unset <field>")
		}
		return e.set(args[0], "", true)
	case "submit":
		return e.doSubmit(ctx)
	case "discard":
		if err := e.store.Delete(e.connectorID); err != nil {
			logging.Debug("AuthForm", "No draft to delete for %s: %v", e.connectorID, err)
		}
		fmt.Fprintln(e.out, "Draft discarded.")
		e.outcome = OutcomeDiscarded
		return errQuit
	case "quit", "exit":
		fmt.Fprintln(e.out, "Draft kept. Run 'connectorctl auth edit "+e.connectorID+"' to continue.")
		e.outcome = OutcomeKept
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (type 'help' for a list)", command)
	}
}

// SetType switches the draft's variant.
func (e *Editor) SetType(raw string) error {
	return e.setType(raw)
}

// Set sets a field of the active variant without prompting.
func (e *Editor) Set(field, value string) error {
	return e.set(field, value, true)
}

// Submit stores the draft on the gateway and drops it locally. A draft with
// field errors is not submitted; the returned error wraps its
// authconfig.FieldErrors.
func (e *Editor) Submit(ctx context.Context) error {
	if err := e.doSubmit(ctx); !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func (e *Editor) setType(raw string) error {
	t, err := authconfig.ParseType(raw)
	if err != nil {
		return err
	}
	e.draft.SetType(t)
	e.changed("")
	return nil
}

func (e *Editor) set(field, value string, hasValue bool) error {
	if !e.isActiveField(field) {
		return fmt.Errorf("%s is not a field of %s (fields: %s)", field, e.draft.Type,
			strings.Join(authconfig.FieldsFor(e.draft.Type), ", "))
	}

	if !hasValue && secretFields[field] {
		secret, err := e.rl.ReadPassword(field + ": ")
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", field, err)
		}
		value = string(secret)
	}

	e.draft.Set(field, value)
	e.changed(field)
	return nil
}

func (e *Editor) isActiveField(field string) bool {
	for _, f := range authconfig.FieldsFor(e.draft.Type) {
		if f == field {
			return true
		}
	}
	return false
}

// changed saves the draft and reports the validation state of field, or of
// the whole draft when field is empty.
func (e *Editor) changed(field string) {
	if err := e.store.Save(e.connectorID, e.draft); err != nil {
		fmt.Fprintf(e.out, "Warning: draft not saved: %v\n", err)
	}

	errs := e.draft.Validate()
	if field == "" {
		e.printErrors(errs)
		return
	}
	if msg, ok := errs[field]; ok {
		fmt.Fprintf(e.out, "  %s: %s\n", field, msg)
	}
}

func (e *Editor) doSubmit(ctx context.Context) error {
	if errs := e.draft.Validate(); !errs.Valid() {
		return fmt.Errorf("fix the field errors before submitting: %w", errs)
	}

	if err := e.submit(ctx, e.draft.Config()); err != nil {
		return fmt.Errorf("submit failed, draft kept: %w", err)
	}
	if err := e.store.Delete(e.connectorID); err != nil {
		logging.Debug("AuthForm", "No draft to delete for %s: %v", e.connectorID, err)
	}
	fmt.Fprintf(e.out, "Saved %s authentication for %s.\n", e.draft.Type, e.connectorID)
	e.outcome = OutcomeSubmitted
	return errQuit
}

func (e *Editor) prompt() string {
	n := len(e.draft.Validate())
	if n == 0 {
		return fmt.Sprintf("%s (%s)> ", e.connectorID, e.draft.Type)
	}
	return fmt.Sprintf("%s (%s, %d errors)> ", e.connectorID, e.draft.Type, n)
}

func (e *Editor) show() {
	fmt.Fprintf(e.out, "%s: %s\n", e.connectorID, e.draft.Type)

	values := map[string]string{}
	for _, kv := range formatting.AuthFields(authconfig.Redact(e.draft.Config())) {
		values[kv[0]] = kv[1]
	}
	for _, field := range authconfig.FieldsFor(e.draft.Type) {
		fmt.Fprintf(e.out, "  %-18s %s\n", field, values[field])
	}
	e.printErrors(e.draft.Validate())
}

func (e *Editor) printErrors(errs authconfig.FieldErrors) {
	if errs.Valid() {
		fmt.Fprintln(e.out, "  (valid)")
		return
	}
	for _, field := range errs.Fields() {
		fmt.Fprintf(e.out, "  ! %s: %s\n", field, errs[field])
	}
}

func (e *Editor) help() {
	fmt.Fprintln(e.out, `Commands:
  show                  print the draft and its validation errors
  type <t>              switch the type (auto, apiKey, oauth)
  set <field> [value]   set a field; key and clientSecret prompt when no value is given
  unset <field>         clear a field
  submit                save on the gateway and quit
  discard               drop the draft and quit
  quit                  quit, keeping the draft`)

	fields := authconfig.FieldsFor(e.draft.Type)
	if len(fields) > 0 {
		sorted := append([]string(nil), fields...)
		sort.Strings(sorted)
		fmt.Fprintf(e.out, "Fields of %s: %s\n", e.draft.Type, strings.Join(sorted, ", "))
	}
}
