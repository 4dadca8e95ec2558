package pygments

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrEmptySelection aborts a request before any session is created.
	ErrEmptySelection = errors.New("nothing selected")
	// ErrCatalogUnavailable means the Pygments installation is missing or
	// broken; fatal to the whole workflow.
	ErrCatalogUnavailable = errors.New("pygments is not available")
	// ErrWrongContext flags a transition invoked from a view that is not
	// the one it requires. No state changes.
	ErrWrongContext = errors.New("not available in this view")
)

// UnknownComponentError reports an alias the oracle cannot resolve.
// Recoverable: the host re-prompts with the rejected alias preset.
type UnknownComponentError struct {
	Kind  string // "lexer" or "formatter"
	Alias string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("no %s named %q", e.Kind, e.Alias)
}

// Host is the capability surface the workflow needs from the editor: view
// management, clipboard and file persistence. Small on purpose, so tests
// can fake it (same idea as editor.Clipboard).
type Host interface {
	// OpenScriptView shows the generated script for inspection and editing.
	OpenScriptView(code string)
	// ScriptViewText returns the current script text, which the user may
	// have edited; ok is false when the view no longer exists.
	ScriptViewText() (code string, ok bool)
	// OpenResultView presents an execution result.
	OpenResultView(out Output)
	// FocusScriptView refocuses the script view; false when it is gone.
	FocusScriptView() bool
	// CloseViews destroys the script and result views.
	CloseViews()
	// FocusOrigin returns focus to the originating buffer if still alive.
	FocusOrigin()
	WriteClipboard(text string) error
	WriteFile(path string, data []byte) error
}

type State int

const (
	StateIdle State = iota
	StateEditing
	StateResult
)

// Request describes one highlighting request as seen from the host.
type Request struct {
	Text      string // the selection, required
	ModeLabel string // the host's current language-mode label
	FileName  string // originating file name, may be empty
	ImageBase string // path stem for image-formatter output
	Lexer     string // optional preset overriding the guess
}

// Prompt carries the pick lists and defaults for the alias prompts.
type Prompt struct {
	Lexers           []string
	Formatters       []string
	DefaultLexer     string
	DefaultFormatter string
}

// Session is the state of one highlighting request. At most one is live;
// beginning a new request discards the previous one's in-memory state.
type Session struct {
	req            Request
	lexerAlias     string
	formatterAlias string
	lexerRef       ComponentRef
	formatterRef   ComponentRef
	code           string
	output         Output
}

// Workflow is the session state machine: Idle -> Editing -> Result -> Idle.
// Single-threaded by contract; the catalog cache and the formatter
// preference are only touched from the host's control thread.
type Workflow struct {
	// Run executes a generated script. Replaceable in tests; defaults to
	// a Runner on the oracle's interpreter.
	Run      func(code, imageBase, ext string) (Output, error)
	TabWidth int

	oracle *Oracle
	host   Host
	state  State
	sess   *Session

	// Last confirmed formatter alias. Seeds the next request's default,
	// survives sessions, reset only by process restart.
	lastFormatter string
}

func NewWorkflow(oracle *Oracle, host Host, interpreter string) *Workflow {
	runner := &Runner{Interpreter: interpreter}
	return &Workflow{
		Run:      runner.Run,
		TabWidth: 8,
		oracle:   oracle,
		host:     host,
	}
}

func (w *Workflow) State() State { return w.state }

// Begin starts a highlighting request: it validates the selection, loads
// both catalogs, guesses a default lexer and returns the prompt data. The
// state machine stays Idle until Confirm succeeds; Begin and Confirm
// together form one StartRequest transition, split because the host's
// prompting is modal and event-driven.
func (w *Workflow) Begin(req Request) (Prompt, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Prompt{}, ErrEmptySelection
	}
	lexers, err := w.oracle.Lexers()
	if err != nil {
		return Prompt{}, err
	}
	formatters, err := w.oracle.Formatters()
	if err != nil {
		return Prompt{}, err
	}

	// Starting over discards any session still in flight.
	w.sess = &Session{req: req}
	w.state = StateIdle

	defLexer := req.Lexer
	if defLexer == "" {
		defLexer = w.oracle.GuessLexer([]byte(req.Text), req.ModeLabel, req.FileName)
	}
	defFormatter := w.lastFormatter
	if defFormatter == "" {
		defFormatter = "html"
	}
	return Prompt{
		Lexers:           lexers,
		Formatters:       formatters,
		DefaultLexer:     defLexer,
		DefaultFormatter: defFormatter,
	}, nil
}

// Confirm resolves both chosen aliases, records the formatter preference,
// generates the script and opens it for editing. On UnknownComponentError
// nothing changes and the host may re-prompt.
func (w *Workflow) Confirm(lexerAlias, formatterAlias string) error {
	if w.sess == nil {
		return ErrWrongContext
	}
	lexerRef, err := w.oracle.ResolveLexer(lexerAlias)
	if err != nil {
		return err
	}
	formatterRef, err := w.oracle.ResolveFormatter(formatterAlias)
	if err != nil {
		return err
	}
	w.lastFormatter = formatterAlias

	s := w.sess
	s.lexerAlias = lexerAlias
	s.formatterAlias = formatterAlias
	s.lexerRef = lexerRef
	s.formatterRef = formatterRef
	s.code = Generate(s.req.Text, lexerRef, formatterRef, w.TabWidth)

	w.host.OpenScriptView(s.code)
	w.state = StateEditing
	return nil
}

// Exec runs the current script-view text and presents the result. Valid
// only while editing; the script view is kept alive so Undo can return to
// it. A failed run leaves the machine in Editing.
func (w *Workflow) Exec() error {
	if w.state != StateEditing || w.sess == nil {
		return ErrWrongContext
	}
	code, ok := w.host.ScriptViewText()
	if !ok {
		return ErrWrongContext
	}
	ext, _ := w.oracle.FormatterExtension(w.sess.formatterAlias)
	out, err := w.Run(code, w.sess.req.ImageBase, ext)
	if err != nil {
		return err
	}
	w.sess.code = code
	w.sess.output = out
	w.host.OpenResultView(out)
	w.state = StateResult
	return nil
}

// Undo returns from the result to the script view unchanged. When the
// script view no longer exists it behaves as Quit.
func (w *Workflow) Undo() error {
	if w.state != StateResult {
		return ErrWrongContext
	}
	if !w.host.FocusScriptView() {
		w.Quit()
		return nil
	}
	w.state = StateEditing
	return nil
}

// SaveResult persists the result content to path, then quits. For image
// results the written file's bytes are copied.
func (w *Workflow) SaveResult(path string) error {
	if w.state != StateResult || w.sess == nil {
		return ErrWrongContext
	}
	data := []byte(w.sess.output.Content)
	if w.sess.output.Kind == OutputImage {
		b, err := os.ReadFile(w.sess.output.Path)
		if err != nil {
			return err
		}
		data = b
	}
	if err := w.host.WriteFile(path, data); err != nil {
		return err
	}
	w.Quit()
	return nil
}

// CopyResult puts the result text on the clipboard, then quits. Empty
// content (image results included) is a silent no-op before quitting.
func (w *Workflow) CopyResult() error {
	if w.state != StateResult || w.sess == nil {
		return ErrWrongContext
	}
	if content := w.sess.output.Content; content != "" {
		if err := w.host.WriteClipboard(content); err != nil {
			return err
		}
	}
	w.Quit()
	return nil
}

// Quit is valid from any state and always succeeds: both views are
// destroyed, focus returns to the originating buffer, the session is gone.
func (w *Workflow) Quit() {
	w.host.CloseViews()
	w.host.FocusOrigin()
	w.state = StateIdle
	w.sess = nil
}
