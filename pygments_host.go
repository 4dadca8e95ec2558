package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/osmatsuda/pygments-output/pygments"
)

const scriptViewLabel = "[pygments] script.py"

// systemClipboard bridges editor.Clipboard to the OS clipboard. Tests use
// memoryClipboard instead.
type systemClipboard struct{}

func (systemClipboard) GetText() (string, error) { return clipboard.ReadAll() }
func (systemClipboard) SetText(s string) error   { return clipboard.WriteAll(s) }

// tuiHost implements pygments.Host on top of the buffer slots: the script
// and result views are ordinary buffers tagged with a role, so buffer
// cycling, drawing and syntax dispatch treat them like any other file.
type tuiHost struct {
	app *appState
}

func (h *tuiHost) findRole(role string) int {
	for i := range h.app.buffers {
		if h.app.buffers[i].pygRole == role {
			return i
		}
	}
	return -1
}

func (h *tuiHost) OpenScriptView(code string) {
	app := h.app
	idx := h.findRole("script")
	if idx < 0 {
		app.addBuffer()
		idx = app.bufIdx
	}
	slot := &app.buffers[idx]
	slot.pygRole = "script"
	slot.path = scriptViewLabel
	slot.dirty = false
	slot.mode = syntaxNone
	slot.ed.SetRunes([]rune(code))
	slot.ed.Caret = 0
	app.bufIdx = idx
	app.syncActiveBuffer()
	app.touchActiveBufferText()
}

func (h *tuiHost) ScriptViewText() (string, bool) {
	idx := h.findRole("script")
	if idx < 0 {
		return "", false
	}
	return h.app.buffers[idx].ed.String(), true
}

func (h *tuiHost) OpenResultView(out pygments.Output) {
	app := h.app
	idx := h.findRole("result")
	if idx < 0 {
		app.addBuffer()
		idx = app.bufIdx
	}
	label := "[pygments] output"
	if out.Ext != "" {
		label += "." + out.Ext
	}
	content := out.Content
	if out.Kind == pygments.OutputImage {
		content = fmt.Sprintf("Image written to %s\n", out.Path)
	}
	slot := &app.buffers[idx]
	slot.pygRole = "result"
	slot.path = label
	slot.dirty = false
	slot.mode = syntaxNone
	slot.ed.SetRunes([]rune(content))
	slot.ed.Caret = 0
	app.bufIdx = idx
	app.syncActiveBuffer()
	app.touchActiveBufferText()
}

func (h *tuiHost) FocusScriptView() bool {
	idx := h.findRole("script")
	if idx < 0 {
		return false
	}
	h.app.bufIdx = idx
	h.app.syncActiveBuffer()
	return true
}

func (h *tuiHost) CloseViews() {
	app := h.app
	for i := len(app.buffers) - 1; i >= 0; i-- {
		if app.buffers[i].pygRole == "" {
			continue
		}
		app.buffers = append(app.buffers[:i], app.buffers[i+1:]...)
		if app.bufIdx >= i && app.bufIdx > 0 {
			app.bufIdx--
		}
	}
	app.syncActiveBuffer()
}

func (h *tuiHost) FocusOrigin() {
	app := h.app
	if app.pygOrigin != nil {
		for i := range app.buffers {
			if app.buffers[i].ed == app.pygOrigin {
				app.bufIdx = i
				break
			}
		}
	}
	app.syncActiveBuffer()
}

func (h *tuiHost) WriteClipboard(text string) error {
	if h.app.clipboard == nil {
		return fmt.Errorf("no clipboard")
	}
	return h.app.clipboard.SetText(text)
}

func (h *tuiHost) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// imageBase derives the path stem for image-formatter output: next to the
// source file when it has a path, under the open root otherwise.
func imageBase(app *appState) string {
	path := app.currentPath
	if path != "" && !strings.HasPrefix(path, "[pygments]") {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	root := app.openRoot
	if root == "" {
		root, _ = os.Getwd()
	}
	return filepath.Join(root, "pygments-output")
}

// beginHighlightRequest runs the first half of a highlighting request: it
// hands the selection to the workflow and, on success, opens the lexer
// prompt seeded with the guessed default.
func beginHighlightRequest(app *appState) {
	if app == nil || app.ed == nil || app.pyg == nil {
		return
	}
	if slot := app.activeSlot(); slot != nil && slot.pygRole != "" {
		app.lastEvent = "PYGMENTS: already in a highlight session (Esc quits it)"
		return
	}
	req := pygments.Request{
		Text:      app.ed.SelectedText(),
		ModeLabel: syntaxKindLabel(bufferSyntaxKind(app, app.currentPath, app.ed.Runes())),
		ImageBase: imageBase(app),
	}
	if app.currentPath != "" {
		req.FileName = filepath.Base(app.currentPath)
	}
	prompt, err := app.pyg.Begin(req)
	if err != nil {
		app.lastEvent = fmt.Sprintf("PYGMENTS ERR: %v", err)
		return
	}
	app.pygPrompt = prompt
	app.pygOrigin = app.ed
	app.pygLexerChoice = ""
	openHighlightPrompt(app, "pyg-lexer", prompt.DefaultLexer, "")
}

// openHighlightPrompt opens one of the two alias prompts on the modal input
// line. preset pre-fills the value (used when re-prompting a rejected alias).
func openHighlightPrompt(app *appState, kind, def, preset string) {
	app.inputActive = true
	app.inputKind = kind
	app.inputValue = preset
	if kind == "pyg-lexer" {
		app.inputPrompt = fmt.Sprintf("Lexer [%s]: ", def)
		app.inputOptions = app.pygPrompt.Lexers
	} else {
		app.inputPrompt = fmt.Sprintf("Formatter [%s]: ", def)
		app.inputOptions = app.pygPrompt.Formatters
	}
	app.lastEvent = "Enter confirms, Tab completes, Esc cancels"
}

// confirmHighlightChoices resolves the picked aliases. An unknown alias
// reopens the offending prompt with the rejected value preset.
func confirmHighlightChoices(app *appState, lexer, formatter string) {
	err := app.pyg.Confirm(lexer, formatter)
	if err == nil {
		app.pygLexerChoice = lexer
		app.lastEvent = "Script ready: edit it, then Ctrl+R runs it (Esc aborts)"
		return
	}
	var unknown *pygments.UnknownComponentError
	if errors.As(err, &unknown) {
		app.lastEvent = fmt.Sprintf("PYGMENTS: %v", err)
		if unknown.Kind == "lexer" {
			openHighlightPrompt(app, "pyg-lexer", app.pygPrompt.DefaultLexer, unknown.Alias)
		} else {
			app.pygLexerChoice = lexer
			openHighlightPrompt(app, "pyg-formatter", app.pygPrompt.DefaultFormatter, unknown.Alias)
		}
		return
	}
	app.lastEvent = fmt.Sprintf("PYGMENTS ERR: %v", err)
}

// execHighlightScript runs the script view's current text through the
// interpreter and opens the result view.
func execHighlightScript(app *appState) {
	if app == nil || app.pyg == nil {
		return
	}
	if slot := app.activeSlot(); slot == nil || slot.pygRole != "script" {
		app.lastEvent = "RUN: not in a highlight script view"
		return
	}
	if err := app.pyg.Exec(); err != nil {
		app.lastEvent = fmt.Sprintf("RUN ERR: %v", err)
		return
	}
	app.lastEvent = "Ran script: Ctrl+W saves, Ctrl+C copies, Ctrl+U edits again, Esc discards"
}

func undoHighlightResult(app *appState) {
	if err := app.pyg.Undo(); err != nil {
		app.lastEvent = fmt.Sprintf("PYGMENTS ERR: %v", err)
		return
	}
	if app.pyg.State() == pygments.StateIdle {
		app.lastEvent = "Script view gone, highlight session closed"
		return
	}
	app.lastEvent = "Back in the script view"
}

func copyHighlightResult(app *appState) {
	if err := app.pyg.CopyResult(); err != nil {
		app.lastEvent = fmt.Sprintf("COPY ERR: %v", err)
		return
	}
	app.lastEvent = "Copied output, highlight session closed"
}

func saveHighlightResult(app *appState, name string) {
	path := strings.TrimSpace(name)
	if path == "" {
		app.lastEvent = "SAVE ERR: filename required"
		return
	}
	if !filepath.IsAbs(path) {
		root := app.openRoot
		if root == "" {
			root, _ = os.Getwd()
		}
		path = filepath.Join(root, path)
	}
	if err := app.pyg.SaveResult(path); err != nil {
		app.lastEvent = fmt.Sprintf("SAVE ERR: %v", err)
		return
	}
	app.lastEvent = fmt.Sprintf("Saved output to %s, highlight session closed", path)
}

func quitHighlightWorkflow(app *appState) {
	if app == nil || app.pyg == nil {
		return
	}
	app.pyg.Quit()
	app.pygOrigin = nil
	app.lastEvent = "Highlight session closed"
}

// completeInput extends the modal input value against the prompt's option
// list: a unique match fills in fully, several matches extend to the
// longest shared prefix.
func completeInput(app *appState) {
	if len(app.inputOptions) == 0 {
		return
	}
	prefix := app.inputValue
	matches := make([]string, 0, 8)
	for _, opt := range app.inputOptions {
		if strings.HasPrefix(opt, prefix) {
			matches = append(matches, opt)
		}
	}
	switch len(matches) {
	case 0:
		app.lastEvent = fmt.Sprintf("No alias starts with %q", prefix)
	case 1:
		app.inputValue = matches[0]
		app.lastEvent = matches[0]
	default:
		app.inputValue = commonPrefix(matches)
		shown := matches
		if len(shown) > 8 {
			shown = shown[:8]
		}
		app.lastEvent = fmt.Sprintf("%d matches: %s", len(matches), strings.Join(shown, " "))
	}
}

func commonPrefix(opts []string) string {
	if len(opts) == 0 {
		return ""
	}
	prefix := opts[0]
	for _, opt := range opts[1:] {
		for !strings.HasPrefix(opt, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
