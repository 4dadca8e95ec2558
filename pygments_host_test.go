package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/osmatsuda/pygments-output/editor"
	"github.com/osmatsuda/pygments-output/pygments"
)

// stubOracleExec answers every oracle script without an interpreter. The
// nosuch* aliases resolve to nothing so tests can exercise re-prompting.
func stubOracleExec(script string) (string, error) {
	switch {
	case strings.Contains(script, "get_all_lexers"):
		return "go python python3 text", nil
	case strings.Contains(script, "get_all_formatters"):
		return "html img terminal", nil
	case strings.Contains(script, "filenames"):
		return "*.html", nil
	case strings.Contains(script, "type(obj)"):
		if strings.Contains(script, "'nosuch") {
			return "", nil
		}
		if strings.Contains(script, "get_formatter_by_name") {
			return "pygments.formatters.html HtmlFormatter", nil
		}
		return "pygments.lexers.python Python3Lexer", nil
	case strings.Contains(script, "guess_lexer"):
		return "python3", nil
	case strings.Contains(script, "get_lexer_by_name"), strings.Contains(script, "get_lexer_for_filename"):
		return "python3", nil
	}
	return "", fmt.Errorf("unexpected script:\n%s", script)
}

// newTestApp builds an appState with an in-memory clipboard, a stubbed
// oracle and an echo runner, so no subprocess ever starts.
func newTestApp(t *testing.T) *appState {
	t.Helper()
	clip := &memoryClipboard{}
	ed := editor.NewEditor("")
	ed.SetClipboard(clip)
	app := &appState{syntaxHL: newSyntaxHighlighter(), clipboard: clip}
	app.initBuffers(ed)
	app.pyg = pygments.NewWorkflow(&pygments.Oracle{Exec: stubOracleExec}, &tuiHost{app: app}, "python3")
	app.pyg.TabWidth = tabWidth
	app.pyg.Run = func(code, imageBase, ext string) (pygments.Output, error) {
		return pygments.Output{Kind: pygments.OutputText, Content: "<html>" + code + "</html>", Ext: ext}, nil
	}
	return app
}

func selectAll(app *appState) {
	app.ed.Sel.Active = true
	app.ed.Sel.A = 0
	app.ed.Sel.B = app.ed.RuneLen()
}

func pressEnter(app *appState) {
	handleInputKey(app, keyEvent{down: true, key: keyReturn})
}

// startSession drives a request through both prompts with default answers,
// leaving the app in the script view.
func startSession(t *testing.T, app *appState) {
	t.Helper()
	beginHighlightRequest(app)
	if !app.inputActive || app.inputKind != "pyg-lexer" {
		t.Fatalf("lexer prompt not open: active=%v kind=%q (%s)", app.inputActive, app.inputKind, app.lastEvent)
	}
	pressEnter(app)
	if app.inputKind != "pyg-formatter" {
		t.Fatalf("formatter prompt not open: kind=%q", app.inputKind)
	}
	pressEnter(app)
	if app.pyg.State() != pygments.StateEditing {
		t.Fatalf("state = %v after prompts (%s)", app.pyg.State(), app.lastEvent)
	}
}

func TestBeginWithoutSelectionReports(t *testing.T) {
	app := newTestApp(t)
	beginHighlightRequest(app)
	if app.inputActive {
		t.Fatal("prompt opened despite empty selection")
	}
	if !strings.Contains(app.lastEvent, "nothing selected") {
		t.Fatalf("lastEvent = %q", app.lastEvent)
	}
}

func TestStartSessionOpensScriptView(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("print('hi')")
	selectAll(app)
	startSession(t, app)

	slot := app.activeSlot()
	if slot == nil || slot.pygRole != "script" {
		t.Fatalf("active slot is not the script view: %+v", slot)
	}
	if slot.path != scriptViewLabel {
		t.Fatalf("script view path = %q", slot.path)
	}
	code := app.ed.String()
	for _, want := range []string{
		"from pygments import highlight",
		"from pygments.lexers.python import Python3Lexer",
		"from pygments.formatters.html import HtmlFormatter",
		`code = """print('hi')"""`,
		"print(highlight(code, Python3Lexer(), HtmlFormatter()))",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("script missing %q:\n%s", want, code)
		}
	}
}

func TestLexerPromptPrefilledWithGuess(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("print('hi')")
	selectAll(app)
	beginHighlightRequest(app)
	if !strings.Contains(app.inputPrompt, "[python3]") {
		t.Fatalf("prompt = %q, want guessed default", app.inputPrompt)
	}
	if len(app.inputOptions) != 4 {
		t.Fatalf("lexer options = %v", app.inputOptions)
	}
}

func TestUnknownLexerReopensPrompt(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	selectAll(app)
	beginHighlightRequest(app)
	app.inputValue = "nosuchlexer"
	pressEnter(app) // lexer prompt
	pressEnter(app) // formatter prompt, default
	if app.pyg.State() != pygments.StateIdle {
		t.Fatalf("state = %v, want Idle after rejection", app.pyg.State())
	}
	if app.inputKind != "pyg-lexer" {
		t.Fatalf("re-prompt kind = %q, want pyg-lexer", app.inputKind)
	}
	if app.inputValue != "nosuchlexer" {
		t.Fatalf("rejected alias not preset: %q", app.inputValue)
	}
	// Correcting the alias completes the session.
	app.inputValue = "python3"
	pressEnter(app)
	pressEnter(app)
	if app.pyg.State() != pygments.StateEditing {
		t.Fatalf("state = %v after correction", app.pyg.State())
	}
}

func TestCancelPromptQuitsWorkflow(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	selectAll(app)
	beginHighlightRequest(app)
	handleInputKey(app, keyEvent{down: true, key: keyEscape})
	if app.inputActive {
		t.Fatal("input still active after Esc")
	}
	if app.pyg.State() != pygments.StateIdle {
		t.Fatalf("state = %v", app.pyg.State())
	}
}

func TestExecOpensResultView(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("print('hi')")
	selectAll(app)
	startSession(t, app)

	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})
	if app.pyg.State() != pygments.StateResult {
		t.Fatalf("state = %v (%s)", app.pyg.State(), app.lastEvent)
	}
	slot := app.activeSlot()
	if slot == nil || slot.pygRole != "result" {
		t.Fatalf("active slot is not the result view: %+v", slot)
	}
	if slot.path != "[pygments] output.html" {
		t.Fatalf("result view path = %q", slot.path)
	}
	if !strings.Contains(app.ed.String(), "from pygments import highlight") {
		t.Fatal("echo runner output missing the script body")
	}
}

func TestExecOutsideScriptViewRefused(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("plain buffer")
	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})
	if app.pyg.State() != pygments.StateIdle {
		t.Fatalf("state = %v", app.pyg.State())
	}
	if !strings.Contains(app.lastEvent, "not in a highlight script view") {
		t.Fatalf("lastEvent = %q", app.lastEvent)
	}
}

func TestExecUsesEditedScriptText(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	selectAll(app)
	startSession(t, app)
	app.ed.SetRunes([]rune("print('edited')"))
	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})
	if got := app.ed.String(); got != "<html>print('edited')</html>" {
		t.Fatalf("result = %q, want the edited script echoed", got)
	}
}

func TestUndoReturnsToScriptView(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	selectAll(app)
	startSession(t, app)
	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})
	handleKeyEvent(app, keyEvent{down: true, key: keyU, mods: modCtrl})
	if app.pyg.State() != pygments.StateEditing {
		t.Fatalf("state = %v", app.pyg.State())
	}
	if slot := app.activeSlot(); slot == nil || slot.pygRole != "script" {
		t.Fatal("focus not back on the script view")
	}
}

func TestCopyResultQuitsAndRestoresOrigin(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	origin := app.ed
	selectAll(app)
	startSession(t, app)
	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})
	result := app.ed.String()
	handleKeyEvent(app, keyEvent{down: true, key: keyC, mods: modCtrl})

	if app.pyg.State() != pygments.StateIdle {
		t.Fatalf("state = %v", app.pyg.State())
	}
	got, _ := app.clipboard.GetText()
	if got != result {
		t.Fatalf("clipboard = %q, want result text", got)
	}
	if app.ed != origin {
		t.Fatal("focus not back on the originating buffer")
	}
	for _, b := range app.buffers {
		if b.pygRole != "" {
			t.Fatal("workflow views survived quit")
		}
	}
}

func TestSaveResultWritesFileAndQuits(t *testing.T) {
	app := newTestApp(t)
	dir := t.TempDir()
	app.openRoot = dir
	app.ed.InsertText("x")
	selectAll(app)
	startSession(t, app)
	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})
	result := app.ed.String()

	handleKeyEvent(app, keyEvent{down: true, key: keyW, mods: modCtrl})
	if app.inputKind != "pyg-save" {
		t.Fatalf("save prompt kind = %q", app.inputKind)
	}
	app.inputValue = "out.html"
	pressEnter(app)

	data, err := os.ReadFile(filepath.Join(dir, "out.html"))
	if err != nil {
		t.Fatalf("saved file: %v", err)
	}
	if string(data) != result {
		t.Fatalf("saved %q, want result text", data)
	}
	if app.pyg.State() != pygments.StateIdle {
		t.Fatalf("state = %v", app.pyg.State())
	}
}

func TestEscInWorkflowViewQuits(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	selectAll(app)
	startSession(t, app)
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	if app.pyg.State() != pygments.StateIdle {
		t.Fatalf("state = %v", app.pyg.State())
	}
	if len(app.buffers) != 1 {
		t.Fatalf("buffers = %d, want 1", len(app.buffers))
	}
}

func TestImageResultViewShowsPath(t *testing.T) {
	app := newTestApp(t)
	app.pyg.Run = func(code, imageBase, ext string) (pygments.Output, error) {
		return pygments.Output{Kind: pygments.OutputImage, Path: imageBase + ".png", Ext: "png"}, nil
	}
	app.buffers[0].path = "/tmp/snippet.txt"
	app.syncActiveBuffer()
	app.ed.InsertText("x")
	selectAll(app)
	startSession(t, app)
	handleKeyEvent(app, keyEvent{down: true, key: keyR, mods: modCtrl})

	slot := app.activeSlot()
	if slot == nil || slot.pygRole != "result" {
		t.Fatal("no result view")
	}
	if !strings.Contains(app.ed.String(), "/tmp/snippet.png") {
		t.Fatalf("result view = %q, want image path", app.ed.String())
	}
}

func TestSecondRequestFromWorkflowViewRefused(t *testing.T) {
	app := newTestApp(t)
	app.ed.InsertText("x")
	selectAll(app)
	startSession(t, app)
	selectAll(app)
	beginHighlightRequest(app)
	if app.inputActive {
		t.Fatal("prompt opened from inside a workflow view")
	}
	if !strings.Contains(app.lastEvent, "already in a highlight session") {
		t.Fatalf("lastEvent = %q", app.lastEvent)
	}
}

func TestOpenScriptViewReusesSlot(t *testing.T) {
	app := newTestApp(t)
	h := &tuiHost{app: app}
	h.OpenScriptView("one")
	h.OpenScriptView("two")
	count := 0
	for _, b := range app.buffers {
		if b.pygRole == "script" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("script views = %d, want 1", count)
	}
	if got, ok := h.ScriptViewText(); !ok || got != "two" {
		t.Fatalf("ScriptViewText = %q, %v", got, ok)
	}
}

func TestCloseViewsRemovesAllRoles(t *testing.T) {
	app := newTestApp(t)
	h := &tuiHost{app: app}
	h.OpenScriptView("code")
	h.OpenResultView(pygments.Output{Kind: pygments.OutputText, Content: "out", Ext: "html"})
	h.CloseViews()
	if len(app.buffers) != 1 {
		t.Fatalf("buffers = %d, want only the origin", len(app.buffers))
	}
	if _, ok := h.ScriptViewText(); ok {
		t.Fatal("script view still reachable")
	}
}

func TestImageBaseDerivation(t *testing.T) {
	app := newTestApp(t)
	app.buffers[0].path = "/tmp/dir/file.go"
	app.syncActiveBuffer()
	if got := imageBase(app); got != "/tmp/dir/file" {
		t.Fatalf("imageBase = %q", got)
	}
	app.buffers[0].path = ""
	app.openRoot = "/work"
	app.syncActiveBuffer()
	if got := imageBase(app); got != "/work/pygments-output" {
		t.Fatalf("imageBase = %q", got)
	}
}

func TestCompleteInput(t *testing.T) {
	app := newTestApp(t)
	app.inputOptions = []string{"html", "htm", "terminal"}

	app.inputValue = "t"
	completeInput(app)
	if app.inputValue != "terminal" {
		t.Fatalf("unique completion = %q", app.inputValue)
	}

	app.inputValue = "h"
	completeInput(app)
	if app.inputValue != "htm" {
		t.Fatalf("common-prefix completion = %q", app.inputValue)
	}

	app.inputValue = "zzz"
	completeInput(app)
	if app.inputValue != "zzz" {
		t.Fatalf("no-match completion changed value to %q", app.inputValue)
	}
}
