package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/osmatsuda/pygments-output/editor"
)

func typeText(app *appState, text string) {
	for _, r := range text {
		handleTextEvent(app, string(r), 0)
	}
}

func TestTypingInsertsAndDirties(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "hello")
	if got := app.ed.String(); got != "hello" {
		t.Fatalf("buffer = %q", got)
	}
	if !app.buffers[0].dirty {
		t.Fatal("buffer not dirty after typing")
	}
}

func TestShiftArrowsSelect(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "hello")
	app.ed.Caret = 0
	for i := 0; i < 3; i++ {
		handleKeyEvent(app, keyEvent{down: true, key: keyRight, mods: modShift})
	}
	if got := app.ed.SelectedText(); got != "hel" {
		t.Fatalf("selection = %q", got)
	}
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	if app.ed.Sel.Active {
		t.Fatal("Esc did not clear the selection")
	}
	if app.cmdPrefixActive {
		t.Fatal("Esc with a selection armed the prefix")
	}
}

func TestEscArmsPrefixAndDispatches(t *testing.T) {
	app := newTestApp(t)
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	if !app.cmdPrefixActive {
		t.Fatal("prefix not armed")
	}
	handleKeyEvent(app, keyEvent{down: true, key: keyM})
	if app.cmdPrefixActive {
		t.Fatal("prefix not consumed")
	}
	if !strings.Contains(app.lastEvent, "Language mode") {
		t.Fatalf("lastEvent = %q", app.lastEvent)
	}
}

func TestEscEscClosesCleanBuffer(t *testing.T) {
	app := newTestApp(t)
	app.addBuffer()
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	if len(app.buffers) != 1 {
		t.Fatalf("buffers = %d, want 1", len(app.buffers))
	}
}

func TestEscEscKeepsDirtyBuffer(t *testing.T) {
	app := newTestApp(t)
	app.addBuffer()
	typeText(app, "unsaved")
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	if len(app.buffers) != 2 {
		t.Fatalf("dirty buffer was closed, buffers = %d", len(app.buffers))
	}
	if !strings.Contains(app.lastEvent, "Unsaved changes") {
		t.Fatalf("lastEvent = %q", app.lastEvent)
	}
}

func TestPrefixHStartsHighlightRequest(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "code")
	app.ed.Sel = editor.Sel{Active: true, A: 0, B: 4}
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	if app.cmdPrefixActive {
		t.Fatal("Esc with selection should clear it first, not arm the prefix")
	}
	handleKeyEvent(app, keyEvent{down: true, key: keyEscape})
	handleKeyEvent(app, keyEvent{down: true, key: keyH})
	// The selection was cleared by the first Esc, so the request is empty.
	if !strings.Contains(app.lastEvent, "nothing selected") {
		t.Fatalf("lastEvent = %q", app.lastEvent)
	}

	app.ed.Sel = editor.Sel{Active: true, A: 0, B: 4}
	app.cmdPrefixActive = true
	handleKeyEvent(app, keyEvent{down: true, key: keyH})
	if !app.inputActive || app.inputKind != "pyg-lexer" {
		t.Fatalf("lexer prompt not open: %q (%s)", app.inputKind, app.lastEvent)
	}
}

func TestCtrlQQuitsOnLastBuffer(t *testing.T) {
	app := newTestApp(t)
	if cont := handleKeyEvent(app, keyEvent{down: true, key: keyQ, mods: modCtrl}); cont {
		t.Fatal("closing the last buffer should quit")
	}
}

func TestCtrlShiftSlashOpensHelp(t *testing.T) {
	app := newTestApp(t)
	handleKeyEvent(app, keyEvent{down: true, key: keySlash, mods: modCtrl | modShift})
	if len(app.buffers) != 2 {
		t.Fatalf("buffers = %d", len(app.buffers))
	}
	if !strings.Contains(app.ed.String(), "Highlight selection (Pygments)") {
		t.Fatal("help buffer missing the workflow shortcut")
	}
}

func TestCtrlSlashTogglesComment(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "line")
	handleKeyEvent(app, keyEvent{down: true, key: keySlash, mods: modCtrl})
	if got := app.ed.String(); got != "//line" {
		t.Fatalf("buffer = %q", got)
	}
}

func TestSaveAsInputFlow(t *testing.T) {
	app := newTestApp(t)
	dir := t.TempDir()
	app.openRoot = dir
	typeText(app, "content")
	handleKeyEvent(app, keyEvent{down: true, key: keyW, mods: modCtrl})
	if !app.inputActive || app.inputKind != "save" {
		t.Fatalf("save prompt not open: %q", app.inputKind)
	}
	for _, r := range "saved.txt" {
		handleInputText(app, string(r))
	}
	pressEnter(app)
	data, err := os.ReadFile(filepath.Join(dir, "saved.txt"))
	if err != nil {
		t.Fatalf("saved file: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("file = %q", data)
	}
	if app.inputActive {
		t.Fatal("input still active")
	}
}

func TestInputBackspaceAndCancel(t *testing.T) {
	app := newTestApp(t)
	app.inputActive = true
	app.inputKind = "save"
	app.inputValue = "ab"
	handleInputKey(app, keyEvent{down: true, key: keyBackspace})
	if app.inputValue != "a" {
		t.Fatalf("value = %q", app.inputValue)
	}
	handleInputKey(app, keyEvent{down: true, key: keyEscape})
	if app.inputActive || app.inputValue != "" {
		t.Fatal("cancel did not reset the input line")
	}
}

func TestInputTabCompletes(t *testing.T) {
	app := newTestApp(t)
	app.inputActive = true
	app.inputKind = "pyg-formatter"
	app.inputOptions = []string{"html", "terminal"}
	app.inputValue = "ht"
	handleInputKey(app, keyEvent{down: true, key: keyTab})
	if app.inputValue != "html" {
		t.Fatalf("value = %q", app.inputValue)
	}
}

func TestCtrlAEMoveToLineEdges(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "first\nsecond")
	app.ed.Caret = 8
	handleKeyEvent(app, keyEvent{down: true, key: keyA, mods: modCtrl})
	if app.ed.Caret != 6 {
		t.Fatalf("Ctrl+A caret = %d, want 6", app.ed.Caret)
	}
	handleKeyEvent(app, keyEvent{down: true, key: keyE, mods: modCtrl})
	if app.ed.Caret != 12 {
		t.Fatalf("Ctrl+E caret = %d, want 12", app.ed.Caret)
	}
	handleKeyEvent(app, keyEvent{down: true, key: keyA, mods: modCtrl | modShift})
	if app.ed.Caret != 0 || !app.ed.Sel.Active {
		t.Fatalf("Ctrl+Shift+A caret = %d sel = %v", app.ed.Caret, app.ed.Sel.Active)
	}
}

func TestCtrlKKillsToLineEnd(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "keep me\nnext")
	app.ed.Caret = 4
	handleKeyEvent(app, keyEvent{down: true, key: keyK, mods: modCtrl})
	if got := app.ed.String(); got != "keep\nnext" {
		t.Fatalf("buffer = %q", got)
	}
}

func TestClipboardKeysRoundTrip(t *testing.T) {
	app := newTestApp(t)
	typeText(app, "copy this")
	app.ed.Sel = editor.Sel{Active: true, A: 0, B: 4}
	handleKeyEvent(app, keyEvent{down: true, key: keyC, mods: modCtrl})
	clip, _ := app.clipboard.GetText()
	if clip != "copy" {
		t.Fatalf("clipboard = %q", clip)
	}
	app.ed.Caret = app.ed.RuneLen()
	app.ed.Sel.Active = false
	handleKeyEvent(app, keyEvent{down: true, key: keyV, mods: modCtrl})
	if got := app.ed.String(); got != "copy thiscopy" {
		t.Fatalf("buffer = %q", got)
	}
}
