package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/osmatsuda/pygments-output/editor"
	"github.com/osmatsuda/pygments-output/pygments"
)

type modMask uint16

const (
	modShift modMask = 1 << iota
	modCtrl
	modAlt
)

type keyCode int

const (
	keyUnknown keyCode = iota
	keyUp
	keyDown
	keyPageUp
	keyPageDown
	keyHome
	keyEnd
	keyEscape
	keyTab
	keyBackspace
	keyDelete
	keyReturn
	keyLeft
	keyRight
	keySpace
	keyPeriod
	keyComma
	keyMinus
	keyEquals
	keySlash
	keyA
	keyB
	keyC
	keyD
	keyE
	keyF
	keyG
	keyH
	keyI
	keyJ
	keyK
	keyL
	keyM
	keyN
	keyO
	keyP
	keyQ
	keyR
	keyS
	keyT
	keyU
	keyV
	keyW
	keyX
	keyY
	keyZ
	key0
	key1
	key2
	key3
	key4
	key5
	key6
	key7
	key8
	key9
)

type keyEvent struct {
	down bool
	key  keyCode
	mods modMask
}

func handleKeyEvent(app *appState, e keyEvent) bool {
	ed := app.ed
	if !e.down || ed == nil {
		return true
	}
	app.lastEvent = fmt.Sprintf("KEY key=%s mods=%s", keyName(e.key), modsString(e.mods))
	if debug {
		fmt.Println(app.lastEvent)
	}

	if app.cmdPrefixActive && e.key != keyEscape {
		app.cmdPrefixActive = false
		return handlePrefixKey(app, e)
	}

	if e.key == keyEscape {
		if app.cmdPrefixActive {
			// Esc Esc closes the current buffer.
			app.cmdPrefixActive = false
			if len(app.buffers) > 0 && app.buffers[app.bufIdx].dirty {
				app.lastEvent = "Unsaved changes: Ctrl+W to save or Ctrl+Q to close"
				return true
			}
			remaining := app.closeBuffer()
			app.lastEvent = "Closed buffer"
			return remaining > 0
		}
		if ed.Sel.Active {
			ed.Sel.Active = false
			app.lastEvent = "Selection cleared"
			return true
		}
		if slot := app.activeSlot(); slot != nil && slot.pygRole != "" {
			quitHighlightWorkflow(app)
			return true
		}
		if slot := app.activeSlot(); slot != nil && slot.picker {
			app.closeBuffer()
			app.lastEvent = "Closed file picker"
			return true
		}
		app.cmdPrefixActive = true
		app.lastEvent = "Esc: h highlight, m mode, f fmt, Shift+S save all, Shift+Q quit, Esc close buffer"
		return true
	}

	ctrlHeld := (e.mods & modCtrl) != 0
	if ctrlHeld {
		slot := app.activeSlot()
		inResult := slot != nil && slot.pygRole == "result"
		switch e.key {
		case keyTab:
			delta := 1
			if (e.mods & modShift) != 0 {
				delta = -1
			}
			app.switchBuffer(delta)
			app.lastEvent = fmt.Sprintf("Switched to buffer %d/%d", app.bufIdx+1, len(app.buffers))
			return true
		case keyQ:
			if (e.mods & modShift) != 0 {
				app.lastEvent = "Quit (discard all buffers)"
				return false
			}
			if slot != nil && slot.pygRole != "" {
				quitHighlightWorkflow(app)
				return true
			}
			remaining := app.closeBuffer()
			if remaining == 0 {
				app.lastEvent = "Closed last buffer, quitting"
				return false
			}
			app.lastEvent = fmt.Sprintf("Closed buffer, now %d/%d", app.bufIdx+1, remaining)
			return true
		case keyB:
			app.addBuffer()
			app.lastEvent = fmt.Sprintf("New buffer %d/%d", app.bufIdx+1, len(app.buffers))
			return true
		case keyW:
			if inResult {
				app.inputActive = true
				app.inputPrompt = "Save output as: "
				app.inputValue = ""
				app.inputKind = "pyg-save"
				app.inputOptions = nil
				app.lastEvent = "Save output: enter filename, Enter to confirm, Esc to cancel"
				return true
			}
			if err := saveCurrent(app); err != nil {
				app.lastEvent = fmt.Sprintf("SAVE ERR: %v", err)
			} else {
				app.lastEvent = fmt.Sprintf("Saved %s", app.currentPath)
			}
			return true
		case keyR:
			execHighlightScript(app)
			return true
		case keyU:
			if inResult {
				undoHighlightResult(app)
				return true
			}
			ed.Undo()
			app.lastEvent = "Undo"
			app.markDirty()
			return true
		case keyA:
			lines := editor.SplitLines(ed.Runes())
			if (e.mods & modShift) != 0 {
				ed.CaretToBufferEdge(false, true)
			} else {
				ed.CaretToLineEdge(lines, false, false)
			}
			return true
		case keyE:
			lines := editor.SplitLines(ed.Runes())
			if (e.mods & modShift) != 0 {
				ed.CaretToBufferEdge(true, true)
			} else {
				ed.CaretToLineEdge(lines, true, false)
			}
			return true
		case keyK:
			ed.KillToLineEnd(editor.SplitLines(ed.Runes()))
			app.markDirty()
			return true
		case keySlash:
			if (e.mods & modShift) != 0 {
				app.addBuffer()
				app.ed.SetRunes([]rune(helpText()))
				app.currentPath = ""
				app.buffers[app.bufIdx].path = ""
				app.buffers[app.bufIdx].dirty = false
				app.touchActiveBufferText()
				app.lastEvent = "Opened shortcuts buffer"
				return true
			}
			kind := bufferSyntaxKind(app, app.currentPath, ed.Runes())
			toggleComment(ed, commentPrefix(kind))
			app.lastEvent = "Toggled comment"
			app.markDirty()
			return true
		case keyO:
			listRoot := app.openRoot
			if listRoot == "" {
				if cwd, err := os.Getwd(); err == nil {
					listRoot = cwd
				}
			}
			list, err := pickerLines(listRoot, 500)
			if err != nil {
				app.lastEvent = fmt.Sprintf("OPEN ERR: %v", err)
				return true
			}
			app.openRoot = listRoot
			if slot != nil && slot.picker {
				slot.pickerRoot = listRoot
				slot.ed.SetRunes([]rune(strings.Join(list, "\n")))
				app.touchActiveBufferText()
				app.currentPath = ""
			} else {
				app.addPickerBuffer(list)
			}
			app.lastEvent = fmt.Sprintf("OPEN: file picker (%d entries). Move to a line, Ctrl+L to load", len(list))
			return true
		case keyL:
			if err := loadFileAtCaret(app); err != nil {
				app.lastEvent = fmt.Sprintf("LOAD ERR: %v", err)
			} else {
				app.lastEvent = fmt.Sprintf("Opened %s", app.currentPath)
			}
			return true
		case keyComma:
			lines := editor.SplitLines(ed.Runes())
			ed.MoveCaretPage(lines, 20, editor.DirBack, (e.mods&modShift) != 0)
			return true
		case keyPeriod:
			lines := editor.SplitLines(ed.Runes())
			ed.MoveCaretPage(lines, 20, editor.DirFwd, (e.mods&modShift) != 0)
			return true
		case keyC:
			if inResult && app.pyg != nil && app.pyg.State() == pygments.StateResult {
				copyHighlightResult(app)
				return true
			}
			ed.CopySelection()
			app.lastEvent = "Copied selection"
			return true
		case keyX:
			ed.CutSelection()
			app.markDirty()
			return true
		case keyV:
			ed.PasteClipboard()
			app.markDirty()
			return true
		}
		return true
	}

	lines := editor.SplitLines(ed.Runes())
	switch e.key {
	case keyBackspace:
		ed.BackspaceOrDeleteSelection(true)
		app.markDirty()
	case keyDelete:
		ed.BackspaceOrDeleteSelection(false)
		app.markDirty()
	case keyLeft:
		ed.MoveCaret(-1, (e.mods&modShift) != 0)
	case keyRight:
		ed.MoveCaret(1, (e.mods&modShift) != 0)
	case keyUp:
		ed.MoveCaretLine(lines, -1, (e.mods&modShift) != 0)
	case keyDown:
		ed.MoveCaretLine(lines, 1, (e.mods&modShift) != 0)
	case keyPageDown:
		ed.MoveCaretPage(lines, 20, editor.DirFwd, (e.mods&modShift) != 0)
	case keyPageUp:
		ed.MoveCaretPage(lines, 20, editor.DirBack, (e.mods&modShift) != 0)
	case keyHome:
		ed.CaretToLineEdge(lines, false, (e.mods&modShift) != 0)
	case keyEnd:
		ed.CaretToLineEdge(lines, true, (e.mods&modShift) != 0)
	case keyReturn:
		ed.InsertText("\n")
		app.markDirty()
	case keyTab:
		ed.InsertText("\t")
		app.markDirty()
	}
	return true
}

// handlePrefixKey dispatches the key following an Esc prefix.
func handlePrefixKey(app *appState, e keyEvent) bool {
	switch e.key {
	case keyH:
		beginHighlightRequest(app)
		return true
	case keyM:
		label := cycleBufferMode(app)
		app.lastEvent = fmt.Sprintf("Language mode: %s", label)
		return true
	case keyF:
		if err := formatFixReloadCurrent(app); err != nil {
			app.lastEvent = fmt.Sprintf("FMT/FIX ERR: %v", err)
		} else {
			app.lastEvent = fmt.Sprintf("Saved, fmt/fix, reloaded %s", app.currentPath)
		}
		return true
	case keyS:
		if (e.mods & modShift) != 0 {
			if err := saveAll(app); err != nil {
				app.lastEvent = fmt.Sprintf("SAVE ALL ERR: %v", err)
			} else {
				app.lastEvent = "Saved dirty buffers"
			}
			return true
		}
	case keyQ:
		if (e.mods & modShift) != 0 {
			app.lastEvent = "Quit"
			return false
		}
	}
	app.lastEvent = "Unknown prefix command"
	return true
}

func handleTextEvent(app *appState, text string, mods modMask) bool {
	if app.ed == nil || text == "" || !utf8.ValidString(text) {
		return true
	}
	app.ed.InsertText(text)
	app.markDirty()
	return true
}

func handleInputKey(app *appState, e keyEvent) bool {
	if !e.down {
		return true
	}
	switch e.key {
	case keyEscape:
		kind := app.inputKind
		closeInput(app)
		if strings.HasPrefix(kind, "pyg-") {
			// Cancelling any workflow prompt aborts the whole request.
			quitHighlightWorkflow(app)
			return true
		}
		app.lastEvent = "Input cancelled"
		return true
	case keyBackspace:
		if len(app.inputValue) > 0 {
			rs := []rune(app.inputValue)
			app.inputValue = string(rs[:len(rs)-1])
		}
		return true
	case keyTab:
		completeInput(app)
		return true
	case keyReturn:
		kind := app.inputKind
		value := strings.TrimSpace(app.inputValue)
		switch kind {
		case "save":
			if value == "" {
				app.lastEvent = "SAVE ERR: filename required"
				return true
			}
			path := value
			if !filepath.IsAbs(path) {
				root := app.openRoot
				if root == "" {
					if cwd, err := os.Getwd(); err == nil {
						root = cwd
					}
				}
				path = filepath.Join(root, value)
			}
			app.currentPath = path
			if app.bufIdx >= 0 && app.bufIdx < len(app.buffers) {
				app.buffers[app.bufIdx].path = path
			}
			closeInput(app)
			if err := saveCurrent(app); err != nil {
				app.lastEvent = fmt.Sprintf("SAVE ERR: %v", err)
			} else {
				app.lastEvent = fmt.Sprintf("Saved %s", app.currentPath)
			}
		case "pyg-save":
			closeInput(app)
			saveHighlightResult(app, value)
		case "pyg-lexer":
			if value == "" {
				value = app.pygPrompt.DefaultLexer
			}
			app.pygLexerChoice = value
			closeInput(app)
			openHighlightPrompt(app, "pyg-formatter", app.pygPrompt.DefaultFormatter, "")
		case "pyg-formatter":
			if value == "" {
				value = app.pygPrompt.DefaultFormatter
			}
			closeInput(app)
			confirmHighlightChoices(app, app.pygLexerChoice, value)
		default:
			closeInput(app)
		}
		return true
	}
	return true
}

func closeInput(app *appState) {
	app.inputActive = false
	app.inputValue = ""
	app.inputPrompt = ""
	app.inputKind = ""
	app.inputOptions = nil
}

func handleInputText(app *appState, text string) bool {
	if text != "" && utf8.ValidString(text) {
		app.inputValue += text
	}
	return true
}

func keyName(k keyCode) string {
	switch k {
	case keyUp:
		return "Up"
	case keyDown:
		return "Down"
	case keyPageUp:
		return "PageUp"
	case keyPageDown:
		return "PageDown"
	case keyHome:
		return "Home"
	case keyEnd:
		return "End"
	case keyEscape:
		return "Escape"
	case keyTab:
		return "Tab"
	case keyBackspace:
		return "Backspace"
	case keyDelete:
		return "Delete"
	case keyReturn:
		return "Return"
	case keyLeft:
		return "Left"
	case keyRight:
		return "Right"
	case keySlash:
		return "Slash"
	case keyComma:
		return "Comma"
	case keyPeriod:
		return "Period"
	case keySpace:
		return "Space"
	default:
		return "Key"
	}
}
