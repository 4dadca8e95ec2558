package editor

// Core editing logic. This package is UI-agnostic to keep logic testable.

type Dir int

const (
	DirBack Dir = -1
	DirFwd  Dir = 1
)

type Sel struct {
	Active bool
	A      int // anchor
	B      int // moving end
}

func (s Sel) Normalised() (int, int) {
	if !s.Active {
		return 0, 0
	}
	if s.A <= s.B {
		return s.A, s.B
	}
	return s.B, s.A
}

// Clipboard abstracts clipboard operations for testability.
type Clipboard interface {
	GetText() (string, error)
	SetText(string) error
}

type snapshot struct {
	runes []rune
	caret int
}

const maxUndo = 200

type Editor struct {
	buf   gapBuffer
	Caret int
	Sel   Sel

	clip Clipboard
	undo []snapshot
}

func NewEditor(initial string) *Editor {
	return &Editor{buf: newGapBufferFromRunes([]rune(initial))}
}

func (e *Editor) SetClipboard(c Clipboard) {
	e.clip = c
}

func (e *Editor) Runes() []rune  { return e.buf.Runes() }
func (e *Editor) String() string { return string(e.buf.Runes()) }
func (e *Editor) RuneLen() int   { return e.buf.Len() }

// SetRunes replaces the whole content (reload semantics): the undo history
// is dropped and the selection cleared.
func (e *Editor) SetRunes(rs []rune) {
	e.buf.Set(rs)
	e.Caret = clamp(e.Caret, 0, e.buf.Len())
	e.Sel.Active = false
	e.undo = nil
}

func (e *Editor) pushUndo() {
	e.undo = append(e.undo, snapshot{runes: e.buf.Runes(), caret: e.Caret})
	if len(e.undo) > maxUndo {
		e.undo = e.undo[1:]
	}
}

func (e *Editor) Undo() {
	if len(e.undo) == 0 {
		return
	}
	last := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	e.buf.Set(last.runes)
	e.Caret = clamp(last.caret, 0, e.buf.Len())
	e.Sel.Active = false
}

// ======================
// Editing + selection
// ======================

func (e *Editor) InsertText(text string) {
	rs := []rune(text)
	if len(rs) == 0 && !e.Sel.Active {
		return
	}
	e.pushUndo()
	if e.Sel.Active {
		e.deleteSelection()
	}
	e.Caret = clamp(e.Caret, 0, e.buf.Len())
	e.buf.Insert(e.Caret, rs)
	e.Caret += len(rs)
}

func (e *Editor) BackspaceOrDeleteSelection(isBackspace bool) {
	if e.Sel.Active {
		e.pushUndo()
		e.deleteSelection()
		return
	}
	if e.buf.Len() == 0 {
		return
	}
	if isBackspace {
		if e.Caret <= 0 {
			return
		}
		e.pushUndo()
		e.buf.Delete(e.Caret-1, 1)
		e.Caret--
		return
	}
	if e.Caret >= e.buf.Len() {
		return
	}
	e.pushUndo()
	e.buf.Delete(e.Caret, 1)
}

func (e *Editor) deleteSelection() {
	a, b := e.Sel.Normalised()
	a = clamp(a, 0, e.buf.Len())
	b = clamp(b, 0, e.buf.Len())
	e.Sel.Active = false
	if a == b {
		return
	}
	e.buf.Delete(a, b-a)
	e.Caret = a
}

// KillToLineEnd deletes from the caret to the end of the line; at the line
// end it joins the next line instead.
func (e *Editor) KillToLineEnd(lines []string) {
	ln, col := LineColForPos(lines, e.Caret)
	if ln < 0 || ln >= len(lines) {
		return
	}
	rest := len([]rune(lines[ln])) - col
	if rest <= 0 {
		if e.Caret < e.buf.Len() {
			e.pushUndo()
			e.buf.Delete(e.Caret, 1) // the newline
		}
		return
	}
	e.pushUndo()
	e.buf.Delete(e.Caret, rest)
	e.Sel.Active = false
}

// SelectedText returns the selection content, empty when nothing is active.
func (e *Editor) SelectedText() string {
	if !e.Sel.Active {
		return ""
	}
	a, b := e.Sel.Normalised()
	a = clamp(a, 0, e.buf.Len())
	b = clamp(b, 0, e.buf.Len())
	if a == b {
		return ""
	}
	out := make([]rune, 0, b-a)
	for i := a; i < b; i++ {
		out = append(out, e.buf.At(i))
	}
	return string(out)
}

// ======================
// Caret movement
// ======================

func (e *Editor) moveTo(newPos int, extendSelection bool) {
	newPos = clamp(newPos, 0, e.buf.Len())
	if extendSelection {
		if !e.Sel.Active {
			e.Sel.Active = true
			e.Sel.A = e.Caret
		}
		e.Sel.B = newPos
	} else {
		e.Sel.Active = false
	}
	e.Caret = newPos
}

func (e *Editor) MoveCaret(delta int, extendSelection bool) {
	e.moveTo(e.Caret+delta, extendSelection)
}

func (e *Editor) MoveCaretLine(lines []string, delta int, extendSelection bool) {
	ln, col := LineColForPos(lines, e.Caret)
	target := clamp(ln+delta, 0, len(lines)-1)
	if target == ln {
		// Past the edge: snap to buffer start/end like the arrows do.
		if delta < 0 {
			e.moveTo(0, extendSelection)
		} else {
			e.moveTo(e.buf.Len(), extendSelection)
		}
		return
	}
	e.moveTo(PosForLineCol(lines, target, col), extendSelection)
}

func (e *Editor) MoveCaretPage(lines []string, pageLines int, dir Dir, extendSelection bool) {
	e.MoveCaretLine(lines, pageLines*int(dir), extendSelection)
}

// CaretToLineEdge moves to the start (end=false) or end (end=true) of the
// current line.
func (e *Editor) CaretToLineEdge(lines []string, end, extendSelection bool) {
	ln, _ := LineColForPos(lines, e.Caret)
	col := 0
	if end {
		col = len([]rune(lines[ln]))
	}
	e.moveTo(PosForLineCol(lines, ln, col), extendSelection)
}

func (e *Editor) CaretToBufferEdge(end, extendSelection bool) {
	if end {
		e.moveTo(e.buf.Len(), extendSelection)
		return
	}
	e.moveTo(0, extendSelection)
}

// ======================
// Clipboard
// ======================

func (e *Editor) CopySelection() {
	if !e.Sel.Active || e.clip == nil {
		return
	}
	text := e.SelectedText()
	if text == "" {
		return
	}
	_ = e.clip.SetText(text)
}

func (e *Editor) CutSelection() {
	if !e.Sel.Active || e.clip == nil {
		return
	}
	e.CopySelection()
	e.pushUndo()
	e.deleteSelection()
}

func (e *Editor) PasteClipboard() {
	if e.clip == nil {
		return
	}
	txt, err := e.clip.GetText()
	if err != nil || txt == "" {
		return
	}
	e.InsertText(txt)
}

// ======================
// Line/col mapping
// ======================

func SplitLines(buf []rune) []string {
	lines := make([]string, 0, 64)
	var cur []rune
	for _, r := range buf {
		if r == '\n' {
			lines = append(lines, string(cur))
			cur = cur[:0]
			continue
		}
		cur = append(cur, r)
	}
	lines = append(lines, string(cur))
	return lines
}

// LineColForPos converts a buffer position to (line, col) for lines from
// SplitLines.
func LineColForPos(lines []string, pos int) (int, int) {
	if pos <= 0 {
		return 0, 0
	}
	p := 0
	for i, line := range lines {
		l := len([]rune(line))
		if pos <= p+l {
			return i, pos - p
		}
		p += l + 1
	}
	if len(lines) == 0 {
		return 0, 0
	}
	last := len(lines) - 1
	return last, len([]rune(lines[last]))
}

// PosForLineCol is the inverse mapping; col is clamped to the line length.
func PosForLineCol(lines []string, ln, col int) int {
	ln = clamp(ln, 0, len(lines)-1)
	p := 0
	for i := 0; i < ln; i++ {
		p += len([]rune(lines[i])) + 1
	}
	return p + clamp(col, 0, len([]rune(lines[ln])))
}

func CaretLineAt(lines []string, caret int) int {
	ln, _ := LineColForPos(lines, caret)
	return ln
}

func CaretColAt(lines []string, caret int) int {
	_, col := LineColForPos(lines, caret)
	return col
}

// ======================
// Util
// ======================

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
