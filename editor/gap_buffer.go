package editor

type gapBuffer struct {
	data     []rune
	gapStart int
	gapEnd   int
}

const minGap = 64

func newGapBufferFromRunes(rs []rune) gapBuffer {
	gap := minGap
	data := make([]rune, len(rs)+gap)
	copy(data, rs)
	return gapBuffer{data: data, gapStart: len(rs), gapEnd: len(rs) + gap}
}

func (g *gapBuffer) Len() int {
	return len(g.data) - (g.gapEnd - g.gapStart)
}

func (g *gapBuffer) Set(rs []rune) {
	*g = newGapBufferFromRunes(rs)
}

// Runes materialises the buffer content without the gap.
func (g *gapBuffer) Runes() []rune {
	out := make([]rune, 0, g.Len())
	out = append(out, g.data[:g.gapStart]...)
	return append(out, g.data[g.gapEnd:]...)
}

func (g *gapBuffer) At(i int) rune {
	if i < g.gapStart {
		return g.data[i]
	}
	return g.data[i+(g.gapEnd-g.gapStart)]
}

func (g *gapBuffer) ensureGap(n int) {
	if n <= g.gapEnd-g.gapStart {
		return
	}
	extra := n + minGap
	oldGap := g.gapEnd - g.gapStart
	newData := make([]rune, len(g.data)+extra)
	copy(newData, g.data[:g.gapStart])
	tailLen := len(g.data) - g.gapEnd
	newGapEnd := g.gapStart + oldGap + extra
	copy(newData[newGapEnd:newGapEnd+tailLen], g.data[g.gapEnd:])
	g.data = newData
	g.gapEnd = newGapEnd
}

func (g *gapBuffer) moveGap(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > g.Len() {
		pos = g.Len()
	}
	if pos == g.gapStart {
		return
	}
	if pos < g.gapStart {
		delta := g.gapStart - pos
		copy(g.data[g.gapEnd-delta:g.gapEnd], g.data[pos:g.gapStart])
		g.gapStart -= delta
		g.gapEnd -= delta
		return
	}
	delta := pos - g.gapStart
	copy(g.data[g.gapStart:g.gapStart+delta], g.data[g.gapEnd:g.gapEnd+delta])
	g.gapStart += delta
	g.gapEnd += delta
}

func (g *gapBuffer) Insert(pos int, rs []rune) {
	if len(rs) == 0 {
		return
	}
	g.moveGap(pos)
	g.ensureGap(len(rs))
	copy(g.data[g.gapStart:g.gapStart+len(rs)], rs)
	g.gapStart += len(rs)
}

func (g *gapBuffer) Delete(pos, n int) {
	if pos < 0 {
		n += pos
		pos = 0
	}
	if pos >= g.Len() || n <= 0 {
		return
	}
	if pos+n > g.Len() {
		n = g.Len() - pos
	}
	// Widening the gap over the range deletes it.
	g.moveGap(pos)
	g.gapEnd += n
}
