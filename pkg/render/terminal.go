package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// TerminalRenderer draws a framebuffer as truecolor half-block characters.
// Each cell shows two vertically stacked pixels: the upper one as the
// foreground of '▀', the lower one as the background.
type TerminalRenderer struct {
	out        io.Writer
	cols, rows int
	buf        bytes.Buffer
}

// NewTerminalRenderer creates a renderer for a cols by rows terminal.
func NewTerminalRenderer(out io.Writer, cols, rows int) *TerminalRenderer {
	return &TerminalRenderer{out: out, cols: max(cols, 0), rows: max(rows, 0)}
}

// FramebufferSize returns the pixel size that exactly fills the terminal.
func (t *TerminalRenderer) FramebufferSize() (width, height int) {
	return t.cols, t.rows * 2
}

// CellToPixel maps a terminal cell to the framebuffer pixel under its centre.
func (t *TerminalRenderer) CellToPixel(col, row int) (x, y float64) {
	return float64(col) + 0.5, float64(row*2) + 1
}

// Render encodes fb into the pending output. Colours are only re-emitted
// when they change along a row.
func (t *TerminalRenderer) Render(fb *Framebuffer) {
	t.buf.Reset()
	t.buf.WriteString("\x1b[H")
	rows := min(t.rows, (fb.Height+1)/2)
	cols := min(t.cols, fb.Width)
	for row := range rows {
		fmt.Fprintf(&t.buf, "\x1b[%d;1H", row+1)
		var lastFg, lastBg Color
		first := true
		for col := range cols {
			fg := fb.GetPixel(col, row*2)
			bg := fb.GetPixel(col, row*2+1)
			if first || fg != lastFg {
				t.color(38, fg)
			}
			if first || bg != lastBg {
				t.color(48, bg)
			}
			lastFg, lastBg, first = fg, bg, false
			t.buf.WriteString("▀")
		}
		t.buf.WriteString("\x1b[0m")
	}
}

func (t *TerminalRenderer) color(kind int, c Color) {
	t.buf.WriteString("\x1b[")
	t.buf.WriteString(strconv.Itoa(kind))
	t.buf.WriteString(";2;")
	t.buf.WriteString(strconv.Itoa(int(c.R)))
	t.buf.WriteByte(';')
	t.buf.WriteString(strconv.Itoa(int(c.G)))
	t.buf.WriteByte(';')
	t.buf.WriteString(strconv.Itoa(int(c.B)))
	t.buf.WriteByte('m')
}

// Flush writes the pending frame.
func (t *TerminalRenderer) Flush() error {
	if t.buf.Len() == 0 {
		return nil
	}
	_, err := t.out.Write(t.buf.Bytes())
	t.buf.Reset()
	return err
}
