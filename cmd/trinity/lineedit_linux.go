//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// lineEditor is a minimal readline: cursor movement, word motions and
// history recall on a raw-mode terminal.
type lineEditor struct {
	out     io.Writer
	prompt  string
	line    []byte
	cursor  int
	history []string

	histPos  int
	browsing bool
	draft    string
}

var editor = &lineEditor{out: os.Stdout}

func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		return readPipedLine()
	}
	return editor.read(int(os.Stdin.Fd()), prompt)
}

func (e *lineEditor) read(fd int, prompt string) (string, error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, saved)
	}()

	e.prompt = prompt
	e.line = e.line[:0]
	e.cursor = 0
	e.histPos = len(e.history)
	e.browsing = false
	fmt.Fprint(e.out, prompt)

	var (
		buf    [16]byte
		escape int // 0 none, 1 after ESC, 2 inside CSI
		csi    strings.Builder
	)
	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			switch escape {
			case 1:
				escape = e.handleMeta(b, &csi)
				continue
			case 2:
				csi.WriteByte(b)
				if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
					e.handleCSI(csi.String())
					escape = 0
				}
				continue
			}

			switch b {
			case 27: // ESC
				escape = 1
			case '\r', '\n':
				fmt.Fprint(e.out, "\r\n")
				out := string(e.line)
				if strings.TrimSpace(out) != "" {
					e.history = append(e.history, out)
				}
				return out, nil
			case 3: // Ctrl+C
				fmt.Fprint(e.out, "^C\r\n")
				return "", io.EOF
			case 4: // Ctrl+D
				if len(e.line) == 0 {
					fmt.Fprint(e.out, "\r\n")
					return "", io.EOF
				}
			case 127, 8: // backspace
				if e.cursor > 0 {
					e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
					e.cursor--
					e.redraw()
				}
			case 1: // Ctrl+A
				e.moveTo(0)
			case 5: // Ctrl+E
				e.moveTo(len(e.line))
			case 21: // Ctrl+U
				e.line = append(e.line[:0], e.line[e.cursor:]...)
				e.moveTo(0)
			case 23: // Ctrl+W
				e.deleteWordBack()
			default:
				if b >= 32 {
					e.insert(b)
				}
			}
		}
	}
}

// handleMeta consumes the byte after ESC and returns the next escape state.
func (e *lineEditor) handleMeta(b byte, csi *strings.Builder) int {
	switch b {
	case '[':
		csi.Reset()
		return 2
	case 'b', 'B':
		e.moveTo(e.wordLeft())
	case 'f', 'F':
		e.moveTo(e.wordRight())
	case 127:
		e.deleteWordBack()
	}
	return 0
}

func (e *lineEditor) handleCSI(seq string) {
	switch seq {
	case "A":
		e.recall(-1)
	case "B":
		e.recall(+1)
	case "D":
		e.moveTo(e.cursor - 1)
	case "C":
		e.moveTo(e.cursor + 1)
	case "H", "1~":
		e.moveTo(0)
	case "F", "4~":
		e.moveTo(len(e.line))
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
			e.redraw()
		}
	case "1;5D", "5D":
		e.moveTo(e.wordLeft())
	case "1;5C", "5C":
		e.moveTo(e.wordRight())
	case "3;5~":
		end := e.wordRight()
		e.line = append(e.line[:e.cursor], e.line[end:]...)
		e.redraw()
	}
}

// recall walks the history; dir is -1 for older, +1 for newer. Leaving the
// newest entry restores the line that was being typed.
func (e *lineEditor) recall(dir int) {
	if len(e.history) == 0 || (dir > 0 && !e.browsing) {
		return
	}
	if !e.browsing {
		e.draft = string(e.line)
		e.browsing = true
		e.histPos = len(e.history)
	}
	next := e.histPos + dir
	switch {
	case next < 0:
		return
	case next >= len(e.history):
		e.histPos = len(e.history)
		e.line = append(e.line[:0], e.draft...)
		e.browsing = false
	default:
		e.histPos = next
		e.line = append(e.line[:0], e.history[next]...)
	}
	e.cursor = len(e.line)
	e.redraw()
}

func (e *lineEditor) insert(b byte) {
	e.line = append(e.line, 0)
	copy(e.line[e.cursor+1:], e.line[e.cursor:])
	e.line[e.cursor] = b
	e.cursor++
	e.redraw()
}

func (e *lineEditor) deleteWordBack() {
	start := e.wordLeft()
	if start == e.cursor {
		return
	}
	e.line = append(e.line[:start], e.line[e.cursor:]...)
	e.cursor = start
	e.redraw()
}

func (e *lineEditor) wordLeft() int {
	i := e.cursor
	for i > 0 && isBlank(e.line[i-1]) {
		i--
	}
	for i > 0 && !isBlank(e.line[i-1]) {
		i--
	}
	return i
}

func (e *lineEditor) wordRight() int {
	i := e.cursor
	for i < len(e.line) && isBlank(e.line[i]) {
		i++
	}
	for i < len(e.line) && !isBlank(e.line[i]) {
		i++
	}
	return i
}

func (e *lineEditor) moveTo(pos int) {
	pos = max(0, min(pos, len(e.line)))
	if pos == e.cursor {
		return
	}
	e.cursor = pos
	e.redraw()
}

func (e *lineEditor) redraw() {
	fmt.Fprintf(e.out, "\r%s%s\x1b[K", e.prompt, e.line)
	if e.cursor < len(e.line) {
		fmt.Fprintf(e.out, "\r%s%s", e.prompt, e.line[:e.cursor])
	}
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}
