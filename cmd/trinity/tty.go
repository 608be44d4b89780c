package main

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

// stdinReader is shared so buffered input survives between lines.
var stdinReader = bufio.NewReader(os.Stdin)

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}

// readPipedLine reads one line from stdin. It returns io.EOF only once the
// input is exhausted.
func readPipedLine() (string, error) {
	s, err := stdinReader.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return trimTrailingNewline(s), nil
		}
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
