package inference

import (
	"fmt"
	"os"
	"strings"
)

// Grammar is a GBNF grammar the engine constrains decoding with. It is
// passed through untouched; the engine parses and enforces it.
type Grammar struct {
	Source string
}

// NewGrammar wraps GBNF source. Blank source yields nil so callers can pass
// the result straight into a Request.
func NewGrammar(source string) *Grammar {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	return &Grammar{Source: source}
}

// LoadGrammar reads a .gbnf file.
func LoadGrammar(path string) (*Grammar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	g := NewGrammar(string(raw))
	if g == nil {
		return nil, fmt.Errorf("grammar file %q is empty", path)
	}
	return g, nil
}

func (g *Grammar) String() string {
	if g == nil {
		return ""
	}
	return g.Source
}
