package index

import (
	"bufio"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawLine is one line of an index.yaml, with enough information to write it
// back out byte-for-byte.
type rawLine struct {
	text       string // content, without any trailing line terminator
	hasNewline bool   // whether the original line was terminated by '\n'
}

func (l rawLine) leadingSpaces() int {
	n := 0
	for n < len(l.text) && l.text[n] == ' ' {
		n++
	}
	return n
}

func (l rawLine) trimmed() string {
	return strings.TrimSpace(l.text)
}

// write emits the line to w, preserving its original newline-or-not.
func (l rawLine) write(w *bufio.Writer) error {
	if _, err := w.WriteString(l.text); err != nil {
		return err
	}
	if l.hasNewline {
		return w.WriteByte('\n')
	}
	return nil
}

// lineSource reads rawLines from r with one line of pushback, so the
// rewriter's state machine can peek at the line that ended a block before
// deciding how to handle it.
type lineSource struct {
	br      *bufio.Reader
	pending *rawLine
}

func newLineSource(r io.Reader) *lineSource {
	return &lineSource{br: bufio.NewReaderSize(r, 64*1024)}
}

func (ls *lineSource) next() (rawLine, bool, error) {
	if ls.pending != nil {
		l := *ls.pending
		ls.pending = nil
		return l, true, nil
	}

	s, err := ls.br.ReadString('\n')
	if err != nil && err != io.EOF {
		return rawLine{}, false, err
	}
	if len(s) == 0 && err == io.EOF {
		return rawLine{}, false, nil
	}
	hasNL := strings.HasSuffix(s, "\n")
	text := strings.TrimSuffix(s, "\n")
	return rawLine{text: text, hasNewline: hasNL}, true, nil
}

func (ls *lineSource) pushBack(l rawLine) {
	ls.pending = &l
}

// ParsedChartName implements the boundary rule for recognizing a
// chart-name header line: its trimmed content ends in ':', is not the
// literal "entries:", and does not begin with '-'. Indentation is checked
// separately by the rewriter, since this rule alone cannot distinguish a
// chart header from a deeply nested scalar field that happens to end in a
// colon.
type ParsedChartName struct {
	Line string
}

// Valid reports whether Line looks like a chart-name header by the
// trim-based rule alone.
func (p ParsedChartName) Valid() bool {
	t := strings.TrimSpace(p.Line)
	if t == "" || t == "entries:" {
		return false
	}
	if strings.HasPrefix(t, "-") {
		return false
	}
	return strings.HasSuffix(t, ":")
}

// Name returns the chart name carried by a valid header line (the trimmed
// content with its trailing ':' removed). Only meaningful when Valid().
func (p ParsedChartName) Name() string {
	return strings.TrimSuffix(strings.TrimSpace(p.Line), ":")
}

const defaultChildIndent = 2

// yamlScalarLiteral renders value the way yaml.Marshal would render it as a
// bare scalar (quoting it when needed, e.g. timestamp-shaped strings),
// without a trailing newline.
func yamlScalarLiteral(value string) (string, error) {
	data, err := yaml.Marshal(&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
