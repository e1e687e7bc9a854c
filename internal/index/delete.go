package index

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// DeleteTarget names a chart, or a specific version of a chart, to remove.
// An empty Version targets every version of Name.
type DeleteTarget struct {
	Name    string
	Version string
}

func (t DeleteTarget) wholeChart() bool { return t.Version == "" }

// RewriteDelete streams src to dst, suppressing the version records (and,
// if they become empty, the chart headers) named by targets. It reports
// which targets were actually found, so the caller can distinguish a
// deletion that matched nothing (404) from one that succeeded.
func RewriteDelete(src io.Reader, dst io.Writer, targets []DeleteTarget, now time.Time) (map[DeleteTarget]bool, error) {
	ls := newLineSource(src)
	w := bufio.NewWriterSize(dst, 64*1024)
	found := make(map[DeleteTarget]bool, len(targets))

	byName := make(map[string][]DeleteTarget, len(targets))
	for _, t := range targets {
		byName[t.Name] = append(byName[t.Name], t)
	}

	childIndent := defaultChildIndent
	indentKnown := false
	generatedWritten := false

	generatedLiteral, err := yamlScalarLiteral(now.UTC().Format(TimestampLayout))
	if err != nil {
		return found, err
	}
	generatedLine := func(hasNewline bool) rawLine {
		return rawLine{text: "generated: " + generatedLiteral, hasNewline: hasNewline}
	}

	sawEntries := false
	for {
		line, ok, err := ls.next()
		if err != nil {
			return found, err
		}
		if !ok {
			break
		}
		ind := line.leadingSpaces()
		t := line.trimmed()
		if ind == 0 && t == "entries:" {
			if err := line.write(w); err != nil {
				return found, err
			}
			sawEntries = true
			break
		}
		if ind == 0 && strings.HasPrefix(t, "generated:") {
			gl := generatedLine(line.hasNewline)
			if err := gl.write(w); err != nil {
				return found, err
			}
			generatedWritten = true
			continue
		}
		if err := line.write(w); err != nil {
			return found, err
		}
	}
	if !sawEntries {
		if err := writeLine(w, "entries:"); err != nil {
			return found, err
		}
	}

	for {
		line, ok, err := ls.next()
		if err != nil {
			return found, err
		}
		if !ok {
			break
		}
		ind := line.leadingSpaces()
		if ind == 0 {
			ls.pushBack(line)
			break
		}
		if !indentKnown {
			childIndent = ind
			indentKnown = true
		}

		pcn := ParsedChartName{Line: line.text}
		if ind != childIndent || !pcn.Valid() {
			if err := line.write(w); err != nil {
				return found, err
			}
			continue
		}

		name := pcn.Name()
		items, next, err := readChartBlockItems(ls, childIndent)
		if err != nil {
			return found, err
		}

		wanted := byName[name]
		wholeChart := false
		versionsWanted := make(map[string]bool, len(wanted))
		for _, t := range wanted {
			if t.wholeChart() {
				wholeChart = true
			} else {
				versionsWanted[t.Version] = true
			}
		}
		isTarget := wholeChart || len(versionsWanted) > 0

		var survivors []chartItem
		if wholeChart {
			if len(wanted) > 0 {
				found[DeleteTarget{Name: name}] = true
			}
		} else {
			for _, it := range items {
				if versionsWanted[it.version] {
					found[DeleteTarget{Name: name, Version: it.version}] = true
					continue
				}
				survivors = append(survivors, it)
			}
		}

		if !(isTarget && len(survivors) == 0) {
			if err := line.write(w); err != nil {
				return found, err
			}
			emit := items
			if isTarget {
				emit = survivors
			}
			for _, it := range emit {
				for _, l := range it.lines {
					if err := l.write(w); err != nil {
						return found, err
					}
				}
			}
		}

		if next == nil {
			break
		}
		ls.pushBack(*next)
	}

	for {
		line, ok, err := ls.next()
		if err != nil {
			return found, err
		}
		if !ok {
			break
		}
		t := line.trimmed()
		if line.leadingSpaces() == 0 && strings.HasPrefix(t, "generated:") {
			gl := generatedLine(line.hasNewline)
			if err := gl.write(w); err != nil {
				return found, err
			}
			generatedWritten = true
			continue
		}
		if err := line.write(w); err != nil {
			return found, err
		}
	}

	if !generatedWritten {
		if err := writeLine(w, "generated: "+generatedLiteral); err != nil {
			return found, err
		}
	}

	return found, w.Flush()
}
