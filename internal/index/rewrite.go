package index

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/chartvault/chartvault/internal/chartarchive"
)

// PendingChart is one chart's worth of version records waiting to be
// spliced into an index by RewriteAdd.
type PendingChart struct {
	Name     string
	Versions []chartarchive.VersionRecord
}

// pendingSet tracks which charts in P still need to be matched against the
// input stream, preserving the caller's chart order for anything left
// over at the end.
type pendingSet struct {
	order  []string
	byName map[string][]chartarchive.VersionRecord
}

func newPendingSet(charts []PendingChart) *pendingSet {
	ps := &pendingSet{byName: make(map[string][]chartarchive.VersionRecord, len(charts))}
	for _, c := range charts {
		if _, exists := ps.byName[c.Name]; !exists {
			ps.order = append(ps.order, c.Name)
		}
		ps.byName[c.Name] = append(ps.byName[c.Name], c.Versions...)
	}
	return ps
}

// take removes and returns the pending versions for name, if any.
func (ps *pendingSet) take(name string) ([]chartarchive.VersionRecord, bool) {
	recs, ok := ps.byName[name]
	if ok {
		delete(ps.byName, name)
	}
	return recs, ok
}

// remaining returns the still-pending charts in their original order.
func (ps *pendingSet) remaining() []PendingChart {
	var out []PendingChart
	for _, name := range ps.order {
		if recs, ok := ps.byName[name]; ok {
			out = append(out, PendingChart{Name: name, Versions: recs})
		}
	}
	return out
}

func writeLine(w *bufio.Writer, text string) error {
	if _, err := w.WriteString(text); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// RewriteAdd streams src to dst, splicing in every record of pending that
// is not already present under its (name, version), and rewriting the
// generated: timestamp to now. It is the streaming counterpart to loading
// the whole document, mutating it, and dumping it again — see
// ApplyFullLoad for that simpler equivalent.
func RewriteAdd(src io.Reader, dst io.Writer, pending []PendingChart, now time.Time) error {
	ls := newLineSource(src)
	w := bufio.NewWriterSize(dst, 64*1024)
	set := newPendingSet(pending)

	childIndent := defaultChildIndent
	indentKnown := false
	generatedWritten := false

	generatedLiteral, err := yamlScalarLiteral(now.UTC().Format(TimestampLayout))
	if err != nil {
		return err
	}
	generatedLine := func(hasNewline bool) rawLine {
		return rawLine{text: "generated: " + generatedLiteral, hasNewline: hasNewline}
	}

	// Phase 1: copy everything up to and including "entries:".
	sawEntries := false
	for {
		line, ok, err := ls.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		ind := line.leadingSpaces()
		t := line.trimmed()
		if ind == 0 && t == "entries:" {
			if err := line.write(w); err != nil {
				return err
			}
			sawEntries = true
			break
		}
		if ind == 0 && strings.HasPrefix(t, "generated:") {
			gl := generatedLine(line.hasNewline)
			if err := gl.write(w); err != nil {
				return err
			}
			generatedWritten = true
			continue
		}
		if err := line.write(w); err != nil {
			return err
		}
	}
	if !sawEntries {
		if err := writeLine(w, "entries:"); err != nil {
			return err
		}
	}

	// Phase 2: walk the entries block, one chart at a time.
	for {
		line, ok, err := ls.next()
		if err != nil {
			return err
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
			// Defensive passthrough for anything not matching the header shape.
			if err := line.write(w); err != nil {
				return err
			}
			continue
		}

		name := pcn.Name()
		if err := line.write(w); err != nil {
			return err
		}

		items, next, err := readChartBlockItems(ls, childIndent)
		if err != nil {
			return err
		}
		existing := make(map[string]bool, len(items))
		for _, it := range items {
			for _, l := range it.lines {
				if err := l.write(w); err != nil {
					return err
				}
			}
			if it.version != "" {
				existing[it.version] = true
			}
		}

		if recs, ok := set.take(name); ok {
			for _, rec := range recs {
				if existing[rec.Version] {
					continue
				}
				block, err := renderVersionRecordBlock(rec, now, childIndent)
				if err != nil {
					return err
				}
				if _, err := w.Write(block); err != nil {
					return err
				}
				existing[rec.Version] = true
			}
		}

		if next == nil {
			break
		}
		ls.pushBack(*next)
	}
	if !indentKnown {
		childIndent = defaultChildIndent
	}

	// Phase 3: any pending chart never matched becomes a fresh block.
	for _, pc := range set.remaining() {
		if err := writeLine(w, strings.Repeat(" ", childIndent)+pc.Name+":"); err != nil {
			return err
		}
		for _, rec := range pc.Versions {
			block, err := renderVersionRecordBlock(rec, now, childIndent)
			if err != nil {
				return err
			}
			if _, err := w.Write(block); err != nil {
				return err
			}
		}
	}

	// Phase 4: echo whatever trailed the entries block (normally "generated:").
	for {
		line, ok, err := ls.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t := line.trimmed()
		if line.leadingSpaces() == 0 && strings.HasPrefix(t, "generated:") {
			gl := generatedLine(line.hasNewline)
			if err := gl.write(w); err != nil {
				return err
			}
			generatedWritten = true
			continue
		}
		if err := line.write(w); err != nil {
			return err
		}
	}

	if !generatedWritten {
		if err := writeLine(w, "generated: "+generatedLiteral); err != nil {
			return err
		}
	}

	return w.Flush()
}
