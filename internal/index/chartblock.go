package index

import "strings"

// chartItem is one "- "-delimited version record within a chart's block,
// kept as its original raw lines plus its extracted version string (used
// to detect collisions and deletion targets without a full YAML parse).
type chartItem struct {
	lines   []rawLine
	version string
}

func fieldValue(text, key string) (string, bool) {
	prefix := key + ":"
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}
	v := strings.TrimSpace(text[len(prefix):])
	return unquoteScalar(v), true
}

func unquoteScalar(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// readChartBlockItems consumes version-record items belonging to the chart
// block just entered (the chart-name header line has already been
// consumed by the caller). It stops at the first line with indentation
// <= childIndent, which belongs to the next chart header, a root key, or
// EOF, and returns that line (nil at EOF) for the caller to re-dispatch.
func readChartBlockItems(ls *lineSource, childIndent int) ([]chartItem, *rawLine, error) {
	var items []chartItem
	for {
		line, ok, err := ls.next()
		if err != nil {
			return items, nil, err
		}
		if !ok {
			return items, nil, nil
		}

		ind := line.leadingSpaces()
		t := line.trimmed()
		if ind != childIndent || !strings.HasPrefix(t, "- ") {
			return items, &line, nil
		}

		item := chartItem{lines: []rawLine{line}}
		if v, ok := fieldValue(strings.TrimPrefix(t, "- "), "version"); ok {
			item.version = v
		}

		for {
			nline, nok, nerr := ls.next()
			if nerr != nil {
				return items, nil, nerr
			}
			if !nok {
				items = append(items, item)
				return items, nil, nil
			}
			nind := nline.leadingSpaces()
			if nind <= childIndent {
				ls.pushBack(nline)
				break
			}
			if nind == childIndent+2 {
				if v, ok := fieldValue(nline.trimmed(), "version"); ok {
					item.version = v
				}
			}
			item.lines = append(item.lines, nline)
		}
		items = append(items, item)
	}
}
