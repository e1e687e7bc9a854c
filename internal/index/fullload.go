package index

import "time"

// ApplyFullLoad performs the simpler load-mutate-dump path: parse raw into
// a Document, insert every pending version not already present under its
// chart, and dump the result. Semantically equivalent to RewriteAdd given
// the same pending set — retained for the single-archive push path, where
// the HTTP layer already holds the whole archive (and typically the whole
// index, if it's small) in memory.
func ApplyFullLoad(raw []byte, pending []PendingChart, now time.Time) ([]byte, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	for _, pc := range pending {
		for _, rec := range pc.Versions {
			if rec.Created == "" {
				rec.Created = now.UTC().Format(TimestampLayout)
			}
			doc.AddVersion(pc.Name, rec)
		}
	}

	return doc.Dump(now)
}

// ApplyFullLoadDelete parses raw, removes every targeted chart or version,
// and dumps the result. Reports which targets were actually present.
func ApplyFullLoadDelete(raw []byte, targets []DeleteTarget, now time.Time) ([]byte, map[DeleteTarget]bool, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[DeleteTarget]bool, len(targets))
	for _, t := range targets {
		if t.wholeChart() {
			if doc.RemoveChart(t.Name) {
				found[t] = true
			}
			continue
		}
		if doc.RemoveVersion(t.Name, t.Version) {
			found[t] = true
		}
	}

	out, err := doc.Dump(now)
	return out, found, err
}
