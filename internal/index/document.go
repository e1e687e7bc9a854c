package index

import (
	"bytes"
	"strings"
	"time"

	"github.com/chartvault/chartvault/internal/chartarchive"
	"gopkg.in/yaml.v3"
)

// TimestampLayout matches Helm's own RFC-3339-nanosecond-with-offset output.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Document is a typed, in-memory view over a parsed index.yaml. Chart and
// version order is preserved exactly as encountered during decode — Go maps
// cannot do this, so entries are kept in parallel ordered slices.
type Document struct {
	APIVersion string
	Generated  string
	charts     []string                        // chart names, encounter order
	versions   map[string][]chartarchive.VersionRecord // name -> versions, encounter order
}

// NewDocument returns an empty skeleton document, matching the synthesized
// "apiVersion: v1\nentries:\n" skeleton the orchestrator produces when no
// index.yaml exists yet.
func NewDocument() *Document {
	return &Document{
		APIVersion: "v1",
		charts:     nil,
		versions:   make(map[string][]chartarchive.VersionRecord),
	}
}

// Entries returns every chart name currently in the document, in encounter
// order.
func (d *Document) Entries() []string {
	out := make([]string, len(d.charts))
	copy(out, d.charts)
	return out
}

// EntriesByChart returns the version records for name, in encounter order.
// Returns nil if name is not present.
func (d *Document) EntriesByChart(name string) []chartarchive.VersionRecord {
	return d.versions[name]
}

// ByChartAndVersion looks up a single version record.
func (d *Document) ByChartAndVersion(name, version string) (chartarchive.VersionRecord, bool) {
	for _, rec := range d.versions[name] {
		if rec.Version == version {
			return rec, true
		}
	}
	return chartarchive.VersionRecord{}, false
}

// HasChart reports whether name has an entry in the document. A chart
// registered through AddNewChart or ParseDocument with an empty version list
// still counts as present.
func (d *Document) HasChart(name string) bool {
	_, ok := d.versions[name]
	return ok
}

// AddNewChart registers name with versions if name is not already present.
// A no-op when the chart already exists — callers wanting to append a
// version to an existing chart should mutate EntriesByChart's slice via
// AddVersion instead.
func (d *Document) AddNewChart(name string, versions []chartarchive.VersionRecord) {
	if d.HasChart(name) {
		return
	}
	d.charts = append(d.charts, name)
	d.versions[name] = versions
}

// AddVersion appends rec to name's version list, creating the chart entry
// if necessary, unless a record with the same version already exists.
func (d *Document) AddVersion(name string, rec chartarchive.VersionRecord) (added bool) {
	for _, existing := range d.versions[name] {
		if existing.Version == rec.Version {
			return false
		}
	}
	if !d.HasChart(name) {
		d.charts = append(d.charts, name)
	}
	d.versions[name] = append(d.versions[name], rec)
	return true
}

// RemoveVersion deletes the record for (name, version). If the chart has no
// versions left afterward, the chart entry itself is removed. Reports
// whether anything was removed.
func (d *Document) RemoveVersion(name, version string) bool {
	recs, ok := d.versions[name]
	if !ok {
		return false
	}
	kept := recs[:0:0]
	removed := false
	for _, rec := range recs {
		if rec.Version == version {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return false
	}
	if len(kept) == 0 {
		delete(d.versions, name)
		d.removeChartName(name)
	} else {
		d.versions[name] = kept
	}
	return true
}

// RemoveChart deletes every version of name. Reports whether the chart was
// present.
func (d *Document) RemoveChart(name string) bool {
	if !d.HasChart(name) {
		return false
	}
	delete(d.versions, name)
	d.removeChartName(name)
	return true
}

func (d *Document) removeChartName(name string) {
	for i, n := range d.charts {
		if n == name {
			d.charts = append(d.charts[:i], d.charts[i+1:]...)
			return
		}
	}
}

// Dump recomputes Generated to now and encodes the document in block-style
// YAML matching Helm's own index.yaml formatting: a 2-space indent, with a
// chart's "- " version items at the same indent as the chart name, which is
// the layout the streaming rewriter reads.
func (d *Document) Dump(now time.Time) ([]byte, error) {
	d.Generated = now.UTC().Format(TimestampLayout)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	enc.CompactSeqIndent()
	if err := enc.Encode(d.toNode()); err != nil {
		return nil, err
	}
	err := enc.Close()
	return buf.Bytes(), err
}

// DumpEmptyAsAbsent returns nil (no bytes at all) when the document has no
// chart entries, and otherwise behaves like Dump. Consumers that treat a
// missing index differently from an empty one use this.
func (d *Document) DumpEmptyAsAbsent(now time.Time) ([]byte, error) {
	if len(d.charts) == 0 {
		return nil, nil
	}
	return d.Dump(now)
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func (d *Document) toNode() *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content, scalar("apiVersion"), scalar(d.APIVersion))

	entries := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range d.charts {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, rec := range d.versions[name] {
			seq.Content = append(seq.Content, versionRecordNode(rec))
		}
		entries.Content = append(entries.Content, scalar(name), seq)
	}
	root.Content = append(root.Content, scalar("entries"), entries)
	root.Content = append(root.Content, scalar("generated"), scalar(d.Generated))
	return root
}

// versionRecordNode builds the mapping node for one version record, in the
// field order created, urls, digest, then manifest fields in manifest
// order. When the manifest does not carry name or version, they are taken
// from rec and emitted last.
func versionRecordNode(rec chartarchive.VersionRecord) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, scalar("created"), scalar(rec.Created))

	urls := &yaml.Node{Kind: yaml.SequenceNode}
	for _, u := range rec.URLs {
		urls.Content = append(urls.Content, scalar(u))
	}
	m.Content = append(m.Content, scalar("urls"), urls)
	m.Content = append(m.Content, scalar("digest"), scalar(rec.Digest))
	if rec.Removed {
		m.Content = append(m.Content, scalar("removed"), scalar("true"))
	}

	hasName, hasVersion := false, false
	if rec.Manifest != nil {
		for i := 0; i+1 < len(rec.Manifest.Content); i += 2 {
			key := rec.Manifest.Content[i].Value
			if key == "created" || key == "urls" || key == "digest" {
				continue
			}
			hasName = hasName || key == "name"
			hasVersion = hasVersion || key == "version"
			m.Content = append(m.Content, rec.Manifest.Content[i], rec.Manifest.Content[i+1])
		}
	}
	if !hasName && rec.Name != "" {
		m.Content = append(m.Content, scalar("name"), scalar(rec.Name))
	}
	if !hasVersion && rec.Version != "" {
		m.Content = append(m.Content, scalar("version"), scalar(rec.Version))
	}
	return m
}

// renderVersionRecordBlock marshals rec as a single "- "-prefixed YAML
// block indented at indent spaces, for splicing into a streamed rewrite.
// Created is always stamped to now — this path is only used for records
// the rewriter is newly inserting, never for echoing existing ones.
func renderVersionRecordBlock(rec chartarchive.VersionRecord, now time.Time, indent int) ([]byte, error) {
	rec.Created = now.UTC().Format(TimestampLayout)
	data, err := yaml.Marshal(versionRecordNode(rec))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	prefix := strings.Repeat(" ", indent)
	var buf bytes.Buffer
	for i, l := range lines {
		if i == 0 {
			buf.WriteString(prefix + "- " + l + "\n")
		} else {
			buf.WriteString(prefix + "  " + l + "\n")
		}
	}
	return buf.Bytes(), nil
}
