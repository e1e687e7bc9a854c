package index

import (
	"fmt"

	"github.com/chartvault/chartvault/internal/chartarchive"
	"gopkg.in/yaml.v3"
)

// ParseDocument decodes raw index.yaml bytes into a Document, preserving
// chart and version encounter order. An empty raw (no prior index) yields
// NewDocument().
func ParseDocument(raw []byte) (*Document, error) {
	if len(raw) == 0 {
		return NewDocument(), nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("index: parsing index.yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return NewDocument(), nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("index: index.yaml top level is not a mapping")
	}

	doc := NewDocument()
	var entriesNode *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i].Value, top.Content[i+1]
		switch key {
		case "apiVersion":
			doc.APIVersion = val.Value
		case "generated":
			doc.Generated = val.Value
		case "entries":
			entriesNode = val
		}
	}
	if entriesNode == nil {
		return doc, nil
	}

	for i := 0; i+1 < len(entriesNode.Content); i += 2 {
		name := entriesNode.Content[i].Value
		seq := entriesNode.Content[i+1]
		var records []chartarchive.VersionRecord
		for _, item := range seq.Content {
			rec, err := parseVersionRecord(name, item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		doc.AddNewChart(name, records)
	}
	return doc, nil
}

func parseVersionRecord(chartName string, m *yaml.Node) (chartarchive.VersionRecord, error) {
	if m.Kind != yaml.MappingNode {
		return chartarchive.VersionRecord{}, fmt.Errorf("index: version record for %q is not a mapping", chartName)
	}

	rec := chartarchive.VersionRecord{Name: chartName}
	manifest := &yaml.Node{Kind: yaml.MappingNode}

	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		switch key {
		case "created":
			rec.Created = val.Value
		case "digest":
			rec.Digest = val.Value
		case "urls":
			for _, u := range val.Content {
				rec.URLs = append(rec.URLs, u.Value)
			}
		case "removed":
			rec.Removed = val.Value == "true"
		case "version":
			rec.Version = val.Value
			manifest.Content = append(manifest.Content, m.Content[i], val)
		case "name":
			manifest.Content = append(manifest.Content, m.Content[i], val)
		default:
			manifest.Content = append(manifest.Content, m.Content[i], val)
		}
	}
	rec.Manifest = manifest
	return rec, nil
}
