// Package chartarchive parses uploaded Helm chart tarballs: it extracts
// Chart.yaml, computes the content digest, and derives the canonical
// storage filename and index version record.
package chartarchive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"
)

// MalformedArchiveError reports why an uploaded archive could not be read.
type MalformedArchiveError struct {
	Reason string
}

func (e *MalformedArchiveError) Error() string {
	return fmt.Sprintf("malformed chart archive: %s", e.Reason)
}

func malformed(reason string) error {
	return &MalformedArchiveError{Reason: reason}
}

// IsMalformed reports whether err is a MalformedArchiveError.
func IsMalformed(err error) bool {
	_, ok := err.(*MalformedArchiveError)
	return ok
}

var chartNameRegexp = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateChartName enforces Helm's DNS-1123-subdomain-like chart name rule.
func ValidateChartName(name string) error {
	if name == "" {
		return malformed("Chart.yaml missing name")
	}
	if len(name) > 63 {
		return malformed("chart name too long")
	}
	if !chartNameRegexp.MatchString(name) {
		return malformed(fmt.Sprintf("invalid chart name %q", name))
	}
	return nil
}

// ValidateVersion requires version to be non-empty; semantic validity is
// not enforced here since Helm itself accepts non-semver build metadata in
// some tooling-generated charts — callers that need strict semver parsing
// use Masterminds/semver/v3 explicitly (see internal/index sort helpers).
func ValidateVersion(version string) error {
	if version == "" {
		return malformed("Chart.yaml missing version")
	}
	return nil
}

// Archive is a parsed, immutable view over an uploaded chart tarball.
type Archive struct {
	// Content is the raw, undecompressed bytes as uploaded.
	Content []byte

	// Name and Version come from Chart.yaml.
	Name    string
	Version string

	// Manifest is the decoded Chart.yaml, kept as a yaml.Node mapping so
	// that field order survives the round trip into an index entry.
	Manifest *yaml.Node

	digest digest.Digest
}

// Parse reads raw, verifies it is a gzip+tar stream containing a
// Chart.yaml with name and version, and returns the parsed Archive.
func Parse(raw []byte) (*Archive, error) {
	gz, err := gzip.NewReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, malformed("not a valid gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	var chartYAML []byte
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("not a valid tar stream")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Name == "Chart.yaml" || strings.HasSuffix(hdr.Name, "/Chart.yaml") {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, malformed("failed reading Chart.yaml")
			}
			chartYAML = data
			break
		}
	}
	if chartYAML == nil {
		return nil, malformed("no Chart.yaml entry found")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(chartYAML, &doc); err != nil {
		return nil, malformed("Chart.yaml is not valid YAML: " + err.Error())
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, malformed("Chart.yaml is not a mapping")
	}
	manifest := doc.Content[0]

	name, _ := mappingString(manifest, "name")
	version, _ := mappingString(manifest, "version")

	if err := ValidateChartName(name); err != nil {
		return nil, err
	}
	if err := ValidateVersion(version); err != nil {
		return nil, err
	}

	return &Archive{
		Content:  raw,
		Name:     name,
		Version:  version,
		Manifest: manifest,
		digest:   digest.FromBytes(raw),
	}, nil
}

// Digest returns the hex SHA-256 digest of the archive's raw content.
func (a *Archive) Digest() string {
	return a.digest.Encoded()
}

// Filename derives the canonical storage key "{name}-{version}.tgz".
func (a *Archive) Filename() string {
	return fmt.Sprintf("%s-%s.tgz", a.Name, a.Version)
}

// VersionRecord is the per-(name,version) entry embedded in an index
// document. Created is left empty by Metadata; the index layer stamps it
// at write time since only it knows "now".
type VersionRecord struct {
	Name    string
	Version string
	Digest  string
	URLs    []string
	Created string

	// Removed mirrors Helm's own deprecation flag (set by `helm repo index
	// --merge` on charts pulled from an upstream index). chartvault never
	// sets this itself; it only preserves the value of entries it already
	// carries this flag on.
	Removed bool

	Manifest *yaml.Node // the full Chart.yaml mapping, field order preserved
}

// Metadata builds the VersionRecord for a, with urls[0] derived from
// baseURL and the archive's canonical filename. Created is left blank; the
// index writer fills it in when the record is actually committed.
func (a *Archive) Metadata(baseURL string) VersionRecord {
	url := strings.TrimSuffix(baseURL, "/") + "/" + a.Filename()
	if strings.HasSuffix(baseURL, "/") {
		url = baseURL + a.Filename()
	}
	return VersionRecord{
		Name:     a.Name,
		Version:  a.Version,
		Digest:   a.Digest(),
		URLs:     []string{url},
		Manifest: a.Manifest,
	}
}

// mappingString looks up key in a yaml.Node mapping and returns its scalar
// string value.
func mappingString(mapping *yaml.Node, key string) (string, bool) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1].Value, true
		}
	}
	return "", false
}
