package chartarchive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func buildTgz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
	return buf.Bytes()
}

const sampleChartYAML = `apiVersion: v2
name: demo
version: 1.2.3
description: a demo chart
appVersion: "1.0"
`

func TestParseValidArchive(t *testing.T) {
	raw := buildTgz(t, map[string]string{
		"demo/Chart.yaml":          sampleChartYAML,
		"demo/templates/dummy.yml": "kind: ConfigMap",
	})

	archive, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if archive.Name != "demo" {
		t.Errorf("Name = %q, want demo", archive.Name)
	}
	if archive.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", archive.Version)
	}
	if archive.Filename() != "demo-1.2.3.tgz" {
		t.Errorf("Filename() = %q", archive.Filename())
	}

	sum := sha256.Sum256(raw)
	if archive.Digest() != hex.EncodeToString(sum[:]) {
		t.Errorf("Digest() mismatch")
	}
}

func TestParseRejectsNonGzip(t *testing.T) {
	_, err := Parse([]byte("not a gzip stream"))
	if !IsMalformed(err) {
		t.Fatalf("Parse on garbage = %v, want MalformedArchiveError", err)
	}
}

func TestParseRejectsMissingChartYAML(t *testing.T) {
	raw := buildTgz(t, map[string]string{"demo/values.yaml": "replicaCount: 1"})
	_, err := Parse(raw)
	if !IsMalformed(err) {
		t.Fatalf("Parse without Chart.yaml = %v, want MalformedArchiveError", err)
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	raw := buildTgz(t, map[string]string{"demo/Chart.yaml": "version: 1.0.0\n"})
	_, err := Parse(raw)
	if !IsMalformed(err) {
		t.Fatalf("Parse without name = %v, want MalformedArchiveError", err)
	}
}

func TestParseRejectsMissingVersion(t *testing.T) {
	raw := buildTgz(t, map[string]string{"demo/Chart.yaml": "name: demo\n"})
	_, err := Parse(raw)
	if !IsMalformed(err) {
		t.Fatalf("Parse without version = %v, want MalformedArchiveError", err)
	}
}

func TestParseRejectsInvalidName(t *testing.T) {
	raw := buildTgz(t, map[string]string{"demo/Chart.yaml": "name: Not_Valid!\nversion: 1.0.0\n"})
	_, err := Parse(raw)
	if !IsMalformed(err) {
		t.Fatalf("Parse with invalid name = %v, want MalformedArchiveError", err)
	}
}

func TestMetadataURLJoining(t *testing.T) {
	raw := buildTgz(t, map[string]string{"demo/Chart.yaml": sampleChartYAML})
	archive, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cases := []struct {
		baseURL string
		want    string
	}{
		{"http://localhost:8080/", "http://localhost:8080/demo-1.2.3.tgz"},
		{"http://localhost:8080", "http://localhost:8080/demo-1.2.3.tgz"},
	}
	for _, c := range cases {
		rec := archive.Metadata(c.baseURL)
		if rec.URLs[0] != c.want {
			t.Errorf("Metadata(%q).URLs[0] = %q, want %q", c.baseURL, rec.URLs[0], c.want)
		}
		if rec.Digest != archive.Digest() {
			t.Errorf("Metadata digest mismatch")
		}
		if rec.Created != "" {
			t.Errorf("Metadata.Created should be blank, got %q", rec.Created)
		}
	}
}

func TestParseMatchesNestedChartYAML(t *testing.T) {
	// Chart.yaml need not be at the tar root, just named "Chart.yaml".
	raw := buildTgz(t, map[string]string{
		"demo/Chart.yaml": sampleChartYAML,
	})
	archive, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if archive.Name != "demo" {
		t.Fatalf("Name = %q, want demo", archive.Name)
	}
}
