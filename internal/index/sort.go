package index

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/chartvault/chartvault/internal/chartarchive"
)

// VersionsSorted returns name's versions ordered newest-first by semantic
// version, for any consumer presenting a chart's versions to a human or
// tool rather than reproducing the index's on-disk order. Versions that
// fail to parse as semver sort after every valid one, matching Helm's own
// ChartVersions.Less.
func (d *Document) VersionsSorted(name string) []chartarchive.VersionRecord {
	recs := d.EntriesByChart(name)
	out := make([]chartarchive.VersionRecord, len(recs))
	copy(out, recs)

	sort.SliceStable(out, func(i, j int) bool {
		vi, erri := semver.NewVersion(out[i].Version)
		vj, errj := semver.NewVersion(out[j].Version)
		if erri != nil && errj != nil {
			return false
		}
		if erri != nil {
			return false
		}
		if errj != nil {
			return true
		}
		return vi.GreaterThan(vj)
	})
	return out
}

// Latest returns name's highest semver version, or false if name has no
// parseable versions.
func (d *Document) Latest(name string) (chartarchive.VersionRecord, bool) {
	sorted := d.VersionsSorted(name)
	for _, rec := range sorted {
		if _, err := semver.NewVersion(rec.Version); err == nil {
			return rec, true
		}
	}
	return chartarchive.VersionRecord{}, false
}
