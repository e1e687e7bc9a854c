// Package repo implements the add/delete orchestrator: it snapshots the live
// index, invokes the streaming rewriter (Add, deletes) or the full-load
// updater (Push), stages the result under a temporary blob key, and commits
// it onto the live key with a single Move in the blob store. Index writes
// for a given repository are serialized with a process-wide mutex so the
// commit move never races with itself.
package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chartvault/chartvault/internal/cache"
	"github.com/chartvault/chartvault/internal/chartarchive"
	"github.com/chartvault/chartvault/internal/index"
	"github.com/chartvault/chartvault/internal/logger"
	"github.com/chartvault/chartvault/internal/storage"
	"github.com/google/uuid"
)

// IndexKey is the well-known blob key of the live index document.
const IndexKey = "index.yaml"

// Repo wires the blob store, the streaming index rewriter, and the index
// cache together behind the add/delete/push surface the HTTP layer calls.
type Repo struct {
	store   storage.BlobStore
	cache   *cache.IndexCache
	log     *logger.Logger
	baseURL string

	mu      sync.Mutex // serializes index read-stage-rewrite-commit per key
	nowFunc func() time.Time
}

// New builds a Repo over store, serving chart URLs rooted at baseURL.
func New(store storage.BlobStore, idxCache *cache.IndexCache, log *logger.Logger, baseURL string) *Repo {
	return &Repo{
		store:   store,
		cache:   idxCache,
		log:     log,
		baseURL: baseURL,
		nowFunc: time.Now,
	}
}

func (r *Repo) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now()
}

// PushResult describes the outcome of a single chart push.
type PushResult struct {
	Archive *chartarchive.Archive
}

// Push stores raw as a chart blob and, unless updateIndex is false,
// rewrites the index to include it via the full-load path (component F) —
// the HTTP layer already holds the archive bytes in memory, so the
// simpler load-mutate-dump path is the natural one for a single upload.
func (r *Repo) Push(ctx context.Context, raw []byte, updateIndex bool) (*PushResult, error) {
	archive, err := chartarchive.Parse(raw)
	if err != nil {
		return nil, err
	}

	exists, err := r.store.Exists(ctx, archive.Filename())
	if err != nil {
		return nil, fmt.Errorf("repo: checking blob existence: %w", err)
	}
	if !exists {
		if err := r.store.Put(ctx, archive.Filename(), raw); err != nil {
			return nil, fmt.Errorf("repo: storing blob: %w", err)
		}
	}

	if !updateIndex {
		return &PushResult{Archive: archive}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.readIndex(ctx)
	if err != nil {
		return nil, err
	}

	rec := archive.Metadata(r.baseURL)
	if existing, ok, cerr := findRecord(current, archive.Name, archive.Version); cerr != nil {
		return nil, cerr
	} else if ok {
		if existing.Digest == rec.Digest {
			return &PushResult{Archive: archive}, nil
		}
		return nil, &index.AlreadyPresentError{Name: archive.Name, Version: archive.Version}
	}

	out, err := index.ApplyFullLoad(current, []index.PendingChart{{
		Name:     archive.Name,
		Versions: []chartarchive.VersionRecord{rec},
	}}, r.now())
	if err != nil {
		return nil, fmt.Errorf("repo: rewriting index: %w", err)
	}

	if err := r.commitIndex(ctx, out); err != nil {
		return nil, err
	}
	return &PushResult{Archive: archive}, nil
}

// Add stages and streams keys (already-stored chart blobs) into the index
// using the full streaming rewriter (component D), per spec.md's
// add(charts) operation. Unlike Push, this is for bulk re-indexing of
// blobs the caller already knows are on disk.
func (r *Repo) Add(ctx context.Context, keys []string) error {
	var pending []index.PendingChart
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("repo: fetching %s: %w", key, err)
		}
		archive, err := chartarchive.Parse(raw)
		if err != nil {
			return err
		}
		pending = append(pending, index.PendingChart{
			Name:     archive.Name,
			Versions: []chartarchive.VersionRecord{archive.Metadata(r.baseURL)},
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.readIndex(ctx)
	if err != nil {
		return err
	}

	for _, pc := range pending {
		for _, v := range pc.Versions {
			existing, ok, cerr := findRecord(current, pc.Name, v.Version)
			if cerr != nil {
				return cerr
			}
			if ok && existing.Digest != v.Digest {
				return &index.AlreadyPresentError{Name: pc.Name, Version: v.Version}
			}
		}
	}

	var out bytes.Buffer
	if err := index.RewriteAdd(bytes.NewReader(current), &out, pending, r.now()); err != nil {
		return fmt.Errorf("repo: rewriting index: %w", err)
	}

	return r.commitIndex(ctx, out.Bytes())
}

// DeleteChart removes every version of name. Returns NotFoundError if the
// chart has no entries.
func (r *Repo) DeleteChart(ctx context.Context, name string) error {
	return r.delete(ctx, []index.DeleteTarget{{Name: name}})
}

// DeleteVersion removes a single (name, version). Returns NotFoundError if
// absent.
func (r *Repo) DeleteVersion(ctx context.Context, name, version string) error {
	return r.delete(ctx, []index.DeleteTarget{{Name: name, Version: version}})
}

func (r *Repo) delete(ctx context.Context, targets []index.DeleteTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.Get(ctx, IndexKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return &index.MissingError{}
		}
		return fmt.Errorf("repo: reading index: %w", err)
	}

	doc, err := index.ParseDocument(current)
	if err != nil {
		return err
	}

	var toDeleteBlobs []string
	for _, t := range targets {
		if t.Version == "" {
			recs := doc.EntriesByChart(t.Name)
			if len(recs) == 0 {
				return &index.NotFoundError{Name: t.Name}
			}
			for _, rec := range recs {
				toDeleteBlobs = append(toDeleteBlobs, rec.Name+"-"+rec.Version+".tgz")
			}
			continue
		}
		if _, ok := doc.ByChartAndVersion(t.Name, t.Version); !ok {
			return &index.NotFoundError{Name: t.Name, Version: t.Version}
		}
		toDeleteBlobs = append(toDeleteBlobs, t.Name+"-"+t.Version+".tgz")
	}

	var out bytes.Buffer
	found, err := index.RewriteDelete(bytes.NewReader(current), &out, targets, r.now())
	if err != nil {
		return fmt.Errorf("repo: rewriting index for delete: %w", err)
	}
	for _, t := range targets {
		if !found[t] {
			return &index.NotFoundError{Name: t.Name, Version: t.Version}
		}
	}

	if err := r.commitIndex(ctx, out.Bytes()); err != nil {
		return err
	}

	for _, key := range toDeleteBlobs {
		if err := r.store.Delete(ctx, key); err != nil {
			r.log.Warn("failed deleting chart blob after index commit", "key", key, "error", err)
		}
	}
	return nil
}

// readIndex returns the current index.yaml bytes, or a synthesized empty
// skeleton if none exists yet.
func (r *Repo) readIndex(ctx context.Context) ([]byte, error) {
	raw, err := r.store.Get(ctx, IndexKey)
	if err == storage.ErrNotFound {
		return []byte("apiVersion: v1\nentries:\n"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: reading index: %w", err)
	}
	return raw, nil
}

// commitIndex stages out under a temp key and moves it onto the live index
// key, then invalidates the index cache, all within the same critical
// section, so no reader observes a stale document for longer than the
// commit itself takes, and the live key is never left partially written.
func (r *Repo) commitIndex(ctx context.Context, out []byte) error {
	tmpKey := fmt.Sprintf("%s.tmp-%s", IndexKey, uuid.NewString())
	if err := r.store.Put(ctx, tmpKey, out); err != nil {
		return fmt.Errorf("repo: staging index: %w", err)
	}
	if err := r.store.Move(ctx, tmpKey, IndexKey); err != nil {
		return fmt.Errorf("repo: committing index: %w", err)
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, IndexKey); err != nil {
			r.log.Warn("index cache invalidation failed", "error", err)
		}
	}
	return nil
}

// GetIndex returns the served index.yaml bytes, consulting the cache
// first if one is configured.
func (r *Repo) GetIndex(ctx context.Context) ([]byte, error) {
	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx, IndexKey); err == nil && ok {
			return cached, nil
		}
	}

	raw, err := r.store.Get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, IndexKey, raw); err != nil {
			r.log.Warn("index cache set failed", "error", err)
		}
	}
	return raw, nil
}

// GetChart fetches a stored chart blob by its canonical filename.
func (r *Repo) GetChart(ctx context.Context, filename string) ([]byte, error) {
	return r.store.Get(ctx, filename)
}

// GetChartReader opens filename for streaming, using the backend's Reader
// (component A's OpenReader) when it implements one so large chart
// tarballs don't have to be buffered into memory to be served. Backends
// without a streaming path (e.g. MemoryStore) fall back to a buffered Get
// wrapped in a no-op closer.
func (r *Repo) GetChartReader(ctx context.Context, filename string) (io.ReadCloser, error) {
	if streamer, ok := r.store.(storage.Reader); ok {
		return streamer.OpenReader(ctx, filename)
	}
	raw, err := r.store.Get(ctx, filename)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// LatestVersion resolves name's highest semver version record, for
// consumers (search/outdated-check tooling) that want "the current
// version" rather than reproducing the index's on-disk order.
func (r *Repo) LatestVersion(ctx context.Context, name string) (chartarchive.VersionRecord, bool, error) {
	raw, err := r.store.Get(ctx, IndexKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return chartarchive.VersionRecord{}, false, nil
		}
		return chartarchive.VersionRecord{}, false, err
	}
	doc, err := index.ParseDocument(raw)
	if err != nil {
		return chartarchive.VersionRecord{}, false, err
	}
	rec, ok := doc.Latest(name)
	return rec, ok, nil
}

func findRecord(raw []byte, name, version string) (chartarchive.VersionRecord, bool, error) {
	doc, err := index.ParseDocument(raw)
	if err != nil {
		return chartarchive.VersionRecord{}, false, err
	}
	rec, ok := doc.ByChartAndVersion(name, version)
	return rec, ok, nil
}
