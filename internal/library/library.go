// Package library implements the in-memory song table: walking a directory
// tree, building/updating the song index, id lookup, filtered select, and
// grouped unique queries. Grounded on the teacher's playlist.TrackLibrary
// (id allocation, RWMutex, atomic replace-on-reset) and
// playlist.ScanMusicDirectory/ScanIntoLibrary/ReconcileTracks (walk,
// parallel probe, tombstone-and-append update cycle).
package library

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yumeno-dev/musingd/internal/comparator"
	"github.com/yumeno-dev/musingd/internal/errkind"
	"github.com/yumeno-dev/musingd/internal/filter"
	"github.com/yumeno-dev/musingd/internal/song"
	"github.com/yumeno-dev/musingd/internal/tag"
)

// Row is one library entry. Rows are kept sorted by ID, enabling
// binary-search lookup.
type Row struct {
	ID         uint32
	Song       *song.Song
	Tombstoned bool
}

// Index is the in-memory song table.
type Index struct {
	mu         sync.RWMutex
	rows       []Row
	nextID     uint32
	root       string
	exts       map[string]bool
	lastUpdate time.Time
}

// DefaultExtensions is the library's default set of recognized audio file
// extensions, per spec §6.
var DefaultExtensions = []string{"aac", "aif", "aifc", "aiff", "flac", "m4a", "mp3", "oga", "ogg", "wav"}

// New creates an empty Index rooted at root, accepting the given extensions
// (without leading dots; case-insensitive).
func New(root string, exts []string) *Index {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[strings.ToLower(e)] = true
	}
	return &Index{root: root, exts: m}
}

func numWorkers() int {
	if n := runtime.NumCPU(); n > 1 {
		return n
	}
	return 1
}

// probedFile is an intermediate result of walking+probing one path.
type probedFile struct {
	path string
	song *song.Song
	err  error
}

// walkCandidates walks root, yielding paths with an allowed extension whose
// modification time (see fileCreateOrModTime) is >= watermark.
func (idx *Index) walkCandidates(watermark time.Time) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Warn("library: error accessing path during walk", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if !idx.exts[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			slog.Warn("library: stat failed", "path", path, "error", err)
			return nil
		}
		if fileCreateOrModTime(info).Before(watermark) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Database, fmt.Errorf("walk %s: %w", idx.root, err))
	}
	return paths, nil
}

// probeAll probes every path in parallel via an errgroup worker pool. Failed
// probes are logged and omitted from the result, matching ScanResult.Errors
// in the teacher.
func probeAll(ctx context.Context, paths []string) []probedFile {
	results := make([]probedFile, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers())
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			s, err := song.From(p, true)
			results[i] = probedFile{path: p, song: s, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]probedFile, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			slog.Warn("library: failed to probe file", "path", r.path, "error", r.err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Build walks root, probes every candidate file in parallel, and assigns
// sequential ids starting at 1. Pass watermark = time.Unix(0,0) for a full
// build (spec's "UNIX_EPOCH as no-watermark" convention).
func (idx *Index) Build(ctx context.Context, watermark time.Time) error {
	paths, err := idx.walkCandidates(watermark)
	if err != nil {
		return err
	}
	probed := probeAll(ctx, paths)

	sort.Slice(probed, func(i, j int) bool { return probed[i].path < probed[j].path })

	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows := make([]Row, 0, len(probed))
	var id uint32 = 1
	for _, p := range probed {
		rows = append(rows, Row{ID: id, Song: p.song})
		id++
	}
	idx.rows = rows
	idx.nextID = id
	idx.lastUpdate = time.Now()

	slog.Info("library: build complete", "root", idx.root, "songs", len(rows))
	return nil
}

// Reset rebuilds the index from scratch, replacing it atomically from the
// caller's perspective. Any id held by outside code becomes invalid.
func (idx *Index) Reset(ctx context.Context) error {
	return idx.Build(ctx, time.Unix(0, 0))
}

// Lookup returns the song with the given id via binary search, or false if
// not found or tombstoned.
func (idx *Index) Lookup(id uint32) (*song.Song, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i := sort.Search(len(idx.rows), func(i int) bool { return idx.rows[i].ID >= id })
	if i >= len(idx.rows) || idx.rows[i].ID != id || idx.rows[i].Tombstoned {
		return nil, false
	}
	return idx.rows[i].Song, true
}

// Update re-probes existing rows whose file has changed, tombstones rows
// whose file is gone, compacts tombstones, then appends newly discovered
// files with ids starting at max_id+1. Returns the count of new files.
func (idx *Index) Update(ctx context.Context) (int, error) {
	idx.mu.RLock()
	rowsSnapshot := make([]Row, len(idx.rows))
	copy(rowsSnapshot, idx.rows)
	watermark := idx.lastUpdate
	idx.mu.RUnlock()

	// Pass 1: re-probe rows whose file mtime >= lastUpdate; tombstone gone files.
	type reprobeResult struct {
		idx        int
		song       *song.Song
		tombstoned bool
	}
	results := make([]reprobeResult, len(rowsSnapshot))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers())
	for i, row := range rowsSnapshot {
		i, row := i, row
		g.Go(func() error {
			info, err := osStat(row.Song.Path)
			if err != nil {
				results[i] = reprobeResult{idx: i, tombstoned: true}
				return nil
			}
			if info.ModTime().Before(watermark) {
				results[i] = reprobeResult{idx: i, song: row.Song}
				return nil
			}
			s, err := song.From(row.Song.Path, true)
			if err != nil {
				slog.Warn("library: re-probe failed, tombstoning", "path", row.Song.Path, "error", err)
				results[i] = reprobeResult{idx: i, tombstoned: true}
				return nil
			}
			results[i] = reprobeResult{idx: i, song: s}
			return nil
		})
	}
	_ = g.Wait()

	compacted := make([]Row, 0, len(rowsSnapshot))
	for i, row := range rowsSnapshot {
		r := results[i]
		if r.tombstoned {
			continue // compact tombstones
		}
		compacted = append(compacted, Row{ID: row.ID, Song: r.song})
	}

	// Pass 2: walk for files with mtime >= lastUpdate; probe and append.
	paths, err := idx.walkCandidates(watermark)
	if err != nil {
		return 0, err
	}

	known := make(map[string]bool, len(compacted))
	for _, r := range compacted {
		known[r.Song.Path] = true
	}
	var fresh []string
	for _, p := range paths {
		abs, _ := filepath.Abs(p)
		if !known[abs] && !known[p] {
			fresh = append(fresh, p)
		}
	}

	probed := probeAll(ctx, fresh)
	sort.Slice(probed, func(i, j int) bool { return probed[i].path < probed[j].path })

	idx.mu.Lock()
	defer idx.mu.Unlock()

	nextID := idx.nextID
	if nextID == 0 {
		for _, r := range compacted {
			if r.ID >= nextID {
				nextID = r.ID + 1
			}
		}
	}

	newCount := 0
	for _, p := range probed {
		compacted = append(compacted, Row{ID: nextID, Song: p.song})
		nextID++
		newCount++
	}

	idx.rows = compacted
	idx.nextID = nextID
	idx.lastUpdate = time.Now()

	slog.Info("library: update complete", "new_files", newCount, "total", len(compacted))
	return newCount, nil
}

// Metadata returns, for each id, a mapping from each requested tag to its
// string value or nil; missing ids yield all-nil entries.
func (idx *Index) Metadata(ids []uint32, tags []tag.Key) []map[tag.Key]*string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]map[tag.Key]*string, len(ids))
	for i, id := range ids {
		row := idx.findUnsafe(id)
		m := make(map[tag.Key]*string, len(tags))
		for _, t := range tags {
			if row == nil {
				m[t] = nil
				continue
			}
			if v, ok := row.Song.Metadata.Get(t); ok {
				vv := v
				m[t] = &vv
			} else {
				m[t] = nil
			}
		}
		out[i] = m
	}
	return out
}

func (idx *Index) findUnsafe(id uint32) *Row {
	i := sort.Search(len(idx.rows), func(i int) bool { return idx.rows[i].ID >= id })
	if i >= len(idx.rows) || idx.rows[i].ID != id || idx.rows[i].Tombstoned {
		return nil
	}
	return &idx.rows[i]
}

// Select filters all songs by expr, then sorts by sortBy (left-to-right
// precedence, ties broken by later keys, final tie-break by id).
func (idx *Index) Select(expr *filter.Expr, sortBy []comparator.Comparator) []uint32 {
	idx.mu.RLock()
	rows := make([]Row, len(idx.rows))
	copy(rows, idx.rows)
	idx.mu.RUnlock()

	matched := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Tombstoned {
			continue
		}
		if expr.Eval(r.Song.Metadata) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		cmp := comparator.Chain(sortBy, matched[i].Song.Metadata, matched[j].Song.Metadata)
		if cmp != 0 {
			return cmp < 0
		}
		return matched[i].ID < matched[j].ID
	})

	ids := make([]uint32, len(matched))
	for i, r := range matched {
		ids[i] = r.ID
	}
	return ids
}

// GroupRow is one row of a Unique query: the group's tag values plus the
// set of distinct target-tag values observed within the group.
type GroupRow struct {
	Group  map[tag.Key]string
	Values []*string // nil entry included if any song in the group lacks the target tag
}

// Unique groups filtered songs by groupBy and, for each group, collects the
// distinct values of target (nil included if any member lacks it).
func (idx *Index) Unique(target tag.Key, groupBy []tag.Key, expr *filter.Expr) []GroupRow {
	idx.mu.RLock()
	rows := make([]Row, len(idx.rows))
	copy(rows, idx.rows)
	idx.mu.RUnlock()

	type group struct {
		keyVals map[tag.Key]string
		values  map[string]bool // distinct target values; a missing tag sets hasNil
		hasNil  bool
	}
	groups := make(map[string]*group)
	var order []string

	for _, r := range rows {
		if r.Tombstoned || !expr.Eval(r.Song.Metadata) {
			continue
		}
		keyVals := make(map[tag.Key]string, len(groupBy))
		var keyParts []string
		for _, g := range groupBy {
			v, _ := r.Song.Metadata.Get(g)
			keyVals[g] = v
			keyParts = append(keyParts, v)
		}
		key := strings.Join(keyParts, "\x1f")

		grp, ok := groups[key]
		if !ok {
			grp = &group{keyVals: keyVals, values: make(map[string]bool)}
			groups[key] = grp
			order = append(order, key)
		}

		if v, ok := r.Song.Metadata.Get(target); ok {
			grp.values[v] = true
		} else {
			grp.hasNil = true
		}
	}

	sort.Strings(order)

	out := make([]GroupRow, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		var vals []*string
		var sortedVals []string
		for v := range grp.values {
			sortedVals = append(sortedVals, v)
		}
		sort.Strings(sortedVals)
		for _, v := range sortedVals {
			vv := v
			vals = append(vals, &vv)
		}
		if grp.hasNil {
			vals = append(vals, nil)
		}
		out = append(out, GroupRow{Group: grp.keyVals, Values: vals})
	}
	return out
}

// Count returns the number of non-tombstoned rows.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, r := range idx.rows {
		if !r.Tombstoned {
			n++
		}
	}
	return n
}
