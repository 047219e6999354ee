package repeats

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tetools/tequant/internal/genome"
)

// FileFingerprint holds stat-based identity for a source file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// IndexCache manages a gob-serialized copy of a parsed repeat index so
// large BED files are parsed once per (size, mtime). Files live next to
// each other in the cache directory:
//
//	<dir>/repeats.gob       (serialized intervals)
//	<dir>/repeats.gob.meta  (source file fingerprint)
type IndexCache struct {
	dir string
}

// NewIndexCache creates an index cache rooted at dir.
func NewIndexCache(dir string) *IndexCache {
	return &IndexCache{dir: dir}
}

func (c *IndexCache) gobPath() string {
	return filepath.Join(c.dir, "repeats.gob")
}

func (c *IndexCache) metaPath() string {
	return filepath.Join(c.dir, "repeats.gob.meta")
}

// Valid reports whether the cached index matches the given source file.
func (c *IndexCache) Valid(src FileFingerprint) bool {
	meta, err := c.readMeta()
	if err != nil {
		return false
	}
	if meta["bed_size"] != strconv.FormatInt(src.Size, 10) {
		return false
	}
	if meta["bed_modtime"] != src.ModTime.UTC().Format(time.RFC3339Nano) {
		return false
	}
	if _, err := os.Stat(c.gobPath()); err != nil {
		return false
	}
	return true
}

// Save serializes the index contents and records the source fingerprint.
func (c *IndexCache) Save(idx *genome.Index, src FileFingerprint) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	var intervals []genome.Interval
	for _, contig := range idx.Contigs() {
		intervals = append(intervals, idx.All(contig, "")...)
	}

	f, err := os.Create(c.gobPath())
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(intervals); err != nil {
		return fmt.Errorf("encode intervals: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush cache file: %w", err)
	}

	meta := map[string]string{
		"bed_path":    src.Path,
		"bed_size":    strconv.FormatInt(src.Size, 10),
		"bed_modtime": src.ModTime.UTC().Format(time.RFC3339Nano),
	}
	return c.writeMeta(meta)
}

// Load rebuilds an index from the cached intervals.
func (c *IndexCache) Load() (*genome.Index, error) {
	f, err := os.Open(c.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	var intervals []genome.Interval
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&intervals); err != nil {
		return nil, fmt.Errorf("decode intervals: %w", err)
	}

	idx := genome.NewIndex()
	for _, iv := range intervals {
		idx.Add(iv)
	}
	idx.Build()
	return idx, nil
}

func (c *IndexCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		meta[k] = v
	}
	return meta, nil
}

func (c *IndexCache) writeMeta(meta map[string]string) error {
	var sb strings.Builder
	for k, v := range meta {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(c.metaPath(), []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}
	return nil
}

// LoadWithCache loads repeat annotations, using a valid cache when
// present and refreshing it otherwise. An empty cacheDir disables caching.
func LoadWithCache(bedPath, cacheDir string) (*genome.Index, error) {
	if cacheDir == "" {
		return NewLoader(bedPath).Load()
	}

	src, err := StatFile(bedPath)
	if err != nil {
		return nil, fmt.Errorf("stat repeat BED file: %w", err)
	}

	cache := NewIndexCache(cacheDir)
	if cache.Valid(src) {
		if idx, err := cache.Load(); err == nil {
			return idx, nil
		}
		// Corrupt cache falls through to a fresh parse.
	}

	idx, err := NewLoader(bedPath).Load()
	if err != nil {
		return nil, err
	}
	if err := cache.Save(idx, src); err != nil {
		return nil, fmt.Errorf("save repeat cache: %w", err)
	}
	return idx, nil
}
