package driver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when Artifact format changes
const diskCacheSchemaVersion uint8 = 1

// Artifact is a lowered unit as stored by a Cache.
type Artifact struct {
	// Schema version for safe invalidation when format changes
	Schema uint8

	Unit   string
	Triple string
	// Funcs lists the lowered functions in unit order.
	Funcs []string
	// IR is the printed LLVM module.
	IR string
}

// Cache stores lowered units by Digest. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(key Digest) (*Artifact, bool, error)
	Put(key Digest, a *Artifact) error
}

// DiskCache keeps artifacts as msgpack files under a directory.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache opens the cache at $XDG_CACHE_HOME/app (or ~/.cache/app).
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens the cache rooted at dir, creating it when missing.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "units", hexKey[:2], hexKey+".mp")
}

// Put serializes and writes an artifact. The file is replaced atomically.
func (c *DiskCache) Put(key Digest, a *Artifact) (err error) {
	if c == nil || a == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("remove temp file: %w", rmErr)
		}
	}()

	stored := *a
	stored.Schema = diskCacheSchemaVersion
	if err := msgpack.NewEncoder(f).Encode(&stored); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads an artifact. Entries written with another schema are misses.
func (c *DiskCache) Get(key Digest) (*Artifact, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if a.Schema != diskCacheSchemaVersion {
		return nil, false, nil
	}
	return &a, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
