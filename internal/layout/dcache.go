package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Increment when the cached payload format changes.
const probeCacheSchemaVersion uint16 = 1

// Digest keys a cached probe result. It covers the compiler identity, the
// probe flag set and the full probe source, so a cache hit is guaranteed to
// describe the same compilation the run would otherwise perform.
type Digest [sha256.Size]byte

// CacheKey derives the cache digest for one probe invocation.
func CacheKey(ccVersion string, flags []string, src string) Digest {
	h := sha256.New()
	h.Write([]byte(ccVersion))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(flags, "\x00")))
	h.Write([]byte{0})
	h.Write([]byte(src))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ProbeCache persists probe stdout on disk. It is opt-in: probing stays
// fresh per run unless the caller explicitly asks for it, and a miss or
// corrupt entry just means the probe runs again.
// Thread-safe for concurrent access.
type ProbeCache struct {
	mu  sync.RWMutex
	dir string
}

type cachePayload struct {
	Schema uint16
	Stdout string
}

// OpenProbeCache initializes a probe cache at the standard location.
func OpenProbeCache(app string) (*ProbeCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app, "probes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ProbeCache{dir: dir}, nil
}

func (c *ProbeCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes one probe result, replacing atomically.
func (c *ProbeCache) Put(key Digest, stdout string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(&cachePayload{Schema: probeCacheSchemaVersion, Stdout: stdout}); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p)
}

// Get looks a probe result up; ok is false on a miss or a schema mismatch.
func (c *ProbeCache) Get(key Digest) (stdout string, ok bool, err error) {
	if c == nil {
		return "", false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return "", false, err
	}
	if payload.Schema != probeCacheSchemaVersion {
		return "", false, nil
	}
	return payload.Stdout, true, nil
}
