package shadercache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/core"
)

// Files are an ASCII header line followed by the backend's opaque program
// blob. The header is bumped whenever the layout changes, invalidating old
// files implicitly.
const diskCacheHeader = "prism shader cache v1\n"

// cacheFilename derives the on-disk path for a cache key: the hex digest of
// the full generated text (including pass type and blend state).
func (sc *ShaderCache) cacheFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(sc.cacheDir, strings.ToUpper(hex.EncodeToString(sum[:])))
}

// loadCachedProgram returns the stored program blob, or nil if the file is
// missing, unreadable or carries a stale header. All failures are silent;
// the cache is an optimization.
func (sc *ShaderCache) loadCachedProgram(filename string) []byte {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil
	}
	rest, ok := strings.CutPrefix(string(data), diskCacheHeader)
	if !ok {
		return nil
	}
	return []byte(rest)
}

// storeCachedProgram writes the blob under a unique temp name and renames it
// into place, so concurrent player instances never observe a torn file.
// Best-effort; failures are logged at debug level and ignored.
func (sc *ShaderCache) storeCachedProgram(filename string, blob []byte) {
	if err := os.MkdirAll(sc.cacheDir, 0o755); err != nil {
		core.LogDebug("creating shader cache dir: %v", err)
		return
	}

	core.LogDebug("writing shader cache file: %s", filename)

	tmp := filename + "." + uuid.NewString() + ".tmp"
	data := append([]byte(diskCacheHeader), blob...)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		core.LogDebug("writing shader cache file: %v", err)
		return
	}
	if err := os.Rename(tmp, filename); err != nil {
		core.LogDebug("renaming shader cache file: %v", err)
		os.Remove(tmp)
	}
}
