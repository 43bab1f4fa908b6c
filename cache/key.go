// Package cache provides canonical result fingerprints and a single-flight
// result cache for derived-grid and query computations.
package cache

import (
	"crypto/md5"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/cespare/xxhash/v2"
)

// FileSignature fingerprints a file's identity and modification state:
// resolved path, inode, size and mtime. Two processes observing the same
// unchanged file compute the same signature; any change to the file changes
// it.
func FileSignature(path string) (string, error) {
	fStat, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if stat, ok := fStat.Sys().(*syscall.Stat_t); ok {
		sig := fmt.Sprintf("%s%d%d%d%d", path, stat.Ino, stat.Size, stat.Mtim.Sec, stat.Mtim.Nsec)
		return fmt.Sprintf("%x", md5.Sum([]byte(sig))), nil
	}
	sig := fmt.Sprintf("%s%d%d", path, fStat.Size(), fStat.ModTime().UnixNano())
	return fmt.Sprintf("%x", md5.Sum([]byte(sig))), nil
}

// Key is the canonical fingerprint of one computation: the identity of the
// backend resource, the identity of the function applied, and every
// parameter value. Parameter order does not matter. The fingerprint never
// depends on object identity, so logically identical computations from
// different instances share a cache entry.
type Key struct {
	Resource string
	Function string
	Params   map[string]interface{}
}

func NewKey(resource, function string, params map[string]interface{}) Key {
	return Key{Resource: resource, Function: function, Params: params}
}

// Canonical renders the key as a stable string with parameters in sorted
// key order.
func (k Key) Canonical() string {
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(k.Resource)
	sb.WriteString("|")
	sb.WriteString(k.Function)
	for _, name := range names {
		fmt.Fprintf(&sb, "|%s=%v", name, k.Params[name])
	}
	return sb.String()
}

// String is the hashed form of Canonical, suitable as a map key or a
// memcache key.
func (k Key) String() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(k.Canonical()))
}
