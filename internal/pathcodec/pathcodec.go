// Package pathcodec converts between absolute file locations and the stable
// identifiers stored in the library database.
//
// Stable identifiers use one of two schemes:
//
//	doc:<relative path>    file under the document root
//	cache:<relative path>  file under the cache root
//
// Opaque identifiers (media library asset ids, content URIs) are passed
// through unchanged in both directions.
package pathcodec

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// Identifier schemes.
const (
	DocScheme   = "doc:"
	CacheScheme = "cache:"
)

const fileURIPrefix = "file://"

// legacyPattern maps an absolute path produced by an older install layout
// (sandbox container paths that embed a per-install identifier) to a scheme.
type legacyPattern struct {
	re     *regexp.Regexp
	scheme string
}

var legacyPatterns = []legacyPattern{
	{regexp.MustCompile(`/Data/Application/[0-9A-Fa-f-]{36}/Documents(?:/(.*))?$`), DocScheme},
	{regexp.MustCompile(`/Data/Application/[0-9A-Fa-f-]{36}/Library/Caches(?:/(.*))?$`), CacheScheme},
	{regexp.MustCompile(`^/data/(?:user/\d+|data)/[^/]+/files(?:/(.*))?$`), DocScheme},
	{regexp.MustCompile(`^/data/(?:user/\d+|data)/[^/]+/cache(?:/(.*))?$`), CacheScheme},
}

// Codec translates paths for one pair of storage roots.
// The roots may change between installs; stable ids survive that change.
type Codec struct {
	docRoot   string
	cacheRoot string
}

// New creates a codec for the given document and cache roots.
func New(docRoot, cacheRoot string) *Codec {
	return &Codec{
		docRoot:   cleanRoot(docRoot),
		cacheRoot: cleanRoot(cacheRoot),
	}
}

// DocRoot returns the current document root.
func (c *Codec) DocRoot() string { return c.docRoot }

// CacheRoot returns the current cache root.
func (c *Codec) CacheRoot() string { return c.cacheRoot }

// IsStable reports whether id already uses a stable scheme.
func IsStable(id string) bool {
	return strings.HasPrefix(id, DocScheme) || strings.HasPrefix(id, CacheScheme)
}

// ToStableID converts a path or URI into its stable identifier.
//
// Paths under a root are rewritten relative to that root (the longest
// matching root wins). Legacy sandbox paths are migrated to the scheme of the
// directory they pointed at. Other absolute paths are returned cleaned, and
// non-path identifiers are returned unchanged.
func (c *Codec) ToStableID(p string) string {
	if p == "" || IsStable(p) {
		return p
	}

	n, ok := normalize(p)
	if !ok {
		return p
	}

	if id, ok := c.underRoot(n); ok {
		return id
	}

	for _, lp := range legacyPatterns {
		if m := lp.re.FindStringSubmatch(n); m != nil {
			return lp.scheme + m[1]
		}
	}

	return n
}

// ToAbsolute converts a stable identifier into an absolute path under the
// current roots. Legacy absolute paths are migrated first. Anything that is
// not a path is returned unchanged.
func (c *Codec) ToAbsolute(id string) string {
	switch {
	case strings.HasPrefix(id, DocScheme):
		return join(c.docRoot, strings.TrimPrefix(id, DocScheme))
	case strings.HasPrefix(id, CacheScheme):
		return join(c.cacheRoot, strings.TrimPrefix(id, CacheScheme))
	}

	n, ok := normalize(id)
	if !ok {
		return id
	}
	if stable := c.ToStableID(n); IsStable(stable) {
		return c.ToAbsolute(stable)
	}
	return n
}

// Same reports whether a and b identify the same file.
func (c *Codec) Same(a, b string) bool {
	return c.ToStableID(a) == c.ToStableID(b)
}

// underRoot returns the stable id for n if it lives under one of the roots.
func (c *Codec) underRoot(n string) (string, bool) {
	type candidate struct {
		root   string
		scheme string
	}
	candidates := []candidate{{c.docRoot, DocScheme}, {c.cacheRoot, CacheScheme}}
	if len(c.cacheRoot) > len(c.docRoot) {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, cand := range candidates {
		if cand.root == "" {
			continue
		}
		if n == cand.root {
			return cand.scheme, true
		}
		prefix := cand.root
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if rest, found := strings.CutPrefix(n, prefix); found {
			return cand.scheme + filepath.ToSlash(rest), true
		}
	}
	return "", false
}

// normalize strips a file:// prefix, decodes percent escapes and cleans the
// result. It reports false when p is not a filesystem path.
func normalize(p string) (string, bool) {
	if rest, found := strings.CutPrefix(p, fileURIPrefix); found {
		if decoded, err := url.PathUnescape(rest); err == nil {
			rest = decoded
		}
		p = rest
	}
	if !filepath.IsAbs(p) {
		return "", false
	}
	return filepath.Clean(p), true
}

func cleanRoot(root string) string {
	if root == "" {
		return ""
	}
	if n, ok := normalize(root); ok {
		return n
	}
	if abs, err := filepath.Abs(root); err == nil && !strings.HasPrefix(root, fileURIPrefix) {
		return abs
	}
	return filepath.Clean(root)
}

func join(root, rel string) string {
	if rel == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}
