package cache

import "path/filepath"

// Origin names the four external cache categories spec §3/§4.C define
// for dependency indexes shared read-only across Contexts.
type Origin string

const (
	OriginSDK       Origin = "sdk"
	OriginFramework Origin = "framework"
	OriginHosted    Origin = "hosted"
	OriginGit       Origin = "git"
)

// ExternalDir returns the shared cache directory for one external
// package, keyed by name+version (sdk/framework/hosted) or
// repo+short-commit (git): <cacheRoot>/<origin>/<key>.
func ExternalDir(cacheRoot string, origin Origin, key string) string {
	return filepath.Join(cacheRoot, string(origin), sanitizeKey(key))
}

// sanitizeKey replaces path separators in a package key so it can be
// used as a single path segment.
func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch r {
		case '/', '\\', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
