package scip

import "strings"

// Identifier is a parsed SCIP symbol ID: scheme, package manager,
// package name, version, and a descriptor path ending in one of
// SCIP's suffix markers (`#` type, `().` method, `.` field, or a
// backticked name). Parsing is best-effort — an identifier that
// doesn't fit the grammar still yields a usable Name.
type Identifier struct {
	Scheme     string
	Manager    string
	Package    string
	Version    string
	Descriptor string
	Raw        string
}

// ParseIdentifier splits a raw SCIP ID into its component fields. The
// canonical form is "<scheme> <manager> <package> <version> <descriptor>",
// but local symbols (produced for symbols with no stable cross-package
// identity) may omit manager/package/version entirely.
func ParseIdentifier(id string) *Identifier {
	ident := &Identifier{Raw: id}
	if id == "" {
		return ident
	}

	parts := strings.SplitN(id, " ", 5)
	switch len(parts) {
	case 5:
		ident.Scheme, ident.Manager, ident.Package, ident.Version, ident.Descriptor = parts[0], parts[1], parts[2], parts[3], parts[4]
	case 4:
		ident.Scheme, ident.Manager, ident.Package, ident.Descriptor = parts[0], parts[1], parts[2], parts[3]
	default:
		ident.Descriptor = id
	}
	return ident
}

// Name extracts the human-readable trailing identifier from the
// descriptor, handling the patterns named in spec §4.G: backticked
// package-path segments (scip-go style), `<constructor>`/`<get>`/`<set>`
// synthetic markers, and the standard `.`/`/`-joined trailing segment.
func (id *Identifier) Name() string {
	d := strings.TrimSuffix(id.Descriptor, ".")
	d = strings.TrimSuffix(d, "#")
	d = strings.TrimSuffix(d, "()")
	d = strings.TrimSuffix(d, "(")

	if d == "" {
		return id.Raw
	}

	if lastBacktick := strings.LastIndex(d, "`"); lastBacktick != -1 && lastBacktick < len(d)-1 {
		remainder := d[lastBacktick+1:]
		remainder = strings.TrimPrefix(remainder, "/")
		if idx := strings.LastIndex(remainder, "/"); idx != -1 {
			return stripSyntheticMarkers(remainder[idx+1:])
		}
		return stripSyntheticMarkers(remainder)
	}

	if idx := strings.LastIndex(d, "/"); idx != -1 {
		return stripSyntheticMarkers(d[idx+1:])
	}

	// A descriptor with neither a backtick-quoted path nor a `/`
	// separator but still carrying a container marker (e.g. a local
	// same-file "Server#Handle()." symbol) names its member after the
	// last `#`, the container-id boundary ContainerID also splits on.
	if idx := strings.LastIndex(d, "#"); idx != -1 && idx < len(d)-1 {
		return stripSyntheticMarkers(d[idx+1:])
	}

	segs := strings.Split(d, ".")
	return stripSyntheticMarkers(segs[len(segs)-1])
}

// syntheticMarkers are the angle-bracket markers some indexers embed
// adjacent to a trailing segment's real name.
var syntheticMarkers = []string{"<constructor>", "<get>", "<set>"}

// stripSyntheticMarkers strips a synthetic marker from s, whether it
// appears as a prefix (e.g. "<get>size") or suffix, leaving the
// underlying name. A segment that is nothing but the marker itself is
// left untouched, since that marker is the name.
func stripSyntheticMarkers(s string) string {
	for _, m := range syntheticMarkers {
		if trimmed := strings.TrimPrefix(s, m); trimmed != s && trimmed != "" {
			return trimmed
		}
		if trimmed := strings.TrimSuffix(s, m); trimmed != s && trimmed != "" {
			return trimmed
		}
	}
	return s
}

// ContainerID returns the prefix of the raw identifier up to and
// including the last `#`, which spec §4.G defines as the container
// identifier — itself a valid symbol ID that may match a row in the
// symbols table. Returns "" if the identifier has no `#` segment.
func (id *Identifier) ContainerID() string {
	idx := strings.LastIndex(id.Raw, "#")
	if idx == -1 {
		return ""
	}
	return id.Raw[:idx+1]
}

// IsConstructor reports whether the descriptor ends in the
// `<constructor>` synthetic marker.
func (id *Identifier) IsConstructor() bool {
	return strings.Contains(id.Descriptor, "<constructor>")
}

// IsGetter reports whether the descriptor ends in the `<get>` marker.
func (id *Identifier) IsGetter() bool {
	return strings.Contains(id.Descriptor, "<get>")
}

// IsSetter reports whether the descriptor ends in the `<set>` marker.
func (id *Identifier) IsSetter() bool {
	return strings.Contains(id.Descriptor, "<set>")
}

// IsMethod reports whether the descriptor has the method suffix `().`
// or an open paren, per scip-go's convention of embedding it directly
// in the trailing segment.
func (id *Identifier) IsMethod() bool {
	return strings.Contains(id.Descriptor, "(")
}

// IsType reports whether the descriptor ends in the type suffix `#`.
func (id *Identifier) IsType() bool {
	return strings.HasSuffix(strings.TrimSpace(id.Descriptor), "#")
}
