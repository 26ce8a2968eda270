package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, body string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

var goMarkers = []Marker{{FileName: "go.mod", Language: "go"}}

func TestDiscover_FindsTopLevelPackage(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "go.mod"), "module example.com/a\n")

	pkgs, err := Discover(root, Options{Markers: goMarkers})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Path != root {
		t.Fatalf("Discover = %+v, want one package at root", pkgs)
	}
}

func TestDiscover_FindsNestedPackagesAndPrunesGit(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "services", "api", "go.mod"), "module a\n")
	mustWrite(t, filepath.Join(root, "services", "worker", "go.mod"), "module b\n")
	mustWrite(t, filepath.Join(root, ".git", "go.mod"), "module fake\n")

	pkgs, err := Discover(root, Options{Markers: goMarkers})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("Discover = %+v, want exactly 2 packages", pkgs)
	}
	for _, p := range pkgs {
		if p.Path == filepath.Join(root, ".git") {
			t.Fatalf("discovery should prune .git, found %+v", p)
		}
	}
}

func TestDiscover_DoesNotDescendIntoDiscoveredPackage(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "pkg", "go.mod"), "module outer\n")
	mustWrite(t, filepath.Join(root, "pkg", "vendor", "nested", "go.mod"), "module inner\n")

	pkgs, err := Discover(root, Options{Markers: goMarkers})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("Discover = %+v, want only the outer package", pkgs)
	}
}

func TestDiscover_IsIdempotentAndSorted(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "b", "go.mod"), "module b\n")
	mustWrite(t, filepath.Join(root, "a", "go.mod"), "module a\n")

	first, err := Discover(root, Options{Markers: goMarkers})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	second, err := Discover(root, Options{Markers: goMarkers})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 packages both times, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Discover is not idempotent: %+v vs %+v", first, second)
		}
	}
	if first[0].Path > first[1].Path {
		t.Fatalf("Discover is not path-sorted: %+v", first)
	}
}

func TestDiscover_CustomPrunedDir(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, ".cache", "go.mod"), "module cached\n")
	mustWrite(t, filepath.Join(root, "real", "go.mod"), "module real\n")

	pkgs, err := Discover(root, Options{Markers: goMarkers, PrunedDirs: []string{".cache"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Name != "real" {
		t.Fatalf("Discover = %+v, want only [real]", pkgs)
	}
}
