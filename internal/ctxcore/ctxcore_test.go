package ctxcore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"

	"github.com/wenkaifan0720/ctx/internal/discovery"
	"github.com/wenkaifan0720/ctx/internal/logging"
)

// fixtureProducer emits one document defining one symbol per file, so
// every layer of the façade (indexer -> registry -> projection) has
// something real to carry end to end.
type fixtureProducer struct{}

func (fixtureProducer) Extensions() []string { return []string{".go"} }

func (fixtureProducer) ProduceFile(_ context.Context, _, relativePath string) ([]byte, error) {
	symbolID := "local " + relativePath + "/Widget#"
	doc := &scippb.Document{
		RelativePath: relativePath,
		Language:     "go",
		Symbols: []*scippb.SymbolInformation{
			{Symbol: symbolID, DisplayName: "Widget"},
		},
		Occurrences: []*scippb.Occurrence{
			{Symbol: symbolID, SymbolRoles: 1, Range: []int32{0, 0, 0, 6}},
		},
	}
	return proto.Marshal(doc)
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.ErrorLevel, Output: io.Discard})
}

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/widget\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "widget.go"), []byte("package widget\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func goBinding() LanguageBinding {
	return LanguageBinding{
		Marker:             discovery.Marker{FileName: "go.mod", Language: "go"},
		Producer:           fixtureProducer{},
		DependencyLockFile: "go.sum",
	}
}

func TestOpen_ProjectsDiscoveredPackageIntoSQL(t *testing.T) {
	root := setupRoot(t)

	c, err := Open(root, OpenOptions{Bindings: []LanguageBinding{goBinding()}, UseCache: true, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	result, err := c.SQL("SELECT name FROM symbols WHERE name = ?", "Widget")
	if err != nil {
		t.Fatalf("SQL: %v", err)
	}
	if result.TotalRows != 1 {
		t.Fatalf("TotalRows = %d, want 1", result.TotalRows)
	}
}

func TestSQL_RejectsWriteStatements(t *testing.T) {
	root := setupRoot(t)
	c, err := Open(root, OpenOptions{Bindings: []LanguageBinding{goBinding()}, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	if _, err := c.SQL("DELETE FROM symbols"); err == nil {
		t.Fatal("expected a write statement to be rejected")
	}
}

func TestStats_ReportsDiscoveredPackage(t *testing.T) {
	root := setupRoot(t)
	c, err := Open(root, OpenOptions{Bindings: []LanguageBinding{goBinding()}, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	stats := c.Stats()
	if stats.Packages != 1 {
		t.Fatalf("Packages = %d, want 1", stats.Packages)
	}
	if stats.Symbols != 1 {
		t.Fatalf("Symbols = %d, want 1", stats.Symbols)
	}
}

func TestRefreshFile_ReindexesAndRebuildsProjection(t *testing.T) {
	root := setupRoot(t)
	c, err := Open(root, OpenOptions{Bindings: []LanguageBinding{goBinding()}, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	path := filepath.Join(root, "widget.go")
	if err := c.RefreshFile(path); err != nil {
		t.Fatalf("RefreshFile: %v", err)
	}

	result, err := c.SQL("SELECT name FROM symbols")
	if err != nil {
		t.Fatalf("SQL: %v", err)
	}
	if result.TotalRows != 1 {
		t.Fatalf("TotalRows = %d, want 1", result.TotalRows)
	}
}

func TestOpenWithWatch_RoutesNewFileToProjection(t *testing.T) {
	root := setupRoot(t)
	c, err := Open(root, OpenOptions{Bindings: []LanguageBinding{goBinding()}, Watch: true, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	if err := os.WriteFile(filepath.Join(root, "gadget.go"), []byte("package widget\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err := c.SQL("SELECT COUNT(*) AS n FROM symbols")
		if err == nil && result.Rows[0]["n"] == int64(2) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected the watcher to route the new file's symbol into the projection")
}

func TestLoadDependencies_ClearsStaleFlag(t *testing.T) {
	root := setupRoot(t)
	c, err := Open(root, OpenOptions{Bindings: []LanguageBinding{goBinding()}, Watch: true, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	if err := os.WriteFile(filepath.Join(root, "go.sum"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !c.registry.DependenciesStale {
		time.Sleep(50 * time.Millisecond)
	}
	if !c.registry.DependenciesStale {
		t.Fatal("expected a go.sum change to mark dependencies stale")
	}

	if err := c.LoadDependencies(); err != nil {
		t.Fatalf("LoadDependencies: %v", err)
	}
	if c.registry.DependenciesStale {
		t.Fatal("expected LoadDependencies to clear the stale flag")
	}
}
