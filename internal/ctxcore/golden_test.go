package ctxcore

import (
	"testing"

	"github.com/wenkaifan0720/ctx/internal/testutil"
)

// TestGolden_FixtureStats opens the bundled fixture tree end to end
// (discovery -> indexer -> registry -> projection) and checks the
// resulting package stats against a golden snapshot, the way the
// teacher's golden tests pin down a whole pipeline's shape rather than
// one function's return value.
func TestGolden_FixtureStats(t *testing.T) {
	fixture := testutil.LoadFixture(t, "go")
	if !testutil.ShouldTestLang(fixture.Language) {
		t.Skip("language filtered out")
	}

	c, err := Open(fixture.Root, OpenOptions{
		Bindings: []LanguageBinding{goBinding()},
		UseCache: true,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Dispose()

	testutil.AssertGoldenStruct(t, fixture, "stats", c.Stats())
}

func TestGolden_AvailableLanguagesIncludesFixture(t *testing.T) {
	langs := testutil.AvailableLanguages(t)
	found := false
	for _, l := range langs {
		if l == "go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected \"go\" fixture in %v", langs)
	}
}
