package testutil

import (
	"bytes"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	updateGolden = flag.Bool("update", false, "update golden files")
	goldenLang   = flag.String("goldenLang", "", "filter fixture languages (comma-separated: go,ts,python)")
)

// ShouldUpdate reports whether golden files should be rewritten rather
// than compared, per `-update`.
func ShouldUpdate() bool {
	return *updateGolden
}

var langAliases = map[string]string{
	"ts":         "typescript",
	"typescript": "ts",
	"py":         "python",
	"python":     "py",
}

// ShouldTestLang reports whether lang passes the `-goldenLang` filter,
// matching either its short or long form.
func ShouldTestLang(lang string) bool {
	if *goldenLang == "" {
		return true
	}
	for _, want := range strings.Split(*goldenLang, ",") {
		want = strings.TrimSpace(want)
		if want == lang || langAliases[want] == lang {
			return true
		}
	}
	return false
}

// CompareGolden diffs got (after normalization) against the recorded
// golden file for name, failing the test with a unified diff on
// mismatch. With `-update` it overwrites the golden file instead.
func CompareGolden(t *testing.T, fixture *FixtureContext, name string, got any) {
	t.Helper()

	normalized := MarshalNormalized(t, fixture, got)
	goldenPath := fixture.ExpectedPath(name)

	if *updateGolden {
		UpdateGolden(t, fixture, name, normalized)
		t.Logf("updated golden: %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("golden file missing: %s\n\ngot:\n%s\n\nrun with -update to create:\n  go test ./... -run %s -update",
				goldenPath, normalized, t.Name())
		}
		t.Fatalf("failed to read golden file: %v", err)
	}

	if !bytes.Equal(normalized, expected) {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(expected)),
			B:        difflib.SplitLines(string(normalized)),
			FromFile: goldenPath,
			ToFile:   "got",
			Context:  3,
		})
		if err != nil {
			diff = string(normalized)
		}
		t.Fatalf("golden mismatch for %s:\n%s\nrun with -update to refresh:\n  go test ./... -run %s -update",
			name, diff, t.Name())
	}
}

// UpdateGolden writes normalized to name's golden path, creating the
// expected-output directory if it doesn't yet exist.
func UpdateGolden(t *testing.T, fixture *FixtureContext, name string, normalized []byte) {
	t.Helper()

	if err := os.MkdirAll(fixture.ExpectedDir, 0o755); err != nil {
		t.Fatalf("failed to create expected directory: %v", err)
	}
	if err := os.WriteFile(fixture.ExpectedPath(name), normalized, 0o644); err != nil {
		t.Fatalf("failed to write golden file: %v", err)
	}
}

// AssertGoldenSlice normalizes got (expected to be slice-shaped) into
// generic maps and compares it against the golden file for name.
func AssertGoldenSlice(t *testing.T, fixture *FixtureContext, name string, got any) {
	t.Helper()
	CompareGolden(t, fixture, name, SliceToMaps(t, got))
}

// AssertGoldenStruct normalizes got (expected to be struct-shaped) into
// a generic map and compares it against the golden file for name.
func AssertGoldenStruct(t *testing.T, fixture *FixtureContext, name string, got any) {
	t.Helper()
	CompareGolden(t, fixture, name, StructToMap(t, got))
}

// ForEachLanguage runs fn once per available fixture language that
// passes the `-goldenLang` filter, skipping the whole test if no
// fixtures are present. Under `-short`, only the first language runs.
func ForEachLanguage(t *testing.T, fn func(t *testing.T, fixture *FixtureContext)) {
	t.Helper()

	langs := AvailableLanguages(t)
	if len(langs) == 0 {
		t.Skip("no fixtures available")
	}
	if testing.Short() && len(langs) > 1 {
		langs = langs[:1]
	}

	for _, lang := range langs {
		if !ShouldTestLang(lang) {
			continue
		}
		t.Run(lang, func(t *testing.T) {
			fn(t, LoadFixture(t, lang))
		})
	}
}
