package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// walkSourceFiles enumerates every file under root whose extension is
// in exts, skipping the same directories discovery prunes plus the
// package's own .ctx cache directory.
func walkSourceFiles(root string, exts map[string]bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "build", "node_modules", ".ctx":
				return filepath.SkipDir
			}
			return nil
		}
		if exts[strings.ToLower(filepath.Ext(d.Name()))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
