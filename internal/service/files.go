package service

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/persistorai/assetmig/internal/asset"
)

// ExtensionTable tells which file extensions hold assets.
type ExtensionTable interface {
	Kind(ext string) asset.SerializerKind
}

// CollectFiles expands paths into asset handles. Directories are walked
// recursively and only files with a registered extension are kept; files
// named explicitly are always kept. Hidden directories are skipped. The
// result is sorted by path with duplicates removed.
func CollectFiles(paths []string, table ExtensionTable) ([]*asset.File, error) {
	seen := make(map[string]bool)
	var out []string

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("collecting %s: %w", root, err)
		}

		if !info.IsDir() {
			if !seen[root] {
				seen[root] = true
				out = append(out, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			if table.Kind(filepath.Ext(path)) == asset.SerializerUnknown || seen[path] {
				return nil
			}
			seen[path] = true
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Strings(out)

	files := make([]*asset.File, 0, len(out))
	for _, p := range out {
		files = append(files, asset.NewFile(p))
	}

	return files, nil
}
