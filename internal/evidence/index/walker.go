package index

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Directories never worth indexing regardless of ignore files.
var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".idea": true,
	".vscode": true, "dist": true, "build": true, "target": true,
	"__pycache__": true, ".venv": true,
}

// maxIndexableFileBytes skips generated and binary-ish giants.
const maxIndexableFileBytes = 1 << 20

// Walk discovers indexable files under root, honoring .gitignore when
// present. Paths are returned relative to root.
func Walk(root string) ([]FileInfo, error) {
	var matcher *gitignore.GitIgnore
	if gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		matcher = gi
	}

	var files []FileInfo
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		if !indexable(rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxIndexableFileBytes {
			return nil
		}
		files = append(files, FileInfo{
			Path:      rel,
			Lang:      DetectLanguage(rel),
			SizeBytes: info.Size(),
		})
		return nil
	})
	return files, err
}
