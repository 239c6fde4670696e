package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/penwyp/ivt-split/internal/data/parser"
	"github.com/penwyp/ivt-split/internal/util"
)

// FileScanner finds report files in a directory
type FileScanner struct {
	baseDir string
}

// NewFileScanner creates a scanner that only looks at the top level of
// baseDir. Output roots live in subdirectories, so a flat scan never picks
// up generated per-SSP files.
func NewFileScanner(baseDir string) *FileScanner {
	return &FileScanner{baseDir: baseDir}
}

// IsCandidate reports whether path looks like an input report: a .csv or
// .xlsx file that is neither hidden nor an office lock file.
func IsCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return parser.IsReportFile(name)
}

// Scan returns the report files under the base directory, sorted by path
func (s *FileScanner) Scan() ([]string, error) {
	start := time.Now()
	var files []string
	totalCount := 0

	util.LogDebug(fmt.Sprintf("Start scanning directory: %s", s.baseDir))

	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			util.LogDebug(fmt.Sprintf("Skip file (error): %s - %v", path, err))
			return nil
		}

		if info.IsDir() {
			if path == s.baseDir {
				return nil
			}
			return filepath.SkipDir
		}

		totalCount++
		if info.Mode().IsRegular() && IsCandidate(path) {
			files = append(files, path)
		}

		return nil
	})

	sort.Strings(files)

	util.LogDebug(fmt.Sprintf("File scan completed: duration %v, scanned %d files, found %d reports",
		time.Since(start), totalCount, len(files)))

	return files, err
}
