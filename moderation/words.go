package moderation

import (
	"bufio"
	"chat-fanout/errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// LoadWords reads blacklisted words from a file, or from every .txt file of a
// directory (one dictionary per language, e.g. "en.txt"). One word per line,
// blank lines and lines starting with '#' are skipped. Words are deduplicated.
func LoadWords(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loadFrom(os.DirFS(filepath.Dir(path)), []string{filepath.Base(path)})
	}

	fsys := os.DirFS(path)
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	names := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && strings.HasSuffix(e.Name(), ".txt")
	})
	return loadFrom(fsys, names)
}

func loadFrom(fsys fs.FS, names []string) ([]string, error) {
	unique := make(map[string]struct{})
	for _, name := range names {
		file, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		// Scanner copes with both \n and \r\n
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			unique[line] = struct{}{}
		}
		err = scanner.Err()
		_ = file.Close()
		if err != nil {
			return nil, err
		}
	}
	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}
	words := lo.Keys(unique)
	slices.Sort(words)
	return words, nil
}
