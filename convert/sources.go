package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"cssmui/archive"
)

// source is a single stylesheet to be transpiled.
type source struct {
	// path relative to the source root, always including file name. When
	// actual file was specified it is just base file name.
	name string
	// file path or archive path with entry name, used in diagnostics
	origin string
	// content of archive entry, files are read when processed
	data []byte
}

func (s source) load() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	return os.ReadFile(s.origin)
}

// collect determines the input type (directory, archive, archive with path
// inside or single file) and returns stylesheets in natural order of their
// names.
func collect(ctx context.Context, src, ext string, log *zap.Logger) ([]source, error) {
	var (
		sources    []source
		head, tail string
	)
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return nil, fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if sources, err = collectDir(ctx, head, ext, log); err != nil {
				return nil, fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return nil, fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if sources, err = collectArchive(ctx, head, tail, "", ext, log); err != nil {
				return nil, fmt.Errorf("unable to process archive: %w", err)
			}
			if len(tail) != 0 && len(sources) == 0 {
				return nil, fmt.Errorf("input source was not found in archive (%s) => (%s)", head, tail)
			}
			break
		}

		if len(tail) != 0 {
			return nil, fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}
		if !isSourceFile(head, ext) {
			log.Warn("Source does not have expected extension, processing anyway", zap.String("file", head), zap.String("ext", ext))
		}
		sources = append(sources, source{name: filepath.Base(head), origin: head})
		break
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("input source was not found (%s)", src)
	}

	slices.SortStableFunc(sources, func(a, b source) int {
		switch {
		case natural.Less(a.name, b.name):
			return -1
		case natural.Less(b.name, a.name):
			return 1
		}
		return 0
	})
	return sources, nil
}

// collectDir walks directory tree finding stylesheets and archives with
// stylesheets.
func collectDir(ctx context.Context, dir, ext string, log *zap.Logger) ([]source, error) {
	var sources []source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if isSourceFile(path, ext) {
			sources = append(sources, source{name: rel, origin: path})
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !isArchive {
			log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			return nil
		}
		found, err := collectArchive(ctx, path, "", filepath.Dir(rel), ext, log)
		if err != nil {
			log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			return nil
		}
		sources = append(sources, found...)
		return nil
	})
	return sources, err
}

// collectArchive reads all stylesheets inside archive located under "pathIn".
// Resulting names are prefixed with "pathOut".
func collectArchive(ctx context.Context, path, pathIn, pathOut, ext string, log *zap.Logger) ([]source, error) {
	var sources []source
	match := func(name string) bool {
		return isSourceFile(name, ext)
	}
	err := archive.Walk(path, pathIn, match, func(arc, name string, data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if data == nil {
			data = []byte{}
		}
		sources = append(sources, source{
			name:   filepath.Join(pathOut, filepath.FromSlash(name)),
			origin: arc + "!" + name,
			data:   data,
		})
		return nil
	})
	if err == nil && len(sources) == 0 {
		log.Debug("Nothing to process", zap.String("archive", path))
	}
	return sources, err
}
