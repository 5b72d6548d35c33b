package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
)

// ErrStale is returned in check mode when output does not match its source.
var ErrStale = errors.New("output is out of date")

var dmp = diffmatchpatch.New()

func init() {
	dmp.DiffTimeout = 500 * time.Millisecond
}

func checkOutput(name string, code []byte, log *zap.Logger) error {
	existing, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s does not exist", ErrStale, name)
	}
	if err != nil {
		return err
	}
	if bytes.Equal(existing, code) {
		log.Debug("Output is up to date", zap.String("file", name))
		return nil
	}
	log.Warn("Output is out of date", zap.String("file", name), zap.String("diff", diffLines(string(existing), string(code))))
	return fmt.Errorf("%w: %s", ErrStale, name)
}

// diffLines returns changed lines prefixed with "-" (present only in before)
// and "+" (present only in after).
func diffLines(before, after string) string {
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for line := range strings.Lines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(strings.TrimSuffix(line, "\n"))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
