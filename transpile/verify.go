package transpile

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// verify compiles generated code with esbuild. Problems usually come from
// escape hatches and are reported as *GeneratedCodeError. When minify is set
// esbuild output replaces generated code.
func verify(log *zap.Logger, code, name string, minify bool) (string, error) {
	res := api.Transform(code, api.TransformOptions{
		Loader:            api.LoaderJS,
		Format:            api.FormatESModule,
		Sourcefile:        name,
		MinifyWhitespace:  minify,
		MinifySyntax:      minify,
		MinifyIdentifiers: minify,
		LogLevel:          api.LogLevelSilent,
	})

	for _, w := range res.Warnings {
		log.Debug("Generated code warning", zap.String("source", name), zap.String("warning", formatMessage(w)))
	}
	if len(res.Errors) > 0 {
		gce := &GeneratedCodeError{Messages: make([]string, 0, len(res.Errors))}
		for _, m := range res.Errors {
			gce.Messages = append(gce.Messages, formatMessage(m))
		}
		return "", gce
	}

	if minify {
		return string(res.Code), nil
	}
	return code, nil
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%d:%d: %s (%s)", m.Location.Line, m.Location.Column, m.Text, m.Location.LineText)
}
