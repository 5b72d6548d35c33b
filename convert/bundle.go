package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"cssmui/loader"
	"cssmui/state"
)

func Bundle(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("bundle")

	entry := cmd.Args().Get(0)
	if len(entry) == 0 {
		return errors.New("no entry point has been specified")
	}
	if entry, err = filepath.Abs(entry); err != nil {
		return err
	}
	out := cmd.Args().Get(1)
	if len(out) == 0 {
		return errors.New("no output file has been specified")
	}
	if out, err = filepath.Abs(out); err != nil {
		return err
	}

	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Bundling starting", zap.String("entry", entry), zap.String("output", out))
	defer func(start time.Time) {
		log.Info("Bundling completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return bundle(ctx, entry, out, log)
}

// bundle builds single ES module from entry, stylesheets imported anywhere in
// the graph are transpiled on load.
func bundle(ctx context.Context, entry, out string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	l, err := loader.New(newTranspiler(&env.Cfg.Transpiler, env.Log), loader.Options{
		Filter:    env.Cfg.Bundle.Filter,
		CacheSize: env.Cfg.Bundle.CacheSize,
	}, env.Log)
	if err != nil {
		return err
	}

	minify := env.Cfg.Transpiler.Minify
	res := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		AbsWorkingDir:     filepath.Dir(entry),
		Outfile:           out,
		Bundle:            true,
		Format:            api.FormatESModule,
		Write:             false,
		LogLevel:          api.LogLevelSilent,
		MinifyWhitespace:  minify,
		MinifySyntax:      minify,
		MinifyIdentifiers: minify,
		Plugins:           []api.Plugin{l.Plugin()},
	})
	for _, m := range res.Warnings {
		log.Warn("Bundler warning", zap.String("message", buildMessage(m)))
	}
	if len(res.Errors) > 0 {
		var errs error
		for _, m := range res.Errors {
			errs = multierr.Append(errs, errors.New(buildMessage(m)))
		}
		return fmt.Errorf("unable to bundle %s: %w", entry, errs)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, f := range res.OutputFiles {
		if err := writeOutput(f.Path, f.Contents, env.Overwrite, log); err != nil {
			return err
		}
		env.Rpt.StoreData("bundle/"+filepath.Base(f.Path), f.Contents)
	}
	log.Debug("Bundled", zap.Int("outputs", len(res.OutputFiles)), zap.Int("stylesheets", l.Cached()))
	return nil
}

func buildMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
