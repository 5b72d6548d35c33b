// Package convert drives transpilation of stylesheet files, directories and
// archives and bundling of JS modules which import stylesheets.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cssmui/config"
	"cssmui/state"
	"cssmui/transpile"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite, env.Check = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("check")

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Bool("check", env.Check))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// job is a source with its final output location.
type job struct {
	source
	output string
	// output path relative to destination, used to name report entries
	key string
}

// process handles the core conversion logic independently of CLI framework.
// All stylesheets found in src are transpiled in parallel, failures are logged
// and returned together after all sources have been processed.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	sources, err := collect(ctx, src, env.Cfg.Output.SourceExt, log)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		log.Info("Nothing to process", zap.String("source", src))
		return nil
	}

	jobs, err := planJobs(sources, dst, env)
	if err != nil {
		return err
	}

	t := newTranspiler(&env.Cfg.Transpiler, env.Log)

	workers := env.Cfg.Output.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := processSource(gctx, t, j, env, log)
			if err == nil {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Error("Unable to process stylesheet", zap.String("source", j.origin), zap.Error(err))
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := len(multierr.Errors(errs)); n > 0 {
		return fmt.Errorf("%d of %d stylesheet(s) failed: %w", n, len(jobs), errs)
	}
	return nil
}

// planJobs assigns output paths, no two sources may end up in the same file.
func planJobs(sources []source, dst string, env *state.LocalEnv) ([]job, error) {
	jobs := make([]job, 0, len(sources))
	taken := make(map[string]string, len(sources))
	for _, s := range sources {
		output := buildOutputPath(s.name, dst, env)
		if prev, exists := taken[output]; exists {
			return nil, fmt.Errorf("output name collision: %s and %s both produce %s", prev, s.origin, output)
		}
		taken[output] = s.origin

		key, err := filepath.Rel(dst, output)
		if err != nil {
			key = filepath.Base(output)
		}
		jobs = append(jobs, job{source: s, output: output, key: filepath.ToSlash(key)})
	}
	return jobs, nil
}

func newTranspiler(conf *config.TranspilerConfig, log *zap.Logger) *transpile.Transpiler {
	return transpile.New(transpile.Options{
		Theme:         conf.Theme,
		SpacingUnit:   conf.SpacingUnit,
		MixinProperty: conf.MixinProperty,
		Verify:        conf.Verify,
		Minify:        conf.Minify,
	}, log)
}

// processSource transpiles single stylesheet and either writes result or, in
// check mode, compares it with existing output.
func processSource(ctx context.Context, t *transpile.Transpiler, j job, env *state.LocalEnv, log *zap.Logger) (rerr error) {
	log.Debug("Transpilation starting", zap.String("from", j.origin))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Transpilation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", j.output), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("transpilation panic: %v", r)
		} else if rerr == nil {
			log.Info("Transpilation completed", zap.Duration("elapsed", time.Since(start)), zap.String("from", j.name), zap.String("to", j.output))
		}
	}(time.Now())

	data, err := j.load()
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", j.origin, err)
	}
	env.Rpt.StoreData("source/"+filepath.ToSlash(j.name), data)

	res, err := t.Run(ctx, data, j.origin)
	if err != nil {
		return fmt.Errorf("%s: %w", j.origin, err)
	}

	// Store intermediate state for debugging
	if env.Rpt != nil {
		env.Rpt.StoreData("parsed/"+j.key+".css", []byte(res.Sheet.String()))
		env.Rpt.StoreData("tree/"+j.key+".txt", []byte(res.Tree.Dump()))
		env.Rpt.StoreData("output/"+j.key, res.Code)
	}

	if env.Check {
		return checkOutput(j.output, res.Code, log)
	}
	return writeOutput(j.output, res.Code, env.Overwrite, log)
}

// writeOutput creates output file, existing file is replaced only when
// overwrite was requested.
func writeOutput(name string, data []byte, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(name); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
		if err = os.Remove(name); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return os.WriteFile(name, data, 0644)
}
