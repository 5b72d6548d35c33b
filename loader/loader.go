// Package loader plugs transpiler into esbuild builds.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cssmui/transpile"
)

const (
	DefaultFilter    = `\.mui\.css$`
	DefaultCacheSize = 256
)

// Options for esbuild loader.
type Options struct {
	Filter    string // esbuild (Go regexp) path filter
	CacheSize int    // number of transpiled sources kept between rebuilds
}

// Loader transpiles stylesheets on esbuild load. Results are cached by path
// and content so watch mode rebuilds skip unchanged files.
type Loader struct {
	t      *transpile.Transpiler
	filter string
	cache  *lru.Cache[uint64, string]
	log    *zap.Logger
}

// New creates loader.
func New(t *transpile.Transpiler, opts Options, log *zap.Logger) (*Loader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Filter == "" {
		opts.Filter = DefaultFilter
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[uint64, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("unable to create loader cache: %w", err)
	}
	return &Loader{
		t:      t,
		filter: opts.Filter,
		cache:  cache,
		log:    log.Named("loader"),
	}, nil
}

// Plugin returns esbuild plugin.
func (l *Loader) Plugin() api.Plugin {
	return api.Plugin{
		Name: "cssmui",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{
				Filter: l.filter,
			}, l.Load)
		},
	}
}

// Load reads and transpiles a single file.
func (l *Loader) Load(args api.OnLoadArgs) (api.OnLoadResult, error) {
	data, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("%s: %w", args.Path, err)
	}

	key := cacheKey(args.Path, data)
	code, ok := l.cache.Get(key)
	if ok {
		l.log.Debug("Cache hit", zap.String("path", args.Path))
	} else {
		out, err := l.t.Transpile(context.Background(), data, args.Path)
		if err != nil {
			return api.OnLoadResult{}, fmt.Errorf("%s: %w", args.Path, err)
		}
		code = string(out)
		l.cache.Add(key, code)
	}

	return api.OnLoadResult{
		Contents:   &code,
		ResolveDir: filepath.Dir(args.Path),
		Loader:     api.LoaderJS,
		WatchFiles: []string{args.Path},
	}, nil
}

// Cached returns number of cached results.
func (l *Loader) Cached() int {
	return l.cache.Len()
}

func cacheKey(path string, data []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(path)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(data)
	return d.Sum64()
}
