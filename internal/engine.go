package internal

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/cprop/internal/analysis/cfg"
	"github.com/gnolang/cprop/internal/analysis/constprop"
	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
	"github.com/gnolang/cprop/internal/irfile"
)

// Engine runs constant propagation over functions and IR files.
type Engine struct {
	opts    constprop.Options
	workers int
	logger  *zap.Logger

	ignoredFuncs map[string]bool
	cache        *Cache

	// watch mode
	watcher    *fsnotify.Watcher
	watchDirs  []string
	isWatching bool
	done       chan struct{}

	// OnResult receives the outcome of every file processed in watch mode.
	OnResult func(res *FileResult, err error)
}

// FunctionResult is the outcome of the pass on a single function.
type FunctionResult struct {
	// Function is the rewritten function.
	Function *ir.Function
	Report   constprop.Report
	Summary  constprop.RewriteSummary
	Stats    constprop.Stats
	// Unreachable names blocks with no path from the entry.
	Unreachable []string
}

// FileResult collects the function results of one IR file.
type FileResult struct {
	Filename  string
	Functions []FunctionResult
}

// NewEngine creates an engine. A non-positive workers value means one
// function at a time; a nil logger disables logging.
func NewEngine(opts constprop.Options, workers int, logger *zap.Logger) *Engine {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		opts:    opts,
		workers: workers,
		logger:  logger,
	}
}

// IgnoreFunction excludes the named function from every later run.
func (e *Engine) IgnoreFunction(name string) {
	if e.ignoredFuncs == nil {
		e.ignoredFuncs = make(map[string]bool)
	}
	e.ignoredFuncs[name] = true
}

// EnableCache makes Run reuse results for files whose content is unchanged.
func (e *Engine) EnableCache() {
	if e.cache == nil {
		e.cache = NewCache()
	}
}

// Run loads the IR file and runs the pass on each of its functions.
func (e *Engine) Run(ctx context.Context, filename string) (*FileResult, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if e.cache != nil {
		if res, ok := e.cache.Get(filename, source); ok {
			e.logger.Debug("cache hit", zap.String("file", filename))
			return res, nil
		}
	}

	res, err := e.RunSource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	res.Filename = filename

	if e.cache != nil {
		e.cache.Set(filename, source, res)
	}
	return res, nil
}

// RunSource runs the pass on every function of an in-memory IR document.
func (e *Engine) RunSource(ctx context.Context, source []byte) (*FileResult, error) {
	doc, err := irfile.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, err
	}
	fns, err := doc.Build()
	if err != nil {
		return nil, err
	}

	results, err := e.RunFunctions(ctx, fns)
	if err != nil {
		return nil, err
	}
	return &FileResult{Functions: results}, nil
}

// RunFunctions analyses and rewrites fns in parallel. Each function is
// owned by exactly one worker. Results keep the order of fns, minus
// ignored functions.
func (e *Engine) RunFunctions(ctx context.Context, fns []*ir.Function) ([]FunctionResult, error) {
	selected := make([]*ir.Function, 0, len(fns))
	for _, fn := range fns {
		if e.ignoredFuncs[fn.Name] {
			e.logger.Debug("skipping ignored function", zap.String("function", fn.Name))
			continue
		}
		selected = append(selected, fn)
	}

	results := make([]FunctionResult, len(selected))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, fn := range selected {
		i, fn := i, fn
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.runFunction(fn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) runFunction(fn *ir.Function) FunctionResult {
	log := e.logger.With(zap.String("function", fn.Name))

	var unreachable []string
	for _, b := range cfg.FromFunction(fn).Unreachable() {
		unreachable = append(unreachable, b.Name)
	}

	opts := e.opts
	if log.Core().Enabled(zapcore.DebugLevel) {
		user := opts.Trace
		opts.Trace = func(b *ir.Block, out lattice.AbstractState) {
			log.Debug("out state updated",
				zap.String("block", b.Name),
				zap.String("state", spew.Sdump(out)),
			)
			if user != nil {
				user(b, out)
			}
		}
	}

	res, summary := constprop.Run(fn, opts)
	log.Info("function processed",
		zap.Int("blocks", res.Stats.Blocks),
		zap.Int("slots", res.Stats.Slots),
		zap.Int("visits", res.Stats.Visits),
		zap.Int("folded", summary.Folded),
		zap.Int("replaced", summary.Replaced),
		zap.Int("cleaned", summary.Cleaned),
	)

	return FunctionResult{
		Function:    fn,
		Report:      res.Report(),
		Summary:     summary,
		Stats:       res.Stats,
		Unreachable: unreachable,
	}
}
