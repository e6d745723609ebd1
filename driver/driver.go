package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/gnolang/cprop/internal"
	"github.com/gnolang/cprop/internal/irfile"
)

// PassEngine is the part of the engine the driver depends on.
type PassEngine interface {
	Run(ctx context.Context, filePath string) (*internal.FileResult, error)
	RunSource(ctx context.Context, source []byte) (*internal.FileResult, error)
	IgnoreFunction(name string)
}

// New reads the configuration file and builds an engine from it. A missing
// configuration file yields the defaults.
func New(configurationPath string, logger *zap.Logger) (*internal.Engine, Config, error) {
	config, err := LoadConfig(configurationPath)
	if err != nil {
		return nil, config, err
	}
	engine, err := NewFromConfig(config, logger)
	return engine, config, err
}

// NewFromConfig builds an engine from an already loaded configuration.
func NewFromConfig(config Config, logger *zap.Logger) (*internal.Engine, error) {
	opts, err := config.PassOptions()
	if err != nil {
		return nil, err
	}

	engine := internal.NewEngine(opts, config.workers(), logger)
	for _, name := range config.Ignore {
		engine.IgnoreFunction(name)
	}
	return engine, nil
}

func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine PassEngine,
	sources [][]byte,
	processor func(context.Context, PassEngine, []byte) (*internal.FileResult, error),
) ([]*internal.FileResult, error) {
	var results []*internal.FileResult
	for i, source := range sources {
		res, err := processor(ctx, engine, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		results = append(results, res)
	}

	return results, nil
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine PassEngine,
	paths []string,
	processor func(context.Context, PassEngine, string) (*internal.FileResult, error),
) ([]*internal.FileResult, error) {
	var results []*internal.FileResult
	for _, path := range paths {
		res, err := ProcessPath(ctx, logger, engine, path, processor)
		results = append(results, res...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return results, err
		}
	}

	return results, nil
}

// ProcessPath runs processor on path, or on every IR file below it when it
// is a directory. Directory results keep the lexical file order; files that
// fail are skipped and their errors joined into the returned error.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine PassEngine,
	path string,
	processor func(context.Context, PassEngine, string) (*internal.FileResult, error),
) ([]*internal.FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !irfile.IsIRFile(path) {
			return nil, nil
		}
		res, err := processor(ctx, engine, path)
		if err != nil {
			return nil, err
		}
		return []*internal.FileResult{res}, nil
	}

	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	// limit the number of workers
	sem := make(chan struct{}, runtime.NumCPU())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		results = make([]*internal.FileResult, len(files))
	)

dispatch:
	for i, filePath := range files {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, fp string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := processor(ctx, engine, fp)
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			} else {
				results[i] = res
			}
			_ = bar.Add(1)
		}(i, filePath)
	}
	wg.Wait()
	_ = bar.Finish()

	collected := make([]*internal.FileResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			collected = append(collected, res)
		}
	}

	if err := ctx.Err(); err != nil {
		return collected, err
	}
	return collected, errors.Join(errs...)
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(filePath string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fileInfo.IsDir() && irfile.IsIRFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}
	return files, nil
}

func ProcessFile(ctx context.Context, engine PassEngine, filePath string) (*internal.FileResult, error) {
	return engine.Run(ctx, filePath)
}

func ProcessSource(ctx context.Context, engine PassEngine, source []byte) (*internal.FileResult, error) {
	return engine.RunSource(ctx, source)
}
