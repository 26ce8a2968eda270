package main

import (
	"github.com/wenkaifan0720/ctx/internal/config"
	"github.com/wenkaifan0720/ctx/internal/ctxcore"
	"github.com/wenkaifan0720/ctx/internal/logging"
)

// openProject loads a project's configuration and opens it through
// the Context façade, wiring in the -p/--no-cache/--with-deps flags
// every subcommand shares.
func openProject(projectPath string, logger *logging.Logger) (*ctxcore.Context, error) {
	cfg, err := config.Load(projectPath)
	if err != nil {
		return nil, err
	}

	return ctxcore.Open(projectPath, ctxcore.OpenOptions{
		Bindings:         ctxcore.BindingsFromConfig(cfg.Bindings),
		Watch:            flagWatch,
		UseCache:         !flagNoCache,
		LoadDependencies: flagWithDeps,
		Logger:           logger,
	})
}
