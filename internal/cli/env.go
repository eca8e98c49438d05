package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/config"
	"github.com/skelly-dev/codr/internal/logging"
	"github.com/skelly-dev/codr/internal/store"
)

// env is what every command resolves before doing work.
type env struct {
	root   string
	cfg    config.Config
	logger *slog.Logger
	asJSON bool
	out    io.Writer
}

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

// loadEnv resolves the project root (path argument, then --root, then the
// working directory), loads its configuration and builds the logger.
func loadEnv(cmd *cobra.Command, path string) (*env, error) {
	if path == "" {
		flagRoot, err := OptionalStringFlag(cmd, "root")
		if err != nil {
			return nil, err
		}
		path = flagRoot
	}
	if path == "" {
		wd, err := resolveWorkingDirectory()
		if err != nil {
			return nil, err
		}
		path = wd
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", path, err)
	}

	cfgPath, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root, cfgPath)
	if err != nil {
		return nil, err
	}
	level, err := OptionalStringFlag(cmd, "log-level")
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return nil, err
	}

	return &env{
		root:   filepath.Clean(root),
		cfg:    cfg,
		logger: logger,
		asJSON: asJSON,
		out:    cmd.OutOrStdout(),
	}, nil
}

func (e *env) store() (*store.Store, error) {
	return store.Open(e.root, store.Options{
		Dir:               e.cfg.MetadataDir,
		RetainGenerations: e.cfg.RetainGenerations,
	})
}

// resolveFile makes a command-line file argument absolute against the project root.
func (e *env) resolveFile(file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(e.root, file)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
