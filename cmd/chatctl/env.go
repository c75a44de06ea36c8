package main

import (
	"io"
	"os"
	"path/filepath"

	"chatctl/internal/client"
	"chatctl/internal/config"
	"chatctl/internal/logging"
	"chatctl/internal/store"
)

// env is the shared wiring every command starts from: config, client,
// persisted state and a logger that stays off the terminal.
type env struct {
	cfg  config.Config
	api  *client.Client
	repo store.Repository
	log  logging.Logger

	logFile io.Closer
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	api, err := client.New()
	if err != nil {
		return nil, err
	}
	api.SetBaseURL(cfg.ServerBaseURL())
	api.SetTimeout(cfg.RequestTimeout())

	dbPath, err := config.StateDBPath()
	if err != nil {
		return nil, err
	}
	repo, err := store.NewBboltRepository(dbPath)
	if err != nil {
		return nil, err
	}

	log, logFile := newFileLogger(cfg)
	return &env{cfg: cfg, api: api, repo: repo, log: log, logFile: logFile}, nil
}

// newFileLogger writes logfmt lines to a file under the data dir. The
// TUI owns the terminal, so stderr is not an option while it runs.
func newFileLogger(cfg config.Config) (logging.Logger, io.Closer) {
	dir, err := config.DataDir()
	if err != nil {
		return logging.Nop(), nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return logging.Nop(), nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "chatctl.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return logging.Nop(), nil
	}
	return logging.New(f, logging.ParseLevel(cfg.LogLevel())), f
}

func (e *env) Close() {
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.log.Warn("close state store", logging.F("err", err))
		}
	}
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}
