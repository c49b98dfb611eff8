package main

import (
	"net/http"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		newLogger("error").Fatalw("load config", "err", err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	store, err := openStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatalw("open database", "path", cfg.DatabasePath, "err", err)
	}
	defer store.Close()

	app := newApp(cfg, store, logger)

	logger.Infow("listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.routes()); err != nil {
		logger.Fatalw("server stopped", "err", err)
	}
}
