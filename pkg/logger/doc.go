// Package logger builds the process-wide slog.Logger from environment
// configuration: JSON output for production aggregation, text for local
// development.
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//
//	log := logger.New(cfg, logger.WithAttrs(slog.String("service", "notifyd")))
//	slog.SetDefault(log)
package logger
