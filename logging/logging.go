package logging

import (
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bnb-chain/verivid-hub/config"
)

var (
	// Logger instance for quick declarative logging levels
	Logger = logging.MustGetLogger("verivid-hub")

	// log levels that are available
	levels = map[string]logging.Level{
		"CRITICAL": logging.CRITICAL,
		"ERROR":    logging.ERROR,
		"WARNING":  logging.WARNING,
		"NOTICE":   logging.NOTICE,
		"INFO":     logging.INFO,
		"DEBUG":    logging.DEBUG,
	}
)

const logFormat = `%{time:2006-01-02T15:04:05.000} %{level:.4s} %{shortfile} %{message}`

// InitLogger initialises the logger from the log config, console and/or a rotating file.
func InitLogger(cfg *config.LogConfig) {
	backends := make([]logging.Backend, 0)

	if cfg.UseConsoleLogger {
		backends = append(backends, newBackend(os.Stdout, cfg.Level))
	}

	if cfg.UseFileLogger {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxFileSizeInMB,
			MaxBackups: cfg.MaxBackupsOfLogFiles,
			MaxAge:     cfg.MaxAgeToRetainLogFilesInDays,
			Compress:   cfg.Compress,
		}
		backends = append(backends, newBackend(fileWriter, cfg.Level))
	}

	if len(backends) == 0 {
		backends = append(backends, newBackend(os.Stdout, cfg.Level))
	}
	logging.SetBackend(backends...)
}

func newBackend(w io.Writer, level string) logging.LeveledBackend {
	backend := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(logFormat))
	leveled := logging.AddModuleLevel(formatted)
	lvl, ok := levels[level]
	if !ok {
		lvl = logging.INFO
	}
	leveled.SetLevel(lvl, "")
	return leveled
}
