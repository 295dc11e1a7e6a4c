package observability

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls where and how verbosely the service logs.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds the root logger. Output always goes to stdout; when File is set a rotating
// JSON log is written alongside it. The returned closer flushes the file sink.
func NewLogger(cfg LogConfig, stdout io.Writer) (zerolog.Logger, io.Closer) {
	if stdout == nil {
		stdout = os.Stdout
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var closer io.Closer = nopCloser{}
	writer := stdout
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(stdout, file)
		closer = file
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
