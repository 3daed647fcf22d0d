package observ

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// LogConfig controls the process log sink. Path is optional; when set, log
// lines go to a rotating file in addition to stdout.
type LogConfig struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func Init(cfg LogConfig) {
	var w io.Writer = os.Stdout
	if cfg.Path != "" {
		w = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	}
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Log emits one structured event line. Keys in kv become top-level fields.
func Log(event string, kv map[string]any) {
	logger.Info().Fields(kv).Msg(event)
}

func Warn(event string, kv map[string]any) {
	logger.Warn().Fields(kv).Msg(event)
}

func Error(event string, err error, kv map[string]any) {
	logger.Error().Err(err).Fields(kv).Msg(event)
}
