// Package logger configures the global zerolog instance shared by the
// service components.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

// Initialize sets up the global logger. With dumpLog the output also goes
// to a file under logPath.
func Initialize(logLevel string, dumpLog bool, logPath string) {
	zerolog.TimeFieldFormat = time.RFC3339

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}

	var writer zerolog.LevelWriter = zerolog.MultiLevelWriter(consoleWriter)
	if dumpLog {
		if err := os.MkdirAll(logPath, 0o755); err == nil {
			file, err := os.OpenFile(logPath+"ammfarm.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
			if err == nil {
				writer = zerolog.MultiLevelWriter(consoleWriter, file)
			}
		}
	}

	Logger = zerolog.New(writer).
		With().
		Timestamp().
		Logger()

	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = Logger
}

// GetForComponent returns a logger tagged with a component field.
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
