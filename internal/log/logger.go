package log

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger provides centralized debug logging for the entire application
type Logger struct {
	logger *slog.Logger
	file   *os.File
}

var (
	globalLogger *Logger
	level        = new(slog.LevelVar)

	// rawPath is where LogDataChunk appends captures. Replayable with
	// cmd/raw_replay.go, which parses the same format back.
	rawPath = "raw.log"
)

// init creates the global logger with console output by default
func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	globalLogger = &Logger{
		logger: slog.New(handler),
		file:   os.Stdout,
	}
}

// SetFileOutput configures the logger to write to the specified file
func SetFileOutput(filename string) error {
	logger, err := NewLogger(filename)
	if err != nil {
		return err
	}

	// Close existing file if it's not stdout
	if globalLogger != nil && globalLogger.file != os.Stdout {
		globalLogger.file.Close()
	}

	globalLogger = logger
	return nil
}

// SetLevel adjusts the minimum level for all loggers, existing and future.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetRawOutput changes the file LogDataChunk appends to.
func SetRawOutput(filename string) {
	if filename != "" {
		rawPath = filename
	}
}

// NewLogger creates a new logger that writes to the specified file
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format to match old format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   slog.TimeKey,
					Value: slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000")),
				}
			}
			return a
		},
	})

	return &Logger{
		logger: slog.New(handler),
		file:   file,
	}, nil
}

// Standard logging methods
func Debug(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Error(msg, args...)
	}
}

// LogDataChunk appends one raw network chunk to the capture file. The line
// format is "<direction> <escaped-bytes>\n" with the bytes %q-encoded minus
// the surrounding quotes, so arbitrary binary survives a text file round trip.
func LogDataChunk(direction string, data []byte) {
	if logFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		// Use %q to encode escapes, then strip the outer quotes
		encoded := fmt.Sprintf("%q", string(data))
		if len(encoded) >= 2 {
			encoded = encoded[1 : len(encoded)-1]
		}

		fmt.Fprintf(logFile, "%s %s\n", direction, encoded)

		logFile.Close()
	} else {
		Error("Could not open raw capture log", "error", err)
		Debug("Raw data", "direction", direction, "data", string(data))
	}
}

// Close closes the logger file
func Close() {
	if globalLogger != nil && globalLogger.file != os.Stdout {
		globalLogger.file.Close()
	}
}
