package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/atomic"
	"gopkg.in/natefinch/lumberjack.v2"

	"tg-exchange/internal/config"
)

// Level orders log severities; messages below the configured level are dropped.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var level = atomic.NewInt32(int32(LevelInfo))

// ParseLevel maps the config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR", "FATAL":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the active level.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// createMultiWriter creates a writer that outputs to both stdout and log file
func createMultiWriter(rotatingLogger io.Writer) io.Writer {
	return io.MultiWriter(os.Stdout, rotatingLogger)
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "tg-exchange")
	rotatingLogger := createRotatingLogger(logFilePath, cfg)
	multiWriter := createMultiWriter(rotatingLogger)

	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	SetLevel(ParseLevel(cfg.Logger.Level))

	log.Printf("Logging initialized: writing to %s (level %s)", logFilePath, cfg.Logger.Level)
	return nil
}

// GetRotatingLogWriter returns a rotating log writer for custom loggers
func GetRotatingLogWriter(cfg *config.Config, prefix string) io.Writer {
	logFilePath := createLogFilePath(cfg.Logger.Directory, prefix)
	rotatingLogger := createRotatingLogger(logFilePath, cfg)
	return createMultiWriter(rotatingLogger)
}

// calldepth 3 so Lshortfile points at the caller of Infof and friends
func output(l Level, tag, msg string) {
	if Level(level.Load()) > l {
		return
	}
	_ = log.Output(3, "["+tag+"] "+msg)
}

func Debugf(format string, args ...interface{}) {
	output(LevelDebug, "DEBUG", fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	output(LevelInfo, "INFO", fmt.Sprintf(format, args...))
}

func Warningf(format string, args ...interface{}) {
	output(LevelWarning, "WARNING", fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	output(LevelError, "ERROR", fmt.Sprintf(format, args...))
}

func Error(args ...interface{}) {
	output(LevelError, "ERROR", fmt.Sprint(args...))
}

func Info(args ...interface{}) {
	output(LevelInfo, "INFO", fmt.Sprint(args...))
}

// Fatalf logs regardless of the level and exits.
func Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
