package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// EnvLogToolErrors turns on the tool error log when set to "true"
const EnvLogToolErrors = "LOG_TOOL_ERRORS"

// DefaultLogRetentionDays is how long entries survive rotation
const DefaultLogRetentionDays = 60

// ToolErrorLogEntry is one line of the tool error log
type ToolErrorLogEntry struct {
	Timestamp string `json:"timestamp"`
	ToolName  string `json:"tool_name"`
	Function  string `json:"function,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Error     string `json:"error"`
	Transport string `json:"transport,omitempty"`
}

// ToolErrorLogger appends failed tool calls to a JSON lines file
type ToolErrorLogger struct {
	enabled  bool
	logFile  *os.File
	logger   *logrus.Logger
	mu       sync.Mutex
	filePath string
	now      func() time.Time
}

var (
	globalErrorLogger *ToolErrorLogger
	errorLoggerOnce   sync.Once
)

// InitGlobalErrorLogger sets up the process-wide error log under
// ~/.mcp-sheets/logs when LOG_TOOL_ERRORS=true
func InitGlobalErrorLogger(logger *logrus.Logger) error {
	var initErr error
	errorLoggerOnce.Do(func() {
		if os.Getenv(EnvLogToolErrors) != "true" {
			globalErrorLogger = &ToolErrorLogger{logger: logger}
			return
		}

		errorLogger, err := NewToolErrorLogger(filepath.Join(config.HomeDir(), "logs", "tool-errors.log"), logger)
		if err != nil {
			initErr = err
			return
		}
		globalErrorLogger = errorLogger

		go func() {
			if rotateErr := errorLogger.RotateOldLogs(); rotateErr != nil {
				logger.WithError(rotateErr).Warn("Failed to rotate old tool error logs")
			}
		}()

		logger.Infof("Tool error logging enabled: %s", errorLogger.filePath)
	})

	return initErr
}

// NewToolErrorLogger opens (or creates) the log file at path in append mode
func NewToolErrorLogger(path string, logger *logrus.Logger) (*ToolErrorLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool error log file: %w", err)
	}

	return &ToolErrorLogger{
		enabled:  true,
		logFile:  logFile,
		logger:   logger,
		filePath: path,
		now:      time.Now,
	}, nil
}

// GetGlobalErrorLogger returns the process-wide logger, disabled if never initialised
func GetGlobalErrorLogger() *ToolErrorLogger {
	if globalErrorLogger == nil {
		return &ToolErrorLogger{}
	}
	return globalErrorLogger
}

// LogToolError appends a failed call. Arguments are sanitised before writing.
func (l *ToolErrorLogger) LogToolError(toolName string, args map[string]any, err error, transport string) {
	if !l.enabled || err == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return
	}

	function, _ := args["function"].(string)
	entry := ToolErrorLogEntry{
		Timestamp: l.clock().Format(time.RFC3339),
		ToolName:  toolName,
		Function:  function,
		Arguments: telemetry.SanitiseArguments(args),
		Error:     err.Error(),
		Transport: transport,
	}

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		l.warn(marshalErr, "Failed to marshal tool error log entry")
		return
	}

	if _, writeErr := l.logFile.Write(append(jsonData, '\n')); writeErr != nil {
		l.warn(writeErr, "Failed to write tool error log entry")
		return
	}

	if syncErr := l.logFile.Sync(); syncErr != nil {
		l.warn(syncErr, "Failed to sync tool error log file")
	}
}

// Close closes the log file
func (l *ToolErrorLogger) Close() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// IsEnabled returns whether error logging is enabled
func (l *ToolErrorLogger) IsEnabled() bool {
	return l.enabled
}

// GetLogFilePath returns the path to the error log file
func (l *ToolErrorLogger) GetLogFilePath() string {
	return l.filePath
}

// RotateOldLogs drops entries older than DefaultLogRetentionDays. Malformed
// lines and lines with unparseable timestamps are kept. Holds the mutex for
// the whole rewrite so LogToolError never writes to a closed file.
func (l *ToolErrorLogger) RotateOldLogs() error {
	if !l.enabled || l.filePath == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file for rotation: %w", err)
		}
		l.logFile = nil
	}

	file, err := os.Open(l.filePath)
	if err != nil {
		return l.reopenLogFileLocked()
	}

	var kept []string
	cutoff := l.clock().AddDate(0, 0, -DefaultLogRetentionDays)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry ToolErrorLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			kept = append(kept, line)
			continue
		}

		entryTime, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || entryTime.After(cutoff) {
			kept = append(kept, line)
		}
	}

	scanErr := scanner.Err()
	_ = file.Close()

	if scanErr != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("error reading log file during rotation: %w", scanErr)
	}

	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}

	tmpPath := l.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to write temporary rotated log file: %w", err)
	}

	if err := os.Rename(tmpPath, l.filePath); err != nil {
		_ = os.Remove(tmpPath)
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to rename temporary log file during rotation: %w", err)
	}

	return l.reopenLogFileLocked()
}

// reopenLogFileLocked reopens the log file in append mode. Caller must hold l.mu.
func (l *ToolErrorLogger) reopenLogFileLocked() error {
	logFile, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}

	l.logFile = logFile
	return nil
}

func (l *ToolErrorLogger) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}

func (l *ToolErrorLogger) warn(err error, msg string) {
	if l.logger != nil {
		l.logger.WithError(err).Error(msg)
	}
}
