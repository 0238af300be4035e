// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import "fmt"

type LogType string

const (
	LogTypeServer    LogType = "server"    // for listener and lifecycle events
	LogTypeSession   LogType = "session"   // for per-connection state machine events
	LogTypeRoom      LogType = "room"      // for room create/join/leave/destroy events
	LogTypeBroadcast LogType = "broadcast" // for messages fanned out to room members
	LogTypeMessage   LogType = "message"   // for messages sent and received
	LogTypeRateLimit LogType = "ratelimit" // for rate limit events
	LogTypeError     LogType = "error"     // for internal errors and connection errors
	LogTypeOther     LogType = "other"     // generic
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

type Logger interface {
	Log(logType LogType, level LogLevel, msg string, args ...interface{})
}

type DefaultLogger struct{}

func (l *DefaultLogger) Log(logType LogType, level LogLevel, msg string, args ...interface{}) {
	prefix := ""
	switch level {
	case LogLevelError:
		prefix = "[ERROR]"
	case LogLevelWarn:
		prefix = "[WARN]"
	case LogLevelInfo:
		prefix = "[INFO]"
	case LogLevelDebug:
		prefix = "[DEBUG]"
	}
	fmt.Printf("%s [%s] %s\n", prefix, logType, fmt.Sprintf(msg, args...))
}

type NullLogger struct{}

func (l *NullLogger) Log(logType LogType, level LogLevel, msg string, args ...interface{}) {}

// LoggerConfig pairs a Logger with a per-type level threshold. Events above
// the configured level for their type are discarded.
type LoggerConfig struct {
	Logger Logger
	Level  map[LogType]LogLevel
}

func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Logger: &DefaultLogger{},
		Level: map[LogType]LogLevel{
			LogTypeServer:    LogLevelInfo,
			LogTypeSession:   LogLevelInfo,
			LogTypeRoom:      LogLevelInfo,
			LogTypeBroadcast: LogLevelWarn,
			LogTypeMessage:   LogLevelWarn,
			LogTypeRateLimit: LogLevelInfo,
			LogTypeError:     LogLevelError,
			LogTypeOther:     LogLevelInfo,
		},
	}
}

func NullLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Logger: &NullLogger{},
		Level:  map[LogType]LogLevel{},
	}
}

func (lc *LoggerConfig) log(logType LogType, level LogLevel, msg string, args ...interface{}) {
	lvl, ok := lc.Level[logType]
	if !ok {
		lvl = LogLevelNone
	}

	if level <= lvl {
		lc.Logger.Log(logType, level, msg, args...)
	}
}
