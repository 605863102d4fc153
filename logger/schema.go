package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
	// LevelFatal represents the fatal severity level name.
	LevelFatal = "FATAL"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

var allowedStatus = map[string]string{
	"ok":        "ok",
	"fail":      "fail",
	"skip":      "skip",
	"rejected":  "rejected",
	"cancelled": "cancelled",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	if mapped, ok := allowedStatus[status]; ok {
		return mapped, true
	}
	return status, false
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"ts_unix_nano",
	"user_id",
	"kind",
	"state",
	"from_state",
	"to_state",
	"action",
	"handler",
	"operation",
	"op",
	"outcome",
	"duration_ms",
	"count",
	"size",
	"model",
	"payload",
	"file",
	"url",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"driver",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"attempts",
}
