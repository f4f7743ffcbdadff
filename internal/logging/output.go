package logging

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"
)

// logf formats and emits a printf-style message, merging in any context
// fields and the logger's persistent fields.
func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	formatted := fmt.Sprintf(msg, args...)

	contextFields := extractContextFields(l.ctx)
	var merged map[string]interface{}
	if contextFields != nil || len(l.fields) > 0 {
		merged = make(map[string]interface{})
		for k, v := range contextFields {
			merged[k] = v
		}
		for k, v := range l.fields {
			merged[k] = v
		}
	}

	l.write(level, formatted, merged)
}

// logFields emits a message with per-call structured fields. Merge priority,
// last wins: context fields, then persistent fields, then call fields.
func (l *Logger) logFields(level LogLevel, msg string, fields ...LogField) {
	contextFields := extractContextFields(l.ctx)

	var merged map[string]interface{}
	if contextFields != nil || len(l.fields) > 0 || len(fields) > 0 {
		merged = make(map[string]interface{})
		for k, v := range contextFields {
			merged[k] = v
		}
		for k, v := range l.fields {
			merged[k] = v
		}
		for _, f := range fields {
			merged[f.Key] = f.Value
		}
	}

	l.write(level, msg, merged)
}

// write renders one line and routes it by severity: ERROR and FATAL go to
// stderr, everything else to stdout.
func (l *Logger) write(level LogLevel, msg string, fields map[string]interface{}) {
	line := fmt.Sprintf("[%s] [%s] %s: %s", Timestamp(), level, l.name, msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		line += " |"
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, fields[k])
		}
	}

	if level >= ERROR {
		fmt.Fprintf(os.Stderr, "%s\n", line)
	} else {
		log.Println(line)
	}
}

// Timestamp returns the RFC3339 timestamp used for log lines. The
// LOG_TIMESTAMP environment variable overrides it for deterministic tests.
func Timestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
