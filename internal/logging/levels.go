package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// LogLevel orders message severities from DEBUG (lowest) to FATAL.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the upper-case level name used in log output.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts a level name, case-insensitively, to its LogLevel.
func ParseLevel(levelStr string) (LogLevel, error) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return -1, fmt.Errorf("invalid level: %s (must be DEBUG, INFO, WARN, ERROR, or FATAL)", levelStr)
	}
}

// packageLevels holds per-logger-name level overrides. Keys are exact names
// ("analysis.spectral") or wildcard patterns ("analysis.*").
var (
	packageLevels = make(map[string]LogLevel)
	packageMu     sync.RWMutex
)

// SetPackageLogLevels replaces the per-package override table.
// Passing nil clears nothing and returns nil.
func SetPackageLogLevels(levels map[string]string) error {
	if levels == nil {
		return nil
	}

	parsed := make(map[string]LogLevel, len(levels))
	for pkg, levelStr := range levels {
		level, err := ParseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
		parsed[pkg] = level
	}

	packageMu.Lock()
	packageLevels = parsed
	packageMu.Unlock()
	return nil
}

// GetPackageLogLevel returns the override level for a logger name, or -1
// when no exact or wildcard entry matches. The most specific (longest)
// matching pattern wins.
func GetPackageLogLevel(name string) LogLevel {
	packageMu.RLock()
	defer packageMu.RUnlock()

	if level, ok := packageLevels[name]; ok {
		return level
	}

	var matches []string
	for pattern := range packageLevels {
		if matchesPattern(name, pattern) {
			matches = append(matches, pattern)
		}
	}
	if len(matches) == 0 {
		return LogLevel(-1)
	}
	sort.Slice(matches, func(i, j int) bool { return len(matches[i]) > len(matches[j]) })
	return packageLevels[matches[0]]
}

// matchesPattern reports whether name matches pattern. A trailing ".*"
// matches any name under that prefix.
func matchesPattern(name, pattern string) bool {
	if name == pattern {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(name, prefix+".")
	}
	return false
}
