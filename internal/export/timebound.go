package export

import (
	"fmt"
	"strconv"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// ParseTimeBound parses a filter bound, accepting both unix second
// timestamps and human-readable dates. An empty value means the bound
// is open. field names the flag for error messages.
func ParseTimeBound(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unix < 0 {
			return time.Time{}, fmt.Errorf("%s timestamp must be non-negative", field)
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		PreferredDateSource: dps.CurrentPeriod,
	}
	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a unix timestamp or a date: %v", field, err)
	}
	if parsed.IsZero() {
		return time.Time{}, fmt.Errorf("%s could not be parsed as a date: %s", field, value)
	}
	return parsed.Time, nil
}
