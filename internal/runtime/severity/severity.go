// Package severity defines the ordered event level used by events and
// breadcrumbs.
package severity

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	errspkg "github.com/drblury/faultline/internal/runtime/errors"
)

// Severity orders events from Debug (lowest) to Fatal (highest).
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

var names = [...]string{
	Debug:   "debug",
	Info:    "info",
	Warning: "warning",
	Error:   "error",
	Fatal:   "fatal",
}

// All returns every severity in ascending order.
func All() []Severity {
	return []Severity{Debug, Info, Warning, Error, Fatal}
}

// Valid reports whether s is one of the declared levels.
func (s Severity) Valid() bool {
	return s >= Debug && s <= Fatal
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return names[s]
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s >= other
}

// Parse converts a level name into a Severity. "warn" is accepted as an
// alias for warning.
func Parse(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	case "fatal":
		return Fatal, nil
	}
	return 0, fmt.Errorf("%w: %q", errspkg.ErrInvalidSeverity, value)
}

// MustParse is Parse for package-level constants; it panics on unknown names.
func MustParse(value string) Severity {
	s, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", errspkg.ErrInvalidSeverity, int(s))
	}
	return []byte(names[s]), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FromSlogLevel maps a slog level onto the closest severity. Levels between
// the named slog levels round down.
func FromSlogLevel(level slog.Level) Severity {
	switch {
	case level < slog.LevelInfo:
		return Debug
	case level < slog.LevelWarn:
		return Info
	case level < slog.LevelError:
		return Warning
	case level < slog.LevelError+4:
		return Error
	default:
		return Fatal
	}
}

// SlogLevel is the inverse of FromSlogLevel for the named levels.
func (s Severity) SlogLevel() slog.Level {
	switch s {
	case Debug:
		return slog.LevelDebug
	case Info:
		return slog.LevelInfo
	case Warning:
		return slog.LevelWarn
	case Fatal:
		return slog.LevelError + 4
	default:
		return slog.LevelError
	}
}

// FromHTTPStatus derives a severity from a response status code.
func FromHTTPStatus(status int) Severity {
	switch {
	case status >= http.StatusInternalServerError:
		return Error
	case status >= http.StatusBadRequest:
		return Warning
	default:
		return Info
	}
}
