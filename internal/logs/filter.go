package logs

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/charliek/herolog/internal/domain"
)

// MaxPatternLength is the maximum allowed length for regex predicates
const MaxPatternLength = 256

// Kind identifies which field a predicate tests and how
type Kind int

const (
	// KindText is a case-insensitive substring match on the message
	KindText Kind = iota
	// KindRegex is a regular expression match on the message
	KindRegex
	// KindDyno is an exact match on the dyno
	KindDyno
	// KindSource is an exact match on the source
	KindSource
	// KindLevel is an exact match on the detected level
	KindLevel
)

// String returns the lowercase kind name used in predicate specs and JSON
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRegex:
		return "regex"
	case KindDyno:
		return "dyno"
	case KindSource:
		return "source"
	case KindLevel:
		return "level"
	default:
		return "unknown"
	}
}

// Predicate is a single filter condition. Predicates are immutable;
// build them with the constructors or ParsePredicate.
type Predicate struct {
	kind   Kind
	value  string
	folded string // lowercased needle for KindText
	level  domain.Level
	re     *regexp.Regexp
}

// TextPredicate matches messages containing needle, ignoring case
func TextPredicate(needle string) Predicate {
	return Predicate{kind: KindText, value: needle, folded: strings.ToLower(needle)}
}

// RegexPredicate matches messages against pattern.
// Invalid or overlong patterns return domain.ErrInvalidPredicate.
func RegexPredicate(pattern string) (Predicate, error) {
	if len(pattern) > MaxPatternLength {
		return Predicate{}, fmt.Errorf("%w: pattern exceeds maximum length of %d characters", domain.ErrInvalidPredicate, MaxPatternLength)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: %v", domain.ErrInvalidPredicate, err)
	}
	return Predicate{kind: KindRegex, value: pattern, re: re}, nil
}

// DynoPredicate matches records whose dyno equals dyno exactly
func DynoPredicate(dyno string) Predicate {
	return Predicate{kind: KindDyno, value: dyno}
}

// SourcePredicate matches records whose source equals source exactly
func SourcePredicate(source string) Predicate {
	return Predicate{kind: KindSource, value: source}
}

// LevelPredicate matches records with the given level
func LevelPredicate(level domain.Level) Predicate {
	return Predicate{kind: KindLevel, value: level.String(), level: level}
}

// Kind returns the predicate kind
func (p Predicate) Kind() Kind {
	return p.kind
}

// Value returns the needle, pattern, dyno, source or level name
func (p Predicate) Value() string {
	return p.value
}

// Matches reports whether record satisfies the predicate
func (p Predicate) Matches(record domain.LogRecord) bool {
	switch p.kind {
	case KindText:
		return strings.Contains(strings.ToLower(record.Message), p.folded)
	case KindRegex:
		return p.re != nil && p.re.MatchString(record.Message)
	case KindDyno:
		return record.Dyno == p.value
	case KindSource:
		return record.Source == p.value
	case KindLevel:
		return record.Level == p.level
	default:
		return false
	}
}

// String returns the display form, e.g. `Text: "timeout"` or `Level: Error`
func (p Predicate) String() string {
	switch p.kind {
	case KindText:
		return fmt.Sprintf("Text: %q", p.value)
	case KindRegex:
		return "Regex: /" + p.value + "/"
	case KindDyno:
		return "Dyno: " + p.value
	case KindSource:
		return "Source: " + p.value
	case KindLevel:
		return "Level: " + p.level.String()
	default:
		return "Unknown"
	}
}

// Spec returns the predicate in the form accepted by ParsePredicate
func (p Predicate) Spec() string {
	switch p.kind {
	case KindRegex:
		return "/" + p.value + "/"
	case KindDyno:
		return "dyno:" + p.value
	case KindSource:
		return "source:" + p.value
	case KindLevel:
		return "level:" + strings.ToLower(p.level.String())
	default:
		return p.value
	}
}

// MarshalJSON encodes the predicate with its kind, value and display form
func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Value   string `json:"value"`
		Display string `json:"display"`
	}{p.kind.String(), p.value, p.String()})
}

// ParsePredicate builds a predicate from its textual form:
//
//	timeout          text (case-insensitive substring)
//	/H1[0-9]/        regex
//	dyno:web.1       dyno
//	source:heroku    source
//	level:error      level (error, warn, warning, info, debug)
func ParsePredicate(spec string) (Predicate, error) {
	if spec == "" {
		return Predicate{}, fmt.Errorf("%w: empty predicate", domain.ErrInvalidPredicate)
	}

	if len(spec) > 2 && strings.HasPrefix(spec, "/") && strings.HasSuffix(spec, "/") {
		return RegexPredicate(spec[1 : len(spec)-1])
	}

	key, value, found := strings.Cut(spec, ":")
	if !found {
		return TextPredicate(spec), nil
	}

	switch strings.ToLower(key) {
	case "dyno":
		if value == "" {
			return Predicate{}, fmt.Errorf("%w: dyno requires a value", domain.ErrInvalidPredicate)
		}
		return DynoPredicate(value), nil
	case "source":
		if value == "" {
			return Predicate{}, fmt.Errorf("%w: source requires a value", domain.ErrInvalidPredicate)
		}
		return SourcePredicate(value), nil
	case "level":
		level, ok := domain.ParseLevel(value)
		if !ok || level == domain.LevelUnknown {
			return Predicate{}, fmt.Errorf("%w: unknown level %q", domain.ErrInvalidPredicate, value)
		}
		return LevelPredicate(level), nil
	default:
		return TextPredicate(spec), nil
	}
}

// Mode decides how multiple predicates combine
type Mode int

const (
	// ModeAll requires every predicate to match (AND)
	ModeAll Mode = iota
	// ModeAny requires at least one predicate to match (OR)
	ModeAny
)

// String returns "all" or "any"
func (m Mode) String() string {
	if m == ModeAny {
		return "any"
	}
	return "all"
}

// Label returns the short operator label shown in headers
func (m Mode) Label() string {
	if m == ModeAny {
		return "OR"
	}
	return "AND"
}

// Toggle returns the other mode
func (m Mode) Toggle() Mode {
	if m == ModeAny {
		return ModeAll
	}
	return ModeAny
}

// MarshalText encodes the mode as "all" or "any"
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything ParseMode accepts
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode converts "all"/"and" or "any"/"or" (case-insensitive) to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "and":
		return ModeAll, nil
	case "any", "or":
		return ModeAny, nil
	default:
		return ModeAll, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidPredicate, s)
	}
}

// MatchesAll reports whether record passes predicates combined under mode.
// An empty predicate set matches everything.
func MatchesAll(record domain.LogRecord, predicates []Predicate, mode Mode) bool {
	if len(predicates) == 0 {
		return true
	}
	if mode == ModeAny {
		for _, p := range predicates {
			if p.Matches(record) {
				return true
			}
		}
		return false
	}
	for _, p := range predicates {
		if !p.Matches(record) {
			return false
		}
	}
	return true
}

// Visible returns the records that pass predicates under mode, in their original order.
// With no predicates every record is visible.
func Visible(records []domain.LogRecord, predicates []Predicate, mode Mode) []domain.LogRecord {
	if len(predicates) == 0 {
		return records
	}

	result := make([]domain.LogRecord, 0, len(records))
	for _, r := range records {
		if MatchesAll(r, predicates, mode) {
			result = append(result, r)
		}
	}
	return result
}

// LastN returns at most n records from the end of records.
// Non-positive n returns records unchanged.
func LastN(records []domain.LogRecord, n int) []domain.LogRecord {
	if n > 0 && len(records) > n {
		return records[len(records)-n:]
	}
	return records
}
