// Package security provides input sanitization for free-text feedback.
package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sanitization errors
var (
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrTextTooLong   = errors.New("text exceeds maximum length")
	ErrControlChars  = errors.New("text contains control characters")
	ErrSQLInjection  = errors.New("text looks like an SQL injection attempt")
	ErrInvalidUTF8   = errors.New("text is not valid UTF-8")
	ErrBlockedPhrase = errors.New("text contains a blocked phrase")
)

// injectionPatterns match statement-shaped SQL fragments. Matching is done
// on a lower-cased, whitespace-collapsed copy of the input.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(drop|alter|truncate)\s+(table|database|schema)\b`),
	regexp.MustCompile(`;\s*(select|insert|update|delete|drop|alter|truncate|create|exec|grant)\b`),
	regexp.MustCompile(`\bunion\s+(all\s+)?select\b`),
	regexp.MustCompile(`\binsert\s+into\b.*\bvalues\b`),
	regexp.MustCompile(`'\s*(or|and)\s+'?\w+'?\s*=\s*'?\w+`),
	regexp.MustCompile(`--\s*$`),
	regexp.MustCompile(`/\*.*\*/`),
	regexp.MustCompile(`\b(xp_cmdshell|sleep\s*\(|benchmark\s*\(|pg_sleep\s*\()`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Config holds sanitizer configuration.
type Config struct {
	MaxLength      int      // Maximum allowed length in runes
	BlockedPhrases []string // Case-insensitive phrases that are always rejected
}

// DefaultConfig returns the default sanitizer configuration.
func DefaultConfig() Config {
	return Config{
		MaxLength:      2000,
		BlockedPhrases: nil,
	}
}

// Sanitizer validates free-text input before it reaches storage.
type Sanitizer struct {
	config  Config
	blocked []string
}

// NewSanitizer creates a new text sanitizer.
func NewSanitizer(cfg Config) *Sanitizer {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultConfig().MaxLength
	}
	blocked := make([]string, 0, len(cfg.BlockedPhrases))
	for _, p := range cfg.BlockedPhrases {
		if p = normalize(p); p != "" {
			blocked = append(blocked, p)
		}
	}
	return &Sanitizer{config: cfg, blocked: blocked}
}

// Validate checks if text is safe to store.
func (s *Sanitizer) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}

	if utf8.RuneCountInString(text) > s.config.MaxLength {
		return ErrTextTooLong
	}

	if hasControlChars(text) {
		return ErrControlChars
	}

	normalized := normalize(text)

	if LooksLikeSQLInjection(normalized) {
		return ErrSQLInjection
	}

	for _, phrase := range s.blocked {
		if strings.Contains(normalized, phrase) {
			return ErrBlockedPhrase
		}
	}

	return nil
}

// LooksLikeSQLInjection reports whether text matches a known injection shape.
func LooksLikeSQLInjection(text string) bool {
	normalized := normalize(text)
	for _, p := range injectionPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// normalize lower-cases text and collapses runs of whitespace.
func normalize(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.ToLower(text), " "))
}

// hasControlChars reports control characters other than tab and newlines.
func hasControlChars(text string) bool {
	for _, r := range text {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
