package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxUserIDLength         = 128
	MaxMessageContentLength = 4000
)

// UserIDRegex accepts UUIDs, cuids and similar opaque identifiers.
var UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUserID validates an identity string as supplied by a caller
func ValidateUserID(id, fieldName string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > MaxUserIDLength {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, MaxUserIDLength)
	}
	if !UserIDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", fieldName)
	}
	return nil
}

// ValidateMessageContent validates a chat message body
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is required")
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("message content contains invalid characters")
	}
	if utf8.RuneCountInString(content) > MaxMessageContentLength {
		return fmt.Errorf("message content is too long (max %d characters)", MaxMessageContentLength)
	}
	return nil
}

// ValidateRealtimeURL validates the URL a realtime session dials
func ValidateRealtimeURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be ws or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
