package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// Rule names a validation rule. They are reported for logging only.
type Rule string

const (
	RuleNotAList        Rule = "not_a_list"
	RuleEmptyList       Rule = "empty_list"
	RuleTooManyMessages Rule = "too_many_messages"
	RuleInvalidRole     Rule = "invalid_role"
	RuleEmptyContent    Rule = "empty_content"
	RuleContentTooLong  Rule = "content_too_long"
	RuleContentTooShort Rule = "content_too_short"
	RuleDeniedPattern   Rule = "denied_pattern"
)

// ValidationError reports the first rule a payload violated. Index is the
// offending message position, or -1 for list-level rules.
type ValidationError struct {
	Rule  Rule
	Index int
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("validation failed: %s", e.Rule)
	}
	return fmt.Sprintf("validation failed: %s at message %d", e.Rule, e.Index)
}

// Limits are the payload ceilings applied by ValidateMessages.
type Limits struct {
	MaxMessages      int
	MaxContentLength int
	MinContentLength int
}

// deniedPatterns match injection and XSS-style payloads.
var deniedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`),
	regexp.MustCompile(`(?i)\bjavascript\s*:`),
	regexp.MustCompile(`(?i)\bvbscript\s*:`),
	regexp.MustCompile(`(?i)\bdata\s*:\s*text/html`),
	regexp.MustCompile(`(?i)<[a-z][^>]*\son[a-z]+\s*=`),
	regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|blur|submit|change|keydown|keyup)\s*=`),
}

// DecodeMessages decodes a raw JSON payload that must be a list of messages.
func DecodeMessages(raw json.RawMessage) ([]domain.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ValidationError{Rule: RuleNotAList, Index: -1}
	}
	var messages []domain.Message
	if err := json.Unmarshal(trimmed, &messages); err != nil {
		return nil, &ValidationError{Rule: RuleNotAList, Index: -1}
	}
	return messages, nil
}

// ValidateMessages checks a transcript against limits and the denylist,
// stopping at the first violation.
func ValidateMessages(v *validator.Validate, messages []domain.Message, limits Limits) error {
	if len(messages) == 0 {
		return &ValidationError{Rule: RuleEmptyList, Index: -1}
	}
	if limits.MaxMessages > 0 && len(messages) > limits.MaxMessages {
		return &ValidationError{Rule: RuleTooManyMessages, Index: -1}
	}

	for i, msg := range messages {
		if err := v.Struct(msg); err != nil {
			return &ValidationError{Rule: structRule(err), Index: i}
		}
		if limits.MaxContentLength > 0 && utf8.RuneCountInString(msg.Content) > limits.MaxContentLength {
			return &ValidationError{Rule: RuleContentTooLong, Index: i}
		}
		trimmed := strings.TrimSpace(msg.Content)
		if trimmed == "" {
			return &ValidationError{Rule: RuleEmptyContent, Index: i}
		}
		if utf8.RuneCountInString(trimmed) < limits.MinContentLength {
			return &ValidationError{Rule: RuleContentTooShort, Index: i}
		}
		for _, p := range deniedPatterns {
			if p.MatchString(msg.Content) {
				return &ValidationError{Rule: RuleDeniedPattern, Index: i}
			}
		}
	}
	return nil
}

// structRule maps a validator failure on domain.Message to a rule.
func structRule(err error) Rule {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Field() == "Role" {
			return RuleInvalidRole
		}
	}
	return RuleEmptyContent
}
