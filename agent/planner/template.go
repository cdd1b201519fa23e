package planner

import (
	"errors"
	"fmt"
	"strings"
)

// SummaryPlaceholder marks where the action summary goes in a post message.
const SummaryPlaceholder = "{summary}"

var (
	ErrPlaceholderMissing    = errors.New("template has no summary placeholder")
	ErrPlaceholderDuplicated = errors.New("template has more than one summary placeholder")
)

// Substitute replaces the single summary placeholder in template with value.
func Substitute(template, value string) (string, error) {
	switch n := strings.Count(template, SummaryPlaceholder); n {
	case 0:
		return "", ErrPlaceholderMissing
	case 1:
		return strings.Replace(template, SummaryPlaceholder, value, 1), nil
	default:
		return "", fmt.Errorf("%w: found %d", ErrPlaceholderDuplicated, n)
	}
}
