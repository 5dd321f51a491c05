/**
 * @description
 * This file contains the input sanitizers applied to free-text form fields
 * before they are validated and stored.
 */
package security

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	scriptProtocol = regexp.MustCompile(`(?i)javascript:`)
	eventHandler   = regexp.MustCompile(`(?i)on\w+=`)
	phoneDisallow  = regexp.MustCompile(`[^\d+\-\s()]`)
	emailDisallow  = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "")
	angleBrackets  = strings.NewReplacer("<", "", ">", "")
)

// SanitizeText trims s and strips angle brackets, javascript: URLs and inline
// event handler attributes.
func SanitizeText(s string) string {
	s = angleBrackets.Replace(strings.TrimSpace(s))
	s = scriptProtocol.ReplaceAllString(s, "")
	return eventHandler.ReplaceAllString(s, "")
}

// SanitizePhone keeps digits, '+', '-', spaces and parentheses.
func SanitizePhone(s string) string {
	return strings.TrimSpace(phoneDisallow.ReplaceAllString(s, ""))
}

// SanitizeEmail lower-cases and trims s and strips quotes and angle brackets.
func SanitizeEmail(s string) string {
	return emailDisallow.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// SanitizeStrings sanitizes each entry and drops the ones left empty.
func SanitizeStrings(in []string) []string {
	return lo.Compact(lo.Map(in, func(s string, _ int) string { return SanitizeText(s) }))
}

// NormalizePhone removes the separators SanitizePhone keeps so the result
// can be checked against the 08xxxxxxxxx format.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, SanitizePhone(s))
}
