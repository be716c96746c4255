package service

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ProfileField names one editable part of a profile.
type ProfileField string

const (
	FieldPhone   ProfileField = "phone"
	FieldName    ProfileField = "name"
	FieldCard    ProfileField = "card"
	FieldAccount ProfileField = "account"
	FieldBank    ProfileField = "bank"
)

// ValidateField normalizes raw and checks it against the rules for field.
func ValidateField(field ProfileField, raw string) (string, error) {
	switch field {
	case FieldPhone:
		return ValidatePhone(raw)
	case FieldName:
		return validateWords(string(FieldName), raw, 3)
	case FieldCard:
		return validateDigits(string(FieldCard), stripAll(raw, " ", "-"), 16)
	case FieldAccount:
		v := strings.ReplaceAll(strings.ToUpper(stripAll(raw, " ")), "IR", "")
		return validateDigits(string(FieldAccount), v, 24)
	case FieldBank:
		return validateWords(string(FieldBank), raw, 2)
	default:
		return "", invalid(string(field), "unknown field")
	}
}

// ValidatePhone accepts international numbers and a few local shorthands.
func ValidatePhone(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(v, "00"):
		v = "+" + v[2:]
	case strings.HasPrefix(v, "09"):
		v = "+98" + v[1:]
	case len(v) == 10 && strings.HasPrefix(v, "9") && isDigits(v):
		v = "+98" + v
	}
	if !strings.HasPrefix(v, "+") || !isDigits(v[1:]) || len(v) < 10 || len(v) > 15 {
		return "", invalid(string(FieldPhone), "expected an international number like +989123456789")
	}
	return v, nil
}

// NormalizeContactPhone fixes up a number shared through a contact card,
// which Telegram may send without the leading plus.
func NormalizeContactPhone(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, "+") {
		return v
	}
	switch {
	case strings.HasPrefix(v, "0"):
		return "+98" + v[1:]
	case len(v) == 10 && strings.HasPrefix(v, "9"):
		return "+98" + v
	default:
		return "+" + v
	}
}

func validateWords(field, raw string, minLen int) (string, error) {
	v := strings.TrimSpace(raw)
	if utf8.RuneCountInString(v) < minLen {
		return "", invalid(field, "too short")
	}
	if strings.IndexFunc(v, unicode.IsDigit) >= 0 {
		return "", invalid(field, "must not contain digits")
	}
	return v, nil
}

func validateDigits(field, v string, n int) (string, error) {
	if len(v) != n || !isDigits(v) {
		return "", invalid(field, "must be exactly "+strconv.Itoa(n)+" digits")
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stripAll(s string, cut ...string) string {
	for _, c := range cut {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}
