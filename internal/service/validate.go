package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 200

// normalizeEmail trims and lower-cases an address and checks that it is a
// bare address without a display name.
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", false
	}
	return email, true
}

// checkName trims a name and appends a problem to problems if it is unusable.
func checkName(field, raw string, problems []string) (string, []string) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		problems = append(problems, field+": field required")
	case utf8.RuneCountInString(name) > maxNameLength:
		problems = append(problems, field+": must be at most 200 characters")
	}
	return name, problems
}

func checkEmail(field, raw string, problems []string) (string, []string) {
	email, ok := normalizeEmail(raw)
	if !ok {
		problems = append(problems, field+": value is not a valid email address")
	}
	return email, problems
}
