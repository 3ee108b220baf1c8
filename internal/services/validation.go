package services

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "+", "")

// cleanPhone strips the separators customers commonly type so partial matches still hit.
func cleanPhone(phone string) string {
	return phoneCleaner.Replace(strings.TrimSpace(phone))
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern matching s anywhere, escaped with '!'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

type contactFields struct {
	name, phone, email string
}

func normalizeContact(name, phone, email string) (contactFields, error) {
	c := contactFields{
		name:  strings.TrimSpace(name),
		phone: strings.TrimSpace(phone),
		email: strings.TrimSpace(email),
	}
	if c.name == "" || c.phone == "" {
		return c, validationError("please fill in all required fields")
	}
	if len([]rune(c.name)) > 100 {
		return c, validationError("name is too long")
	}
	if len(c.phone) > 20 {
		return c, validationError("phone number is too long")
	}
	if c.email != "" && !emailRegex.MatchString(c.email) {
		return c, validationError("invalid email address")
	}
	return c, nil
}
