package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// freeTextLimit caps seller-written descriptions and model output in logs.
const freeTextLimit = 200

// RedactEmail keeps the first two characters of the local part:
// "john.doe@example.com" becomes "jo***@example.com". Local parts of two
// characters or fewer are masked entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") && !emailRegex.MatchString(val) {
		return RedactEmail(val)
	}
	val = emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	if (strings.Contains(key, "description") || strings.Contains(key, "content")) && len(val) > freeTextLimit {
		val = val[:freeTextLimit] + "..."
	}
	return val
}
