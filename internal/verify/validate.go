package verify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultStudentEmailDomain = "student.unsw.edu.au"
	MaxNameLength             = 500
)

var (
	zidRegex   = regexp.MustCompile(`^z\d{7}$`)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

// NormalizeZID lowercases and trims a submitted zID.
func NormalizeZID(zid string) string {
	return strings.ToLower(strings.TrimSpace(zid))
}

func IsValidZID(zid string) bool {
	return zidRegex.MatchString(zid)
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func IsValidName(name string) bool {
	return name != "" && utf8.RuneCountInString(name) <= MaxNameLength
}

func parseYesNo(ans string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}
