package notice

import (
	"strconv"
	"strings"

	"consenthub/internal/domain/errs"
)

const DefaultVersion = "1.0"

// ParseVersion reads "major" or "major.minor".
func ParseVersion(v string) (major, minor int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, errs.Invalid("version", "must look like 2 or 2.3")
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, 0, errs.Invalid("version", "must look like 2 or 2.3")
	}
	if len(parts) == 2 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil || minor < 0 {
			return 0, 0, errs.Invalid("version", "must look like 2 or 2.3")
		}
	}
	return major, minor, nil
}

// NextVersion bumps current: "2.3" becomes "3.0" for a major change and "2.4"
// otherwise.
func NextVersion(current string, major bool) (string, error) {
	ma, mi, err := ParseVersion(current)
	if err != nil {
		return "", err
	}
	if major {
		return strconv.Itoa(ma+1) + ".0", nil
	}
	return strconv.Itoa(ma) + "." + strconv.Itoa(mi+1), nil
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusActive || to == StatusArchived
	case StatusActive:
		return to == StatusArchived
	}
	return false
}
