package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidNumber = errors.New("invalid phone number")

// Normalize parses raw in defaultRegion (numbers with a leading + carry their
// own country code) and returns it in E.164 form. Blank input yields "".
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidNumber
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
