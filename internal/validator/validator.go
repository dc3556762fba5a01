package validator

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/septivank/meter-reading-api/internal/db"
)

var datetimeRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?$`)

// IsValidDatetimeFormat checks the shape of an ISO-8601 datetime.
// Calendar validity is not checked.
func IsValidDatetimeFormat(s string) bool {
	return datetimeRegex.MatchString(s)
}

// IsBase64 reports whether s survives a decode/encode round trip unchanged
func IsBase64(s string) bool {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return base64.StdEncoding.EncodeToString(decoded) == s
}

// ParseMeasureType normalises a measure type, case-insensitively
func ParseMeasureType(s string) (db.MeasureType, bool) {
	switch t := db.MeasureType(strings.ToUpper(strings.TrimSpace(s))); t {
	case db.MeasureTypeWater, db.MeasureTypeGas:
		return t, true
	default:
		return "", false
	}
}
