package transaction

import (
	"fmt"
	"strconv"
	"strings"
)

// Hints are caller preferences that do not change what a transaction does.
type Hints struct {
	Locale                   string
	Background               bool
	Interactive              bool
	CacheAge                 uint
	FrontendSocket           string
	SupportsPluralSignatures bool
}

// applyHint sets one "key=value" hint. Unknown keys are reported through
// the returned bool so the caller can log them; malformed values are errors.
func (h *Hints) applyHint(hint string) (known bool, err error) {
	key, value, ok := strings.Cut(hint, "=")
	if !ok || key == "" {
		return false, fmt.Errorf("%w: hint %q is not key=value", ErrInputInvalid, hint)
	}
	if !validString(value) {
		return false, fmt.Errorf("%w: hint %s has an invalid value", ErrInputInvalid, key)
	}

	switch key {
	case "locale":
		h.Locale = value
	case "frontend-socket":
		h.FrontendSocket = value
	case "background":
		h.Background, err = parseHintBool(key, value)
	case "interactive":
		h.Interactive, err = parseHintBool(key, value)
	case "supports-plural-signatures":
		h.SupportsPluralSignatures, err = parseHintBool(key, value)
	case "cache-age":
		var age uint64
		age, err = strconv.ParseUint(value, 10, 32)
		if err != nil {
			return true, fmt.Errorf("%w: cache-age %q is not a number", ErrInputInvalid, value)
		}
		h.CacheAge = uint(age)
	default:
		return false, nil
	}
	return true, err
}

func parseHintBool(key, value string) (bool, error) {
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s must be true or false, got %q", ErrInputInvalid, key, value)
}
