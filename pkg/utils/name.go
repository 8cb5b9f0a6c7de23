package utils

import "strings"

// PersonName is a full name split into given and family parts. Either part
// may be empty.
type PersonName struct {
	First string
	Last  string
}

// SplitName splits a full name on whitespace. The last token becomes the
// family name and everything before it, joined by single spaces, the given
// name. A single token is treated as a given name only.
func SplitName(fullName string) PersonName {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return PersonName{}
	case 1:
		return PersonName{First: parts[0]}
	}

	return PersonName{
		First: strings.Join(parts[:len(parts)-1], " "),
		Last:  parts[len(parts)-1],
	}
}
