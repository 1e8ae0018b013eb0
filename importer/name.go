package importer

import (
	"regexp"
	"strings"
)

var parenthetical = regexp.MustCompile(`\s*\(.*?\)\s*`)

// surnamePrefixes join the following word into one surname
// ("de la Cruz", "San Martín").
var surnamePrefixes = map[string]bool{
	"de": true, "del": true, "la": true, "las": true, "los": true,
	"san": true, "santa": true, "van": true, "von": true,
	"da": true, "di": true, "y": true,
}

// ParseName splits a roster name into given names and surnames.
//
// "Apellidos, Nombres" is split at the comma. Otherwise the name reads
// given names first: one word is a given name, two words are one of each,
// and longer names take the last two surname groups as surnames, where a
// group is a word plus any prefixes before it. Parenthesized notes are
// dropped.
func ParseName(raw string) (nombres, apellidos string) {
	clean := strings.TrimSpace(parenthetical.ReplaceAllString(raw, " "))
	if clean == "" {
		return "", ""
	}

	if before, after, ok := strings.Cut(clean, ","); ok {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}

	words := strings.Fields(clean)
	switch len(words) {
	case 1:
		return words[0], ""
	case 2:
		return words[0], words[1]
	}

	split := surnameStart(words, len(words)-1)
	if split > 0 {
		if first := surnameStart(words, split-1); first > 0 {
			split = first
		}
	}
	return strings.Join(words[:split], " "), strings.Join(words[split:], " ")
}

// surnameStart walks back from end over any prefixes in front of it.
func surnameStart(words []string, end int) int {
	start := end
	for start > 0 && surnamePrefixes[strings.ToLower(words[start-1])] {
		start--
	}
	return start
}
