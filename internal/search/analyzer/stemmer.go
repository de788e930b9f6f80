package analyzer

import "strings"

// suffixRule is a complex-suffix rewrite: strip the suffix, append the
// replacement, but only when what's left is at least two characters.
type suffixRule struct {
	suffix      string
	replacement string
}

// complexSuffixRules mirrors the original analyzer's rule table exactly;
// keep the order and entries stable so stems don't drift across reimplementations.
var complexSuffixRules = []suffixRule{
	{"ization", "ize"},
	{"ational", "ate"},
	{"fulness", "ful"},
	{"ousness", "ous"},
	{"iveness", "ive"},
	{"tional", "tion"},
	{"biliti", "ble"},
	{"lessli", "less"},
	{"entli", "ent"},
	{"enci", "ence"},
	{"anci", "ance"},
	{"izer", "ize"},
	{"abli", "able"},
	{"alli", "al"},
	{"ator", "ate"},
	{"alism", "al"},
	{"aliti", "al"},
	{"ousli", "ous"},
	{"ration", "rate"},
	{"ation", "ate"},
	{"ness", ""},
	{"ment", ""},
	{"ance", "an"},
	{"ence", "en"},
	{"able", ""},
	{"ible", ""},
}

var simpleSuffixes = []string{"ingly", "edly", "ing", "ed", "ly", "es", "s"}

// Stem reduces a word to a stable pseudo-root using the complex-suffix table
// first, falling back to the simple-suffix table, and never reducing below
// two characters ("running" -> "runn", "testing" -> "test",
// "organization" -> "organize").
func Stem(word string) string {
	lower := strings.ToLower(word)
	if candidate, ok := stripComplexSuffix(lower); ok {
		return candidate
	}
	if candidate, ok := stripSimpleSuffix(lower); ok {
		return candidate
	}
	return lower
}

func stripComplexSuffix(lower string) (string, bool) {
	for _, rule := range complexSuffixRules {
		if strings.HasSuffix(lower, rule.suffix) && len(lower)-len(rule.suffix) >= 2 {
			candidate := lower[:len(lower)-len(rule.suffix)] + rule.replacement
			if len(candidate) >= 2 {
				return candidate, true
			}
		}
	}
	return "", false
}

func stripSimpleSuffix(lower string) (string, bool) {
	for _, suffix := range simpleSuffixes {
		if strings.HasSuffix(lower, suffix) && len(lower)-len(suffix) >= 2 {
			return lower[:len(lower)-len(suffix)], true
		}
	}
	return "", false
}
