package eventbus

import "strings"

// MatchSubject reports whether subject matches pattern under the shared
// wildcard grammar: "*" matches exactly one dot-delimited token, ">" matches
// one or more trailing tokens and must be the pattern's last token. This is
// the same grammar the durable backend's broker speaks natively; the
// in-memory backend implements it by hand since there is no broker to ask.
func MatchSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, pt := range pTokens {
		if pt == ">" {
			// ">" must be the last pattern token and matches one or more
			// remaining tokens, so there must be at least one left.
			return i < len(sTokens)
		}
		if i >= len(sTokens) {
			return false
		}
		if pt == "*" {
			continue
		}
		if pt != sTokens[i] {
			return false
		}
	}
	return len(pTokens) == len(sTokens)
}
