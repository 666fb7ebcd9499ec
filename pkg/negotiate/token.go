package negotiate

import "strings"

// parseAuthorization extracts the base64 token from an Authorization
// header value. Returns ok=false when the header is absent, carries a
// different scheme, or carries no token after the scheme. Malformed
// input never panics, it just fails to parse.
func parseAuthorization(headerValue, scheme string) (token string, ok bool) {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return "", false
	}

	parts := strings.SplitN(headerValue, " ", 2)
	if !strings.EqualFold(parts[0], scheme) {
		return "", false
	}
	if len(parts) < 2 {
		return "", false
	}

	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

// schemeMatches reports whether the header value names the given
// scheme, token or no token. Used to tell "foreign scheme, not ours"
// apart from "our scheme but no usable token".
func schemeMatches(headerValue, scheme string) bool {
	headerValue = strings.TrimSpace(headerValue)
	name, _, _ := strings.Cut(headerValue, " ")
	return strings.EqualFold(name, scheme)
}

// renderChallenge builds a WWW-Authenticate value: the bare scheme for
// an initial challenge, "scheme token" for handshake continuations.
func renderChallenge(scheme, token string) string {
	if token == "" {
		return scheme
	}
	return scheme + " " + token
}
