package api

import (
	"net/http"
	"strings"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// bearerTransport injects the session token and reports 401 responses to
// requests that carried one back to the session.
func bearerTransport(session func() Session, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		s := session()
		if s == nil || isAnonymous(r.Context()) {
			return next.RoundTrip(r)
		}

		token := strings.TrimSpace(s.Token())
		if token == "" || r.Header.Get(headerAuthz) != "" {
			return next.RoundTrip(r)
		}

		r = r.Clone(r.Context())
		r.Header.Set(headerAuthz, bearerScheme+token)

		resp, err := next.RoundTrip(r)
		if err == nil && resp.StatusCode == http.StatusUnauthorized {
			s.HandleUnauthorized(r.Context())
		}
		return resp, err
	})
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(value string) (string, bool) {
	if !strings.HasPrefix(value, bearerScheme) {
		return "", false
	}

	token := value[len(bearerScheme):]
	if token == "" {
		return "", false
	}

	return token, true
}
