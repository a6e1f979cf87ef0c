package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/records":               "/v1/records",
		"/v1/records?team=infra":    "/v1/records",
		"/v1/audit":                 "/v1/audit",
		"/v1/audit/01ABCDEF":        "/v1/audit/:id",
		"/v1/audit/01ABCDEF/verify": "/v1/audit/01ABCDEF/verify",
		"/v1/auth/login":            "/v1/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
