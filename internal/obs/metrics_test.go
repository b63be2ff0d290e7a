package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/users/42":                 "/users/:id",
		"/users/42/metadata":        "/users/:id/metadata",
		"/service-accounts/7/token": "/service-accounts/:id/token",
		"/roles?page=2":             "/roles",
		"/profile/devices":          "/profile/devices",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
