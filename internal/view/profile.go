package view

import (
	"fmt"
	"time"

	"github.com/mad-auth/console/internal/apiclient"
)

type tab struct {
	title, href string
}

var profileTabs = []tab{{"Profile", "/profile"}, {"Devices", "/profile/devices"}}

type DevicesProps struct {
	Tokens []apiclient.DeviceToken
	Now    time.Time
}

func (p DevicesProps) now() time.Time {
	if p.Now.IsZero() {
		return time.Now()
	}
	return p.Now
}

func revokeURL(id int) string {
	return fmt.Sprintf("/profile/devices/%d/revoke", id)
}

func ago(t, now time.Time) string {
	s := TimeBetween(t, now)
	if s == "now" {
		return "just now"
	}
	return s + " ago"
}

func software(s apiclient.Software) string {
	switch {
	case s.Name == "":
		return "Unknown"
	case s.Version == "":
		return s.Name
	default:
		return s.Name + " " + s.Version
	}
}
