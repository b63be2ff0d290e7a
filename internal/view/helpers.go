package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/mad-auth/console/internal/apiclient"
)

var timeUnits = []struct {
	name string
	d    time.Duration
}{
	{"year", time.Duration(365.25 * 24 * float64(time.Hour))},
	{"month", time.Duration(30.44 * 24 * float64(time.Hour))},
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// TimeBetween is the distance between a and b in its largest whole unit,
// "now" under a minute.
func TimeBetween(a, b time.Time) string {
	return TimeBetweenWithin(a, b, time.Minute)
}

// TimeBetweenWithin is TimeBetween with a custom "now" threshold.
func TimeBetweenWithin(a, b time.Time, now time.Duration) string {
	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	if diff < now {
		return "now"
	}
	for _, u := range timeUnits {
		if n := int64(diff / u.d); n > 0 || u.name == "second" {
			return plural(n, u.name)
		}
	}
	return "now"
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// DisplayName prefers the full name, then either name part, then the email
// and finally the username.
func DisplayName(u apiclient.User) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	case u.Email != "":
		return u.Email
	default:
		return u.Username
	}
}

// Initials is the avatar fallback.
func Initials(u apiclient.User) string {
	src := u.Email
	if src == "" {
		src = u.Username
	}
	if len(src) > 2 {
		src = src[:2]
	}
	return strings.ToUpper(src)
}

type DeviceKindType string

const (
	Desktop DeviceKindType = "desktop"
	Mobile  DeviceKindType = "mobile"
)

var mobileSystems = map[string]bool{
	"android": true, "cyanogenmod": true, "lineageos": true, "miui": true,
	"oxygenos": true, "one ui": true, "windows phone": true,
	"windows mobile": true, "coloros": true, "ios": true, "ipados": true,
}

// DeviceKind classifies a device by operating system name.
func DeviceKind(osName string) DeviceKindType {
	if mobileSystems[strings.ToLower(strings.TrimSpace(osName))] {
		return Mobile
	}
	return Desktop
}
