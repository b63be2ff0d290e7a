package view

import (
	"github.com/a-h/templ"

	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/session"
)

const AppName = "My Active Directory"

type NavItem struct {
	Title       string
	Href        string
	Description string
}

var Nav = []NavItem{
	{Title: "Users", Href: "/", Description: "List of users in the Active Directory. This is the default page."},
	{Title: "Roles", Href: "/roles", Description: "Roles group permissions and are assigned to users."},
	{Title: "Service Accounts", Href: "/service-accounts", Description: "Service accounts are used to access MAD from other applications."},
	{Title: "Projects", Href: "/projects", Description: "Projects dispatch users and service accounts."},
}

// Page is the frame of an authenticated page.
type Page struct {
	Title         string
	Active        string
	User          *session.Claims
	Notifications []crud.Notification
	Body          templ.Component
	// URL replaces the address bar after a form submission so a reload
	// does not post again.
	URL string
}

func pageTitle(title string) string {
	if title == "" {
		return AppName
	}
	return title + " | " + AppName
}

func userName(c *session.Claims) string {
	if c.Username != "" {
		return c.Username
	}
	return c.Email
}
