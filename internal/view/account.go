package view

import (
	"strings"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/resources"
)

// Form names posted in the "form" field of the account sections.
const (
	FormInfo         = "info"
	FormEmail        = "email"
	FormUsername     = "username"
	FormPassword     = "password"
	FormRoles        = "roles"
	FormAvatar       = "avatar"
	FormAvatarRemove = "avatar-remove"
	FormDelete       = "delete"
)

// AccountProps drives the sections shared by the profile page and the user
// page.
type AccountProps struct {
	User apiclient.User
	// Action is the POST target of every section.
	Action string
	Forms  map[string]FormProps

	AssetBase string
	MaxUpload int64

	// Roles enables the role editor; nil shows the roles read-only.
	Roles form.OptionsLoader
	// Self is the signed-in user's own account: password change and a
	// confirmed delete. Otherwise deletion is forced.
	Self bool
}

func (p AccountProps) form(name string) FormProps {
	return p.Forms[name]
}

// submitted returns the values posted with fp, falling back to current.
func submitted(fp FormProps, current map[string]any) map[string]any {
	if fp.Values != nil {
		return fp.Values
	}
	return current
}

func maxUpload(n int64) int64 {
	if n <= 0 {
		return resources.MaxAvatarBytes
	}
	return n
}

func roleLabel(r apiclient.Role) string {
	if r.DisplayName == "" {
		return r.Name
	}
	return r.DisplayName
}

func isHexColor(c string) bool {
	return strings.HasPrefix(c, "#")
}

func deleteTarget(u apiclient.User) string {
	if name := DisplayName(u); name != "" {
		return name
	}
	return "this account"
}
