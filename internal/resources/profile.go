package resources

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/schema"
)

// MaxAvatarBytes bounds avatar uploads.
const MaxAvatarBytes = 5 << 20

const InvalidJSONMessage = "Invalid JSON"

// Toast texts of the profile and user pages.
const (
	EmailUpdated       = "Email updated successfully."
	UsernameUpdated    = "Username updated successfully."
	ProfileUpdated     = "Profile updated successfully."
	PasswordUpdated    = "Password updated successfully."
	RolesUpdated       = "Roles updated successfully"
	AccountDeleted     = "Account deleted successfully"
	AccountDeleteError = "Error deleting account, please contact support"
	AvatarUploadError  = "Could not upload avatar."
	TokenRevoked       = "Device signed out successfully"
)

var (
	EmailFields = []form.Field{{
		Name: "email", Label: "Email", Input: form.Text{Type: "email"},
		Placeholder: "Email", AutoComplete: "email",
	}}
	UsernameFields = []form.Field{{
		Name: "username", Label: "Username", Input: form.Text{},
		Placeholder: "Username", AutoComplete: "username",
		Description: "This is your public display name.",
	}}
	InfoFields = []form.Field{
		{Name: "firstName", Label: "First Name", Input: form.Text{}, Placeholder: "First Name", AutoComplete: "given-name"},
		{Name: "lastName", Label: "Last Name", Input: form.Text{}, Placeholder: "Last Name", AutoComplete: "family-name"},
	}
	PasswordFields = []form.Field{
		{Name: "oldPassword", Label: "Old Password", Input: form.Password{}, Placeholder: "Old Password", AutoComplete: "current-password"},
		{Name: "newPassword", Label: "Password", Input: form.Password{}, Placeholder: "Password", AutoComplete: "new-password", Description: schema.PasswordRuleMessage},
		{Name: "confirmPassword", Label: "Confirm Password", Input: form.Password{}, Placeholder: "Confirm Password", AutoComplete: "new-password"},
	}
	RolesFields = []form.Field{
		{Name: "roles", Label: "System roles", Input: form.RoleBox{}, Placeholder: "Select roles"},
	}
)

// DeleteAccountFields asks for the username, or the email when the account
// has none, plus the password.
func DeleteAccountFields(u apiclient.User) []form.Field {
	id := form.Field{
		Name: "username", Label: "Username", Input: form.Text{},
		Placeholder: "Username", AutoComplete: "username", Description: "Enter your username.",
	}
	if u.Username == "" {
		id = form.Field{
			Name: "email", Label: "Email", Input: form.Text{Type: "email"},
			Placeholder: "Email", AutoComplete: "email", Description: "Enter your email.",
		}
	}
	return []form.Field{id, {
		Name: "password", Label: "Your Password", Input: form.Password{},
		Placeholder: "Password", AutoComplete: "current-password", Description: "Enter your password.",
	}}
}

type EmailForm struct {
	Email string `json:"email" validate:"required,email"`
}

func (f EmailForm) Body() apiclient.UpdateProfileBody {
	return apiclient.UpdateProfileBody{Email: f.Email}
}

type UsernameForm struct {
	Username string `json:"username" validate:"required,min=5,max=50"`
}

func (f UsernameForm) Body() apiclient.UpdateProfileBody {
	return apiclient.UpdateProfileBody{Username: f.Username}
}

type InfoForm struct {
	FirstName string `json:"firstName" validate:"max=50"`
	LastName  string `json:"lastName" validate:"max=50"`
}

// Body always sends both names so they can be cleared.
func (f InfoForm) Body() apiclient.UpdateProfileBody {
	first, last := f.FirstName, f.LastName
	return apiclient.UpdateProfileBody{FirstName: &first, LastName: &last}
}

type PasswordForm struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=50,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func (f PasswordForm) Body() apiclient.UpdatePasswordBody {
	return apiclient.UpdatePasswordBody{OldPassword: f.OldPassword, NewPassword: f.NewPassword}
}

type RolesForm struct {
	Roles []string `json:"roles"`
}

// ParseMetadata decodes the metadata editor content. Anything but a JSON
// object is rejected.
func ParseMetadata(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return nil, &schema.ValidationError{Issues: []schema.FieldError{
			{Field: "metadata", Message: InvalidJSONMessage},
		}}
	}
	return out, nil
}

// FormatMetadata is the editor content for m.
func FormatMetadata(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CheckAvatar validates an upload by size and sniffed content type.
func CheckAvatar(size, limit int64, head []byte) error {
	if limit <= 0 {
		limit = MaxAvatarBytes
	}
	if size > limit {
		return &schema.ValidationError{Issues: []schema.FieldError{{
			Field:   "avatar",
			Message: fmt.Sprintf("File is too large (%s), the maximum is %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit))),
		}}}
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return &schema.ValidationError{Issues: []schema.FieldError{
			{Field: "avatar", Message: "Only images are accepted"},
		}}
	}
	return nil
}

// WithAvatar returns a copy of metadata with the avatar path set, or
// nulled when path is empty. The key is kept so the update is not omitted.
func WithAvatar(metadata map[string]any, path string) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if path == "" {
		out["avatar"] = nil
	} else {
		out["avatar"] = path
	}
	return out
}
