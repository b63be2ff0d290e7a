package apiclient

import (
	"time"

	"github.com/mad-auth/console/internal/session"
)

// Role is a named permission set.
type Role struct {
	ID          int    `json:"id" validate:"gte=1"`
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// User is a directory account as returned by the backend.
type User struct {
	ID        int            `json:"id" validate:"gte=1"`
	Email     string         `json:"email"`
	Username  string         `json:"username"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Roles     []Role         `json:"roles,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// RoleNames lists the names of the user's roles.
func (u User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

// ServiceAccount authenticates a backend application. Token is only
// present in create and reset responses.
type ServiceAccount struct {
	ID          int    `json:"id" validate:"gte=1"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Token       string `json:"token,omitempty"`
}

// Project groups users and service accounts.
type Project struct {
	ID          int    `json:"id" validate:"gte=1"`
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Software is an OS or browser name/version pair parsed from a user agent.
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DeviceToken is one refresh token issued to the current user.
type DeviceToken struct {
	ID          int        `json:"id" validate:"gte=1"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedByIP string     `json:"createdByIp"`
	OS          Software   `json:"os"`
	Browser     Software   `json:"browser"`
}

// Bodies.

type InitializedResponse struct {
	Initialized bool `json:"initialized"`
}

type LoginBody struct {
	Username string `json:"username" validate:"required,min=5,max=50"`
	Password string `json:"password" validate:"required,min=8,max=50"`
}

type RegisterBody struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=5,max=50"`
	Password string `json:"password" validate:"required,min=8,max=50,password"`
}

// TokensResponse is returned by login, registration, refresh and password
// change.
type TokensResponse struct {
	Tokens session.Tokens `json:"tokens"`
}

type UploadResponse struct {
	File struct {
		Path string `json:"path" validate:"required"`
	} `json:"file"`
}

type UpdateProfileBody struct {
	Email     string  `json:"email,omitempty" validate:"omitempty,email"`
	Username  string  `json:"username,omitempty" validate:"omitempty,min=5,max=50"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=50"`
}

type UpdatePasswordBody struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=50,password"`
}

type CreateUserBody struct {
	Email     string   `json:"email" validate:"required,email"`
	Username  string   `json:"username" validate:"required,min=5,max=50"`
	FirstName string   `json:"firstName,omitempty" validate:"max=50"`
	LastName  string   `json:"lastName,omitempty" validate:"max=50"`
	Roles     []string `json:"roles,omitempty"`
}

type UpdateUserBody struct {
	Email     string   `json:"email,omitempty" validate:"omitempty,email"`
	Username  string   `json:"username,omitempty" validate:"omitempty,min=5,max=50"`
	FirstName *string  `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName  *string  `json:"lastName,omitempty" validate:"omitempty,max=50"`
	Roles     []string `json:"roles,omitempty"`
}

// UserMetadataBody always sends the object so it can be emptied.
type UserMetadataBody struct {
	Metadata map[string]any `json:"metadata"`
}

// UserRolesBody always sends the list so it can be emptied.
type UserRolesBody struct {
	Roles []string `json:"roles"`
}

// DeleteUserBody confirms an account deletion with at least one credential,
// unless Force is set by an administrator.
type DeleteUserBody struct {
	Username string `json:"username,omitempty" validate:"required_without_all=Email Password Force"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

type CreateRoleBody struct {
	Name        string `json:"name" validate:"required,min=1,max=50,slug"`
	DisplayName string `json:"displayName" validate:"required,max=50"`
	Description string `json:"description,omitempty" validate:"max=255"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// UpdateRoleBody is the full edit form; cleared fields are sent empty.
type UpdateRoleBody struct {
	Name        string `json:"name" validate:"required,max=50,slug"`
	DisplayName string `json:"displayName" validate:"max=50"`
	Description string `json:"description" validate:"max=255"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

type CreateServiceAccountBody struct {
	Name        string `json:"name" validate:"required,min=1,max=50"`
	Description string `json:"description,omitempty" validate:"max=255"`
}

// UpdateServiceAccountBody is the full edit form; cleared fields are sent
// empty.
type UpdateServiceAccountBody struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type CreateProjectBody struct {
	Name        string `json:"name" validate:"required,min=1,max=50,slug"`
	DisplayName string `json:"displayName,omitempty" validate:"max=50"`
	Description string `json:"description,omitempty" validate:"max=255"`
	Color       string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// UpdateProjectBody is the full edit form; cleared fields are sent empty.
type UpdateProjectBody struct {
	Name        string `json:"name" validate:"required,max=50,slug"`
	DisplayName string `json:"displayName" validate:"max=50"`
	Description string `json:"description" validate:"max=255"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (r Role) RowID() int           { return r.ID }
func (u User) RowID() int           { return u.ID }
func (s ServiceAccount) RowID() int { return s.ID }
func (p Project) RowID() int        { return p.ID }
func (d DeviceToken) RowID() int    { return d.ID }
