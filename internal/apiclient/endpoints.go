package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mad-auth/console/internal/session"
)

// Auth.

// Initialized reports whether the backend already has its first user.
func (c *Client) Initialized(ctx context.Context) (bool, error) {
	var out InitializedResponse
	err := c.Do(ctx, Request{Path: "/auth/initialized", NoRefresh: true}, &out)
	return out.Initialized, err
}

// RegisterFirstUser creates the initial administrator and stores the
// issued tokens.
func (c *Client) RegisterFirstUser(ctx context.Context, body RegisterBody) (session.Tokens, error) {
	return c.issueTokens(ctx, Request{Method: http.MethodPost, Path: "/auth/register/init", Body: body, NoRefresh: true})
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, body LoginBody) (session.Tokens, error) {
	return c.issueTokens(ctx, Request{Method: http.MethodPost, Path: LoginPath, Body: body, NoRefresh: true})
}

// Logout forgets the session tokens.
func (c *Client) Logout() {
	c.sess.RemoveTokens()
}

func (c *Client) issueTokens(ctx context.Context, req Request) (session.Tokens, error) {
	var out TokensResponse
	if err := c.Do(ctx, req, &out); err != nil {
		return session.Tokens{}, err
	}
	c.sess.SetTokens(out.Tokens)
	return out.Tokens, nil
}

// Profile.

func (c *Client) Profile(ctx context.Context) (User, error) {
	var out User
	err := c.Do(ctx, Request{Path: "/auth/profile"}, &out)
	return out, err
}

// UploadFile sends content as the multipart "file" part.
func (c *Client) UploadFile(ctx context.Context, fileName string, content io.Reader) (UploadResponse, error) {
	var out UploadResponse
	err := c.Do(ctx, Request{
		Method:        http.MethodPost,
		Path:          "/uploads/upload",
		Upload:        &Upload{Field: "file", FileName: fileName, Content: content},
		NoContentType: true,
	}, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, id int, body UpdateProfileBody) (User, error) {
	var out User
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/users/%d", id), Body: body}, &out)
	return out, err
}

// UpdatePassword changes the password; the backend rotates the tokens.
func (c *Client) UpdatePassword(ctx context.Context, id int, body UpdatePasswordBody) (session.Tokens, error) {
	return c.issueTokens(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/users/%d/password", id), Body: body})
}

func (c *Client) ListTokens(ctx context.Context, q Query) (Page[DeviceToken], error) {
	var out Page[DeviceToken]
	err := c.Do(ctx, Request{Path: "/auth/tokens", Query: q.Values()}, &out)
	return out, err
}

// RevokeToken skips the proactive refresh: refreshing would mint the very
// token being revoked again.
func (c *Client) RevokeToken(ctx context.Context, id int) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: fmt.Sprintf("/auth/tokens/%d", id), NoRefresh: true}, nil)
}

// Roles.

func (c *Client) ListRoles(ctx context.Context, q Query) (Page[Role], error) {
	var out Page[Role]
	err := c.Do(ctx, Request{Path: "/roles", Query: q.Values()}, &out)
	return out, err
}

// ListAllRoles returns every role without pagination.
func (c *Client) ListAllRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	if err := c.Do(ctx, Request{Path: "/roles/no-pagination"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRole(ctx context.Context, body CreateRoleBody) (Role, error) {
	var out Role
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/roles", Body: body}, &out)
	return out, err
}

func (c *Client) UpdateRole(ctx context.Context, id int, body UpdateRoleBody) (Role, error) {
	var out Role
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/roles/%d", id), Body: body}, &out)
	return out, err
}

func (c *Client) DeleteRole(ctx context.Context, id int) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: fmt.Sprintf("/roles/%d", id)}, nil)
}

// Users.

func (c *Client) ListUsers(ctx context.Context, q Query) (Page[User], error) {
	var out Page[User]
	err := c.Do(ctx, Request{Path: "/users", Query: q.Values()}, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, id int) (User, error) {
	var out User
	err := c.Do(ctx, Request{Path: fmt.Sprintf("/users/%d", id)}, &out)
	return out, err
}

func (c *Client) GetUserRoles(ctx context.Context, id int, q Query) (Page[Role], error) {
	var out Page[Role]
	err := c.Do(ctx, Request{Path: fmt.Sprintf("/users/%d/roles", id), Query: q.Values()}, &out)
	return out, err
}

// CreateUser registers a user on behalf of the operator.
func (c *Client) CreateUser(ctx context.Context, body CreateUserBody) (User, error) {
	var out User
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/register", Body: body}, &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, id int, body UpdateUserBody) (User, error) {
	var out User
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/users/%d", id), Body: body}, &out)
	return out, err
}

// SetUserMetadata replaces the metadata of a user. A nil map clears it.
func (c *Client) SetUserMetadata(ctx context.Context, id int, metadata map[string]any) (User, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var out User
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/users/%d", id), Body: UserMetadataBody{Metadata: metadata}}, &out)
	return out, err
}

// SetUserRoles replaces the roles of a user. An empty list clears them.
func (c *Client) SetUserRoles(ctx context.Context, id int, roles []string) (User, error) {
	if roles == nil {
		roles = []string{}
	}
	var out User
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/users/%d", id), Body: UserRolesBody{Roles: roles}}, &out)
	return out, err
}

// DeleteUser deletes an account; body carries the confirmation.
func (c *Client) DeleteUser(ctx context.Context, id int, body DeleteUserBody) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: fmt.Sprintf("/users/%d", id), Body: body}, nil)
}

// Service accounts.

func (c *Client) ListServiceAccounts(ctx context.Context, q Query) (Page[ServiceAccount], error) {
	var out Page[ServiceAccount]
	err := c.Do(ctx, Request{Path: "/service-accounts", Query: q.Values()}, &out)
	return out, err
}

func (c *Client) GetServiceAccount(ctx context.Context, id int) (ServiceAccount, error) {
	var out ServiceAccount
	err := c.Do(ctx, Request{Path: fmt.Sprintf("/service-accounts/%d", id)}, &out)
	return out, err
}

// CreateServiceAccount returns the account with its token; the token is not
// retrievable later.
func (c *Client) CreateServiceAccount(ctx context.Context, body CreateServiceAccountBody) (ServiceAccount, error) {
	var out ServiceAccount
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/service-accounts", Body: body}, &out)
	return out, err
}

func (c *Client) UpdateServiceAccount(ctx context.Context, id int, body UpdateServiceAccountBody) (ServiceAccount, error) {
	var out ServiceAccount
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/service-accounts/%d", id), Body: body}, &out)
	return out, err
}

func (c *Client) DeleteServiceAccount(ctx context.Context, id int) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: fmt.Sprintf("/service-accounts/%d", id)}, nil)
}

// ResetServiceAccountToken issues a new token and invalidates the old one.
func (c *Client) ResetServiceAccountToken(ctx context.Context, id int) (ServiceAccount, error) {
	var out ServiceAccount
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/service-accounts/%d/token", id)}, &out)
	return out, err
}

// Projects.

func (c *Client) ListProjects(ctx context.Context, q Query) (Page[Project], error) {
	var out Page[Project]
	err := c.Do(ctx, Request{Path: "/projects", Query: q.Values()}, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, body CreateProjectBody) (Project, error) {
	var out Project
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/projects", Body: body}, &out)
	return out, err
}

func (c *Client) UpdateProject(ctx context.Context, id int, body UpdateProjectBody) (Project, error) {
	var out Project
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: fmt.Sprintf("/projects/%d", id), Body: body}, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id int) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: fmt.Sprintf("/projects/%d", id)}, nil)
}
