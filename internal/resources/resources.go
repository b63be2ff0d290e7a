// Package resources declares the CRUD tables of the console: users, roles,
// service accounts and projects.
package resources

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/form"
)

const DefaultPageSize = 10

// Routes of the resource tables.
const (
	UsersRoute           = "/users"
	RolesRoute           = "/roles"
	ServiceAccountsRoute = "/service-accounts"
	ProjectsRoute        = "/projects"
)

// RoleOptions loads every role as RoleBox options.
func RoleOptions(c *apiclient.Client) form.OptionsLoader {
	return form.OptionsLoaderFunc(func(ctx context.Context) ([]form.Option, error) {
		roles, err := c.ListAllRoles(ctx)
		if err != nil {
			return nil, err
		}
		opts := make([]form.Option, 0, len(roles))
		for _, r := range roles {
			label := r.DisplayName
			if label == "" {
				label = r.Name
			}
			opts = append(opts, form.Option{Value: r.Name, Label: label, Color: r.Color})
		}
		return opts, nil
	})
}

type (
	UsersConfig           = crud.Config[apiclient.User, apiclient.CreateUserBody, apiclient.UpdateUserBody]
	RolesConfig           = crud.Config[apiclient.Role, apiclient.CreateRoleBody, apiclient.UpdateRoleBody]
	ServiceAccountsConfig = crud.Config[apiclient.ServiceAccount, apiclient.CreateServiceAccountBody, apiclient.UpdateServiceAccountBody]
	ProjectsConfig        = crud.Config[apiclient.Project, apiclient.CreateProjectBody, apiclient.UpdateProjectBody]
)

// Users has no table-level update or delete; accounts are edited on their
// own page.
func Users(c *apiclient.Client) UsersConfig {
	return UsersConfig{
		Resource:  "users",
		Columns:   userColumns,
		ListRows:  c.ListUsers,
		CreateRow: c.CreateUser,
		Messages: crud.Messages{
			CreateSuccess: "User created successfully",
			CreateError:   "Failed to create user",
			UpdateSuccess: "User updated successfully",
			UpdateError:   "Failed to update user",
			DeleteSuccess: "User deleted successfully",
			DeleteError:   "Failed to delete user",
		},
		DefaultPageSize:        DefaultPageSize,
		SearchColumn:           "email",
		SearchPlaceholder:      "Search users by email",
		CreateButtonText:       "Create user",
		CreateModalTitle:       "Create user",
		CreateModalDescription: "The best way to create a new user is by using service account.",
		UpdateModalTitle: func(u apiclient.User) string {
			switch {
			case u.Email != "":
				return "Edit user " + u.Email
			case u.Username != "":
				return "Edit user " + u.Username
			default:
				return "Edit user " + u.FirstName + " " + u.LastName
			}
		},
	}
}

func userColumns(a crud.Actions) []crud.Column[apiclient.User] {
	return []crud.Column[apiclient.User]{
		{AccessorKey: "id", Header: "Id"},
		{
			AccessorKey: "email", Header: "Email", Sortable: true,
			Field: form.Field{
				Name: "email", Label: "Email", Input: form.Text{Type: "email"},
				Placeholder: "e.g. test@mail.com", AutoComplete: "email",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "username", Header: "Username", Sortable: true,
			Field: form.Field{
				Name: "username", Label: "Username", Input: form.Text{},
				Placeholder: "e.g. groot", AutoComplete: "username",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "firstName", Header: "First Name", Sortable: true,
			Field: form.Field{
				Name: "firstName", Label: "First Name", Input: form.Text{},
				Placeholder: "e.g. Star", AutoComplete: "given-name",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "lastName", Header: "Last Name", Sortable: true,
			Field: form.Field{
				Name: "lastName", Label: "Last Name", Input: form.Text{},
				Placeholder: "e.g. Lord", AutoComplete: "family-name",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "activeRoles", Header: "Active Roles",
			Value: func(u apiclient.User) string { return strings.Join(u.RoleNames(), ", ") },
		},
		{
			AccessorKey: "roles",
			ForceHidden: true,
			Field:       form.Field{Name: "roles", Label: "Roles", Input: form.RoleBox{}, Placeholder: "Select roles"},
			FormValue:   func(u apiclient.User) any { return u.RoleNames() },
			Create:      &crud.Defaults{Default: []string{}},
		},
		{
			AccessorKey: "actions",
			Cell: func(u apiclient.User) templ.Component {
				return actionMenu(
					action{label: "Copy email", copy: u.Email},
					action{label: "Copy username", copy: u.Username},
					action{label: "View user", href: a.ViewURL(u.ID)},
				)
			},
		},
	}
}

// normalizeColor maps a missing color onto "".
func normalizeColor(c string) string {
	if strings.EqualFold(c, "null") {
		return ""
	}
	return c
}

func Roles(c *apiclient.Client) RolesConfig {
	return RolesConfig{
		Resource:  "roles",
		Columns:   roleColumns,
		ListRows:  c.ListRoles,
		CreateRow: c.CreateRole,
		UpdateRow: c.UpdateRole,
		DeleteRow: c.DeleteRole,
		Messages: crud.Messages{
			CreateSuccess: "Role created successfully",
			CreateError:   "Failed to create role",
			UpdateSuccess: "Role updated successfully",
			UpdateError:   "Failed to update role",
			DeleteSuccess: "Role deleted successfully",
			DeleteError:   "Failed to delete role",
		},
		DefaultPageSize:        DefaultPageSize,
		SearchColumn:           "name",
		SearchPlaceholder:      "Search roles by name",
		CreateButtonText:       "Create role",
		CreateModalTitle:       "Create role",
		CreateModalDescription: "Create a new row to help you manage users in your organization.",
		UpdateModalTitle:       func(r apiclient.Role) string { return "Edit role " + r.Name },
		OnRowsFetched: func(p apiclient.Page[apiclient.Role]) apiclient.Page[apiclient.Role] {
			for i := range p.Data {
				p.Data[i].Color = normalizeColor(p.Data[i].Color)
			}
			return p
		},
	}
}

func roleColumns(a crud.Actions) []crud.Column[apiclient.Role] {
	return []crud.Column[apiclient.Role]{
		{AccessorKey: "id", Header: "Id"},
		{
			AccessorKey: "name", Header: "Unique Name", Sortable: true,
			Field: form.Field{
				Name: "name", Label: "Unique Name", Input: form.Text{},
				Placeholder: "e.g. admin", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "displayName", Header: "Display Name", Sortable: true,
			Field: form.Field{
				Name: "displayName", Label: "Display Name", Input: form.Text{},
				Placeholder: "e.g. Administrator", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "description", Header: "Description",
			Field: form.Field{
				Name: "description", Label: "Description", Input: form.Text{},
				Placeholder: "e.g. Full access to the directory", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		colorColumn[apiclient.Role](),
		{
			AccessorKey: "actions",
			Cell: func(r apiclient.Role) templ.Component {
				return actionMenu(
					action{label: "Copy unique name", copy: r.Name},
					action{label: "Edit", href: a.EditURL(r.ID), table: true},
					action{label: "Delete", post: a.DeleteURL(r.ID), confirm: "Delete role " + r.Name + "?"},
				)
			},
		},
	}
}

func colorColumn[R crud.Row]() crud.Column[R] {
	return crud.Column[R]{
		AccessorKey: "color", Header: "Color",
		Field: form.Field{
			Name: "color", Label: "Color", Input: form.Color{},
			Placeholder: "e.g. #000000",
		},
		Create: &crud.Defaults{Default: "#000000"},
		Update: &crud.Defaults{Default: "#000000"},
	}
}

// TokenNotification shows a freshly issued service account token. It stays
// up until dismissed: the token cannot be read again.
func TokenNotification(description, token string) crud.Notification {
	n := crud.Success(description)
	n.Title = "Service account token"
	n.Description = description + ": " + token
	n.Duration = 0
	return n
}

func ServiceAccounts(c *apiclient.Client) ServiceAccountsConfig {
	return ServiceAccountsConfig{
		Resource:  "service-accounts",
		Columns:   serviceAccountColumns,
		ListRows:  c.ListServiceAccounts,
		CreateRow: c.CreateServiceAccount,
		UpdateRow: c.UpdateServiceAccount,
		DeleteRow: c.DeleteServiceAccount,
		Messages: crud.Messages{
			CreateSuccess: "Service account created successfully",
			CreateError:   "Failed to create service account",
			UpdateSuccess: "Service account updated successfully",
			UpdateError:   "Failed to update service account",
			DeleteSuccess: "Service account deleted successfully",
			DeleteError:   "Failed to delete service account",
		},
		DefaultPageSize:        DefaultPageSize,
		SearchColumn:           "name",
		SearchPlaceholder:      "Search by name",
		CreateButtonText:       "Create service account",
		CreateModalTitle:       "Create service account",
		CreateModalDescription: "Service accounts are used to authenticate your backends applications to the API.",
		UpdateModalTitle:       func(s apiclient.ServiceAccount) string { return "Edit " + s.Name },
		OnRowCreated: func(_ context.Context, s apiclient.ServiceAccount) *crud.Notification {
			if s.Token == "" {
				return nil
			}
			n := TokenNotification("Copy the token now, it will not be shown again", s.Token)
			return &n
		},
	}
}

// ResetTokenURL is the POST endpoint of the reset token action.
func ResetTokenURL(a crud.Actions, id int) string {
	return a.UpdateURL(id) + "/token"
}

func serviceAccountColumns(a crud.Actions) []crud.Column[apiclient.ServiceAccount] {
	return []crud.Column[apiclient.ServiceAccount]{
		{AccessorKey: "id", Header: "Id"},
		{
			AccessorKey: "name", Header: "Name", Sortable: true,
			Field: form.Field{
				Name: "name", Label: "Name", Input: form.Text{},
				Placeholder: "e.g. boilerplate-backend", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "description", Header: "Description", Sortable: true,
			Field: form.Field{
				Name: "description", Label: "Description", Input: form.Text{},
				Placeholder: "e.g. Boilerplate backend service account", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "actions",
			Cell: func(s apiclient.ServiceAccount) templ.Component {
				return actionMenu(
					action{label: "Copy name", copy: s.Name},
					action{label: "Edit", href: a.EditURL(s.ID), table: true},
					action{label: "Reset token", post: ResetTokenURL(a, s.ID), confirm: "Reset the token of " + s.Name + "? The current token stops working."},
					action{label: "Delete", post: a.DeleteURL(s.ID), confirm: "Delete service account " + s.Name + "?"},
				)
			},
		},
	}
}

func Projects(c *apiclient.Client) ProjectsConfig {
	return ProjectsConfig{
		Resource:  "projects",
		Columns:   projectColumns,
		ListRows:  c.ListProjects,
		CreateRow: c.CreateProject,
		UpdateRow: c.UpdateProject,
		DeleteRow: c.DeleteProject,
		Messages: crud.Messages{
			CreateSuccess: "Project created successfully",
			CreateError:   "Failed to create project",
			UpdateSuccess: "Project updated successfully",
			UpdateError:   "Failed to update project",
			DeleteSuccess: "Project deleted successfully",
			DeleteError:   "Failed to delete project",
		},
		DefaultPageSize:        DefaultPageSize,
		SearchColumn:           "name",
		SearchPlaceholder:      "Search projects by name",
		CreateButtonText:       "Create project",
		CreateModalTitle:       "Create project",
		CreateModalDescription: "Dispatch your users through projects and manage them with service accounts.",
		UpdateModalTitle:       func(p apiclient.Project) string { return "Edit project " + p.Name },
		OnRowsFetched: func(p apiclient.Page[apiclient.Project]) apiclient.Page[apiclient.Project] {
			for i := range p.Data {
				p.Data[i].Color = normalizeColor(p.Data[i].Color)
			}
			return p
		},
	}
}

func projectColumns(a crud.Actions) []crud.Column[apiclient.Project] {
	return []crud.Column[apiclient.Project]{
		{AccessorKey: "id", Header: "Id"},
		{
			AccessorKey: "name", Header: "Unique Name", Sortable: true,
			Field: form.Field{
				Name: "name", Label: "Unique Name", Input: form.Text{},
				Placeholder: "e.g. admin", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "displayName", Header: "Display Name", Sortable: true,
			Field: form.Field{
				Name: "displayName", Label: "Display Name", Input: form.Text{},
				Placeholder: "e.g. Back office", AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		{
			AccessorKey: "description", Header: "Description",
			Field: form.Field{
				Name: "description", Label: "Description", Input: form.Text{},
				AutoComplete: "off",
			},
			Create: &crud.Defaults{Default: ""},
		},
		colorColumn[apiclient.Project](),
		{
			AccessorKey: "actions",
			Cell: func(p apiclient.Project) templ.Component {
				return actionMenu(
					action{label: "Copy unique name", copy: p.Name},
					action{label: "Edit", href: a.EditURL(p.ID), table: true},
					action{label: "Delete", post: a.DeleteURL(p.ID), confirm: "Delete project " + p.Name + "?"},
				)
			},
		},
	}
}
