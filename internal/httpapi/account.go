package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/audit"
	"github.com/mad-auth/console/internal/crud"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/guard"
	"github.com/mad-auth/console/internal/resources"
	"github.com/mad-auth/console/internal/schema"
	"github.com/mad-auth/console/internal/view"
)

// account is the target of the account forms: the signed-in user on
// /profile, any user on /users/{id}.
type account struct {
	self   bool
	user   apiclient.User
	update func(ctx context.Context, body apiclient.UpdateProfileBody) (apiclient.User, error)
	// setMetadata replaces the whole metadata object, so an empty one is
	// still sent.
	setMetadata func(ctx context.Context, m map[string]any) (apiclient.User, error)
}

// outcome is what an account form submission leaves to render.
type outcome struct {
	user   apiclient.User
	notes  []crud.Notification
	forms  map[string]view.FormProps
	status int
	// done means a response was already written.
	done bool
}

func (o *outcome) fail(name string, values map[string]any, err error, message string) {
	o.status = statusOf(err)
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		o.forms[name] = view.FormProps{Values: withoutSecrets(values), Errors: ve.Fields()}
		return
	}
	if message == "" {
		message = apiclient.Message(err)
	}
	o.forms[name] = view.FormProps{Values: withoutSecrets(values)}
	o.notes = append(o.notes, crud.Failure(message))
}

func (o *outcome) succeed(u apiclient.User, message string) {
	if u.ID > 0 {
		o.user = u
	}
	o.notes = append(o.notes, crud.Success(message))
}

func withoutSecrets(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch k {
		case "password", "oldPassword", "newPassword", "confirmPassword":
			continue
		}
		out[k] = v
	}
	return out
}

// parseAccountForm reads urlencoded and multipart submissions alike.
func (a *API) parseAccountForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		return parseForm(r)
	}
	if err := r.ParseMultipartForm(a.maxUpload()); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &schema.ValidationError{Issues: []schema.FieldError{{
				Field:   "avatar",
				Message: fmt.Sprintf("File is too large, the maximum is %s", humanize.IBytes(uint64(a.maxUpload()))),
			}}}
		}
		return parseForm(r)
	}
	return nil
}

// submitAccount applies the posted account form to acc.
func (a *API) submitAccount(c *call, acc account) outcome {
	o := outcome{user: acc.user, forms: map[string]view.FormProps{}, status: http.StatusOK}
	ctx := c.r.Context()
	r := c.r

	if err := a.parseAccountForm(r); err != nil {
		name := view.FormAvatar
		if r.PostForm != nil && r.PostForm.Get("form") != "" {
			name = r.PostForm.Get("form")
		}
		o.fail(name, nil, err, "")
		return o
	}

	name := r.PostForm.Get("form")
	switch name {
	case view.FormInfo:
		values := form.Values(r.PostForm, resources.InfoFields)
		var f resources.InfoForm
		o.apply(c, name, values, &f, func() (apiclient.User, error) { return acc.update(ctx, f.Body()) }, resources.ProfileUpdated)

	case view.FormEmail:
		values := form.Values(r.PostForm, resources.EmailFields)
		var f resources.EmailForm
		o.apply(c, name, values, &f, func() (apiclient.User, error) { return acc.update(ctx, f.Body()) }, resources.EmailUpdated)

	case view.FormUsername:
		values := form.Values(r.PostForm, resources.UsernameFields)
		var f resources.UsernameForm
		o.apply(c, name, values, &f, func() (apiclient.User, error) { return acc.update(ctx, f.Body()) }, resources.UsernameUpdated)

	case view.FormPassword:
		if !acc.self {
			http.NotFound(c.w, r)
			o.done = true
			break
		}
		values := form.Values(r.PostForm, resources.PasswordFields)
		var f resources.PasswordForm
		o.apply(c, name, values, &f, func() (apiclient.User, error) {
			// the session cookies are rewritten with the rotated pair
			_, err := c.client.UpdatePassword(ctx, acc.user.ID, f.Body())
			return apiclient.User{}, err
		}, resources.PasswordUpdated)

	case view.FormRoles:
		if acc.self {
			http.NotFound(c.w, r)
			o.done = true
			break
		}
		values := form.Values(r.PostForm, resources.RolesFields)
		var f resources.RolesForm
		o.apply(c, name, values, &f, func() (apiclient.User, error) {
			return c.client.SetUserRoles(ctx, acc.user.ID, f.Roles)
		}, resources.RolesUpdated)

	case view.FormAvatar:
		a.uploadAvatar(c, acc, &o)

	case view.FormAvatarRemove:
		u, err := acc.setMetadata(ctx, resources.WithAvatar(acc.user.Metadata, ""))
		if c.redirected(err) {
			o.done = true
			break
		}
		if err != nil {
			o.fail(view.FormAvatar, nil, err, "")
			break
		}
		o.succeed(u, resources.ProfileUpdated)

	case view.FormDelete:
		a.deleteAccount(c, acc, &o)

	default:
		o.status = http.StatusBadRequest
		o.notes = append(o.notes, crud.Failure(apiclient.UnknownErrorMessage))
	}
	if !o.done && o.status == http.StatusOK {
		a.auditAccount(ctx, acc, name)
	}
	return o
}

// apply decodes values into f, validates it and runs op.
func (o *outcome) apply(c *call, name string, values map[string]any, f any, op func() (apiclient.User, error), success string) {
	if err := schema.Decode(values, f); err != nil {
		o.fail(name, values, err, "")
		return
	}
	u, err := op()
	if c.redirected(err) {
		o.done = true
		return
	}
	if err != nil {
		o.fail(name, values, err, "")
		return
	}
	o.succeed(u, success)
}

func (a *API) uploadAvatar(c *call, acc account, o *outcome) {
	ctx := c.r.Context()
	file, header, err := c.r.FormFile("avatar")
	if err != nil {
		o.fail(view.FormAvatar, nil, &schema.ValidationError{Issues: []schema.FieldError{
			{Field: "avatar", Message: "Select an image to upload"},
		}}, "")
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if err := resources.CheckAvatar(header.Size, a.maxUpload(), head[:n]); err != nil {
		o.fail(view.FormAvatar, nil, err, "")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		o.fail(view.FormAvatar, nil, err, resources.AvatarUploadError)
		return
	}

	up, err := c.client.UploadFile(ctx, header.Filename, file)
	if c.redirected(err) {
		o.done = true
		return
	}
	if err != nil {
		o.fail(view.FormAvatar, nil, err, resources.AvatarUploadError)
		return
	}
	u, err := acc.setMetadata(ctx, resources.WithAvatar(acc.user.Metadata, up.File.Path))
	if c.redirected(err) {
		o.done = true
		return
	}
	if err != nil {
		o.fail(view.FormAvatar, nil, err, resources.AvatarUploadError)
		return
	}
	o.succeed(u, resources.ProfileUpdated)
}

// deleteAccount deletes the signed-in user after confirmation, or any user
// by force. Either way the page is gone afterwards.
func (a *API) deleteAccount(c *call, acc account, o *outcome) {
	ctx := c.r.Context()
	body := apiclient.DeleteUserBody{Force: !acc.self}
	var values map[string]any
	if acc.self {
		values = form.Values(c.r.PostForm, resources.DeleteAccountFields(acc.user))
		if err := schema.Decode(values, &body); err != nil {
			o.fail(view.FormDelete, values, err, "")
			return
		}
	}
	err := c.client.DeleteUser(ctx, acc.user.ID, body)
	if c.redirected(err) {
		o.done = true
		return
	}
	if err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			o.fail(view.FormDelete, values, err, "")
			return
		}
		o.fail(view.FormDelete, values, err, resources.AccountDeleteError)
		return
	}
	a.auditAccount(ctx, acc, view.FormDelete)
	o.done = true
	if acc.self {
		c.client.Logout()
		http.Redirect(c.w, c.r, apiclient.LoginRoute, http.StatusSeeOther)
		return
	}
	http.Redirect(c.w, c.r, guard.HomeRoute, http.StatusSeeOther)
}

func (a *API) auditAccount(ctx context.Context, acc account, formName string) {
	scope := "users"
	if acc.self {
		scope = "profile"
	}
	if err := audit.LogEvent(ctx, scope+"."+formName, map[string]any{"id": acc.user.ID}); err != nil {
		a.log.Warn("audit event", zap.Error(err))
	}
}
