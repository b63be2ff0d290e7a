package resources

import (
	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/form"
)

var LoginFields = []form.Field{
	{Name: "username", Label: "Username", Input: form.Text{}, Placeholder: "Username", AutoComplete: "username", Description: "Your username."},
	{Name: "password", Label: "Password", Input: form.Password{}, Placeholder: "Password", AutoComplete: "current-password", Description: "Your password."},
}

var RegisterFields = []form.Field{
	{Name: "email", Label: "Email", Input: form.Text{Type: "email"}, Placeholder: "Email", AutoComplete: "email", Description: "Your email address."},
	{Name: "username", Label: "Username", Input: form.Text{}, Placeholder: "Username", AutoComplete: "username", Description: "Your username."},
	{Name: "password", Label: "Password", Input: form.Password{}, Placeholder: "Password", AutoComplete: "new-password", Description: "Your password."},
	{Name: "confirmPassword", Label: "Confirm Password", Input: form.Password{}, Placeholder: "Confirm Password", AutoComplete: "new-password", Description: "Confirm your password."},
}

// RegisterForm is the first-user form.
type RegisterForm struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,min=5,max=50"`
	Password        string `json:"password" validate:"required,min=8,max=50,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (f RegisterForm) Body() apiclient.RegisterBody {
	return apiclient.RegisterBody{Email: f.Email, Username: f.Username, Password: f.Password}
}
