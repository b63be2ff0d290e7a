package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=5,max=50"`
	Password string `json:"password" validate:"required,min=8,max=50,password"`
}

type roleBody struct {
	Name        string   `json:"name" validate:"required,slug"`
	DisplayName string   `json:"displayName" validate:"required"`
	Color       string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Tags        []string `json:"tags,omitempty"`
}

type pageLike struct {
	Size  int `json:"size"`
	Items []int
}

func (p pageLike) Check() error {
	if len(p.Items) > p.Size {
		return errors.New("too many items")
	}
	return nil
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(registerBody{Email: "nope", Username: "abc", Password: "password"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Invalid email", ve.Field("email"))
	assert.Equal(t, "String must contain at least 5 character(s)", ve.Field("username"))
	assert.Equal(t, PasswordRuleMessage, ve.Field("password"))
}

func TestValidateAcceptsValidBody(t *testing.T) {
	require.NoError(t, Validate(&registerBody{
		Email:    "groot@mail.com",
		Username: "groot",
		Password: "Iam-Gr00t!",
	}))
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("Abcdef1!"))
	assert.False(t, IsStrongPassword("abcdef1!"))
	assert.False(t, IsStrongPassword("ABCDEF1!"))
	assert.False(t, IsStrongPassword("Abcdefg!"))
	assert.False(t, IsStrongPassword("Abcdefg1"))
}

func TestSlugRule(t *testing.T) {
	require.NoError(t, Validate(roleBody{Name: "ops-team", DisplayName: "Ops"}))

	err := Validate(roleBody{Name: "Ops Team", DisplayName: "Ops"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, SlugRuleMessage, ve.Field("name"))
}

func TestDecodeFormValues(t *testing.T) {
	var out roleBody
	err := Decode(map[string]any{
		"name":        "ops",
		"displayName": "Operations",
		"color":       "#00ff00",
		"tags":        []string{"a", "b"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, roleBody{Name: "ops", DisplayName: "Operations", Color: "#00ff00", Tags: []string{"a", "b"}}, out)
}

func TestDecodeValidates(t *testing.T) {
	var out roleBody
	err := Decode(map[string]any{"name": "ops"}, &out)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Required", ve.Field("displayName"))
	assert.Contains(t, ve.Fields(), "displayName")
}

func TestCheckerRuns(t *testing.T) {
	err := Validate(pageLike{Size: 1, Items: []int{1, 2}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "too many items")

	require.NoError(t, Validate(pageLike{Size: 2, Items: []int{1, 2}}))
}
