package crud

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mad-auth/console/internal/apiclient"
)

func TestParseState(t *testing.T) {
	q := url.Values{"page": {"3"}, "limit": {"25"}, "search": {" ops "}, "sort": {"-name", "id"}}
	s := ParseState(q, "name", 10)
	assert.Equal(t, 3, s.Page)
	assert.Equal(t, 25, s.PageSize)
	assert.Equal(t, []apiclient.Filter{{ID: "name", Value: "ops"}}, s.Filters)
	assert.Equal(t, []apiclient.Sort{{ID: "name", Desc: true}, {ID: "id"}}, s.Sorting)
	assert.Equal(t, "ops", s.Search("name"))

	back := s.Values("name")
	assert.Equal(t, "3", back.Get("page"))
	assert.Equal(t, []string{"-name", "id"}, back["sort"])
}

func TestParseStateDefaults(t *testing.T) {
	s := ParseState(url.Values{"page": {"-1"}, "limit": {"1000"}}, "name", 10)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 10, s.PageSize)
	assert.Empty(t, s.Filters)
}

func TestToggled(t *testing.T) {
	s := State{}
	s = s.Toggled("name")
	assert.Equal(t, "asc", s.SortOf("name"))
	s = s.Toggled("name")
	assert.Equal(t, "desc", s.SortOf("name"))
	s = s.Toggled("name")
	assert.Empty(t, s.Sorting)
}

func TestTableStateTravelsInContext(t *testing.T) {
	assert.Nil(t, TableState(context.Background()))

	state := ParseState(url.Values{"search": {"ops"}, "sort": {"-name"}}, "name", 10).Values("name")
	ctx := WithTableState(context.Background(), state)
	assert.Equal(t, "limit=10&search=ops&sort=-name", TableState(ctx).Encode())
}
