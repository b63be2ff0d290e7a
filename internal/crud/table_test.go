package crud

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/schema"
)

type item struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (i item) RowID() int { return i.ID }

type createItem struct {
	Name  string `json:"name" validate:"required,slug"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type updateItem struct {
	Name  string `json:"name,omitempty" validate:"omitempty,slug"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// fakeBackend is an in-memory resource counting list calls.
type fakeBackend struct {
	mu      sync.Mutex
	items   []item
	nextID  int
	lists   atomic.Int32
	creates atomic.Int32
	updates atomic.Int32
	lastQ   apiclient.Query
	failOn  string
}

func (b *fakeBackend) list(_ context.Context, q apiclient.Query) (apiclient.Page[item], error) {
	b.lists.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastQ = q
	if b.failOn == "list" {
		return apiclient.Page[item]{}, &apiclient.Error{Status: 500, Message: "list exploded"}
	}
	data := append([]item(nil), b.items...)
	return apiclient.Page[item]{
		Meta: apiclient.Meta{ItemsPerPage: q.Limit, TotalItems: len(data), CurrentPage: 1, TotalPages: 1},
		Data: data,
	}, nil
}

func (b *fakeBackend) create(_ context.Context, body createItem) (item, error) {
	b.creates.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failOn == "create" {
		return item{}, &apiclient.Error{Status: 409, Message: "Role already exists"}
	}
	if b.failOn == "create-transport" {
		return item{}, errors.New("dial tcp: connection refused")
	}
	b.nextID++
	it := item{ID: b.nextID, Name: body.Name, Color: body.Color}
	b.items = append(b.items, it)
	return it, nil
}

func (b *fakeBackend) update(_ context.Context, id int, body updateItem) (item, error) {
	b.updates.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id {
			if body.Name != "" {
				b.items[i].Name = body.Name
			}
			if body.Color != "" {
				b.items[i].Color = body.Color
			}
			return b.items[i], nil
		}
	}
	return item{}, &apiclient.Error{Status: 404, Message: "Not found"}
}

func (b *fakeBackend) delete(_ context.Context, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return nil
		}
	}
	return &apiclient.Error{Status: 404, Message: "Not found"}
}

func newTable(b *fakeBackend) *Table[item, createItem, updateItem] {
	cfg := Config[item, createItem, updateItem]{
		Resource:  "items",
		ListRows:  b.list,
		CreateRow: b.create,
		UpdateRow: b.update,
		DeleteRow: b.delete,
		Columns: func(a Actions) []Column[item] {
			return []Column[item]{
				{AccessorKey: "id", Header: "Id"},
				{
					AccessorKey: "name", Header: "Name", Sortable: true,
					Field:  form.Field{Name: "name", Label: "Name", Input: form.Text{}},
					Create: &Defaults{Default: ""},
				},
				{
					AccessorKey: "color", Header: "Color",
					Field:  form.Field{Name: "color", Label: "Color", Input: form.Color{}},
					Create: &Defaults{Default: "#000000"},
					Update: &Defaults{Default: "#000000"},
				},
				{AccessorKey: "secret", ForceHidden: true},
			}
		},
		Messages: Messages{
			CreateSuccess: "Role created successfully",
			CreateError:   "Failed to create role",
			UpdateSuccess: "Role updated successfully",
			UpdateError:   "Failed to update role",
			DeleteSuccess: "Role deleted successfully",
			DeleteError:   "Failed to delete role",
		},
		DefaultPageSize:  10,
		SearchColumn:     "name",
		CreateModalTitle: "Create role",
		UpdateModalTitle: func(r item) string { return "Edit role " + r.Name },
	}
	return New(cfg, "/items", WithSearchDebounce(20*time.Millisecond))
}

func TestCreateScenario(t *testing.T) {
	b := &fakeBackend{}
	tbl := newTable(b)
	ctx := context.Background()
	require.NoError(t, tbl.Refresh(ctx))
	tbl.ShowCreate()
	assert.Equal(t, ModalCreate, tbl.Snapshot().Modal.Mode)

	before := b.lists.Load()
	require.NoError(t, tbl.Create(ctx, map[string]any{"name": "ops", "color": "#00ff00"}))

	assert.Equal(t, before+1, b.lists.Load(), "exactly one refetch")
	snap := tbl.Snapshot()
	assert.Equal(t, ModalClosed, snap.Modal.Mode)
	require.NotNil(t, snap.Page)
	require.Len(t, snap.Page.Data, 1)
	assert.Equal(t, "ops", snap.Page.Data[0].Name)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, LevelSuccess, snap.Notifications[0].Level)
	assert.Equal(t, "Role created successfully", snap.Notifications[0].Description)
	assert.NotEmpty(t, snap.Notifications[0].ID)
	assert.Equal(t, map[string]any{"name": "", "color": "#000000"}, tbl.CreateValues())

	assert.Empty(t, tbl.Snapshot().Notifications, "snapshot drains notifications")
}

func TestCreateInvalidNeverCallsBackend(t *testing.T) {
	b := &fakeBackend{}
	tbl := newTable(b)

	err := tbl.Create(context.Background(), map[string]any{"name": "Not A Slug"})
	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, b.creates.Load())
	assert.Zero(t, b.lists.Load())

	snap := tbl.Snapshot()
	assert.Equal(t, ModalCreate, snap.Modal.Mode)
	assert.Equal(t, schema.SlugRuleMessage, snap.Modal.Errors["name"])
	assert.Equal(t, "Not A Slug", snap.Modal.Values["name"])
}

func TestCreateBackendErrorKeepsModalOpen(t *testing.T) {
	b := &fakeBackend{failOn: "create"}
	tbl := newTable(b)

	err := tbl.Create(context.Background(), map[string]any{"name": "ops"})
	require.Error(t, err)
	assert.Zero(t, b.lists.Load())

	snap := tbl.Snapshot()
	assert.Equal(t, ModalCreate, snap.Modal.Mode)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, LevelError, snap.Notifications[0].Level)
	assert.Equal(t, "Role already exists", snap.Notifications[0].Description)
}

func TestCreateTransportErrorUsesGenericMessage(t *testing.T) {
	tbl := newTable(&fakeBackend{failOn: "create-transport"})
	require.Error(t, tbl.Create(context.Background(), map[string]any{"name": "ops"}))
	snap := tbl.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, apiclient.UnknownErrorMessage, snap.Notifications[0].Description)
}

func TestRedirectIsSilent(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTable(b).cfg
	cfg.ListRows = func(context.Context, apiclient.Query) (apiclient.Page[item], error) {
		return apiclient.Page[item]{}, apiclient.ErrRedirected
	}
	tbl := New(cfg, "/items")
	require.ErrorIs(t, tbl.Refresh(context.Background()), apiclient.ErrRedirected)
	assert.Empty(t, tbl.Snapshot().Notifications)
}

func TestOnRowCreatedHook(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTable(b).cfg
	var got item
	cfg.OnRowCreated = func(_ context.Context, row item) *Notification {
		got = row
		n := Success("token: abc")
		return &n
	}
	tbl := New(cfg, "/items")
	require.NoError(t, tbl.Create(context.Background(), map[string]any{"name": "svc"}))
	assert.Equal(t, "svc", got.Name)
	assert.Len(t, tbl.Snapshot().Notifications, 2)
	assert.Equal(t, int32(1), b.lists.Load())
}

func TestEditAndUpdate(t *testing.T) {
	b := &fakeBackend{items: []item{{ID: 4, Name: "ops"}}, nextID: 4}
	tbl := newTable(b)
	ctx := context.Background()
	require.NoError(t, tbl.Refresh(ctx))

	require.ErrorIs(t, tbl.ShowEdit(99), ErrRowNotFound)

	require.NoError(t, tbl.ShowEdit(4))
	modal := tbl.Snapshot().Modal
	assert.Equal(t, ModalEdit, modal.Mode)
	assert.Equal(t, "Edit role ops", modal.Title)
	assert.Equal(t, "ops", modal.Values["name"])
	assert.Equal(t, "#000000", modal.Values["color"], "empty color falls back to the update default")

	before := b.lists.Load()
	require.NoError(t, tbl.Update(ctx, 4, map[string]any{"name": "operations", "color": "#ffffff"}))
	assert.Equal(t, before+1, b.lists.Load())
	snap := tbl.Snapshot()
	assert.Equal(t, "operations", snap.Page.Data[0].Name)
	assert.Equal(t, "Role updated successfully", snap.Notifications[0].Description)
	assert.Equal(t, ModalClosed, snap.Modal.Mode)
}

func TestUpdateRowNotOnPage(t *testing.T) {
	b := &fakeBackend{items: []item{{ID: 4, Name: "ops"}}, nextID: 4}
	tbl := newTable(b)
	ctx := context.Background()

	require.ErrorIs(t, tbl.Update(ctx, 4, map[string]any{"name": "x"}), ErrRowNotFound, "nothing loaded yet")
	require.NoError(t, tbl.Refresh(ctx))
	before := b.lists.Load()
	require.ErrorIs(t, tbl.Update(ctx, 99, map[string]any{"name": "x"}), ErrRowNotFound)

	assert.Zero(t, b.updates.Load())
	assert.Equal(t, before, b.lists.Load())
	assert.Equal(t, ModalClosed, tbl.Snapshot().Modal.Mode)
}

func TestUpdateWithoutOperation(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTable(b).cfg
	cfg.UpdateRow = nil
	tbl := New(cfg, "/items")

	require.ErrorIs(t, tbl.Update(context.Background(), 1, map[string]any{"name": "x"}), ErrUpdateUnsupported)
	snap := tbl.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, LevelError, snap.Notifications[0].Level)
}

func TestDeleteRefetchesOnce(t *testing.T) {
	b := &fakeBackend{items: []item{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}}
	tbl := newTable(b)
	ctx := context.Background()
	require.NoError(t, tbl.Refresh(ctx))

	before := b.lists.Load()
	require.NoError(t, tbl.Delete(ctx, 1))
	assert.Equal(t, before+1, b.lists.Load())
	snap := tbl.Snapshot()
	require.Len(t, snap.Page.Data, 1)
	assert.Equal(t, "Role deleted successfully", snap.Notifications[0].Description)

	require.Error(t, tbl.Delete(ctx, 42))
	assert.Equal(t, before+1, b.lists.Load(), "failed delete does not refetch")
}

func TestRefetchUsesActiveState(t *testing.T) {
	b := &fakeBackend{}
	tbl := newTable(b)
	ctx := context.Background()

	require.NoError(t, tbl.SetFilters(ctx, []apiclient.Filter{{ID: "name", Value: "op"}}))
	require.NoError(t, tbl.ToggleSort(ctx, "name"))
	require.NoError(t, tbl.SetPage(ctx, 3))
	require.NoError(t, tbl.Create(ctx, map[string]any{"name": "ops"}))

	q := b.lastQ
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, []apiclient.Filter{{ID: "name", Value: "op"}}, q.Filters)
	assert.Equal(t, []apiclient.Sort{{ID: "name"}}, q.Sorting)

	require.Error(t, tbl.ToggleSort(ctx, "color"), "color is not sortable")
}

func TestToggleSortCycles(t *testing.T) {
	b := &fakeBackend{}
	tbl := newTable(b)
	ctx := context.Background()

	require.NoError(t, tbl.ToggleSort(ctx, "name"))
	assert.Equal(t, "asc", tbl.Snapshot().State.SortOf("name"))
	require.NoError(t, tbl.ToggleSort(ctx, "name"))
	assert.Equal(t, "desc", tbl.Snapshot().State.SortOf("name"))
	require.NoError(t, tbl.ToggleSort(ctx, "name"))
	assert.Equal(t, "", tbl.Snapshot().State.SortOf("name"))
}

func TestStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	cfg := newTable(&fakeBackend{}).cfg
	cfg.ListRows = func(_ context.Context, q apiclient.Query) (apiclient.Page[item], error) {
		n := calls.Add(1)
		if n == 1 {
			close(started)
			<-release
			return apiclient.Page[item]{
				Meta: apiclient.Meta{ItemsPerPage: 10, TotalItems: 1, CurrentPage: 1, TotalPages: 1},
				Data: []item{{ID: 1, Name: "stale"}},
			}, nil
		}
		return apiclient.Page[item]{
			Meta: apiclient.Meta{ItemsPerPage: 10, TotalItems: 1, CurrentPage: 2, TotalPages: 2},
			Data: []item{{ID: 2, Name: "fresh"}},
		}, nil
	}
	tbl := New(cfg, "/items")

	done := make(chan error, 1)
	go func() { done <- tbl.Refresh(context.Background()) }()
	<-started
	require.NoError(t, tbl.SetPage(context.Background(), 2))
	close(release)
	require.NoError(t, <-done)

	snap := tbl.Snapshot()
	require.Len(t, snap.Page.Data, 1)
	assert.Equal(t, "fresh", snap.Page.Data[0].Name)
}

func TestSetSearchDebounced(t *testing.T) {
	b := &fakeBackend{}
	tbl := newTable(b)
	defer tbl.Close()
	ctx := context.Background()

	tbl.SetSearch(ctx, "o")
	tbl.SetSearch(ctx, "op")
	tbl.SetSearch(ctx, "ops")

	require.Eventually(t, func() bool { return b.lists.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), b.lists.Load())

	b.mu.Lock()
	q := b.lastQ
	b.mu.Unlock()
	assert.Equal(t, []apiclient.Filter{{ID: "name", Value: "ops"}}, q.Filters)
}

func TestFlushSearch(t *testing.T) {
	b := &fakeBackend{}
	tbl := New(newTable(b).cfg, "/items", WithSearchDebounce(time.Hour))
	defer tbl.Close()

	tbl.SetSearch(context.Background(), "ops")
	assert.True(t, tbl.FlushSearch())
	assert.Equal(t, int32(1), b.lists.Load())
	assert.False(t, tbl.FlushSearch())
}

func TestListErrorNotifies(t *testing.T) {
	tbl := newTable(&fakeBackend{failOn: "list"})
	require.Error(t, tbl.Refresh(context.Background()))
	snap := tbl.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "list exploded", snap.Notifications[0].Description)
}

func TestColumnsDerivation(t *testing.T) {
	tbl := newTable(&fakeBackend{})
	snap := tbl.Snapshot()
	var keys []string
	for _, c := range snap.Columns {
		keys = append(keys, c.AccessorKey)
	}
	assert.Equal(t, []string{"id", "name", "color"}, keys)
	assert.Len(t, snap.Fields, 2)
	assert.Equal(t, "7", Column[item]{AccessorKey: "id"}.CellText(item{ID: 7}))
}

func TestOnRowsFetched(t *testing.T) {
	b := &fakeBackend{items: []item{{ID: 1, Name: "a"}}}
	cfg := newTable(b).cfg
	cfg.OnRowsFetched = func(p apiclient.Page[item]) apiclient.Page[item] {
		for i := range p.Data {
			p.Data[i].Color = "#123456"
		}
		return p
	}
	tbl := New(cfg, "/items")
	require.NoError(t, tbl.Refresh(context.Background()))
	assert.Equal(t, "#123456", tbl.Snapshot().Page.Data[0].Color)
}
