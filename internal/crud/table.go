// Package crud binds a REST resource to a paginated, filterable, sortable
// table with create and edit modals. A Table is the sole owner of its rows
// and form states.
package crud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/audit"
	"github.com/mad-auth/console/internal/form"
	"github.com/mad-auth/console/internal/obs"
	"github.com/mad-auth/console/internal/schema"
)

var (
	ErrRowNotFound       = errors.New("crud: row not found in the loaded page")
	ErrUpdateUnsupported = errors.New("crud: resource has no update operation")
	ErrDeleteUnsupported = errors.New("crud: resource has no delete operation")
)

// Messages are the toast texts of one resource.
type Messages struct {
	CreateSuccess string
	CreateError   string
	UpdateSuccess string
	UpdateError   string
	DeleteSuccess string
	DeleteError   string
}

// Config declares one resource table. R is the row type, C and U the
// create and update bodies.
type Config[R Row, C any, U any] struct {
	// Resource names the table in logs and audit events ("roles").
	Resource string

	Columns   func(Actions) []Column[R]
	ListRows  func(ctx context.Context, q apiclient.Query) (apiclient.Page[R], error)
	CreateRow func(ctx context.Context, body C) (R, error)
	UpdateRow func(ctx context.Context, id int, body U) (R, error)
	DeleteRow func(ctx context.Context, id int) error

	Messages        Messages
	DefaultPageSize int

	SearchColumn      string
	SearchPlaceholder string

	CreateButtonText       string
	CreateModalTitle       string
	CreateModalDescription string
	UpdateModalTitle       func(R) string

	// OnRowsFetched transforms every fetched page before it is stored.
	OnRowsFetched func(apiclient.Page[R]) apiclient.Page[R]
	// OnRowCreated runs after a successful create with the backend response.
	OnRowCreated func(ctx context.Context, row R) *Notification
}

type ModalMode string

const (
	ModalClosed ModalMode = ""
	ModalCreate ModalMode = "create"
	ModalEdit   ModalMode = "edit"
)

// Modal is the state of the create/edit dialog.
type Modal struct {
	Mode   ModalMode
	Title  string
	RowID  int
	Values map[string]any
	Errors map[string]string
}

// Table is the controller of one resource table.
type Table[R Row, C any, U any] struct {
	cfg     Config[R, C, U]
	base    string
	columns []Column[R]
	log     *zap.Logger
	search  *Debouncer

	mu      sync.Mutex
	seq     uint64
	state   State
	rows    *apiclient.Page[R]
	modal   Modal
	created map[string]any
	notes   []Notification
}

// Option configures a Table.
type Option func(*tableOptions)

type tableOptions struct {
	log      *zap.Logger
	debounce time.Duration
}

func WithLogger(l *zap.Logger) Option {
	return func(o *tableOptions) { o.log = l }
}

func WithSearchDebounce(d time.Duration) Option {
	return func(o *tableOptions) { o.debounce = d }
}

// New builds a table mounted at base (for example "/roles").
func New[R Row, C any, U any](cfg Config[R, C, U], base string, opts ...Option) *Table[R, C, U] {
	o := tableOptions{log: obs.Logger(), debounce: DefaultSearchDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	var cols []Column[R]
	if cfg.Columns != nil {
		cols = cfg.Columns(Actions{Base: base})
	}
	for _, c := range cols {
		if c.Field.Partial() {
			o.log.Error("column has an incomplete form field",
				zap.String("resource", cfg.Resource),
				zap.String("column", c.AccessorKey))
		}
	}
	t := &Table[R, C, U]{
		cfg:     cfg,
		base:    base,
		columns: cols,
		log:     o.log.With(zap.String("resource", cfg.Resource)),
		search:  NewDebouncer(o.debounce),
		state:   State{Page: 1, PageSize: cfg.DefaultPageSize},
	}
	t.created = createDefaults(cols)
	return t
}

// Close stops a pending debounced search.
func (t *Table[R, C, U]) Close() { t.search.Close() }

// Restore replaces the list state without fetching.
func (t *Table[R, C, U]) Restore(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Page < 1 {
		s.Page = 1
	}
	if s.PageSize <= 0 {
		s.PageSize = t.cfg.DefaultPageSize
	}
	t.state = s
}

// Refresh fetches the current page with the active filters and sorting and
// replaces the rows. A response overtaken by a later Refresh is dropped.
func (t *Table[R, C, U]) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	q := t.state.query()
	t.mu.Unlock()

	page, err := t.cfg.ListRows(ctx, q)

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq != t.seq {
		obs.ObserveStaleResponse()
		t.log.Debug("dropping stale rows", zap.Uint64("seq", seq), zap.Uint64("latest", t.seq))
		return nil
	}
	if err != nil {
		t.log.Error("Error while fetching rows", zap.Error(err))
		t.failLocked(err)
		return err
	}
	if t.cfg.OnRowsFetched != nil {
		page = t.cfg.OnRowsFetched(page)
	}
	t.rows = &page
	return nil
}

func (t *Table[R, C, U]) SetPage(ctx context.Context, page int) error {
	t.mu.Lock()
	if page < 1 {
		page = 1
	}
	t.state.Page = page
	t.mu.Unlock()
	return t.Refresh(ctx)
}

// SetPageSize changes the limit and returns to the first page.
func (t *Table[R, C, U]) SetPageSize(ctx context.Context, size int) error {
	t.mu.Lock()
	if size <= 0 {
		size = t.cfg.DefaultPageSize
	}
	t.state.PageSize = size
	t.state.Page = 1
	t.mu.Unlock()
	return t.Refresh(ctx)
}

func (t *Table[R, C, U]) SetSorting(ctx context.Context, sorting []apiclient.Sort) error {
	t.mu.Lock()
	t.state.Sorting = append([]apiclient.Sort(nil), sorting...)
	t.mu.Unlock()
	return t.Refresh(ctx)
}

// ToggleSort cycles a sortable column through ascending, descending and
// unsorted.
func (t *Table[R, C, U]) ToggleSort(ctx context.Context, column string) error {
	sortable := false
	for _, c := range t.columns {
		if c.AccessorKey == column && c.Sortable {
			sortable = true
			break
		}
	}
	if !sortable {
		return fmt.Errorf("crud: column %q is not sortable", column)
	}
	t.mu.Lock()
	t.state = t.state.Toggled(column)
	t.mu.Unlock()
	return t.Refresh(ctx)
}

// SetFilters replaces the filters and returns to the first page.
func (t *Table[R, C, U]) SetFilters(ctx context.Context, filters []apiclient.Filter) error {
	t.mu.Lock()
	t.state.Filters = append([]apiclient.Filter(nil), filters...)
	t.state.Page = 1
	t.mu.Unlock()
	return t.Refresh(ctx)
}

// SetSearch updates the search filter once the debounce delay passes
// without another call, then refetches.
func (t *Table[R, C, U]) SetSearch(ctx context.Context, value string) {
	t.search.Trigger(func() {
		t.mu.Lock()
		filters := make([]apiclient.Filter, 0, len(t.state.Filters)+1)
		for _, f := range t.state.Filters {
			if f.ID != t.cfg.SearchColumn {
				filters = append(filters, f)
			}
		}
		if value != "" {
			filters = append(filters, apiclient.Filter{ID: t.cfg.SearchColumn, Value: value})
		}
		t.state.Filters = filters
		t.state.Page = 1
		t.mu.Unlock()
		_ = t.Refresh(ctx)
	})
}

// FlushSearch applies a pending search immediately.
func (t *Table[R, C, U]) FlushSearch() bool { return t.search.Flush() }

// ShowCreate opens the create modal with the column defaults.
func (t *Table[R, C, U]) ShowCreate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modal = Modal{
		Mode:   ModalCreate,
		Title:  t.cfg.CreateModalTitle,
		Values: copyValues(t.created),
	}
}

// Create validates values against C, creates the row, then refetches once.
// Invalid values never reach the backend.
func (t *Table[R, C, U]) Create(ctx context.Context, values map[string]any) error {
	var body C
	if err := schema.Decode(values, &body); err != nil {
		t.mu.Lock()
		t.modal = Modal{Mode: ModalCreate, Title: t.cfg.CreateModalTitle, Values: values, Errors: fieldErrors(err)}
		t.mu.Unlock()
		return err
	}

	row, err := t.cfg.CreateRow(ctx, body)
	if err != nil {
		t.log.Error(t.cfg.Messages.CreateError, zap.Error(err))
		t.mu.Lock()
		t.modal = Modal{Mode: ModalCreate, Title: t.cfg.CreateModalTitle, Values: values}
		t.failLocked(err)
		t.mu.Unlock()
		return err
	}

	t.auditEvent(ctx, "create", row.RowID())
	t.notify(Success(t.cfg.Messages.CreateSuccess))
	if t.cfg.OnRowCreated != nil {
		if n := t.cfg.OnRowCreated(ctx, row); n != nil {
			t.notify(*n)
		}
	}
	refreshErr := t.Refresh(ctx)

	t.mu.Lock()
	t.modal = Modal{}
	t.created = createDefaults(t.columns)
	t.mu.Unlock()
	return refreshErr
}

// ShowEdit opens the edit modal with the full row from the loaded page.
func (t *Table[R, C, U]) ShowEdit(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.findLocked(id)
	if !ok {
		t.log.Error("Could not find row to edit", zap.Int("id", id))
		return ErrRowNotFound
	}
	title := ""
	if t.cfg.UpdateModalTitle != nil {
		title = t.cfg.UpdateModalTitle(row)
	}
	t.modal = Modal{
		Mode:   ModalEdit,
		Title:  title,
		RowID:  id,
		Values: updateValues(t.columns, row),
	}
	return nil
}

// Update validates values against U and updates row id, then refetches
// once. id must be on the loaded page; ErrRowNotFound otherwise.
func (t *Table[R, C, U]) Update(ctx context.Context, id int, values map[string]any) error {
	if t.cfg.UpdateRow == nil {
		t.log.Error(t.cfg.Messages.UpdateError, zap.Error(ErrUpdateUnsupported))
		t.notify(Failure(apiclient.UnknownErrorMessage))
		return ErrUpdateUnsupported
	}

	t.mu.Lock()
	row, ok := t.findLocked(id)
	if !ok {
		t.log.Error("Could not find row to edit", zap.Int("id", id))
		t.mu.Unlock()
		return ErrRowNotFound
	}
	title := ""
	if t.cfg.UpdateModalTitle != nil {
		title = t.cfg.UpdateModalTitle(row)
	}
	t.mu.Unlock()

	var body U
	if err := schema.Decode(values, &body); err != nil {
		t.mu.Lock()
		t.modal = Modal{Mode: ModalEdit, Title: title, RowID: id, Values: values, Errors: fieldErrors(err)}
		t.mu.Unlock()
		return err
	}

	if _, err := t.cfg.UpdateRow(ctx, id, body); err != nil {
		t.log.Error(t.cfg.Messages.UpdateError, zap.Int("id", id), zap.Error(err))
		t.mu.Lock()
		t.modal = Modal{Mode: ModalEdit, Title: title, RowID: id, Values: values}
		t.failLocked(err)
		t.mu.Unlock()
		return err
	}

	t.auditEvent(ctx, "update", id)
	t.notify(Success(t.cfg.Messages.UpdateSuccess))
	refreshErr := t.Refresh(ctx)

	t.mu.Lock()
	t.modal = Modal{}
	t.mu.Unlock()
	return refreshErr
}

// Delete removes row id and refetches once. Rows are never removed
// locally.
func (t *Table[R, C, U]) Delete(ctx context.Context, id int) error {
	if t.cfg.DeleteRow == nil {
		t.log.Error(t.cfg.Messages.DeleteError, zap.Error(ErrDeleteUnsupported))
		t.notify(Failure(apiclient.UnknownErrorMessage))
		return ErrDeleteUnsupported
	}
	if err := t.cfg.DeleteRow(ctx, id); err != nil {
		t.log.Error(t.cfg.Messages.DeleteError, zap.Int("id", id), zap.Error(err))
		t.mu.Lock()
		t.failLocked(err)
		t.mu.Unlock()
		return err
	}
	t.auditEvent(ctx, "delete", id)
	t.notify(Success(t.cfg.Messages.DeleteSuccess))
	return t.Refresh(ctx)
}

// Notify queues a toast raised outside the table operations.
func (t *Table[R, C, U]) Notify(n Notification) { t.notify(n) }

func (t *Table[R, C, U]) notify(n Notification) {
	t.mu.Lock()
	t.notes = append(t.notes, n)
	t.mu.Unlock()
}

// failLocked queues an error toast for err. Redirects are silent.
func (t *Table[R, C, U]) failLocked(err error) {
	if errors.Is(err, apiclient.ErrRedirected) {
		return
	}
	t.notes = append(t.notes, Failure(apiclient.Message(err)))
}

func (t *Table[R, C, U]) findLocked(id int) (R, bool) {
	var zero R
	if t.rows == nil {
		return zero, false
	}
	for _, r := range t.rows.Data {
		if r.RowID() == id {
			return r, true
		}
	}
	return zero, false
}

func (t *Table[R, C, U]) auditEvent(ctx context.Context, action string, id int) {
	if err := audit.LogEvent(ctx, t.cfg.Resource+"."+action, map[string]any{"id": id}); err != nil {
		t.log.Warn("audit event", zap.Error(err))
	}
}

// Snapshot is a consistent copy of the table for rendering.
type Snapshot[R Row] struct {
	Resource          string
	Base              string
	Columns           []Column[R]
	Fields            []form.Field
	State             State
	SearchColumn      string
	SearchPlaceholder string
	CreateButtonText  string
	CreateDescription string
	Page              *apiclient.Page[R]
	Modal             Modal
	Notifications     []Notification
}

// Snapshot copies the table state and drains queued notifications.
func (t *Table[R, C, U]) Snapshot() Snapshot[R] {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot[R]{
		Resource:          t.cfg.Resource,
		Base:              t.base,
		Columns:           visibleColumns(t.columns),
		Fields:            formFields(t.columns),
		State:             t.state,
		SearchColumn:      t.cfg.SearchColumn,
		SearchPlaceholder: t.cfg.SearchPlaceholder,
		CreateButtonText:  t.cfg.CreateButtonText,
		CreateDescription: t.cfg.CreateModalDescription,
		Modal:             t.modal,
		Notifications:     t.notes,
	}
	// an edit that failed before any rows were loaded has no title yet
	if s.Modal.Mode == ModalEdit && s.Modal.Title == "" && t.cfg.UpdateModalTitle != nil {
		if row, ok := t.findLocked(s.Modal.RowID); ok {
			s.Modal.Title = t.cfg.UpdateModalTitle(row)
		}
	}
	if t.rows != nil {
		p := *t.rows
		p.Data = append([]R(nil), t.rows.Data...)
		s.Page = &p
	}
	t.notes = nil
	return s
}

// Loaded reports whether a page of rows has been fetched.
func (t *Table[R, C, U]) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows != nil
}

// CreateValues returns the current create form values.
func (t *Table[R, C, U]) CreateValues() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyValues(t.created)
}

// Fields returns the form fields derived from the columns.
func (t *Table[R, C, U]) Fields() []form.Field { return formFields(t.columns) }

func fieldErrors(err error) map[string]string {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields()
	}
	return map[string]string{"": err.Error()}
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
