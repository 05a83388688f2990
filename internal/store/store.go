// Package store is the single source of truth for cached forms, fields, and
// records. All cache mutation flows through its actions: each action calls
// the API boundary and, on success, applies the result to the cache. Reads
// take snapshots; change notification is push-based via Subscribe.
package store

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/formbase/formbase-go/internal/client"
	"github.com/formbase/formbase-go/internal/observability"
	"github.com/formbase/formbase-go/internal/query"
	"github.com/formbase/formbase-go/model"
)

// RecordPage is the cached record listing of one form. Items never contain
// two entries with the same id.
type RecordPage struct {
	Items   []model.Record
	Offset  int
	HasMore bool
}

// Store caches forms, fields-by-form, and records-by-form, plus the four
// transient flags the UI observes. A single mutex gives the actions a
// single-writer discipline; no other component mutates the cache.
type Store struct {
	client   *client.Client
	logger   *zap.Logger
	metrics  *observability.Metrics
	pageSize int

	mu         sync.Mutex
	forms      []model.Form
	fields     map[int][]model.Field
	records    map[int]*RecordPage
	loading    bool
	submitting bool
	deletingID *int
	err        error

	subMu   sync.Mutex
	nextSub int
	subs    map[int]chan struct{}
}

// New creates a Store backed by the given client. logger and metrics may be
// nil.
func New(c *client.Client, pageSize int, logger *zap.Logger, metrics *observability.Metrics) *Store {
	if pageSize < 1 {
		pageSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:   c,
		logger:   logger,
		metrics:  metrics,
		pageSize: pageSize,
		fields:   make(map[int][]model.Field),
		records:  make(map[int]*RecordPage),
		subs:     make(map[int]chan struct{}),
	}
}

// --- observation ---

// Subscribe registers for change notification. Every committed cache
// mutation performs a non-blocking send on the returned channel. The cancel
// function unregisters and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Forms returns a snapshot of the cached form list, most recently created
// first.
func (s *Store) Forms() []model.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Form, len(s.forms))
	copy(out, s.forms)
	return out
}

// Fields returns a snapshot of one form's field list, ascending OrderIndex.
func (s *Store) Fields(formID int) []model.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.fields[formID]
	out := make([]model.Field, len(src))
	copy(out, src)
	return out
}

// Records returns a snapshot of one form's cached record page. Value bags
// are shared with the cache and treated as immutable once stored.
func (s *Store) Records(formID int) RecordPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := s.records[formID]
	if page == nil {
		return RecordPage{}
	}
	items := make([]model.Record, len(page.Items))
	copy(items, page.Items)
	return RecordPage{Items: items, Offset: page.Offset, HasMore: page.HasMore}
}

// Loading reports whether any read is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Submitting reports whether any create or update is in flight.
func (s *Store) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// DeletingID returns the id of the form or record currently being deleted.
func (s *Store) DeletingID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deletingID == nil {
		return 0, false
	}
	return *s.deletingID, true
}

// Err returns the last failure, or nil.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// --- internal state helpers ---

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	if v {
		s.err = nil
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setSubmitting(v bool) {
	s.mu.Lock()
	s.submitting = v
	if v {
		s.err = nil
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setDeleting(id *int) {
	s.mu.Lock()
	s.deletingID = id
	if id != nil {
		s.err = nil
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify()
}

// instrument opens a span for one action and returns a completion callback
// recording the outcome on both the span and the action metrics.
func (s *Store) instrument(ctx context.Context, action string, formID int) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{observability.AttrAction.String(action)}
	if formID != 0 {
		attrs = append(attrs, observability.AttrFormID.Int(formID))
	}
	ctx, span := observability.StartSpan(ctx, "store."+action, attrs...)
	return ctx, func(err error) {
		s.recordOutcome(action, err)
		observability.EndSpanWithError(span, err)
	}
}

func (s *Store) recordOutcome(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.StoreActionsTotal.WithLabelValues(action, outcome).Inc()
}

func (s *Store) updateCacheGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreCachedForms.Set(float64(len(s.forms)))
	total := 0
	for _, page := range s.records {
		total += len(page.Items)
	}
	s.metrics.StoreCachedRecords.Set(float64(total))
}

// --- form actions ---

// FetchForms replaces the form cache wholesale with the server's order.
// Failures are captured in the error slot; the cache is left untouched.
func (s *Store) FetchForms(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	ctx, done := s.instrument(ctx, "fetch_forms", 0)
	forms, err := s.client.ListForms(ctx)
	done(err)
	if err != nil {
		s.setErr(err)
		return
	}

	s.mu.Lock()
	s.forms = forms
	s.updateCacheGauges()
	s.mu.Unlock()
	s.notify()
}

// CreateForm creates a form and prepends the server's representation to the
// cache. The server is the source of the new id. Failures are captured in
// the error slot and returned.
func (s *Store) CreateForm(ctx context.Context, name, description string) (model.Form, error) {
	s.setSubmitting(true)
	defer s.setSubmitting(false)

	ctx, done := s.instrument(ctx, "create_form", 0)
	form, err := s.client.CreateForm(ctx, name, description)
	done(err)
	if err != nil {
		s.setErr(err)
		return model.Form{}, err
	}

	s.mu.Lock()
	s.forms = append([]model.Form{form}, s.forms...)
	s.updateCacheGauges()
	s.mu.Unlock()
	s.notify()
	return form, nil
}

// UpdateForm patches a form remotely first, then on success patches the
// matching cached item in place.
func (s *Store) UpdateForm(ctx context.Context, id int, name, description string) error {
	s.setSubmitting(true)
	defer s.setSubmitting(false)

	ctx, done := s.instrument(ctx, "update_form", id)
	err := s.client.UpdateForm(ctx, id, name, description)
	done(err)
	if err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	for i := range s.forms {
		if s.forms[i].ID == id {
			s.forms[i].Name = name
			s.forms[i].Description = description
			break
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// DeleteForm deletes a form remotely and removes it from the cache by id.
func (s *Store) DeleteForm(ctx context.Context, id int) error {
	s.setDeleting(&id)
	defer s.setDeleting(nil)

	ctx, done := s.instrument(ctx, "delete_form", id)
	err := s.client.DeleteForm(ctx, id)
	done(err)
	if err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	kept := s.forms[:0]
	for _, f := range s.forms {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	s.forms = kept
	s.updateCacheGauges()
	s.mu.Unlock()
	s.notify()
	return nil
}

// --- field actions ---

// FetchFields loads one form's field definitions, sorted ascending by
// OrderIndex. No-op when formID is zero.
func (s *Store) FetchFields(ctx context.Context, formID int) {
	if formID == 0 {
		return
	}
	s.setLoading(true)
	defer s.setLoading(false)

	ctx, done := s.instrument(ctx, "fetch_fields", formID)
	fields, err := s.client.ListFields(ctx, formID)
	done(err)
	if err != nil {
		s.setErr(err)
		return
	}

	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].OrderIndex < fields[j].OrderIndex
	})

	s.mu.Lock()
	s.fields[formID] = fields
	s.mu.Unlock()
	s.notify()
}

// FieldInput is the user-supplied part of a new field definition.
type FieldInput struct {
	Name     string
	Type     model.FieldType
	Required bool
	IsNum    bool
	Options  *model.FieldOptions
}

// CreateField creates a field at the end of the persisted order
// (order_index = current length + 1; gaps are not reused) and prepends the
// created item to the cached list. Displayed position and persisted rank
// are decoupled on create. No-op when formID is zero or the name is empty.
func (s *Store) CreateField(ctx context.Context, formID int, in FieldInput) (model.Field, error) {
	if formID == 0 || in.Name == "" {
		return model.Field{}, nil
	}
	s.setSubmitting(true)
	defer s.setSubmitting(false)

	s.mu.Lock()
	orderIndex := len(s.fields[formID]) + 1
	s.mu.Unlock()

	payload := map[string]any{
		"form_id":     formID,
		"name":        in.Name,
		"field_type":  string(in.Type),
		"required":    in.Required,
		"is_num":      in.IsNum,
		"order_index": orderIndex,
	}
	if in.Options != nil {
		payload["options"] = in.Options
	}

	ctx, done := s.instrument(ctx, "create_field", formID)
	field, err := s.client.CreateField(ctx, payload)
	done(err)
	if err != nil {
		s.setErr(err)
		return model.Field{}, err
	}

	s.mu.Lock()
	s.fields[formID] = append([]model.Field{field}, s.fields[formID]...)
	s.mu.Unlock()
	s.notify()
	return field, nil
}

// ReorderFields renumbers one form's fields to the dense 1-based ranking
// given by orderedIDs and replaces the cached list immediately, before any
// persistence. Each field's new order_index is then persisted one at a
// time, in list order; individual persistence failures are swallowed. The
// local list is the only guaranteed-consistent view after a reorder. No-op
// when formID is zero or orderedIDs is empty.
func (s *Store) ReorderFields(ctx context.Context, formID int, orderedIDs []int) {
	if formID == 0 || len(orderedIDs) == 0 {
		return
	}
	ctx, done := s.instrument(ctx, "reorder_fields", formID)
	defer done(nil)

	s.mu.Lock()
	byID := make(map[int]model.Field, len(s.fields[formID]))
	for _, f := range s.fields[formID] {
		byID[f.ID] = f
	}
	reordered := make([]model.Field, 0, len(orderedIDs))
	for pos, id := range orderedIDs {
		f, ok := byID[id]
		if !ok {
			continue
		}
		f.OrderIndex = pos + 1
		reordered = append(reordered, f)
	}
	s.fields[formID] = reordered
	s.mu.Unlock()
	s.notify()

	// Persist sequentially to reduce backend write-write races. Failures
	// are logged and discarded, never surfaced or rolled back.
	for _, f := range reordered {
		err := s.client.UpdateField(ctx, f.ID, map[string]any{"order_index": f.OrderIndex})
		s.recordOutcome("reorder_field", err)
		if err != nil {
			s.logger.Warn("field reorder persistence failed",
				zap.Int("form_id", formID),
				zap.Int("field_id", f.ID),
				zap.Int("order_index", f.OrderIndex),
				zap.Error(err),
			)
		}
	}
}

// --- record actions ---

// FetchRecordsOptions tunes one record fetch. Limit zero falls back to the
// configured page size. Append is accepted for interface compatibility but
// the fetch always restarts from offset zero.
type FetchRecordsOptions struct {
	Limit      int
	Append     bool
	Conditions []model.Condition
	Join       query.Join
}

// FetchRecords loads one page of a form's records, via the filtered query
// path when conditions are present, and stores the result de-duplicated by
// id (first occurrence wins). No-op when formID is zero.
func (s *Store) FetchRecords(ctx context.Context, formID int, opts FetchRecordsOptions) {
	if formID == 0 {
		return
	}
	s.setLoading(true)
	defer s.setLoading(false)

	limit := opts.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	var (
		records []model.Record
		err     error
	)
	ctx, done := s.instrument(ctx, "fetch_records", formID)
	if len(opts.Conditions) > 0 {
		endpoint := query.Build(formID, opts.Conditions, opts.Join)
		records, err = s.client.ListFilteredRecords(ctx, endpoint, limit, 0)
	} else {
		records, err = s.client.ListRecords(ctx, formID, limit, 0)
	}
	done(err)
	if err != nil {
		s.setErr(err)
		return
	}

	deduped := dedupeByID(records)

	s.mu.Lock()
	s.records[formID] = &RecordPage{Items: deduped, Offset: 0, HasMore: false}
	s.updateCacheGauges()
	s.mu.Unlock()
	s.notify()
}

// CreateRecord posts a value bag and prepends the created record to the
// form's cached page. No-op when formID is zero or values is nil.
func (s *Store) CreateRecord(ctx context.Context, formID int, values model.Values) (model.Record, error) {
	if formID == 0 || values == nil {
		return model.Record{}, nil
	}
	s.setSubmitting(true)
	defer s.setSubmitting(false)

	ctx, done := s.instrument(ctx, "create_record", formID)
	record, err := s.client.CreateRecord(ctx, formID, values)
	done(err)
	if err != nil {
		s.setErr(err)
		return model.Record{}, err
	}

	s.mu.Lock()
	page := s.records[formID]
	if page == nil {
		page = &RecordPage{}
		s.records[formID] = page
	}
	page.Items = append([]model.Record{record}, page.Items...)
	s.updateCacheGauges()
	s.mu.Unlock()
	s.notify()
	return record, nil
}

// DeleteRecord deletes a record remotely and removes it from the form's
// cached page by id. A locally-unknown id filters to a no-op even though
// the remote call still executes. No-op when either argument is zero.
func (s *Store) DeleteRecord(ctx context.Context, formID, id int) error {
	if formID == 0 || id == 0 {
		return nil
	}
	s.setDeleting(&id)
	defer s.setDeleting(nil)

	ctx, done := s.instrument(ctx, "delete_record", formID)
	err := s.client.DeleteRecord(ctx, id)
	done(err)
	if err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	if page := s.records[formID]; page != nil {
		kept := page.Items[:0]
		for _, r := range page.Items {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		page.Items = kept
	}
	s.updateCacheGauges()
	s.mu.Unlock()
	s.notify()
	return nil
}

// dedupeByID keeps the first occurrence of each record id, preserving
// first-seen order.
func dedupeByID(records []model.Record) []model.Record {
	seen := make(map[int]bool, len(records))
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
