package integration

import (
	"context"
	"testing"
	"time"

	"github.com/formbase/formbase-go/internal/client"
	"github.com/formbase/formbase-go/internal/config"
	"github.com/formbase/formbase-go/internal/query"
	"github.com/formbase/formbase-go/internal/schema"
	"github.com/formbase/formbase-go/internal/store"
	"github.com/formbase/formbase-go/model"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	mock := NewMockPostgREST(t)
	api := client.New(&config.Config{
		API: config.APIConfig{
			BaseURL:  mock.URL(),
			Token:    "tok",
			Username: "alice",
			Timeout:  2 * time.Second,
		},
	}, nil, nil)
	return store.New(api, 20, nil, nil)
}

func TestFormFieldRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	form, err := s.CreateForm(ctx, "inventory", "tracked items")
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if form.ID == 0 {
		t.Fatal("server did not assign a form id")
	}

	field, err := s.CreateField(ctx, form.ID, store.FieldInput{
		Name:    "category",
		Type:    model.FieldDropdown,
		Options: &model.FieldOptions{Dropdown: []string{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("CreateField: %v", err)
	}

	// Validate then create a record holding one of the dropdown's options.
	raw := map[string]any{"category": "a"}
	if errs := schema.Validate(s.Fields(form.ID), raw); len(errs) != 0 {
		t.Fatalf("validation errs = %v", errs)
	}
	created, err := s.CreateRecord(ctx, form.ID, schema.DecodeValues(s.Fields(form.ID), raw))
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	// A non-matching sibling to prove the filter restricts.
	if _, err := s.CreateRecord(ctx, form.ID, model.Values{"category": model.TextValue("b")}); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	eq, _ := model.OperatorByCode("eq")
	s.FetchRecords(ctx, form.ID, store.FetchRecordsOptions{
		Conditions: []model.Condition{model.NewCondition(field.Name, eq, "a", false)},
		Join:       query.JoinAnd,
	})
	if err := s.Err(); err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}

	page := s.Records(form.ID)
	if len(page.Items) != 1 {
		t.Fatalf("filtered items = %d, want exactly the matching record", len(page.Items))
	}
	if page.Items[0].ID != created.ID {
		t.Errorf("items[0].ID = %d, want %d", page.Items[0].ID, created.ID)
	}
	if page.Items[0].Values["category"].Text != "a" {
		t.Errorf("items[0] values = %+v", page.Items[0].Values)
	}
}

func TestFilteredFetchOrJoin(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	form, err := s.CreateForm(ctx, "scores", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"1", "5", "9"} {
		if _, err := s.CreateRecord(ctx, form.ID, model.Values{"score": model.TextValue(v)}); err != nil {
			t.Fatal(err)
		}
	}

	gt, _ := model.OperatorByCode("gt")
	lt, _ := model.OperatorByCode("lt")
	s.FetchRecords(ctx, form.ID, store.FetchRecordsOptions{
		Conditions: []model.Condition{
			{Field: "score", Op: gt, Value: "8", IsNum: true},
			{Field: "score", Op: lt, Value: "2", IsNum: true},
		},
		Join: query.JoinOr,
	})
	if err := s.Err(); err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}

	page := s.Records(form.ID)
	if len(page.Items) != 2 {
		t.Errorf("items = %d, want the two extremes", len(page.Items))
	}
}

func TestFilteredFetchContains(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	form, err := s.CreateForm(ctx, "notes", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"Python rocks", "Go rocks", "quiet"} {
		if _, err := s.CreateRecord(ctx, form.ID, model.Values{"note": model.TextValue(v)}); err != nil {
			t.Fatal(err)
		}
	}

	contains, _ := model.OperatorByCode("ilike")
	s.FetchRecords(ctx, form.ID, store.FetchRecordsOptions{
		Conditions: []model.Condition{model.NewCondition("note", contains, "rocks", false)},
		Join:       query.JoinAnd,
	})
	if err := s.Err(); err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}

	if page := s.Records(form.ID); len(page.Items) != 2 {
		t.Errorf("items = %d, want 2 containing matches", len(page.Items))
	}
}

func TestReorderPersistsAcrossRefetch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	form, err := s.CreateForm(ctx, "layout", "")
	if err != nil {
		t.Fatal(err)
	}
	var ids []int
	for _, name := range []string{"one", "two", "three"} {
		f, err := s.CreateField(ctx, form.ID, store.FieldInput{Name: name, Type: model.FieldText})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, f.ID)
	}

	// Reverse the order and persist.
	s.ReorderFields(ctx, form.ID, []int{ids[2], ids[1], ids[0]})

	// A fresh fetch reflects the persisted ranking.
	s.FetchFields(ctx, form.ID)
	if err := s.Err(); err != nil {
		t.Fatalf("FetchFields: %v", err)
	}
	fields := s.Fields(form.ID)
	if len(fields) != 3 {
		t.Fatalf("fields = %d", len(fields))
	}
	wantNames := []string{"three", "two", "one"}
	for i, f := range fields {
		if f.Name != wantNames[i] || f.OrderIndex != i+1 {
			t.Errorf("fields[%d] = {%s %d}, want {%s %d}", i, f.Name, f.OrderIndex, wantNames[i], i+1)
		}
	}
}

func TestDeleteFormAndRecordScopedToUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	form, err := s.CreateForm(ctx, "temp", "")
	if err != nil {
		t.Fatal(err)
	}
	record, err := s.CreateRecord(ctx, form.ID, model.Values{"x": model.TextValue("1")})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRecord(ctx, form.ID, record.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	s.FetchRecords(ctx, form.ID, store.FetchRecordsOptions{})
	if page := s.Records(form.ID); len(page.Items) != 0 {
		t.Errorf("items = %+v, want deleted", page.Items)
	}

	if err := s.DeleteForm(ctx, form.ID); err != nil {
		t.Fatalf("DeleteForm: %v", err)
	}
	s.FetchForms(ctx)
	if forms := s.Forms(); len(forms) != 0 {
		t.Errorf("forms = %+v, want deleted", forms)
	}
}
