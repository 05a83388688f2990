package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/formbase/formbase-go/model"
)

// --- Forms ---

// ListForms fetches all forms in server order.
func (c *Client) ListForms(ctx context.Context) ([]model.Form, error) {
	result, err := c.Request(ctx, "/form", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var forms []model.Form
	if err := decodeInto(result, &forms); err != nil {
		return nil, err
	}
	return forms, nil
}

// CreateForm creates a form and returns the server's representation of it,
// which carries the assigned id.
func (c *Client) CreateForm(ctx context.Context, name, description string) (model.Form, error) {
	result, err := c.Request(ctx, "/form", http.MethodPost, map[string]any{
		"name":        name,
		"description": description,
	})
	if err != nil {
		return model.Form{}, err
	}
	var form model.Form
	if err := decodeInto(First(result), &form); err != nil {
		return model.Form{}, err
	}
	return form, nil
}

// UpdateForm patches a form's name and description.
func (c *Client) UpdateForm(ctx context.Context, id int, name, description string) error {
	endpoint := fmt.Sprintf("/form?id=eq.%d", id)
	_, err := c.Request(ctx, endpoint, http.MethodPatch, map[string]any{
		"name":        name,
		"description": description,
	})
	return err
}

// DeleteForm deletes a form. The username filter restricts the delete to
// rows owned by the caller.
func (c *Client) DeleteForm(ctx context.Context, id int) error {
	endpoint := fmt.Sprintf("/form?id=eq.%d&username=eq.%s", id, c.cfg.Username)
	_, err := c.Request(ctx, endpoint, http.MethodDelete, nil)
	return err
}

// --- Fields ---

// ListFields fetches the field definitions of one form.
func (c *Client) ListFields(ctx context.Context, formID int) ([]model.Field, error) {
	endpoint := fmt.Sprintf("/field?form_id=eq.%d", formID)
	result, err := c.Request(ctx, endpoint, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var fields []model.Field
	if err := decodeInto(result, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// CreateField creates a field from a full payload including form_id and
// order_index, returning the server's representation.
func (c *Client) CreateField(ctx context.Context, payload map[string]any) (model.Field, error) {
	result, err := c.Request(ctx, "/field", http.MethodPost, payload)
	if err != nil {
		return model.Field{}, err
	}
	var field model.Field
	if err := decodeInto(First(result), &field); err != nil {
		return model.Field{}, err
	}
	return field, nil
}

// UpdateField patches a single field.
func (c *Client) UpdateField(ctx context.Context, id int, patch map[string]any) error {
	endpoint := fmt.Sprintf("/field?id=eq.%d", id)
	_, err := c.Request(ctx, endpoint, http.MethodPatch, patch)
	return err
}

// --- Records ---

// ListRecords fetches one page of a form's records.
func (c *Client) ListRecords(ctx context.Context, formID, limit, offset int) ([]model.Record, error) {
	endpoint := fmt.Sprintf("/record?form_id=eq.%d&limit=%d&offset=%d", formID, limit, offset)
	return c.fetchRecords(ctx, endpoint)
}

// ListFilteredRecords fetches one page of records through a filter endpoint
// built by the query package. Pagination parameters are appended here.
func (c *Client) ListFilteredRecords(ctx context.Context, filterEndpoint string, limit, offset int) ([]model.Record, error) {
	endpoint := fmt.Sprintf("%s&limit=%d&offset=%d", filterEndpoint, limit, offset)
	return c.fetchRecords(ctx, endpoint)
}

func (c *Client) fetchRecords(ctx context.Context, endpoint string) ([]model.Record, error) {
	result, err := c.Request(ctx, endpoint, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var records []model.Record
	if err := decodeInto(result, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRecord posts a record's value bag under a form.
func (c *Client) CreateRecord(ctx context.Context, formID int, values model.Values) (model.Record, error) {
	result, err := c.Request(ctx, "/record", http.MethodPost, map[string]any{
		"form_id": formID,
		"values":  values,
	})
	if err != nil {
		return model.Record{}, err
	}
	var record model.Record
	if err := decodeInto(First(result), &record); err != nil {
		return model.Record{}, err
	}
	return record, nil
}

// DeleteRecord deletes a record, restricted to rows owned by the caller.
func (c *Client) DeleteRecord(ctx context.Context, id int) error {
	endpoint := fmt.Sprintf("/record?id=eq.%d&username=eq.%s", id, c.cfg.Username)
	_, err := c.Request(ctx, endpoint, http.MethodDelete, nil)
	return err
}
