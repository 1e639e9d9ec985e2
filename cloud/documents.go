package cloud

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/ndx-io/NDX/errors"
)

// RemoteDocument is a document as the cloud stores it: the full JSON body
// plus the identifier the API addresses it by. The body is kept raw so the
// client carries schema versions it does not know.
type RemoteDocument struct {
	ID   string
	Body json.RawMessage
}

// UnmarshalJSON extracts the id field and keeps the whole body.
func (d *RemoteDocument) UnmarshalJSON(data []byte) error {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	d.ID = head.ID
	d.Body = append(d.Body[:0], data...)
	return nil
}

// MarshalJSON emits the raw body unchanged.
func (d RemoteDocument) MarshalJSON() ([]byte, error) {
	if len(d.Body) == 0 {
		return []byte("null"), nil
	}
	return d.Body, nil
}

// DocumentPage is one page of a document listing.
type DocumentPage struct {
	Documents   []RemoteDocument `json:"documents"`
	TotalNumber int              `json:"totalNumber"`
}

func documentsPath(datasetID string) string {
	return "/datasets/" + url.PathEscape(datasetID) + "/documents"
}

// GetDocument fetches one document by ID.
func (c *Client) GetDocument(ctx context.Context, datasetID, documentID string) (RemoteDocument, error) {
	var doc RemoteDocument
	err := c.do(ctx, "GET", documentsPath(datasetID)+"/"+url.PathEscape(documentID), nil, nil, &doc)
	return doc, err
}

// AddDocument uploads a new document body.
func (c *Client) AddDocument(ctx context.Context, datasetID string, body json.RawMessage) error {
	if len(body) == 0 {
		return errors.NewInvalidRequestError("document body is empty")
	}
	return c.do(ctx, "POST", documentsPath(datasetID), nil, body, nil)
}

// UpdateDocument replaces an existing document's body.
func (c *Client) UpdateDocument(ctx context.Context, datasetID, documentID string, body json.RawMessage) error {
	if len(body) == 0 {
		return errors.NewInvalidRequestError("document body is empty")
	}
	return c.do(ctx, "POST", documentsPath(datasetID)+"/"+url.PathEscape(documentID), nil, body, nil)
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, datasetID, documentID string) error {
	return c.do(ctx, "DELETE", documentsPath(datasetID)+"/"+url.PathEscape(documentID), nil, nil, nil)
}

// ListDocuments returns one page of a dataset's documents. Pages are
// 1-based.
func (c *Client) ListDocuments(ctx context.Context, datasetID string, page, pageSize int) (DocumentPage, error) {
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	var out DocumentPage
	err := c.do(ctx, "GET", documentsPath(datasetID), q, nil, &out)
	return out, err
}

// ListAllDocuments pages through every document in a dataset.
func (c *Client) ListAllDocuments(ctx context.Context, datasetID string) ([]RemoteDocument, error) {
	var all []RemoteDocument
	for page := 1; page <= maxPages; page++ {
		out, err := c.ListDocuments(ctx, datasetID, page, defaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, out.Documents...)
		// The last page comes back short.
		if len(out.Documents) < defaultPageSize {
			break
		}
	}
	return all, nil
}

// DocumentCount returns the dataset's document count, falling back to the
// dataset metadata when the count endpoint is unavailable.
func (c *Client) DocumentCount(ctx context.Context, datasetID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, "GET", "/datasets/"+url.PathEscape(datasetID)+"/document-count", nil, nil, &out)
	if err == nil {
		return out.Count, nil
	}
	ds, dsErr := c.GetDataset(ctx, datasetID)
	if dsErr != nil {
		return 0, errors.Wrap(err, "document count")
	}
	return ds.DocumentCount, nil
}
