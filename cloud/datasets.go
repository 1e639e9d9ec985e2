package cloud

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ndx-io/NDX/errors"
)

// Dataset is a remote dataset's metadata.
type Dataset struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DocumentCount int       `json:"documentCount"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DatasetPage is one page of a dataset listing.
type DatasetPage struct {
	Datasets    []Dataset `json:"datasets"`
	TotalNumber int       `json:"totalNumber"`
}

const (
	defaultPageSize = 1000
	maxPages        = 1000
)

// CreateDataset creates a dataset under the client's organization.
func (c *Client) CreateDataset(ctx context.Context, name, description string) (Dataset, error) {
	if c.orgID == "" {
		return Dataset{}, errors.NewInvalidRequestError("no organization configured")
	}
	body := map[string]string{"name": name}
	if description != "" {
		body["description"] = description
	}
	var ds Dataset
	err := c.do(ctx, "POST", "/organizations/"+url.PathEscape(c.orgID)+"/datasets", nil, body, &ds)
	return ds, err
}

// GetDataset fetches a dataset's metadata.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (Dataset, error) {
	var ds Dataset
	err := c.do(ctx, "GET", "/datasets/"+url.PathEscape(datasetID), nil, nil, &ds)
	return ds, err
}

// UpdateDataset updates named fields on a dataset.
func (c *Client) UpdateDataset(ctx context.Context, datasetID string, fields map[string]any) error {
	return c.do(ctx, "PUT", "/datasets/"+url.PathEscape(datasetID), nil, fields, nil)
}

// DeleteDataset removes a dataset.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	return c.do(ctx, "DELETE", "/datasets/"+url.PathEscape(datasetID), nil, nil, nil)
}

// ListDatasets returns one page of the organization's datasets. Pages are
// 1-based.
func (c *Client) ListDatasets(ctx context.Context, page, pageSize int) (DatasetPage, error) {
	if c.orgID == "" {
		return DatasetPage{}, errors.NewInvalidRequestError("no organization configured")
	}
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	var out DatasetPage
	err := c.do(ctx, "GET", "/organizations/"+url.PathEscape(c.orgID)+"/datasets", q, nil, &out)
	return out, err
}

// ListAllDatasets pages through every dataset the organization owns.
func (c *Client) ListAllDatasets(ctx context.Context) ([]Dataset, error) {
	var all []Dataset
	for page := 1; page <= maxPages; page++ {
		out, err := c.ListDatasets(ctx, page, defaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, out.Datasets...)
		if len(all) >= out.TotalNumber || len(out.Datasets) == 0 {
			break
		}
	}
	return all, nil
}

// PublishDataset makes a dataset publicly readable.
func (c *Client) PublishDataset(ctx context.Context, datasetID string) error {
	return c.do(ctx, "POST", "/datasets/"+url.PathEscape(datasetID)+"/publish", nil, nil, nil)
}

// UnpublishDataset retracts a published dataset.
func (c *Client) UnpublishDataset(ctx context.Context, datasetID string) error {
	return c.do(ctx, "POST", "/datasets/"+url.PathEscape(datasetID)+"/unpublish", nil, nil, nil)
}
