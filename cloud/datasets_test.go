package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndx-io/NDX/errors"
)

func TestCreateDataset(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id":"ds_new","name":"probe run"}`))
	}))

	ds, err := client.CreateDataset(context.Background(), "probe run", "recordings from rig A")
	require.NoError(t, err)

	assert.Equal(t, "/organizations/org_1/datasets", gotPath)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "probe run", gotBody["name"])
	assert.Equal(t, "recordings from rig A", gotBody["description"])
	assert.Equal(t, "ds_new", ds.ID)
}

func TestCreateDataset_RequiresOrg(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.CreateDataset(context.Background(), "x", "")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestGetDataset(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ds_1", r.URL.Path)
		w.Write([]byte(`{"id":"ds_1","name":"probe run","documentCount":42,"published":true}`))
	}))

	ds, err := client.GetDataset(context.Background(), "ds_1")
	require.NoError(t, err)
	assert.Equal(t, "ds_1", ds.ID)
	assert.Equal(t, 42, ds.DocumentCount)
	assert.True(t, ds.Published)
}

func TestUpdateDataset(t *testing.T) {
	var gotMethod string
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateDataset(context.Background(), "ds_1", map[string]any{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "PUT", gotMethod)
	assert.Equal(t, "renamed", gotBody["name"])
}

func TestDeleteDataset(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.DeleteDataset(context.Background(), "ds_1"))
	assert.Equal(t, "DELETE", gotMethod)
	assert.Equal(t, "/datasets/ds_1", gotPath)
}

func TestListDatasets(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/org_1/datasets", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))
		w.Write([]byte(`{"datasets":[{"id":"ds_51"}],"totalNumber":51}`))
	}))

	page, err := client.ListDatasets(context.Background(), 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 51, page.TotalNumber)
	require.Len(t, page.Datasets, 1)
	assert.Equal(t, "ds_51", page.Datasets[0].ID)
}

func TestListDatasets_RequiresOrg(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.ListDatasets(context.Background(), 1, 10)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestListAllDatasets(t *testing.T) {
	total := defaultPageSize + 3
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

		start := (page - 1) * size
		end := start + size
		if end > total {
			end = total
		}
		datasets := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			datasets = append(datasets, map[string]any{"id": fmt.Sprintf("ds_%04d", i)})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"datasets":    datasets,
			"totalNumber": total,
		})
	}))

	all, err := client.ListAllDatasets(context.Background())
	require.NoError(t, err)
	require.Len(t, all, total)
	assert.Equal(t, "ds_0000", all[0].ID)
	assert.Equal(t, fmt.Sprintf("ds_%04d", total-1), all[total-1].ID)
}

func TestListAllDatasets_Empty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"datasets":[],"totalNumber":0}`))
	}))

	all, err := client.ListAllDatasets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPublishDataset(t *testing.T) {
	var gotPaths []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		gotPaths = append(gotPaths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.PublishDataset(context.Background(), "ds_1"))
	require.NoError(t, client.UnpublishDataset(context.Background(), "ds_1"))
	assert.Equal(t, []string{"/datasets/ds_1/publish", "/datasets/ds_1/unpublish"}, gotPaths)
}
