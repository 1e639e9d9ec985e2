package cloud

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

type presignedResponse struct {
	URL string `json:"url"`
}

// UploadURL requests a presigned PUT URL for a file identified by its UID
// within a dataset.
func (c *Client) UploadURL(ctx context.Context, datasetID, fileUID string) (string, error) {
	if c.orgID == "" {
		return "", errors.NewInvalidRequestError("no organization configured")
	}
	var out presignedResponse
	path := "/datasets/" + url.PathEscape(c.orgID) + "/" + url.PathEscape(datasetID) +
		"/files/" + url.PathEscape(fileUID)
	if err := c.do(ctx, "GET", path, nil, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.Newf("no upload URL returned for file %s", fileUID)
	}
	return out.URL, nil
}

// DownloadURL requests the presigned GET URL for a stored file.
func (c *Client) DownloadURL(ctx context.Context, datasetID, fileUID string) (string, error) {
	var out presignedResponse
	path := "/datasets/" + url.PathEscape(datasetID) +
		"/files/" + url.PathEscape(fileUID) + "/detail"
	if err := c.do(ctx, "GET", path, nil, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "file %s has no download URL", fileUID)
	}
	return out.URL, nil
}

// PutFile streams content to a presigned URL. Presigned requests carry
// their auth in the URL, so no bearer header is sent.
func (c *Client) PutFile(ctx context.Context, presignedURL string, content io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, "PUT", presignedURL, content)
	if err != nil {
		return errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "upload file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("file upload failed (HTTP %d): %s", resp.StatusCode, string(body))
	}
	c.logger.Debugw("File uploaded",
		"symbol", sym.Cloud,
		"bytes", size,
	)
	return nil
}

// GetFile streams a presigned URL's content into w and returns the byte
// count.
func (c *Client) GetFile(ctx context.Context, presignedURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", presignedURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build download request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusNotFound {
			return 0, errors.Wrapf(errors.ErrNotFound, "HTTP 404: %s", string(body))
		}
		return 0, errors.Newf("file download failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Wrap(err, "stream file")
	}
	c.logger.Debugw("File downloaded",
		"symbol", sym.Cloud,
		"bytes", n,
	)
	return n, nil
}
