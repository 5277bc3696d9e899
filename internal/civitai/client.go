// Package civitai is a thin client for the Civitai public API: model-version
// lookup by content hash and the paginated image listing.
package civitai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://civitai.com/api/v1"

// pageSize is fixed server-side; the API caps listing pages at 100 records.
const pageSize = 100

// Sort orders accepted by the images endpoint.
const (
	SortMostReactions = "Most Reactions"
	SortMostComments  = "Most Comments"
	SortNewest        = "Newest"
)

// NormalizeSort maps any unknown sort order to SortNewest before a request
// is sent.
func NormalizeSort(s string) string {
	switch s {
	case SortMostReactions, SortMostComments, SortNewest:
		return s
	default:
		return SortNewest
	}
}

// ModelVersion is the remote record resolved from a content digest.
type ModelVersion struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	ModelID      int64    `json:"modelId"`
	TrainedWords []string `json:"trainedWords"`
}

// ImageMeta carries the community-submitted generation parameters; only the
// prompt pair matters here.
type ImageMeta struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt"`
}

// ImageItem is one record of an images page.
type ImageItem struct {
	ID   int64      `json:"id"`
	Meta *ImageMeta `json:"meta"`
}

// ImagePage is one page of the images listing.
type ImagePage struct {
	Items []ImageItem `json:"items"`
}

// PermanentError marks request failures that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Client issues requests against one API root. The per-attempt timeout is
// the caller's responsibility via the request context.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// VersionByHash resolves a content digest to its model version. A 404 or a
// response without a usable id is reported as (nil, nil): the remote service
// has no record for this file.
func (c *Client) VersionByHash(ctx context.Context, digest string) (*ModelVersion, error) {
	u := c.baseURL + "/model-versions/by-hash/" + url.PathEscape(digest)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("civitai: model version by hash: %w", err)
	}
	var v ModelVersion
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("civitai: decode model version: %w", err)
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

// ImagesPage fetches one page of the images listing for a model version.
// The sort order is normalized before the request.
func (c *Client) ImagesPage(ctx context.Context, versionID int64, page int, sort string) (*ImagePage, error) {
	q := url.Values{}
	q.Set("modelVersionId", strconv.FormatInt(versionID, 10))
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", NormalizeSort(sort))

	resp, err := c.get(ctx, c.baseURL+"/images?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("civitai: images page %d: %w", page, err)
	}
	var p ImagePage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("civitai: decode images page %d: %w", page, err)
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// statusError classifies non-2xx responses. Client errors other than 408 and
// 429 are permanent; everything else stays retryable.
func statusError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("unexpected status %s", resp.Status)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout &&
		resp.StatusCode != http.StatusTooManyRequests {
		return &PermanentError{Err: err}
	}
	return err
}

// WithTimeout bounds a single request attempt.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
