// internal/falcon/client.go — HTTP implementation of Client
package falcon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog"

	"github.com/joshsymonds/hostsweep/internal/rate"
)

const (
	hostQueryPath    = "/devices/queries/devices/v1"
	hostEntitiesPath = "/devices/entities/devices/v1"
)

// APIClient talks to the management API over HTTP. The *http.Client it is
// handed must already inject bearer credentials (see internal/runtime).
type APIClient struct {
	httpc     *http.Client
	baseURL   string
	userAgent string
	limiter   rate.Limiter
	log       zerolog.Logger
}

// NewAPIClient wraps an authenticated HTTP client for the given API base URL.
func NewAPIClient(httpc *http.Client, baseURL, userAgent string, limiter rate.Limiter, log zerolog.Logger) *APIClient {
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &APIClient{
		httpc:     httpc,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limiter:   limiter,
		log:       log,
	}
}

type pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

type responseMeta struct {
	Pagination pagination `json:"pagination"`
}

type queryResponse struct {
	Meta      responseMeta `json:"meta"`
	Resources []string     `json:"resources"`
}

type hostEntitiesResponse struct {
	Resources []HostRecord `json:"resources"`
}

type policyEntitiesResponse struct {
	Resources []Policy `json:"resources"`
}

// QueryHostIDs pages through the device id listing until the API reports the
// inventory exhausted.
func (c *APIClient) QueryHostIDs(ctx context.Context, pageSize int) ([]HostID, error) {
	raw, err := c.queryAll(ctx, hostQueryPath, pageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]HostID, len(raw))
	for i, r := range raw {
		ids[i] = HostID(r)
	}
	return ids, nil
}

// GetHostDetails fetches full device records for one batch of ids. The caller
// is responsible for keeping the batch small enough for a single request.
func (c *APIClient) GetHostDetails(ctx context.Context, ids []HostID) ([]HostRecord, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", string(id))
	}
	var res hostEntitiesResponse
	if err := c.get(ctx, hostEntitiesPath, q, &res); err != nil {
		return nil, err
	}
	c.log.Debug().Int("requested", len(ids)).Int("returned", len(res.Resources)).Msg("fetched host details")
	return res.Resources, nil
}

// QueryPolicyIDs enumerates every policy id of the given kind.
func (c *APIClient) QueryPolicyIDs(ctx context.Context, kind PolicyKind, pageSize int) ([]string, error) {
	return c.queryAll(ctx, kind.queryPath(), pageSize)
}

// GetPolicyDetails fetches detail objects for the given policy ids in one
// request. Policy counts are small relative to host counts, so the id list is
// deliberately not chunked.
func (c *APIClient) GetPolicyDetails(ctx context.Context, kind PolicyKind, ids []string) ([]Policy, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	var res policyEntitiesResponse
	if err := c.get(ctx, kind.entitiesPath(), q, &res); err != nil {
		return nil, err
	}
	return res.Resources, nil
}

// queryAll accumulates every resource behind a paginated query endpoint. The
// returned meta offset echoes the requested page start; the loop stops once
// that offset reaches the reported total or the API hands back an empty page,
// whichever comes first.
func (c *APIClient) queryAll(ctx context.Context, path string, pageSize int) ([]string, error) {
	var all []string
	offset := 0
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		var page queryResponse
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Resources...)
		p := page.Meta.Pagination
		c.log.Debug().Str("path", path).Int("offset", p.Offset).Int("total", p.Total).
			Int("page", len(page.Resources)).Msg("fetched page")
		if p.Offset >= p.Total || len(page.Resources) == 0 {
			break
		}
		offset += len(page.Resources)
	}
	return all, nil
}

func (c *APIClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, 0)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return &TransientError{Endpoint: path, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Endpoint: path, Code: res.StatusCode}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &MalformedResponseError{Endpoint: path, Err: err}
	}
	return nil
}

var _ Client = (*APIClient)(nil)
