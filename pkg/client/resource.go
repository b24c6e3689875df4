package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"calendra/pkg/model"
)

type ResourceClient struct {
	httpClient *HttpClient
}

func NewResourceClient(httpClient *HttpClient) *ResourceClient {
	return &ResourceClient{httpClient: httpClient}
}

func (c *ResourceClient) Create(ctx context.Context, r model.Resource) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/resources", r)
}

func (c *ResourceClient) GetAll(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/resources?limit=%d&offset=%d", limit, offset))
}

func (c *ResourceClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/resources/id/"+url.PathEscape(id))
}

// Availability returns free intervals, or a slot grid when step is positive.
func (c *ResourceClient) Availability(ctx context.Context, id string, window model.TimeRange, step time.Duration) (*Response, error) {
	q := url.Values{}
	q.Set("start", window.Start.UTC().Format(time.RFC3339))
	q.Set("end", window.End.UTC().Format(time.RFC3339))
	if step > 0 {
		q.Set("step", step.String())
	}
	return c.httpClient.GET(ctx, "/api/v1/resources/id/"+url.PathEscape(id)+"/availability?"+q.Encode())
}
