package client

import (
	"context"
	"net/url"
	"time"

	"calendra/pkg/model"
)

type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(httpClient *HttpClient) *ReservationClient {
	return &ReservationClient{httpClient: httpClient}
}

func (c *ReservationClient) Submit(ctx context.Context, req model.ReservationRequest) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/reservations", req)
}

func (c *ReservationClient) Hold(ctx context.Context, req model.ReservationRequest, ttl time.Duration) (*Response, error) {
	body := struct {
		model.ReservationRequest
		TTLSeconds int `json:"ttl_seconds,omitempty"`
	}{req, int(ttl / time.Second)}
	return c.httpClient.POST(ctx, "/api/v1/reservations/holds", body)
}

func (c *ReservationClient) Confirm(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/reservations/id/"+url.PathEscape(id)+"/confirm", nil)
}

func (c *ReservationClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/reservations/id/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *ReservationClient) Reschedule(ctx context.Context, id string, r model.TimeRange) (*Response, error) {
	body := model.RescheduleRequest{Start: r.Start, End: r.End}
	return c.httpClient.PATCH(ctx, "/api/v1/reservations/id/"+url.PathEscape(id), body)
}

func (c *ReservationClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/reservations/id/"+url.PathEscape(id))
}

func (c *ReservationClient) ListByRequester(ctx context.Context, requesterID string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/reservations/requester/"+url.PathEscape(requesterID))
}
