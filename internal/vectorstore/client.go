package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Caller is the single-call JSON-over-HTTP contract the scroll client
// rides on. Satisfied by *upstream.Client.
type Caller interface {
	Call(ctx context.Context, targetURL string, payload any, timeout time.Duration) (map[string]any, error)
}

// Point is one retrievable chunk record, carrying a payload of document
// metadata.
type Point struct {
	ID      any
	Payload map[string]any
}

// Page is one slice of the collection plus the cursor for the next one.
// NextOffset is nil when the store reports no further page.
type Page struct {
	Points     []Point
	NextOffset any
}

type Client struct {
	caller    Caller
	scrollURL string
	pageLimit int
	timeout   time.Duration
}

func NewClient(caller Caller, baseURL, collection string, pageLimit int, timeout time.Duration) *Client {
	if pageLimit <= 0 {
		pageLimit = 100
	}

	return &Client{
		caller:    caller,
		scrollURL: fmt.Sprintf("%s/collections/%s/points/scroll", strings.TrimRight(baseURL, "/"), collection),
		pageLimit: pageLimit,
		timeout:   timeout,
	}
}

// ScrollPage fetches one page of points. Pass nil offset for the first
// page and the previous page's NextOffset afterwards.
func (c *Client) ScrollPage(ctx context.Context, offset any) (*Page, error) {
	payload := map[string]any{
		"limit":        c.pageLimit,
		"with_payload": true,
		"with_vector":  false,
	}
	if offset != nil {
		payload["offset"] = offset
	}

	resp, err := c.caller.Call(ctx, c.scrollURL, payload, c.timeout)
	if err != nil {
		return nil, err
	}

	return decodePage(resp), nil
}

// decodePage accepts both the bare {points, next_page_offset} shape and
// the {result:{...}} wrapper some store versions produce.
func decodePage(body map[string]any) *Page {
	if wrapped, ok := body["result"].(map[string]any); ok {
		body = wrapped
	}

	page := &Page{NextOffset: body["next_page_offset"]}

	rawPoints, ok := body["points"].([]any)
	if !ok {
		return page
	}

	page.Points = make([]Point, 0, len(rawPoints))
	for _, rp := range rawPoints {
		obj, ok := rp.(map[string]any)
		if !ok {
			continue
		}
		point := Point{ID: obj["id"]}
		if payload, ok := obj["payload"].(map[string]any); ok {
			point.Payload = payload
		}
		page.Points = append(page.Points, point)
	}

	return page
}
