package stilling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultLookupTimeout = 5 * time.Second

type stillingResponse struct {
	Stilling struct {
		Title    string `json:"title"`
		Employer *struct {
			Name string `json:"name"`
		} `json:"employer"`
		BusinessName string `json:"businessName"`
	} `json:"stilling"`
}

// Client reads stillinger from the stilling API.
type Client struct {
	client  *resty.Client
	baseURL string
}

func NewClient(baseURL string) (*Client, error) {
	client := resty.New()
	client.SetTimeout(defaultLookupTimeout)
	client.SetRetryCount(0)

	return NewClientWithResty(baseURL, client)
}

func NewClientWithResty(baseURL string, client *resty.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("stilling api url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid stilling api url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultLookupTimeout)
	}

	return &Client{client: client, baseURL: trimmed}, nil
}

func (c *Client) Get(ctx context.Context, stillingID string) (*Info, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("stilling client is not initialized")
	}
	if strings.TrimSpace(stillingID) == "" {
		return nil, fmt.Errorf("stilling id is required")
	}

	var body stillingResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParam("id", stillingID).
		SetResult(&body).
		Get(c.baseURL + "/stilling/{id}")
	if err != nil {
		return nil, &LookupError{
			StillingID: stillingID,
			Message:    "request failed",
			Transient:  !errors.Is(err, context.Canceled),
			Cause:      err,
		}
	}

	switch status := response.StatusCode(); {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, stillingID)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return nil, &LookupError{
			StillingID: stillingID,
			StatusCode: status,
			Message:    strings.TrimSpace(response.String()),
			Transient:  status == http.StatusTooManyRequests || status >= http.StatusInternalServerError,
		}
	}

	info := &Info{Title: strings.TrimSpace(body.Stilling.Title)}
	if body.Stilling.Employer != nil {
		info.Employer = strings.TrimSpace(body.Stilling.Employer.Name)
	}
	if info.Employer == "" {
		info.Employer = strings.TrimSpace(body.Stilling.BusinessName)
	}
	if info.Title == "" {
		return nil, &LookupError{StillingID: stillingID, Message: "stilling has no title"}
	}

	return info, nil
}
