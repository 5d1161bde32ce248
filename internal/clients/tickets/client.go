package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/pkg/config"
	"github.com/samandr77/microservices/ticketflow/pkg/logger"
	"github.com/samandr77/microservices/ticketflow/pkg/transport"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.API, tokens transport.TokenSource) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.HTTPClient.Transport = transport.NewRoundTripper(http.DefaultTransport, tokens)
	retryClient.Logger = nil
	retryClient.CheckRetry = retryReads
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    retryClient.StandardClient(),
	}
}

// retryReads retries transport failures for every method, but 5xx/429 only for GET.
// Status based decisions never return an error so the last response reaches the caller.
func retryReads(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	if resp.Request != nil && resp.Request.Method == http.MethodGet {
		retry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, nil)
		return retry, nil
	}

	return false, nil
}

// APIError is a non-2xx answer. Err is set to the matching entity sentinel for 401, 403 and 404.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected status code: %d, message: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// ServerMessage returns the message the API attached to a failed response, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return ""
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, creds entity.Credentials) (entity.AuthResult, error) {
	var res entity.AuthResult

	err := c.do(ctx, http.MethodPost, "/auth/login", creds, &res)
	if err != nil {
		return entity.AuthResult{}, fmt.Errorf("login: %w", err)
	}

	return res, nil
}

func (c *Client) Register(ctx context.Context, reg entity.Registration) (entity.AuthResult, error) {
	var res entity.AuthResult

	err := c.do(ctx, http.MethodPost, "/auth/register", reg, &res)
	if err != nil {
		return entity.AuthResult{}, fmt.Errorf("register: %w", err)
	}

	return res, nil
}

func (c *Client) Tickets(ctx context.Context) ([]entity.Ticket, error) {
	var tickets []entity.Ticket

	err := c.do(ctx, http.MethodGet, "/tickets", nil, &tickets)
	if err != nil {
		return nil, fmt.Errorf("get tickets: %w", err)
	}

	return tickets, nil
}

func (c *Client) Ticket(ctx context.Context, id string) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id), nil, &ticket)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("get ticket %q: %w", id, err)
	}

	return ticket, nil
}

func (c *Client) CreateTicket(ctx context.Context, t entity.NewTicket) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := c.do(ctx, http.MethodPost, "/tickets", t, &ticket)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}

	return ticket, nil
}

type updateStatusRequest struct {
	Status entity.Status `json:"status"`
}

func (c *Client) UpdateTicketStatus(ctx context.Context, id string, status entity.Status) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := c.do(ctx, http.MethodPut, "/tickets/"+url.PathEscape(id), updateStatusRequest{Status: status}, &ticket)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("update ticket %q status: %w", id, err)
	}

	return ticket, nil
}

func (c *Client) DeleteTicket(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/tickets/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return fmt.Errorf("delete ticket %q: %w", id, err)
	}

	return nil
}

func (c *Client) Comments(ctx context.Context, ticketID string) ([]entity.Comment, error) {
	var comments []entity.Comment

	err := c.do(ctx, http.MethodGet, "/comments/"+url.PathEscape(ticketID), nil, &comments)
	if err != nil {
		return nil, fmt.Errorf("get ticket %q comments: %w", ticketID, err)
	}

	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, comment entity.NewComment) (entity.Comment, error) {
	var created entity.Comment

	err := c.do(ctx, http.MethodPost, "/comments", comment, &created)
	if err != nil {
		return entity.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	return created, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if logger.RequestIDFromCtx(ctx) == "" {
		ctx = logger.WithRequestID(ctx, uuid.Must(uuid.NewV4()).String())
	}

	var body io.Reader

	if in != nil {
		j, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		body = bytes.NewReader(j)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp.StatusCode, respBody)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func newAPIError(code int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: code}

	var data errorResponse
	if json.Unmarshal(body, &data) == nil {
		apiErr.Message = data.Message
	}

	switch code {
	case http.StatusUnauthorized:
		apiErr.Err = entity.ErrUnauthorized
	case http.StatusForbidden:
		apiErr.Err = entity.ErrForbidden
	case http.StatusNotFound:
		apiErr.Err = entity.ErrNotFound
	}

	return apiErr
}
