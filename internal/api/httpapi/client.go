package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19deck/internal/app/notification"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client calls the deck HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
// A nil httpClient means http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// State returns the current playback state.
func (c *Client) State(ctx context.Context) (*notification.State, error) {
	var state notification.State
	if err := c.do(ctx, http.MethodGet, "/v1/state", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Playlist returns the playlist with the durations known so far.
func (c *Client) Playlist(ctx context.Context) (*PlaylistResponse, error) {
	var resp PlaylistResponse
	if err := c.do(ctx, http.MethodGet, "/v1/playlist", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Toggle(ctx context.Context) (*notification.State, error) {
	return c.control(ctx, "/v1/toggle", nil)
}

func (c *Client) Next(ctx context.Context) (*notification.State, error) {
	return c.control(ctx, "/v1/next", nil)
}

func (c *Client) Previous(ctx context.Context) (*notification.State, error) {
	return c.control(ctx, "/v1/previous", nil)
}

func (c *Client) Mute(ctx context.Context) (*notification.State, error) {
	return c.control(ctx, "/v1/mute", nil)
}

func (c *Client) Shuffle(ctx context.Context) (*notification.State, error) {
	return c.control(ctx, "/v1/shuffle", nil)
}

func (c *Client) Repeat(ctx context.Context) (*notification.State, error) {
	return c.control(ctx, "/v1/repeat", nil)
}

func (c *Client) Select(ctx context.Context, index int) (*notification.State, error) {
	return c.control(ctx, "/v1/select", selectRequest{Index: &index})
}

func (c *Client) Seek(ctx context.Context, seconds float64) (*notification.State, error) {
	return c.control(ctx, "/v1/seek", seekRequest{Seconds: &seconds})
}

func (c *Client) Volume(ctx context.Context, percent int) (*notification.State, error) {
	return c.control(ctx, "/v1/volume", volumeRequest{Percent: &percent})
}

// Watch reads the event stream and calls fn for every event until ctx ends,
// the stream closes or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(event string, n *notification.Notification) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to open event stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	var (
		event string
		data  []byte
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "" {
				continue
			}
			var n notification.Notification
			if err := json.Unmarshal(data, &n); err != nil {
				return errors.Wrapf(err, "failed to decode %s event", event)
			}
			if err := fn(event, &n); err != nil {
				return err
			}
			event, data = "", nil
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: ")...)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Wrap(scanner.Err(), "event stream ended")
}

func (c *Client) control(ctx context.Context, path string, body any) (*notification.State, error) {
	var state notification.State
	if err := c.do(ctx, http.MethodPost, path, body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}
	return req, nil
}

func readAPIError(resp *http.Response) error {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
