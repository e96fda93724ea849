//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/sos-laser/internal/api/http/controller"
	"github.com/oshokin/sos-laser/internal/config"
	"github.com/oshokin/sos-laser/internal/version"
)

// maxResponseBytes bounds a controller response body.
const maxResponseBytes = 64 << 10

// Client calls the controller HTTP command interface.
type Client struct {
	// baseURL is the controller root, e.g. http://192.168.4.1:80.
	baseURL string
	// http performs the requests.
	http *http.Client
	// actor is advertised in the User-Agent header when set.
	actor *Actor

	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for controller calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithActor sends the actor along with every command.
func WithActor(actor *Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// ErrNotFound is returned when the controller does not know the route.
	ErrNotFound = errors.New("controller route not found")
	// ErrUnexpectedStatus is returned for any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected controller response status")
	// ErrControllerFault is returned, along with ErrUnexpectedStatus, when the controller answers 500.
	ErrControllerFault = errors.New("controller reported a fault")

	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
)

// New creates a client for the controller at address (host:port).
func New(address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		baseURL:     "http://" + address,
		http:        http.DefaultClient,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// TriggerSignal starts the SOS emission and returns the acknowledgement,
// which arrives before the first pulse.
func (c *Client) TriggerSignal(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.call(ctx, api.RouteSignal)
	if err != nil {
		return nil, fmt.Errorf("trigger signal: %w", err)
	}

	return resp, nil
}

// TriggerTest fires the test pulse and returns once it has finished.
func (c *Client) TriggerTest(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.call(ctx, api.RouteTest)
	if err != nil {
		return nil, fmt.Errorf("trigger test: %w", err)
	}

	return resp, nil
}

// Status reads the controller status report.
func (c *Client) Status(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.call(ctx, api.RouteStatus)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return resp, nil
}

// Call requests an arbitrary route and decodes the JSON acknowledgement.
func (c *Client) Call(ctx context.Context, route string) (*structpb.Struct, error) {
	return c.call(ctx, route)
}

func (c *Client) call(ctx context.Context, route string) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+route, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if c.actor != nil {
		req.Header.Set("User-Agent", version.UserAgent("sos-trigger", c.actor.String()))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedStatus, ErrControllerFault)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	result := new(structpb.Struct)
	if err = protojson.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
