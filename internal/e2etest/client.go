package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/descope/virtualwebauthn"
)

type Client struct {
	client        *http.Client
	url           string
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
}

// NewClient creates a Webauthn-aware JSON client that keeps the session cookie between requests.
//
// rpID and rpOrigin should correspond to the Webauthn setup on the server.
func NewClient(url, rpID, rpOrigin string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, fmt.Errorf("create unsafe cookie jar: %w", err)
	}
	return &Client{
		client:        &http.Client{Jar: jar}, //nolint:exhaustruct // defaults are fine for tests.
		url:           url,
		rp:            virtualwebauthn.RelyingParty{Name: "z-fit", ID: rpID, Origin: rpOrigin},
		authenticator: virtualwebauthn.NewAuthenticator(),
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	for {
		resp, err := c.Get(ctx, urlPath)
		if err == nil {
			if err = resp.Body.Close(); err != nil {
				return fmt.Errorf("close response body: %w", err)
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request with context: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// DoJSON sends in JSON encoded (no body when in is nil) and decodes a successful response into out when out is not
// nil. It returns the response status code; non-2xx statuses are not errors.
func (c *Client) DoJSON(ctx context.Context, method, urlPath string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("JSON encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequestWithContext(ctx, method, urlPath, body)
	if err != nil {
		return 0, fmt.Errorf("new request with context: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("JSON decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetJSON fetches urlPath and decodes the body into out. Any status other than 200 is an error.
func (c *Client) GetJSON(ctx context.Context, urlPath string, out any) error {
	status, err := c.DoJSON(ctx, http.MethodGet, urlPath, nil, out)
	if err != nil {
		return err
	}
	return expectStatus(status, http.StatusOK)
}

// PostJSON posts in to urlPath and decodes the body into out. Any status other than 200 is an error.
func (c *Client) PostJSON(ctx context.Context, urlPath string, in, out any) error {
	status, err := c.DoJSON(ctx, http.MethodPost, urlPath, in, out)
	if err != nil {
		return err
	}
	return expectStatus(status, http.StatusOK)
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// postRaw posts a raw JSON payload and returns the response body of a 200 response.
func (c *Client) postRaw(ctx context.Context, urlPath string, payload string) ([]byte, error) {
	var body io.Reader
	if payload != "" {
		body = strings.NewReader(payload)
	}
	req, err := c.newRequestWithContext(ctx, http.MethodPost, urlPath, body)
	if err != nil {
		return nil, fmt.Errorf("new request with context: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err = expectStatus(resp.StatusCode, http.StatusOK); err != nil {
		return nil, err
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body bytes: %w", err)
	}
	return bodyBytes, nil
}

// Register registers a new WebAuthn credential with the server, which signs the client in.
func (c *Client) Register(ctx context.Context) error {
	bodyBytes, err := c.postRaw(ctx, "/api/registration/start", "")
	if err != nil {
		return fmt.Errorf("start registration: %w", err)
	}
	var attOpts *virtualwebauthn.AttestationOptions
	if attOpts, err = virtualwebauthn.ParseAttestationOptions(string(bodyBytes)); err != nil {
		return fmt.Errorf("parse attestation options: %w", err)
	}

	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestationResponse := virtualwebauthn.CreateAttestationResponse(c.rp, c.authenticator, credential, *attOpts)
	if _, err = c.postRaw(ctx, "/api/registration/finish", attestationResponse); err != nil {
		return fmt.Errorf("finish registration: %w", err)
	}

	// At this point, our credential is ready for logging in.
	c.authenticator.AddCredential(credential)
	// This option is needed for making Passkey login work.
	c.authenticator.Options.UserHandle = []byte(attOpts.UserID)
	return nil
}

// Login logs in to the server given there is a registered WebAuthn credential.
func (c *Client) Login(ctx context.Context) error {
	if len(c.authenticator.Credentials) == 0 {
		return errors.New("no registered credential")
	}
	bodyBytes, err := c.postRaw(ctx, "/api/login/start", "")
	if err != nil {
		return fmt.Errorf("start login: %w", err)
	}
	var asOpts *virtualwebauthn.AssertionOptions
	if asOpts, err = virtualwebauthn.ParseAssertionOptions(string(bodyBytes)); err != nil {
		return fmt.Errorf("parse assertion options: %w", err)
	}

	credential := c.authenticator.Credentials[0]
	asResp := virtualwebauthn.CreateAssertionResponse(c.rp, c.authenticator, credential, *asOpts)
	if _, err = c.postRaw(ctx, "/api/login/finish", asResp); err != nil {
		return fmt.Errorf("finish login: %w", err)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.postRaw(ctx, "/api/logout", ""); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
