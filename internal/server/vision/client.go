// Package vision is a client for the Volcengine visual CV API, limited to
// the saliency segmentation call used for background removal.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/dmitrijs2005/photomagic/internal/server/signer"
)

const (
	DefaultEndpoint = "https://visual.volcengineapi.com"

	actionProcess  = "CVProcess"
	apiVersion     = "2022-08-31"
	reqKeySaliency = "saliency_seg"

	// CodeSuccess is the business code of a successful call.
	CodeSuccess = 10000
	// CodeAccessDenied means the account may not call the service.
	CodeAccessDenied = 50400

	watermarkText = "Photo Magic"

	// connectionProbeImage is sent by TestConnection. The service answers
	// with a business error for it, which still proves reachability and a
	// valid signature.
	connectionProbeImage = "https://example.com/test.jpg"

	maxErrorBody = 4 << 10
)

var ErrEmptyResult = errors.New("empty result")

type Options struct {
	Endpoint    string
	Credentials signer.Credentials
	Scope       signer.Scope
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      logging.Logger
	Now         func() time.Time
}

// Client calls the vision API. It is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	creds    signer.Credentials
	scope    signer.Scope
	http     *http.Client
	logger   logging.Logger
	now      func() time.Time
}

// Result is the first image returned by a successful call, still base64
// encoded.
type Result struct {
	ImageBase64 string
	RequestID   string
}

// New validates opts and builds a Client. Missing credentials are a
// configuration error.
func New(opts Options) (*Client, error) {
	if !opts.Credentials.Valid() {
		return nil, signer.ErrMissingCredentials
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("vision: invalid endpoint %q", opts.Endpoint)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Client{
		endpoint: u,
		creds:    opts.Credentials,
		scope:    opts.Scope,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

type logoInfo struct {
	AddLogo         bool    `json:"add_logo"`
	Position        int     `json:"position"`
	Language        int     `json:"language"`
	Opacity         float64 `json:"opacity"`
	LogoTextContent string  `json:"logo_text_content"`
}

type processRequest struct {
	ReqKey     string   `json:"req_key"`
	ImageURLs  []string `json:"image_urls"`
	OnlyMask   int      `json:"only_mask"`
	RefineMask int      `json:"refine_mask"`
	RGB        []int    `json:"rgb"`
	LogoInfo   logoInfo `json:"logo_info"`
}

type responseMetadata struct {
	RequestID string `json:"RequestId"`
	Error     *struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Error"`
}

type processResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	// Gateway errors arrive here instead of code/message.
	ResponseMetadata responseMetadata `json:"ResponseMetadata"`
	Data             struct {
		BinaryDataBase64 []string `json:"binary_data_base64"`
	} `json:"data"`
}

// removeBackgroundRequest asks for an original-size BGRA foreground on a
// transparent background. Unentitled callers get a bottom-right English
// watermark.
func removeBackgroundRequest(imageURL string, entitled bool) processRequest {
	return processRequest{
		ReqKey:     reqKeySaliency,
		ImageURLs:  []string{imageURL},
		OnlyMask:   3,
		RefineMask: 0,
		RGB:        []int{-1, -1, -1},
		LogoInfo: logoInfo{
			AddLogo:         !entitled,
			Position:        0,
			Language:        1,
			Opacity:         0.3,
			LogoTextContent: watermarkText,
		},
	}
}

// RemoveBackground makes one call for imageURL. It does not retry.
func (c *Client) RemoveBackground(ctx context.Context, imageURL string, entitled bool) (*Result, error) {
	body, err := json.Marshal(removeBackgroundRequest(imageURL, entitled))
	if err != nil {
		return nil, fmt.Errorf("vision: marshal request: %w", err)
	}

	req, err := c.newSignedRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out processResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("vision: decode response: %w", err)
	}

	if e := out.ResponseMetadata.Error; e != nil && e.Code != "" {
		return nil, &BusinessError{
			Code:        out.Code,
			GatewayCode: e.Code,
			Message:     e.Message,
			RequestID:   out.ResponseMetadata.RequestID,
		}
	}
	if out.Code != CodeSuccess {
		return nil, &BusinessError{Code: out.Code, Message: out.Message, RequestID: out.RequestID}
	}
	if len(out.Data.BinaryDataBase64) == 0 || out.Data.BinaryDataBase64[0] == "" {
		return nil, &BusinessError{Code: out.Code, Message: ErrEmptyResult.Error(), RequestID: out.RequestID}
	}

	if c.logger != nil {
		c.logger.Debug(ctx, "vision call succeeded", "request_id", out.RequestID)
	}

	return &Result{ImageBase64: out.Data.BinaryDataBase64[0], RequestID: out.RequestID}, nil
}

// TestConnection sends a probe request. A business error from the service
// itself counts as success because the call was authenticated. Transport
// failures and authorization errors do not.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.RemoveBackground(ctx, connectionProbeImage, true)
	var be *BusinessError
	if err == nil || (errors.As(err, &be) && !be.AuthFailure()) {
		return nil
	}
	return err
}

func (c *Client) newSignedRequest(ctx context.Context, body []byte) (*http.Request, error) {
	timestamp := signer.FormatTimestamp(c.now())
	query := url.Values{"Action": {actionProcess}, "Version": {apiVersion}}
	headers := map[string]string{
		"Content-Type":     "application/json",
		"Host":             c.endpoint.Host,
		"X-Date":           timestamp,
		"X-Content-Sha256": signer.HashHex(body),
	}

	path := c.endpoint.Path
	if path == "" {
		path = "/"
	}

	signed, err := signer.Sign(signer.Request{
		Method:    http.MethodPost,
		Path:      path,
		Query:     query,
		Headers:   headers,
		Body:      body,
		Timestamp: timestamp,
	}, c.creds, c.scope)
	if err != nil {
		return nil, err
	}

	u := *c.endpoint
	u.Path = path
	u.RawQuery = signed.CanonicalQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vision: build request: %w", err)
	}
	for k, v := range headers {
		if k == "Host" {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", signed.Authorization)

	return req, nil
}
