package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Call invokes method and decodes the result into result. A nil result
// discards the payload. Params are omitted from the request when none are
// given; a single param is sent as is, several as an array.
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	raw, err := c.CallRaw(ctx, method, params...)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}

	return nil
}

// CallRaw invokes method and returns the undecoded result.
func (c *Client) CallRaw(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	req := Request{
		ID:      c.requestID,
		Version: Version,
		Method:  method,
	}
	switch len(params) {
	case 0:
	case 1:
		req.Params = params[0]
	default:
		req.Params = params
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}
	if len(resp.Result) == 0 {
		return nil, ErrNoResult
	}

	return resp.Result, nil
}

// post sends one envelope and decodes the reply.
func (c *Client) post(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		if httpResp.StatusCode >= 400 {
			return nil, &HTTPError{
				StatusCode: httpResp.StatusCode,
				Status:     http.StatusText(httpResp.StatusCode),
				Body:       data,
			}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.Error == nil && len(resp.Result) == 0 && httpResp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: httpResp.StatusCode,
			Status:     http.StatusText(httpResp.StatusCode),
			Body:       data,
		}
	}

	c.logger.Debug("rpc response",
		"status", httpResp.StatusCode,
		"bytes", len(data),
	)

	return &resp, nil
}
