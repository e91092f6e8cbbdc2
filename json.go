// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	rpc "github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/toolkit"
)

const (
	maxAttempts = 3
	backoffBase = 500 * time.Millisecond
)

// gatewayClient does not reuse connections, so a restarted gateway never
// hands back an EOF from a pooled connection.
var gatewayClient = &http.Client{
	Timeout:   30 * time.Second,
	Transport: &http.Transport{DisableKeepAlives: true},
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// transient reports whether a failed POST is worth another attempt.
func transient(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "EOF")
}

// backoff waits before attempt n (counting from 0).
func backoff(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	t := time.NewTimer(backoffBase << (n - 1))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SendJSONRequest issues a JSON-RPC 2.0 call and decodes the result into
// reply. Transient transport errors are retried with exponential backoff.
// A JSON-RPC error carrying an objrpc error kind is returned as an
// *objerr.Error.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	args any,
	reply any,
	options ...Option,
) error {
	body, err := rpc.EncodeClientRequest(method, args)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()
	log := ops.log.With("method", method, "uri", target.String())
	log.Debug("json-rpc request")

	var resp *http.Response
	for n := 0; ; n++ {
		if err := backoff(ctx, n); err != nil {
			return err
		}
		resp, err = post(ctx, target.String(), ops.headers, body)
		if err == nil {
			break
		}
		retry := transient(err) && n+1 < maxAttempts
		log.Warn("json-rpc attempt failed", "attempt", n+1, "error", err, "retry", retry)
		if !retry {
			return fmt.Errorf("failed to issue request after %d attempts: %w", n+1, err)
		}
	}
	defer CleanlyCloseBody(resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("received status code: %d", resp.StatusCode)
	}
	if err := rpc.DecodeClientResponse(resp.Body, reply); err != nil {
		if remote := fromJSONError(err); remote != nil {
			return remote
		}
		return fmt.Errorf("failed to decode client response: %w", err)
	}
	return nil
}

func post(ctx context.Context, target string, headers http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	return gatewayClient.Do(req)
}

// fromJSONError recovers an *objerr.Error from a gateway error response.
func fromJSONError(err error) *objerr.Error {
	var je *rpc.Error
	if !errors.As(err, &je) {
		return nil
	}
	name, _ := je.Data.(string)
	kind, ok := objerr.ParseKind(name)
	if !ok || kind == objerr.Unknown {
		kind = objerr.Remote
	}
	return &objerr.Error{Kind: kind, Msg: je.Message}
}

// RunJSON runs a toolkit through a JSON-RPC gateway.
func RunJSON(ctx context.Context, uri *url.URL, name string, in *params.Bag, options ...Option) (toolkit.Response, error) {
	var reply toolkit.Response
	err := SendJSONRequest(ctx, uri, "Toolkit.Run", &RunArgs{Name: name, Params: in}, &reply, options...)
	return reply, err
}

// ListJSON lists the toolkits a JSON-RPC gateway serves.
func ListJSON(ctx context.Context, uri *url.URL, options ...Option) ([]toolkit.Info, error) {
	var reply ListReply
	if err := SendJSONRequest(ctx, uri, "Toolkit.List", &ListArgs{}, &reply, options...); err != nil {
		return nil, err
	}
	return reply.Toolkits, nil
}
