// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/toolkit"
)

func newGateway(t *testing.T) *url.URL {
	t.Helper()
	srv, _ := newDemoServer(t)
	h, err := NewGateway(srv.Toolkits(), quiet)
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return u
}

func TestGatewayRun(t *testing.T) {
	ctx := testContext(t)
	u := newGateway(t)

	resp, err := RunJSON(ctx, u, "demo_addone", params.NewBag().Set("x", params.MustFrom(5)), WithHeader("X-Trace", "1"), WithQueryParam("v", "1"))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	x, err := resp.Params.GetInt("x")
	require.NoError(t, err)
	assert.Equal(t, int64(6), x)

	resp, err = RunJSON(ctx, u, "demo_addone", params.NewBag().Set("x", params.MustFrom("oops")))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Regexp(t, `^x of invalid type\.`, resp.Message)

	resp, err = RunJSON(ctx, u, "demo_scale", params.NewBag().Set("values", params.MustFrom([]float64{1, 2})))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	values, err := resp.Params.GetVector("values")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, values)
}

func TestGatewayUnknownToolkit(t *testing.T) {
	u := newGateway(t)
	_, err := RunJSON(testContext(t), u, "nope", nil)
	require.Error(t, err)
	assert.True(t, objerr.Is(err, objerr.UnknownToolkit), "%v", err)
	assert.Equal(t, `unknown toolkit "nope"`, err.Error())
}

func TestGatewayListAndDescribe(t *testing.T) {
	ctx := testContext(t)
	u := newGateway(t)

	infos, err := ListJSON(ctx, u)
	require.NoError(t, err)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"demo_addone", "demo_scale", "demo_stats"}, names)

	var info toolkit.Info
	require.NoError(t, SendJSONRequest(ctx, u, "Toolkit.Describe", &DescribeArgs{Name: "demo_scale"}, &info))
	assert.Equal(t, "demo_scale", info.Name)
	factor, err := info.Defaults.GetFloat("factor")
	require.NoError(t, err)
	assert.Equal(t, 2.0, factor)
}

func TestSendJSONRequestStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)

	err = SendJSONRequest(context.Background(), u, "Toolkit.List", &ListArgs{}, &ListReply{}, WithRequestLogger(quiet))
	assert.ErrorContains(t, err, "received status code: 418")
}
