package poscake

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shipfee-agent/internal/orders"
)

const nearbyBody = `{
	"success": true,
	"data": {
		"orders": [
			{"order_info": {"id": 9001, "status": 1, "shipping_fee": 30000}, "items": [{"sku": "A"}]}
		]
	}
}`

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)

	c, err := NewClient("http://pos.local/")
	require.NoError(t, err)
	require.Equal(t, "http://pos.local", c.baseURL)
	require.Equal(t, 15*time.Second, c.httpClient.Timeout)
}

func TestFetchByConversation_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, nearByConversationPath, r.URL.Path)
		require.Equal(t, "conv_1", r.URL.Query().Get("conversation_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nearbyBody))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	raw, err := c.FetchByConversation(context.Background(), "conv_1")
	require.NoError(t, err)
	require.JSONEq(t, nearbyBody, string(raw))

	snap, err := orders.Decode(raw)
	require.NoError(t, err)
	require.Len(t, snap.Orders, 1)
	require.Equal(t, "9001", string(snap.Orders[0].Info.ID))
}

func TestFetchByConversation_Errors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		isMissing bool
		isInvalid bool
		isStatus  bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{}`, isMissing: true},
		{name: "server error", status: http.StatusInternalServerError, body: `boom`, isStatus: true},
		{name: "not json", status: http.StatusOK, body: `<html>`, isInvalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL)
			require.NoError(t, err)
			_, err = c.FetchByConversation(context.Background(), "conv_1")
			require.Error(t, err)
			require.Equal(t, tc.isMissing, errors.Is(err, orders.ErrSourceNotFound))
			require.Equal(t, tc.isInvalid, errors.Is(err, orders.ErrInvalidSnapshot))
			var statusErr *HTTPStatusError
			require.Equal(t, tc.isStatus, errors.As(err, &statusErr))
		})
	}
}

func TestFetchByConversation_EmptyID(t *testing.T) {
	c, err := NewClient("http://pos.local")
	require.NoError(t, err)
	_, err = c.FetchByConversation(context.Background(), " ")
	require.Error(t, err)
}

func TestFetchByConversation_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(nearbyBody))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)
	_, err = c.FetchByConversation(context.Background(), "conv_1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
