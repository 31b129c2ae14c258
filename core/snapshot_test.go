package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotProposals(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, http.MethodPost, r.Method)

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "id_in")
		assert.ElementsMatch(t, []any{"0xaaa", "0xbbb"}, req.Variables["ids"])
		assert.Contains(t, req.Query, "first: $first")
		assert.Equal(t, float64(2), req.Variables["first"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"proposals":[
			{"id":"0xbbb","title":"Second","body":"b","state":"active","link":"https://snapshot.org/#/elfi.eth/proposal/0xbbb"},
			{"id":"0xaaa","title":"First","body":"a","state":"closed","link":""}
		]}}`))
	}))
	defer srv.Close()

	client := NewSnapshotClient(srv.URL, nil).WithRetry(2, time.Millisecond)
	got, err := client.Proposals(context.Background(), []string{"0xaaa", "0xbbb"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Second", got[0].Title)
	assert.Equal(t, SnapshotActive, got[0].State)
	assert.Equal(t, SnapshotClosed, got[1].State)

	got, err = client.Proposals(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestSnapshotRetry(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"proposals":[{"id":"0xaaa","state":"pending"}]}}`))
	}))
	defer srv.Close()

	got, err := NewSnapshotClient(srv.URL, nil).WithRetry(5, time.Millisecond).Proposals(context.Background(), []string{"0xaaa"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SnapshotPending, got[0].State)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestSnapshotErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"unknown space"}]}`))
	}))
	defer srv.Close()

	_, err := NewSnapshotClient(srv.URL, nil).WithRetry(1, time.Millisecond).Proposals(context.Background(), []string{"0xaaa"})
	assert.EqualError(t, err, "snapshot graphql error: unknown space")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer down.Close()

	_, err = NewSnapshotClient(down.URL, nil).WithRetry(2, time.Millisecond).Proposals(context.Background(), []string{"0xaaa"})
	assert.ErrorContains(t, err, "status code: 502")
}
