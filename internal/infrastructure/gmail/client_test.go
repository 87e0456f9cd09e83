package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	appsync "mailfootprint/internal/application/sync"
	"mailfootprint/internal/domain/email"
)

var cred = email.Credential{Value: "access-1"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", zerolog.Nop())
}

func TestListPage(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "INBOX", q.Get("labelIds"))
		assert.Equal(t, "100", q.Get("maxResults"))
		seen = append(seen, q.Get("pageToken"))

		w.Header().Set("Content-Type", "application/json")
		if q.Get("pageToken") == "" {
			w.Write([]byte(`{"messages":[{"id":"a"},{"id":"b"}],"nextPageToken":"p2"}`))
			return
		}
		w.Write([]byte(`{"messages":[{"id":"c"}]}`))
	})

	page, err := c.ListPage(context.Background(), cred, "INBOX", "", 100)
	require.NoError(t, err)
	require.Equal(t, email.Page{Refs: []email.MessageRef{{ID: "a"}, {ID: "b"}}, NextPageToken: "p2"}, page)

	page, err = c.ListPage(context.Background(), cred, "INBOX", "p2", 100)
	require.NoError(t, err)
	require.Equal(t, email.Page{Refs: []email.MessageRef{{ID: "c"}}}, page)
	require.Equal(t, []string{"", "p2"}, seen)
}

func TestGetMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "metadata", q.Get("format"))
		assert.Equal(t, []string{"From", "To", "Date"}, q["metadataHeaders"])

		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/") {
		case "ok":
			w.Write([]byte(`{"id":"ok","labelIds":["SENT"],"payload":{"headers":[{"name":"To","value":"b@x.io"},{"name":"Date","value":"Tue, 4 Mar 2025 12:00:00 +0000"}]}}`))
		case "bare":
			w.Write([]byte(`{"id":"bare","labelIds":["INBOX"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		}
	})

	d, err := c.GetMetadata(context.Background(), cred, "ok", email.MetadataHeaders)
	require.NoError(t, err)
	require.False(t, d.Malformed)
	require.Equal(t, []string{"SENT"}, d.LabelIDs)
	require.Equal(t, "b@x.io", email.HeaderValue(d.Headers, "To"))

	d, err = c.GetMetadata(context.Background(), cred, "bare", email.MetadataHeaders)
	require.NoError(t, err)
	require.True(t, d.Malformed)

	_, err = c.GetMetadata(context.Background(), cred, "gone", email.MetadataHeaders)
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Code)
}

func TestLabelTotal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/labels/SENT", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"SENT","name":"SENT","messagesTotal":321}`))
	})

	n, err := c.LabelTotal(context.Background(), cred, "SENT")
	require.NoError(t, err)
	require.Equal(t, 321, n)
}

func TestBreakerTripsOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":503,"message":"backend error"}}`))
	})

	for range 6 {
		_, err := c.ListPage(context.Background(), cred, "INBOX", "", 100)
		require.Error(t, err)
	}
	_, err := c.ListPage(context.Background(), cred, "INBOX", "", 100)
	require.True(t, errors.Is(err, gobreaker.ErrOpenState))
	require.ErrorIs(t, err, email.ErrMailboxUnavailable)
	require.EqualValues(t, 6, hits.Load())
}

func TestOpenBreakerFailsDetailFetch(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) <= 6 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"backend error"}}`))
			return
		}
		w.Write([]byte(`{"id":"m","labelIds":["INBOX"],"payload":{"headers":[{"name":"From","value":"a@x.io"}]}}`))
	})

	refs := make([]email.MessageRef, 50)
	for i := range refs {
		refs[i] = email.MessageRef{ID: fmt.Sprintf("m%d", i)}
	}

	f := appsync.NewFetcher(c, 1, 0, zerolog.Nop())
	got, err := f.FetchDetails(context.Background(), cred, refs)
	require.ErrorIs(t, err, email.ErrMailboxUnavailable)
	require.Nil(t, got)
	require.EqualValues(t, 6, hits.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	})

	for range 10 {
		_, err := c.GetMetadata(context.Background(), cred, "x", email.MetadataHeaders)
		var apiErr *googleapi.Error
		require.ErrorAs(t, err, &apiErr)
	}
	require.EqualValues(t, 10, hits.Load())
}
