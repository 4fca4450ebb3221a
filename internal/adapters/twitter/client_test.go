package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echowatch/internal/adapters/config"
	pkgerrors "echowatch/pkg/errors"
)

func testClient(baseURL string) *Client {
	return NewClient(config.TwitterConfig{
		BearerToken:       "test-token",
		BaseURL:           baseURL,
		RequestsPerMinute: 6000, // effectively unlimited for tests
	})
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, `"ai podcast" -is:retweet lang:en`, BuildQuery("ai podcast"))
	assert.Equal(t, "golang -is:retweet lang:en", BuildQuery("golang"))
}

func TestSearchRecent_SinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"id": "1", "text": "first"},
				{"id": "2", "text": "second"},
			},
			"meta": map[string]interface{}{"result_count": 2},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	result, err := client.SearchRecent(context.Background(), "q", 100, 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, result.TweetIDs)
	assert.Equal(t, 1, result.APICalls)
}

func TestSearchRecent_PaginatesAndCountsCalls(t *testing.T) {
	page := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		switch page {
		case 1:
			assert.Empty(t, r.URL.Query().Get("next_token"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "1"}},
				"meta": map[string]interface{}{"result_count": 1, "next_token": "page2"},
			})
		default:
			assert.Equal(t, "page2", r.URL.Query().Get("next_token"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "2"}},
				"meta": map[string]interface{}{"result_count": 1},
			})
		}
	}))
	defer server.Close()

	client := testClient(server.URL)
	result, err := client.SearchRecent(context.Background(), "q", 10, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, result.TweetIDs)
	assert.Equal(t, 2, result.APICalls)
}

func TestSearchRecent_StopsAtMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"id": "1"}, {"id": "2"}},
			"meta": map[string]interface{}{"result_count": 2, "next_token": "more"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	result, err := client.SearchRecent(context.Background(), "q", 2, 100)
	require.NoError(t, err)

	assert.Len(t, result.TweetIDs, 2)
	assert.Equal(t, 1, result.APICalls)
}

func TestSearchRecent_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.SearchRecent(context.Background(), "q", 100, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrRateLimitExceeded))
}

func TestPostReply_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var payload postRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello", payload.Text)
		require.NotNil(t, payload.Reply)
		assert.Equal(t, "12345", payload.Reply.InReplyToTweetID)

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := testClient(server.URL)
	require.NoError(t, client.PostReply(context.Background(), "12345", "hello"))
}

func TestPostReply_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    interface{}
		wantErr error
	}{
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			wantErr: pkgerrors.ErrRateLimitExceeded,
		},
		{
			name:    "duplicate content",
			status:  http.StatusForbidden,
			body:    map[string]string{"detail": "You are not allowed to create a Tweet with duplicate content."},
			wantErr: pkgerrors.ErrDuplicateContent,
		},
		{
			name:    "restricted reply",
			status:  http.StatusForbidden,
			body:    map[string]string{"detail": "You are not allowed to reply to this Tweet."},
			wantErr: pkgerrors.ErrReplyRestricted,
		},
		{
			name:   "restricted via errors array",
			status: http.StatusForbidden,
			body: map[string]interface{}{
				"errors": []map[string]string{
					{"detail": "The author limited who can reply to this conversation."},
				},
			},
			wantErr: pkgerrors.ErrReplyRestricted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != nil {
					json.NewEncoder(w).Encode(tt.body)
				}
			}))
			defer server.Close()

			client := testClient(server.URL)
			err := client.PostReply(context.Background(), "12345", "hello")
			assert.True(t, pkgerrors.Is(err, tt.wantErr))
		})
	}
}

func TestPostReply_UnknownFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	err := client.PostReply(context.Background(), "12345", "hello")
	require.Error(t, err)
	assert.False(t, pkgerrors.Is(err, pkgerrors.ErrRateLimitExceeded))
	assert.False(t, pkgerrors.Is(err, pkgerrors.ErrDuplicateContent))
	assert.False(t, pkgerrors.Is(err, pkgerrors.ErrReplyRestricted))
}
