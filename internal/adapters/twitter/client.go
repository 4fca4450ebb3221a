package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"echowatch/internal/adapters/config"
	"echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// Client talks to the X (Twitter) API v2 for recent search and replies.
// A client-side limiter paces requests below the provider's per-app ceiling;
// 429 responses are still possible and surface as ErrRateLimitExceeded.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	bearerToken string
	log         *logger.Logger
}

// NewClient creates a new X API client
func NewClient(cfg config.TwitterConfig) *Client {
	rps := float64(cfg.RequestsPerMinute) / 60.0
	burst := cfg.RequestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		bearerToken: cfg.BearerToken,
		log:         logger.Get().With("component", "twitter_client"),
	}
}

// SearchResult holds one keyword's search outcome.
// APICalls counts the pages fetched; every page is one metered call.
type SearchResult struct {
	TweetIDs []string
	APICalls int
	Query    string
}

type searchResponse struct {
	Data []searchTweet      `json:"data"`
	Meta searchResponseMeta `json:"meta"`
}

type searchTweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type searchResponseMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token"`
}

// BuildQuery creates a recent-search query for a keyword, excluding retweets
func BuildQuery(keyword string) string {
	if strings.ContainsAny(keyword, " ") {
		return fmt.Sprintf("%q -is:retweet lang:en", keyword)
	}
	return keyword + " -is:retweet lang:en"
}

// SearchRecent fetches recent tweets matching the query, paginating until
// maxResults tweets are collected or results run out. pageSize is the
// per-page result cap (provider max 100).
func (c *Client) SearchRecent(ctx context.Context, query string, maxResults, pageSize int) (*SearchResult, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	result := &SearchResult{Query: query}
	nextToken := ""

	for len(result.TweetIDs) < maxResults {
		if err := c.limiter.Wait(ctx); err != nil {
			return result, errors.Wrap(err, "search limiter")
		}

		params := url.Values{}
		params.Set("query", query)
		params.Set("max_results", fmt.Sprintf("%d", pageSize))
		if nextToken != "" {
			params.Set("next_token", nextToken)
		}

		endpoint := c.baseURL + "/tweets/search/recent?" + params.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return result, errors.Wrap(err, "create search request")
		}
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		req.Header.Set("User-Agent", "echowatch/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return result, errors.Wrap(err, "search request failed")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return result, errors.ErrRateLimitExceeded
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return result, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
		}

		var page searchResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return result, errors.Wrap(err, "decode search response")
		}

		// The page was fetched and metered regardless of its content
		result.APICalls++

		for _, tweet := range page.Data {
			result.TweetIDs = append(result.TweetIDs, tweet.ID)
		}

		if page.Meta.NextToken == "" || page.Meta.ResultCount == 0 {
			break
		}
		nextToken = page.Meta.NextToken
	}

	c.log.Debug("Search complete",
		"query", query,
		"tweets", len(result.TweetIDs),
		"api_calls", result.APICalls,
	)

	return result, nil
}

type postRequest struct {
	Text  string     `json:"text"`
	Reply *postReply `json:"reply,omitempty"`
}

type postReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type postErrorResponse struct {
	Errors []apiError `json:"errors"`
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
}

// PostReply posts a reply to a tweet. Rate limits, duplicate-content
// rejections, and restricted-reply rejections map to their sentinel errors
// so the posting controller can branch on them.
func (c *Client) PostReply(ctx context.Context, inReplyToTweetID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "post limiter")
	}

	payload := postRequest{
		Text:  text,
		Reply: &postReply{InReplyToTweetID: inReplyToTweetID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal post request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create post request")
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "echowatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "post request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.ErrRateLimitExceeded
	}

	respBody, _ := io.ReadAll(resp.Body)

	var apiErr postErrorResponse
	_ = json.Unmarshal(respBody, &apiErr)
	detail := strings.ToLower(apiErr.Detail)
	for _, e := range apiErr.Errors {
		detail += " " + strings.ToLower(e.Detail)
	}

	switch {
	case strings.Contains(detail, "duplicate"):
		return errors.ErrDuplicateContent
	case strings.Contains(detail, "not allowed to reply"),
		strings.Contains(detail, "who can reply"):
		return errors.ErrReplyRestricted
	}

	return fmt.Errorf("post API returned status %d: %s", resp.StatusCode, string(respBody))
}
