package bitmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xmhha/blockstream-go/internal/constants"
)

// ErrServiceUnavailable indicates the bitmap service could not be reached or
// answered outside its contract. Selection falls back to a full scan.
var ErrServiceUnavailable = errors.New("bitmap service unavailable")

const (
	queryGetBitmapsExact = `query GetBitmapsExact($block_date: date, $receiver_ids: [String!], $limit: Int, $offset: Int) {
  bitmap_actions_index(limit: $limit, offset: $offset, where: {block_date: {_eq: $block_date}, receiver: {receiver: {_in: $receiver_ids}}}) {
    bitmap
    first_block_height
  }
}`

	queryGetBitmapsWildcard = `query GetBitmapsWildcard($block_date: date, $receiver_ids: String, $limit: Int, $offset: Int) {
  bitmap_actions_index(limit: $limit, offset: $offset, where: {block_date: {_eq: $block_date}, receiver: {receiver: {_regex: $receiver_ids}}}) {
    bitmap
    first_block_height
  }
}`
)

// Row is one per-day bitmap row: the compressed presence vector and the
// height its first bit is rooted at.
type Row struct {
	Bitmap           string `json:"bitmap"`
	FirstBlockHeight uint64 `json:"first_block_height"`
}

// Client talks to the bitmap index over its GraphQL endpoint.
type Client struct {
	http       *http.Client
	endpoint   string
	hasuraRole string
	limiter    *rate.Limiter
	pageSize   int
	logger     *zap.Logger
}

// ClientConfig holds bitmap service client configuration.
type ClientConfig struct {
	// Endpoint is the GraphQL URL
	Endpoint string

	// HasuraRole is sent as the x-hasura-role header
	HasuraRole string

	// RequestsPerSecond rate-limits outgoing queries (0 = default)
	RequestsPerSecond int

	// PageSize is the per-request row limit (0 = default)
	PageSize int
}

// NewClient creates a bitmap service client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = constants.DefaultBitmapRequestsPerSecond
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultBitmapPageSize
	}

	return &Client{
		http:       &http.Client{Timeout: constants.DefaultBitmapTimeout},
		endpoint:   cfg.Endpoint,
		hasuraRole: cfg.HasuraRole,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		pageSize:   pageSize,
		logger:     logger,
	}
}

// GetBitmapsExact fetches the bitmap rows of the given exact receiver ids
// for one block date. No rows for a day is a valid, empty result.
func (c *Client) GetBitmapsExact(ctx context.Context, receiverIDs []string, blockDate string) ([]Row, error) {
	return c.paginate(ctx, queryGetBitmapsExact, "GetBitmapsExact", blockDate, receiverIDs)
}

// GetBitmapsWildcard fetches the bitmap rows of every receiver matching the
// given account pattern for one block date. The pattern is translated to the
// regex dialect the index understands.
func (c *Client) GetBitmapsWildcard(ctx context.Context, accountPattern, blockDate string) ([]Row, error) {
	return c.paginate(ctx, queryGetBitmapsWildcard, "GetBitmapsWildcard", blockDate, PatternToRegex(accountPattern))
}

func (c *Client) paginate(ctx context.Context, query, operation, blockDate string, receiverIDs interface{}) ([]Row, error) {
	var rows []Row
	for offset := 0; ; offset += c.pageSize {
		page, err := c.post(ctx, query, operation, map[string]interface{}{
			"block_date":   blockDate,
			"receiver_ids": receiverIDs,
			"limit":        c.pageSize,
			"offset":       offset,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if len(page) < c.pageSize {
			return rows, nil
		}
	}
}

func (c *Client) post(ctx context.Context, query, operation string, variables map[string]interface{}) ([]Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"operationName": operation,
		"query":         query,
		"variables":     variables,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-hasura-role", c.hasuraRole)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			Rows []Row `json:"bitmap_actions_index"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, decoded.Errors[0].Message)
	}

	return decoded.Data.Rows, nil
}

// PatternToRegex translates an account glob into an anchored POSIX regex for
// the wildcard bitmap query. Only '*' and '?' are metacharacters in the glob
// dialect; everything else matches literally.
func PatternToRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; ch {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '.', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte('$')
	return b.String()
}
