// Package search implements a typed client for the RCSB Search API: a
// closed set of terminal search operators, a recursive query tree combining
// them with AND/OR groups, and an executor that serializes trees into the
// service's JSON grammar and normalizes the result set.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/errors"
	"github.com/williamgilpin/pypdb/transport"
)

// ReturnType selects what kind of RCSB entity identifiers a search returns.
// See https://search.rcsb.org/#return-type
type ReturnType string

const (
	ReturnEntry            ReturnType = "entry"
	ReturnAssembly         ReturnType = "assembly"
	ReturnPolymerEntity    ReturnType = "polymer_entity"
	ReturnNonPolymerEntity ReturnType = "non_polymer_entity"
	ReturnPolymerInstance  ReturnType = "polymer_instance"
)

// ScoredResult is one search hit with its relevance score
type ScoredResult struct {
	EntityID string
	Score    float64
}

// request captures the per-search options
type request struct {
	returnType ReturnType

	paginate bool
	start    int
	rows     int

	sort       bool
	sortBy     string
	descending bool
}

// Option configures a single search call
type Option func(*request)

// WithReturnType selects the entity kind returned (default entry)
func WithReturnType(rt ReturnType) Option {
	return func(r *request) { r.returnType = rt }
}

// WithPagination returns rows results starting at start. Without it, all
// results are returned, which can be slow for compute-intensive searches.
func WithPagination(start, rows int) Option {
	return func(r *request) {
		r.paginate = true
		r.start = start
		r.rows = rows
	}
}

// WithSort orders results by an RCSB attribute (e.g.
// "rcsb_accession_info.initial_release_date") or "score".
func WithSort(attribute string, descending bool) Option {
	return func(r *request) {
		r.sort = true
		r.sortBy = attribute
		r.descending = descending
	}
}

// requestOptions serializes the pagination/sort block. With no options the
// service is asked for all hits; otherwise sorting defaults to score
// descending alongside any pagination.
func (r *request) requestOptions() map[string]any {
	if !r.paginate && !r.sort {
		return map[string]any{"return_all_hits": true}
	}

	opts := map[string]any{}
	if r.paginate {
		opts["paginate"] = map[string]any{
			"start": r.start,
			"rows":  r.rows,
		}
	}

	sortBy := r.sortBy
	if sortBy == "" {
		sortBy = "score"
	}
	direction := "desc"
	if r.sort && !r.descending {
		direction = "asc"
	}
	opts["sort"] = []any{
		map[string]any{"sort_by": sortBy, "direction": direction},
	}
	return opts
}

// Client executes query trees against the RCSB Search API
type Client struct {
	transport *transport.Client
	endpoint  string
	logger    *slog.Logger
	preflight bool
}

// ClientOption customizes a search Client
type ClientOption func(*Client)

// WithLogger sets the logger used for query echo and warnings. Supply a
// discard logger to silence the outgoing-query log.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithoutPreflight disables the advisory JSON Schema check of outgoing
// payloads.
func WithoutPreflight() ClientOption {
	return func(c *Client) { c.preflight = false }
}

// NewClient creates a search client over the given transport
func NewClient(cfg *config.Config, tr *transport.Client, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{
		transport: tr,
		endpoint:  cfg.Endpoints.Search,
		logger:    slog.Default(),
		preflight: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search executes the query and returns matching identifiers in server
// order. The query may be a single operator or an arbitrarily nested Group.
func (c *Client) Search(ctx context.Context, query Node, opts ...Option) ([]string, error) {
	body, err := c.execute(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	resultSet, err := parseResultSet(body)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resultSet))
	for _, hit := range resultSet {
		ids = append(ids, hit.Identifier)
	}
	return ids, nil
}

// SearchWithScores executes the query and returns identifier/score pairs in
// server order.
func (c *Client) SearchWithScores(ctx context.Context, query Node, opts ...Option) ([]ScoredResult, error) {
	body, err := c.execute(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	resultSet, err := parseResultSet(body)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredResult, 0, len(resultSet))
	for _, hit := range resultSet {
		scored = append(scored, ScoredResult{EntityID: hit.Identifier, Score: hit.Score})
	}
	return scored, nil
}

// SearchRaw executes the query and returns the decoded response body
// untouched, for callers that want the full result structure.
func (c *Client) SearchRaw(ctx context.Context, query Node, opts ...Option) (json.RawMessage, error) {
	return c.execute(ctx, query, opts)
}

// BuildRequest serializes a query tree plus options into the Search API
// request body. Exposed for callers that want to inspect the exact payload.
func BuildRequest(query Node, opts ...Option) (map[string]any, error) {
	if err := Validate(query); err != nil {
		return nil, err
	}

	req := &request{returnType: ReturnEntry}
	for _, opt := range opts {
		opt(req)
	}
	if req.paginate && (req.start < 0 || req.rows <= 0) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: start=%d rows=%d", errors.ErrInvalidPagination, req.start, req.rows),
			"Search", "BuildRequest", "pagination check")
	}

	return map[string]any{
		"query":           query.Serialize(),
		"request_options": req.requestOptions(),
		"return_type":     string(req.returnType),
	}, nil
}

func (c *Client) execute(ctx context.Context, query Node, opts []Option) (json.RawMessage, error) {
	payload, err := BuildRequest(query, opts...)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Search", "execute", "payload encoding")
	}

	if c.preflight {
		// Advisory only: a schema mismatch is logged, never rejected, since
		// the server is the final authority on what it accepts.
		if problems := checkRequestSchema(data); len(problems) > 0 {
			c.logger.Warn("search payload failed advisory schema check",
				"problems", problems)
		}
	}

	c.logger.Info("querying RCSB search", "query", string(data))

	resp, err := c.transport.Post(ctx, c.endpoint, "application/json", data, nil)
	if err != nil {
		// A failed search is fatal to the request; the body text, when the
		// transport captured one, rides along in the error.
		return nil, errors.Wrap(err, "Search", "execute", "POST query")
	}

	return json.RawMessage(resp.Body), nil
}

type resultHit struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
}

func parseResultSet(body json.RawMessage) ([]resultHit, error) {
	var decoded struct {
		ResultSet []resultHit `json:"result_set"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.WrapInvalid(err, "Search", "parseResultSet", "response decoding")
	}
	return decoded.ResultSet, nil
}
