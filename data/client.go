package data

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/errors"
	"github.com/williamgilpin/pypdb/transport"
)

// Response is a decoded Data API reply. Raw always carries the full body;
// Records holds the per-id objects under the request's wrapper field.
type Response struct {
	Raw     json.RawMessage
	Records []map[string]any
	// Errors carries any GraphQL error messages from the reply. Their
	// presence is reported but never raised; partial data is still usable.
	Errors []string
}

// Client executes Data API fetches over the shared transport
type Client struct {
	transport *transport.Client
	endpoint  string
	logger    *slog.Logger
}

// ClientOption customizes a data Client
type ClientOption func(*Client)

// WithLogger sets the logger for advisory warnings
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Data API client over the given transport
func NewClient(cfg *config.Config, tr *transport.Client, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{
		transport: tr,
		endpoint:  cfg.Endpoints.GraphQL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch builds the GraphQL query for the request and executes it. Malformed
// ids, GraphQL errors in the reply, and an id/record count mismatch are all
// logged as warnings while processing continues with whatever is present.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	query, err := req.Query()
	if err != nil {
		return nil, err
	}

	for _, problem := range req.checkIDs() {
		c.logger.Warn("suspicious identifier", "problem", problem)
	}

	if _, parseErr := parser.ParseQuery(&ast.Source{Input: query}); parseErr != nil {
		// Field names pass through unescaped, so caller input can break
		// the syntax; advisory.
		c.logger.Warn("generated GraphQL query failed syntax check",
			"query", query, "error", parseErr)
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, errors.WrapInvalid(err, "Data", "Fetch", "request encoding")
	}

	resp, err := c.transport.Post(ctx, c.endpoint, "application/json", body, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Data", "Fetch", "POST query")
	}

	result := &Response{Raw: json.RawMessage(resp.Body)}

	var decoded struct {
		Data   map[string]json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, errors.WrapInvalid(err, "Data", "Fetch", "response decoding")
	}

	for _, gqlErr := range decoded.Errors {
		result.Errors = append(result.Errors, gqlErr.Message)
		c.logger.Warn("GraphQL error in response", "message", gqlErr.Message)
	}

	field, _, singular := req.wrapper()
	raw, ok := decoded.Data[field]
	if !ok || string(raw) == "null" {
		return result, nil
	}

	if singular {
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, errors.WrapInvalid(err, "Data", "Fetch", "record decoding")
		}
		result.Records = []map[string]any{record}
	} else {
		if err := json.Unmarshal(raw, &result.Records); err != nil {
			return nil, errors.WrapInvalid(err, "Data", "Fetch", "record decoding")
		}
	}

	if len(result.Records) != len(req.IDs) {
		// Some ids may simply not exist; recoverable.
		c.logger.Warn("one or more identifiers not found",
			"requested", len(req.IDs), "returned", len(result.Records))
	}

	return result, nil
}

// Flatten converts the fetched records into one row per id, keyed by field
// or "field.subfield". When a field's value is itself a list, the first
// element is taken.
func (r *Response) Flatten(req *Request) map[string]map[string]any {
	rows := make(map[string]map[string]any, len(r.Records))
	for i, record := range r.Records {
		if i >= len(req.IDs) {
			break
		}
		row := map[string]any{}
		for field, value := range record {
			if list, ok := value.([]any); ok {
				if len(list) == 0 {
					continue
				}
				value = list[0]
			}
			if nested, ok := value.(map[string]any); ok {
				for sub, subValue := range nested {
					row[field+"."+sub] = subValue
				}
			} else {
				row[field] = value
			}
		}
		rows[req.IDs[i]] = row
	}
	return rows
}
