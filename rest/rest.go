// Package rest wraps the RCSB Data API's REST endpoints for entry and
// chemical component lookups.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/errors"
	"github.com/williamgilpin/pypdb/transport"
)

// Client fetches core records from the REST data endpoints
type Client struct {
	transport *transport.Client
	baseURL   string
	logger    *slog.Logger
}

// ClientOption customizes a rest Client
type ClientOption func(*Client)

// WithLogger sets the logger for fetch diagnostics
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a REST data client over the given transport
func NewClient(cfg *config.Config, tr *transport.Client, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{
		transport: tr,
		baseURL:   cfg.Endpoints.RESTData,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EntryInfo looks up the full core record for a PDB entry. Old-style
// "ID:entity" identifiers are rewritten to the path form the v1 API uses.
func (c *Client) EntryInfo(ctx context.Context, pdbID string) (map[string]any, error) {
	pdbID = strings.ReplaceAll(pdbID, ":", "/")
	return c.fetch(ctx, "entry/"+pdbID)
}

// ChemicalInfo looks up the core record for a chemical component. Ligand
// ids are at most 3 characters; longer ids are rejected before any network
// activity.
func (c *Client) ChemicalInfo(ctx context.Context, chemID string) (map[string]any, error) {
	if len(chemID) > 3 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: ligand id %q has more than 3 characters", errors.ErrInvalidIdentifier, chemID),
			"REST", "ChemicalInfo", "id check")
	}
	return c.fetch(ctx, "chemcomp/"+chemID)
}

func (c *Client) fetch(ctx context.Context, path string) (map[string]any, error) {
	url := c.baseURL + path

	resp, err := c.transport.Get(ctx, url, nil)
	if err != nil {
		c.logger.Warn("retrieval failed", "url", url, "error", err)
		return nil, errors.Wrap(err, "REST", "fetch", "GET "+url)
	}

	var record map[string]any
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, errors.WrapInvalid(err, "REST", "fetch", "response decoding")
	}
	return record, nil
}
