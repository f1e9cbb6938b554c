// Package fasta fetches and parses FASTA sequence files for RCSB entries.
package fasta

import (
	"context"
	"log/slog"
	"strings"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/errors"
	"github.com/williamgilpin/pypdb/transport"
)

// Sequence is one record of a FASTA file: a polymer entity, the chains it
// covers, and the concatenated sequence body.
type Sequence struct {
	// EntityID is the polymer entity id, e.g. "5RU3_1"
	EntityID string
	// Chains associated with this sequence, e.g. ["A", "B"]
	Chains []string
	// Sequence body with line breaks removed
	Sequence string
	// Header is the unprocessed FASTA header line
	Header string
}

// Client fetches FASTA files from the RCSB entry endpoint
type Client struct {
	transport *transport.Client
	baseURL   string
	logger    *slog.Logger
}

// ClientOption customizes a fasta Client
type ClientOption func(*Client)

// WithLogger sets the logger for fetch diagnostics
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a FASTA client over the given transport
func NewClient(cfg *config.Config, tr *transport.Client, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{
		transport: tr,
		baseURL:   cfg.Endpoints.Fasta,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sequences fetches the FASTA file for an RCSB entry and parses it into
// one Sequence per record, in file order.
func (c *Client) Sequences(ctx context.Context, rcsbID string) ([]Sequence, error) {
	c.logger.Info("fetching FASTA file", "rcsb_id", rcsbID)

	resp, err := c.transport.Get(ctx, c.baseURL+rcsbID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Fasta", "Sequences", "GET "+rcsbID)
	}

	return Parse(resp.Text()), nil
}

// Parse splits raw FASTA text into records. Each ">"-delimited block yields
// one Sequence: the header's pipe-delimited field 0 is the entity id, field
// 1 lists chains ("Chain X" or "Chains X,Y"), and the remaining lines are
// concatenated without separators.
func Parse(raw string) []Sequence {
	chunks := strings.Split(strings.TrimSpace(raw), ">")
	if len(chunks) > 0 {
		chunks = chunks[1:]
	}

	sequences := make([]Sequence, 0, len(chunks))
	for _, chunk := range chunks {
		lines := strings.Split(chunk, "\n")
		header := lines[0]
		body := strings.Join(lines[1:], "")

		segments := strings.Split(header, "|")
		entityID := segments[0]
		var chains []string
		if len(segments) > 1 {
			chainField := strings.TrimPrefix(segments[1], "Chains ")
			chainField = strings.TrimPrefix(chainField, "Chain ")
			chains = strings.Split(chainField, ",")
		}

		sequences = append(sequences, Sequence{
			EntityID: entityID,
			Chains:   chains,
			Sequence: body,
			Header:   header,
		})
	}
	return sequences
}
