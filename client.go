package pypdb

import (
	"context"
	"log/slog"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/data"
	"github.com/williamgilpin/pypdb/errors"
	"github.com/williamgilpin/pypdb/fasta"
	"github.com/williamgilpin/pypdb/pdbfile"
	"github.com/williamgilpin/pypdb/rest"
	"github.com/williamgilpin/pypdb/search"
	"github.com/williamgilpin/pypdb/transport"
)

// Client aggregates the per-service clients over one shared transport and
// configuration. The zero-cost sub-clients are safe for concurrent use.
type Client struct {
	Search *search.Client
	Data   *data.Client
	Fasta  *fasta.Client
	Files  *pdbfile.Client
	REST   *rest.Client
	logger *slog.Logger
}

// Option customizes the aggregate client
type Option func(*options)

type options struct {
	logger    *slog.Logger
	transport []transport.Option
}

// WithLogger sets the logger shared by all sub-clients
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransportOptions forwards options to the shared transport (metrics,
// custom HTTP client, fake sleep for tests).
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// New creates a client from the given configuration; nil selects the
// defaults (public RCSB endpoints).
func New(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	trOpts := append([]transport.Option{transport.WithLogger(o.logger)}, o.transport...)
	tr := transport.New(cfg, trOpts...)

	return &Client{
		Search: search.NewClient(cfg, tr, search.WithLogger(o.logger)),
		Data:   data.NewClient(cfg, tr, data.WithLogger(o.logger)),
		Fasta:  fasta.NewClient(cfg, tr, fasta.WithLogger(o.logger)),
		Files:  pdbfile.NewClient(cfg, tr, pdbfile.WithLogger(o.logger)),
		REST:   rest.NewClient(cfg, tr, rest.WithLogger(o.logger)),
		logger: o.logger,
	}
}

// FindPapers returns the unique citation titles of the top entries matching
// a full-text search, in descending relevance order. At most maxResults
// entries are consulted; entries whose info lookup fails are skipped with a
// warning.
func (c *Client) FindPapers(ctx context.Context, term string, maxResults int) ([]string, error) {
	ids, err := c.Search.Search(ctx, search.DefaultOperator{Value: term})
	if err != nil {
		return nil, errors.Wrap(err, "Client", "FindPapers", "search")
	}

	if maxResults > 0 && len(ids) > maxResults {
		ids = ids[:maxResults]
	}

	seen := map[string]bool{}
	var titles []string
	for _, id := range ids {
		info, err := c.REST.EntryInfo(ctx, id)
		if err != nil {
			c.logger.Warn("skipping entry without info", "pdb_id", id, "error", err)
			continue
		}
		citations, ok := info["citation"].([]any)
		if !ok {
			continue
		}
		for _, citation := range citations {
			record, ok := citation.(map[string]any)
			if !ok {
				continue
			}
			title, ok := record["title"].(string)
			if !ok || seen[title] {
				continue
			}
			seen[title] = true
			titles = append(titles, title)
		}
	}
	return titles, nil
}
