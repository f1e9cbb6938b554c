// Package pypdb is a Go client for the RCSB Protein Data Bank's public web
// services: the Search API, the GraphQL Data API, FASTA sequence retrieval,
// structure-file downloads and the core REST lookups.
//
// # Architecture
//
// The library is a thin, stateless translation layer. Typed requests are
// serialized into the exact JSON or URL forms each RCSB service expects,
// sent over a shared rate-limited transport, and the heterogeneous
// responses (JSON, FASTA text, gzip) are parsed back into Go values.
//
//	search/    query-tree model and executor for the Search API
//	data/      GraphQL query builder and flattener for the Data API
//	fasta/     FASTA fetching and parsing
//	pdbfile/   structure-file downloads (PDB, CIF, XML, structure factors)
//	rest/      core REST lookups (entry info, chemical components)
//	transport/ shared HTTP layer: retries, backoff, rate limiting
//	config/    endpoints, retry policy, identification
//	errors/    error classification (transient / invalid / fatal)
//
// The root package ties the sub-clients together over one transport.
//
// # Quick start
//
//	client := pypdb.New(nil)
//
//	ids, err := client.Search.Search(ctx, search.ExactMatchOperator{
//	    Attribute: "rcsb_entity_source_organism.taxonomy_lineage.name",
//	    Value:     "Mus musculus",
//	})
//
// Compound conditions nest operators into groups:
//
//	tree := search.NewGroup(search.And,
//	    search.NewGroup(search.Or, mouse, human),
//	    search.NewRangeOperator("rcsb_entry_info.resolution_combined", 0, 4),
//	)
//	ids, err := client.Search.Search(ctx, tree)
//
// # Concurrency
//
// Every call is synchronous blocking I/O over one request/response cycle.
// Queries, operators and clients share no mutable state, so independent
// calls are safe to run from separate goroutines.
package pypdb
