// Package data implements a client for the RCSB Data API's GraphQL
// endpoint. Callers name an entity kind, a set of identifiers and a
// property selection; the package builds the single GraphQL query string,
// executes it, and flattens the per-id records into tabular rows.
package data

import (
	"fmt"
	"strings"

	"github.com/williamgilpin/pypdb/errors"
)

// EntityKind is one of the RCSB data organization levels.
// See https://data.rcsb.org/#data-organization
type EntityKind string

const (
	KindEntry              EntityKind = "entries"
	KindPolymerEntity      EntityKind = "polymer_entities"
	KindBranchedEntity     EntityKind = "branched_entities"
	KindNonPolymerEntity   EntityKind = "nonpolymer_entities"
	KindPolymerInstance    EntityKind = "polymer_entity_instances"
	KindBranchedInstance   EntityKind = "branched_entity_instances"
	KindNonPolymerInstance EntityKind = "nonpolymer_entity_instances"
	KindAssembly           EntityKind = "assemblies"
	KindChemComp           EntityKind = "chem_comps"
)

// idField names the GraphQL argument carrying the identifier list
func (k EntityKind) idField() string {
	switch {
	case k == KindEntry:
		return "entry_ids"
	case k == KindAssembly:
		return "assembly_ids"
	case k == KindChemComp:
		return "comp_ids"
	case strings.Contains(string(k), "instance"):
		return "instance_ids"
	default:
		return "entity_ids"
	}
}

// property is one top-level field selection with optional sub-fields.
// An empty sub-field list means a scalar field with no sub-selection.
type property struct {
	name      string
	subfields []string
}

// Request describes one Data API fetch: an entity kind, the ids to fetch,
// and an ordered property selection.
type Request struct {
	Kind       EntityKind
	IDs        []string
	properties []property
}

// NewRequest starts a fetch request for the given ids
func NewRequest(kind EntityKind, ids ...string) *Request {
	return &Request{Kind: kind, IDs: ids}
}

// AddProperty selects a top-level field, optionally with sub-fields. Adding
// the same field again merges the sub-field lists, dropping duplicates while
// preserving first-seen order.
func (r *Request) AddProperty(name string, subfields ...string) *Request {
	for i := range r.properties {
		if r.properties[i].name != name {
			continue
		}
		seen := make(map[string]bool, len(r.properties[i].subfields))
		for _, sf := range r.properties[i].subfields {
			seen[sf] = true
		}
		for _, sf := range subfields {
			if !seen[sf] {
				r.properties[i].subfields = append(r.properties[i].subfields, sf)
				seen[sf] = true
			}
		}
		return r
	}
	r.properties = append(r.properties, property{name: name, subfields: append([]string(nil), subfields...)})
	return r
}

// checkIDs reports ids that do not fit the kind's shape: entity ids carry
// an underscore (5JUP_1), instance ids a period (5JUP.A), assembly ids a
// hyphen (5JUP-1). The service is the final authority on validity, so these
// are advisory strings for the caller to log, never rejections.
func (r *Request) checkIDs() []string {
	var marker string
	switch {
	case strings.Contains(string(r.Kind), "instance"):
		marker = "."
	case strings.Contains(string(r.Kind), "entit"):
		marker = "_"
	case r.Kind == KindAssembly:
		marker = "-"
	default:
		return nil
	}

	var suspect []string
	for _, id := range r.IDs {
		if !strings.Contains(id, marker) {
			suspect = append(suspect, fmt.Sprintf("%s does not look like a %s id (expected %q)", id, r.Kind, marker))
		}
	}
	return suspect
}

// wrapper names the GraphQL field wrapping the records in query and
// response. A single-entry fetch uses the singular form with a scalar id
// argument; everything else is plural.
func (r *Request) wrapper() (field, idField string, singular bool) {
	if r.Kind == KindEntry && len(r.IDs) == 1 {
		return "entry", "entry_id", true
	}
	return string(r.Kind), r.Kind.idField(), false
}

// Query builds the GraphQL query string for this request
func (r *Request) Query() (string, error) {
	if len(r.IDs) == 0 {
		return "", errors.WrapInvalid(errors.ErrNoIdentifiers, "Data", "Query", "id check")
	}
	if len(r.properties) == 0 {
		return "", errors.WrapInvalid(errors.ErrNoProperties, "Data", "Query", "property check")
	}

	field, idField, singular := r.wrapper()

	var args strings.Builder
	if singular {
		fmt.Fprintf(&args, "%s: %q", idField, r.IDs[0])
	} else {
		quoted := make([]string, len(r.IDs))
		for i, id := range r.IDs {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		fmt.Fprintf(&args, "%s: [%s]", idField, strings.Join(quoted, ","))
	}

	var selection strings.Builder
	for _, prop := range r.properties {
		if len(prop.subfields) == 0 {
			fmt.Fprintf(&selection, "%s,", prop.name)
		} else {
			fmt.Fprintf(&selection, "%s {%s}", prop.name, strings.Join(prop.subfields, ","))
		}
	}

	return fmt.Sprintf("{%s(%s) {%s}}", field, args.String(), selection.String()), nil
}
