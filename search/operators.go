package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/williamgilpin/pypdb/errors"
)

// Service identifies which RCSB search service evaluates an operator.
// See https://search.rcsb.org/#search-services for the service catalog.
type Service string

const (
	ServiceFullText  Service = "full_text"
	ServiceText      Service = "text"
	ServiceSequence  Service = "sequence"
	ServiceSeqMotif  Service = "seqmotif"
	ServiceStructure Service = "structure"
	ServiceChemical  Service = "chemical"
)

// Operator is a single terminal search condition. The set of implementations
// in this package is closed; every operator maps totally to its service, so
// there is no "unknown operator" failure path at query time.
type Operator interface {
	Node
	// Parameters returns the service parameter object for the terminal node.
	// It is pure: fully determined by the operator's fields, never fails.
	Parameters() map[string]any
	// Service reports which search service evaluates this operator.
	Service() Service
}

// DefaultOperator performs a free-text match across all searchable fields
type DefaultOperator struct {
	Value string
}

func (op DefaultOperator) Parameters() map[string]any {
	return map[string]any{"value": op.Value}
}

func (op DefaultOperator) Service() Service { return ServiceFullText }

func (op DefaultOperator) Serialize() map[string]any { return terminalNode(op) }

// ExactMatchOperator matches a field value exactly, including whitespace,
// special characters and case.
type ExactMatchOperator struct {
	Attribute string
	Value     any
}

func (op ExactMatchOperator) Parameters() map[string]any {
	return map[string]any{
		"attribute": op.Attribute,
		"operator":  "exact_match",
		"value":     op.Value,
	}
}

func (op ExactMatchOperator) Service() Service { return ServiceText }

func (op ExactMatchOperator) Serialize() map[string]any { return terminalNode(op) }

// InOperator matches when any value in an ordered list matches the
// attribute. It replaces a chain of OR conditions.
type InOperator struct {
	Attribute string
	Values    []any
}

func (op InOperator) Parameters() map[string]any {
	return map[string]any{
		"attribute": op.Attribute,
		"operator":  "in",
		"value":     op.Values,
	}
}

func (op InOperator) Service() Service { return ServiceText }

func (op InOperator) Serialize() map[string]any { return terminalNode(op) }

// ContainsWordsOperator matches if any word in Value appears in the
// attribute ("actin-binding protein" hits on "actin" OR "binding" OR
// "protein").
type ContainsWordsOperator struct {
	Attribute string
	Value     string
}

func (op ContainsWordsOperator) Parameters() map[string]any {
	return map[string]any{
		"attribute": op.Attribute,
		"operator":  "contains_words",
		"value":     op.Value,
	}
}

func (op ContainsWordsOperator) Service() Service { return ServiceText }

func (op ContainsWordsOperator) Serialize() map[string]any { return terminalNode(op) }

// ContainsPhraseOperator matches only when all words in Value appear in the
// attribute in the given order.
type ContainsPhraseOperator struct {
	Attribute string
	Value     string
}

func (op ContainsPhraseOperator) Parameters() map[string]any {
	return map[string]any{
		"attribute": op.Attribute,
		"operator":  "contains_phrase",
		"value":     op.Value,
	}
}

func (op ContainsPhraseOperator) Service() Service { return ServiceText }

func (op ContainsPhraseOperator) Serialize() map[string]any { return terminalNode(op) }

// ComparisonType enumerates the comparison kinds accepted by the text service
type ComparisonType string

const (
	ComparisonGreater        ComparisonType = "greater"
	ComparisonGreaterOrEqual ComparisonType = "greater_or_equal"
	ComparisonEqual          ComparisonType = "equals"
	ComparisonNotEqual       ComparisonType = "not_equal"
	ComparisonLessOrEqual    ComparisonType = "less_or_equal"
	ComparisonLess           ComparisonType = "less"
)

// ComparisonOperator matches when the attribute compares true against Value.
// The upstream service has no "not_equal" operator; that kind serializes as
// equality with negation.
type ComparisonOperator struct {
	Attribute  string
	Value      any
	Comparison ComparisonType
}

func (op ComparisonOperator) Parameters() map[string]any {
	params := map[string]any{
		"attribute": op.Attribute,
		"value":     op.Value,
	}
	if op.Comparison == ComparisonNotEqual {
		params["operator"] = string(ComparisonEqual)
		params["negation"] = true
	} else {
		params["operator"] = string(op.Comparison)
	}
	return params
}

func (op ComparisonOperator) Service() Service { return ServiceText }

func (op ComparisonOperator) Serialize() map[string]any { return terminalNode(op) }

// RangeOperator matches attributes within [From, To]. Negation inverts the
// match server-side; the inclusion bounds are passed through unchanged.
type RangeOperator struct {
	Attribute    string
	From         any
	To           any
	IncludeLower bool
	IncludeUpper bool
	Negation     bool
}

// NewRangeOperator returns a range over [from, to] inclusive at both ends
func NewRangeOperator(attribute string, from, to any) RangeOperator {
	return RangeOperator{
		Attribute:    attribute,
		From:         from,
		To:           to,
		IncludeLower: true,
		IncludeUpper: true,
	}
}

func (op RangeOperator) Parameters() map[string]any {
	return map[string]any{
		"operator":  "range",
		"attribute": op.Attribute,
		"negation":  op.Negation,
		"value": map[string]any{
			"from":          op.From,
			"to":            op.To,
			"include_lower": op.IncludeLower,
			"include_upper": op.IncludeUpper,
		},
	}
}

func (op RangeOperator) Service() Service { return ServiceText }

func (op RangeOperator) Serialize() map[string]any { return terminalNode(op) }

// ExistsOperator matches entries where the attribute is populated at all
type ExistsOperator struct {
	Attribute string
}

func (op ExistsOperator) Parameters() map[string]any {
	return map[string]any{
		"operator":  "exists",
		"attribute": op.Attribute,
	}
}

func (op ExistsOperator) Service() Service { return ServiceText }

func (op ExistsOperator) Serialize() map[string]any { return terminalNode(op) }

// SequenceType is the kind of polymer sequence being searched
type SequenceType string

const (
	SequenceTypeDNA     SequenceType = "pdb_dna_sequence"
	SequenceTypeRNA     SequenceType = "pdb_rna_sequence"
	SequenceTypeProtein SequenceType = "pdb_protein_sequence"

	// SequenceTypeAuto asks the constructor to resolve the type from the
	// sequence alphabet.
	SequenceTypeAuto SequenceType = ""
)

// Default cutoffs for sequence similarity search
const (
	DefaultEvalueCutoff   = 100.0
	DefaultIdentityCutoff = 0.95
)

// letterSet reports the set of distinct letters in a sequence
func letterSet(sequence string) map[rune]bool {
	set := make(map[rune]bool, len(sequence))
	for _, r := range sequence {
		set[r] = true
	}
	return set
}

func subsetOf(letters map[rune]bool, alphabet string) bool {
	for r := range letters {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

func intersects(letters map[rune]bool, alphabet string) bool {
	for r := range letters {
		if strings.ContainsRune(alphabet, r) {
			return true
		}
	}
	return false
}

// ResolveSequenceType infers DNA, RNA or protein from the sequence alphabet.
// DNA and RNA require their distinguishing base (T or U respectively);
// protein requires at least one letter that never appears in nucleotide
// codes. Anything else is ambiguous.
func ResolveSequenceType(sequence string) (SequenceType, error) {
	const (
		dnaAlphabet        = "ATCG"
		rnaAlphabet        = "AUCG"
		proteinAlphabet    = "ABCDEFGHIKLMNPQRSTVWXYZ"
		proteinFingerprint = "BDEFHIKLMNPQRSVWXYZ"
	)

	letters := letterSet(sequence)
	switch {
	case subsetOf(letters, dnaAlphabet) && letters['T']:
		return SequenceTypeDNA, nil
	case subsetOf(letters, rnaAlphabet) && letters['U']:
		return SequenceTypeRNA, nil
	case subsetOf(letters, proteinAlphabet) && intersects(letters, proteinFingerprint):
		return SequenceTypeProtein, nil
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrAmbiguousSequence, sequence),
			"Search", "ResolveSequenceType", "alphabet inspection")
	}
}

// SequenceOperator searches for similar sequences using MMseqs2
// (BLAST-like) with e-value and identity cutoffs.
type SequenceOperator struct {
	Sequence       string
	Type           SequenceType
	EvalueCutoff   float64
	IdentityCutoff float64
}

// NewSequenceOperator builds a sequence search with the default cutoffs.
// Pass SequenceTypeAuto to resolve the type from the sequence alphabet;
// an ambiguous alphabet is a construction error.
func NewSequenceOperator(sequence string, seqType SequenceType) (SequenceOperator, error) {
	if seqType == SequenceTypeAuto {
		resolved, err := ResolveSequenceType(sequence)
		if err != nil {
			return SequenceOperator{}, err
		}
		seqType = resolved
	}
	return SequenceOperator{
		Sequence:       sequence,
		Type:           seqType,
		EvalueCutoff:   DefaultEvalueCutoff,
		IdentityCutoff: DefaultIdentityCutoff,
	}, nil
}

func (op SequenceOperator) Parameters() map[string]any {
	return map[string]any{
		"evalue_cutoff":   op.EvalueCutoff,
		"identity_cutoff": op.IdentityCutoff,
		"target":          string(op.Type),
		"value":           op.Sequence,
	}
}

func (op SequenceOperator) Service() Service { return ServiceSequence }

func (op SequenceOperator) Serialize() map[string]any { return terminalNode(op) }

// StructureSearchMode selects strictness of 3D shape matching
type StructureSearchMode string

const (
	StrictShapeMatch  StructureSearchMode = "strict_shape_match"
	RelaxedShapeMatch StructureSearchMode = "relaxed_shape_match"
)

// StructureOperator searches for entries with similar 3D shape to a known
// entry/assembly (BioZernike descriptors).
type StructureOperator struct {
	EntryID    string
	AssemblyID int
	Mode       StructureSearchMode
}

// NewStructureOperator builds a strict shape search against assembly 1
func NewStructureOperator(entryID string) StructureOperator {
	return StructureOperator{
		EntryID:    entryID,
		AssemblyID: 1,
		Mode:       StrictShapeMatch,
	}
}

func (op StructureOperator) Parameters() map[string]any {
	return map[string]any{
		"value": map[string]any{
			"entry_id":    op.EntryID,
			"assembly_id": strconv.Itoa(op.AssemblyID),
		},
		"operator": string(op.Mode),
	}
}

func (op StructureOperator) Service() Service { return ServiceStructure }

func (op StructureOperator) Serialize() map[string]any { return terminalNode(op) }

// PatternType is the motif grammar used by a SeqMotifOperator
type PatternType string

const (
	PatternSimple  PatternType = "simple"
	PatternProsite PatternType = "prosite"
	PatternRegex   PatternType = "regex"
)

// SeqMotifOperator searches for short sequence motifs
type SeqMotifOperator struct {
	Pattern string
	Type    SequenceType
	Kind    PatternType
}

func (op SeqMotifOperator) Parameters() map[string]any {
	return map[string]any{
		"value":        op.Pattern,
		"pattern_type": string(op.Kind),
		"target":       string(op.Type),
	}
}

func (op SeqMotifOperator) Service() Service { return ServiceSeqMotif }

func (op SeqMotifOperator) Serialize() map[string]any { return terminalNode(op) }

// DescriptorMatchingCriterion defines what counts as a chemical match.
// See https://search.rcsb.org/#search-services for definitions.
type DescriptorMatchingCriterion string

const (
	GraphStrict           DescriptorMatchingCriterion = "graph-strict"
	GraphRelaxed          DescriptorMatchingCriterion = "graph-relaxed"
	GraphRelaxedStereo    DescriptorMatchingCriterion = "graph-relaxed-stereo"
	FingerprintSimilarity DescriptorMatchingCriterion = "fingerprint-similarity"
)

// ChemicalOperator searches by molecular descriptor (SMILES or InChI).
// Whether the descriptor is SMILES or InChI is derived at construction and
// never supplied by the caller: InChI strings definitionally start with
// "InChI=".
type ChemicalOperator struct {
	Descriptor        string
	MatchingCriterion DescriptorMatchingCriterion

	descriptorType string
}

// NewChemicalOperator derives the descriptor type and applies the
// graph-strict criterion when none is given.
func NewChemicalOperator(descriptor string, criterion DescriptorMatchingCriterion) ChemicalOperator {
	if criterion == "" {
		criterion = GraphStrict
	}
	return ChemicalOperator{
		Descriptor:        descriptor,
		MatchingCriterion: criterion,
		descriptorType:    descriptorTypeOf(descriptor),
	}
}

func descriptorTypeOf(descriptor string) string {
	if strings.HasPrefix(descriptor, "InChI=") {
		return "InChI"
	}
	return "SMILES"
}

// DescriptorType reports the derived descriptor notation, "SMILES" or "InChI"
func (op ChemicalOperator) DescriptorType() string {
	if op.descriptorType == "" {
		// Zero-value construction bypassed the constructor; derive on demand
		// so Parameters stays total.
		return descriptorTypeOf(op.Descriptor)
	}
	return op.descriptorType
}

func (op ChemicalOperator) Parameters() map[string]any {
	return map[string]any{
		"value":           op.Descriptor,
		"type":            "descriptor",
		"descriptor_type": op.DescriptorType(),
		"match_type":      string(op.MatchingCriterion),
	}
}

func (op ChemicalOperator) Service() Service { return ServiceChemical }

func (op ChemicalOperator) Serialize() map[string]any { return terminalNode(op) }
