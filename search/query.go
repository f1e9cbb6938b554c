package search

import (
	"fmt"

	"github.com/williamgilpin/pypdb/errors"
)

// Node is one node of a search query tree: either a terminal Operator or a
// Group combining sub-nodes. Trees are pure values with no back-references;
// serializing the same tree twice yields identical output.
type Node interface {
	// Serialize renders the node into the Search API's nested JSON grammar.
	Serialize() map[string]any
}

// terminalNode wraps an operator into the Search API terminal-node form
func terminalNode(op Operator) map[string]any {
	return map[string]any{
		"type":       "terminal",
		"service":    string(op.Service()),
		"parameters": op.Parameters(),
	}
}

// LogicalOperator aggregates the results of a Group's children
type LogicalOperator string

const (
	And LogicalOperator = "and"
	Or  LogicalOperator = "or"
)

// Group combines operators and sub-groups with a logical operator. With
// Logic And, only hits matching every child are returned; with Or, hits
// matching any child. Groups nest to arbitrary depth and preserve child
// order.
type Group struct {
	Logic LogicalOperator
	Nodes []Node
}

// NewGroup builds a group from the given children in order
func NewGroup(logic LogicalOperator, nodes ...Node) Group {
	return Group{Logic: logic, Nodes: nodes}
}

// Serialize renders the group recursively
func (g Group) Serialize() map[string]any {
	children := make([]any, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		children = append(children, node.Serialize())
	}
	return map[string]any{
		"type":             "group",
		"logical_operator": string(g.Logic),
		"nodes":            children,
	}
}

// Validate walks the tree and reports structural problems before a network
// round trip. Operator/service pairing is checked permissively: the closed
// operator set maps totally onto services, and the upstream supported-
// operator lists shift over time, so no pairing is rejected here. Only
// structurally empty or malformed groups fail.
func Validate(node Node) error {
	switch n := node.(type) {
	case Group:
		if n.Logic != And && n.Logic != Or {
			return errors.WrapInvalid(
				fmt.Errorf("%w: logical operator %q", errors.ErrEmptyQuery, n.Logic),
				"Search", "Validate", "group logic check")
		}
		if len(n.Nodes) == 0 {
			return errors.WrapInvalid(errors.ErrEmptyQuery, "Search", "Validate", "group children check")
		}
		for _, child := range n.Nodes {
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil
	case Operator:
		return nil
	default:
		if node == nil {
			return errors.WrapInvalid(errors.ErrEmptyQuery, "Search", "Validate", "nil node check")
		}
		return errors.WrapInvalid(
			fmt.Errorf("%w: %T", errors.ErrUnknownService, node),
			"Search", "Validate", "node type check")
	}
}
