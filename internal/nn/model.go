package nn

import (
	"fmt"
	"strings"
)

// Model is a Sequential network partitioned into layer groups.
//
// Each group is itself a Module (a single layer or a nested Sequential).
// Groups are the unit of gradual unfreezing: UnfreezeGroups(m, 1) makes only
// the last group trainable.
//
// Example:
//
//	model := nn.NewModel(
//	    nn.NewSequential(nn.NewLinear(8, 32, rng), nn.NewReLU()), // group 0
//	    nn.NewSequential(nn.NewLinear(32, 32, rng), nn.NewReLU()), // group 1
//	    nn.NewLinear(32, 1, rng),                                  // group 2 (head)
//	)
type Model struct {
	*Sequential
	groups []Module
}

// NewModel creates a grouped model from its groups, first to last.
func NewModel(groups ...Module) *Model {
	return &Model{
		Sequential: NewSequential(groups...),
		groups:     groups,
	}
}

// Groups returns the parameters of each group, in network order.
func (m *Model) Groups() [][]*Parameter {
	out := make([][]*Parameter, len(m.groups))
	for i, g := range m.groups {
		out[i] = g.Parameters()
	}
	return out
}

// NumGroups returns the number of layer groups.
func (m *Model) NumGroups() int {
	return len(m.groups)
}

// String implements fmt.Stringer.
func (m *Model) String() string {
	var b strings.Builder
	b.WriteString("Model(\n")
	for i, g := range m.groups {
		fmt.Fprintf(&b, "  (group %d): %v\n", i, describe(g))
	}
	b.WriteString(")")
	return b.String()
}

var (
	_ Grouped   = (*Model)(nil)
	_ Trainable = (*Model)(nil)
)
