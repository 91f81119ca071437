package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle that cannot be resolved eagerly.
// Path holds the registrations on the cycle, starting and ending at Node.
type CycleError struct {
	Node NodeKey
	Path []NodeKey
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("circular resolution detected:\n\n")

	if len(e.Path) == 0 {
		fmt.Fprintf(&b, "    %s -> %s\n", e.Node, e.Node)
	} else {
		for _, node := range e.Path {
			fmt.Fprintf(&b, "    %s\n      v\n", node)
		}
		fmt.Fprintf(&b, "    %s (cycle)\n", e.Path[0])
	}

	b.WriteString("\nDeclare one side of the cycle with a lazy reference so it resolves on first use.")
	return b.String()
}
