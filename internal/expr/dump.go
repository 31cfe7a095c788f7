package expr

import (
	"fmt"
	"strings"
)

// Dump renders the tree one node per line, indented by depth, with ids
// where assigned.
func Dump(root Node) string {
	var b strings.Builder
	dump(&b, root, 0)
	return b.String()
}

func dump(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	switch x := n.(type) {
	case *Constant:
		fmt.Fprintf(b, "const %s", x.Value)
	case *SensorLeaf:
		fmt.Fprintf(b, "sensor %s", x.String())
	case *Arithmetic:
		fmt.Fprintf(b, "arith %s", x.Op)
	case *Comparison:
		fmt.Fprintf(b, "compare %s", x.Op)
	case *Logic:
		fmt.Fprintf(b, "logic %s", x.Op)
	}
	if id := n.ID(); id != "" {
		fmt.Fprintf(b, " [%s]", id)
	}
	b.WriteByte('\n')
	for _, child := range n.children() {
		dump(b, child, depth+1)
	}
}
