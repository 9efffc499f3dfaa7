package builder

import "github.com/sicko7947/fraudflow"

// NodeOption is a functional option for configuring nodes as they are added
type NodeOption func(*fraudflow.GraphNode)

// AsSuspension marks a node that blocks on a human decision
func AsSuspension() NodeOption {
	return func(n *fraudflow.GraphNode) {
		n.Kind = fraudflow.NodeKindSuspension
	}
}

// AsTerminal marks the node that ends the walk
func AsTerminal() NodeOption {
	return func(n *fraudflow.GraphNode) {
		n.Kind = fraudflow.NodeKindTerminal
	}
}

// ApplyOptions applies a list of options to a node
func ApplyOptions(n *fraudflow.GraphNode, opts ...NodeOption) {
	for _, opt := range opts {
		opt(n)
	}
}
