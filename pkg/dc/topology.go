package dc

// DCNode is the topology-relevant subset of a SubDevice's state: its
// position in the discovery order, its four ports, and the outputs of
// topology inference (parent index and propagation delay). pkg/subdevice
// embeds one of these per SubDevice.
type DCNode struct {
	Index             int
	Ports             Ports
	ParentIndex       int // -1 if this device has no parent (first in the network)
	PropagationDelay  uint32
}

// NewDCNode returns a DCNode with ParentIndex initialised to "none".
func NewDCNode(index int, ports Ports) *DCNode {
	return &DCNode{Index: index, Ports: ports, ParentIndex: -1}
}

// isChildOf reports whether child sits on an intermediate (non-last)
// port of a junction (Fork or Cross) parent — the EtherCAT definition
// of "child" used by the propagation-delay table. Passthrough devices
// have no children, only a downstream device.
func isChildOf(parent, child *DCNode) bool {
	if !parent.Ports.Topology().IsJunction() {
		return false
	}
	childPort, ok := parent.Ports.PortAssignedTo(child.Index)
	if !ok {
		return false
	}
	return !parent.Ports.IsLastPort(childPort)
}

// findParent walks previously discovered nodes (nodes[:i], read in
// reverse) to find node i's parent: its immediate predecessor, unless
// that predecessor is a LineEnd, in which case it continues backward to
// the nearest junction.
func findParent(nodes []*DCNode, i int) (int, error) {
	if i == 0 {
		return -1, nil
	}
	prev := nodes[i-1]
	if prev.Ports.Topology() != TopologyLineEnd {
		return prev.Index, nil
	}
	for j := i - 2; j >= 0; j-- {
		if nodes[j].Ports.Topology().IsJunction() {
			return nodes[j].Index, nil
		}
	}
	return 0, ErrNoForkParent
}

// nodeByIndex finds a node by its Index field within nodes[:upTo].
func nodeByIndex(nodes []*DCNode, upTo int, index int) *DCNode {
	for j := 0; j < upTo; j++ {
		if nodes[j].Index == index {
			return nodes[j]
		}
	}
	return nil
}

// AssignTopology assigns parent/child relationships and computes
// propagation delays for every node, in discovery order. nodes must
// already be in network discovery order with DC receive times
// populated.
func AssignTopology(nodes []*DCNode) error {
	var delayAccum uint32

	for i, node := range nodes {
		parentIndex, err := findParent(nodes[:i], i)
		if err != nil {
			return err
		}
		node.ParentIndex = parentIndex

		if parentIndex < 0 {
			node.PropagationDelay = 0
			continue
		}
		parent := nodeByIndex(nodes, i, parentIndex)
		if parent == nil {
			return ErrNoForkParent
		}

		if _, ok := parent.Ports.AssignNextDownstreamPort(node.Index); !ok {
			return ErrNoEntryPort
		}

		delta, err := propagationDelta(parent, node, &delayAccum)
		if err != nil {
			return err
		}
		delayAccum += delta
		node.PropagationDelay = delayAccum
	}
	return nil
}

// propagationDelta implements the per-topology propagation-delay
// formula table.
func propagationDelta(parent, node *DCNode, delayAccum *uint32) (uint32, error) {
	parentTotal := parent.Ports.TotalPropagationTime()
	myTotal := node.Ports.TotalPropagationTime()

	switch parent.Ports.Topology() {
	case TopologyPassthrough:
		return halveSaturating(parentTotal, myTotal), nil

	case TopologyFork:
		if isChildOf(parent, node) {
			parentPort, ok := parent.Ports.PortAssignedTo(node.Index)
			if !ok {
				return 0, ErrNoEntryPort
			}
			childrenLoopTime, ok := parent.Ports.PropagationTimeTo(parentPort)
			if !ok {
				childrenLoopTime = 0
			}
			return halveSaturating(childrenLoopTime, myTotal), nil
		}
		return halveSaturating(parentTotal, myTotal), nil

	case TopologyCross:
		if isChildOf(parent, node) {
			// A child on an intermediate Cross port: halve the
			// receive-time span from the entry port to the child's
			// port, less the child's own total.
			parentPort, ok := parent.Ports.PortAssignedTo(node.Index)
			if !ok {
				return 0, ErrNoEntryPort
			}
			childrenLoopTime, _ := parent.Ports.PropagationTimeTo(parentPort)
			return halveSaturating(childrenLoopTime, myTotal), nil
		}
		return saturatingSub(parentTotal, *delayAccum), nil

	case TopologyLineEnd:
		// A parent can never be a LineEnd: it always has at least the
		// upstream port plus one downstream port open.
		return 0, nil

	default:
		return 0, nil
	}
}

func halveSaturating(a, b uint32) uint32 {
	return saturatingSub(a, b) / 2
}

func saturatingSub(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}
