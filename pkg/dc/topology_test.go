package dc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ports(t0, t3, t1, t2 uint32, active0, active3, active1, active2 bool) Ports {
	p := NewPorts(active0, active3, active1, active2)
	p.SetReceiveTimes(t0, t3, t1, t2)
	return p
}

// TestTopologyCrossFixture reproduces a chain
// EK1100 -> EK1122(cross) -> {EK1914 -> EL1008, EK1101, EL9560} whose
// propagation delays must compute to exactly
// [0, 145, 665, 820, 2035, 2720] ns.
func TestTopologyCrossFixture(t *testing.T) {
	nodes := []*DCNode{
		NewDCNode(0, ports(3493061450, 1819436374, 3493064460, 0, true, false, true, false)),
		NewDCNode(1, ports(3493293220, 3493294570, 3493295650, 3493295940, true, true, true, true)),
		NewDCNode(2, ports(3485337450, 1819436374, 3485337760, 0, true, false, true, false)),
		NewDCNode(3, ports(3488375400, 1819436374, 1717989224, 0, true, false, false, false)),
		NewDCNode(4, ports(3485087810, 1819436374, 1717989224, 0, true, false, false, false)),
		NewDCNode(5, ports(3494335890, 1819436374, 1717989224, 0, true, false, false, false)),
	}

	require.NoError(t, AssignTopology(nodes))

	wantDelay := []uint32{0, 145, 665, 820, 2035, 2720}
	wantParent := []int{-1, 0, 1, 2, 1, 1}
	for i, n := range nodes {
		assert.Equalf(t, wantDelay[i], n.PropagationDelay, "node %d delay", i)
		assert.Equalf(t, wantParent[i], n.ParentIndex, "node %d parent", i)
	}

	assert.Equal(t, TopologyCross, nodes[1].Ports.Topology())
	assert.Equal(t, TopologyPassthrough, nodes[0].Ports.Topology())
	assert.Equal(t, TopologyLineEnd, nodes[3].Ports.Topology())
}

// TestTopologyForkFixture is the companion fork-topology fixture from
// the same source test suite: EK1100(fork) with EK1122 + EK1914 chains
// hanging off it.
func TestTopologyForkFixture(t *testing.T) {
	nodes := []*DCNode{
		NewDCNode(0, ports(3380373882, 1819436374, 3380374482, 3380375762, true, false, true, true)),
		NewDCNode(1, ports(3384116362, 1819436374, 1717989224, 3384116672, true, false, false, true)),
		NewDCNode(2, ports(3383862982, 1819436374, 1717989224, 0, true, false, false, false)),
		NewDCNode(3, ports(3373883962, 1819436374, 3373884272, 0, true, false, true, false)),
		NewDCNode(4, ports(3375060602, 1819436374, 1717989224, 0, true, false, false, false)),
	}

	require.NoError(t, AssignTopology(nodes))

	wantDelay := []uint32{0, 145, 300, 1085, 1240}
	wantParent := []int{-1, 0, 1, 0, 3}
	for i, n := range nodes {
		assert.Equalf(t, wantDelay[i], n.PropagationDelay, "node %d delay", i)
		assert.Equalf(t, wantParent[i], n.ParentIndex, "node %d parent", i)
	}
	assert.Equal(t, TopologyFork, nodes[0].Ports.Topology())
}

func TestFindParentViaJunction(t *testing.T) {
	// EK1100(fork) -> EL2004 -> EL3004 ; EK1100 -> EK1914 -> EL1008
	ek1100 := NewDCNode(0, NewPorts(true, true, true, false))
	el2004 := NewDCNode(1, NewPorts(true, false, false, true)) // passthrough
	el3004 := NewDCNode(2, NewPorts(true, false, false, false)) // line end
	ek1914 := NewDCNode(3, NewPorts(true, false, true, false))  // passthrough
	el1008 := NewDCNode(4, NewPorts(true, false, false, false)) // line end

	nodes := []*DCNode{ek1100, el2004, el3004, ek1914, el1008}
	for i, n := range nodes {
		n.Ports.SetReceiveTimes(uint32(i*1000), uint32(i*1000+300), uint32(i*1000+100), uint32(i*1000+200))
	}
	require.NoError(t, AssignTopology(nodes))

	assert.Equal(t, ek1100.Index, ek1914.ParentIndex, "EK1914's parent is the EK1100 junction")
	assert.Equal(t, ek1914.Index, el1008.ParentIndex)
}

func TestEntryPortAndTopology(t *testing.T) {
	p := NewPorts(true, true, true, false) // fork
	entry, ok := p.EntryPort()
	require.True(t, ok)
	assert.Equal(t, 0, entry.Number)
	assert.Equal(t, TopologyFork, p.Topology())
}
