package ethercat

import (
	"context"
	"fmt"

	"github.com/ethercat-go/ethercat/pkg/eeprom"
	"github.com/ethercat-go/ethercat/pkg/group"
	"github.com/ethercat-go/ethercat/pkg/subdevice"
)

// GroupAssignment maps each discovered device to a group id, the way
// an integrator decides which devices share a process image.
type GroupAssignment func(dev *subdevice.SubDevice) (groupID int, pdiBase uint32)

// SingleGroup assigns every device to group 0 starting at PDI address 0,
// the common case for a single process image covering the whole ring.
func SingleGroup(*subdevice.SubDevice) (int, uint32) { return 0, 0 }

// InitGroups partitions devices by assign, then drives each group
// through its full SubDevice configuration pass (ConfigureBasics,
// ProbeIO, FMMU assignment in the inputs-then-outputs order
// pkg/group.Group.Init requires). The returned groups are left in
// PRE-OP; callers still need to call TransitionTo to move them onward.
func (m *MainDevice) InitGroups(ctx context.Context, devices []*subdevice.SubDevice, assign GroupAssignment) ([]*group.Group, error) {
	type bucket struct {
		g       *group.Group
		devices []*subdevice.SubDevice
		readers []*eeprom.Reader
	}
	order := []int{}
	buckets := map[int]*bucket{}

	for _, dev := range devices {
		id, base := assign(dev)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{g: group.NewGroup(id, base)}
			buckets[id] = b
			order = append(order, id)
		}
		b.devices = append(b.devices, dev)
		b.readers = append(b.readers, m.eepromReaderFor(dev))
	}
	if len(buckets) == 0 {
		return nil, ErrNoGroups
	}

	cfg := m.newConfigurator()
	groups := make([]*group.Group, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		b.g.WithLogger(m.logger)
		if err := b.g.Init(ctx, b.devices, b.readers, cfg); err != nil {
			return nil, fmt.Errorf("ethercat: init group %d: %w", id, err)
		}
		groups = append(groups, b.g)
	}

	m.mu.Lock()
	m.groups = groups
	m.mu.Unlock()
	return groups, nil
}
