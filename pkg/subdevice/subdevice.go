// Package subdevice models one discovered EtherCAT SubDevice and
// drives it from EEPROM-configured defaults up to PRE-OP: mailbox
// Sync Manager setup, the AL state transition, CoE-based (or
// EEPROM-based) PDO discovery, and FMMU assignment into the owning
// group's process image.
package subdevice

import (
	"github.com/ethercat-go/ethercat/pkg/dc"
	"github.com/ethercat-go/ethercat/pkg/eeprom"
	"github.com/ethercat-go/ethercat/pkg/mailbox"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// Mailbox records both directions of a SubDevice's mailbox as actually
// configured on its Sync Managers, alongside the supported protocol
// mask read from EEPROM.
type Mailbox struct {
	Write      mailbox.Mailbox
	Read       mailbox.Mailbox
	Protocols  eeprom.MailboxProtocols
	Configured bool
}

func (m Mailbox) HasCoE() bool { return m.Configured && m.Protocols.Has(eeprom.MailboxCoE) }

// IoRange is a SubDevice's contiguous byte sub-range within the
// owning group's process image.
type IoRange struct {
	Offset int
	Length int
}

// SubDevice is one discovered device: its position in the chain, its
// addressing, identity, mailbox and process-data configuration, and
// its Distributed Clocks topology node.
type SubDevice struct {
	Index             int
	ConfiguredAddress uint16
	Alias             uint16

	Identity eeprom.Identity
	Name     string

	Mailbox Mailbox

	// Inputs is the SubDevice-to-MainDevice (Tx) I/O range; Outputs is
	// MainDevice-to-SubDevice (Rx). Both are offsets into the group's
	// PDI buffer, assigned during configuration.
	Inputs  IoRange
	Outputs IoRange

	DC *dc.DCNode

	DcSync      dcSyncRequest
	State       wire.AlState
	HasDC       bool
}

// dcSyncRequest is the SYNC0/1 configuration requested for this
// device, mirroring dc.Config but kept local so pkg/subdevice does not
// need to depend on dc.SyncMode's zero value meaning "none" across
// package boundaries in confusing ways.
type dcSyncRequest struct {
	set    bool
	config dc.Config
}

// RequestDcSync records the SYNC0/1 configuration pkg/group's DC
// configuration pass should program onto this device.
func (s *SubDevice) RequestDcSync(cfg dc.Config) { s.DcSync = dcSyncRequest{set: true, config: cfg} }

func (s *SubDevice) DcSyncConfig() (dc.Config, bool) { return s.DcSync.config, s.DcSync.set }

// New builds a SubDevice at the given chain index with the station
// address the discovery pass assigned it (conventionally 0x1000 + index).
func New(index int, configuredAddress uint16) *SubDevice {
	return &SubDevice{
		Index:             index,
		ConfiguredAddress: configuredAddress,
		DC:                dc.NewDCNode(index, dc.Ports{}),
	}
}
