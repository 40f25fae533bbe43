// Package ethercat ties the wire codec, PDU loop, command layer,
// EEPROM reader, mailbox/CoE client, Distributed Clocks engine and
// SubDevice group state machine into a single EtherCAT MainDevice: a
// type that discovers devices on a raw Ethernet link, assigns them to
// groups, brings each group up through its state machine, and hands
// the caller groups ready for cyclic exchange.
package ethercat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethercat-go/ethercat/pkg/config"
	"github.com/ethercat-go/ethercat/pkg/eeprom"
	"github.com/ethercat-go/ethercat/pkg/group"
	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/subdevice"
)

// FirstStationAddress is the configured station address Discover
// assigns to the first device found on the ring; subsequent devices
// take consecutive addresses.
const FirstStationAddress uint16 = 0x1000

// Link is the raw Ethernet boundary a MainDevice is driven over: send
// one frame, receive one frame. pkg/link provides virtual.Link (for
// tests and loopback use) and rawsocket.Link (a real NIC).
type Link = pdu.Link

// MainDevice owns the PDU loop's three-way split and drives discovery,
// group assignment and DC initialisation over it.
type MainDevice struct {
	Config config.Config

	loop   *pdu.PduLoop
	tx     *pdu.TxDriver
	rx     *pdu.RxDriver
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger

	mu      sync.Mutex
	devices []*subdevice.SubDevice
	groups  []*group.Group
}

// New splits a PduStorage over link and starts the TX/RX driver
// goroutines. frameSlots and maxPduData size the storage pool (see
// pkg/pdu.NewPduStorage); cfg supplies timeouts and DC iteration
// counts.
func New(link Link, frameSlots, maxPduData int, cfg config.Config) (*MainDevice, error) {
	sto, err := pdu.NewPduStorage(frameSlots, maxPduData)
	if err != nil {
		return nil, err
	}
	tx, rx, loop, err := sto.Split()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &MainDevice{
		Config: cfg,
		loop:   loop,
		tx:     tx,
		rx:     rx,
		cancel: cancel,
		logger: slog.Default(),
	}

	m.wg.Add(2)
	go func() { defer m.wg.Done(); _ = tx.Run(ctx, link, cfg.Timeouts.WaitLoopDelay) }()
	go func() { defer m.wg.Done(); _ = rx.Run(ctx, link) }()

	return m, nil
}

// WithLogger overrides the default logger, matching the injection
// pattern used by pkg/group and pkg/subdevice.
func (m *MainDevice) WithLogger(l *slog.Logger) *MainDevice {
	m.logger = l
	return m
}

// Loop satisfies command.Sender, letting MainDevice itself issue
// top-level BRD/APWR/FPRD calls during discovery.
func (m *MainDevice) Loop() *pdu.PduLoop { return m.loop }

// Devices returns the devices the last Discover call found, in
// network order.
func (m *MainDevice) Devices() []*subdevice.SubDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*subdevice.SubDevice(nil), m.devices...)
}

// Groups returns the groups InitGroups assigned devices to.
func (m *MainDevice) Groups() []*group.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*group.Group(nil), m.groups...)
}

// Close stops the TX/RX drivers and waits for them to exit.
func (m *MainDevice) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

// newConfigurator builds a per-device Configurator sharing this
// MainDevice's Sender, timeouts and logger.
func (m *MainDevice) newConfigurator() *subdevice.Configurator {
	c := subdevice.NewConfigurator(m, m.Config.Timeouts.StateTransition)
	c.PollInterval = m.Config.Timeouts.WaitLoopDelay
	return c.WithLogger(m.logger)
}

// eepromReaderFor returns an SII reader addressed at dev's configured
// station address.
func (m *MainDevice) eepromReaderFor(dev *subdevice.SubDevice) *eeprom.Reader {
	return eeprom.NewReader(m, dev.ConfiguredAddress)
}
