package mailbox

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// Mailbox describes one direction of a SubDevice's mailbox: the
// physical memory address and length EtherCAT datagrams target, and
// the Sync Manager backing it.
type Mailbox struct {
	Address     uint16
	Length      uint16
	SyncManager uint8
}

// PollInterval and ResponseTimeout govern the sync-manager-status busy
// loops used while waiting for a SubDevice to accept or produce
// mailbox data.
var (
	PollInterval    = time.Millisecond
	ResponseTimeout = 100 * time.Millisecond
)

// Client drives the CoE mailbox protocol against one SubDevice's
// configured write (MainDevice to SubDevice) and read (SubDevice to
// MainDevice) mailboxes.
type Client struct {
	sender  command.Sender
	station uint16
	write   Mailbox
	read    Mailbox
	counter uint32 // atomic, wraps 1..=7; 0 is reserved for "no response yet"
}

// NewClient builds a mailbox client. write and read must both be
// non-zero length; callers check HasMailbox before constructing one.
func NewClient(sender command.Sender, station uint16, write, read Mailbox) *Client {
	return &Client{sender: sender, station: station, write: write, read: read, counter: 0}
}

// nextCounter returns the next mailbox counter value, cycling through
// 1..=7 as ETG1000.6 requires (0 is not a valid counter value).
func (c *Client) nextCounter() uint8 {
	n := atomic.AddUint32(&c.counter, 1)
	return uint8(n%7) + 1
}

// waitForMailboxes clears a stale SubDevice-to-MainDevice mailbox (if
// one is sitting full from a previous, abandoned exchange) and then
// waits for the MainDevice-to-SubDevice mailbox to be empty and ready
// to accept a new request.
func (c *Client) waitForMailboxes(ctx context.Context) error {
	readStatusReg := wire.SmStatusRegister(int(c.read.SyncManager))
	writeStatusReg := wire.SmStatusRegister(int(c.write.SyncManager))

	for i := 0; i < 10; i++ {
		status, wkc, err := command.Fprd(c.station, readStatusReg).ReceiveUint8(ctx, c.sender)
		if err != nil {
			return err
		}
		if err := command.CheckWkc(wkc, 1, "mailbox read sm status"); err != nil {
			return err
		}
		if status&wire.SmStatusMailboxFull == 0 {
			break
		}
		log.WithField("station", c.station).Debug("mailbox: clearing stale read mailbox")
		drain := make([]byte, c.read.Length)
		if _, err := command.Fprd(c.station, c.read.Address).Receive(ctx, c.sender, drain); err != nil {
			return err
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(PollInterval):
			}
		}
	}

	deadline, cancel := context.WithTimeout(ctx, ResponseTimeout)
	defer cancel()
	for {
		status, wkc, err := command.Fprd(c.station, writeStatusReg).ReceiveUint8(deadline, c.sender)
		if err != nil {
			return err
		}
		if err := command.CheckWkc(wkc, 1, "mailbox write sm status"); err != nil {
			return err
		}
		if status&wire.SmStatusMailboxFull == 0 {
			return nil
		}
		select {
		case <-deadline.Done():
			return ErrTimeout
		case <-time.After(PollInterval):
		}
	}
}

// waitForMailboxResponse waits for the SubDevice-to-MainDevice mailbox
// to fill and reads it back.
func (c *Client) waitForMailboxResponse(ctx context.Context) ([]byte, error) {
	readStatusReg := wire.SmStatusRegister(int(c.read.SyncManager))

	deadline, cancel := context.WithTimeout(ctx, ResponseTimeout)
	defer cancel()
	for {
		status, wkc, err := command.Fprd(c.station, readStatusReg).ReceiveUint8(deadline, c.sender)
		if err != nil {
			return nil, err
		}
		if err := command.CheckWkc(wkc, 1, "mailbox response sm status"); err != nil {
			return nil, err
		}
		if status&wire.SmStatusMailboxFull != 0 {
			break
		}
		select {
		case <-deadline.Done():
			return nil, ErrTimeout
		case <-time.After(PollInterval):
		}
	}

	resp := make([]byte, c.read.Length)
	wkc, err := command.Fprd(c.station, c.read.Address).Receive(ctx, c.sender, resp)
	if err != nil {
		return nil, err
	}
	if err := command.CheckWkc(wkc, 1, "mailbox response read"); err != nil {
		return nil, err
	}
	return resp, nil
}

// writeRead sends request to the write mailbox and returns the raw
// response datagram once the read mailbox fills.
func (c *Client) writeRead(ctx context.Context, request []byte) ([]byte, error) {
	if err := c.waitForMailboxes(ctx); err != nil {
		return nil, err
	}
	payload := make([]byte, c.write.Length)
	copy(payload, request)
	wkc, err := command.Fpwr(c.station, c.write.Address).Send(ctx, c.sender, payload)
	if err != nil {
		return nil, err
	}
	if err := command.CheckWkc(wkc, 1, "mailbox write"); err != nil {
		return nil, err
	}
	return c.waitForMailboxResponse(ctx)
}
