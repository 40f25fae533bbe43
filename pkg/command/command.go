// Package command provides typed, fluent wrappers over the PDU loop
// for every EtherCAT addressing mode: BRD/BWR, APRD/APWR, FPRD/FPWR,
// LRD/LWR/LRW and FRMW.
package command

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// ErrWorkingCounter is returned by the ReceiveWkc family of helpers
// when the received working counter does not match what the caller
// expected.
type ErrWorkingCounter struct {
	Expected uint16
	Received uint16
	Context  string
}

func (e *ErrWorkingCounter) Error() string {
	return fmt.Sprintf("command: working counter mismatch (%s): expected %d, got %d", e.Context, e.Expected, e.Received)
}

// Command is a tagged union over the EtherCAT addressing modes,
// carrying only its addressing tuple; cheap to copy.
type Command struct {
	code    wire.CommandCode
	address uint32
}

// Brd builds a Broadcast Read at the given register, auto-increment offset 0.
func Brd(register uint16) Command {
	return Command{code: wire.CmdBRD, address: wire.AddressBroadcast(0, register)}
}

// Bwr builds a Broadcast Write at the given register.
func Bwr(register uint16) Command {
	return Command{code: wire.CmdBWR, address: wire.AddressBroadcast(0, register)}
}

// Aprd builds an Auto-increment Physical Read addressed by negative
// chain position (0 = first device) and register.
func Aprd(autoIncrement uint16, register uint16) Command {
	return Command{code: wire.CmdAPRD, address: wire.AddressBroadcast(autoIncrement, register)}
}

// Apwr builds an Auto-increment Physical Write.
func Apwr(autoIncrement uint16, register uint16) Command {
	return Command{code: wire.CmdAPWR, address: wire.AddressBroadcast(autoIncrement, register)}
}

// Fprd builds a Configured-address Physical Read.
func Fprd(station uint16, register uint16) Command {
	return Command{code: wire.CmdFPRD, address: wire.AddressConfigured(station, register)}
}

// Fpwr builds a Configured-address Physical Write.
func Fpwr(station uint16, register uint16) Command {
	return Command{code: wire.CmdFPWR, address: wire.AddressConfigured(station, register)}
}

// Lrd builds a Logical Read over the process data image.
func Lrd(logicalAddr uint32) Command {
	return Command{code: wire.CmdLRD, address: wire.AddressLogical(logicalAddr)}
}

// Lwr builds a Logical Write.
func Lwr(logicalAddr uint32) Command {
	return Command{code: wire.CmdLWR, address: wire.AddressLogical(logicalAddr)}
}

// Lrw builds a Logical Read-Write.
func Lrw(logicalAddr uint32) Command {
	return Command{code: wire.CmdLRW, address: wire.AddressLogical(logicalAddr)}
}

// Frmw builds a Read-Multiple-Write against a configured station
// address and register, used for DC drift compensation.
func Frmw(station uint16, register uint16) Command {
	return Command{code: wire.CmdFRMW, address: wire.AddressConfigured(station, register)}
}

func (c Command) Code() wire.CommandCode { return c.code }
func (c Command) Address() uint32        { return c.address }

// Sender is the minimal view of a MainDevice a Command needs to reach
// the PDU loop.
type Sender interface {
	Loop() *pdu.PduLoop
}

// sendReceive allocates one frame, pushes exactly one PDU, awaits it
// and returns the raw payload plus working counter. It is the single
// terminal primitive every other helper in this file builds on.
func (c Command) sendReceive(ctx context.Context, s Sender, out []byte) ([]byte, uint16, error) {
	loop := s.Loop()
	frame, err := loop.AllocFrame()
	if err != nil {
		return nil, 0, err
	}
	h, err := loop.PushPdu(frame, c.code, c.address, out, 0)
	if err != nil {
		return nil, 0, err
	}
	if err := loop.Send(frame); err != nil {
		return nil, 0, err
	}
	rf, err := loop.Await(ctx, frame)
	if err != nil {
		log.WithFields(log.Fields{"cmd": c.code, "addr": c.address}).Debugf("command: await failed: %v", err)
		loop.Abandon(frame)
		return nil, 0, err
	}
	defer rf.Release()
	data, wkc, err := rf.ReadPdu(h)
	if err != nil {
		return nil, 0, err
	}
	result := make([]byte, len(data))
	copy(result, data)
	return result, wkc, nil
}

// SendReceiveSlice writes out as the outgoing payload (e.g. an LRW
// chunk carrying both outputs-to-write and space for inputs-to-read)
// and returns the payload EtherCAT wrote back plus the working
// counter.
func (c Command) SendReceiveSlice(ctx context.Context, s Sender, out []byte) ([]byte, uint16, error) {
	return c.sendReceive(ctx, s, out)
}

// Send writes value (packed little-endian) to the addressed register
// and returns the working counter, discarding any read-back payload.
func (c Command) Send(ctx context.Context, s Sender, value any) (uint16, error) {
	buf, err := encode(value)
	if err != nil {
		return 0, err
	}
	_, wkc, err := c.sendReceive(ctx, s, buf)
	return wkc, err
}

// Receive reads len(out) bytes from the addressed register/area into
// out and returns the working counter.
func (c Command) Receive(ctx context.Context, s Sender, out []byte) (uint16, error) {
	data, wkc, err := c.sendReceive(ctx, s, make([]byte, len(out)))
	if err != nil {
		return 0, err
	}
	copy(out, data)
	return wkc, nil
}

// ReceiveWkc is Receive with a working-counter assertion baked in.
func (c Command) ReceiveWkc(ctx context.Context, s Sender, out []byte, expected uint16, context_ string) error {
	wkc, err := c.Receive(ctx, s, out)
	if err != nil {
		return err
	}
	return CheckWkc(wkc, expected, context_)
}

// ReceiveUint8/16/32/64 decode a fixed-width little-endian register value.
func (c Command) ReceiveUint8(ctx context.Context, s Sender) (uint8, uint16, error) {
	buf := make([]byte, 1)
	wkc, err := c.Receive(ctx, s, buf)
	return buf[0], wkc, err
}

func (c Command) ReceiveUint16(ctx context.Context, s Sender) (uint16, uint16, error) {
	buf := make([]byte, 2)
	wkc, err := c.Receive(ctx, s, buf)
	return binary.LittleEndian.Uint16(buf), wkc, err
}

func (c Command) ReceiveUint32(ctx context.Context, s Sender) (uint32, uint16, error) {
	buf := make([]byte, 4)
	wkc, err := c.Receive(ctx, s, buf)
	return binary.LittleEndian.Uint32(buf), wkc, err
}

func (c Command) ReceiveUint64(ctx context.Context, s Sender) (uint64, uint16, error) {
	buf := make([]byte, 8)
	wkc, err := c.Receive(ctx, s, buf)
	return binary.LittleEndian.Uint64(buf), wkc, err
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case uint8:
		return []byte{v}, nil
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b, nil
	case uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b, nil
	case uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b, nil
	case []byte:
		return v, nil
	default:
		return nil, errors.New("command: unsupported value type")
	}
}

// CheckWkc turns an unexpected working counter into a typed error.
func CheckWkc(received, expected uint16, context_ string) error {
	if received != expected {
		log.Debugf("command: working counter mismatch (%s): expected %d, got %d", context_, expected, received)
		return &ErrWorkingCounter{Expected: expected, Received: received, Context: context_}
	}
	return nil
}
