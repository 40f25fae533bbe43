// Package mailbox implements the EtherCAT mailbox protocol: the
// generic SM0/SM1 header shared by every mailbox-carried protocol, and
// a CoE (CANopen over EtherCAT) SDO upload/download client built on
// top of it.
package mailbox

import "encoding/binary"

// MailboxType is the 4-bit protocol tag carried in every mailbox
// header's type/counter byte.
type MailboxType uint8

const (
	TypeErr MailboxType = 0x00
	TypeAoE MailboxType = 0x01
	TypeEoE MailboxType = 0x02
	TypeCoE MailboxType = 0x03
	TypeFoE MailboxType = 0x04
	TypeSoE MailboxType = 0x05
	TypeVoE MailboxType = 0x0F
)

// Priority is the 2-bit priority field of a mailbox header. EtherCAT
// masters use Lowest almost exclusively; the field exists for devices
// that arbitrate between multiple mailbox clients.
type Priority uint8

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHighest
)

// HeaderLen is the packed length of the generic mailbox header.
const HeaderLen = 6

// Header is the 6-byte header prefixing every mailbox datagram:
// length of the service data following it, source station address
// (0 from the MainDevice), channel/priority, and protocol type plus a
// per-service counter the SubDevice echoes back so a master can match
// a response to its request.
type Header struct {
	Length   uint16
	Address  uint16
	Channel  uint8 // 6 bits, unused by CoE
	Priority Priority
	Type     MailboxType
	Counter  uint8 // 4 bits, must stay in 1..=7 per ETG1000.6
}

func (h Header) Pack(dst []byte) error {
	if len(dst) < HeaderLen {
		return ErrBufferTooShort
	}
	binary.LittleEndian.PutUint16(dst[0:2], h.Length)
	binary.LittleEndian.PutUint16(dst[2:4], h.Address)
	dst[4] = (h.Channel & 0x3F) | (uint8(h.Priority&0x03) << 6)
	dst[5] = uint8(h.Type&0x0F) | (h.Counter&0x0F)<<4
	return nil
}

func (h *Header) Unpack(src []byte) error {
	if len(src) < HeaderLen {
		return ErrBufferTooShort
	}
	h.Length = binary.LittleEndian.Uint16(src[0:2])
	h.Address = binary.LittleEndian.Uint16(src[2:4])
	h.Channel = src[4] & 0x3F
	h.Priority = Priority((src[4] >> 6) & 0x03)
	h.Type = MailboxType(src[5] & 0x0F)
	h.Counter = (src[5] >> 4) & 0x0F
	return nil
}

// CoeService is the 4-bit service field of a CoE header (ETG1000.6 Table 29).
type CoeService uint8

const (
	CoeServiceEmergency            CoeService = 1
	CoeServiceSdoRequest           CoeService = 2
	CoeServiceSdoResponse          CoeService = 3
	CoeServiceTxPdo                CoeService = 4
	CoeServiceRxPdo                CoeService = 5
	CoeServiceTxPdoRemoteRequest   CoeService = 6
	CoeServiceRxPdoRemoteRequest   CoeService = 7
	CoeServiceSdoInfo              CoeService = 8
)

// CoeHeaderLen is the packed length of the CoE header.
const CoeHeaderLen = 2

// CoeHeader follows the generic mailbox header on every CoE datagram:
// a 9-bit number field (always 0 for SDO traffic, used by PDO
// multiplexing) and the 4-bit service selector.
type CoeHeader struct {
	Number  uint16 // 9 bits
	Service CoeService
}

func (h CoeHeader) Pack(dst []byte) error {
	if len(dst) < CoeHeaderLen {
		return ErrBufferTooShort
	}
	word := (h.Number & 0x01FF) | (uint16(h.Service&0x0F) << 12)
	binary.LittleEndian.PutUint16(dst[0:2], word)
	return nil
}

func (h *CoeHeader) Unpack(src []byte) error {
	if len(src) < CoeHeaderLen {
		return ErrBufferTooShort
	}
	word := binary.LittleEndian.Uint16(src[0:2])
	h.Number = word & 0x01FF
	h.Service = CoeService((word >> 12) & 0x0F)
	return nil
}
