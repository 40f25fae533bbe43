package mailbox

import "encoding/binary"

// SubIndex selects either one numbered sub-index or a CoE "complete
// access" transfer (which always addresses sub-index 1 on the wire).
type SubIndex struct {
	Value    uint8
	Complete bool
}

// Sub builds a plain, non-complete-access sub-index selector.
func Sub(n uint8) SubIndex { return SubIndex{Value: n} }

// SubIndexComplete requests a complete access transfer of every
// sub-index of an object starting at sub-index 1.
var SubIndexComplete = SubIndex{Value: 1, Complete: true}

func (s SubIndex) wire() uint8 {
	if s.Complete {
		return 1
	}
	return s.Value
}

// SDO initiate command specifiers (ETG1000.6 Table 39/40).
const (
	sdoDownloadRequest uint8 = 1
	sdoUploadRequest   uint8 = 2
	sdoAbortRequest    uint8 = 4
)

// SDO segment command specifiers.
const (
	sdoDownloadSegmentRequest uint8 = 0
	sdoUploadSegmentRequest   uint8 = 3
)

// initSdoHeaderLen is the packed length of the 4-byte initiate SDO header.
const initSdoHeaderLen = 4

// initSdoHeader is the SDO header used by initiate download/upload
// requests and their non-segmented responses.
type initSdoHeader struct {
	sizeIndicator  bool
	expedited      bool
	size           uint8 // 0-3: bytes of the 4-byte payload left unused
	completeAccess bool
	command        uint8 // 3 bits
	index          uint16
	subIndex       uint8
}

func (h initSdoHeader) pack(dst []byte) {
	b := uint8(0)
	if h.sizeIndicator {
		b |= 0x01
	}
	if h.expedited {
		b |= 0x02
	}
	b |= (h.size & 0x03) << 2
	if h.completeAccess {
		b |= 0x10
	}
	b |= (h.command & 0x07) << 5
	dst[0] = b
	binary.LittleEndian.PutUint16(dst[1:3], h.index)
	dst[3] = h.subIndex
}

func unpackInitSdoHeader(src []byte) initSdoHeader {
	b := src[0]
	return initSdoHeader{
		sizeIndicator:  b&0x01 != 0,
		expedited:      b&0x02 != 0,
		size:           (b >> 2) & 0x03,
		completeAccess: b&0x10 != 0,
		command:        (b >> 5) & 0x07,
		index:          binary.LittleEndian.Uint16(src[1:3]),
		subIndex:       src[3],
	}
}

// segmentSdoHeaderLen is the packed length of the 1-byte segment SDO header.
const segmentSdoHeaderLen = 1

type segmentSdoHeader struct {
	isLastSegment   bool
	segmentDataSize uint8 // 3 bits, 7 - valid byte count of the final segment
	toggle          bool
	command         uint8 // 3 bits
}

func (h segmentSdoHeader) pack() byte {
	b := uint8(0)
	if h.isLastSegment {
		b |= 0x01
	}
	b |= (h.segmentDataSize & 0x07) << 1
	if h.toggle {
		b |= 0x10
	}
	b |= (h.command & 0x07) << 5
	return b
}

func unpackSegmentSdoHeader(b byte) segmentSdoHeader {
	return segmentSdoHeader{
		isLastSegment:   b&0x01 != 0,
		segmentDataSize: (b >> 1) & 0x07,
		toggle:          b&0x10 != 0,
		command:         (b >> 5) & 0x07,
	}
}

// requestLength is the mailbox header length value EtherCAT masters
// conventionally report for every initiate/segment SDO request,
// regardless of the actual payload carried: 2 bytes of CoE header
// plus the 4-byte initiate SDO header plus up to 4 bytes of expedited
// data, or the 1-byte segment SDO header padded the same way.
const requestLength = 0x0a

// encodeDownload builds an expedited SDO download request: a value of
// up to 4 bytes written directly into the initiate header's payload.
func encodeDownload(counter uint8, index uint16, sub SubIndex, data []byte) []byte {
	buf := make([]byte, HeaderLen+CoeHeaderLen+initSdoHeaderLen+4)
	Header{Length: requestLength, Type: TypeCoE, Priority: PriorityLowest, Counter: counter}.Pack(buf[0:HeaderLen])
	CoeHeader{Service: CoeServiceSdoRequest}.Pack(buf[HeaderLen : HeaderLen+CoeHeaderLen])
	h := initSdoHeader{
		sizeIndicator:  true,
		expedited:      true,
		size:           uint8(4 - len(data)),
		completeAccess: sub.Complete,
		command:        sdoDownloadRequest,
		index:          index,
		subIndex:       sub.wire(),
	}
	sdoStart := HeaderLen + CoeHeaderLen
	h.pack(buf[sdoStart : sdoStart+initSdoHeaderLen])
	copy(buf[sdoStart+initSdoHeaderLen:], data)
	return buf
}

// encodeUpload builds a normal (non-expedited) SDO upload request.
func encodeUpload(counter uint8, index uint16, sub SubIndex) []byte {
	buf := make([]byte, HeaderLen+CoeHeaderLen+initSdoHeaderLen)
	Header{Length: requestLength, Type: TypeCoE, Priority: PriorityLowest, Counter: counter}.Pack(buf[0:HeaderLen])
	CoeHeader{Service: CoeServiceSdoRequest}.Pack(buf[HeaderLen : HeaderLen+CoeHeaderLen])
	h := initSdoHeader{
		completeAccess: sub.Complete,
		command:        sdoUploadRequest,
		index:          index,
		subIndex:       sub.wire(),
	}
	h.pack(buf[HeaderLen+CoeHeaderLen:])
	return buf
}

// encodeUploadSegment builds a request for the next segment of a
// segmented upload in progress.
func encodeUploadSegment(counter uint8, toggle bool) []byte {
	buf := make([]byte, HeaderLen+CoeHeaderLen+segmentSdoHeaderLen)
	Header{Length: requestLength, Type: TypeCoE, Priority: PriorityLowest, Counter: counter}.Pack(buf[0:HeaderLen])
	CoeHeader{Service: CoeServiceSdoRequest}.Pack(buf[HeaderLen : HeaderLen+CoeHeaderLen])
	buf[HeaderLen+CoeHeaderLen] = segmentSdoHeader{toggle: toggle, command: sdoUploadSegmentRequest}.pack()
	return buf
}
