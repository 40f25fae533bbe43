package mailbox

import (
	"context"
	"encoding/binary"

	log "github.com/sirupsen/logrus"
)

// commandSpecifier reads the 3-bit command/specifier field shared by
// every CoE header shape (initiate, segment, abort) at the same byte
// offset, letting an abort be recognised before the rest of that
// byte's field layout (which differs between initiate and segment
// headers) is interpreted.
func commandSpecifier(b byte) uint8 { return (b >> 5) & 0x07 }

// afterCoeHeader validates a raw mailbox datagram against the CoE
// protocol invariants common to every service (emergency, abort,
// wrong mailbox type) and returns the bytes following the 8-byte
// mailbox+CoE header region for the caller to interpret according to
// the service it actually requested.
func (c *Client) afterCoeHeader(raw []byte) (Header, []byte, error) {
	if len(raw) < HeaderLen+CoeHeaderLen {
		return Header{}, nil, ErrDecode
	}
	var mbox Header
	if err := mbox.Unpack(raw[0:HeaderLen]); err != nil {
		return Header{}, nil, err
	}
	var coe CoeHeader
	if err := coe.Unpack(raw[HeaderLen : HeaderLen+CoeHeaderLen]); err != nil {
		return Header{}, nil, err
	}
	rest := raw[HeaderLen+CoeHeaderLen:]

	if coe.Service == CoeServiceEmergency {
		if len(rest) < 3 {
			return Header{}, nil, ErrDecode
		}
		return Header{}, nil, &EmergencyError{
			ErrorCode:     binary.LittleEndian.Uint16(rest[0:2]),
			ErrorRegister: rest[2],
		}
	}

	if len(rest) == 0 {
		return Header{}, nil, ErrDecode
	}
	if commandSpecifier(rest[0]) == sdoAbortRequest {
		if len(rest) < initSdoHeaderLen+4 {
			return Header{}, nil, ErrDecode
		}
		sdo := unpackInitSdoHeader(rest[:initSdoHeaderLen])
		return Header{}, nil, &AbortError{
			Code:     AbortCode(binary.LittleEndian.Uint32(rest[initSdoHeaderLen : initSdoHeaderLen+4])),
			Index:    sdo.index,
			SubIndex: sdo.subIndex,
		}
	}

	if mbox.Type != TypeCoE {
		return Header{}, nil, &ResponseMismatchError{}
	}

	return mbox, rest, nil
}

// SdoWriteRaw performs an expedited SDO download: value must be 4
// bytes or fewer. Larger writes (segmented download) are not
// supported by this client, matching the scope of the runtime it was
// ported from.
func (c *Client) SdoWriteRaw(ctx context.Context, index uint16, sub SubIndex, value []byte) error {
	if len(value) > 4 {
		return ErrTooLong
	}
	counter := c.nextCounter()
	req := encodeDownload(counter, index, sub, value)
	log.WithFields(log.Fields{"index": index, "sub": sub.wire()}).Trace("coe: download")
	raw, err := c.writeRead(ctx, req)
	if err != nil {
		return err
	}
	_, _, err = c.afterCoeHeader(raw)
	return err
}

// SdoReadRaw performs an SDO upload, transparently following a
// segmented transfer if the SubDevice's reply isn't expedited or
// doesn't fit in one mailbox datagram.
func (c *Client) SdoReadRaw(ctx context.Context, index uint16, sub SubIndex) ([]byte, error) {
	counter := c.nextCounter()
	req := encodeUpload(counter, index, sub)
	log.WithFields(log.Fields{"index": index, "sub": sub.wire()}).Trace("coe: upload")
	raw, err := c.writeRead(ctx, req)
	if err != nil {
		return nil, err
	}
	mbox, rest, err := c.afterCoeHeader(raw)
	if err != nil {
		return nil, err
	}
	if len(rest) < initSdoHeaderLen {
		return nil, ErrDecode
	}
	sdo := unpackInitSdoHeader(rest[:initSdoHeaderLen])
	body := rest[initSdoHeaderLen:]

	if sdo.expedited {
		n := 4 - int(sdo.size)
		if n < 0 || n > len(body) {
			return nil, ErrDecode
		}
		out := make([]byte, n)
		copy(out, body[:n])
		return out, nil
	}

	if len(body) < 4 {
		return nil, ErrDecode
	}
	completeSize := binary.LittleEndian.Uint32(body[0:4])
	payload := body[4:]
	dataInHeader := int(mbox.Length) - 0x0a

	if completeSize <= uint32(dataInHeader) {
		if dataInHeader < 0 || dataInHeader > len(payload) {
			return nil, ErrDecode
		}
		out := make([]byte, dataInHeader)
		copy(out, payload[:dataInHeader])
		return out, nil
	}

	return c.readSegmented(ctx)
}

// readSegmented drives the segmented-upload follow-up requests once
// an initial upload response reports more data than fit in one frame.
func (c *Client) readSegmented(ctx context.Context) ([]byte, error) {
	var out []byte
	toggle := false
	for {
		counter := c.nextCounter()
		req := encodeUploadSegment(counter, toggle)
		raw, err := c.writeRead(ctx, req)
		if err != nil {
			return nil, err
		}
		mbox, rest, err := c.afterCoeHeader(raw)
		if err != nil {
			return nil, err
		}
		if len(rest) < segmentSdoHeaderLen {
			return nil, ErrDecode
		}
		seg := unpackSegmentSdoHeader(rest[0])
		payload := rest[segmentSdoHeaderLen:]

		// ETG1000.6: segment response data length is the mailbox
		// header length minus 3 overhead bytes (CoE header + segment
		// header); when that comes to exactly 7, the unused tail
		// bytes of the final, possibly short, segment must be
		// dropped using segment_data_size instead.
		chunkLen := int(mbox.Length) - 3
		if chunkLen == 7 {
			chunkLen -= int(seg.segmentDataSize)
		}
		if chunkLen < 0 || chunkLen > len(payload) {
			return nil, ErrDecode
		}
		out = append(out, payload[:chunkLen]...)

		if seg.isLastSegment {
			break
		}
		toggle = !toggle
	}
	return out, nil
}

// SdoReadUint8/16/32 are typed conveniences over SdoReadRaw for the
// object sizes CoE configuration most commonly touches.
func (c *Client) SdoReadUint8(ctx context.Context, index uint16, sub SubIndex) (uint8, error) {
	data, err := c.SdoReadRaw(ctx, index, sub)
	if err != nil {
		return 0, err
	}
	if len(data) < 1 {
		return 0, ErrDecode
	}
	return data[0], nil
}

func (c *Client) SdoReadUint16(ctx context.Context, index uint16, sub SubIndex) (uint16, error) {
	data, err := c.SdoReadRaw(ctx, index, sub)
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, ErrDecode
	}
	return binary.LittleEndian.Uint16(data), nil
}

func (c *Client) SdoReadUint32(ctx context.Context, index uint16, sub SubIndex) (uint32, error) {
	data, err := c.SdoReadRaw(ctx, index, sub)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, ErrDecode
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (c *Client) SdoWriteUint8(ctx context.Context, index uint16, sub SubIndex, v uint8) error {
	return c.SdoWriteRaw(ctx, index, sub, []byte{v})
}

func (c *Client) SdoWriteUint16(ctx context.Context, index uint16, sub SubIndex, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return c.SdoWriteRaw(ctx, index, sub, buf)
}

func (c *Client) SdoWriteUint32(ctx context.Context, index uint16, sub SubIndex, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return c.SdoWriteRaw(ctx, index, sub, buf)
}
