package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const (
	frameHeaderSize = 17
	maxFrameSize    = 64 * 1024 * 1024

	// FlagUnfragmented marks a frame that carries a complete message
	FlagUnfragmented uint8 = 0xC0
	// FlagEvent marks a frame pushed by a member without a request
	FlagEvent uint8 = 0x01
)

// frameHeader is the decoded header of one frame
type frameHeader struct {
	correlationID int64
	partitionID   int32
	flags         uint8
}

func (h frameHeader) isEvent() bool {
	return h.flags&FlagEvent != 0
}

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: correlation id (int64, big endian)
// - 4 bytes: partition id (int32, big endian, -1 if unbound)
// - 1 byte: flags
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, h frameHeader, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[0:8], uint64(h.correlationID))
	binary.BigEndian.PutUint32(header[8:12], uint32(h.partitionID))
	header[12] = h.flags
	binary.BigEndian.PutUint32(header[13:17], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn net.Conn, buf []byte) (frameHeader, []byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return frameHeader{}, nil, err
	}

	h := frameHeader{
		correlationID: int64(binary.BigEndian.Uint64(header[0:8])),
		partitionID:   int32(binary.BigEndian.Uint32(header[8:12])),
		flags:         header[12],
	}
	contentLength := binary.BigEndian.Uint32(header[13:17])

	if contentLength == 0 {
		return h, []byte{}, nil
	}
	if contentLength > maxFrameSize {
		return h, nil, fmt.Errorf("frame of %d bytes exceeds the limit of %d bytes", contentLength, maxFrameSize)
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return h, nil, err
	}
	return h, buf[:contentLength], nil
}
