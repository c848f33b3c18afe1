package wanagent

import (
	"encoding/binary"
	"fmt"
	"io"
)

// requestHeaderSize is the on-wire size of RequestHeader: seq(8) + site_id(4)
// + payload_size(8), little-endian, no padding.
const requestHeaderSize = 8 + 4 + 8

// responseSize is the on-wire size of Response: seq(8) + site_id(4).
const responseSize = 8 + 4

// requestHeader is sent by the sender immediately before payload_size bytes
// of payload. It has no magic bytes or version field — spec.md §4.1 is
// explicit that peer pairing is established entirely by connection
// direction, not by anything on the wire.
type requestHeader struct {
	Seq         SeqNo
	SiteID      SiteID
	PayloadSize uint64
}

// response is sent by a server worker after a request has been fully read
// and the user callback has returned.
type response struct {
	Seq    SeqNo
	SiteID SiteID
}

func encodeRequestHeader(h requestHeader) []byte {
	buf := make([]byte, requestHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.Seq))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.SiteID))
	binary.LittleEndian.PutUint64(buf[12:20], h.PayloadSize)
	return buf
}

func decodeRequestHeader(buf []byte) requestHeader {
	return requestHeader{
		Seq:         SeqNo(binary.LittleEndian.Uint64(buf[0:8])),
		SiteID:      SiteID(binary.LittleEndian.Uint32(buf[8:12])),
		PayloadSize: binary.LittleEndian.Uint64(buf[12:20]),
	}
}

func encodeResponse(r response) []byte {
	buf := make([]byte, responseSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.Seq))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.SiteID))
	return buf
}

func decodeResponse(buf []byte) response {
	return response{
		Seq:    SeqNo(binary.LittleEndian.Uint64(buf[0:8])),
		SiteID: SiteID(binary.LittleEndian.Uint32(buf[8:12])),
	}
}

// readFull reads exactly len(buf) bytes, looping until it is satisfied or
// the connection fails. A short read is an unrecoverable error for that
// connection, as spec.md §4.1 requires of sock_read.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return nil
}

// writeFull writes all of buf, looping until it is fully sent or the
// connection fails, mirroring spec.md §4.1's sock_write.
func writeFull(w io.Writer, buf []byte) error {
	n := 0
	for n < len(buf) {
		written, err := w.Write(buf[n:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFraming, err)
		}
		n += written
	}
	return nil
}

func writeRequest(w io.Writer, h requestHeader, payload []byte) error {
	if err := writeFull(w, encodeRequestHeader(h)); err != nil {
		return err
	}
	return writeFull(w, payload)
}

func readRequestHeader(r io.Reader) (requestHeader, error) {
	buf := make([]byte, requestHeaderSize)
	if err := readFull(r, buf); err != nil {
		return requestHeader{}, err
	}
	return decodeRequestHeader(buf), nil
}

func writeResponse(w io.Writer, r response) error {
	return writeFull(w, encodeResponse(r))
}

func readResponse(r io.Reader) (response, error) {
	buf := make([]byte, responseSize)
	if err := readFull(r, buf); err != nil {
		return response{}, err
	}
	return decodeResponse(buf), nil
}
