// Package pes frames raw CD audio as MPEG private stream 1 PES packets
// carrying LPCM, the form DVB and DVD decoders accept for uncompressed
// audio.
//
// A packet is a 9 byte PES header, a 7 byte LPCM header and the payload:
//
//	00 00 01 BD  len_hi len_lo  80 00 00
//	A0 FF 00 00 00 <sample> 80
//	payload...
//
// The length field counts everything after itself. The sample byte holds
// the quantization (bits 7-6, 0 for 16 bit), the sample rate tag (bits
// 5-4) and the number of channels minus one (bits 2-0).
package pes

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rabidaudio/cdplayer/cd"
)

const (
	HeaderLen     = 9 // PES header including the extension
	headerExtLen  = 3 // the part of the PES header counted by the length field
	LPCMHeaderLen = 7
	MaxPackSize   = 4096
	MaxPayload    = MaxPackSize - HeaderLen - LPCMHeaderLen

	streamIDPrivate1 = 0xBD
	subStreamLPCM    = 0xA0
	frameHeaders     = 0xFF
	dynamicRangeOff  = 0x80
	ext1             = 0x80
)

// Rate is the sample rate tag of the LPCM header.
type Rate uint8

const (
	Rate48000 Rate = 0x00
	Rate96000 Rate = 0x10
	Rate44100 Rate = 0x20
	Rate32000 Rate = 0x30
)

// Hz returns the sample rate the tag stands for.
func (r Rate) Hz() int {
	switch r {
	case Rate48000:
		return 48000
	case Rate96000:
		return 96000
	case Rate44100:
		return 44100
	case Rate32000:
		return 32000
	default:
		return 0
	}
}

func (r Rate) String() string {
	if hz := r.Hz(); hz != 0 {
		return fmt.Sprintf("%dHz", hz)
	}
	return fmt.Sprintf("Rate(%#02x)", uint8(r))
}

var (
	ErrShortPacket = errors.New("pes: packet shorter than its headers")
	ErrNotLPCM     = errors.New("pes: not a private stream 1 LPCM packet")
)

// Header is the decoded information of a packet.
type Header struct {
	Rate       Rate
	Channels   int
	PayloadLen int
}

// Len returns the number of bytes Encode writes for a payload of n bytes.
func Len(n int) int {
	return HeaderLen + LPCMHeaderLen + n
}

// Encode writes a packet holding payload into dst and returns its length.
// The payload is CD audio in the drive's little endian sample order and
// every 16 bit sample is swapped to the big endian order LPCM carries.
// Oversized payloads and short destinations are refused without writing
// to dst.
func Encode(dst, payload []byte, rate Rate) (int, error) {
	if len(payload) > MaxPayload {
		return 0, fmt.Errorf("%w: %d bytes, at most %d", cd.ErrOversizedPacket, len(payload), MaxPayload)
	}
	n := Len(len(payload))
	if len(dst) < n {
		return 0, io.ErrShortBuffer
	}

	dst[0], dst[1], dst[2], dst[3] = 0x00, 0x00, 0x01, streamIDPrivate1
	binary.BigEndian.PutUint16(dst[4:6], uint16(headerExtLen+LPCMHeaderLen+len(payload)))
	dst[6], dst[7], dst[8] = ext1, 0x00, 0x00

	h := dst[HeaderLen:]
	h[0] = subStreamLPCM
	h[1] = frameHeaders
	h[2], h[3] = 0x00, 0x00 // first audio frame
	h[4] = 0x00             // no emphasis, not muted, frame 0
	h[5] = uint8(rate) | (cd.Channels - 1)
	h[6] = dynamicRangeOff

	swap16(dst[HeaderLen+LPCMHeaderLen:n], payload)
	return n, nil
}

// Packet is Encode into a new slice.
func Packet(payload []byte, rate Rate) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes, at most %d", cd.ErrOversizedPacket, len(payload), MaxPayload)
	}
	p := make([]byte, Len(len(payload)))
	_, err := Encode(p, payload, rate)
	return p, err
}

// Decode parses a packet written by Encode. The payload is swapped back
// to the drive's little endian sample order.
func Decode(packet []byte) (Header, []byte, error) {
	if len(packet) < HeaderLen+LPCMHeaderLen {
		return Header{}, nil, ErrShortPacket
	}
	if packet[0] != 0 || packet[1] != 0 || packet[2] != 1 || packet[3] != streamIDPrivate1 ||
		packet[HeaderLen] != subStreamLPCM {
		return Header{}, nil, ErrNotLPCM
	}
	length := int(binary.BigEndian.Uint16(packet[4:6]))
	n := length - headerExtLen - LPCMHeaderLen
	if n < 0 || HeaderLen+LPCMHeaderLen+n > len(packet) {
		return Header{}, nil, fmt.Errorf("%w: length field %d, have %d bytes", ErrShortPacket, length, len(packet))
	}

	sample := packet[HeaderLen+5]
	hdr := Header{
		Rate:       Rate(sample & 0x30),
		Channels:   int(sample&0x07) + 1,
		PayloadLen: n,
	}
	payload := make([]byte, n)
	swap16(payload, packet[HeaderLen+LPCMHeaderLen:HeaderLen+LPCMHeaderLen+n])
	return hdr, payload, nil
}

// swap16 copies src to dst swapping the bytes of every 16 bit word. A
// trailing odd byte is copied as is.
func swap16(dst, src []byte) {
	i := 0
	for ; i+1 < len(src); i += 2 {
		dst[i], dst[i+1] = src[i+1], src[i]
	}
	if i < len(src) {
		dst[i] = src[i]
	}
}
