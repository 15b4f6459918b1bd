// Package spi talks to the microcontroller that presents the virtual
// volume to the head unit.
//
// On every poll the Pi opens a transaction and asks whether any blocks are
// wanted [QUERY]. The MCU answers [ACK | NAK, address uint32, count uint8]
// and the transaction closes. When blocks were requested the Pi opens a
// second transaction and writes all of them.
package spi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

const (
	NAK   = iota // 0x00
	ACK          // 0x01
	QUERY        // 0x02
)

const Speed = 10_000_000 // 10 MHz

// QueryLen is the size of a query exchange.
const QueryLen = 7

var ErrNoResponse = errors.New("spi: no response from mcu")

// DataRequest is the MCU's answer to a query. Address and SectorCount
// count 512 byte blocks of the virtual volume.
type DataRequest struct {
	Requested   bool
	Address     uint32
	SectorCount uint8
}

// Link is a connection to the MCU.
type Link interface {
	Query() (DataRequest, error)
	// Write sends requested blocks. Only call it after a Query asked for data.
	Write(p []byte) (int, error)
	Close() error
}

// Spi is the hardware link over the Pi's SPI controller.
type Spi struct {
	dev        rpio.SpiDev
	chipSelect uint8
}

var _ Link = (*Spi)(nil)

func Open() (*Spi, error) {
	return OpenDevice(rpio.Spi0, 0)
}

func OpenDevice(dev rpio.SpiDev, chipSelect uint8) (*Spi, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("spi: %w", err)
	}
	if err := rpio.SpiBegin(dev); err != nil {
		_ = rpio.Close()
		return nil, fmt.Errorf("spi: %w", err)
	}
	rpio.SpiChipSelect(chipSelect)
	rpio.SpiSpeed(Speed)
	return &Spi{dev: dev, chipSelect: chipSelect}, nil
}

func (*Spi) Query() (DataRequest, error) {
	b := make([]byte, QueryLen)
	b[0] = QUERY
	rpio.SpiExchange(b)
	return ParseResponse(b)
}

// ParseResponse decodes the bytes clocked back during a query.
func ParseResponse(b []byte) (dr DataRequest, err error) {
	if len(b) < QueryLen {
		return dr, fmt.Errorf("spi: short response: %d bytes", len(b))
	}
	// MISO idles high with nothing driving it
	if bytes.Count(b[:QueryLen], []byte{0xFF}) == QueryLen {
		return dr, ErrNoResponse
	}
	switch b[1] {
	case ACK:
		dr.Requested = true
	case NAK:
		dr.Requested = false
	default:
		return dr, fmt.Errorf("spi: invalid response from mcu: %v", b)
	}
	dr.Address = binary.LittleEndian.Uint32(b[2:])
	dr.SectorCount = b[6]
	return dr, nil
}

func (*Spi) Write(p []byte) (int, error) {
	rpio.SpiTransmit(p...)
	return len(p), nil
}

func (s *Spi) Close() error {
	rpio.SpiEnd(s.dev)
	return rpio.Close()
}
