// Package mock provides in-memory stand-ins for the drive and the MCU
// link so the player can run without hardware.
package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/disc"
)

// Disc is an audio disc in a drive that never leaves memory. Sector
// contents are derived from the sector address, see SectorData.
type Disc struct {
	// ReadDelay is slept before every sector read to emulate a 1x drive.
	ReadDelay time.Duration
	// OpenErr is returned by Open when set.
	OpenErr error

	mu     sync.Mutex
	bounds []disc.Bounds
	failAt map[int32]error
	reads  []int32
	speeds []int
	opened int
	closed bool
}

var _ disc.Device = (*Disc)(nil)

// NewDisc creates a disc with one audio track per entry of lengths,
// laid out back to back starting at sector 0.
func NewDisc(lengths ...int32) *Disc {
	d := &Disc{failAt: map[int32]error{}}
	var start int32
	for i, l := range lengths {
		d.bounds = append(d.bounds, disc.Bounds{
			TrackNum:    i + 1,
			StartSector: start,
			EndSector:   start + l,
			LBA:         start + 150,
			IsAudio:     true,
		})
		start += l
	}
	return d
}

// AddDataTrack appends a non-audio track of length sectors.
func (d *Disc) AddDataTrack(length int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var start int32
	if n := len(d.bounds); n > 0 {
		start = d.bounds[n-1].EndSector
	}
	d.bounds = append(d.bounds, disc.Bounds{
		TrackNum:    len(d.bounds) + 1,
		StartSector: start,
		EndSector:   start + length,
		LBA:         start + 150,
	})
}

// FailAt makes every read of sector return err.
func (d *Disc) FailAt(sector int32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAt[sector] = err
}

// Open implements disc.Opener. Every call hands out the same disc.
func (d *Disc) Open(path string) (disc.Device, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	d.closed = false
	return d, nil
}

func (d *Disc) TrackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bounds)
}

func (d *Disc) TrackBounds(i int) (disc.Bounds, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.bounds) {
		return disc.Bounds{}, fmt.Errorf("mock: no track %d", i)
	}
	return d.bounds[i], nil
}

func (d *Disc) ReadSector(sector int32, p []byte) error {
	if d.ReadDelay > 0 {
		time.Sleep(d.ReadDelay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("mock: read sector %d: device closed", sector)
	}
	d.reads = append(d.reads, sector)
	if err, ok := d.failAt[sector]; ok {
		return err
	}
	copy(p, SectorData(sector))
	return nil
}

func (d *Disc) SetSpeed(x int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speeds = append(d.speeds, x)
	return nil
}

func (d *Disc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Reads returns every sector address read so far, in order.
func (d *Disc) Reads() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int32(nil), d.reads...)
}

// Speeds returns every speed requested so far, in order.
func (d *Disc) Speeds() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.speeds...)
}

// Closed reports whether the device was released since it was last opened.
func (d *Disc) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Opened returns the number of successful Open calls.
func (d *Disc) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// SectorData returns the contents the mock reports for sector. The first
// four bytes hold the address big endian; the rest is a ramp.
func SectorData(sector int32) []byte {
	p := make([]byte, cd.BytesPerSector)
	for i := range p {
		p[i] = byte(i)
	}
	p[0] = byte(sector >> 24)
	p[1] = byte(sector >> 16)
	p[2] = byte(sector >> 8)
	p[3] = byte(sector)
	return p
}

// SectorOf recovers the address from data produced by SectorData.
func SectorOf(p []byte) int32 {
	return int32(p[0])<<24 | int32(p[1])<<16 | int32(p[2])<<8 | int32(p[3])
}
