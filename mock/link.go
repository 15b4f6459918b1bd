package mock

import (
	"bytes"
	"sync"

	"github.com/rabidaudio/cdplayer/spi"
)

// Link is an MCU that asks for the blocks queued with Request, one
// request per query, and keeps everything written to it.
type Link struct {
	mu       sync.Mutex
	requests []spi.DataRequest
	written  bytes.Buffer
	queries  int
	closed   bool
}

var _ spi.Link = (*Link)(nil)

// Request queues a request for count blocks starting at block address.
func (m *Link) Request(address uint32, count uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, spi.DataRequest{Requested: true, Address: address, SectorCount: count})
}

func (m *Link) Query() (dr spi.DataRequest, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if len(m.requests) == 0 {
		return dr, nil
	}
	dr, m.requests = m.requests[0], m.requests[1:]
	return dr, nil
}

func (m *Link) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.Write(p)
}

func (m *Link) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns a copy of everything written so far.
func (m *Link) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.written.Bytes())
}

// Pending reports how many requests have not been queried yet.
func (m *Link) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *Link) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func (m *Link) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
