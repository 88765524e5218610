// Package gridconnect implements a frameio.Sink over a GridConnect-speaking
// serial port, the usual way to reach an LCC CAN-USB adapter. It is a
// direct descendant of the teacher's SerialInNode/SerialOutNode pair,
// generalized from arbitrary line payloads to the GridConnect ASCII
// envelope.
package gridconnect

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/transport/frameio"
)

// Config describes the serial port a Sink opens.
type Config struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits serial.StopBits
	Parity   serial.Parity
}

// DefaultConfig mirrors the teacher's serial node defaults: 8N1.
func DefaultConfig(port string, baud int) Config {
	return Config{
		Port:     port,
		BaudRate: baud,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
}

// Sink is a frameio.Sink backed by a serial port speaking GridConnect
// ASCII. Outbound frames are formatted and written immediately; inbound
// bytes are read by a background goroutine, accumulated into whole
// GridConnect frames at ';' boundaries, and decoded onto an internal
// channel that Receive drains.
type Sink struct {
	log  *zap.Logger
	port serial.Port

	rxCh chan canframe.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

// Open opens the serial port described by cfg and starts the read loop.
func Open(log *zap.Logger, cfg Config) (*Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("gridconnect: open %s: %w", cfg.Port, err)
	}

	s := &Sink{
		log:    log,
		port:   port,
		rxCh:   make(chan canframe.Frame, 64),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Send formats f as a GridConnect envelope and writes it to the port.
func (s *Sink) Send(f canframe.Frame) error {
	_, err := s.port.Write([]byte(canframe.Format(f)))
	if err != nil {
		return fmt.Errorf("gridconnect: write: %w", err)
	}
	return nil
}

// Receive blocks until a decoded frame is available or the sink closes.
func (s *Sink) Receive() (canframe.Frame, error) {
	select {
	case f, ok := <-s.rxCh:
		if !ok {
			return canframe.Frame{}, frameio.ErrClosed
		}
		return f, nil
	case <-s.closed:
		return canframe.Frame{}, frameio.ErrClosed
	}
}

// Close closes the serial port and unblocks Receive. Idempotent.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.port.Close()
	})
	return err
}

// readLoop accumulates bytes into whole GridConnect frames, splitting on
// ';' so a frame is decoded as soon as it is complete rather than waiting
// for a newline the adapter may never send.
func (s *Sink) readLoop() {
	reader := bufio.NewReaderSize(s.port, 4096)
	for {
		chunk, err := reader.ReadBytes(';')
		if err != nil {
			if err != io.EOF {
				s.log.Warn("gridconnect: serial read error", zap.Error(err))
			}
			return
		}

		frames, err := canframe.Parse(string(chunk))
		if err != nil {
			s.log.Warn("gridconnect: dropping malformed input", zap.Error(err))
			continue
		}
		for _, f := range frames {
			select {
			case s.rxCh <- f:
			case <-s.closed:
				return
			}
		}
	}
}
