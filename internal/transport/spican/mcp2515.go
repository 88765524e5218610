// Package spican implements a frameio.Sink over an SPI-attached MCP2515
// CAN controller, for nodes that reach the bus directly instead of
// through a GridConnect serial adapter. It generalizes the teacher's
// MCP2515Executor (internal/hal-based) to periph.io's conn/host stack and
// to the 29-bit extended-ID framing this core always uses.
package spican

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/transport/frameio"
)

// MCP2515 register addresses used by this driver.
const (
	regCANSTAT  = 0x0E
	regCANCTRL  = 0x0F
	regCNF3     = 0x28
	regCNF2     = 0x29
	regCNF1     = 0x2A
	regCANINTE  = 0x2B
	regCANINTF  = 0x2C
	regTXB0CTRL = 0x30
	regTXB0SIDH = 0x31
	regRXB0CTRL = 0x60
	regRXB1CTRL = 0x70
)

// MCP2515 SPI instruction bytes.
const (
	cmdReset      = 0xC0
	cmdRead       = 0x03
	cmdWrite      = 0x02
	cmdReadRXB0   = 0x90
	cmdReadRXB1   = 0x94
	cmdLoadTXB0   = 0x40
	cmdRTSTXB0    = 0x81
	cmdReadStatus = 0xA0
	cmdRXStatus   = 0xB0
)

// MCP2515 operating modes (top 3 bits of CANCTRL/CANSTAT).
const (
	modeNormal = 0x00
	modeConfig = 0x80
)

// Config describes the SPI bus, chip-select, interrupt pin, and bit
// timing for one MCP2515 controller.
type Config struct {
	SPIBus  string // e.g. "/dev/spidev0.0"; empty selects the default bus
	IntPin  string // GPIO pin name wired to the controller's INT line
	SPIHz   physic.Frequency
	Bitrate int // CAN bus bitrate: 125000, 250000, 500000, 1000000
	Crystal int // oscillator frequency: 8000000 or 16000000
}

// Sink is a frameio.Sink backed by one MCP2515 controller.
type Sink struct {
	log    *zap.Logger
	conn   spi.Conn
	intPin gpio.PinIO

	mu sync.Mutex

	rxCh      chan canframe.Frame
	closeOnce sync.Once
	closed    chan struct{}
}

// Open initializes periph's host drivers, opens the SPI port, configures
// the MCP2515 for the requested bitrate, and starts the interrupt-driven
// receive loop.
func Open(log *zap.Logger, cfg Config) (*Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("spican: host.Init: %w", err)
	}

	port, err := spireg.Open(cfg.SPIBus)
	if err != nil {
		return nil, fmt.Errorf("spican: open SPI port %q: %w", cfg.SPIBus, err)
	}
	hz := cfg.SPIHz
	if hz == 0 {
		hz = 10 * physic.MegaHertz
	}
	conn, err := port.Connect(hz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spican: connect SPI: %w", err)
	}

	var intPin gpio.PinIO
	if cfg.IntPin != "" {
		intPin = gpioreg.ByName(cfg.IntPin)
		if intPin == nil {
			return nil, fmt.Errorf("spican: unknown interrupt pin %q", cfg.IntPin)
		}
		if err := intPin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("spican: configure interrupt pin: %w", err)
		}
	}

	s := &Sink{
		log:    log,
		conn:   conn,
		intPin: intPin,
		rxCh:   make(chan canframe.Frame, 64),
		closed: make(chan struct{}),
	}
	if err := s.configure(cfg); err != nil {
		return nil, err
	}
	go s.readLoop()
	return s, nil
}

func (s *Sink) transfer(w []byte) ([]byte, error) {
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return nil, fmt.Errorf("spican: spi transfer: %w", err)
	}
	return r, nil
}

func (s *Sink) writeRegister(reg, value byte) error {
	_, err := s.transfer([]byte{cmdWrite, reg, value})
	return err
}

func (s *Sink) readRegister(reg byte) (byte, error) {
	r, err := s.transfer([]byte{cmdRead, reg, 0x00})
	if err != nil {
		return 0, err
	}
	return r[2], nil
}

func (s *Sink) configure(cfg Config) error {
	if _, err := s.transfer([]byte{cmdReset}); err != nil {
		return fmt.Errorf("spican: reset: %w", err)
	}
	time.Sleep(10 * time.Millisecond)

	if err := s.writeRegister(regCANCTRL, modeConfig); err != nil {
		return err
	}

	cnf1, cnf2, cnf3 := bitTiming(cfg.Crystal, cfg.Bitrate)
	for reg, v := range map[byte]byte{regCNF1: cnf1, regCNF2: cnf2, regCNF3: cnf3} {
		if err := s.writeRegister(reg, v); err != nil {
			return err
		}
	}

	if err := s.writeRegister(regRXB0CTRL, 0x60); err != nil { // no filtering
		return err
	}
	if err := s.writeRegister(regRXB1CTRL, 0x60); err != nil {
		return err
	}
	if err := s.writeRegister(regCANINTE, 0x03); err != nil { // RX0IE|RX1IE
		return err
	}
	return s.writeRegister(regCANCTRL, modeNormal)
}

// bitTiming returns CNF1/CNF2/CNF3 for an 8MHz crystal, or a 16MHz one for
// any other Crystal value; unlisted bitrates get 0x00/0x90/0x02. Grounded
// on the same lookup table the teacher's MCP2515 node uses.
func bitTiming(crystal, bitrate int) (cnf1, cnf2, cnf3 byte) {
	if crystal == 8000000 {
		switch bitrate {
		case 1000000:
			return 0x00, 0x90, 0x02
		case 250000:
			return 0x01, 0xB1, 0x05
		case 125000:
			return 0x01, 0xB4, 0x86
		default:
			return 0x00, 0x90, 0x02
		}
	}
	switch bitrate {
	case 1000000:
		return 0x00, 0x80, 0x00
	case 250000:
		return 0x00, 0xB1, 0x05
	case 125000:
		return 0x01, 0xB1, 0x05
	default:
		return 0x00, 0x90, 0x02
	}
}

// Send loads and transmits one CAN frame via TX buffer 0. A production
// driver would rotate across all three TX buffers; this core only ever
// has one interface's worth of outbound traffic in flight at a time
// thanks to the executor's single-threaded ownership, so one buffer
// suffices.
func (s *Sink) Send(f canframe.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := f.Header & 0x1FFFFFFF
	sidh := byte((id >> 21) & 0xFF)
	sidl := byte(((id>>13)&0xE0)|0x08|((id>>16)&0x03))
	eid8 := byte((id >> 8) & 0xFF)
	eid0 := byte(id & 0xFF)

	payload := f.Payload()
	dlc := byte(len(payload))

	txData := make([]byte, 6+len(payload))
	txData[0] = cmdLoadTXB0
	txData[1] = sidh
	txData[2] = sidl
	txData[3] = eid8
	txData[4] = eid0
	txData[5] = dlc
	copy(txData[6:], payload)

	if _, err := s.transfer(txData); err != nil {
		return fmt.Errorf("spican: load TX buffer: %w", err)
	}
	if _, err := s.transfer([]byte{cmdRTSTXB0}); err != nil {
		return fmt.Errorf("spican: request to send: %w", err)
	}

	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case <-deadline:
			return fmt.Errorf("spican: transmission timeout")
		default:
			ctrl, err := s.readRegister(regTXB0CTRL)
			if err != nil {
				return err
			}
			if ctrl&0x08 == 0 {
				if ctrl&0x70 != 0 {
					return fmt.Errorf("spican: transmission error 0x%02X", ctrl)
				}
				return nil
			}
			time.Sleep(time.Millisecond)
		}
	}
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

// Close releases the sink. Idempotent.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// readLoop polls the MCP2515 RX status, either on the interrupt pin's
// falling edge (when wired) or a short idle poll, and decodes any
// pending message into a Frame.
func (s *Sink) readLoop() {
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		if s.intPin != nil {
			s.intPin.WaitForEdge(50 * time.Millisecond)
		} else {
			time.Sleep(5 * time.Millisecond)
		}

		f, ok, err := s.pollOnce()
		if err != nil {
			s.log.Warn("spican: receive error", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		select {
		case s.rxCh <- f:
		case <-s.closed:
			return
		}
	}
}

func (s *Sink) pollOnce() (canframe.Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.transfer([]byte{cmdRXStatus, 0x00})
	if err != nil {
		return canframe.Frame{}, false, err
	}
	rxStatus := status[1]

	var readCmd byte
	var rxCtrlReg byte
	switch {
	case rxStatus&0x40 != 0:
		readCmd, rxCtrlReg = cmdReadRXB0, regRXB0CTRL
	case rxStatus&0x80 != 0:
		readCmd, rxCtrlReg = cmdReadRXB1, regRXB1CTRL
	default:
		return canframe.Frame{}, false, nil
	}

	raw, err := s.transfer(append([]byte{readCmd}, make([]byte, 13)...))
	if err != nil {
		return canframe.Frame{}, false, err
	}

	sidh, sidl, eid8, eid0, dlcByte := raw[1], raw[2], raw[3], raw[4], raw[5]
	var id uint32
	if sidl&0x08 != 0 {
		id = uint32(sidh)<<21 | uint32(sidl&0xE0)<<13 | uint32(sidl&0x03)<<16 | uint32(eid8)<<8 | uint32(eid0)
	} else {
		id = uint32(sidh)<<3 | uint32(sidl>>5)
	}
	dlc := int(dlcByte & 0x0F)
	if dlc > 8 {
		dlc = 8
	}

	if rxCtrlReg == regRXB0CTRL {
		_, _ = s.transfer([]byte{0x05, regCANINTF, 0x01, 0x00}) // bit-modify, clear RX0IF
	} else {
		_, _ = s.transfer([]byte{0x05, regCANINTF, 0x02, 0x00}) // clear RX1IF
	}

	return canframe.New(id, raw[6:6+dlc]), true, nil
}
