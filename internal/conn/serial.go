// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/toeirei/wireline/internal/logging"
	"go.bug.st/serial"
)

const serialReadBufSize = 4096

// SerialConn implements Connection over a local serial device. The stream
// is an unframed raw byte channel; Read yields whatever the driver has
// buffered.
type SerialConn struct {
	cfg   SerialConfig
	state atomic.Int32
	sent  atomic.Uint64
	recvd atomic.Uint64

	mu   sync.Mutex
	port serial.Port
}

// NewSerialConn builds a serial transport. Counters start at zero and are
// never reset for the lifetime of the instance.
func NewSerialConn(cfg SerialConfig) *SerialConn {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.Parity == "" {
		cfg.Parity = "none"
	}
	if cfg.FlowControl == "" {
		cfg.FlowControl = "none"
	}
	return &SerialConn{cfg: cfg}
}

// Connect opens the device with the configured line parameters.
func (c *SerialConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if Status(c.state.Load()) == StatusConnected {
		return Errf(ErrorIO, "already connected to %s", c.cfg.Path)
	}
	if err := ctx.Err(); err != nil {
		return WrapErr(ErrorIO, err)
	}

	mode, err := c.mode()
	if err != nil {
		return err
	}

	c.state.Store(int32(StatusConnecting))
	port, err := serial.Open(c.cfg.Path, mode)
	if err != nil {
		c.state.Store(int32(StatusDisconnected))
		return classifySerialOpen(c.cfg.Path, err)
	}

	// The platform binding carries no flow-control field; hardware flow
	// control asserts the modem lines and leaves discipline to the driver.
	if c.cfg.FlowControl == "hardware" {
		if err := port.SetDTR(true); err == nil {
			_ = port.SetRTS(true)
		}
	}

	// Disconnect may have raced the open; honor it and release the port.
	if err := ctx.Err(); err != nil {
		_ = port.Close()
		c.state.Store(int32(StatusDisconnected))
		return WrapErr(ErrorIO, err)
	}

	c.port = port
	c.state.Store(int32(StatusConnected))
	logging.Infof("conn: serial connected to %s", c.Description())
	return nil
}

// mode translates the config into the binding's line parameters.
func (c *SerialConn) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.cfg.Baud,
		DataBits: c.cfg.DataBits,
	}

	switch c.cfg.Parity {
	case "none", "":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		return nil, Errf(ErrorIO, "unsupported parity %q", c.cfg.Parity)
	}

	switch c.cfg.StopBits {
	case 1, 0:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, Errf(ErrorIO, "unsupported stop bits %d", c.cfg.StopBits)
	}

	switch c.cfg.FlowControl {
	case "none", "hardware", "":
	case "software":
		return nil, Errf(ErrorIO, "software flow control is not supported on this platform")
	default:
		return nil, Errf(ErrorIO, "unsupported flow control %q", c.cfg.FlowControl)
	}

	return mode, nil
}

// Disconnect closes the port. Idempotent; closing unblocks an in-flight
// Read.
func (c *SerialConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		c.state.Store(int32(StatusDisconnected))
		return nil
	}
	c.state.Store(int32(StatusClosing))
	err := c.port.Close()
	c.port = nil
	c.state.Store(int32(StatusDisconnected))
	logging.Infof("conn: serial disconnected from %s (sent %d, received %d)",
		c.cfg.Path, c.sent.Load(), c.recvd.Load())
	if err != nil {
		return WrapErr(ErrorIO, fmt.Errorf("closing %s: %w", c.cfg.Path, err))
	}
	return nil
}

// Send writes bytes to the device.
func (c *SerialConn) Send(data []byte) (int, error) {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return 0, Errf(ErrorIO, "not connected to %s", c.cfg.Path)
	}
	n, err := port.Write(data)
	c.sent.Add(uint64(n))
	if err != nil {
		return n, WrapErr(ErrorIO, fmt.Errorf("writing to %s: %w", c.cfg.Path, err))
	}
	return n, nil
}

// Read blocks until the driver has at least one byte. A locally closed
// port reads as io.EOF so the read duty winds down quietly.
func (c *SerialConn) Read() ([]byte, error) {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return nil, io.EOF
	}

	buf := make([]byte, serialReadBufSize)
	n, err := port.Read(buf)
	if n > 0 {
		c.recvd.Add(uint64(n))
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) || c.closedLocally(err) {
		return nil, io.EOF
	}
	return nil, WrapErr(ErrorIO, fmt.Errorf("reading from %s: %w", c.cfg.Path, err))
}

// closedLocally reports whether a read error is the echo of our own
// Disconnect rather than a device fault.
func (c *SerialConn) closedLocally(err error) bool {
	if s := Status(c.state.Load()); s == StatusClosing || s == StatusDisconnected {
		return true
	}
	var pe *serial.PortError
	return errors.As(err, &pe) && pe.Code() == serial.PortClosed
}

// State returns the current lifecycle state.
func (c *SerialConn) State() Status { return Status(c.state.Load()) }

// Kind returns KindSerial.
func (c *SerialConn) Kind() Kind { return KindSerial }

// Description renders the target like "/dev/ttyUSB0 @ 115200".
func (c *SerialConn) Description() string {
	return fmt.Sprintf("%s @ %d", c.cfg.Path, c.cfg.Baud)
}

// BytesSent returns the cumulative byte count written on this instance.
func (c *SerialConn) BytesSent() uint64 { return c.sent.Load() }

// BytesReceived returns the cumulative byte count read on this instance.
func (c *SerialConn) BytesReceived() uint64 { return c.recvd.Load() }

// classifySerialOpen maps device-open failures into the taxonomy.
func classifySerialOpen(path string, err error) *ConnError {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortNotFound:
			return Errf(ErrorDeviceNotFound, "no such device %s", path)
		case serial.PermissionDenied:
			return Errf(ErrorPermissionDenied, "permission denied opening %s", path)
		case serial.PortBusy:
			return Errf(ErrorPermissionDenied, "device %s is busy", path)
		case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
			return WrapErr(ErrorIO, fmt.Errorf("invalid line parameters for %s: %w", path, err))
		}
	}
	return WrapErr(ErrorIO, fmt.Errorf("opening %s: %w", path, err))
}
