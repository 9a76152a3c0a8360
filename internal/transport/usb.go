package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"qlprint/internal/device"
	"qlprint/internal/logger"
)

// WriteTimeout bounds the single bulk transfer of the command stream.
const WriteTimeout = 5000 * time.Millisecond

// ErrClaim means the device was found but its interface could not be
// claimed. The device handle is always closed before this propagates.
var ErrClaim = errors.New("claim printer interface")

// The printer's bulk-out endpoint and interface are fixed by the hardware.
const (
	usbConfigNum  = 1
	usbIfaceNum   = 0
	usbAltSetting = 0
	usbOutEPNum   = 2
)

// Narrow views over the gousb types. The staged claim chain runs against
// these, so its cleanup contract is testable without hardware.
type usbDevice interface {
	SetAutoDetach(enable bool) error
	Config(cfgNum int) (usbConfig, error)
	Close() error
}

type usbConfig interface {
	Interface(num, alt int) (usbInterface, error)
	Close() error
}

type usbInterface interface {
	OutEndpoint(epNum int) (usbEndpoint, error)
	Close()
}

type usbEndpoint interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

type gousbDevice struct{ dev *gousb.Device }

func (d gousbDevice) SetAutoDetach(enable bool) error { return d.dev.SetAutoDetach(enable) }
func (d gousbDevice) Close() error                    { return d.dev.Close() }

func (d gousbDevice) Config(cfgNum int) (usbConfig, error) {
	cfg, err := d.dev.Config(cfgNum)
	if err != nil {
		return nil, err
	}
	return gousbConfig{cfg: cfg}, nil
}

type gousbConfig struct{ cfg *gousb.Config }

func (c gousbConfig) Close() error { return c.cfg.Close() }

func (c gousbConfig) Interface(num, alt int) (usbInterface, error) {
	intf, err := c.cfg.Interface(num, alt)
	if err != nil {
		return nil, err
	}
	return gousbIntf{intf: intf}, nil
}

type gousbIntf struct{ intf *gousb.Interface }

func (i gousbIntf) Close() { i.intf.Close() }

func (i gousbIntf) OutEndpoint(epNum int) (usbEndpoint, error) {
	ep, err := i.intf.OutEndpoint(epNum)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

// USBBus opens printers over libusb. It satisfies device.Bus.
type USBBus struct {
	ctx *gousb.Context
}

// NewUSBBus initializes a libusb context. Close releases it.
func NewUSBBus() *USBBus {
	return &USBBus{ctx: gousb.NewContext()}
}

func (b *USBBus) Close() error {
	return b.ctx.Close()
}

// Open opens the first device matching vid/pid and, when serial is
// non-empty, the device whose serial number matches exactly. Devices that
// match vid/pid but not the serial are closed again.
func (b *USBBus) Open(vendorID, productID uint16, serial string) (device.Handle, error) {
	if serial == "" {
		dev, err := b.ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productID))
		if err != nil {
			return nil, err
		}
		if dev == nil {
			return nil, device.ErrNotFound
		}
		return &USBDevice{dev: gousbDevice{dev: dev}}, nil
	}

	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vendorID) && desc.Product == gousb.ID(productID)
	})
	if err != nil {
		// OpenDevices can report errors for unrelated devices on the bus
		// while still returning matches.
		logger.Debug("usb enumeration reported errors", zap.Error(err))
	}

	var found *gousb.Device
	for _, dev := range devs {
		if found != nil {
			dev.Close()
			continue
		}
		sn, snErr := dev.SerialNumber()
		if snErr != nil || sn != serial {
			dev.Close()
			continue
		}
		found = dev
	}
	if found == nil {
		return nil, fmt.Errorf("serial %q: %w", serial, device.ErrNotFound)
	}
	return &USBDevice{dev: gousbDevice{dev: found}}, nil
}

// USBDevice is an open but unclaimed printer.
type USBDevice struct {
	dev usbDevice
}

// Detach asks libusb to release default kernel ownership of the interface
// before it is claimed.
func (d *USBDevice) Detach() error {
	return d.dev.SetAutoDetach(true)
}

// Claim acquires configuration, interface and bulk-out endpoint. Anything
// acquired before a failure is released again, and the device handle itself
// is closed before the error propagates.
func (d *USBDevice) Claim() (device.Conn, error) {
	cfg, err := d.dev.Config(usbConfigNum)
	if err != nil {
		d.dev.Close()
		return nil, fmt.Errorf("%w: config %d: %v", ErrClaim, usbConfigNum, err)
	}

	intf, err := cfg.Interface(usbIfaceNum, usbAltSetting)
	if err != nil {
		cfg.Close()
		d.dev.Close()
		return nil, fmt.Errorf("%w: interface %d: %v", ErrClaim, usbIfaceNum, err)
	}

	out, err := intf.OutEndpoint(usbOutEPNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		d.dev.Close()
		return nil, fmt.Errorf("%w: out endpoint %d: %v", ErrClaim, usbOutEPNum, err)
	}

	return &USBConn{cfg: cfg, intf: intf, out: out, timeout: WriteTimeout}, nil
}

func (d *USBDevice) Close() error {
	return d.dev.Close()
}

// USBConn is a claimed interface with a bulk-out endpoint.
type USBConn struct {
	cfg     usbConfig
	intf    usbInterface
	out     usbEndpoint
	timeout time.Duration
}

// Write performs one bulk transfer bounded by the write timeout. A transfer
// completing with fewer bytes than requested is reported to the caller via
// the returned count.
func (c *USBConn) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.out.WriteContext(ctx, p)
}

// Close releases the interface then the configuration. The device handle
// stays open; its owner closes it.
func (c *USBConn) Close() error {
	c.intf.Close()
	return c.cfg.Close()
}
