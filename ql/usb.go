package ql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// vendorBrother is the USB vendor ID shared by all QL-series printers.
const vendorBrother = 0x04f9

// bulkDevice is the transport seam between the protocol engine and the
// USB stack. Tests substitute their own.
type bulkDevice interface {
	writeBulk(ctx context.Context, b []byte) (int, error)
	readBulk(ctx context.Context, b []byte) (int, error)
	close() error
}

type usbDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
}

// openUSB finds the one device matching the model's product ID and the
// requested serial, detaches the kernel driver where the model needs
// that, claims interface 0 and resolves its bulk endpoint pair.
func openUSB(model Model, serial string) (*usbDevice, error) {
	spec := models[model]
	ctx := gousb.NewContext()

	matched := false
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != gousb.ID(vendorBrother) ||
			desc.Product != gousb.ID(spec.productID) {
			return false
		}
		matched = true
		return true
	})

	// Keep the first device whose iSerial matches exactly.
	var dev *gousb.Device
	for _, d := range devs {
		sn, snErr := d.SerialNumber()
		if dev == nil && snErr == nil && sn == serial {
			dev = d
		} else {
			d.Close()
		}
	}
	if dev == nil {
		ctx.Close()
		switch {
		case errors.Is(err, gousb.ErrorAccess):
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case !matched:
			return nil, fmt.Errorf("%w: %v %s", ErrDeviceNotFound,
				model, serial)
		default:
			return nil, fmt.Errorf("%w: %v %s", ErrSerialMismatch,
				model, serial)
		}
	}

	u := &usbDevice{ctx: ctx, dev: dev}
	if spec.detachUsblp {
		// Reattaching on release is handled by libusb, best-effort.
		if err := dev.SetAutoDetach(true); err != nil {
			u.close()
			return nil, &UsbError{Op: "detach", Err: err}
		}
	}
	if u.cfg, err = dev.Config(1); err != nil {
		u.close()
		if errors.Is(err, gousb.ErrorAccess) {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return nil, &UsbError{Op: "configure", Err: err}
	}
	if u.intf, err = u.cfg.Interface(0, 0); err != nil {
		u.close()
		if errors.Is(err, gousb.ErrorAccess) {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return nil, &UsbError{Op: "claim", Err: err}
	}

	for _, ep := range u.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && u.in == nil {
			if u.in, err = u.intf.InEndpoint(ep.Number); err != nil {
				u.close()
				return nil, &UsbError{Op: "endpoint", Err: err}
			}
		}
		if ep.Direction == gousb.EndpointDirectionOut && u.out == nil {
			if u.out, err = u.intf.OutEndpoint(ep.Number); err != nil {
				u.close()
				return nil, &UsbError{Op: "endpoint", Err: err}
			}
		}
	}
	if u.in == nil || u.out == nil {
		u.close()
		return nil, ErrEndpointMissing
	}
	return u, nil
}

func (u *usbDevice) writeBulk(ctx context.Context, b []byte) (int, error) {
	return u.out.WriteContext(ctx, b)
}

func (u *usbDevice) readBulk(ctx context.Context, b []byte) (int, error) {
	return u.in.ReadContext(ctx, b)
}

func (u *usbDevice) close() error {
	if u.intf != nil {
		u.intf.Close()
	}
	if u.cfg != nil {
		u.cfg.Close()
	}
	if u.dev != nil {
		u.dev.Close()
	}
	return u.ctx.Close()
}

// isTransferTimeout tells transient transfer expiry apart from real
// transport failures. gousb surfaces both libusb timeouts and context
// expiry, depending on where the deadline hit.
func isTransferTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferCancelled)
}
