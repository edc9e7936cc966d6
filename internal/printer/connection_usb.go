package printer

import (
	"fmt"
	"sync"

	"github.com/google/gousb"
)

// USBConnection is a bulk OUT endpoint on a USB printer
type USBConnection struct {
	ctx      *gousb.Context
	device   *gousb.Device
	done     func()
	endpoint *gousb.OutEndpoint
	mu       sync.Mutex
}

// ConnectUSB opens the first OUT endpoint of the device. Fails when libusb is unavailable.
func ConnectUSB(vid, pid uint16) (*USBConnection, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device not found: %04X:%04X", vid, pid)
	}

	iface, done, err := dev.DefaultInterface()
	if err != nil {
		// kernel drivers such as usblp hold the interface until detached
		dev.SetAutoDetach(true)
		iface, done, err = dev.DefaultInterface()
	}
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim USB interface: %w", err)
	}

	ep := outEndpoint(iface)
	if ep == nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("no OUT endpoint on USB printer %04X:%04X", vid, pid)
	}

	return &USBConnection{ctx: ctx, device: dev, done: done, endpoint: ep}, nil
}

func outEndpoint(iface *gousb.Interface) *gousb.OutEndpoint {
	for _, desc := range iface.Setting.Endpoints {
		if desc.Direction != gousb.EndpointDirectionOut {
			continue
		}
		if ep, err := iface.OutEndpoint(desc.Number); err == nil {
			return ep
		}
	}
	return nil
}

// Write sends data to the printer
func (c *USBConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.endpoint.Write(data)
}

// Close releases the interface, device and context
func (c *USBConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		c.done()
		c.done = nil
	}
	if c.device != nil {
		c.device.Close()
		c.device = nil
	}
	if c.ctx != nil {
		c.ctx.Close()
		c.ctx = nil
	}
	return nil
}
