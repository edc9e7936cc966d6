package printer

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/gousb"
)

// Discovered is a printer candidate found on this machine
type Discovered struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// Discover lists USB devices and serial ports that could be printers.
// USB enumeration errors (no libusb) are returned alongside any serial results.
func Discover() ([]Discovered, error) {
	found := discoverSerial()

	usb, err := discoverUSB()
	if err != nil {
		return found, err
	}
	return append(usb, found...), nil
}

func discoverUSB() ([]Discovered, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []Discovered
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		// printer class on the device or any interface
		if desc.Class == gousb.ClassPrinter {
			return true
		}
		for _, cfg := range desc.Configs {
			for _, iface := range cfg.Interfaces {
				for _, alt := range iface.AltSettings {
					if alt.Class == gousb.ClassPrinter {
						return true
					}
				}
			}
		}
		return false
	})
	for _, dev := range devices {
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		target := Target{Scheme: "usb", VID: uint16(dev.Desc.Vendor), PID: uint16(dev.Desc.Product)}
		description := fmt.Sprintf("USB: %04X:%04X", target.VID, target.PID)
		if manufacturer != "" || product != "" {
			description = strings.TrimSpace(fmt.Sprintf("USB: %s %s", manufacturer, product))
		}

		found = append(found, Discovered{URI: target.String(), Description: description})
		dev.Close()
	}
	if err != nil {
		return found, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	return found, nil
}

func discoverSerial() []Discovered {
	var patterns []string
	switch runtime.GOOS {
	case "darwin":
		patterns = []string{"/dev/cu.*"}
	case "linux":
		patterns = []string{"/dev/ttyUSB*", "/dev/ttyACM*"}
	default:
		return nil
	}

	var found []Discovered
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, port := range matches {
			if strings.Contains(port, "Bluetooth") || strings.Contains(port, "debug-console") {
				continue
			}
			target := Target{Scheme: "serial", Device: port, Baud: 9600}
			found = append(found, Discovered{
				URI:         target.String(),
				Description: fmt.Sprintf("Serial: %s", filepath.Base(port)),
			})
		}
	}
	return found
}
