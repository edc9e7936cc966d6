// Package printer streams label sheets to ESC/POS printers
package printer

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Connection is an open printer link
type Connection interface {
	io.Writer
	Close() error
}

// Target identifies a printer by URI:
//
//	tcp://host:port
//	usb://VID:PID (hex)
//	serial:///dev/ttyUSB0?baud=9600
//	file:///tmp/spool.bin
type Target struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	VID    uint16 `json:"vid,omitempty"`
	PID    uint16 `json:"pid,omitempty"`
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`
}

// ParseURI parses a printer URI
func ParseURI(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid printer URI %q: %w", raw, err)
	}

	switch u.Scheme {
	case "tcp":
		port := 9100
		if p := u.Port(); p != "" {
			if port, err = strconv.Atoi(p); err != nil {
				return Target{}, fmt.Errorf("invalid port in %q", raw)
			}
		}
		if u.Hostname() == "" {
			return Target{}, fmt.Errorf("missing host in %q", raw)
		}
		return Target{Scheme: "tcp", Host: u.Hostname(), Port: port}, nil

	case "usb":
		vid, pid, ok := strings.Cut(u.Host, ":")
		if !ok {
			return Target{}, fmt.Errorf("expected usb://VID:PID, got %q", raw)
		}
		v, errV := strconv.ParseUint(vid, 16, 16)
		p, errP := strconv.ParseUint(pid, 16, 16)
		if errV != nil || errP != nil {
			return Target{}, fmt.Errorf("invalid USB ids in %q", raw)
		}
		return Target{Scheme: "usb", VID: uint16(v), PID: uint16(p)}, nil

	case "serial":
		if u.Path == "" {
			return Target{}, fmt.Errorf("missing device in %q", raw)
		}
		baud := 9600
		if b := u.Query().Get("baud"); b != "" {
			if baud, err = strconv.Atoi(b); err != nil {
				return Target{}, fmt.Errorf("invalid baud rate in %q", raw)
			}
		}
		return Target{Scheme: "serial", Device: u.Path, Baud: baud}, nil

	case "file":
		if u.Path == "" {
			return Target{}, fmt.Errorf("missing path in %q", raw)
		}
		return Target{Scheme: "file", Device: u.Path}, nil

	default:
		return Target{}, fmt.Errorf("unsupported printer scheme %q", u.Scheme)
	}
}

// String renders the target back to its URI
func (t Target) String() string {
	switch t.Scheme {
	case "tcp":
		return fmt.Sprintf("tcp://%s:%d", t.Host, t.Port)
	case "usb":
		return fmt.Sprintf("usb://%04x:%04x", t.VID, t.PID)
	case "serial":
		return fmt.Sprintf("serial://%s?baud=%d", t.Device, t.Baud)
	case "file":
		return "file://" + t.Device
	default:
		return ""
	}
}

// Dial opens a connection to the target
func Dial(t Target) (Connection, error) {
	switch t.Scheme {
	case "tcp":
		return ConnectNetwork(t.Host, t.Port)
	case "usb":
		return ConnectUSB(t.VID, t.PID)
	case "serial":
		return ConnectSerial(t.Device, t.Baud)
	case "file":
		return ConnectFile(t.Device)
	default:
		return nil, fmt.Errorf("unsupported printer scheme %q", t.Scheme)
	}
}

// ConnectFile spools to a file, for printers shared as a device node or
// for capturing the raw stream
func ConnectFile(path string) (Connection, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool file: %w", err)
	}
	return f, nil
}
