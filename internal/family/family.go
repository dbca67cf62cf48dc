// Package family holds the per-PLC-family configuration the simulator is
// given on the command line: which connection EPATH a Forward Open must
// match byte-for-byte, and the packet-size ceiling that family's firmware
// advertises.
package family

import (
	"errors"
	"fmt"
)

// Family identifies which PLC personality the simulator is impersonating.
type Family int

const (
	ControlLogix Family = iota
	Micro800
	OmronNJNX
	PLC5
	SLC500
	MicroLogix
)

// String returns the CLI spelling of f (the --plc= value).
func (f Family) String() string {
	switch f {
	case ControlLogix:
		return "ControlLogix"
	case Micro800:
		return "Micro800"
	case OmronNJNX:
		return "Omron"
	case PLC5:
		return "PLC-5"
	case SLC500:
		return "SLC-500"
	case MicroLogix:
		return "MicroLogix"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// ErrUnknownFamily is returned by Parse for an unrecognized --plc value.
var ErrUnknownFamily = errors.New("family: unknown PLC family")

// Parse maps a --plc= CLI value to a Family.
func Parse(s string) (Family, error) {
	switch s {
	case "ControlLogix", "controllogix", "logix":
		return ControlLogix, nil
	case "Micro800", "micro800":
		return Micro800, nil
	case "Omron", "omron", "NJNX", "nj", "nx":
		return OmronNJNX, nil
	case "PLC-5", "plc5", "PLC5":
		return PLC5, nil
	case "SLC-500", "slc500", "SLC500", "slc":
		return SLC500, nil
	case "MicroLogix", "micrologix", "ml1000":
		return MicroLogix, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

// Config is the fixed, per-family behavior a template connection carries:
// the packet ceiling and whether --path is required. The expected
// Forward Open connection EPATH is built by ExpectedEPATH.
type Config struct {
	Family       Family
	MaxPacket    int
	RequiresPath bool
}

// Configs is indexed by Family.
var Configs = map[Family]Config{
	ControlLogix: {Family: ControlLogix, MaxPacket: 502, RequiresPath: true},
	Micro800:     {Family: Micro800, MaxPacket: 504, RequiresPath: false},
	OmronNJNX:    {Family: OmronNJNX, MaxPacket: 504, RequiresPath: false},
	PLC5:         {Family: PLC5, MaxPacket: 244, RequiresPath: false},
	SLC500:       {Family: SLC500, MaxPacket: 244, RequiresPath: false},
	MicroLogix:   {Family: MicroLogix, MaxPacket: 244, RequiresPath: false},
}

// routingSuffix is the trailing class(MessageRouter)/instance segment pair
// common to every family's connection EPATH: class 0x20 0x02, instance
// 0x24 0x01.
var routingSuffix = []byte{0x20, 0x02, 0x24, 0x01}

// ErrPathRequired is returned by ExpectedEPATH when the family requires
// --path and none (or the wrong number of components) was supplied.
var ErrPathRequired = errors.New("family: --path is required for this PLC family")

// ExpectedEPATH builds the exact connection EPATH bytes a Forward Open on
// this family must present. pathComponents is the parsed --path=a,b value;
// only ControlLogix consumes it.
func ExpectedEPATH(f Family, pathComponents []byte) ([]byte, error) {
	switch f {
	case ControlLogix:
		if len(pathComponents) != 2 {
			return nil, fmt.Errorf("%w: ControlLogix needs --path=a,b", ErrPathRequired)
		}
		out := make([]byte, 0, 6)
		out = append(out, pathComponents...)
		out = append(out, routingSuffix...)
		return out, nil
	case OmronNJNX:
		// 0x12 = ANSI extended symbol segment, length 9, "127.0.0.1", one
		// pad byte (odd length), then the routing suffix: 16 bytes total.
		out := make([]byte, 0, 16)
		out = append(out, 0x12, 0x09)
		out = append(out, []byte("127.0.0.1")...)
		out = append(out, 0x00)
		out = append(out, routingSuffix...)
		return out, nil
	default:
		out := make([]byte, 0, 4)
		out = append(out, routingSuffix...)
		return out, nil
	}
}
