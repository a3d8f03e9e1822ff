package ql

import "fmt"

// Model identifies a QL-series printer family.
type Model int

const (
	QL500 Model = iota
	QL550
	QL560
	QL650TD
	QL700
	QL710W
	QL720NW
	QL800
	QL810W
	QL820NWB
	QL1050
	QL1060N
	QL1100
	QL1110NWB
)

// modelSpec binds the constants that differ between printer families.
// Pin counts are 720 on standard models and 1296 on the wide QL-1xxx.
// statusCode is byte 4 of the status frame, zero where undocumented.
type modelSpec struct {
	name        string
	productID   uint16
	pins        int
	detachUsblp bool
	compression bool
	twoColor    bool
	statusCode  byte
}

var models = map[Model]modelSpec{
	QL500:     {"QL-500", 0x2015, 720, true, false, false, 0},
	QL550:     {"QL-550", 0x2016, 720, true, false, false, 0},
	QL560:     {"QL-560", 0x2027, 720, true, false, false, 0},
	QL650TD:   {"QL-650TD", 0x202B, 720, true, false, false, 0},
	QL700:     {"QL-700", 0x2029, 720, true, false, false, 0},
	QL710W:    {"QL-710W", 0x2042, 720, true, true, false, 0},
	QL720NW:   {"QL-720NW", 0x2043, 720, true, true, false, 0},
	QL800:     {"QL-800", 0x209B, 720, true, false, true, 0x38},
	QL810W:    {"QL-810W", 0x209C, 720, true, true, true, 0x39},
	QL820NWB:  {"QL-820NWB", 0x209D, 720, true, true, true, 0x41},
	QL1050:    {"QL-1050", 0x202A, 1296, true, false, false, 0},
	QL1060N:   {"QL-1060N", 0x202C, 1296, true, false, false, 0},
	QL1100:    {"QL-1100", 0x2044, 1296, true, true, false, 0x43},
	QL1110NWB: {"QL-1110NWB", 0x2045, 1296, true, true, false, 0x44},
}

// String implements the Stringer interface.
func (m Model) String() string {
	if spec, ok := models[m]; ok {
		return spec.name
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ProductID returns the USB product ID the model enumerates with.
func (m Model) ProductID() uint16 { return models[m].productID }

// Pins returns the thermal head element count.
func (m Model) Pins() int { return models[m].pins }

// RowBytes returns the packed byte length of one raster row.
func (m Model) RowBytes() int { return models[m].pins / 8 }

// SupportsTwoColor reports whether the model prints black/red media.
func (m Model) SupportsTwoColor() bool { return models[m].twoColor }

// SupportsCompression reports whether the model honors TIFF PackBits.
func (m Model) SupportsCompression() bool { return models[m].compression }

func (m Model) valid() bool {
	_, ok := models[m]
	return ok
}

// modelByStatusCode resolves byte 4 of a status frame where documented.
func modelByStatusCode(code byte) (Model, bool) {
	if code == 0 {
		return 0, false
	}
	for m, spec := range models {
		if spec.statusCode == code {
			return m, true
		}
	}
	return 0, false
}

// ParseModel accepts model names as printed on the device, e.g. "QL-800".
func ParseModel(name string) (Model, error) {
	for m, spec := range models {
		if spec.name == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown model %q", name)
}
