package ql

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// Print-information command validation flags.
const (
	piKind    = 0x02
	piWidth   = 0x04
	piLength  = 0x08
	piQuality = 0x40
	piRecover = 0x80
)

// invalidateLen is how many zero bytes flush a half-parsed command.
const invalidateLen = 100

// encoder synthesizes the raster command stream for one printer
// configuration. It holds the effective compression choice, which may
// differ from the requested one.
type encoder struct {
	cfg      *Config
	rowBytes int
	compress bool
}

func newEncoder(cfg *Config, log *logrus.Entry) *encoder {
	e := &encoder{
		cfg:      cfg,
		rowBytes: cfg.Model.RowBytes(),
		compress: cfg.Compress,
	}
	if e.compress && !cfg.Model.SupportsCompression() {
		log.Warningf("%v does not honor compression, printing uncompressed",
			cfg.Model)
		e.compress = false
	}
	if e.compress && cfg.TwoColors {
		log.Warning("two-color raster is always uncompressed")
		e.compress = false
	}
	return e
}

// -----------------------------------------------------------------------------

func (e *encoder) invalidate() []byte {
	return make([]byte, invalidateLen)
}

func (e *encoder) initialize() []byte {
	return []byte{0x1b, 0x40}
}

func (e *encoder) statusRequest() []byte {
	return []byte{0x1b, 0x69, 0x53}
}

func (e *encoder) rasterMode() []byte {
	return []byte{0x1b, 0x69, 0x61, 0x01}
}

// pagePreamble emits the per-page commands: print information, mode
// settings, advanced mode, auto-cut interval, feed margin, compression.
func (e *encoder) pagePreamble(rows int, first bool) []byte {
	cfg := e.cfg
	var data []byte

	// Print information command.
	rasterCount := uint32(rows)
	if cfg.TwoColors {
		rasterCount *= 2
	}
	flags := byte(piKind | piWidth | piQuality | piRecover)
	if cfg.Media.Kind == MediaDieCut {
		flags |= piLength
	}
	page := byte(0x01)
	if first {
		page = 0x00
	}
	data = append(data, 0x1b, 0x69, 0x7a, flags, byte(cfg.Media.Kind),
		byte(cfg.Media.WidthMM), byte(cfg.Media.LengthMM))
	data = binary.LittleEndian.AppendUint32(data, rasterCount)
	data = append(data, page, 0x00)

	// Mode settings: bit 6 auto-cut, bit 7 mirror (unused).
	var mode byte
	if cfg.EnableAutoCut > 0 || cfg.CutAtEnd {
		mode |= 1 << 6
	}
	data = append(data, 0x1b, 0x69, 0x4d, mode)

	// Advanced mode settings.
	var advanced byte
	if cfg.HalfCut {
		advanced |= 1 << 3
	}
	if !cfg.ChainPrint {
		advanced |= 1 << 4
	}
	if cfg.SpecialTape {
		advanced |= 1 << 6
	}
	if cfg.HighResolution {
		advanced |= 1 << 7
	}
	data = append(data, 0x1b, 0x69, 0x4b, advanced)

	// Cut each N labels.
	if cfg.EnableAutoCut > 0 {
		data = append(data, 0x1b, 0x69, 0x41, byte(cfg.EnableAutoCut))
	}

	// Feed margin.
	data = append(data, 0x1b, 0x69, 0x64)
	data = binary.LittleEndian.AppendUint16(data, uint16(cfg.feedMargin()))

	// Compression mode.
	if e.compress {
		data = append(data, 0x4d, 0x02)
	} else {
		data = append(data, 0x4d, 0x00)
	}
	return data
}

// appendRow encodes one single-color raster line.
func (e *encoder) appendRow(data []byte, row []byte) ([]byte, error) {
	if len(row) != e.rowBytes {
		return nil, &RowWidthError{Expected: e.rowBytes, Actual: len(row)}
	}
	if e.compress {
		packed := packBits(row)
		data = append(data, 'g', 0x00, byte(len(packed)))
		return append(data, packed...), nil
	}
	data = append(data, 'g', 0x00, byte(e.rowBytes))
	return append(data, row...), nil
}

// appendTwoColorRow encodes one logical line as its black plane
// followed by its red plane, the order the device expects.
func (e *encoder) appendTwoColorRow(data []byte, black, red []byte) ([]byte, error) {
	if len(black) != e.rowBytes {
		return nil, &RowWidthError{Expected: e.rowBytes, Actual: len(black)}
	}
	if len(red) != e.rowBytes {
		return nil, &RowWidthError{Expected: e.rowBytes, Actual: len(red)}
	}
	data = append(data, 0x77, 0x01, byte(e.rowBytes))
	data = append(data, black...)
	data = append(data, 0x77, 0x02, byte(e.rowBytes))
	return append(data, red...), nil
}

// pageTerminator prints the page: FF feeds to the next one, SUB also
// ejects and cuts according to the mode bits.
func (e *encoder) pageTerminator(last bool) []byte {
	if last {
		return []byte{0x1a}
	}
	return []byte{0x0c}
}
