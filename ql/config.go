package ql

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// defaultFeedMargin is the minimum feed amount, 35 dots = 3mm.
const defaultFeedMargin = 35

// Config describes one printer and how jobs for it are to be encoded.
// It is consumed by Open and not read afterwards.
type Config struct {
	Model  Model
	Serial string
	Media  Media

	// HighResolution doubles the vertical dot density.
	HighResolution bool
	// CutAtEnd cuts after the last label of the job.
	CutAtEnd bool
	// HalfCut scores the backing paper without separating labels.
	HalfCut bool
	// ChainPrint holds the last label in the mechanism instead of
	// feeding it out, saving tape between jobs.
	ChainPrint bool
	// SpecialTape disables cutting entirely for tapes that must not
	// meet the cutter.
	SpecialTape bool
	// TwoColors selects black/red raster transfer. Requires both a
	// capable model and black/red media.
	TwoColors bool
	// EnableAutoCut cuts every N labels; zero disables the command.
	EnableAutoCut int
	// Compress requests TIFF PackBits row compression where the model
	// supports it. The QL-800 doesn't; the flag is then dropped with
	// a warning.
	Compress bool

	// FeedMarginDots overrides the feed amount on continuous tape;
	// zero means the 35-dot minimum. Die-cut labels always feed by
	// their registration marks.
	FeedMarginDots int

	// SkipMediaCheck makes Open succeed even when the loaded media
	// differs from Media, e.g. to only read status.
	SkipMediaCheck bool

	// Logger receives wire-level tracing. Defaults to the standard one.
	Logger *logrus.Logger
}

func (c *Config) validate() error {
	if c.Serial == "" {
		return ErrInvalidSerial
	}
	if !c.Model.valid() {
		return fmt.Errorf("unsupported model %v", c.Model)
	}
	if !c.Media.valid() {
		return fmt.Errorf("unsupported media %v", c.Media)
	}
	if c.TwoColors && !c.Model.SupportsTwoColor() {
		return fmt.Errorf("%w: %v", ErrModelLacksTwoColor, c.Model)
	}
	if c.EnableAutoCut < 0 || c.EnableAutoCut > 255 {
		return fmt.Errorf("auto-cut interval %d out of range", c.EnableAutoCut)
	}
	return nil
}

func (c *Config) feedMargin() int {
	if c.Media.Kind == MediaDieCut {
		return 0
	}
	if c.FeedMarginDots != 0 {
		return c.FeedMarginDots
	}
	return defaultFeedMargin
}
