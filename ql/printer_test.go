package ql

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice queues status frames for reads and records all writes.
// With repeatLast set it keeps serving the final frame forever.
type fakeDevice struct {
	wrote      bytes.Buffer
	frames     [][]byte
	repeatLast bool
	closed     bool
}

func (d *fakeDevice) writeBulk(ctx context.Context, b []byte) (int, error) {
	return d.wrote.Write(b)
}

func (d *fakeDevice) readBulk(ctx context.Context, b []byte) (int, error) {
	// Pace the monitor loop a little, as a real device would.
	time.Sleep(time.Millisecond)
	if len(d.frames) == 0 {
		return 0, context.DeadlineExceeded
	}
	f := d.frames[0]
	if !d.repeatLast || len(d.frames) > 1 {
		d.frames = d.frames[1:]
	}
	return copy(b, f), nil
}

func (d *fakeDevice) close() error {
	d.closed = true
	return nil
}

func (d *fakeDevice) queue(frames ...[]byte) {
	d.frames = append(d.frames, frames...)
}

// -----------------------------------------------------------------------------

type frameOpt func([]byte)

func withMedia(m Media) frameOpt {
	return func(b []byte) {
		triple := m.triple()
		b[10], b[11], b[17] = triple[0], triple[1], triple[2]
	}
}

func withType(st StatusType, ph Phase) frameOpt {
	return func(b []byte) {
		b[18], b[19] = byte(st), byte(ph)
	}
}

func withError1(bits byte) frameOpt {
	return func(b []byte) { b[8] = bits }
}

func frame(opts ...frameOpt) []byte {
	b := testFrame()
	withMedia(Continuous(62))(b)
	for _, o := range opts {
		o(b)
	}
	return b
}

func newTestPrinter(t *testing.T, cfg Config, dev *fakeDevice) *Printer {
	t.Helper()
	require.NoError(t, cfg.validate())
	p := &Printer{
		cfg: cfg,
		dev: dev,
		log: testLogger(),
		tm: timings{
			completionBase:   300 * time.Millisecond,
			completionPerRow: time.Millisecond,
			completionStall:  50 * time.Millisecond,
			statusPoll:       5 * time.Millisecond,
			statusRead:       50 * time.Millisecond,
			writeBase:        time.Second,
			writePerRow:      time.Millisecond,
		},
	}
	p.enc = newEncoder(&p.cfg, p.log)
	return p
}

func testConfig() Config {
	return Config{Model: QL800, Serial: "X0000001", Media: Continuous(62)}
}

// -----------------------------------------------------------------------------

func TestPrintSingleJob(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(
		frame(), // reply to the job's status request
		frame(withType(StatusTypePhaseChange, PhasePrinting)),
		frame(withType(StatusTypePrinting, PhasePrinting)),
		frame(withType(StatusTypePhaseChange, PhaseReceiving)),
	)
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(blankPage(150, 90)))
	require.NoError(t, err)

	data := dev.wrote.Bytes()
	// Invalidate, initialize, status request open the session.
	prefix := append(make([]byte, 100), 0x1b, 0x40, 0x1b, 0x69, 0x53)
	assert.True(t, bytes.HasPrefix(data, prefix))
	assert.Equal(t, byte(0x1a), data[len(data)-1])
	assert.Empty(t, dev.frames, "all status frames consumed")
}

func TestPrintShortLabelSkipsPrintingPhase(t *testing.T) {
	// Very short labels may go straight to the terminal transition.
	dev := &fakeDevice{}
	dev.queue(
		frame(),
		frame(withType(StatusTypeNotifyExitedIF, PhaseReceiving)),
	)
	p := newTestPrinter(t, testConfig(), dev)
	assert.NoError(t, p.Print(Pages(blankPage(3, 90))))
}

func TestPrintMultiPage(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(frame())
	for i := 0; i < 3; i++ {
		dev.queue(
			frame(withType(StatusTypePrinting, PhasePrinting)),
			frame(withType(StatusTypePhaseChange, PhaseReceiving)),
		)
	}
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(
		blankPage(10, 90), blankPage(10, 90), blankPage(10, 90)))
	require.NoError(t, err)
	assert.Empty(t, dev.frames, "completion monitored after every page")

	assert.Equal(t, 2, bytes.Count(dev.wrote.Bytes(), []byte{0x0c}))
	assert.Equal(t, byte(0x1a), dev.wrote.Bytes()[dev.wrote.Len()-1])
}

func TestPrintLazyPull(t *testing.T) {
	// The runner must pull pages one at a time, not slurp the source.
	dev := &fakeDevice{}
	dev.queue(frame())
	for i := 0; i < 2; i++ {
		dev.queue(frame(withType(StatusTypePhaseChange, PhaseReceiving)))
	}
	p := newTestPrinter(t, testConfig(), dev)

	pulls := 0
	src := pageFunc(func() (Matrix, error) {
		if pulls++; pulls > 2 {
			return nil, errors.New("pulled past EOF")
		}
		if pulls == 2 {
			return nil, io.EOF
		}
		return blankPage(5, 90), nil
	})
	assert.NoError(t, p.Print(src))
	assert.Equal(t, 2, pulls)
}

func TestPrintEmptyJob(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(frame())
	p := newTestPrinter(t, testConfig(), dev)
	assert.ErrorIs(t, p.Print(Pages()), ErrEmptyJob)
}

func TestPrintMediaMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.Media = Continuous(29)

	dev := &fakeDevice{}
	dev.queue(frame(withMedia(Continuous(62))))
	p := newTestPrinter(t, cfg, dev)

	err := p.Print(Pages(blankPage(10, 90)))
	var mm *MediaMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, Continuous(29), mm.Expected)
	assert.Equal(t, Continuous(62), mm.Actual)
}

func TestPrintMediaMismatchSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Media = Continuous(29)
	cfg.SkipMediaCheck = true

	dev := &fakeDevice{}
	dev.queue(
		frame(withMedia(Continuous(62))),
		frame(withType(StatusTypePhaseChange, PhaseReceiving)),
	)
	p := newTestPrinter(t, cfg, dev)
	// 29mm tape packs the same 90-byte rows, the device just prints
	// whatever it gets.
	assert.NoError(t, p.Print(Pages(blankPage(10, 90))))
}

func TestPrintDeviceError(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(
		frame(),
		frame(withType(StatusTypePhaseChange, PhasePrinting)),
		frame(withType(StatusTypeErrorOccurred, PhasePrinting),
			withError1(0x04)),
	)
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(blankPage(10, 90)))
	var pe *PrinterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrorCutterJam, pe.Kind)
}

func TestPrintErrorBeforeJob(t *testing.T) {
	// An error in the opening status exchange fails before raster data.
	dev := &fakeDevice{}
	dev.queue(frame(withError1(0x01)))
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(blankPage(10, 90)))
	var pe *PrinterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrorNoMedia, pe.Kind)
	assert.NotContains(t, dev.wrote.Bytes(), byte(0x1a))
}

func TestPrintTimeout(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(frame())
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(blankPage(10, 90)))
	assert.ErrorIs(t, err, ErrPrintTimeout)
}

func TestPrintUnexpectedPhase(t *testing.T) {
	// The device keeps claiming the printing phase without progress.
	dev := &fakeDevice{repeatLast: true}
	dev.queue(
		frame(),
		frame(withType(StatusTypePrinting, PhasePrinting)),
	)
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(blankPage(10, 90)))
	assert.ErrorIs(t, err, ErrUnexpectedPhase)
}

func TestPrintStaleFramesDiscarded(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(
		frame(),
		frame(), // stale reply from before the terminator
		frame(withType(StatusTypePhaseChange, PhaseReceiving)),
	)
	p := newTestPrinter(t, testConfig(), dev)
	assert.NoError(t, p.Print(Pages(blankPage(10, 90))))
}

func TestPrintModeMismatch(t *testing.T) {
	cfg := testConfig()
	p := newTestPrinter(t, cfg, &fakeDevice{})
	assert.Error(t, p.PrintTwoColor(TwoColorPages(TwoColorMatrix{})))

	cfg.Model = QL820NWB
	cfg.TwoColors = true
	p = newTestPrinter(t, cfg, &fakeDevice{})
	assert.Error(t, p.Print(Pages(Matrix{})))
}

func TestPrintTwoColor(t *testing.T) {
	cfg := testConfig()
	cfg.Model = QL820NWB
	cfg.TwoColors = true

	dev := &fakeDevice{}
	dev.queue(
		frame(),
		frame(withType(StatusTypePhaseChange, PhaseReceiving)),
	)
	p := newTestPrinter(t, cfg, dev)

	page, err := NewTwoColorMatrix(blankPage(3, 90), blankPage(3, 90))
	require.NoError(t, err)
	require.NoError(t, p.PrintTwoColor(TwoColorPages(page)))

	// Raster data alternates black and red planes, black first.
	var planes []byte
	data := dev.wrote.Bytes()
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0x77 {
			planes = append(planes, data[i+1])
			i += 2 + int(data[i+2])
		}
	}
	assert.Equal(t, []byte{1, 2, 1, 2, 1, 2}, planes)
}

func TestPrintRowWidthMismatch(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(frame())
	p := newTestPrinter(t, testConfig(), dev)

	err := p.Print(Pages(Matrix{make([]byte, 91)}))
	var rw *RowWidthError
	require.ErrorAs(t, err, &rw)
}

func TestReadStatus(t *testing.T) {
	dev := &fakeDevice{}
	dev.queue(frame())
	p := newTestPrinter(t, testConfig(), dev)

	st, err := p.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, Continuous(62), st.Media)
	assert.True(t, bytes.HasSuffix(dev.wrote.Bytes(),
		[]byte{0x1b, 0x69, 0x53}))
}

func TestClose(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPrinter(t, testConfig(), dev)
	require.NoError(t, p.Close())
	assert.True(t, dev.closed)
}

// -----------------------------------------------------------------------------

type pageFunc func() (Matrix, error)

func (f pageFunc) NextPage() (Matrix, error) { return f() }
