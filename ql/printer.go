// Package ql drives Brother QL-series label printers over USB,
// transforming pre-packed raster pages into the device's raster
// command protocol and monitoring jobs to completion.
package ql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// timings bound the wire operations. The zero value is never used;
// tests shrink these to keep failure paths fast.
type timings struct {
	// completionBase and completionPerRow bound how long a page may
	// take to come out before the job is declared dead.
	completionBase   time.Duration
	completionPerRow time.Duration

	// completionStall caps how long the device may keep reporting the
	// printing phase without any visible progress.
	completionStall time.Duration

	// statusPoll is the per-read timeout while waiting for completion;
	// expiries within the deadline are swallowed and retried.
	statusPoll time.Duration

	statusRead  time.Duration
	writeBase   time.Duration
	writePerRow time.Duration
}

func defaultTimings() timings {
	return timings{
		completionBase:   5 * time.Second,
		completionPerRow: 5 * time.Millisecond,
		completionStall:  5 * time.Second,
		statusPoll:       500 * time.Millisecond,
		statusRead:       2 * time.Second,
		writeBase:        5 * time.Second,
		writePerRow:      5 * time.Millisecond,
	}
}

// Printer owns exclusive access to one physical device. Methods are
// serialized by an internal lock; distinct printers are independent.
type Printer struct {
	cfg Config
	dev bulkDevice
	enc *encoder
	log *logrus.Entry
	tm  timings

	mu      sync.Mutex
	started bool
}

// Open locates the device described by the configuration, claims it,
// performs the initial status exchange and verifies the loaded media.
// With Config.SkipMediaCheck a handle is returned even on mismatch,
// e.g. to just read status.
func Open(cfg Config) (*Printer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithFields(logrus.Fields{
		"model":  cfg.Model.String(),
		"serial": cfg.Serial,
	})

	dev, err := openUSB(cfg.Model, cfg.Serial)
	if err != nil {
		return nil, err
	}

	p := &Printer{cfg: cfg, dev: dev, log: log, tm: defaultTimings()}
	p.enc = newEncoder(&p.cfg, log)
	if err := p.beginSession(); err != nil {
		p.dev.close()
		return nil, err
	}
	return p, nil
}

// Close releases the interface; a detached kernel driver is reattached
// on a best-effort basis.
func (p *Printer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev.close()
}

// ReadStatus issues a status request and returns the decoded frame.
// Don't call it while the device is printing.
func (p *Printer) ReadStatus() (*Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestStatus()
}

// Print runs a single-color job, pulling pages lazily from the source.
// Intermediate pages feed to the next label, the final page ejects and
// cuts according to the configured mode.
func (p *Printer) Print(pages PageSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.TwoColors {
		return errors.New("the configuration selects two-color mode")
	}
	if err := p.startJob(); err != nil {
		return err
	}

	cur, err := pages.NextPage()
	if errors.Is(err, io.EOF) {
		return ErrEmptyJob
	} else if err != nil {
		return err
	}
	for first := true; ; first = false {
		next, err := pages.NextPage()
		last := errors.Is(err, io.EOF)
		if err != nil && !last {
			return err
		}
		if err := p.printPage(cur, first, last); err != nil {
			return err
		}
		if last {
			return nil
		}
		cur = next
	}
}

// PrintTwoColor runs a black/red job. Within every logical row the
// black plane is transferred before the red one, which is the order
// the device expects.
func (p *Printer) PrintTwoColor(pages TwoColorPageSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cfg.TwoColors {
		return errors.New("the configuration selects single-color mode")
	}
	if err := p.startJob(); err != nil {
		return err
	}

	cur, err := pages.NextPage()
	if errors.Is(err, io.EOF) {
		return ErrEmptyJob
	} else if err != nil {
		return err
	}
	for first := true; ; first = false {
		next, err := pages.NextPage()
		last := errors.Is(err, io.EOF)
		if err != nil && !last {
			return err
		}
		if err := p.printTwoColorPage(cur, first, last); err != nil {
			return err
		}
		if last {
			return nil
		}
		cur = next
	}
}

// -----------------------------------------------------------------------------

// beginSession flushes any half-parsed command from a previous run and
// checks the device agrees about the loaded media.
func (p *Printer) beginSession() error {
	if err := p.write(p.enc.invalidate(), p.tm.writeBase); err != nil {
		return err
	}
	p.started = true
	if err := p.write(p.enc.initialize(), p.tm.writeBase); err != nil {
		return err
	}

	st, err := p.requestStatus()
	if err != nil {
		return err
	}
	if err := st.Err(); err != nil {
		return err
	}
	return p.verifyMedia(st)
}

// startJob emits the session-level preamble of one job.
func (p *Printer) startJob() error {
	if !p.started {
		if err := p.write(p.enc.invalidate(), p.tm.writeBase); err != nil {
			return err
		}
		p.started = true
	}
	if err := p.write(p.enc.initialize(), p.tm.writeBase); err != nil {
		return err
	}

	st, err := p.requestStatus()
	if err != nil {
		return err
	}
	if err := st.Err(); err != nil {
		return err
	}
	if err := p.verifyMedia(st); err != nil {
		return err
	}
	return p.write(p.enc.rasterMode(), p.tm.writeBase)
}

func (p *Printer) verifyMedia(st *Status) error {
	if st.Media.triple() == p.cfg.Media.triple() {
		return nil
	}
	if p.cfg.SkipMediaCheck {
		p.log.Warningf("loaded media is %s, configured %s",
			st.Media, p.cfg.Media)
		return nil
	}
	return &MediaMismatchError{Expected: p.cfg.Media, Actual: st.Media}
}

func (p *Printer) printPage(page Matrix, first, last bool) error {
	// Rows are checked before anything hits the wire: aborting
	// mid-stream would desynchronize the device.
	if err := page.validate(p.enc.rowBytes); err != nil {
		return err
	}

	data := p.enc.pagePreamble(len(page), first)
	var err error
	for _, row := range page {
		if data, err = p.enc.appendRow(data, row); err != nil {
			return err
		}
	}
	data = append(data, p.enc.pageTerminator(last)...)

	timeout := p.tm.writeBase + time.Duration(len(page))*p.tm.writePerRow
	if err := p.write(data, timeout); err != nil {
		return err
	}
	return p.waitCompletion(len(page))
}

func (p *Printer) printTwoColorPage(page TwoColorMatrix, first, last bool) error {
	if len(page.Black) != len(page.Red) {
		return fmt.Errorf("two-color planes differ in row count: %d black, %d red",
			len(page.Black), len(page.Red))
	}
	if err := page.Black.validate(p.enc.rowBytes); err != nil {
		return err
	}
	if err := page.Red.validate(p.enc.rowBytes); err != nil {
		return err
	}

	data := p.enc.pagePreamble(len(page.Black), first)
	var err error
	for i := range page.Black {
		if data, err = p.enc.appendTwoColorRow(
			data, page.Black[i], page.Red[i]); err != nil {
			return err
		}
	}
	data = append(data, p.enc.pageTerminator(last)...)

	timeout := p.tm.writeBase + 2*time.Duration(len(page.Black))*p.tm.writePerRow
	if err := p.write(data, timeout); err != nil {
		return err
	}
	return p.waitCompletion(2 * len(page.Black))
}

// waitCompletion polls for the phase transition that proves the page
// came out: a printing phase followed by either a phase change back to
// receiving or an interface-exit notification. Short labels may skip
// straight to the terminal transition.
func (p *Printer) waitCompletion(rows int) error {
	deadline := time.Now().Add(
		p.tm.completionBase + time.Duration(rows)*p.tm.completionPerRow)

	var (
		sawPrinting bool
		havePrev    bool
		prev        *Status
		lastChange  = time.Now()
	)
	for time.Now().Before(deadline) {
		st, err := p.readFrame(p.tm.statusPoll)
		if err != nil {
			var ue *UsbError
			if errors.As(err, &ue) && errors.Is(ue.Err, ErrUsbTimeout) {
				// No news from the device yet.
				continue
			}
			return err
		}

		p.log.WithFields(logrus.Fields{
			"type":  st.Type.String(),
			"phase": st.Phase.String(),
		}).Debug("status frame")

		if havePrev && (st.Type != prev.Type || st.Phase != prev.Phase ||
			st.PhaseNumber != prev.PhaseNumber) {
			lastChange = time.Now()
		}
		prev, havePrev = st, true

		switch st.Type {
		case StatusTypeErrorOccurred:
			if err := st.Err(); err != nil {
				return err
			}
			return &PrinterError{Kind: ErrorUnknown}
		case StatusTypePrinting:
			if st.Phase == PhasePrinting {
				sawPrinting = true
			}
		case StatusTypePhaseChange:
			if st.Phase == PhaseReceiving {
				return nil
			}
			sawPrinting = true
		case StatusTypeNotifyExitedIF:
			return nil
		case StatusTypeTurnedOff:
			return fmt.Errorf("%w: device turned off", ErrUnexpectedPhase)
		default:
			// A stale reply from before the terminator, discard.
		}

		if sawPrinting && time.Since(lastChange) > p.tm.completionStall {
			return ErrUnexpectedPhase
		}
	}
	return ErrPrintTimeout
}

// -----------------------------------------------------------------------------

func (p *Printer) requestStatus() (*Status, error) {
	if err := p.write(p.enc.statusRequest(), p.tm.writeBase); err != nil {
		return nil, err
	}
	return p.readFrame(p.tm.statusRead)
}

func (p *Printer) write(b []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := p.dev.writeBulk(ctx, b)
	if err != nil {
		if isTransferTimeout(err) {
			return &UsbError{Op: "write", Err: ErrUsbTimeout}
		}
		return &UsbError{Op: "write", Err: err}
	}
	if n != len(b) {
		return &UsbError{Op: "write", Err: io.ErrShortWrite}
	}
	return nil
}

func (p *Printer) readFrame(timeout time.Duration) (*Status, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, statusFrameLen)
	n, err := p.dev.readBulk(ctx, buf)
	if err != nil {
		if isTransferTimeout(err) {
			return nil, &UsbError{Op: "read", Err: ErrUsbTimeout}
		}
		return nil, &UsbError{Op: "read", Err: err}
	}
	return DecodeStatus(buf[:n])
}
