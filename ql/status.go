package ql

import (
	"fmt"
	"io"
	"strings"
)

// Resources:
//  http://etc.nkadesign.com/Printers/QL550LabelPrinterProtocol
//  http://www.undocprint.org/formats/page_description_languages/brother_p-touch

// statusFrameLen is the fixed size of every reply the printer sends.
const statusFrameLen = 32

var statusMagic = [4]byte{0x80, 0x20, 0x42, 0x34}

// StatusType classifies a status frame, byte 18.
type StatusType byte

const (
	StatusTypeReplyToRequest StatusType = 0x00
	StatusTypePrinting       StatusType = 0x01
	StatusTypeErrorOccurred  StatusType = 0x02
	StatusTypeNotifyExitedIF StatusType = 0x03
	StatusTypeTurnedOff      StatusType = 0x04
	StatusTypeNotification   StatusType = 0x05
	StatusTypePhaseChange    StatusType = 0x06
)

// String implements the Stringer interface.
func (t StatusType) String() string {
	switch t {
	case StatusTypeReplyToRequest:
		return "reply to status request"
	case StatusTypePrinting:
		return "printing"
	case StatusTypeErrorOccurred:
		return "error occurred"
	case StatusTypeNotifyExitedIF:
		return "exited interface mode"
	case StatusTypeTurnedOff:
		return "turned off"
	case StatusTypeNotification:
		return "notification"
	case StatusTypePhaseChange:
		return "phase change"
	}
	return fmt.Sprintf("status type %#02x", byte(t))
}

// Phase is the device substate, byte 19.
type Phase byte

const (
	PhaseReceiving Phase = 0x00
	PhasePrinting  Phase = 0x01
)

// String implements the Stringer interface.
func (p Phase) String() string {
	switch p {
	case PhaseReceiving:
		return "receiving"
	case PhasePrinting:
		return "printing"
	}
	return fmt.Sprintf("phase %#02x", byte(p))
}

// ErrorKind is the canonicalized device error condition. When several
// bits are set at once, the decoder picks the most severe one; the raw
// bitfields stay available in Status.Error1/Error2.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorNoMedia
	ErrorEndOfMedia
	ErrorCutterJam
	ErrorWeakBatteries
	ErrorInUse
	ErrorHighVoltage
	ErrorFan
	ErrorCoverOpen
	ErrorOverheat
	ErrorBufferOverflow
	ErrorCommunication
	ErrorMediaMismatch
	ErrorUnknown
)

// String implements the Stringer interface.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorNoMedia:
		return "no media"
	case ErrorEndOfMedia:
		return "end of media"
	case ErrorCutterJam:
		return "cutter jam"
	case ErrorWeakBatteries:
		return "weak batteries"
	case ErrorInUse:
		return "printer in use"
	case ErrorHighVoltage:
		return "high-voltage adapter"
	case ErrorFan:
		return "fan motor error"
	case ErrorCoverOpen:
		return "cover open"
	case ErrorOverheat:
		return "overheated"
	case ErrorBufferOverflow:
		return "buffer overflow"
	case ErrorCommunication:
		return "communication error"
	case ErrorMediaMismatch:
		return "media mismatch"
	}
	return "unknown"
}

// errorBits maps the two error information bytes onto kinds,
// in decreasing order of severity: media supply first, then mechanics,
// then electrics, then buffering, then contention.
var errorBits = []struct {
	info uint16 // info2 << 8 | info1
	kind ErrorKind
}{
	{0x0001, ErrorNoMedia},
	{0x0002, ErrorEndOfMedia},
	{0x0004, ErrorCutterJam},
	{0x0010, ErrorCoverOpen},
	{0x2000, ErrorOverheat},
	{0x0040, ErrorHighVoltage},
	{0x0080, ErrorFan},
	{0x0008, ErrorWeakBatteries},
	{0x0200, ErrorBufferOverflow},
	{0x0800, ErrorBufferOverflow},
	{0x0400, ErrorCommunication},
	{0x0100, ErrorMediaMismatch},
	{0x4000, ErrorMediaMismatch}, // media cannot be fed
	{0x1000, ErrorInUse},
}

// Status is a decoded 32-byte reply frame. Raw keeps the whole frame
// for fields the decoder doesn't interpret.
type Status struct {
	ModelCode  byte
	Model      Model
	ModelKnown bool

	Error1, Error2 byte
	Media          Media
	Mode           byte

	Type         StatusType
	Phase        Phase
	PhaseNumber  int
	Notification byte
	TapeColor    byte

	Raw [statusFrameLen]byte
}

// DecodeStatus parses a status frame. Frames of the wrong length or
// with a wrong header fail with ErrMalformedStatus.
func DecodeStatus(b []byte) (*Status, error) {
	if len(b) != statusFrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedStatus, len(b))
	}
	if [4]byte(b[:4]) != statusMagic {
		return nil, fmt.Errorf("%w: bad header % x", ErrMalformedStatus, b[:4])
	}

	s := &Status{
		ModelCode:    b[4],
		Error1:       b[8],
		Error2:       b[9],
		Media:        mediaFromStatus(b[10], b[11], b[17]),
		Mode:         b[15],
		Type:         StatusType(b[18]),
		Phase:        Phase(b[19]),
		PhaseNumber:  int(b[20])<<8 | int(b[21]),
		Notification: b[22],
		TapeColor:    b[25],
	}
	copy(s.Raw[:], b)
	s.Model, s.ModelKnown = modelByStatusCode(s.ModelCode)
	return s, nil
}

// ErrorKind collapses the error bitfields to the most severe condition.
func (s *Status) ErrorKind() ErrorKind {
	info := uint16(s.Error2)<<8 | uint16(s.Error1)
	if info == 0 {
		return ErrorNone
	}
	for _, e := range errorBits {
		if info&e.info != 0 {
			return e.kind
		}
	}
	return ErrorUnknown
}

// Err returns the device error as a *PrinterError, or nil.
func (s *Status) Err() error {
	if s.Error1 == 0 && s.Error2 == 0 {
		return nil
	}
	return &PrinterError{
		Kind: s.ErrorKind(),
		Raw:  uint16(s.Error2)<<8 | uint16(s.Error1),
	}
}

// -----------------------------------------------------------------------------

func decodeBitfieldErrors(b byte, errors [8]string) []string {
	var result []string
	for i := uint(0); i < 8; i++ {
		if b&(1<<i) != 0 {
			result = append(result, errors[i])
		}
	}
	return result
}

// String implements the Stringer interface.
func (s *Status) String() string {
	var b strings.Builder
	s.Dump(&b)
	return b.String()
}

// Dump writes the status data to an io.Writer in a human-readable format.
func (s *Status) Dump(f io.Writer) {
	if s.ModelKnown {
		fmt.Fprintln(f, "model:", s.Model)
	} else {
		fmt.Fprintln(f, "model code:", s.ModelCode)
	}

	// Error information 1.
	for _, e := range decodeBitfieldErrors(s.Error1, [8]string{
		"no media", "end of media", "cutter jam", "weak batteries",
		"cover open", "printer turned off", "high-voltage adapter",
		"fan motor error"}) {
		fmt.Fprintln(f, "error 1:", e)
	}

	// Error information 2.
	for _, e := range decodeBitfieldErrors(s.Error2, [8]string{
		"replace media", "expansion buffer full", "communication error",
		"communication buffer full", "printer in use", "overheated",
		"media cannot be fed", "system error"}) {
		fmt.Fprintln(f, "error 2:", e)
	}

	fmt.Fprintln(f, "media:", s.Media)
	fmt.Fprintln(f, "mode:", s.Mode)
	fmt.Fprintln(f, "status type:", s.Type)
	fmt.Fprintln(f, "phase state:", s.Phase)
	fmt.Fprintln(f, "phase number:", s.PhaseNumber)

	// Notification number.
	switch n := s.Notification; n {
	case 0x00:
		fmt.Fprintln(f, "notification number: not available")
	case 0x03:
		fmt.Fprintln(f, "notification number: cooling (started)")
	case 0x04:
		fmt.Fprintln(f, "notification number: cooling (finished)")
	default:
		fmt.Fprintln(f, "notification number:", n)
	}

	// In a real-world QL-800, byte 25 seems to be:
	//  0x01 with 29mm tape or die-cut 29mm long labels,
	//  0x81 with red-black 62mm tape.
	if s.TapeColor&0x80 != 0 {
		fmt.Fprintln(f, "tape: two-color capable")
	}
}
