package gesture

import (
	"errors"
	"time"
)

const (
	EventTypeSyn uint16 = 0x00
	EventTypeKey uint16 = 0x01
	EventTypeRel uint16 = 0x02
	EventTypeMsc uint16 = 0x04

	SynReportCode  uint16 = 0
	SynDroppedCode uint16 = 3

	KeyLeftCtrl uint16 = 29
	KeyA        uint16 = 30
	KeySpace    uint16 = 57
	KeyLeftMeta uint16 = 125

	LeftButtonCode  uint16 = 0x110
	RightButtonCode uint16 = 0x111

	RelXCode      uint16 = 0x00
	RelYCode      uint16 = 0x01
	RelHWheelCode uint16 = 0x06
	RelWheelCode  uint16 = 0x08

	ValueRelease int32 = 0
	ValuePress   int32 = 1
	ValueRepeat  int32 = 2
)

// BusVirtual is the bus type the kernel reports for software-only devices.
const BusVirtual uint16 = 0x06

// SynthesisDelay separates the edges of a synthesized sequence so the desktop
// sees a discrete press and release.
const SynthesisDelay = 50 * time.Millisecond

var (
	ErrNoSources      = errors.New("no input sources left")
	ErrNoDevices      = errors.New("no usable input devices")
	ErrSinkClosed     = errors.New("virtual device is closed")
	ErrUndeclaredCode = errors.New("code not declared in virtual device capabilities")
)

type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

func KeyEvent(code uint16, value int32) Event {
	return Event{Type: EventTypeKey, Code: code, Value: value}
}

// Sink is the virtual device every synthesized or forwarded event goes to.
// Nothing reaches the host until Sync is called.
type Sink interface {
	Emit(event Event) error
	Sync() error
	Close() error
}

// Classifier consumes inbound events and decides what to forward, suppress or
// synthesize. Calls are never concurrent.
type Classifier interface {
	Handle(event Event) error
	// Release writes a release for every key the classifier synthesized as
	// held and not yet released.
	Release() error
	// Required lists every code the classifier may write on its own.
	Required() Capabilities
	// HeldCount is the number of synthesized keys currently held on the sink.
	HeldCount() int
}

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
