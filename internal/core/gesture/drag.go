package gesture

import (
	"errors"
	"fmt"
	"time"
)

type DragConfig struct {
	ModifierCode uint16
	Delay        time.Duration
}

// DragProxy forwards every pointer event to the sink, except that a right
// click while the left button is held becomes a modifier chord. The real
// right click never reaches the host during a drag, so the drag survives.
type DragProxy struct {
	cfg    DragConfig
	sink   Sink
	clock  Clock
	logger Logger

	leftHeld     bool
	// rightHeld is true while a forwarded right press has no release yet.
	rightHeld    bool
	modifierHeld bool
}

func NewDragProxy(cfg DragConfig, sink Sink, clock Clock, logger Logger) (*DragProxy, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Delay <= 0 {
		cfg.Delay = SynthesisDelay
	}
	return &DragProxy{cfg: cfg, sink: sink, clock: clock, logger: logger}, nil
}

func (d *DragProxy) Required() Capabilities {
	return Capabilities{EventTypeKey: {LeftButtonCode, d.cfg.ModifierCode}}
}

func (d *DragProxy) HeldCount() int {
	if d.modifierHeld {
		return 1
	}
	return 0
}

func (d *DragProxy) LeftHeld() bool     { return d.leftHeld }
func (d *DragProxy) ModifierHeld() bool { return d.modifierHeld }

func (d *DragProxy) Handle(event Event) error {
	switch {
	case event.Type == EventTypeSyn:
		// Each forwarded frame already carries its own barrier.
		return nil
	case event.Type == EventTypeKey && event.Code == LeftButtonCode:
		return d.handleLeft(event)
	case event.Type == EventTypeKey && event.Code == RightButtonCode:
		return d.handleRight(event)
	default:
		return d.forward(event)
	}
}

func (d *DragProxy) handleLeft(event Event) error {
	switch event.Value {
	case ValuePress:
		d.leftHeld = true
	case ValueRelease:
		d.leftHeld = false
	}
	return d.forward(event)
}

func (d *DragProxy) handleRight(event Event) error {
	switch event.Value {
	case ValuePress:
		if d.leftHeld {
			if d.modifierHeld {
				return d.sink.Sync()
			}
			if err := d.sink.Emit(KeyEvent(d.cfg.ModifierCode, ValuePress)); err != nil {
				return fmt.Errorf("modifier press: %w", err)
			}
			d.modifierHeld = true
			d.logger.Info("Swapped right click for modifier", "modifier", d.cfg.ModifierCode)
			return d.sink.Sync()
		}
		if err := d.releaseModifier(); err != nil {
			return err
		}
		if err := d.forward(event); err != nil {
			return err
		}
		d.rightHeld = true
		return nil

	case ValueRelease:
		if !d.modifierHeld {
			if err := d.forward(event); err != nil {
				return err
			}
			d.rightHeld = false
			return nil
		}
		if !d.leftHeld {
			// Left went up on its own first; only the modifier is left to undo.
			return d.releaseModifier()
		}
		return d.commit()

	default:
		if d.modifierHeld {
			return d.sink.Sync()
		}
		return d.forward(event)
	}
}

// commit drops the dragged window while the modifier is still down, then
// lifts the modifier once the consumer had time to act on the drop.
func (d *DragProxy) commit() error {
	if err := d.sink.Emit(KeyEvent(LeftButtonCode, ValueRelease)); err != nil {
		return fmt.Errorf("forced left release: %w", err)
	}
	d.leftHeld = false
	var errs []error
	if err := d.sink.Sync(); err != nil {
		errs = append(errs, err)
	}
	d.clock.Sleep(d.cfg.Delay)
	if err := d.releaseModifier(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		d.logger.Info("Dropped window and released modifier")
	}
	return errors.Join(errs...)
}

// releaseModifier is a no-op when no modifier press is outstanding.
func (d *DragProxy) releaseModifier() error {
	if !d.modifierHeld {
		return nil
	}
	if err := d.sink.Emit(KeyEvent(d.cfg.ModifierCode, ValueRelease)); err != nil {
		return fmt.Errorf("modifier release: %w", err)
	}
	d.modifierHeld = false
	return d.sink.Sync()
}

func (d *DragProxy) forward(event Event) error {
	if err := d.sink.Emit(event); err != nil {
		if errors.Is(err, ErrUndeclaredCode) {
			d.logger.Debug("Dropped event outside virtual device capabilities", "type", event.Type, "code", event.Code)
			return nil
		}
		return err
	}
	return d.sink.Sync()
}

// Release undoes the modifier and any button whose press reached the host,
// so nothing stays stuck once the proxy goes away.
func (d *DragProxy) Release() error {
	var errs []error
	if err := d.releaseModifier(); err != nil {
		errs = append(errs, err)
	}
	if d.leftHeld {
		if err := d.releaseButton(LeftButtonCode); err != nil {
			errs = append(errs, fmt.Errorf("left release: %w", err))
		} else {
			d.leftHeld = false
		}
	}
	if d.rightHeld {
		if err := d.releaseButton(RightButtonCode); err != nil {
			errs = append(errs, fmt.Errorf("right release: %w", err))
		} else {
			d.rightHeld = false
		}
	}
	return errors.Join(errs...)
}

func (d *DragProxy) releaseButton(code uint16) error {
	if err := d.sink.Emit(KeyEvent(code, ValueRelease)); err != nil {
		return err
	}
	return d.sink.Sync()
}
