package hardware

import (
	"fmt"
	"sync"
	"time"

	gpiocdev "github.com/warthog618/go-gpiocdev"
)

// GPIOMotionConfig selects the PIR input line.
type GPIOMotionConfig struct {
	// Chip is the GPIO character device name, e.g. "gpiochip0".
	Chip string

	// Line is the line offset on the chip.
	Line int

	// ActiveLow inverts the line so a low level means motion.
	ActiveLow bool

	// PullUp enables the internal pull-up bias.
	PullUp bool

	// Debounce filters edges shorter than this period. Zero disables it.
	Debounce time.Duration
}

// GPIOMotionSensor watches a PIR sensor via the GPIO character device.
//
// Edges are reported in logical terms: with ActiveLow set, a falling
// electrical edge is delivered as EdgeRising.
type GPIOMotionSensor struct {
	cfg GPIOMotionConfig

	mu     sync.Mutex
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	closed bool
}

// NewGPIOMotionSensor opens the chip. The line is requested on Start.
func NewGPIOMotionSensor(cfg GPIOMotionConfig) (*GPIOMotionSensor, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer("graylogic-panel"))
	if err != nil {
		return nil, fmt.Errorf("%w: open chip %s: %w", ErrRead, cfg.Chip, err)
	}
	return &GPIOMotionSensor{cfg: cfg, chip: chip}, nil
}

// Start implements MotionSensor.
func (s *GPIOMotionSensor) Start(handler func(MotionEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.line != nil {
		return ErrMotionStarted
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(toMotionEvent(evt))
		}),
	}
	if s.cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if s.cfg.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	}
	if s.cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(s.cfg.Debounce))
	}

	line, err := s.chip.RequestLine(s.cfg.Line, opts...)
	if err != nil {
		return fmt.Errorf("%w: request line %d: %w", ErrRead, s.cfg.Line, err)
	}
	s.line = line
	return nil
}

// toMotionEvent converts a line event. The kernel timestamp is monotonic
// and unrelated to wall time, so events are stamped on arrival.
func toMotionEvent(evt gpiocdev.LineEvent) MotionEvent {
	edge := EdgeFalling
	if evt.Type == gpiocdev.LineEventRisingEdge {
		edge = EdgeRising
	}
	return MotionEvent{Edge: edge, Timestamp: time.Now()}
}

// Active implements MotionSensor.
func (s *GPIOMotionSensor) Active() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if s.line == nil {
		return false, fmt.Errorf("%w: line %d not requested", ErrRead, s.cfg.Line)
	}
	v, err := s.line.Value()
	if err != nil {
		return false, fmt.Errorf("%w: line %d: %w", ErrRead, s.cfg.Line, err)
	}
	return v == 1, nil
}

// Close releases the line and the chip. It is safe to call more than once.
func (s *GPIOMotionSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
		s.line = nil
	}
	if err := s.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
