package hardware

import (
	"context"
	"sync"
	"time"
)

// Simulated is an in-memory panel. Its fields can be mutated directly to
// mimic changes made outside the bridge, such as a hardware button.
//
// Simulated implements Thermometer, Backlight, LED, MotionSensor and
// DisplayDriver. All methods are safe for concurrent use.
type Simulated struct {
	mu sync.Mutex

	temperature   float64
	displayOn     bool
	maxBrightness int
	brightness    int
	ledActive     bool
	ledColor      RGB
	motion        bool
	motionHandler func(MotionEvent)

	// Injected failures, returned by the matching accessor when set.
	readErr  error
	writeErr error
	offErr   error

	onCalls  int
	offCalls int
	offProcs []*SimulatedProcess

	// offDuration, when positive, makes each off process exit on its own.
	offDuration time.Duration
}

// NewSimulated returns a powered-on panel with the given brightness ceiling.
func NewSimulated(maxBrightness int) *Simulated {
	return &Simulated{
		temperature:   45.0,
		displayOn:     true,
		maxBrightness: maxBrightness,
		brightness:    maxBrightness,
		ledColor:      RGB{R: 255, G: 255, B: 255},
	}
}

// SetTemperature sets the reported CPU temperature.
func (s *Simulated) SetTemperature(c float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = c
}

// SetDisplayPower sets the backlight power register directly.
func (s *Simulated) SetDisplayPower(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayOn = on
}

// SetBrightness sets the backlight brightness register directly.
func (s *Simulated) SetBrightness(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = v
}

// SetOffDuration makes every later off process exit by itself after d,
// like a real off-script. Zero leaves processes running until they are
// terminated or finished.
func (s *Simulated) SetOffDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offDuration = d
}

// FailReads makes every subsequent read return err; nil clears it.
func (s *Simulated) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrites makes every subsequent write return err; nil clears it.
func (s *Simulated) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailOff makes StartOff return err; nil clears it.
func (s *Simulated) FailOff(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offErr = err
}

// ReadCPUTemperature implements Thermometer.
func (s *Simulated) ReadCPUTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.temperature, nil
}

// ReadPower implements Backlight.
func (s *Simulated) ReadPower() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.displayOn, nil
}

// ReadMaxBrightness implements Backlight.
func (s *Simulated) ReadMaxBrightness() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.maxBrightness, nil
}

// ReadBrightness implements Backlight.
func (s *Simulated) ReadBrightness() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.brightness, nil
}

// WriteBrightness implements Backlight. Values above the ceiling are
// clamped the way backlight drivers do.
func (s *Simulated) WriteBrightness(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.brightness = min(max(v, 0), s.maxBrightness)
	return nil
}

// SetActive implements LED.
func (s *Simulated) SetActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.ledActive = active
	return nil
}

// SetColor implements LED.
func (s *Simulated) SetColor(c RGB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.ledColor = c
	return nil
}

// ReadActive implements LED.
func (s *Simulated) ReadActive() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.ledActive, nil
}

// ReadColor implements LED.
func (s *Simulated) ReadColor() (RGB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return RGB{}, s.readErr
	}
	return s.ledColor, nil
}

// Start implements MotionSensor.
func (s *Simulated) Start(handler func(MotionEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.motionHandler != nil {
		return ErrMotionStarted
	}
	s.motionHandler = handler
	return nil
}

// Active implements MotionSensor.
func (s *Simulated) Active() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motion, nil
}

// Close implements MotionSensor.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motionHandler = nil
	return nil
}

// TriggerMotion sets the motion level and delivers the matching edge to
// the registered handler, if any. Repeated levels still deliver an edge.
func (s *Simulated) TriggerMotion(active bool) {
	s.mu.Lock()
	s.motion = active
	handler := s.motionHandler
	s.mu.Unlock()

	if handler == nil {
		return
	}
	edge := EdgeFalling
	if active {
		edge = EdgeRising
	}
	handler(MotionEvent{Edge: edge, Timestamp: time.Now()})
}

// RunOn implements DisplayDriver.
func (s *Simulated) RunOn(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCalls++
	s.displayOn = true
	return nil
}

// StartOff implements DisplayDriver. The returned process stays running
// until it is terminated, Finish is called on it, or the off duration
// elapses.
func (s *Simulated) StartOff(_ context.Context) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offErr != nil {
		return nil, s.offErr
	}
	s.offCalls++
	s.displayOn = false
	p := &SimulatedProcess{running: true}
	s.offProcs = append(s.offProcs, p)
	if s.offDuration > 0 {
		time.AfterFunc(s.offDuration, p.Finish)
	}
	return p, nil
}

// OnCalls returns how many times RunOn was called.
func (s *Simulated) OnCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onCalls
}

// OffCalls returns how many times StartOff succeeded.
func (s *Simulated) OffCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offCalls
}

// OffProcesses returns every process StartOff has produced, oldest first.
func (s *Simulated) OffProcesses() []*SimulatedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SimulatedProcess(nil), s.offProcs...)
}

// SimulatedProcess is a fake off-script.
type SimulatedProcess struct {
	mu           sync.Mutex
	running      bool
	terminations int
	terminateErr error
}

// IsRunning implements Process.
func (p *SimulatedProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// TerminateTree implements Process.
func (p *SimulatedProcess) TerminateTree() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminations++
	if p.terminateErr != nil {
		return p.terminateErr
	}
	p.running = false
	return nil
}

// Finish marks the process as exited on its own.
func (p *SimulatedProcess) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// FailTerminate makes TerminateTree return err and leave the process running.
func (p *SimulatedProcess) FailTerminate(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateErr = err
}

// Terminations returns how many times TerminateTree was called.
func (p *SimulatedProcess) Terminations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminations
}
