package audio

import (
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Capturer reads microphone frames via portaudio and delivers them on a
// buffered channel. Exactly one Capturer may own the input device; the
// portaudio callback never blocks, frames are dropped when the consumer
// falls behind.
type Capturer struct {
	config CaptureConfig
	logger zerolog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	out     chan Frame
	running bool

	dropped atomic.Uint64
}

// NewCapturer initializes portaudio and prepares a capturer.
func NewCapturer(config CaptureConfig, logger zerolog.Logger) (*Capturer, error) {
	if config.SampleRate <= 0 {
		config = DefaultCaptureConfig()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultCaptureConfig().QueueSize
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	return &Capturer{
		config: config,
		logger: logger.With().Str("component", "capture").Logger(),
	}, nil
}

// Output returns the channel on which captured frames are delivered.
// Valid after Start; the channel is closed by Stop.
func (c *Capturer) Output() <-chan Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}

// Start opens the default input stream. Calling Start while running is
// an error; the device is a shared resource with a single owner.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrCaptureRunning
	}

	out := make(chan Frame, c.config.QueueSize)

	stream, err := portaudio.OpenDefaultStream(
		1, 0,
		float64(c.config.SampleRate),
		c.config.FramesPerBuffer,
		func(in []float32) {
			frame := make(Frame, len(in))
			copy(frame, in)
			select {
			case out <- frame:
			default:
				c.dropped.Add(1)
			}
		},
	)
	if err != nil {
		return ErrDeviceUnavailable
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	c.stream = stream
	c.out = out
	c.running = true
	c.logger.Info().
		Int("sampleRate", c.config.SampleRate).
		Int("framesPerBuffer", c.config.FramesPerBuffer).
		Msg("Capture started")
	return nil
}

// Stop closes the stream and the output channel. Stopping an idle
// capturer is a no-op.
func (c *Capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	err := c.stream.Stop()
	c.stream.Close()
	close(c.out)
	c.stream = nil
	c.out = nil
	c.running = false

	if n := c.dropped.Swap(0); n > 0 {
		c.logger.Warn().Uint64("frames", n).Msg("Dropped frames during capture")
	}
	c.logger.Info().Msg("Capture stopped")
	return err
}

// Running reports whether the input stream is open.
func (c *Capturer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Dropped returns the number of frames dropped since the last Stop.
func (c *Capturer) Dropped() uint64 {
	return c.dropped.Load()
}

// Close releases portaudio. The capturer is unusable afterwards.
func (c *Capturer) Close() error {
	c.Stop()
	return portaudio.Terminate()
}
