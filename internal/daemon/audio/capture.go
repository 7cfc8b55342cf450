package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Capture streams mono 16-bit PCM from the default input device into a Queue.
type Capture struct {
	queue      *Queue
	sampleRate float64
	frames     int
	logger     *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewCapture prepares a capture. A sampleRate of 0 selects the device default.
func NewCapture(queue *Queue, sampleRate float64, framesPerBuffer int, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		queue:      queue,
		sampleRate: sampleRate,
		frames:     framesPerBuffer,
		logger:     logger,
	}
}

// Start initializes PortAudio and opens the default input stream.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	if c.sampleRate <= 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			portaudio.Terminate()
			return fmt.Errorf("no default input device: %w", err)
		}
		c.sampleRate = dev.DefaultSampleRate
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, c.sampleRate, c.frames, c.onSamples)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	c.stream = stream
	c.logger.Info("audio capture started", "sample_rate", c.sampleRate, "frames_per_buffer", c.frames)
	return nil
}

// SampleRate returns the rate frames are captured at. Valid after Start.
func (c *Capture) SampleRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleRate
}

// Close stops the stream and closes the queue.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer c.queue.Close()
	if c.stream == nil {
		return nil
	}
	stopErr := c.stream.Stop()
	closeErr := c.stream.Close()
	c.stream = nil
	portaudio.Terminate()
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

// onSamples runs on the PortAudio callback thread; the buffer is reused by
// PortAudio so it is copied out.
func (c *Capture) onSamples(in []int16) {
	c.queue.Push(EncodePCM16(in))
}

// EncodePCM16 converts samples to little-endian bytes.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
