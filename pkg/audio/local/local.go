// Package local provides an [audio.Platform] that records the host's default
// capture device through miniaudio (gen2brain/malgo). It lets the recording
// pipeline run without a Discord gateway: the "channel" is the microphone
// and there is exactly one participant.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/gen2brain/malgo"
)

var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
)

// ParticipantID identifies the single local speaker.
const ParticipantID = "local"

const frameChannelBuffer = 128

// device is the subset of a capture device the connection drives.
type device interface {
	Start() error
	Stop() error
	Close()
}

// opener starts delivering interleaved S16 PCM to onData.
type opener func(format audio.Format, onData func([]byte)) (device, error)

// Platform captures from the default input device.
type Platform struct {
	format      audio.Format
	displayName string
	open        opener
}

// Option configures a [Platform].
type Option func(*Platform)

// WithFormat overrides the requested capture format. miniaudio converts from
// the device's native format. Defaults to [audio.CaptureFormat].
func WithFormat(f audio.Format) Option {
	return func(p *Platform) { p.format = f }
}

// WithDisplayName sets the label used for the local speaker.
func WithDisplayName(name string) Option {
	return func(p *Platform) { p.displayName = name }
}

// New creates a local microphone platform.
func New(opts ...Option) *Platform {
	p := &Platform{
		format:      audio.CaptureFormat,
		displayName: "Microfone local",
		open:        openMalgo,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Connect opens the capture device. channelID is only used for logging.
func (p *Platform) Connect(ctx context.Context, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("local: open capture device: %w", err)
	}

	frames := make(chan audio.AudioFrame, frameChannelBuffer)
	c := &Connection{
		streams: make(chan audio.Stream, 1),
		frames:  frames,
		done:    make(chan struct{}),
		format:  p.format,
		started: time.Now(),
	}

	dev, err := p.open(p.format, c.onData)
	if err != nil {
		return nil, fmt.Errorf("local: open capture device: %w", err)
	}
	c.dev = dev

	c.streams <- audio.Stream{
		ParticipantID: ParticipantID,
		DisplayName:   p.displayName,
		Codec:         audio.CodecPCM,
		Frames:        frames,
	}

	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("local: start capture device: %w", err)
	}
	slog.Info("local: capturing microphone", "channel_id", channelID, "format", p.format.String())
	return c, nil
}

// Connection is an open microphone capture.
type Connection struct {
	dev     device
	format  audio.Format
	started time.Time

	mu      sync.Mutex
	closed  bool
	streams chan audio.Stream
	frames  chan audio.AudioFrame
	done    chan struct{}
}

// Streams implements [audio.Connection].
func (c *Connection) Streams() <-chan audio.Stream { return c.streams }

// Done implements [audio.Connection].
func (c *Connection) Done() <-chan struct{} { return c.done }

// Disconnect stops the device and closes all channels. Safe to call more
// than once.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Stop outside the lock: miniaudio waits for an in-flight data callback.
	err := c.dev.Stop()
	c.dev.Close()

	c.mu.Lock()
	close(c.frames)
	close(c.streams)
	close(c.done)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("local: stop capture device: %w", err)
	}
	return nil
}

// onData is the device callback. The buffer is owned by miniaudio and must
// be copied.
func (c *Connection) onData(in []byte) {
	if len(in) == 0 {
		return
	}
	data := make([]byte, len(in))
	copy(data, in)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.frames <- audio.AudioFrame{
		Data:       data,
		Codec:      audio.CodecPCM,
		SampleRate: c.format.SampleRate,
		Channels:   c.format.Channels,
		Timestamp:  time.Since(c.started),
	}:
	default:
	}
}

// malgoDevice owns a miniaudio context and capture device.
type malgoDevice struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func openMalgo(format audio.Format, onData func([]byte)) (device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) { onData(input) },
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init device: %w", err)
	}
	return &malgoDevice{ctx: mctx, dev: dev}, nil
}

func (d *malgoDevice) Start() error { return d.dev.Start() }
func (d *malgoDevice) Stop() error  { return d.dev.Stop() }

func (d *malgoDevice) Close() {
	d.dev.Uninit()
	_ = d.ctx.Uninit()
	d.ctx.Free()
}
