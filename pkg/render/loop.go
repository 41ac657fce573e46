package render

import (
	"context"
	"image"
	"log"
	"time"
)

// FrameSink receives presented frames. The PNG writer in pkg/visualization
// implements it; a windowing front-end would implement it over a swap
// chain.
type FrameSink interface {
	Present(frame *image.RGBA) error
}

// Loop drives the renderer at a fixed cadence on a single goroutine:
// tick → streaming update → draw → present, with cancellation checked at
// the top of every iteration. A present failure is the software analogue
// of device loss: the renderer is suspended and degraded instead of the
// error propagating.
type Loop struct {
	Renderer *Renderer
	Camera   *Camera
	Sink     FrameSink

	// Interval is the frame period; zero defaults to ~60 Hz.
	Interval time.Duration

	// OnTick, when set, runs at the start of every frame (camera
	// animation, parameter sweeps). Returning false stops the loop.
	OnTick func(frame int) bool
}

// Run executes the frame loop until the context is cancelled or OnTick
// stops it. It returns within one frame interval of cancellation, with no
// draw in flight and no slot half-written (uploads complete or roll back
// inside the streaming update).
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if l.OnTick != nil && !l.OnTick(frame) {
			return nil
		}

		drew := l.Renderer.RenderFrame(l.Camera)
		if !drew || l.Sink == nil {
			continue
		}

		l.Renderer.state = statePresenting
		if err := l.Sink.Present(l.Renderer.Framebuffer()); err != nil {
			log.Printf("render: present failed, suspending draws: %v", err)
			l.Renderer.SuspendDraws()
		}
		l.Renderer.state = stateIdle
	}
}
