// Package pipeline runs the capture loop: read a frame, detect motion,
// annotate, record and display.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"camwatch/internal/camera"
	"camwatch/internal/motion"
)

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	// Display receives every stage of each compared frame.
	Display Display
	// Canceller is polled after each iteration.
	Canceller Canceller
	// Bus receives a FrameResult for each compared frame.
	Bus *EventBus
	// Debug enables per-frame logging.
	Debug bool
}

// Pipeline drives one device through one detector into one writer.
type Pipeline struct {
	device   camera.Device
	detector *motion.Detector
	writer   Writer
	opts     Options

	mu      sync.RWMutex
	stats   Stats
	running bool
}

// New creates a pipeline. Run takes ownership of device, writer and the
// optional display and closes them when it returns.
func New(device camera.Device, detector *motion.Detector, writer Writer, opts Options) *Pipeline {
	return &Pipeline{
		device:   device,
		detector: detector,
		writer:   writer,
		opts:     opts,
	}
}

// Stats returns the counters of the current or last run.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Running reports whether Run is in progress.
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Run processes frames until the device runs out of frames, ctx is
// cancelled or the canceller fires. Those are normal terminations and
// return a nil error. The device, writer and display are closed on every
// exit path and their close errors are joined into the result.
func (p *Pipeline) Run(ctx context.Context) (stats Stats, err error) {
	p.mu.Lock()
	p.running = true
	p.stats = Stats{}
	p.mu.Unlock()

	defer func() {
		err = errors.Join(err, p.release())
		p.mu.Lock()
		p.running = false
		stats = p.stats
		p.mu.Unlock()
		log.Printf("[Pipeline] Stopped after %d frames (%d written, %d with motion)",
			stats.Frames, stats.Written, stats.MotionFrames)
	}()

	for {
		if ctx.Err() != nil {
			log.Printf("[Pipeline] Context cancelled")
			return Stats{}, nil
		}

		frame, err := p.device.ReadFrame()
		if errors.Is(err, camera.ErrEndOfStream) {
			log.Printf("[Pipeline] Device stopped delivering frames")
			return Stats{}, nil
		}
		if err != nil {
			return Stats{}, fmt.Errorf("failed to read frame: %w", err)
		}

		if err := p.process(frame); err != nil {
			return Stats{}, err
		}

		if p.opts.Canceller != nil && p.opts.Canceller.Cancelled() {
			log.Printf("[Pipeline] Cancelled by operator")
			return Stats{}, nil
		}
	}
}

func (p *Pipeline) process(frame camera.Frame) error {
	filtered, err := p.detector.Preprocess(frame.Image)
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	result, err := p.detector.Detect(filtered)
	if err != nil {
		return fmt.Errorf("failed to detect motion in frame %d: %w", frame.Seq, err)
	}

	p.count(func(s *Stats) { s.Frames++ })
	if result.Bootstrap {
		if p.opts.Debug {
			log.Printf("[Pipeline] Frame %d stored as reference", frame.Seq)
		}
		return nil
	}

	annotated := Annotate(frame.Image, result.Regions)
	if err := p.writer.Write(camera.Frame{Seq: frame.Seq, Timestamp: frame.Timestamp, Image: annotated}); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", frame.Seq, err)
	}

	p.count(func(s *Stats) {
		s.Written++
		if len(result.Regions) > 0 {
			s.MotionFrames++
			s.Regions += uint64(len(result.Regions))
		}
	})
	if p.opts.Debug {
		log.Printf("[Pipeline] Frame %d: %d regions", frame.Seq, len(result.Regions))
	}

	if p.opts.Bus != nil {
		b := annotated.Bounds()
		p.opts.Bus.Publish(&FrameResult{
			Seq:       frame.Seq,
			Timestamp: frame.Timestamp,
			Width:     b.Dx(),
			Height:    b.Dy(),
			Regions:   result.Regions,
			Annotated: annotated,
		})
	}

	if p.opts.Display != nil {
		p.show(map[Stage]image.Image{
			StageFiltered:   filtered,
			StageDifference: result.Difference,
			StageThreshold:  result.Mask,
			StageAnnotated:  annotated,
		})
	}
	return nil
}

// show forwards the stages in display order. Display failures do not stop
// recording.
func (p *Pipeline) show(images map[Stage]image.Image) {
	for _, stage := range Stages() {
		if err := p.opts.Display.Show(stage, images[stage]); err != nil {
			log.Printf("[Pipeline] Failed to display %s: %v", stage, err)
		}
	}
}

func (p *Pipeline) count(update func(s *Stats)) {
	p.mu.Lock()
	update(&p.stats)
	p.mu.Unlock()
}

func (p *Pipeline) release() error {
	var errs []error
	if err := p.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
	}
	if p.opts.Display != nil {
		if err := p.opts.Display.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close display: %w", err))
		}
	}
	if err := p.device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close device: %w", err))
	}
	return errors.Join(errs...)
}
