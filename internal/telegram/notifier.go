package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"camwatch/internal/pipeline"
	"camwatch/internal/timeutil"
)

// Sender delivers alerts.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, jpeg []byte, caption string) error
}

type alert struct {
	seq       uint64
	timestamp time.Time
	regions   int
	frame     *image.RGBA
}

// MotionNotifier turns frame results with motion into Telegram alerts. At
// most one alert is sent per cooldown; alerts arriving while one is being
// sent are dropped so the capture loop never waits on the network.
type MotionNotifier struct {
	sender   Sender
	cooldown time.Duration
	clock    timeutil.Clock
	quality  int
	queue    chan alert

	mu       sync.Mutex
	lastSent time.Time
}

// NewMotionNotifier creates a notifier. A zero cooldown uses DefaultCooldown.
func NewMotionNotifier(sender Sender, cooldown time.Duration, clock timeutil.Clock) *MotionNotifier {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &MotionNotifier{
		sender:   sender,
		cooldown: cooldown,
		clock:    clock,
		quality:  80,
		queue:    make(chan alert, 1),
	}
}

// OnFrameResult implements pipeline.FrameResultHandler.
func (n *MotionNotifier) OnFrameResult(result *pipeline.FrameResult) {
	if !result.HasMotion() {
		return
	}

	n.mu.Lock()
	now := n.clock.Now()
	if !n.lastSent.IsZero() && now.Sub(n.lastSent) < n.cooldown {
		n.mu.Unlock()
		return
	}
	n.lastSent = now
	n.mu.Unlock()

	// The annotated frame is shared with other handlers; alerts get a copy.
	var frame *image.RGBA
	if result.Annotated != nil {
		b := result.Annotated.Bounds()
		frame = image.NewRGBA(b)
		draw.Draw(frame, b, result.Annotated, b.Min, draw.Src)
	}

	select {
	case n.queue <- alert{seq: result.Seq, timestamp: result.Timestamp, regions: len(result.Regions), frame: frame}:
	default:
		log.Printf("[Telegram] Alert for frame %d dropped, previous alert still sending", result.Seq)
	}
}

// Run sends queued alerts until ctx is done.
func (n *MotionNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-n.queue:
			if err := n.send(ctx, a); err != nil {
				log.Printf("[Telegram] Failed to send motion alert: %v", err)
			}
		}
	}
}

func (n *MotionNotifier) send(ctx context.Context, a alert) error {
	zoneName, _ := a.timestamp.Zone()
	caption := fmt.Sprintf(
		"<b>Motion Detected</b>\n\nRegions: %d\nFrame: %d\nTime: %s %s",
		a.regions,
		a.seq,
		a.timestamp.Format("2 Jan 2006, 15:04:05"),
		zoneName,
	)

	if a.frame == nil {
		return n.sender.SendMessage(ctx, caption)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, a.frame, &jpeg.Options{Quality: n.quality}); err != nil {
		return fmt.Errorf("failed to encode alert frame: %w", err)
	}
	return n.sender.SendPhoto(ctx, buf.Bytes(), caption)
}

var _ pipeline.FrameResultHandler = (*MotionNotifier)(nil)
