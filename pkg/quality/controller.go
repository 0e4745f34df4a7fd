package quality

import (
	"sync"
	"time"
)

// dwellTime is the minimum interval between automatic mode changes.
const dwellTime = 2 * time.Second

// Controller picks a Mode from rolling bandwidth/RTT/loss observations,
// honoring a minimum dwell time between automatic changes and a
// viewer-forced pin that bypasses it.
type Controller struct {
	mu sync.Mutex

	monitor     *Monitor
	current     Mode
	lastChange  time.Time
	pinned      bool
	pinnedMode  Mode
	onChange    func(Mode)
}

// NewController starts at High quality pending the first observation.
func NewController(onChange func(Mode)) *Controller {
	return &Controller{
		monitor:    NewMonitor(),
		current:    High,
		lastChange: time.Time{},
		onChange:   onChange,
	}
}

// Current returns the active mode.
func (c *Controller) Current() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ForceMode pins the controller to mode, bypassing the dwell timer,
// until Unpin is called. This models the viewer's RequestQualityChange.
func (c *Controller) ForceMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = true
	c.pinnedMode = mode
	c.setMode(mode)
}

// Unpin releases a prior ForceMode, returning control to the automatic
// scorer on the next UpdateMetrics call.
func (c *Controller) Unpin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = false
}

// UpdateMetrics records one FrameAck's observation and, unless pinned
// or still within the dwell window, recomputes the recommended mode
// and applies it if it differs from the current one.
func (c *Controller) UpdateMetrics(bytesSent uint64, rttMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.monitor.Observe(bytesSent, rttMs)
	if c.pinned {
		return
	}
	if !c.lastChange.IsZero() && time.Since(c.lastChange) < dwellTime {
		return
	}
	recommended := scoreToMode(c.score())
	if recommended != c.current {
		c.setMode(recommended)
	}
}

// setMode applies mode and fires onChange; caller holds c.mu.
func (c *Controller) setMode(mode Mode) {
	c.current = mode
	c.lastChange = time.Now()
	if c.onChange != nil {
		c.onChange(mode)
	}
}

// score computes 0.5*bandwidth_score + 0.3*rtt_score + 0.2*loss_score
// per the design's weighting. Caller holds c.mu.
func (c *Controller) score() float64 {
	bandwidth := c.monitor.BandwidthMbps()
	rtt := c.monitor.AvgRTTMs()
	loss := c.monitor.LossProxy()

	bandwidthScore := min1(bandwidth / 50)
	rttScore := 1 - min1(rtt/200)
	lossScore := 1 - min1(loss/10)

	return 0.5*bandwidthScore + 0.3*rttScore + 0.2*lossScore
}

func scoreToMode(score float64) Mode {
	switch {
	case score >= 0.8:
		return Ultra
	case score >= 0.6:
		return High
	case score >= 0.4:
		return Medium
	case score >= 0.2:
		return Low
	default:
		return Minimal
	}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
