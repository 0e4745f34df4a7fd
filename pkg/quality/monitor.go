package quality

import "time"

// sampleWindowSize caps the rolling window at 30 FrameAck samples.
const sampleWindowSize = 30

type sample struct {
	at        time.Time
	bytesSent uint64
	rttMs     float64
}

// Monitor maintains the rolling window of bandwidth/RTT observations
// that the controller scores.
type Monitor struct {
	samples []sample
}

// NewMonitor returns an empty bandwidth/RTT monitor.
func NewMonitor() *Monitor {
	return &Monitor{samples: make([]sample, 0, sampleWindowSize)}
}

// Observe records one FrameAck's worth of data: bytes sent since the
// prior ack and the observed round-trip time.
func (m *Monitor) Observe(bytesSent uint64, rttMs float64) {
	m.samples = append(m.samples, sample{at: time.Now(), bytesSent: bytesSent, rttMs: rttMs})
	if len(m.samples) > sampleWindowSize {
		m.samples = m.samples[len(m.samples)-sampleWindowSize:]
	}
}

// BandwidthMbps reports the smoothed send rate across the window. It
// is zero if the window spans less than 0.1s (too little data to be
// meaningful).
func (m *Monitor) BandwidthMbps() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	duration := m.samples[len(m.samples)-1].at.Sub(m.samples[0].at).Seconds()
	if duration < 0.1 {
		return 0
	}
	var totalBytes uint64
	for _, s := range m.samples {
		totalBytes += s.bytesSent
	}
	return float64(totalBytes) * 8 / (duration * 1e6)
}

// AvgRTTMs is the mean RTT across the window.
func (m *Monitor) AvgRTTMs() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.samples {
		sum += s.rttMs
	}
	return sum / float64(len(m.samples))
}

// LossProxy approximates packet loss from RTT variance, clamped to
// 0-20%. This is explicitly a proxy, not true loss accounting (see
// the open question in the design notes).
func (m *Monitor) LossProxy() float64 {
	if len(m.samples) < 2 {
		return 0
	}
	mean := m.AvgRTTMs()
	var variance float64
	for _, s := range m.samples {
		d := s.rttMs - mean
		variance += d * d
	}
	variance /= float64(len(m.samples))
	if variance > 20 {
		variance = 20
	}
	return variance
}

// Reset clears the window, e.g. after a quality-forced resync.
func (m *Monitor) Reset() { m.samples = m.samples[:0] }
