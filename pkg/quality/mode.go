// Package quality implements the adaptive quality controller: the
// bandwidth/RTT-driven selection of a QualityMode and the dwell-time
// policy that keeps it from oscillating.
package quality

import "github.com/beamdesk/beamdesk/pkg/wire"

// Mode is a discrete operating point bundling the pipeline parameters
// that change together.
type Mode uint8

const (
	Ultra Mode = iota
	High
	Medium
	Low
	Minimal
)

func (m Mode) String() string {
	switch m {
	case Ultra:
		return "Ultra"
	case High:
		return "High"
	case Medium:
		return "Medium"
	case Low:
		return "Low"
	case Minimal:
		return "Minimal"
	default:
		return "Unknown"
	}
}

type params struct {
	resolutionScale   float64
	targetFPS         int
	compressionLevel  int
	keyframeInterval  int
	targetBitrateMbps int
}

var table = map[Mode]params{
	Ultra:   {resolutionScale: 1.00, targetFPS: 60, compressionLevel: 1, keyframeInterval: 120, targetBitrateMbps: 50},
	High:    {resolutionScale: 1.00, targetFPS: 30, compressionLevel: 3, keyframeInterval: 60, targetBitrateMbps: 20},
	Medium:  {resolutionScale: 0.75, targetFPS: 30, compressionLevel: 6, keyframeInterval: 30, targetBitrateMbps: 10},
	Low:     {resolutionScale: 0.50, targetFPS: 15, compressionLevel: 9, keyframeInterval: 15, targetBitrateMbps: 5},
	Minimal: {resolutionScale: 0.25, targetFPS: 10, compressionLevel: 12, keyframeInterval: 10, targetBitrateMbps: 2},
}

// ResolutionScale is the nearest-neighbor downscale factor applied
// before encoding.
func (m Mode) ResolutionScale() float64 { return table[m].resolutionScale }

// TargetFPS is the capture/emit rate this mode aims for.
func (m Mode) TargetFPS() int { return table[m].targetFPS }

// CompressionLevel is the zstd level used for both keyframes and
// delta tiles at this mode.
func (m Mode) CompressionLevel() int { return table[m].compressionLevel }

// KeyframeInterval is the number of frames between forced keyframes.
func (m Mode) KeyframeInterval() int { return table[m].keyframeInterval }

// TargetBitrateMbps is the design-level bitrate target for this mode.
func (m Mode) TargetBitrateMbps() int { return table[m].targetBitrateMbps }

// ToWire converts to the byte-sized enum carried on the wire.
func (m Mode) ToWire() wire.QualityMode { return wire.QualityMode(m) }

// FromWire converts a wire-carried quality mode back to Mode, clamping
// any out-of-range value to Minimal (the safest operating point).
func FromWire(w wire.QualityMode) Mode {
	m := Mode(w)
	if _, ok := table[m]; !ok {
		return Minimal
	}
	return m
}

// FromString parses a config-file mode name ("Ultra", "High",
// "Medium", "Low", "Minimal"), defaulting to High if name is
// unrecognized.
func FromString(name string) Mode {
	switch name {
	case "Ultra":
		return Ultra
	case "High":
		return High
	case "Medium":
		return Medium
	case "Low":
		return Low
	case "Minimal":
		return Minimal
	default:
		return High
	}
}
