package codec

// HardwareProbe reports whether a platform-specific encoder is
// available on this machine. The core ships no platform codec
// wrappers (per the purpose/scope exclusion); production builds that
// add one register a probe here instead of modifying the factory.
type HardwareProbe func() (Encoder, bool)

// Factory selects the best available encoder, preferring a registered
// hardware probe and falling back to the mandatory software encoder
// on any failure, per the platform-codec design note.
type Factory struct {
	probes []HardwareProbe
}

// NewFactory builds a factory with no hardware probes registered; it
// always resolves to the software encoder until probes are added.
func NewFactory() *Factory {
	return &Factory{}
}

// RegisterProbe adds a hardware-capability probe, tried in
// registration order before falling back to software.
func (f *Factory) RegisterProbe(p HardwareProbe) {
	f.probes = append(f.probes, p)
}

// CreateEncoder returns a hardware encoder if one probes available,
// otherwise the raw-zstd software encoder at the given compression
// level.
func (f *Factory) CreateEncoder(compressionLevel int) Encoder {
	for _, probe := range f.probes {
		if enc, ok := probe(); ok {
			return enc
		}
	}
	return NewRawZstdEncoder(compressionLevel)
}

// FallbackTo returns a fresh software encoder, used when an active
// hardware encoder reports ErrEncoderFailed mid-session.
func FallbackTo(compressionLevel int) Encoder {
	return NewRawZstdEncoder(compressionLevel)
}
