package sndchk

import "os"

// Config holds configuration options for a Run. Follows the same
// functional-options shape as the teacher's pkg/acousticdna/config.go.
type Config struct {
	// UserAgent is sent on every outbound request to the fingerprint,
	// metadata, AccurateRip, and EAC services.
	// Default: "sndchk/1.0 (+https://github.com/accurasound/sndchk)"
	UserAgent string

	// FingerprintAPIKey is the fingerprint service's client key.
	FingerprintAPIKey string

	// SampleRate is the expected sample rate of every input stream.
	// Default: 44100 Hz (spec §6: "16-bit signed little-endian stereo
	// samples at 44.1kHz").
	SampleRate int

	// Workers bounds the CPU pool's concurrency (spec §5).
	// Default: workpool.DefaultWorkers (4).
	Workers int

	// Fingerprinter computes acoustic fingerprints for each stream. Required:
	// Run cannot identify a release without it.
	Fingerprinter Fingerprinter

	// AccurateRipLocalHost and EACLocalHost, when set, are probed before
	// the public AccurateRip/EAC hosts (spec §6 localhost-helper
	// fallback). Empty by default.
	AccurateRipLocalHost string
	EACLocalHost         string
}

// Option is a functional option for configuring a Run.
type Option func(*Config)

// WithUserAgent sets the outbound User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) { c.UserAgent = ua }
}

// WithFingerprintAPIKey sets the fingerprint service's client key.
func WithFingerprintAPIKey(key string) Option {
	return func(c *Config) { c.FingerprintAPIKey = key }
}

// WithSampleRate overrides the expected input sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithWorkers overrides the CPU pool's concurrency.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithFingerprinter sets the fingerprint-library binding.
func WithFingerprinter(fp Fingerprinter) Option {
	return func(c *Config) { c.Fingerprinter = fp }
}

// WithAccurateRipLocalHost configures the AccurateRip localhost-helper
// probe base URL.
func WithAccurateRipLocalHost(host string) Option {
	return func(c *Config) { c.AccurateRipLocalHost = host }
}

// WithEACLocalHost configures the EAC localhost-helper probe base URL.
func WithEACLocalHost(host string) Option {
	return func(c *Config) { c.EACLocalHost = host }
}

// defaultConfig returns a Config with sensible defaults, seeding the
// fingerprint API key from the environment the way
// cmd/server/main.go's getEnvOrDefault does.
func defaultConfig() *Config {
	return &Config{
		UserAgent:         "sndchk/1.0 (+https://github.com/accurasound/sndchk)",
		FingerprintAPIKey: os.Getenv("SNDCHK_FINGERPRINT_API_KEY"),
		SampleRate:        44100,
		Workers:           4,
	}
}
