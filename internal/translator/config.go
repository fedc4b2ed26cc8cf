package translator

// Config holds a Translator's tunables, set via functional options
// (Option), following the same pattern the teacher's top-level
// wazero.RuntimeConfig uses (config.go at the repository root).
type Config struct {
	verify bool
}

func defaultConfig() Config {
	return Config{verify: true}
}

// Option configures a Translator at construction time.
type Option func(*Config)

// WithVerify toggles running ssa.Verify after every TranslateFunction call.
// Enabled by default; tests that intentionally feed malformed input to
// observe a TranslationError, rather than a verifier rejection, may disable
// it.
func WithVerify(enabled bool) Option {
	return func(c *Config) { c.verify = enabled }
}
