package moduledriver

import (
	"io"
	"log"
	"runtime"

	"github.com/wasmssa/wasmssa/internal/translator"
)

// TranslatorConfig controls how TranslateModule drives per-function
// translation, built with the clone-on-write functional-options pattern the
// root wazero.RuntimeConfig uses (config.go): every With* method returns a
// new, independent config rather than mutating the receiver.
type TranslatorConfig struct {
	verifyAfterTranslation bool
	maxFunctionBodySize    uint32
	parallelTranslation    bool
	workers                int
	logger                 *log.Logger
}

// defaultConfig mirrors the teacher's engineLessConfig: the shared base every
// constructor clones from. The default logger discards output, following the
// teacher's convention (internal/engine/*) of staying silent unless a caller
// opts in.
var defaultConfig = &TranslatorConfig{
	verifyAfterTranslation: true,
	maxFunctionBodySize:    0, // 0 means unbounded
	parallelTranslation:    false,
	workers:                runtime.GOMAXPROCS(0),
	logger:                 log.New(io.Discard, "", 0),
}

// clone ensures all fields are copied even if the zero value would do.
func (c *TranslatorConfig) clone() *TranslatorConfig {
	ret := *c
	return &ret
}

// NewTranslatorConfig returns a TranslatorConfig with the package defaults:
// verification on, no function body size limit, sequential translation.
func NewTranslatorConfig() *TranslatorConfig {
	return defaultConfig.clone()
}

// WithVerifyAfterTranslation toggles running the SSA verifier after each
// function's translation (translator.WithVerify, threaded through to every
// Translator TranslateModule constructs). Enabled by default; tooling that
// wants to inspect the raw, possibly-invalid output of a malformed module
// may disable it.
func (c *TranslatorConfig) WithVerifyAfterTranslation(enabled bool) *TranslatorConfig {
	ret := c.clone()
	ret.verifyAfterTranslation = enabled
	return ret
}

// WithMaxFunctionBodySize rejects any function whose encoded body exceeds n
// bytes before translation starts, rather than letting the Operator
// Dispatcher run arbitrarily long on a hostile or corrupt module. Zero (the
// default) means unbounded.
func (c *TranslatorConfig) WithMaxFunctionBodySize(n uint32) *TranslatorConfig {
	ret := c.clone()
	ret.maxFunctionBodySize = n
	return ret
}

// WithParallelTranslation fans out function translation across a bounded
// worker pool (one Translator per worker, since a Translator's ssa.Builder
// is reused and reset between functions and so cannot be shared across
// goroutines). Functions are independent once the module's globals and table
// are initialized, so this only changes how fast TranslateModule returns,
// never its result. Disabled by default.
func (c *TranslatorConfig) WithParallelTranslation(enabled bool) *TranslatorConfig {
	ret := c.clone()
	ret.parallelTranslation = enabled
	return ret
}

// WithWorkers sets the worker pool size used when parallel translation is
// enabled. Defaults to runtime.GOMAXPROCS(0). Ignored otherwise.
func (c *TranslatorConfig) WithWorkers(n int) *TranslatorConfig {
	ret := c.clone()
	if n < 1 {
		n = 1
	}
	ret.workers = n
	return ret
}

// WithLogger sets the logger TranslateModule reports module-level progress
// to (translation start, per-function failure) — never per-operator, the
// same instantiate/compile-boundary-only granularity the teacher's engines
// use for their own log lines. Defaults to a discarding logger.
func (c *TranslatorConfig) WithLogger(l *log.Logger) *TranslatorConfig {
	ret := c.clone()
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	ret.logger = l
	return ret
}

func (c *TranslatorConfig) translatorOptions() []translator.Option {
	return []translator.Option{translator.WithVerify(c.verifyAfterTranslation)}
}
