package analyzer

import (
	"fmt"

	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	"go.uber.org/zap"
)

// Analyzer runs a fixed set of detectors over markup text and assembles the
// report. An Analyzer holds no per-scan state and is safe for concurrent use.
type Analyzer struct {
	detectors     []Detector
	logger        *zap.Logger
	maxInputBytes int
	disabled      map[RuleID]struct{}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used to report detector failures.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMaxInputBytes caps the inspected input. Zero or less disables the cap.
func WithMaxInputBytes(n int) Option {
	return func(a *Analyzer) {
		a.maxInputBytes = n
	}
}

// WithDisabledRules drops findings of the given rules before scoring.
func WithDisabledRules(ids ...RuleID) Option {
	return func(a *Analyzer) {
		for _, id := range ids {
			a.disabled[id] = struct{}{}
		}
	}
}

// WithDetectors replaces the built-in detector list.
func WithDetectors(detectors ...Detector) Option {
	return func(a *Analyzer) {
		a.detectors = append([]Detector(nil), detectors...)
	}
}

// WithExtraDetectors appends detectors after the built-in ones.
func WithExtraDetectors(detectors ...Detector) Option {
	return func(a *Analyzer) {
		a.detectors = append(a.detectors, detectors...)
	}
}

// New returns an Analyzer with the built-in detectors and the default input cap.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		detectors:     DefaultDetectors(),
		logger:        zap.NewNop(),
		maxInputBytes: consts.DefaultMaxInputBytes,
		disabled:      make(map[RuleID]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scans text with a default Analyzer.
func Analyze(text string) *Report {
	return New().Analyze(text)
}

// Detectors returns the configured detectors in execution order.
func (a *Analyzer) Detectors() []Detector {
	out := make([]Detector, len(a.detectors))
	copy(out, a.detectors)
	return out
}

// MaxInputBytes returns the configured input cap.
func (a *Analyzer) MaxInputBytes() int {
	return a.maxInputBytes
}

// Analyze tokenizes text once, runs every detector over the result and
// returns a fresh report. It never fails: a detector that panics is logged
// and contributes nothing.
func (a *Analyzer) Analyze(text string) *Report {
	inputBytes := len(text)
	truncated := false
	if a.maxInputBytes > 0 && len(text) > a.maxInputBytes {
		text = truncateUTF8(text, a.maxInputBytes)
		truncated = true
		a.logger.Warn("input truncated",
			zap.Int("input_bytes", inputBytes),
			zap.Int("max_input_bytes", a.maxInputBytes),
		)
	}

	doc := NewDocument(text)
	var findings []Finding
	for _, d := range a.detectors {
		for _, f := range a.runDetector(d, doc) {
			if _, off := a.disabled[f.RuleID]; off {
				continue
			}
			findings = append(findings, f)
		}
	}

	report := Assemble(findings, a.summarize(doc))
	report.InputBytes = inputBytes
	report.Truncated = truncated
	return report
}

func (a *Analyzer) runDetector(d Detector, doc *Document) (findings []Finding) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("detector failed",
				zap.String("detector", d.Name()),
				zap.String("panic", fmt.Sprint(r)),
			)
			findings = nil
		}
	}()
	return d.Detect(doc)
}

func (a *Analyzer) summarize(doc *Document) (s Summary) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("summary failed", zap.String("panic", fmt.Sprint(r)))
			s = Summary{}
		}
	}()
	return doc.Summary()
}
