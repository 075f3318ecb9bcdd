package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"go.opentelemetry.io/otel/attribute"
)

// State is a node of the scan state machine.
type State string

const (
	StateScan      State = "scan"
	StateSupervise State = "supervise"
	StateResearch  State = "research"
	StateDone      State = "done"
)

const (
	// DefaultResearchThreshold is the score a match must exceed to trigger
	// company research.
	DefaultResearchThreshold = 80.0
	// DefaultMaxSteps bounds the number of transitions in one run.
	DefaultMaxSteps = 20
	// ResearchFailedNote is recorded when research for a company fails.
	ResearchFailedNote = "Research failed or API unavailable."
)

// ErrStepLimit is returned when a run does not reach StateDone within
// MaxSteps transitions.
var ErrStepLimit = errors.New("state machine exceeded its step limit")

// CompanyResearcher produces research notes for a company.
type CompanyResearcher interface {
	Research(ctx context.Context, company string) (string, error)
}

// Machine drives a scan through scan, supervise and research until no
// high scoring match is left without notes.
type Machine struct {
	Pipeline   *Pipeline
	Researcher CompanyResearcher
	Threshold  float64
	MaxSteps   int
	OnProgress ProgressCallback
}

// NewMachine builds a machine from the orchestrator settings. researcher
// may be nil, in which case strong matches get ResearchFailedNote.
func NewMachine(cfg config.OrchestratorConfig, pipeline *Pipeline, researcher CompanyResearcher) *Machine {
	return &Machine{
		Pipeline:   pipeline,
		Researcher: researcher,
		Threshold:  cfg.ResearchThreshold,
		MaxSteps:   cfg.MaxSteps,
	}
}

// run is the mutable state threaded through transitions.
type run struct {
	input  ScanInput
	report *types.ScanReport
	target string
}

// NextResearchTarget returns the first company, in report order, whose match
// scores above threshold and has no research notes yet.
func NextResearchTarget(report *types.ScanReport, threshold float64) (string, bool) {
	if report == nil {
		return "", false
	}
	for _, m := range report.Matches {
		if m.Error != "" || m.MatchDetails.Score <= threshold {
			continue
		}
		if _, done := report.Research[m.Company]; done {
			continue
		}
		return m.Company, true
	}
	return "", false
}

// Run executes the machine from StateScan to StateDone. The report is
// returned even when err is non-nil.
func (m *Machine) Run(ctx context.Context, in ScanInput) (*types.ScanReport, error) {
	ctx, span := tracing.Tracer("orchestrator").Start(ctx, "machine.Run")
	defer span.End()
	log := logger.Ctx(ctx)

	maxSteps := m.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	r := &run{input: in, report: &types.ScanReport{Matches: []types.JobMatch{}, Research: map[string]string{}}}
	state := StateScan
	for step := 0; state != StateDone; step++ {
		if step >= maxSteps {
			tracing.RecordError(span, ErrStepLimit, tracing.ErrorTypeInternal)
			return r.report, fmt.Errorf("%w (%d)", ErrStepLimit, maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return r.report, err
		}

		next := m.step(ctx, state, r)
		log.Info().Str("from", string(state)).Str("to", string(next)).Int("step", step).Msg("state transition")
		m.emit(string(next), fmt.Sprintf("%s -> %s", state, next))
		state = next
	}

	span.SetAttributes(
		attribute.Int("scan.matches", len(r.report.Matches)),
		attribute.Int("scan.researched", len(r.report.Research)),
	)
	return r.report, nil
}

func (m *Machine) step(ctx context.Context, state State, r *run) State {
	switch state {
	case StateScan:
		r.report = m.Pipeline.Scan(ctx, r.input)
		if r.report.Research == nil {
			r.report.Research = map[string]string{}
		}
		return StateSupervise
	case StateSupervise:
		target, ok := NextResearchTarget(r.report, m.threshold())
		if !ok {
			return StateDone
		}
		r.target = target
		return StateResearch
	case StateResearch:
		r.report.Research[r.target] = m.research(ctx, r.target)
		r.target = ""
		return StateSupervise
	default:
		return StateDone
	}
}

func (m *Machine) research(ctx context.Context, company string) string {
	if m.Researcher == nil {
		return ResearchFailedNote
	}
	m.emit("research", fmt.Sprintf("Researching %s...", company))
	notes, err := m.Researcher.Research(ctx, company)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("company", company).Msg("company research failed")
		return ResearchFailedNote
	}
	return notes
}

func (m *Machine) threshold() float64 {
	if m.Threshold <= 0 {
		return DefaultResearchThreshold
	}
	return m.Threshold
}

func (m *Machine) emit(step, message string) {
	if m.OnProgress != nil {
		m.OnProgress(ProgressEvent{Step: step, Category: "orchestrator", Message: message})
	}
}
