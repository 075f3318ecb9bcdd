// Package matching scores a resume against a job description. Two
// strategies exist: nearest-neighbour search over embedded resume chunks,
// and a single LLM judgement over the full texts.
package matching

import (
	"context"
	"fmt"

	"github.com/jonathan/job-matcher/internal/embedding"
	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/internal/vectorstore"
)

// Request carries both resume forms; each strategy reads the one it needs.
type Request struct {
	JobDescription string
	ResumeID       string
	ResumeText     string
}

// Strategy scores one request. Match never fails: errors are reported in
// the result with a zero score.
type Strategy interface {
	Name() string
	Match(ctx context.Context, req Request) *types.MatchResult
}

// Deps are the collaborators strategies may need.
type Deps struct {
	Embedder embedding.Embedder
	Store    vectorstore.Store
	LLM      llm.Client
}

// New returns the strategy called name.
func New(name string, deps Deps) (Strategy, error) {
	switch name {
	case types.StrategyVector:
		if deps.Embedder == nil || deps.Store == nil {
			return nil, fmt.Errorf("vector strategy needs an embedder and a vector store")
		}
		return NewVectorMatcher(deps.Embedder, deps.Store), nil
	case types.StrategyLLM, "":
		if deps.LLM == nil {
			return nil, fmt.Errorf("llm strategy needs an LLM client")
		}
		return NewLLMJudge(deps.LLM), nil
	default:
		return nil, fmt.Errorf("unknown match strategy %q", name)
	}
}

func newResult(strategy string) *types.MatchResult {
	return &types.MatchResult{
		Strategy:        strategy,
		MatchedSections: []types.MatchedSection{},
		Evidence:        []string{},
		MissingSkills:   []string{},
	}
}
