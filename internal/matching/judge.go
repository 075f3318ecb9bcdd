package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/prompts"
	"github.com/jonathan/job-matcher/internal/schemas"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// MaxJudgeJobChars and MaxJudgeResumeChars bound the texts sent to the
	// model.
	MaxJudgeJobChars    = 20000
	MaxJudgeResumeChars = 5000
)

// verdict is the JSON object the model must return.
type verdict struct {
	Score         float64  `json:"score"`
	Reason        string   `json:"reason"`
	Evidence      []string `json:"evidence"`
	MissingSkills []string `json:"missing_skills"`
}

var verdictSchema = schemas.MustFor("match verdict", verdict{})

// LLMJudge asks a chat model to grade the resume like a strict recruiter.
type LLMJudge struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMJudge creates an LLMJudge on the standard tier.
func NewLLMJudge(client llm.Client) *LLMJudge {
	return &LLMJudge{client: client, tier: llm.TierStandard}
}

// Name returns "llm".
func (j *LLMJudge) Name() string { return types.StrategyLLM }

// Match grades req.ResumeText against req.JobDescription.
func (j *LLMJudge) Match(ctx context.Context, req Request) *types.MatchResult {
	ctx, span := tracing.Tracer("matching").Start(ctx, "LLMJudge.Match")
	defer span.End()

	res := newResult(types.StrategyLLM)
	v, err := j.judge(ctx, req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		logger.Ctx(ctx).Warn().Err(err).Msg("llm match failed")
		res.Error = err.Error()
		res.Reason = "Error: " + err.Error()
		return res
	}

	res.Score = clamp(v.Score, 0, 100)
	res.Reason = v.Reason
	if v.Evidence != nil {
		res.Evidence = v.Evidence
	}
	if v.MissingSkills != nil {
		res.MissingSkills = v.MissingSkills
	}
	span.SetAttributes(attribute.Float64("score", res.Score))
	return res
}

func (j *LLMJudge) judge(ctx context.Context, req Request) (*verdict, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, fmt.Errorf("job description is empty")
	}
	if strings.TrimSpace(req.ResumeText) == "" {
		return nil, fmt.Errorf("resume text is empty")
	}

	prompt, err := prompts.Render(prompts.MatchingFile, "judge-match", map[string]string{
		"JobDescription": truncateRunes(req.JobDescription, MaxJudgeJobChars),
		"ResumeText":     truncateRunes(req.ResumeText, MaxJudgeResumeChars),
		"Schema":         verdictSchema.String(),
	})
	if err != nil {
		return nil, err
	}

	raw, err := j.client.GenerateJSON(ctx, prompt, j.tier)
	if err != nil {
		return nil, err
	}

	var v verdict
	if err := verdictSchema.Decode([]byte(llm.CleanJSONBlock(raw)), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
