// Package scoring implements the rule engine that grades crawled pages.
//
// Each dimension (technical, content, ai-readiness, performance) starts at
// 100 and applies a fixed ordered list of independent condition checks; every
// triggered condition subtracts a fixed penalty and records one finding.
// Deductions are additive, so evaluation order never changes the final score
// and each condition can be unit-tested in isolation. Dimension scores are
// clamped to [0,100] after all deductions.
package scoring

import (
	"math"

	"github.com/lsendel/LLMRank-app-sub001/internal/config"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
)

// PageInput is everything the engine needs to score a single page.
// Site is shared by every page of a batch; site-scoped rules produce the
// same finding on each page.
type PageInput struct {
	URL        string
	StatusCode int
	Signals    models.PageSignals
	Site       models.SiteContext
	Perf       *models.PerformanceAudit // nil when no audit was captured
}

// Finding is one triggered rule condition.
type Finding struct {
	Category       models.IssueCategory
	Severity       models.IssueSeverity
	Code           string
	Message        string
	Recommendation string
	Penalty        int
	Data           map[string]any
}

// DimensionResult is the outcome of evaluating one dimension.
type DimensionResult struct {
	Score    int
	Findings []Finding
}

// Result is the full scoring outcome for a page.
type Result struct {
	Technical   int
	Content     int
	AIReadiness int
	Performance int
	Overall     int
	Grade       models.Grade
	Findings    []Finding
}

// Deductions returns the penalty trail for persisting into ScoreDetail.
func (r *Result) Deductions() []models.Deduction {
	if len(r.Findings) == 0 {
		return nil
	}
	out := make([]models.Deduction, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, models.Deduction{
			Code:     f.Code,
			Category: string(f.Category),
			Points:   f.Penalty,
		})
	}
	return out
}

// Engine scores pages under a configured weighting policy.
type Engine struct {
	weights config.ScoreWeights
}

// NewEngine creates an engine with the given inter-dimension weights.
func NewEngine(weights config.ScoreWeights) *Engine {
	return &Engine{weights: weights}
}

// ScorePage evaluates all four dimensions and derives the overall score and
// letter grade. It is pure: identical input always yields identical output.
func (e *Engine) ScorePage(in PageInput) Result {
	technical := EvaluateTechnical(in)
	content := EvaluateContent(in)
	aiReady := EvaluateAIReadiness(in)
	performance := EvaluatePerformance(in)

	var findings []Finding
	findings = append(findings, technical.Findings...)
	findings = append(findings, content.Findings...)
	findings = append(findings, aiReady.Findings...)
	findings = append(findings, performance.Findings...)

	overall := e.Overall(technical.Score, content.Score, aiReady.Score, performance.Score)

	return Result{
		Technical:   technical.Score,
		Content:     content.Score,
		AIReadiness: aiReady.Score,
		Performance: performance.Score,
		Overall:     overall,
		Grade:       GradeFor(overall),
		Findings:    findings,
	}
}

// Overall computes the weighted mean of the four dimension scores, clamped
// to [0,100]. Weights are normalized, so raising any dimension score can
// never lower the overall.
func (e *Engine) Overall(technical, content, aiReadiness, performance int) int {
	w := e.weights
	sum := w.Technical + w.Content + w.AIReadiness + w.Performance
	if sum <= 0 {
		w = config.DefaultScoreWeights()
		sum = w.Technical + w.Content + w.AIReadiness + w.Performance
	}
	weighted := (float64(technical)*w.Technical +
		float64(content)*w.Content +
		float64(aiReadiness)*w.AIReadiness +
		float64(performance)*w.Performance) / sum
	return clampScore(int(math.Round(weighted)))
}

// GradeFor maps an overall score to its letter grade.
func GradeFor(overall int) models.Grade {
	switch {
	case overall >= 90:
		return models.GradeA
	case overall >= 80:
		return models.GradeB
	case overall >= 70:
		return models.GradeC
	case overall >= 60:
		return models.GradeD
	default:
		return models.GradeF
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// evaluator accumulates deductions for one dimension.
type evaluator struct {
	category models.IssueCategory
	score    int
	findings []Finding
}

func newEvaluator(category models.IssueCategory) *evaluator {
	return &evaluator{category: category, score: 100}
}

func (e *evaluator) deduct(penalty int, severity models.IssueSeverity, code, message, recommendation string) {
	e.deductData(penalty, severity, code, message, recommendation, nil)
}

func (e *evaluator) deductData(penalty int, severity models.IssueSeverity, code, message, recommendation string, data map[string]any) {
	e.score -= penalty
	e.findings = append(e.findings, Finding{
		Category:       e.category,
		Severity:       severity,
		Code:           code,
		Message:        message,
		Recommendation: recommendation,
		Penalty:        penalty,
		Data:           data,
	})
}

func (e *evaluator) result() DimensionResult {
	return DimensionResult{Score: clampScore(e.score), Findings: e.findings}
}
