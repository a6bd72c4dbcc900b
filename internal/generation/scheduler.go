package generation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

const (
	// AttemptBudget caps generation attempts per difficulty bucket.
	AttemptBudget = 20
	// RetrievalTopK is the number of passages fetched per attempt.
	RetrievalTopK = 5
)

// ContextSet is the set of passages retrieved for one attempt.
type ContextSet struct {
	Passages []string
}

// ContextRetriever fetches passages from one indexed document and answers prompts over them.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) (ContextSet, error)
	Answer(ctx context.Context, set ContextSet, prompt string) (string, error)
}

// CompletionCapability is a text-completion backend with a health probe.
type CompletionCapability interface {
	Health(ctx context.Context) error
	Complete(ctx context.Context, prompt string) (string, error)
}

type SchedulerOptions struct {
	// Parallel runs the buckets concurrently. Output order is unchanged.
	Parallel bool
	// Pick overrides the random source for retrieval queries.
	Pick func(n int) int
}

// Scheduler drives per-bucket generation under a bounded attempt budget.
type Scheduler struct {
	llm       CompletionCapability
	validator *Validator
	parallel  bool
	pick      func(n int) int
	logger    zerolog.Logger
}

func NewScheduler(llm CompletionCapability, validator *Validator, opts SchedulerOptions, logger zerolog.Logger) *Scheduler {
	pick := opts.Pick
	if pick == nil {
		pick = rand.IntN
	}
	if validator == nil {
		validator = NewValidator()
	}
	return &Scheduler{
		llm:       llm,
		validator: validator,
		parallel:  opts.Parallel,
		pick:      pick,
		logger:    logger.With().Str("component", "generation_scheduler").Logger(),
	}
}

// BucketReport summarizes one bucket's run.
type BucketReport struct {
	Difficulty string `json:"difficulty"`
	Target     int    `json:"target"`
	Generated  int    `json:"generated"`
	Attempts   int    `json:"attempts"`
}

// Result is the ordered candidate list (easy, medium, hard) plus per-bucket reports.
type Result struct {
	Questions []quiz.QuestionCandidate `json:"questions"`
	Buckets   []BucketReport           `json:"buckets"`
}

// Run health-checks the completion capability and fills every bucket of targets from retriever.
// Buckets that under-fill are not errors; ErrGenerationExhausted is returned only when
// nothing at all was accepted. Cancellation is observed between attempts.
func (s *Scheduler) Run(ctx context.Context, retriever ContextRetriever, targets quiz.DifficultyCount) (Result, error) {
	if err := s.llm.Health(ctx); err != nil {
		runsTotal.WithLabelValues("unavailable").Inc()
		return Result{}, fmt.Errorf("%w: %v", quiz.ErrCapabilityUnavailable, err)
	}

	used := NewConceptSet()
	buckets := make([][]quiz.QuestionCandidate, len(quiz.Difficulties))
	reports := make([]BucketReport, len(quiz.Difficulties))

	if s.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, difficulty := range quiz.Difficulties {
			g.Go(func() error {
				var err error
				buckets[i], reports[i], err = s.runBucket(gctx, retriever, difficulty, targets.For(difficulty), used)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	} else {
		for i, difficulty := range quiz.Difficulties {
			var err error
			buckets[i], reports[i], err = s.runBucket(ctx, retriever, difficulty, targets.For(difficulty), used)
			if err != nil {
				return Result{}, err
			}
		}
	}

	var out Result
	out.Buckets = reports
	for _, b := range buckets {
		out.Questions = append(out.Questions, b...)
	}

	if len(out.Questions) == 0 {
		runsTotal.WithLabelValues("exhausted").Inc()
		return out, quiz.ErrGenerationExhausted
	}
	runsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

func (s *Scheduler) runBucket(ctx context.Context, retriever ContextRetriever, difficulty string, target int, used *ConceptSet) ([]quiz.QuestionCandidate, BucketReport, error) {
	report := BucketReport{Difficulty: difficulty, Target: target}
	accepted := make([]quiz.QuestionCandidate, 0, max(target, 0))

	for len(accepted) < target && report.Attempts < AttemptBudget {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		report.Attempts++

		// an attempt in flight finishes on its own timeouts
		res := s.attempt(context.WithoutCancel(ctx), retriever, difficulty, used)
		attemptsTotal.WithLabelValues(difficulty, string(res.outcome)).Inc()

		switch res.outcome {
		case outcomeAccepted:
			accepted = append(accepted, res.candidate)
		case outcomeRejected:
			rejectionsTotal.WithLabelValues(string(res.reason)).Inc()
			s.logger.Debug().
				Str("difficulty", difficulty).
				Int("attempt", report.Attempts).
				Str("reason", string(res.reason)).
				Msg("candidate rejected")
		case outcomeFailed:
			s.logger.Warn().
				Err(res.err).
				Str("difficulty", difficulty).
				Int("attempt", report.Attempts).
				Msg("generation attempt failed")
		}
	}

	report.Generated = len(accepted)
	if report.Generated < target {
		s.logger.Info().
			Str("difficulty", difficulty).
			Int("target", target).
			Int("generated", report.Generated).
			Msg("bucket under-filled")
	}
	return accepted, report, nil
}

type attemptOutcome string

const (
	outcomeAccepted attemptOutcome = "accepted"
	outcomeRejected attemptOutcome = "rejected"
	outcomeFailed   attemptOutcome = "failed"
)

type attemptResult struct {
	outcome   attemptOutcome
	candidate quiz.QuestionCandidate
	reason    RejectReason
	err       error
}

func (s *Scheduler) attempt(ctx context.Context, retriever ContextRetriever, difficulty string, used *ConceptSet) (res attemptResult) {
	defer func() {
		if r := recover(); r != nil {
			res = attemptResult{outcome: outcomeFailed, err: fmt.Errorf("attempt panicked: %v", r)}
		}
	}()

	set, err := retriever.Retrieve(ctx, RetrievalQuery(difficulty, s.pick), RetrievalTopK)
	if err != nil {
		return attemptResult{outcome: outcomeFailed, err: fmt.Errorf("retrieve: %w", err)}
	}

	raw, err := retriever.Answer(ctx, set, QuestionPrompt(difficulty))
	if err != nil {
		return attemptResult{outcome: outcomeFailed, err: fmt.Errorf("answer: %w", err)}
	}

	verdict := s.validator.Validate(raw, difficulty, used)
	if !verdict.Accepted() {
		return attemptResult{outcome: outcomeRejected, reason: verdict.Reason}
	}
	// parallel buckets may race on the same prefix between Validate and Claim
	if !used.Claim(verdict.Prefix) {
		return attemptResult{outcome: outcomeRejected, reason: RejectRepeatTopic}
	}
	return attemptResult{outcome: outcomeAccepted, candidate: verdict.Candidate}
}
