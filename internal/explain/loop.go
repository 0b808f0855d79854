package explain

import (
	"context"
	"errors"

	"verdict/internal/logging"
	"verdict/internal/parser"
)

// ErrVerificationFailed means the explanation stayed incomplete after the
// sub-loop bound. The session cannot proceed to execution.
var ErrVerificationFailed = errors.New("explanation verification failed")

// ErrLoopDone is returned when Answer is called after the loop has either
// produced a complete report or failed.
var ErrLoopDone = errors.New("safety loop already finished")

// SafetyAnswer records one fixed-question exchange during the sub-loop.
type SafetyAnswer struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Section  parser.Section `json:"section"`
}

// SafetyLoop drives the bounded clarification sub-loop that runs when an
// explanation report is missing sections. Each answer is combined with the
// original intent and the explanation is regenerated from the combined
// statement; the loop never patches a report in place.
type SafetyLoop struct {
	engine         *Engine
	originalIntent string
	currentIntent  string
	report         *parser.ExplanationReport
	history        []SafetyAnswer
	attempts       int
	done           bool
	failed         bool
}

// NewSafetyLoop starts a sub-loop for an incomplete report.
func NewSafetyLoop(engine *Engine, originalIntent string, incomplete *parser.ExplanationReport) *SafetyLoop {
	return &SafetyLoop{
		engine:         engine,
		originalIntent: originalIntent,
		currentIntent:  originalIntent,
		report:         incomplete,
	}
}

// Question returns the fixed safety question for the current attempt.
func (l *SafetyLoop) Question() string {
	return SafetyQuestion(l.attempts)
}

// MissingSection reports the first absent section of the current report.
func (l *SafetyLoop) MissingSection() parser.Section {
	section, _ := l.report.FirstMissing()
	return section
}

// Attempts returns how many answers have been consumed.
func (l *SafetyLoop) Attempts() int { return l.attempts }

// Done reports whether the loop has finished, successfully or not.
func (l *SafetyLoop) Done() bool { return l.done }

// Failed reports whether the loop ended in verification failure.
func (l *SafetyLoop) Failed() bool { return l.failed }

// Report returns the latest explanation report.
func (l *SafetyLoop) Report() *parser.ExplanationReport { return l.report }

// FinalIntent returns the combined intent after the last answer. Before any
// answer it equals the original intent.
func (l *SafetyLoop) FinalIntent() string { return l.currentIntent }

// History returns the recorded safety exchanges.
func (l *SafetyLoop) History() []SafetyAnswer { return l.history }

// Answer consumes one safety answer. The answer is merged into the intent,
// the explanation is regenerated, and the result decides the loop state:
// a complete report finishes the loop, an incomplete one either re-asks or,
// once the bound is reached, fails verification permanently.
func (l *SafetyLoop) Answer(ctx context.Context, answer string) (*parser.ExplanationReport, error) {
	if l.done {
		return nil, ErrLoopDone
	}

	section := l.MissingSection()
	question := l.Question()
	l.history = append(l.history, SafetyAnswer{Question: question, Answer: answer, Section: section})
	l.attempts++

	combined := l.engine.Combine(ctx, l.originalIntent, answer)
	l.currentIntent = combined

	report, err := l.engine.Explain(ctx, combined)
	if err != nil {
		// Gateway failure is retryable; roll back so the caller can
		// resubmit the same answer.
		l.history = l.history[:len(l.history)-1]
		l.attempts--
		l.currentIntent = l.originalIntent
		return nil, err
	}
	l.report = report

	if !report.Incomplete {
		l.done = true
		logging.Explain("Explanation complete after %d clarification(s)", l.attempts)
		return report, nil
	}

	if l.attempts >= l.engine.maxRounds {
		l.done = true
		l.failed = true
		logging.Get(logging.CategoryExplain).Warn("Verification failed after %d attempt(s)", l.attempts)
		return report, ErrVerificationFailed
	}

	logging.Explain("Explanation still incomplete, attempt %d of %d", l.attempts, l.engine.maxRounds)
	return report, nil
}
