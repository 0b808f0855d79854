package intent

import (
	"context"
	"errors"

	"verdict/internal/logging"
	"verdict/internal/parser"
)

// LoopState is the clarification loop's position.
type LoopState int

const (
	// AwaitingAnswer means a question is outstanding.
	AwaitingAnswer LoopState = iota
	// Resolved means the interpreter no longer needs clarification.
	Resolved
)

// ErrRoundsExhausted is returned when a configured round cap is hit before
// the interpreter converges. The session treats this as "unable to
// interpret" and redirects to intent capture.
var ErrRoundsExhausted = errors.New("clarification rounds exhausted")

// ErrLoopResolved is returned when Answer is called after resolution.
var ErrLoopResolved = errors.New("clarification loop already resolved")

// ClarificationLoop drives the bounded ask/update cycle. Each answer is
// appended to the history and the interpreter is reinvoked with the full
// accumulated history, so every new interpretation derives from the
// original intent plus all answers so far, never from the latest answer
// alone.
type ClarificationLoop struct {
	interp         *Interpreter
	originalIntent string

	history        []QA
	question       string
	currentReading string
	interpretation string
	state          LoopState

	// maxRounds caps the loop; 0 means unbounded.
	maxRounds int
}

// NewClarificationLoop starts a loop from the first interpretation result
// that requested clarification.
func NewClarificationLoop(interp *Interpreter, originalIntent string, first *parser.InterpretationResult, maxRounds int) *ClarificationLoop {
	return &ClarificationLoop{
		interp:         interp,
		originalIntent: originalIntent,
		question:       first.Question,
		currentReading: first.CurrentInterpretation,
		state:          AwaitingAnswer,
		maxRounds:      maxRounds,
	}
}

// State returns the loop state.
func (l *ClarificationLoop) State() LoopState { return l.state }

// Resolved reports whether the loop has terminated.
func (l *ClarificationLoop) Resolved() bool { return l.state == Resolved }

// Question returns the outstanding question, empty once resolved.
func (l *ClarificationLoop) Question() string { return l.question }

// CurrentReading returns the working interpretation shown alongside the question.
func (l *ClarificationLoop) CurrentReading() string { return l.currentReading }

// Interpretation returns the final interpretation once resolved.
func (l *ClarificationLoop) Interpretation() string { return l.interpretation }

// History returns the recorded question/answer pairs in order.
func (l *ClarificationLoop) History() []QA { return l.history }

// Answer records the answer to the outstanding question and reinterprets.
// If the interpreter still needs clarification the loop re-enters
// AwaitingAnswer with the new question; otherwise it resolves.
func (l *ClarificationLoop) Answer(ctx context.Context, answer string) error {
	if l.state == Resolved {
		return ErrLoopResolved
	}

	l.history = append(l.history, QA{Question: l.question, Answer: answer})
	logging.Intent("Clarification round %d answered", len(l.history))

	result, err := l.interp.UpdateWithClarification(ctx, l.originalIntent, l.history)
	if err != nil {
		// Roll the answer back so a retry with a fresh gateway is possible
		// after the caller resets; the loop itself stays unresolved.
		l.history = l.history[:len(l.history)-1]
		return err
	}

	if result.NeedsClarification {
		if l.maxRounds > 0 && len(l.history) >= l.maxRounds {
			logging.Get(logging.CategoryIntent).Warn("Clarification cap reached after %d rounds", len(l.history))
			return ErrRoundsExhausted
		}
		l.question = result.Question
		l.currentReading = result.CurrentInterpretation
		l.state = AwaitingAnswer
		return nil
	}

	l.interpretation = result.Interpretation
	l.question = ""
	l.state = Resolved
	logging.Intent("Clarification resolved after %d round(s)", len(l.history))
	return nil
}
