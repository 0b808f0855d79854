// Package chain simulates submitting a confirmed execution payload to the
// blockchain. No real chain is contacted; the submitter produces a mock
// receipt after a short delay, with an injectable randomness source so
// tests stay deterministic.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"verdict/internal/logging"
	"verdict/internal/payload"
)

// ErrExecutionFailed is returned for the simulated failure slice. The text
// stays plain-language because it is shown to the user verbatim.
var ErrExecutionFailed = errors.New("we couldn't connect to the network. Your funds are safe - nothing was executed")

// Receipt is the simulated transaction receipt.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber int64  `json:"block_number"`
	GasUsed     int64  `json:"gas_used"`
	Status      string `json:"status"`
}

// Submitter executes payloads against the simulated chain.
type Submitter struct {
	rng     *rand.Rand
	delay   time.Duration
	failPct float64
}

// NewSubmitter creates a submitter with the production delay and a ~10%
// simulated failure rate.
func NewSubmitter() *Submitter {
	return &Submitter{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		delay:   2 * time.Second,
		failPct: 0.1,
	}
}

// NewSubmitterWithSource creates a submitter with injected randomness and
// no delay, for tests.
func NewSubmitterWithSource(src rand.Source, failPct float64) *Submitter {
	return &Submitter{rng: rand.New(src), failPct: failPct}
}

// Execute submits the payload and returns a receipt. The delay honors
// context cancellation. A nil payload is a programming error upstream and
// is rejected.
func (s *Submitter) Execute(ctx context.Context, p *payload.ExecutionPayload) (*Receipt, error) {
	if p == nil {
		return nil, errors.New("no execution payload")
	}
	logging.Chain("Submitting payload trigger=%s action=%s", p.TriggerType, p.Action)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.rng.Float64() < s.failPct {
		logging.Get(logging.CategoryChain).Warn("Simulated execution failure")
		return nil, ErrExecutionFailed
	}

	receipt := &Receipt{
		TxHash:      s.randomTxHash(),
		BlockNumber: s.rng.Int63n(1000000),
		GasUsed:     s.rng.Int63n(100000),
		Status:      "Confirmed",
	}
	logging.Chain("Execution confirmed tx=%s block=%d", receipt.TxHash, receipt.BlockNumber)
	return receipt, nil
}

// randomTxHash returns a 0x-prefixed 64-hex-digit hash.
func (s *Submitter) randomTxHash() string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = byte(s.rng.Intn(256))
	}
	return fmt.Sprintf("0x%x", buf)
}
