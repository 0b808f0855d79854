package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"verdict/internal/gateway"
	"verdict/internal/intent"
	"verdict/internal/parser"
	"verdict/internal/store"
	"verdict/internal/verify"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// verifyCmd drives one verification session interactively
var verifyCmd = &cobra.Command{
	Use:   "verify [intent]",
	Short: "Verify a blockchain intent before execution",
	Long: `Runs the full verification flow for a natural-language intent:
interpretation, clarification if anything is ambiguous, a plain-English
consequence explanation, explicit confirmation, and simulated execution.

The intent can be given as an argument or typed when prompted.`,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	client, err := gateway.NewClient(cfg)
	if err != nil {
		return err
	}

	snapshots, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn("Continuing without persistence", zap.Error(err))
		snapshots = nil
	} else {
		defer snapshots.Close()
	}

	o := verify.NewOrchestrator(cfg, client, snapshots)
	reader := bufio.NewScanner(os.Stdin)

	userIntent := strings.TrimSpace(strings.Join(args, " "))
	if userIntent == "" {
		fmt.Println(headerStyle.Render("What do you want to do?"))
		fmt.Println(dimStyle.Render("Describe the blockchain action in your own words."))
		userIntent = readLine(reader)
	}

	if err := o.Submit(ctx, userIntent); err != nil {
		switch {
		case errors.Is(err, verify.ErrExecutionBlocked):
			fmt.Println(warnStyle.Render("Execution blocked due to unresolved safety risk."))
			fmt.Println(dimStyle.Render("Nothing was executed. Rephrase the request or verify its source."))
			return nil
		case errors.Is(err, verify.ErrEmptyIntent):
			fmt.Println(warnStyle.Render("Please describe what you want to do."))
			return nil
		}
		var gerr *gateway.GatewayError
		if errors.As(err, &gerr) {
			logger.Warn("Interpretation failed", zap.Error(err))
			fmt.Println(warnStyle.Render("We couldn't interpret your request right now. Please try again."))
			return nil
		}
		return err
	}

	// Clarification loop
	for o.Step() == verify.StepClarify {
		if reading := o.CurrentReading(); reading != "" {
			fmt.Println(dimStyle.Render("So far I understand: " + reading))
		}
		fmt.Println(questionStyle.Render(o.Question()))
		answer := readLine(reader)
		if err := o.Clarify(ctx, answer); err != nil {
			if errors.Is(err, intent.ErrRoundsExhausted) {
				fmt.Println(warnStyle.Render("We couldn't reach a clear understanding of this request."))
				fmt.Println(dimStyle.Render("Nothing was executed. Try describing the action more precisely."))
				return nil
			}
			var gerr *gateway.GatewayError
			if errors.As(err, &gerr) {
				logger.Warn("Clarification failed", zap.Error(err))
				fmt.Println(warnStyle.Render("We couldn't process that answer right now. Please try again."))
				return nil
			}
			return err
		}
	}

	// Review, answering fixed safety questions while the explanation is
	// incomplete
	var result *verify.ReviewResult
	for {
		result, err = o.Review(ctx)
		if err != nil {
			return err
		}
		if !result.NeedsSafetyAnswer {
			break
		}
		fmt.Println(warnStyle.Render("The explanation is missing details. One more check:"))
		fmt.Println(questionStyle.Render(result.SafetyQuestion))
		answer := readLine(reader)
		if err := o.AnswerSafety(ctx, answer); err != nil {
			if errors.Is(err, verify.ErrVerificationBlocked) {
				fmt.Println(warnStyle.Render("Verification failed. This action cannot be confirmed."))
				fmt.Println(dimStyle.Render("Run 'verdict reset' to start over."))
				return nil
			}
			return err
		}
	}

	printReview(o, result)

	fmt.Println(questionStyle.Render("Type 'confirm' to execute, anything else to abort:"))
	if strings.ToLower(readLine(reader)) != "confirm" {
		fmt.Println(dimStyle.Render("Aborted. Nothing was executed."))
		return nil
	}

	if err := o.Confirm(ctx); err != nil {
		return err
	}
	printPayload(o)

	fmt.Println(dimStyle.Render("Submitting..."))
	receipt, err := o.Execute(ctx)
	if err != nil {
		fmt.Println(warnStyle.Render("Execution failed: " + err.Error()))
		return nil
	}

	fmt.Println(successStyle.Render("Execution confirmed"))
	fmt.Printf("  Transaction Hash: %s\n", receipt.TxHash)
	fmt.Printf("  Block Number:     %d\n", receipt.BlockNumber)
	fmt.Printf("  Gas Used:         %d wei\n", receipt.GasUsed)
	fmt.Printf("  Status:           %s\n", receipt.Status)
	return nil
}

func printReview(o *verify.Orchestrator, result *verify.ReviewResult) {
	fmt.Println()
	fmt.Println(headerStyle.Render("You are about to approve:"))
	fmt.Println("  " + o.CurrentIntent())
	fmt.Println()

	report := result.Explanation
	for _, section := range parser.Sections() {
		fmt.Println(headerStyle.Render(section.String() + ":"))
		for _, item := range report.Items(section) {
			fmt.Println("  - " + item)
		}
		fmt.Println()
	}

	if result.Summary != "" {
		fmt.Println(dimStyle.Render(result.Summary))
		fmt.Println()
	}
	if len(result.Risks) > 0 {
		fmt.Println(warnStyle.Render("Before you confirm:"))
		for _, risk := range result.Risks {
			fmt.Println(warnStyle.Render("  ! " + risk))
		}
		fmt.Println()
	}
}

func printPayload(o *verify.Orchestrator) {
	p := o.Payload()
	if p == nil {
		return
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(headerStyle.Render("Execution payload:"))
	fmt.Println(string(data))
}

func readLine(reader *bufio.Scanner) string {
	if !reader.Scan() {
		return ""
	}
	return strings.TrimSpace(reader.Text())
}
