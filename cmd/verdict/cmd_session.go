package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"verdict/internal/store"
	"verdict/internal/verify"
)

// exampleIntents are shown to users who are unsure how to phrase a request.
var exampleIntents = []string{
	"Release payment to the freelancer once the project is marked as complete.",
	"Swap 1 ETH to USDC on Uniswap at market price.",
	"Refund the customer if the item has not shipped within 7 days.",
}

// examplesCmd prints sample intents
var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Show example intents",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(headerStyle.Render("Example intents:"))
		for i, example := range exampleIntents {
			fmt.Printf("  %d. %s\n", i+1, example)
		}
	},
}

// showCmd prints the last persisted session
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last verification session",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, err := store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		session := verify.LoadLastSession(snapshots)
		if session == nil {
			fmt.Println(dimStyle.Render("No saved session."))
			return nil
		}
		data, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var resetForce bool

// resetCmd clears the persisted session
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the saved verification session",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, err := store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		if verify.LoadLastSession(snapshots) != nil && !resetForce {
			fmt.Println(warnStyle.Render("A saved session exists. Re-run with --force to discard it."))
			return nil
		}
		if err := snapshots.Reset(); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Session cleared."))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Discard the session without confirmation")
}
