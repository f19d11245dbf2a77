package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekazakov/lingoscene/internal/config"
	"github.com/ekazakov/lingoscene/internal/practice"
	"github.com/ekazakov/lingoscene/internal/scene"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Interactive practice loop against a running server",
	Long: `Interactive practice loop against a running server.

A scene description is shown; type your own English description of it and
submit. Feedback arrives immediately, the generated image URL follows once
the background job completes.

Commands inside the loop:
  :next    advance to the next scene
  :quit    leave the loop`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPractice(cmd)
	},
}

func runPractice(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client := practice.NewClient(cfg.Client.ServerURL)
	installID := practice.InstallID(cfg.Storage.DataDir)
	scheduler := scene.NewScheduler(scene.Catalog, scene.NewFileSeenStore(cfg.Storage.DataDir))
	controller := practice.NewController(client, installID, 0, 0)

	settled := make(chan practice.Snapshot, 8)
	controller.OnChange(func(s practice.Snapshot) {
		if s.State == practice.StateCompleted || s.State == practice.StateError {
			settled <- s
		}
	})

	current := scheduler.InitialScene()
	scheduler.MarkSeen(current.ID)
	showScene(current)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == ":quit":
			controller.Reset()
			return nil
		case line == ":next":
			controller.Reset()
			current = scheduler.NextScene(current.ID)
			scheduler.MarkSeen(current.ID)
			showScene(current)
			continue
		}

		if practice.HintNeeded(line) {
			printWarning("Description must have at least 3 words")
			continue
		}
		if !controller.CanSubmit(line) {
			printWarning("Use at least %d words, and avoid repeating your last description", practice.EnableWords)
			continue
		}

		if err := controller.Submit(cmd.Context(), current.ID, line); err != nil {
			printError("%v", err)
			continue
		}

		printStep("Evaluating...")
		snap := <-settled
		showOutcome(snap)
	}
}

func showScene(sc scene.Scene) {
	fmt.Fprintln(os.Stderr)
	printStatus("Scene", "%s", sc.ID)
	fmt.Fprintf(os.Stderr, "  %s\n", colorize(colorCyan, sc.Description))
	fmt.Fprintln(os.Stderr, "  Describe this scene in English (10+ words).")
}

func showOutcome(snap practice.Snapshot) {
	if snap.State == practice.StateError {
		printError("Submission failed (%s): %s", snap.ErrorKind, snap.ErrorMessage)
		return
	}

	if snap.Feedback != nil {
		printFeedback(*snap.Feedback)
	}

	switch {
	case snap.ImageURL != nil:
		printSuccess("Image ready: %s", *snap.ImageURL)
	case snap.TimedOut:
		printWarning("Image is taking too long; continuing without it")
	default:
		printWarning("No image for this attempt")
	}
}
