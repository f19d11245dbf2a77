package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekazakov/lingoscene/internal/config"
	"github.com/ekazakov/lingoscene/internal/practice"
	"github.com/ekazakov/lingoscene/internal/scene"
)

// --- scene ---

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Browse and advance practice scenes",
}

var sceneNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next unseen scene and mark it seen",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		scheduler := scene.NewScheduler(scene.Catalog, scene.NewFileSeenStore(cfg.Storage.DataDir))
		current, _ := cmd.Flags().GetString("current")

		var sc scene.Scene
		if current == "" {
			sc = scheduler.InitialScene()
		} else {
			sc = scheduler.NextScene(current)
		}
		scheduler.MarkSeen(sc.ID)

		printStatus("Scene", "%s", sc.ID)
		printStatus("Image", "%s", sc.FileName)
		fmt.Println(sc.Description)
		return nil
	},
}

var sceneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the full scene catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, sc := range scene.Catalog {
			fmt.Printf("  %s  %s\n", colorize(colorBold, sc.ID), sc.Description)
		}
		return nil
	},
}

var sceneResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the seen-scene history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		scheduler := scene.NewScheduler(scene.Catalog, scene.NewFileSeenStore(cfg.Storage.DataDir))
		scheduler.Reset()
		printSuccess("Seen-scene history cleared")
		return nil
	},
}

func init() {
	sceneNextCmd.Flags().String("current", "", "scene id currently shown, to avoid repeating it")
	sceneCmd.AddCommand(sceneNextCmd)
	sceneCmd.AddCommand(sceneListCmd)
	sceneCmd.AddCommand(sceneResetCmd)
}

// --- attempt ---

var attemptCmd = &cobra.Command{
	Use:   "attempt <id>",
	Short: "Show an attempt's image status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := practice.NewClient(cfg.Client.ServerURL)
		status, err := client.AttemptStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printStatus("Status", "%s", status.Status)
		if status.ImageURL != nil {
			printStatus("Image", "%s", *status.ImageURL)
		} else {
			printStatus("Image", "not available")
		}
		return nil
	},
}

// --- transcribe ---

var audioMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mp4":  "audio/mp4",
	".m4a":  "audio/m4a",
	".webm": "audio/webm",
	".wav":  "audio/wav",
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe --file <path>",
	Short: "Transcribe an audio file to text",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		mimeType, ok := audioMimeTypes[strings.ToLower(filepath.Ext(file))]
		if !ok {
			return fmt.Errorf("unsupported audio format %q (supported: mp3, mp4, m4a, webm, wav)", filepath.Ext(file))
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading audio file: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := practice.NewClient(cfg.Client.ServerURL)
		result, err := client.Transcribe(cmd.Context(), base64.StdEncoding.EncodeToString(data), mimeType)
		if err != nil {
			return err
		}

		fmt.Println(result.Text)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().String("file", "", "audio file to transcribe")
}

// --- say ---

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Synthesize text to speech and save the audio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = "speech.mp3"
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := practice.NewClient(cfg.Client.ServerURL)
		audioURL, err := client.Synthesize(cmd.Context(), text, cfg.Client.Voice, 1.0)
		if err != nil {
			return err
		}

		const prefix = "data:audio/mp3;base64,"
		if !strings.HasPrefix(audioURL, prefix) {
			return fmt.Errorf("unexpected audio format in response")
		}
		audio, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(audioURL, prefix))
		if err != nil {
			return fmt.Errorf("decoding audio: %w", err)
		}

		if err := os.WriteFile(output, audio, 0o644); err != nil {
			return fmt.Errorf("writing audio file: %w", err)
		}
		printSuccess("Wrote %d bytes to %s", len(audio), output)
		return nil
	},
}

func init() {
	sayCmd.Flags().String("output", "", "output file path (default: speech.mp3)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
