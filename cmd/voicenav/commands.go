package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/phonetic"
	"github.com/MrWong99/voicenav/internal/wake"
	"github.com/MrWong99/voicenav/pkg/audio/portaudio"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// ── parse ─────────────────────────────────────────────────────────────────────

func newParseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text...>",
		Short: "Parse a transcript into a command and print it as JSON",
		Long: `Parse runs the command parser on the given text without audio or a
browser. Sites from the configuration file are used when it exists.`,
		Example: `  voicenav parse open google
  voicenav parse "hey maya, click the login button"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []command.Option{
				command.WithMatcher(phonetic.New()),
				command.WithWakePhrases(wake.DefaultVariants...),
			}
			if cfg, err := config.Load(*configPath); err == nil {
				opts = append(opts, command.WithSites(cfg.Sites))
				if len(cfg.Wake.Phrases) > 0 {
					opts = append(opts, command.WithWakePhrases(cfg.Wake.Phrases...))
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			c := command.NewParser(opts...).Parse(strings.Join(args, " "))
			out, err := json.MarshalIndent(c, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// ── devices ───────────────────────────────────────────────────────────────────

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := portaudio.Devices()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(w, dimStyle.Render("No input devices found."))
				return nil
			}
			fmt.Fprintln(w, titleStyle.Render("Input devices"))
			for _, d := range devices {
				marker := " "
				if d.IsDefault {
					marker = successStyle.Render("*")
				}
				fmt.Fprintf(w, "%s %2d  %s %s\n", marker, d.Index, d.Name,
					dimStyle.Render(fmt.Sprintf("(%d ch, %.0f Hz)", d.MaxInputChannels, d.DefaultSampleRate)))
			}
			fmt.Fprintln(w, dimStyle.Render("Set audio.device to part of a name to select it."))
			return nil
		},
	}
}

// ── check ─────────────────────────────────────────────────────────────────────

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the microphone, transcription engine and browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			w := cmd.OutOrStdout()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				fmt.Fprintln(w, errorStyle.Render("✗ "+err.Error()))
				return err
			}
			defer a.Shutdown(context.Background())

			if err := a.Check(ctx); err != nil {
				for _, line := range strings.Split(err.Error(), "\n") {
					fmt.Fprintln(w, errorStyle.Render("✗ "+line))
				}
				return fmt.Errorf("%w: %d check(s) failed", health.ErrResourceUnavailable, strings.Count(err.Error(), "\n")+1)
			}
			fmt.Fprintln(w, successStyle.Render("✓ microphone, transcription engine and browser are ready"))
			return nil
		},
	}
}

// ── train-wake ────────────────────────────────────────────────────────────────

func newTrainWakeCmd(configPath *string) *cobra.Command {
	var samples int
	cmd := &cobra.Command{
		Use:   "train-wake [phrase]",
		Short: "Record the wake phrase and learn how it is transcribed",
		Long: `Train-wake records several samples of you saying the wake phrase,
transcribes them and stores every new spelling in wake.learned_file.
The learned variants are used from the next start.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			phrase := "hey maya"
			if len(args) == 1 {
				phrase = args[0]
			} else if len(cfg.Wake.Phrases) > 0 {
				phrase = cfg.Wake.Phrases[0]
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render("Wake phrase training: "+phrase))
			added, err := a.TrainWake(ctx, phrase, samples, func(n int) {
				fmt.Fprintf(w, "Sample %d/%d: say %q now\n", n, samples, phrase)
			})
			if err != nil {
				return err
			}
			if len(added) == 0 {
				fmt.Fprintln(w, dimStyle.Render("No new variants; the phrase is already recognised."))
				return nil
			}
			for _, v := range added {
				fmt.Fprintln(w, successStyle.Render("+ "+v))
			}
			fmt.Fprintf(w, "Stored %d new variant(s) in %s\n", len(added), cfg.Wake.LearnedFile)
			return nil
		},
	}
	cmd.Flags().IntVarP(&samples, "samples", "n", 5, "number of recordings")
	return cmd
}
