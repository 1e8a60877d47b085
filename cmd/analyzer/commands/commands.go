package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lexiqai/inquiry-analyzer/internal/app"
	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/orchestrator"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use:           "analyzer",
		Short:         "Transcribe and analyze customer inquiry recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level, err := cmd.Flags().GetString("log-level")
			if err != nil {
				return err
			}
			if level != "" {
				cfg.LogLevel = level
			}
			observability.InitLogger(cfg.LogLevel, true)

			instance, err := app.New(cfg)
			if err != nil {
				return err
			}
			analyzer = instance
			return nil
		},
	}

	Transcribe = &cobra.Command{
		Use:   "transcribe <file.mp3>",
		Short: "Transcribe an MP3 recording",
		Args:  cobra.ExactArgs(1),
		RunE:  transcribe,
	}

	Analyze = &cobra.Command{
		Use:   "analyze <file.mp3>",
		Short: "Transcribe a recording, recognize its intent and generate a resolution",
		Args:  cobra.ExactArgs(1),
		RunE:  analyze,
	}

	Intent = &cobra.Command{
		Use:   "intent <text>",
		Short: "Recognize the intent of an inquiry text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  intent,
	}

	Resolve = &cobra.Command{
		Use:   "resolve <text>",
		Short: "Generate resolution guidance for an inquiry text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  resolve,
	}

	analyzer *app.App
)

func init() {
	Root.AddCommand(Transcribe)
	Root.AddCommand(Analyze)
	Root.AddCommand(Intent)
	Root.AddCommand(Resolve)

	Root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	Analyze.Flags().Bool("progress", false, "print pipeline events to stderr")
	Resolve.Flags().String("intent", "", "intent label; recognized from the text when empty")
}

// readAudio enforces the same size ceiling as the HTTP upload path
func readAudio(path string, limit int64) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil, fmt.Errorf("only MP3 files are supported: %s", path)
	}
	return audio.ReadFile(path, limit)
}

// progressObserver encodes pipeline events as JSON lines. Events arrive from
// the segment workers concurrently, so writes are serialized.
func progressObserver(w io.Writer) orchestrator.Observer {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(e orchestrator.Event) {
		mu.Lock()
		defer mu.Unlock()
		enc.Encode(e)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func transcribe(cmd *cobra.Command, args []string) error {
	data, err := readAudio(args[0], analyzer.Config.MaxUploadBytes)
	if err != nil {
		return err
	}

	text, err := analyzer.Pipeline.Transcribe(cmd.Context(), data)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{
		"filename":      filepath.Base(args[0]),
		"transcription": text,
	})
}

func analyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	progress, err := cmd.Flags().GetBool("progress")
	if err != nil {
		return err
	}
	if progress {
		ctx = orchestrator.WithObserver(ctx, progressObserver(cmd.ErrOrStderr()))
	}

	data, err := readAudio(args[0], analyzer.Config.MaxUploadBytes)
	if err != nil {
		return err
	}

	result, err := analyzer.Pipeline.Analyze(ctx, data)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func intent(cmd *cobra.Command, args []string) error {
	label, err := analyzer.Pipeline.RecognizeIntent(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"intent": label})
}

func resolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	content := strings.Join(args, " ")

	label, err := cmd.Flags().GetString("intent")
	if err != nil {
		return err
	}
	if label == "" {
		if label, err = analyzer.Pipeline.RecognizeIntent(ctx, content); err != nil {
			return err
		}
	}

	resolution, err := analyzer.Pipeline.GenerateResolution(ctx, content, label)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{
		"intent":     label,
		"resolution": resolution,
	})
}
