// Command taskolib is a small example CLI around the library: run a
// persisted Sequence to completion, validate one without running it, or
// list its steps.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/taskolib/taskolib/executor"
	"github.com/taskolib/taskolib/internal/config"
	"github.com/taskolib/taskolib/message"
	"github.com/taskolib/taskolib/persist"
	"github.com/taskolib/taskolib/seqctx"
	"github.com/taskolib/taskolib/step"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskolib",
		Short: "Run and inspect taskolib automation sequences",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).
				With().Timestamp().Logger()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "taskolib.yaml", "path to a YAML defaults file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(), newValidateCmd(), newListStepsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <sequence-dir>",
		Short: "Run a persisted sequence to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			sq, err := persist.ReadSequence(args[0])
			if err != nil {
				return fmt.Errorf("read sequence: %w", err)
			}
			if cfg.DefaultSequenceTimeout != 0 && sq.MaxDuration() == 0 {
				sq.SetMaxDuration(time.Duration(cfg.DefaultSequenceTimeout))
			}
			if cfg.DefaultStepTimeout != 0 {
				for _, s := range sq.Steps() {
					if s.Timeout() == step.NoTimeout {
						s.SetTimeout(time.Duration(cfg.DefaultStepTimeout))
					}
				}
			}

			ctx := seqctx.New()
			ctx.MessageCallback = func(m message.Message) {
				logMessage(m)
			}

			exec := executor.New(executor.WithQueueCapacity(cfg.QueueCapacity))
			log.Info().Str("label", sq.Label()).Int("steps", sq.Len()).Msg("running sequence")
			if err := exec.RunAsynchronously(sq, ctx); err != nil {
				return fmt.Errorf("start sequence: %w", err)
			}
			for exec.Update(sq) {
				time.Sleep(10 * time.Millisecond)
			}

			if _, err := exec.GetContextVariables(); err != nil {
				log.Error().Err(err).Msg("sequence failed")
				return err
			}
			log.Info().Msg("sequence completed")
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sequence-dir>",
		Short: "Check a persisted sequence's structural well-formedness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sq, err := persist.ReadSequence(args[0])
			if err != nil {
				return fmt.Errorf("read sequence: %w", err)
			}
			if err := sq.Validate(); err != nil {
				fmt.Fprintf(os.Stdout, "invalid: %s\n", err)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stdout, "valid")
			return nil
		},
	}
}

func newListStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-steps <sequence-dir>",
		Short: "Print a persisted sequence's steps in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sq, err := persist.ReadSequence(args[0])
			if err != nil {
				return fmt.Errorf("read sequence: %w", err)
			}
			for i := 0; i < sq.Len(); i++ {
				s := sq.StepAt(i)
				label := s.Label()
				if label == "" {
					label = "(unlabeled)"
				}
				fmt.Fprintf(os.Stdout, "%3d  %-8s %s\n", i, s.Type(), label)
			}
			return nil
		},
	}
}

func logMessage(m message.Message) {
	event := log.Info()
	if idx, ok := m.StepIndex(); ok {
		event = event.Int("step", idx)
	}
	event.Str("kind", m.Kind().String()).Msg(m.Text())
}
