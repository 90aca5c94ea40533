package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxrecap/internal/config"
	"github.com/MrWong99/voxrecap/internal/observe"
	"github.com/MrWong99/voxrecap/internal/summary"
)

func newSummarizeCmd(g *globals) *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "summarize [file]",
		Short: "Summarize a transcript read from a file or stdin",
		Long:  "Summarize a plain text transcript. Without a file argument, or with \"-\", the text is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := summary.ParseStyle(style)
			if err != nil {
				return err
			}
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}

			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			gen, err := buildSummarizer(reg, cfg.Summary, observe.DefaultMetrics())
			if err != nil {
				return err
			}

			sum := gen.Generate(cmd.Context(), text, st)
			fmt.Fprintln(cmd.OutOrStdout(), sum.Body)
			return nil
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", string(summary.StyleSimple), "summary style (simples, detalhado, topicos)")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
