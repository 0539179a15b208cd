package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/server/processing"
	"github.com/teilomillet/koreksi/server/provider"
	"go.uber.org/zap"
)

// newClient is replaced in tests.
var newClient = provider.New

type checkOptions struct {
	style    string
	language string
	verbose  bool
}

func newCheckCmd() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [text|-]",
		Short: "Run one grammar check and print the JSON result",
		Long: `Runs a single pass of the grammar pipeline against the configured
provider. Nothing is stored and no API key is needed. With "-" or no
argument the text is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), configFile, text, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.style, "style", "s", string(processing.StyleFormal), "Writing style: formal, casual, informal, gen-z, academic")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language hint: en or id")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline details to stderr")
	return cmd
}

func readText(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func runCheck(ctx context.Context, path, text string, opts *checkOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	client, err := newClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("create provider client: %w", err)
	}
	manager, err := provider.NewManager(client, cfg.CircuitBreaker, logger, nil)
	if err != nil {
		return err
	}
	processor, err := processing.NewProcessor(manager, logger, nil)
	if err != nil {
		return err
	}

	resp, err := processor.Check(ctx, &processing.CheckRequest{
		Text:     text,
		Style:    processing.Style(opts.style),
		Language: opts.language,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
