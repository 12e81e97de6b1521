package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxsense/internal/pipeline"
)

type analyzeOptions struct {
	subject  string
	body     string
	bodyFile string
	asJSON   bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify an email given on the command line",
		Long: `Send a subject and body to the configured AI provider and print the
classification and sentiment.

The body is read from --body, from --body-file, or from standard input when
--body-file is "-".`,
		Example: `  inboxsense analyze --subject "Invoice #42" --body "Please find the invoice attached."
  cat mail.txt | inboxsense analyze --subject "Re: offer" --body-file - --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log)

			a := newApp(cmd.Context(), cfg, nil, logger)
			defer a.Close()
			return runAnalyze(cmd.Context(), a.pipeline, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "", "Email subject")
	cmd.Flags().StringVar(&opts.body, "body", "", "Email body")
	cmd.Flags().StringVar(&opts.bodyFile, "body-file", "", `Read the body from a file, or "-" for stdin`)
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// textAnalyzer is the part of the pipeline the analyze command needs.
type textAnalyzer interface {
	AnalyzeText(ctx context.Context, subject, body string) pipeline.Outcome
}

func runAnalyze(ctx context.Context, p textAnalyzer, in io.Reader, out io.Writer, opts analyzeOptions) error {
	body, err := readBody(in, opts)
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.subject) == "" && strings.TrimSpace(body) == "" {
		return errors.New("subject and body are both empty")
	}

	outcome := p.AnalyzeText(ctx, opts.subject, body)
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if outcome.OK {
			if err := enc.Encode(outcome.Analysis); err != nil {
				return err
			}
		} else if err := enc.Encode(map[string]string{"error": outcome.Message}); err != nil {
			return err
		}
	} else {
		printOutcome(out, outcome)
	}

	if !outcome.OK {
		return outcome.Err
	}
	return nil
}

func readBody(in io.Reader, opts analyzeOptions) (string, error) {
	switch {
	case opts.bodyFile == "":
		return opts.body, nil
	case opts.body != "":
		return "", errors.New("--body and --body-file are mutually exclusive")
	case opts.bodyFile == "-":
		b, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return string(b), nil
	default:
		b, err := os.ReadFile(opts.bodyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read body file: %w", err)
		}
		return string(b), nil
	}
}
