package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxsense/internal/credential"
)

func newConsentCmd() *cobra.Command {
	var (
		code string
		run  bool
	)

	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Authorize a Gmail mailbox from the terminal",
		Long: `Print the Google consent URL, read the authorization code and exchange it
for tokens.

After approving access Google redirects the browser to the configured
redirect URI. Paste either the code parameter or the full redirect URL.
The authorization only lives for the duration of this command; use --run to
analyze the newest unread message right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log)

			a := newApp(cmd.Context(), cfg, nil, logger)
			defer a.Close()
			return runConsent(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout(), code, run)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code or redirect URL (prompted for when empty)")
	cmd.Flags().BoolVar(&run, "run", false, "Analyze the newest unread message after authorizing")
	return cmd
}

func runConsent(ctx context.Context, a *app, in io.Reader, out io.Writer, code string, run bool) error {
	consentURL, err := a.flow.ConsentURL(ctx, credential.DefaultKey)
	if err != nil {
		return err
	}

	if code == "" {
		fmt.Fprintln(out, titleStyle.Render("Open this URL in your browser and approve access:"))
		fmt.Fprintln(out)
		fmt.Fprintln(out, urlStyle.Render(consentURL))
		fmt.Fprintln(out)
		fmt.Fprint(out, "Authorization code or redirect URL: ")

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read authorization code: %w", err)
		}
		code = line
	}

	code, err = extractCode(code)
	if err != nil {
		return err
	}

	cred, err := a.flow.ExchangeCode(ctx, credential.DefaultKey, code)
	if err != nil {
		fmt.Fprintln(out, errStyle.Render("✗ Authorization failed"))
		return err
	}
	fmt.Fprintln(out, successStyle.Render("✓ Mailbox authorized"))
	if !cred.HasRefreshToken() {
		fmt.Fprintln(out, mutedStyle.Render("  Google returned no refresh token; access ends when the token expires."))
	}

	if !run {
		return nil
	}
	outcome := a.pipeline.Run(ctx, credential.DefaultKey)
	printOutcome(out, outcome)
	if !outcome.OK {
		return outcome.Err
	}
	return nil
}

// extractCode accepts a bare authorization code or the redirect URL that
// carries it.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no authorization code given")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if denied := q.Get("error"); denied != "" {
		return "", fmt.Errorf("authorization denied: %s", denied)
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}
