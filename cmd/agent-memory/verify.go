package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/runtime"
	"github.com/agent-memory/agent-memory/internal/service/verification"
)

// verifyResponseCommand runs spec.md §4.9's deterministic pre-action
// check from the command line: the proposed action text is read from
// stdin (or --text), matched against every critical guideline
// reachable from --scope-type/--scope-id, and the result is printed as
// JSON. Exit code 1 when the action is blocked, so a calling agent's
// shell pipeline can gate on $?.
func (cli *CLI) verifyResponseCommand() *cobra.Command {
	var text string
	var kind string
	var scopeType string
	var scopeID string

	cmd := &cobra.Command{
		Use:   "verify-response",
		Short: "Check a proposed action against critical guidelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return usageError(fmt.Errorf("read stdin: %w", err))
				}
				text = string(raw)
			}
			if text == "" {
				return usageError(fmt.Errorf("no action text supplied (use --text or pipe to stdin)"))
			}
			if scopeType == "" {
				return usageError(fmt.Errorf("--scope-type is required"))
			}

			cfg, err := config.LoadConfig(cli.configPath)
			if err != nil {
				return usageError(fmt.Errorf("load config: %w", err))
			}

			ctx := context.Background()
			rt, err := runtime.Global().Bootstrap(ctx, cfg)
			if err != nil {
				return failureError(fmt.Errorf("bootstrap runtime: %w", err))
			}
			defer func() { _ = rt.Shutdown(ctx) }()

			ac, err := runtime.NewAppContext(ctx, rt)
			if err != nil {
				return failureError(fmt.Errorf("build app context: %w", err))
			}

			scope := domain.ScopeRef{Kind: domain.ScopeKind(scopeType), ID: scopeID}
			result, err := ac.Verification.Verify(ctx, verification.ProposedAction{Kind: kind, Text: text}, scope)
			if err != nil {
				return failureError(fmt.Errorf("verify action: %w", err))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return failureError(fmt.Errorf("encode result: %w", err))
			}

			if result.Blocked {
				return failureError(fmt.Errorf("action blocked by %d critical guideline violation(s)", len(result.Violations)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "proposed action text (read from stdin if omitted)")
	cmd.Flags().StringVar(&kind, "kind", "", "free-form action kind, e.g. file_write, shell_command")
	cmd.Flags().StringVar(&scopeType, "scope-type", "", "scope kind: global, organization, project, or session")
	cmd.Flags().StringVar(&scopeID, "scope-id", "", "scope id (omit for the global scope)")

	return cmd
}
