package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// ideHookPath maps a supported IDE name to the project-relative file it
// expects a command-invocation hook to live in.
var ideHookPath = map[string]string{
	"claude":   ".claude/settings.json",
	"cursor":   ".cursor/agent-memory.json",
	"windsurf": ".windsurf/agent-memory.json",
	"copilot":  ".github/copilot-agent-memory.json",
}

// setupHookCommand writes a small per-IDE descriptor pointing the IDE's
// agent at this binary's `serve` subcommand, so a coding agent session
// in that IDE gets every create/update routed through the tool
// protocol (and, by extension, through verification) instead of only
// reachable via a manual `agent-memory` invocation.
func (cli *CLI) setupHookCommand() *cobra.Command {
	var ide string

	cmd := &cobra.Command{
		Use:   "setup-hook",
		Short: "Install an IDE hook that points the agent at this service",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := ideHookPath[strings.ToLower(ide)]
			if !ok {
				supported := make([]string, 0, len(ideHookPath))
				for k := range ideHookPath {
					supported = append(supported, k)
				}
				return usageError(fmt.Errorf("unsupported --ide %q (supported: %s)", ide, strings.Join(supported, ", ")))
			}

			exe, err := os.Executable()
			if err != nil {
				return failureError(fmt.Errorf("resolve own executable path: %w", err))
			}

			descriptor := fmt.Sprintf(`{
  "command": %q,
  "args": ["serve"],
  "protocol": "stdio-jsonrpc"
}
`, exe)

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return failureError(fmt.Errorf("create hook directory: %w", err))
			}
			if err := os.WriteFile(path, []byte(descriptor), 0o644); err != nil {
				return failureError(fmt.Errorf("write hook file: %w", err))
			}

			fmt.Printf("wrote %s hook to %s\n", ide, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&ide, "ide", "", "target IDE (claude, cursor, windsurf, copilot)")
	_ = cmd.MarkFlagRequired("ide")

	return cmd
}

// syncRulesCommand materializes every active, critical guideline
// reachable from a scope as a plain-text rules file, so an IDE's native
// context window picks the guideline up even outside a tool-protocol
// call. This complements, rather than replaces, the guideline tool and
// the verification service: those two are authoritative and live, this
// is a static mirror refreshed on demand.
func (cli *CLI) syncRulesCommand() *cobra.Command {
	var scopeType string
	var scopeID string
	var out string

	cmd := &cobra.Command{
		Use:   "sync-rules",
		Short: "Write active critical guidelines to a rules file for IDE context",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			scope := domain.Global
			if scopeType != "" {
				scope = domain.ScopeRef{Kind: domain.ScopeKind(scopeType), ID: scopeID}
			}
			chain, err := ac.Scopes.Resolve(ctx, scope)
			if err != nil {
				return failureError(fmt.Errorf("resolve scope: %w", err))
			}

			entries, err := ac.Guidelines.ListWithPayload(ctx, repository.ListFilter{Scopes: chain, ActiveOnly: true})
			if err != nil {
				return failureError(fmt.Errorf("list guidelines: %w", err))
			}

			var b strings.Builder
			b.WriteString("# Agent guidelines\n\n")
			b.WriteString("Generated by `agent-memory sync-rules`. Do not edit by hand; re-run the command instead.\n\n")
			written := 0
			for _, e := range entries {
				if critical, _ := e.Payload["critical"].(bool); !critical {
					continue
				}
				content, _ := e.Payload["content"].(string)
				if content == "" {
					continue
				}
				b.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", e.Name, content))
				written++
			}

			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil && filepath.Dir(out) != "." {
				return failureError(fmt.Errorf("create output directory: %w", err))
			}
			if err := os.WriteFile(out, []byte(b.String()), 0o644); err != nil {
				return failureError(fmt.Errorf("write rules file: %w", err))
			}

			fmt.Printf("wrote %d guideline(s) to %s\n", written, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeType, "scope-type", "", "scope kind: organization, project, or session (default: global)")
	cmd.Flags().StringVar(&scopeID, "scope-id", "", "scope id")
	cmd.Flags().StringVar(&out, "out", "AGENTS.md", "rules file to write")

	return cmd
}
