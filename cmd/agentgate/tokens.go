package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
)

// tokensCmd groups grant management and scoped token minting.
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage capability grants and mint scoped provider tokens",
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(newTokensGrantCmd())
	tokensCmd.AddCommand(newTokensMintCmd())
}

func newTokensGrantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grant <agent-id> <resource-id>",
		Short:   "Assign abstract repository capabilities to an agent",
		Example: `  agentgate tokens grant reviewer-bot acme/widgets --caps read_repo,open_pr,comment`,
		Args:    cobra.ExactArgs(2),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			caps, _ := cmd.Flags().GetStringSlice("caps")
			if len(caps) == 0 {
				return fmt.Errorf("at least one capability is required (--caps)")
			}

			grant := capabilities.Grant{AgentID: args[0], ResourceID: args[1]}
			for _, c := range caps {
				cap := capabilities.RepoCapability(strings.TrimSpace(c))
				if !capabilities.KnownCapability(cap) {
					return fmt.Errorf("unknown capability %q (known: %s)",
						c, strings.Join(capabilityNames(), ", "))
				}
				grant.Add(cap)
			}

			if err := ctx.Container.Grants().Save(ctx.Context, grant); err != nil {
				return fmt.Errorf("failed to save grant: %w", err)
			}

			fmt.Printf("Granted %s on %s to agent %s.\n",
				strings.Join(caps, ", "), args[1], args[0])
			return nil
		}),
	}
	cmd.Flags().StringSlice("caps", nil, "Capabilities to grant, e.g. read_repo,open_pr")
	return cmd
}

func capabilityNames() []string {
	names := make([]string, 0, len(capabilities.AllCapabilities()))
	for _, c := range capabilities.AllCapabilities() {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}

func newTokensMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mint <agent-id>",
		Short:   "Mint a short-lived provider token scoped to the agent's grants",
		Example: `  agentgate tokens mint reviewer-bot --installation 12345 --resources acme/widgets`,
		Args:    cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			installation, _ := cmd.Flags().GetString("installation")
			resources, _ := cmd.Flags().GetStringSlice("resources")

			token, err := ctx.Container.TokenBroker().MintScopedToken(ctx.Context, args[0], installation, resources)
			if err != nil {
				return err
			}

			fmt.Printf("Token:    %s\n", token.Token)
			fmt.Printf("Expires:  %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("Scope:    %s\n", strings.Join(token.Repositories, ", "))
			fmt.Println("Permissions:")
			scopes := make([]string, 0, len(token.Permissions))
			for scope := range token.Permissions {
				scopes = append(scopes, string(scope))
			}
			sort.Strings(scopes)
			for _, scope := range scopes {
				fmt.Printf("  %s: %s\n", scope, token.Permissions[capabilities.Scope(scope)])
			}
			return nil
		}),
	}
	cmd.Flags().String("installation", "", "Provider installation ID")
	cmd.Flags().StringSlice("resources", nil, "Target resources, e.g. acme/widgets")
	return cmd
}
