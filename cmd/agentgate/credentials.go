package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
)

// credentialsCmd groups the operator credential management surface.
var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage provider credentials and agent assignments",
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(newCredentialsCreateCmd())
	credentialsCmd.AddCommand(newCredentialsUpdateCmd())
	credentialsCmd.AddCommand(newCredentialsDeleteCmd())
	credentialsCmd.AddCommand(newCredentialsListCmd())
	credentialsCmd.AddCommand(newCredentialsAssignCmd())
	credentialsCmd.AddCommand(newCredentialsUnassignCmd())
}

func credentialInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("alias", "", "Agent-facing alias (lowercase letters, digits, underscores)")
	cmd.Flags().String("provider", "", "Provider label, e.g. instagram_graph_api")
	cmd.Flags().String("secret", "", "Secret value (omit on update to keep the current one)")
	cmd.Flags().StringSlice("hosts", nil, "Allowed host patterns, e.g. graph.facebook.com,*.example.com")
	cmd.Flags().Bool("allow-header", false, "Allow the secret in request headers")
	cmd.Flags().Bool("allow-query", false, "Allow the secret in query parameters")
	cmd.Flags().Bool("allow-body", false, "Allow the secret in the request body")
	cmd.Flags().Bool("enabled", true, "Whether the credential is active")
}

func credentialInputFromFlags(cmd *cobra.Command) dto.CredentialInput {
	alias, _ := cmd.Flags().GetString("alias")
	provider, _ := cmd.Flags().GetString("provider")
	secret, _ := cmd.Flags().GetString("secret")
	hosts, _ := cmd.Flags().GetStringSlice("hosts")
	header, _ := cmd.Flags().GetBool("allow-header")
	query, _ := cmd.Flags().GetBool("allow-query")
	body, _ := cmd.Flags().GetBool("allow-body")
	enabled, _ := cmd.Flags().GetBool("enabled")

	return dto.CredentialInput{
		Alias:           alias,
		Provider:        provider,
		Secret:          secret,
		AllowedHosts:    hosts,
		AllowedInHeader: header,
		AllowedInQuery:  query,
		AllowedInBody:   body,
		Enabled:         enabled,
	}
}

func newCredentialsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Register a new provider credential",
		Example: `  agentgate credentials create --alias instagram_token --provider instagram_graph_api --secret IGQVJ... --hosts graph.facebook.com --allow-header`,
		Args:    cobra.NoArgs,
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, _ []string) error {
			input := credentialInputFromFlags(cmd)

			cred, err := ctx.Container.CredentialService().Create(ctx.Context, input)
			if err != nil {
				return fmt.Errorf("failed to create credential: %w", err)
			}

			fmt.Printf("Created credential %s (alias %s). Agents reference it as %s.\n",
				cred.ID, cred.Alias.String(), cred.Alias.Placeholder())
			return nil
		}),
	}
	credentialInputFlags(cmd)
	return cmd
}

func newCredentialsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <credential-id>",
		Short: "Update a credential's secret or policy",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			input := credentialInputFromFlags(cmd)
			if !cmd.Flags().Changed("secret") {
				// An untouched secret flag keeps the stored value.
				input.Secret = dto.RedactedSecretMarker
			}

			cred, err := ctx.Container.CredentialService().Update(ctx.Context, args[0], input)
			if err != nil {
				return fmt.Errorf("failed to update credential: %w", err)
			}

			fmt.Printf("Updated credential %s (alias %s).\n", cred.ID, cred.Alias.String())
			return nil
		}),
	}
	credentialInputFlags(cmd)
	return cmd
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <credential-id>",
		Short: "Delete a credential and all its agent assignments",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			if err := ctx.Container.CredentialService().Delete(ctx.Context, args[0]); err != nil {
				return fmt.Errorf("failed to delete credential: %w", err)
			}
			fmt.Printf("Deleted credential %s.\n", args[0])
			return nil
		}),
	}
}

func newCredentialsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered credentials",
		Args:  cobra.NoArgs,
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, _ []string) error {
			creds, err := ctx.Container.CredentialService().List(ctx.Context)
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}

			if len(creds) == 0 {
				fmt.Println("No credentials registered.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tALIAS\tPROVIDER\tHOSTS\tLOCATIONS\tENABLED")
			for _, c := range creds {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
					c.ID, c.Alias, c.Provider,
					strings.Join(c.AllowedHosts, ","),
					formatLocations(c),
					c.Enabled,
				)
			}
			return w.Flush()
		}),
	}
}

func formatLocations(c dto.CredentialSummary) string {
	var locs []string
	if c.AllowedInHeader {
		locs = append(locs, "header")
	}
	if c.AllowedInQuery {
		locs = append(locs, "query")
	}
	if c.AllowedInBody {
		locs = append(locs, "body")
	}
	if len(locs) == 0 {
		return "none"
	}
	return strings.Join(locs, ",")
}

func newCredentialsAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <credential-id> <agent-id>",
		Short: "Assign a credential to an agent",
		Args:  cobra.ExactArgs(2),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			if err := ctx.Container.CredentialService().Assign(ctx.Context, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to assign credential: %w", err)
			}
			fmt.Printf("Assigned credential %s to agent %s.\n", args[0], args[1])
			return nil
		}),
	}
}

func newCredentialsUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <credential-id> <agent-id>",
		Short: "Remove a credential assignment from an agent",
		Args:  cobra.ExactArgs(2),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			if err := ctx.Container.CredentialService().Unassign(ctx.Context, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to unassign credential: %w", err)
			}
			fmt.Printf("Unassigned credential %s from agent %s.\n", args[0], args[1])
			return nil
		}),
	}
}
