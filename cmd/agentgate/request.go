package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
)

func init() {
	rootCmd.AddCommand(newRequestCmd())
}

// newRequestCmd runs a single secure_http_request through the broker,
// mirroring what an agent tool call would do.
func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request <url>",
		Short: "Execute an outbound HTTP request with credential interpolation",
		Example: `  agentgate request "https://graph.facebook.com/v19.0/me/media" \
    --agent social-bot --credential instagram_token \
    --header "Authorization=Bearer {instagram_token}"`,
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			agentID, _ := cmd.Flags().GetString("agent")
			alias, _ := cmd.Flags().GetString("credential")
			method, _ := cmd.Flags().GetString("method")
			headers, _ := cmd.Flags().GetStringToString("header")
			query, _ := cmd.Flags().GetStringToString("query")
			bodyText, _ := cmd.Flags().GetString("body")
			bodyJSONRaw, _ := cmd.Flags().GetString("body-json")
			timeoutMs, _ := cmd.Flags().GetInt("timeout-ms")

			req := dto.SecureRequest{
				AgentID:         agentID,
				CredentialAlias: alias,
				Method:          method,
				URL:             args[0],
				Headers:         headers,
				Query:           query,
				BodyText:        bodyText,
				TimeoutMs:       timeoutMs,
			}
			if bodyJSONRaw != "" {
				if err := json.Unmarshal([]byte(bodyJSONRaw), &req.BodyJSON); err != nil {
					return fmt.Errorf("invalid --body-json: %w", err)
				}
			}

			resp, err := ctx.Container.RequestExecutor().Execute(ctx.Context, req)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		}),
	}
	cmd.Flags().String("agent", "", "Acting agent ID")
	cmd.Flags().String("credential", "", "Credential alias to interpolate")
	cmd.Flags().String("method", "GET", "HTTP method")
	cmd.Flags().StringToString("header", nil, "Request header, repeatable: name=value")
	cmd.Flags().StringToString("query", nil, "Query parameter, repeatable: name=value")
	cmd.Flags().String("body", "", "Raw text request body")
	cmd.Flags().String("body-json", "", "JSON request body (mutually exclusive with --body)")
	cmd.Flags().Int("timeout-ms", 0, "Per-request timeout in milliseconds")
	return cmd
}
