package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	domainservices "github.com/agentgate-dev/agentgate/internal/domain/services"
)

// auditCmd exposes the append-only audit log.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the credential-use audit log",
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(newAuditListCmd())
}

func newAuditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Example: `  agentgate audit list --agent reviewer-bot
  agentgate audit list --filter 'result == "denied" && host contains "facebook"'`,
		Args: cobra.NoArgs,
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, _ []string) error {
			agentID, _ := cmd.Flags().GetString("agent")
			eventType, _ := cmd.Flags().GetString("type")
			expression, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := domainservices.NewAuditFilter()
			if agentID != "" {
				filter = filter.WithAgent(agentID)
			}
			if eventType != "" {
				filter = filter.WithEventType(eventType)
			}
			if expression != "" {
				var err error
				filter, err = filter.WithExpression(expression)
				if err != nil {
					return err
				}
			}

			entries, err := ctx.Container.AuditTrail().Query(ctx.Context, filter, limit)
			if err != nil {
				return fmt.Errorf("failed to query audit log: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No matching audit entries.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tEVENT\tAGENT\tACTOR\tRESULT\tDETAILS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.EventType, e.AgentID, e.ActorType, e.Result,
					formatMetadata(e.Metadata),
				)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().String("agent", "", "Only entries for this agent")
	cmd.Flags().String("type", "", "Only entries of this event type")
	cmd.Flags().String("filter", "", "Expression filter over event_type, agent_id, result, host, method, reason")
	cmd.Flags().Int("limit", 50, "Maximum entries to return")
	return cmd
}

func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}
