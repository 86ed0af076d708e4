package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// pluginsCmd groups the plugin lifecycle surface.
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Install, enable, and inspect capability-declaring plugins",
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
	pluginsCmd.AddCommand(newPluginsInstallCmd())
	pluginsCmd.AddCommand(newPluginsEnableCmd())
	pluginsCmd.AddCommand(newPluginsDisableCmd())
	pluginsCmd.AddCommand(newPluginsListCmd())
	pluginsCmd.AddCommand(newPluginsGetCmd())
}

func newPluginsInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install <plugin-id> <manifest.yaml>",
		Short:   "Install a plugin from its capability manifest",
		Example: `  agentgate plugins install acme.analytics ./manifest.yaml --source external`,
		Args:    cobra.ExactArgs(2),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			kind := entities.SourceKind(source)

			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}

			plugin, err := ctx.Container.PluginService().Install(ctx.Context, args[0], kind, raw)
			if err != nil {
				return fmt.Errorf("failed to install plugin: %w", err)
			}

			fmt.Printf("Installed plugin %s version %s with %d declared capabilities.\n",
				plugin.ID, plugin.CurrentVersion, len(plugin.Declared))
			if !plugin.Enabled {
				fmt.Printf("Run 'agentgate plugins enable %s' to review disclosures and enable it.\n", plugin.ID)
			}
			return nil
		}),
	}
	cmd.Flags().String("source", "external", "Plugin source kind: builtin or external")
	return cmd
}

func newPluginsEnableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable <plugin-id>",
		Short: "Enable a plugin after acknowledging its capability disclosures",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			consent, _ := cmd.Flags().GetBool("yes")

			if !consent {
				accepted, err := promptConsent(ctx, args[0])
				if err != nil {
					return err
				}
				consent = accepted
			}

			plugin, err := ctx.Container.PluginService().Enable(ctx.Context, args[0], consent)
			if err != nil {
				return fmt.Errorf("failed to enable plugin: %w", err)
			}

			fmt.Printf("Enabled plugin %s.\n", plugin.ID)
			return nil
		}),
	}
	cmd.Flags().Bool("yes", false, "Accept the capability disclosures without prompting")
	return cmd
}

// promptConsent renders the plugin's declared capabilities and the
// isolation notice, then asks for explicit confirmation.
func promptConsent(ctx *CommandContext, pluginID string) (bool, error) {
	detail, err := ctx.Container.PluginService().Get(ctx.Context, pluginID, 0)
	if err != nil {
		return false, fmt.Errorf("failed to load plugin: %w", err)
	}

	fmt.Printf("Plugin %s (%s) declares %d capabilities:\n",
		detail.ID, detail.Version, detail.DeclaredCapabilityCount)
	for _, cap := range detail.DeclaredCapabilities {
		marker := " "
		if cap.Acknowledged {
			marker = "*"
		}
		fmt.Printf("  [%s] %s\n", marker, cap.Description)
	}
	notice := ctx.Container.Config().TrustModeValue().IsolationNotice()
	fmt.Printf("Note: %s.\n\n", notice)

	var accepted bool
	err = huh.NewConfirm().
		Title(fmt.Sprintf("Acknowledge these capabilities and enable %s?", pluginID)).
		Value(&accepted).
		Run()
	if err != nil {
		return false, err
	}
	return accepted, nil
}

func newPluginsDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <plugin-id>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			if err := ctx.Container.PluginService().Disable(ctx.Context, args[0]); err != nil {
				return fmt.Errorf("failed to disable plugin: %w", err)
			}
			fmt.Printf("Disabled plugin %s.\n", args[0])
			return nil
		}),
	}
}

func newPluginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, _ []string) error {
			plugins, err := ctx.Container.PluginService().List(ctx.Context)
			if err != nil {
				return fmt.Errorf("failed to list plugins: %w", err)
			}

			if len(plugins) == 0 {
				fmt.Println("No plugins installed.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tSOURCE\tCAPABILITIES\tACKNOWLEDGED\tENABLED")
			for _, p := range plugins {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
					p.ID, p.Name, p.Version, p.SourceKind,
					p.DeclaredCapabilityCount, p.AcknowledgedDisclosureCount, p.Enabled)
			}
			return w.Flush()
		}),
	}
}

func newPluginsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <plugin-id>",
		Short: "Show a plugin's disclosures and recent lifecycle events",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("events")

			detail, err := ctx.Container.PluginService().Get(ctx.Context, args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to get plugin: %w", err)
			}

			renderPluginDetail(detail)
			return nil
		}),
	}
	cmd.Flags().Int("events", 10, "How many recent lifecycle events to show")
	return cmd
}

func renderPluginDetail(detail *dto.PluginDetail) {
	fmt.Printf("Plugin:   %s (%s)\n", detail.ID, detail.Name)
	fmt.Printf("Version:  %s\n", detail.Version)
	fmt.Printf("Source:   %s\n", detail.SourceKind)
	fmt.Printf("Enabled:  %t\n", detail.Enabled)
	fmt.Printf("Acknowledged: %d of %d declared capabilities\n",
		detail.AcknowledgedDisclosureCount, detail.DeclaredCapabilityCount)

	if len(detail.DeclaredCapabilities) > 0 {
		fmt.Println("\nDeclared capabilities:")
		for _, cap := range detail.DeclaredCapabilities {
			state := "pending"
			if cap.Acknowledged {
				state = "acknowledged"
			}
			fmt.Printf("  %-14s %s\n", state, cap.Description)
		}
	}

	if len(detail.RecentEvents) > 0 {
		fmt.Println("\nRecent events:")
		for _, ev := range detail.RecentEvents {
			fmt.Printf("  %s  %-8s %-8s %s\n",
				ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Action, ev.Status, ev.Detail)
		}
	}
}
