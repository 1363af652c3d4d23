package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/metaop/pkg/preset"
)

// presetCommand manages saved presets.
func (c *CLI) presetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage saved parameter presets",
	}

	cmd.AddCommand(c.presetListCommand())
	cmd.AddCommand(c.presetShowCommand())
	cmd.AddCommand(c.presetDeleteCommand())

	return cmd
}

func (c *CLI) presetListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openPresets(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			presets, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(presets) == 0 {
				printInfo("No presets saved")
				return nil
			}
			for _, p := range presets {
				printKeyValue(p.Name, p.Variant)
				printDetail("%d values · updated %s", len(p.Values), p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func (c *CLI) presetShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a preset's values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openPresets(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			printPreset(p)
			return nil
		},
	}
}

func printPreset(p *preset.Preset) {
	printTitle("%s", p.Name)
	printKeyValue("variant", p.Variant)
	for _, name := range p.Params() {
		printKeyValue(name, p.Values[name])
	}
}

func (c *CLI) presetDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openPresets(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted preset %s", args[0])
			return nil
		},
	}
}
