package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
)

// catalogCommand lists operation kinds or describes one kind.
func (c *CLI) catalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [operation]",
		Short: "List primitive operations or describe one",
		Example: `  metaop catalog
  metaop catalog gegl:median-blur`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var names []string
			for _, k := range catalog.Kinds() {
				names = append(names, k.String())
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				printCatalog()
				return nil
			}
			return printDescriptor(args[0])
		},
	}
}

func printCatalog() {
	printTitle("Operations")
	for _, k := range catalog.Kinds() {
		d, err := catalog.Describe(k)
		if err != nil {
			continue
		}
		detail := d.Title
		if len(d.AuxPorts) > 0 {
			detail += " (aux: " + strings.Join(d.AuxPorts, ", ") + ")"
		}
		printKeyValue(d.Name, detail)
	}
}

func printDescriptor(name string) error {
	k, err := catalog.Lookup(name)
	if err != nil {
		return err
	}
	d, err := catalog.Describe(k)
	if err != nil {
		return err
	}

	printTitle("%s · %s", d.Name, d.Title)
	if len(d.AuxPorts) > 0 {
		printKeyValue("aux ports", strings.Join(d.AuxPorts, ", "))
	}
	if len(d.Properties) == 0 {
		printDetail("no properties")
		return nil
	}
	for _, p := range d.Properties {
		printKeyValue(p.Name, describeProperty(p))
		if p.Description != "" {
			printDetail("%s", p.Description)
		}
	}
	return nil
}

// describeProperty formats type, default and valid values on one line,
// e.g. "int 25 [1,80]".
func describeProperty(p catalog.Property) string {
	s := fmt.Sprintf("%s %s", p.Type, catalog.Format(p.Default))
	switch {
	case p.Enum != nil:
		s += " {" + strings.Join(p.Enum.Values, ",") + "}"
	case p.Range != nil && p.Type != catalog.TypeColor:
		s += " " + p.Range.String()
	}
	return s
}

// variantsCommand lists the built-in composites.
func (c *CLI) variantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List built-in composites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTitle("Variants")
			for _, v := range blueprint.Builtins() {
				printKeyValue(v.Name(), v.Description)
				printDetail("params: %s", strings.Join(v.Params(), ", "))
			}
			return nil
		},
	}
}
