package main

import (
	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/models"
)

func (a *app) toolsCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Tool]{
		use:      "tools",
		short:    "Browse and test agent tools",
		resource: func(c *client.Client) *client.Resource[models.Tool] { return c.Tools.Resource },
		header:   []string{"ID", "NAME", "TYPE", "CATEGORY", "ACTIVE"},
		row: func(t models.Tool) []string {
			return []string{t.ID, t.Name, t.ToolType, toolCategory(t), yesNo(t.IsActive)}
		},
		fields: func(t models.Tool) [][2]string {
			return [][2]string{
				{"ID", t.ID}, {"Name", bold(t.Name)}, {"Type", t.ToolType}, {"Description", t.Description},
				{"Category", toolCategory(t)}, {"Module", t.ModulePath}, {"Class", t.ClassName},
				{"Builtin", yesNo(t.IsBuiltin)}, {"Cache", yesNo(t.CacheEnabled)},
				{"Active", yesNo(t.IsActive)}, {"Updated", formatTime(t.UpdatedAt)},
			}
		},
	}, a.toolCategoriesCmd(), a.toolTestCmd())
}

func toolCategory(t models.Tool) string {
	if t.Category != nil {
		return t.Category.Name
	}
	return t.CategoryID
}

func (a *app) toolCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List tool categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			cats, err := c.Tools.Categories(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), cats)
			}
			rows := make([][]string, 0, len(cats))
			for _, cat := range cats {
				rows = append(rows, []string{cat.ID, cat.Name, truncate(cat.Description, 50)})
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "DESCRIPTION"}, rows)
		},
	}
}

func (a *app) toolTestCmd() *cobra.Command {
	var inputs inputFlags
	cmd := &cobra.Command{
		Use:   "test [id]",
		Short: "Run a tool once with the given arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := inputs.values()
			if err != nil {
				return err
			}
			c, err := a.backend()
			if err != nil {
				return err
			}
			result, err := c.Tools.Test(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	inputs.register(cmd)
	return cmd
}
