package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/storage"
	"github.com/tcmartin/crewdeck/pkg/widgets"
)

// preferences opens the configured preference store and loads the layout.
// The returned func closes the store.
func (a *app) preferences() (*widgets.Preferences, func() error, error) {
	pc, err := a.cfg.ProviderConfig()
	if err != nil {
		return nil, nil, err
	}
	provider, err := storage.NewProvider(pc)
	if err != nil {
		return nil, nil, err
	}
	if err := provider.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", pc.Type, err)
	}
	store, err := provider.GetPreferenceStore(a.cfg.Storage.Namespace)
	if err != nil {
		_ = provider.Close()
		return nil, nil, err
	}
	prefs := widgets.NewPreferences(store, widgets.WithLogger(a.logger))
	if err := prefs.Load(); err != nil {
		_ = provider.Close()
		return nil, nil, err
	}
	return prefs, provider.Close, nil
}

func (a *app) widgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widgets",
		Short: "Arrange the dashboard widgets",
	}

	// withPrefs runs fn against the loaded layout and prints the result
	withPrefs := func(fn func(cmd *cobra.Command, p *widgets.Preferences, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			prefs, closeStore, err := a.preferences()
			if err != nil {
				return err
			}
			defer closeStore()
			if err := fn(cmd, prefs, args); err != nil {
				return err
			}
			return a.printLayout(cmd, prefs)
		}
	}

	move := func(up bool) func(cmd *cobra.Command, p *widgets.Preferences, args []string) error {
		return func(cmd *cobra.Command, p *widgets.Preferences, args []string) error {
			var (
				moved bool
				err   error
			)
			if up {
				moved, err = p.MoveUp(args[0])
			} else {
				moved, err = p.MoveDown(args[0])
			}
			if err != nil {
				return err
			}
			if !moved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is already at the edge\n", warning("Unchanged:"), args[0])
			}
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show the layout",
			Args:  cobra.NoArgs,
			RunE:  withPrefs(func(*cobra.Command, *widgets.Preferences, []string) error { return nil }),
		},
		&cobra.Command{
			Use:   "toggle [id]",
			Short: "Show or hide a widget",
			Args:  cobra.ExactArgs(1),
			RunE: withPrefs(func(cmd *cobra.Command, p *widgets.Preferences, args []string) error {
				_, err := p.Toggle(args[0])
				return err
			}),
		},
		&cobra.Command{
			Use:   "up [id]",
			Short: "Move a widget one place up",
			Args:  cobra.ExactArgs(1),
			RunE:  withPrefs(move(true)),
		},
		&cobra.Command{
			Use:   "down [id]",
			Short: "Move a widget one place down",
			Args:  cobra.ExactArgs(1),
			RunE:  withPrefs(move(false)),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default layout",
			Args:  cobra.NoArgs,
			RunE: withPrefs(func(cmd *cobra.Command, p *widgets.Preferences, args []string) error {
				return p.Reset()
			}),
		},
	)
	return cmd
}

func (a *app) printLayout(cmd *cobra.Command, p *widgets.Preferences) error {
	layout := p.Layout()
	if a.jsonOut {
		return printJSON(cmd.OutOrStdout(), layout)
	}
	rows := make([][]string, 0, len(layout))
	for _, pl := range layout {
		name := pl.Title
		if pl.Visible {
			name = bold(name)
		} else {
			name = faint(name)
		}
		rows = append(rows, []string{fmt.Sprint(pl.Position + 1), pl.ID, name, string(pl.Size), yesNo(pl.Visible)})
	}
	return printTable(cmd.OutOrStdout(), []string{"#", "ID", "NAME", "SIZE", "VISIBLE"}, rows)
}
