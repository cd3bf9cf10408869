package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/files"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/theme"
	"github.com/spf13/cobra"
)

const offlineNote = `
These commands edit the saved canvas directly. Stop a running canvas first or
its next save will overwrite the change.`

// withSavedCanvas restores the saved canvas, runs fn on it and saves every
// change fn makes.
func withSavedCanvas(ctx context.Context, storage string, fn func(*canvas.Store) error) error {
	p, err := openPersister(loadConfig(), storage)
	if err != nil {
		return err
	}
	defer p.Close()

	store := canvas.NewStore()
	if _, err := p.Restore(ctx, store); err != nil {
		return fmt.Errorf("failed to restore canvas: %w", err)
	}
	detach := p.Attach(store)
	defer detach()

	if err := fn(store); err != nil {
		return err
	}
	if err := p.Err(); err != nil {
		return fmt.Errorf("failed to save canvas: %w", err)
	}
	return nil
}

func newLayoutsCmd() *cobra.Command {
	var storage string
	layoutsCmd := &cobra.Command{
		Use:     "layouts",
		Aliases: []string{"layout"},
		Short:   "Manage saved layouts",
		Long: `Manage saved layouts

A layout is a named snapshot of the terminals and viewport. Loading one
replaces every terminal on the canvas; files are left alone. Layouts are
found by id, exact name or the closest fuzzy name match.` + offlineNote,
	}
	layoutsCmd.PersistentFlags().StringVar(&storage, "storage", "", "Storage driver: sqlite or file (default from config)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved layouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				printLayouts(cmd.OutOrStdout(), store.Layouts())
				return nil
			})
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save the current terminals as a layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("layout name is required")
			}
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				l := store.SaveLayout(name)
				fmt.Fprintf(cmd.OutOrStdout(), "Saved layout %q (%d terminals)\n  ID: %s\n", l.Name, len(l.Terminals), l.ID)
				return nil
			})
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load LAYOUT",
		Short: "Replace the terminals with a saved layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				l, ok := store.FindLayout(args[0])
				if !ok {
					return fmt.Errorf("no layout matches %q", args[0])
				}
				store.LoadLayout(l.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded layout %q (%d terminals)\n", l.Name, len(l.Terminals))
				return nil
			})
		},
	}

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete LAYOUT",
		Short: "Delete a saved layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				l, ok := store.FindLayout(args[0])
				if !ok {
					return fmt.Errorf("no layout matches %q", args[0])
				}
				if !yes {
					ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete layout %q (%s)?", l.Name, l.ID))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled.")
						return nil
					}
				}
				store.DeleteLayout(l.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted layout %q\n", l.Name)
				return nil
			})
		},
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	exportCmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the saved layouts as JSON",
		Long:  `Write the saved layouts as JSON to FILE, or to stdout when FILE is omitted or "-"`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				data, err := store.ExportLayouts()
				if err != nil {
					return err
				}
				if len(args) == 0 || args[0] == "-" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				if err := os.WriteFile(args[0], append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d layouts to %s\n", len(store.Layouts()), args[0])
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Add layouts from a JSON file",
		Long: `Add layouts from a JSON file written by export, or from stdin with "-"

Comments and trailing commas are allowed. Imported layouts get new ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				n, err := store.ImportLayouts(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d layouts\n", n)
				return nil
			})
		},
	}

	layoutsCmd.AddCommand(listCmd, saveCmd, loadCmd, deleteCmd, exportCmd, importCmd)
	return layoutsCmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func printLayouts(w io.Writer, layouts []canvas.Layout) {
	if len(layouts) == 0 {
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(theme.CLITableDim()).Render("No saved layouts."))
		return
	}
	rows := make([][]string, 0, len(layouts))
	for _, l := range layouts {
		rows = append(rows, []string{
			l.ID,
			l.Name,
			strconv.Itoa(len(l.Terminals)),
			fmt.Sprintf("%.0f%%", l.Viewport.Zoom*100),
			time.UnixMilli(l.CreatedAt).Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(w, newTable("ID", "Name", "Terminals", "Zoom", "Saved").Rows(rows...).Render())
}

func newDropCmd() *cobra.Command {
	var storage string
	cmd := &cobra.Command{
		Use:   "drop FILE...",
		Short: "Add files to the saved canvas",
		Long: `Add files to the saved canvas as file cards

Text, code, markdown and images up to 10MB are accepted; other files
are skipped. Each card is placed at the next free position.` + offlineNote,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drops, skipped := files.ReadPaths(args)
			return withSavedCanvas(cmd.Context(), storage, func(store *canvas.Store) error {
				added, rejected := files.Drop(store, drops, nil)
				skipped = append(skipped, rejected...)
				out := cmd.OutOrStdout()
				for _, f := range added {
					label := string(f.FileType)
					if f.Language != "" {
						label += "/" + f.Language
					}
					fmt.Fprintf(out, "Added %s (%s) at (%g, %g)\n", f.Name, label, f.Position.X, f.Position.Y)
				}
				for _, s := range skipped {
					fmt.Fprintf(out, "Skipped %s\n", s.Error())
				}
				if len(added) == 0 {
					return fmt.Errorf("no files added")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&storage, "storage", "", "Storage driver: sqlite or file (default from config)")
	return cmd
}
