package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/theme"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tabz-canvas configuration",
		Long:  `Manage the tabz-canvas configuration file and settings`,
	}

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath()
			if err != nil {
				return fmt.Errorf("could not determine config path: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	configEditCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		Long: `Open the configuration file in your default editor

The editor is determined by checking $EDITOR, $VISUAL, or common editors
like vim, vi, nano, and emacs in that order. Running servers pick up
keybinding changes on save.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfigFile()
		},
	}

	var yes bool
	configResetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		Long: `Reset the configuration file to default settings

This will overwrite your existing configuration after confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetConfigToDefaults(cmd.InOrStdin(), cmd.OutOrStdout(), yes)
		},
	}
	configResetCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	configCmd.AddCommand(configPathCmd, configEditCmd, configResetCmd)
	return configCmd
}

// editConfigFile opens the config file in $EDITOR
func editConfigFile() error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("could not determine config path: %w", err)
	}

	// LoadUserConfig writes the defaults when the file is missing.
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Config file doesn't exist, creating default at: %s\n", configPath)
		if _, err := config.LoadUserConfig(); err != nil {
			return fmt.Errorf("could not create config file: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "vi", "nano", "emacs"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return errors.New("no editor found. Please set $EDITOR environment variable")
	}

	cmd := exec.Command(editor, configPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// resetConfigToDefaults overwrites the config file with the defaults. An
// existing file is only replaced after confirmation, or with yes set.
func resetConfigToDefaults(in io.Reader, out io.Writer, yes bool) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("could not determine config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil && !yes {
		ok, err := confirm(in, out, fmt.Sprintf(
			"Warning: This will overwrite your existing configuration at:\n  %s\n\nAre you sure you want to reset to defaults?",
			configPath,
		))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Reset cancelled.")
			return nil
		}
	}

	if err := config.WriteConfig(configPath, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration reset to defaults\n")
	fmt.Fprintf(out, "  Location: %s\n", configPath)
	fmt.Fprintln(out, "\nYou can customize it with: tabz-canvas config edit")
	return nil
}

// confirm asks a yes/no question. It refuses without asking when stdin is
// not a terminal.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false, errors.New("stdin is not a terminal; pass --yes to confirm")
	}
	fmt.Fprintf(out, "%s (yes/no): ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "yes" || response == "y", nil
}

func newKeybindsCmd() *cobra.Command {
	keybindsCmd := &cobra.Command{
		Use:     "keybinds",
		Aliases: []string{"keys", "kb"},
		Short:   "View keybinding configuration",
	}
	keybindsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all keybindings",
		Long:  `Display all configured keybindings in a formatted table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userConfig, err := config.LoadUserConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				fmt.Fprintln(os.Stderr, "Using default keybindings...")
				userConfig = config.DefaultConfig()
			}
			printKeybindingsTable(cmd.OutOrStdout(), config.NewKeybindRegistry(userConfig))
			return nil
		},
	}
	keybindsCmd.AddCommand(keybindsListCmd)
	return keybindsCmd
}

// newTable returns a rounded table in the CLI palette.
func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.CLITableHeader()).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.CLITableBorder())).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// printKeybindingsTable prints one table per help section.
func printKeybindingsTable(w io.Writer, registry *config.KeybindRegistry) {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.CLITableKey())

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("tabz-canvas Keybindings"))
	fmt.Fprintln(w)

	for _, section := range config.GetKeybindings(registry) {
		rows := make([][]string, 0, len(section.Bindings))
		for _, b := range section.Bindings {
			rows = append(rows, []string{b.Key, b.Description})
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render(section.Title))
		fmt.Fprintln(w, newTable("Keys", "Action").Rows(rows...).Render())
		fmt.Fprintln(w)
	}

	note := lipgloss.NewStyle().
		Foreground(theme.CLITableDim()).
		Italic(true).
		Render("Note: In focus mode every key goes to the terminal; ctrl+] returns to the canvas.")
	fmt.Fprintln(w, note)
	fmt.Fprintln(w)
}

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List terminal profile themes",
		Long: `List the themes that backend profiles can name

Profiles naming an unknown theme fall back to high-contrast.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			printProfileThemes(cmd.OutOrStdout())
			return nil
		},
	}
}

func printProfileThemes(w io.Writer) {
	rows := [][]string{}
	for _, name := range theme.ProfileThemeNames() {
		t := theme.ForProfile(name)
		swatch := lipgloss.NewStyle().
			Foreground(t.Fg()).
			Background(t.Bg()).
			Render(" Aa ") +
			lipgloss.NewStyle().Background(t.Accent()).Render("  ")
		rows = append(rows, []string{
			name,
			theme.ColorToString(t.Bg()),
			theme.ColorToString(t.Fg()),
			swatch,
		})
	}
	fmt.Fprintln(w, newTable("Theme", "Background", "Foreground", "Preview").Rows(rows...).Render())
}
