package tui

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/render"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/theme"
	"github.com/charmbracelet/x/ansi"
)

// gridStep is the spacing of background dots in canvas units.
const gridStep = 80.0

// Minimum card size in cells.
const (
	minCardCols = 8
	minCardRows = 3
)

// Layer depths above the cards.
const (
	zStatus = 1000
	zPrompt = 1001
	zHelp   = 1002
)

type rect struct {
	x, y, w, h int
}

// View renders the canvas.
func (m *Model) View() tea.View {
	v := tea.NewView(m.Render())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeAllMotion
	return v
}

// Render returns the frame as a string.
func (m *Model) Render() string {
	cols, rows := m.Width, m.canvasRows()
	if cols <= 0 || m.Height <= 0 {
		return ""
	}
	vp := m.store.Viewport()

	layers := []*lipgloss.Layer{
		lipgloss.NewLayer(m.renderGrid(vp, cols, rows)).X(0).Y(0).Z(0),
	}

	z := 1
	for _, t := range m.store.Terminals() {
		r := m.cardRect(vp, t.Position, t.Size)
		lines := m.terminalCard(t, r)
		if layer, ok := clipLayer(lines, r, cols, rows); ok {
			layers = append(layers, layer.Z(z).ID(t.ID))
			z++
		}
	}
	for _, f := range m.store.Files() {
		r := m.cardRect(vp, f.Position, f.Size)
		lines := m.fileCard(f, r)
		if layer, ok := clipLayer(lines, r, cols, rows); ok {
			layers = append(layers, layer.Z(z).ID(f.ID))
			z++
		}
	}

	layers = append(layers, lipgloss.NewLayer(m.renderStatusBar(vp, cols)).X(0).Y(rows).Z(zStatus))
	if m.mode == modePrompt {
		layers = append(layers, centered(m.renderPrompt(), cols, rows).Z(zPrompt))
	}
	if m.showHelp {
		layers = append(layers, centered(m.renderHelp(), cols, rows).Z(zHelp))
	}

	// Only the compositor places layers at their offsets.
	c := lipgloss.NewCanvas(cols, m.Height)
	c.Compose(lipgloss.NewCompositor(layers...))
	return c.Render()
}

func centered(s string, cols, rows int) *lipgloss.Layer {
	x := max((cols-lipgloss.Width(s))/2, 0)
	y := max((rows-lipgloss.Height(s))/2, 0)
	return lipgloss.NewLayer(s).X(x).Y(y)
}

// cardRect converts a card's geometry to cells.
func (m *Model) cardRect(vp canvas.Viewport, pos canvas.Point, size canvas.Size) rect {
	sp := vp.WorldToScreen(pos)
	return rect{
		x: int(math.Floor(sp.X / m.cellW)),
		y: int(math.Floor(sp.Y / m.cellH)),
		w: max(int(math.Round(size.Width*vp.Zoom/m.cellW)), minCardCols),
		h: max(int(math.Round(size.Height*vp.Zoom/m.cellH)), minCardRows),
	}
}

// clipLayer cuts a card to the visible area.
func clipLayer(lines []string, r rect, cols, rows int) (*lipgloss.Layer, bool) {
	if r.x >= cols || r.y >= rows || r.x+r.w <= 0 || r.y+r.h <= 0 {
		return nil, false
	}
	top, bottom := max(0, -r.y), min(r.h, rows-r.y)
	left, right := max(0, -r.x), min(r.w, cols-r.x)
	out := make([]string, 0, bottom-top)
	for _, line := range lines[top:bottom] {
		out = append(out, ansi.Cut(line, left, right))
	}
	return lipgloss.NewLayer(strings.Join(out, "\n")).X(r.x + left).Y(r.y + top), true
}

func (m *Model) terminalCard(t canvas.Terminal, r rect) []string {
	accent := theme.TerminalAccent()
	if t.Profile != "" {
		accent = theme.ForProfile(t.Profile).Accent()
	}

	status := "○ connecting"
	if t.Connected() {
		status = "● " + *t.SessionID
	}
	if t.Profile != "" {
		status += " · " + t.Profile
	}

	var body []string
	if m.links == nil {
		body = []string{"backend disabled"}
	} else if link, ok := m.links.Link(t.ID); ok {
		body = OutputLines(link.Output().String(), r.h-3)
	}
	return drawCard(t.Name, status, accent, t.ID == m.selected, body, r.w, r.h)
}

func (m *Model) fileCard(f canvas.File, r rect) []string {
	sub := string(f.FileType)
	if f.Language != "" {
		sub += " · " + f.Language
	}
	body := strings.Split(render.Terminal(f), "\n")
	return drawCard(f.Name, sub, theme.FileAccent(), f.ID == m.selected, body, r.w, r.h)
}

// drawCard frames a card. The first two rows are the header: the top border
// carries the title and close button, the next row the subtitle.
func drawCard(title, subtitle string, accent color.Color, selected bool, body []string, w, h int) []string {
	borderColor := theme.CardBorder()
	if selected {
		borderColor = theme.CardBorderSelected()
	}
	border := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	closeStyle := lipgloss.NewStyle().Foreground(theme.CloseButton())
	subStyle := lipgloss.NewStyle().Foreground(theme.CardHeaderFg()).Faint(true)
	bodyStyle := lipgloss.NewStyle().Foreground(theme.CardBodyFg())

	inner := w - 2
	closeBtn := " × "
	titleText := ansi.Truncate(" "+title+" ", max(inner-len([]rune(closeBtn))-1, 0), "…")
	fill := max(inner-ansi.StringWidth(titleText)-3, 0)

	lines := make([]string, 0, h)
	lines = append(lines, border.Render("╭")+titleStyle.Render(titleText)+
		border.Render(strings.Repeat("─", fill))+closeStyle.Render(closeBtn)+border.Render("╮"))

	row := func(content string, style lipgloss.Style) string {
		content = ansi.Truncate(content, inner, "")
		pad := max(inner-ansi.StringWidth(content), 0)
		return border.Render("│") + style.Render(content) + strings.Repeat(" ", pad) + border.Render("│")
	}
	if h > 2 {
		lines = append(lines, row(" "+subtitle, subStyle))
	}
	for i := 0; i < h-3; i++ {
		var content string
		if i < len(body) {
			content = body[i]
		}
		lines = append(lines, row(content, bodyStyle))
	}
	lines = append(lines, border.Render("╰"+strings.Repeat("─", max(inner-1, 0))+"◢"))
	return lines
}

// OutputLines turns raw terminal output into at most n plain lines, the
// most recent last. Carriage returns overwrite the current line.
func OutputLines(raw string, n int) []string {
	if n <= 0 {
		return nil
	}
	plain := ansi.Strip(raw)
	split := strings.Split(plain, "\n")
	lines := make([]string, 0, len(split))
	for _, line := range split {
		line = strings.TrimRight(line, "\r")
		if i := strings.LastIndexByte(line, '\r'); i >= 0 {
			line = line[i+1:]
		}
		lines = append(lines, strings.Map(printable, line))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func printable(r rune) rune {
	switch {
	case r == '\t':
		return ' '
	case r < ' ' || r == 0x7f:
		return -1
	}
	return r
}

func (m *Model) renderGrid(vp canvas.Viewport, cols, rows int) string {
	dot := lipgloss.NewStyle().Foreground(theme.GridDot())
	spanX := m.cellW / vp.Zoom
	spanY := m.cellH / vp.Zoom
	var sb strings.Builder
	line := make([]rune, cols)
	for y := range rows {
		for x := range cols {
			w := vp.ScreenToWorld(canvas.Point{X: float64(x) * m.cellW, Y: float64(y) * m.cellH})
			if posMod(w.X, gridStep) < spanX && posMod(w.Y, gridStep) < spanY {
				line[x] = '·'
			} else {
				line[x] = ' '
			}
		}
		sb.WriteString(dot.Render(string(line)))
		if y < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func posMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r < 0 {
		r += b
	}
	return r
}

func (m *Model) renderStatusBar(vp canvas.Viewport, cols int) string {
	nTerm, nFile := len(m.store.Terminals()), len(m.store.Files())
	left := fmt.Sprintf(" tabz-canvas  %d%%  %s · %s ",
		int(math.Round(vp.Zoom*100)), plural(nTerm, "terminal"), plural(nFile, "file"))

	backendStyle := lipgloss.NewStyle().Foreground(theme.StatusDisconnected()).Background(theme.StatusBarBg())
	backendText := " ○ backend offline "
	if m.store.BackendConnected() {
		backendStyle = backendStyle.Foreground(theme.StatusConnected())
		backendText = " ● backend connected "
	}

	var modeText string
	switch m.mode {
	case modeFocus:
		modeText = " FOCUS (" + UnfocusKey + " to leave) "
	case modePrompt:
		modeText = " SAVE LAYOUT "
	}

	right := " " + m.keys.GetKeysForDisplay(ActionToggleHelp) + " help "
	if m.notice != "" {
		right = " " + m.notice + " " + right
	}

	bar := lipgloss.NewStyle().Foreground(theme.StatusBarFg()).Background(theme.StatusBarBg())
	modeStyle := bar.Bold(true).Reverse(true)
	leftPart := bar.Render(left) + backendStyle.Render(backendText)
	if modeText != "" {
		leftPart += modeStyle.Render(modeText)
	}
	gap := max(cols-lipgloss.Width(leftPart)-lipgloss.Width(right), 0)
	return ansi.Truncate(leftPart+bar.Render(strings.Repeat(" ", gap)+right), cols, "")
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func (m *Model) renderPrompt() string {
	label := lipgloss.NewStyle().Foreground(theme.HelpKeyBadge()).Bold(true).Render("Save layout as:")
	input := m.prompt + "█"
	hint := lipgloss.NewStyle().Foreground(theme.HelpGray()).Render("enter to save · esc to cancel")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.HelpBorder()).
		Padding(0, 1).
		Render(label + " " + input + "\n" + hint)
}

// renderHelp lists the keybindings in a table.
func (m *Model) renderHelp() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.HelpKeyBadge()).
		Padding(0, 1)
	keyStyle := lipgloss.NewStyle().Foreground(theme.CLITableKey()).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	sectionStyle := lipgloss.NewStyle().Foreground(theme.HelpGray()).Padding(0, 1)

	rows := [][]string{}
	for _, section := range config.GetKeybindings(m.keys) {
		for _, b := range section.Bindings {
			rows = append(rows, []string{section.Title, b.Key, b.Description})
		}
	}
	if m.links != nil {
		rows = append(rows,
			[]string{"TERMINAL", "Enter", "Type into selected terminal"},
			[]string{"TERMINAL", UnfocusKey, "Back to canvas"},
		)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.HelpBorder())).
		Headers("Section", "Keys", "Action").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return sectionStyle
			case col == 1:
				return keyStyle
			}
			return cellStyle
		})
	return t.Render()
}
