package cmd

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	pathpkg "path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/analysis"
	"github.com/bitdefender/bddisasm/internal/elfx"
	"github.com/bitdefender/bddisasm/internal/ndisasm/styles"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Browse the functions of an x86 ELF image",
	Long: `Browse the functions of an x86 ELF image in an interactive terminal UI.
Pick a function from the symbol list to read its annotated listing, and
open the property sheet of any instruction in it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absPath, err := pathpkg.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return fmt.Errorf("cannot access file: %w", err)
		}

		m := NewModel(absPath)
		if cmd.Flags().Changed("bits") {
			mode, err := decodeMode(cmd)
			if err != nil {
				return err
			}
			m.mode, m.modeSet = mode, true
		}

		program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

type viewMode int

const (
	viewListing viewMode = iota
	viewSymbols
	viewDetails
)

type symbolItem struct {
	fn         analysis.FunctionSymbol
	filterTerm string
}

func (i symbolItem) Title() string       { return fmt.Sprintf("%x  %s", i.fn.VA, i.fn.Title()) }
func (i symbolItem) Description() string { return "" }
func (i symbolItem) FilterValue() string { return i.filterTerm }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}

	indicator := " "
	addrStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if index == m.Index() {
		indicator = ">"
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Address))
	}
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Text))
	if i.fn.PLT {
		nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Comment))
	}

	fmt.Fprintf(w, " %s  %s  %s", indicator, addrStyle.Render(fmt.Sprintf("%x", i.fn.VA)), nameStyle.Render(i.fn.Title()))
}

type model struct {
	listing  viewport.Model
	symbols  list.Model
	details  viewport.Model
	spinner  spinner.Model
	view     viewMode
	filepath string
	digest   string
	loading  bool
	err      error
	width    int
	height   int

	mode    bddisasm.DecodeMode
	modeSet bool // mode came from --bits rather than the ELF class

	image   *elfx.Image
	funcs   []analysis.FunctionSymbol
	current *analysis.FunctionSymbol
	insts   []analysis.AnnotatedInst
	cursor  int
}

type digestMsg struct {
	digest string
}

type imageMsg struct {
	image *elfx.Image
	funcs []analysis.FunctionSymbol
	err   error
}

func digestCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return digestMsg{digest: fmt.Sprintf("error: %v", err)}
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return digestMsg{digest: fmt.Sprintf("error: %v", err)}
		}
		return digestMsg{digest: fmt.Sprintf("%x", h.Sum(nil))}
	}
}

func loadImageCmd(path string) tea.Cmd {
	return func() tea.Msg {
		im, err := elfx.Open(path)
		if err != nil {
			return imageMsg{err: err}
		}
		// The model owns the image from here on and closes it on quit.
		return imageMsg{image: im, funcs: analysis.ScanFunctions(im)}
	}
}

func NewModel(path string) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	symbols := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	symbols.SetShowStatusBar(false)
	symbols.SetFilteringEnabled(true)
	symbols.Title = "Functions"
	symbols.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color(styles.Mnemonic)).
		MarginLeft(2)
	symbols.SetShowHelp(true)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Address))

	details := viewport.New()
	details.SetWidth(80)
	details.SetHeight(24)

	m := model{
		listing:  vp,
		symbols:  symbols,
		details:  details,
		spinner:  s,
		view:     viewListing,
		filepath: path,
		loading:  true,
		width:    80,
		height:   24,
		mode:     bddisasm.Bits64,
	}
	m.updateSummary()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		digestCmd(m.filepath),
		loadImageCmd(m.filepath),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case digestMsg:
		m.digest = msg.digest
		m.updateSummary()
		return m, nil

	case imageMsg:
		m = m.withImage(msg)
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading || m.digest == "" {
			m.updateSummary()
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.listing.SetWidth(msg.Width)
			m.listing.SetHeight(msg.Height - 2)
			m.symbols.SetWidth(msg.Width)
			m.symbols.SetHeight(msg.Height - 2)
			m.details.SetWidth(msg.Width)
			m.details.SetHeight(msg.Height - 2)
			if m.insts != nil {
				m.renderListing()
			} else {
				m.updateSummary()
			}
		}

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg.String()); handled {
			return next, cmd
		}
	}

	switch m.view {
	case viewSymbols:
		m.symbols, cmd = m.symbols.Update(msg)
	case viewDetails:
		m.details, cmd = m.details.Update(msg)
	default:
		m.listing, cmd = m.listing.Update(msg)
	}
	return m, cmd
}

func (m model) withImage(msg imageMsg) model {
	m.loading = false
	if msg.err != nil {
		m.err = msg.err
		m.updateSummary()
		return m
	}
	m.image, m.funcs = msg.image, msg.funcs
	if !m.modeSet {
		if mode, ok := bddisasm.ModeFromBits(m.image.Bits()); ok {
			m.mode = mode
		}
	}

	items := make([]list.Item, 0, len(m.funcs))
	for _, fn := range m.funcs {
		items = append(items, symbolItem{fn: fn, filterTerm: fmt.Sprintf("%x %s", fn.VA, fn.Title())})
	}
	m.symbols.SetItems(items)
	m.symbols.Title = fmt.Sprintf("Functions (%d total)", len(m.funcs))
	m.updateSummary()
	return m
}

// handleKey applies the global key bindings. Keys it does not handle go to
// the active view.
func (m model) handleKey(key string) (model, tea.Cmd, bool) {
	if m.view == viewSymbols && m.symbols.FilterState() == list.Filtering {
		if key == "ctrl+c" {
			return m.quit()
		}
		return m, nil, false
	}

	switch key {
	case "q", "ctrl+c":
		return m.quit()
	case "r":
		m.view = viewListing
		return m, nil, true
	case "s":
		if len(m.funcs) > 0 {
			m.view = viewSymbols
		}
		return m, nil, true
	case "d":
		if m.insts != nil {
			m.renderDetails()
			m.view = viewDetails
		}
		return m, nil, true
	case "enter":
		switch m.view {
		case viewSymbols:
			if item, ok := m.symbols.SelectedItem().(symbolItem); ok {
				m.openFunction(item.fn)
			}
		case viewListing:
			if m.insts != nil {
				m.renderDetails()
				m.view = viewDetails
			}
		}
		return m, nil, true
	case "up", "k", "down", "j":
		if m.view != viewListing || len(m.insts) == 0 {
			return m, nil, false
		}
		if key == "up" || key == "k" {
			m.cursor = max(m.cursor-1, 0)
		} else {
			m.cursor = min(m.cursor+1, len(m.insts)-1)
		}
		m.renderListing()
		return m, nil, true
	case "tab":
		m.view = m.nextView(1)
		return m, nil, true
	case "shift+tab":
		m.view = m.nextView(-1)
		return m, nil, true
	}
	return m, nil, false
}

func (m model) quit() (model, tea.Cmd, bool) {
	if m.image != nil {
		if err := m.image.Close(); err != nil {
			slog.Error("Failed to close image", "error", err)
		}
		m.image = nil
	}
	return m, tea.Quit, true
}

// nextView cycles through the views that currently have content.
func (m *model) nextView(dir int) viewMode {
	const n = 3
	v := m.view
	for range n {
		v = viewMode((int(v) + dir + n) % n)
		switch {
		case v == viewSymbols && len(m.funcs) == 0:
			continue
		case v == viewDetails && m.insts == nil:
			continue
		}
		if v == viewDetails {
			m.renderDetails()
		}
		return v
	}
	return m.view
}

func (m model) View() string {
	var content string
	switch m.view {
	case viewSymbols:
		content = m.symbols.View()
	case viewDetails:
		content = m.details.View()
	default:
		content = m.listing.View()
	}

	var menu string
	switch m.view {
	case viewSymbols:
		menu = " Enter: open • R: listing • Tab: cycle • Q: quit "
	case viewDetails:
		menu = " R: listing • S: functions • Tab: cycle • Q: quit "
	default:
		switch {
		case m.insts != nil:
			menu = " ↑/↓: select • Enter: details • S: functions • Q: quit "
		case len(m.funcs) > 0:
			menu = " S: functions • Tab: cycle • Q: quit "
		default:
			menu = " Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

// summaryMarkdown describes the file before any function is opened.
func (m model) summaryMarkdown() string {
	relPath := m.filepath
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := pathpkg.Rel(cwd, m.filepath); err == nil {
			relPath = rel
		}
	}

	var lines []string
	if dir := pathpkg.Dir(relPath); dir != "." {
		lines = append(lines, fmt.Sprintf("; %s/", dir))
	}
	lines = append(lines, fmt.Sprintf("; %s", pathpkg.Base(relPath)))
	if m.digest != "" {
		lines = append(lines, fmt.Sprintf("; %s", m.digest))
	}
	if m.image != nil && m.image.File != nil {
		f := m.image.File
		lines = append(lines, "",
			fmt.Sprintf("; %v %v %v", f.Class, f.Machine, f.Type),
			fmt.Sprintf("; entry %#x, .text %#x-%#x", m.image.Entry(), m.image.Text.VA, m.image.Text.VA+m.image.Text.Size),
			fmt.Sprintf("; %d functions, decoding as %s-bit", len(m.funcs), m.mode),
		)
	}

	md := fmt.Sprintf("# ndisasm\n\n```\n%s\n```", strings.Join(lines, "\n"))
	if m.err != nil {
		md += fmt.Sprintf("\n\n**Error:** %v", m.err)
	}
	if m.loading {
		md += fmt.Sprintf("\n\n%s Loading symbols...", m.spinner.View())
	}
	if m.digest == "" {
		md += fmt.Sprintf("\n\n%s Calculating digest...", m.spinner.View())
	}
	return md
}

func (m *model) updateSummary() {
	if m.insts != nil {
		return
	}
	m.listing.SetContent(m.render(m.summaryMarkdown()))
}

func (m *model) render(md string) string {
	width := m.width
	if width == 0 {
		width = 80
	}
	out, err := styles.Render(md, width-2, colorize.Enabled())
	if err != nil {
		return md
	}
	return strings.TrimSuffix(out, "\n")
}

func (m *model) openFunction(fn analysis.FunctionSymbol) {
	insts, err := disassembleFunction(m.image, fn, m.mode, analysis.MaxFunctionInstructions, true)
	if err != nil {
		slog.Warn("Cannot disassemble function", "function", fn.Title(), "error", err)
		return
	}
	m.current, m.insts, m.cursor = &fn, insts, 0
	m.view = viewListing
	m.renderListing()
	m.listing.GotoTop()
}

// listingLines renders the open function with a marker on the cursor line.
func (m model) listingLines() []string {
	lines := make([]string, 0, len(m.insts)+1)
	if m.current != nil {
		lines = append(lines, colorize.Line(fmt.Sprintf("; %s @ %#x", m.current.Title(), m.current.VA)))
	}
	for i, a := range m.insts {
		marker, line := "  ", colorize.Line(a.String())
		if i == m.cursor {
			marker = "> "
			if colorize.Enabled() {
				line = m.highlight(line)
			}
		}
		lines = append(lines, marker+line)
	}
	return lines
}

// highlight draws the cursor bar across the row, replacing the syntax colors.
func (m model) highlight(line string) string {
	plain := colorize.StripANSI(line)
	if pad := m.width - 2 - colorize.VisibleLen(plain); pad > 0 {
		plain += strings.Repeat(" ", pad)
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("237")).
		Foreground(lipgloss.Color(styles.Text)).
		Render(plain)
}

func (m *model) renderListing() {
	m.listing.SetContent(strings.Join(m.listingLines(), "\n"))
	// Keep the cursor line, one below the header, in the middle of the page.
	if page := m.height - 2; page > 0 {
		m.listing.SetYOffset(max(m.cursor+1-page/2, 0))
	}
}

func (m *model) renderDetails() {
	if m.cursor >= len(m.insts) {
		return
	}
	a := m.insts[m.cursor]
	if !a.Valid() {
		m.details.SetContent(m.render(fmt.Sprintf("# %x\n\n`%s`: %v", a.VA, a.Text, a.Err)))
		return
	}
	md, err := propertySheet(a.Ins)
	if err != nil {
		md = fmt.Sprintf("# %s\n\n**Error:** %v", a.Mnemonic, err)
	}
	if len(a.Annotations) > 0 {
		md += "\n## References\n\n- " + strings.Join(a.Annotations, "\n- ") + "\n"
	}
	m.details.SetContent(m.render(md))
	m.details.GotoTop()
}
