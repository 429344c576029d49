package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type state int

const (
	stateFilePicker state = iota
	stateColumnSelection
	stateCRSSelection
	stateProcessing
	stateComplete
	stateError
)

// maxFailuresShown limits the row failures listed on the summary screen.
const maxFailuresShown = 5

// Config holds what the UI shows about itself and the defaults it starts
// with. Nothing here is read from the environment.
type Config struct {
	Title   string
	Byline  string
	Link    string
	Version string

	SourceCRS       string
	TargetCRS       string
	DropMissingRows bool
	Precision       int
	Workers         int
	Strict          bool
}

type crsPane int

const (
	sourcePane crsPane = iota
	targetPane
)

type Model struct {
	cfg       Config
	converter *converter.Converter
	systems   []*crs.Definition

	state        state
	filepicker   filepicker.Model
	selectedFile string
	table        *types.Table

	cursor  int
	xColumn int
	yColumn int

	pane         crsPane
	sourceCursor int
	targetCursor int
	dropMissing  bool

	result       *types.ConversionResult
	err          error
	width        int
	height       int
	progress     progress.Model
	progressChan chan float64
	resultChan   chan conversionResultMsg
}

type conversionResultMsg struct {
	result *types.ConversionResult
	err    error
}

type fileLoadedMsg struct {
	data *types.Table
	err  error
}

type conversionCompleteMsg struct {
	result *types.ConversionResult
	err    error
}

type progressMsg float64

type waitForProgressMsg struct{}

func New(conv *converter.Converter, cfg Config) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".xlsx"}
	fp.CurrentDirectory, _ = os.Getwd()

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.File = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	prog := progress.New(progress.WithGradient("#2E86AB", "#5FB3D9"))

	m := Model{
		cfg:         cfg,
		converter:   conv,
		systems:     conv.Registry().All(),
		state:       stateFilePicker,
		filepicker:  fp,
		xColumn:     -1,
		yColumn:     -1,
		dropMissing: cfg.DropMissingRows,
		progress:    prog,
	}
	m.sourceCursor = m.systemIndex(cfg.SourceCRS, 0)
	m.targetCursor = m.systemIndex(cfg.TargetCRS, min(1, len(m.systems)-1))
	return m
}

func (m Model) systemIndex(key string, fallback int) int {
	if key == "" {
		return fallback
	}
	def, err := m.converter.Registry().Lookup(key)
	if err != nil {
		return fallback
	}
	for i, d := range m.systems {
		if d.Code == def.Code {
			return i
		}
	}
	return fallback
}

func (m Model) Init() tea.Cmd {
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Leave room for the title, byline and help text.
		height := msg.Height - 14
		if height < 5 {
			height = 5
		}
		m.filepicker.SetHeight(height)

		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			}

		case stateColumnSelection:
			return m.updateColumnSelection(msg)

		case stateCRSSelection:
			return m.updateCRSSelection(msg)

		case stateComplete, stateError:
			switch msg.String() {
			case "ctrl+c", "q", "enter", "esc":
				return m, tea.Quit
			}
		}

	case fileLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.table = msg.data
		m.cursor = 0

		x, y := converter.SuggestColumns(msg.data.Headers)
		m.xColumn, m.yColumn = -1, -1
		if x != "" {
			m.xColumn = msg.data.ColumnIndex(x)
		}
		if y != "" {
			m.yColumn = msg.data.ColumnIndex(y)
		}

		m.state = stateColumnSelection
		return m, nil

	case conversionCompleteMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.state = stateComplete
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			return m, m.loadFile(path)
		}

		return m, cmd
	}

	return m, nil
}

func (m Model) updateColumnSelection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.table.Headers)-1 {
			m.cursor++
		}
	case "x":
		m.xColumn = m.cursor
		if m.yColumn == m.cursor {
			m.yColumn = -1
		}
	case "y":
		m.yColumn = m.cursor
		if m.xColumn == m.cursor {
			m.xColumn = -1
		}
	case "enter":
		if m.columnsChosen() {
			m.state = stateCRSSelection
		}
	}
	return m, nil
}

func (m Model) columnsChosen() bool {
	return m.xColumn >= 0 && m.yColumn >= 0 && m.xColumn != m.yColumn
}

func (m Model) updateCRSSelection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cursor := &m.sourceCursor
	if m.pane == targetPane {
		cursor = &m.targetCursor
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.state = stateColumnSelection
	case "tab", "left", "right", "h", "l":
		if m.pane == sourcePane {
			m.pane = targetPane
		} else {
			m.pane = sourcePane
		}
	case "up", "k":
		if *cursor > 0 {
			*cursor--
		}
	case "down", "j":
		if *cursor < len(m.systems)-1 {
			*cursor++
		}
	case "d":
		m.dropMissing = !m.dropMissing
	case "enter":
		m.state = stateProcessing
		return m.convertFile()
	}
	return m, nil
}

func (m Model) loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := converter.ReadFileData(path)
		return fileLoadedMsg{data: data, err: err}
	}
}

// options builds the converter options from the current selection.
func (m Model) options() converter.Options {
	return converter.Options{
		XColumn:         m.table.Headers[m.xColumn],
		YColumn:         m.table.Headers[m.yColumn],
		SourceCRS:       m.systems[m.sourceCursor].Code,
		TargetCRS:       m.systems[m.targetCursor].Code,
		DropMissingRows: m.dropMissing,
		Precision:       m.cfg.Precision,
		Workers:         m.cfg.Workers,
		Strict:          m.cfg.Strict,
	}
}

func (m Model) convertFile() (Model, tea.Cmd) {
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan conversionResultMsg, 1)

	// Capture everything the goroutine needs; the model is a value.
	conv := m.converter
	opts := m.options()
	inputFile := m.selectedFile
	outputFile := converter.DefaultOutputPath(inputFile)
	progressChan := m.progressChan
	resultChan := m.resultChan

	cmd := tea.Batch(
		func() tea.Msg {
			go func() {
				result, err := conv.ConvertFile(context.Background(), inputFile, outputFile, opts, progressChan)

				resultChan <- conversionResultMsg{result: result, err: err}

				close(progressChan)
				close(resultChan)
			}()

			return waitForProgressMsg{}
		},
		m.progress.Init(),
	)

	return m, cmd
}

func waitForProgress(progressChan chan float64, resultChan chan conversionResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			res, ok := <-resultChan
			if ok {
				return conversionCompleteMsg(res)
			}
			return nil
		}

		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case stateColumnSelection:
		return m.viewColumnSelection()
	case stateCRSSelection:
		return m.viewCRSSelection()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	title := TitleStyle.Render(m.cfg.Title)
	if m.cfg.Version != "" {
		title = lipgloss.JoinHorizontal(lipgloss.Bottom, title, SubtitleStyle.UnsetMarginBottom().Render(" "+m.cfg.Version))
	}

	header := []string{title}
	if m.cfg.Byline != "" || m.cfg.Link != "" {
		header = append(header, lipgloss.JoinHorizontal(lipgloss.Top,
			SubtitleStyle.Render(m.cfg.Byline),
			LinkStyle.Render(m.cfg.Link),
		))
	}

	s.WriteString(lipgloss.JoinVertical(lipgloss.Left, header...))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Select a CSV or XLSX file with point coordinates"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press q to quit"))

	return s.String()
}

func (m Model) viewColumnSelection() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Select Coordinate Columns"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("File: %s • %d rows", filepath.Base(m.selectedFile), len(m.table.Rows))))
	s.WriteString("\n\n")

	for i, header := range m.table.Headers {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}

		role := "   "
		switch i {
		case m.xColumn:
			role = "[X]"
		case m.yColumn:
			role = "[Y]"
		}

		line := fmt.Sprintf("%s %s %s", cursor, role, header)
		if sample := m.sample(i); sample != "" {
			line += SubtitleStyle.UnsetMarginBottom().Render("  e.g. " + sample)
		}

		switch {
		case m.cursor == i:
			line = SelectedStyle.Render(line)
		case i == m.xColumn || i == m.yColumn:
			line = CheckedStyle.Render(line)
		default:
			line = UnselectedStyle.Render(line)
		}

		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	if !m.columnsChosen() {
		s.WriteString(ErrorStyle.Render("Mark one X (longitude / easting) and one Y (latitude / northing) column"))
		s.WriteString("\n")
	}
	s.WriteString(HelpStyle.Render("↑/↓: navigate • x: set X column • y: set Y column • enter: continue • q: quit"))

	return BoxStyle.Render(s.String())
}

// sample returns the first non-missing value of column i.
func (m Model) sample(i int) string {
	for j := 0; j < len(m.table.Rows) && j < converter.RowDetectionLimit; j++ {
		if v := m.table.Rows[j][i]; !converter.IsMissing(v) {
			return v
		}
	}
	return ""
}

func (m Model) viewCRSSelection() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Select Coordinate Systems"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("X: %s • Y: %s", m.table.Headers[m.xColumn], m.table.Headers[m.yColumn])))
	s.WriteString("\n\n")

	source := m.viewCRSList("From", m.sourceCursor, m.pane == sourcePane)
	target := m.viewCRSList("To", m.targetCursor, m.pane == targetPane)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, source, "    ", target))
	s.WriteString("\n\n")

	dropStatus := "[ ]"
	if m.dropMissing {
		dropStatus = "[x]"
	}
	s.WriteString(fmt.Sprintf("Drop rows with missing coordinates: %s\n", dropStatus))

	src := m.systems[m.sourceCursor]
	x, y := src.Axes.Labels()
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s is read as X=%s, Y=%s", src.Short, x, y)))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("tab: switch list • ↑/↓: choose • d: drop missing • enter: convert • esc: back • q: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewCRSList(label string, cursor int, focused bool) string {
	var s strings.Builder

	heading := UnselectedStyle.Render(label)
	if focused {
		heading = SelectedStyle.Render(label)
	}
	s.WriteString(heading)
	s.WriteString("\n")

	for i, def := range m.systems {
		marker := " "
		if i == cursor {
			marker = ">"
		}
		line := fmt.Sprintf("%s %s", marker, def.Name)

		switch {
		case i == cursor && focused:
			line = SelectedStyle.Render(line)
		case i == cursor:
			line = CheckedStyle.Render(line)
		default:
			line = UnselectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Processing..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Converting %s to %s...",
		m.systems[m.sourceCursor].Short, m.systems[m.targetCursor].Short))
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func (m Model) viewComplete() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ Conversion Complete!"))
	s.WriteString("\n\n")

	maxPathLen := m.width - 20
	if maxPathLen < 30 {
		maxPathLen = 30
	}

	s.WriteString(fmt.Sprintf("Input:  %s\n", truncatePath(m.result.InputFile, maxPathLen)))
	s.WriteString(SuccessStyle.Render(fmt.Sprintf("Output: %s\n", truncatePath(m.result.OutputFile, maxPathLen))))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Columns: X=%s, Y=%s\n", m.result.XColumn, m.result.YColumn))
	s.WriteString(fmt.Sprintf("Systems: %s → %s\n", m.result.SourceCRS, m.result.TargetCRS))
	s.WriteString(fmt.Sprintf("Rows converted: %d\n", m.result.RowsConverted))
	if m.result.RowsDropped > 0 {
		s.WriteString(fmt.Sprintf("Rows dropped: %d\n", m.result.RowsDropped))
	}
	if m.result.RowsFailed > 0 {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Rows failed: %d", m.result.RowsFailed)))
		s.WriteString("\n")
		for i, f := range m.result.Failures {
			if i == maxFailuresShown {
				s.WriteString(SubtitleStyle.UnsetMarginBottom().Render(fmt.Sprintf("  ... %d more", m.result.RowsFailed-maxFailuresShown)))
				s.WriteString("\n")
				break
			}
			s.WriteString(fmt.Sprintf("  row %d: %s\n", f.Row, f.Reason))
		}
	}
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("Press any key to exit"))

	return BoxStyle.Render(s.String())
}

func truncatePath(path string, maxLen int) string {
	if len(path) > maxLen {
		return "..." + path[len(path)-maxLen+3:]
	}
	return path
}

func (m Model) viewError() string {
	var s strings.Builder

	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press any key to exit"))

	return BoxStyle.Render(s.String())
}
