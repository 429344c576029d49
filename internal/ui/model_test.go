package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/types"
)

func newTestModel(cfg Config) Model {
	return New(converter.New(crs.NewRegistry()), cfg)
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func pointsTable() *types.Table {
	return &types.Table{
		Headers: []string{"Name", "Latitude", "Longitude"},
		Rows: [][]string{
			{"Wellington", "-41.2865", "174.7762"},
		},
	}
}

func TestNewDefaultsToWGS84ToNZTM(t *testing.T) {
	m := newTestModel(Config{})

	if got := m.systems[m.sourceCursor].Code; got != crs.WGS84 {
		t.Errorf("source = %s, want %s", got, crs.WGS84)
	}
	if got := m.systems[m.targetCursor].Code; got != crs.NZTM2000 {
		t.Errorf("target = %s, want %s", got, crs.NZTM2000)
	}
}

func TestNewHonoursConfiguredSystems(t *testing.T) {
	m := newTestModel(Config{SourceCRS: "nzgd1949", TargetCRS: "EPSG:4167", DropMissingRows: true})

	if got := m.systems[m.sourceCursor].Code; got != crs.NZGD1949 {
		t.Errorf("source = %s, want %s", got, crs.NZGD1949)
	}
	if got := m.systems[m.targetCursor].Code; got != crs.NZGD2000 {
		t.Errorf("target = %s, want %s", got, crs.NZGD2000)
	}
	if !m.dropMissing {
		t.Error("expected drop missing rows to start enabled")
	}
}

func TestFileLoadedPreselectsColumns(t *testing.T) {
	m := send(t, newTestModel(Config{}), fileLoadedMsg{data: pointsTable()})

	if m.state != stateColumnSelection {
		t.Fatalf("state = %d, want column selection", m.state)
	}
	if m.xColumn != 2 || m.yColumn != 1 {
		t.Errorf("x, y = %d, %d, want 2, 1", m.xColumn, m.yColumn)
	}
	if !strings.Contains(m.View(), "[X] Longitude") {
		t.Errorf("view does not mark the X column:\n%s", m.View())
	}
}

func TestFileLoadErrorShowsError(t *testing.T) {
	m := send(t, newTestModel(Config{}), fileLoadedMsg{err: errors.New("boom")})

	if m.state != stateError {
		t.Fatalf("state = %d, want error", m.state)
	}
	if !strings.Contains(m.View(), "boom") {
		t.Errorf("view does not show the error:\n%s", m.View())
	}
}

func TestColumnSelectionKeys(t *testing.T) {
	m := send(t, newTestModel(Config{}), fileLoadedMsg{data: pointsTable()})

	// Marking the current Y column as X clears Y.
	m = send(t, m, key("down"), key("x"))
	if m.xColumn != 1 || m.yColumn != -1 {
		t.Fatalf("x, y = %d, %d, want 1, -1", m.xColumn, m.yColumn)
	}

	// Cannot continue without both columns.
	m = send(t, m, key("enter"))
	if m.state != stateColumnSelection {
		t.Fatalf("state = %d, want column selection", m.state)
	}

	m = send(t, m, key("down"), key("y"), key("enter"))
	if m.state != stateCRSSelection {
		t.Fatalf("state = %d, want crs selection", m.state)
	}

	opts := m.options()
	if opts.XColumn != "Latitude" || opts.YColumn != "Longitude" {
		t.Errorf("columns = %s, %s", opts.XColumn, opts.YColumn)
	}
}

func TestCRSSelectionKeys(t *testing.T) {
	m := send(t, newTestModel(Config{Precision: 3, Workers: 2}),
		fileLoadedMsg{data: pointsTable()},
		key("enter"),
	)

	m = send(t, m, key("tab"), key("down"), key("down"), key("d"))

	opts := m.options()
	if opts.SourceCRS != crs.WGS84 {
		t.Errorf("source = %s, want %s", opts.SourceCRS, crs.WGS84)
	}
	if opts.TargetCRS != crs.NZGD1949 {
		t.Errorf("target = %s, want %s", opts.TargetCRS, crs.NZGD1949)
	}
	if !opts.DropMissingRows {
		t.Error("expected d to enable drop missing rows")
	}
	if opts.Precision != 3 || opts.Workers != 2 {
		t.Errorf("precision, workers = %d, %d", opts.Precision, opts.Workers)
	}

	// The cursor stops at the end of the list.
	m = send(t, m, key("down"), key("down"))
	if m.targetCursor != len(m.systems)-1 {
		t.Errorf("target cursor = %d", m.targetCursor)
	}

	m = send(t, m, key("esc"))
	if m.state != stateColumnSelection {
		t.Errorf("state = %d, want column selection", m.state)
	}
}

func TestConversionCompleteShowsSummary(t *testing.T) {
	m := newTestModel(Config{})
	m.state = stateProcessing

	m = send(t, m, conversionCompleteMsg{result: &types.ConversionResult{
		InputFile:     "points.csv",
		OutputFile:    "points_converted.csv",
		XColumn:       "Longitude",
		YColumn:       "Latitude",
		SourceCRS:     crs.WGS84,
		TargetCRS:     crs.NZTM2000,
		RowsConverted: 1,
		RowsFailed:    7,
		Failures:      []types.RowFailure{{Row: 3, Reason: "missing coordinate"}},
	}})

	if m.state != stateComplete {
		t.Fatalf("state = %d, want complete", m.state)
	}
	view := m.View()
	for _, want := range []string{"points_converted.csv", "Rows failed: 7", "row 3: missing coordinate"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWaitForProgress(t *testing.T) {
	progressChan := make(chan float64, 1)
	resultChan := make(chan conversionResultMsg, 1)

	progressChan <- 0.5
	if msg := waitForProgress(progressChan, resultChan)(); msg != progressMsg(0.5) {
		t.Fatalf("msg = %#v, want progress 0.5", msg)
	}

	res := &types.ConversionResult{RowsConverted: 1}
	resultChan <- conversionResultMsg{result: res}
	close(progressChan)
	close(resultChan)

	msg, ok := waitForProgress(progressChan, resultChan)().(conversionCompleteMsg)
	if !ok || msg.result != res {
		t.Fatalf("msg = %#v, want completion", msg)
	}
	if msg := waitForProgress(progressChan, resultChan)(); msg != nil {
		t.Errorf("msg = %#v, want nil after both channels close", msg)
	}
}

func TestTruncatePath(t *testing.T) {
	if got := truncatePath("short.csv", 30); got != "short.csv" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("a", 40) + ".csv"
	got := truncatePath(long, 30)
	if len(got) != 30 || !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, ".csv") {
		t.Errorf("got %q", got)
	}
}
