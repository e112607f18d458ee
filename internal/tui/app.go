// Package tui provides a terminal UI that watches a running kiln daemon:
// a live table of interned resources with their reference counts, and a
// one-keystroke reload trigger.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/kilnworks/kiln/pkg/api"
	"github.com/kilnworks/kiln/pkg/client"
)

// App is the TUI application. It polls the daemon's introspection API and
// renders the resource table.
type App struct {
	app    *tview.Application
	header *tview.TextView
	footer *tview.TextView
	table  *tview.Table

	client     *client.Client
	serverAddr string

	// Cached data from the last successful refresh.
	mu        sync.Mutex
	resources []api.ResourceInfo
	uid       string
	root      string
	lastErr   error
	message   string
}

// NewApp creates a TUI application connected to the given daemon address.
func NewApp(serverAddr string) *App {
	a := &App{
		app:        tview.NewApplication(),
		client:     client.New(serverAddr),
		serverAddr: serverAddr,
	}

	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)
	a.footer.SetText(" [yellow]r[white] reload selected  [yellow]q[white] quit")

	a.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSeparator(tview.Borders.Vertical)
	a.table.SetBorderPadding(0, 0, 1, 1)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.table, 0, 1, true).
		AddItem(a.footer, 1, 0, false)

	a.setupKeyBindings()
	a.app.SetRoot(layout, true).SetFocus(a.table)

	return a
}

// Run starts the background refresh goroutine and runs the TUI event loop.
func (a *App) Run() error {
	// Initial synchronous refresh so the table is populated before the
	// first render.
	a.refresh()
	a.updateTable()
	a.updateHeader()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			a.refresh()
			a.app.QueueUpdateDraw(func() {
				a.updateTable()
				a.updateHeader()
			})
		}
	}()

	return a.app.Run()
}

func (a *App) setupKeyBindings() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case 'r':
				a.reloadSelected()
				return nil
			}
		}
		return event
	})
}

// refresh fetches the resource list from the daemon.
func (a *App) refresh() {
	health, err := a.client.Health()
	if err != nil {
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()
		return
	}

	resources, err := a.client.Resources()

	a.mu.Lock()
	a.uid = health.UID
	a.root = health.Root
	a.lastErr = err
	if err == nil {
		a.resources = resources
	}
	a.mu.Unlock()
}

// reloadSelected triggers a reload of the resource under the cursor. The
// daemon identifies resources by relative name, so the base path is
// stripped from the canonical filename shown in the table.
func (a *App) reloadSelected() {
	row, _ := a.table.GetSelection()
	if row < 1 {
		return
	}
	cell := a.table.GetCell(row, 0)
	if cell == nil {
		return
	}
	filename, ok := cell.GetReference().(string)
	if !ok {
		return
	}

	a.mu.Lock()
	root := a.root
	a.mu.Unlock()

	name := strings.TrimPrefix(strings.TrimPrefix(filename, root), "/")

	go func() {
		err := a.client.Reload(name)
		a.mu.Lock()
		if err != nil {
			a.message = fmt.Sprintf("reload %s failed: %v", name, err)
		} else {
			a.message = fmt.Sprintf("reload of %s requested", name)
		}
		a.mu.Unlock()
		a.app.QueueUpdateDraw(func() {
			a.updateHeader()
		})
	}()
}

func (a *App) updateHeader() {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := fmt.Sprintf(" [white]kiln [yellow]%s[white]  factory %s  %d resources",
		a.serverAddr, a.uid, len(a.resources))
	if a.lastErr != nil {
		status += fmt.Sprintf("  [red]error: %v", a.lastErr)
	}
	if a.message != "" {
		status += "  [green]" + a.message
	}
	a.header.SetText(status)
}

func (a *App) updateTable() {
	a.mu.Lock()
	resources := a.resources
	a.mu.Unlock()

	a.table.Clear()

	headers := []string{"FILENAME", "EXTENSION", "REFS"}
	for col, h := range headers {
		a.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}

	for i, r := range resources {
		row := i + 1
		a.table.SetCell(row, 0, tview.NewTableCell(r.Filename).SetReference(r.Filename).SetExpansion(1))
		a.table.SetCell(row, 1, tview.NewTableCell(r.Extension))
		a.table.SetCell(row, 2, tview.NewTableCell(strconv.FormatUint(uint64(r.ReferenceCount), 10)))
	}
}
