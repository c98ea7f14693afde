// Package mainwindow provides the results viewer window.
package mainwindow

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"aunp-classifier/internal/app"
	"aunp-classifier/internal/version"
	"aunp-classifier/ui/panels"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	prefKeyLastDir     = "lastDirectory"
	prefKeyResultsDir  = "lastResultsDirectory"
	watchInterval      = 500 * time.Millisecond
	defaultWindowTitle = "AuNP Results"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app          fyne.App
	state        *app.State
	resultsPanel *panels.ResultsPanel
	detail       *fyne.Container
	statusBar    *widget.Label

	watcher *app.ResultsWatcher
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State) *MainWindow {
	win := fyneApp.NewWindow(defaultWindowTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.SetOnClosed(mw.stopWatching)

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.resultsPanel = panels.NewResultsPanel(mw.state)
	mw.statusBar = widget.NewLabel("Ready")
	mw.detail = container.NewStack(widget.NewLabel("Select a figure or table"))

	// Results list | selected figure or table
	split := container.NewHSplit(mw.resultsPanel.Container(), mw.detail)
	split.SetOffset(0.25)

	content := container.NewBorder(
		nil,                               // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		split,                             // center
	)

	mw.SetContent(content)
	mw.Resize(fyne.NewSize(1200, 800))
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Results Folder...", mw.onOpenResults),
		fyne.NewMenuItem("Reload", mw.onReload),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventResultsLoaded, func(data interface{}) {
		if dir, ok := data.(string); ok {
			mw.SetTitle(defaultWindowTitle + " - " + filepath.Base(dir))
			entries, _ := mw.state.Snapshot()
			mw.updateStatus(fmt.Sprintf("%s: %d results", dir, len(entries)))
		}
	})

	mw.state.On(app.EventSelectionChanged, func(data interface{}) {
		entry, ok := data.(app.Entry)
		if !ok {
			return
		}
		mw.detail.Objects = []fyne.CanvasObject{panels.NewEntryView(entry)}
		mw.detail.Refresh()
		mw.updateStatus(fmt.Sprintf("%s (%s)", entry.Rel, entry.Kind))
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// OpenResults shows dir and follows changes below it.
func (mw *MainWindow) OpenResults(dir string) error {
	if err := mw.state.Open(dir); err != nil {
		return err
	}
	mw.app.Preferences().SetString(prefKeyResultsDir, mw.state.ResultsDir)
	mw.watch(mw.state.ResultsDir)
	return nil
}

// RestoreLastResults reopens the results directory of the previous session.
func (mw *MainWindow) RestoreLastResults() {
	dir := mw.app.Preferences().String(prefKeyResultsDir)
	if dir == "" {
		return
	}
	if err := mw.OpenResults(dir); err != nil {
		log.Printf("Failed to reopen results %s: %v", dir, err)
	}
}

func (mw *MainWindow) watch(dir string) {
	mw.stopWatching()
	w, err := app.NewResultsWatcher(dir, watchInterval)
	if err != nil {
		log.Printf("Results watch disabled: %v", err)
		return
	}
	w.OnChange(func() {
		if err := mw.state.Rescan(); err != nil {
			log.Printf("Rescan %s: %v", dir, err)
		}
	})
	w.Start()
	mw.watcher = w
}

func (mw *MainWindow) stopWatching() {
	if mw.watcher != nil {
		mw.watcher.Stop()
		mw.watcher = nil
	}
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// Menu action handlers

func (mw *MainWindow) onOpenResults() {
	fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		path := uri.Path()
		mw.app.Preferences().SetString(prefKeyLastDir, filepath.Dir(path))
		if err := mw.OpenResults(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onReload() {
	if err := mw.state.Rescan(); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About AuNP Results",
		fmt.Sprintf("AuNP Results v%s\n\n"+
			"Browses the heatmaps, importance charts and report\n"+
			"sheets written by the aunp command.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
