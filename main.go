// Package main provides the entry point for the AuNP results viewer.
//
// Usage: aunp-viewer [results-dir | experiment.yaml]
package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"aunp-classifier/internal/app"
	"aunp-classifier/internal/config"
	"aunp-classifier/internal/version"
	"aunp-classifier/ui/mainwindow"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "org.aunp.classifier.viewer"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s", version.String())

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(app.NewViewerTheme())

	state := app.NewState()
	win := mainwindow.New(fyneApp, state)

	if len(os.Args) > 1 {
		dir, err := resultsDir(os.Args[1])
		if err != nil {
			log.Printf("Failed to read %s: %v", os.Args[1], err)
		} else if err := win.OpenResults(dir); err != nil {
			log.Printf("Failed to open results %s: %v", dir, err)
		}
	} else {
		win.RestoreLastResults()
	}

	win.ShowAndRun()
}

// resultsDir maps an experiment file onto its output root; anything else is
// taken as the results directory itself.
func resultsDir(arg string) (string, error) {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml":
		cfg, err := config.Load(arg)
		if err != nil {
			return "", err
		}
		return cfg.Resolve(cfg.Outputs.Root), nil
	}
	return arg, nil
}
