package main

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

// newWatchCommand renders a terminal dashboard of cache statistics and the
// active session count, refreshed on a tick. Recent errors are not shown.
func newWatchCommand() *cobra.Command {
	var (
		dbPath   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live terminal dashboard of cache and session activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(dbPath)
			if err != nil {
				return err
			}
			if a.store != nil {
				defer a.store.Close()
			}
			return runWatchDashboard(a, interval)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "optional sqlite path; the dashboard shows live in-process stats only and reads no snapshots from it")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}

func runWatchDashboard(a *app, interval time.Duration) error {
	cacheView := tview.NewTextView().SetDynamicColors(true)
	cacheView.SetBorder(true).SetTitle(" cache ")

	sessionView := tview.NewTextView().SetDynamicColors(true)
	sessionView.SetBorder(true).SetTitle(" sessions ")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(cacheView, 0, 1, false).
		AddItem(sessionView, 0, 1, false)

	appUI := tview.NewApplication().SetRoot(layout, true)

	refresh := func() {
		stats := a.cache.GetStats()
		appUI.QueueUpdateDraw(func() {
			cacheView.SetText(fmt.Sprintf(
				"[yellow]hits:[-] %d  [yellow]misses:[-] %d  [yellow]hit rate:[-] %.1f%%\n"+
					"[yellow]size:[-] %d/%d  [yellow]compressed:[-] %d  [yellow]bytes saved:[-] %d",
				stats.Hits, stats.Misses, stats.HitRate*100,
				stats.Size, stats.MaxSize, stats.CompressedEntries, stats.CompressionBytesSaved,
			))
			sessionView.SetText(fmt.Sprintf("[yellow]active sessions:[-] %d", a.sessions.ActiveSessionCount()))
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	done := make(chan struct{})

	go func() {
		refresh()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-done:
				return
			}
		}
	}()

	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			appUI.Stop()
			return nil
		}
		return event
	})

	err := appUI.Run()
	close(done)
	return err
}
