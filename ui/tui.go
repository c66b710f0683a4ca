package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/richinsley/goshadersound/monitor"
	"github.com/richinsley/goshadersound/session"
)

// Run shows the TUI for sess until the user quits. load re-renders the
// shader source on `r` and, with loadNow, once at start; it may be nil.
func Run(sess *session.Session, load Loader, title string, loadNow bool) error {
	analyzer := monitor.NewAnalyzer(sess.Mixer().Tap(), 16)
	m := NewModel(sess.Transport(), analyzer, load, sess.PollInterval(), title)
	m.errText = sess.ErrorText()
	m.loadNow = loadNow && load != nil

	p := tea.NewProgram(m, tea.WithAltScreen())

	sess.SetProgress(func(block, total int) {
		p.Send(ProgressMsg{Block: block, Total: total})
	})
	defer sess.SetProgress(nil)
	sess.Diagnostics().Subscribe(func(text string) {
		p.Send(DiagnosticsMsg(text))
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}

// FileLoader returns a Loader that calls read for fresh source every time.
func FileLoader(sess *session.Session, read func() (string, error)) Loader {
	return func(ctx context.Context) error {
		src, err := read()
		if err != nil {
			return err
		}
		return sess.Load(ctx, src)
	}
}
