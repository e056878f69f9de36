// Package ui renders terminal output for the CLI: a spinner while the
// fallback chains run and a styled card for the result.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"tiktokzone/internal/respond"
)

// ErrCancelled is returned by Spin when the user quits before work ends.
var ErrCancelled = errors.New("cancelled")

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fe2c55"))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25f4ee")).
			Padding(0, 1)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type doneMsg struct{ err error }

type spinModel struct {
	spinner   spinner.Model
	label     string
	work      tea.Cmd
	done      bool
	cancelled bool
	err       error
}

func newSpinModel(label string, work func() error) spinModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return spinModel{
		spinner: s,
		label:   label,
		work:    func() tea.Msg { return doneMsg{err: work()} },
	}
}

func (m spinModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m spinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			return m, tea.Quit
		}

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinModel) View() string {
	switch {
	case m.cancelled:
		return fmt.Sprintf("  %s %s\n", errStyle.Render("✗"), "cancelled")
	case m.done && m.err != nil:
		return fmt.Sprintf("  %s %s\n", errStyle.Render("✗"), m.label)
	case m.done:
		return fmt.Sprintf("  %s %s\n", doneStyle.Render("✓"), m.label)
	}
	return fmt.Sprintf("  %s %s\n", m.spinner.View(), labelStyle.Render(m.label))
}

// Spin shows a spinner on out while work runs. Quitting early cancels the
// context handed to work and yields ErrCancelled.
func Spin(ctx context.Context, out io.Writer, label string, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newSpinModel(label, func() error { return work(ctx) })
	final, err := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("running spinner: %w", err)
	}

	fm := final.(spinModel)
	if fm.cancelled {
		return ErrCancelled
	}
	return fm.err
}

// RenderCard formats a lookup result for the terminal.
func RenderCard(r respond.Response) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "@%s", r.Profile.Username)
	if r.Duration > 0 {
		fmt.Fprintf(&b, "  %s", hintStyle.Render(fmt.Sprintf("%ds", r.Duration)))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "♥ %s   💬 %s   🔖 %s   ▶ %s\n",
		Count(r.Stats.Likes), Count(r.Stats.Comments), Count(r.Stats.Bookmarks), Count(r.Stats.Views))

	if len(r.Hashtags) > 0 {
		tags := make([]string, len(r.Hashtags))
		for i, t := range r.Hashtags {
			tags[i] = "#" + t
		}
		b.WriteString(labelStyle.Render(strings.Join(tags, " ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	writeLink(&b, "thumbnail", r.Thumbnail)
	writeLink(&b, "download", r.DownloadOptions.ProxyURL)
	writeLink(&b, "alt", r.DownloadOptions.AltProxyURL)
	writeLink(&b, "audio", r.DownloadOptions.AudioURL)
	writeLink(&b, "hd", r.DownloadOptions.HDVideoURL)

	return cardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func writeLink(b *strings.Builder, label, link string) {
	if link == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", hintStyle.Render(fmt.Sprintf("%-9s", label)), link)
}

// Count abbreviates large counters: 1234 -> 1.2K, 5600000 -> 5.6M.
func Count(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1e9)) + "B"
	case n >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1e6)) + "M"
	case n >= 1_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1e3)) + "K"
	}
	return fmt.Sprintf("%d", n)
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
