// ABOUTME: Top-level Bubble Tea chat model: transcript viewport, input textarea, thread list, and embed panel.
// ABOUTME: Routes stream updates from the session runner into the transcript and manages transient toasts.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/kicksight/conversation"
	"github.com/2389-research/kicksight/embedview"
	"github.com/2389-research/kicksight/session"
)

// toastDuration is how long a notice stays on screen.
const toastDuration = 3 * time.Second

// toast is one transient notice with its dismissal sequence number.
type toast struct {
	seq  int
	text string
}

// App is the top-level chat model.
type App struct {
	input   textarea.Model
	history viewport.Model
	spin    spinner.Model
	results *ResultView

	store   *conversation.Store
	runner  *session.Runner
	embeds  *embedview.Cache
	updates <-chan string
	notices <-chan string

	threads  []conversation.Thread
	activeID string

	toasts   []toast
	toastSeq int

	width  int
	height int
	ready  bool
}

// NewApp assembles the chat model. updates is the channel the session
// runner's notify callback feeds; notices is the channel the embed cache's
// notify callback feeds.
func NewApp(store *conversation.Store, runner *session.Runner, embeds *embedview.Cache, updates, notices <-chan string) App {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about your data..."
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return App{
		input:   ta,
		spin:    sp,
		store:   store,
		runner:  runner,
		embeds:  embeds,
		updates: updates,
		notices: notices,
	}
}

// Init implements tea.Model.
func (m App) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spin.Tick,
		WaitForStreamUpdateCmd(m.updates),
		WaitForNoticeCmd(m.notices),
	)
}

// Update implements tea.Model.
func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case StreamUpdateMsg:
		if msg.ThreadID == m.activeID {
			m.refreshTranscript()
		}
		return m, WaitForStreamUpdateCmd(m.updates)

	case ToastMsg:
		return m.addToast(msg.Text, nil)

	case NoticeMsg:
		return m.addToast(msg.Text, WaitForNoticeCmd(m.notices))

	case ToastExpiredMsg:
		kept := m.toasts[:0]
		for _, t := range m.toasts {
			if t.seq != msg.Seq {
				kept = append(kept, t)
			}
		}
		m.toasts = kept
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.runner.InFlight(m.activeID) {
			m.refreshTranscript()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m App) View() string {
	if !m.ready {
		return "Loading conversations..."
	}

	var b strings.Builder
	b.WriteString(m.renderThreadBar())
	b.WriteString("\n")

	if vis, ok := m.embeds.Visible(); ok {
		b.WriteString(m.renderEmbedPanel(vis))
		b.WriteString("\n")
	} else {
		b.WriteString(m.history.View())
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	for _, t := range m.toasts {
		b.WriteString("\n")
		b.WriteString(ToastStyle.Render(t.text))
	}
	return b.String()
}

func (m App) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	inputHeight := 3
	chrome := 3 // thread bar, status bar, spacing
	historyHeight := m.height - inputHeight - chrome
	if historyHeight < 3 {
		historyHeight = 3
	}

	if !m.ready {
		m.history = viewport.New(m.width, historyHeight)
		m.ready = true
	} else {
		m.history.Width = m.width
		m.history.Height = historyHeight
	}
	m.input.SetWidth(m.width)
	m.results = NewResultView(m.width - 2)

	m.reloadThreads()
	m.refreshTranscript()
	return m, nil
}

func (m App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if _, ok := m.embeds.Visible(); ok {
			m.embeds.Hide()
			return m, nil
		}
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "ctrl+n":
		return m.newThread()

	case "ctrl+x":
		return m.deleteActiveThread()

	case "tab":
		return m.cycleThread(1)

	case "shift+tab":
		return m.cycleThread(-1)

	case "ctrl+o":
		return m.openEmbed()

	case "ctrl+b":
		if vis, ok := m.embeds.Visible(); ok {
			if err := m.embeds.OpenExternally(vis.URL); err != nil {
				return m, m.notice(err.Error())
			}
			return m, m.notice("Opened in your browser.")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the textarea contents as a new question on the active thread.
func (m App) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if err := m.runner.Ask(context.Background(), m.activeID, text); err != nil {
		if errors.Is(err, session.ErrRequestInFlight) {
			return m, m.notice("Analysis is still running. Wait for it to finish.")
		}
		return m, m.notice(err.Error())
	}
	m.input.Reset()
	m.reloadThreads()
	m.refreshTranscript()
	return m, nil
}

// newThread abandons any in-flight request and switches to a fresh thread.
func (m App) newThread() (tea.Model, tea.Cmd) {
	m.runner.Abandon(m.activeID)
	th, err := m.store.NewThread()
	if err != nil {
		return m, m.notice(err.Error())
	}
	m.activeID = th.ID
	m.reloadThreads()
	m.refreshTranscript()
	return m, nil
}

func (m App) deleteActiveThread() (tea.Model, tea.Cmd) {
	m.runner.Abandon(m.activeID)
	if err := m.store.DeleteThread(m.activeID); err != nil {
		if errors.Is(err, conversation.ErrLastThread) {
			return m, m.notice("Cannot delete the only conversation.")
		}
		return m, m.notice(err.Error())
	}
	active, err := m.store.ActiveThread()
	if err != nil {
		return m, m.notice(err.Error())
	}
	m.activeID = active.ID
	m.reloadThreads()
	m.refreshTranscript()
	return m, nil
}

// cycleThread moves the active thread forward or backward through the list.
func (m App) cycleThread(step int) (tea.Model, tea.Cmd) {
	if len(m.threads) < 2 {
		return m, nil
	}
	idx := 0
	for i, th := range m.threads {
		if th.ID == m.activeID {
			idx = i
			break
		}
	}
	idx = (idx + step + len(m.threads)) % len(m.threads)
	next := m.threads[idx]
	if err := m.store.SetActive(next.ID); err != nil {
		return m, m.notice(err.Error())
	}
	m.activeID = next.ID
	m.embeds.Hide()
	m.refreshTranscript()
	return m, nil
}

// openEmbed shows the dashboard from the most recent embed result in the
// active thread.
func (m App) openEmbed() (tea.Model, tea.Cmd) {
	msgs, err := m.store.Messages(m.activeID)
	if err != nil {
		return m, m.notice(err.Error())
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		res := msgs[i].Result
		if res == nil || res.Embed == nil {
			continue
		}
		if err := m.embeds.Show(res.Embed.URL, res.Embed.Title); err != nil {
			return m, nil // notice already raised through the cache
		}
		return m, nil
	}
	return m, m.notice("No dashboard in this conversation yet.")
}

// notice raises a toast.
func (m App) notice(text string) tea.Cmd {
	return func() tea.Msg { return ToastMsg{Text: text} }
}

// addToast appends a toast and schedules its dismissal, batching in any
// follow-up command (such as re-arming the notice listener).
func (m App) addToast(text string, extra tea.Cmd) (tea.Model, tea.Cmd) {
	m.toastSeq++
	m.toasts = append(m.toasts, toast{seq: m.toastSeq, text: text})
	expire := ExpireToastCmd(m.toastSeq, toastDuration)
	if extra != nil {
		return m, tea.Batch(expire, extra)
	}
	return m, expire
}

func (m *App) reloadThreads() {
	threads, err := m.store.Threads()
	if err != nil {
		return
	}
	m.threads = threads
	if m.activeID == "" {
		if active, err := m.store.ActiveThread(); err == nil {
			m.activeID = active.ID
		}
	}
}

// refreshTranscript rebuilds the viewport content from the active thread's
// messages and scrolls to the bottom.
func (m *App) refreshTranscript() {
	if !m.ready || m.results == nil {
		return
	}
	msgs, err := m.store.Messages(m.activeID)
	if err != nil {
		m.history.SetContent(ErrorStyle.Render(err.Error()))
		return
	}

	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(UserLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Text)
			b.WriteString("\n\n")

		case conversation.RoleInProgress:
			b.WriteString(AssistantLabelStyle.Render(msg.Icon + " Analyzing " + m.spin.View()))
			b.WriteString("\n")
			for _, line := range msg.Progress {
				b.WriteString(ProgressStyle.Render("  " + line))
				b.WriteString("\n")
			}
			b.WriteString("\n")

		case conversation.RoleAssistant:
			b.WriteString(AssistantLabelStyle.Render("KickSight"))
			b.WriteString("\n")
			if msg.ErrText != "" {
				b.WriteString(ErrorStyle.Render(msg.ErrText))
			} else if msg.Result != nil {
				b.WriteString(m.results.Render(*msg.Result))
			}
			b.WriteString("\n\n")
		}
	}

	m.history.SetContent(b.String())
	m.history.GotoBottom()
}

func (m App) renderThreadBar() string {
	var parts []string
	for _, th := range m.threads {
		style := ThreadStyle
		if th.ID == m.activeID {
			style = ActiveThreadStyle
		}
		parts = append(parts, style.Render(th.Title))
	}
	bar := strings.Join(parts, ThreadStyle.Render(" | "))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(bar)
}

func (m App) renderEmbedPanel(e embedview.Entry) string {
	var b strings.Builder
	title := e.Title
	if title == "" {
		title = "Dashboard"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")
	if e.LoadErr != nil {
		b.WriteString(ErrorStyle.Render("The dashboard failed to load."))
		b.WriteString("\n")
		b.WriteString(ProgressStyle.Render("URL: " + e.URL))
	} else {
		b.WriteString(ValueStyle.Render("Embedded at " + e.URL))
	}
	b.WriteString("\n\n")
	b.WriteString(ProgressStyle.Render("ctrl+b open in browser | esc back to the conversation"))

	panel := EmbedStyle.Width(m.width - 4).Render(b.String())
	filler := m.history.Height - lipgloss.Height(panel)
	if filler > 0 {
		panel += strings.Repeat("\n", filler)
	}
	return panel
}

func (m App) renderStatusBar() string {
	state := "ready"
	if m.runner.InFlight(m.activeID) {
		state = "analyzing"
	}
	left := fmt.Sprintf("%d conversations | %s", len(m.threads), state)
	help := "enter send | ctrl+n new | ctrl+x delete | tab switch | ctrl+o dashboard | ctrl+c quit"
	return StatusBarStyle.MaxWidth(m.width).Render(left + " | " + help)
}
