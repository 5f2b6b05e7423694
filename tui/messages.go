// ABOUTME: Bubble Tea message types and commands bridging the session runner into the chat UI.
// ABOUTME: Stream updates arrive over a channel; toasts expire on timers.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StreamUpdateMsg reports that a thread's visible state changed: new progress
// lines or a resolved request.
type StreamUpdateMsg struct {
	ThreadID string
}

// ToastMsg shows a transient notice.
type ToastMsg struct {
	Text string
}

// NoticeMsg carries a user-facing notice raised outside the Update loop,
// such as an embed-cache validation failure or "already open" message.
type NoticeMsg struct {
	Text string
}

// ToastExpiredMsg dismisses the toast with the matching sequence number.
type ToastExpiredMsg struct {
	Seq int
}

// WaitForStreamUpdateCmd blocks on the runner's notification channel and
// converts the next update into a message. The Update loop re-issues it after
// every delivery to keep listening.
func WaitForStreamUpdateCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		threadID, ok := <-ch
		if !ok {
			return nil
		}
		return StreamUpdateMsg{ThreadID: threadID}
	}
}

// WaitForNoticeCmd blocks on the notice channel fed by the embed cache's
// notify callback and converts the next notice into a message. Re-issued
// after every delivery, like the stream listener.
func WaitForNoticeCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg{Text: text}
	}
}

// ExpireToastCmd schedules dismissal of toast seq after the given duration.
func ExpireToastCmd(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return ToastExpiredMsg{Seq: seq}
	})
}
