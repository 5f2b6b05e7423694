// ABOUTME: Tests for the SQLite conversation store and its invariants.
// ABOUTME: Covers thread lifecycle, title derivation, placeholder semantics, and persistence across reopen.
package conversation

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389-research/kicksight/classify"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "conversations.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesInitialThread(t *testing.T) {
	s := openStore(t)

	threads, err := s.Threads()
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("got %d threads, want 1", len(threads))
	}

	active, err := s.ActiveThread()
	if err != nil {
		t.Fatalf("ActiveThread: %v", err)
	}
	if active.ID != threads[0].ID {
		t.Errorf("active = %q, want %q", active.ID, threads[0].ID)
	}
	if active.SessionToken == "" {
		t.Error("expected a session token")
	}
	if active.SessionToken == active.ID {
		t.Error("session token must be distinct from the thread id")
	}
}

func TestDeleteLastThreadRejected(t *testing.T) {
	s := openStore(t)
	active, _ := s.ActiveThread()

	if err := s.DeleteThread(active.ID); !errors.Is(err, ErrLastThread) {
		t.Fatalf("err = %v, want ErrLastThread", err)
	}

	threads, _ := s.Threads()
	if len(threads) != 1 {
		t.Errorf("thread list changed: %d threads", len(threads))
	}
}

func TestDeleteActiveThreadActivatesAnother(t *testing.T) {
	s := openStore(t)
	first, _ := s.ActiveThread()
	second, err := s.NewThread()
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}

	if err := s.DeleteThread(second.ID); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	active, err := s.ActiveThread()
	if err != nil {
		t.Fatalf("ActiveThread: %v", err)
	}
	if active.ID != first.ID {
		t.Errorf("active = %q, want %q", active.ID, first.ID)
	}
}

func TestTitleDerivedFromFirstUserMessage(t *testing.T) {
	s := openStore(t)
	th, _ := s.ActiveThread()

	long := "2024년 월별 채널별 VOC 접수 현황을 카테고리별로 정리해서 알려주세요"
	if _, err := s.AppendUser(th.ID, long); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}
	if _, err := s.AppendUser(th.ID, "short follow-up"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}

	threads, _ := s.Threads()
	title := threads[0].Title
	if !strings.HasSuffix(title, "...") {
		t.Errorf("title = %q, want ellipsis suffix", title)
	}
	if got := len([]rune(strings.TrimSuffix(title, "..."))); got != 30 {
		t.Errorf("title length = %d runes, want 30", got)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(title, "...")) {
		t.Errorf("title %q is not a prefix of the first message", title)
	}
}

func TestDeriveTitleShort(t *testing.T) {
	if got := DeriveTitle("hello"); got != "hello" {
		t.Errorf("DeriveTitle = %q", got)
	}
}

func TestPlaceholderLifecycle(t *testing.T) {
	s := openStore(t)
	th, _ := s.ActiveThread()

	ph, err := s.BeginPlaceholder(th.ID)
	if err != nil {
		t.Fatalf("BeginPlaceholder: %v", err)
	}
	if ph.Role != RoleInProgress {
		t.Errorf("role = %q", ph.Role)
	}

	// Second placeholder for the same thread is refused.
	if _, err := s.BeginPlaceholder(th.ID); !errors.Is(err, ErrPlaceholderExists) {
		t.Fatalf("err = %v, want ErrPlaceholderExists", err)
	}

	s.UpdatePlaceholder(th.ID, []string{"one", "two"}, "🤖")
	msgs, _ := s.Messages(th.ID)
	last := msgs[len(msgs)-1]
	if last.Role != RoleInProgress || len(last.Progress) != 2 {
		t.Errorf("placeholder = %+v", last)
	}

	result := classify.Classify("all done")
	if err := s.ReplacePlaceholder(th.ID, Message{Result: &result}); err != nil {
		t.Fatalf("ReplacePlaceholder: %v", err)
	}

	msgs, _ = s.Messages(th.ID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != RoleAssistant || msgs[0].Result == nil {
		t.Errorf("final = %+v", msgs[0])
	}
	if s.HasPlaceholder(th.ID) {
		t.Error("placeholder should be gone after replacement")
	}
}

func TestClearPlaceholder(t *testing.T) {
	s := openStore(t)
	th, _ := s.ActiveThread()

	if _, err := s.BeginPlaceholder(th.ID); err != nil {
		t.Fatalf("BeginPlaceholder: %v", err)
	}
	s.ClearPlaceholder(th.ID)

	msgs, _ := s.Messages(th.ID)
	if len(msgs) != 0 {
		t.Errorf("abandoned placeholder leaked into messages: %+v", msgs)
	}
}

func TestPlaceholderNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	th, _ := s.ActiveThread()
	if _, err := s.BeginPlaceholder(th.ID); err != nil {
		t.Fatalf("BeginPlaceholder: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()

	msgs, _ := s2.Messages(th.ID)
	if len(msgs) != 0 {
		t.Errorf("placeholder survived restart: %+v", msgs)
	}
}

func TestMessagesPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	th, _ := s.ActiveThread()
	if _, err := s.AppendUser(th.ID, "질문입니다"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}
	result := classify.Classify(map[string]any{"query_id": "Q1", "explanation": "설명"})
	if err := s.ReplacePlaceholder(th.ID, Message{Result: &result}); err != nil {
		t.Fatalf("ReplacePlaceholder: %v", err)
	}
	_ = s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()

	msgs, err := s2.Messages(th.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Text != "질문입니다" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Result == nil || msgs[1].Result.Kind != classify.KindAgent {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if msgs[1].Result.Agent.QueryID != "Q1" {
		t.Errorf("round-tripped QueryID = %q", msgs[1].Result.Agent.QueryID)
	}
}

func TestSessionTokenUnknownThread(t *testing.T) {
	s := openStore(t)
	if _, err := s.SessionToken("nope"); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("err = %v, want ErrThreadNotFound", err)
	}
}
