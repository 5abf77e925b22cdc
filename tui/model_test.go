package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus/hooks/test"

	"kanban-board/board"
	"kanban-board/domain"
	"kanban-board/nav"
	"kanban-board/notify"
	"kanban-board/remote"
	"kanban-board/storage"
)

func newTestModel(t *testing.T, failureRate float64) (*Model, *board.Store, *notify.Toaster) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	mock := remote.NewMock(storage.NewSlotCollection(storage.NewMemorySlot()),
		remote.WithLatency(0, 0),
		remote.WithFailureRate(failureRate),
		remote.WithLogger(logger))
	toaster := notify.NewToaster(notify.DefaultTTL)
	store, err := board.New(context.Background(), mock, board.WithNotifier(toaster), board.WithLogger(logger))
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	return New(context.Background(), store, toaster), store, toaster
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// press sends a key and runs the returned command once, feeding its message
// back into the model.
func press(t *testing.T, m *Model, k string) {
	t.Helper()
	_, cmd := m.Update(key(k))
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		if _, ok := msg.(opDoneMsg); ok {
			m.Update(msg)
		}
	}
}

func loginAndLoad(t *testing.T, m *Model) {
	t.Helper()
	typeText(m, "ada")
	press(t, m, "enter")
	if m.route != nav.Board {
		t.Fatalf("expected board route after login, got %q", m.route)
	}
}

func TestLandingRequiresUsername(t *testing.T) {
	m, store, _ := newTestModel(t, 0)
	if m.route != nav.Landing {
		t.Fatalf("expected landing route, got %q", m.route)
	}

	press(t, m, "enter")
	if m.route != nav.Landing || m.loginErr == "" {
		t.Fatalf("expected blank login to be rejected")
	}
	if _, ok := store.User(); ok {
		t.Fatalf("expected no user")
	}
	if !strings.Contains(m.View(), "Log in") {
		t.Fatalf("expected landing view, got %q", m.View())
	}
}

func TestLoginLoadsBoard(t *testing.T) {
	m, store, _ := newTestModel(t, 0)
	loginAndLoad(t, m)

	if u, ok := store.User(); !ok || u.Username != "ada" {
		t.Fatalf("expected ada logged in, got %#v", u)
	}
	if got := len(store.Tasks()); got != 3 {
		t.Fatalf("expected seeded tasks, got %d", got)
	}
	view := m.View()
	for _, want := range []string{"To Do (1)", "In Progress (1)", "Done (1)", "Task 1", "ada"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestKeyboardDragMovesTask(t *testing.T) {
	m, store, _ := newTestModel(t, 0)
	loginAndLoad(t, m)

	press(t, m, "space")
	if m.grabbed != "1" {
		t.Fatalf("expected task 1 grabbed, got %q", m.grabbed)
	}
	if !strings.Contains(m.View(), "Dragging: Task 1") {
		t.Fatalf("expected drag overlay")
	}
	press(t, m, "right")
	press(t, m, "right")
	press(t, m, "space")

	if m.grabbed != "" {
		t.Fatalf("expected drop to release task")
	}
	if m.lastOp.op != "move moved" || m.lastOp.outcome != board.Confirmed.String() {
		t.Fatalf("unexpected last op %#v", m.lastOp)
	}
	if done := store.TasksByStatus(domain.StatusDone); len(done) != 2 {
		t.Fatalf("expected two DONE tasks, got %#v", done)
	}
}

func TestDropInSameColumnIsNoop(t *testing.T) {
	m, store, _ := newTestModel(t, 0)
	loginAndLoad(t, m)
	before := store.Tasks()

	press(t, m, "space")
	press(t, m, "enter")

	if m.lastOp.op != "move same column" || m.lastOp.outcome != board.Skipped.String() {
		t.Fatalf("unexpected last op %#v", m.lastOp)
	}
	after := store.Tasks()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("tasks changed: %#v", after)
		}
	}
}

func TestEscCancelsDrag(t *testing.T) {
	m, _, _ := newTestModel(t, 0)
	loginAndLoad(t, m)

	press(t, m, "space")
	press(t, m, "right")
	press(t, m, "esc")
	if m.grabbed != "" {
		t.Fatalf("expected esc to cancel the drag")
	}
	if _, ok := m.drag.Active(); ok {
		t.Fatalf("expected translator to have no active task")
	}
}

func TestAddAndDelete(t *testing.T) {
	m, store, _ := newTestModel(t, 0)
	loginAndLoad(t, m)

	press(t, m, "right")
	press(t, m, "a")
	typeText(m, "Buy milk")
	press(t, m, "enter")

	inProgress := store.TasksByStatus(domain.StatusInProgress)
	if len(inProgress) != 2 || inProgress[1].Title != "Buy milk" {
		t.Fatalf("expected new task in IN_PROGRESS, got %#v", inProgress)
	}

	press(t, m, "down")
	press(t, m, "d")
	inProgress = store.TasksByStatus(domain.StatusInProgress)
	if len(inProgress) != 1 || inProgress[0].Title != "Task 2" {
		t.Fatalf("expected Buy milk deleted, got %#v", inProgress)
	}
}

func TestFailedAddShowsToast(t *testing.T) {
	m, _, toaster := newTestModel(t, 0)
	loginAndLoad(t, m)

	failing, err := board.New(context.Background(), remote.NewMock(storage.NewSlotCollection(storage.NewMemorySlot()),
		remote.WithLatency(0, 0), remote.WithFailureRate(1)), board.WithNotifier(toaster))
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	m.store = failing

	press(t, m, "a")
	typeText(m, "Buy milk")
	press(t, m, "enter")

	if len(failing.Tasks()) != 0 {
		t.Fatalf("expected provisional task to be rolled back")
	}
	if !strings.Contains(m.View(), board.MsgAddFailed) {
		t.Fatalf("expected toast in view:\n%s", m.View())
	}
}

func TestLogoutReturnsToLanding(t *testing.T) {
	m, store, _ := newTestModel(t, 0)
	loginAndLoad(t, m)

	press(t, m, "L")
	if m.route != nav.Landing {
		t.Fatalf("expected landing route after logout, got %q", m.route)
	}
	if st := store.State(); st.User != nil || len(st.Tasks) != 0 {
		t.Fatalf("expected cleared state, got %#v", st)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, 0)
	loginAndLoad(t, m)

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Fatalf("expected empty view after quit")
	}
}
