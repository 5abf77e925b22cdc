// Package tui is the terminal front end of the board: a login view and a
// three column board driven by the keyboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kanban-board/board"
	"kanban-board/domain"
	"kanban-board/drag"
	"kanban-board/nav"
	"kanban-board/notify"
)

const toastTick = 500 * time.Millisecond

type (
	stateChangedMsg struct{}
	toastMsg        notify.Toast
	tickMsg         time.Time
	// opDoneMsg reports that a store operation issued from a command settled.
	opDoneMsg struct {
		op      string
		outcome string
	}
)

// Model is the bubbletea model for the whole application.
type Model struct {
	ctx     context.Context
	store   *board.Store
	drag    *drag.Translator
	toaster *notify.Toaster
	changes chan struct{}
	toasts  chan notify.Toast

	route    string
	login    textinput.Model
	title    textinput.Model
	adding   bool
	loginErr string
	col      int
	row      int
	grabbed  string
	overCol  int
	lastOp   opDoneMsg
	width    int
	quitting bool
}

// New builds the model. The store's state decides the initial route.
func New(ctx context.Context, store *board.Store, toaster *notify.Toaster) *Model {
	login := textinput.New()
	login.Placeholder = "username"
	login.CharLimit = 64
	login.Focus()

	title := textinput.New()
	title.Placeholder = "task title"
	title.CharLimit = 200

	_, loggedIn := store.User()
	return &Model{
		ctx:     ctx,
		store:   store,
		drag:    drag.New(store),
		toaster: toaster,
		route:   nav.Resolve(nav.Board, loggedIn),
		login:   login,
		title:   title,
	}
}

func (m *Model) Init() tea.Cmd {
	m.changes = m.store.Subscribe()
	cmds := []tea.Cmd{textinput.Blink, waitForChange(m.changes), tick()}
	if m.toaster != nil {
		m.toasts = m.toaster.Subscribe()
		cmds = append(cmds, waitForToast(m.toasts))
	}
	if m.route == nav.Board {
		cmds = append(cmds, m.loadTasks())
	}
	return tea.Batch(cmds...)
}

func waitForChange(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func waitForToast(ch chan notify.Toast) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg(t)
	}
}

func tick() tea.Cmd {
	return tea.Tick(toastTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case stateChangedMsg:
		m.clampCursor()
		return m, waitForChange(m.changes)
	case toastMsg:
		return m, waitForToast(m.toasts)
	case tickMsg:
		return m, tick()
	case opDoneMsg:
		m.lastOp = msg
		m.clampCursor()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}
		if m.route == nav.Landing {
			return m.updateLanding(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.changes != nil {
		m.store.Unsubscribe(m.changes)
	}
	if m.toasts != nil {
		m.toaster.Unsubscribe(m.toasts)
	}
	return m, tea.Quit
}

func (m *Model) updateLanding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.quit()
	case tea.KeyEnter:
		if err := m.store.Login(m.ctx, m.login.Value()); err != nil {
			m.loginErr = err.Error()
			return m, nil
		}
		m.loginErr = ""
		m.login.Reset()
		m.route = nav.Resolve(nav.Landing, true)
		return m, m.loadTasks()
	}
	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	return m, cmd
}

func (m *Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.adding {
		return m.updateAdding(msg)
	}
	if m.grabbed != "" {
		return m.updateDragging(msg)
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "left", "h":
		m.moveCol(-1)
	case "right", "l":
		m.moveCol(1)
	case "up", "k":
		if m.row > 0 {
			m.row--
		}
	case "down", "j":
		if m.row < len(m.column(m.col))-1 {
			m.row++
		}
	case " ", "space":
		if t, ok := m.selected(); ok {
			m.grabbed = t.ID
			m.overCol = m.col
			m.drag.Start(t.ID)
		}
	case "a":
		m.adding = true
		m.title.Reset()
		m.title.Focus()
		return m, textinput.Blink
	case "d", "x":
		if t, ok := m.selected(); ok {
			id := t.ID
			return m, func() tea.Msg {
				return opDoneMsg{op: "delete", outcome: m.store.DeleteTask(m.ctx, id).String()}
			}
		}
	case "r":
		return m, m.loadTasks()
	case "L":
		if err := m.store.Logout(m.ctx); err != nil {
			m.loginErr = err.Error()
		}
		m.route = nav.Resolve(nav.Board, false)
		m.col, m.row = 0, 0
		m.login.Focus()
	}
	return m, nil
}

// updateDragging handles keys while a task is held: left and right hover
// over columns, space or enter drops, esc cancels.
func (m *Model) updateDragging(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		if m.overCol > 0 {
			m.overCol--
		}
		m.drag.Over(m.grabbed, string(domain.Statuses[m.overCol]))
	case "right", "l":
		if m.overCol < len(domain.Statuses)-1 {
			m.overCol++
		}
		m.drag.Over(m.grabbed, string(domain.Statuses[m.overCol]))
	case "esc":
		m.drag.Cancel()
		m.grabbed = ""
	case " ", "space", "enter":
		id, over := m.grabbed, string(domain.Statuses[m.overCol])
		m.grabbed = ""
		m.col, m.row = m.overCol, 0
		return m, func() tea.Msg {
			res, out := m.drag.End(m.ctx, id, over)
			return opDoneMsg{op: "move " + res.String(), outcome: out.String()}
		}
	}
	return m, nil
}

func (m *Model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.adding = false
		m.title.Blur()
		return m, nil
	case tea.KeyEnter:
		title, status := m.title.Value(), domain.Statuses[m.col]
		m.adding = false
		m.title.Blur()
		return m, func() tea.Msg {
			return opDoneMsg{op: "add", outcome: m.store.AddTask(m.ctx, title, status).String()}
		}
	}
	var cmd tea.Cmd
	m.title, cmd = m.title.Update(msg)
	return m, cmd
}

func (m *Model) loadTasks() tea.Cmd {
	return func() tea.Msg {
		m.store.LoadTasks(m.ctx)
		return opDoneMsg{op: "load"}
	}
}

func (m *Model) moveCol(delta int) {
	next := m.col + delta
	if next < 0 || next >= len(domain.Statuses) {
		return
	}
	m.col = next
	m.clampCursor()
}

func (m *Model) column(i int) []domain.Task {
	return m.store.TasksByStatus(domain.Statuses[i])
}

func (m *Model) selected() (domain.Task, bool) {
	tasks := m.column(m.col)
	if m.row < 0 || m.row >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.row], true
}

func (m *Model) clampCursor() {
	n := len(m.column(m.col))
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.route == nav.Landing {
		b.WriteString(titleStyle.Render("Kanban Board"))
		b.WriteString("\n\nLog in to see your board.\n\n")
		b.WriteString(m.login.View())
		if m.loginErr != "" {
			b.WriteString("\n" + errorStyle.Render(m.loginErr))
		}
		b.WriteString("\n\n" + helpStyle.Render("enter: log in • esc: quit"))
	} else {
		b.WriteString(m.boardView())
	}
	if toasts := m.renderToasts(); toasts != "" {
		b.WriteString("\n\n" + toasts)
	}
	return b.String()
}

func (m *Model) boardView() string {
	st := m.store.State()
	var b strings.Builder
	header := "Kanban Board"
	if st.User != nil {
		header += " • " + st.User.Username
	}
	b.WriteString(titleStyle.Render(header))
	if st.IsLoading {
		b.WriteString(helpStyle.Render("  loading…"))
	}
	b.WriteString("\n")
	if st.Error != "" {
		b.WriteString(errorStyle.Render(st.Error) + "\n")
	}

	cols := make([]string, len(domain.Statuses))
	for i, status := range domain.Statuses {
		cols[i] = m.renderColumn(i, status, domain.FilterByStatus(st.Tasks, status))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n")

	if m.adding {
		b.WriteString(fmt.Sprintf("New task in %s: %s\n", domain.Statuses[m.col].Label(), m.title.View()))
	}
	if t, ok := m.drag.Active(); ok {
		b.WriteString(draggingStyle.Render("Dragging: "+t.Title) + "\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m *Model) renderColumn(i int, status domain.Status, tasks []domain.Task) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks))))
	for j, t := range tasks {
		b.WriteString("\n")
		line := "• " + t.Title
		switch {
		case t.ID == m.grabbed:
			b.WriteString(draggingStyle.Render(line))
		case m.grabbed == "" && i == m.col && j == m.row:
			b.WriteString(cursorStyle.Render(line))
		default:
			b.WriteString(cardStyle.Render(line))
		}
	}
	style := columnStyle
	if m.grabbed != "" && i == m.overCol {
		style = dropTargetStyle
	}
	return style.Render(b.String())
}

func (m *Model) help() string {
	switch {
	case m.adding:
		return "enter: add • esc: cancel"
	case m.grabbed != "":
		return "←/→: choose column • space/enter: drop • esc: cancel"
	default:
		return "←/→/↑/↓: move • space: grab • a: add • d: delete • r: reload • L: log out • q: quit"
	}
}

func (m *Model) renderToasts() string {
	if m.toaster == nil {
		return ""
	}
	active := m.toaster.Active()
	lines := make([]string, 0, len(active))
	for _, t := range active {
		lines = append(lines, toastStyle.Render(t.Message))
	}
	return strings.Join(lines, "\n")
}
