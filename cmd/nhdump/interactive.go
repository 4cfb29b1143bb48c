package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/nativehandle/handle"
)

type interactiveModel struct {
	handle   *handle.Handle
	name     string
	slots    []slot
	table    table.Model
	showHelp bool
}

func newInteractiveModel(name string, h *handle.Handle) *interactiveModel {
	ss := slots(h)
	rows := make([]table.Row, len(ss))
	for i, s := range ss {
		rows[i] = table.Row(rowCells(s))
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "kind", Width: 5},
			{Title: "slot", Width: 6},
			{Title: "value", Width: 12},
			{Title: "status", Width: 8},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(max(len(rows), 1), 16)),
	)

	return &interactiveModel{
		handle: h,
		name:   name,
		slots:  ss,
		table:  t,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("native handle"))
	b.WriteString(" ")
	b.WriteString(m.name)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("version %d • %d fds • %d ints\n\n",
		m.handle.Version(), m.handle.NumFds(), m.handle.NumInts()))

	if len(m.slots) == 0 {
		b.WriteString("(no slots)\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
		if s := m.selected(); s != nil {
			b.WriteString(m.describe(*s))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(helpStyle.Render("Descriptor values are only meaningful in the process that produced the layout."))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • ? help • q quit"))
	return b.String()
}

func (m *interactiveModel) selected() *slot {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.slots) {
		return nil
	}
	return &m.slots[i]
}

func (m *interactiveModel) describe(s slot) string {
	switch {
	case s.kind == "int":
		return intStyle.Render(fmt.Sprintf("int[%d] = %d (0x%08x)", s.index, s.value, uint32(s.value)))
	case s.value < 0:
		return invalidStyle.Render(fmt.Sprintf("fd[%d] is empty or closed", s.index))
	}
	return fdStyle.Render(fmt.Sprintf("fd[%d] = descriptor %d", s.index, s.value))
}
