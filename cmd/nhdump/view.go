package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/nativehandle/handle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fdStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	intStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	invalidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// slot is one trailing entry of a handle, ready for display.
type slot struct {
	kind  string // "fd" or "int"
	index int
	value int32
}

func (s slot) status() string {
	if s.kind == "fd" && s.value < 0 {
		return "invalid"
	}
	if s.kind == "fd" {
		return "live"
	}
	return ""
}

func slots(h *handle.Handle) []slot {
	var out []slot
	for i, fd := range h.Fds() {
		out = append(out, slot{kind: "fd", index: i, value: int32(fd)})
	}
	for i, v := range h.Ints() {
		out = append(out, slot{kind: "int", index: i, value: v})
	}
	return out
}

func render(name string, h *handle.Handle, styled bool) string {
	paint := func(s lipgloss.Style, text string) string {
		if styled {
			return s.Render(text)
		}
		return text
	}

	var b strings.Builder
	b.WriteString(paint(titleStyle, "native handle"))
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString("\n")
	fmt.Fprintf(&b, "version %d, %d fds, %d ints, %d bytes\n",
		h.Version(), h.NumFds(), h.NumInts(), h.LayoutSize())

	for _, s := range slots(h) {
		label := fmt.Sprintf("  %-3s[%d] = %d", s.kind, s.index, s.value)
		switch {
		case s.status() == "invalid":
			b.WriteString(paint(invalidStyle, label+" (invalid)"))
		case s.kind == "fd":
			b.WriteString(paint(fdStyle, label))
		default:
			b.WriteString(paint(intStyle, label))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type jsonHandle struct {
	Fds     []int   `json:"fds"`
	Ints    []int32 `json:"ints"`
	Version int     `json:"version"`
	NumFds  int     `json:"num_fds"`
	NumInts int     `json:"num_ints"`
}

func toJSON(h *handle.Handle) jsonHandle {
	return jsonHandle{
		Version: h.Version(),
		NumFds:  h.NumFds(),
		NumInts: h.NumInts(),
		Fds:     h.Fds(),
		Ints:    h.Ints(),
	}
}

func rowCells(s slot) []string {
	return []string{s.kind, strconv.Itoa(s.index), strconv.Itoa(int(s.value)), s.status()}
}
