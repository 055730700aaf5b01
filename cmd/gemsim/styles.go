package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ccff"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666688"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ff88"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00")).
			MarginTop(1)
)

func heading(w io.Writer, title, detail string) {
	if detail == "" {
		fmt.Fprintln(w, titleStyle.Render(title))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(title)+"  "+subtleStyle.Render(detail))
}

func section(w io.Writer, name string) {
	fmt.Fprintln(w, sectionStyle.Render(name))
}

func statusText(ok bool, s string) string {
	if ok {
		return okStyle.Render(s)
	}
	return failStyle.Render(s)
}
