// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/i18n"
)

// portsModel lists the serial ports detected on the system. Picking one
// opens the connect form with the device pre-filled.
type portsModel struct {
	ports  []conn.PortInfo
	cursor int
	err    error
}

func newPortsModel() portsModel {
	m := portsModel{}
	m.ports, m.err = conn.ListPorts()
	return m
}

func (m portsModel) Init() tea.Cmd {
	return nil
}

func (m portsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc":
			return m, func() tea.Msg { return backToMenuMsg{} }
		case "r":
			return newPortsModel(), nil
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.ports)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor >= 0 && m.cursor < len(m.ports) {
				sc := conn.DefaultSerialConfig()
				sc.Path = m.ports[m.cursor].Device
				cfg := conn.Config{Serial: &sc}
				return m, func() tea.Msg { return connectPrefillMsg{cfg: cfg} }
			}
		}
	}
	return m, nil
}

func (m portsModel) View() string {
	if m.err != nil {
		return docStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	title := mainTitleStyle.Render("🔎 " + i18n.T("ports.title"))
	var listItems []string
	if len(m.ports) == 0 {
		listItems = append(listItems, helpStyle.Render(i18n.T("ports.empty")))
	} else {
		for i, p := range m.ports {
			line := p.String()
			if p.IsUSB && p.VID != "" {
				line = fmt.Sprintf("%s  %s", line, helpStyle.Render(fmt.Sprintf("[%s:%s]", p.VID, p.PID)))
			}
			if m.cursor == i {
				listItems = append(listItems, selectedItemStyle.Render("▸ "+line))
			} else {
				listItems = append(listItems, itemStyle.Render("  "+line))
			}
		}
	}

	paneStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSubtle).Padding(1, 2)
	listPane := paneStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, listItems...))

	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(lipgloss.Color("236")).Padding(0, 1).Italic(true)
	helpLine := footerStyle.Render(AlignFooter(i18n.T("ports.footer"), "", 80))

	return lipgloss.JoinVertical(lipgloss.Left, title, "", listPane, "", helpLine)
}
