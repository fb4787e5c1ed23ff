// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/model"
)

// hostsViewModel is the known-hosts browser. It lists every remembered
// host identity and supports forgetting one after confirmation.
type hostsViewModel struct {
	records []model.HostKeyRecord
	visible []model.HostKeyRecord

	cursor      int
	filter      string
	isFiltering bool
	confirming  bool
	status      string
	err         error
}

func newHostsViewModel() hostsViewModel {
	m := hostsViewModel{}
	m.reload()
	return m
}

func (m *hostsViewModel) reload() {
	m.records, m.err = db.GetAllKnownHosts()
	m.rebuildVisible()
}

// rebuildVisible applies the filter to the record list.
func (m *hostsViewModel) rebuildVisible() {
	if m.filter == "" {
		m.visible = m.records
	} else {
		m.visible = nil
		needle := strings.ToLower(m.filter)
		for _, r := range m.records {
			if strings.Contains(strings.ToLower(r.Address()), needle) {
				m.visible = append(m.visible, r)
			}
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = 0
	}
}

func (m hostsViewModel) Init() tea.Cmd {
	return nil
}

func (m hostsViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	msgKey, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.confirming {
		switch msgKey.String() {
		case "y", "enter":
			r := m.visible[m.cursor]
			if err := db.ForgetKnownHost(r.Host, r.Port); err != nil {
				m.err = err
			} else {
				m.status = i18n.T("hosts.forgotten", r.Address())
			}
			m.confirming = false
			m.reload()
		default:
			m.confirming = false
		}
		return m, nil
	}

	// If we are in filtering mode, capture all input for the filter.
	if m.isFiltering {
		switch msgKey.Type {
		case tea.KeyEsc:
			m.isFiltering = false
			m.filter = ""
			m.rebuildVisible()
		case tea.KeyEnter:
			m.isFiltering = false
		case tea.KeyBackspace:
			if len(m.filter) > 0 {
				m.filter = m.filter[:len(m.filter)-1]
				m.rebuildVisible()
			}
		case tea.KeyRunes:
			m.filter += string(msgKey.Runes)
			m.rebuildVisible()
		}
		return m, nil
	}

	switch msgKey.String() {
	case "/":
		m.isFiltering = true
		m.filter = ""
		m.rebuildVisible()
	case "q", "esc":
		if m.filter != "" {
			m.filter = ""
			m.rebuildVisible()
			return m, nil
		}
		return m, func() tea.Msg { return backToMenuMsg{} }
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "c":
		if m.cursor >= 0 && m.cursor < len(m.visible) {
			if err := clipboard.WriteAll(m.visible[m.cursor].Fingerprint); err == nil {
				m.status = i18n.T("hosts.copied")
			}
		}
	case "d", "f":
		if m.cursor >= 0 && m.cursor < len(m.visible) {
			m.confirming = true
		}
	}
	return m, nil
}

func (m hostsViewModel) View() string {
	if m.err != nil {
		return docStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.confirming {
		r := m.visible[m.cursor]
		question := i18n.T("hosts.confirm_forget", r.Address())
		dialog := dialogBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			specialStyle.Render(question),
			"",
			helpStyle.Render(i18n.T("confirm.yes_no")),
		))
		return docStyle.Render(dialog)
	}

	title := mainTitleStyle.Render("🗝️  " + i18n.T("hosts.title"))
	var listItems []string
	if len(m.visible) == 0 {
		listItems = append(listItems, helpStyle.Render(i18n.T("hosts.empty")))
	} else {
		for i, r := range m.visible {
			line := fmt.Sprintf("%-24s %s %s", r.Address(), r.Algorithm, r.Fingerprint)
			if m.cursor == i {
				listItems = append(listItems, selectedItemStyle.Render("▸ "+line))
				detail := i18n.T("hosts.seen",
					r.FirstSeen.Format("2006-01-02 15:04"),
					r.LastConfirmed.Format("2006-01-02 15:04"))
				listItems = append(listItems, helpStyle.Render("    "+detail))
			} else {
				listItems = append(listItems, itemStyle.Render("  "+line))
			}
		}
	}

	paneStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSubtle).Padding(1, 2)
	listPane := paneStyle.Width(90).Render(lipgloss.JoinVertical(lipgloss.Left, listItems...))

	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(lipgloss.Color("236")).Padding(0, 1).Italic(true)
	var filterStatus string
	if m.isFiltering {
		filterStatus = i18n.T("filter.typing", m.filter)
	} else if m.filter != "" {
		filterStatus = i18n.T("filter.active", m.filter)
	} else if m.status != "" {
		filterStatus = m.status
	}
	helpLine := footerStyle.Render(AlignFooter(i18n.T("hosts.footer"), filterStatus, 90))

	return lipgloss.JoinVertical(lipgloss.Left, title, "", listPane, "", helpLine)
}
