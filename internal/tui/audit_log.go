// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/model"
)

// auditActionStyle picks a color for an audit action tag.
func auditActionStyle(action string) lipgloss.Style {
	switch action {
	case "TRUST_HOST", "ADD_FAVORITE":
		return successStyle
	case "TRUST_OVERRIDE", "FORGET_HOST", "DELETE_FAVORITE":
		return specialStyle
	case "RESTORE_BACKUP":
		return selectedItemStyle
	default:
		return itemStyle
	}
}

// auditLogModel is a scrollable view of the audit trail, newest first.
type auditLogModel struct {
	entries []model.AuditLogEntry
	vp      viewport.Model
	ready   bool
	filter  string
	err     error
}

func newAuditLogModel() *auditLogModel {
	m := &auditLogModel{}
	m.entries, m.err = db.GetAllAuditLogEntries()
	return m
}

func (m *auditLogModel) Init() tea.Cmd {
	return nil
}

func (m *auditLogModel) content() string {
	var lines []string
	for _, e := range m.entries {
		if m.filter != "" {
			hay := strings.ToLower(e.Action + " " + e.Details + " " + e.Username)
			if !strings.Contains(hay, strings.ToLower(m.filter)) {
				continue
			}
		}
		ts := e.Timestamp.Format("2006-01-02 15:04:05")
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			helpStyle.Render(ts), " ",
			auditActionStyle(e.Action).Render(fmt.Sprintf("%-15s", e.Action)), " ",
			helpStyle.Render(e.Username), " ",
			itemStyle.Render(e.Details))
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return helpStyle.Render(i18n.T("audit.empty"))
	}
	return strings.Join(lines, "\n")
}

func (m *auditLogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 4
		footerHeight := 2
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - headerHeight - footerHeight
		}
		m.vp.SetContent(m.content())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			return m, func() tea.Msg { return backToMenuMsg{} }
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *auditLogModel) View() string {
	if m.err != nil {
		return docStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	title := mainTitleStyle.Render("📋 " + i18n.T("audit.title"))
	body := m.vp.View()
	if !m.ready {
		body = m.content()
	}

	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(lipgloss.Color("236")).Padding(0, 1).Italic(true)
	helpLine := footerStyle.Render(AlignFooter(i18n.T("audit.footer"), "", 80))

	return lipgloss.JoinVertical(lipgloss.Left, title, body, "", helpLine)
}
