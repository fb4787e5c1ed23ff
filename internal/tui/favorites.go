// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/model"
	"github.com/toeirei/wireline/internal/security"
	"github.com/toeirei/wireline/internal/state"
)

// favoritesModel lists saved destinations. Selecting one connects; a
// favorite never stores secrets, so a password target prompts first
// unless the session cache already holds one.
type favoritesModel struct {
	favorites  []model.Favorite
	cursor     int
	confirming bool
	err        error
	status     string

	// Secret prompt state for SSH password/passphrase targets.
	prompting bool
	pending   conn.Config
	secretKey string
	input     textinput.Model
}

func newFavoritesModel() favoritesModel {
	m := favoritesModel{}
	m.favorites, m.err = db.GetAllFavorites()

	t := textinput.New()
	t.EchoMode = textinput.EchoPassword
	t.EchoCharacter = '•'
	t.CharLimit = 128
	t.Width = 40
	m.input = t
	return m
}

func (m favoritesModel) Init() tea.Cmd {
	return nil
}

// configFor turns a favorite back into a connection config, without
// secrets.
func configFor(f model.Favorite) conn.Config {
	if f.Kind == "serial" {
		sc := conn.DefaultSerialConfig()
		sc.Path = f.SerialPath
		if f.Baud > 0 {
			sc.Baud = f.Baud
		}
		if f.DataBits > 0 {
			sc.DataBits = f.DataBits
		}
		if f.Parity != "" {
			sc.Parity = f.Parity
		}
		if f.StopBits > 0 {
			sc.StopBits = f.StopBits
		}
		if f.FlowControl != "" {
			sc.FlowControl = f.FlowControl
		}
		return conn.Config{Serial: &sc}
	}

	auth := conn.AuthConfig{Method: conn.AuthPassword}
	if f.AuthMethod == "key" {
		auth.Method = conn.AuthPrivateKey
		auth.KeyPath = f.KeyPath
	}
	sc := conn.SSHConfig{
		Host:           f.Host,
		Port:           f.Port,
		Username:       f.Username,
		Auth:           auth,
		ConnectTimeout: viper.GetDuration("ssh.connect_timeout"),
		PromptTimeout:  viper.GetDuration("trust.prompt_timeout"),
	}
	return conn.Config{SSH: &sc}
}

func (m favoritesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	msgKey, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.prompting {
		switch msgKey.String() {
		case "esc":
			m.prompting = false
			m.input.SetValue("")
			return m, nil
		case "enter":
			secret := security.FromString(m.input.Value())
			m.input.SetValue("")
			m.prompting = false
			state.Secrets.Set(m.secretKey, secret.Bytes())
			cfg := m.pending
			if cfg.SSH.Auth.Method == conn.AuthPrivateKey {
				cfg.SSH.Auth.Passphrase = secret
			} else {
				cfg.SSH.Auth.Password = secret
			}
			return m, func() tea.Msg { return sessionStartMsg{cfg: cfg} }
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.confirming {
		switch msgKey.String() {
		case "y", "enter":
			f := m.favorites[m.cursor]
			if err := db.DeleteFavorite(f.ID); err != nil {
				m.err = err
			} else {
				m.status = i18n.T("favorites.deleted", f.Label)
			}
			m.confirming = false
			m.favorites, m.err = db.GetAllFavorites()
			if m.cursor >= len(m.favorites) {
				m.cursor = 0
			}
		default:
			m.confirming = false
		}
		return m, nil
	}

	switch msgKey.String() {
	case "q", "esc":
		return m, func() tea.Msg { return backToMenuMsg{} }
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.favorites)-1 {
			m.cursor++
		}
	case "d":
		if m.cursor >= 0 && m.cursor < len(m.favorites) {
			m.confirming = true
		}
	case "e":
		if m.cursor >= 0 && m.cursor < len(m.favorites) {
			cfg := configFor(m.favorites[m.cursor])
			return m, func() tea.Msg { return connectPrefillMsg{cfg: cfg} }
		}
	case "enter":
		if m.cursor >= 0 && m.cursor < len(m.favorites) {
			f := m.favorites[m.cursor]
			cfg := configFor(f)
			if cfg.SSH == nil {
				return m, func() tea.Msg { return sessionStartMsg{cfg: cfg} }
			}

			// Reuse a cached secret when one exists, prompt otherwise.
			if f.AuthMethod == "key" {
				m.secretKey = state.PassphraseKey(f.Username, f.Host, f.Port, f.KeyPath)
				m.input.Prompt = i18n.T("favorites.passphrase_prompt", f.KeyPath)
			} else {
				m.secretKey = state.PasswordKey(f.Username, f.Host, f.Port)
				m.input.Prompt = i18n.T("favorites.password_prompt", f.Username, f.Host)
			}
			if cached := state.Secrets.Get(m.secretKey); cached != nil {
				if cfg.SSH.Auth.Method == conn.AuthPrivateKey {
					cfg.SSH.Auth.Passphrase = security.FromBytes(cached)
				} else {
					cfg.SSH.Auth.Password = security.FromBytes(cached)
				}
				return m, func() tea.Msg { return sessionStartMsg{cfg: cfg} }
			}
			m.pending = cfg
			m.prompting = true
			m.input.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}

func (m favoritesModel) View() string {
	if m.err != nil {
		return docStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.prompting {
		dialog := dialogBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.input.View(),
			"",
			helpStyle.Render(i18n.T("favorites.prompt_footer")),
		))
		return docStyle.Render(dialog)
	}

	if m.confirming {
		f := m.favorites[m.cursor]
		dialog := dialogBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			specialStyle.Render(i18n.T("favorites.confirm_delete", f.Label)),
			"",
			helpStyle.Render(i18n.T("confirm.yes_no")),
		))
		return docStyle.Render(dialog)
	}

	title := mainTitleStyle.Render("⭐ " + i18n.T("favorites.title"))
	var listItems []string
	if len(m.favorites) == 0 {
		listItems = append(listItems, helpStyle.Render(i18n.T("favorites.empty")))
	} else {
		for i, f := range m.favorites {
			line := f.String()
			if m.cursor == i {
				listItems = append(listItems, selectedItemStyle.Render("▸ "+line))
			} else {
				listItems = append(listItems, itemStyle.Render("  "+line))
			}
		}
	}

	paneStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSubtle).Padding(1, 2)
	listPane := paneStyle.Width(70).Render(lipgloss.JoinVertical(lipgloss.Left, listItems...))

	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(lipgloss.Color("236")).Padding(0, 1).Italic(true)
	helpLine := footerStyle.Render(AlignFooter(i18n.T("favorites.footer"), m.status, 80))

	return lipgloss.JoinVertical(lipgloss.Left, title, "", listPane, "", helpLine)
}
