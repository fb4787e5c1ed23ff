// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/model"
	"github.com/toeirei/wireline/internal/security"
)

// A simple style for focused text inputs.
var focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

// Input indices for the SSH form.
const (
	sshFieldHost = iota
	sshFieldPort
	sshFieldUser
	sshFieldPassword
	sshFieldKeyPath
	sshFieldPassphrase
	sshFieldCount
)

// Input indices for the serial form.
const (
	serialFieldPath = iota
	serialFieldBaud
	serialFieldDataBits
	serialFieldParity
	serialFieldStopBits
	serialFieldFlow
	serialFieldCount
)

// connectFormModel is the quick-connect form. Row 0 toggles the transport
// kind, the following rows are the transport's inputs, and the last row is
// the connect button.
type connectFormModel struct {
	kind       conn.Kind
	focusIndex int
	ssh        []textinput.Model
	serial     []textinput.Model
	err        error
	status     string
}

func newConnectFormModel() *connectFormModel {
	m := &connectFormModel{
		kind:   conn.KindSSH,
		ssh:    make([]textinput.Model, sshFieldCount),
		serial: make([]textinput.Model, serialFieldCount),
	}

	for i := range m.ssh {
		t := textinput.New()
		t.Cursor.Style = focusedStyle
		t.CharLimit = 128
		t.Width = 40

		switch i {
		case sshFieldHost:
			t.Prompt = i18n.T("connect.field.host")
			t.Placeholder = "router.example.net"
		case sshFieldPort:
			t.Prompt = i18n.T("connect.field.port")
			t.Placeholder = "22"
		case sshFieldUser:
			t.Prompt = i18n.T("connect.field.username")
			t.Placeholder = "admin"
		case sshFieldPassword:
			t.Prompt = i18n.T("connect.field.password")
			t.EchoMode = textinput.EchoPassword
			t.EchoCharacter = '•'
		case sshFieldKeyPath:
			t.Prompt = i18n.T("connect.field.key_path")
			t.Placeholder = "~/.ssh/id_ed25519"
		case sshFieldPassphrase:
			t.Prompt = i18n.T("connect.field.passphrase")
			t.EchoMode = textinput.EchoPassword
			t.EchoCharacter = '•'
		}
		m.ssh[i] = t
	}

	def := conn.DefaultSerialConfig()
	for i := range m.serial {
		t := textinput.New()
		t.Cursor.Style = focusedStyle
		t.CharLimit = 64
		t.Width = 40

		switch i {
		case serialFieldPath:
			t.Prompt = i18n.T("connect.field.device")
			t.Placeholder = "/dev/ttyUSB0"
		case serialFieldBaud:
			t.Prompt = i18n.T("connect.field.baud")
			t.SetValue(strconv.Itoa(viper.GetInt("serial.baud")))
			if t.Value() == "0" {
				t.SetValue(strconv.Itoa(def.Baud))
			}
		case serialFieldDataBits:
			t.Prompt = i18n.T("connect.field.data_bits")
			t.SetValue(strconv.Itoa(def.DataBits))
		case serialFieldParity:
			t.Prompt = i18n.T("connect.field.parity")
			t.SetValue(def.Parity)
		case serialFieldStopBits:
			t.Prompt = i18n.T("connect.field.stop_bits")
			t.SetValue(strconv.Itoa(def.StopBits))
		case serialFieldFlow:
			t.Prompt = i18n.T("connect.field.flow_control")
			t.SetValue(def.FlowControl)
		}
		m.serial[i] = t
	}

	m.applyFocus()
	return m
}

// newConnectFormModelPrefilled builds the form with a target already filled
// in, for example from the ports picker or a favorite.
func newConnectFormModelPrefilled(cfg conn.Config) *connectFormModel {
	m := newConnectFormModel()
	switch {
	case cfg.Serial != nil:
		m.kind = conn.KindSerial
		m.serial[serialFieldPath].SetValue(cfg.Serial.Path)
		if cfg.Serial.Baud > 0 {
			m.serial[serialFieldBaud].SetValue(strconv.Itoa(cfg.Serial.Baud))
		}
		if cfg.Serial.DataBits > 0 {
			m.serial[serialFieldDataBits].SetValue(strconv.Itoa(cfg.Serial.DataBits))
		}
		if cfg.Serial.Parity != "" {
			m.serial[serialFieldParity].SetValue(cfg.Serial.Parity)
		}
		if cfg.Serial.StopBits > 0 {
			m.serial[serialFieldStopBits].SetValue(strconv.Itoa(cfg.Serial.StopBits))
		}
		if cfg.Serial.FlowControl != "" {
			m.serial[serialFieldFlow].SetValue(cfg.Serial.FlowControl)
		}
	case cfg.SSH != nil:
		m.kind = conn.KindSSH
		m.ssh[sshFieldHost].SetValue(cfg.SSH.Host)
		if cfg.SSH.Port > 0 {
			m.ssh[sshFieldPort].SetValue(strconv.Itoa(cfg.SSH.Port))
		}
		m.ssh[sshFieldUser].SetValue(cfg.SSH.Username)
		m.ssh[sshFieldKeyPath].SetValue(cfg.SSH.Auth.KeyPath)
	}
	m.focusIndex = 1
	m.applyFocus()
	return m
}

// rememberLastTarget keeps the most recent destination in the running
// configuration so the connect form can offer it again. Secrets are never
// recorded.
func rememberLastTarget(cfg conn.Config) {
	switch {
	case cfg.Serial != nil:
		viper.Set("last_target.kind", "serial")
		viper.Set("last_target.device", cfg.Serial.Path)
		viper.Set("last_target.baud", cfg.Serial.Baud)
	case cfg.SSH != nil:
		viper.Set("last_target.kind", "ssh")
		viper.Set("last_target.host", cfg.SSH.Host)
		viper.Set("last_target.port", cfg.SSH.Port)
		viper.Set("last_target.username", cfg.SSH.Username)
		viper.Set("last_target.key_path", cfg.SSH.Auth.KeyPath)
	}
}

// lastTargetConfig rebuilds the most recently used destination, or nil when
// none has been recorded this run.
func lastTargetConfig() *conn.Config {
	switch viper.GetString("last_target.kind") {
	case "serial":
		sc := conn.DefaultSerialConfig()
		sc.Path = viper.GetString("last_target.device")
		if b := viper.GetInt("last_target.baud"); b > 0 {
			sc.Baud = b
		}
		if sc.Path == "" {
			return nil
		}
		return &conn.Config{Serial: &sc}
	case "ssh":
		host := viper.GetString("last_target.host")
		if host == "" {
			return nil
		}
		return &conn.Config{SSH: &conn.SSHConfig{
			Host:     host,
			Port:     viper.GetInt("last_target.port"),
			Username: viper.GetString("last_target.username"),
			Auth:     conn.AuthConfig{KeyPath: viper.GetString("last_target.key_path")},
		}}
	}
	return nil
}

func (m *connectFormModel) inputs() []textinput.Model {
	if m.kind == conn.KindSerial {
		return m.serial
	}
	return m.ssh
}

// applyFocus moves textinput focus to match focusIndex. Row 0 is the kind
// toggle and the last row is the connect button; neither holds an input.
func (m *connectFormModel) applyFocus() {
	inputs := m.inputs()
	for i := range inputs {
		if m.focusIndex == i+1 {
			inputs[i].Focus()
			inputs[i].TextStyle = focusedStyle
		} else {
			inputs[i].Blur()
			inputs[i].TextStyle = lipgloss.NewStyle()
		}
	}
}

func (m *connectFormModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *connectFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return backToMenuMsg{} }

		case "ctrl+s":
			if err := m.saveFavorite(); err != nil {
				m.err = err
			} else {
				m.err = nil
				m.status = i18n.T("connect.favorite_saved")
			}
			return m, nil

		case "left", "right":
			if m.focusIndex == 0 {
				if m.kind == conn.KindSSH {
					m.kind = conn.KindSerial
				} else {
					m.kind = conn.KindSSH
				}
				m.applyFocus()
				return m, nil
			}

		case "tab", "shift+tab", "enter", "up", "down":
			s := msg.String()
			buttonIndex := len(m.inputs()) + 1

			if s == "enter" {
				if m.focusIndex == 0 {
					// Toggle the kind on enter as well.
					if m.kind == conn.KindSSH {
						m.kind = conn.KindSerial
					} else {
						m.kind = conn.KindSSH
					}
					m.applyFocus()
					return m, nil
				}
				if m.focusIndex == buttonIndex {
					cfg, err := m.buildConfig()
					if err != nil {
						m.err = err
						return m, nil
					}
					return m, func() tea.Msg { return sessionStartMsg{cfg: cfg} }
				}
			}

			if s == "up" || s == "shift+tab" {
				m.focusIndex--
			} else {
				m.focusIndex++
			}
			if m.focusIndex > buttonIndex {
				m.focusIndex = 0
			} else if m.focusIndex < 0 {
				m.focusIndex = buttonIndex
			}
			m.applyFocus()
			return m, nil
		}
	}

	// Pass everything else to the focused input.
	inputs := m.inputs()
	var cmds []tea.Cmd
	for i := range inputs {
		var cmd tea.Cmd
		inputs[i], cmd = inputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// buildConfig validates the form and produces the connection config.
// Secrets leave the form only inside the config, by value.
func (m *connectFormModel) buildConfig() (conn.Config, error) {
	if m.kind == conn.KindSerial {
		sc := conn.DefaultSerialConfig()
		sc.Path = strings.TrimSpace(m.serial[serialFieldPath].Value())
		if sc.Path == "" {
			return conn.Config{}, fmt.Errorf("%s", i18n.T("connect.err.device_required"))
		}
		var err error
		if sc.Baud, err = parsePositiveInt(m.serial[serialFieldBaud].Value(), "baud"); err != nil {
			return conn.Config{}, err
		}
		if sc.DataBits, err = parsePositiveInt(m.serial[serialFieldDataBits].Value(), "data bits"); err != nil {
			return conn.Config{}, err
		}
		sc.Parity = strings.ToLower(strings.TrimSpace(m.serial[serialFieldParity].Value()))
		if sc.StopBits, err = parsePositiveInt(m.serial[serialFieldStopBits].Value(), "stop bits"); err != nil {
			return conn.Config{}, err
		}
		sc.FlowControl = strings.ToLower(strings.TrimSpace(m.serial[serialFieldFlow].Value()))
		return conn.Config{Serial: &sc}, nil
	}

	host := strings.TrimSpace(m.ssh[sshFieldHost].Value())
	user := strings.TrimSpace(m.ssh[sshFieldUser].Value())
	if host == "" || user == "" {
		return conn.Config{}, fmt.Errorf("%s", i18n.T("connect.err.host_user_required"))
	}
	port := 22
	if v := strings.TrimSpace(m.ssh[sshFieldPort].Value()); v != "" {
		var err error
		if port, err = parsePositiveInt(v, "port"); err != nil {
			return conn.Config{}, err
		}
	}

	auth := conn.AuthConfig{Method: conn.AuthPassword}
	if keyPath := strings.TrimSpace(m.ssh[sshFieldKeyPath].Value()); keyPath != "" {
		auth.Method = conn.AuthPrivateKey
		auth.KeyPath = keyPath
		auth.Passphrase = security.FromString(m.ssh[sshFieldPassphrase].Value())
	} else {
		auth.Password = security.FromString(m.ssh[sshFieldPassword].Value())
	}

	sc := conn.SSHConfig{
		Host:           host,
		Port:           port,
		Username:       user,
		Auth:           auth,
		ConnectTimeout: viper.GetDuration("ssh.connect_timeout"),
		PromptTimeout:  viper.GetDuration("trust.prompt_timeout"),
	}
	return conn.Config{SSH: &sc}, nil
}

// saveFavorite persists the current form as a favorite. Secrets are never
// part of a favorite.
func (m *connectFormModel) saveFavorite() error {
	cfg, err := m.buildConfig()
	if err != nil {
		return err
	}
	if !db.IsInitialized() {
		return fmt.Errorf("%s", i18n.T("err.db_not_initialized"))
	}

	f := model.Favorite{
		Label:     cfg.Description(),
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case cfg.Serial != nil:
		f.Kind = "serial"
		f.SerialPath = cfg.Serial.Path
		f.Baud = cfg.Serial.Baud
		f.DataBits = cfg.Serial.DataBits
		f.Parity = cfg.Serial.Parity
		f.StopBits = cfg.Serial.StopBits
		f.FlowControl = cfg.Serial.FlowControl
	case cfg.SSH != nil:
		f.Kind = "ssh"
		f.Host = cfg.SSH.Host
		f.Port = cfg.SSH.Port
		f.Username = cfg.SSH.Username
		if cfg.SSH.Auth.Method == conn.AuthPrivateKey {
			f.AuthMethod = "key"
			f.KeyPath = cfg.SSH.Auth.KeyPath
		} else {
			f.AuthMethod = "password"
		}
	}
	_, err = db.AddFavorite(f)
	return err
}

func parsePositiveInt(s, what string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s", i18n.T("connect.err.bad_number", what, s))
	}
	return n, nil
}

func (m *connectFormModel) View() string {
	var b strings.Builder

	title := mainTitleStyle.Render("🔌 " + i18n.T("connect.title"))
	b.WriteString(title + "\n\n")

	// Kind toggle row.
	kindLabel := i18n.T("connect.field.kind")
	kindValue := m.kind.String()
	if m.focusIndex == 0 {
		b.WriteString(selectedItemStyle.Render(fmt.Sprintf("▸ %s ◂ %s ▸", kindLabel, kindValue)))
	} else {
		b.WriteString(itemStyle.Render(fmt.Sprintf("  %s   %s", kindLabel, kindValue)))
	}
	b.WriteString("\n\n")

	inputs := m.inputs()
	for i := range inputs {
		b.WriteString("  " + inputs[i].View() + "\n")
	}

	button := buttonStyle.Render(i18n.T("connect.button"))
	if m.focusIndex == len(inputs)+1 {
		button = activeButtonStyle.Render(i18n.T("connect.button"))
	}
	b.WriteString("\n" + button + "\n")

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString("\n" + successStyle.Render(m.status) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(i18n.T("connect.footer")) + "\n")

	return docStyle.Render(b.String())
}
