// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/logging"
)

// sessTickMsg drives the bridge drain loop.
type sessTickMsg time.Time

func sessTick() tea.Cmd {
	return tea.Tick(conn.DefaultDrainInterval, func(t time.Time) tea.Msg {
		return sessTickMsg(t)
	})
}

// trustPrompt is the state of the host-key decision modal.
type trustPrompt struct {
	host           string
	port           int
	algorithm      string
	fingerprint    string
	oldAlgorithm   string
	oldFingerprint string
	mismatch       bool
	button         int // 0 = accept, 1 = reject
	copied         bool
}

// sessionModel owns one live connection: an actor, its slot on the bridge,
// and the terminal viewport the received bytes scroll through.
type sessionModel struct {
	cfg    conn.Config
	actor  *conn.Actor
	bridge *conn.Bridge

	vp       viewport.Model
	output   []byte
	status   conn.Status
	lastErr  *conn.ConnError
	prompt   *trustPrompt
	closed   bool
	buildErr error

	transcript     *os.File
	transcriptPath string

	width  int
	height int
}

func newSessionModel(cfg conn.Config) *sessionModel {
	m := &sessionModel{
		cfg:    cfg,
		bridge: conn.NewBridge(),
		vp:     viewport.New(80, 24),
	}

	c, err := conn.New(cfg, db.DefaultStore())
	if err != nil {
		m.buildErr = err
		m.closed = true
		return m
	}
	m.actor = conn.NewActor(c)
	m.bridge.Register(m.actor)
	return m
}

func (m *sessionModel) Init() tea.Cmd {
	if m.actor == nil {
		return nil
	}
	m.actor.Connect()
	return sessTick()
}

// teardown releases the actor and any open transcript. Safe to call twice.
func (m *sessionModel) teardown() {
	if m.actor != nil {
		m.bridge.Unregister(m.actor)
		m.actor.Close()
		m.actor = nil
	}
	if m.transcript != nil {
		m.transcript.Close()
		m.transcript = nil
	}
}

func (m *sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 2
		if m.actor != nil {
			m.actor.Resize(msg.Width, msg.Height-2)
		}
		return m, nil

	case sessTickMsg:
		if m.actor == nil {
			return m, nil
		}
		dirty := false
		m.bridge.Drain(func(_ *conn.Actor, ev conn.Event) {
			if m.apply(ev) {
				dirty = true
			}
		})
		if dirty {
			m.vp.SetContent(string(m.output))
			m.vp.GotoBottom()
		}
		return m, sessTick()

	case tea.KeyMsg:
		if m.prompt != nil {
			return m.updatePrompt(msg)
		}
		if m.closed || m.actor == nil {
			// Session over, any key returns to the menu.
			m.teardown()
			return m, func() tea.Msg { return backToMenuMsg{} }
		}
		switch msg.String() {
		case "ctrl+d":
			m.actor.Disconnect()
			return m, nil
		case "ctrl+l":
			m.toggleTranscript()
			return m, nil
		}
		if b := keyToBytes(msg); len(b) > 0 {
			m.actor.Send(b)
		}
		return m, nil
	}
	return m, nil
}

// apply folds one engine event into the model. It reports whether the
// viewport content changed.
func (m *sessionModel) apply(ev conn.Event) bool {
	switch ev := ev.(type) {
	case conn.DataEvent:
		m.output = append(m.output, ev.Bytes...)
		if m.transcript != nil {
			if _, err := m.transcript.Write(ev.Bytes); err != nil {
				logging.Warnf("transcript write failed: %v", err)
				m.transcript.Close()
				m.transcript = nil
			}
		}
		return true
	case conn.StateChangedEvent:
		m.status = ev.State
	case conn.ErrorEvent:
		m.lastErr = ev.Err
	case conn.HostKeyPromptEvent:
		m.prompt = &trustPrompt{
			host:        ev.Host,
			port:        ev.Port,
			algorithm:   ev.Algorithm,
			fingerprint: ev.Fingerprint,
		}
	case conn.HostKeyMismatchEvent:
		m.prompt = &trustPrompt{
			host:           ev.Host,
			port:           ev.Port,
			algorithm:      ev.NewAlgorithm,
			fingerprint:    ev.NewFingerprint,
			oldAlgorithm:   ev.OldAlgorithm,
			oldFingerprint: ev.OldFingerprint,
			mismatch:       true,
			button:         1, // default to reject on a key change
		}
	case conn.ClosedEvent:
		m.closed = true
	}
	return false
}

// updatePrompt handles keys while the host-key modal is up.
func (m *sessionModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.prompt
	switch msg.String() {
	case "left", "right", "tab":
		p.button = 1 - p.button
	case "c":
		if err := clipboard.WriteAll(p.fingerprint); err == nil {
			p.copied = true
		}
	case "esc", "n":
		m.actor.RespondTrust(conn.TrustReject)
		m.prompt = nil
	case "y":
		m.acceptPrompt()
	case "enter":
		if p.button == 0 {
			m.acceptPrompt()
		} else {
			m.actor.RespondTrust(conn.TrustReject)
			m.prompt = nil
		}
	}
	return m, nil
}

// acceptPrompt resolves the modal positively. A key change requires the
// explicit remember-and-accept decision; a first contact records via the
// plain accept.
func (m *sessionModel) acceptPrompt() {
	if m.prompt.mismatch {
		m.actor.RespondTrust(conn.TrustAcceptAndRemember)
	} else {
		m.actor.RespondTrust(conn.TrustAccept)
	}
	m.prompt = nil
}

// toggleTranscript starts or stops appending received bytes to a local
// transcript file. The file is created 0600.
func (m *sessionModel) toggleTranscript() {
	if m.transcript != nil {
		m.transcript.Close()
		m.transcript = nil
		return
	}
	path := fmt.Sprintf("wireline-%s.log", time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		logging.Warnf("cannot open transcript %s: %v", path, err)
		return
	}
	m.transcript = f
	m.transcriptPath = path
}

func (m *sessionModel) View() string {
	if m.buildErr != nil {
		return docStyle.Render(
			errorStyle.Render(fmt.Sprintf("%v", m.buildErr)) + "\n\n" +
				helpStyle.Render(i18n.T("session.press_any_key")))
	}

	if m.prompt != nil {
		return m.viewPrompt()
	}

	statusLine := m.viewStatusLine()
	return lipgloss.JoinVertical(lipgloss.Left, m.vp.View(), statusLine)
}

func (m *sessionModel) viewStatusLine() string {
	var state string
	switch m.status {
	case conn.StatusConnected:
		state = successStyle.Render(m.status.String())
	case conn.StatusConnecting:
		state = specialStyle.Render(m.status.String())
	default:
		state = errorStyle.Render(m.status.String())
	}

	var tx, rx uint64
	desc := m.cfg.Description()
	if m.actor != nil {
		tx = m.actor.Conn().BytesSent()
		rx = m.actor.Conn().BytesReceived()
	}
	left := fmt.Sprintf(" %s  %s  ↑%d ↓%d", state, desc, tx, rx)

	var right string
	if m.transcript != nil {
		right = specialStyle.Render(i18n.T("session.transcript_on", m.transcriptPath))
	}
	if m.lastErr != nil {
		right = errorStyle.Render(m.lastErr.Error())
	}
	if m.closed {
		right = helpStyle.Render(i18n.T("session.press_any_key"))
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	line := AlignFooter(left, right, width)
	return lipgloss.NewStyle().Background(lipgloss.Color("236")).Width(width).Render(line)
}

// viewPrompt renders the host-key decision modal.
func (m *sessionModel) viewPrompt() string {
	p := m.prompt

	var body []string
	box := dialogBoxStyle
	if p.mismatch {
		box = mismatchBoxStyle
		body = append(body,
			errorStyle.Bold(true).Render(i18n.T("trust.mismatch_title")),
			"",
			i18n.T("trust.mismatch_warning", p.host, p.port),
			"",
			helpStyle.Render(i18n.T("trust.old_key", p.oldAlgorithm, p.oldFingerprint)),
			specialStyle.Render(i18n.T("trust.new_key", p.algorithm, p.fingerprint)),
		)
	} else {
		body = append(body,
			titleStyle.Padding(0).Render(i18n.T("trust.prompt_title")),
			"",
			i18n.T("trust.prompt_question", p.host, p.port),
			"",
			fmt.Sprintf("%s %s", p.algorithm, p.fingerprint),
		)
	}

	accept := buttonStyle.Render(i18n.T("trust.accept"))
	reject := buttonStyle.Render(i18n.T("trust.reject"))
	if p.button == 0 {
		accept = activeButtonStyle.Render(i18n.T("trust.accept"))
	} else {
		reject = activeButtonStyle.Render(i18n.T("trust.reject"))
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, accept, "  ", reject)
	body = append(body, "", buttons)

	hint := i18n.T("trust.copy_hint")
	if p.copied {
		hint = successStyle.Render(i18n.T("trust.copied"))
	}
	body = append(body, "", helpStyle.Render(hint))

	dialog := box.Render(lipgloss.JoinVertical(lipgloss.Left, body...))

	width, height := m.width, m.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, dialog)
}

// keyToBytes translates a key press into the bytes a terminal would send.
func keyToBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte{' '}
	case tea.KeyEnter:
		return []byte{'\r'}
	case tea.KeyTab:
		return []byte{'\t'}
	case tea.KeyBackspace:
		return []byte{0x7f}
	case tea.KeyEsc:
		return []byte{0x1b}
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	case tea.KeyHome:
		return []byte("\x1b[H")
	case tea.KeyEnd:
		return []byte("\x1b[F")
	case tea.KeyDelete:
		return []byte("\x1b[3~")
	case tea.KeyPgUp:
		return []byte("\x1b[5~")
	case tea.KeyPgDown:
		return []byte("\x1b[6~")
	}

	// Control characters arrive as "ctrl+x" strings.
	s := msg.String()
	if len(s) == 6 && s[:5] == "ctrl+" && s[5] >= 'a' && s[5] <= 'z' {
		return []byte{s[5] - 'a' + 1}
	}
	return nil
}
