package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"spoton/internal/formatter"
	"spoton/internal/models"
	"spoton/internal/session"
)

// pollInterval is how often current playback is refreshed while the session
// is valid.
const pollInterval = 5 * time.Second

// Controller exposes the session transitions the TUI drives.
// [session.Manager] implements it.
type Controller interface {
	Resolve(ctx context.Context) (session.Snapshot, error)
	Unauthorize(ctx context.Context) error
}

// LoginFlow runs a full authorization round trip: browser, callback,
// exchange, persistence. It blocks until the flow finishes or times out.
type LoginFlow interface {
	Login(ctx context.Context) error
}

// Player fetches the user's current playback.
type Player interface {
	NowPlaying(ctx context.Context, accessToken string) (*models.NowPlaying, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	session Controller
	login   LoginFlow
	player  Player

	width  int
	height int

	snap       session.Snapshot
	nowPlaying *models.NowPlaying
	resolving  bool
	loggingIn  bool
	err        error

	sp   spinner.Model
	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, controller Controller, login LoginFlow, player Player) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	return &Model{
		ctx:       ctx,
		session:   controller,
		login:     login,
		player:    player,
		resolving: true,
		sp:        sp,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init resolves the session so the first render shows a settled state.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.sp.Tick, m.resolveSession())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.refresh):
		if m.resolving || m.loggingIn {
			return m, nil
		}
		m.resolving = true
		m.err = nil
		return m, m.resolveSession()

	case key.Matches(msg, m.keys.login):
		if m.loggingIn {
			return m, nil
		}
		m.loggingIn = true
		m.err = nil
		return m, m.runLogin()

	case key.Matches(msg, m.keys.logout):
		return m, m.runLogout()
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSnapshotResolved:
		payload := msg.data.(struct {
			snap session.Snapshot
			err  error
		})
		m.resolving = false
		m.snap = payload.snap
		m.err = payload.err
		if payload.err == nil && payload.snap.State == session.Valid {
			return m, tea.Batch(m.fetchNowPlaying(), m.schedulePoll())
		}
		m.nowPlaying = nil
		return m, nil

	case MsgNowPlayingFetched:
		payload := msg.data.(struct {
			np  *models.NowPlaying
			err error
		})
		// Playback fetch failures are transient; keep the last good view.
		if payload.err == nil {
			m.nowPlaying = payload.np
		}
		return m, nil

	case MsgLoginFinished:
		m.loggingIn = false
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
			return m, nil
		}
		m.resolving = true
		return m, m.resolveSession()

	case MsgLoggedOut:
		m.nowPlaying = nil
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		}
		m.resolving = true
		return m, m.resolveSession()

	case MsgPollTick:
		if m.snap.State != session.Valid {
			return m, nil
		}
		return m, tea.Batch(m.fetchNowPlaying(), m.schedulePoll())
	}

	return m, nil
}

// View renders the session status, current playback, and contextual help.
func (m *Model) View() string {
	title := styles.title.Render("spoton")

	var body string
	switch {
	case m.loggingIn:
		body = fmt.Sprintf("%s Waiting for authorization in the browser...", m.sp.View())
	case m.resolving:
		body = fmt.Sprintf("%s Checking session...", m.sp.View())
	default:
		body = m.renderStatus()
	}

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, body, errLine, styles.help.Render(helpView))
}

func (m *Model) renderStatus() string {
	switch m.snap.State {
	case session.Valid:
		header := styles.ok.Render(fmt.Sprintf("● Logged in as %s", m.snap.Profile.Name()))
		playback := string(formatter.NowPlayingToText(m.nowPlaying))
		return fmt.Sprintf("%s\n\n%s", header, playback)

	case session.Invalid:
		return styles.warn.Render("● Session expired or rejected. Press l to log in again.")

	case session.Unknown:
		return fmt.Sprintf("%s Verifying credential...", m.sp.View())

	default:
		return "● Not logged in. Press l to log in."
	}
}

func (m *Model) resolveSession() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.session.Resolve(m.ctx)
		return snapshotResolvedMsg(snap, err)
	}
}

func (m *Model) fetchNowPlaying() tea.Cmd {
	snap := m.snap
	return func() tea.Msg {
		if snap.Credential == nil {
			return nowPlayingFetchedMsg(nil, nil)
		}
		np, err := m.player.NowPlaying(m.ctx, snap.Credential.AccessToken)
		return nowPlayingFetchedMsg(np, err)
	}
}

func (m *Model) schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg()
	})
}

func (m *Model) runLogin() tea.Cmd {
	return func() tea.Msg {
		return loginFinishedMsg(m.login.Login(m.ctx))
	}
}

func (m *Model) runLogout() tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg(m.session.Unauthorize(m.ctx))
	}
}
