package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"spoton/internal/models"
	"spoton/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSnapshotResolved MsgKind = iota
	MsgNowPlayingFetched
	MsgLoginFinished
	MsgLoggedOut
	MsgPollTick
)

// snapshotResolvedMsg is the constructor for [MsgSnapshotResolved]
func snapshotResolvedMsg(snap session.Snapshot, err error) Msg {
	return Msg{
		kind: MsgSnapshotResolved,
		data: struct {
			snap session.Snapshot
			err  error
		}{snap, err},
	}
}

// nowPlayingFetchedMsg is the constructor for [MsgNowPlayingFetched]
func nowPlayingFetchedMsg(np *models.NowPlaying, err error) Msg {
	return Msg{
		kind: MsgNowPlayingFetched,
		data: struct {
			np  *models.NowPlaying
			err error
		}{np, err},
	}
}

// loginFinishedMsg is the constructor for [MsgLoginFinished]
func loginFinishedMsg(err error) Msg {
	return Msg{kind: MsgLoginFinished, data: err}
}

// loggedOutMsg is the constructor for [MsgLoggedOut]
func loggedOutMsg(err error) Msg {
	return Msg{kind: MsgLoggedOut, data: err}
}

// pollTickMsg is the constructor for [MsgPollTick]
func pollTickMsg() Msg {
	return Msg{kind: MsgPollTick}
}
