// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// It renders the session as a single live status view: the login state, the
// authenticated profile, and the user's current playback, refreshed on a
// timer. Login and logout are driven from the keyboard; the actual
// authorization round trip happens in the browser.
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern,
// receiving messages via the Msg union type.
package ui
