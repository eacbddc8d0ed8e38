// package formatter renders session, profile, and playback data as plain text or Markdown
package formatter

import (
	"bytes"
	"fmt"
	"strings"

	"spoton/internal/models"
	"spoton/internal/session"
	"spoton/internal/shared"
)

// statusLines maps each session state to the line shown under "Status".
var statusLines = map[session.State]string{
	session.Unauthorized: "Not logged in",
	session.Unknown:      "Logged in (verifying credential...)",
	session.Valid:        "Logged in",
	session.Invalid:      "Logged in, but the credential is no longer accepted",
}

// SessionToText renders a session snapshot as plain text
func SessionToText(snap session.Snapshot) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Status: %s\n", statusLines[snap.State]))

	if snap.Credential != nil {
		buf.WriteString(fmt.Sprintf("Token expires: %s\n", snap.Credential.ExpiresAt.Format("2006-01-02 15:04:05")))
	}

	if snap.Profile != nil {
		buf.WriteString("\n")
		buf.Write(ProfileToText(snap.Profile))
	}

	return buf.Bytes()
}

// ProfileToText renders a user profile as plain text
func ProfileToText(profile *models.Profile) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %s\n", profile.Name()))
	if profile.Email != "" {
		buf.WriteString(fmt.Sprintf("Email: %s\n", profile.Email))
	}
	if profile.Product != "" {
		buf.WriteString(fmt.Sprintf("Plan: %s\n", profile.Product))
	}
	if profile.Followers.Total > 0 {
		buf.WriteString(fmt.Sprintf("Followers: %d\n", profile.Followers.Total))
	}

	return buf.Bytes()
}

// ProfileToMarkdown renders a user profile as Markdown
func ProfileToMarkdown(profile *models.Profile) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", profile.Name()))

	if len(profile.Images) > 0 {
		buf.WriteString(fmt.Sprintf("![Avatar](%s)\n\n", profile.Images[0].URL))
	}

	if profile.Email != "" {
		buf.WriteString(fmt.Sprintf("**Email**: %s\n", profile.Email))
	}
	if profile.Product != "" {
		buf.WriteString(fmt.Sprintf("**Plan**: %s\n", profile.Product))
	}
	buf.WriteString(fmt.Sprintf("**Followers**: %d\n", profile.Followers.Total))
	if profile.ExternalURLs.Spotify != "" {
		buf.WriteString(fmt.Sprintf("\n[Open in Spotify](%s)\n", profile.ExternalURLs.Spotify))
	}

	return buf.Bytes()
}

// TrackLine renders a track as "Artist1, Artist2 - Title"
func TrackLine(track *models.Track) string {
	names := make([]string, len(track.Artists))
	for i, artist := range track.Artists {
		names[i] = artist.Name
	}
	return fmt.Sprintf("%s - %s", strings.Join(names, ", "), track.Name)
}

// NowPlayingToText renders the current playback state as plain text
func NowPlayingToText(np *models.NowPlaying) []byte {
	var buf bytes.Buffer

	if np == nil || np.Item == nil {
		buf.WriteString("Nothing playing\n")
		return buf.Bytes()
	}

	verb := "Paused"
	if np.IsPlaying {
		verb = "Playing"
	}

	buf.WriteString(fmt.Sprintf("%s: %s\n", verb, TrackLine(np.Item)))
	if np.Item.Album.Name != "" {
		buf.WriteString(fmt.Sprintf("Album: %s\n", np.Item.Album.Name))
	}
	buf.WriteString(fmt.Sprintf("Position: %s / %s\n",
		shared.FormatDuration(np.ProgressMS),
		shared.FormatDuration(np.Item.DurationMS)))

	return buf.Bytes()
}

// ProfileToJSON generates a JSON representation of the profile
func ProfileToJSON(profile *models.Profile) ([]byte, error) {
	return shared.MarshalJSON(profile, true)
}
