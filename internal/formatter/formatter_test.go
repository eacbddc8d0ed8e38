package formatter

import (
	"strings"
	"testing"
	"time"

	"spoton/internal/models"
	"spoton/internal/oauth"
	"spoton/internal/session"
)

func testProfile() *models.Profile {
	return &models.Profile{
		ID:          "user123",
		DisplayName: "Test User",
		Email:       "test@example.com",
		Product:     "premium",
		Followers:   models.Followers{Total: 42},
		ExternalURLs: models.ExternalURLs{
			Spotify: "https://open.spotify.com/user/user123",
		},
		Images: []models.Image{{URL: "https://i.scdn.co/image/abc", Height: 300, Width: 300}},
	}
}

func testTrack() *models.Track {
	return &models.Track{
		ID:   "track1",
		Name: "Song One",
		Artists: []models.Artist{
			{ID: "artist1", Name: "Artist One"},
			{ID: "artist2", Name: "Artist Two"},
		},
		Album:      models.Album{ID: "album1", Name: "Album One"},
		DurationMS: 185000,
	}
}

func TestSessionToText(t *testing.T) {
	t.Run("Unauthorized", func(t *testing.T) {
		output := string(SessionToText(session.Snapshot{State: session.Unauthorized}))

		if !strings.Contains(output, "Not logged in") {
			t.Errorf("expected logged-out status, got: %s", output)
		}
		if strings.Contains(output, "Token expires") {
			t.Errorf("no expiry line without a credential, got: %s", output)
		}
	})

	t.Run("Valid With Profile", func(t *testing.T) {
		snap := session.Snapshot{
			State:      session.Valid,
			Credential: &oauth.Credential{AccessToken: "tok", ExpiresAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
			Profile:    testProfile(),
		}

		output := string(SessionToText(snap))

		if !strings.Contains(output, "Logged in") {
			t.Errorf("expected logged-in status, got: %s", output)
		}
		if !strings.Contains(output, "2026-03-01 12:00:00") {
			t.Errorf("expected expiry timestamp, got: %s", output)
		}
		if !strings.Contains(output, "Test User") {
			t.Errorf("expected profile name, got: %s", output)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		snap := session.Snapshot{
			State:      session.Invalid,
			Credential: &oauth.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Hour)},
		}

		output := string(SessionToText(snap))

		if !strings.Contains(output, "no longer accepted") {
			t.Errorf("expected invalid-credential status, got: %s", output)
		}
	})
}

func TestProfileRendering(t *testing.T) {
	t.Run("ProfileToText", func(t *testing.T) {
		output := string(ProfileToText(testProfile()))

		if !strings.Contains(output, "User: Test User") {
			t.Errorf("missing user line, got: %s", output)
		}
		if !strings.Contains(output, "test@example.com") {
			t.Errorf("missing email, got: %s", output)
		}
		if !strings.Contains(output, "premium") {
			t.Errorf("missing plan, got: %s", output)
		}
	})

	t.Run("ProfileToText Falls Back To ID", func(t *testing.T) {
		profile := &models.Profile{ID: "user123"}

		output := string(ProfileToText(profile))

		if !strings.Contains(output, "user123") {
			t.Errorf("expected ID fallback, got: %s", output)
		}
	})

	t.Run("ProfileToMarkdown", func(t *testing.T) {
		output := string(ProfileToMarkdown(testProfile()))

		if !strings.Contains(output, "# Test User") {
			t.Errorf("missing heading, got: %s", output)
		}
		if !strings.Contains(output, "![Avatar](https://i.scdn.co/image/abc)") {
			t.Errorf("missing avatar image, got: %s", output)
		}
		if !strings.Contains(output, "**Followers**: 42") {
			t.Errorf("missing followers, got: %s", output)
		}
		if !strings.Contains(output, "[Open in Spotify](https://open.spotify.com/user/user123)") {
			t.Errorf("missing profile link, got: %s", output)
		}
	})
}

func TestNowPlayingToText(t *testing.T) {
	t.Run("Playing", func(t *testing.T) {
		np := &models.NowPlaying{IsPlaying: true, ProgressMS: 65000, Item: testTrack()}

		output := string(NowPlayingToText(np))

		if !strings.Contains(output, "Playing: Artist One, Artist Two - Song One") {
			t.Errorf("missing track line, got: %s", output)
		}
		if !strings.Contains(output, "Album: Album One") {
			t.Errorf("missing album, got: %s", output)
		}
		if !strings.Contains(output, "1:05 / 3:05") {
			t.Errorf("missing position, got: %s", output)
		}
	})

	t.Run("Paused", func(t *testing.T) {
		np := &models.NowPlaying{IsPlaying: false, Item: testTrack()}

		output := string(NowPlayingToText(np))

		if !strings.Contains(output, "Paused:") {
			t.Errorf("expected paused verb, got: %s", output)
		}
	})

	t.Run("Nothing Playing", func(t *testing.T) {
		if output := string(NowPlayingToText(nil)); !strings.Contains(output, "Nothing playing") {
			t.Errorf("expected idle message, got: %s", output)
		}
		if output := string(NowPlayingToText(&models.NowPlaying{})); !strings.Contains(output, "Nothing playing") {
			t.Errorf("expected idle message for empty item, got: %s", output)
		}
	})
}
