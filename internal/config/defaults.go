package config

import "filing-lens/internal/domain"

// DefaultSettings returns baseline configuration for first launch. The API
// token stays empty until the user pastes one in the settings panel.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		APIBaseURL:      "https://api.filinglens.dev",
		DefaultTemplate: "comprehensive",
	}
}
