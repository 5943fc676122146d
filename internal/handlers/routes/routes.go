package routes

import "github.com/glotchimo/afkguard/internal/handlers"

// All is the fixed route set served by the admin API.
func All() []handlers.Handler {
	return []handlers.Handler{
		&Health{},
		&Status{},
		&GuildStatus{},
		&Toggle{Enabled: true},
		&Toggle{Enabled: false},
		&UpdateConfig{},
	}
}
