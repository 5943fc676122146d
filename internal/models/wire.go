package models

type HealthStatus struct {
	Status  string  `json:"status"`
	Uptime  float64 `json:"uptime"`
	Ready   bool    `json:"ready"`
	Guilds  int     `json:"guilds"`
	Version string  `json:"version,omitempty"`
}

type Memory struct {
	HeapUsed  uint64 `json:"heapUsed"`
	HeapTotal uint64 `json:"heapTotal"`
	RSS       uint64 `json:"rss"`
}

type BotStatus struct {
	Guilds           int    `json:"guilds"`
	VoiceConnections int    `json:"voiceConnections"`
	Memory           Memory `json:"memory"`
}

// GuildStatus is a stored config merged with the live connection flag.
type GuildStatus struct {
	GuildID              string   `json:"guildId"`
	Enabled              bool     `json:"enabled"`
	AFKTimeoutSeconds    *int     `json:"afkTimeoutSeconds"`
	WarningSecondsBefore *int     `json:"warningSecondsBefore"`
	WarningChannelID     *string  `json:"warningChannelId"`
	ExemptRoleIDs        []string `json:"exemptRoleIds"`
	AdminRoleIDs         []string `json:"adminRoleIds"`
	Connected            bool     `json:"connected"`
}

type ToggleResult struct {
	Success bool   `json:"success"`
	GuildID string `json:"guildId"`
	Enabled bool   `json:"enabled"`
}
