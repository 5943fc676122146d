package models

import (
	"encoding/json"
	"time"
)

const (
	ColGuildID              = "guild_id"
	ColEnabled              = "enabled"
	ColAFKTimeoutSeconds    = "afk_timeout_seconds"
	ColWarningSecondsBefore = "warning_seconds_before"
	ColWarningChannelID     = "warning_channel_id"
	ColExemptRoleIDs        = "exempt_role_ids"
	ColAdminRoleIDs         = "admin_role_ids"
	ColCreatedAt            = "created_at"
	ColUpdatedAt            = "updated_at"
)

// GuildConfigColumns is the select order used by every read of a config row.
var GuildConfigColumns = []string{
	ColGuildID,
	ColEnabled,
	ColAFKTimeoutSeconds,
	ColWarningSecondsBefore,
	ColWarningChannelID,
	ColExemptRoleIDs,
	ColAdminRoleIDs,
	ColCreatedAt,
	ColUpdatedAt,
}

type GuildConfig struct {
	GuildID              string    `json:"guildId"`
	Enabled              bool      `json:"enabled"`
	AFKTimeoutSeconds    *int      `json:"afkTimeoutSeconds"`
	WarningSecondsBefore *int      `json:"warningSecondsBefore"`
	WarningChannelID     *string   `json:"warningChannelId"`
	ExemptRoleIDs        []string  `json:"exemptRoleIds"`
	AdminRoleIDs         []string  `json:"adminRoleIds"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// NewGuildConfig returns the baseline row a guild starts with.
func NewGuildConfig(guildID string) GuildConfig {
	return GuildConfig{
		GuildID:       guildID,
		ExemptRoleIDs: []string{},
		AdminRoleIDs:  []string{},
	}
}

func (g GuildConfig) Map() map[string]any {
	return map[string]any{
		ColGuildID:              g.GuildID,
		ColEnabled:              g.Enabled,
		ColAFKTimeoutSeconds:    nullable(g.AFKTimeoutSeconds),
		ColWarningSecondsBefore: nullable(g.WarningSecondsBefore),
		ColWarningChannelID:     nullable(g.WarningChannelID),
		ColExemptRoleIDs:        encodeIDs(g.ExemptRoleIDs),
		ColAdminRoleIDs:         encodeIDs(g.AdminRoleIDs),
		ColCreatedAt:            g.CreatedAt.UnixMilli(),
		ColUpdatedAt:            g.UpdatedAt.UnixMilli(),
	}
}

func (g GuildConfig) Table() Table {
	return TableGuildConfigs
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func encodeIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

// GuildConfigUpdate is a partial write to one guild's row.
type GuildConfigUpdate struct {
	GuildID              string          `json:"-"`
	Enabled              Field[bool]     `json:"enabled,omitzero"`
	AFKTimeoutSeconds    Field[int]      `json:"afkTimeoutSeconds,omitzero"`
	WarningSecondsBefore Field[int]      `json:"warningSecondsBefore,omitzero"`
	WarningChannelID     Field[string]   `json:"warningChannelId,omitzero"`
	ExemptRoleIDs        Field[[]string] `json:"exemptRoleIds,omitzero"`
	AdminRoleIDs         Field[[]string] `json:"adminRoleIds,omitzero"`
}

// Apply writes every set or cleared field onto g and leaves absent ones alone.
func (u GuildConfigUpdate) Apply(g *GuildConfig) {
	if !u.Enabled.IsAbsent() {
		g.Enabled, _ = u.Enabled.Value()
	}
	applyPtr(u.AFKTimeoutSeconds, &g.AFKTimeoutSeconds)
	applyPtr(u.WarningSecondsBefore, &g.WarningSecondsBefore)
	applyPtr(u.WarningChannelID, &g.WarningChannelID)
	applyIDs(u.ExemptRoleIDs, &g.ExemptRoleIDs)
	applyIDs(u.AdminRoleIDs, &g.AdminRoleIDs)
}

// Columns lists the columns this update touches.
func (u GuildConfigUpdate) Columns() []string {
	var cols []string
	if !u.Enabled.IsAbsent() {
		cols = append(cols, ColEnabled)
	}
	if !u.AFKTimeoutSeconds.IsAbsent() {
		cols = append(cols, ColAFKTimeoutSeconds)
	}
	if !u.WarningSecondsBefore.IsAbsent() {
		cols = append(cols, ColWarningSecondsBefore)
	}
	if !u.WarningChannelID.IsAbsent() {
		cols = append(cols, ColWarningChannelID)
	}
	if !u.ExemptRoleIDs.IsAbsent() {
		cols = append(cols, ColExemptRoleIDs)
	}
	if !u.AdminRoleIDs.IsAbsent() {
		cols = append(cols, ColAdminRoleIDs)
	}
	return cols
}

func applyPtr[T any](f Field[T], dst **T) {
	switch {
	case f.IsSet():
		v, _ := f.Value()
		*dst = &v
	case f.IsCleared():
		*dst = nil
	}
}

func applyIDs(f Field[[]string], dst *[]string) {
	switch {
	case f.IsSet():
		v, _ := f.Value()
		ids := make([]string, len(v))
		copy(ids, v)
		*dst = ids
	case f.IsCleared():
		*dst = []string{}
	}
}
