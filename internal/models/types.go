package models

type Table string

const (
	TableGuildConfigs Table = "guild_configs"
)

type Mappable interface {
	Table() Table
	Map() map[string]any
}
