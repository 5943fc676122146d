package utils

import "regexp"

var snowflake = regexp.MustCompile(`^\d{17,19}$`)

// ValidSnowflake reports whether id has the platform's 17 to 19 digit shape.
func ValidSnowflake(id string) bool {
	return snowflake.MatchString(id)
}

func ValidGuildID(id string) bool {
	return ValidSnowflake(id)
}
