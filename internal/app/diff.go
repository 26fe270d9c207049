package app

import (
	"reflect"

	"castbot/internal/config"
)

// summarizeChange names the top-level config sections that differ between
// two snapshots. Used only for reload logging and restart-required warnings,
// so a coarse section-level diff is enough.
func summarizeChange(old, cur *config.Config) []string {
	if old == nil || cur == nil {
		return []string{"all"}
	}
	var sections []string
	if !reflect.DeepEqual(old.Telegram, cur.Telegram) {
		sections = append(sections, "telegram")
	}
	if !reflect.DeepEqual(old.Logging, cur.Logging) {
		sections = append(sections, "logging")
	}
	if !reflect.DeepEqual(old.Storage, cur.Storage) {
		sections = append(sections, "storage")
	}
	if !reflect.DeepEqual(old.Broadcast, cur.Broadcast) {
		sections = append(sections, "broadcast")
	}
	if !reflect.DeepEqual(old.Delivery, cur.Delivery) {
		sections = append(sections, "delivery")
	}
	return sections
}
