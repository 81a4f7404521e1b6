package routine

import "time"

// CacheEntry stores one processed generation result under its request key.
// Entries are write-once; several entries may share a key and form a
// candidate pool that reads sample from.
//
// The key is the raw concatenation category+difficulty+durationPerDay with
// no delimiter. That makes field boundaries ambiguous ("a1"+"" collides
// with "a"+"1") but inserting a delimiter now would orphan every entry
// written under the historical format, so the concatenation stays.
type CacheEntry struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	Key        string    `gorm:"column:key;size:512;not null;index:idx_routine_cache_key"`
	Activities []string  `gorm:"column:activities;type:text;serializer:json;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (CacheEntry) TableName() string {
	return "routine_caches"
}

// Result is the outcome of GetOrGenerate. Original carries the unprocessed
// generator output and is empty on cache hits, since only processed lines
// are cached.
type Result struct {
	Activities []string
	Original   string
}
