package models

// CacheEntry is one cached TMDB response, keyed by lookup kind and id
// (e.g. "movie_603", "tv_tvdb_12345"). Value holds the raw JSON body.
type CacheEntry struct {
	Key       string `gorm:"primarykey;size:64" json:"key"`
	Value     string `gorm:"not null" json:"value"`
	ExpiresAt Time   `gorm:"not null;index:idx_metadata_cache_expires_at" json:"expires_at"`
	CreatedAt Time   `json:"created_at"`
}

// TableName returns the table name for CacheEntry.
func (CacheEntry) TableName() string {
	return "metadata_cache"
}

// Expired returns true once the entry's TTL has passed.
func (e *CacheEntry) Expired(now Time) bool {
	return !e.ExpiresAt.After(now)
}
