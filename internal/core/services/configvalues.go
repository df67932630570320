package services

import (
	"time"

	"github.com/spf13/cast"

	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// Typed reads over a ConfigStore. A missing or unconvertible value reads
// as the zero value so the settings defaults apply.

func configString(store driven.ConfigStore, key string) string {
	v, ok := store.Get(key)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

func configInt(store driven.ConfigStore, key string) int {
	v, ok := store.Get(key)
	if !ok {
		return 0
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0
	}
	return n
}

func configFloat(store driven.ConfigStore, key string) float64 {
	v, ok := store.Get(key)
	if !ok {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return f
}

// configDuration accepts a time.Duration, a Go duration string ("30s") or a
// bare number of seconds.
func configDuration(store driven.ConfigStore, key string) time.Duration {
	v, ok := store.Get(key)
	if !ok {
		return 0
	}
	switch d := v.(type) {
	case time.Duration:
		return d
	case bool:
		return 0
	}
	if secs, err := cast.ToFloat64E(v); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0
	}
	return d
}
