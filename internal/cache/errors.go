package cache

import "errors"

// ErrCacheMiss отличает промах кэша от транспортной ошибки Redis
var ErrCacheMiss = errors.New("cache: miss")
