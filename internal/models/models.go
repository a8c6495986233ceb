package models

import (
	userModel "github.com/mnuddindev/otakushelf/internal/models/user"
	watchlistModel "github.com/mnuddindev/otakushelf/internal/models/watchlist"
)

// RegisterModels lists every table for AutoMigrate.
func RegisterModels() []interface{} {
	return []interface{}{
		&userModel.User{},
		&userModel.Credential{},
		&watchlistModel.WatchlistItem{},
	}
}
