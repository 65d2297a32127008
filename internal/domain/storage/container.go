package storage

import (
	"nightmap/internal/db"
	"nightmap/internal/domain/accesscontrol"
	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/pushtokens"
)

// Container groups the Postgres-backed repositories the API needs.
type Container struct {
	POIs          pois.Store
	AccessControl accesscontrol.Store
	PushTokens    pushtokens.Store
}

func NewContainer(q db.Querier) *Container {
	return &Container{
		POIs:          pois.NewRepository(q),
		AccessControl: accesscontrol.NewRepository(q),
		PushTokens:    pushtokens.NewRepository(q),
	}
}
