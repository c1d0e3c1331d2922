package auth

import (
	"context"
	"time"

	"github.com/habedi/dogs/client"
)

// Authenticator is the identity API the orchestrator delegates to.
// client.IdentityClient satisfies it.
type Authenticator interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error)
	Refresh(ctx context.Context, req client.RefreshRequest) (*client.TokenPair, error)
}

// Storage is a best-effort string key/value store that survives restarts.
// Get returns "" for absent keys. Implementations must be safe for concurrent use.
type Storage interface {
	Get(key string) string
	Set(key, value string)
	Remove(key string)
}

// Clock abstracts time for renewal scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
