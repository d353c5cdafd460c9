// Package session binds an inbound connection to a verified user identity
// and role. Identity comes only from server-side introspection of the
// presented session token; anything the client claims about itself in the
// handshake is ignored.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/redis/go-redis/v9"
)

type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleProvider Role = "provider"
)

// Binding is the identity attached to a connection for its lifetime,
// established once at connect time.
type Binding struct {
	UserID string
	Role   Role
}

var ErrInvalidSession = errors.New("invalid or expired session")

// Verifier resolves a session token into a binding.
type Verifier interface {
	Verify(ctx context.Context, token string) (Binding, error)
}

// RedisVerifier introspects tokens against the session store the auth
// service writes to. Sessions are keyed by token hash so raw tokens never
// appear in redis.
type RedisVerifier struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisVerifier(addr, password, keyPrefix string) *RedisVerifier {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if keyPrefix == "" {
		keyPrefix = "session:"
	}
	return &RedisVerifier{client: c, keyPrefix: keyPrefix}
}

func (v *RedisVerifier) Verify(ctx context.Context, token string) (Binding, error) {
	if token == "" {
		return Binding{}, ErrInvalidSession
	}
	m, err := v.client.HGetAll(ctx, v.keyPrefix+hashToken(token)).Result()
	if err != nil {
		return Binding{}, err
	}
	b := Binding{UserID: m["user_id"], Role: Role(m["role"])}
	if b.UserID == "" || (b.Role != RoleSeeker && b.Role != RoleProvider) {
		return Binding{}, ErrInvalidSession
	}
	return b, nil
}

func (v *RedisVerifier) Close() error { return v.client.Close() }

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StaticVerifier maps fixed tokens to bindings. Local runs and tests only.
type StaticVerifier map[string]Binding

func (v StaticVerifier) Verify(_ context.Context, token string) (Binding, error) {
	b, ok := v[token]
	if !ok {
		return Binding{}, ErrInvalidSession
	}
	return b, nil
}
