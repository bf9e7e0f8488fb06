// Package identity resolves connect tokens into a user identity plus
// the topic permissions granted to it. Tokens are HS256 JWTs issued by
// the auth provider; resolutions are cached for a short TTL so the
// connect path does not re-verify on every reconnect.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c-pro/geche"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"

	"kurator/internal/models"
)

const DefaultCacheTTL = 5 * time.Minute

var ErrBadToken = errors.New("invalid token")

// Identity is the capability set of one authenticated connection,
// computed once at connect time.
type Identity struct {
	UserID string
	Role   models.Role
	// Topics holds the permission labels of the chat topics this user
	// may see: the intersection of the token's granted roles with the
	// known topic permissions.
	Topics []string
}

type Claims struct {
	jwt.RegisteredClaims
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

// TopicSource supplies the known topic permission labels.
type TopicSource interface {
	ListTopics() ([]models.ChatTopic, error)
}

type Config struct {
	Secret   string
	CacheTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return nil
}

type Service struct {
	Config
	topics TopicSource
	cache  geche.Geche[string, Identity]
	now    func() time.Time
}

func NewService(ctx context.Context, config Config, topics TopicSource) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		Config: config,
		topics: topics,
		cache:  geche.NewMapTTLCache[string, Identity](ctx, config.CacheTTL, time.Minute),
		now:    time.Now,
	}, nil
}

// Resolve verifies the token and returns the identity it carries, or
// ErrBadToken. The caller refuses the connection on error.
func (s *Service) Resolve(token string) (Identity, error) {
	if id, err := s.cache.Get(token); err == nil {
		return id, nil
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.Secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrBadToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrBadToken
	}

	role := models.Role(claims.Role)
	if role != models.RoleClient && role != models.RoleCurator {
		return Identity{}, ErrBadToken
	}

	topics, err := s.grantedTopics(claims.Roles)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{
		UserID: claims.Subject,
		Role:   role,
		Topics: topics,
	}
	s.cache.Set(token, id)
	return id, nil
}

func (s *Service) grantedTopics(granted []string) ([]string, error) {
	topics, err := s.topics.ListTopics()
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	permissions := lo.Map(topics, func(t models.ChatTopic, _ int) string {
		return t.Permission
	})
	return lo.Intersect(permissions, granted), nil
}

// Issue mints a token for a user. Used by the token tool and tests;
// production tokens come from the auth provider.
func (s *Service) Issue(user models.User, roles []string, expiry time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Role:  string(user.Role),
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}
