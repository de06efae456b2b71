package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gradebook_go/models"
	"gradebook_go/utils"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AdminMenus are the navigation entries hidden from non-admin profiles.
var AdminMenus = []string{"classes", "students", "subjects", "categories", "system"}

// HiddenMenus returns the navigation entries a role should not see.
func HiddenMenus(role string) []string {
	if role == models.RoleAdmin {
		return []string{}
	}
	return append([]string{}, AdminMenus...)
}

type Claims struct {
	ProfileID string `json:"profile_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// ProfileRepository looks up sign-in profiles.
type ProfileRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

type GormProfileRepository struct {
	db *gorm.DB
}

func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

func (r *GormProfileRepository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundError("profile", email)
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NotFoundError("profile", id)
		}
		return nil, err
	}
	return &p, nil
}

// StaticProfileRepository serves a fixed set of profiles. The offline
// variant signs in with the configured admin account through it.
type StaticProfileRepository struct {
	profiles []models.Profile
}

func NewStaticProfileRepository(profiles ...models.Profile) *StaticProfileRepository {
	return &StaticProfileRepository{profiles: profiles}
}

// NewStaticAdminRepository hashes password and serves a single admin profile.
func NewStaticAdminRepository(email, password string) (*StaticProfileRepository, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewStaticProfileRepository(models.Profile{
		ID:          "offline-admin",
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Password:    hashed,
		Role:        models.RoleAdmin,
		DisplayName: "Administrator",
	}), nil
}

func (r *StaticProfileRepository) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.profiles {
		if strings.ToLower(p.Email) == email {
			p := p
			return &p, nil
		}
	}
	return nil, models.NotFoundError("profile", email)
}

func (r *StaticProfileRepository) FindByID(_ context.Context, id string) (*models.Profile, error) {
	for _, p := range r.profiles {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, models.NotFoundError("profile", id)
}

// TokenBlacklist remembers signed-out tokens until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

const blacklistPrefix = "blacklist:jwt:"

type RedisTokenBlacklist struct {
	client *redis.Client
}

func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

func (b *RedisTokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return b.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryTokenBlacklist is used when Redis is unavailable.
type MemoryTokenBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryTokenBlacklist() *MemoryTokenBlacklist {
	return &MemoryTokenBlacklist{entries: map[string]time.Time{}}
}

func (b *MemoryTokenBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for t, exp := range b.entries {
		if now.After(exp) {
			delete(b.entries, t)
		}
	}
	b.entries[token] = now.Add(ttl)
	return nil
}

func (b *MemoryTokenBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.entries[token]
	return ok && time.Now().Before(exp), nil
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   models.Profile `json:"profile"`
}

// AuthService is the email and password session provider.
type AuthService struct {
	profiles  ProfileRepository
	blacklist TokenBlacklist
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthService(profiles ProfileRepository, blacklist TokenBlacklist, secret string, ttl time.Duration) *AuthService {
	if blacklist == nil {
		blacklist = NewMemoryTokenBlacklist()
	}
	return &AuthService{
		profiles:  profiles,
		blacklist: blacklist,
		secret:    []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// GenerateToken signs a session token for the profile.
func (s *AuthService) GenerateToken(p *models.Profile) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		ProfileID: p.ID,
		Email:     p.Email,
		Role:      p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.GenerateID(),
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	return signed, expires, err
}

// ParseToken validates the signature and lifetime of a token.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignIn checks the password and opens a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError("", "email and password are required")
	}
	p, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := utils.CheckPassword(password, p.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, expires, err := s.GenerateToken(p)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, Profile: *p}, nil
}

// GetSession returns the claims of a valid, not signed-out token.
func (s *AuthService) GetSession(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignOut revokes the token for the rest of its lifetime.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.ParseToken(token)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.blacklist.Revoke(ctx, token, ttl)
}

// ProfileView is what the client needs to render navigation.
type ProfileView struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	DisplayName string   `json:"display_name"`
	HiddenMenus []string `json:"hidden_menus"`
}

// GetProfile looks up a profile's role and display name.
func (s *AuthService) GetProfile(ctx context.Context, profileID string) (*ProfileView, error) {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	// unknown roles get the teacher view
	role := p.Role
	if !utils.IsValidRole(role) {
		role = models.RoleTeacher
	}
	return &ProfileView{
		ID:          p.ID,
		Email:       p.Email,
		Role:        role,
		DisplayName: p.DisplayName,
		HiddenMenus: HiddenMenus(role),
	}, nil
}
