package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStore is wrapped by every storage failure.
var ErrStore = errors.New("secure store failure")

// Store is an opaque secure key-value store.
type Store interface {
	// Save writes value under key, replacing any previous value.
	Save(ctx context.Context, key, value string) error
	// Read returns the value under key. ok is false when nothing is stored.
	Read(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Secret is the persisted form of one entry.
type Secret struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	Sealed    bool   `gorm:"not null;default:false"`
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (Secret) TableName() string {
	return "secrets"
}

// DBStore is a Store backed by a gorm database.
type DBStore struct {
	db  *gorm.DB
	key *[32]byte
}

// NewDBStore creates a DBStore. An invalid sealing key is a configuration error.
func NewDBStore(db *gorm.DB, cfg Config) (*DBStore, error) {
	s := &DBStore{db: db}
	if cfg.Key != "" {
		k, err := parseKey(cfg.Key)
		if err != nil {
			return nil, err
		}
		s.key = k
	}
	return s, nil
}

// Migrate creates the secrets table.
func (s *DBStore) Migrate() error {
	if err := s.db.AutoMigrate(&Secret{}); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrStore, err)
	}
	return nil
}

// Save implements Store.
func (s *DBStore) Save(ctx context.Context, key, value string) error {
	row := Secret{Key: key, Value: value}
	if s.key != nil {
		sealed, err := s.seal(value)
		if err != nil {
			return fmt.Errorf("%w: seal %s: %w", ErrStore, key, err)
		}
		row.Value = sealed
		row.Sealed = true
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "sealed", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStore, key, err)
	}
	return nil
}

// Read implements Store.
func (s *DBStore) Read(ctx context.Context, key string) (string, bool, error) {
	var row Secret
	err := s.db.WithContext(ctx).Where(keyIs(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %w", ErrStore, key, err)
	}

	if !row.Sealed {
		return row.Value, true, nil
	}
	if s.key == nil {
		return "", false, fmt.Errorf("%w: %s is sealed but no key is configured", ErrStore, key)
	}
	plain, err := s.open(row.Value)
	if err != nil {
		return "", false, fmt.Errorf("%w: open %s: %w", ErrStore, key, err)
	}
	return plain, true, nil
}

// Delete implements Store.
func (s *DBStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where(keyIs(key)).Delete(&Secret{}).Error; err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrStore, key, err)
	}
	return nil
}

func (s *DBStore) seal(value string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (s *DBStore) open(encoded string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(box) < 24+secretbox.Overhead {
		return "", errors.New("sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, s.key)
	if !ok {
		return "", errors.New("authentication failed")
	}
	return string(plain), nil
}

func keyIs(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func parseKey(raw string) (*[32]byte, error) {
	raw = strings.TrimSpace(raw)
	var b []byte
	if decoded, err := hex.DecodeString(raw); err == nil {
		b = decoded
	} else if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		b = decoded
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: sealing key must decode to 32 bytes", ErrStore)
	}
	var k [32]byte
	copy(k[:], b)
	return &k, nil
}
