// Package urlconfig manages the local list of URLs queried when no sheet is
// configured. The list is one JSON document behind a storage.Blob.
package urlconfig

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/report"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/storage"
)

// DefaultDescription is written into a freshly created config.
const DefaultDescription = "Lista de URLs para consultar en Google Analytics 4"

var (
	ErrInvalidURL    = errors.New("invalid or empty URL")
	ErrDuplicate     = errors.New("URL already exists")
	ErrNotFound      = errors.New("URL not found")
	ErrDuplicateList = errors.New("list contains duplicate URLs")
)

// Config is the persisted document.
type Config struct {
	URLs        []string `json:"urls"`
	LastUpdated string   `json:"lastUpdated"`
	Description string   `json:"description"`
}

var gitBashPrefix = regexp.MustCompile(`^.*/Git`)

// Normalize trims u and wraps it in leading and trailing slashes. Paths that
// Git Bash rewrote into its install directory are restored first.
func Normalize(u string) (string, error) {
	u = strings.TrimSpace(u)
	if u == "" {
		return "", ErrInvalidURL
	}
	if strings.Contains(u, "C:/Program Files/Git/") || strings.Contains(u, "/c/Program Files/Git/") {
		u = gitBashPrefix.ReplaceAllString(u, "")
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u, nil
}

// Manager serializes read-modify-write cycles on the config document.
type Manager struct {
	blob storage.Blob
	key  string
	now  func() time.Time
	mu   sync.Mutex
}

// NewManager returns a manager for the document stored under key.
func NewManager(blob storage.Blob, key string) *Manager {
	return &Manager{blob: blob, key: key, now: time.Now}
}

// List returns the config, creating the default document when absent.
func (m *Manager) List(ctx context.Context) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Add appends u after normalizing it. It returns the stored form and the new total.
func (m *Manager) Add(ctx context.Context, u string) (string, int, error) {
	norm, err := Normalize(u)
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.load(ctx)
	if err != nil {
		return "", 0, err
	}
	for _, existing := range cfg.URLs {
		if existing == norm {
			return norm, len(cfg.URLs), ErrDuplicate
		}
	}
	cfg.URLs = append(cfg.URLs, norm)
	if err := m.save(ctx, cfg); err != nil {
		return "", 0, err
	}
	logger.Info("url added", "url", norm, "total", len(cfg.URLs))
	return norm, len(cfg.URLs), nil
}

// Remove deletes a URL given either its 1-based position or the URL itself.
// It returns the removed URL (or the normalized value on ErrNotFound).
func (m *Manager) Remove(ctx context.Context, value string) (string, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", 0, ErrInvalidURL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.load(ctx)
	if err != nil {
		return "", 0, err
	}

	index, target := -1, value
	if isDigits(value) {
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= len(cfg.URLs) {
			index = n - 1
			target = cfg.URLs[index]
		}
	} else {
		target, _ = Normalize(value)
		for i, existing := range cfg.URLs {
			if existing == target {
				index = i
				break
			}
		}
	}
	if index < 0 {
		return target, len(cfg.URLs), ErrNotFound
	}

	cfg.URLs = append(cfg.URLs[:index], cfg.URLs[index+1:]...)
	if err := m.save(ctx, cfg); err != nil {
		return "", 0, err
	}
	logger.Info("url removed", "url", target, "total", len(cfg.URLs))
	return target, len(cfg.URLs), nil
}

// Replace swaps the whole list. Duplicates after normalization are rejected.
func (m *Manager) Replace(ctx context.Context, urls []string) (int, error) {
	seen := make(map[string]bool, len(urls))
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		norm, err := Normalize(u)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", err, u)
		}
		if seen[norm] {
			return 0, ErrDuplicateList
		}
		seen[norm] = true
		normalized = append(normalized, norm)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.load(ctx)
	if err != nil {
		return 0, err
	}
	cfg.URLs = normalized
	if err := m.save(ctx, cfg); err != nil {
		return 0, err
	}
	logger.Info("url list replaced", "total", len(normalized))
	return len(normalized), nil
}

// Clear empties the list and returns how many URLs were removed.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.load(ctx)
	if err != nil {
		return 0, err
	}
	count := len(cfg.URLs)
	cfg.URLs = []string{}
	if err := m.save(ctx, cfg); err != nil {
		return 0, err
	}
	logger.Info("url list cleared", "count", count)
	return count, nil
}

// URLs implements the collector's URL source.
func (m *Manager) URLs(ctx context.Context) ([]string, error) {
	cfg, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.URLs, nil
}

func (m *Manager) load(ctx context.Context) (*Config, error) {
	var cfg Config
	err := storage.GetJSON(ctx, m.blob, m.key, &cfg)
	if errors.Is(err, storage.ErrNotFound) {
		cfg = Config{URLs: []string{}, Description: DefaultDescription}
		if err := m.save(ctx, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading url config: %w", err)
	}
	if cfg.URLs == nil {
		cfg.URLs = []string{}
	}
	return &cfg, nil
}

func (m *Manager) save(ctx context.Context, cfg *Config) error {
	cfg.LastUpdated = report.FormatTimestamp(m.now())
	if err := storage.PutJSON(ctx, m.blob, m.key, cfg); err != nil {
		return fmt.Errorf("saving url config: %w", err)
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
