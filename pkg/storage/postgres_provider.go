package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgreSQLProvider implements the StorageProvider interface using PostgreSQL
type PostgreSQLProvider struct {
	db *sql.DB
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	// Set default port if not specified
	if config.Port == 0 {
		config.Port = 5432
	}

	// Set default SSL mode if not specified
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return NewPostgreSQLProviderWithDB(db), nil
}

// NewPostgreSQLProviderWithDB creates a provider on an open database handle
func NewPostgreSQLProviderWithDB(db *sql.DB) *PostgreSQLProvider {
	return &PostgreSQLProvider{db: db}
}

// Initialize creates the preferences table if it doesn't exist
func (p *PostgreSQLProvider) Initialize() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// GetPreferenceStore returns the store for a namespace
func (p *PostgreSQLProvider) GetPreferenceStore(namespace string) (PreferenceStore, error) {
	namespace, err := validNamespace(namespace)
	if err != nil {
		return nil, err
	}
	return &PostgreSQLPreferenceStore{db: p.db, namespace: namespace}, nil
}

// PostgreSQLPreferenceStore implements the PreferenceStore interface using PostgreSQL
type PostgreSQLPreferenceStore struct {
	db        *sql.DB
	namespace string
}

func (s *PostgreSQLPreferenceStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM preferences WHERE namespace = $1 AND key = $2",
		s.namespace, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrPreferenceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference: %w", err)
	}
	return value, nil
}

// GetItem returns the value for key
func (s *PostgreSQLPreferenceStore) GetItem(key string) (string, bool, error) {
	return lookup(s.get(key))
}

// SetItem upserts value under key
func (s *PostgreSQLPreferenceStore) SetItem(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// RemoveItem deletes key
func (s *PostgreSQLPreferenceStore) RemoveItem(key string) error {
	_, err := s.db.Exec(
		"DELETE FROM preferences WHERE namespace = $1 AND key = $2",
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}
