package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists asked questions and how they were answered.
type Store struct {
	pool *pgxpool.Pool
}

// Entry is one answered question.
type Entry struct {
	Question  string
	Used      string
	State     string
	AllowWeb  bool
	Status    int
	Duration  time.Duration
	CreatedAt time.Time
}

// QuestionLog defines the methods that the Store must implement.
type QuestionLog interface {
	Record(ctx context.Context, e Entry) error
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate creates the questions table.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS questions (
  id          BIGSERIAL PRIMARY KEY,
  question    TEXT NOT NULL,
  used        TEXT NOT NULL DEFAULT '',
  state       TEXT NOT NULL DEFAULT '',
  allow_web   BOOLEAN NOT NULL DEFAULT FALSE,
  status      INT NOT NULL,
  duration_ms BIGINT NOT NULL DEFAULT 0,
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS questions_created_at_idx
  ON questions (created_at);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// Record inserts one question. A zero CreatedAt uses the database clock.
func (s *Store) Record(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO questions (question, used, state, allow_web, status, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))`
	var created *time.Time
	if !e.CreatedAt.IsZero() {
		created = &e.CreatedAt
	}
	_, err := s.pool.Exec(ctx, q,
		e.Question, e.Used, e.State, e.AllowWeb, e.Status, e.Duration.Milliseconds(), created)
	return err
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
