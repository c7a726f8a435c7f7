package util

import (
	"fmt"
)

func ddlStrings() []string {
	sqlStrings := []string{}
	sqlStrings = append(sqlStrings,
		`CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name VARCHAR(128) NOT NULL,
    email VARCHAR(128) UNIQUE NOT NULL,
    password VARCHAR(512),
    role VARCHAR(50) NOT NULL CHECK(role='admin' or role='user') DEFAULT 'user',
    google_id VARCHAR(128),
    password_changed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS tests (
    id SERIAL PRIMARY KEY,
    test_id VARCHAR(128) UNIQUE NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT,
    category VARCHAR(50) NOT NULL CHECK (category IN ('polity', 'history', 'geography', 'economy', 'science', 'current-affairs')) DEFAULT 'polity',
    duration_minutes INT NOT NULL CHECK (duration_minutes >= 1),
    price NUMERIC(10,2) NOT NULL CHECK (price >= 0) DEFAULT 0,
    instructions TEXT[],
    highlights JSONB,
    is_active BOOLEAN DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS test_questions (
    test_id INT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    position INT NOT NULL,
    question TEXT NOT NULL,
    options TEXT[] NOT NULL,
    correct_option INT NOT NULL,
    PRIMARY KEY (test_id, position)
)`,
		`CREATE TABLE IF NOT EXISTS purchases (
    id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(id),
    test_id INT NOT NULL REFERENCES tests(id),
    order_id TEXT,
    payment_id TEXT,
    payment_status VARCHAR(20) NOT NULL CHECK (payment_status IN ('pending', 'success', 'failed', 'cancelled')) DEFAULT 'pending',
    amount NUMERIC(10,2) NOT NULL,
    purchased_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		// One success row per (user, test); retried checkouts may leave
		// multiple pending/failed rows behind.
		`CREATE UNIQUE INDEX IF NOT EXISTS purchases_user_test_success_uniq
    ON purchases (user_id, test_id) WHERE payment_status = 'success'`,
		`CREATE INDEX IF NOT EXISTS purchases_order_id_idx ON purchases (order_id)`,
		`CREATE TABLE IF NOT EXISTS attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id INT NOT NULL REFERENCES users(id),
    test_id INT NOT NULL REFERENCES tests(id),
    answers JSONB NOT NULL DEFAULT '{}',
    marked_questions TEXT[] NOT NULL DEFAULT '{}',
    current_question_index INT NOT NULL DEFAULT 0,
    visited_questions TEXT[] NOT NULL DEFAULT '{}',
    started_at TIMESTAMP,
    submitted_at TIMESTAMP,
    score INT,
    percentage INT CHECK (percentage >= 0 AND percentage <= 100),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		// At most one open attempt per (user, test); concurrent creates
		// race on this index instead of both inserting.
		`CREATE UNIQUE INDEX IF NOT EXISTS attempts_user_test_open_uniq
    ON attempts (user_id, test_id) WHERE submitted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS attempts_user_submitted_idx ON attempts (user_id, submitted_at DESC)`)
	return sqlStrings
}

func CreateTableIfNotExists() error {
	sqlStrings := ddlStrings()
	for i, sql := range sqlStrings {
		_, err := DB.Exec(sql)
		if err != nil {
			return fmt.Errorf("error creating table %d: %w", i, err)
		}
	}
	return nil
}

func dropTables() []string {
	return []string{
		"DROP TABLE IF EXISTS attempts",
		"DROP TABLE IF EXISTS purchases",
		"DROP TABLE IF EXISTS test_questions",
		"DROP TABLE IF EXISTS tests",
		"DROP TABLE IF EXISTS users",
	}
}
