package streaming

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("streaming-service: migrate pgcrypto: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS subscription_plans (
          id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          plan_name            TEXT UNIQUE NOT NULL,
          price                NUMERIC(8,2) NOT NULL DEFAULT 0,
          max_devices          INT NOT NULL DEFAULT 1,
          is_download_allowed  BOOLEAN NOT NULL DEFAULT FALSE,
          max_skips_per_day    INT NOT NULL DEFAULT 3,
          can_seek_in_songs    BOOLEAN NOT NULL DEFAULT FALSE,
          audio_quality        TEXT NOT NULL DEFAULT 'standard',
          can_create_playlists BOOLEAN NOT NULL DEFAULT FALSE
      )
    `); err != nil {
		log.Printf("streaming-service: migrate subscription_plans: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS users (
          id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          username             TEXT NOT NULL,
          email                TEXT UNIQUE NOT NULL,
          password_hash        TEXT NOT NULL DEFAULT '',
          role                 TEXT NOT NULL DEFAULT 'user',
          subscription_plan_id uuid REFERENCES subscription_plans(id) ON DELETE SET NULL,
          skips_today          INT NOT NULL DEFAULT 0,
          last_skip_date       DATE,
          created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("streaming-service: migrate users: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS media (
          id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          title            TEXT NOT NULL,
          media_type       TEXT NOT NULL DEFAULT 'music',
          url              TEXT NOT NULL,
          duration_minutes INT NOT NULL DEFAULT 0,
          genre            TEXT NOT NULL DEFAULT '',
          release_date     TIMESTAMPTZ,
          composer         TEXT NOT NULL DEFAULT '',
          album            TEXT NOT NULL DEFAULT '',
          description      TEXT NOT NULL DEFAULT '',
          language         TEXT NOT NULL DEFAULT '',
          thumbnail        BYTEA,
          creator_id       uuid REFERENCES users(id) ON DELETE SET NULL,
          created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("streaming-service: migrate media: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          name          TEXT NOT NULL,
          playlist_type TEXT NOT NULL DEFAULT 'custom',
          is_default    BOOLEAN NOT NULL DEFAULT FALSE,
          user_id       uuid REFERENCES users(id) ON DELETE CASCADE,
          created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("streaming-service: migrate playlists: %v", err)
		return err
	}

	// At most one liked-music playlist per user. The liked get-or-create
	// upsert relies on this index (see handlers_playlists.go).
	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_liked_per_user
      ON playlists(user_id, playlist_type)
      WHERE playlist_type = 'liked'
    `); err != nil {
		log.Printf("streaming-service: migrate liked index: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_media (
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          media_id    uuid NOT NULL REFERENCES media(id) ON DELETE CASCADE,
          position    INT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (playlist_id, position)
      )
    `); err != nil {
		log.Printf("streaming-service: migrate playlist_media: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS payments (
          id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id              uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          subscription_plan_id uuid NOT NULL REFERENCES subscription_plans(id),
          amount               NUMERIC(8,2) NOT NULL,
          payment_date         TIMESTAMPTZ NOT NULL DEFAULT now(),
          status               TEXT NOT NULL DEFAULT 'pending',
          transaction_id       TEXT NOT NULL DEFAULT ''
      )
    `); err != nil {
		log.Printf("streaming-service: migrate payments: %v", err)
		return err
	}

	return seedPlans(ctx, pool)
}

// seedPlans provisions the four reference plans. max_skips_per_day at or
// above the unlimited sentinel disables skip enforcement entirely.
func seedPlans(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
      INSERT INTO subscription_plans
        (plan_name, price, max_devices, is_download_allowed, max_skips_per_day,
         can_seek_in_songs, audio_quality, can_create_playlists)
      VALUES
        ('free',    0,     1, FALSE, 3,      FALSE, 'standard', FALSE),
        ('premium', 9.99,  5, TRUE,  100000, TRUE,  'high',     TRUE),
        ('family',  14.99, 6, TRUE,  100000, TRUE,  'high',     TRUE),
        ('student', 4.99,  1, TRUE,  100000, TRUE,  'high',     TRUE)
      ON CONFLICT (plan_name) DO NOTHING
    `)
	if err != nil {
		log.Printf("streaming-service: seed plans: %v", err)
	}
	return err
}
