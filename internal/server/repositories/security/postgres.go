package security

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/secledger/internal/dbx"
	"github.com/dmitrijs2005/secledger/internal/server/models"
)

// advisoryLockKey serializes all security transactions across server
// instances sharing one database.
const advisoryLockKey int64 = 0x5ec1ed9e

// PostgresStore keeps one row per user in the user_security table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, q dbx.DBTX) error {
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		tx := &postgresTx{
			q:       q,
			records: map[string]*models.UserSecurity{},
			dirty:   map[string]bool{},
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.flush(ctx)
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type postgresTx struct {
	q       dbx.DBTX
	records map[string]*models.UserSecurity
	dirty   map[string]bool
}

func (t *postgresTx) GetOrCreate(ctx context.Context, username string) (*models.UserSecurity, error) {
	if rec, ok := t.records[username]; ok {
		return rec.Clone(), nil
	}

	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO user_security (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`,
		username); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	query :=
		`SELECT devices, buddy, buddy_requests, face_id, two_factor_secret, two_factor_enabled
		 FROM user_security
		 WHERE username = $1
		 FOR UPDATE`

	var (
		devices, requests        []byte
		buddy, faceID, tfaSecret sql.NullString
		rec                      = models.NewUserSecurity()
	)
	err := t.q.QueryRowContext(ctx, query, username).
		Scan(&devices, &buddy, &requests, &faceID, &tfaSecret, &rec.TwoFactorEnabled)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(devices) > 0 {
		if err := json.Unmarshal(devices, &rec.Devices); err != nil {
			return nil, fmt.Errorf("decode devices: %w", err)
		}
	}
	if len(requests) > 0 {
		if err := json.Unmarshal(requests, &rec.BuddyRequests); err != nil {
			return nil, fmt.Errorf("decode buddy requests: %w", err)
		}
	}
	rec.Buddy = buddy.String
	rec.FaceID = faceID.String
	rec.TwoFactorSecret = tfaSecret.String
	rec.Normalize()

	t.records[username] = rec
	return rec.Clone(), nil
}

func (t *postgresTx) Put(_ context.Context, username string, rec *models.UserSecurity) error {
	c := rec.Clone()
	c.Normalize()
	t.records[username] = c
	t.dirty[username] = true
	return nil
}

func (t *postgresTx) flush(ctx context.Context) error {
	names := make([]string, 0, len(t.dirty))
	for name := range t.dirty {
		names = append(names, name)
	}
	slices.Sort(names)

	query :=
		`INSERT INTO user_security
		   (username, devices, buddy, buddy_requests, face_id, two_factor_secret, two_factor_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (username) DO UPDATE SET
		   devices = EXCLUDED.devices,
		   buddy = EXCLUDED.buddy,
		   buddy_requests = EXCLUDED.buddy_requests,
		   face_id = EXCLUDED.face_id,
		   two_factor_secret = EXCLUDED.two_factor_secret,
		   two_factor_enabled = EXCLUDED.two_factor_enabled,
		   updated_at = now()`

	for _, name := range names {
		rec := t.records[name]
		devices, err := json.Marshal(rec.Devices)
		if err != nil {
			return fmt.Errorf("encode devices: %w", err)
		}
		requests, err := json.Marshal(rec.BuddyRequests)
		if err != nil {
			return fmt.Errorf("encode buddy requests: %w", err)
		}

		_, err = t.q.ExecContext(ctx, query,
			name,
			string(devices),
			nullString(rec.Buddy),
			string(requests),
			nullString(rec.FaceID),
			nullString(rec.TwoFactorSecret),
			rec.TwoFactorEnabled,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
