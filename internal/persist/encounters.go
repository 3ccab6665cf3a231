package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/raidtrack/engine/internal/ports"
)

// EncounterRepo implements ports.Persister over the sqlite encounters table,
// staging every save through pending_saves first
// so a crash mid-write never drops a completed encounter: the write-ahead
// row is committed on its own before the encounters insert begins.
type EncounterRepo struct {
	db  *DB
	log *zap.Logger
}

func NewEncounterRepo(db *DB, log *zap.Logger) *EncounterRepo {
	return &EncounterRepo{db: db, log: log}
}

// Save implements ports.Persister: gzip-compresses enc as JSON, commits it to
// pending_saves, then inserts the encounters row and clears the staging row
// in one transaction.
func (r *EncounterRepo) Save(ctx context.Context, version string, enc ports.CompleteEncounter) error {
	payload, err := encodeEncounter(enc)
	if err != nil {
		return fmt.Errorf("encode encounter: %w", err)
	}

	now := time.Now().Unix()
	res, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO pending_saves (created_on, version, payload) VALUES (?, ?, ?)`,
		now, version, payload)
	if err != nil {
		return fmt.Errorf("stage pending save: %w", err)
	}
	stagedID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("stage pending save id: %w", err)
	}

	tx, err := r.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback()

	bossName, startedOn, endedOn := encounterHeader(enc)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO encounters (started_on, ended_on, boss_name, raid_clear, region, difficulty, version, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		startedOn, endedOn, bossName, enc.RaidClear, enc.Region, enc.RaidDifficulty, version, payload,
	); err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_saves WHERE id = ?`, stagedID); err != nil {
		return fmt.Errorf("clear pending save: %w", err)
	}

	return tx.Commit()
}

// RecoverPending replays any pending_saves rows left behind by a crash
// between the stage and the final encounters insert, inserting them into
// encounters and clearing the staging table. Call once at startup before
// accepting new Save calls.
func (r *EncounterRepo) RecoverPending(ctx context.Context) (int, error) {
	rows, err := r.db.Conn.QueryContext(ctx, `SELECT id, version, payload FROM pending_saves ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("query pending saves: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id      int64
		version string
		payload []byte
	}
	var staged []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.version, &p.payload); err != nil {
			return 0, fmt.Errorf("scan pending save: %w", err)
		}
		staged = append(staged, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	recovered := 0
	for _, p := range staged {
		enc, err := decodeEncounter(p.payload)
		if err != nil {
			r.log.Error("dropping unreadable pending save", zap.Int64("id", p.id), zap.Error(err))
			if _, delErr := r.db.Conn.ExecContext(ctx, `DELETE FROM pending_saves WHERE id = ?`, p.id); delErr != nil {
				return recovered, delErr
			}
			continue
		}
		bossName, startedOn, endedOn := encounterHeader(enc)

		tx, err := r.db.Conn.BeginTx(ctx, nil)
		if err != nil {
			return recovered, fmt.Errorf("begin recovery tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO encounters (started_on, ended_on, boss_name, raid_clear, region, difficulty, version, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			startedOn, endedOn, bossName, enc.RaidClear, enc.Region, enc.RaidDifficulty, p.version, p.payload,
		); err != nil {
			tx.Rollback()
			return recovered, fmt.Errorf("recover encounter %d: %w", p.id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_saves WHERE id = ?`, p.id); err != nil {
			tx.Rollback()
			return recovered, fmt.Errorf("clear recovered save %d: %w", p.id, err)
		}
		if err := tx.Commit(); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

func encodeEncounter(enc ports.CompleteEncounter) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(enc); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEncounter(payload []byte) (ports.CompleteEncounter, error) {
	var enc ports.CompleteEncounter
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return enc, err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return enc, err
	}
	err = json.Unmarshal(data, &enc)
	return enc, err
}

// encounterHeader pulls the indexed columns out of the otherwise-opaque
// CompleteEncounter payload; BossHPLog only has boss names as keys, so the
// one with the most samples is reported as the encounter's boss.
func encounterHeader(enc ports.CompleteEncounter) (bossName string, startedOn, endedOn int64) {
	best := -1
	for name, points := range enc.BossHPLog {
		if len(points) > best {
			best, bossName = len(points), name
		}
	}
	startedOn = enc.NTPFightStart / 1000
	endedOn = time.Now().Unix()
	return bossName, startedOn, endedOn
}
