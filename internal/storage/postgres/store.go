package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpFarm/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for engine snapshots and the event journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// UpsertRoutes inserts or updates the route table of a run.
func (s *Store) UpsertRoutes(ctx context.Context, runID string, routes []model.Route) error {
	if len(routes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range routes {
		batch.Queue(`
			INSERT INTO routes (run_id, route_index, path, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (run_id, route_index)
			DO UPDATE SET
				active = EXCLUDED.active,
				updated_at = now()
		`,
			runID,
			r.Index,
			r.Path,
			r.Active,
		)
	}
	return s.sendBatch(ctx, batch, len(routes))
}

// UpsertPositions inserts or updates stake positions of a run.
func (s *Store) UpsertPositions(ctx context.Context, runID string, positions []model.Position) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range positions {
		lots, err := json.Marshal(p.Lots)
		if err != nil {
			return fmt.Errorf("marshal lots: %w", err)
		}
		batch.Queue(`
			INSERT INTO stake_positions (
				run_id, user_address, pair_address, lp_amount, stake_value, reward_paid_per,
				rewards_accrued, earned, lots, created_at, updated_at
			) VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8::numeric,$9,now(),now())
			ON CONFLICT (run_id, user_address)
			DO UPDATE SET
				pair_address = EXCLUDED.pair_address,
				lp_amount = EXCLUDED.lp_amount,
				stake_value = EXCLUDED.stake_value,
				reward_paid_per = EXCLUDED.reward_paid_per,
				rewards_accrued = EXCLUDED.rewards_accrued,
				earned = EXCLUDED.earned,
				lots = EXCLUDED.lots,
				updated_at = now()
		`,
			runID,
			p.User,
			p.Pair,
			p.LPAmount,
			p.StakeValue,
			p.RewardPerPaid,
			p.RewardsAccrued,
			p.Earned,
			lots,
		)
	}
	return s.sendBatch(ctx, batch, len(positions))
}

// UpsertRewardState stores the accumulator snapshot of a run.
func (s *Store) UpsertRewardState(ctx context.Context, runID string, st model.RewardState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reward_state (
			run_id, reward_token, total_stake_value, reward_rate, period_finish, last_update_time,
			reward_per_stake_value, total_notified, total_paid, stakers, updated_at
		) VALUES ($1,$2,$3::numeric,$4::numeric,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10,now())
		ON CONFLICT (run_id)
		DO UPDATE SET
			total_stake_value = EXCLUDED.total_stake_value,
			reward_rate = EXCLUDED.reward_rate,
			period_finish = EXCLUDED.period_finish,
			last_update_time = EXCLUDED.last_update_time,
			reward_per_stake_value = EXCLUDED.reward_per_stake_value,
			total_notified = EXCLUDED.total_notified,
			total_paid = EXCLUDED.total_paid,
			stakers = EXCLUDED.stakers,
			updated_at = now()
	`,
		runID,
		st.RewardToken,
		st.TotalStakeValue,
		st.RewardRate,
		int64(st.PeriodFinish),
		int64(st.LastUpdateTime),
		st.RewardPerStakeValue,
		st.TotalNotified,
		st.TotalPaid,
		st.Stakers,
	)
	return err
}

// InsertEvents appends journal events, ignoring ones already stored.
func (s *Store) InsertEvents(ctx context.Context, events []model.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		var data []byte
		if len(e.Data) > 0 {
			data = e.Data
		}
		batch.Queue(`
			INSERT INTO ledger_events (run_id, seq, ts, op, event_name, caller, error, data)
			VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8)
			ON CONFLICT (run_id, seq) DO NOTHING
		`,
			e.RunID,
			int64(e.Seq),
			int64(e.Timestamp),
			e.Op,
			e.EventName,
			e.Caller,
			e.Error,
			data,
		)
	}
	return s.sendBatch(ctx, batch, len(events))
}

// LoadState returns the journal state stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.JournalState, bool, error) {
	st := model.JournalState{Name: name}
	if name == "" {
		return st, false, fmt.Errorf("state name required")
	}
	var (
		seq      int64
		scenario *string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, scenario, last_seq, updated_at FROM journal_state WHERE name=$1
	`, name)
	if err := row.Scan(&st.RunID, &scenario, &seq, &st.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return st, false, nil
		}
		return st, false, err
	}
	if scenario != nil {
		st.Scenario = *scenario
	}
	st.LastSeq = uint64(seq)
	return st, true, nil
}

// SaveState upserts the journal state under st.Name.
func (s *Store) SaveState(ctx context.Context, st model.JournalState) error {
	if st.Name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_state (name, run_id, scenario, last_seq, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now())
		ON CONFLICT (name) DO UPDATE
		SET run_id = EXCLUDED.run_id,
			scenario = EXCLUDED.scenario,
			last_seq = EXCLUDED.last_seq,
			updated_at = now()
	`, st.Name, st.RunID, st.Scenario, int64(st.LastSeq))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
