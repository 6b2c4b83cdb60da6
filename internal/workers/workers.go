package workers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StartLifecycleWorker starts a background routine that closes out challenges
// whose end date has passed. Runs hourly; the sweep is idempotent, so missed
// ticks or concurrent instances are harmless.
func StartLifecycleWorker(db *pgxpool.Pool) {
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		completeExpiredChallenges(db)
		for range ticker.C {
			completeExpiredChallenges(db)
		}
	}()
}

func completeExpiredChallenges(db *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tx, err := db.Begin(ctx)
	if err != nil {
		log.Printf("Lifecycle worker: failed to begin transaction: %v", err)
		return
	}
	defer tx.Rollback(ctx)

	// Flip the challenge first, then credit every human participant who
	// finished all of its days.
	rows, err := tx.Query(ctx, `
		UPDATE challenges
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'active' AND end_date < CURRENT_DATE
		RETURNING id, duration_days
	`)
	if err != nil {
		log.Printf("Lifecycle worker: failed to complete challenges: %v", err)
		return
	}

	type completed struct {
		id           uuid.UUID
		durationDays int
	}
	var done []completed
	for rows.Next() {
		var c completed
		if err := rows.Scan(&c.id, &c.durationDays); err != nil {
			rows.Close()
			log.Printf("Lifecycle worker: failed to scan challenge: %v", err)
			return
		}
		done = append(done, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Printf("Lifecycle worker: error iterating challenges: %v", err)
		return
	}

	for _, c := range done {
		_, err := tx.Exec(ctx, `
			UPDATE profiles
			SET total_challenges_completed = total_challenges_completed + 1,
			    updated_at = NOW()
			WHERE id IN (
				SELECT user_id FROM challenge_participants
				WHERE challenge_id = $1 AND user_id IS NOT NULL
					AND status = 'active' AND days_completed >= $2
			)
		`, c.id, c.durationDays)
		if err != nil {
			log.Printf("Lifecycle worker: failed to credit finishers for %v: %v", c.id, err)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("Lifecycle worker: failed to commit sweep: %v", err)
		return
	}

	if len(done) > 0 {
		log.Printf("Lifecycle worker: completed %d challenges", len(done))
	}
}
