// Package notify fans out mention notifications through a River-backed job
// queue so comment mutations never wait on notification delivery.
package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/voiceqa/pkg/models"
)

const (
	mentionQueueName = "mention_notifications"
	maxQueueWorkers  = 5
)

// MentionNotifyArgs carries one comment's mention fan-out.
type MentionNotifyArgs struct {
	CommentID  string   `json:"comment_id"`
	AuthorID   string   `json:"author_id"`
	EntityType string   `json:"entity_type"`
	EntityID   string   `json:"entity_id"`
	UserIDs    []string `json:"user_ids"`
}

// Kind returns the job kind for River.
func (MentionNotifyArgs) Kind() string {
	return "mention_notify"
}

// MentionNotifyWorker writes one notification row per mentioned user.
type MentionNotifyWorker struct {
	river.WorkerDefaults[MentionNotifyArgs]
	pool *pgxpool.Pool
}

func (w *MentionNotifyWorker) Work(ctx context.Context, job *river.Job[MentionNotifyArgs]) error {
	args := job.Args

	for _, userID := range args.UserIDs {
		// Mentioning yourself does not generate a notification.
		if userID == args.AuthorID {
			continue
		}

		_, err := w.pool.Exec(ctx, `
			INSERT INTO mention_notifications (user_id, comment_id, entity_type, entity_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, comment_id) DO NOTHING`,
			userID, args.CommentID, args.EntityType, args.EntityID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert mention notification: %w", err)
		}
	}

	log.Info().
		Str("comment_id", args.CommentID).
		Int("mention_count", len(args.UserIDs)).
		Msg("mention notifications recorded")
	return nil
}

// Queue owns the River client and its pgx pool.
type Queue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewQueue creates the notification queue against a Postgres URL. The pool is
// owned by the queue and closed on Stop.
func NewQueue(ctx context.Context, databaseURL string) (*Queue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &MentionNotifyWorker{pool: pool})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			mentionQueueName: {MaxWorkers: maxQueueWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Queue{client: client, pool: pool}, nil
}

// Start begins working queued jobs.
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop drains the workers and closes the pool.
func (q *Queue) Stop(ctx context.Context) error {
	err := q.client.Stop(ctx)
	q.pool.Close()
	return err
}

// NotifyMentions enqueues fan-out for a comment's mentions. Comments without
// mentions are a no-op.
func (q *Queue) NotifyMentions(ctx context.Context, comment *models.Comment) error {
	if comment == nil || len(comment.Mentions) == 0 {
		return nil
	}

	userIDs := make([]string, 0, len(comment.Mentions))
	for _, m := range comment.Mentions {
		userIDs = append(userIDs, m.UserID)
	}

	args := MentionNotifyArgs{
		CommentID:  comment.ID,
		AuthorID:   comment.AuthorID,
		EntityType: comment.EntityType,
		EntityID:   comment.EntityID,
		UserIDs:    userIDs,
	}

	_, err := q.client.Insert(ctx, args, &river.InsertOpts{Queue: mentionQueueName})
	if err != nil {
		return fmt.Errorf("failed to queue mention notification job: %w", err)
	}
	return nil
}
