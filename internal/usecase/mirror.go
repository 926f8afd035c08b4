package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

const (
	defaultMirrorBuffer = 256
	mirrorWriteTimeout  = 2 * time.Second
)

type mirrorJob struct {
	id     string
	state  *entity.GameState
	remove bool
}

// mirror copies snapshots to the repository in the background, in submission order.
type mirror struct {
	logger *slog.Logger
	repo   gameRepo

	mu     sync.Mutex
	closed bool
	jobs   chan mirrorJob
	done   chan struct{}
}

func newMirror(logger *slog.Logger, repo gameRepo, buffer int) *mirror {
	if buffer <= 0 {
		buffer = defaultMirrorBuffer
	}

	m := &mirror{
		logger: logger.With("component", "mirror"),
		repo:   repo,
		jobs:   make(chan mirrorJob, buffer),
		done:   make(chan struct{}),
	}

	go m.run()

	return m
}

func (that *mirror) save(id string, state *entity.GameState) {
	that.enqueue(mirrorJob{id: id, state: state})
}

func (that *mirror) remove(id string) {
	that.enqueue(mirrorJob{id: id, remove: true})
}

// Close waits for queued jobs to be written.
func (that *mirror) Close() {
	that.mu.Lock()
	if !that.closed {
		that.closed = true
		close(that.jobs)
	}
	that.mu.Unlock()

	<-that.done
}

func (that *mirror) enqueue(job mirrorJob) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	select {
	case that.jobs <- job:
	default:
		that.logger.Warn("mirror queue is full, dropping job", "game_id", job.id, "remove", job.remove)
	}
}

func (that *mirror) run() {
	defer close(that.done)

	for job := range that.jobs {
		that.write(job)
	}
}

func (that *mirror) write(job mirrorJob) {
	log := that.logger.With("method", "write", "game_id", job.id)

	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	if job.remove {
		if err := that.repo.DeleteByID(ctx, job.id); err != nil {
			log.Error("failed to delete game snapshot", "error", err)
		}

		return
	}

	if err := that.repo.Save(ctx, job.id, job.state); err != nil {
		log.Error("failed to save game snapshot", "error", err)
	}
}
