// Package job provides background job processing using Asynq.
//
// Asynq is a Redis-backed job queue:
//   - tasks are enqueued with an asynq.Client
//   - an asynq.Server runs the workers that process them
//
// The service only uses it to store unbox results outside the request.
package job

import (
	"github.com/deppfellow/case-unboxing/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Queue names, from most to least important.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// JobService holds the Asynq client (enqueue) and server (worker execution).
type JobService struct {
	Client *asynq.Client
	server *asynq.Server
	logger *zerolog.Logger
	saver  UnboxSaver
}

// NewJobService creates a JobService on the Redis configured in cfg.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger:   newAsynqLogger(logger),
			LogLevel: asynq.WarnLevel,
		},
	)

	return &JobService{
		Client: client,
		server: server,
		logger: logger,
	}
}

// Start registers the task handlers and starts the workers. InitHandlers must
// be called first.
func (j *JobService) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRecordUnbox, j.handleRecordUnboxTask)

	j.logger.Info().Msg("Starting background job server")

	return j.server.Start(mux)
}

// Stop waits for in-flight tasks and closes the Redis connections.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Error().Err(err).Msg("failed to close job client")
	}
}
