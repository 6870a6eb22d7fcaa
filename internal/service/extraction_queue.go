package service

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "github.com/raimp001/autocase-ai/internal/redis"
)

// ExtractionJob 抽取任务消息。
// 叙述文本是便捷副本，worker 抽取前以病例行为准（见 consumer）。
type ExtractionJob struct {
	CaseID    string `json:"case_id"`
	Narrative string `json:"narrative"`
	Attempt   int    `json:"attempt"`
}

// ExtractionEnqueuer 任务入队能力
type ExtractionEnqueuer interface {
	Enqueue(ctx context.Context, job ExtractionJob) error
}

// ExtractionQueue Redis Streams 抽取任务队列。
// 入队失败对同意/病例写入非致命：记录后由带外重试补偿。
type ExtractionQueue struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewExtractionQueue 创建抽取任务队列
func NewExtractionQueue(redisClient *redis.Client, stream string, logger *zap.Logger) *ExtractionQueue {
	return &ExtractionQueue{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

var _ ExtractionEnqueuer = (*ExtractionQueue)(nil)

// Enqueue 发布抽取任务
func (q *ExtractionQueue) Enqueue(ctx context.Context, job ExtractionJob) error {
	id, err := rediscommon.PublishJSONToStream(ctx, q.redisClient, q.stream, job)
	if err != nil {
		return fmt.Errorf("failed to enqueue extraction job: %w", err)
	}

	q.logger.Info("Extraction job enqueued",
		zap.String("case_id", job.CaseID),
		zap.String("message_id", id),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
