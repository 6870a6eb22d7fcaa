package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
	"github.com/raimp001/autocase-ai/internal/domain"
	rediscommon "github.com/raimp001/autocase-ai/internal/redis"
	"github.com/raimp001/autocase-ai/internal/repository"
	"github.com/raimp001/autocase-ai/internal/service"
)

// 低于该置信度的病症条目不入库
const minConditionConfidence = 0.7

// ExtractionConsumer OMOP 抽取任务 Redis Streams 消费者。
// 每条消息：取病例 -> 调抽取服务 -> 写 OMOP 事实表 -> FLAGGED 迁移到 OMOP_EXTRACTED。
// 叙述文本以病例行为准（消息携带的副本仅供参考，入队后病例行可能已纠正）。
type ExtractionConsumer struct {
	config      *config.Config
	redisClient *rediscommon.Client
	cases       repository.CasesRepository
	persons     repository.PersonsRepository
	extractor   service.Extractor
	queue       service.ExtractionEnqueuer
	logger      *zap.Logger
}

// NewExtractionConsumer 创建抽取消费者
func NewExtractionConsumer(
	cfg *config.Config,
	redisClient *rediscommon.Client,
	cases repository.CasesRepository,
	persons repository.PersonsRepository,
	extractor service.Extractor,
	queue service.ExtractionEnqueuer,
	logger *zap.Logger,
) *ExtractionConsumer {
	return &ExtractionConsumer{
		config:      cfg,
		redisClient: redisClient,
		cases:       cases,
		persons:     persons,
		extractor:   extractor,
		queue:       queue,
		logger:      logger,
	}
}

// Start 启动消费循环（阻塞直到 ctx 取消）
func (c *ExtractionConsumer) Start(ctx context.Context) error {
	stream := c.config.Extraction.Stream
	group := c.config.Extraction.ConsumerGroup

	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Extraction consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", group),
		zap.String("consumer_name", c.config.Extraction.ConsumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeOnce(ctx); err != nil {
				c.logger.Error("Failed to consume extraction stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeOnce 读取一批消息并逐条处理
func (c *ExtractionConsumer) consumeOnce(ctx context.Context) error {
	stream := c.config.Extraction.Stream
	group := c.config.Extraction.ConsumerGroup

	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		group,
		c.config.Extraction.ConsumerName,
		c.config.Extraction.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process extraction job",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}

		// 处理结果已持久化到病例行（成功或失败均可见），消息本身总是确认。
		// 重试由重新入队承载，不靠 pending entries 重投。
		if err := rediscommon.AckMessage(ctx, c.redisClient, stream, group, msg.ID); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条抽取任务
func (c *ExtractionConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message %s has no data field", msg.ID)
	}

	var job service.ExtractionJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("failed to parse extraction job: %w", err)
	}

	caseReport, err := c.cases.GetCase(ctx, job.CaseID)
	if err != nil {
		if domain.IsNotFound(err) {
			c.logger.Warn("Extraction job references unknown case, skipping",
				zap.String("case_id", job.CaseID),
			)
			return nil
		}
		return fmt.Errorf("failed to load case %s: %w", job.CaseID, err)
	}

	// 重复投递 / 已处理的病例直接跳过（状态守卫实现幂等）
	if caseReport.Status != domain.CaseStatusFlagged {
		c.logger.Info("Case not awaiting extraction, skipping",
			zap.String("case_id", caseReport.CaseID),
			zap.String("status", caseReport.Status),
		)
		return nil
	}

	abstraction, err := c.extractor.Extract(ctx, caseReport.EmrNarrative)
	if err != nil {
		return c.handleExtractionFailure(ctx, caseReport, job, err)
	}

	if err := c.persistAbstraction(ctx, caseReport, abstraction); err != nil {
		return c.handleExtractionFailure(ctx, caseReport, job, err)
	}

	summary, err := json.Marshal(abstraction)
	if err != nil {
		return fmt.Errorf("failed to marshal structured summary: %w", err)
	}
	if err := c.cases.SetExtractionResult(ctx, caseReport.CaseID, string(summary)); err != nil {
		return fmt.Errorf("failed to record extraction result: %w", err)
	}

	c.logger.Info("Case extracted",
		zap.String("case_id", caseReport.CaseID),
		zap.Int("conditions", len(abstraction.Conditions)),
		zap.Int("drugs", len(abstraction.Drugs)),
		zap.Int("measurements", len(abstraction.Measurements)),
	)

	return nil
}

// handleExtractionFailure 记录失败并在未达上限时重新入队
func (c *ExtractionConsumer) handleExtractionFailure(ctx context.Context, caseReport *domain.CaseReport, job service.ExtractionJob, cause error) error {
	if err := c.cases.SetExtractionFailure(ctx, caseReport.CaseID, cause.Error()); err != nil {
		c.logger.Error("Failed to record extraction failure",
			zap.String("case_id", caseReport.CaseID),
			zap.Error(err),
		)
	}

	if job.Attempt < c.config.Extraction.MaxRetries {
		retry := service.ExtractionJob{
			CaseID:    job.CaseID,
			Narrative: job.Narrative,
			Attempt:   job.Attempt + 1,
		}
		if err := c.queue.Enqueue(ctx, retry); err != nil {
			c.logger.Error("Failed to re-enqueue extraction job",
				zap.String("case_id", job.CaseID),
				zap.Error(err),
			)
		}
	} else {
		// 达到重试上限：病例停留在 FLAGGED，extraction_error 可见，等人工介入
		c.logger.Error("Extraction retries exhausted",
			zap.String("case_id", job.CaseID),
			zap.Int("attempts", job.Attempt),
		)
	}

	return fmt.Errorf("extraction failed for case %s (attempt %d): %w", caseReport.CaseID, job.Attempt, cause)
}

// persistAbstraction 将抽取结果写入 OMOP 事实表
func (c *ExtractionConsumer) persistAbstraction(ctx context.Context, caseReport *domain.CaseReport, abs *service.OmopAbstraction) error {
	for _, cond := range abs.Conditions {
		// 低置信度条目不入库（叙述里顺带提到的病史、否定语境等）
		if cond.Confidence < minConditionConfidence {
			c.logger.Info("Skipping low-confidence condition",
				zap.String("case_id", caseReport.CaseID),
				zap.String("source_value", cond.SourceValue),
				zap.Float64("confidence", cond.Confidence),
			)
			continue
		}

		startDate, err := parseOmopDate(cond.StartDate)
		if err != nil {
			c.logger.Warn("Skipping condition with invalid start date",
				zap.String("case_id", caseReport.CaseID),
				zap.String("start_date", cond.StartDate),
			)
			continue
		}

		if err := c.persons.InsertCondition(ctx, &domain.ConditionOccurrence{
			PersonID:                 caseReport.PersonID,
			ConditionConceptID:       cond.ConceptID,
			ConditionStartDate:       startDate,
			ConditionEndDate:         parseOmopDatePtr(cond.EndDate),
			ConditionTypeConceptID:   domain.ConditionTypeEHREncounter,
			ConditionSourceValue:     cond.SourceValue,
			ConditionStatusConceptID: cond.StatusConceptID,
		}); err != nil {
			return fmt.Errorf("failed to insert condition: %w", err)
		}
	}

	for _, drug := range abs.Drugs {
		startDate, err := parseOmopDate(drug.StartDate)
		if err != nil {
			c.logger.Warn("Skipping drug with invalid start date",
				zap.String("case_id", caseReport.CaseID),
				zap.String("start_date", drug.StartDate),
			)
			continue
		}

		if err := c.persons.InsertDrug(ctx, &domain.DrugExposure{
			PersonID:              caseReport.PersonID,
			DrugConceptID:         drug.ConceptID,
			DrugExposureStartDate: startDate,
			DrugExposureEndDate:   parseOmopDatePtr(drug.EndDate),
			DrugTypeConceptID:     domain.DrugTypeEHROrder,
			DrugSourceValue:       drug.SourceValue,
			RouteConceptID:        drug.RouteConceptID,
			LineOfTherapy:         drug.LineOfTherapy,
		}); err != nil {
			return fmt.Errorf("failed to insert drug exposure: %w", err)
		}
	}

	for _, m := range abs.Measurements {
		date, err := parseOmopDate(m.Date)
		if err != nil {
			c.logger.Warn("Skipping measurement with invalid date",
				zap.String("case_id", caseReport.CaseID),
				zap.String("date", m.Date),
			)
			continue
		}

		if err := c.persons.InsertMeasurement(ctx, &domain.Measurement{
			PersonID:                 caseReport.PersonID,
			MeasurementConceptID:     m.ConceptID,
			MeasurementDate:          date,
			MeasurementTypeConceptID: domain.MeasurementTypeLabResult,
			ValueAsNumber:            m.ValueAsNumber,
			ValueAsConceptID:         m.ValueAsConceptID,
			UnitConceptID:            m.UnitConceptID,
			MeasurementSourceValue:   m.SourceValue,
		}); err != nil {
			return fmt.Errorf("failed to insert measurement: %w", err)
		}
	}

	return nil
}

func parseOmopDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func parseOmopDatePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}
