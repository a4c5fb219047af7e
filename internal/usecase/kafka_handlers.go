package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Agora/internal/domain/models"
	domrepo "Agora/internal/domain/repository"
	"Agora/internal/domain/service"
	pkgkafka "Agora/pkg/kafka"
	applogger "Agora/pkg/logger"
)

// KafkaOpinionsHandler runs a council round for each opinion round message.
// Message schema is EvaluateInput as JSON.
type KafkaOpinionsHandler struct {
	topic   string
	uc      *DecisionUseCase
	metrics domrepo.Metrics
	log     *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*KafkaOpinionsHandler)(nil)

func NewKafkaOpinionsHandler(topic string, uc *DecisionUseCase, metrics domrepo.Metrics, l *applogger.Logger) *KafkaOpinionsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaOpinionsHandler{topic: topic, uc: uc, metrics: metrics, log: l}
}

func (h *KafkaOpinionsHandler) Topic() string { return h.topic }

func (h *KafkaOpinionsHandler) Handle(ctx context.Context, b []byte) error {
	var in EvaluateInput
	if err := json.Unmarshal(b, &in); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode opinion round: %v", pkgkafka.ErrPermanent, err)
	}
	ev, err := h.uc.Evaluate(ctx, in)
	if err != nil {
		if isInputError(err) {
			h.metrics.RecordError("consumer_invalid")
			return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
		}
		return err
	}
	h.log.Debug("opinion round consumed",
		applogger.String("instrument", ev.Decision.Instrument),
		applogger.String("trace_id", pkgkafka.TraceIDFromContext(ctx)),
	)
	return nil
}

// Outcome is ground truth for one prediction record.
type Outcome struct {
	RecordID   string `json:"record_id"`
	WasCorrect bool   `json:"was_correct"`
}

// KafkaOutcomesHandler resolves predictions from outcome messages. A message
// is either one Outcome or an array of them.
type KafkaOutcomesHandler struct {
	topic   string
	tracker service.PredictionTracker
	metrics domrepo.Metrics
	log     *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*KafkaOutcomesHandler)(nil)

func NewKafkaOutcomesHandler(topic string, tracker service.PredictionTracker, metrics domrepo.Metrics, l *applogger.Logger) *KafkaOutcomesHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaOutcomesHandler{topic: topic, tracker: tracker, metrics: metrics, log: l}
}

func (h *KafkaOutcomesHandler) Topic() string { return h.topic }

func (h *KafkaOutcomesHandler) Handle(_ context.Context, b []byte) error {
	outcomes, err := decodeOutcomes(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode outcomes: %v", pkgkafka.ErrPermanent, err)
	}
	for _, o := range outcomes {
		if _, err := h.tracker.ResolvePrediction(o.RecordID, o.WasCorrect); err != nil {
			// Unknown ids are outcomes for records this replica never saw.
			h.metrics.RecordError("resolve_unknown")
			h.log.Warn("outcome for unknown prediction",
				applogger.String("record_id", o.RecordID),
				applogger.Error(err),
			)
		}
	}
	return nil
}

func decodeOutcomes(b []byte) ([]Outcome, error) {
	var many []Outcome
	if err := json.Unmarshal(b, &many); err != nil {
		var one Outcome
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, err
		}
		many = []Outcome{one}
	}
	for i, o := range many {
		if o.RecordID == "" {
			return nil, fmt.Errorf("outcome %d: record_id is required", i)
		}
	}
	return many, nil
}

func isInputError(err error) bool {
	return errors.Is(err, models.ErrInsufficientInput) ||
		errors.Is(err, models.ErrInvalidOpinion) ||
		errors.Is(err, models.ErrInvalidSignal) ||
		errors.Is(err, models.ErrInvalidEnum)
}
