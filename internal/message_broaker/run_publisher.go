package message_broaker

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/logger"
	"github.com/RezaEskandarii/cronhook/types"
)

// RunEvent is the message published when a run reaches a terminal status.
type RunEvent struct {
	Instance   string    `json:"instance"`
	JobID      string    `json:"cronId"`
	JobName    string    `json:"name,omitempty"`
	Method     string    `json:"httpMethod"`
	URI        string    `json:"uri"`
	Run        types.Run `json:"run"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RunPublisher forwards finished runs to a MessageBroker. Failures are logged
// and never reach the caller.
type RunPublisher struct {
	broker     MessageBroker
	routingKey string
	instance   string
	logger     *zap.Logger
}

func NewRunPublisher(broker MessageBroker, routingKey, instance string, log *zap.Logger) *RunPublisher {
	return &RunPublisher{
		broker:     broker,
		routingKey: routingKey,
		instance:   instance,
		logger:     log.Named("run-publisher"),
	}
}

func (p *RunPublisher) RunFinished(job *types.Job, run *types.Run) {
	event := RunEvent{
		Instance:   p.instance,
		JobID:      job.ID,
		JobName:    job.Name,
		Method:     job.Method,
		URI:        job.URI,
		Run:        *run,
		FinishedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode run event", zap.String(logger.FieldRunID, run.ID), zap.Error(err))
		return
	}
	if err := p.broker.Publish(p.routingKey, payload); err != nil {
		p.logger.Warn("failed to publish run event",
			zap.String(logger.FieldJobID, job.ID),
			zap.String(logger.FieldRunID, run.ID),
			zap.Error(err),
		)
	}
}

// DecodeRunEvent parses a message produced by RunFinished.
func DecodeRunEvent(message []byte) (*RunEvent, error) {
	var event RunEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
