package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/gios"
)

// Job types carried by snapshot subscription messages.
const (
	JobTypeSnapshot = "snapshot"
	JobTypeRefresh  = "refresh"
)

// ErrUnknownStation is returned for messages about a station that is not configured.
var ErrUnknownStation = errors.New("unknown station")

// Station is a coordinator as seen by the Pub/Sub handler.
type Station interface {
	Refresher
	SetData(data *gios.Data) error
}

// StationMessage is the payload of a snapshot subscription message.
type StationMessage struct {
	JobType    string     `json:"job_type"`
	StationID  int        `json:"station_id,omitempty"`
	RefreshAll bool       `json:"refresh_all,omitempty"`
	Data       *gios.Data `json:"data,omitempty"`
}

// PubSubHandler feeds station data received over Pub/Sub into coordinators.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	stations         map[int]Station
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Stations         []Station
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Station updates are small and arrive at most every few minutes.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	h := newHandler(cfg)
	h.client = client
	h.subscriber = subscriber
	return h, nil
}

func newHandler(cfg PubSubConfig) *PubSubHandler {
	stations := make(map[int]Station, len(cfg.Stations))
	for _, s := range cfg.Stations {
		stations[s.StationID()] = s
	}
	return &PubSubHandler{
		subscriptionName: cfg.SubscriptionName,
		stations:         stations,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	if h.process(ctx, logger, msg.Data) {
		msg.Ack()
		return
	}
	msg.Nack()
}

// process handles one message body and reports whether it should be acked.
func (h *PubSubHandler) process(ctx context.Context, logger zerolog.Logger, body []byte) bool {
	startTime := time.Now()
	logger.Debug().Msg("received pubsub message")

	var stationMsg StationMessage
	if err := json.Unmarshal(body, &stationMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	var err error
	switch stationMsg.JobType {
	case JobTypeSnapshot:
		err = h.handleSnapshot(stationMsg)
	case JobTypeRefresh:
		err = h.handleRefresh(ctx, stationMsg)
	default:
		logger.Warn().Str("job_type", stationMsg.JobType).Msg("unknown job type")
		return true // ack unknown messages to prevent redelivery
	}

	if errors.Is(err, ErrUnknownStation) {
		logger.Warn().Err(err).Msg("dropping message for unconfigured station")
		return true
	}
	if errors.Is(err, coordinator.ErrNoFetcher) {
		logger.Warn().Err(err).Msg("dropping refresh for station fed by snapshots only")
		return true
	}
	if err != nil {
		logger.Error().Err(err).Str("job_type", stationMsg.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", stationMsg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

func (h *PubSubHandler) handleSnapshot(msg StationMessage) error {
	if msg.Data == nil {
		return errors.New("snapshot message without data")
	}
	station, ok := h.stations[msg.Data.StationID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStation, msg.Data.StationID)
	}
	return station.SetData(msg.Data)
}

func (h *PubSubHandler) handleRefresh(ctx context.Context, msg StationMessage) error {
	if msg.RefreshAll {
		if h.refreshJob == nil {
			return errors.New("refresh job not configured")
		}
		result := h.refreshJob.Run(ctx)
		// Consider it successful if at most half failed.
		if result.Failed > result.Successful {
			return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Total)
		}
		return nil
	}

	station, ok := h.stations[msg.StationID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStation, msg.StationID)
	}
	return station.Refresh(ctx)
}
