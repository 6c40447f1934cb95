package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"arkv/internal/platform/kafka/producer"
	"arkv/pkg/platform/audit/relay"
	"arkv/pkg/platform/audit/relay/mocks"
	"arkv/pkg/platform/audit/store/postgres"
)

// Justification: the relay is the only path from the outbox to Kafka. Tests
// pin that rows are handed to the producer with their id as key and that a
// producer failure leaves the batch unpublished.
type RelaySuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	outbox   *mocks.MockOutbox
	producer *mocks.MockProducer
	relay    *relay.Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.outbox = mocks.NewMockOutbox(s.ctrl)
	s.producer = mocks.NewMockProducer(s.ctrl)
	s.relay = relay.New(s.outbox, s.producer, "arkv.audit", relay.WithBatchSize(10))
}

// drainWith makes the outbox mock call publish with entries, the way the
// postgres store does inside its transaction.
func (s *RelaySuite) drainWith(entries []postgres.OutboxEntry) {
	s.outbox.EXPECT().
		DrainOutbox(gomock.Any(), 10, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ int, publish func(context.Context, []postgres.OutboxEntry) error) (int, error) {
			if len(entries) == 0 {
				return 0, nil
			}
			if err := publish(ctx, entries); err != nil {
				return 0, err
			}
			return len(entries), nil
		})
}

func (s *RelaySuite) TestDrainPublishesEntries() {
	entry := postgres.OutboxEntry{
		ID:          uuid.New(),
		AggregateID: "ab12",
		EventType:   "anchor_submitted",
		Payload:     []byte(`{"Action":"anchor_submitted"}`),
		CreatedAt:   time.Now(),
	}
	s.drainWith([]postgres.OutboxEntry{entry})
	s.producer.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, records ...producer.Record) error {
			s.Require().Len(records, 1)
			s.Equal("arkv.audit", records[0].Topic)
			s.Equal(entry.ID.String(), string(records[0].Key))
			s.Equal(entry.Payload, records[0].Value)
			s.Equal("anchor_submitted", records[0].Headers["event_type"])
			return nil
		})

	n, err := s.relay.Drain(context.Background())
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *RelaySuite) TestDrainEmptyOutbox() {
	s.drainWith(nil)

	n, err := s.relay.Drain(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RelaySuite) TestProducerFailureSurfaces() {
	boom := errors.New("broker not available")
	s.drainWith([]postgres.OutboxEntry{{ID: uuid.New(), Payload: []byte(`{}`)}})
	s.producer.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(boom)

	n, err := s.relay.Drain(context.Background())
	s.ErrorIs(err, boom)
	s.Zero(n)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	s.outbox.EXPECT().DrainOutbox(gomock.Any(), 10, gomock.Any()).
		DoAndReturn(func(context.Context, int, func(context.Context, []postgres.OutboxEntry) error) (int, error) {
			cancel()
			return 0, nil
		})

	err := s.relay.Run(ctx)
	s.ErrorIs(err, context.Canceled)
}
