package anchoring_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"arkv/internal/anchoring"
	"arkv/internal/anchoring/mocks"
	"arkv/internal/anchoring/store/memory"
	id "arkv/pkg/domain"
)

// =============================================================================
// Coordinator Test Suite
// =============================================================================
// Justification: the coordinator is the serialization point for anchoring a
// fingerprint. Tests pin the idempotency guarantee, the no-mutation rule on
// signer rejection, and the pending -> confirmed/failed transitions.

const fp = id.Fingerprint("69c698c5b973e0f46e4c79a0e98184779ee00d503e19cab55c40b25ca9af399f")

type CoordinatorSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	signer      *mocks.MockSigner
	store       *memory.InMemoryStore
	coordinator *anchoring.Coordinator
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.signer = mocks.NewMockSigner(s.ctrl)
	s.store = memory.New()

	var err error
	s.coordinator, err = anchoring.New(s.store,
		anchoring.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *CoordinatorSuite) TestClause() {
	fee, err := anchoring.FixedFee(big.NewInt(1000))
	s.Require().NoError(err)

	clause := s.coordinator.Clause(fp, fee)
	s.Equal(common.Address{}, clause.To)
	s.Equal("1000", clause.Value.String())
	s.Equal(fp.Bytes(), clause.Data)
	s.Equal(anchoring.DefaultComment, clause.Comment)
}

func (s *CoordinatorSuite) TestAnchor() {
	s.Run("success records a pending transaction carrying the fee", func() {
		s.SetupTest()
		s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Len(1)).
			DoAndReturn(func(_ context.Context, clauses []anchoring.Clause) (string, error) {
				s.Equal(fp.Hex(), "0x"+common.Bytes2Hex(clauses[0].Data))
				return "0xabc", nil
			})

		tx, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.Require().NoError(err)
		s.Equal(anchoring.StatusPending, tx.Status)
		s.Equal("0xabc", tx.TransactionID)
		s.Equal(int64(0), tx.FeePaid.Int64())
		s.False(tx.SubmittedAt.IsZero())
	})

	s.Run("second anchor while pending fails AlreadyPending and keeps one transaction", func() {
		s.SetupTest()
		s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("0xabc", nil).Times(1)

		_, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.Require().NoError(err)

		_, err = s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.Require().ErrorIs(err, anchoring.ErrAlreadyPending)
		s.NotErrorIs(err, anchoring.ErrAlreadyConfirmed)

		pending, err := s.coordinator.Pending(context.Background())
		s.Require().NoError(err)
		s.Len(pending, 1)
	})

	s.Run("anchor after confirmation fails AlreadyConfirmed", func() {
		s.SetupTest()
		s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("0xabc", nil).Times(1)

		_, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.Require().NoError(err)
		_, err = s.coordinator.Confirm(context.Background(), "0xabc")
		s.Require().NoError(err)

		_, err = s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.ErrorIs(err, anchoring.ErrAlreadyConfirmed)
	})

	s.Run("anchor after failure is allowed", func() {
		s.SetupTest()
		gomock.InOrder(
			s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("0x01", nil),
			s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("0x02", nil),
		)

		_, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.Require().NoError(err)
		_, err = s.coordinator.Fail(context.Background(), "0x01", "reverted")
		s.Require().NoError(err)

		tx, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
		s.Require().NoError(err)
		s.Equal("0x02", tx.TransactionID)
	})

	s.Run("missing signer fails SubmissionFailed", func() {
		s.SetupTest()
		_, err := s.coordinator.Anchor(context.Background(), nil, fp, anchoring.NoFee())
		s.ErrorIs(err, anchoring.ErrSubmissionFailed)
	})
}

func (s *CoordinatorSuite) TestSignerRejectionLeavesNoTransaction() {
	tests := []struct {
		name    string
		signErr error
		want    error
	}{
		{"user declined", anchoring.Declined("closed the wallet prompt"), anchoring.ErrUserDeclined},
		{"insufficient funds", anchoring.InsufficientFunds("no energy", nil), anchoring.ErrInsufficientFunds},
		{"typed submission failure", anchoring.SubmissionFailed("node rejected", nil), anchoring.ErrSubmissionFailed},
		{"untyped network fault", errors.New("connection reset"), anchoring.ErrSubmissionFailed},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("", tt.signErr)

			_, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
			s.Require().ErrorIs(err, tt.want)

			var signErr *anchoring.SignerError
			s.ErrorAs(err, &signErr)

			_, err = s.coordinator.Get(context.Background(), fp)
			s.ErrorIs(err, anchoring.ErrNotFound)

			// The claim was released, so a retry reaches the signer again.
			s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("0xretry", nil)
			tx, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
			s.Require().NoError(err)
			s.Equal("0xretry", tx.TransactionID)
		})
	}
}

func (s *CoordinatorSuite) TestConcurrentAnchorSameFingerprint() {
	release := make(chan struct{})
	var signCalls atomic.Int32
	s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []anchoring.Clause) (string, error) {
			signCalls.Add(1)
			<-release
			return "0xonly", nil
		}).AnyTimes()

	const callers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		pending   atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, anchoring.ErrAlreadyPending):
				pending.Add(1)
			}
		}()
	}

	// Let every rejected caller return before the winner completes.
	s.Eventually(func() bool { return pending.Load() == callers-1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(1), signCalls.Load())

	list, err := s.coordinator.Pending(context.Background())
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *CoordinatorSuite) TestResolve() {
	s.signer.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return("0xabc", nil)
	_, err := s.coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
	s.Require().NoError(err)

	s.Run("unknown transaction", func() {
		_, err := s.coordinator.Confirm(context.Background(), "0xmissing")
		s.ErrorIs(err, anchoring.ErrNotFound)
	})

	s.Run("confirm is idempotent", func() {
		tx, err := s.coordinator.Confirm(context.Background(), "0xabc")
		s.Require().NoError(err)
		s.Equal(anchoring.StatusConfirmed, tx.Status)
		s.NotNil(tx.ResolvedAt)

		tx, err = s.coordinator.Confirm(context.Background(), "0xabc")
		s.Require().NoError(err)
		s.Equal(anchoring.StatusConfirmed, tx.Status)
	})

	s.Run("confirmed cannot fail", func() {
		_, err := s.coordinator.Fail(context.Background(), "0xabc", "late revert")
		s.ErrorIs(err, anchoring.ErrInvalidTransition)
	})

	s.Run("lookups return copies", func() {
		tx, err := s.coordinator.GetByTransactionID(context.Background(), "0xabc")
		s.Require().NoError(err)
		tx.Status = anchoring.StatusFailed

		again, err := s.coordinator.Get(context.Background(), fp)
		s.Require().NoError(err)
		s.Equal(anchoring.StatusConfirmed, again.Status)
	})
}

func (s *CoordinatorSuite) TestStoreFaultIsNotAConflict() {
	store := mocks.NewMockStore(s.ctrl)
	coordinator, err := anchoring.New(store)
	s.Require().NoError(err)

	store.EXPECT().Claim(gomock.Any(), fp, gomock.Any()).Return(nil, errors.New("redis down"))

	_, err = coordinator.Anchor(context.Background(), s.signer, fp, anchoring.NoFee())
	s.Require().Error(err)
	s.NotErrorIs(err, anchoring.ErrAlreadyPending)
}

func TestParseFee(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "0", false},
		{"0", "0", false},
		{"1000000000000000000", "1000000000000000000", false},
		{"0x0", "0", false},
		{"0x3e8", "1000", false},
		{"-1", "", true},
		{"ten", "", true},
		{"0xzz", "", true},
	}
	for _, tt := range tests {
		fee, err := anchoring.ParseFee(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, fee.Amount().String(), tt.in)
	}
}
