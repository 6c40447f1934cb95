package notary_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"arkv/internal/anchoring"
	anchoringmocks "arkv/internal/anchoring/mocks"
	"arkv/internal/artifact"
	"arkv/internal/attestation"
	"arkv/internal/index"
	"arkv/internal/notary"
	"arkv/internal/notary/mocks"
	"arkv/internal/storage"
	id "arkv/pkg/domain"
	dErrors "arkv/pkg/domain-errors"
	"arkv/pkg/platform/audit"
	auditmemory "arkv/pkg/platform/audit/store/memory"
	"arkv/pkg/requestcontext"
)

// =============================================================================
// Notary Service Test Suite
// =============================================================================
// Justification: the orchestrator owns the abort points of both workflows.
// Tests pin that nothing is indexed unless an anchor was submitted, that an
// unavailable DNS check never blocks anchoring, that collaborator faults map
// to coded errors with user-facing messages, and that rechecks leave anchor
// state alone.

const (
	signerAddr = "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"
	txID       = "0x2f3c5e8a9b1d4f6e7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type NotarySuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	anchorer *mocks.MockAnchorer
	index    *mocks.MockIndex
	attester *mocks.MockAttester
	content  *mocks.MockContentStore
	network  *mocks.MockNetworkChecker
	signer   *anchoringmocks.MockSigner
	events   *auditmemory.InMemoryStore
	service  *notary.Service
}

func TestNotarySuite(t *testing.T) {
	suite.Run(t, new(NotarySuite))
}

func (s *NotarySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.anchorer = mocks.NewMockAnchorer(s.ctrl)
	s.index = mocks.NewMockIndex(s.ctrl)
	s.attester = mocks.NewMockAttester(s.ctrl)
	s.content = mocks.NewMockContentStore(s.ctrl)
	s.network = mocks.NewMockNetworkChecker(s.ctrl)
	s.signer = anchoringmocks.NewMockSigner(s.ctrl)
	s.events = auditmemory.NewInMemoryStore()

	var err error
	s.service, err = notary.New(s.anchorer, s.index, s.attester,
		notary.WithSigner(s.signer),
		notary.WithNetwork(s.network, notary.TestnetChainTag),
		notary.WithContentStore(s.content),
		notary.WithAuditor(eventSink{s.events}),
		notary.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		notary.WithClock(func() time.Time { return fixedNow }),
	)
	s.Require().NoError(err)
}

// eventSink appends synchronously so assertions see every event.
type eventSink struct {
	store *auditmemory.InMemoryStore
}

func (e eventSink) Emit(ctx context.Context, event audit.Event) error {
	return e.store.Append(ctx, event)
}

func (s *NotarySuite) probe() {
	s.signer.EXPECT().SignCertificate(gomock.Any(), anchoring.IdentificationCertificate()).Return(signerAddr, nil)
	s.network.EXPECT().ChainTag(gomock.Any()).Return(notary.TestnetChainTag, nil)
	s.Require().True(s.service.Probe(context.Background()).Available)
}

func (s *NotarySuite) actions(subject string) []string {
	events, err := s.events.ListBySubject(context.Background(), subject)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

// unindexed makes the index report fp as never notarized.
func (s *NotarySuite) unindexed(fp id.Fingerprint) *gomock.Call {
	return s.index.EXPECT().Get(gomock.Any(), fp).Return(nil, fmt.Errorf("%w: %s", index.ErrNotFound, fp))
}

func pendingTx(fp id.Fingerprint) *anchoring.Transaction {
	return &anchoring.Transaction{
		Fingerprint:   fp,
		TransactionID: txID,
		SubmittedAt:   fixedNow,
		Status:        anchoring.StatusPending,
	}
}

func fileFingerprint(file []byte, metadata map[string]string) id.Fingerprint {
	fp, err := artifact.FingerprintRecord(artifact.NewFileRecord(file, metadata))
	if err != nil {
		panic(err)
	}
	return fp
}

func techCorp() artifact.BusinessFields {
	return artifact.BusinessFields{
		EntityName: "TechCorp LLC",
		Domain:     "techcorp.com",
		Country:    "US",
		LegalType:  "LLC",
		Category:   "Technology",
	}
}

func businessFingerprint(f artifact.BusinessFields) id.Fingerprint {
	fp, err := artifact.FingerprintRecord(artifact.NewBusinessRecord(f))
	if err != nil {
		panic(err)
	}
	return fp
}

func (s *NotarySuite) TestProbe() {
	ctx := context.Background()

	s.Run("available when the signer identifies and the chain tag matches", func() {
		s.SetupTest()
		s.probe()

		state := s.service.Provider()
		s.True(state.Available)
		s.Equal(signerAddr, state.SignerAddress)
		s.Equal(fixedNow, state.CheckedAt)

		events, err := s.events.ListRecent(ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventProviderProbed), events[0].Action)
		s.Equal("available", events[0].Decision)
		s.Equal(signerAddr, events[0].ActorID)
	})

	s.Run("declined identification leaves the provider unavailable", func() {
		s.SetupTest()
		s.signer.EXPECT().SignCertificate(gomock.Any(), gomock.Any()).Return("", anchoring.Declined("user rejected"))

		state := s.service.Probe(ctx)
		s.False(state.Available)
		s.False(state.WrongNetwork)
		s.Contains(state.Reason, "identification failed")
	})

	s.Run("wrong chain tag asks to switch network", func() {
		s.SetupTest()
		s.signer.EXPECT().SignCertificate(gomock.Any(), gomock.Any()).Return(signerAddr, nil)
		s.network.EXPECT().ChainTag(gomock.Any()).Return(byte(0x4a), nil)

		state := s.service.Probe(ctx)
		s.False(state.Available)
		s.True(state.WrongNetwork)

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: []byte("doc")})
		s.Require().Error(err)
		s.ErrorIs(err, notary.ErrWrongNetwork)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
		s.Equal(notary.MsgSwitchNetwork, notary.StatusMessage(err))
	})

	s.Run("unreachable node leaves the provider unavailable", func() {
		s.SetupTest()
		s.signer.EXPECT().SignCertificate(gomock.Any(), gomock.Any()).Return(signerAddr, nil)
		s.network.EXPECT().ChainTag(gomock.Any()).Return(byte(0), errors.New("connection refused"))

		state := s.service.Probe(ctx)
		s.False(state.Available)
		s.False(state.WrongNetwork)
		s.Contains(state.Reason, "connection refused")
	})

	s.Run("no signer configured", func() {
		svc, err := notary.New(s.anchorer, s.index, s.attester)
		s.Require().NoError(err)

		state := svc.Probe(ctx)
		s.False(state.Available)
		s.Equal("no signer configured", state.Reason)
	})
}

func (s *NotarySuite) TestNotarizeFile() {
	ctx := context.Background()
	file := []byte("%PDF-1.7 quarterly report")
	metadata := map[string]string{"title": "Q1 report", "author": "finance"}
	fp := fileFingerprint(file, metadata)

	s.Run("fails fast before the provider is probed", func() {
		s.SetupTest()

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().Error(err)
		s.ErrorIs(err, notary.ErrProviderUnavailable)
		s.Equal(notary.MsgConnectWallet, notary.StatusMessage(err))
	})

	s.Run("anchors and indexes the file", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.anchorer.EXPECT().Anchor(gomock.Any(), s.signer, fp, gomock.Any()).Return(pendingTx(fp), nil)
		s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *index.Record) error {
			s.Equal(fp, r.Fingerprint)
			s.Equal(artifact.KindFile, r.Kind)
			s.Equal(signerAddr, r.Owner)
			s.Equal(metadata, r.Metadata)
			s.Equal(txID, r.Anchor.TransactionID)
			s.Equal(fixedNow, r.CreatedAt)
			s.Empty(r.ContentID)
			return nil
		})

		result, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().NoError(err)
		s.Equal(index.StatusUnattested, result.Status)
		s.Equal(notary.DefaultExplorerURL+txID, result.ExplorerURL)
		s.Equal(notary.MsgCompleted, result.StatusMessage)
		s.Equal([]string{
			notary.StepHashing,
			notary.StepAwaitingWallet,
			notary.StepSending,
			notary.MsgCompleted,
		}, result.Steps)
		s.Equal([]string{
			string(audit.EventAnchorSubmitted),
			string(audit.EventNotarizationCreated),
		}, s.actions(fp.String()))
	})

	s.Run("stores content before anchoring", func() {
		s.SetupTest()
		s.probe()
		gomock.InOrder(
			s.unindexed(fp),
			s.content.EXPECT().Put(gomock.Any(), file, metadata).Return("bafkreiexample", nil),
			s.anchorer.EXPECT().Anchor(gomock.Any(), s.signer, fp, gomock.Any()).Return(pendingTx(fp), nil),
			s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil),
		)

		result, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata, Store: true})
		s.Require().NoError(err)
		s.Equal("bafkreiexample", result.Record.ContentID)
		s.Contains(result.Steps, notary.StepStoring)
	})

	s.Run("storage failure aborts before anchoring", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.content.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", fmt.Errorf("%w: node offline", storage.ErrUnavailable))

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata, Store: true})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("missing payload asks for a file", func() {
		s.SetupTest()
		s.probe()

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{Metadata: metadata})
		s.Require().Error(err)
		s.ErrorIs(err, artifact.ErrEncoding)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal(notary.MsgSelectFile, notary.StatusMessage(err))
	})

	s.Run("pending anchor is a conflict and nothing is indexed", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).
			Return(nil, &anchoring.ConflictError{Existing: pendingTx(fp)})

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().Error(err)
		s.ErrorIs(err, anchoring.ErrAlreadyPending)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.True(strings.HasPrefix(notary.StatusMessage(err), notary.MsgTxFailed))
		s.Equal([]string{string(audit.EventAnchorRejected)}, s.actions(fp.String()))
	})

	s.Run("declined signature reports the reason", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).
			Return(nil, anchoring.Declined("user cancelled"))

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("Transaction failed: user cancelled", notary.StatusMessage(err))
	})

	s.Run("re-anchoring after a failed anchor enriches the existing record", func() {
		s.SetupTest()
		s.probe()
		failed := pendingTx(fp)
		failed.TransactionID = "0xfailed"
		failed.Status = anchoring.StatusFailed
		s.index.EXPECT().Get(gomock.Any(), fp).
			Return(&index.Record{Fingerprint: fp, Kind: artifact.KindFile, Anchor: failed}, nil).Times(2)
		tx := pendingTx(fp)
		s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).Return(tx, nil)
		s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("%w: %s", index.ErrDuplicateFingerprint, fp))
		s.index.EXPECT().Update(gomock.Any(), fp, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.Fingerprint, p index.Patch) (*index.Record, error) {
				s.Equal(tx, p.Anchor)
				s.Nil(p.ContentID)
				s.Require().NotNil(p.Owner)
				return &index.Record{Fingerprint: fp, Kind: artifact.KindFile, Anchor: tx, CreatedAt: fixedNow.Add(-time.Hour)}, nil
			})

		result, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().NoError(err)
		s.Equal(fixedNow.Add(-time.Hour), result.Record.CreatedAt)
	})

	s.Run("index fault after submission is internal", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).Return(pendingTx(fp), nil)
		s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.NotContains(s.actions(fp.String()), string(audit.EventNotarizationCreated))
	})

	s.Run("an anchor held by the index blocks signing", func() {
		for _, status := range []anchoring.Status{anchoring.StatusPending, anchoring.StatusConfirmed} {
			s.SetupTest()
			s.probe()
			held := pendingTx(fp)
			held.Status = status
			s.index.EXPECT().Get(gomock.Any(), fp).
				Return(&index.Record{Fingerprint: fp, Kind: artifact.KindFile, Anchor: held}, nil)

			_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata, Store: true})
			s.Require().Error(err, status)
			var conflict *anchoring.ConflictError
			s.Require().ErrorAs(err, &conflict)
			s.Equal(txID, conflict.Existing.TransactionID)
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
			s.Equal([]string{string(audit.EventAnchorRejected)}, s.actions(fp.String()))
		}
	})

	s.Run("a duplicate record with an active anchor is not overwritten", func() {
		s.SetupTest()
		s.probe()
		confirmed := pendingTx(fp)
		confirmed.Status = anchoring.StatusConfirmed
		gomock.InOrder(
			s.unindexed(fp),
			s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).Return(&anchoring.Transaction{
				Fingerprint: fp, TransactionID: "0xsecond", Status: anchoring.StatusPending, SubmittedAt: fixedNow,
			}, nil),
			s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).
				Return(fmt.Errorf("%w: %s", index.ErrDuplicateFingerprint, fp)),
			s.index.EXPECT().Get(gomock.Any(), fp).
				Return(&index.Record{Fingerprint: fp, Kind: artifact.KindFile, Anchor: confirmed}, nil),
		)

		_, err := s.service.NotarizeFile(ctx, notary.FileRequest{File: file, Metadata: metadata})
		s.Require().Error(err)
		s.ErrorIs(err, anchoring.ErrAlreadyConfirmed)
		s.NotContains(s.actions(fp.String()), string(audit.EventNotarizationCreated))
	})
}

func (s *NotarySuite) TestNotarizeBusiness() {
	ctx := context.Background()
	fields := techCorp()
	fp := businessFingerprint(fields)
	domain := id.DomainName("techcorp.com")

	s.Run("records the attestation with the anchor", func() {
		s.SetupTest()
		s.probe()
		att := attestation.Attestation{Domain: domain, Fingerprint: fp, Verified: true, CheckedAt: fixedNow, MatchedRecord: "SHA-ID:" + fp.String()}
		gomock.InOrder(
			s.unindexed(fp),
			s.attester.EXPECT().Check(gomock.Any(), domain, fp).Return(att, nil),
			s.anchorer.EXPECT().Anchor(gomock.Any(), s.signer, fp, gomock.Any()).Return(pendingTx(fp), nil),
			s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *index.Record) error {
				s.Equal(artifact.KindBusiness, r.Kind)
				s.Equal(domain, r.Domain)
				s.Equal("TechCorp LLC", r.EntityName)
				s.Require().NotNil(r.Attestation)
				s.True(r.Attestation.Verified)
				s.Equal(fields.Map(), r.Metadata)
				return nil
			}),
		)

		result, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: fields})
		s.Require().NoError(err)
		s.Equal(index.StatusDomainVerified, result.Status)
		s.False(result.AttestationUnavailable)
		s.Contains(result.Steps, notary.StepCheckingDNS)
		s.Equal([]string{
			string(audit.EventAttestationChecked),
			string(audit.EventAnchorSubmitted),
			string(audit.EventNotarizationCreated),
		}, s.actions(fp.String()))
	})

	s.Run("unavailable attestation does not stop anchoring", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.attester.EXPECT().Check(gomock.Any(), domain, fp).
			Return(attestation.Attestation{}, &attestation.UnavailableError{Domain: domain, Attempts: 3, Err: errors.New("SERVFAIL")})
		s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).Return(pendingTx(fp), nil)
		s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *index.Record) error {
			s.Nil(r.Attestation)
			return nil
		})

		result, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: fields})
		s.Require().NoError(err)
		s.True(result.AttestationUnavailable)
		s.Equal(index.StatusUnattested, result.Status)
		s.Contains(s.actions(fp.String()), string(audit.EventAttestationUnavailable))
	})

	s.Run("cancelled DNS check aborts before anchoring", func() {
		s.SetupTest()
		s.probe()
		s.unindexed(fp)
		s.attester.EXPECT().Check(gomock.Any(), domain, fp).Return(attestation.Attestation{}, context.Canceled)

		_, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: fields})
		s.Require().Error(err)
		s.ErrorIs(err, context.Canceled)
	})

	s.Run("a confirmed anchor held by the index skips the DNS check", func() {
		s.SetupTest()
		s.probe()
		confirmed := pendingTx(fp)
		confirmed.Status = anchoring.StatusConfirmed
		s.index.EXPECT().Get(gomock.Any(), fp).
			Return(&index.Record{Fingerprint: fp, Kind: artifact.KindBusiness, Domain: domain, Anchor: confirmed}, nil)

		_, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: fields})
		s.Require().Error(err)
		s.ErrorIs(err, anchoring.ErrAlreadyConfirmed)
	})

	s.Run("index fault before anchoring is returned", func() {
		s.SetupTest()
		s.probe()
		s.index.EXPECT().Get(gomock.Any(), fp).Return(nil, errors.New("connection reset"))

		_, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: fields})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("invalid domain is rejected before the DNS check", func() {
		s.SetupTest()
		s.probe()
		bad := fields
		bad.Domain = "not a domain"

		_, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: bad})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing field is an encoding error", func() {
		s.SetupTest()
		s.probe()
		bad := fields
		bad.EntityName = ""

		_, err := s.service.NotarizeBusiness(ctx, notary.BusinessRequest{Fields: bad})
		s.Require().Error(err)
		var encErr *artifact.EncodingError
		s.Require().ErrorAs(err, &encErr)
		s.Equal(artifact.FieldEntityName, encErr.Field)
	})
}

func (s *NotarySuite) TestVerify() {
	ctx := context.Background()
	full := &index.Record{
		Fingerprint: businessFingerprint(techCorp()),
		Domain:      "techcorp.com",
		Anchor:      &anchoring.Transaction{Status: anchoring.StatusConfirmed, TransactionID: txID},
		Attestation: &attestation.Attestation{Verified: true},
		CreatedAt:   fixedNow,
	}
	partial := &index.Record{
		Fingerprint: fileFingerprint([]byte("x"), nil),
		Domain:      "techcorp.io",
		CreatedAt:   fixedNow.Add(-time.Minute),
	}

	s.Run("classifies every match", func() {
		s.index.EXPECT().Query(gomock.Any(), id.QueryByDomain, "techcorp").Return([]*index.Record{full, partial}, nil)

		results, err := s.service.Verify(ctx, id.QueryByDomain, "techcorp")
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		s.Equal(index.StatusFullyVerified, results[0].Status)
		s.Equal(notary.SummaryFullyVerified, results[0].Summary)
		s.Equal(index.StatusUnattested, results[1].Status)
		s.Equal(notary.SummaryPartial, results[1].Summary)
	})

	s.Run("no match is empty", func() {
		s.index.EXPECT().Query(gomock.Any(), id.QueryByEntity, "nobody").Return([]*index.Record{}, nil)

		results, err := s.service.Verify(ctx, id.QueryByEntity, "nobody")
		s.Require().NoError(err)
		s.Empty(results)
	})

	s.Run("index faults are internal", func() {
		s.index.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		_, err := s.service.Verify(ctx, id.QueryByFingerprint, "abcd")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *NotarySuite) TestDNSInstructions() {
	ctx := context.Background()
	fp := businessFingerprint(techCorp())

	s.Run("names the record to publish", func() {
		s.index.EXPECT().Get(gomock.Any(), fp).Return(&index.Record{Fingerprint: fp, Domain: "techcorp.com"}, nil)

		ins, err := s.service.DNSInstructions(ctx, "0x"+strings.ToUpper(fp.String()))
		s.Require().NoError(err)
		s.Equal("_arkv.techcorp.com", ins.Name)
		s.Equal("TXT", ins.Type)
		s.Equal("SHA-ID:"+fp.String(), ins.Value)
	})

	s.Run("file notarizations have no domain", func() {
		s.index.EXPECT().Get(gomock.Any(), fp).Return(&index.Record{Fingerprint: fp, Kind: artifact.KindFile}, nil)

		_, err := s.service.DNSInstructions(ctx, fp.String())
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("unknown fingerprint is not found", func() {
		s.index.EXPECT().Get(gomock.Any(), fp).Return(nil, fmt.Errorf("%w: %s", index.ErrNotFound, fp))

		_, err := s.service.DNSInstructions(ctx, fp.String())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed fingerprint never reaches the index", func() {
		_, err := s.service.DNSInstructions(ctx, "xyz")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *NotarySuite) TestRecheckAttestation() {
	ctx := context.Background()
	fp := businessFingerprint(techCorp())
	confirmed := &anchoring.Transaction{Fingerprint: fp, TransactionID: txID, Status: anchoring.StatusConfirmed}
	record := &index.Record{Fingerprint: fp, Domain: "techcorp.com", Anchor: confirmed, CreatedAt: fixedNow}

	s.Run("replaces the attestation and never the anchor", func() {
		att := attestation.Attestation{Domain: "techcorp.com", Fingerprint: fp, Verified: true}
		s.index.EXPECT().Get(gomock.Any(), fp).Return(record.Clone(), nil)
		s.attester.EXPECT().Recheck(gomock.Any(), id.DomainName("techcorp.com"), fp).Return(att, nil)
		s.index.EXPECT().Update(gomock.Any(), fp, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.Fingerprint, p index.Patch) (*index.Record, error) {
				s.Nil(p.Anchor)
				s.Require().NotNil(p.Attestation)
				updated := record.Clone()
				p.Apply(updated)
				return updated, nil
			})

		v, err := s.service.RecheckAttestation(ctx, fp.String())
		s.Require().NoError(err)
		s.Equal(index.StatusFullyVerified, v.Status)
		s.Equal(anchoring.StatusConfirmed, v.Record.Anchor.Status)
	})

	s.Run("unavailable DNS leaves the record untouched", func() {
		s.index.EXPECT().Get(gomock.Any(), fp).Return(record.Clone(), nil)
		s.attester.EXPECT().Recheck(gomock.Any(), gomock.Any(), fp).
			Return(attestation.Attestation{}, &attestation.UnavailableError{Domain: "techcorp.com", Err: errors.New("timeout")})

		_, err := s.service.RecheckAttestation(ctx, fp.String())
		s.Require().Error(err)
		s.ErrorIs(err, attestation.ErrUnavailable)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *NotarySuite) TestRecheckDomain() {
	ctx := context.Background()
	a := &index.Record{Fingerprint: fileFingerprint([]byte("a"), nil), Domain: "techcorp.com"}
	b := &index.Record{Fingerprint: fileFingerprint([]byte("b"), nil), Domain: "techcorp.com"}

	s.index.EXPECT().ListByDomain(gomock.Any(), id.DomainName("techcorp.com")).Return([]*index.Record{a, b}, nil)
	s.attester.EXPECT().Recheck(gomock.Any(), id.DomainName("techcorp.com"), a.Fingerprint).
		Return(attestation.Attestation{Domain: "techcorp.com", Fingerprint: a.Fingerprint, Verified: true}, nil)
	s.attester.EXPECT().Recheck(gomock.Any(), id.DomainName("techcorp.com"), b.Fingerprint).
		Return(attestation.Attestation{}, &attestation.UnavailableError{Domain: "techcorp.com", Err: errors.New("SERVFAIL")})
	s.index.EXPECT().Update(gomock.Any(), a.Fingerprint, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.Fingerprint, p index.Patch) (*index.Record, error) {
			updated := a.Clone()
			p.Apply(updated)
			return updated, nil
		})

	results, err := s.service.RecheckDomain(ctx, "TechCorp.com")
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(a.Fingerprint, results[0].Record.Fingerprint)
	s.Equal(index.StatusDomainVerified, results[0].Status)
	s.False(results[0].AttestationUnavailable)
	s.Equal(b.Fingerprint, results[1].Record.Fingerprint)
	s.True(results[1].AttestationUnavailable)
}

func (s *NotarySuite) TestConfirmAnchor() {
	fp := businessFingerprint(techCorp())
	confirmed := pendingTx(fp)
	confirmed.Status = anchoring.StatusConfirmed
	ctx := requestcontext.WithCaller(context.Background(), "ledger-watcher")

	s.Run("attaches the confirmed anchor to the record", func() {
		s.SetupTest()
		s.anchorer.EXPECT().Confirm(gomock.Any(), txID).Return(confirmed, nil)
		s.index.EXPECT().Update(gomock.Any(), fp, index.Patch{Anchor: confirmed}).Return(&index.Record{Fingerprint: fp}, nil)

		s.Require().NoError(s.service.ConfirmAnchor(ctx, txID))
		events, err := s.events.ListBySubject(ctx, fp.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAnchorConfirmed), events[0].Action)
		s.Equal("ledger-watcher", events[0].ActorID)
		s.Equal(audit.CategoryLedger, events[0].Category)
	})

	s.Run("missing record does not fail the transition", func() {
		s.SetupTest()
		s.anchorer.EXPECT().Confirm(gomock.Any(), txID).Return(confirmed, nil)
		s.index.EXPECT().Update(gomock.Any(), fp, gomock.Any()).Return(nil, fmt.Errorf("%w: %s", index.ErrNotFound, fp))

		s.NoError(s.service.ConfirmAnchor(ctx, txID))
	})

	s.Run("index fault is returned for retry", func() {
		s.SetupTest()
		s.anchorer.EXPECT().Confirm(gomock.Any(), txID).Return(confirmed, nil)
		s.index.EXPECT().Update(gomock.Any(), fp, gomock.Any()).Return(nil, errors.New("deadlock detected"))

		err := s.service.ConfirmAnchor(ctx, txID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(s.actions(fp.String()))
	})

	s.Run("unknown transaction is not found", func() {
		s.SetupTest()
		s.anchorer.EXPECT().Confirm(gomock.Any(), "0xdead").Return(nil, fmt.Errorf("%w: tx 0xdead", anchoring.ErrNotFound))

		err := s.service.ConfirmAnchor(ctx, "0xdead")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *NotarySuite) TestFailAnchor() {
	fp := businessFingerprint(techCorp())
	failed := pendingTx(fp)
	failed.Status = anchoring.StatusFailed
	failed.Reason = "reverted"

	s.anchorer.EXPECT().Fail(gomock.Any(), txID, "reverted").Return(failed, nil)
	s.index.EXPECT().Update(gomock.Any(), fp, index.Patch{Anchor: failed}).Return(&index.Record{Fingerprint: fp}, nil)

	s.Require().NoError(s.service.FailAnchor(context.Background(), txID, "reverted"))
	events, err := s.events.ListBySubject(context.Background(), fp.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventAnchorFailed), events[0].Action)
	s.Equal("reverted", events[0].Reason)
}

func (s *NotarySuite) TestAuditFailureDoesNotFailWorkflow() {
	auditor := mocks.NewMockAuditPublisher(s.ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox full")).AnyTimes()
	svc, err := notary.New(s.anchorer, s.index, s.attester,
		notary.WithSigner(s.signer),
		notary.WithAuditor(auditor),
		notary.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	s.signer.EXPECT().SignCertificate(gomock.Any(), gomock.Any()).Return(signerAddr, nil)
	s.Require().True(svc.Probe(context.Background()).Available)

	file := []byte("contract")
	fp := fileFingerprint(file, nil)
	s.unindexed(fp)
	s.anchorer.EXPECT().Anchor(gomock.Any(), gomock.Any(), fp, gomock.Any()).Return(pendingTx(fp), nil)
	s.index.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	_, err = svc.NotarizeFile(context.Background(), notary.FileRequest{File: file})
	s.NoError(err)
}
