// Package notary runs the notarization workflows: it composes the encoder,
// DNS attestation, ledger anchoring, content storage and the verification
// index into the operations exposed to callers.
package notary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"arkv/internal/anchoring"
	"arkv/internal/notary/metrics"
	dErrors "arkv/pkg/domain-errors"
	"arkv/pkg/platform/audit"
	"arkv/pkg/requestcontext"
)

// TestnetChainTag is the genesis chain tag of the VeChain test network.
const TestnetChainTag byte = 0x27

// DefaultExplorerURL prefixes transaction ids in anchor responses.
const DefaultExplorerURL = "https://explore-testnet.vechain.org/transactions/"

const defaultRecheckConcurrency = 8

var tracer = otel.Tracer("notary")

// Service orchestrates notarization and verification.
type Service struct {
	anchorer Anchorer
	index    Index
	attester Attester

	signer   anchoring.Signer
	network  NetworkChecker
	chainTag byte
	content  ContentStore
	auditor  AuditPublisher

	explorerURL        string
	recheckConcurrency int

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	provider ProviderState
}

// Option configures a Service.
type Option func(*Service)

// WithSigner sets the signing collaborator used for anchoring and probing.
func WithSigner(signer anchoring.Signer) Option {
	return func(s *Service) {
		s.signer = signer
	}
}

// WithNetwork makes the probe verify the ledger node's chain tag.
func WithNetwork(checker NetworkChecker, chainTag byte) Option {
	return func(s *Service) {
		s.network = checker
		s.chainTag = chainTag
	}
}

// WithContentStore enables storing file payloads.
func WithContentStore(store ContentStore) Option {
	return func(s *Service) {
		s.content = store
	}
}

// WithAuditor sets the audit publisher.
func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithExplorerURL sets the block explorer prefix for transaction links.
func WithExplorerURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.explorerURL = url
		}
	}
}

// WithRecheckConcurrency bounds parallel DNS checks in RecheckDomain.
func WithRecheckConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recheckConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service. The provider starts unavailable until Probe runs.
func New(anchorer Anchorer, idx Index, attester Attester, opts ...Option) (*Service, error) {
	if anchorer == nil {
		return nil, fmt.Errorf("anchorer is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if attester == nil {
		return nil, fmt.Errorf("attester is required")
	}
	s := &Service{
		anchorer:           anchorer,
		index:              idx,
		attester:           attester,
		chainTag:           TestnetChainTag,
		explorerURL:        DefaultExplorerURL,
		recheckConcurrency: defaultRecheckConcurrency,
		logger:             slog.Default(),
		now:                time.Now,
		provider:           ProviderState{Reason: "provider not probed"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Probe asks the signer to sign the identification certificate and checks
// that the ledger node is on the expected network. The result gates every
// notarization until the next probe.
func (s *Service) Probe(ctx context.Context) ProviderState {
	ctx, span := tracer.Start(ctx, "notary.Probe")
	defer span.End()

	state := s.probe(ctx)
	state.CheckedAt = s.now()

	s.mu.Lock()
	s.provider = state
	s.mu.Unlock()

	s.metrics.SetProviderAvailable(state.Available)
	decision := "available"
	if !state.Available {
		decision = "unavailable"
		span.SetStatus(codes.Error, state.Reason)
		s.logger.WarnContext(ctx, "signing provider unavailable", "reason", state.Reason)
	} else {
		s.logger.InfoContext(ctx, "signing provider available", "signer", state.SignerAddress)
	}
	s.emit(ctx, audit.EventProviderProbed, audit.Event{
		ActorID:  state.SignerAddress,
		Decision: decision,
		Reason:   state.Reason,
	})
	return state
}

func (s *Service) probe(ctx context.Context) ProviderState {
	if s.signer == nil {
		return ProviderState{Reason: "no signer configured"}
	}
	addr, err := s.signer.SignCertificate(ctx, anchoring.IdentificationCertificate())
	if err != nil {
		return ProviderState{Reason: fmt.Sprintf("identification failed: %v", err)}
	}
	if s.network != nil {
		tag, err := s.network.ChainTag(ctx)
		if err != nil {
			return ProviderState{SignerAddress: addr, Reason: fmt.Sprintf("ledger node unreachable: %v", err)}
		}
		if tag != s.chainTag {
			return ProviderState{
				SignerAddress: addr,
				Reason:        fmt.Sprintf("chain tag 0x%02x, expected 0x%02x", tag, s.chainTag),
				WrongNetwork:  true,
			}
		}
	}
	return ProviderState{Available: true, SignerAddress: addr}
}

// Provider returns the last probe result.
func (s *Service) Provider() ProviderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Service) requireProvider() (ProviderState, error) {
	state := s.Provider()
	if !state.Available {
		return state, &ProviderError{Reason: state.Reason, WrongNetwork: state.WrongNetwork}
	}
	return state, nil
}

// ExplorerLink returns the explorer URL for a ledger transaction.
func (s *Service) ExplorerLink(txID string) string {
	if txID == "" {
		return ""
	}
	return strings.TrimRight(s.explorerURL, "/") + "/" + txID
}

// finish closes a workflow: it translates err, records it on the span and
// observes the outcome.
func (s *Service) finish(span trace.Span, workflow string, start time.Time, err error) error {
	outcome := "success"
	if err != nil {
		err = translate(err)
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.ObserveWorkflow(workflow, outcome, time.Since(start))
	return err
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Action = string(action)
	event.Category = action.Category()
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientSummary = requestcontext.ClientSummary(ctx)
	event.IP = requestcontext.ClientIP(ctx)
	if event.ActorID == "" {
		event.ActorID = requestcontext.Caller(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"subject", event.Subject,
			"error", err,
		)
	}
}
