package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"arkv/internal/anchoring"
	"arkv/internal/notary"
	id "arkv/pkg/domain"
	dErrors "arkv/pkg/domain-errors"
	"arkv/pkg/platform/httputil"
	"arkv/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the notary operations exposed over HTTP.
type Service interface {
	NotarizeFile(ctx context.Context, req notary.FileRequest) (*notary.Result, error)
	NotarizeBusiness(ctx context.Context, req notary.BusinessRequest) (*notary.Result, error)
	Verify(ctx context.Context, qt id.QueryType, q string) ([]notary.Verification, error)
	Get(ctx context.Context, fingerprint string) (*notary.Verification, error)
	DNSInstructions(ctx context.Context, fingerprint string) (*notary.DNSInstructions, error)
	RecheckAttestation(ctx context.Context, fingerprint string) (*notary.Verification, error)
	RecheckDomain(ctx context.Context, domain string) ([]notary.Verification, error)
	Provider() notary.ProviderState
	Probe(ctx context.Context) notary.ProviderState
	ConfirmAnchor(ctx context.Context, txID string) error
	FailAnchor(ctx context.Context, txID, reason string) error
	ExplorerLink(txID string) string
}

// Handler wires notarization endpoints to the notary service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a notary handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the public endpoints. Ledger callbacks are mounted behind
// callbackAuth; a nil callbackAuth leaves them unmounted.
func (h *Handler) Register(r chi.Router, callbackAuth func(http.Handler) http.Handler) {
	r.Post("/v1/notarizations/files", h.HandleNotarizeFile)
	r.Post("/v1/notarizations/businesses", h.HandleNotarizeBusiness)
	r.Get("/v1/notarizations/{fingerprint}", h.HandleGet)
	r.Get("/v1/notarizations/{fingerprint}/dns-instructions", h.HandleDNSInstructions)
	r.Post("/v1/notarizations/{fingerprint}/attestation/recheck", h.HandleRecheck)
	r.Post("/v1/domains/{domain}/recheck", h.HandleRecheckDomain)
	r.Get("/v1/verifications", h.HandleVerify)
	r.Get("/v1/provider", h.HandleProvider)
	r.Post("/v1/provider/probe", h.HandleProbe)

	if callbackAuth == nil {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(callbackAuth)
		r.Post("/v1/anchors/{txid}/confirm", h.HandleConfirmAnchor)
		r.Post("/v1/anchors/{txid}/fail", h.HandleFailAnchor)
	})
}

// HandleNotarizeFile handles POST /v1/notarizations/files.
func (h *Handler) HandleNotarizeFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := parseFileForm(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid file upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteErrorWithStatus(w, err, notary.StatusMessage(err))
		return
	}

	result, err := h.service.NotarizeFile(ctx, req)
	if err != nil {
		h.logNotarizeFailure(ctx, "file", err)
		httputil.WriteErrorWithStatus(w, err, notary.StatusMessage(err))
		return
	}

	h.logger.InfoContext(ctx, "file notarized",
		"request_id", requestID,
		"fingerprint", result.Record.Fingerprint,
		"stored", result.Record.ContentID != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, fromResult(result, h.service.ExplorerLink))
}

// HandleNotarizeBusiness handles POST /v1/notarizations/businesses.
func (h *Handler) HandleNotarizeBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BusinessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.NotarizeBusiness(ctx, req.ToService())
	if err != nil {
		h.logNotarizeFailure(ctx, "business", err)
		httputil.WriteErrorWithStatus(w, err, notary.StatusMessage(err))
		return
	}

	h.logger.InfoContext(ctx, "business notarized",
		"request_id", requestID,
		"fingerprint", result.Record.Fingerprint,
		"domain", result.Record.Domain,
		"status", result.Status,
		"attestation_unavailable", result.AttestationUnavailable,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, fromResult(result, h.service.ExplorerLink))
}

func (h *Handler) logNotarizeFailure(ctx context.Context, kind string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "notarization failed",
		"request_id", requestcontext.RequestID(ctx),
		"kind", kind,
		"error", err,
	)
}

// HandleVerify handles GET /v1/verifications?type=&q=.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	qt, err := id.ParseQueryType(query.Get("type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	results, err := h.service.Verify(ctx, qt, query.Get("q"))
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"type", qt,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := VerifyResponse{Results: make([]NotarizationResponse, 0, len(results)), Count: len(results)}
	for _, v := range results {
		resp.Results = append(resp.Results, fromVerification(v, h.service.ExplorerLink))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/notarizations/{fingerprint}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Get(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVerification(*v, h.service.ExplorerLink))
}

// HandleDNSInstructions handles GET /v1/notarizations/{fingerprint}/dns-instructions.
func (h *Handler) HandleDNSInstructions(w http.ResponseWriter, r *http.Request) {
	ins, err := h.service.DNSInstructions(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DNSInstructionsResponse{
		Domain:      ins.Domain.String(),
		Fingerprint: ins.Fingerprint.String(),
		Name:        ins.Name,
		Type:        ins.Type,
		Value:       ins.Value,
	})
}

// HandleRecheck handles POST /v1/notarizations/{fingerprint}/attestation/recheck.
func (h *Handler) HandleRecheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.service.RecheckAttestation(ctx, chi.URLParam(r, "fingerprint"))
	if err != nil {
		h.logger.WarnContext(ctx, "attestation recheck failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVerification(*v, h.service.ExplorerLink))
}

// HandleRecheckDomain handles POST /v1/domains/{domain}/recheck.
func (h *Handler) HandleRecheckDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	domain := chi.URLParam(r, "domain")

	results, err := h.service.RecheckDomain(ctx, domain)
	if err != nil {
		h.logger.WarnContext(ctx, "domain recheck failed",
			"request_id", requestcontext.RequestID(ctx),
			"domain", domain,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := make([]RecheckResponse, 0, len(results))
	for _, v := range results {
		resp = append(resp, RecheckResponse{
			NotarizationResponse:   fromVerification(v, h.service.ExplorerLink),
			AttestationUnavailable: v.AttestationUnavailable,
		})
	}
	h.logger.InfoContext(ctx, "domain rechecked",
		"request_id", requestcontext.RequestID(ctx),
		"domain", domain,
		"records", len(resp),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleProvider handles GET /v1/provider.
func (h *Handler) HandleProvider(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, fromProvider(h.service.Provider()))
}

// HandleProbe handles POST /v1/provider/probe.
func (h *Handler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, fromProvider(h.service.Probe(r.Context())))
}

// HandleConfirmAnchor handles POST /v1/anchors/{txid}/confirm.
func (h *Handler) HandleConfirmAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "txid")
	if err := h.service.ConfirmAnchor(ctx, txID); err != nil {
		h.logCallbackFailure(ctx, "confirm", txID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AnchorResolutionResponse{
		TransactionID: txID,
		Status:        string(anchoring.StatusConfirmed),
	})
}

// HandleFailAnchor handles POST /v1/anchors/{txid}/fail.
func (h *Handler) HandleFailAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	txID := chi.URLParam(r, "txid")

	req, ok := httputil.DecodeAndPrepare[FailRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.FailAnchor(ctx, txID, req.Reason); err != nil {
		h.logCallbackFailure(ctx, "fail", txID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AnchorResolutionResponse{
		TransactionID: txID,
		Status:        string(anchoring.StatusFailed),
	})
}

func (h *Handler) logCallbackFailure(ctx context.Context, action, txID string, err error) {
	h.logger.WarnContext(ctx, "ledger callback failed",
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"action", action,
		"tx_id", txID,
		"error", err,
	)
}
