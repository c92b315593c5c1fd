package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"esims/internal/activation"
	"esims/internal/events"
	"esims/internal/profile"
	"esims/internal/provisioning/models"
	dErrors "esims/pkg/domain-errors"
	"esims/pkg/platform/httputil"
	"esims/pkg/requestcontext"
)

const defaultEventLimit = 100

// Provisioner starts and tracks downloads.
type Provisioner interface {
	Submit(ctx context.Context, activationCode string) (string, error)
	Get(requestID string) (models.Request, error)
}

// ProfileLister reads the active subscription listing.
type ProfileLister interface {
	List(ctx context.Context) ([]profile.Profile, error)
}

// Switcher changes the active embedded profile.
type Switcher interface {
	Activate(ctx context.Context, p profile.Profile) (string, error)
	Deactivate(ctx context.Context) (string, error)
}

// EventFeed serves buffered transition events.
type EventFeed interface {
	Since(after uint64, limit int) []events.Event
	LastSeq() uint64
}

// Handler exposes provisioning, profiles and the event feed over HTTP.
type Handler struct {
	provisioner Provisioner
	profiles    ProfileLister
	switcher    Switcher
	feed        EventFeed
	codes       activation.Provider
	logger      *slog.Logger
}

// Deps are the Handler's collaborators.
type Deps struct {
	Provisioner Provisioner
	Profiles    ProfileLister
	Switcher    Switcher
	Feed        EventFeed
	Codes       activation.Provider
}

// New constructs a handler. A nil logger discards.
func New(deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		provisioner: deps.Provisioner,
		profiles:    deps.Profiles,
		switcher:    deps.Switcher,
		feed:        deps.Feed,
		codes:       deps.Codes,
		logger:      logger,
	}
}

// Register mounts the API endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/downloads", h.HandleSubmitDownload)
		r.Get("/downloads/{requestID}", h.HandleGetDownload)
		r.Get("/profiles", h.HandleListProfiles)
		r.Post("/profiles/deactivate", h.HandleDeactivate)
		r.Post("/profiles/{subscriptionID}/activate", h.HandleActivate)
		r.Get("/events", h.HandleListEvents)
		r.Get("/activation-code", h.HandleActivationCode)
	})
}

// HandleSubmitDownload handles POST /v1/downloads. Without an activation_code
// field the configured provider's code is used.
func (h *Handler) HandleSubmitDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitDownloadRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	code, err := h.activationCode(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.provisioner.Submit(ctx, code)
	if err != nil {
		h.logger.WarnContext(ctx, "download not started",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "download submitted",
		"request_id", requestID,
		"download_id", id,
	)
	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{RequestID: id})
}

func (h *Handler) activationCode(ctx context.Context, req *SubmitDownloadRequest) (string, error) {
	if req.ActivationCode != nil {
		return *req.ActivationCode, nil
	}
	if h.codes == nil {
		return "", dErrors.New(dErrors.CodeMalformedActivationCode, "activation_code is required")
	}
	code, err := h.codes.ActivationCode(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodePlatformUnavailable, "activation code provider failed")
	}
	return code, nil
}

// HandleGetDownload handles GET /v1/downloads/{requestID}.
func (h *Handler) HandleGetDownload(w http.ResponseWriter, r *http.Request) {
	req, err := h.provisioner.Get(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// HandleListProfiles handles GET /v1/profiles.
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profiles, err := h.profiles.List(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "profile listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	httputil.WriteJSON(w, http.StatusOK, ProfilesResponse{Profiles: profiles})
}

// HandleActivate handles POST /v1/profiles/{subscriptionID}/activate. The id
// is checked against a fresh listing so physical SIMs are refused; ids absent
// from it are inactive embedded profiles and left to the platform to resolve.
// Without read permission the listing is skipped and the id is treated the
// same way, since switching does not need that permission.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriptionID, err := strconv.Atoi(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidProfile, "subscription id must be an integer"))
		return
	}

	target, err := h.activationTarget(ctx, subscriptionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.switcher.Activate(ctx, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "switch submitted",
		"request_id", requestcontext.RequestID(ctx),
		"switch_id", id,
		"subscription_id", subscriptionID,
	)
	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{RequestID: id})
}

func (h *Handler) activationTarget(ctx context.Context, subscriptionID int) (profile.Profile, error) {
	embedded := profile.Profile{SubscriptionID: subscriptionID, Embedded: true}
	profiles, err := h.profiles.List(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePermissionDenied) {
			h.logger.InfoContext(ctx, "listing not permitted, activating unchecked",
				"request_id", requestcontext.RequestID(ctx),
				"subscription_id", subscriptionID,
			)
			return embedded, nil
		}
		return profile.Profile{}, err
	}
	if target, found := profile.Find(profiles, subscriptionID); found {
		return target, nil
	}
	return embedded, nil
}

// HandleDeactivate handles POST /v1/profiles/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := h.switcher.Deactivate(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{RequestID: id})
}

// HandleListEvents handles GET /v1/events?after=<seq>&limit=<n>.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := parseUint(q.Get("after"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "after must be a non-negative integer"))
		return
	}
	limit := defaultEventLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
	}

	evts := h.feed.Since(after, limit)
	if evts == nil {
		evts = []events.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: evts, LastSeq: h.feed.LastSeq()})
}

// HandleActivationCode handles GET /v1/activation-code.
func (h *Handler) HandleActivationCode(w http.ResponseWriter, r *http.Request) {
	if h.codes == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no activation code provider configured"))
		return
	}
	code, err := h.codes.ActivationCode(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePlatformUnavailable, "activation code provider failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActivationCodeResponse{ActivationCode: code})
}

func parseUint(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
