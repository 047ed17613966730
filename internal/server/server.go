package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafaelmaranon/FixNow/internal/directory"
	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/engine"
	"github.com/rafaelmaranon/FixNow/internal/repo"
)

// Config for the HTTP API handler. A nil Directory disables the
// contractor directory routes.
type Config struct {
	Engine    engine.Engine
	Directory *directory.Client
	BasePath  string
	Logger    *slog.Logger
}

// apiError models the error envelope: {success:false, error, message?}.
type apiError struct {
	status  int
	Success bool   `json:"success"`
	Err     string `json:"error" example:"Job not found"`
	Message string `json:"message,omitempty" example:"job 42 not found"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Err }

type bodyOutput[T any] struct {
	Body T
}

func reply[T any](v T) *bodyOutput[T] {
	return &bodyOutput[T]{Body: v}
}

var commonErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

// New returns an HTTP handler exposing the FixNow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, joinErrors(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		// Schema violations are plain bad requests here.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg, joinErrors(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	hcfg := huma.DefaultConfig("FixNow API", "0.2.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group, cfg.Engine)
	registerJobs(group, cfg.Engine)
	registerDrafts(group, cfg.Engine)
	registerOffers(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAvailability(group, cfg.Engine)
	registerDirectory(group, cfg.Directory)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func newAPIError(status int, errText, message string) huma.StatusError {
	if errText == "" {
		errText = http.StatusText(status)
	}
	return &apiError{
		status:  status,
		Success: false,
		Err:     errText,
		Message: message,
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var (
		verr     *domain.ValidationError
		missing  *repo.NotFoundError
		conflict *domain.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return newAPIError(http.StatusBadRequest, capitalize(verr.Error()), "")
	case errors.As(err, &missing):
		return newAPIError(http.StatusNotFound, notFoundText(missing), missing.Error())
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "Not found", err.Error())
	case errors.As(err, &conflict):
		return newAPIError(http.StatusConflict, capitalize(conflict.Error()), "")
	case errors.Is(err, directory.ErrUnavailable):
		return newAPIError(http.StatusInternalServerError, "Failed to fetch contractors", err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "Internal server error", err.Error())
	}
}

func notFoundText(e *repo.NotFoundError) string {
	if e.Kind == "booking for job" {
		return "No booking found for this job"
	}
	return capitalize(e.Kind) + " not found"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>FixNow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[HealthResponse], error) {
		return reply(HealthResponse{
			Success:   true,
			Message:   "FixNow API is running",
			Timestamp: e.Clock.Now(),
			JobsCount: e.Stores.Jobs.Count(),
		}), nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[JobListResponse], error) {
		jobs := e.ListJobs(ctx)
		return reply(JobListResponse{Success: true, Data: jobs, Count: len(jobs)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create job",
		Description:   "Stores the job and starts the request-for-offers sequence in the background.",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest
	}) (*bodyOutput[JobResponse], error) {
		job, err := e.CreateJob(ctx, domain.JobInput{
			Category:     input.Body.Category,
			Address:      input.Body.Address,
			Description:  input.Body.Description,
			CustomerName: input.Body.CustomerName,
			Phone:        input.Body.Phone,
			Price:        input.Body.Price,
			Urgency:      input.Body.Urgency,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(JobResponse{Success: true, Data: job, Message: "Job created successfully"}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[JobResponse], error) {
		job, err := e.GetJob(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(JobResponse{Success: true, Data: job}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "hold-job",
		Method:      http.MethodPost,
		Path:        "/hold",
		Summary:     "Hold job",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Body HoldRequest
	}) (*bodyOutput[HoldResponse], error) {
		job, err := e.HoldJob(ctx, input.Body.JobID, input.Body.Minutes)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(HoldResponse{
			Success:   true,
			HoldUntil: *job.HoldUntil,
			Message:   fmt.Sprintf("Job held for %d minutes", input.Body.Minutes),
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dispatch",
		Method:      http.MethodPost,
		Path:        "/dispatch",
		Summary:     "Simulate contacting nearby contractors",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Body DispatchRequest
	}) (*bodyOutput[DispatchResponse], error) {
		res, err := e.Dispatch(ctx, engine.DispatchRequest{
			Strategy: input.Body.Strategy,
			Limit:    input.Body.Limit,
			Filters:  input.Body.Filters,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(DispatchResponse{
			Success:   true,
			Contacted: res.Contacted,
			Replies:   res.Replies,
			Summary:   res.Summary,
		}), nil
	})
}

func registerDrafts(api huma.API, e engine.Engine) {
	type draftPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-draft",
		Method:        http.MethodPost,
		Path:          "/drafts",
		Summary:       "Create draft",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDraftRequest
	}) (*bodyOutput[DraftResponse], error) {
		d, err := e.CreateDraft(ctx, input.Body.UserInput, input.Body.Category)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(DraftResponse{Success: true, Draft: d}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-draft",
		Method:      http.MethodGet,
		Path:        "/drafts/{id}",
		Summary:     "Get draft",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *draftPath) (*bodyOutput[DraftResponse], error) {
		d, err := e.GetDraft(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(DraftResponse{Success: true, Draft: d}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "patch-draft",
		Method:      http.MethodPatch,
		Path:        "/drafts/{id}",
		Summary:     "Merge fields into a draft",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body PatchDraftRequest
	}) (*bodyOutput[DraftResponse], error) {
		d, err := e.PatchDraft(ctx, input.ID, input.Body.patch())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(DraftResponse{Success: true, Draft: d}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "publish-draft",
		Method:        http.MethodPost,
		Path:          "/drafts/{id}/publish",
		Summary:       "Publish draft as a job",
		Description:   "Removes the draft and starts the scripted offer conversation in the background.",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *draftPath) (*bodyOutput[PublishResponse], error) {
		job, err := e.PublishDraft(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(PublishResponse{Success: true, Job: job, Message: "Job published successfully"}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analyze-image",
		Method:      http.MethodPost,
		Path:        "/analyze-image",
		Summary:     "Diagnose a photo",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Body AnalyzeImageRequest
	}) (*bodyOutput[AnalyzeImageResponse], error) {
		res, err := e.AnalyzeImage(ctx, input.Body.DraftID, input.Body.ImageURL, input.Body.Context)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(AnalyzeImageResponse{
			Success:          true,
			Analysis:         res.Analysis,
			SuggestedUpdates: res.Suggested,
		}), nil
	})
}

func registerOffers(api huma.API, e engine.Engine) {
	type idPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-job-offers",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/offers",
		Summary:     "List offers for a job",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *idPath) (*bodyOutput[OfferListResponse], error) {
		list, err := e.OffersForJob(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(OfferListResponse{Success: true, Offers: list, Count: len(list)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-offer",
		Method:      http.MethodPost,
		Path:        "/offers/{id}/accept",
		Summary:     "Accept offer",
		Description: "Books the contractor. A job accepts at most one offer; later attempts return 409.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *idPath) (*bodyOutput[AcceptOfferResponse], error) {
		got, err := e.AcceptOffer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(AcceptOfferResponse{
			Success: true,
			Message: "Offer accepted and booking confirmed",
			Job:     got.Job,
			Offer:   got.Offer,
			Booking: got.Booking,
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-booking",
		Method:      http.MethodGet,
		Path:        "/bookings/{id}",
		Summary:     "Get booking",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *idPath) (*bodyOutput[BookingResponse], error) {
		b, err := e.GetBooking(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BookingResponse{Success: true, Booking: b}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-booking",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/booking",
		Summary:     "Get the booking of a job",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *idPath) (*bodyOutput[BookingResponse], error) {
		b, err := e.BookingForJob(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BookingResponse{Success: true, Booking: b}), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Description: "Newest first. Audience both, or none, lists every event.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit    int    `query:"limit"`
		Audience string `query:"audience" enum:"homeowner,contractor,both"`
	}) (*bodyOutput[EventListResponse], error) {
		list, matched := e.Feed(ctx, input.Limit, domain.Audience(input.Audience))
		return reply(EventListResponse{Success: true, Events: list, Count: matched}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contractor-feed",
		Method:      http.MethodGet,
		Path:        "/contractor/{contractorId}/feed",
		Summary:     "Events visible to one contractor",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ContractorID string `path:"contractorId"`
		Limit        int    `query:"limit"`
	}) (*bodyOutput[EventListResponse], error) {
		list, matched := e.ContractorFeed(ctx, input.ContractorID, input.Limit)
		return reply(EventListResponse{Success: true, Events: list, Count: matched}), nil
	})
}

func registerAvailability(api huma.API, e engine.Engine) {
	type contractorPath struct {
		ContractorID string `path:"contractorId"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "set-availability",
		Method:      http.MethodPut,
		Path:        "/contractor/{contractorId}/availability",
		Summary:     "Set availability",
		Description: "Replaces any previous window for the contractor.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ContractorID string `path:"contractorId"`
		Body         AvailabilityRequest
	}) (*bodyOutput[AvailabilityResponse], error) {
		a, err := e.SetAvailability(ctx, input.ContractorID, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(AvailabilityResponse{Success: true, Availability: &a}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-availability",
		Method:      http.MethodGet,
		Path:        "/contractor/{contractorId}/availability",
		Summary:     "Get availability",
	}, func(ctx context.Context, input *contractorPath) (*bodyOutput[AvailabilityResponse], error) {
		return reply(AvailabilityResponse{
			Success:      true,
			Availability: e.GetAvailability(ctx, input.ContractorID),
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-availability",
		Method:      http.MethodDelete,
		Path:        "/contractor/{contractorId}/availability",
		Summary:     "Clear availability",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *contractorPath) (*bodyOutput[AvailabilityResponse], error) {
		if err := e.ClearAvailability(ctx, input.ContractorID); err != nil {
			return nil, handleError(err)
		}
		return reply(AvailabilityResponse{Success: true}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-availability",
		Method:      http.MethodGet,
		Path:        "/availability",
		Summary:     "List live availability windows",
	}, func(ctx context.Context, input *struct {
		Skill string `query:"skill"`
	}) (*bodyOutput[AvailabilityListResponse], error) {
		list := e.ListAvailability(ctx, input.Skill)
		return reply(AvailabilityListResponse{Success: true, Availability: list, Count: len(list)}), nil
	})
}

func registerDirectory(api huma.API, dir *directory.Client) {
	huma.Register(api, huma.Operation{
		OperationID: "list-contractors",
		Method:      http.MethodGet,
		Path:        "/contractors",
		Summary:     "Browse the public contractor directory",
		Description: "Display data only. Served from the last snapshot, marked stale, when the directory is down.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Limit        int    `query:"limit"`
		Category     string `query:"category"`
		Neighborhood string `query:"neighborhood"`
		Mode         string `query:"mode" enum:"strict,loose"`
	}) (*bodyOutput[ContractorListResponse], error) {
		if dir == nil {
			return nil, handleError(directory.ErrUnavailable)
		}
		listing, err := dir.Contractors(ctx, directory.Query{
			Limit:        input.Limit,
			Category:     input.Category,
			Neighborhood: input.Neighborhood,
			Mode:         input.Mode,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ContractorListResponse{
			Success:     true,
			Contractors: listing.Contractors,
			Count:       len(listing.Contractors),
			Stale:       listing.Stale,
			FetchedAt:   listing.FetchedAt,
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-neighborhoods",
		Method:      http.MethodGet,
		Path:        "/contractors/neighborhoods",
		Summary:     "Neighborhoods the directory filters by",
		Errors:      commonErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[NeighborhoodListResponse], error) {
		if dir == nil {
			return nil, handleError(directory.ErrUnavailable)
		}
		list, err := dir.Neighborhoods(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(NeighborhoodListResponse{Success: true, Neighborhoods: list, Count: len(list)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-contractors",
		Method:      http.MethodPost,
		Path:        "/contractors/refresh",
		Summary:     "Force a directory refresh",
		Errors:      commonErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[RefreshResponse], error) {
		if dir == nil {
			return nil, handleError(directory.ErrUnavailable)
		}
		res, err := dir.Refresh(ctx)
		if err != nil {
			return nil, handleError(fmt.Errorf("%w: %v", directory.ErrUnavailable, err))
		}
		return reply(RefreshResponse{Success: true, Count: res.Contractors, Neighborhoods: res.Neighborhoods}), nil
	})
}
