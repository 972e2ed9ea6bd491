package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal"
)

type projectIDInput struct {
	ID string `path:"id" maxLength:"64" doc:"Project ID"`
}

type projectResponse struct {
	Body ProjectMetadata
}

type projectListResponse struct {
	Body struct {
		Projects []*ProjectMetadata `json:"projects"`
	}
}

type startRunResponse struct {
	Body struct {
		ProjectID string `json:"project_id"`
		FromStep  int    `json:"from_step" doc:"Step the run starts at (1-6)"`
		Message   string `json:"message"`
	}
}

type statusResponse struct {
	Body ProjectProgress
}

type deleteResponse struct {
	Body struct {
		ProjectID string `json:"project_id"`
		Deleted   bool   `json:"deleted"`
	}
}

type clipsResponse struct {
	Body struct {
		Clips []ClipMetadata `json:"clips"`
	}
}

type collectionsResponse struct {
	Body struct {
		Collections []CollectionMetadata `json:"collections"`
	}
}

type createCollectionInput struct {
	ID   string `path:"id" maxLength:"64" doc:"Project ID"`
	Body struct {
		Title   string   `json:"title" minLength:"1" doc:"Collection title"`
		Summary string   `json:"summary,omitempty" doc:"Collection summary"`
		ClipIDs []string `json:"clip_ids" minItems:"2" doc:"Clip ids to join, in order"`
	}
}

type createCollectionResponse struct {
	Body CollectionMetadata
}

type categoriesResponse struct {
	Body struct {
		Categories []Category `json:"categories"`
	}
}

type settingsResponse struct {
	Body Settings
}

type updateSettingsInput struct {
	Body Settings
}

type testConnectionResponse struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

type versionResponse struct {
	Body struct {
		Version string `json:"version"`
	}
}

// mapStartErr translates admission errors to HTTP problems.
func mapStartErr(err error) error {
	switch {
	case errors.Is(err, errNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, errConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, errBusy):
		return huma.Error429TooManyRequests(err.Error())
	default:
		return err
	}
}

func createListProjectsHdlr(s *Server) func(ctx context.Context, input *struct{}) (*projectListResponse, error) {
	return func(ctx context.Context, input *struct{}) (*projectListResponse, error) {
		projects, err := s.store.ListProjects()
		if err != nil {
			return nil, err
		}
		resp := &projectListResponse{}
		resp.Body.Projects = projects
		return resp, nil
	}
}

func createGetProjectHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*projectResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*projectResponse, error) {
		meta, err := s.store.LoadMetadata(input.ID)
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, huma.Error404NotFound(fmt.Sprintf("project %s not found", input.ID))
			}
			return nil, err
		}
		return &projectResponse{Body: *meta}, nil
	}
}

func createDeleteProjectHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*deleteResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*deleteResponse, error) {
		if s.tracker.IsRunning(input.ID) {
			return nil, huma.Error409Conflict("project is processing, cannot delete")
		}
		if err := s.store.DeleteProject(input.ID); err != nil {
			if errors.Is(err, errNotFound) {
				return nil, huma.Error404NotFound(fmt.Sprintf("project %s not found", input.ID))
			}
			return nil, err
		}
		resp := &deleteResponse{}
		resp.Body.ProjectID = input.ID
		resp.Body.Deleted = true
		return resp, nil
	}
}

func createProcessProjectHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*startRunResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*startRunResponse, error) {
		if err := s.startRun(input.ID, 1); err != nil {
			return nil, mapStartErr(err)
		}
		resp := &startRunResponse{}
		resp.Body.ProjectID = input.ID
		resp.Body.FromStep = 1
		resp.Body.Message = "processing started"
		return resp, nil
	}
}

func createRetryProjectHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*startRunResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*startRunResponse, error) {
		step := s.tracker.FailedStep(input.ID)
		if step == 0 {
			meta, err := s.store.LoadMetadata(input.ID)
			if err != nil {
				return nil, mapStartErr(err)
			}
			step = meta.CurrentStep
		}
		if step < 1 {
			step = 1
		}
		if err := s.startRun(input.ID, step); err != nil {
			return nil, mapStartErr(err)
		}
		resp := &startRunResponse{}
		resp.Body.ProjectID = input.ID
		resp.Body.FromStep = step
		resp.Body.Message = fmt.Sprintf("retrying from step %d", step)
		return resp, nil
	}
}

func createStatusHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*statusResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*statusResponse, error) {
		if st, ok := s.tracker.Get(input.ID); ok {
			return &statusResponse{Body: st}, nil
		}
		// No live run: project the durable metadata.
		meta, err := s.store.LoadMetadata(input.ID)
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, huma.Error404NotFound(fmt.Sprintf("project %s not found", input.ID))
			}
			return nil, err
		}
		st := ProjectProgress{
			CurrentStep: meta.CurrentStep,
			TotalSteps:  meta.TotalSteps,
			Error:       meta.ErrorMessage,
		}
		if meta.CurrentStep > 0 {
			st.StepName = stepNames[meta.CurrentStep]
		}
		if meta.Status == statusCompleted {
			st.Progress = 100
		} else if meta.CurrentStep > 0 {
			st.Progress = entryProgress(meta.CurrentStep)
		}
		return &statusResponse{Body: st}, nil
	}
}

func createGetClipsHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*clipsResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*clipsResponse, error) {
		var clips []ClipMetadata
		if err := s.store.ReadOutput(input.ID, clipsMetadataFile, &clips); err != nil {
			return nil, huma.Error404NotFound("no clips generated for this project")
		}
		resp := &clipsResponse{}
		resp.Body.Clips = clips
		return resp, nil
	}
}

func createGetCollectionsHdlr(s *Server) func(ctx context.Context, input *projectIDInput) (*collectionsResponse, error) {
	return func(ctx context.Context, input *projectIDInput) (*collectionsResponse, error) {
		var cols []CollectionMetadata
		if err := s.store.ReadOutput(input.ID, collectionsMetadataFile, &cols); err != nil {
			return nil, huma.Error404NotFound("no collections generated for this project")
		}
		resp := &collectionsResponse{}
		resp.Body.Collections = cols
		return resp, nil
	}
}

func createManualCollectionHdlr(s *Server) func(ctx context.Context, input *createCollectionInput) (*createCollectionResponse, error) {
	return func(ctx context.Context, input *createCollectionInput) (*createCollectionResponse, error) {
		if s.tracker.IsRunning(input.ID) {
			return nil, huma.Error409Conflict("project is processing, try again later")
		}
		cm, err := s.buildManualCollection(ctx, input.ID, input.Body.Title, input.Body.Summary, input.Body.ClipIDs)
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, huma.Error404NotFound(err.Error())
			}
			return nil, huma.Error400BadRequest(err.Error())
		}
		return &createCollectionResponse{Body: *cm}, nil
	}
}

func createGetCategoriesHdlr() func(ctx context.Context, input *struct{}) (*categoriesResponse, error) {
	return func(ctx context.Context, input *struct{}) (*categoriesResponse, error) {
		resp := &categoriesResponse{}
		resp.Body.Categories = Categories()
		return resp, nil
	}
}

func createGetSettingsHdlr(s *Server) func(ctx context.Context, input *struct{}) (*settingsResponse, error) {
	return func(ctx context.Context, input *struct{}) (*settingsResponse, error) {
		return &settingsResponse{Body: s.settings.Get()}, nil
	}
}

func createUpdateSettingsHdlr(s *Server) func(ctx context.Context, input *updateSettingsInput) (*settingsResponse, error) {
	return func(ctx context.Context, input *updateSettingsInput) (*settingsResponse, error) {
		if err := s.settings.Update(input.Body); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return &settingsResponse{Body: s.settings.Get()}, nil
	}
}

func createTestConnectionHdlr(s *Server) func(ctx context.Context, input *updateSettingsInput) (*testConnectionResponse, error) {
	return func(ctx context.Context, input *updateSettingsInput) (*testConnectionResponse, error) {
		if err := TestConnection(ctx, input.Body); err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("connection test failed: %s", err))
		}
		resp := &testConnectionResponse{}
		resp.Body.OK = true
		return resp, nil
	}
}

func createVersionHdlr() func(ctx context.Context, input *struct{}) (*versionResponse, error) {
	return func(ctx context.Context, input *struct{}) (*versionResponse, error) {
		resp := &versionResponse{}
		resp.Body.Version = internal.GetVersion()
		return resp, nil
	}
}

func createRouteAPI(s *Server) func(r chi.Router) {
	return func(r chi.Router) {
		config := huma.DefaultConfig("Clipforge API", "1.0.0")
		config.Servers = []*huma.Server{
			{URL: "/api"},
		}
		config.Info.Description = `Project management for the clip extraction pipeline:
		upload a video with subtitles, drive it through the six processing steps,
		and fetch the resulting clips and collections.`

		api := humachi.New(r, config)

		huma.Register(api, huma.Operation{
			OperationID: "list-projects",
			Method:      http.MethodGet,
			Path:        "/projects",
			Summary:     "List all projects",
			Tags:        []string{"projects"},
		}, createListProjectsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-project",
			Method:      http.MethodGet,
			Path:        "/projects/{id}",
			Summary:     "Get project metadata",
			Tags:        []string{"projects"},
			Errors:      []int{404},
		}, createGetProjectHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "delete-project",
			Method:      http.MethodDelete,
			Path:        "/projects/{id}",
			Summary:     "Delete a project and all its artifacts",
			Tags:        []string{"projects"},
			Errors:      []int{404, 409},
		}, createDeleteProjectHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID:   "process-project",
			Method:        http.MethodPost,
			Path:          "/projects/{id}/process",
			Summary:       "Start processing a project from the beginning",
			Description:   "Completed steps are skipped, so restarting a finished project is cheap.",
			Tags:          []string{"processing"},
			DefaultStatus: http.StatusAccepted,
			Errors:        []int{404, 409, 429},
		}, createProcessProjectHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID:   "retry-project",
			Method:        http.MethodPost,
			Path:          "/projects/{id}/retry",
			Summary:       "Retry a failed project from the step it stopped at",
			Tags:          []string{"processing"},
			DefaultStatus: http.StatusAccepted,
			Errors:        []int{404, 409, 429},
		}, createRetryProjectHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-status",
			Method:      http.MethodGet,
			Path:        "/projects/{id}/status",
			Summary:     "Get live processing status",
			Tags:        []string{"processing"},
			Errors:      []int{404},
		}, createStatusHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-clips",
			Method:      http.MethodGet,
			Path:        "/projects/{id}/clips",
			Summary:     "List generated clips",
			Tags:        []string{"results"},
			Errors:      []int{404},
		}, createGetClipsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-collections",
			Method:      http.MethodGet,
			Path:        "/projects/{id}/collections",
			Summary:     "List generated collections",
			Tags:        []string{"results"},
			Errors:      []int{404},
		}, createGetCollectionsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID:   "create-collection",
			Method:        http.MethodPost,
			Path:          "/projects/{id}/collections",
			Summary:       "Create a manual collection from existing clips",
			Tags:          []string{"results"},
			DefaultStatus: http.StatusCreated,
			Errors:        []int{400, 404, 409},
		}, createManualCollectionHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-categories",
			Method:      http.MethodGet,
			Path:        "/categories",
			Summary:     "List content categories",
			Tags:        []string{"config"},
		}, createGetCategoriesHdlr())

		huma.Register(api, huma.Operation{
			OperationID: "get-settings",
			Method:      http.MethodGet,
			Path:        "/settings",
			Summary:     "Get runtime settings",
			Tags:        []string{"config"},
		}, createGetSettingsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "update-settings",
			Method:      http.MethodPut,
			Path:        "/settings",
			Summary:     "Update runtime settings",
			Tags:        []string{"config"},
			Errors:      []int{400},
		}, createUpdateSettingsHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "test-connection",
			Method:      http.MethodPost,
			Path:        "/settings/test",
			Summary:     "Test LLM provider connectivity with the given settings",
			Tags:        []string{"config"},
			Errors:      []int{400},
		}, createTestConnectionHdlr(s))

		huma.Register(api, huma.Operation{
			OperationID: "get-version",
			Method:      http.MethodGet,
			Path:        "/version",
			Summary:     "Get server version",
			Tags:        []string{"config"},
		}, createVersionHdlr())
	}
}
