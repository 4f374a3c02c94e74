package session

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/woundeval/woundeval/internal/domain/progress"
	"github.com/woundeval/woundeval/internal/domain/schema"
	"github.com/woundeval/woundeval/internal/domain/sequencer"
	"github.com/woundeval/woundeval/internal/platform/auth"
	"github.com/woundeval/woundeval/pkg/pagination"
)

// Handler exposes evaluation sessions over REST.
type Handler struct {
	mgr  *Manager
	repo progress.Repository
	cat  *schema.Catalog
	log  zerolog.Logger
}

// NewHandler creates the session HTTP handler.
func NewHandler(mgr *Manager, repo progress.Repository, cat *schema.Catalog, log zerolog.Logger) *Handler {
	return &Handler{mgr: mgr, repo: repo, cat: cat, log: log}
}

// RegisterRoutes mounts the evaluation endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("clinician", "nurse", "physician")

	g := api.Group("", role)
	g.GET("/evaluations", h.ListEvaluations)
	g.POST("/evaluations/:id/start", h.StartEvaluation)
	g.GET("/evaluations/:id/state", h.GetState)
	g.PUT("/evaluations/:id/steps/:stepId/fields/:elementId", h.EditField)
	g.POST("/evaluations/:id/next", h.NextStep)
	g.POST("/evaluations/:id/previous", h.PreviousStep)
	g.POST("/evaluations/:id/jump", h.JumpToStep)
	g.POST("/evaluations/:id/finish", h.FinishEvaluation)
	g.DELETE("/evaluations/:id", h.AbandonEvaluation)
}

type stateResponse struct {
	EvaluationID string          `json:"evaluationId"`
	State        sequencer.State `json:"state"`
	Step         *schema.Step    `json:"step,omitempty"`
	Answers      AnswerMap       `json:"answers,omitempty"`
}

func (h *Handler) stateResponse(c *Controller) stateResponse {
	st := c.State()
	resp := stateResponse{EvaluationID: c.EvaluationID(), State: st}
	if !st.Finished {
		if step, ok := h.cat.StepByID(st.StepID); ok {
			resp.Step = &step
		}
		if answers, ok := c.StepAnswers(st.StepID); ok {
			resp.Answers = answers
		}
	}
	return resp
}

func (h *Handler) ListEvaluations(c echo.Context) error {
	pg := pagination.FromContext(c)
	infos, total, err := h.repo.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(infos, total, pg.Limit, pg.Offset))
}

func (h *Handler) StartEvaluation(c echo.Context) error {
	ctrl := h.mgr.Get(c.Param("id"))
	if _, err := ctrl.Start(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, h.stateResponse(ctrl))
}

func (h *Handler) GetState(c echo.Context) error {
	ctrl := h.mgr.Get(c.Param("id"))
	if _, err := ctrl.Start(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, h.stateResponse(ctrl))
}

type editFieldRequest struct {
	Value any `json:"value"`
}

func (h *Handler) EditField(c echo.Context) error {
	var req editFieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctrl := h.mgr.Get(c.Param("id"))
	result, err := ctrl.EditField(c.Request().Context(), c.Param("stepId"), c.Param("elementId"), req.Value)
	if errors.Is(err, ErrNotLoaded) {
		return echo.NewHTTPError(http.StatusConflict, "evaluation not started")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) NextStep(c echo.Context) error {
	ctrl := h.mgr.Get(c.Param("id"))
	_, err := ctrl.Next(c.Request().Context())

	var incomplete *sequencer.StepIncompleteError
	if errors.As(err, &incomplete) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":  "step incomplete",
			"stepId": incomplete.StepID,
			"fields": incomplete.Errors,
		})
	}
	if errors.Is(err, ErrNotLoaded) {
		return echo.NewHTTPError(http.StatusConflict, "evaluation not started")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.stateResponse(ctrl))
}

func (h *Handler) PreviousStep(c echo.Context) error {
	ctrl := h.mgr.Get(c.Param("id"))
	if _, err := ctrl.Previous(c.Request().Context()); err != nil {
		if errors.Is(err, ErrNotLoaded) {
			return echo.NewHTTPError(http.StatusConflict, "evaluation not started")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.stateResponse(ctrl))
}

type jumpRequest struct {
	StepID string `json:"stepId"`
}

func (h *Handler) JumpToStep(c echo.Context) error {
	var req jumpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctrl := h.mgr.Get(c.Param("id"))
	_, err := ctrl.JumpTo(c.Request().Context(), req.StepID)
	if errors.Is(err, sequencer.ErrUnknownStep) {
		// Logged and ignored: report the warning but keep the state.
		return c.JSON(http.StatusOK, map[string]any{
			"warning": "unknown step " + req.StepID,
			"state":   ctrl.State(),
		})
	}
	if errors.Is(err, ErrNotLoaded) {
		return echo.NewHTTPError(http.StatusConflict, "evaluation not started")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.stateResponse(ctrl))
}

type finishRequest struct {
	Confirm bool `json:"confirm"`
}

type finishResponse struct {
	Summary  *Summary                 `json:"summary"`
	Constats map[string]ConstatResult `json:"constats"`
}

func (h *Handler) FinishEvaluation(c echo.Context) error {
	var req finishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctrl := h.mgr.Get(c.Param("id"))
	summary, constats, err := ctrl.Finish(c.Request().Context())
	if errors.Is(err, ErrNotFinished) {
		return echo.NewHTTPError(http.StatusConflict, "evaluation is not finished")
	}
	if errors.Is(err, ErrNotLoaded) {
		return echo.NewHTTPError(http.StatusConflict, "evaluation not started")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Confirm {
		if err := ctrl.Confirm(c.Request().Context()); err != nil {
			h.log.Error().Err(err).Str("evaluation_id", ctrl.EvaluationID()).Msg("clear after confirm failed")
		}
		h.mgr.Release(ctrl.EvaluationID())
	}
	return c.JSON(http.StatusOK, finishResponse{Summary: summary, Constats: constats})
}

func (h *Handler) AbandonEvaluation(c echo.Context) error {
	ctrl := h.mgr.Get(c.Param("id"))
	if _, err := ctrl.Start(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err := ctrl.Abandon(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.mgr.Release(ctrl.EvaluationID())
	return c.NoContent(http.StatusNoContent)
}
