package controller

import (
	"errors"

	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AttemptController is the student-facing surface of the attempt lifecycle.
type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// StartAttempt godoc
// @Summary Start an attempt
// @Description Opens a timed attempt on a published exam, subject to the
// time window, the attempt limit and the allow-list.
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Success 201 {object} util.Response{data=model.Attempt}
// @Failure 403 {object} util.Response
// @Router /api/exams/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	examID := util.MustParseUint(ctx.Param("id"))

	attempt, err := c.AttemptService.StartAttempt(user.UserID, examID)
	if err != nil {
		writeAttemptError(ctx, err)
		return
	}

	util.Created(ctx, attempt)
}

type AnswerRequest struct {
	Value string `json:"value"`
}

// RecordAnswer godoc
// @Summary Record a working answer
// @Description Upserts the student's answer to one question. Rejected once
// the attempt is finalized or past its deadline.
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param questionId path int true "question id"
// @Param body body AnswerRequest true "answer value"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := ctx.Param("id")
	questionID := util.MustParseUint(ctx.Param("questionId"))

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AttemptService.RecordAnswer(user.UserID, attemptID, questionID, req.Value); err != nil {
		writeAttemptError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"recorded": questionID})
}

// FinalizeAttempt godoc
// @Summary Submit an attempt
// @Description Finalizes the attempt into a scored submission. Safe to call
// more than once; repeats return the same submission.
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response{data=model.Submission}
// @Router /api/attempts/{id}/finalize [post]
func (c *AttemptController) FinalizeAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := ctx.Param("id")

	submission, err := c.AttemptService.FinalizeAttempt(user.UserID, attemptID)
	if err != nil {
		writeAttemptError(ctx, err)
		return
	}

	util.Success(ctx, submission)
}

// GetAttempt godoc
// @Summary Attempt detail with remaining time
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response{data=service.AttemptDetail}
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := ctx.Param("id")

	detail, err := c.AttemptService.GetAttempt(user.UserID, attemptID)
	if err != nil {
		writeAttemptError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}

func writeAttemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrExamNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptNotAllowed):
		util.Error(ctx, 403, err.Error())
	case errors.Is(err, util.ErrAttemptNotActive), errors.Is(err, util.ErrAlreadyFinalized):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
