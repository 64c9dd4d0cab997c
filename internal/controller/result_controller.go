package controller

import (
	"errors"
	"strconv"

	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	ResultService *service.ResultService
}

func NewResultController(resultService *service.ResultService) *ResultController {
	return &ResultController{ResultService: resultService}
}

// GetResult godoc
// @Summary Result of the student's latest attempt
// @Description Visible only after the teacher releases the exam's results.
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 404 {object} util.Response
// @Router /api/exams/{id}/result [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	examID := util.MustParseUint(ctx.Param("id"))

	result, err := c.ResultService.GetResult(examID, user.UserID)
	if err != nil {
		writeResultError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// ListResults godoc
// @Summary All results of an exam
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/exams/{id}/results [get]
func (c *ResultController) ListResults(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	results, total, err := c.ResultService.ListByExam(examID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: results, Total: total, Page: page, Limit: limit})
}

// ListSubmissions godoc
// @Summary All submissions of an exam
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/exams/{id}/submissions [get]
func (c *ResultController) ListSubmissions(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.ResultService.ListSubmissions(examID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// GetSubmission godoc
// @Summary One submission with its scored answers
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path string true "submission id"
// @Success 200 {object} util.Response
// @Router /api/teacher/submissions/{id} [get]
func (c *ResultController) GetSubmission(ctx *gin.Context) {
	submissionID := ctx.Param("id")

	sub, answers, err := c.ResultService.GetSubmissionAnswers(submissionID)
	if err != nil {
		writeResultError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"submission": sub, "answers": answers})
}

type ReleaseRequest struct {
	Released *bool `json:"released" binding:"required"`
}

// Release godoc
// @Summary Release or withhold an exam's results
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param body body ReleaseRequest true "release flag"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/results/release [put]
func (c *ResultController) Release(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	var req ReleaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	count, err := c.ResultService.Release(examID, *req.Released)
	if err != nil {
		writeResultError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"affected": count})
}

type GradeRequest struct {
	QuestionID uint `json:"questionId" binding:"required"`
	Marks      *int `json:"marks" binding:"required"`
}

// GradeProjectAnswer godoc
// @Summary Grade a project answer
// @Description Records manual marks for a project question and recomputes
// the submission and result.
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "submission id"
// @Param body body GradeRequest true "marks"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 400 {object} util.Response
// @Router /api/teacher/submissions/{id}/grade [put]
func (c *ResultController) GradeProjectAnswer(ctx *gin.Context) {
	submissionID := ctx.Param("id")

	var req GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ResultService.GradeProjectAnswer(submissionID, req.QuestionID, *req.Marks)
	if err != nil {
		writeResultError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

func writeResultError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrExamNotFound),
		errors.Is(err, util.ErrSubmissionNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrResultNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrResultNotReleased):
		util.Error(ctx, 403, err.Error())
	case errors.Is(err, util.ErrInvalidAnswerKey):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
