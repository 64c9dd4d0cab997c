package controller

import (
	"errors"
	"strconv"

	"examhub_backend/internal/model"
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ExamController is the teacher-facing authoring surface: exams, their
// question banks, status transitions and the access allow-list.
type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// CreateExam godoc
// @Summary Create an exam
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ExamRequest true "exam definition"
// @Success 201 {object} util.Response{data=model.Exam}
// @Failure 400 {object} util.Response
// @Router /api/teacher/exams [post]
func (c *ExamController) CreateExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.CreateExam(user.UserID, req)
	if err != nil {
		if errors.Is(err, util.ErrInvalidExam) {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, exam)
}

// UpdateExam godoc
// @Summary Update an exam
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param body body service.ExamRequest true "fields to change"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id} [put]
func (c *ExamController) UpdateExam(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	var req service.ExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.UpdateExam(examID, req)
	if err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, exam)
}

type StatusRequest struct {
	Status model.ExamStatus `json:"status" binding:"required"`
}

// TransitionStatus godoc
// @Summary Advance exam status
// @Description Moves the exam one step along draft, published, in_progress, completed, archived
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param body body StatusRequest true "target status"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id}/status [put]
func (c *ExamController) TransitionStatus(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.TransitionStatus(examID, req.Status)
	if err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, exam)
}

// GetExam godoc
// @Summary Exam with its full question bank
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id} [get]
func (c *ExamController) GetExam(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	exam, questions, err := c.ExamService.GetExam(examID)
	if err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"exam": exam, "questions": questions})
}

// ListExams godoc
// @Summary List exams
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Param status query string false "filter by status"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/exams [get]
func (c *ExamController) ListExams(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	status := model.ExamStatus(ctx.Query("status"))

	exams, total, err := c.ExamService.ListExams(page, limit, status)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: exams, Total: total, Page: page, Limit: limit})
}

// AddQuestion godoc
// @Summary Add a question to an exam
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param body body service.QuestionRequest true "question with its answer key"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response
// @Router /api/teacher/exams/{id}/questions [post]
func (c *ExamController) AddQuestion(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.ExamService.AddQuestion(examID, req)
	if err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Created(ctx, q)
}

// UpdateQuestion godoc
// @Summary Update a question
// @Description Edits a question. If the answer key or marks changed, every
// finalized submission is re-scored before this call returns; the response
// carries the number of submissions updated.
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param qid path int true "question id"
// @Param body body service.QuestionRequest true "question with its answer key"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/teacher/exams/{id}/questions/{qid} [put]
func (c *ExamController) UpdateQuestion(ctx *gin.Context) {
	questionID := util.MustParseUint(ctx.Param("qid"))

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, updated, err := c.ExamService.UpdateQuestion(questionID, req)
	if err != nil {
		if errors.Is(err, util.ErrPropagationPartial) {
			// The edit persisted; re-scoring stopped midway. Report how far
			// it got so the caller can retry the propagation.
			util.Error(ctx, 500, err.Error())
			return
		}
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"question": q, "updatedSubmissions": updated})
}

// DeleteQuestion godoc
// @Summary Delete a question
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param qid path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/questions/{qid} [delete]
func (c *ExamController) DeleteQuestion(ctx *gin.Context) {
	questionID := util.MustParseUint(ctx.Param("qid"))

	if err := c.ExamService.DeleteQuestion(questionID); err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": questionID})
}

type AccessRequest struct {
	StudentID uint `json:"studentId" binding:"required"`
}

// GrantAccess godoc
// @Summary Put a student on the exam allow-list
// @Tags exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param body body AccessRequest true "student"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/access [post]
func (c *ExamController) GrantAccess(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	var req AccessRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ExamService.GrantAccess(examID, req.StudentID); err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"granted": req.StudentID})
}

// RevokeAccess godoc
// @Summary Remove a student from the exam allow-list
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Param studentId path int true "student id"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/access/{studentId} [delete]
func (c *ExamController) RevokeAccess(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))
	studentID := util.MustParseUint(ctx.Param("studentId"))

	if err := c.ExamService.RevokeAccess(examID, studentID); err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"revoked": studentID})
}

// GetExamForStudent godoc
// @Summary Exam as seen by a student
// @Description Question set with every answer-key field stripped
// @Tags exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "exam id"
// @Success 200 {object} util.Response
// @Router /api/exams/{id} [get]
func (c *ExamController) GetExamForStudent(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))

	exam, questions, err := c.ExamService.GetExamForStudent(examID)
	if err != nil {
		writeExamError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"exam": exam, "questions": questions})
}

// writeExamError maps authoring errors onto HTTP statuses.
func writeExamError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrExamNotFound), errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrInvalidExam), errors.Is(err, util.ErrInvalidAnswerKey):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
