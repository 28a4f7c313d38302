package app

import (
	"net/http"

	"forumsync/internal/model"
	"forumsync/internal/service"
	"forumsync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReportHandler struct {
	reportService service.ReportService
	log           logrus.FieldLogger
}

func NewReportHandler(reportService service.ReportService, log logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		log:           log,
	}
}

// CreateReport files a report; a second report by the same user is a 400
// POST /api/reports/create?userEmail=
func (h *ReportHandler) CreateReport(c *gin.Context) {
	userEmail := c.Query("userEmail")
	if userEmail == "" {
		util.BadRequest(c, "userEmail is required")
		return
	}

	var in model.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), userEmail, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	util.SuccessResponse(c, http.StatusCreated, "Report submitted", gin.H{
		"id":      report.ID,
		"reasons": report.GetReasons(),
	})
}
