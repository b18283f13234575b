package main

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/events"
	"bitbucket.org/mmdatafocus/ptw_backend/models"
	"bitbucket.org/mmdatafocus/ptw_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// changeBus fans mutations out to the live feed; set once in main before the
// router starts serving.
var changeBus *events.Bus

func emit(kind events.Kind, permit *models.Permit) {
	if changeBus != nil {
		changeBus.Emit(events.Event{Kind: kind, Permit: permit})
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": info})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ok})
	}
}

func bindFilter(c *gin.Context) *models.PermitFilter {
	var filter models.PermitFilter
	_ = c.ShouldBindQuery(&filter)
	return &filter
}

func listPermitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bindFilter(c)

		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}

		// Without a limit the full filtered set is returned, which is what
		// the dashboard table wants for sets of a few thousand rows.
		if limit == 0 {
			permits, err := models.ListPermits(c.Request.Context(), filter)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": permits, "total": len(permits)})
			return
		}

		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		permits, hasNext, err := models.PaginatePermits(c.Request.Context(), filter, limit, after)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		total, err := models.CountPermits(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var nextCursor string
		if hasNext && len(permits) > 0 {
			nextCursor = models.EncodeCursor(permits[len(permits)-1].ID)
		}
		c.JSON(http.StatusOK, gin.H{
			"data":        permits,
			"total":       total,
			"has_next":    hasNext,
			"next_cursor": nextCursor,
		})
	}
}

func getPermitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		permit, err := models.GetPermit(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": permit})
	}
}

func createPermitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPermit
		if err := c.ShouldBindJSON(&input); err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		permit, err := models.CreatePermit(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		emit(events.Inserted, permit)
		c.JSON(http.StatusCreated, gin.H{"data": permit})
	}
}

func updatePermitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var input models.NewPermit
		if err := c.ShouldBindJSON(&input); err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		permit, err := models.UpdatePermit(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		emit(events.Updated, permit)
		c.JSON(http.StatusOK, gin.H{"data": permit})
	}
}

func deletePermitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		permit, err := models.DeletePermit(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		emit(events.Deleted, permit)
		c.JSON(http.StatusOK, gin.H{"data": permit})
	}
}

const maxImportSizeBytes = 20 << 20

func importPermitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxImportSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 20MB limit"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer file.Close()

		mode := c.DefaultPostForm("mode", models.ImportModeUpsert)
		report, err := models.ImportPermits(c.Request.Context(), file, mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if report.SuccessCount > 0 {
			emit(events.Changed, nil)
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}

type errorExportRequest struct {
	Errors []models.RowError `json:"errors" binding:"required"`
}

func exportImportErrorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req errorExportRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Errors) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "errors are required"})
			return
		}
		f, err := models.ErrorReportWorkbook(req.Errors)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeWorkbook(c, f, "upload_errors.xlsx")
	}
}

func exportPermitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bindFilter(c)
		f, err := models.PermitsWorkbook(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeWorkbook(c, f, models.ExportFilename(time.Now()))
	}
}

type workbookWriter interface {
	WriteToBuffer() (*bytes.Buffer, error)
}

func writeWorkbook(c *gin.Context, f workbookWriter, filename string) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

func statsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bindFilter(c)
		stats, err := models.ComputeStatistics(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stats})
	}
}

func dashboardStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		permits, err := models.ListPermits(c.Request.Context(), bindFilter(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": models.Summarize(permits)})
	}
}

func companyStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		permits, err := models.ListPermits(c.Request.Context(), bindFilter(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": models.AggregateCompanies(permits)})
	}
}

func workTypeStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		permits, err := models.ListPermits(c.Request.Context(), bindFilter(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": models.AggregateWorkTypes(permits)})
	}
}

func dailyStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		permits, err := models.ListPermits(c.Request.Context(), bindFilter(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":  models.DailySeries(permits),
			"trend": models.ComputeWeeklyTrend(permits, time.Now()),
		})
	}
}

func statusTrendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		permits, err := models.ListPermits(c.Request.Context(), bindFilter(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": models.StatusTrend(permits, time.Now())})
	}
}

func listAttachmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		attachments, err := models.ListAttachments(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": attachments})
	}
}

func deleteAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		attachment, err := models.DeleteAttachment(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": attachment})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetAllUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": users, "total": len(users)})
	}
}

// authorizeAdminOnly gates user administration to admin sessions.
func authorizeAdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		var user models.User
		exists, err := config.GetRedisObject("User:"+username, &user)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		if !exists {
			db := config.GetDB()
			if db == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
				c.Abort()
				return
			}
			if err := db.WithContext(c.Request.Context()).Model(&models.User{}).
				Where("username = ?", username).Take(&user).Error; err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
		}
		if user.Role != models.RoleAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
