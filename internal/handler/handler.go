package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rollbook/internal/activity"
	"rollbook/internal/aggregate"
	"rollbook/internal/attendance"
	"rollbook/internal/records"
	"rollbook/internal/report"
	"rollbook/internal/roster"
)

const maxPhotoBytes = 5 << 20

// Handler serves the JSON API consumed by the attendance pages.
type Handler struct {
	roster  *roster.Service
	ledger  *attendance.Ledger
	session *attendance.Session
	feed    *activity.Feed
	store   *records.Store
	log     zerolog.Logger
	now     func() time.Time
}

// New wires a handler. The session is created here: the API serves a single
// editing session per process.
func New(store *records.Store, rs *roster.Service, ledger *attendance.Ledger, feed *activity.Feed, log zerolog.Logger) *Handler {
	return &Handler{
		roster:  rs,
		ledger:  ledger,
		session: attendance.NewSession(ledger),
		feed:    feed,
		store:   store,
		log:     log.With().Str("component", "http").Logger(),
		now:     time.Now,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/students", h.ListStudents)
		api.POST("/students", h.CreateStudent)
		api.GET("/students/:id", h.GetStudent)
		api.PUT("/students/:id", h.UpdateStudent)
		api.DELETE("/students/:id", h.DeleteStudent)

		api.GET("/classes", h.ListClasses)
		api.POST("/classes", h.CreateClass)
		api.PUT("/classes/:id", h.RenameClass)
		api.DELETE("/classes/:id", h.DeleteClass)

		api.GET("/attendance/:date", h.GetAttendance)
		api.PUT("/attendance/:date/students/:studentId", h.SetStatus)
		api.DELETE("/attendance/:date/students/:studentId", h.ClearStatus)
		api.POST("/attendance/:date/mark-all", h.MarkAll)
		api.POST("/commit", h.Commit)
		api.GET("/dates", h.ListDates)

		api.GET("/reports/:date", h.GetReport)
		api.GET("/calendar/:year/:month", h.GetCalendar)
		api.GET("/dashboard", h.GetDashboard)
		api.GET("/activity", h.ListActivity)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	if !h.store.Healthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	students := roster.Filter(h.roster.Students(c.Request.Context()), c.Query("class"), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.roster.Student(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CreateStudent accepts JSON, or a multipart form with an optional "photo" file.
func (h *Handler) CreateStudent(c *gin.Context) {
	in, photo, ok := h.bindStudent(c)
	if !ok {
		return
	}
	st, err := h.roster.AddStudent(c.Request.Context(), in, photo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	in, photo, ok := h.bindStudent(c)
	if !ok {
		return
	}
	st, err := h.roster.UpdateStudent(c.Request.Context(), c.Param("id"), in, photo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.roster.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindStudent(c *gin.Context) (roster.StudentInput, *roster.Photo, bool) {
	var in roster.StudentInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, nil, false
	}
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return in, nil, true
	}
	header, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, true
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo upload"})
		return in, nil, false
	}
	if header.Size > maxPhotoBytes {
		h.fail(c, roster.ErrPhotoTooLarge)
		return in, nil, false
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo upload"})
		return in, nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
		return in, nil, false
	}
	return in, &roster.Photo{Filename: header.Filename, Data: data}, true
}

// ---------- Classes ----------

type classRequest struct {
	Name string `json:"name" form:"name"`
}

func (h *Handler) ListClasses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"classes": h.roster.ClassSummaries(c.Request.Context())})
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cls, err := h.roster.AddClass(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cls)
}

func (h *Handler) RenameClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cls, err := h.roster.RenameClass(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (h *Handler) DeleteClass(c *gin.Context) {
	cleared, err := h.roster.DeleteClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clearedStudents": cleared})
}

// ---------- Errors ----------

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, attendance.ErrMissingDate),
		errors.Is(err, attendance.ErrInvalidDate),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, roster.ErrUnknownClass),
		errors.Is(err, roster.ErrNotImage),
		errors.Is(err, roster.ErrPhotoTooLarge),
		roster.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, roster.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, roster.ErrDuplicateStudent),
		errors.Is(err, roster.ErrDuplicateClass):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// ---------- Reports ----------

// GetReport returns the report for a date as JSON, or as a workbook with ?format=xlsx.
func (h *Handler) GetReport(c *gin.Context) {
	date := c.Param("date")
	if _, err := attendance.ParseDate(date); err != nil {
		h.fail(c, err)
		return
	}
	rep := aggregate.BuildReport(h.ledger.Load(c.Request.Context(), date))

	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, rep)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename(date)+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := report.WriteXLSX(c.Writer, rep); err != nil {
		h.log.Error().Err(err).Str("date", date).Msg("xlsx export failed")
	}
}
