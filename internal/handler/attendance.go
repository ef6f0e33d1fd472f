package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rollbook/internal/activity"
	"rollbook/internal/aggregate"
	"rollbook/internal/attendance"
	"rollbook/internal/roster"
)

// Row is one student on the attendance screen.
type Row struct {
	roster.Student
	Status attendance.Status `json:"status"`
	Marked bool              `json:"marked"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type markAllRequest struct {
	Status string `json:"status"`
	Class  string `json:"class"`
}

type commitRequest struct {
	Date string `json:"date"`
}

// GetAttendance selects date and lists the (optionally class-filtered) roster
// with the draft applied. Unmarked students show their effective status.
func (h *Handler) GetAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	date := c.Param("date")
	marks, err := h.session.Select(ctx, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	students := roster.Filter(h.roster.Students(ctx), c.Query("class"), c.Query("q"))
	rows := make([]Row, 0, len(students))
	for _, st := range students {
		status, marked := marks[st.ID]
		if !marked {
			status = attendance.Absent
		}
		rows = append(rows, Row{Student: st, Status: status, Marked: marked})
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "students": rows, "marked": len(marks)})
}

// SetStatus marks one roster student; unknown students are 404.
func (h *Handler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	date := c.Param("date")
	if _, err := attendance.ParseDate(date); err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.roster.Student(ctx, c.Param("studentId")); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.session.SetStatus(ctx, date, c.Param("studentId"), status); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studentId": c.Param("studentId"), "status": status})
}

func (h *Handler) ClearStatus(c *gin.Context) {
	if err := h.session.Clear(c.Request.Context(), c.Param("date"), c.Param("studentId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAll marks every student in the requested class, or the whole roster
// when no class is given.
func (h *Handler) MarkAll(c *gin.Context) {
	var req markAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	students := roster.Filter(h.roster.Students(ctx), req.Class, "")
	if err := h.session.MarkAll(ctx, c.Param("date"), students, status); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": len(students), "status": status})
}

// Commit saves the draft for the requested date over the full roster.
func (h *Handler) Commit(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	snap, err := h.session.Commit(ctx, req.Date, h.roster.Students(ctx))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, aggregate.BuildReport(snap))
}

func (h *Handler) ListDates(c *gin.Context) {
	dates, err := h.ledger.Dates(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

// GetCalendar renders the month grid with one rate per committed day.
func (h *Handler) GetCalendar(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 || year > 9999 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}
	ctx := c.Request.Context()
	lookup := func(date string) attendance.Snapshot { return h.ledger.Load(ctx, date) }
	c.JSON(http.StatusOK, aggregate.BuildCalendar(year, time.Month(month), lookup, h.now()))
}

type activityView struct {
	activity.Entry
	Ago string `json:"ago"`
}

// GetDashboard reports today's stats for the roster, optionally restricted to
// one class, plus the latest activity.
func (h *Handler) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()
	date := c.DefaultQuery("date", now.Format(time.DateOnly))
	if _, err := attendance.ParseDate(date); err != nil {
		h.fail(c, err)
		return
	}
	students := roster.Filter(h.roster.Students(ctx), c.Query("class"), "")
	stats := aggregate.Daily(students, h.ledger.Load(ctx, date))
	c.JSON(http.StatusOK, gin.H{
		"date":     date,
		"stats":    stats,
		"classes":  len(h.roster.Classes(ctx)),
		"activity": h.activityViews(ctx, 5, now),
	})
}

func (h *Handler) ListActivity(c *gin.Context) {
	limit := queryInt(c, "limit", activity.MaxEntries)
	c.JSON(http.StatusOK, gin.H{"activity": h.activityViews(c.Request.Context(), limit, h.now())})
}

func (h *Handler) activityViews(ctx context.Context, n int, now time.Time) []activityView {
	entries := h.feed.Recent(ctx, n)
	out := make([]activityView, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityView{Entry: e, Ago: activity.Ago(e.Timestamp, now)})
	}
	return out
}
