package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/62saybyetopain/new-reservation-system/libs/httpx"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/admin"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// AdminHandler serves the back-office API. It expects an authenticating gateway in front.
type AdminHandler struct {
	bookings Bookings
	config   Config
	loc      *time.Location
	logger   *slog.Logger
}

func NewAdminHandler(bookings Bookings, config Config, loc *time.Location, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{bookings: bookings, config: config, loc: loc, logger: logger}
}

func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/bookings", h.ListBookings)
	mux.HandleFunc("GET /api/v1/admin/bookings/counts", h.Counts)
	mux.HandleFunc("GET /api/v1/admin/bookings/{id}", h.GetBooking)
	mux.HandleFunc("POST /api/v1/admin/bookings/read", h.MarkRead)
	mux.HandleFunc("POST /api/v1/admin/bookings/complete", h.SetCompletion)
	mux.HandleFunc("POST /api/v1/admin/bookings/reschedule", h.Reschedule)
	mux.HandleFunc("POST /api/v1/admin/bookings/cancel", h.Cancel)

	mux.HandleFunc("GET /api/v1/admin/overrides", h.ListOverrides)
	mux.HandleFunc("PUT /api/v1/admin/overrides/{date}", h.PutOverride)
	mux.HandleFunc("DELETE /api/v1/admin/overrides/{date}", h.DeleteOverride)

	mux.HandleFunc("GET /api/v1/admin/schedule", h.GetSchedule)
	mux.HandleFunc("PUT /api/v1/admin/schedule", h.PutSchedule)

	mux.HandleFunc("GET /api/v1/admin/plans", h.ListPlans)
	mux.HandleFunc("POST /api/v1/admin/plans", h.CreatePlan)
	mux.HandleFunc("PUT /api/v1/admin/plans/{id}", h.UpdatePlan)
	mux.HandleFunc("DELETE /api/v1/admin/plans/{id}", h.DeletePlan)
}

type listBookingsQuery struct {
	From   string `validate:"omitempty,datetime=2006-01-02"`
	To     string `validate:"omitempty,datetime=2006-01-02"`
	Status string `validate:"omitempty,oneof=pending completed"`
	Limit  int    `validate:"min=0,max=500"`
}

// ListBookings filters by date range [from, to] in the business zone, unread flag and status.
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := listBookingsQuery{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	var ok bool
	if req.Limit, ok = intParam(w, q.Get("limit"), 100, "limit"); !ok {
		return
	}
	if !validateStruct(w, req) {
		return
	}

	f := model.BookingFilter{
		UnreadOnly: q.Get("unread") == "true",
		Status:     model.CompletionStatus(req.Status),
		Limit:      req.Limit,
		Newest:     q.Get("order") == "newest",
	}
	if req.From != "" {
		d, err := calendar.ParseDate(req.From, h.loc)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid from")
			return
		}
		f.From = d
	}
	if req.To != "" {
		d, err := calendar.ParseDate(req.To, h.loc)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid to")
			return
		}
		f.To = calendar.AddDays(d, 1)
	}

	items, err := h.bookings.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, h.logger, "list bookings", err)
		return
	}
	out := make([]bookingView, 0, len(items))
	for _, b := range items {
		out = append(out, viewBooking(b, h.loc))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *AdminHandler) Counts(w http.ResponseWriter, r *http.Request) {
	c, err := h.bookings.Counts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "count bookings", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get booking", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewBooking(b, h.loc))
}

type markReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
}

func (h *AdminHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.bookings.MarkRead(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, h.logger, "mark read", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

type completionRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=pending completed"`
}

func (h *AdminHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.bookings.SetCompletion(r.Context(), req.ID, model.CompletionStatus(req.Status)); err != nil {
		writeServiceError(w, h.logger, "set completion", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": req.ID, "completion_status": req.Status})
}

type rescheduleRequest struct {
	ID        string `json:"id" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
}

func (h *AdminHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_time")
		return
	}
	b, err := h.bookings.Reschedule(r.Context(), req.ID, start)
	if err != nil {
		writeServiceError(w, h.logger, "reschedule booking", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewBooking(b, h.loc))
}

type cancelRequest struct {
	ID string `json:"id" validate:"required"`
}

func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.bookings.Cancel(r.Context(), req.ID); err != nil {
		writeServiceError(w, h.logger, "cancel booking", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": "cancelled"})
}

func (h *AdminHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.config.ListOverrides(r.Context(), strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		writeServiceError(w, h.logger, "list overrides", err)
		return
	}
	if items == nil {
		items = []model.DayOverride{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type overrideRequest struct {
	Type  string             `json:"type" validate:"required,oneof=open rest"`
	Slots []model.TimeWindow `json:"slots" validate:"max=24"`
}

func (h *AdminHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	o, err := h.config.PutOverride(r.Context(), model.DayOverride{
		Date:  r.PathValue("date"),
		Type:  model.DayType(req.Type),
		Slots: req.Slots,
	})
	if err != nil {
		writeServiceError(w, h.logger, "put override", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.config.DeleteOverride(r.Context(), r.PathValue("date")); err != nil {
		writeServiceError(w, h.logger, "delete override", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleDay struct {
	Weekday int                `json:"weekday" validate:"min=0,max=6"`
	IsOpen  bool               `json:"is_open"`
	Slots   []model.TimeWindow `json:"slots" validate:"max=24"`
}

type scheduleBody struct {
	Days []scheduleDay `json:"days" validate:"max=7,unique=Weekday,dive"`
}

// GetSchedule returns the weekly schedule ordered Sunday first. An empty list means the
// 09:00-22:00 fallback applies.
func (h *AdminHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.config.Schedule(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "get schedule", err)
		return
	}
	body := scheduleBody{Days: make([]scheduleDay, 0, len(sched))}
	for day, entry := range sched {
		body.Days = append(body.Days, scheduleDay{Weekday: int(day), IsOpen: entry.IsOpen, Slots: entry.Slots})
	}
	sort.Slice(body.Days, func(i, j int) bool { return body.Days[i].Weekday < body.Days[j].Weekday })
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (h *AdminHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleBody
	if !decodeAndValidate(w, r, &req) {
		return
	}
	sched := make(model.WeeklySchedule, len(req.Days))
	for _, d := range req.Days {
		sched[time.Weekday(d.Weekday)] = model.WeekdaySchedule{IsOpen: d.IsOpen, Slots: d.Slots}
	}
	if err := h.config.PutSchedule(r.Context(), sched); err != nil {
		writeServiceError(w, h.logger, "put schedule", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}

func (h *AdminHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.config.ListPlans(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list plans", err)
		return
	}
	if plans == nil {
		plans = []model.Plan{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

type planRequest struct {
	ID              string          `json:"id" validate:"omitempty,max=64"`
	Category        string          `json:"category" validate:"max=64"`
	Name            string          `json:"name" validate:"required,max=100"`
	Description     string          `json:"description" validate:"max=2000"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,min=1,max=720"`
	RestMinutes     int             `json:"rest_minutes" validate:"min=0,max=240"`
	Price           decimal.Decimal `json:"price"`
	Active          *bool           `json:"active"`
}

func (p planRequest) input() admin.PlanInput {
	return admin.PlanInput{
		ID:              p.ID,
		Category:        p.Category,
		Name:            p.Name,
		Description:     p.Description,
		DurationMinutes: p.DurationMinutes,
		RestMinutes:     p.RestMinutes,
		Price:           p.Price,
		Active:          p.Active,
	}
}

func (h *AdminHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.config.CreatePlan(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, h.logger, "create plan", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	in := req.input()
	in.ID = r.PathValue("id")
	p, err := h.config.UpdatePlan(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, "update plan", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.config.DeletePlan(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
