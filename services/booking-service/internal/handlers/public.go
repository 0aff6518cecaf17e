package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/62saybyetopain/new-reservation-system/libs/httpx"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/availability"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/booking"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
)

// PublicHandler serves the visitor-facing catalogue, calendar and booking endpoints.
type PublicHandler struct {
	snapshots Snapshots
	bookings  Bookings
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

func NewPublicHandler(snapshots Snapshots, bookings Bookings, loc *time.Location, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{snapshots: snapshots, bookings: bookings, loc: loc, logger: logger, now: time.Now}
}

func (h *PublicHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/public/plans", h.Plans)
	mux.HandleFunc("GET /api/v1/public/calendar", h.Calendar)
	mux.HandleFunc("GET /api/v1/public/slots", h.Slots)
	mux.HandleFunc("POST /api/v1/public/bookings", h.CreateBooking)
}

func (h *PublicHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.snapshots.Plans(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list plans", err)
		return
	}
	if plans == nil {
		plans = []model.Plan{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

type calendarQuery struct {
	Start    string `validate:"omitempty,datetime=2006-01-02"`
	Days     int    `validate:"min=1,max=21"`
	PlanID   string `validate:"omitempty,max=64"`
	FromHour int    `validate:"min=0,max=23"`
	ToHour   int    `validate:"min=1,max=24,gtfield=FromHour"`
}

type calendarResponse struct {
	Start  string             `json:"start"`
	PlanID string             `json:"plan_id,omitempty"`
	Days   []availability.Day `json:"days"`
}

// Calendar summarises each hour of a run of days. Without plan_id the hours are
// previewed with the shortest offering.
func (h *PublicHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := calendarQuery{
		Start:  strings.TrimSpace(q.Get("start")),
		PlanID: strings.TrimSpace(q.Get("plan_id")),
	}
	var ok bool
	if req.Days, ok = intParam(w, q.Get("days"), 7, "days"); !ok {
		return
	}
	if req.FromHour, ok = intParam(w, q.Get("from_hour"), 9, "from_hour"); !ok {
		return
	}
	if req.ToHour, ok = intParam(w, q.Get("to_hour"), 22, "to_hour"); !ok {
		return
	}
	if !validateStruct(w, req) {
		return
	}

	ctx := r.Context()
	now := h.now().In(h.loc)
	start := calendar.Today(now)
	if req.Start != "" {
		d, err := calendar.ParseDate(req.Start, h.loc)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid start")
			return
		}
		start = d
	}

	var plan *model.Plan
	if req.PlanID != "" {
		p, err := h.snapshots.Plan(ctx, req.PlanID)
		if err != nil {
			writeServiceError(w, h.logger, "load plan", err)
			return
		}
		plan = &p
	}

	snap, err := h.snapshots.Load(ctx, start, calendar.AddDays(start, req.Days))
	if err != nil {
		writeServiceError(w, h.logger, "load snapshot", err)
		return
	}

	resp := calendarResponse{Start: calendar.DateKey(start), PlanID: req.PlanID}
	for i := 0; i < req.Days; i++ {
		day := calendar.AddDays(start, i)
		resp.Days = append(resp.Days, availability.DaySummary(day, req.FromHour, req.ToHour, plan, snap, now))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type slotsQuery struct {
	Date   string `validate:"required,datetime=2006-01-02"`
	PlanID string `validate:"required,max=64"`
	Hour   *int   `validate:"omitempty,min=0,max=23"`
}

type slotView struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	Date   string     `json:"date"`
	PlanID string     `json:"plan_id"`
	Hour   *int       `json:"hour,omitempty"`
	Slots  []slotView `json:"slots"`
}

// Slots lists bookable start times for one plan on one date, optionally one hour only.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := slotsQuery{
		Date:   strings.TrimSpace(q.Get("date")),
		PlanID: strings.TrimSpace(q.Get("plan_id")),
	}
	if raw := strings.TrimSpace(q.Get("hour")); raw != "" {
		hour, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid hour")
			return
		}
		req.Hour = &hour
	}
	if !validateStruct(w, req) {
		return
	}

	day, err := calendar.ParseDate(req.Date, h.loc)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid date")
		return
	}
	ctx := r.Context()
	plan, err := h.snapshots.Plan(ctx, req.PlanID)
	if err != nil {
		writeServiceError(w, h.logger, "load plan", err)
		return
	}
	snap, err := h.snapshots.Load(ctx, day, calendar.AddDays(day, 1))
	if err != nil {
		writeServiceError(w, h.logger, "load snapshot", err)
		return
	}

	now := h.now().In(h.loc)
	var starts []time.Time
	if req.Hour != nil {
		if hourStart, ok := calendar.HourOn(day, *req.Hour); ok {
			starts = availability.SlotsForHour(hourStart, &plan, snap, now)
		}
	} else {
		starts = availability.SlotsForDay(day, &plan, snap, now)
	}

	resp := slotsResponse{Date: calendar.DateKey(day), PlanID: plan.ID, Hour: req.Hour, Slots: make([]slotView, 0, len(starts))}
	for _, s := range starts {
		resp.Slots = append(resp.Slots, slotView{
			StartTime: s.Format(time.RFC3339),
			EndTime:   s.Add(time.Duration(plan.DurationMinutes) * time.Minute).Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type createBookingRequest struct {
	PlanID       string             `json:"plan_id" validate:"required,max=64"`
	StartTime    string             `json:"start_time" validate:"required"`
	CustomerName string             `json:"customer_name" validate:"required,max=100"`
	Contact      string             `json:"contact" validate:"required,max=200"`
	ContactType  string             `json:"contact_type" validate:"omitempty,oneof=phone email line ig twitter fb"`
	Attendees    int                `json:"attendees" validate:"omitempty,min=1,max=10"`
	FormAnswers  []model.FormAnswer `json:"form_answers" validate:"max=50"`
}

// CreateBooking reserves a slot. A repeated Idempotency-Key returns the original booking with 200.
func (h *PublicHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_time")
		return
	}

	res, err := h.bookings.Create(r.Context(), booking.CreateRequest{
		PlanID:         req.PlanID,
		StartTime:      start,
		CustomerName:   req.CustomerName,
		Contact:        req.Contact,
		ContactType:    model.ContactType(req.ContactType),
		Attendees:      req.Attendees,
		FormAnswers:    req.FormAnswers,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeServiceError(w, h.logger, "create booking", err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, viewBooking(res.Booking, h.loc))
}

// intParam parses an optional integer query value, writing a 400 when it is malformed.
func intParam(w http.ResponseWriter, raw string, def int, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
