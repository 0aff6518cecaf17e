package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/admin"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/availability"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/booking"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/model"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/snapshot"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

type fakeSnapshots struct {
	plans []model.Plan
	snap  availability.Snapshot
}

func (f *fakeSnapshots) Load(context.Context, time.Time, time.Time) (availability.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeSnapshots) Plans(context.Context) ([]model.Plan, error) { return f.plans, nil }

func (f *fakeSnapshots) Plan(_ context.Context, id string) (model.Plan, error) {
	for _, p := range f.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Plan{}, snapshot.ErrPlanNotFound
}

type fakeBookings struct {
	lastCreate booking.CreateRequest
	createRes  booking.CreateResult
	createErr  error

	rescheduled time.Time
	moveErr     error
	readIDs     []string
	filter      model.BookingFilter
}

func (f *fakeBookings) Create(_ context.Context, req booking.CreateRequest) (booking.CreateResult, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return booking.CreateResult{}, f.createErr
	}
	res := f.createRes
	if res.Booking.ID == "" {
		res.Booking = model.Booking{ID: "b-1", PlanID: req.PlanID, StartTime: req.StartTime, DurationMinutes: 60, RestMinutes: 15}
	}
	return res, nil
}

func (f *fakeBookings) Reschedule(_ context.Context, id string, start time.Time) (model.Booking, error) {
	f.rescheduled = start
	if f.moveErr != nil {
		return model.Booking{}, f.moveErr
	}
	return model.Booking{ID: id, StartTime: start, DurationMinutes: 30}, nil
}

func (f *fakeBookings) Cancel(_ context.Context, id string) error {
	switch id {
	case "missing":
		return fmt.Errorf("cancel %s: %w", id, booking.ErrNotFound)
	case "contended":
		return fmt.Errorf("cancel %s: %w", id, booking.ErrBusy)
	}
	return nil
}

func (f *fakeBookings) MarkRead(_ context.Context, ids []string) (int64, error) {
	f.readIDs = ids
	return int64(len(ids)), nil
}

func (f *fakeBookings) SetCompletion(context.Context, string, model.CompletionStatus) error {
	return nil
}

func (f *fakeBookings) Get(_ context.Context, id string) (model.Booking, error) {
	return model.Booking{ID: id, StartTime: testNow}, nil
}

func (f *fakeBookings) List(_ context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	f.filter = filter
	return []model.Booking{{ID: "b-1", StartTime: testNow, DurationMinutes: 30, RestMinutes: 10}}, nil
}

func (f *fakeBookings) Counts(context.Context) (model.BookingCounts, error) {
	return model.BookingCounts{Unread: 2, Pending: 3, Upcoming: 1}, nil
}

type fakeConfig struct {
	override model.DayOverride
	schedule model.WeeklySchedule
	plan     admin.PlanInput
}

func (f *fakeConfig) ListPlans(context.Context) ([]model.Plan, error) { return nil, nil }

func (f *fakeConfig) CreatePlan(_ context.Context, in admin.PlanInput) (model.Plan, error) {
	f.plan = in
	return model.Plan{ID: "p-1", Name: in.Name, DurationMinutes: in.DurationMinutes, Price: in.Price, Active: true}, nil
}

func (f *fakeConfig) UpdatePlan(_ context.Context, in admin.PlanInput) (model.Plan, error) {
	f.plan = in
	return model.Plan{ID: in.ID, Name: in.Name}, nil
}

func (f *fakeConfig) DeletePlan(_ context.Context, id string) error {
	return fmt.Errorf("delete plan %s: %w", id, admin.ErrNotFound)
}

func (f *fakeConfig) ListOverrides(context.Context, string, string) ([]model.DayOverride, error) {
	return nil, nil
}

func (f *fakeConfig) PutOverride(_ context.Context, o model.DayOverride) (model.DayOverride, error) {
	f.override = o
	return o, nil
}

func (f *fakeConfig) DeleteOverride(context.Context, string) error { return nil }

func (f *fakeConfig) Schedule(context.Context) (model.WeeklySchedule, error) {
	return model.WeeklySchedule{
		time.Monday: {IsOpen: true, Slots: []model.TimeWindow{{Start: "09:00", End: "19:00"}}},
		time.Sunday: {IsOpen: false},
	}, nil
}

func (f *fakeConfig) PutSchedule(_ context.Context, s model.WeeklySchedule) error {
	f.schedule = s
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type testServer struct {
	mux       *http.ServeMux
	snapshots *fakeSnapshots
	bookings  *fakeBookings
	config    *fakeConfig
}

func newTestServer() *testServer {
	ts := &testServer{
		mux: http.NewServeMux(),
		snapshots: &fakeSnapshots{plans: []model.Plan{
			{ID: "rec_half_body", Name: "Half body", DurationMinutes: 60, RestMinutes: 15, Price: decimal.NewFromInt(1500), Active: true},
		}},
		bookings: &fakeBookings{},
		config:   &fakeConfig{},
	}
	pub := NewPublicHandler(ts.snapshots, ts.bookings, time.UTC, discard())
	pub.now = func() time.Time { return testNow }
	pub.Register(ts.mux)
	NewAdminHandler(ts.bookings, ts.config, time.UTC, discard()).Register(ts.mux)
	return ts
}

func (ts *testServer) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPublicPlans(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/api/v1/public/plans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		Plans []model.Plan `json:"plans"`
	}](t, rec)
	if len(body.Plans) != 1 || !body.Plans[0].Price.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("unexpected plans %+v", body.Plans)
	}
}

func TestCalendarSummarisesHours(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/api/v1/public/calendar?start=2026-08-10&days=2&from_hour=9&to_hour=12", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[calendarResponse](t, rec)
	if len(body.Days) != 2 || len(body.Days[0].Hours) != 3 {
		t.Fatalf("unexpected calendar shape %+v", body)
	}
	first := body.Days[0].Hours[0]
	if first.Hour != 9 || first.Status != availability.StatusAvailable || first.Count != 6 {
		t.Fatalf("expected hour 9 fully open, got %+v", first)
	}
	if body.Days[1].Date != "2026-08-11" {
		t.Fatalf("expected second day 2026-08-11, got %s", body.Days[1].Date)
	}
}

func TestCalendarRejectsBadQuery(t *testing.T) {
	ts := newTestServer()
	for _, target := range []string{
		"/api/v1/public/calendar?days=30",
		"/api/v1/public/calendar?days=x",
		"/api/v1/public/calendar?from_hour=12&to_hour=10",
		"/api/v1/public/calendar?start=10-08-2026",
	} {
		if rec := ts.do(http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
	if rec := ts.do(http.MethodGet, "/api/v1/public/calendar?plan_id=nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown plan, got %d", rec.Code)
	}
}

func TestSlotsForHour(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/api/v1/public/slots?date=2026-08-10&hour=20&plan_id=rec_half_body", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[slotsResponse](t, rec)
	if len(body.Slots) != 5 {
		t.Fatalf("expected 5 slots ending before 22:00, got %+v", body.Slots)
	}
	if body.Slots[0].StartTime != "2026-08-10T20:00:00Z" || body.Slots[0].EndTime != "2026-08-10T21:00:00Z" {
		t.Fatalf("unexpected first slot %+v", body.Slots[0])
	}
}

func TestSlotsErrors(t *testing.T) {
	ts := newTestServer()
	if rec := ts.do(http.MethodGet, "/api/v1/public/slots?date=2026-08-10&plan_id=ghost", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/v1/public/slots?date=2026-08-10&hour=24&plan_id=rec_half_body", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for hour 24, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/v1/public/slots?plan_id=rec_half_body", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without date, got %d", rec.Code)
	}
}

const createBody = `{"plan_id":"rec_half_body","start_time":"2026-08-10T10:00:00Z","customer_name":"Lin","contact":"0912","contact_type":"phone"}`

func TestCreateBooking(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/api/v1/public/bookings", createBody, "Idempotency-Key", " key-1 ")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.bookings.lastCreate.IdempotencyKey != "key-1" {
		t.Fatalf("expected idempotency key forwarded, got %q", ts.bookings.lastCreate.IdempotencyKey)
	}
	view := decode[bookingView](t, rec)
	if view.EndTime != "2026-08-10T11:00:00Z" || view.OccupiedUntil != "2026-08-10T11:15:00Z" {
		t.Fatalf("unexpected booking view %+v", view)
	}

	ts.bookings.createRes.Replayed = true
	rec = ts.do(http.MethodPost, "/api/v1/public/bookings", createBody, "Idempotency-Key", "key-1")
	if rec.Code != http.StatusOK || rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay 200, got %d", rec.Code)
	}
}

func TestCreateBookingErrors(t *testing.T) {
	ts := newTestServer()
	ts.bookings.createErr = fmt.Errorf("create booking: %w", booking.ErrSlotTaken)
	if rec := ts.do(http.MethodPost, "/api/v1/public/bookings", createBody); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	ts.bookings.createErr = fmt.Errorf("%w: start_time must fall on a 10-minute boundary", booking.ErrInvalidInput)
	if rec := ts.do(http.MethodPost, "/api/v1/public/bookings", createBody); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	ts.bookings.createErr = nil
	for _, body := range []string{
		`{"plan_id":"rec_half_body","start_time":"2026-08-10T10:00:00Z","customer_name":"Lin"}`,
		`{"plan_id":"rec_half_body","start_time":"tomorrow","customer_name":"Lin","contact":"x"}`,
		`{"plan_id":"rec_half_body","start_time":"2026-08-10T10:00:00Z","customer_name":"Lin","contact":"x","contact_type":"fax"}`,
		`{"plan_id":"rec_half_body","unknown":1}`,
	} {
		if rec := ts.do(http.MethodPost, "/api/v1/public/bookings", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAdminBookingActions(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/v1/admin/bookings?from=2026-08-01&to=2026-08-03&unread=true&status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !ts.bookings.filter.UnreadOnly || !ts.bookings.filter.To.Equal(time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected filter %+v", ts.bookings.filter)
	}
	if rec := ts.do(http.MethodGet, "/api/v1/admin/bookings?status=done", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rec.Code)
	}

	rec = ts.do(http.MethodGet, "/api/v1/admin/bookings/counts", "")
	counts := decode[model.BookingCounts](t, rec)
	if counts.Unread != 2 || counts.Pending != 3 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	if rec := ts.do(http.MethodPost, "/api/v1/admin/bookings/read", `{"ids":["a","b"]}`); rec.Code != http.StatusOK || len(ts.bookings.readIDs) != 2 {
		t.Fatalf("expected mark read, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/v1/admin/bookings/read", `{"ids":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", rec.Code)
	}

	ts.bookings.moveErr = fmt.Errorf("reschedule: %w", booking.ErrSlotTaken)
	if rec := ts.do(http.MethodPost, "/api/v1/admin/bookings/reschedule", `{"id":"b-1","start_time":"2026-08-10T12:00:00+08:00"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !ts.bookings.rescheduled.Equal(time.Date(2026, 8, 10, 4, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reschedule target %s", ts.bookings.rescheduled)
	}

	if rec := ts.do(http.MethodPost, "/api/v1/admin/bookings/cancel", `{"id":"missing"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = ts.do(http.MethodPost, "/api/v1/admin/bookings/cancel", `{"id":"contended"}`)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected retryable 503, got %d %v", rec.Code, rec.Header())
	}
	if rec := ts.do(http.MethodPost, "/api/v1/admin/bookings/complete", `{"id":"b-1","status":"completed"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminConfig(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPut, "/api/v1/admin/overrides/2026-08-15", `{"type":"open","slots":[{"start":"13:00","end":"00:00"}]}`)
	if rec.Code != http.StatusOK || ts.config.override.Date != "2026-08-15" || len(ts.config.override.Slots) != 1 {
		t.Fatalf("unexpected override put %d %+v", rec.Code, ts.config.override)
	}
	if rec := ts.do(http.MethodPut, "/api/v1/admin/overrides/2026-08-15", `{"type":"closed"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPut, "/api/v1/admin/schedule", `{"days":[{"weekday":1,"is_open":true,"slots":[{"start":"09:00","end":"18:00"}]},{"weekday":0,"is_open":false}]}`)
	if rec.Code != http.StatusOK || !ts.config.schedule[time.Monday].IsOpen || ts.config.schedule[time.Sunday].IsOpen {
		t.Fatalf("unexpected schedule put %d %+v", rec.Code, ts.config.schedule)
	}
	if rec := ts.do(http.MethodPut, "/api/v1/admin/schedule", `{"days":[{"weekday":1,"is_open":true},{"weekday":1,"is_open":false}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate weekday, got %d", rec.Code)
	}

	rec = ts.do(http.MethodGet, "/api/v1/admin/schedule", "")
	sched := decode[scheduleBody](t, rec)
	if len(sched.Days) != 2 || sched.Days[0].Weekday != 0 || sched.Days[1].Weekday != 1 {
		t.Fatalf("expected days ordered Sunday first, got %+v", sched.Days)
	}

	rec = ts.do(http.MethodPost, "/api/v1/admin/plans", `{"name":"Deep","duration_minutes":90,"rest_minutes":15,"price":"2100.50"}`)
	if rec.Code != http.StatusCreated || !ts.config.plan.Price.Equal(decimal.RequireFromString("2100.5")) {
		t.Fatalf("unexpected plan create %d %+v", rec.Code, ts.config.plan)
	}
	if rec := ts.do(http.MethodPost, "/api/v1/admin/plans", `{"name":"Deep","duration_minutes":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero duration, got %d", rec.Code)
	}
	rec = ts.do(http.MethodPut, "/api/v1/admin/plans/deep", `{"name":"Deep","duration_minutes":90}`)
	if rec.Code != http.StatusOK || ts.config.plan.ID != "deep" {
		t.Fatalf("expected path id to win, got %d %+v", rec.Code, ts.config.plan)
	}
	if rec := ts.do(http.MethodDelete, "/api/v1/admin/plans/deep", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
