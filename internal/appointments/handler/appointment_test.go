package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinic/internal/appointments/feed"
	"clinic/internal/appointments/repository"
	"clinic/internal/slots"
	apperrors "clinic/pkg/errors"
	"clinic/pkg/logger"
	"clinic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockAppointmentService struct {
	bookFunc         func(ctx context.Context, req *model.BookingRequest) (*model.Reservation, error)
	occupiedFunc     func(ctx context.Context) ([]string, error)
	availabilityFunc func(ctx context.Context) ([]model.SlotAvailability, error)
}

func (m *mockAppointmentService) Book(ctx context.Context, req *model.BookingRequest) (*model.Reservation, error) {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, req)
	}
	return &model.Reservation{SlotID: req.Date + "T" + req.Time}, nil
}

func (m *mockAppointmentService) OccupiedSlots(ctx context.Context) ([]string, error) {
	if m.occupiedFunc != nil {
		return m.occupiedFunc(ctx)
	}
	return nil, nil
}

func (m *mockAppointmentService) Availability(ctx context.Context) ([]model.SlotAvailability, error) {
	if m.availabilityFunc != nil {
		return m.availabilityFunc(ctx)
	}
	return nil, nil
}

func newRouter(svc *mockAppointmentService, sub Subscriber) *httprouter.Router {
	router := httprouter.New()
	NewAppointmentHandler(svc, sub, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		bookErr    error
		wantStatus int
		wantInBody string
	}{
		{
			name:       "booked",
			body:       `{"name":"Asha","email":"asha@example.com","date":"2025-06-03","time":"19:00"}`,
			wantStatus: http.StatusCreated,
			wantInBody: `"slot_id":"2025-06-03T19:00"`,
		},
		{
			name:       "malformed body",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantInBody: apperrors.CodeInvalidInput,
		},
		{
			name:       "slot taken",
			body:       `{"name":"Asha","email":"asha@example.com","date":"2025-06-03","time":"19:00"}`,
			bookErr:    apperrors.Conflict("This slot may have just been booked. Please try another slot."),
			wantStatus: http.StatusConflict,
			wantInBody: "just been booked",
		},
		{
			name:       "not connected",
			body:       `{}`,
			bookErr:    apperrors.New(apperrors.CodeUnavailable, "Cannot connect to booking system. Please refresh.", http.StatusServiceUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantInBody: "Cannot connect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAppointmentService{}
			if tt.bookErr != nil {
				svc.bookFunc = func(context.Context, *model.BookingRequest) (*model.Reservation, error) {
					return nil, tt.bookErr
				}
			}

			req := httptest.NewRequest(http.MethodPost, AppointmentsPath, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newRouter(svc, nil).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantInBody) {
				t.Errorf("body %s does not contain %q", rec.Body.String(), tt.wantInBody)
			}
		})
	}
}

func TestOccupied_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&mockAppointmentService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, OccupiedPath, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"data":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestOccupied_Unavailable(t *testing.T) {
	svc := &mockAppointmentService{occupiedFunc: func(context.Context) ([]string, error) {
		return nil, apperrors.New(apperrors.CodeUnavailable, "Could not load available slots. Please refresh.", http.StatusServiceUnavailable)
	}}
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, OccupiedPath, nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSlots(t *testing.T) {
	svc := &mockAppointmentService{availabilityFunc: func(context.Context) ([]model.SlotAvailability, error) {
		return []model.SlotAvailability{{
			Date:        "2025-06-01",
			DisplayDate: "1 June 2025",
			Slots:       []model.SlotStatus{{SlotID: "2025-06-01T18:00", Time: "18:00", Booked: true}},
		}}, nil
	}}
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, SlotsPath, nil))

	var body struct {
		Data []model.SlotAvailability `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || !body.Data[0].Slots[0].Booked || body.Data[0].DisplayDate != "1 June 2025" {
		t.Errorf("unexpected payload: %+v", body.Data)
	}
}

func TestStream_PushesSnapshots(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, ist)
	calendar := slots.NewCalendar(ist, 15, []string{"18:00", "19:00"}).WithClock(func() time.Time { return now })

	repo := repository.NewMemoryReservationRepository()
	reserveSlot := func(date, slotTime string) {
		slot := slots.Slot{Date: date, Time: slotTime}
		start, err := slot.Start(ist)
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Reserve(context.Background(), &model.Reservation{
			SlotID: slot.ID(), Date: date, Time: slotTime, EffectiveMoment: start,
		}); err != nil {
			t.Fatal(err)
		}
	}
	reserveSlot("2025-06-01", "18:00")

	occupied := feed.NewOccupiedFeed(repo, calendar, time.Hour, nil, logger.Discard())
	if err := occupied.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer occupied.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for !occupied.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("feed never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	server := httptest.NewServer(newRouter(&mockAppointmentService{}, occupied))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+OccupiedStreamPath, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	nextData := func() string {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	if got := nextData(); got != `["2025-06-01T18:00"]` {
		t.Errorf("first snapshot = %s", got)
	}

	reserveSlot("2025-06-02", "19:00")
	if got := nextData(); got != `["2025-06-01T18:00","2025-06-02T19:00"]` {
		t.Errorf("second snapshot = %s", got)
	}
}
