package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "clinic/pkg/errors"
	"clinic/pkg/logger"
	"clinic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockDiscoveryService struct {
	submitFunc func(ctx context.Context, input *model.DiscoveryInput) (*model.DiscoveryRequest, error)
}

func (m *mockDiscoveryService) Submit(ctx context.Context, input *model.DiscoveryInput) (*model.DiscoveryRequest, error) {
	return m.submitFunc(ctx, input)
}

func (m *mockDiscoveryService) List(context.Context, int, int) ([]*model.DiscoveryRequest, int64, error) {
	return nil, 0, nil
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantInBody string
	}{
		{
			name:       "created",
			body:       `{"name":"Ravi","email":"ravi@example.com","message":"hi","preferred_date":"2025-06-04","upi_reference":"T1"}`,
			wantStatus: http.StatusCreated,
			wantInBody: `"status":"pending_confirmation"`,
		},
		{
			name:       "malformed",
			body:       `[]`,
			wantStatus: http.StatusBadRequest,
			wantInBody: apperrors.CodeInvalidInput,
		},
		{
			name:       "validation",
			body:       `{}`,
			submitErr:  apperrors.Validation("Please fill out all fields.", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantInBody: "Please fill out all fields.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.DiscoveryInput
			svc := &mockDiscoveryService{submitFunc: func(_ context.Context, in *model.DiscoveryInput) (*model.DiscoveryRequest, error) {
				got = in
				if tt.submitErr != nil {
					return nil, tt.submitErr
				}
				return &model.DiscoveryRequest{ID: "id-1", Name: in.Name, UPIReference: in.UPIReference, Status: model.DiscoveryStatusPending}, nil
			}}

			router := httprouter.New()
			NewDiscoveryHandler(svc, logger.Discard()).RegisterRoutes(router)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, DiscoveryCallsPath, strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantInBody) {
				t.Errorf("body %s does not contain %q", rec.Body.String(), tt.wantInBody)
			}
			if tt.name == "created" && (got == nil || got.UPIReference != "T1") {
				t.Errorf("upi_reference not decoded: %+v", got)
			}
		})
	}
}
