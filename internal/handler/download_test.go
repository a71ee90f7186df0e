package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DukeRupert/packs/internal/auth"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFulfillmentService struct {
	ProcessFunc func(ctx context.Context, user *domain.User, req domain.FulfillmentRequest) (*domain.FulfillmentResult, error)
}

func (m *mockFulfillmentService) Process(ctx context.Context, user *domain.User, req domain.FulfillmentRequest) (*domain.FulfillmentResult, error) {
	return m.ProcessFunc(ctx, user, req)
}

func postDownload(t *testing.T, h *DownloadHandler, user *domain.User, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/downloads/pack", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != nil {
		req = req.WithContext(auth.SetUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	h.Download(rec, req)
	return rec
}

func TestDownload_Success(t *testing.T) {
	member := &domain.User{ID: 7}
	var got domain.FulfillmentRequest
	var gotUser *domain.User

	h := NewDownloadHandler(&mockFulfillmentService{
		ProcessFunc: func(_ context.Context, user *domain.User, req domain.FulfillmentRequest) (*domain.FulfillmentResult, error) {
			got, gotUser = req, user
			return &domain.FulfillmentResult{
				Files:   []domain.ManifestEntry{{Index: 0, Name: "guide.pdf"}},
				File:    "https://files.test/guide.pdf",
				Granted: true,
			}, nil
		},
	}, newTestLogger())

	rec := postDownload(t, h, member, url.Values{"item": {"-42"}, "security": {"tok"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.FulfillmentRequest{ProductID: 42, Token: "tok"}, got)
	assert.Same(t, member, gotUser)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "https://files.test/guide.pdf", body["file"])
	assert.Len(t, body["files"], 1)
	assert.NotContains(t, body, "Granted")
}

func TestDownload_EmptyManifest(t *testing.T) {
	h := NewDownloadHandler(&mockFulfillmentService{
		ProcessFunc: func(context.Context, *domain.User, domain.FulfillmentRequest) (*domain.FulfillmentResult, error) {
			return &domain.FulfillmentResult{}, nil
		},
	}, newTestLogger())

	rec := postDownload(t, h, &domain.User{ID: 7}, url.Values{"item": {"1"}, "security": {"tok"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[],"file":""}`, rec.Body.String())
}

func TestDownload_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"bad nonce", domain.Unauthorized("fulfillment.process", "invalid security token"), http.StatusForbidden, "-1"},
		{"missing item", domain.Invalid("fulfillment.process", "product is required"), http.StatusBadRequest, "-1"},
		{"ineligible product", domain.Forbidden("fulfillment.grant", "bundle"), http.StatusForbidden, "-1"},
		{"no membership", domain.NoMembership("fulfillment.grant"), http.StatusPaymentRequired, domain.MsgNoMembership},
		{"invalid membership", domain.InvalidMembership("fulfillment.grant"), http.StatusPaymentRequired, domain.MsgInvalidMembership},
		{"limit reached", domain.QuotaExceeded("fulfillment.grant", 3, 3), http.StatusForbidden, domain.MsgLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDownloadHandler(&mockFulfillmentService{
				ProcessFunc: func(context.Context, *domain.User, domain.FulfillmentRequest) (*domain.FulfillmentResult, error) {
					return nil, tt.err
				},
			}, newTestLogger())

			rec := postDownload(t, h, &domain.User{ID: 7}, url.Values{"item": {"1"}, "security": {"tok"}})

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestDownload_InternalError(t *testing.T) {
	h := NewDownloadHandler(&mockFulfillmentService{
		ProcessFunc: func(context.Context, *domain.User, domain.FulfillmentRequest) (*domain.FulfillmentResult, error) {
			return nil, domain.Internal(errors.New("redis: connection refused"), "quota.reserve_download", "failed to reserve download")
		},
	}, newTestLogger())

	rec := postDownload(t, h, &domain.User{ID: 7}, url.Values{"item": {"1"}, "security": {"tok"}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}
