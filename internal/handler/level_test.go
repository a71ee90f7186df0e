package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DukeRupert/packs/internal/auth"
	"github.com/DukeRupert/packs/internal/csrf"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/templ/components/pack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAdmin = &domain.User{ID: 1, Email: "admin@example.com"}

func newTestLevelHandler(quota *mockQuota) *LevelHandler {
	levels := &mockLevels{GetLevelFunc: func(_ context.Context, id int64) (*domain.SubscriptionLevel, error) {
		if id != 3 {
			return nil, domain.NotFound("membership.get_level", "subscription level", id)
		}
		return &domain.SubscriptionLevel{ID: 3, Name: "Gold"}, nil
	}}
	return NewLevelHandler(levels, quota, staticNonces{}, "", false, newTestLogger())
}

func serveLevel(h *LevelHandler, req *http.Request, user *domain.User) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })
	if user != nil {
		req = req.WithContext(auth.SetUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLevelShow_ExistingLevel(t *testing.T) {
	h := newTestLevelHandler(&mockQuota{GetAllowanceFunc: func(_ context.Context, levelID int64) (int64, error) {
		assert.Equal(t, int64(3), levelID)
		return 10, nil
	}})

	rec := serveLevel(h, httptest.NewRequest(http.MethodGet, "/admin/levels/3/downloads", nil), testAdmin)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Downloads Allowed")
	assert.Contains(t, body, "The number of downloads allowed each subscription period.")
	assert.Contains(t, body, `name="rcp-edd-downloads-allowed" value="10"`)
	assert.Contains(t, body, `name="rcp_edd_downloads_allowed_nonce" value="nonce-`+domain.NonceActionSaveAllowance+`"`)

	var issued bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrf.CookieName {
			issued = true
			assert.Contains(t, body, c.Value)
		}
	}
	assert.True(t, issued, "csrf cookie should be issued")
}

func TestLevelShow_NewLevel(t *testing.T) {
	h := newTestLevelHandler(&mockQuota{GetAllowanceFunc: func(context.Context, int64) (int64, error) {
		t.Fatal("allowance should not be read for a new level")
		return 0, nil
	}})

	rec := serveLevel(h, httptest.NewRequest(http.MethodGet, "/admin/levels/0/downloads", nil), testAdmin)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="rcp-edd-downloads-allowed" value="0"`)
}

func TestLevelShow_UnknownLevel(t *testing.T) {
	h := newTestLevelHandler(&mockQuota{})

	rec := serveLevel(h, httptest.NewRequest(http.MethodGet, "/admin/levels/99/downloads", nil), testAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveLevel(h, httptest.NewRequest(http.MethodGet, "/admin/levels/gold/downloads", nil), testAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func postLevel(form url.Values, csrfCookie string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/levels/3/downloads", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if csrfCookie != "" {
		req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: csrfCookie})
	}
	return req
}

func TestLevelSave(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		wantValue int64
	}{
		{"positive", "25", 25},
		{"negative", "-4", 4},
		{"zero", "0", 0},
		{"not a number", "lots", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLevel, gotValue int64
			var gotToken string
			var gotActor *domain.User
			h := newTestLevelHandler(&mockQuota{SetAllowanceFunc: func(_ context.Context, levelID, value int64, token string, actor *domain.User) error {
				gotLevel, gotValue, gotToken, gotActor = levelID, value, token, actor
				return nil
			}})

			form := url.Values{
				pack.FieldAllowance:      {tt.field},
				pack.FieldAllowanceNonce: {"tok"},
				csrf.FormFieldName:       {"csrf-value"},
			}
			rec := serveLevel(h, postLevel(form, "csrf-value"), testAdmin)

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/admin/levels/3/downloads", rec.Header().Get("Location"))
			assert.Equal(t, int64(3), gotLevel)
			assert.Equal(t, tt.wantValue, gotValue)
			assert.Equal(t, "tok", gotToken)
			assert.Same(t, testAdmin, gotActor)
		})
	}
}

func TestLevelSave_CSRFMismatch(t *testing.T) {
	h := newTestLevelHandler(&mockQuota{SetAllowanceFunc: func(context.Context, int64, int64, string, *domain.User) error {
		t.Fatal("allowance should not be saved")
		return nil
	}})

	form := url.Values{pack.FieldAllowance: {"5"}, csrf.FormFieldName: {"forged"}}
	rec := serveLevel(h, postLevel(form, "csrf-value"), testAdmin)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLevelSave_ServiceError(t *testing.T) {
	h := newTestLevelHandler(&mockQuota{SetAllowanceFunc: func(context.Context, int64, int64, string, *domain.User) error {
		return domain.Invalid("quota.set_allowance", "subscription level is required")
	}})

	form := url.Values{pack.FieldAllowance: {"5"}, csrf.FormFieldName: {"c"}}
	rec := serveLevel(h, postLevel(form, "c"), testAdmin)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLevel_RequiresUser(t *testing.T) {
	h := newTestLevelHandler(&mockQuota{})

	rec := serveLevel(h, httptest.NewRequest(http.MethodGet, "/admin/levels/3/downloads", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
