package admin

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sitepulse/internal/admin/mocks"
	"sitepulse/internal/session"
	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/audit"
	adminmw "sitepulse/pkg/platform/middleware/admin"
	"sitepulse/pkg/testutil"
)

const token = "operator-token"

type AdminHandlerSuite struct {
	suite.Suite
	sessions *mocks.MockSessions
	trail    *mocks.MockAuditTrail
	router   chi.Router
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.sessions = mocks.NewMockSessions(ctrl)
	s.trail = mocks.NewMockAuditTrail(ctrl)
	s.router = chi.NewRouter()
	New(s.sessions, s.trail, token, testutil.DiscardLogger()).Register(s.router)
}

func (s *AdminHandlerSuite) request(method, path string) *http.Request {
	req := testutil.JSONRequest(s.T(), method, path, nil)
	req.Header.Set(adminmw.TokenHeader, token)
	return req
}

func (s *AdminHandlerSuite) TestRequiresToken() {
	rr := testutil.Serve(s.router, testutil.JSONRequest(s.T(), http.MethodGet, "/admin/sessions", nil))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *AdminHandlerSuite) TestListSessions() {
	s.sessions.EXPECT().Snapshot().Return([]session.Summary{{ID: "sess-1", VisitorID: "visitor-1", Path: "/"}})

	rr := testutil.Serve(s.router, s.request(http.MethodGet, "/admin/sessions"))

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.Decode[SessionsListResponse](s.T(), rr)
	s.Equal(1, resp.Total)
	s.Equal("sess-1", resp.Sessions[0].ID)
}

func (s *AdminHandlerSuite) TestCloseSession() {
	s.Run("closed", func() {
		s.sessions.EXPECT().Close(gomock.Any(), "sess-1").Return(nil)
		rr := testutil.Serve(s.router, s.request(http.MethodDelete, "/admin/sessions/sess-1"))
		s.Equal(http.StatusNoContent, rr.Code)
	})
	s.Run("unknown", func() {
		s.sessions.EXPECT().Close(gomock.Any(), "nope").Return(dErrors.New(dErrors.CodeNotFound, "session not found"))
		rr := testutil.Serve(s.router, s.request(http.MethodDelete, "/admin/sessions/nope"))
		testutil.AssertError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *AdminHandlerSuite) TestAuditTrail() {
	s.Run("lists events", func() {
		at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		s.trail.EXPECT().List(gomock.Any(), "visitor-1").Return([]audit.Event{{
			Category:  audit.CategoryCompliance,
			Action:    audit.ActionConsentDecided,
			VisitorID: "visitor-1",
			Decision:  "analytics=true,marketing=false",
			Region:    "eea",
			Timestamp: at,
		}}, nil)

		rr := testutil.Serve(s.router, s.request(http.MethodGet, "/admin/visitors/visitor-1/audit"))

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.Decode[AuditTrailResponse](s.T(), rr)
		s.Require().Len(resp.Events, 1)
		s.Equal("consent_decided", resp.Events[0].Action)
		s.Equal("compliance", resp.Events[0].Category)
		s.True(at.Equal(resp.Events[0].Timestamp))
	})

	s.Run("store failure", func() {
		s.trail.EXPECT().List(gomock.Any(), "visitor-2").Return(nil, errors.New("disk full"))
		rr := testutil.Serve(s.router, s.request(http.MethodGet, "/admin/visitors/visitor-2/audit"))
		testutil.AssertError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})
}
