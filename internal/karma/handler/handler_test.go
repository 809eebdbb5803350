package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kudos/internal/karma"
	"kudos/internal/karma/mocks"
	"kudos/internal/rank"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
)

// =============================================================================
// Karma Handler Test Suite
// =============================================================================

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	service   *mocks.MockService
	appender  *mocks.MockAppender
	publisher *mocks.MockPublisher
	router    chi.Router
	userID    id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.appender = mocks.NewMockAppender(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	h := New(s.service, s.appender, s.publisher, slog.New(slog.DiscardHandler))
	s.router = chi.NewRouter()
	h.Register(s.router)

	s.userID = id.NewUserID()
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Observe Tests
// =============================================================================

func (s *HandlerSuite) TestObserve() {
	s.Run("success returns 204", func() {
		s.service.EXPECT().Observe(gomock.Any(), s.userID).Return(nil)

		rec := s.do(http.MethodPost, "/karma/"+s.userID.String()+"/observe", nil)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("snapshot source down returns 503", func() {
		s.service.EXPECT().Observe(gomock.Any(), s.userID).
			Return(dErrors.New(dErrors.CodeUnavailable, "fetch activity snapshot"))

		rec := s.do(http.MethodPost, "/karma/"+s.userID.String()+"/observe", nil)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})

	s.Run("malformed user id returns 400", func() {
		rec := s.do(http.MethodPost, "/karma/not-a-uuid/observe", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestStopObserving() {
	s.service.EXPECT().StopObserving(s.userID)

	rec := s.do(http.MethodDelete, "/karma/"+s.userID.String()+"/observe", nil)
	s.Equal(http.StatusNoContent, rec.Code)
}

// =============================================================================
// Read Tests
// =============================================================================

func (s *HandlerSuite) TestCurrentState() {
	s.Run("returns the live aggregate", func() {
		s.service.EXPECT().CurrentState(s.userID).Return(&karma.UserState{
			UserID: s.userID,
			Total:  42,
			Rank:   "Private",
		}, nil)

		rec := s.do(http.MethodGet, "/karma/"+s.userID.String(), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Total int    `json:"total"`
			Rank  string `json:"rank"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(42, resp.Total)
		s.Equal("Private", resp.Rank)
	})

	s.Run("unobserved user returns 404", func() {
		s.service.EXPECT().CurrentState(s.userID).Return(nil, karma.ErrNotObserved)

		rec := s.do(http.MethodGet, "/karma/"+s.userID.String(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestStanding() {
	s.service.EXPECT().Standing(s.userID).Return(rank.Standing{
		Label:        "Private",
		Progress:     12.5,
		PointsToNext: 35,
		NextLabel:    "Corporal",
	}, nil)

	rec := s.do(http.MethodGet, "/karma/"+s.userID.String()+"/standing", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var standing rank.Standing
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&standing))
	s.Equal("Private", standing.Label)
	s.Equal(35, standing.PointsToNext)
}

// =============================================================================
// Create Activity Tests
// =============================================================================

func (s *HandlerSuite) TestCreateActivity() {
	path := "/karma/" + s.userID.String() + "/activities"

	s.Run("appends, publishes and returns the activity", func() {
		var appended karma.Activity
		s.appender.EXPECT().Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, act karma.Activity) error {
				appended = act
				return nil
			})
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		rec := s.do(http.MethodPost, path, CreateActivityRequest{
			Type:   "post_created",
			Points: 15,
		})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp karma.Activity
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(s.userID, resp.UserID)
		s.Equal("post_created", resp.Type)
		s.Equal(15, resp.Points)
		s.False(resp.ID.IsNil())
		s.Equal(appended.ID, resp.ID)
	})

	s.Run("publish failure still succeeds", func() {
		s.appender.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeUnavailable, "broker down"))

		rec := s.do(http.MethodPost, path, CreateActivityRequest{
			Type:   "comment_upvoted",
			Points: 2,
		})
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("append failure returns 500 without leaking detail", func() {
		s.appender.EXPECT().Append(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeInternal, "insert karma activity"))

		rec := s.do(http.MethodPost, path, CreateActivityRequest{
			Type:   "post_created",
			Points: 1,
		})
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "insert karma activity")
	})

	s.Run("missing type returns 400", func() {
		rec := s.do(http.MethodPost, path, CreateActivityRequest{Points: 5})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.do(http.MethodPost, path, map[string]any{
			"activity_type": "post_created",
			"points":        5,
			"bogus":         true,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
