package webapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	infraprovider "github.com/ambaglabs/ambag/infra/provider"
	"github.com/ambaglabs/ambag/infra/repository/memory"
	"github.com/ambaglabs/ambag/pkg/app"
	"github.com/ambaglabs/ambag/pkg/config"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"log/slog"
)

type nopNotifier struct{}

func (nopNotifier) Enqueue(action.Notification) error { return nil }

type goalPayload struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	IsPaid bool      `json:"is_paid"`
}

type WebAPITestSuite struct {
	suite.Suite
	app *fiber.App
}

func (s *WebAPITestSuite) SetupTest() {
	cfg := &config.App{
		Monitor:   &config.Monitor{Interval: time.Hour, BatchSize: 5, BatchPause: time.Millisecond, MaxRetries: 3, OpTimeout: 5 * time.Second},
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
	}
	deps := &app.Deps{
		Store:     memory.NewStore(),
		Notifier:  nopNotifier{},
		Generator: infraprovider.NewTemplateGenerator(),
		Logger:    slog.Default(),
	}
	s.app = SetupApp(app.New(deps, cfg))
}

func (s *WebAPITestSuite) request(method, path, body string) *Response {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, 10000)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck

	out := &Response{StatusCode: resp.StatusCode}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out.Body))
	return out
}

// Response carries a decoded response body alongside its status code.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

func (r *Response) data(s *WebAPITestSuite, out any) {
	var envelope common.Response
	s.Require().NoError(json.Unmarshal(r.Body, &envelope))
	raw, err := json.Marshal(envelope.Data)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, out))
}

func (s *WebAPITestSuite) createGoal(body string) goalPayload {
	resp := s.request("POST", "/goal", body)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	var g goalPayload
	resp.data(s, &g)
	return g
}

func managerGoalBody(target float64) string {
	due := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	return fmt.Sprintf(`{"title":"Team trip","target_amount":%.2f,"creator_name":"Alice","creator_role":"manager","target_date":%q,"members":["Alice","Bob"]}`, target, due)
}

func (s *WebAPITestSuite) TestHealthCheck() {
	req := httptest.NewRequest("GET", "/", nil)
	resp, err := s.app.Test(req, 10000)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	s.Assert().Equal(fiber.StatusOK, resp.StatusCode)
}

func (s *WebAPITestSuite) TestCreateGoalManagerIsActive() {
	g := s.createGoal(managerGoalBody(1000))
	s.Assert().Equal("active", g.Status)
	s.Assert().NotEqual(uuid.Nil, g.ID)
}

func (s *WebAPITestSuite) TestCreateGoalMemberIsPending() {
	due := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"title":"Team trip","target_amount":500,"creator_name":"Bob","creator_role":"member","target_date":%q}`, due)
	resp := s.request("POST", "/goal", body)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	var g goalPayload
	resp.data(s, &g)
	s.Assert().Equal("pending_approval", g.Status)
}

func (s *WebAPITestSuite) TestCreateGoalInvalidBody() {
	resp := s.request("POST", "/goal", `{"title":"","target_amount":-5}`)
	s.Assert().Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPITestSuite) TestGetGoalNotFound() {
	resp := s.request("GET", fmt.Sprintf("/goal/%s", uuid.New()), "")
	s.Assert().Equal(fiber.StatusNotFound, resp.StatusCode)
}

func (s *WebAPITestSuite) TestGetGoalBadID() {
	resp := s.request("GET", "/goal/not-a-uuid", "")
	s.Assert().Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPITestSuite) TestContributeAndReadBack() {
	g := s.createGoal(managerGoalBody(1000))

	resp := s.request("POST", fmt.Sprintf("/goal/%s/contribute", g.ID),
		`{"amount":300,"contributor_name":"Bob","payment_method":"gcash"}`)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	resp = s.request("GET", fmt.Sprintf("/goal/%s", g.ID), "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var details struct {
		CurrentAmount float64 `json:"current_amount"`
		Progress      float64 `json:"progress"`
	}
	resp.data(s, &details)
	s.Assert().InDelta(300.0, details.CurrentAmount, 0.001)
	s.Assert().InDelta(30.0, details.Progress, 0.001)

	resp = s.request("GET", fmt.Sprintf("/goal/%s/contributors", g.ID), "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var pool struct {
		ContributorCount int `json:"contributor_count"`
	}
	resp.data(s, &pool)
	s.Assert().Equal(1, pool.ContributorCount)
}

func (s *WebAPITestSuite) TestContributeInvalidAmount() {
	g := s.createGoal(managerGoalBody(1000))
	resp := s.request("POST", fmt.Sprintf("/goal/%s/contribute", g.ID),
		`{"amount":-10,"contributor_name":"Bob","payment_method":"gcash"}`)
	s.Assert().Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPITestSuite) TestFullFundingWithVirtualBalanceCompletes() {
	due := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"title":"Laptop fund","target_amount":600,"creator_name":"Alice","creator_role":"manager","target_date":%q,"auto_payment":{"enabled":true,"method":"virtual_balance"}}`, due)
	g := s.createGoal(body)

	resp := s.request("POST", fmt.Sprintf("/goal/%s/contribute", g.ID),
		`{"amount":600,"contributor_name":"Alice","payment_method":"bank"}`)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	resp = s.request("GET", fmt.Sprintf("/goal/%s", g.ID), "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var details struct {
		Goal goalPayload `json:"goal"`
	}
	resp.data(s, &details)
	s.Assert().Equal("completed", details.Goal.Status)
	s.Assert().True(details.Goal.IsPaid)
}

func (s *WebAPITestSuite) TestApproveFlow() {
	due := time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"title":"Snacks","target_amount":200,"creator_name":"Bob","creator_role":"member","target_date":%q}`, due)
	g := s.createGoal(body)

	resp := s.request("POST", fmt.Sprintf("/goal/pending/%s/approve", g.ID),
		`{"approve":true,"manager":"Alice"}`)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var approved goalPayload
	resp.data(s, &approved)
	s.Assert().Equal("active", approved.Status)

	// A second approval hits a goal that is no longer pending.
	resp = s.request("POST", fmt.Sprintf("/goal/pending/%s/approve", g.ID),
		`{"approve":true,"manager":"Alice"}`)
	s.Assert().Equal(fiber.StatusConflict, resp.StatusCode)
}

func (s *WebAPITestSuite) TestSchedulerStatus() {
	s.createGoal(managerGoalBody(1000))

	resp := s.request("GET", "/scheduler/status", "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var st struct {
		Status     string `json:"status"`
		TotalGoals int    `json:"total_goals"`
	}
	resp.data(s, &st)
	s.Assert().Equal("stopped", st.Status)
	s.Assert().Equal(1, st.TotalGoals)
}

func (s *WebAPITestSuite) TestManualAnalysis() {
	g := s.createGoal(managerGoalBody(1000))

	resp := s.request("POST", fmt.Sprintf("/scheduler/analyze/%s", g.ID), "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var res struct {
		GoalID uuid.UUID `json:"goal_id"`
	}
	resp.data(s, &res)
	s.Assert().Equal(g.ID, res.GoalID)
}

func (s *WebAPITestSuite) TestAutoPaymentQueueEmpty() {
	resp := s.request("GET", "/auto-payment/queue", "")
	s.Assert().Equal(fiber.StatusOK, resp.StatusCode)
}

func TestWebAPITestSuite(t *testing.T) {
	suite.Run(t, new(WebAPITestSuite))
}
