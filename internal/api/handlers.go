package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/coordinator"
	"github.com/annonymususer90/my99exch/internal/reporting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxBodyBytes = 1 << 16
	dateLayout   = "2006-01-02"
	// MsgServerUp is the body of GET /.
	MsgServerUp = "server up and running"
)

// flexString accepts a JSON string or a bare JSON number and keeps the
// literal text, so "50" and 50 both reach amount validation unchanged.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

type loginRequest struct {
	URL             string `json:"url"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	TransactionCode string `json:"transactionCode"`
}

type operationRequest struct {
	URL      string     `json:"url"`
	Username string     `json:"username"`
	Amount   flexString `json:"amount"`
}

type exportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type messageResponse struct {
	Message string            `json:"message"`
	Kind    schemas.ErrorKind `json:"kind,omitempty"`
}

type registerResponse struct {
	Message         string            `json:"message"`
	Username        string            `json:"username"`
	DefaultPassword string            `json:"defaultPassword,omitempty"`
	Kind            schemas.ErrorKind `json:"kind,omitempty"`
}

type errorResponse struct {
	Error string            `json:"error"`
	Kind  schemas.ErrorKind `json:"kind,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, MsgServerUp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"sites":  s.coord.Sites(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	out := s.coord.Login(r.Context(), req.URL, schemas.Credentials{
		Username:        req.Username,
		Secret:          req.Password,
		TransactionCode: req.TransactionCode,
	})
	s.respondOutcome(w, out)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := s.operation(w, r, schemas.OpRegister)
	if !ok {
		return
	}
	res := s.coord.Register(r.Context(), req)
	status := StatusFor(res.Outcome)
	if status >= http.StatusInternalServerError || res.Kind == schemas.KindCredentialsUnavailable {
		s.respondJSON(w, status, errorResponse{Error: res.Message, Kind: res.Kind})
		return
	}
	s.respondJSON(w, status, registerResponse{
		Message:         res.Message,
		Username:        res.Account,
		DefaultPassword: res.Secret,
		Kind:            res.Kind,
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, schemas.OpResetPassword, s.coord.ResetPassword)
}

func (s *Server) handleLockUser(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, schemas.OpLockUser, s.coord.LockUser)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, schemas.OpDeposit, s.coord.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, schemas.OpWithdraw, s.coord.Withdraw)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request, op schemas.Operation,
	run func(context.Context, schemas.Request) coordinator.Result) {
	req, ok := s.operation(w, r, op)
	if !ok {
		return
	}
	s.respondOutcome(w, run(r.Context(), req).Outcome)
}

// operation decodes the shared body of the session-bound operations.
func (s *Server) operation(w http.ResponseWriter, r *http.Request, op schemas.Operation) (schemas.Request, bool) {
	var body operationRequest
	if !s.decode(w, r, &body) {
		return schemas.Request{}, false
	}
	return schemas.Request{
		Site:      body.URL,
		Operation: op,
		Account:   body.Username,
		Amount:    string(body.Amount),
		Origin:    r.Host,
	}, true
}

func (s *Server) handleGenerateExcel(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decode(w, r, &req) {
		return
	}
	q, err := ExportQuery(req.StartDate, req.EndDate, r.Host)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: schemas.KindInvalidRequest})
		return
	}

	entries, err := s.audit.Entries(r.Context(), q)
	if err != nil {
		s.logger.Error("Failed to read audit entries.", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error generating Excel file", Kind: schemas.KindInternal})
		return
	}

	// Render fully before writing headers so a failure can still become a 500.
	var buf bytes.Buffer
	if err := reporting.WriteWorkbook(&buf, entries); err != nil {
		s.logger.Error("Failed to render workbook.", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error generating Excel file", Kind: schemas.KindInternal})
		return
	}
	w.Header().Set("Content-Type", reporting.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=log-%s-%s.xlsx", req.StartDate, req.EndDate))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("Failed to write workbook response.", zap.Error(err))
	}
}

// ExportQuery turns an inclusive YYYY-MM-DD range into an audit query over
// whole UTC days.
func ExportQuery(start, end, origin string) (schemas.AuditQuery, error) {
	from, err := time.Parse(dateLayout, strings.TrimSpace(start))
	if err != nil {
		return schemas.AuditQuery{}, fmt.Errorf("invalid start date %q", start)
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(end))
	if err != nil {
		return schemas.AuditQuery{}, fmt.Errorf("invalid end date %q", end)
	}
	if to.Before(from) {
		return schemas.AuditQuery{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return schemas.AuditQuery{From: from, To: to.AddDate(0, 0, 1), Origin: origin}, nil
}

// StatusFor maps an outcome onto an HTTP status code.
func StatusFor(out schemas.Outcome) int {
	switch {
	case out.Succeeded:
		return http.StatusOK
	case out.Kind == schemas.KindCredentialsUnavailable:
		return http.StatusUnauthorized
	case out.Kind.Business():
		return http.StatusBadRequest
	case out.Kind == schemas.KindStepTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondOutcome(w http.ResponseWriter, out schemas.Outcome) {
	status := StatusFor(out)
	if status >= http.StatusInternalServerError || status == http.StatusUnauthorized {
		s.respondJSON(w, status, errorResponse{Error: out.Message, Kind: out.Kind})
		return
	}
	s.respondJSON(w, status, messageResponse{Message: out.Message, Kind: out.Kind})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("malformed request body: %v", err),
			Kind:  schemas.KindInvalidRequest,
		})
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response.", zap.Error(err))
	}
}
