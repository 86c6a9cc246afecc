// File: internal/coordinator/service.go
// Description: The coordinator takes a business request through the admission
// gate, runs the operation's script on the site's session and records the
// outcome in metrics and the audit log.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation"
	"github.com/annonymususer90/my99exch/internal/observability"
	"github.com/annonymususer90/my99exch/internal/operations"
	"github.com/annonymususer90/my99exch/internal/session"
)

// MsgAlreadyLoggedIn answers a login for a site that already holds an
// authenticated session with the same credentials.
const MsgAlreadyLoggedIn = "Admin is already logged in"

const (
	auditTimeout = 10 * time.Second
	closeTimeout = 10 * time.Second
)

// HandleFactory opens the session page of a site in a fresh browser context.
type HandleFactory interface {
	Open(ctx context.Context, site string) (automation.Handle, error)
}

// Settings are the coordinator's tunables.
type Settings struct {
	// DefaultSecret is applied to registered accounts and password resets.
	DefaultSecret string
	// AccountPrefix prefixes generated account names.
	AccountPrefix string
	// AdmissionTimeout bounds the wait for a busy site. Zero waits as long as
	// the caller does.
	AdmissionTimeout time.Duration
}

// Dependencies are the collaborators of a Service. Metrics may be nil.
type Dependencies struct {
	Registry *session.Registry
	Scripts  *operations.Scripts
	Executor *automation.Executor
	Handles  HandleFactory
	Audit    schemas.AuditLog
	Metrics  *observability.Metrics
	Settings Settings
	Logger   *zap.Logger
}

// Result is the outcome of a business request plus the account data some
// operations hand back to the caller.
type Result struct {
	schemas.Outcome
	Account string
	// Secret is only set when the operation succeeded in applying it.
	Secret string
}

// Service coordinates every operation against the registered sites.
type Service struct {
	registry *session.Registry
	gate     *session.Gate
	scripts  *operations.Scripts
	executor *automation.Executor
	handles  HandleFactory
	audit    schemas.AuditLog
	metrics  *observability.Metrics
	settings Settings
	logger   *zap.Logger
}

// New wires a coordinator. The service is its own gate's authenticator.
func New(deps Dependencies) (*Service, error) {
	if deps.Registry == nil ||
		deps.Scripts == nil ||
		deps.Executor == nil ||
		deps.Handles == nil ||
		deps.Audit == nil ||
		deps.Logger == nil {
		return nil, fmt.Errorf("cannot initialize coordinator with nil dependencies")
	}
	if deps.Settings.DefaultSecret == "" {
		return nil, fmt.Errorf("cannot initialize coordinator without a default secret")
	}

	s := &Service{
		registry: deps.Registry,
		scripts:  deps.Scripts,
		executor: deps.Executor,
		handles:  deps.Handles,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		settings: deps.Settings,
		logger:   deps.Logger.Named("coordinator"),
	}
	s.gate = session.NewGate(deps.Registry, s, deps.Logger)
	return s, nil
}

// Login authenticates against site with creds and keeps the session. A site
// already authenticated with the same credentials is left untouched; new
// credentials replace the stored record once their login succeeds.
func (s *Service) Login(ctx context.Context, rawSite string, creds schemas.Credentials) schemas.Outcome {
	start := time.Now()
	log := s.logger.With(zap.String("site", rawSite), zap.String("operation", string(schemas.OpLogin)), zap.String("username", creds.Username))
	log.Info("Request received.")

	out := s.login(ctx, rawSite, creds)

	elapsed := time.Since(start)
	s.metrics.ObserveOperation(schemas.OpLogin, out, elapsed)
	s.logResult(log, out, elapsed)
	return out
}

func (s *Service) login(ctx context.Context, rawSite string, creds schemas.Credentials) schemas.Outcome {
	site, err := session.NormalizeSite(rawSite)
	if err != nil {
		return schemas.FailureFromError(fmt.Errorf("%w: %v", schemas.ErrInvalidRequest, err))
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Secret == "" {
		return schemas.FailureFromError(fmt.Errorf("%w: username and password are required", schemas.ErrInvalidRequest))
	}

	holdCtx, cancel := s.admissionContext(ctx)
	release, err := s.gate.Hold(holdCtx, site)
	cancel()
	if err != nil {
		return schemas.FailureFromError(err)
	}
	defer release()

	if rec, ok := s.registry.Get(site); ok && rec.Credentials.Equal(creds) && s.registry.IsAuthenticated(ctx, site) {
		return schemas.Success(MsgAlreadyLoggedIn)
	}

	out, err := s.authenticate(ctx, site, creds)
	if err != nil {
		return schemas.FailureFromError(err)
	}
	return out
}

// Reauthenticate logs in again with the stored credentials of site. The gate
// calls it while it holds the site.
func (s *Service) Reauthenticate(ctx context.Context, site string) (schemas.Outcome, error) {
	rec, ok := s.registry.Get(site)
	if !ok {
		return schemas.Outcome{}, fmt.Errorf("%w for %s", schemas.ErrCredentialsUnavailable, site)
	}
	out, err := s.authenticate(ctx, site, rec.Credentials)
	s.metrics.ObserveRelogin(err == nil && out.Succeeded)
	return out, err
}

// authenticate runs the login script on a new session page and installs it
// on success. A failed attempt leaves the current record as it was.
func (s *Service) authenticate(ctx context.Context, site string, creds schemas.Credentials) (schemas.Outcome, error) {
	runCtx := automation.Detach(ctx)

	script, err := s.scripts.For(schemas.OpLogin, site)
	if err != nil {
		return schemas.Outcome{}, err
	}
	h, err := s.open(runCtx, site)
	if err != nil {
		return schemas.Outcome{}, err
	}

	env := automation.NewEnv(s.params(site, creds, "", ""))
	res, err := s.executor.Run(runCtx, h, script, env)
	if err != nil || !res.Outcome.Succeeded {
		s.closeHandle(runCtx, site, h)
		return res.Outcome, err
	}

	s.registry.Put(runCtx, site, session.Record{Credentials: creds, Handle: h})
	s.metrics.SetActiveSessions(len(s.registry.Sites()))
	return res.Outcome, nil
}

// open creates the session page of site within the navigation timeout.
func (s *Service) open(ctx context.Context, site string) (automation.Handle, error) {
	limit := s.scripts.Timeouts().Navigation
	openCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	h, err := s.handles.Open(openCtx, site)
	if err == nil {
		return h, nil
	}
	if openCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: opening session page for %s exceeded %s: %v", schemas.ErrStepTimeout, site, limit, err)
	}
	return nil, fmt.Errorf("failed to open session page for %s: %w", site, err)
}

// Register creates an account on site. An empty account name is generated.
func (s *Service) Register(ctx context.Context, req schemas.Request) Result {
	req.Operation = schemas.OpRegister
	return s.Execute(ctx, req)
}

// ResetPassword sets the default secret on an existing account.
func (s *Service) ResetPassword(ctx context.Context, req schemas.Request) Result {
	req.Operation = schemas.OpResetPassword
	return s.Execute(ctx, req)
}

// LockUser locks an account. Locking a locked account succeeds.
func (s *Service) LockUser(ctx context.Context, req schemas.Request) Result {
	req.Operation = schemas.OpLockUser
	return s.Execute(ctx, req)
}

// Deposit credits req.Amount to an account.
func (s *Service) Deposit(ctx context.Context, req schemas.Request) Result {
	req.Operation = schemas.OpDeposit
	return s.Execute(ctx, req)
}

// Withdraw debits req.Amount from an account.
func (s *Service) Withdraw(ctx context.Context, req schemas.Request) Result {
	req.Operation = schemas.OpWithdraw
	return s.Execute(ctx, req)
}

// Execute runs a session-bound business request. Deposits and withdrawals
// that pass request validation are audited whatever their outcome.
func (s *Service) Execute(ctx context.Context, req schemas.Request) Result {
	start := time.Now()
	log := s.logger.With(observability.RequestFields(req)...)
	log.Info("Request received.")

	var res Result
	validated := s.validate(&req)
	if validated != nil {
		res = Result{Outcome: schemas.FailureFromError(validated)}
	} else {
		res = s.execute(ctx, req)
	}

	elapsed := time.Since(start)
	s.metrics.ObserveOperation(req.Operation, res.Outcome, elapsed)
	s.logResult(log, res.Outcome, elapsed)

	if req.Operation.Transactional() && validated == nil {
		s.record(ctx, req, res.Outcome, elapsed)
	}
	return res
}

// validate checks and normalizes the request fields in place. A request it
// rejects never reaches a site.
func (s *Service) validate(req *schemas.Request) error {
	op := req.Operation
	if !op.RequiresSession() {
		return fmt.Errorf("%w: operation %q is not session-bound", schemas.ErrInvalidRequest, op)
	}

	if op.Transactional() {
		amount, err := operations.ValidateAmount(req.Amount)
		if err != nil {
			return err
		}
		req.Amount = amount
	}

	site, err := session.NormalizeSite(req.Site)
	if err != nil {
		return fmt.Errorf("%w: %v", schemas.ErrInvalidRequest, err)
	}
	req.Site = site

	var account string
	if op == schemas.OpRegister {
		account, err = operations.DeriveAccount(req.Account, s.settings.AccountPrefix)
	} else {
		account, err = operations.ValidateAccount(req.Account)
	}
	if err != nil {
		return err
	}
	req.Account = account
	return nil
}

func (s *Service) execute(ctx context.Context, req schemas.Request) Result {
	op, site, account := req.Operation, req.Site, req.Account

	script, err := s.scripts.For(op, site)
	if err != nil {
		return Result{Outcome: schemas.FailureFromError(err)}
	}

	admitCtx, cancel := s.admissionContext(ctx)
	release, err := s.gate.Admit(admitCtx, op, site)
	cancel()
	if err != nil {
		return Result{Outcome: schemas.FailureFromError(err)}
	}
	defer release()

	rec, ok := s.registry.Get(site)
	if !ok {
		return Result{Outcome: schemas.FailureFromError(fmt.Errorf("%w for %s", schemas.ErrCredentialsUnavailable, site))}
	}

	env := automation.NewEnv(s.params(site, rec.Credentials, account, req.Amount))
	run, err := s.executor.Run(automation.Detach(ctx), rec.Handle, script, env)
	if err != nil {
		return Result{Outcome: schemas.FailureFromError(err)}
	}

	res := Result{Outcome: run.Outcome}
	switch op {
	case schemas.OpRegister, schemas.OpResetPassword:
		res.Account = account
		if run.Outcome.Succeeded {
			res.Secret = s.settings.DefaultSecret
		}
	}
	return res
}

// Bootstrap logs in to every site concurrently and reports each outcome.
// Failures are logged and do not stop the other logins.
func (s *Service) Bootstrap(ctx context.Context, sites []SiteLogin) map[string]schemas.Outcome {
	return bootstrap(ctx, sites, s.Login, s.logger)
}

// Sites lists the sites with a stored session.
func (s *Service) Sites() []string {
	return s.registry.Sites()
}

// Close releases every session.
func (s *Service) Close(ctx context.Context) {
	s.registry.Close(ctx)
	s.metrics.SetActiveSessions(0)
}

func (s *Service) admissionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.AdmissionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.settings.AdmissionTimeout)
}

func (s *Service) params(site string, creds schemas.Credentials, account, amount string) map[automation.Param]string {
	return map[automation.Param]string{
		automation.ParamSite:      site,
		automation.ParamUsername:  creds.Username,
		automation.ParamSecret:    creds.Secret,
		automation.ParamCode:      creds.Code(),
		automation.ParamAccount:   account,
		automation.ParamAmount:    amount,
		automation.ParamNewSecret: s.settings.DefaultSecret,
	}
}

func (s *Service) record(ctx context.Context, req schemas.Request, out schemas.Outcome, elapsed time.Duration) {
	auditCtx, cancel := context.WithTimeout(automation.Detach(ctx), auditTimeout)
	defer cancel()

	entry := schemas.AuditEntry{
		Site:      req.Site,
		Operation: req.Operation,
		Account:   req.Account,
		Amount:    req.Amount,
		Elapsed:   elapsed,
		Message:   out.Message,
		Succeeded: out.Succeeded,
		Origin:    req.Origin,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Record(auditCtx, entry); err != nil {
		s.metrics.ObserveAuditFailure()
		s.logger.Error("Failed to record audit entry.", zap.String("site", req.Site), zap.String("operation", string(req.Operation)), zap.Error(err))
	}
}

func (s *Service) closeHandle(ctx context.Context, site string, h automation.Handle) {
	closeCtx, cancel := context.WithTimeout(automation.Detach(ctx), closeTimeout)
	defer cancel()
	if err := h.Close(closeCtx); err != nil {
		s.logger.Warn("Failed to close session page.", zap.String("site", site), zap.Error(err))
	}
}

func (s *Service) logResult(log *zap.Logger, out schemas.Outcome, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Bool("succeeded", out.Succeeded),
		zap.String("message", out.Message),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case out.Succeeded:
		log.Info("Request completed.", fields...)
	case out.Kind.Business(), out.Kind == schemas.KindCredentialsUnavailable:
		log.Warn("Request rejected.", append(fields, zap.String("kind", string(out.Kind)))...)
	default:
		log.Error("Request failed.", append(fields, zap.String("kind", string(out.Kind)))...)
	}
}
