package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/dinehub/internal/actorctx"
	"github.com/geocoder89/dinehub/internal/apperr"
	"github.com/geocoder89/dinehub/internal/credentials"
	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/notifications"
	"github.com/geocoder89/dinehub/internal/observability"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CredentialStore is the slice of credentials.Store the service drives.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*principal.Principal, error)
	FindByID(ctx context.Context, id string) (*principal.Principal, error)
	Create(ctx context.Context, attrs principal.SignupAttrs) (*principal.Principal, error)
	Save(ctx context.Context, p *principal.Principal, opts credentials.SaveOptions) error
	SetResetToken(ctx context.Context, p *principal.Principal, digest string, expiresAt time.Time) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type Metrics interface {
	ObserveAuth(op, result string, d time.Duration)
}

type ServiceConfig struct {
	Store    CredentialStore
	Tokens   *TokenManager
	Hasher   PasswordHasher
	Resets   *ResetTokens
	Notifier notifications.Notifier
	Logger   *slog.Logger
	Metrics  Metrics
	// ResetURLBase prefixes the reset link, e.g. https://api.example.com
	ResetURLBase string
}

// Session is a freshly issued bearer token for a principal.
type Session struct {
	Principal *principal.Principal
	Token     string
	ExpiresAt time.Time
}

// Service orchestrates signup, login and the password flows. It holds no
// per-request state; every error it returns is an *apperr.Error.
type Service struct {
	store     CredentialStore
	tokens    *TokenManager
	hasher    PasswordHasher
	resets    *ResetTokens
	notifier  notifications.Notifier
	log       *slog.Logger
	metrics   Metrics
	resetBase string
	tracer    trace.Tracer

	// compared against when no account matches, so a miss costs one bcrypt
	// comparison like a hit does
	dummyHash string
}

const dummyPassword = "dinehub-timing-equalizer"

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil || cfg.Tokens == nil || cfg.Hasher == nil || cfg.Resets == nil || cfg.Notifier == nil {
		return nil, oops.In("auth").Code("config_invalid").Errorf("auth service requires store, tokens, hasher, resets and notifier")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dummy, err := cfg.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.In("auth").Wrapf(err, "compute dummy hash")
	}

	return &Service{
		store:     cfg.Store,
		tokens:    cfg.Tokens,
		hasher:    cfg.Hasher,
		resets:    cfg.Resets,
		notifier:  cfg.Notifier,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		resetBase: strings.TrimRight(cfg.ResetURLBase, "/"),
		tracer:    otel.Tracer(observability.TracerName + "/auth"),
		dummyHash: dummy,
	}, nil
}

func (s *Service) Signup(ctx context.Context, attrs principal.SignupAttrs) (_ *Session, err error) {
	ctx, done := s.begin(ctx, "signup", attribute.String("principal.kind", string(attrs.Kind)))
	defer func() { done(err) }()

	p, err := s.store.Create(ctx, attrs)
	if err != nil {
		return nil, s.translate(ctx, "signup", err)
	}

	return s.issue(ctx, p)
}

func (s *Service) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	ctx, done := s.begin(ctx, "login")
	defer func() { done(err) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Validation("please provide email and password")
	}

	p, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, principal.ErrNotFound) {
		return nil, s.translate(ctx, "login", err)
	}

	digest := s.dummyHash
	if p != nil {
		digest = p.PasswordHash
	}

	if !s.hasher.Verify(password, digest) || p == nil {
		return nil, apperr.Unauthenticated("incorrect email or password")
	}

	return s.issue(ctx, p)
}

// Protect resolves the bearer credential in an Authorization header to a
// live principal.
func (s *Service) Protect(ctx context.Context, authorization string) (_ *principal.Principal, err error) {
	ctx, done := s.begin(ctx, "protect")
	defer func() { done(err) }()

	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, apperr.Unauthenticated("you are not logged in, please log in to get access")
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		s.log.DebugContext(ctx, "token rejected", "reason", verifyReason(err), "error", err)
		return nil, apperr.Unauthenticated("invalid or expired token, please log in again")
	}

	p, err := s.store.FindByID(ctx, claims.PrincipalID())
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, apperr.Unauthenticated("the principal belonging to this token no longer exists")
		}
		return nil, s.translate(ctx, "protect", err)
	}

	if claims.IssuedAt != nil && p.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperr.Unauthenticated("password was changed recently, please log in again")
	}

	return p, nil
}

// ForgotPassword issues a reset token and mails it. A failed delivery rolls
// the token back so no undelivered secret stays live.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, done := s.begin(ctx, "forgot_password")
	defer func() { done(err) }()

	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return apperr.NotFound("there is no account with that email address")
		}
		return s.translate(ctx, "forgot_password", err)
	}

	tok, err := s.resets.Generate()
	if err != nil {
		return s.translate(ctx, "forgot_password", err)
	}

	if err := s.store.SetResetToken(ctx, p, tok.Hash, tok.ExpiresAt); err != nil {
		return s.translate(ctx, "forgot_password", err)
	}

	resetURL := s.resetBase + "/resetPassword/" + tok.Raw
	msg := notifications.PasswordResetMessage(p.Email, resetURL, int(s.resets.TTL()/time.Minute))

	if sendErr := s.notifier.Send(ctx, msg); sendErr != nil {
		observability.LogError(ctx, s.log, "reset email delivery failed", sendErr)

		// the caller may already be gone, the rollback must still land
		if rbErr := s.resets.Revoke(context.WithoutCancel(ctx), tok.Hash); rbErr != nil {
			observability.LogError(ctx, s.log, "reset token rollback failed", rbErr)
		}

		return apperr.Delivery("there was an error sending the email, try again later", sendErr)
	}

	return nil
}

// ResetPassword spends a reset token. Consume clears it before the new
// password is checked, so it is burned even when that password is rejected.
func (s *Service) ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (_ *Session, err error) {
	ctx, done := s.begin(ctx, "reset_password")
	defer func() { done(err) }()

	p, err := s.resets.Consume(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			return nil, apperr.InvalidToken("token is invalid or has expired")
		}
		return nil, s.translate(ctx, "reset_password", err)
	}

	p.SetPassword(password, passwordConfirm)
	if err := s.store.Save(ctx, p, credentials.SaveOptions{SkipValidation: true}); err != nil {
		p.DiscardPendingPassword()
		return nil, s.translate(ctx, "reset_password", err)
	}

	return s.issue(ctx, p)
}

func (s *Service) ChangePassword(ctx context.Context, id, current, password, passwordConfirm string) (_ *Session, err error) {
	ctx, done := s.begin(ctx, "change_password")
	defer func() { done(err) }()

	var missing []apperr.FieldError
	for _, f := range []struct{ name, value string }{
		{"passwordCurrent", current},
		{"password", password},
		{"passwordConfirm", passwordConfirm},
	} {
		if f.value == "" {
			missing = append(missing, apperr.FieldError{Field: f.name, Rule: "required", Message: apperr.ValidationMessage("required", "")})
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("please provide your current password, a new password and its confirmation", missing...)
	}

	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, apperr.NotFound("no account found with that id")
		}
		return nil, s.translate(ctx, "change_password", err)
	}

	if !s.hasher.Verify(current, p.PasswordHash) {
		return nil, apperr.Forbidden("your current password is wrong")
	}

	p.SetPassword(password, passwordConfirm)
	if err := s.store.Save(ctx, p, credentials.SaveOptions{SkipValidation: true}); err != nil {
		return nil, s.translate(ctx, "change_password", err)
	}

	return s.issue(ctx, p)
}

func (s *Service) issue(ctx context.Context, p *principal.Principal) (*Session, error) {
	token, exp, err := s.tokens.Issue(p.ID, p.Kind)
	if err != nil {
		return nil, s.translate(ctx, "issue_token", err)
	}
	return &Session{Principal: p, Token: token, ExpiresAt: exp}, nil
}

// translate maps collaborator failures onto the apperr taxonomy. Unexpected
// ones are logged here, once.
func (s *Service) translate(ctx context.Context, op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}

	var verr *credentials.ValidationError
	switch {
	case errors.As(err, &verr):
		return apperr.Validation("invalid input data", verr.Fields...)
	case errors.Is(err, principal.ErrEmailTaken):
		return apperr.Conflict("email address is already in use")
	case errors.Is(err, principal.ErrNotFound):
		return apperr.NotFound("principal not found")
	case errors.Is(err, credentials.ErrHash):
		observability.LogError(ctx, s.log, "password hashing failed", oops.In("auth").With("op", op).Wrap(err))
		return apperr.Hash(err)
	default:
		observability.LogError(ctx, s.log, "auth operation failed", oops.In("auth").With("op", op).Wrap(err))
		return apperr.Internal("something went wrong, please try again", err)
	}
}

// begin opens a span for op and returns the function that closes it and
// records the outcome.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "auth."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = string(apperr.KindOf(err))
			if result == "" {
				result = string(apperr.KindInternal)
			}
			span.SetStatus(codes.Error, result)
		}
		if id, ok := actorctx.PrincipalIDFrom(ctx); ok {
			span.SetAttributes(attribute.String("principal.id", id))
		}
		span.End()

		if s.metrics != nil {
			s.metrics.ObserveAuth(op, result, time.Since(start))
		}
	}
}
