// Package messaging implements the idempotent WhatsApp send: validate,
// authorize, dedupe, dispatch once, then record.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/auth"
	"github.com/jmehdipour/saas-gateway/internal/cache"
	"github.com/jmehdipour/saas-gateway/internal/metrics"
	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmehdipour/saas-gateway/internal/provider"
	"github.com/jmehdipour/saas-gateway/internal/repository"
	"github.com/jmehdipour/saas-gateway/internal/util"
	"go.uber.org/zap"
)

const (
	msgInvalidPhone   = "Invalid phone number. Use E.164 format: +country_code + number"
	msgInvalidMessage = "Message must be 1-4096 characters"
	msgMissingOrg     = "missing organization"
	msgMissingKey     = "missing idempotency key"
	msgInvalidClient  = "invalid client id"
	msgOrgDenied      = "Organization not found or access denied"
	msgInProgress     = "request with this idempotency key is already in progress"

	maxErrorDetail = 1024
	persistTimeout = 5 * time.Second
)

// Organizations resolves organizations for the ownership check.
type Organizations interface {
	GetByID(ctx context.Context, id string) (*model.Organization, error)
}

// Store is the durable message log keyed by idempotency key.
type Store interface {
	Find(ctx context.Context, key string) (*model.Message, error)
	Record(ctx context.Context, m model.Message) error
}

// Sender is the outbound messaging provider.
type Sender interface {
	CheckConfigured() error
	SendText(ctx context.Context, to, body string) (string, error)
}

type Service struct {
	orgs     Organizations
	store    Store
	sender   Sender
	cache    cache.IdempotencyCache
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// New builds the service. idem may be nil, in which case only the store's
// unique index guards against duplicates.
func New(orgs Organizations, store Store, sender Sender, idem cache.IdempotencyCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		orgs:     orgs,
		store:    store,
		sender:   sender,
		cache:    idem,
		validate: newValidator(),
		log:      log,
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("e164strict", func(fl validator.FieldLevel) bool {
		return util.IsE164(fl.Field().String())
	})
	return v
}

// Validate checks req field by field: to, message, org_id, idempotency_key.
func (s *Service) Validate(req model.SendRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return apperr.Validation("body", "invalid request body")
	}

	switch ves[0].StructField() {
	case "To":
		return apperr.Validation("to", msgInvalidPhone)
	case "Message":
		return apperr.Validation("message", msgInvalidMessage)
	case "OrgID":
		return apperr.Validation("org_id", msgMissingOrg)
	case "ClientID":
		// client_id sits between org_id and idempotency_key in the struct;
		// a missing key still wins over a long client id.
		for _, fe := range ves[1:] {
			if fe.StructField() == "IdempotencyKey" {
				return apperr.Validation("idempotency_key", msgMissingKey)
			}
		}
		return apperr.Validation("client_id", msgInvalidClient)
	default:
		return apperr.Validation("idempotency_key", msgMissingKey)
	}
}

// Send delivers req once per idempotency key on behalf of caller.
func (s *Service) Send(ctx context.Context, caller auth.Identity, req model.SendRequest) (model.SendResult, error) {
	// to and idempotency_key are used exactly as sent.
	req.OrgID = strings.TrimSpace(req.OrgID)
	req.ClientID = strings.TrimSpace(req.ClientID)

	if err := s.Validate(req); err != nil {
		return model.SendResult{}, err
	}

	if err := s.authorize(ctx, caller, req.OrgID); err != nil {
		return model.SendResult{}, err
	}

	log := s.log.With(
		zap.String("org_id", req.OrgID),
		zap.String("user_id", caller.UserID),
		zap.String("idempotency_key", req.IdempotencyKey),
	)

	if res, ok := s.cached(ctx, log, req.IdempotencyKey); ok {
		return res, nil
	}

	release, err := s.lock(ctx, log, req.IdempotencyKey)
	if err != nil {
		return model.SendResult{}, err
	}
	defer release()

	existing, err := s.store.Find(ctx, req.IdempotencyKey)
	if err != nil {
		return model.SendResult{}, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if existing != nil {
		metrics.MessagesTotal.WithLabelValues("duplicate").Inc()
		log.Info("duplicate send", zap.String("message_id", existing.ID))
		return duplicateOf(*existing), nil
	}

	if err := s.sender.CheckConfigured(); err != nil {
		log.Error("whatsapp not configured", zap.Error(err))
		return model.SendResult{}, err
	}

	providerID, sendErr := s.sender.SendText(ctx, req.To, req.Message)
	if sendErr != nil && provider.IsNotIssued(sendErr) {
		log.Warn("whatsapp send not issued", zap.Error(sendErr))
		return model.SendResult{}, sendErr
	}

	msg := s.buildMessage(caller, req, providerID, sendErr)
	res := model.SendResult{
		MessageID:         providerID,
		ProviderMessageID: providerID,
		Status:            msg.Status,
		Recipient:         req.To,
		CreatedAt:         msg.CreatedAt,
	}

	// The provider call cannot be undone, so recording must not depend on
	// the caller still waiting.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.Record(pctx, msg); err != nil {
		warn := &apperr.PersistenceWarning{Err: err}
		metrics.MessagesTotal.WithLabelValues("persist_warning").Inc()
		log.Error("message record failed",
			zap.String("provider_message_id", providerID),
			zap.Bool("concurrent_duplicate", errors.Is(err, repository.ErrDuplicateKey)),
			zap.Error(warn),
		)
		res.Warning = warn
	} else {
		res.MessageID = msg.ID
		if s.cache != nil {
			if err := s.cache.Put(pctx, req.IdempotencyKey, res); err != nil {
				log.Warn("idempotency cache put failed", zap.Error(err))
			}
		}
	}

	if sendErr != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		log.Warn("whatsapp send failed", zap.String("message_id", msg.ID), zap.Error(sendErr))
		return model.SendResult{}, sendErr
	}

	metrics.MessagesTotal.WithLabelValues("sent").Inc()
	log.Info("whatsapp message sent", zap.String("message_id", res.MessageID), zap.String("provider_message_id", providerID))
	return res, nil
}

func (s *Service) authorize(ctx context.Context, caller auth.Identity, orgID string) error {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load organization: %w", err)
	}
	if org == nil || caller.UserID == "" || !sameUser(org.OwnerID, caller.UserID) {
		return &apperr.AuthorizationError{Message: msgOrgDenied}
	}
	return nil
}

// sameUser compares user ids; UUIDs are case-insensitive hex.
func sameUser(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Authorize is the ownership check on its own, for routes reading an
// organization's data.
func (s *Service) Authorize(ctx context.Context, caller auth.Identity, orgID string) error {
	return s.authorize(ctx, caller, strings.TrimSpace(orgID))
}

func (s *Service) cached(ctx context.Context, log *zap.Logger, key string) (model.SendResult, bool) {
	if s.cache == nil {
		return model.SendResult{}, false
	}
	res, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("idempotency cache get failed", zap.Error(err))
		return model.SendResult{}, false
	}
	if res == nil {
		return model.SendResult{}, false
	}

	metrics.MessagesTotal.WithLabelValues("duplicate").Inc()
	out := *res
	out.Duplicate = true
	return out, true
}

func (s *Service) lock(ctx context.Context, log *zap.Logger, key string) (func(), error) {
	noop := func() {}
	if s.cache == nil {
		return noop, nil
	}

	release, err := s.cache.Lock(ctx, key)
	if errors.Is(err, cache.ErrLocked) {
		return nil, &apperr.ConflictError{Message: msgInProgress}
	}
	if err != nil {
		log.Warn("idempotency lock unavailable, relying on unique index", zap.Error(err))
		return noop, nil
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			log.Warn("idempotency lock release failed", zap.Error(err))
		}
	}, nil
}

func (s *Service) buildMessage(caller auth.Identity, req model.SendRequest, providerID string, sendErr error) model.Message {
	createdAt := s.now().UTC()
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Timestamp)); err == nil {
		createdAt = ts.UTC()
	}

	msg := model.Message{
		ID:             util.NewID(s.now()),
		IdempotencyKey: req.IdempotencyKey,
		OrgID:          req.OrgID,
		UserID:         caller.UserID,
		PhoneNumber:    req.To,
		Content:        req.Message,
		Status:         model.StatusSent,
		CreatedAt:      createdAt,
	}
	if req.ClientID != "" {
		msg.ClientID = &req.ClientID
	}

	if sendErr != nil {
		detail := sendErr.Error()
		if len(detail) > maxErrorDetail {
			detail = strings.ToValidUTF8(detail[:maxErrorDetail], "")
		}
		msg.Status = model.StatusFailed
		msg.ErrorDetail = &detail
		return msg
	}

	msg.ProviderMessageID = &providerID
	return msg
}

func duplicateOf(m model.Message) model.SendResult {
	return model.SendResult{
		MessageID:         m.ID,
		ProviderMessageID: m.ProviderID(),
		Status:            m.Status,
		Recipient:         m.PhoneNumber,
		Duplicate:         true,
		CreatedAt:         m.CreatedAt,
	}
}
