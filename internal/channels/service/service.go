// Package service manages stored channel integrations and exposes them to
// the chat and email config resolvers.
package service

import (
	"context"
	"strings"

	"procurement_backend/internal/channels/repository"
	"procurement_backend/internal/channels/transport"
	"procurement_backend/internal/email"
	"procurement_backend/internal/whatsapp"
	"procurement_backend/platform/apperr"
	"procurement_backend/platform/secretbox"

	"github.com/google/uuid"
)

const opSave = "channels.service.save"

// Repository is the persistence contract used by Service.
type Repository interface {
	Find(ctx context.Context, orgID *uuid.UUID, kind string) (*repository.Integration, error)
	Upsert(ctx context.Context, in repository.Integration) (*repository.Integration, error)
}

type Service struct {
	repo Repository
	key  []byte
}

func New(repo Repository, key []byte) *Service {
	return &Service{repo: repo, key: key}
}

// FindWhatsApp implements whatsapp.IntegrationStore.
func (s *Service) FindWhatsApp(ctx context.Context, tenantID *uuid.UUID) (whatsapp.Config, bool, error) {
	in, secret, err := s.load(ctx, tenantID, repository.KindWhatsApp)
	if err != nil || in == nil {
		return whatsapp.Config{}, false, err
	}
	return whatsapp.Config{BaseURL: in.BaseURL, APIKey: secret, Instance: in.Instance}, true, nil
}

// FindEmail implements email.ConfigStore.
func (s *Service) FindEmail(ctx context.Context, tenantID *uuid.UUID) (email.Config, bool, error) {
	in, secret, err := s.load(ctx, tenantID, repository.KindEmail)
	if err != nil || in == nil {
		return email.Config{}, false, err
	}
	cfg := email.Config{
		Provider:     email.ProviderHTTP,
		APIURL:       in.BaseURL,
		APIKey:       secret,
		FromAddress:  in.FromAddress,
		FromName:     in.FromName,
		SMTPHost:     in.SMTPHost,
		SMTPPort:     in.SMTPPort,
		SMTPUsername: in.SMTPUsername,
	}
	if in.SMTPHost != "" {
		cfg.Provider = email.ProviderSMTP
	}
	return cfg, true, nil
}

func (s *Service) load(ctx context.Context, tenantID *uuid.UUID, kind string) (*repository.Integration, string, error) {
	in, err := s.repo.Find(ctx, tenantID, kind)
	if err != nil || in == nil {
		return nil, "", err
	}
	secret, err := secretbox.Open(in.SecretEncrypted, s.key)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "decrypt "+kind+" integration secret", err)
	}
	return in, secret, nil
}

// Save validates and stores an integration. The API key is sealed before
// it reaches the database.
func (s *Service) Save(ctx context.Context, tenantID *uuid.UUID, kind string, req transport.SaveIntegrationRequest) (transport.IntegrationResponse, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case repository.KindWhatsApp:
		if req.BaseURL == "" {
			return transport.IntegrationResponse{}, apperr.Validation("baseUrl is required for whatsapp").WithOp(opSave)
		}
	case repository.KindEmail:
		if req.FromAddress == "" {
			return transport.IntegrationResponse{}, apperr.Validation("fromAddress is required for email").WithOp(opSave)
		}
		if req.SMTPHost != "" && req.SMTPPort == 0 {
			return transport.IntegrationResponse{}, apperr.Validation("smtpPort is required with smtpHost").WithOp(opSave)
		}
	default:
		return transport.IntegrationResponse{}, apperr.Validation("unknown integration kind: " + kind).WithOp(opSave)
	}
	if len(s.key) == 0 {
		return transport.IntegrationResponse{}, apperr.Internal("INTEGRATION_ENCRYPTION_KEY is not configured").WithOp(opSave)
	}

	sealed, err := secretbox.Seal(strings.TrimSpace(req.APIKey), s.key)
	if err != nil {
		return transport.IntegrationResponse{}, apperr.Wrap(apperr.KindInternal, "seal integration secret", err).WithOp(opSave)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	saved, err := s.repo.Upsert(ctx, repository.Integration{
		OrganizationID:  tenantID,
		Kind:            kind,
		BaseURL:         strings.TrimRight(strings.TrimSpace(req.BaseURL), "/"),
		Instance:        strings.TrimSpace(req.Instance),
		SecretEncrypted: sealed,
		FromAddress:     strings.TrimSpace(req.FromAddress),
		FromName:        strings.TrimSpace(req.FromName),
		SMTPHost:        strings.TrimSpace(req.SMTPHost),
		SMTPPort:        req.SMTPPort,
		SMTPUsername:    strings.TrimSpace(req.SMTPUsername),
		IsActive:        active,
	})
	if err != nil {
		return transport.IntegrationResponse{}, err
	}
	return toResponse(saved), nil
}

// Get returns the stored integration without its secret.
func (s *Service) Get(ctx context.Context, tenantID *uuid.UUID, kind string) (transport.IntegrationResponse, error) {
	in, err := s.repo.Find(ctx, tenantID, strings.ToLower(kind))
	if err != nil {
		return transport.IntegrationResponse{}, err
	}
	if in == nil {
		return transport.IntegrationResponse{}, apperr.NotFound("integration not found")
	}
	return toResponse(in), nil
}

func toResponse(in *repository.Integration) transport.IntegrationResponse {
	scope := string(whatsapp.ScopeGlobal)
	if in.OrganizationID != nil {
		scope = string(whatsapp.ScopeClient)
	}
	return transport.IntegrationResponse{
		ID:          in.ID.String(),
		Kind:        in.Kind,
		Scope:       scope,
		BaseURL:     in.BaseURL,
		Instance:    in.Instance,
		FromAddress: in.FromAddress,
		FromName:    in.FromName,
		SMTPHost:    in.SMTPHost,
		SMTPPort:    in.SMTPPort,
		HasSecret:   in.SecretEncrypted != "",
		IsActive:    in.IsActive,
		UpdatedAt:   in.UpdatedAt,
	}
}
