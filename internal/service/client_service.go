package service

import (
	"context"
	"net/mail"
	"strings"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ClientStore is the persistence ClientService depends on
type ClientStore interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, ownerID, clientID string) (*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, ownerID, clientID string) error
}

// ClientService keeps an owner's customer contacts
type ClientService struct {
	store  ClientStore
	logger *zap.Logger
}

// NewClientService creates a new client service
func NewClientService(store ClientStore) *ClientService {
	return &ClientService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateClientRequest represents a request to add a client
type CreateClientRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Address     string `json:"address" binding:"required"`
}

// UpdateClientRequest represents a partial client edit. Nil fields are left unchanged.
type UpdateClientRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
}

// CreateClient adds a client. Email and phone number are unique per owner.
func (cs *ClientService) CreateClient(ctx context.Context, ownerID string, req *CreateClientRequest) (*models.Client, error) {
	ctx, span := util.StartSpan(ctx, "ClientService.CreateClient")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}

	client := &models.Client{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Address:     strings.TrimSpace(req.Address),
	}
	if err := validateClient(client); err != nil {
		return nil, err
	}

	if err := cs.store.CreateClient(ctx, client); err != nil {
		err = translateStoreError(err)
		util.RecordSpanError(span, err)
		cs.logger.Warn("Failed to create client", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	cs.logger.Info("Client created", zap.String("client_id", client.ID))
	return client, nil
}

// GetClient retrieves a client owned by ownerID
func (cs *ClientService) GetClient(ctx context.Context, ownerID, clientID string) (*models.Client, error) {
	ctx, span := util.StartSpan(ctx, "ClientService.GetClient",
		attribute.String("client_id", clientID))
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}

	client, err := cs.store.GetClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return client, nil
}

// UpdateClient applies the provided fields to a client
func (cs *ClientService) UpdateClient(ctx context.Context, ownerID, clientID string, req *UpdateClientRequest) (*models.Client, error) {
	ctx, span := util.StartSpan(ctx, "ClientService.UpdateClient",
		attribute.String("client_id", clientID))
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}

	client, err := cs.store.GetClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	if req.Name != nil {
		client.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		client.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.PhoneNumber != nil {
		client.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.Address != nil {
		client.Address = strings.TrimSpace(*req.Address)
	}
	if err := validateClient(client); err != nil {
		return nil, err
	}

	if err := cs.store.UpdateClient(ctx, client); err != nil {
		err = translateStoreError(err)
		util.RecordSpanError(span, err)
		cs.logger.Warn("Failed to update client", zap.String("client_id", clientID), zap.Error(err))
		return nil, err
	}

	cs.logger.Info("Client updated", zap.String("client_id", client.ID))
	return client, nil
}

// DeleteClient removes a client
func (cs *ClientService) DeleteClient(ctx context.Context, ownerID, clientID string) error {
	ctx, span := util.StartSpan(ctx, "ClientService.DeleteClient",
		attribute.String("client_id", clientID))
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthenticated
	}

	if err := cs.store.DeleteClient(ctx, ownerID, clientID); err != nil {
		return translateStoreError(err)
	}

	cs.logger.Info("Client deleted", zap.String("client_id", clientID))
	return nil
}

func validateClient(c *models.Client) error {
	switch {
	case c.Name == "":
		return validationError("name is required")
	case c.Email == "":
		return validationError("email is required")
	case c.PhoneNumber == "":
		return validationError("phone_number is required")
	case c.Address == "":
		return validationError("address is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return validationError("email is not a valid address")
	}
	return nil
}
