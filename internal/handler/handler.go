package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/nmalakhov/shortly/internal/middleware"
	"github.com/nmalakhov/shortly/internal/service"
	"go.uber.org/zap"
)

// Limiter is the admission controller as the HTTP layer sees it.
type Limiter interface {
	middleware.Admitter
	Ping(ctx context.Context) error
}

type Handler struct {
	service  *service.ShortenerService
	limiter  Limiter
	logger   *zap.Logger
	validate *validator.Validate
}

func NewHandler(service *service.ShortenerService, limiter Limiter, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		limiter:  limiter,
		logger:   logger,
		validate: validator.New(),
	}
}
