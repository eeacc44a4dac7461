package handler

import (
	"context"

	"github.com/botio91514/gym-backend/internal/auth"
	lifecycledomain "github.com/botio91514/gym-backend/internal/domain/lifecycle"
	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/pkg/logger"
)

// HealthCheck reports whether the member store is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Members   *membershipdomain.Service
	Lifecycle *lifecycledomain.Service
	Scheduler *lifecycledomain.Scheduler
	Auth      *auth.Authenticator
	health    HealthCheck
	log       logger.Logger
}

func New(
	members *membershipdomain.Service,
	lifecycle *lifecycledomain.Service,
	scheduler *lifecycledomain.Scheduler,
	authenticator *auth.Authenticator,
	health HealthCheck,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Members:   members,
		Lifecycle: lifecycle,
		Scheduler: scheduler,
		Auth:      authenticator,
		health:    health,
		log:       log,
	}
}
