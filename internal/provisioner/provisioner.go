package provisioner

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"usermgmt/internal/identity"
	"usermgmt/internal/logger"
	"usermgmt/internal/models"
)

// DefaultConcurrency caps in-flight create-user calls when no limit is given.
const DefaultConcurrency = 5

// Imported is one record the provider accepted.
type Imported struct {
	Email string        `json:"email"`
	User  identity.User `json:"user"`
}

// Rejected is one record the provider turned down. Rejections never abort
// the rest of the batch.
type Rejected struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// Report aggregates one bulk run. Order within each slice follows completion
// order, not input order.
type Report struct {
	Imported []Imported `json:"imported"`
	Rejected []Rejected `json:"rejected"`
}

// Provisioner fans out account-creation calls under a fixed concurrency cap.
type Provisioner struct {
	client     *identity.Client
	connection string
	limit      int
	log        *zap.Logger
}

// New builds a Provisioner. connection is the provider connection/realm every
// created account lands in. A limit below 1 falls back to DefaultConcurrency.
func New(client *identity.Client, connection string, limit int) *Provisioner {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &Provisioner{
		client:     client,
		connection: connection,
		limit:      limit,
		log:        logger.Named("provisioner"),
	}
}

// Provision creates one account per record, at most limit calls in flight at
// a time, and classifies every outcome. Each account gets a throwaway random
// password; real credentials are set later through the reset flow.
func (p *Provisioner) Provision(ctx context.Context, records []models.UserRecord) Report {
	report := Report{
		Imported: make([]Imported, 0, len(records)),
		Rejected: make([]Rejected, 0),
	}
	if len(records) == 0 {
		return report
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.limit)
	)

	for _, rec := range records {
		rec := rec
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			payload := identity.CreateUserPayload{
				Email:         rec.Email,
				Connection:    p.connection,
				Password:      uuid.NewString(),
				EmailVerified: true,
				VerifyEmail:   true,
				UserMetadata: identity.UserMetadata{
					FirstName: rec.FirstName,
					LastName:  rec.LastName,
				},
			}

			user, err := p.client.CreateUser(ctx, payload)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Warn("user rejected by provider",
					zap.String("email", rec.Email),
					zap.Error(err),
				)
				report.Rejected = append(report.Rejected, Rejected{Email: rec.Email, Reason: err.Error()})
				return
			}
			report.Imported = append(report.Imported, Imported{Email: rec.Email, User: *user})
		}()
	}

	wg.Wait()
	return report
}
