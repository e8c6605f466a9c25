package reset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"usermgmt/internal/identity"
	"usermgmt/internal/logger"
	"usermgmt/internal/models"
	"usermgmt/internal/notify"
	"usermgmt/internal/provisioner"
	"usermgmt/internal/store"
)

// OutcomeKind classifies one reset attempt.
type OutcomeKind string

const (
	// Completed: password changed and token consumed.
	Completed OutcomeKind = "completed"
	// MissingInput: token or new password absent; nothing was touched.
	MissingInput OutcomeKind = "missing_input"
	// InvalidToken: unknown or already-consumed token; nothing to finalize.
	InvalidToken OutcomeKind = "invalid_token"
	// TokenExpired: expired-but-unused token, now consumed so it cannot
	// linger as pending.
	TokenExpired OutcomeKind = "token_expired"
	// PasswordUpdateFailed: provider rejected the change; the token stays
	// unused so the same link can be retried.
	PasswordUpdateFailed OutcomeKind = "password_update_failed"
	// FinalizeFailed: password changed but consuming the token failed. The
	// one state that risks a reusable-after-use token; alerted distinctly.
	FinalizeFailed OutcomeKind = "finalize_failed"
)

// Outcome is the terminal state of one ResetPassword call. Reason carries
// the provider or store message for the failure kinds.
type Outcome struct {
	Kind   OutcomeKind
	Record *models.ResetTokenRecord
	Reason string
}

// DispatchResult is the per-email outcome of a reset-link send.
type DispatchResult struct {
	Email string `json:"email"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// Engine orchestrates token validation, the remote password change and token
// finalization, so a token is never left in an ambiguous state.
type Engine struct {
	store      store.TokenStore
	client     *identity.Client
	dispatcher notify.Dispatcher
	linkBase   string
	log        *zap.Logger
}

func NewEngine(tokens store.TokenStore, client *identity.Client, dispatcher notify.Dispatcher, linkBase string) *Engine {
	return &Engine{
		store:      tokens,
		client:     client,
		dispatcher: dispatcher,
		linkBase:   strings.TrimRight(linkBase, "/"),
		log:        logger.Named("reset"),
	}
}

func (e *Engine) link(token string) string {
	return e.linkBase + "/password-change/" + token
}

// ResetPassword runs the reset state machine:
//
//	Start -> TokenChecked -> Rejected(NotFound | Expired)
//	                      -> PasswordUpdating -> Finalized | Failed
//
// Store failures surface as errors; everything the caller can act on comes
// back as an Outcome.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (Outcome, error) {
	if token == "" || newPassword == "" {
		return Outcome{Kind: MissingInput}, nil
	}

	validation, err := e.store.Validate(ctx, token)
	if err != nil {
		return Outcome{}, err
	}

	switch validation.State {
	case store.StateNotFound:
		return Outcome{Kind: InvalidToken}, nil

	case store.StateExpired:
		// Mandatory: an expired-but-unused token is closed out here so it
		// can never be redeemed later.
		if _, err := e.store.Finalize(ctx, token); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: TokenExpired, Record: validation.Record}, nil
	}

	rec := validation.Record
	if err := e.client.SetPassword(ctx, rec.ExternalUserID, newPassword); err != nil {
		// Token stays unused: the password did not change, so the same
		// link must remain redeemable.
		return Outcome{Kind: PasswordUpdateFailed, Record: rec, Reason: err.Error()}, nil
	}

	ok, err := e.store.Finalize(ctx, token)
	if err != nil {
		e.log.Error("password changed but token finalize failed",
			zap.String("email", rec.Email),
			zap.Error(err),
		)
		return Outcome{Kind: FinalizeFailed, Record: rec, Reason: err.Error()}, nil
	}
	if !ok {
		// A concurrent redemption consumed the token between our validate
		// and finalize. Post-consumption state, same as never-existed, so
		// no record leaves here either.
		return Outcome{Kind: InvalidToken}, nil
	}

	e.notifyQuietly(ctx, notify.SendRequest{
		To:       rec.Email,
		Template: notify.TemplatePasswordChanged,
		Variables: map[string]string{
			"page_title": notify.PageTitle,
		},
	})

	return Outcome{Kind: Completed, Record: rec}, nil
}

// RequestReset issues a fresh token for the account registered under email
// and mails the reset link. The provider lookup is exact-match.
func (e *Engine) RequestReset(ctx context.Context, email string) error {
	user, err := e.client.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	target := models.TargetUser{
		Email:          email,
		ExternalUserID: user.UserID,
		FirstName:      user.UserMetadata.FirstName,
		LastName:       user.UserMetadata.LastName,
	}
	link, err := e.issueLink(ctx, target)
	if err != nil {
		return err
	}

	return e.send(ctx, link, notify.TemplatePasswordReset)
}

// DispatchResetLinks issues a token and mails the link for every imported
// user. Failures are isolated per email; one bad mailbox never aborts the
// rest of the batch.
func (e *Engine) DispatchResetLinks(ctx context.Context, imported []provisioner.Imported) []DispatchResult {
	results := make([]DispatchResult, len(imported))

	var wg sync.WaitGroup
	for i, u := range imported {
		i, u := i, u
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := models.TargetUser{
				Email:          u.Email,
				ExternalUserID: u.User.UserID,
				FirstName:      u.User.UserMetadata.FirstName,
				LastName:       u.User.UserMetadata.LastName,
			}
			res := DispatchResult{Email: u.Email}
			link, err := e.issueLink(ctx, target)
			if err == nil {
				err = e.send(ctx, link, notify.TemplateNewUserSetPassword)
			}
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Sent = true
			}
			results[i] = res
		}()
	}
	wg.Wait()

	return results
}

// issueLink persists a token and only then builds the link, so an
// un-persisted token can never reach a mailbox.
func (e *Engine) issueLink(ctx context.Context, target models.TargetUser) (models.ResetLink, error) {
	rec, err := e.store.Issue(ctx, target)
	if err != nil {
		return models.ResetLink{}, err
	}
	return models.ResetLink{
		URL:   e.link(rec.Token),
		Token: rec.Token,
		User:  target,
	}, nil
}

func (e *Engine) send(ctx context.Context, link models.ResetLink, template string) error {
	err := e.dispatcher.Send(ctx, notify.SendRequest{
		To:       link.User.Email,
		Template: template,
		Variables: map[string]string{
			"reset_link": link.URL,
			"first_name": link.User.FirstName,
			"last_name":  link.User.LastName,
			"page_title": notify.PageTitle,
		},
	})
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", template, link.User.Email, err)
	}
	return nil
}

// notifyQuietly sends a best-effort notification. Delivery failure never
// rolls back state that already succeeded.
func (e *Engine) notifyQuietly(ctx context.Context, req notify.SendRequest) {
	if err := e.dispatcher.Send(ctx, req); err != nil {
		e.log.Warn("notification delivery failed",
			zap.String("template", req.Template),
			zap.String("to", req.To),
			zap.Error(err),
		)
	}
}
