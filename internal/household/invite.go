package household

import (
	"context"
	"fmt"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/validate"
	"github.com/jmoiron/sqlx"
)

// Invite creates one pending invite per member and queues the join e-mails.
// The whole batch is a single transaction: one failed insert means no invite
// is stored and no e-mail is queued.
func (s *Service) Invite(ctx context.Context, sess auth.Session, in InviteInput, callbackURL string) ([]model.HouseholdInvite, error) {
	if err := validate.Var("callbackUrl", callbackURL, "required,url"); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	h, err := s.owned(ctx, sess)
	if err != nil {
		return nil, err
	}

	expires := expiresIn(s.tokens.OneTimeTokenTTL())
	created := make([]model.HouseholdInvite, 0, len(in.Members))

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		invites := s.invites.WithTx(tx)
		for _, member := range in.Members {
			token, err := s.tokens.GenerateOneTimeToken(ctx, sess)
			if err != nil {
				return err
			}
			inv, err := invites.Create(ctx, h.ID, token, member.Email, member.Role)
			if err != nil {
				return err
			}
			if inv == nil {
				return fmt.Errorf("create invite: %w", errNoRow)
			}
			if err := enqueueInvite(ctx, tx, h, inv, joinLink(callbackURL, token), expires); err != nil {
				return err
			}
			created = append(created, *inv)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("invite members", err)
	}

	s.notify()
	s.logger.Info("household invites created", "household_id", h.ID, "count", len(created))
	for _, inv := range created {
		s.publish(h.ID, "household_invite", "created", inv.ID)
	}
	return created, nil
}

// ReadInvite shows an invitee the pending invite behind token.
func (s *Service) ReadInvite(ctx context.Context, token string) (*model.InviteDetails, error) {
	if _, err := s.tokens.VerifyOneTimeToken(ctx, token); err != nil {
		return nil, apperr.NotFound("invite not found")
	}
	details, err := s.invites.GetDetailsByToken(ctx, token)
	if err != nil {
		return nil, apperr.Internal("read invite", err)
	}
	if details == nil {
		return nil, apperr.NotFound("invite not found")
	}
	return details, nil
}

// AcceptInvite joins the caller to the invite's household with the invite's
// role. The invite is marked accepted in the same transaction, so a token
// can be accepted once.
func (s *Service) AcceptInvite(ctx context.Context, sess auth.Session, inviteID int64, token string) (*model.HouseholdMember, error) {
	if _, err := s.tokens.VerifyOneTimeToken(ctx, token); err != nil {
		return nil, apperr.NotFound("invite not found")
	}

	var member *model.HouseholdMember
	var inv *model.HouseholdInvite
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		invites := s.invites.WithTx(tx)
		households := s.households.WithTx(tx)

		var err error
		inv, err = invites.GetPending(ctx, inviteID, token)
		if err != nil {
			return err
		}
		if inv == nil {
			return apperr.NotFound("invite not found")
		}

		m, err := households.Lookup(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if m.HasHousehold() {
			return apperr.Conflict("user already owns or belongs to a household")
		}

		member, err = households.AddMember(ctx, inv.HouseholdID, sess.UserID, inv.Role)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("add member: %w", errNoRow)
		}

		ok, err := invites.Accept(ctx, inv.ID, sess.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("invite not found")
		}
		return nil
	})
	if database.IsUniqueViolation(err) {
		return nil, apperr.Conflict("user already belongs to this household")
	}
	if err != nil {
		return nil, wrap("accept invite", err)
	}

	s.logger.Info("household invite accepted", "household_id", inv.HouseholdID, "invite_id", inv.ID, "user_id", sess.UserID)
	s.publish(inv.HouseholdID, "household_invite", "accepted", inv.ID)
	s.publish(inv.HouseholdID, "household_member", "created", member.ID)
	return member, nil
}

// ListActiveInvites returns the pending invites of the caller's household.
func (s *Service) ListActiveInvites(ctx context.Context, sess auth.Session) ([]model.HouseholdInvite, error) {
	h, err := s.owned(ctx, sess)
	if err != nil {
		return nil, err
	}
	invites, err := s.invites.ListPending(ctx, h.ID)
	if err != nil {
		return nil, apperr.Internal("list invites", err)
	}
	return invites, nil
}

// DeleteInvite revokes a pending invite of the caller's household.
func (s *Service) DeleteInvite(ctx context.Context, sess auth.Session, inviteID int64) error {
	h, err := s.owned(ctx, sess)
	if err != nil {
		return err
	}

	inv, err := s.invites.GetByID(ctx, inviteID)
	if err != nil {
		return apperr.Internal("delete invite", err)
	}
	if inv == nil {
		return apperr.NotFound("invite not found")
	}
	if inv.HouseholdID != h.ID {
		return apperr.PermissionDenied("invite belongs to another household")
	}

	ok, err := s.invites.Revoke(ctx, inv.ID, sess.UserID)
	if err != nil {
		return apperr.Internal("delete invite", err)
	}
	if !ok {
		return apperr.NotFound("invite not found")
	}

	s.logger.Info("household invite revoked", "household_id", h.ID, "invite_id", inv.ID)
	s.publish(h.ID, "household_invite", "deleted", inv.ID)
	return nil
}
