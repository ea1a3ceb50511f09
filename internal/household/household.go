// Package household enforces the household rules: one household per user,
// owner-only administration, and token-gated invitations whose e-mail is
// delivered through the outbox.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/email"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/outbox"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/dukerupert/homewise/internal/validate"
	"github.com/dukerupert/homewise/internal/websocket"
	"github.com/jmoiron/sqlx"
)

// TokenIssuer issues and checks the one-time tokens embedded in invite links.
type TokenIssuer interface {
	GenerateOneTimeToken(ctx context.Context, sess auth.Session) (string, error)
	VerifyOneTimeToken(ctx context.Context, token string) (string, error)
	OneTimeTokenTTL() time.Duration
}

// Publisher fans household changes out to connected clients.
type Publisher interface {
	Publish(householdID int64, msg websocket.Message)
}

type nopPublisher struct{}

func (nopPublisher) Publish(int64, websocket.Message) {}

var errNoRow = errors.New("insert returned no row")

type Service struct {
	db         *sqlx.DB
	households *store.HouseholdStore
	invites    *store.InviteStore
	tokens     TokenIssuer
	events     Publisher
	notify     func()
	logger     *slog.Logger
}

func NewService(db *sqlx.DB, tokens TokenIssuer, events Publisher, logger *slog.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	return &Service{
		db:         db,
		households: store.NewHouseholdStore(db),
		invites:    store.NewInviteStore(db),
		tokens:     tokens,
		events:     events,
		notify:     func() {},
		logger:     logger,
	}
}

// OnEnqueue registers fn to run after a commit that queued e-mail.
func (s *Service) OnEnqueue(fn func()) {
	if fn != nil {
		s.notify = fn
	}
}

type CreateInput struct {
	Name string `json:"name" validate:"required,min=3,max=64"`
}

type PatchInput struct {
	Name    *string `json:"name" validate:"omitempty,min=3,max=64"`
	OwnerID *string `json:"owner_id" validate:"omitempty,uuid"`
}

type InviteMember struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role" validate:"required,household_role"`
}

type InviteInput struct {
	Members []InviteMember `json:"members" validate:"required,min=1,max=20,dive"`
}

type PatchMemberInput struct {
	Role string `json:"role" validate:"required,household_role"`
}

// Lookup reports how userID relates to a household.
func (s *Service) Lookup(ctx context.Context, userID string) (model.Membership, error) {
	m, err := s.households.Lookup(ctx, userID)
	if err != nil {
		return model.Membership{}, apperr.Internal("lookup household", err)
	}
	return m, nil
}

// Create makes the caller the owner and first adult member of a new household.
func (s *Service) Create(ctx context.Context, sess auth.Session, in CreateInput) (*model.Household, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	m, err := s.Lookup(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if m.HasHousehold() {
		return nil, apperr.Conflict("user already owns or belongs to a household")
	}

	var h *model.Household
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		households := s.households.WithTx(tx)

		var err error
		h, err = households.Create(ctx, in.Name, sess.UserID)
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("create household: %w", errNoRow)
		}

		member, err := households.AddMember(ctx, h.ID, sess.UserID, model.RoleAdult)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("add owner membership: %w", errNoRow)
		}
		return nil
	})
	if database.IsUniqueViolation(err) {
		return nil, apperr.Conflict("user already owns or belongs to a household")
	}
	if err != nil {
		return nil, apperr.Internal("create household", err)
	}

	s.logger.Info("household created", "household_id", h.ID, "owner_id", sess.UserID)
	s.publish(h.ID, "household", "created", h.ID)
	return h, nil
}

// ReadForUser returns the household the caller owns or belongs to.
func (s *Service) ReadForUser(ctx context.Context, sess auth.Session) (*model.HouseholdWithMembers, error) {
	m, err := s.Lookup(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !m.HasHousehold() {
		return nil, apperr.NotFound("household not found")
	}
	return s.withMembers(ctx, m.Household)
}

// ReadForOwner returns the household the caller owns.
func (s *Service) ReadForOwner(ctx context.Context, sess auth.Session) (*model.HouseholdWithMembers, error) {
	m, err := s.Lookup(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !m.IsOwner() {
		return nil, apperr.NotFound("household not found")
	}
	return s.withMembers(ctx, m.Household)
}

func (s *Service) withMembers(ctx context.Context, h *model.Household) (*model.HouseholdWithMembers, error) {
	members, err := s.households.ListMembers(ctx, h.ID)
	if err != nil {
		return nil, apperr.Internal("list members", err)
	}
	return &model.HouseholdWithMembers{Household: *h, Members: members}, nil
}

// owned resolves the caller's household and requires them to own it.
func (s *Service) owned(ctx context.Context, sess auth.Session) (*model.Household, error) {
	m, err := s.Lookup(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !m.HasHousehold() {
		return nil, apperr.NotFound("household not found")
	}
	if !m.IsOwner() {
		return nil, apperr.PermissionDenied("only the household owner can do this")
	}
	return m.Household, nil
}

// Patch renames the household or transfers ownership to another member.
func (s *Service) Patch(ctx context.Context, sess auth.Session, in PatchInput) (*model.Household, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	h, err := s.owned(ctx, sess)
	if err != nil {
		return nil, err
	}

	name, ownerID := h.Name, h.OwnerID
	if in.Name != nil {
		name = *in.Name
	}
	if in.OwnerID != nil && *in.OwnerID != h.OwnerID {
		member, err := s.households.GetMember(ctx, h.ID, *in.OwnerID)
		if err != nil {
			return nil, apperr.Internal("patch household", err)
		}
		if member == nil {
			return nil, apperr.Invalid("owner_id", "invalid_value", "owner_id must be a member of the household")
		}
		ownerID = *in.OwnerID
	}

	updated, err := s.households.Update(ctx, h.ID, name, ownerID)
	if err != nil {
		return nil, apperr.Internal("patch household", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("household not found")
	}
	if ownerID != h.OwnerID {
		s.logger.Info("household ownership transferred", "household_id", h.ID, "from", h.OwnerID, "to", ownerID)
	}
	s.publish(h.ID, "household", "updated", h.ID)
	return updated, nil
}

// Delete removes householdID if the caller owns it.
func (s *Service) Delete(ctx context.Context, sess auth.Session, householdID int64) error {
	ok, err := s.households.Delete(ctx, householdID, sess.UserID)
	if err != nil {
		return apperr.Internal("delete household", err)
	}
	if !ok {
		return apperr.NotFound("household not found")
	}
	s.logger.Info("household deleted", "household_id", householdID, "owner_id", sess.UserID)
	s.publish(householdID, "household", "deleted", householdID)
	return nil
}

// DeleteOwned removes the household the caller owns.
func (s *Service) DeleteOwned(ctx context.Context, sess auth.Session) error {
	m, err := s.Lookup(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if !m.IsOwner() {
		return apperr.NotFound("household not found")
	}
	return s.Delete(ctx, sess, m.Household.ID)
}

func (s *Service) publish(householdID int64, entity, action string, id int64) {
	s.events.Publish(householdID, websocket.NewMessage(entity, action, id, nil))
}

// wrap passes typed failures through and hides everything else behind a
// generic internal error.
func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(op, err)
}

// expiresIn renders a token lifetime for humans, e.g. "24 hours".
func expiresIn(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}

func joinLink(callbackURL, token string) string {
	return strings.TrimRight(callbackURL, "/") + "/join-household?token=" + url.QueryEscape(token)
}

// enqueueInvite renders the join e-mail for inv and records it in tx.
func enqueueInvite(ctx context.Context, tx *sqlx.Tx, h *model.Household, inv *model.HouseholdInvite, link, expires string) error {
	msg, err := email.JoinHousehold(inv.Email, email.JoinHouseholdData{
		HouseholdName: h.Name,
		InviteeEmail:  inv.Email,
		Role:          inv.Role,
		URL:           link,
		ExpiresIn:     expires,
	})
	if err != nil {
		return err
	}
	_, err = outbox.Enqueue(ctx, tx, model.KindJoinHousehold, msg)
	return err
}
