package household

import (
	"context"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/validate"
)

// memberOf loads memberID and checks it belongs to household h.
func (s *Service) memberOf(ctx context.Context, h *model.Household, memberID int64) (*model.HouseholdMember, error) {
	member, err := s.households.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, apperr.Internal("get member", err)
	}
	if member == nil {
		return nil, apperr.NotFound("member not found")
	}
	if member.HouseholdID != h.ID {
		return nil, apperr.PermissionDenied("member belongs to another household")
	}
	return member, nil
}

func (s *Service) PatchMember(ctx context.Context, sess auth.Session, memberID int64, in PatchMemberInput) (*model.HouseholdMember, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	h, err := s.owned(ctx, sess)
	if err != nil {
		return nil, err
	}
	if _, err := s.memberOf(ctx, h, memberID); err != nil {
		return nil, err
	}

	updated, err := s.households.UpdateMemberRole(ctx, memberID, in.Role)
	if err != nil {
		return nil, apperr.Internal("patch member", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("member not found")
	}
	s.publish(h.ID, "household_member", "updated", memberID)
	return updated, nil
}

// DeleteMember removes a membership. Owners may remove anyone but
// themselves; members may only remove themselves.
func (s *Service) DeleteMember(ctx context.Context, sess auth.Session, memberID int64) error {
	m, err := s.Lookup(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if !m.HasHousehold() {
		return apperr.NotFound("household not found")
	}
	h := m.Household

	member, err := s.memberOf(ctx, h, memberID)
	if err != nil {
		return err
	}
	if member.UserID == h.OwnerID {
		return apperr.Conflict("the owner cannot leave the household, transfer ownership first")
	}
	if !m.IsOwner() && member.UserID != sess.UserID {
		return apperr.PermissionDenied("only the household owner can remove other members")
	}

	if err := s.households.RemoveMember(ctx, memberID); err != nil {
		return apperr.Internal("delete member", err)
	}
	s.logger.Info("household member removed", "household_id", h.ID, "member_id", memberID, "by", sess.UserID)
	s.publish(h.ID, "household_member", "deleted", memberID)
	return nil
}
