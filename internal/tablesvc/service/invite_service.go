package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

var ErrForbidden = errors.New("not the table owner")

const joinScheme = "pokerclub"

// maxTTLSeconds is the longest expiry a time.Duration can hold.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

type InviteService struct {
	inviteStore    *store.InviteStore
	tableStore     *store.TableStore
	defaultTTL     time.Duration
	defaultMaxUses int
	publicWSURL    string
}

// NewInviteService wires the invite lifecycle. publicWSURL may be empty, in
// which case created invites carry no join link.
func NewInviteService(inviteStore *store.InviteStore, tableStore *store.TableStore, defaultTTL time.Duration, defaultMaxUses int, publicWSURL string) *InviteService {
	return &InviteService{
		inviteStore:    inviteStore,
		tableStore:     tableStore,
		defaultTTL:     defaultTTL,
		defaultMaxUses: defaultMaxUses,
		publicWSURL:    publicWSURL,
	}
}

// CreateInvite is the owner's request. Nil fields take the configured
// defaults; ExpiresInSeconds of 0 means no expiry.
type CreateInvite struct {
	TableID          string
	ExpiresInSeconds *int64
	MaxUses          *int
	RequesterID      string // empty skips the owner check
}

type CreatedInvite struct {
	models.Invite
	JoinLink string `json:"joinLink,omitempty"`
}

func (s *InviteService) Create(ctx context.Context, req CreateInvite) (*CreatedInvite, error) {
	if req.RequesterID != "" {
		table, err := s.tableStore.GetByID(ctx, req.TableID)
		if err != nil {
			return nil, err
		}
		if table.OwnerID != req.RequesterID {
			return nil, fmt.Errorf("user %s on table %s: %w", req.RequesterID, req.TableID, ErrForbidden)
		}
	}

	ttl := s.defaultTTL
	if req.ExpiresInSeconds != nil {
		secs := *req.ExpiresInSeconds
		if secs > maxTTLSeconds {
			return nil, fmt.Errorf("%w: expiry of %d seconds is out of range", store.ErrInvalidInvite, secs)
		}
		ttl = time.Duration(secs) * time.Second
	}
	maxUses := s.defaultMaxUses
	if req.MaxUses != nil {
		maxUses = *req.MaxUses
	}

	inv, err := s.inviteStore.Create(ctx, req.TableID, ttl, maxUses)
	if err != nil {
		log.WithFields(log.Fields{"table_id": req.TableID, "ttl": ttl, "max_uses": maxUses}).Errorf("[InviteService.Create] %s", err)
		return nil, err
	}
	log.WithFields(log.Fields{"table_id": inv.TableID, "token": tokenPrefix(inv.Token)}).Info("invite created")

	return &CreatedInvite{Invite: *inv, JoinLink: s.JoinLink(inv.Token)}, nil
}

func (s *InviteService) Resolve(ctx context.Context, token string) (models.Resolution, error) {
	return s.inviteStore.Resolve(ctx, token)
}

func (s *InviteService) Consume(ctx context.Context, token string) (*models.Invite, error) {
	inv, err := s.inviteStore.Consume(ctx, token)
	if err != nil {
		log.WithField("token", tokenPrefix(token)).Infof("[InviteService.Consume] %s", err)
		return nil, err
	}
	return inv, nil
}

func (s *InviteService) ListByTable(ctx context.Context, tableID string) ([]models.Invite, error) {
	return s.inviteStore.ListByTable(ctx, tableID)
}

// JoinLink builds the deep link the mobile client opens, or "" when no
// public socket url is configured.
func (s *InviteService) JoinLink(token string) string {
	if s.publicWSURL == "" {
		return ""
	}
	u := url.URL{
		Scheme:   joinScheme,
		Host:     "join",
		RawQuery: url.Values{"server": {s.publicWSURL}, "token": {token}}.Encode(),
	}
	return u.String()
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
