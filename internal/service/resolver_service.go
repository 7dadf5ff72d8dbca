package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/pkg/util"
)

// SenderKind classifies the author of an inbound message by its From
// number.
type SenderKind int

const (
	SenderUnknown SenderKind = iota
	SenderClient
	SenderSitter
)

// Sender is the resolved identity behind an inbound From number.
type Sender struct {
	Kind   SenderKind
	Client *domain.Client
	Sitter *domain.Sitter
}

// ActorType maps the sender to the message event actor. Unknown numbers
// are recorded as clients; prospective customers text before they exist.
func (s Sender) ActorType() domain.ActorType {
	if s.Kind == SenderSitter {
		return domain.ActorSitter
	}
	return domain.ActorClient
}

// ResolverService maps raw phone numbers onto org, sender, and thread.
type ResolverService struct {
	numbers repository.NumberRepository
	threads repository.ThreadRepository
	sitters repository.SitterRepository
	clients repository.ClientRepository
}

// ResolverDependencies bundles repositories for the resolver.
type ResolverDependencies struct {
	NumberRepo repository.NumberRepository
	ThreadRepo repository.ThreadRepository
	SitterRepo repository.SitterRepository
	ClientRepo repository.ClientRepository
}

// NewResolverService constructs the service.
func NewResolverService(deps ResolverDependencies) *ResolverService {
	return &ResolverService{
		numbers: deps.NumberRepo,
		threads: deps.ThreadRepo,
		sitters: deps.SitterRepo,
		clients: deps.ClientRepo,
	}
}

// ResolveNumber finds the active provisioned number an inbound message was
// sent to. Unknown or inactive numbers are a hard stop for ingestion.
func (s *ResolverService) ResolveNumber(ctx context.Context, toE164 string) (*domain.MessageNumber, error) {
	number, err := s.numbers.GetActiveByE164(ctx, toE164)
	if err != nil {
		return nil, util.NewNotFound("message number", map[string]any{"e164": toE164})
	}
	return number, nil
}

// ResolveSender identifies the From number within the org. Sitter match
// wins over client match so a sitter who is also a customer still gets
// command handling.
func (s *ResolverService) ResolveSender(ctx context.Context, orgID, fromE164 string) (Sender, error) {
	sitter, err := s.sitters.GetByPhone(ctx, orgID, fromE164)
	if err != nil {
		return Sender{}, err
	}
	if sitter != nil {
		return Sender{Kind: SenderSitter, Sitter: sitter}, nil
	}
	client, err := s.clients.FindByPhone(ctx, orgID, fromE164)
	if err != nil {
		return Sender{}, err
	}
	if client != nil {
		return Sender{Kind: SenderClient, Client: client}, nil
	}
	return Sender{Kind: SenderUnknown}, nil
}

// ResolveOrCreateThread returns the open thread for the lookup key,
// creating one when none exists. New threads start open with the inbound
// number as the masked number.
func (s *ResolverService) ResolveOrCreateThread(ctx context.Context, lookup repository.ThreadLookup, maskedE164 string) (*domain.Thread, error) {
	thread, err := s.threads.FindOpen(ctx, lookup)
	if err == nil {
		return thread, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}
	thread = &domain.Thread{
		OrgID:            lookup.OrgID,
		ClientID:         lookup.ClientID,
		AssignedSitterID: lookup.AssignedSitterID,
		Scope:            lookup.Scope,
		Status:           domain.ThreadStatusOpen,
		MaskedNumberE164: &maskedE164,
	}
	if err := s.threads.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// ThreadForSender locates the conversation an inbound message belongs to.
// Sitters land on their most recently active thread; clients get their
// open general thread, created on first contact.
func (s *ResolverService) ThreadForSender(ctx context.Context, number *domain.MessageNumber, sender Sender) (*domain.Thread, error) {
	if sender.Kind == SenderSitter {
		thread, err := s.threads.FindLatestForSitter(ctx, number.OrgID, sender.Sitter.ID)
		if err == nil {
			return thread, nil
		}
		if err != pgx.ErrNoRows {
			return nil, err
		}
		sitterID := sender.Sitter.ID
		return s.ResolveOrCreateThread(ctx, repository.ThreadLookup{
			OrgID:            number.OrgID,
			AssignedSitterID: &sitterID,
			Scope:            domain.ScopeInternal,
		}, number.E164)
	}

	lookup := repository.ThreadLookup{
		OrgID: number.OrgID,
		Scope: domain.ScopeClientGeneral,
	}
	if sender.Client != nil {
		clientID := sender.Client.ID
		lookup.ClientID = &clientID
	}
	if number.Class == domain.NumberClassSitter && number.AssignedSitterID != nil {
		lookup.AssignedSitterID = number.AssignedSitterID
		lookup.Scope = domain.ScopeClientBooking
	}
	return s.ResolveOrCreateThread(ctx, lookup, number.E164)
}
