package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/repository"
)

func TestResolveSenderSitterWinsOverClient(t *testing.T) {
	sitters := &fakeSitterRepo{
		getByPhoneFunc: func(ctx context.Context, orgID, e164 string) (*domain.Sitter, error) {
			return &domain.Sitter{ID: "sitter-1", OrgID: orgID, E164: e164, Active: true}, nil
		},
	}
	clients := &fakeClientRepo{
		findByPhoneFunc: func(ctx context.Context, orgID, e164 string) (*domain.Client, error) {
			return &domain.Client{ID: "client-1", OrgID: orgID, E164: e164}, nil
		},
	}
	svc := NewResolverService(ResolverDependencies{
		NumberRepo: &fakeNumberRepo{},
		ThreadRepo: &fakeThreadRepo{},
		SitterRepo: sitters,
		ClientRepo: clients,
	})

	sender, err := svc.ResolveSender(context.Background(), "org-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, SenderSitter, sender.Kind)
	assert.Equal(t, domain.ActorSitter, sender.ActorType())
}

func TestResolveSenderUnknownIsClientActor(t *testing.T) {
	svc := NewResolverService(ResolverDependencies{
		NumberRepo: &fakeNumberRepo{},
		ThreadRepo: &fakeThreadRepo{},
		SitterRepo: &fakeSitterRepo{},
		ClientRepo: &fakeClientRepo{},
	})

	sender, err := svc.ResolveSender(context.Background(), "org-1", "+15550002")
	require.NoError(t, err)
	assert.Equal(t, SenderUnknown, sender.Kind)
	// Prospective customers text before they exist as clients.
	assert.Equal(t, domain.ActorClient, sender.ActorType())
}

func TestThreadForSenderCreatesGeneralThreadOnFirstContact(t *testing.T) {
	threads := &fakeThreadRepo{}
	svc := NewResolverService(ResolverDependencies{
		NumberRepo: &fakeNumberRepo{},
		ThreadRepo: threads,
		SitterRepo: &fakeSitterRepo{},
		ClientRepo: &fakeClientRepo{},
	})
	number := &domain.MessageNumber{
		ID: "num-1", OrgID: "org-1", E164: "+15559999",
		Class: domain.NumberClassFrontDesk, Status: domain.NumberStatusActive,
	}

	thread, err := svc.ThreadForSender(context.Background(), number, Sender{Kind: SenderUnknown})
	require.NoError(t, err)
	require.Len(t, threads.created, 1)
	assert.Equal(t, domain.ScopeClientGeneral, thread.Scope)
	assert.Equal(t, domain.ThreadStatusOpen, thread.Status)
	require.NotNil(t, thread.MaskedNumberE164)
	assert.Equal(t, "+15559999", *thread.MaskedNumberE164)
}

func TestThreadForSenderSitterNumberBecomesBookingScope(t *testing.T) {
	var captured repository.ThreadLookup
	threads := &fakeThreadRepo{
		findOpenFunc: func(ctx context.Context, lookup repository.ThreadLookup) (*domain.Thread, error) {
			captured = lookup
			return &domain.Thread{ID: "thread-1", OrgID: lookup.OrgID, Scope: lookup.Scope}, nil
		},
	}
	svc := NewResolverService(ResolverDependencies{
		NumberRepo: &fakeNumberRepo{},
		ThreadRepo: threads,
		SitterRepo: &fakeSitterRepo{},
		ClientRepo: &fakeClientRepo{},
	})
	sitterID := "sitter-7"
	number := &domain.MessageNumber{
		ID: "num-1", OrgID: "org-1", E164: "+15559999",
		Class: domain.NumberClassSitter, AssignedSitterID: &sitterID,
	}
	client := &domain.Client{ID: "client-1", OrgID: "org-1"}

	thread, err := svc.ThreadForSender(context.Background(), number, Sender{Kind: SenderClient, Client: client})
	require.NoError(t, err)
	assert.Equal(t, "thread-1", thread.ID)
	assert.Equal(t, domain.ScopeClientBooking, captured.Scope)
	require.NotNil(t, captured.AssignedSitterID)
	assert.Equal(t, sitterID, *captured.AssignedSitterID)
	require.NotNil(t, captured.ClientID)
	assert.Equal(t, "client-1", *captured.ClientID)
}

func TestThreadForSenderSitterFallsBackToInternalThread(t *testing.T) {
	threads := &fakeThreadRepo{}
	svc := NewResolverService(ResolverDependencies{
		NumberRepo: &fakeNumberRepo{},
		ThreadRepo: threads,
		SitterRepo: &fakeSitterRepo{},
		ClientRepo: &fakeClientRepo{},
	})
	number := &domain.MessageNumber{ID: "num-1", OrgID: "org-1", E164: "+15559999"}
	sender := Sender{Kind: SenderSitter, Sitter: &domain.Sitter{ID: "sitter-1", OrgID: "org-1"}}

	thread, err := svc.ThreadForSender(context.Background(), number, sender)
	require.NoError(t, err)
	require.Len(t, threads.created, 1)
	assert.Equal(t, domain.ScopeInternal, thread.Scope)
	require.NotNil(t, thread.AssignedSitterID)
	assert.Equal(t, "sitter-1", *thread.AssignedSitterID)
}
