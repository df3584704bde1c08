// Package memory provides in-memory implementations of the repository
// interfaces for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository"
)

// FamilyLinkRepository is an in-memory repository.FamilyLinkRepository.
// Setting Err makes every operation fail with it.
type FamilyLinkRepository struct {
	mu     sync.Mutex
	links  map[string]*models.FamilyLink
	nextID int64
	Err    error
}

func NewFamilyLinkRepository() *FamilyLinkRepository {
	return &FamilyLinkRepository{links: make(map[string]*models.FamilyLink)}
}

func (r *FamilyLinkRepository) Upsert(_ context.Context, link *models.FamilyLink) (*models.FamilyLink, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	link.LinkedAt = time.Now()
	link.Active = true
	if existing, ok := r.links[link.ChildSessionID]; ok {
		link.ID = existing.ID
	} else {
		r.nextID++
		link.ID = r.nextID
	}
	stored := *link
	r.links[link.ChildSessionID] = &stored
	return link, nil
}

func (r *FamilyLinkRepository) GetBySessionID(_ context.Context, sessionID string) (*models.FamilyLink, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[sessionID]
	if !ok || !link.Active {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

// SubmissionRepository is an in-memory repository.SubmissionRepository. It
// consults the given link repository the way the Postgres implementation
// consults the family_links table.
type SubmissionRepository struct {
	mu     sync.Mutex
	subs   map[string]*models.PhotoSubmission
	links  *FamilyLinkRepository
	nextID int64
	Err    error
}

func NewSubmissionRepository(links *FamilyLinkRepository) *SubmissionRepository {
	return &SubmissionRepository{subs: make(map[string]*models.PhotoSubmission), links: links}
}

func (r *SubmissionRepository) Submit(ctx context.Context, sub *models.PhotoSubmission) (*models.PhotoSubmission, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	link, err := r.links.GetBySessionID(ctx, sub.ChildSessionID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, repository.ErrNotLinked
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub.ID = r.nextID
	sub.ParentChatID = link.ParentChatID
	sub.Status = models.SubmissionStatusPending
	sub.SubmittedAt = time.Now()
	stored := *sub
	r.subs[sub.SubmissionID] = &stored
	return sub, nil
}

func (r *SubmissionRepository) GetBySubmissionID(_ context.Context, submissionID string) (*models.PhotoSubmission, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[submissionID]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (r *SubmissionRepository) UpdateStatus(_ context.Context, submissionID string, status models.SubmissionStatus, comment *string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[submissionID]
	if !ok || sub.Status != models.SubmissionStatusPending {
		return false, nil
	}
	now := time.Now()
	sub.Status = status
	sub.ParentComment = comment
	sub.ReviewedAt = &now
	return true, nil
}

// BotMessageRepository is an in-memory repository.BotMessageRepository that
// records every logged message.
type BotMessageRepository struct {
	mu       sync.Mutex
	Messages []*models.BotMessage
	Err      error
}

func NewBotMessageRepository() *BotMessageRepository {
	return &BotMessageRepository{}
}

func (r *BotMessageRepository) Create(_ context.Context, msg *models.BotMessage) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.CreatedAt = time.Now()
	msg.ID = int64(len(r.Messages) + 1)
	stored := *msg
	r.Messages = append(r.Messages, &stored)
	return nil
}
