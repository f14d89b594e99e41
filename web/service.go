package web

import (
	"context"
)

// Service sits between the HTTP handlers and the repository. The onQueued
// callback fires whenever a search becomes runnable, on creation and on
// resume, so the hosting runner can start processing it without polling.
type Service struct {
	repo     Repository
	onQueued func(searchID int64)
}

func NewService(repo Repository, onQueued func(int64)) *Service {
	return &Service{
		repo:     repo,
		onQueued: onQueued,
	}
}

func (s *Service) Create(ctx context.Context, req *CreateSearchRequest) (Search, error) {
	search, err := s.repo.CreateSearch(ctx, req.BatchName, req.Domains)
	if err != nil {
		return Search{}, err
	}

	s.notify(search.ID)

	return search, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Search, error) {
	return s.repo.GetSearch(ctx, id)
}

func (s *Service) All(ctx context.Context, params SelectParams) ([]Search, error) {
	return s.repo.SelectSearches(ctx, params)
}

func (s *Service) Statistics(ctx context.Context, id int64) (Statistics, error) {
	return s.repo.SearchStatistics(ctx, id)
}

func (s *Service) Domains(ctx context.Context, searchID int64, params SelectParams) ([]Domain, error) {
	return s.repo.SelectDomains(ctx, searchID, params)
}

func (s *Service) SearchEmails(ctx context.Context, searchID int64, params SelectParams) ([]Email, error) {
	return s.repo.SelectSearchEmails(ctx, searchID, params)
}

func (s *Service) DomainEmails(ctx context.Context, domainID int64) ([]Email, error) {
	return s.repo.SelectDomainEmails(ctx, domainID)
}

func (s *Service) Pause(ctx context.Context, id int64) error {
	return s.repo.PauseSearch(ctx, id)
}

func (s *Service) Resume(ctx context.Context, id int64) error {
	if err := s.repo.ResumeSearch(ctx, id); err != nil {
		return err
	}

	s.notify(id)

	return nil
}

func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.repo.CancelSearch(ctx, id)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) notify(id int64) {
	if s.onQueued != nil {
		s.onQueued(id)
	}
}
