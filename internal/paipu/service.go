package paipu

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/nagabus/internal/async"
	"github.com/joseph-ayodele/nagabus/internal/repository"
)

// Service loads replays, downloading each at most once no matter how many callers ask.
type Service struct {
	repo       repository.PaipuRepository
	downloader Downloader
	logger     *slog.Logger
	flight     async.Flight[*Document]
}

func NewService(repo repository.PaipuRepository, downloader Downloader, logger *slog.Logger) *Service {
	return &Service{repo: repo, downloader: downloader, logger: logger}
}

// Get returns the parsed record of paipuUUID from the local cache or the mirror.
func (s *Service) Get(ctx context.Context, paipuUUID string) (*Document, error) {
	return s.flight.Do(ctx, paipuUUID, func(ctx context.Context) (*Document, error) {
		return s.load(ctx, paipuUUID)
	})
}

func (s *Service) load(ctx context.Context, paipuUUID string) (*Document, error) {
	content, ok, err := s.repo.Get(ctx, paipuUUID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.logger.Info("using cached paipu", "paipu_uuid", paipuUUID)
		return Parse(content)
	}

	s.logger.Info("downloading paipu", "paipu_uuid", paipuUUID)
	raw, err := s.downloader.Download(ctx, paipuUUID)
	if err != nil {
		s.logger.Warn("paipu download failed", "paipu_uuid", paipuUUID, "error", err)
		return nil, err
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, paipuUUID, raw); err != nil {
		return nil, err
	}
	return doc, nil
}
