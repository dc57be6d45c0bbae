package service

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nmalakhov/shortly/internal/models"
	"github.com/nmalakhov/shortly/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrEmptyURL         = errors.New("empty url")
	ErrInvalidURL       = errors.New("invalid url")
	ErrUnresolvableHost = errors.New("host does not resolve")
	ErrURLAlreadyExists = errors.New("url already exists")
	ErrNotFound         = errors.New("alias not found")
	ErrAliasContention  = errors.New("failed to allocate unique alias")
)

const (
	aliasAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	aliasLength   = 6

	// Collisions in a 62^6 space are rare; a handful of retries only ever
	// matters when two allocators race on the same candidate.
	maxAllocRetries = 3

	reportDays = 7
)

// ShortenerService implements alias allocation, redirect click accounting and
// analytics. With a database DSN it persists through PostgreSQL; without one
// it runs on in-process maps, which is what the tests use.
type ShortenerService struct {
	mu           sync.RWMutex
	byAlias      map[string]string
	byURL        map[string]string
	clicks       map[string]map[string]int64
	order        []string
	logger       *zap.Logger
	pgRepo       *repository.PostgresRepository
	useDB        bool
	resolveHosts bool

	lookupHost func(ctx context.Context, host string) ([]string, error)
}

func NewShortenerService(databaseDSN string, resolveHosts bool, logger *zap.Logger) *ShortenerService {
	service := &ShortenerService{
		byAlias:      make(map[string]string),
		byURL:        make(map[string]string),
		clicks:       make(map[string]map[string]int64),
		logger:       logger,
		useDB:        databaseDSN != "",
		resolveHosts: resolveHosts,
		lookupHost:   net.DefaultResolver.LookupHost,
	}

	if service.useDB {
		pgRepo, err := repository.NewPostgresRepository(databaseDSN)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL, using in-memory store", zap.Error(err))
			service.useDB = false
		} else {
			service.pgRepo = pgRepo
			logger.Info("Using PostgreSQL repository")
		}
	}

	return service
}

// Shorten allocates an alias for originalURL. For a URL that already has one
// it returns the existing alias together with ErrURLAlreadyExists so the
// caller can distinguish the two success shapes.
func (s *ShortenerService) Shorten(ctx context.Context, originalURL string) (string, error) {
	originalURL = strings.TrimSpace(originalURL)
	if originalURL == "" {
		s.logger.Warn("Attempt to shorten an empty URL")
		return "", ErrEmptyURL
	}

	parsed, err := parseURL(originalURL)
	if err != nil {
		s.logger.Warn("Invalid URL provided", zap.String("url", originalURL))
		return "", err
	}

	if s.resolveHosts {
		if _, err := s.lookupHost(ctx, parsed.Hostname()); err != nil {
			s.logger.Warn("URL host does not resolve",
				zap.String("url", originalURL),
				zap.String("host", parsed.Hostname()))
			return "", ErrUnresolvableHost
		}
	}

	if s.useDB {
		return s.shortenDB(ctx, originalURL)
	}

	return s.shortenMemory(originalURL)
}

func parseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if parsed.Host == "" {
		return nil, ErrInvalidURL
	}
	return parsed, nil
}

func (s *ShortenerService) shortenDB(ctx context.Context, originalURL string) (string, error) {
	alias, err := s.pgRepo.GetAliasByURL(ctx, originalURL)
	if err == nil {
		return alias, ErrURLAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to look up URL", zap.Error(err))
		return "", err
	}

	// The pre-check keeps the common case to one insert; the constraint
	// check catches allocators racing between the check and the insert.
	for attempt := 0; attempt < maxAllocRetries; attempt++ {
		candidate, err := gonanoid.Generate(aliasAlphabet, aliasLength)
		if err != nil {
			return "", err
		}

		taken, err := s.pgRepo.AliasExists(ctx, candidate)
		if err != nil {
			s.logger.Error("Failed to check alias", zap.Error(err))
			return "", err
		}
		if taken {
			continue
		}

		err = s.pgRepo.SaveURL(ctx, candidate, originalURL)
		switch {
		case err == nil:
			return candidate, nil
		case errors.Is(err, repository.ErrAliasTaken):
			continue
		case errors.Is(err, repository.ErrURLTaken):
			// A concurrent allocator inserted the same URL first.
			winner, lookupErr := s.pgRepo.GetAliasByURL(ctx, originalURL)
			if lookupErr != nil {
				return "", lookupErr
			}
			return winner, ErrURLAlreadyExists
		default:
			s.logger.Error("Failed to save URL", zap.Error(err))
			return "", err
		}
	}

	s.logger.Error("Alias allocation retries exhausted", zap.String("url", originalURL))
	return "", ErrAliasContention
}

func (s *ShortenerService) shortenMemory(originalURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alias, exists := s.byURL[originalURL]; exists {
		return alias, ErrURLAlreadyExists
	}

	var candidate string
	for attempt := 0; ; attempt++ {
		var err error
		candidate, err = gonanoid.Generate(aliasAlphabet, aliasLength)
		if err != nil {
			return "", err
		}
		if _, taken := s.byAlias[candidate]; !taken {
			break
		}
		if attempt == maxAllocRetries {
			return "", ErrAliasContention
		}
	}

	s.byAlias[candidate] = originalURL
	s.byURL[originalURL] = candidate
	s.order = append(s.order, candidate)

	return candidate, nil
}

// ResolveAndRecord returns the original URL for alias and counts the click
// against today. A failed click upsert is logged and swallowed: accounting is
// best-effort relative to the redirect.
func (s *ShortenerService) ResolveAndRecord(ctx context.Context, alias string) (string, error) {
	if s.useDB {
		originalURL, err := s.pgRepo.GetOriginalURL(ctx, alias)
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		if err != nil {
			s.logger.Error("Failed to resolve alias", zap.String("alias", alias), zap.Error(err))
			return "", err
		}

		if err := s.pgRepo.RecordClick(ctx, alias, time.Now().UTC()); err != nil {
			s.logger.Error("Failed to record click",
				zap.String("alias", alias),
				zap.Error(err))
		}

		return originalURL, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	originalURL, exists := s.byAlias[alias]
	if !exists {
		return "", ErrNotFound
	}

	day := time.Now().UTC().Format("2006-01-02")
	if s.clicks[alias] == nil {
		s.clicks[alias] = make(map[string]int64)
	}
	s.clicks[alias][day]++

	return originalURL, nil
}

// Report builds the analytics for one alias: lifetime total plus a dense
// daily series for today and the six days before it.
func (s *ShortenerService) Report(ctx context.Context, alias string) (models.AliasReport, error) {
	today := time.Now().UTC()

	if s.useDB {
		originalURL, err := s.pgRepo.GetOriginalURL(ctx, alias)
		if errors.Is(err, repository.ErrNotFound) {
			return models.AliasReport{}, ErrNotFound
		}
		if err != nil {
			return models.AliasReport{}, err
		}

		return s.reportDB(ctx, alias, originalURL, today)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	originalURL, exists := s.byAlias[alias]
	if !exists {
		return models.AliasReport{}, ErrNotFound
	}

	return buildReport(alias, originalURL, s.clicks[alias], today), nil
}

// ReportAll builds analytics for every alias, newest first.
func (s *ShortenerService) ReportAll(ctx context.Context) ([]models.AliasReport, error) {
	today := time.Now().UTC()

	if s.useDB {
		records, err := s.pgRepo.ListURLs(ctx)
		if err != nil {
			return nil, err
		}

		reports := make([]models.AliasReport, 0, len(records))
		for _, rec := range records {
			report, err := s.reportDB(ctx, rec.Alias, rec.OriginalURL, today)
			if err != nil {
				return nil, err
			}
			reports = append(reports, report)
		}
		return reports, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]models.AliasReport, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		alias := s.order[i]
		reports = append(reports, buildReport(alias, s.byAlias[alias], s.clicks[alias], today))
	}

	return reports, nil
}

func (s *ShortenerService) reportDB(ctx context.Context, alias, originalURL string, today time.Time) (models.AliasReport, error) {
	from := today.AddDate(0, 0, -(reportDays - 1))

	counts, err := s.pgRepo.DailyClicks(ctx, alias, from, today)
	if err != nil {
		return models.AliasReport{}, err
	}

	total, err := s.pgRepo.TotalClicks(ctx, alias)
	if err != nil {
		return models.AliasReport{}, err
	}

	report := buildReport(alias, originalURL, counts, today)
	report.TotalClicks = total
	return report, nil
}

// buildReport gap-fills the trailing series: one entry per day, oldest first,
// zero for days without clicks. For the memory store the lifetime total is
// the sum of all recorded days.
func buildReport(alias, originalURL string, counts map[string]int64, today time.Time) models.AliasReport {
	daily := make([]models.DailyClicks, 0, reportDays)
	for i := reportDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		daily = append(daily, models.DailyClicks{Date: day, Count: counts[day]})
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	return models.AliasReport{
		Alias:       alias,
		OriginalURL: originalURL,
		TotalClicks: total,
		DailyClicks: daily,
	}
}

func (s *ShortenerService) Ping(ctx context.Context) error {
	if s.useDB {
		return s.pgRepo.Ping(ctx)
	}

	return nil
}

func (s *ShortenerService) Close() {
	if s.useDB {
		if err := s.pgRepo.Close(); err != nil {
			s.logger.Error("Failed to close repository", zap.Error(err))
		}
	}
}
