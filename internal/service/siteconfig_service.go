package service

import (
	"context"
	"sync"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
)

// SiteReader yields the current site configuration.
type SiteReader interface {
	Site(ctx context.Context) (config.Site, error)
}

// ChangeNotifier tells other terminals a config item changed.
type ChangeNotifier interface {
	PublishConfigChange(ctx context.Context, key string) error
}

// SiteConfigService reads and writes the site configuration table. The
// typed view is cached until a change is seen, locally or from another
// terminal.
type SiteConfigService interface {
	SiteReader
	Sync(ctx context.Context) error
	List(ctx context.Context) ([]dto.ConfigItemResponse, error)
	Get(ctx context.Context, key string) (*dto.ConfigItemResponse, error)
	Set(ctx context.Context, key, value string) (*dto.ConfigItemResponse, error)
	Invalidate()
}

type siteConfigService struct {
	repo      repository.ConfigRepository
	overrides map[string]string
	notifier  ChangeNotifier

	mu     sync.RWMutex
	cached *config.Site
}

// NewSiteConfigService builds the service. overrides are values forced
// by the environment and win over the table; notifier may be nil.
func NewSiteConfigService(repo repository.ConfigRepository, overrides map[string]string, notifier ChangeNotifier) SiteConfigService {
	return &siteConfigService{repo: repo, overrides: overrides, notifier: notifier}
}

// Sync inserts the recognised items that are missing from the table.
func (s *siteConfigService) Sync(ctx context.Context) error {
	items := make([]model.ConfigItem, len(config.Items))
	for i, it := range config.Items {
		items[i] = model.ConfigItem{Key: it.Key, Value: it.Default, Type: string(it.Type), Description: it.Description}
	}
	return s.repo.EnsureConfig(ctx, items)
}

func (s *siteConfigService) values(ctx context.Context) (map[string]string, error) {
	rows, err := s.repo.ListConfig(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(rows)+len(s.overrides))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	for k, v := range s.overrides {
		values[k] = v
	}
	return values, nil
}

func (s *siteConfigService) Site(ctx context.Context) (config.Site, error) {
	s.mu.RLock()
	if s.cached != nil {
		site := *s.cached
		s.mu.RUnlock()
		return site, nil
	}
	s.mu.RUnlock()

	values, err := s.values(ctx)
	if err != nil {
		return config.Site{}, err
	}
	site, err := config.BuildSite(values)
	if err != nil {
		return config.Site{}, apperr.Fatal(err, "site configuration is invalid")
	}
	s.mu.Lock()
	s.cached = &site
	s.mu.Unlock()
	return site, nil
}

func (s *siteConfigService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *siteConfigService) response(item config.Item, value string) dto.ConfigItemResponse {
	r := dto.ConfigItemResponse{Key: item.Key, Value: value, Type: string(item.Type), Description: item.Description}
	if v, ok := s.overrides[item.Key]; ok {
		r.Value, r.Overridden = v, true
	}
	return r
}

func (s *siteConfigService) List(ctx context.Context) ([]dto.ConfigItemResponse, error) {
	rows, err := s.repo.ListConfig(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]string, len(rows))
	for _, r := range rows {
		stored[r.Key] = r.Value
	}
	out := make([]dto.ConfigItemResponse, 0, len(config.Items))
	for _, item := range config.Items {
		v, ok := stored[item.Key]
		if !ok {
			v = item.Default
		}
		out = append(out, s.response(item, v))
	}
	return out, nil
}

func (s *siteConfigService) Get(ctx context.Context, key string) (*dto.ConfigItemResponse, error) {
	item, ok := config.LookupItem(key)
	if !ok {
		return nil, apperr.NotFound("unknown config item %q", key)
	}
	value := item.Default
	row, err := s.repo.FindConfig(ctx, key)
	switch {
	case err == nil:
		value = row.Value
	case !repository.IsNotFound(err):
		return nil, err
	}
	r := s.response(item, value)
	return &r, nil
}

// Set stores a new value after checking it parses as the item's type,
// then tells the other terminals.
func (s *siteConfigService) Set(ctx context.Context, key, value string) (*dto.ConfigItemResponse, error) {
	item, ok := config.LookupItem(key)
	if !ok {
		return nil, apperr.NotFound("unknown config item %q", key)
	}
	if err := item.Validate(value); err != nil {
		return nil, apperr.User("%s: %s", key, err.Error())
	}
	row := &model.ConfigItem{Key: key, Value: value, Type: string(item.Type), Description: item.Description}
	if err := s.repo.SaveConfig(ctx, row); err != nil {
		return nil, err
	}
	s.Invalidate()
	if s.notifier != nil {
		if err := s.notifier.PublishConfigChange(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("config change not published")
		}
	}
	log.Info().Str("key", key).Msg("site config changed")
	r := s.response(item, value)
	return &r, nil
}
