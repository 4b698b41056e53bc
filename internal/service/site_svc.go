package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/config"
	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
)

// SiteService 站点查询与人设
type SiteService struct {
	siteRepo repository.SiteRepository
	profiles map[string]config.SiteProfile
}

func NewSiteService(siteRepo repository.SiteRepository, profiles map[string]config.SiteProfile) *SiteService {
	return &SiteService{siteRepo: siteRepo, profiles: profiles}
}

// GetSite 站点不存在返回 ErrSiteNotFound
func (s *SiteService) GetSite(ctx context.Context, name string) (*model.Site, error) {
	site, err := s.siteRepo.GetByName(ctx, siteNameOrDefault(name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return site, nil
}

// ListSites 站点列表
func (s *SiteService) ListSites(ctx context.Context) (*dto.SiteListResp, error) {
	sites, err := s.siteRepo.List(ctx, false)
	if err != nil {
		return nil, err
	}

	list := make([]dto.SiteResp, 0, len(sites))
	for _, site := range sites {
		list = append(list, dto.SiteResp{
			ID:          site.ID,
			Name:        site.Name,
			URL:         site.URL,
			IsActive:    site.IsActive,
			DisplayName: s.profiles[site.Name].DisplayName,
		})
	}
	return &dto.SiteListResp{Total: int64(len(list)), List: list}, nil
}

// CountSites 健康检查用
func (s *SiteService) CountSites(ctx context.Context) (int64, error) {
	return s.siteRepo.Count(ctx)
}

// Profile 站点人设；未配置时只有 Description 为 "Online store (name)"
func (s *SiteService) Profile(name string) config.SiteProfile {
	if p, ok := s.profiles[name]; ok && p.Description != "" {
		return p
	}
	return config.SiteProfile{
		DisplayName: name,
		Description: "Online store (" + name + ")",
	}
}
