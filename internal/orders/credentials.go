package orders

import (
	"context"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

const cookiesSetting = "naga_cookies"

// SetCredentials stores new NAGA session cookies and installs them on the running client.
func (s *Service) SetCredentials(ctx context.Context, cookies map[string]string) error {
	if err := common.ValidateCookies(cookies); err != nil {
		return err
	}
	if err := s.settings.PutJSON(ctx, cookiesSetting, cookies); err != nil {
		return err
	}
	s.client.SetCookies(cookies)
	s.logger.InfoContext(ctx, "naga credentials updated", "cookies", len(cookies))
	return nil
}

// LoadCredentials installs the stored cookies, or fallback when none were stored,
// and returns the ones in use.
func (s *Service) LoadCredentials(ctx context.Context, fallback map[string]string) (map[string]string, error) {
	var cookies map[string]string
	found, err := s.settings.GetJSON(ctx, cookiesSetting, &cookies)
	if err != nil {
		return nil, err
	}
	if !found {
		cookies = fallback
	}
	if len(cookies) > 0 {
		s.client.SetCookies(cookies)
	}
	s.logger.InfoContext(ctx, "naga credentials loaded", "stored", found, "cookies", len(cookies))
	return cookies, nil
}
