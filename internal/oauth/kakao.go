// Package oauth adapts external OAuth2 providers to domain identities.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/Proton-105/profile-service/internal/domain"
	"github.com/Proton-105/profile-service/pkg/config"
)

const (
	ProviderKakao = "kakao"

	// fallbackKakaoName is used when the account exposes no nickname.
	fallbackKakaoName = "카카오사용자"

	maxUserInfoBytes = 1 << 20
)

// Provider turns an authorization code into a verified identity.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error)
}

type KakaoProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

var _ Provider = (*KakaoProvider)(nil)

func NewKakaoProvider(cfg config.KakaoConfig) *KakaoProvider {
	return &KakaoProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

func (p *KakaoProvider) Name() string {
	return ProviderKakao
}

func (p *KakaoProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the code for an access token and reads the Kakao profile.
func (p *KakaoProvider) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	if strings.TrimSpace(code) == "" {
		return domain.ExternalIdentity{}, errors.New("kakao: empty authorization code")
	}

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("kakao: exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("kakao: build user info request: %w", err)
	}

	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("kakao: fetch user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("kakao: read user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ExternalIdentity{}, fmt.Errorf("kakao: user info status %d", resp.StatusCode)
	}

	var info kakaoUser
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("kakao: decode user info: %w", err)
	}

	return info.identity()
}

type kakaoUser struct {
	ID         int64 `json:"id"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
	KakaoAccount struct {
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

func (u kakaoUser) identity() (domain.ExternalIdentity, error) {
	if u.ID == 0 {
		return domain.ExternalIdentity{}, errors.New("kakao: user info without id")
	}

	name := firstNonEmpty(u.Properties.Nickname, u.KakaoAccount.Profile.Nickname, fallbackKakaoName)
	image := firstNonEmpty(u.Properties.ProfileImage, u.KakaoAccount.Profile.ProfileImageURL)

	return domain.ExternalIdentity{
		Provider:        ProviderKakao,
		ProviderID:      strconv.FormatInt(u.ID, 10),
		DisplayName:     name,
		ProfileImageURL: image,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
