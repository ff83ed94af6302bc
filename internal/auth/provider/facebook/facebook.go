package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/logger"

	"golang.org/x/oauth2"
	fboauth "golang.org/x/oauth2/facebook"
)

const (
	providerName = "facebook"

	// Graph returns only confirmed email addresses, so a present email
	// is a verified one.
	userInfoURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture.type(large)"
)

// Provider implements OAuth authentication against Facebook. Facebook
// is plain OAuth2, not OIDC: the profile comes from a Graph API call
// with the access token rather than from an id_token.
type Provider struct {
	oauthConfig *oauth2.Config
}

func New(
	clientID string,
	clientSecret string,
	redirectURL string,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("facebook oauth config missing required fields")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     fboauth.Endpoint,
		Scopes: []string{
			"email",
			"public_profile",
		},
	}

	return &Provider{oauthConfig: oauthCfg}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Identity, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("facebook token exchange failed: %w", err)
	}

	client := p.oauthConfig.Client(ctx, token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("facebook profile fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook profile fetch returned status %d", resp.StatusCode)
	}

	var profile struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("facebook profile parse failed: %w", err)
	}

	if profile.ID == "" || profile.Email == "" {
		// Facebook omits email for accounts registered by phone number.
		return nil, fmt.Errorf("facebook profile missing required fields: %w",
			auth.ErrProviderProfileIncomplete)
	}

	raw, _ := json.Marshal(profile)

	logger.Info("facebook profile fetched", map[string]any{
		"subject_present": profile.ID != "",
		"email_present":   profile.Email != "",
	})

	return &auth.Identity{
		Provider:       providerName,
		ProviderUserID: profile.ID,
		Email:          profile.Email,
		EmailVerified:  true,
		Name:           profile.Name,
		AvatarURL:      profile.Picture.Data.URL,
		RawProfile:     raw,
	}, nil
}
