package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/authorizerdev/authorizer-go"

	"github.com/openlms/docsubmit/internal/config"
	"github.com/openlms/docsubmit/internal/utils"
)

var (
	authClient *authorizer.AuthorizerClient
	authOnce   sync.Once
)

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	return authClient != nil
}

// InitAuthorizer initializes the Authorizer client (singleton pattern)
func InitAuthorizer(cfg *config.Config, requestProtocol, requestHost string) error {
	var initErr error

	authOnce.Do(func() {
		// Ping the Authorizer service first
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		log.Printf("Initializing Authorizer: authorizerURL=%s, clientID=%s, redirectURL=%s",
			cfg.AuthzURL, cfg.AuthzClientID, redirectURL)

		var err error
		authClient, err = authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			initErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
	})

	return initErr
}

// ValidateSession validates a session cookie for the given roles and returns
// the authenticated account's email.
func ValidateSession(cookie string, roles []string) (string, error) {
	if authClient == nil {
		return "", fmt.Errorf("authorizer client not initialized")
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := authClient.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return "", fmt.Errorf("session validation failed: %w", err)
	}

	if res == nil || !res.IsValid {
		return "", fmt.Errorf("session is not valid")
	}

	// The SDK's user struct varies across versions; go through JSON to pull
	// the email out the same way for all of them.
	buf, err := json.Marshal(res.User)
	if err != nil {
		return "", fmt.Errorf("unreadable session user: %w", err)
	}
	var user map[string]interface{}
	if err := json.Unmarshal(buf, &user); err != nil {
		return "", fmt.Errorf("unreadable session user: %w", err)
	}
	email, _ := user["email"].(string)
	if email == "" {
		return "", fmt.Errorf("session carries no account email")
	}

	return email, nil
}
