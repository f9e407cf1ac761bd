package auth

import (
	"bytes"
	"context"
	"crudconsole/utils"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	AuthTypeEmpty = "EMPTY"
	AuthTypeToken = "TOKEN"

	cacheKeyPrefix = "AUTH:"
	cacheTTL       = 5 * time.Minute
)

type AuthResponse struct {
	Status string `json:"status"`
	User   User   `json:"data"`
}

type User struct {
	Id         int                    `json:"id"`
	Login      string                 `json:"login"`
	Status     string                 `json:"status"`
	Language   string                 `json:"language"`
	Role       map[string]interface{} `json:"role"`
	Type       string                 `json:"type"`
	Authorized bool                   `json:"authorized"`
	Profile    map[string]interface{} `json:"profile"`
}

func NewError(text string) error {
	return &AuthError{text}
}

type AuthError struct {
	s string
}

func (this *AuthError) Error() string {
	return this.s
}

func (this *AuthError) Serialize() map[string]string {
	return map[string]string{
		"code": "401",
		"msg":  this.s,
	}
}

type Authenticator interface {
	Authenticate(*http.Request) (*User, error)
}

// GetAuthenticator picks the authenticator from the application config.
func GetAuthenticator(config *utils.AppConfig) Authenticator {
	switch strings.ToUpper(config.AuthenticationType) {
	case AuthTypeToken:
		var cache *redis.Client
		if config.CacheType == "REDIS" && config.RedisUrl != "" {
			if options, err := redis.ParseURL(config.RedisUrl); err == nil {
				cache = redis.NewClient(options)
			}
		}
		return NewTokenAuthenticator(config.AuthServiceUrl, cache)
	default:
		return &EmptyAuthenticator{}
	}
}

type EmptyAuthenticator struct{}

func (eauth *EmptyAuthenticator) Authenticate(req *http.Request) (*User, error) {
	return &User{Authorized: false}, nil
}

// TokenAuthenticator verifies the Authorization header against the auth
// service and keeps verified users in redis when a cache is given.
type TokenAuthenticator struct {
	AuthUrl string
	cache   *redis.Client
	client  *http.Client
}

func NewTokenAuthenticator(authUrl string, cache *redis.Client) *TokenAuthenticator {
	return &TokenAuthenticator{
		AuthUrl: strings.TrimRight(authUrl, "/"),
		cache:   cache,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func GetServiceToken() (string, error) {
	secret := os.Getenv("SERVICE_AUTH_SECRET")
	domain := os.Getenv("SERVICE_DOMAIN")

	if secret != "" && domain != "" {
		return signDomain(domain, secret), nil
	}

	return "", errors.New("SERVICE_AUTH_SECRET or SERVICE_DOMAIN not found")
}

func signDomain(domain string, secret string) string {
	key := sha1.New()
	key.Write([]byte("trood.signer" + secret))

	signature := hmac.New(sha1.New, key.Sum(nil))
	signature.Write([]byte(domain))

	return domain + ":" + base64.RawURLEncoding.EncodeToString(signature.Sum(nil))
}

// CheckServiceToken tells whether the token was signed with this service's secret.
func CheckServiceToken(token string) bool {
	secret := os.Getenv("SERVICE_AUTH_SECRET")
	parts := strings.SplitN(token, ":", 2)
	if secret == "" || len(parts) != 2 {
		return false
	}
	return hmac.Equal([]byte(signDomain(parts[0], secret)), []byte(token))
}

func splitHeader(header string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", NewError("Malformed Authorization header")
	}
	return parts[0], parts[1], nil
}

func (tauth *TokenAuthenticator) Authenticate(req *http.Request) (*User, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, NewError("Authorization header is missing")
	}

	kind, token, err := splitHeader(header)
	if err != nil {
		return nil, err
	}

	if kind == "Service" && CheckServiceToken(token) {
		return &User{Type: "service", Login: strings.SplitN(token, ":", 2)[0], Authorized: true}, nil
	}

	if user, err := tauth.getUserFromCache(req.Context(), token); err == nil {
		return user, nil
	}

	user, err := tauth.getUserFromAuthService(req.Context(), kind, token)
	if err != nil {
		return nil, NewError("Authorization failed")
	}
	tauth.storeUserInCache(req.Context(), token, user)
	return user, nil
}

func (tauth *TokenAuthenticator) getUserFromCache(ctx context.Context, token string) (*User, error) {
	if tauth.cache == nil {
		return nil, NewError("Cache is not enabled")
	}

	data, err := tauth.cache.Get(ctx, cacheKeyPrefix+token).Result()
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, err
	}
	user.Authorized = true
	return &user, nil
}

func (tauth *TokenAuthenticator) storeUserInCache(ctx context.Context, token string, user *User) {
	if tauth.cache == nil {
		return
	}
	if data, err := json.Marshal(user); err == nil {
		tauth.cache.Set(ctx, cacheKeyPrefix+token, data, cacheTTL)
	}
}

func (tauth *TokenAuthenticator) getUserFromAuthService(ctx context.Context, kind string, token string) (*User, error) {
	tokenType := "user"
	if kind == "Service" {
		tokenType = "service"
	}
	body, _ := json.Marshal(map[string]string{"type": tokenType, "token": token})

	authRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, tauth.AuthUrl+"/api/v1.0/verify-token/", bytes.NewBuffer(body))
	if err != nil {
		return nil, errors.Wrap(err, "building verify-token request")
	}
	if serviceToken, err := GetServiceToken(); err == nil {
		authRequest.Header.Add("Authorization", "Service "+serviceToken)
	}
	authRequest.Header.Add("Content-Type", "application/json")

	authResponse, err := tauth.client.Do(authRequest)
	if err != nil {
		return nil, errors.Wrap(err, "calling auth service")
	}
	defer authResponse.Body.Close()

	if authResponse.StatusCode != http.StatusOK {
		return nil, NewError(fmt.Sprintf("Auth service answered %d", authResponse.StatusCode))
	}

	user, err := tauth.FetchUser(authResponse.Body)
	if err != nil {
		return nil, err
	}
	user.Authorized = true
	return user, nil
}

func (tauth *TokenAuthenticator) FetchUser(buff io.Reader) (*User, error) {
	response := AuthResponse{}
	body, err := ioutil.ReadAll(buff)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "decoding auth service answer")
	}
	return &response.User, nil
}
