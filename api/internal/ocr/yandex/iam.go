package yandex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultIAMURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

type IamClient struct {
	rc     *resty.Client
	url    string
	oauth  string
	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewIamClient(oauth string) *IamClient {
	return &IamClient{
		rc:    resty.New().SetTimeout(20 * time.Second),
		url:   defaultIAMURL,
		oauth: oauth,
	}
}

// Token returns a cached IAM token, exchanging the OAuth token when the
// cached one is missing or about to expire.
func (c *IamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry.Add(-time.Minute)) {
		return c.token, nil
	}

	var out struct {
		IamToken string `json:"iamToken"`
	}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(map[string]string{"yandexPassportOauthToken": c.oauth}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("iam %d", resp.StatusCode())
	}
	if out.IamToken == "" {
		return "", fmt.Errorf("iam: empty token")
	}
	c.token = out.IamToken
	c.expiry = time.Now().Add(11 * time.Hour)
	return c.token, nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (c *IamClient) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
