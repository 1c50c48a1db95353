package esign

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DocumentClient fetches envelope documents from the e-signature REST API.
type DocumentClient struct {
	baseURL    string
	accountID  string
	httpClient *http.Client
}

// NewDocumentClient constructs a DocumentClient for one account. baseURL is
// the REST root, e.g. "https://demo.docusign.net/restapi".
func NewDocumentClient(baseURL, accountID string, timeout time.Duration) *DocumentClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DocumentClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetCombinedDocument downloads the envelope's combined PDF. The access
// token comes from the caller so token acquisition failures keep their own
// classification.
func (c *DocumentClient) GetCombinedDocument(ctx context.Context, accessToken, envelopeID string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("document client not configured")
	}

	endpoint := fmt.Sprintf("%s/v2.1/accounts/%s/envelopes/%s/documents/combined",
		c.baseURL, url.PathEscape(c.accountID), url.PathEscape(envelopeID))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("document response status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}
	return data, nil
}
