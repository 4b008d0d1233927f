package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ntfy publishes to an ntfy topic URL (https://ntfy.sh/<topic> or a
// self-hosted server). The title goes in the Title header, the text is
// the body.
type Ntfy struct {
	URL      string
	Token    string // optional bearer token for protected topics
	Priority string // optional, e.g. "high"
	Client   *http.Client
}

func NewNtfy(url, token string) *Ntfy {
	return &Ntfy{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Ntfy) Name() string { return "ntfy" }

func (n *Ntfy) Send(ctx context.Context, title, text string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, strings.NewReader(text))
	if err != nil {
		return err
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", "warning")
	if n.Priority != "" {
		req.Header.Set("Priority", n.Priority)
	}
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ntfy returned %s", resp.Status)
	}
	return nil
}
