package lookup

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// RxNormClient queries the NLM RxNav REST API for RxCUIs
type RxNormClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRxNormClient creates a client for baseURL (e.g. https://rxnav.nlm.nih.gov/REST)
func NewRxNormClient(baseURL string, httpClient *http.Client) *RxNormClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RxNormClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type rxcuiResponse struct {
	IDGroup struct {
		Name     string   `json:"name"`
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

// System returns SystemRxNorm
func (c *RxNormClient) System() string {
	return SystemRxNorm
}

// Lookup returns the first RxCUI for a medication name
func (c *RxNormClient) Lookup(ctx context.Context, term string) (string, bool, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", false, nil
	}

	u := c.baseURL + "/rxcui.json?" + url.Values{"name": {term}}.Encode()

	var resp rxcuiResponse
	if err := getJSON(ctx, c.httpClient, u, &resp); err != nil {
		return "", false, eris.Wrapf(err, "rxnorm lookup %q", term)
	}

	for _, id := range resp.IDGroup.RxNormID {
		if id = strings.TrimSpace(id); id != "" {
			return id, true, nil
		}
	}
	return "", false, nil
}
