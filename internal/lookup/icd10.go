package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// ICD10Client queries the NLM Clinical Tables ICD-10-CM search API
type ICD10Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewICD10Client creates a client for baseURL (e.g. https://clinicaltables.nlm.nih.gov/api)
func NewICD10Client(baseURL string, httpClient *http.Client) *ICD10Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ICD10Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// System returns SystemICD10
func (c *ICD10Client) System() string {
	return SystemICD10
}

// Lookup returns the best-ranked ICD-10-CM code for a condition name.
// The response is [total, codes, extra, [[code, name], ...]]
func (c *ICD10Client) Lookup(ctx context.Context, term string) (string, bool, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", false, nil
	}

	q := url.Values{
		"sf":      {"code,name"},
		"terms":   {term},
		"maxList": {"1"},
	}
	u := c.baseURL + "/icd10cm/v3/search?" + q.Encode()

	var raw []json.RawMessage
	if err := getJSON(ctx, c.httpClient, u, &raw); err != nil {
		return "", false, eris.Wrapf(err, "icd10 lookup %q", term)
	}
	if len(raw) < 4 {
		return "", false, nil
	}

	var rows [][]string
	if err := json.Unmarshal(raw[3], &rows); err != nil {
		return "", false, eris.Wrapf(err, "icd10 lookup %q: decode rows", term)
	}
	if len(rows) == 0 || len(rows[0]) == 0 || strings.TrimSpace(rows[0][0]) == "" {
		return "", false, nil
	}
	return strings.TrimSpace(rows[0][0]), true, nil
}
