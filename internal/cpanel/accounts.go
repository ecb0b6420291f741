package cpanel

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Account is one hosted tenant, as reported by WHM listaccts. Fetched
// fresh on every scrape, never cached across scrapes.
type Account struct {
	User      string
	Domain    string
	IP        string
	Owner     string
	Plan      string
	Suspended bool
}

// EnumerationError wraps any failure of the account listing. Unlike
// per-source failures it aborts the whole scrape: without the account
// list there is nothing to report.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("account enumeration failed: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// ListAccounts fetches all hosted accounts via WHM listaccts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	data, err := c.WHM(ctx, "listaccts")
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}

	var payload struct {
		Acct []struct {
			User      string          `json:"user"`
			Domain    string          `json:"domain"`
			IP        string          `json:"ip"`
			Owner     string          `json:"owner"`
			Plan      string          `json:"plan"`
			Suspended json.RawMessage `json:"suspended"`
		} `json:"acct"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &EnumerationError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	accounts := make([]Account, 0, len(payload.Acct))
	for _, a := range payload.Acct {
		if a.User == "" {
			continue
		}
		suspended, _ := AsFloat(a.Suspended)
		accounts = append(accounts, Account{
			User:      a.User,
			Domain:    a.Domain,
			IP:        a.IP,
			Owner:     a.Owner,
			Plan:      a.Plan,
			Suspended: suspended != 0,
		})
	}
	if len(accounts) == 0 {
		c.logger.Warn("listaccts returned no accounts", zap.String("tool", string(ToolWHMAPI)))
	}
	return accounts, nil
}
