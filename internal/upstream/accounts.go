package upstream

import (
	"context"

	"google.golang.org/api/mybusinessaccountmanagement/v1"
)

// TypeLocationGroup is the account type that groups business locations.
const TypeLocationGroup = "LOCATION_GROUP"

// ListAccounts returns every account the caller can access.
func (c *Client) ListAccounts(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
	resp, err := c.accounts.Accounts.List().Context(ctx).Do()
	if err != nil {
		return nil, wrapError("accounts.list", err)
	}
	return resp.Accounts, nil
}

// CreateLocationGroup creates a location group owned by the configured
// primary account.
func (c *Client) CreateLocationGroup(ctx context.Context, groupName string) (*mybusinessaccountmanagement.Account, error) {
	account := &mybusinessaccountmanagement.Account{
		AccountName:  groupName,
		PrimaryOwner: accountName(c.opts.AccountID),
		Type:         TypeLocationGroup,
	}
	created, err := c.accounts.Accounts.Create(account).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("accounts.create", err)
	}
	return created, nil
}

// ListLocationGroups returns the caller's accounts filtered down to
// location groups. The filter runs here rather than upstream so the result
// is always a strict subset of ListAccounts.
func (c *Client) ListLocationGroups(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]*mybusinessaccountmanagement.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Type == TypeLocationGroup {
			groups = append(groups, account)
		}
	}
	return groups, nil
}
