package cj

import (
	"encoding/json"

	"github.com/storefront/backend/internal/domain/supplier"
)

// envelope is the supplier's uniform response wrapper. Endpoint data is
// decoded lazily from Data by each caller.
type envelope struct {
	Code    int             `json:"code"`
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// IsSuccess reports whether the supplier accepted the request
func (e *envelope) IsSuccess() bool {
	return e.Result && e.Code == 200
}

// accessTokenData is the credential-refresh payload
type accessTokenData struct {
	AccessToken       string `json:"accessToken"`
	AccessTokenExpiry string `json:"accessTokenExpiryDate"`
}

// settingsData is the account settings payload; QPSLimit is the
// advertised requests-per-second quota.
type settingsData struct {
	AccountName string  `json:"accountName"`
	QPSLimit    float64 `json:"qpsLimit"`
}

// reviewListData wraps the paginated review list
type reviewListData struct {
	Total int               `json:"total"`
	List  []supplier.Review `json:"list"`
}

// categoryListData wraps the nested category tree
type categoryListData struct {
	List []supplier.CategoryNode `json:"list"`
}

// warehouseListData wraps the warehouse/region list
type warehouseListData struct {
	List []supplier.Warehouse `json:"list"`
}
