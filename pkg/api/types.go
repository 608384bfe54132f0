// Package api holds the JSON wire types exchanged with the keygate server.
package api

import "time"

type ValidateKeyReq struct {
	Key string `json:"key"`
}

type ValidateKeyRsp struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type ChatReq struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	LicenseKey  string   `json:"license_key"`
}

type ChatRsp struct {
	Reply string `json:"reply"`
}

type GenerateKeyReq struct {
	PlanType string `json:"plan_type"`
}

type GenerateKeyRsp struct {
	Key string `json:"key"`
}

// KeyReq addresses a single key for deletion or deactivation.
type KeyReq struct {
	Key string `json:"key"`
}

type KeyInfo struct {
	Key       string     `json:"key"`
	Plan      string     `json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `json:"is_active"`
}

type SuccessRsp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type VersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

type ReadinessRsp struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
