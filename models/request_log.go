package models

import (
	"time"
)

// RequestLog is one row of the request_logs table
type RequestLog struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RequestID   string    `json:"requestId" gorm:"index"`
	Method      string    `json:"method" gorm:"type:varchar(10)"`
	Path        string    `json:"path" gorm:"index"`
	StatusCode  int       `json:"statusCode" gorm:"index"`
	LatencyMs   int64     `json:"latencyMs"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"userAgent,omitempty"`
	UserID      *uint     `json:"userId,omitempty"`
	Role        string    `json:"role,omitempty"`
	Body        string    `json:"body,omitempty"`
	Query       string    `json:"query,omitempty"`
	Level       string    `json:"level" gorm:"type:varchar(10);index"`
	Environment string    `json:"environment"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
}

// Log levels
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
	LogLevelSuccess = "success"
)

// Environments
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentTesting     = "testing"
)

// LogStats summarizes request_logs over a window
type LogStats struct {
	Since            time.Time        `json:"since"`
	ByLevel          map[string]int64 `json:"byLevel"`
	ByMethod         map[string]int64 `json:"byMethod"`
	ByStatusClass    map[string]int64 `json:"byStatusClass"`
	TopIPs           []IPCount        `json:"topIps"`
	AverageLatencyMs float64          `json:"averageLatencyMs"`
}

type IPCount struct {
	IP       string `json:"ip"`
	Requests int64  `json:"requests"`
}
