package driven

import (
	"context"

	"github.com/lnbridge/xerosync/internal/domain/model"
)

// SettingsStore persists the installation-wide Xero app settings: client
// id/secret and the organisation's tax type codes.
type SettingsStore interface {
	// Get retrieves the settings. Returns zero-value settings when none have
	// been saved yet.
	Get(ctx context.Context) (*model.Settings, error)

	// Put stores or replaces the settings.
	Put(ctx context.Context, settings model.Settings) error
}
