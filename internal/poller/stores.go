package poller

import (
	"log/slog"

	"github.com/rickgao/bitaek-watch/internal/model"
)

// RecordsStore is a polling store whose method returns a list of records.
type RecordsStore = Store[model.Records]

// NewRecordsStore creates a store that starts out holding an empty list.
func NewRecordsStore(cfg Config, caller Caller, logger *slog.Logger, opts ...Option) (*RecordsStore, error) {
	return New(cfg, caller, model.EmptyRecords(), logger, opts...)
}

// NewAccountStore polls getAccounts once per second.
func NewAccountStore(caller Caller, logger *slog.Logger, opts ...Option) (*RecordsStore, error) {
	return NewRecordsStore(DefaultConfig(model.MethodGetAccounts), caller, logger, opts...)
}

// NewBlockStore polls getBlocks every 100ms.
func NewBlockStore(caller Caller, logger *slog.Logger, opts ...Option) (*RecordsStore, error) {
	return NewRecordsStore(DefaultConfig(model.MethodGetBlocks), caller, logger, opts...)
}
