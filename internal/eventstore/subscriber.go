package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
)

// Subscriber returns an afterEmit tap that records every emitted manifest.
func Subscriber(store Store, logger *slog.Logger) hooks.AfterEmitFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e hooks.Emitted) error {
		hash, err := e.Manifest.Hash()
		if err != nil {
			return ErrAppendFailed.Wrap(err).WithContext("pass_id", e.PassID)
		}
		r := Record{
			PassID:     e.PassID,
			FileName:   e.FileName,
			OutputPath: e.OutputPath,
			Hash:       hash,
			Entries:    e.Manifest.Len(),
			Complete:   e.Complete,
			Members:    e.Members,
			Payload:    e.Bytes,
		}
		if err := store.Append(ctx, r); err != nil {
			logger.Error("Failed to record manifest history",
				logfields.PassID(e.PassID),
				logfields.ManifestFile(e.OutputPath),
				logfields.Error(err))
			return err
		}
		logger.Debug("Recorded manifest history", logfields.PassID(e.PassID), logfields.Entries(r.Entries))
		return nil
	}
}
