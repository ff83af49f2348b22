package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/webitel/im-rpc-service/internal/adapter/blob"
	"github.com/webitel/im-rpc-service/internal/domain/model"
)

// Decoder projects response envelopes into caller types, pulling spilled
// payloads back from the blob side-channel.
type Decoder struct {
	blobs      blob.Store
	logger     *slog.Logger
	tempFolder string
	autoDelete bool
}

func NewDecoder(blobs blob.Store, logger *slog.Logger, tempFolder string, autoDelete bool) *Decoder {
	return &Decoder{
		blobs:      blobs,
		logger:     logger,
		tempFolder: tempFolder,
		autoDelete: autoDelete,
	}
}

// As decodes an envelope into T. Null yields a nil pointer; an Error envelope
// yields a ClientError; a blob reference is read (and, for temp-folder blobs
// with cleanup enabled, deleted) before decoding. The blob read honors the
// caller's deadline.
func As[T any](ctx context.Context, d *Decoder, resp model.Response) (*T, error) {
	switch resp.ResponseType {
	case model.ResponseNull:
		return nil, nil

	case model.ResponseError:
		d.logger.Error("peer returned error", "message", resp.ErrorMessage)
		return nil, &model.ClientError{Message: resp.ErrorMessage}

	case model.ResponseJSON:
		return decodeJSON[T](resp.JsonData)

	case model.ResponseFile:
		data, err := d.blobs.Read(ctx, resp.FilePath)
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrBlobMissing, resp.FilePath)
		}
		if err != nil {
			return nil, err
		}
		d.cleanup(ctx, resp.FilePath)
		return decodeJSON[T](data)

	default:
		return nil, fmt.Errorf("%w: envelope tag %q", model.ErrDecodeFailed, resp.ResponseType)
	}
}

// cleanup enforces read-once semantics for blobs living in the temp folder.
// A failed delete is logged, never surfaced.
func (d *Decoder) cleanup(ctx context.Context, path string) {
	if !d.autoDelete || !strings.HasPrefix(path, d.tempFolder+"/") {
		return
	}
	if _, err := d.blobs.Delete(ctx, path); err != nil {
		d.logger.Warn("temp blob delete failed", "path", path, "err", err)
	}
}

// decodeJSON accepts the payload as the value itself, as a JSON string that
// embeds JSON, or as a scalar. Field names match case-insensitively.
func decodeJSON[T any](raw []byte) (*T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	out := new(T)
	directErr := json.Unmarshal(raw, out)
	if directErr == nil {
		return out, nil
	}

	// A peer may double-encode: the payload is a JSON string whose content is
	// the actual JSON document.
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err == nil {
		nested := new(T)
		if err := json.Unmarshal([]byte(embedded), nested); err == nil {
			return nested, nil
		}
	}

	return nil, fmt.Errorf("%w: %v", model.ErrDecodeFailed, directErr)
}
