package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/types"
)

// WriteJSON writes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	// Headers are gone by now; a failed encode can only truncate the body.
	_ = json.NewEncoder(w).Encode(data)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteStatus writes a bodiless response. Webhook replies use it.
func WriteStatus(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// WriteError renders err as an ErrorEnvelope. Untyped errors become
// INTERNAL_ERROR and their text stays in the logs.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	if logg != nil {
		logError(ctx, logg, err, typed, meta)
	}
	WriteJSON(w, meta.HTTPStatus, envelope(typed, meta))
}

func envelope(typed *pkgerrors.Error, meta pkgerrors.Metadata) types.ErrorEnvelope {
	out := types.ErrorEnvelope{
		Error: meta.PublicMessage,
		Code:  string(typed.Code()),
	}
	if meta.ExposeMessage && typed.Message() != "" {
		out.Error = typed.Message()
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return out
}

func logError(ctx context.Context, logg *logger.Logger, err error, typed *pkgerrors.Error, meta pkgerrors.Metadata) {
	fields := pkgerrors.Diagnose(err).Fields()
	fields["status"] = meta.HTTPStatus
	if details, ok := typed.Details().(map[string]any); ok {
		if orderID, ok := details["order_id"]; ok {
			fields["order_id"] = orderID
		}
	}

	ctx = logg.WithFields(ctx, fields)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.error")
}
