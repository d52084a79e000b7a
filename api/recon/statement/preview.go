package statement

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	api "LedgerCorpSuite/api"
	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
)

// formatFromFilename maps an upload's extension to a registered format key.
func formatFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return constants.FormatDelimited
	case ".ofx", ".qfx":
		return constants.FormatInterchange
	case ".xlsx":
		return constants.FormatXLSX
	case ".xls":
		return constants.FormatXLS
	}
	return ""
}

// PreviewStatementHandler parses an uploaded statement and returns the
// normalized rows plus per-row errors WITHOUT touching the transaction store.
// The parsed batch is staged under a batch id so the confirm step imports
// exactly what the operator approved.
func PreviewStatementHandler(pool *pgxpool.Pool, reg *Registry, gate auth.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := api.GetUserIDFromCtx(ctx)
		tenantID := api.GetTenantIDFromCtx(ctx)

		if !gate.Can(userID, "recon:preview", "statement") {
			api.RespondWithReconError(w, reconerr.Forbidden(constants.ErrUnauthorized))
			return
		}

		if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileUploadFailed)
			return
		}
		accountID := r.FormValue("account_id")
		if accountID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrAccountRequired)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "Missing 'file' field: "+err.Error())
			return
		}
		defer file.Close()

		format := r.FormValue("format")
		if format == "" {
			format = formatFromFilename(header.Filename)
		}
		adapter, aerr := reg.Get(format)
		if aerr != nil {
			api.RespondWithReconError(w, aerr)
			return
		}

		rows, rowErrs, perr := adapter.Parse(file)
		if perr != nil {
			api.RespondWithReconError(w, perr)
			return
		}

		batchID := uuid.New().String()
		if len(rows) > 0 {
			if serr := StageRows(ctx, pool, tenantID, accountID, batchID, rows); serr != nil {
				api.RespondWithReconError(w, serr)
				return
			}
		}

		api.LogInfo("statement preview: %d rows, %d row errors (tenant %s, account %s)", len(rows), len(rowErrs), tenantID, accountID)
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		writeJSON(w, map[string]interface{}{
			"success":  true,
			"batch_id": batchID,
			"format":   format,
			"count":    len(rows),
			"rows":     rows,
			"errors":   rowErrorsPayload(rowErrs),
		})
	}
}

// FormatsHandler lists the registered statement formats.
func FormatsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
		writeJSON(w, map[string]interface{}{
			"success": true,
			"formats": reg.Formats(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	json.NewEncoder(w).Encode(v)
}

// rowErrorsPayload keeps the errors list non-nil so callers always see [].
func rowErrorsPayload(errs []RowError) []RowError {
	if errs == nil {
		return []RowError{}
	}
	return errs
}
