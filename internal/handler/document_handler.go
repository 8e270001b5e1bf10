package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
	"github.com/nashmi-edu/referral-api/pkg/response"
)

type tokenParser interface {
	Parse(token string, allowExpired bool) (documentID, relPath string, expiresAt time.Time, err error)
}

type documentOpener interface {
	Open(filename string) (*os.File, error)
}

// DocumentHandler serves stored referral documents through signed URLs. The
// token itself is the authorization; these routes carry no JWT middleware.
type DocumentHandler struct {
	signer tokenParser
	store  documentOpener
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(signer tokenParser, store documentOpener) *DocumentHandler {
	return &DocumentHandler{signer: signer, store: store}
}

// Download godoc
// @Summary Download a generated document by signed token
// @Tags Documents
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /documents/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"))
		return
	}
	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(relPath))
	c.Header("Content-Type", "application/pdf")
	http.ServeContent(c.Writer, c.Request, filepath.Base(relPath), time.Time{}, file)
}
