package handler

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/jmerrifield20/keygate/internal/issuance"
	"github.com/jmerrifield20/keygate/internal/ledger"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// isoMillis matches JavaScript's Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// issuanceSvc is the interface expected by KeyHandler, satisfied by *issuance.Service.
type issuanceSvc interface {
	Complete(ctx context.Context, hash string) (*issuance.Result, error)
	List(ctx context.Context) ([]*ledger.Record, error)
}

// KeyHandler serves the landing page, the Linkvertise completion callback and
// the admin listing.
type KeyHandler struct {
	svc      issuanceSvc
	adminKey string
	logger   *zap.Logger
}

// NewKeyHandler creates a KeyHandler. An empty adminKey disables /admin.
func NewKeyHandler(svc issuanceSvc, adminKey string, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{svc: svc, adminKey: adminKey, logger: logger}
}

// Register mounts the routes on the given router.
func (h *KeyHandler) Register(r gin.IRoutes) {
	r.GET("/", h.Index)
	r.GET("/linkvertise/complete", h.Complete)
	r.GET("/admin", h.Admin)
}

// Index handles GET / — explains which redirect URL to configure.
func (h *KeyHandler) Index(c *gin.Context) {
	h.html(c, http.StatusOK, "index.html", gin.H{
		"CallbackURL": requestScheme(c) + "://" + c.Request.Host + "/linkvertise/complete?hash=XYZ",
	})
}

// Complete handles GET /linkvertise/complete?hash=...
func (h *KeyHandler) Complete(c *gin.Context) {
	res, err := h.svc.Complete(c.Request.Context(), c.Query("hash"))
	if err != nil {
		h.logger.Error("complete linkvertise", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal error.")
		return
	}

	c.Header("Cache-Control", "no-store")
	switch res.Kind {
	case issuance.KindInvalidInput:
		c.String(http.StatusBadRequest, "Missing hash.")
	case issuance.KindAlreadyIssued:
		h.html(c, http.StatusOK, "used.html", nil)
	case issuance.KindRejected:
		h.html(c, http.StatusBadRequest, "rejected.html", nil)
	case issuance.KindIssued:
		h.html(c, http.StatusOK, "issued.html", gin.H{"Credential": res.Credential})
	default:
		h.logger.Error("unknown issuance result", zap.String("kind", string(res.Kind)))
		c.String(http.StatusInternalServerError, "Internal error.")
	}
}

// adminEntry is one element of the /admin response.
type adminEntry struct {
	Hash    string `json:"hash"`
	Created string `json:"created"`
	KeyHash string `json:"keyHash"`
}

// Admin handles GET /admin?key=... — lists every issuance record.
func (h *KeyHandler) Admin(c *gin.Context) {
	if !h.authorized(c.Query("key")) {
		h.logger.Warn("admin access denied", zap.String("client_ip", c.ClientIP()))
		c.String(http.StatusForbidden, "Forbidden.")
		return
	}

	recs, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list issuance records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}

	out := make([]adminEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, adminEntry{
			Hash:    r.Hash,
			Created: r.IssuedAt.UTC().Format(isoMillis),
			KeyHash: r.KeyDigest,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *KeyHandler) authorized(provided string) bool {
	if h.adminKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminKey)) == 1
}

func (h *KeyHandler) html(c *gin.Context, status int, name string, data any) {
	c.Render(status, render.HTML{Template: pages, Name: name, Data: data})
}

func requestScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
