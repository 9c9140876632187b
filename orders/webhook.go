package orders

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, keyed with the shared webhook secret.
const SignatureHeader = "X-Webhook-Signature"

// WebhookPayload is the sole wire format the provider pushes on status
// changes.
type WebhookPayload struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// WebhookHandler accepts provider status pushes and feeds them into the
// reconciler. With an empty secret, signature verification is skipped for
// providers that cannot sign their callbacks.
type WebhookHandler struct {
	reconciler *Reconciler
	secret     string
	validate   *validator.Validate
	logger     *logrus.Logger
}

// NewWebhookHandler creates a webhook handler.
//
// Parameters:
// - reconciler: the reconciler receiving status pushes.
// - secret: the shared HMAC secret; empty disables verification.
// - logger: the logger for logging purposes.
//
// Returns:
// - *WebhookHandler: a new WebhookHandler instance.
func NewWebhookHandler(reconciler *Reconciler, secret string, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		secret:     secret,
		validate:   validator.New(),
		logger:     logger,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.verifySignature(body, r.Header.Get(SignatureHeader)); err != nil {
		h.logger.WithError(err).Warn("Rejected webhook with bad signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	payload, err := parsePayload(body, h.validate)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"exchangeId": payload.ID,
		"status":     payload.Status,
	}).Info("Webhook received")

	if err := h.reconciler.HandleProviderStatus(r.Context(), payload.ID, payload.Status); err != nil {
		if errors.Is(err, commonerrors.ErrOrderNotFound) {
			http.Error(w, "unknown reference id", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Webhook reconciliation failed")
		http.Error(w, "reconciliation failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) error {
	if h.secret == "" {
		return nil
	}
	if signature == "" {
		return errors.Wrap(commonerrors.ErrBadSignature, "missing signature header")
	}

	expected := computeSignature(h.secret, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return commonerrors.ErrBadSignature
	}
	return nil
}

func parsePayload(body []byte, validate *validator.Validate) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(commonerrors.ErrInvalidWebhook, err.Error())
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, errors.Wrap(commonerrors.ErrInvalidWebhook, err.Error())
	}
	return &payload, nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return strings.ToLower(hex.EncodeToString(mac.Sum(nil)))
}
