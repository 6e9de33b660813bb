package handlers

import (
	"errors"
	"net/http"

	"service_orders/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorStatus maps engine errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	var (
		validation  *models.ValidationError
		amount      *models.InvalidAmountError
		reason      *models.MissingReasonError
		notFound    *models.NotFoundError
		transition  *models.InvalidTransitionError
		conflict    *models.ConcurrencyConflictError
		payment     *models.PaymentRequiredError
		overpayment *models.OverpaymentError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &amount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.As(err, &reason):
		return http.StatusBadRequest, "missing_reason"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &transition):
		return http.StatusConflict, "invalid_transition"
	case errors.As(err, &conflict):
		return http.StatusConflict, "concurrency_conflict"
	case errors.As(err, &payment):
		return http.StatusPaymentRequired, "payment_required"
	case errors.As(err, &overpayment):
		return http.StatusUnprocessableEntity, "overpayment"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *APIHandler) errorHandler(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.Error(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("engine operation failed")
		var recon *models.ReconciliationError
		if errors.As(err, &recon) {
			code = "reconciliation_failed"
		} else {
			message = "internal server error"
		}
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "bad_request"})
}
