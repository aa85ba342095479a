package orders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bigbite/order-service/pkg/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// SignatureHeader carries the gateway's HMAC over "orderRef|paymentRef"
// on payment callbacks.
const SignatureHeader = "X-Payment-Signature"

type Handler struct {
	service *Service
	logger  *logrus.Logger
}

func NewHandler(service *Service, logger *logrus.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires every order endpoint onto the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/capture", h.CapturePayment).Methods("POST")
	router.HandleFunc("/orders/user/{userId}", h.ListUserOrders).Methods("GET")
	router.HandleFunc("/orders/{orderId}/payment-failure", h.CapturePaymentFailure).Methods("POST")
	router.HandleFunc("/orders/{orderId}/status", h.UpdateStatus).Methods("PUT")
	router.HandleFunc("/orders/{orderId}/cancel", h.CancelOrder).Methods("POST")
	router.HandleFunc("/orders/{orderId}/rating", h.RateOrder).Methods("POST")
	router.HandleFunc("/orders/{orderId}", h.GetOrder).Methods("GET")
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID    int64   `json:"user_id"`
		Amount    float64 `json:"amount"`
		OrderInfo struct {
			Restaurant int64   `json:"restaurant"`
			Food       []int64 `json:"food"`
			Email      string  `json:"email"`
		} `json:"order_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), CreateOrderRequest{
		UserID:       body.UserID,
		Amount:       body.Amount,
		RestaurantID: body.OrderInfo.Restaurant,
		FoodIDs:      body.OrderInfo.Food,
		Email:        body.OrderInfo.Email,
	})
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, models.APIResponse{
		Success: true,
		Message: "Order created successfully!",
		Data: map[string]interface{}{
			"id":       order.ID,
			"order_id": order.GatewayOrderID,
			"amount":   order.Amount,
			"receipt":  order.Receipt,
		},
	})
}

func (h *Handler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.OrderID == "" || body.PaymentID == "" {
		h.respondWithError(w, http.StatusBadRequest, "order_id and payment_id are required")
		return
	}

	err := h.service.CapturePayment(r.Context(), body.OrderID, body.PaymentID, r.Header.Get(SignatureHeader))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Payment captured successfully!",
	})
}

func (h *Handler) CapturePaymentFailure(w http.ResponseWriter, r *http.Request) {
	gatewayOrderID := mux.Vars(r)["orderId"]
	var body struct {
		PaymentID string `json:"payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.service.CapturePaymentFailure(r.Context(), gatewayOrderID, body.PaymentID, r.Header.Get(SignatureHeader))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Payment failure recorded",
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body struct {
		Status   int    `json:"status"`
		PickupBy *int64 `json:"pickup_by,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, models.OrderStatus(body.Status), body.PickupBy)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Order status updated!",
		Data:    order,
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body struct {
		PaymentID string  `json:"payment_id"`
		Amount    float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.CancelOrder(r.Context(), orderID, body.PaymentID, body.Amount)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Order cancelled successfully!",
		Data:    order,
	})
}

func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body struct {
		Ratings     int    `json:"ratings"`
		RatingsText string `json:"ratings_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RateOrder(r.Context(), orderID, body.Ratings, body.RatingsText); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Thanks for your feedback!",
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.Orders(r.Context())
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Orders fetched successfully!",
		Data:    orders,
	})
}

func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	orders, err := h.service.OrdersByUser(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Orders fetched successfully!",
		Data:    orders,
	})
}

// GetOrder resolves by the gateway order reference, which is what the
// payment flow hands back to clients.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.OrderByGatewayRef(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Order fetched successfully!",
		Data:    order,
	})
}

func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ErrInvalidSignature):
		h.respondWithError(w, http.StatusUnauthorized, "Invalid payment signature")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrAlreadyRated):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrRefundFailed), errors.Is(err, ErrGateway):
		h.logger.WithError(err).Error("Payment gateway failure")
		h.respondWithError(w, http.StatusBadGateway, "Payment gateway error")
	default:
		h.logger.WithError(err).Error("Order request failed")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, models.APIResponse{Success: false, Message: message})
}
