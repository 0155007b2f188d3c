package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cart-service/api/middleware"
	"github.com/angelmondragon/cart-service/api/responses"
	"github.com/angelmondragon/cart-service/api/validators"
	"github.com/angelmondragon/cart-service/internal/cart"
	"github.com/angelmondragon/cart-service/internal/merge"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
)

// CartFetch returns the cart named by X-Cart-ID. Absent carts come back empty.
func CartFetch(store cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		cartID, err := cartIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := store.Get(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartUpsertItem sets the quantity of one product. Quantity 0 removes it.
func CartUpsertItem(store cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		cartID, err := cartIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload upsertItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := store.UpsertItem(r.Context(), cart.UpsertItemInput{
			CartID:    cartID,
			UserID:    middleware.UserIDFromContext(r.Context()),
			ProductID: strings.TrimSpace(payload.ProductID),
			Quantity:  *payload.Quantity,
			UnitPrice: strings.TrimSpace(payload.UnitPrice),
			Variant:   strings.TrimSpace(payload.Variant),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartRemoveItem deletes one product line. Removing an absent product is a no-op.
func CartRemoveItem(store cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		cartID, err := cartIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := store.RemoveItem(r.Context(), cartID, chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartClear deletes the whole cart.
func CartClear(store cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		cartID, err := cartIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cleared, err := store.Clear(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, clearResponse{CartID: cartID, Cleared: cleared})
	}
}

// CartMerge folds the guest cart into the signed-in shopper's cart.
func CartMerge(coordinator merge.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merge coordinator unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
			return
		}

		var payload mergeCartsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := coordinator.MergeWith(r.Context(),
			strings.TrimSpace(payload.GuestCartID),
			strings.TrimSpace(payload.UserCartID),
			userID,
			merge.Resolution(payload.ConflictResolution),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newMergeResponse(res))
	}
}

func cartIDFromRequest(r *http.Request) (string, error) {
	cartID := strings.TrimSpace(r.Header.Get(middleware.CartIDHeader))
	if cartID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart id is required").
			WithDetails(map[string]any{"header": middleware.CartIDHeader})
	}
	if err := cart.ValidateCartID(cartID); err != nil {
		return "", err
	}
	return cartID, nil
}
