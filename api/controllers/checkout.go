package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cart-service/api/responses"
	"github.com/angelmondragon/cart-service/internal/checkout"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
)

// CheckoutStart freezes the cart named by X-Cart-ID for payment.
func CheckoutStart(machine checkout.StateMachine, logg *logger.Logger) http.HandlerFunc {
	return checkoutStep(machine, logg, checkout.StateMachine.Start, http.StatusCreated)
}

// CheckoutComplete finalises a started checkout.
func CheckoutComplete(machine checkout.StateMachine, logg *logger.Logger) http.HandlerFunc {
	return checkoutStep(machine, logg, checkout.StateMachine.Complete, http.StatusOK)
}

type checkoutFunc = func(checkout.StateMachine, context.Context, string) (*checkout.Snapshot, error)

func checkoutStep(machine checkout.StateMachine, logg *logger.Logger, step checkoutFunc, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if machine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		cartID, err := cartIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := step(machine, r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, status, newCheckoutResponse(snap))
	}
}
