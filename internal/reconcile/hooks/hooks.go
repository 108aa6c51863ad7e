package hooks

import (
	"context"
	"fmt"

	"github.com/smallbiznis/paygate/internal/config"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	"github.com/smallbiznis/paygate/internal/providers/cart"
	"github.com/smallbiznis/paygate/internal/providers/email"
	reconciledomain "github.com/smallbiznis/paygate/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Email email.Provider
	Cart  cart.Store
}

// Hooks performs the post-confirmation side effects: confirmation mail,
// cart clearing, shopping-session order record. Every step is best effort;
// a failed side effect is logged and never unwinds a settled payment.
type Hooks struct {
	log   *zap.Logger
	cfg   config.Config
	email email.Provider
	cart  cart.Store
}

func New(p Params) reconciledomain.CompletionHooks {
	return &Hooks{
		log:   p.Log.Named("reconcile.hooks"),
		cfg:   p.Cfg,
		email: p.Email,
		cart:  p.Cart,
	}
}

func (h *Hooks) OnPaymentConfirmed(ctx context.Context, o *orderdomain.Order) {
	if o.Email != "" {
		subject := fmt.Sprintf("[%s] ご注文ありがとうございます (注文番号: %d)", h.cfg.AppName, o.ID)
		if err := h.email.Send(ctx, []string{o.Email}, subject, confirmationBody(o)); err != nil {
			h.log.Error("confirmation mail failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}

	if err := h.cart.Clear(ctx, o.ID); err != nil {
		h.log.Error("cart clear failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	if err := h.cart.RecordOrder(ctx, o.ID); err != nil {
		h.log.Error("session order record failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func confirmationBody(o *orderdomain.Order) string {
	return fmt.Sprintf(
		`<p>%s %s 様</p>
<p>ご注文の決済が完了しました。</p>
<p>注文番号: %d<br>お支払い金額: %d %s</p>`,
		o.LastName, o.FirstName, o.ID, o.PaymentTotal, o.Currency,
	)
}
