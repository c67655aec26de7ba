package charteye

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// OrderCompleted is the processor state of a paid order.
const OrderCompleted = "COMPLETED"

// PaymentsEnabled reports whether a payment provider is configured.
func (c *Core) PaymentsEnabled() bool {
	return c.payments != nil
}

// CreatePaymentLink starts a checkout for the lifetime upgrade.
func (c *Core) CreatePaymentLink(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", NewError(ErrCodeUnauthorized, "Unauthorized")
	}
	if c.payments == nil {
		return "", NewError(ErrCodeUnsupported, "Payments are not configured")
	}
	link, err := c.payments.CreatePaymentLink(ctx, userID)
	if err != nil {
		c.logger.Error("create payment link failed", "user_id", userID, "err", err)
		return "", WrapError(ErrCodePayment, "Failed to create payment link", err)
	}
	c.logger.Info("payment link created", "user_id", userID)
	return link, nil
}

// VerifyPayment upgrades userID to Premium when orderID is a completed order. An order
// that was already applied is accepted again without further changes.
func (c *Core) VerifyPayment(ctx context.Context, userID, orderID string) (*UserProfile, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" {
		return nil, NewError(ErrCodeUnauthorized, "Unauthorized")
	}
	if orderID == "" {
		return nil, NewError(ErrCodeInvalidInput, "Missing orderId")
	}
	if c.payments == nil {
		return nil, NewError(ErrCodeUnsupported, "Payments are not configured")
	}

	owner, err := c.verifiedOrderOwner(orderID)
	if err != nil {
		return nil, err
	}
	if owner != "" {
		if owner != userID {
			return nil, NewError(ErrCodeDuplicate, "Order already applied to another account")
		}
		return c.GetUserProfile(userID)
	}

	state, err := c.payments.OrderState(ctx, orderID)
	if err != nil {
		c.logger.Error("fetch order failed", "order_id", orderID, "err", err)
		return nil, WrapError(ErrCodePayment, "Failed to verify payment", err)
	}
	if state != OrderCompleted {
		c.logger.Warn("payment not completed", "order_id", orderID, "state", state)
		return nil, NewError(ErrCodeValidation, "Payment verification failed")
	}

	if err := c.ensureProfile(userID); err != nil {
		return nil, err
	}
	tx, err := c.db.Begin()
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "begin payment transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	result, err := tx.Exec(
		`INSERT OR IGNORE INTO payment_verifications (order_id, user_id, state, verified_at) VALUES (?, ?, ?, ?)`,
		orderID, userID, state, c.timestamp(),
	)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "record payment", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "record payment", err)
	}
	if inserted == 0 {
		var owner string
		if err := tx.QueryRow(`SELECT user_id FROM payment_verifications WHERE order_id = ?`, orderID).Scan(&owner); err != nil {
			return nil, WrapError(ErrCodeDatabase, "load payment verification", err)
		}
		if owner != userID {
			return nil, NewError(ErrCodeDuplicate, "Order already applied to another account")
		}
	} else {
		if _, err := tx.Exec(
			`UPDATE user_profiles SET account_status = ?, updated_at = ? WHERE user_id = ? AND account_status != ?`,
			string(AccountPremium), c.timestamp(), userID, string(AccountPremium),
		); err != nil {
			return nil, WrapError(ErrCodeDatabase, "upgrade profile", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "commit payment", err)
	}
	c.logger.Info("payment verified", "user_id", userID, "order_id", orderID)
	return c.loadProfile(userID)
}

func (c *Core) verifiedOrderOwner(orderID string) (string, error) {
	var owner string
	err := c.db.QueryRow(`SELECT user_id FROM payment_verifications WHERE order_id = ?`, orderID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", WrapError(ErrCodeDatabase, "load payment verification", err)
	}
	return owner, nil
}
