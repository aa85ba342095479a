package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bigbite/order-service/pkg/models"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Postgres persists orders, users, catalog data and notifications.
// Lookups return (nil, nil) on missing rows; conditional updates return
// whether the row was changed, which callers use to detect races and
// replays without taking locks.
type Postgres struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgres(db *sql.DB, logger *logrus.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Open connects, waits for the database to accept connections and
// bootstraps the schema.
func Open(dsn string, logger *logrus.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database never became ready: %w", err)
	}

	store := NewPostgres(db, logger)
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Ping() error {
	return p.db.Ping()
}

func (p *Postgres) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			gateway_order_id VARCHAR(255) NOT NULL UNIQUE,
			receipt VARCHAR(255) NOT NULL,
			payment_id VARCHAR(255) NOT NULL DEFAULT '',
			amount DECIMAL(10,2) NOT NULL,
			delivery_fee DECIMAL(10,2) NOT NULL DEFAULT 0,
			restaurant_id BIGINT NOT NULL,
			food_ids JSONB NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			order_status SMALLINT NOT NULL,
			pickup_by BIGINT,
			pickup_time TIMESTAMPTZ,
			delivered_time TIMESTAMPTZ,
			rating SMALLINT,
			rating_text TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			message TEXT NOT NULL,
			receivers JSONB NOT NULL,
			link VARCHAR(255) NOT NULL DEFAULT '',
			mark_as_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			restaurant_id BIGINT NOT NULL DEFAULT 0,
			image VARCHAR(512) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS foods (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			image VARCHAR(512) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			price DECIMAL(10,2) NOT NULL,
			type VARCHAR(50) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS restaurants (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			address VARCHAR(512) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			contact VARCHAR(50) NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_gateway_order_id ON orders(gateway_order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_receivers ON notifications USING GIN (receivers)`,
	}

	for _, query := range queries {
		if _, err := p.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `id, user_id, gateway_order_id, receipt, payment_id, amount, delivery_fee,
	restaurant_id, food_ids, payment_status, order_status, pickup_by, pickup_time,
	delivered_time, rating, rating_text, created_at`

func (p *Postgres) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	foodIDs, err := json.Marshal(order.FoodIDs)
	if err != nil {
		return 0, err
	}

	var id int64
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, gateway_order_id, receipt, amount, delivery_fee,
			restaurant_id, food_ids, payment_status, order_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		order.UserID, order.GatewayOrderID, order.Receipt, order.Amount, order.DeliveryFee,
		order.RestaurantID, foodIDs, order.PaymentStatus, order.Status, order.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (p *Postgres) OrderByGatewayRef(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1`, gatewayOrderID)
	return scanOrder(row)
}

func (p *Postgres) Orders(ctx context.Context) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (p *Postgres) OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// MarkPaid flips the payment to paid exactly once. A replayed capture
// callback matches zero rows and reports false.
func (p *Postgres) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, payment_id = $2
		WHERE gateway_order_id = $3 AND payment_status <> $1`,
		models.PaymentPaid, paymentID, gatewayOrderID)
	if err != nil {
		return false, err
	}
	return oneRowChanged(result)
}

func (p *Postgres) MarkPaymentFailed(ctx context.Context, gatewayOrderID, paymentID string) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, payment_id = $2, order_status = $3
		WHERE gateway_order_id = $4 AND payment_status = $5`,
		models.PaymentFailed, paymentID, models.StatusOrderFailed,
		gatewayOrderID, models.PaymentCreated)
	if err != nil {
		return false, err
	}
	return oneRowChanged(result)
}

// ClaimPickup assigns a rider if and only if no rider holds the order
// yet and it has not left the restaurant. Concurrent claims resolve
// inside the database: one matches the pickup_by IS NULL predicate, the
// rest change nothing. The pre-pickup statuses are enumerated because
// the numeric status values do not follow lifecycle order.
func (p *Postgres) ClaimPickup(ctx context.Context, orderID, riderID int64, at time.Time) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET pickup_by = $1, pickup_time = $2
		WHERE id = $3 AND pickup_by IS NULL AND order_status IN ($4, $5, $6)`,
		riderID, at, orderID,
		models.StatusOrderPlaced, models.StatusPreparing, models.StatusReadyForPickup)
	if err != nil {
		return false, err
	}
	return oneRowChanged(result)
}

// AdvanceStatus is a compare-and-set on the status column.
func (p *Postgres) AdvanceStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET order_status = $1
		WHERE id = $2 AND order_status = $3`,
		to, orderID, from)
	if err != nil {
		return false, err
	}
	return oneRowChanged(result)
}

func (p *Postgres) MarkDelivered(ctx context.Context, orderID int64, at time.Time) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET order_status = $1, delivered_time = $2
		WHERE id = $3 AND order_status = $4`,
		models.StatusDelivered, at, orderID, models.StatusOutForDelivery)
	if err != nil {
		return false, err
	}
	return oneRowChanged(result)
}

// SetRating writes the rating once; rated orders match zero rows.
func (p *Postgres) SetRating(ctx context.Context, orderID int64, rating int, text string) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET rating = $1, rating_text = $2
		WHERE id = $3 AND rating IS NULL`,
		rating, text, orderID)
	if err != nil {
		return false, err
	}
	return oneRowChanged(result)
}

// GatewayRefsSince returns the gateway references of every local order
// created after since. The reconciliation sweep diffs this against the
// gateway's intent list.
func (p *Postgres) GatewayRefsSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT gateway_order_id FROM orders WHERE created_at >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (p *Postgres) UserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, restaurant_id, image FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.RestaurantID, &user.Image)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserIDsByRole lists users holding a role. A non-zero restaurantID
// narrows owners to one restaurant; riders are global, so callers pass
// zero for them.
func (p *Postgres) UserIDsByRole(ctx context.Context, role models.Role, restaurantID int64) ([]int64, error) {
	query := `SELECT id FROM users WHERE role = $1`
	args := []interface{}{role}
	if restaurantID != 0 {
		query += ` AND restaurant_id = $2`
		args = append(args, restaurantID)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) FoodsByIDs(ctx context.Context, ids []int64) (map[int64]models.Food, error) {
	foods := make(map[int64]models.Food, len(ids))
	if len(ids) == 0 {
		return foods, nil
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, image, description, price, type FROM foods
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb)::bigint)`, idsJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var food models.Food
		if err := rows.Scan(&food.ID, &food.Name, &food.Image, &food.Description, &food.Price, &food.Type); err != nil {
			return nil, err
		}
		foods[food.ID] = food
	}
	return foods, rows.Err()
}

func (p *Postgres) RestaurantByID(ctx context.Context, id int64) (*models.Restaurant, error) {
	restaurant := &models.Restaurant{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, address, email, contact FROM restaurants WHERE id = $1`, id).
		Scan(&restaurant.ID, &restaurant.Name, &restaurant.Address, &restaurant.Email, &restaurant.Contact)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return restaurant, nil
}

func (p *Postgres) CreateNotification(ctx context.Context, n *models.Notification) error {
	receivers, err := json.Marshal(n.Receivers)
	if err != nil {
		return err
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO notifications (message, receivers, link, mark_as_read, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		n.Message, receivers, n.Link, n.Read, n.CreatedAt,
	).Scan(&n.ID)
}

// UnreadNotifications uses JSONB containment so one row addressed to
// many receivers is found through the GIN index.
func (p *Postgres) UnreadNotifications(ctx context.Context, receiverID int64) ([]models.Notification, error) {
	receiver, err := json.Marshal([]int64{receiverID})
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, message, receivers, link, mark_as_read, created_at
		FROM notifications
		WHERE receivers @> $1::jsonb AND mark_as_read = FALSE
		ORDER BY created_at DESC`, receiver)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var receiversJSON []byte
		if err := rows.Scan(&n.ID, &n.Message, &receiversJSON, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(receiversJSON, &n.Receivers); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (p *Postgres) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET mark_as_read = TRUE WHERE id = $1`, notificationID)
	return err
}

func (p *Postgres) MarkAllNotificationsRead(ctx context.Context, receiverID int64) error {
	receiver, err := json.Marshal([]int64{receiverID})
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		UPDATE notifications SET mark_as_read = TRUE
		WHERE receivers @> $1::jsonb AND mark_as_read = FALSE`, receiver)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var foodIDs []byte
	err := row.Scan(
		&order.ID, &order.UserID, &order.GatewayOrderID, &order.Receipt, &order.PaymentID,
		&order.Amount, &order.DeliveryFee, &order.RestaurantID, &foodIDs,
		&order.PaymentStatus, &order.Status, &order.PickupBy, &order.PickupTime,
		&order.DeliveredTime, &order.Rating, &order.RatingText, &order.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(foodIDs, &order.FoodIDs); err != nil {
		return nil, err
	}
	return order, nil
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func oneRowChanged(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
