package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"marketwatch_bot/internal/model"
	"marketwatch_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user row and populates its ID and CreatedAt.
// Keywords and excluded words on the input are ignored; they are managed
// through their own operations.
func (s *SQLite) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (chat_id, is_active, expiry_date, location, lat, lon,
		                    only_preferred, near_good_deals, good_deals, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ChatID, boolToInt(user.Active), user.ExpiryDate, user.Location, user.Lat, user.Lon,
		boolToInt(user.Modes.OnlyPreferred), boolToInt(user.Modes.NearGoodDeals),
		boolToInt(user.Modes.GoodDeals), now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetUserByChat returns the user registered for a chat, with keywords and
// excluded words attached. A missing user surfaces as a wrapped
// sql.ErrNoRows.
func (s *SQLite) GetUserByChat(ctx context.Context, chatID int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, is_active, expiry_date, location, lat, lon,
		        only_preferred, near_good_deals, good_deals, created_at
		 FROM users WHERE chat_id = ?`, chatID,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := s.attachWords(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns every user with keywords and excluded words attached.
func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, is_active, expiry_date, location, lat, lon,
		        only_preferred, near_good_deals, good_deals, created_at
		 FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	index := make(map[int64]int)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		index[u.ID] = len(users)
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	if err := s.mergeWords(ctx, `SELECT user_id, keyword FROM keywords ORDER BY user_id, id`,
		func(id int64, word string) {
			if i, ok := index[id]; ok {
				users[i].Keywords = append(users[i].Keywords, word)
			}
		}); err != nil {
		return nil, err
	}
	if err := s.mergeWords(ctx, `SELECT user_id, word FROM excluded_words ORDER BY user_id, id`,
		func(id int64, word string) {
			if i, ok := index[id]; ok {
				users[i].ExcludedWords = append(users[i].ExcludedWords, word)
			}
		}); err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserActive toggles a user's subscription on or off.
func (s *SQLite) SetUserActive(ctx context.Context, userID int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = ? WHERE id = ?`, boolToInt(active), userID)
	if err != nil {
		return fmt.Errorf("update user active: %w", err)
	}
	return nil
}

// UpdateUserLocation sets the search location and the fixed coordinates that
// listing distances are measured from.
func (s *SQLite) UpdateUserLocation(ctx context.Context, userID int64, location string, lat, lon float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET location = ?, lat = ?, lon = ? WHERE id = ?`,
		location, lat, lon, userID)
	if err != nil {
		return fmt.Errorf("update user location: %w", err)
	}
	return nil
}

// UpdateUserModes persists the notification mode flags.
func (s *SQLite) UpdateUserModes(ctx context.Context, userID int64, modes model.Modes) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET only_preferred = ?, near_good_deals = ?, good_deals = ? WHERE id = ?`,
		boolToInt(modes.OnlyPreferred), boolToInt(modes.NearGoodDeals), boolToInt(modes.GoodDeals), userID)
	if err != nil {
		return fmt.Errorf("update user modes: %w", err)
	}
	return nil
}

// UpdateUserExpiry sets the subscription expiry date ("2006-01-02").
func (s *SQLite) UpdateUserExpiry(ctx context.Context, userID int64, expiryDate string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET expiry_date = ? WHERE id = ?`, expiryDate, userID)
	if err != nil {
		return fmt.Errorf("update user expiry: %w", err)
	}
	return nil
}

// DeleteUser removes a user and everything attached to it.
func (s *SQLite) DeleteUser(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM excluded_words WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete excluded_words: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return tx.Commit()
}

// AddKeyword adds a search keyword; adding an existing one is a no-op.
func (s *SQLite) AddKeyword(ctx context.Context, userID int64, keyword string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO keywords (user_id, keyword) VALUES (?, ?)`, userID, keyword)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	return nil
}

// RemoveKeyword removes a search keyword.
func (s *SQLite) RemoveKeyword(ctx context.Context, userID int64, keyword string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM keywords WHERE user_id = ? AND keyword = ?`, userID, keyword)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	return nil
}

// AddExcludedWord adds a title word that suppresses notifications.
func (s *SQLite) AddExcludedWord(ctx context.Context, userID int64, word string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO excluded_words (user_id, word) VALUES (?, ?)`, userID, word)
	if err != nil {
		return fmt.Errorf("insert excluded word: %w", err)
	}
	return nil
}

// RemoveExcludedWord removes an excluded word.
func (s *SQLite) RemoveExcludedWord(ctx context.Context, userID int64, word string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM excluded_words WHERE user_id = ? AND word = ?`, userID, word)
	if err != nil {
		return fmt.Errorf("delete excluded word: %w", err)
	}
	return nil
}

// AddProduct inserts or replaces a price book entry, keyed by product name,
// and populates its ID.
func (s *SQLite) AddProduct(ctx context.Context, userID int64, p *model.Product) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO products (user_id, name, preferred, good_price) VALUES (?, ?, ?, ?)`,
		userID, p.Name, boolToInt(p.Preferred), p.GoodPrice)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// RemoveProduct removes a price book entry by name.
func (s *SQLite) RemoveProduct(ctx context.Context, userID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM products WHERE user_id = ? AND name = ?`, userID, name)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ListProducts returns the price book for the user registered in a chat.
func (s *SQLite) ListProducts(ctx context.Context, chatID int64) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.preferred, p.good_price
		 FROM products p JOIN users u ON u.id = p.user_id
		 WHERE u.chat_id = ? ORDER BY p.id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var preferred int
		if err := rows.Scan(&p.ID, &p.Name, &preferred, &p.GoodPrice); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Preferred = preferred == 1
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLite) attachWords(ctx context.Context, u *model.User) error {
	keywords, err := s.collectWords(ctx,
		`SELECT keyword FROM keywords WHERE user_id = ? ORDER BY id`, u.ID)
	if err != nil {
		return err
	}
	excluded, err := s.collectWords(ctx,
		`SELECT word FROM excluded_words WHERE user_id = ? ORDER BY id`, u.ID)
	if err != nil {
		return err
	}
	u.Keywords = keywords
	u.ExcludedWords = excluded
	return nil
}

func (s *SQLite) collectWords(ctx context.Context, query string, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

func (s *SQLite) mergeWords(ctx context.Context, query string, add func(userID int64, word string)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query words: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var w string
		if err := rows.Scan(&id, &w); err != nil {
			return fmt.Errorf("scan word: %w", err)
		}
		add(id, w)
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var active, onlyPreferred, nearGood, good int
	var created sql.NullString
	err := row.Scan(&u.ID, &u.ChatID, &active, &u.ExpiryDate, &u.Location, &u.Lat, &u.Lon,
		&onlyPreferred, &nearGood, &good, &created)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Active = active == 1
	u.Modes = model.Modes{
		OnlyPreferred: onlyPreferred == 1,
		NearGoodDeals: nearGood == 1,
		GoodDeals:     good == 1,
	}
	if created.Valid {
		u.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &u, nil
}
